package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/mcdev12/partyline/internal/events"
	"github.com/rs/zerolog/log"
)

// Hub fans game events out to connected websocket spectators.
type Hub struct {
	connections map[*connection]bool
	mu          sync.RWMutex

	upgrader    websocket.Upgrader
	config      Config
	broadcastCh chan events.Envelope
}

// connection is one spectator. Writes go through the buffered send channel;
// a spectator that cannot keep up is dropped.
type connection struct {
	id          string
	conn        *websocket.Conn
	send        chan []byte
	connectedAt time.Time
}

// Config holds websocket connection settings.
type Config struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	CheckOrigin     func(r *http.Request) bool
}

// DefaultConfig returns default websocket settings.
func DefaultConfig() Config {
	return Config{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  1024,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			// Allow all origins in development - restrict in production
			return true
		},
	}
}

// NewHub creates a spectator hub.
func NewHub(config Config) *Hub {
	return &Hub{
		connections: make(map[*connection]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:      config,
		broadcastCh: make(chan events.Envelope, 256),
	}
}

// Run processes broadcast messages until the context is cancelled.
func (h *Hub) Run(ctx context.Context) {
	log.Info().Msg("gateway hub started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("gateway hub shutting down")
			h.closeAll()
			return
		case ev := <-h.broadcastCh:
			h.handleBroadcast(ev)
		}
	}
}

// Publish queues an event for broadcast. Never blocks the caller; if the
// broadcast buffer is full the event is dropped for spectators.
func (h *Hub) Publish(_ context.Context, ev events.Envelope) error {
	select {
	case h.broadcastCh <- ev:
		return nil
	default:
		log.Warn().Str("event_type", string(ev.Type)).Msg("gateway broadcast buffer full, dropping event")
		return nil
	}
}

func (h *Hub) handleBroadcast(ev events.Envelope) {
	data, err := json.Marshal(ev)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal event for broadcast")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.connections {
		select {
		case c.send <- data:
		default:
			// Slow spectator - close it out of band.
			go h.unregister(c)
		}
	}
}

// HandleWebSocket upgrades an HTTP request to a spectator connection.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("failed to upgrade websocket connection")
		return
	}

	c := &connection{
		id:          uuid.New().String()[:8],
		conn:        ws,
		send:        make(chan []byte, 64),
		connectedAt: time.Now(),
	}

	h.mu.Lock()
	h.connections[c] = true
	count := len(h.connections)
	h.mu.Unlock()

	log.Info().Str("conn_id", c.id).Int("total", count).Msg("spectator connected")

	go h.writePump(c)
	go h.readPump(c)
}

// writePump writes queued events and pings to the spectator.
func (h *Hub) writePump(c *connection) {
	ticker := time.NewTicker(h.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Debug().Err(err).Str("conn_id", c.id).Msg("spectator write failed")
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump drains the connection. Spectators are read-only; anything they
// send is discarded, but the pump keeps pong handling and close detection
// alive.
func (h *Hub) readPump(c *connection) {
	defer h.unregister(c)

	c.conn.SetReadLimit(h.config.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(h.config.ReadTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(h.config.ReadTimeout))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Str("conn_id", c.id).Msg("spectator read error")
			}
			return
		}
	}
}

func (h *Hub) unregister(c *connection) {
	h.mu.Lock()
	if _, ok := h.connections[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.connections, c)
	count := len(h.connections)
	h.mu.Unlock()

	close(c.send)
	c.conn.Close()
	log.Info().
		Str("conn_id", c.id).
		Int("total", count).
		Dur("connected_for", time.Since(c.connectedAt)).
		Msg("spectator disconnected")
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.connections {
		close(c.send)
		c.conn.Close()
		delete(h.connections, c)
	}
}

// ConnectionCount returns the number of connected spectators.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}

// healthResponse is the /health payload.
type healthResponse struct {
	Status     string `json:"status"`
	Spectators int    `json:"spectators"`
}

func (h *Hub) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(healthResponse{
		Status:     "ok",
		Spectators: h.ConnectionCount(),
	})
}

// Handler returns the hub's HTTP surface (websocket endpoint plus health
// check) wrapped with CORS.
func (h *Hub) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", h.HandleWebSocket)
	mux.HandleFunc("/health", h.handleHealth)
	return corsHandler(mux)
}

// Serve runs the hub's HTTP server until the context is cancelled.
func (h *Hub) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:    addr,
		Handler: h.Handler(),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", addr).Msg("gateway listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("gateway server: %w", err)
	}
	return nil
}
