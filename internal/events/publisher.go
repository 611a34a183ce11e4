package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"
)

// PublisherConfig holds JetStream connection and stream settings.
type PublisherConfig struct {
	URL           string
	StreamName    string
	SubjectPrefix string
	MaxReconnects int
	ReconnectWait time.Duration
	MaxAge        time.Duration // How long to keep events
	MaxMsgs       int64         // Max number of events to keep
}

// DefaultPublisherConfig returns the default JetStream settings.
func DefaultPublisherConfig() PublisherConfig {
	return PublisherConfig{
		URL:           nats.DefaultURL,
		StreamName:    "PARTY_EVENTS",
		SubjectPrefix: "party.events",
		MaxReconnects: -1, // Infinite
		ReconnectWait: 2 * time.Second,
		MaxAge:        24 * time.Hour,
		MaxMsgs:       -1, // No limit
	}
}

// Publisher publishes game events to a NATS JetStream stream so external
// observers can follow the game. A nil *Publisher is a no-op, which lets
// the bot run without a NATS server.
type Publisher struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	config PublisherConfig
}

// NewPublisher connects to NATS and ensures the event stream exists.
func NewPublisher(cfg PublisherConfig) (*Publisher, error) {
	opts := []nats.Option{
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	p := &Publisher{nc: nc, js: js, config: cfg}

	if err := p.ensureStream(context.Background()); err != nil {
		nc.Close()
		return nil, fmt.Errorf("ensure stream: %w", err)
	}

	return p, nil
}

func (p *Publisher) ensureStream(ctx context.Context) error {
	sc := jetstream.StreamConfig{
		Name:        p.config.StreamName,
		Description: "Party game event stream",
		Subjects:    []string{fmt.Sprintf("%s.>", p.config.SubjectPrefix)},
		MaxAge:      p.config.MaxAge,
		MaxMsgs:     p.config.MaxMsgs,
		Storage:     jetstream.FileStorage,
	}

	_, err := p.js.CreateOrUpdateStream(ctx, sc)
	if err != nil {
		return fmt.Errorf("create or update stream: %w", err)
	}

	log.Info().
		Str("stream", p.config.StreamName).
		Str("subjects", sc.Subjects[0]).
		Msg("JetStream stream ready")
	return nil
}

// Publish sends one event envelope to the stream. Safe on a nil receiver.
func (p *Publisher) Publish(ctx context.Context, ev Envelope) error {
	if p == nil {
		return nil
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	subject := fmt.Sprintf("%s.%s", p.config.SubjectPrefix, strings.ToLower(string(ev.Type)))
	if _, err := p.js.Publish(ctx, subject, data); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}

	log.Debug().
		Str("subject", subject).
		Str("event_id", ev.ID).
		Str("event_type", string(ev.Type)).
		Msg("published event")
	return nil
}

// Close drains the NATS connection. Safe on a nil receiver.
func (p *Publisher) Close() {
	if p == nil || p.nc == nil {
		return
	}
	p.nc.Close()
}
