// Package console runs the operator's stdin loop: sending text to the
// saved admin chat, verifying a new admin chat with a one-time key, and
// stopping the process.
package console

import (
	"bufio"
	"context"
	"fmt"
	"math/rand/v2"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/mcdev12/partyline/internal/config"
	"github.com/mcdev12/partyline/internal/dispatch"
	"github.com/rs/zerolog/log"
)

const keyLength = 8
const keyAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

const helpText = `commands:
  say <text>   send text to the verified admin chat
  verify       generate a key; type it in the desired chat to make it the admin chat
  cancel       cancel a pending verification
  stop         stop the bot`

// Console is the operator's terminal interface. Observe is fed every
// inbound chat message so a pending verification key can be matched.
type Console struct {
	out       dispatch.Sink
	cfg       *config.Config
	cfgPath   string
	adminChat *atomic.Int64
	shutdown  context.CancelFunc

	mu         sync.Mutex
	pendingKey string
}

// New creates the console. adminChat is the shared admin chat id the
// authorization predicate reads; verification updates it and persists the
// config.
func New(out dispatch.Sink, cfg *config.Config, cfgPath string, adminChat *atomic.Int64, shutdown context.CancelFunc) *Console {
	return &Console{
		out:       out,
		cfg:       cfg,
		cfgPath:   cfgPath,
		adminChat: adminChat,
		shutdown:  shutdown,
	}
}

// Run reads operator commands from stdin until the input closes or the
// context is cancelled. The read itself cannot be interrupted, so a
// cancelled context takes effect at the next line.
func (c *Console) Run(ctx context.Context) {
	fmt.Println(helpText)

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}

		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "stop":
			c.shutdown()
			return

		case strings.HasPrefix(line, "say"):
			c.say(strings.TrimSpace(strings.TrimPrefix(line, "say")))

		case line == "verify":
			c.armVerification()

		case line == "cancel":
			c.cancelVerification()

		default:
			fmt.Println(helpText)
		}
	}

	if err := scanner.Err(); err != nil {
		log.Error().Err(err).Msg("console input failed")
	}
}

func (c *Console) say(text string) {
	id := c.adminChat.Load()
	if id == 0 {
		fmt.Println("no admin chat verified yet; run verify first")
		return
	}
	c.out.Send(id, text)
}

func (c *Console) armVerification() {
	key := make([]byte, keyLength)
	for i := range key {
		key[i] = keyAlphabet[rand.IntN(len(keyAlphabet))]
	}

	c.mu.Lock()
	c.pendingKey = string(key)
	c.mu.Unlock()

	fmt.Printf("verification key: %s\ntype the key in the desired chat (or type cancel here)\n", key)
	log.Info().Msg("chat verification armed")
}

func (c *Console) cancelVerification() {
	c.mu.Lock()
	armed := c.pendingKey != ""
	c.pendingKey = ""
	c.mu.Unlock()

	if armed {
		fmt.Println("verification cancelled")
	}
}

// Observe matches inbound messages against a pending verification key.
// On a match the sending chat becomes the admin chat and the config is
// persisted.
func (c *Console) Observe(chatID int64, chatTitle, text string) {
	c.mu.Lock()
	if c.pendingKey == "" || text != c.pendingKey {
		c.mu.Unlock()
		return
	}
	c.pendingKey = ""
	c.mu.Unlock()

	c.adminChat.Store(chatID)
	c.cfg.AdminChatID = chatID
	if err := c.cfg.Save(c.cfgPath); err != nil {
		log.Error().Err(err).Str("path", c.cfgPath).Msg("failed to persist verified chat")
		return
	}

	log.Info().Int64("chat_id", chatID).Str("chat", chatTitle).Msg("admin chat verified")
	fmt.Printf("verified chat: %s\n", chatTitle)
}
