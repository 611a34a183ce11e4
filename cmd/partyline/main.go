package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/partyline/internal/bot"
	"github.com/mcdev12/partyline/internal/config"
	"github.com/mcdev12/partyline/internal/console"
	"github.com/mcdev12/partyline/internal/dispatch"
	"github.com/mcdev12/partyline/internal/events"
	"github.com/mcdev12/partyline/internal/game"
	"github.com/mcdev12/partyline/internal/gateway"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("could not load .env file")
	}

	// Setup logging
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfgPath := config.DefaultPath
	switch len(os.Args) {
	case 1:
	case 2:
		cfgPath = os.Args[1]
	default:
		fmt.Fprintln(os.Stderr, "usage: partyline [config_path]")
		os.Exit(1)
	}

	cfg, err := config.Load(cfgPath)
	if errors.Is(err, config.ErrSampleWritten) {
		log.Fatal().Str("path", cfgPath).Msg("no config file found; sample written, edit it and restart")
	}
	if err != nil {
		log.Fatal().Err(err).Str("path", cfgPath).Msg("failed to load config")
	}

	log.Info().
		Str("config", cfgPath).
		Str("nats_url", cfg.NATSURL).
		Str("gateway_addr", cfg.GatewayAddr).
		Bool("admin_chat_verified", cfg.AdminChatID != 0).
		Msg("starting partyline")

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The admin chat id is shared between the authorization predicate and
	// the console's verify flow.
	var adminChat atomic.Int64
	adminChat.Store(cfg.AdminChatID)
	authorized := func(chatID int64) bool {
		id := adminChat.Load()
		return id != 0 && chatID == id
	}

	state := game.New(clockwork.NewRealClock())

	// Spectator gateway
	hub := gateway.NewHub(gateway.DefaultConfig())
	go hub.Run(ctx)
	if cfg.GatewayAddr != "" {
		go func() {
			if err := hub.Serve(ctx, cfg.GatewayAddr); err != nil {
				log.Error().Err(err).Msg("gateway server failed")
			}
		}()
	}

	sinks := []dispatch.EventSink{hub}

	// Optional NATS event stream
	if cfg.NATSURL != "" {
		pubCfg := events.DefaultPublisherConfig()
		pubCfg.URL = cfg.NATSURL
		publisher, err := events.NewPublisher(pubCfg)
		if err != nil {
			log.Warn().Err(err).Msg("NATS unavailable, continuing without event stream")
		} else {
			defer publisher.Close()
			sinks = append(sinks, publisher)
		}
	}

	b, err := bot.New(cfg.TelegramToken)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to start telegram bot")
	}

	dispatcher := dispatch.New(state, b, authorized, sinks...)
	b.AttachDispatcher(dispatcher)

	cons := console.New(b, cfg, cfgPath, &adminChat, cancel)
	b.SetObserver(cons)
	go cons.Run(ctx)

	go func() {
		if err := b.Run(ctx); err != nil {
			log.Error().Err(err).Msg("telegram bot failed")
			cancel()
		}
	}()

	// Wait for interrupt signal or console stop
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	select {
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("received shutdown signal")
		cancel()
	case <-ctx.Done():
	}

	log.Info().Msg("partyline shutdown complete")
}
