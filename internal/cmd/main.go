package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/crickdraft/server/internal/gateway"
	"github.com/crickdraft/server/internal/httpapi"
	"github.com/crickdraft/server/internal/relay"
	"github.com/crickdraft/server/internal/scheduler"
	"github.com/crickdraft/server/internal/session"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("no .env file loaded")
	}

	cfg, err := loadConfig(getEnv("CONFIG_PATH", "config.yaml"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clock := clockwork.NewRealClock()

	st, closeStore, err := setupStore(ctx, cfg, clock)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up room store")
	}
	defer closeStore()

	sched := scheduler.New(clock)
	rng := session.NewRand(time.Now().UnixNano())

	cm := gateway.NewConnectionManager(gateway.DefaultConfig())

	// With the relay enabled, events fan out through NATS so every server
	// instance delivers them to its own connections. Without it, events go
	// straight to the local connection manager.
	var bc session.Broadcaster = cm
	if cfg.Relay.Enabled {
		rl, err := relay.New(cfg.Relay.NatsURL, cm)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to nats")
		}
		if err := rl.Start(); err != nil {
			log.Fatal().Err(err).Msg("failed to start event relay")
		}
		defer rl.Close()
		bc = rl
	}

	coord := session.New(st, sched, bc, clock, rng)
	cm.SetCoordinator(coord)
	go cm.Run(ctx)

	srv := setupServer(cfg, cm, httpapi.NewHandler(coord))

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}
}
