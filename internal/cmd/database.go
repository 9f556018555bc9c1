package main

import (
	"context"
	"fmt"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/crickdraft/server/internal/dbconfig"
	"github.com/crickdraft/server/internal/store"
	"github.com/crickdraft/server/internal/store/memory"
	"github.com/crickdraft/server/internal/store/postgres"
	"github.com/crickdraft/server/internal/store/redisstore"
)

// setupStore builds the room store named by the config. The postgres backend
// also returns a cleanup func that stops its expiry sweeper.
func setupStore(ctx context.Context, cfg *Config, clock clockwork.Clock) (store.RoomStore, func(), error) {
	switch cfg.Store.Backend {
	case "memory":
		log.Info().Msg("using in-memory room store")
		return memory.New(clock), func() {}, nil

	case "redis":
		st, err := redisstore.New(ctx, cfg.Store.Redis.Addr)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		log.Info().Str("addr", cfg.Store.Redis.Addr).Msg("using redis room store")
		return st, func() { _ = st.Close() }, nil

	case "postgres":
		dbCfg := dbconfig.NewConfigFromEnv()
		st, err := postgres.New(ctx, dbCfg.DSN())
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		sweepCtx, cancel := context.WithCancel(ctx)
		go st.RunSweeper(sweepCtx, store.RoomTTL/4)
		log.Info().
			Str("host", dbCfg.Host).
			Str("database", dbCfg.Database).
			Msg("using postgres room store")
		return st, func() {
			cancel()
			st.Close()
		}, nil

	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}
