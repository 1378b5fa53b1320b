package bootstrap

import (
	"context"
	"database/sql"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/tallyhq/tally-backend/config"
	"github.com/tallyhq/tally-backend/internal/auth"
	"github.com/tallyhq/tally-backend/internal/logging"
)

// Runtime owns every connection a process opens and the services built on them.
type Runtime struct {
	Pool     *pgxpool.Pool
	SQL      *sql.DB
	Redis    *redis.Client
	Firebase *firebase.App
	Services *Services

	closers []func()
}

// Open connects Postgres (and migrates it), Redis, Firebase when credentials
// are configured, and the document store, then builds the services.
func Open(ctx context.Context, cfg *config.Config, log logging.Logger) (_ *Runtime, err error) {
	rt := &Runtime{}
	defer func() {
		if err != nil {
			rt.Close()
		}
	}()

	rt.Pool, err = OpenDB(ctx, DBOptionsFrom(cfg.Database))
	if err != nil {
		return nil, err
	}
	rt.closers = append(rt.closers, rt.Pool.Close)

	rt.SQL = SQLDB(rt.Pool)
	rt.closers = append(rt.closers, func() { rt.SQL.Close() })
	if err = Migrate(ctx, rt.SQL); err != nil {
		return nil, err
	}

	rt.Redis, err = OpenRedis(ctx, cfg.Redis)
	if err != nil {
		return nil, err
	}
	rt.closers = append(rt.closers, func() { rt.Redis.Close() })

	if cfg.Firebase.CredentialsPath != "" {
		rt.Firebase, err = auth.InitializeFirebase(ctx, &cfg.Firebase)
		if err != nil {
			return nil, err
		}
	}

	store, closeStore, err := OpenDocStore(ctx, cfg.App.DocStore, rt.Firebase, rt.Redis)
	if err != nil {
		return nil, err
	}
	rt.closers = append(rt.closers, closeStore)

	rt.Services, err = NewServices(ctx, Infra{
		Config:   cfg,
		Log:      log,
		SQL:      rt.SQL,
		Store:    store,
		Redis:    rt.Redis,
		Firebase: rt.Firebase,
	})
	if err != nil {
		return nil, fmt.Errorf("build services: %w", err)
	}

	log.Info(ctx, "runtime ready", "docstore", cfg.App.DocStore, "firebase", rt.Firebase != nil)
	return rt, nil
}

// Close releases connections in reverse order of opening.
func (rt *Runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
	rt.closers = nil
}
