package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"firebase.google.com/go/v4/auth"

	"github.com/tallyhq/tally-backend/config"
	"github.com/tallyhq/tally-backend/internal/bootstrap"
	"github.com/tallyhq/tally-backend/internal/logging"
)

const serviceName = "tally-api"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	bootstrap.SetGinMode(cfg.App.Environment)
	logger := logging.New(cfg.App.Environment, cfg.App.LogLevel)

	if err := run(cfg, logger); err != nil {
		logger.Error(context.Background(), "api stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger logging.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := bootstrap.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer rt.Close()

	var verifier *auth.Client
	if rt.Firebase != nil {
		verifier, err = rt.Firebase.Auth(ctx)
		if err != nil {
			return err
		}
	} else if cfg.IsProduction() {
		return errors.New("firebase credentials are required in production")
	}

	router := bootstrap.BuildRouter(bootstrap.RouterDeps{
		ServiceName: serviceName,
		Version:     cfg.App.Version,
		CORSOrigins: cfg.Server.CORSOrigins,
		DB:          rt.Pool,
		Redis:       rt.Redis,
		Verifier:    verifier,
		Services:    rt.Services,
		Log:         logger,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info(ctx, "listening", "addr", srv.Addr, "env", cfg.App.Environment, "docstore", cfg.App.DocStore)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info(context.Background(), "shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
