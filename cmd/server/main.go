package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	evbus "github.com/asaskevich/EventBus"
	"github.com/rs/zerolog"

	"nexuserp/backend/internal/config"
	"nexuserp/backend/internal/httpapi"
	"nexuserp/backend/internal/localstore"
	"nexuserp/backend/internal/remote"
	"nexuserp/backend/internal/service"
	"nexuserp/backend/internal/syncer"
)

func main() {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()

	cfg := config.Load()

	if dir := filepath.Dir(cfg.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			logger.Fatal().Err(err).Str("dir", dir).Msg("create data directory")
		}
	}

	db, err := localstore.Open(cfg.DBPath)
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open local store")
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := db.Seed(ctx); err != nil {
		logger.Fatal().Err(err).Msg("seed local store")
	}

	remoteStore, closeRemote, err := buildRemoteStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("configure remote store")
	}
	defer closeRemote()

	bus := evbus.New()
	driver := syncer.New(db, remoteStore, bus, logger, syncer.Options{
		MaxAttempts:     cfg.SyncMaxAttempts,
		Backoff:         time.Duration(cfg.SyncBackoffMS) * time.Millisecond,
		DeadLetterAfter: cfg.SyncDeadLetterAfter,
		DrainEvery:      time.Duration(cfg.SyncIntervalSeconds) * time.Second,
		StartOnline:     cfg.StartOnline,
	})
	driver.Start()
	defer driver.Stop()

	svc := service.New(db, driver, logger)
	if err := svc.Load(ctx); err != nil {
		logger.Fatal().Err(err).Msg("load state snapshot")
	}

	api := httpapi.New(svc, driver, bus, cfg.AllowedOrigin, logger)

	srv := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", srv.Addr).Str("backend", remoteStore.Name()).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server stopped")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	// One last drain attempt so a clean shutdown leaves as little queued as
	// possible; a failure here just stays in the queue for next boot.
	if err := driver.Drain(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("final drain halted")
	}
}

// buildRemoteStore picks the sync backend from configuration, strongest
// binding first: Postgres, then Redis, then a plain HTTP API, falling back
// to a no-op sink that acknowledges everything.
func buildRemoteStore(ctx context.Context, cfg config.Config, logger zerolog.Logger) (remote.Store, func(), error) {
	switch {
	case cfg.RemoteDatabaseURL != "":
		store, err := remote.NewPostgresStore(ctx, cfg.RemoteDatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil

	case cfg.RemoteRedisAddr != "":
		store := remote.NewRedisStore(cfg.RemoteRedisAddr, cfg.RemoteRedisPass, cfg.RemoteRedisDB)
		if err := store.Ping(ctx); err != nil {
			_ = store.Close()
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil

	case cfg.RemoteBaseURL != "":
		store := remote.NewHTTPStore(cfg.RemoteBaseURL, cfg.RemoteAuthSecret)
		return store, func() {}, nil

	default:
		logger.Warn().Msg("no remote store configured, sync is a no-op")
		return remote.NoopStore{}, func() {}, nil
	}
}
