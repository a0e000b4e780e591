package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/tuannm99/novaorm"
	"github.com/tuannm99/novaorm/internal/config"
)

// Run connects to the store, seeds it and serves HTTP until ctx is done.
// Registration or seeding failures abort startup.
func Run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	if err := cfg.RequireDatabaseURL(); err != nil {
		return err
	}
	if logger == nil {
		logger = slog.Default()
	}

	opts := cfg.PoolOptions()
	opts.Logger = logger
	db, err := novaorm.Connect(ctx, cfg.DatabaseURL, opts)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	svc := NewService(db, logger)
	if err := svc.Seed(ctx); err != nil {
		return fmt.Errorf("seed: %w", err)
	}

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           NewRouter(svc),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", srv.Addr)
		logger.Info("websocket available", "path", "/ws")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
