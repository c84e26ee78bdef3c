// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sc420/pygame-rl/service/internal/auth"
	"github.com/sc420/pygame-rl/service/internal/cache"
	"github.com/sc420/pygame-rl/service/internal/config"
	"github.com/sc420/pygame-rl/service/internal/database"
	"github.com/sc420/pygame-rl/service/internal/logging"
	"github.com/sc420/pygame-rl/service/internal/server"
	"github.com/sc420/pygame-rl/service/internal/session"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "server:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(".env")
	if err != nil {
		return err
	}
	log, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.RedisURL != "" {
		if err := cache.Connect(ctx, cfg.RedisURL); err != nil {
			return err
		}
		defer cache.Rdb.Close()
		log.Info("Connected to Redis.")
	} else {
		log.Warn("GRIDRL_REDIS_URL not set; step records are not published.")
	}
	if cfg.DatabaseURL != "" {
		if err := database.Connect(ctx, cfg.DatabaseURL); err != nil {
			return err
		}
		defer database.DB.Close()
		if err := database.Migrate(ctx); err != nil {
			return err
		}
		log.Info("Connected to Postgres.")
	} else {
		log.Warn("GRIDRL_DATABASE_URL not set; episode summaries are not stored.")
	}

	issuer, err := auth.NewIssuer(cfg.JWTSecret, cfg.TokenTTL)
	if err != nil {
		return err
	}
	mgr := session.NewManager(cfg.MaxSessions, cfg.ScenarioDir, log)
	// Runs before the client Close calls deferred above. CloseAll returns once
	// every session has flushed its writes.
	defer mgr.CloseAll()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server.New(mgr, issuer, log).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", cfg.Addr).Info("Listening.")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		log.Info("Shutting down.")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
	}
	return nil
}
