/*
serve.go - "quelio serve"

STARTUP SEQUENCE:
  1. Validate server settings (portal URL, encryption key)
  2. Open the SQLite store
  3. Wire tokens, rate limiter, portal client and accountant
  4. Start the login-attempt janitor
  5. Start the HTTP server with graceful shutdown

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the janitor, close the database
*/
package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/quelio/engine/accounting"
	"github.com/quelio/engine/api"
	"github.com/quelio/engine/auth"
	"github.com/quelio/engine/kelio"
	"github.com/quelio/engine/logger"
	"github.com/quelio/engine/store/sqlite"
)

const shutdownTimeout = 30 * time.Second

func newServeCmd(a *app) *cobra.Command {
	var (
		port   int
		dbPath string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if dbPath != "" {
				a.cfg.DatabasePath = dbPath
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx, port)
		},
	}
	cmd.Flags().IntVar(&port, "port", 8080, "HTTP server port")
	cmd.Flags().StringVar(&dbPath, "db", "", `SQLite database path (overrides database_path, ":memory:" for in-memory)`)
	return cmd
}

func (a *app) serve(ctx context.Context, port int) error {
	cfg := a.cfg
	if err := cfg.ValidateServer(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	log := logger.Logger

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	store, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer store.Close()

	tokens, err := auth.NewTokens(cfg.EncryptionKey, cfg.TokenTTL.Duration)
	if err != nil {
		return err
	}
	limiter := auth.NewRateLimiter(store, cfg.RateLimitMaxAttempts, cfg.RateLimitWindow.Duration)
	portal := kelio.NewClient(cfg.KelioURL,
		kelio.WithTimeout(cfg.UpstreamTimeout.Duration),
		kelio.WithLogger(log),
	)

	handler := api.NewHandler(store, tokens, limiter, portal, accounting.Accountant{Rules: cfg.Rules, Location: loc})
	handler.AdminUsername = cfg.AdminUsername
	handler.AdminPasswordHash = cfg.AdminPasswordHash
	handler.Logger = log
	if cfg.AdminUsername == "" || cfg.AdminPasswordHash == "" {
		log.Warn("admin credentials not configured, /api/data is disabled")
	}

	janitor := api.NewJanitor(limiter, log)
	janitor.Interval = cfg.JanitorInterval.Duration
	janitor.Start()
	defer janitor.Stop()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      api.NewRouter(handler, api.RouterOptions{AllowedOrigins: cfg.AllowedOrigins}),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.UpstreamTimeout.Duration + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("server starting", "addr", server.Addr, "portal", cfg.KelioURL, "db", cfg.DatabasePath)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	log.Info("server stopped")
	return nil
}
