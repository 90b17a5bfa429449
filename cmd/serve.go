package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/findez/inventory/db"
	"github.com/findez/inventory/internal/activity"
	"github.com/findez/inventory/internal/agent"
	"github.com/findez/inventory/internal/api"
	"github.com/findez/inventory/internal/config"
	"github.com/findez/inventory/internal/database"
	"github.com/findez/inventory/internal/document"
	"github.com/findez/inventory/internal/inventory"
	"github.com/findez/inventory/internal/log"
	"github.com/findez/inventory/internal/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// runServe initializes every dependency and starts the HTTP API server.
func runServe() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := log.New(log.Config{JSON: true})
	logger.Info("starting inventory server", "version", Version, "config", cfg)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := db.Migrate(cfg.PostgresURL(), logger); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	pool, err := database.NewPool(ctx, cfg.PostgresConnectionString())
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	items, err := inventory.NewStore(pool, logger)
	if err != nil {
		return fmt.Errorf("creating item store: %w", err)
	}
	docs, err := document.NewStore(pool, logger)
	if err != nil {
		return fmt.Errorf("creating document store: %w", err)
	}
	acts, err := activity.NewStore(pool, logger)
	if err != nil {
		return fmt.Errorf("creating activity store: %w", err)
	}
	blobs, err := storage.NewBlobStore(cfg.StorageRoot)
	if err != nil {
		return fmt.Errorf("creating blob store: %w", err)
	}

	provider, err := agent.NewGeminiProvider(ctx, cfg.GeminiAPIKey, cfg.ModelName, cfg.Temperature, logger)
	if err != nil {
		return fmt.Errorf("creating model provider: %w", err)
	}

	assistant, err := agent.New(provider, items, docs, acts, blobs, logger)
	if err != nil {
		return fmt.Errorf("creating assistant: %w", err)
	}

	apiServer, err := api.NewServer(api.ServerConfig{
		Logger:      logger,
		Items:       items,
		Documents:   docs,
		Activity:    acts,
		Blobs:       blobs,
		Assistant:   assistant,
		Provider:    provider,
		Pool:        pool,
		AuthSecret:  []byte(cfg.AuthSecret),
		CORSOrigins: cfg.CORSOrigins,
		TrustProxy:  cfg.TrustProxy,
		RateBurst:   cfg.RateBurst,
		MaxUploadMB: cfg.MaxUploadMB,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: api.ReadHeaderTimeout,
		ReadTimeout:       api.ReadTimeout,
		WriteTimeout:      api.WriteTimeout, // SSE streaming needs the long timeout
		IdleTimeout:       api.IdleTimeout,
	}

	logger.Info("HTTP server ready",
		"addr", cfg.ListenAddr,
		"api", "/api/*",
		"health", "/health, /ready",
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down HTTP server")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), api.ShutdownTimeout)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down server: %w", err)
		}
		<-errCh
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("HTTP server: %w", err)
	}
}
