package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xaenox/commentgen/internal/endpoint"
	"github.com/xaenox/commentgen/internal/llm"
	"github.com/xaenox/commentgen/internal/storage"
	"github.com/xaenox/commentgen/pkg/config"
)

// NewServeCmd creates the 'serve' command running the generation endpoint.
func NewServeCmd(env *Env) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the generation endpoint",
		Long: `Start the HTTP generation endpoint.

POST /generate-comment takes {postCaption, tone, provider, model, hint, userId}
and answers {generatedComment} or {error}. Generated comments are recorded in
PostgreSQL, or in memory when database.use_in_memory is set.`,
		Example: `  commentgen serve
  commentgen serve --addr :9000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := env.loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			return runServe(cmd.Context(), cfg, env.Logger)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides server.addr)")
	return cmd
}

func openStorage(ctx context.Context, cfg *config.Config, logger *zap.Logger) (storage.Storage, error) {
	if cfg.Database.UseInMemory {
		logger.Info("Using in-memory storage")
		return storage.NewMemoryStorage(), nil
	}

	logger.Info("Using PostgreSQL storage")
	return storage.NewPostgresStorage(ctx, storage.DatabaseConfig{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		DBName:   cfg.Database.DBName,
		SSLMode:  cfg.Database.SSLMode,
	}, logger)
}

// runServe blocks until SIGINT/SIGTERM or a server error, then shuts down.
func runServe(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	if ctx == nil {
		ctx = context.Background()
	}

	store, err := openStorage(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()

	factory := llm.NewFactory(llmProviders(cfg), logger)
	if cfg.Generation.DefaultModel != "" {
		factory.DefaultModel = cfg.Generation.DefaultModel
	}
	if cfg.Generation.MaxTokens > 0 {
		factory.MaxTokens = cfg.Generation.MaxTokens
	}
	if cfg.Generation.Temperature > 0 {
		factory.Temperature = cfg.Generation.Temperature
	}

	handler := endpoint.NewHandler(factory, store, endpoint.Options{
		DefaultModel:  factory.DefaultModel,
		LookupTimeout: cfg.Server.LookupTimeout,
		AuditTimeout:  cfg.Server.AuditTimeout,
	}, logger)
	server := endpoint.NewServer(cfg.Server.Addr, handler, logger)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	errChan := make(chan error, 1)
	go func() {
		errChan <- server.Start()
	}()

	select {
	case sig := <-sigChan:
		logger.Info("Received signal, shutting down", zap.String("signal", sig.String()))
	case <-ctx.Done():
		logger.Info("Context cancelled, shutting down")
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}

	if err := server.Stop(context.Background()); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
		return err
	}
	logger.Info("Shutdown complete")
	return nil
}
