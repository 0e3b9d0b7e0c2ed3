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

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"pt-planner/internal/config"
	"pt-planner/internal/core"
	"pt-planner/internal/db"
	httpserver "pt-planner/internal/http"
	"pt-planner/internal/llm"
	"pt-planner/internal/store"
	"pt-planner/pkg"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "pt-planner",
		Short:         "Physical therapy records and recovery planning API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(initDBCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func initDBCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init-db",
		Short: "Prepare the configured store backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			return initDB(cmd.Context())
		},
	}
}

func loadConfig() (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	logger := newLogger(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, logger, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, logger, nil
}

func newLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if cfg.IsDev() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return logger.Level(level)
}

// openSnapshotter returns the configured backend and a func releasing its
// connections.
func openSnapshotter(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (store.Snapshotter, func(), error) {
	noop := func() {}
	switch cfg.StoreBackend {
	case config.BackendMemory:
		return &store.MemorySnapshotter{}, noop, nil
	case config.BackendS3:
		snap, err := store.NewS3Snapshotter(ctx, store.S3Config{
			Bucket:    cfg.S3Bucket,
			Key:       cfg.S3Key,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		})
		return snap, noop, err
	case config.BackendMongo:
		snap, err := store.NewMongoSnapshotter(ctx, cfg.MongoURI, cfg.MongoDatabase, logger)
		if err != nil {
			return nil, noop, err
		}
		return snap, func() { _ = snap.Close(context.Background()) }, nil
	case config.BackendPostgres:
		conn, err := db.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, noop, err
		}
		if err := db.Migrate(ctx, conn); err != nil {
			_ = conn.Close()
			return nil, noop, fmt.Errorf("migrate: %w", err)
		}
		repo := db.NewRepository(conn, db.NewNotifier(conn, cfg.NotifyChannel), logger)
		return repo, func() { _ = conn.Close() }, nil
	default:
		return store.NewFileSnapshotter(cfg.DataFile), noop, nil
	}
}

func runServer() error {
	cfg, logger, err := loadConfig()
	if err != nil {
		logger.Error().Err(err).Msg("failed to load config")
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	snap, closeSnap, err := openSnapshotter(ctx, cfg, logger)
	if err != nil {
		logger.Error().Err(err).Str("backend", cfg.StoreBackend).Msg("failed to open store backend")
		return err
	}
	defer closeSnap()

	st := store.New(snap, logger)
	if err := st.Load(ctx); err != nil {
		logger.Error().Err(err).Msg("failed to load patient records")
		return err
	}

	client := llm.NewOpenAIClient(llm.Config{
		Enabled:       cfg.AIEnabled,
		APIKey:        cfg.OpenAIAPIKey,
		BaseURL:       cfg.OpenAIBaseURL,
		Model:         cfg.OpenAIModel,
		Timeout:       cfg.AITimeout,
		StreamTimeout: cfg.AIStreamTimeout,
		MaxRetries:    cfg.AIMaxRetries,
	}, logger)
	if !client.Enabled() {
		logger.Warn().Bool("ai_enabled", cfg.AIEnabled).Msg("AI features unavailable, AI endpoints will return errors")
	}
	assistant := core.NewAssistant(client, logger)
	assistant.DiagnosisMaxTokens = cfg.AIDiagnosisMaxTokens
	assistant.PlanMaxTokens = cfg.AIPlanMaxTokens

	srv := httpserver.NewServer(st, assistant, httpserver.Options{
		JWTSecret:   cfg.JWTSecret,
		CORSOrigins: cfg.CORSOrigins,
	}, logger)

	errCh := make(chan error, 1)
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("store", cfg.StoreBackend).Str("model", cfg.OpenAIModel).Msg("starting server")
		if err := srv.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		logger.Error().Err(err).Msg("server error")
		return err
	}

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}

// initDB applies the Postgres schema, or writes an empty snapshot when the
// backend has none yet.  Existing records are never overwritten.
func initDB(ctx context.Context) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	snap, closeSnap, err := openSnapshotter(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeSnap()

	if cfg.StoreBackend == config.BackendPostgres {
		logger.Info().Msg("database schema is up to date")
		return nil
	}

	existing, err := snap.Load(ctx)
	switch {
	case errors.Is(err, store.ErrNoSnapshot):
		if err := snap.Save(ctx, map[string]*pkg.Patient{}); err != nil {
			return fmt.Errorf("write empty snapshot: %w", err)
		}
		logger.Info().Str("backend", cfg.StoreBackend).Msg("initialised empty patient store")
	case err != nil:
		return err
	default:
		logger.Info().Str("backend", cfg.StoreBackend).Int("patients", len(existing)).Msg("patient store already initialised")
	}
	return nil
}
