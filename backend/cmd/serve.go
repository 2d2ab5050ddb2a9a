package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"finscholars/backend/auth"
	"finscholars/backend/config"
	"finscholars/backend/learning"
	"finscholars/backend/llm"
	"finscholars/backend/routes"
	"finscholars/backend/scheduler"
	"finscholars/backend/sessions"
	"finscholars/backend/store"
	"finscholars/backend/tts"
	"finscholars/backend/users"
	"finscholars/backend/utils"
)

const shutdownTimeout = 15 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd)
	},
}

func runServe(cmd *cobra.Command) error {
	cfg, logger, err := bootstrap()
	if err != nil {
		return err
	}
	defer logger.Sync()

	if p, _ := cmd.Flags().GetString("port"); p != "" {
		cfg.ServerPort = p
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := utils.InitDB(cfg)
	if err != nil {
		return fmt.Errorf("init database: %w", err)
	}
	if err := utils.Migrate(db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	st := store.New(db)

	snapshots, closeSnapshots, err := snapshotStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeSnapshots()

	provider, err := llm.NewProvider(ctx, llm.ConfigFrom(cfg), logger)
	if err != nil {
		return fmt.Errorf("language model: %w", err)
	}

	userManager := users.NewManager(st, snapshots, cfg.UserCacheTTL, logger)
	sessionManager := sessions.NewManager(userManager, cfg.SessionTTL, logger)
	authManager := auth.NewManager(auth.NewLocalIdentity(st), userManager, sessionManager, cfg.SessionSecret, cfg.TokenLifetime, logger)
	learningService := learning.NewService(st, userManager, provider, learning.Options{
		QuizWorkers:    cfg.QuizWorkers,
		QuizQueueSize:  cfg.QuizQueueSize,
		QuizJobTimeout: cfg.QuizJobTimeout,
	}, logger)
	if cfg.HuggingFaceKey == "" {
		logger.Warn("HUGGINGFACE_API_KEY not set, text-to-speech and model inference requests will fail")
	}
	hf := tts.NewClient(cfg.HuggingFaceKey, cfg.HuggingFaceURL, cfg.LLMTimeout).WithModelsURL(cfg.InferenceURL)

	app := routes.NewApp(routes.Deps{
		Cfg:      cfg,
		Auth:     authManager,
		Sessions: sessionManager,
		Users:    userManager,
		Learning: learningService,
		TTS:      hf,
		Models:   hf,
		Log:      logger,
	})

	sweeps := scheduler.New(sessionManager, userManager, cfg.SessionSweep, cfg.UserCacheSweep, logger)
	if err := sweeps.Start(); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server starting", "port", cfg.ServerPort, "provider", provider.ModelID())
		return app.Listen(":" + cfg.ServerPort)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		sweeps.Stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		var errs []error
		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
		if err := learningService.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("quiz workers: %w", err))
		}
		return errors.Join(errs...)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// snapshotStore picks Redis when REDIS_ADDR is set and memory otherwise.
func snapshotStore(ctx context.Context, cfg *config.Config, logger *utils.Logger) (users.SnapshotStore, func(), error) {
	if cfg.RedisAddr == "" {
		return users.NewMemorySnapshots(time.Now), func() {}, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("connect redis: %w", err)
	}
	logger.Info("user snapshots stored in redis", "addr", cfg.RedisAddr)
	return users.NewRedisSnapshots(client), func() { _ = client.Close() }, nil
}
