package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/s0urc3k0d/Statisfaction-sub001/api"
	"github.com/s0urc3k0d/Statisfaction-sub001/clip"
	"github.com/s0urc3k0d/Statisfaction-sub001/config"
	"github.com/s0urc3k0d/Statisfaction-sub001/credentials"
	"github.com/s0urc3k0d/Statisfaction-sub001/ffmpeg"
	"github.com/s0urc3k0d/Statisfaction-sub001/logging"
	"github.com/s0urc3k0d/Statisfaction-sub001/store"
	"github.com/s0urc3k0d/Statisfaction-sub001/task"
)

const shutdownTimeout = 5 * time.Second

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the compilation API until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}
			logger := logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, logger)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	records, err := store.Open(cfg.DatabasePath(), logger)
	if err != nil {
		return err
	}
	defer records.Close()

	tokens, closeTokens, err := tokenSource(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeTokens()

	resolver, closeResolver, err := clipResolver(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeResolver()

	runner, err := ffmpeg.NewRunner(cfg, logger)
	if err != nil {
		return err
	}
	if err := runner.Available(); err != nil {
		logger.Warn("transcoding engine unavailable, submissions will be rejected", "error", err)
	}

	taskManager, err := task.NewManager(cfg, task.Deps{
		Resolver:   resolver,
		Downloader: clip.NewDownloader(cfg, logger),
		Compositor: runner,
		Records:    records,
		Tokens:     tokens,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("initialize task manager: %w", err)
	}
	taskManager.Start(ctx)
	defer taskManager.Stop()

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: api.SetupRouter(taskManager, cfg, logger),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server starting", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down gracefully, press Ctrl+C again to force")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	})

	err = g.Wait()
	logger.Info("server exiting")
	return err
}

// tokenSource prefers the user database when DATABASE_URL is set.
func tokenSource(ctx context.Context, cfg *config.Config) (credentials.Source, func(), error) {
	if cfg.DatabaseURL == "" {
		return credentials.Static{Fallback: cfg.AccessToken}, func() {}, nil
	}
	pg, err := credentials.NewPostgres(ctx, cfg.DatabaseURL, cfg.TokenQuery)
	if err != nil {
		return nil, nil, fmt.Errorf("connect token database: %w", err)
	}
	return pg, pg.Close, nil
}

func clipResolver(ctx context.Context, cfg *config.Config, logger *slog.Logger) (clip.Resolver, func(), error) {
	resolver := clip.NewHTTPResolver(cfg, logger)
	if cfg.RedisURL == "" {
		return resolver, func() {}, nil
	}
	cache, err := clip.NewRedisCache(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("configure resolve cache: %w", err)
	}
	if err := cache.Ping(ctx); err != nil {
		logger.Warn("resolve cache unreachable, lookups will go to the registry", "error", err)
	}
	closeCache := func() {
		if err := cache.Close(); err != nil {
			logger.Warn("close resolve cache", "error", err)
		}
	}
	return clip.NewCachedResolver(resolver, cache, cfg.ResolveCacheTTL, logger), closeCache, nil
}
