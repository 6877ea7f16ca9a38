package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/anilpdv/video-downloader/internal/api"
	"github.com/anilpdv/video-downloader/internal/cache"
	"github.com/anilpdv/video-downloader/internal/config"
	"github.com/anilpdv/video-downloader/internal/db"
	apperrors "github.com/anilpdv/video-downloader/internal/errors"
	"github.com/anilpdv/video-downloader/internal/events"
	"github.com/anilpdv/video-downloader/internal/health"
	"github.com/anilpdv/video-downloader/internal/library"
	"github.com/anilpdv/video-downloader/internal/logger"
	"github.com/anilpdv/video-downloader/internal/metrics"
	"github.com/anilpdv/video-downloader/internal/scheduler"
	"github.com/anilpdv/video-downloader/internal/validators"
	"github.com/anilpdv/video-downloader/internal/ytdlp"
)

const version = "1.0.0"

func main() {
	cfg := config.Load()

	log := logger.New(&logger.Config{
		Output: os.Stdout,
		Level:  logger.ParseLevel(cfg.LogLevel),
	})
	logger.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil && !errors.Is(err, context.Canceled) {
		log.Error(context.Background(), "server exited", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	database, err := db.New(cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName)
	if err != nil {
		return err
	}
	defer database.Close()

	if err := database.Migrate(); err != nil {
		return err
	}

	repo := db.NewJobRepository(database)
	bridge := events.NewBridge()

	resolver, err := ytdlp.NewResolver(cfg.CacheDir)
	if err != nil {
		return err
	}

	var mirror *library.Mirror
	if cfg.MinioEndpoint != "" {
		mirror, err = library.NewMirror(&library.MirrorConfig{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
		})
		if err != nil {
			return err
		}
		if err := mirror.EnsureBucket(ctx); err != nil {
			// The mirror is a replica; the local library keeps working
			// without it.
			log.Warn(ctx, "mirror bucket unavailable", map[string]interface{}{
				"endpoint": cfg.MinioEndpoint,
				"error":    err.Error(),
			})
		}
	}

	placer, err := library.NewPlacer(cfg.MediaDir, mirror)
	if err != nil {
		return err
	}

	invoker := ytdlp.NewInvoker(cfg.TerminateGrace)
	registry := validators.DefaultRegistry()

	sched := scheduler.New(repo, resolver, scheduler.NewInvokerRunner(invoker), placer, registry, bridge, scheduler.Options{
		Workers:    cfg.WorkerCount,
		MaxRetries: cfg.MaxRetries,
		JobTimeout: cfg.JobTimeout,
		Retry: &apperrors.RetryConfig{
			MaxRetries:     cfg.MaxRetries,
			InitialBackoff: cfg.RetryBackoff,
			MaxBackoff:     cfg.MaxBackoff,
			BackoffFactor:  2.0,
			Jitter:         true,
		},
	})
	sched.Probe = ytdlp.ProbeMetadata

	// Jobs left queued or running by a previous process cannot be resumed.
	if err := sched.Reconcile(ctx); err != nil {
		return err
	}

	checkerCfg := &health.CheckerConfig{
		DB:          database.DB,
		BinaryCheck: resolver.Check,
		Version:     version,
	}
	if mirror != nil {
		checkerCfg.MirrorCheck = mirror.Ping
	}

	var redisMirror *events.RedisMirror
	if cfg.RedisURL != "" {
		redisClient, err := events.NewRedisClient(cfg.RedisURL)
		if err != nil {
			log.Warn(ctx, "redis unavailable, event mirror disabled", map[string]interface{}{
				"error": err.Error(),
			})
		} else {
			redisMirror = events.NewRedisMirror(redisClient)
			checkerCfg.Redis = redisClient
			sched.Probe = cache.NewMetadataCache(redisClient).WrapProbe(ytdlp.ProbeMetadata)
			defer redisClient.Close()
		}
	}

	m := metrics.New()
	m.SetSubscriberGauge(bridge.SubscriberCount)

	searchFn := func(ctx context.Context, query string, limit int) ([]ytdlp.SearchResult, error) {
		binPath, err := resolver.Resolve(ctx)
		if err != nil {
			return nil, err
		}
		return ytdlp.Search(ctx, binPath, query, limit)
	}

	checker := health.NewChecker(checkerCfg)
	router := api.NewRouter(sched, repo, searchFn, registry, bridge, health.NewHandler(checker), m, log)

	server := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // long-lived websocket connections
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return sched.Run(gctx)
	})

	g.Go(func() error {
		m.Watch(gctx, bridge)
		return nil
	})

	if redisMirror != nil {
		g.Go(func() error {
			redisMirror.Run(gctx, bridge)
			return nil
		})
	}

	g.Go(func() error {
		log.Info(gctx, "server listening", map[string]interface{}{
			"addr":      cfg.ServerAddr,
			"media_dir": cfg.MediaDir,
			"workers":   cfg.WorkerCount,
		})
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info(context.Background(), "shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
