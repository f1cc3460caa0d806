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

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/church-web/sermon-feed-go/internal/cache"
	"github.com/church-web/sermon-feed-go/internal/config"
	"github.com/church-web/sermon-feed-go/internal/db"
	"github.com/church-web/sermon-feed-go/internal/fallback"
	"github.com/church-web/sermon-feed-go/internal/fetcher"
	"github.com/church-web/sermon-feed-go/internal/handler"
	"github.com/church-web/sermon-feed-go/internal/metrics"
	"github.com/church-web/sermon-feed-go/internal/middleware"
	"github.com/church-web/sermon-feed-go/internal/repository"
	"github.com/church-web/sermon-feed-go/internal/service"
	"github.com/church-web/sermon-feed-go/internal/service/quota"
	"github.com/church-web/sermon-feed-go/internal/validation"
	"github.com/church-web/sermon-feed-go/pkg/logger"
)

const startupTimeout = 15 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "sermon-feed: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.File); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	log := logger.L()

	log.Info("Starting sermon feed service",
		zap.String("source", cfg.Feed.Source),
		zap.String("channelId", cfg.Feed.ChannelID),
		zap.Int("port", cfg.Server.Port),
	)

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}

	f, err := fetcher.New(nil, fetcher.Options{
		RelayURL:     cfg.Feed.RelayURL,
		UserAgent:    cfg.Feed.UserAgent,
		MaxBodyBytes: cfg.Feed.MaxBodyBytes,
		Timeout:      cfg.Feed.RequestTimeout,
		MinInterval:  cfg.Feed.MinInterval,
	}, m)
	if err != nil {
		return fmt.Errorf("init fetcher: %w", err)
	}

	feed := service.NewSermonFeedService(cfg.Feed, f, fallback.NewProvider(nil), m)
	if cfg.Feed.Source == config.SourceDataAPI {
		feed.SetQuotaManager(quota.NewManager(cfg.Feed.DailyQuota, cfg.Feed.QuotaThreshold))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	startCtx, cancelStart := context.WithTimeout(ctx, startupTimeout)
	defer cancelStart()

	// Optional dependencies stay nil interfaces when disabled.
	var (
		recorder  service.FetchRecorder
		fetchList handler.FetchLister
		dbPinger  handler.Pinger
		publisher service.EventPublisher
		rabbit    handler.HealthReporter
		rawCache  handler.RawCache
		cachePing handler.Pinger
		pool      *pgxpool.Pool
		msgPub    *service.MessagePublisher
		feedCache *cache.RawFeedCache
	)

	if cfg.Database.Enabled {
		pool, err = db.NewPool(startCtx, db.FromConfig(cfg.Database))
		if err != nil {
			return fmt.Errorf("init database: %w", err)
		}
		defer db.Close(pool)

		repo := repository.New(pool)
		recorder, fetchList, dbPinger = repo, repo, repo
		log.Info("Fetch log enabled", zap.Int32("maxConns", pool.Config().MaxConns))
	}

	if cfg.RabbitMQ.Enabled {
		msgPub, err = service.NewMessagePublisher(cfg.RabbitMQ)
		if err != nil {
			return fmt.Errorf("init rabbitmq: %w", err)
		}
		defer func() {
			if err := msgPub.Close(); err != nil {
				log.Warn("Failed to close RabbitMQ publisher", zap.Error(err))
			}
		}()
		publisher, rabbit = msgPub, msgPub
	}

	if cfg.Redis.Enabled {
		feedCache, err = cache.NewRawFeedCache(cfg.Redis.URL, cfg.Redis.KeyPrefix, cfg.Redis.TTL)
		if err != nil {
			return fmt.Errorf("init redis: %w", err)
		}
		defer feedCache.Close()

		if err := feedCache.Ping(startCtx); err != nil {
			log.Warn("Redis unreachable, proxy will fetch upstream until it recovers", zap.Error(err))
		}
		rawCache, cachePing = feedCache, feedCache
	}

	var (
		snapshot handler.FeedSnapshot
		poller   *service.FeedPoller
	)
	if cfg.Poller.Enabled {
		poller = service.NewFeedPoller(feed, recorder, publisher, m, service.PollerOptions{
			ChannelID: cfg.Feed.ChannelID,
			PageSize:  cfg.Feed.PageSize,
			Interval:  cfg.Poller.Interval,
			Timeout:   cfg.Poller.Timeout,
		})
		if err := poller.Seed(startCtx); err != nil {
			log.Warn("Failed to seed poller from fetch log", zap.Error(err))
		}
		snapshot = poller
		go poller.Run(ctx)
	}

	auth := middleware.NewAPIKeyAuth(cfg.Server.APIKeys)
	if !auth.Enabled() {
		log.Warn("No API keys configured, admin endpoints will reject all requests")
	}

	router := handler.NewRouter(handler.RouterConfig{
		Sermons:     handler.NewSermonHandler(feed, snapshot, fetchList, validation.New(cfg.Feed.Source), cfg.Feed.ChannelID),
		Proxy:       handler.NewFeedProxyHandler(f, rawCache, cfg.Feed.ChannelID, feed.RSSURL(cfg.Feed.ChannelID)),
		Health:      handler.NewHealthHandler(dbPinger, rabbit, cachePing, snapshot),
		Auth:        auth,
		Metrics:     m,
		MetricsPath: cfg.Metrics.Path,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		log.Info("Server listening", zap.String("addr", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
		log.Info("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Graceful shutdown failed", zap.Error(err))
		if err := server.Close(); err != nil {
			log.Error("Failed to close server", zap.Error(err))
		}
		return err
	}

	log.Info("Server stopped gracefully")
	return nil
}
