package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"newsfeed/internal/adapter/extractor"
	"newsfeed/internal/adapter/fetcher"
	"newsfeed/internal/adapter/parser"
	"newsfeed/internal/cache"
	"newsfeed/internal/config"
	"newsfeed/internal/domain"
	"newsfeed/internal/logger"
	"newsfeed/internal/migrations"
	server "newsfeed/internal/transport/http"
	"newsfeed/internal/usecase"
	"newsfeed/internal/worker"
	"newsfeed/storage"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// ErrNoDatabase возвращается операциями, которым нужна база, когда она не настроена.
var ErrNoDatabase = errors.New("database is not configured")

const connectTimeout = 5 * time.Second

// App представляет основное приложение агрегатора.
// Связывает ленты, конвейер обработки статей, кэш результатов, HTTP-сервер и воркер прогрева.
// Redis и PostgreSQL подключаются только если они заданы в конфигурации.
type App struct {
	config     *config.Config
	logger     *slog.Logger
	configured []domain.FeedSource
	feeds      []domain.FeedSource
	extractor  *extractor.ContentExtractor
	cache      *cache.ResultCache
	news       *usecase.NewsService
	server     *http.Server
	worker     *worker.Worker
	dbPool     *pgxpool.Pool
	feedStore  *storage.PostgresFeedStore
	redis      *redis.Client
	stopChan   chan os.Signal
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	closeOnce  sync.Once
}

// New создает и инициализирует приложение.
// Настраивает логгер, при необходимости подключается к PostgreSQL (с миграциями и чтением
// сохраненных лент) и к Redis, после чего собирает все зависимости.
func New(cfg *config.Config) (*App, error) {
	appLogger, err := logger.New(cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to setup logger: %w", err)
	}
	slog.SetDefault(appLogger)

	a := &App{
		config:     cfg,
		logger:     appLogger,
		configured: FeedSources(cfg.App.Feeds),
		stopChan:   make(chan os.Signal, 1),
	}
	a.feeds = a.configured

	if cfg.Database.Enabled() {
		if err := a.connectDatabase(); err != nil {
			return nil, err
		}
	}
	store, err := a.cacheStore()
	if err != nil {
		a.Close()
		return nil, err
	}

	httpFetcher := fetcher.NewHTTPFetcher(appLogger, fetcher.Options{
		Timeout:       cfg.Fetch.Timeout,
		RetryAttempts: cfg.Fetch.RetryAttempts,
		MaxBodyBytes:  cfg.Fetch.MaxBodyBytes,
		UserAgent:     cfg.Fetch.UserAgent,
	})
	feedParser := parser.NewFeedParser(appLogger)
	a.extractor = extractor.NewContentExtractor(appLogger, httpFetcher, nil)
	if path := cfg.App.ExtractionRulesFile; path != "" {
		if err := a.extractor.ReloadRules(path); err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to load extraction rules: %w", err)
		}
	}

	reader := usecase.NewFeedReader(httpFetcher, feedParser, appLogger, cfg.App.MaxArticlesPerFeed)
	pipeline := usecase.NewArticlePipeline(a.extractor, appLogger)
	aggregator := usecase.NewAggregator(reader, pipeline, usecase.AggregatorConfig{
		MaxConcurrentFetches:     cfg.App.MaxConcurrentFetches,
		MaxConcurrentExtractions: cfg.App.MaxConcurrentExtractions,
		MaxTotalArticles:         cfg.App.MaxTotalArticles,
		Timeout:                  cfg.App.AggregateTimeout,
	}, appLogger)

	a.cache = cache.NewResultCache(appLogger, store, nil)
	a.cache.SetRefreshTimeout(cfg.App.AggregateTimeout)
	a.news = usecase.NewNewsService(a.cache, aggregator, a.feeds, cfg.Cache.TTL(), usecase.Options{
		ChunkSize: cfg.App.ChunkSize,
		Overlap:   cfg.App.ChunkOverlap,
	}, appLogger)

	handler := server.NewHandler(appLogger, a.news, a.cache)
	a.server = &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           server.NewServer(appLogger, handler),
		ReadHeaderTimeout: 10 * time.Second,
	}
	if cfg.App.RefreshInterval > 0 {
		a.worker = worker.New(a.news, cfg.App.RefreshInterval, cfg.App.AggregateTimeout, appLogger)
	}
	return a, nil
}

// FeedSources преобразует ленты из конфигурации в доменные источники, сохраняя порядок.
func FeedSources(feeds []config.FeedURL) []domain.FeedSource {
	sources := make([]domain.FeedSource, 0, len(feeds))
	for _, feed := range feeds {
		sources = append(sources, domain.FeedSource{Name: feed.Name, URL: feed.URL})
	}
	return sources
}

func (a *App) connectDatabase() error {
	log := a.logger.With(slog.String("component", "database"))
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	dbPool, err := pgxpool.New(ctx, a.config.Database.DSN())
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := dbPool.Ping(ctx); err != nil {
		dbPool.Close()
		return fmt.Errorf("database ping failed: %w", err)
	}
	if err := migrations.Apply(ctx, a.logger, dbPool); err != nil {
		dbPool.Close()
		return fmt.Errorf("migrations failed: %w", err)
	}
	a.dbPool = dbPool
	a.feedStore = storage.NewPostgresFeedStore(dbPool, a.logger)

	stored, err := a.feedStore.ListFeeds(ctx)
	if err != nil {
		a.Close()
		return fmt.Errorf("failed to load stored feeds: %w", err)
	}
	a.feeds = storage.MergeFeeds(a.configured, stored)
	log.Info("Database connection established",
		slog.Int("stored_feeds", len(stored)),
		slog.Int("feed_count", len(a.feeds)),
	)
	return nil
}

// cacheStore выбирает хранилище кэша: Redis, если задан адрес, иначе память процесса.
func (a *App) cacheStore() (cache.Store, error) {
	if a.config.Redis.Addr == "" {
		return cache.NewMemoryStore(), nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     a.config.Redis.Addr,
		Username: a.config.Redis.Username,
		Password: a.config.Redis.Password,
		DB:       a.config.Redis.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	a.redis = rdb
	a.logger.Info("Redis cache enabled",
		slog.String("component", "cache"),
		slog.String("addr", a.config.Redis.Addr),
	)
	return cache.NewRedisStore(rdb), nil
}

// Feeds возвращает действующий список лент (конфигурация плюс сохраненные в базе).
func (a *App) Feeds() []domain.FeedSource {
	return append([]domain.FeedSource(nil), a.feeds...)
}

// News возвращает сервис новостей для команд, работающих без HTTP-сервера.
func (a *App) News() *usecase.NewsService {
	return a.news
}

// Logger возвращает логгер приложения.
func (a *App) Logger() *slog.Logger {
	return a.logger
}

// SyncFeeds сохраняет ленты из конфигурации в PostgreSQL.
// Возвращает число записанных лент или ErrNoDatabase, если база не настроена.
func (a *App) SyncFeeds(ctx context.Context) (int, error) {
	if a.feedStore == nil {
		return 0, ErrNoDatabase
	}
	return a.feedStore.UpsertFeeds(ctx, a.configured)
}

// Run запускает HTTP API, наблюдение за файлом правил и воркер прогрева кэша.
// Метод блокируется до получения SIGINT/SIGTERM или отмены ctx, затем выполняет Shutdown.
// Возвращает ошибку, если не удалось открыть порт.
func (a *App) Run(ctx context.Context) error {
	ctx, a.cancel = context.WithCancel(ctx)
	a.logger.Info("Starting news feed service",
		slog.String("component", "app"),
		slog.Int("feed_count", len(a.feeds)),
		slog.Duration("cache_ttl", a.config.Cache.TTL()),
		slog.Duration("refresh_interval", a.config.App.RefreshInterval),
	)

	listener, err := net.Listen("tcp", a.server.Addr)
	if err != nil {
		a.cancel()
		a.Close()
		return fmt.Errorf("failed to create listener: %w", err)
	}
	a.logger.Info("HTTP server ready",
		slog.String("component", "server"),
		slog.String("address", listener.Addr().String()),
	)

	if path := a.config.App.ExtractionRulesFile; path != "" {
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			if err := a.extractor.WatchRules(ctx, path); err != nil {
				a.logger.Error("Rules watcher failed",
					slog.String("component", "extractor"),
					slog.Any("error", err),
				)
			}
		}()
	}
	if a.worker != nil {
		a.worker.Start(ctx)
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("HTTP server failed",
				slog.String("component", "server"),
				slog.Any("error", err),
			)
			a.cancel()
		}
	}()

	signal.Notify(a.stopChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(a.stopChan)
	select {
	case sig := <-a.stopChan:
		a.logger.Info("Shutdown signal received",
			slog.String("component", "app"),
			slog.String("signal", sig.String()),
		)
	case <-ctx.Done():
		a.logger.Warn("Context cancelled, initiating shutdown", slog.String("component", "app"))
	}
	return a.Shutdown()
}

// Shutdown выполняет graceful shutdown приложения.
// Останавливает воркер и наблюдение за правилами, завершает HTTP-сервер; на все вместе
// отводится 10 секунд. Затем ждет горутины и закрывает соединения с Redis и БД.
func (a *App) Shutdown() error {
	a.logger.Info("Starting graceful shutdown", slog.String("component", "app"))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if a.worker != nil {
		if err := a.worker.Shutdown(shutdownCtx); err != nil {
			a.logger.Warn("Worker shutdown timed out", slog.Any("error", err))
		}
	}
	if a.cancel != nil {
		a.cancel()
	}
	var shutdownErr error
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("HTTP server shutdown failed", slog.Any("error", err))
		shutdownErr = fmt.Errorf("http shutdown: %w", err)
	}
	a.wg.Wait()
	a.Close()
	a.logger.Info("Application stopped gracefully", slog.String("component", "app"))
	return shutdownErr
}

// Close освобождает внешние соединения. Безопасен для повторного вызова.
func (a *App) Close() {
	a.closeOnce.Do(func() {
		if a.redis != nil {
			if err := a.redis.Close(); err != nil {
				a.logger.Warn("Redis close failed", slog.Any("error", err))
			}
		}
		if a.feedStore != nil {
			a.feedStore.Close()
		} else if a.dbPool != nil {
			a.dbPool.Close()
		}
	})
}
