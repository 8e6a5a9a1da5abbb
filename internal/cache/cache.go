package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"newsfeed/internal/domain"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
)

// ErrRefresh оборачивает ошибку обновления, когда устаревших данных для ответа нет.
var ErrRefresh = errors.New("cache refresh failed")

// DefaultRefreshTimeout ограничивает одно обновление, если SetRefreshTimeout не вызывался.
const DefaultRefreshTimeout = 2 * time.Minute

// Clock - источник текущего времени.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Stats - счетчики обращений к кэшу.
type Stats struct {
	Hits          int64 `json:"hits"`
	Misses        int64 `json:"misses"`
	Refreshes     int64 `json:"refreshes"`
	RefreshErrors int64 `json:"refresh_errors"`
	StaleServed   int64 `json:"stale_served"`
}

// ResultCache - кэш результатов агрегации с окном свежести.
//
// Для одного ключа одновременно выполняется не больше одного обновления:
// параллельные запросы, заставшие запись устаревшей или отсутствующей, ждут
// общее обновление и получают его результат. Обновления разных ключей не блокируют друг друга.
// Неудачное обновление не трогает сохраненную запись: вызывающий получает устаревшие данные.
type ResultCache struct {
	store Store
	clock Clock
	log   *slog.Logger
	group singleflight.Group

	refreshTimeout atomic.Int64

	hits          atomic.Int64
	misses        atomic.Int64
	refreshes     atomic.Int64
	refreshErrors atomic.Int64
	staleServed   atomic.Int64
}

// NewResultCache создает кэш поверх store. Nil store и clock заменяются
// хранилищем в памяти и системными часами.
func NewResultCache(log *slog.Logger, store Store, clock Clock) *ResultCache {
	if store == nil {
		store = NewMemoryStore()
	}
	if clock == nil {
		clock = realClock{}
	}
	c := &ResultCache{
		store: store,
		clock: clock,
		log:   log.With(slog.String("component", "cache")),
	}
	c.refreshTimeout.Store(int64(DefaultRefreshTimeout))
	return c
}

// SetRefreshTimeout задает предельную длительность одного обновления. d <= 0 игнорируется.
func (c *ResultCache) SetRefreshTimeout(d time.Duration) {
	if d > 0 {
		c.refreshTimeout.Store(int64(d))
	}
}

// GetOrRefresh возвращает сохраненный результат, если он моложе ttl, иначе вызывает refresh.
// Ошибка refresh возвращается только когда для ключа нет никаких данных.
func (c *ResultCache) GetOrRefresh(ctx context.Context, key string, ttl time.Duration, refresh func(ctx context.Context) ([]domain.Article, error)) ([]domain.Article, error) {
	entry, found := c.lookup(ctx, key)
	if found && c.fresh(entry, ttl) {
		c.hits.Add(1)
		return entry.Articles, nil
	}
	c.misses.Add(1)
	return c.flight(ctx, key, ttl, refresh, false, entry, found)
}

// Refresh обновляет запись независимо от ее возраста. Используется фоновым прогревом,
// чтобы запросы пользователей не ждали обхода лент. Идет через ту же группу, что и
// GetOrRefresh: одновременные обращения к ключу разделяют одно обновление.
// При ошибке сохраненная запись не меняется, а ошибка возвращается вызывающему.
func (c *ResultCache) Refresh(ctx context.Context, key string, ttl time.Duration, refresh func(ctx context.Context) ([]domain.Article, error)) ([]domain.Article, error) {
	return c.flight(ctx, key, ttl, refresh, true, Entry{}, false)
}

func (c *ResultCache) flight(ctx context.Context, key string, ttl time.Duration, refresh func(ctx context.Context) ([]domain.Article, error), force bool, stale Entry, found bool) ([]domain.Article, error) {
	log := c.log.With(slog.String("op", "cache.flight"), slog.String("key", key))

	v, err, shared := c.group.Do(key, func() (any, error) {
		// Запись могла обновиться, пока этот вызов ждал своей очереди.
		if !force {
			if e, ok := c.lookup(ctx, key); ok && c.fresh(e, ttl) {
				return e.Articles, nil
			}
		}
		c.refreshes.Add(1)
		start := c.clock.Now()
		// Обновление общее для всех ожидающих, поэтому отмена одного запроса его не прерывает,
		// но срок у него есть всегда.
		flightCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Duration(c.refreshTimeout.Load()))
		defer cancel()
		articles, err := refresh(flightCtx)
		if err != nil {
			c.refreshErrors.Add(1)
			return nil, err
		}
		if articles == nil {
			articles = []domain.Article{}
		}
		if err := c.store.Set(flightCtx, key, Entry{FetchedAt: c.clock.Now(), Articles: articles}, 2*ttl); err != nil {
			log.Warn("Failed to store cache entry", slog.Any("error", err))
		}
		log.Info("Cache refreshed",
			slog.Bool("forced", force),
			slog.Int("articles", len(articles)),
			slog.Duration("duration", c.clock.Now().Sub(start)),
		)
		return articles, nil
	})
	if err != nil {
		if found {
			c.staleServed.Add(1)
			log.Warn("Refresh failed, serving stale data",
				slog.Time("fetched_at", stale.FetchedAt),
				slog.Any("error", err),
			)
			return stale.Articles, nil
		}
		return nil, fmt.Errorf("%w for key %s: %w", ErrRefresh, key, err)
	}
	if shared {
		log.Debug("Joined in-flight refresh")
	}
	return v.([]domain.Article), nil
}

// Invalidate удаляет запись, следующее обращение к ключу выполнит обновление.
func (c *ResultCache) Invalidate(ctx context.Context, key string) error {
	return c.store.Delete(ctx, key)
}

// Stats возвращает снимок счетчиков.
func (c *ResultCache) Stats() Stats {
	return Stats{
		Hits:          c.hits.Load(),
		Misses:        c.misses.Load(),
		Refreshes:     c.refreshes.Load(),
		RefreshErrors: c.refreshErrors.Load(),
		StaleServed:   c.staleServed.Load(),
	}
}

func (c *ResultCache) lookup(ctx context.Context, key string) (Entry, bool) {
	entry, ok, err := c.store.Get(ctx, key)
	if err != nil {
		c.log.Warn("Cache lookup failed, treating as miss",
			slog.String("key", key),
			slog.Any("error", err),
		)
		return Entry{}, false
	}
	return entry, ok
}

func (c *ResultCache) fresh(e Entry, ttl time.Duration) bool {
	return c.clock.Now().Sub(e.FetchedAt) <= ttl
}
