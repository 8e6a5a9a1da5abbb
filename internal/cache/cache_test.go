package cache

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"newsfeed/internal/domain"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestCache(clock Clock) *ResultCache {
	return NewResultCache(slog.New(slog.NewTextHandler(io.Discard, nil)), NewMemoryStore(), clock)
}

func articles(ids ...string) []domain.Article {
	out := make([]domain.Article, 0, len(ids))
	for _, id := range ids {
		out = append(out, domain.Article{ID: id})
	}
	return out
}

func TestGetOrRefresh_SingleRefreshWithinTTL(t *testing.T) {
	clock := newFakeClock()
	c := newTestCache(clock)
	var calls int
	refresh := func(context.Context) ([]domain.Article, error) {
		calls++
		return articles("a"), nil
	}

	first, err := c.GetOrRefresh(context.Background(), "news", time.Hour, refresh)
	require.NoError(t, err)
	clock.Advance(30 * time.Minute)
	second, err := c.GetOrRefresh(context.Background(), "news", time.Hour, refresh)
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
	assert.Equal(t, first, second)
	assert.Equal(t, Stats{Hits: 1, Misses: 1, Refreshes: 1}, c.Stats())
}

func TestGetOrRefresh_RefreshesAfterTTL(t *testing.T) {
	clock := newFakeClock()
	c := newTestCache(clock)
	var calls int
	refresh := func(context.Context) ([]domain.Article, error) {
		calls++
		if calls == 1 {
			return articles("old"), nil
		}
		return articles("new"), nil
	}

	_, err := c.GetOrRefresh(context.Background(), "news", time.Hour, refresh)
	require.NoError(t, err)
	clock.Advance(time.Hour + time.Second)
	got, err := c.GetOrRefresh(context.Background(), "news", time.Hour, refresh)
	require.NoError(t, err)

	assert.Equal(t, 2, calls)
	assert.Equal(t, "new", got[0].ID)
}

func TestGetOrRefresh_ServesStaleOnError(t *testing.T) {
	clock := newFakeClock()
	c := newTestCache(clock)
	fail := errors.New("all feeds down")

	_, err := c.GetOrRefresh(context.Background(), "news", time.Minute, func(context.Context) ([]domain.Article, error) {
		return articles("kept"), nil
	})
	require.NoError(t, err)
	clock.Advance(2 * time.Minute)

	got, err := c.GetOrRefresh(context.Background(), "news", time.Minute, func(context.Context) ([]domain.Article, error) {
		return nil, fail
	})
	require.NoError(t, err)
	assert.Equal(t, "kept", got[0].ID)

	// запись не повреждена: следующее успешное обновление заменяет ее
	got, err = c.GetOrRefresh(context.Background(), "news", time.Minute, func(context.Context) ([]domain.Article, error) {
		return articles("fresh"), nil
	})
	require.NoError(t, err)
	assert.Equal(t, "fresh", got[0].ID)

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.StaleServed)
	assert.Equal(t, int64(1), stats.RefreshErrors)
}

func TestGetOrRefresh_ErrorWithoutPriorEntry(t *testing.T) {
	c := newTestCache(newFakeClock())
	fail := errors.New("boom")

	got, err := c.GetOrRefresh(context.Background(), "news", time.Minute, func(context.Context) ([]domain.Article, error) {
		return nil, fail
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRefresh))
	assert.True(t, errors.Is(err, fail))
	assert.Nil(t, got)
}

func TestGetOrRefresh_NilResultStoredAsEmpty(t *testing.T) {
	c := newTestCache(newFakeClock())

	got, err := c.GetOrRefresh(context.Background(), "news", time.Minute, func(context.Context) ([]domain.Article, error) {
		return nil, nil
	})

	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestGetOrRefresh_SingleFlight(t *testing.T) {
	c := newTestCache(newFakeClock())
	var calls int32
	release := make(chan struct{})
	refresh := func(context.Context) ([]domain.Article, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return articles("shared"), nil
	}

	var wg sync.WaitGroup
	results := make([][]domain.Article, 10)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got, err := c.GetOrRefresh(context.Background(), "news", time.Minute, refresh)
			assert.NoError(t, err)
			results[i] = got
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	for _, r := range results {
		require.Len(t, r, 1)
		assert.Equal(t, "shared", r[0].ID)
	}
}

func TestGetOrRefresh_KeysAreIndependent(t *testing.T) {
	c := newTestCache(newFakeClock())
	var calls int
	refresh := func(context.Context) ([]domain.Article, error) {
		calls++
		return articles("x"), nil
	}

	_, _ = c.GetOrRefresh(context.Background(), "news", time.Minute, refresh)
	_, _ = c.GetOrRefresh(context.Background(), "source:F1", time.Minute, refresh)

	assert.Equal(t, 2, calls)
}

func TestInvalidate(t *testing.T) {
	c := newTestCache(newFakeClock())
	var calls int
	refresh := func(context.Context) ([]domain.Article, error) {
		calls++
		return articles("x"), nil
	}

	_, _ = c.GetOrRefresh(context.Background(), "news", time.Hour, refresh)
	require.NoError(t, c.Invalidate(context.Background(), "news"))
	_, _ = c.GetOrRefresh(context.Background(), "news", time.Hour, refresh)

	assert.Equal(t, 2, calls)
}

func TestMemoryStore_Retention(t *testing.T) {
	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	s := NewMemoryStore()
	s.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "a", Entry{FetchedAt: now}, time.Minute))
	_, ok, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.True(t, ok)

	now = now.Add(2 * time.Minute)
	_, ok, err = s.Get(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 0, s.Len())
}

func TestMemoryStore_SetSweepsExpired(t *testing.T) {
	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	s := NewMemoryStore()
	s.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "old", Entry{}, time.Second))
	now = now.Add(time.Minute)
	require.NoError(t, s.Set(ctx, "new", Entry{}, time.Second))

	assert.Equal(t, 1, s.Len())
}

// TestRedisStore работает только с настоящим Redis: NEWSFEED_TEST_REDIS_ADDR=localhost:6379.
func TestRedisStore(t *testing.T) {
	addr := os.Getenv("NEWSFEED_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("NEWSFEED_TEST_REDIS_ADDR is not set")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	defer rdb.Close()
	s := NewRedisStore(rdb)
	ctx := context.Background()
	key := "test:" + time.Now().Format(time.RFC3339Nano)

	_, ok, err := s.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	fetched := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	entry := Entry{FetchedAt: fetched, Articles: []domain.Article{{ID: "a", Title: "T", Chunks: []domain.Chunk{{Index: 1, Total: 1, Text: "x"}}}}}
	require.NoError(t, s.Set(ctx, key, entry, time.Minute))

	got, ok, err := s.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, fetched.Equal(got.FetchedAt))
	assert.Equal(t, "a", got.Articles[0].ID)
	assert.Equal(t, "x", got.Articles[0].Chunks[0].Text)

	ttl, err := rdb.TTL(ctx, redisKeyPrefix+key).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	require.NoError(t, s.Delete(ctx, key))
	_, ok, err = s.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRefresh_IgnoresFreshness(t *testing.T) {
	clock := newFakeClock()
	c := newTestCache(clock)
	var calls int32
	refresh := func(context.Context) ([]domain.Article, error) {
		n := atomic.AddInt32(&calls, 1)
		if n == 1 {
			return articles("old"), nil
		}
		return articles("new"), nil
	}

	_, err := c.GetOrRefresh(context.Background(), "news", time.Hour, refresh)
	require.NoError(t, err)
	got, err := c.Refresh(context.Background(), "news", time.Hour, refresh)
	require.NoError(t, err)
	assert.Equal(t, "new", got[0].ID)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))

	// обычное чтение видит принудительно обновленную запись и не обходит ленты
	got, err = c.GetOrRefresh(context.Background(), "news", time.Hour, refresh)
	require.NoError(t, err)
	assert.Equal(t, "new", got[0].ID)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestRefresh_FailureKeepsEntry(t *testing.T) {
	c := newTestCache(newFakeClock())
	fail := errors.New("all feeds down")

	_, err := c.GetOrRefresh(context.Background(), "news", time.Hour, func(context.Context) ([]domain.Article, error) {
		return articles("kept"), nil
	})
	require.NoError(t, err)

	_, err = c.Refresh(context.Background(), "news", time.Hour, func(context.Context) ([]domain.Article, error) {
		return nil, fail
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRefresh))
	assert.True(t, errors.Is(err, fail))

	got, err := c.GetOrRefresh(context.Background(), "news", time.Hour, func(context.Context) ([]domain.Article, error) {
		t.Fatal("fresh entry must be served from cache")
		return nil, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "kept", got[0].ID)
}

func TestGetOrRefresh_RefreshIsBounded(t *testing.T) {
	c := newTestCache(newFakeClock())
	c.SetRefreshTimeout(50 * time.Millisecond)
	c.SetRefreshTimeout(0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var hadDeadline bool
	start := time.Now()
	_, err := c.GetOrRefresh(ctx, "news", time.Minute, func(ctx context.Context) ([]domain.Article, error) {
		_, hadDeadline = ctx.Deadline()
		<-ctx.Done()
		return nil, ctx.Err()
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.True(t, hadDeadline)
	assert.Less(t, time.Since(start), time.Second)
}
