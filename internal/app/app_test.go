package app

import (
	"context"
	"errors"
	"newsfeed/internal/config"
	"newsfeed/internal/domain"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	cfg := config.New()
	cfg.Server.Address = "127.0.0.1:0"
	cfg.Logger.Level = "error"
	cfg.App.Feeds = []config.FeedURL{
		{Name: "alpha", URL: "https://alpha.example.com/rss"},
		{Name: "beta", URL: "https://beta.example.com/rss"},
	}
	return cfg
}

func TestFeedSources(t *testing.T) {
	sources := FeedSources(testConfig().App.Feeds)
	assert.Equal(t, []domain.FeedSource{
		{Name: "alpha", URL: "https://alpha.example.com/rss"},
		{Name: "beta", URL: "https://beta.example.com/rss"},
	}, sources)
	assert.Empty(t, FeedSources(nil))
}

func TestNew_InMemory(t *testing.T) {
	a, err := New(testConfig())
	require.NoError(t, err)
	defer a.Close()

	assert.Len(t, a.Feeds(), 2)
	assert.Equal(t, a.Feeds(), a.News().Sources())
	assert.Nil(t, a.worker)

	_, err = a.SyncFeeds(context.Background())
	assert.True(t, errors.Is(err, ErrNoDatabase))
}

func TestNew_RedisUnavailable(t *testing.T) {
	cfg := testConfig()
	cfg.Redis.Addr = "127.0.0.1:1"
	_, err := New(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis ping failed")
}

func TestNew_BadRulesFile(t *testing.T) {
	cfg := testConfig()
	cfg.App.ExtractionRulesFile = "/nonexistent/rules.yaml"
	_, err := New(cfg)
	assert.Error(t, err)
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	cfg := testConfig()
	cfg.App.RefreshInterval = time.Hour
	cfg.App.AggregateTimeout = 200 * time.Millisecond
	a, err := New(cfg)
	require.NoError(t, err)
	require.NotNil(t, a.worker)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(15 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
