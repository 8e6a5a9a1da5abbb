package storage

import (
	"context"
	"newsfeed/internal/domain"
)

// FeedStore определяет интерфейс хранилища дополнительных источников лент.
type FeedStore interface {
	ListFeeds(ctx context.Context) ([]domain.FeedSource, error)
	UpsertFeeds(ctx context.Context, feeds []domain.FeedSource) (int, error)
	Close()
}

// MergeFeeds объединяет ленты из конфигурации с лентами из хранилища.
// Ленты конфигурации идут первыми и побеждают при совпадении имени или URL.
func MergeFeeds(configured, stored []domain.FeedSource) []domain.FeedSource {
	merged := make([]domain.FeedSource, 0, len(configured)+len(stored))
	names := make(map[string]struct{}, len(configured)+len(stored))
	urls := make(map[string]struct{}, len(configured)+len(stored))
	add := func(feed domain.FeedSource) {
		if _, ok := names[feed.Name]; ok {
			return
		}
		if _, ok := urls[feed.URL]; ok {
			return
		}
		names[feed.Name] = struct{}{}
		urls[feed.URL] = struct{}{}
		merged = append(merged, feed)
	}
	for _, feed := range configured {
		add(feed)
	}
	for _, feed := range stored {
		add(feed)
	}
	return merged
}
