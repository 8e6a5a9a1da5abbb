package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"newsfeed/internal/domain"
	"time"
)

// FeedReader загружает и разбирает одну ленту за вызов.
type FeedReader struct {
	fetcher    FeedFetcher
	parser     FeedParser
	log        *slog.Logger
	maxPerFeed int
}

// NewFeedReader создает новый экземпляр FeedReader.
// maxPerFeed ограничивает число записей, берущихся из одной ленты; 0 снимает ограничение.
func NewFeedReader(fetcher FeedFetcher, parser FeedParser, log *slog.Logger, maxPerFeed int) *FeedReader {
	return &FeedReader{
		fetcher:    fetcher,
		parser:     parser,
		log:        log.With(slog.String("component", "feed-reader")),
		maxPerFeed: maxPerFeed,
	}
}

// Read выполняет загрузку и разбор ленты и возвращает первые maxPerFeed записей
// в порядке ленты. Каждой записи проставляется feedIndex.
// При сбое загрузки или разбора возвращает пустой список и ошибку: лента не дает записей,
// но это не мешает обработке остальных лент.
func (r *FeedReader) Read(ctx context.Context, source domain.FeedSource, feedIndex int) ([]domain.FeedEntry, error) {
	start := time.Now()
	log := r.log.With(
		slog.String("op", "usecase.FeedReader.Read"),
		slog.String("feed", source.Name),
		slog.String("url", source.URL),
	)

	reader, err := r.fetcher.Fetch(ctx, source.URL)
	if err != nil {
		log.Error("Feed fetch failed",
			slog.String("stage", "fetch"),
			slog.Any("error", err),
		)
		return []domain.FeedEntry{}, fmt.Errorf("fetch failed for %s: %w", source.Name, err)
	}
	defer reader.Close()

	entries, err := r.parser.Parse(ctx, reader)
	if err != nil {
		log.Error("Feed parsing failed",
			slog.String("stage", "parse"),
			slog.Any("error", err),
		)
		return []domain.FeedEntry{}, fmt.Errorf("parse failed for %s: %w", source.Name, err)
	}

	found := len(entries)
	if r.maxPerFeed > 0 && len(entries) > r.maxPerFeed {
		entries = entries[:r.maxPerFeed]
	}
	out := make([]domain.FeedEntry, len(entries))
	for i, entry := range entries {
		entry.FeedIndex = feedIndex
		entry.Position = i
		out[i] = entry
	}

	log.Info("Feed read",
		slog.Int("items_found", found),
		slog.Int("items_taken", len(out)),
		slog.Duration("duration", time.Since(start)),
	)
	return out, nil
}
