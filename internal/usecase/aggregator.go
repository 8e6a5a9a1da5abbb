package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"newsfeed/internal/domain"
	"time"

	"golang.org/x/sync/errgroup"
)

// ErrAllFeedsFailed возвращается, когда ни одна лента не была прочитана.
// Кэш в этом случае сохраняет прежний результат.
var ErrAllFeedsFailed = errors.New("all feeds failed")

// AggregatorConfig задает лимиты одного прохода агрегации.
type AggregatorConfig struct {
	MaxConcurrentFetches     int
	MaxConcurrentExtractions int
	// MaxTotalArticles ограничивает итоговый список; 0 снимает ограничение.
	MaxTotalArticles int
	// Timeout - общий срок прохода; 0 означает без срока.
	Timeout time.Duration
}

// Aggregator читает ленты и обрабатывает их записи с ограниченным параллелизмом.
type Aggregator struct {
	reader   *FeedReader
	pipeline *ArticlePipeline
	cfg      AggregatorConfig
	log      *slog.Logger
}

func NewAggregator(reader *FeedReader, pipeline *ArticlePipeline, cfg AggregatorConfig, log *slog.Logger) *Aggregator {
	if cfg.MaxConcurrentFetches <= 0 {
		cfg.MaxConcurrentFetches = 1
	}
	if cfg.MaxConcurrentExtractions <= 0 {
		cfg.MaxConcurrentExtractions = 1
	}
	return &Aggregator{
		reader:   reader,
		pipeline: pipeline,
		cfg:      cfg,
		log:      log.With(slog.String("component", "aggregator")),
	}
}

type sourcedEntry struct {
	entry  domain.FeedEntry
	source string
}

// Aggregate читает все ленты, упорядочивает записи, оставляет первые MaxTotalArticles
// и только для них извлекает текст статей.
//
// Упавшая лента дает ноль статей, упавшая статья - статью без текста; ни то ни другое
// не прерывает проход. Ошибка возвращается только если не удалось прочитать ни одной ленты,
// вместе с причинами по каждой ленте.
func (a *Aggregator) Aggregate(ctx context.Context, feeds []domain.FeedSource) ([]domain.Article, error) {
	start := time.Now()
	log := a.log.With(slog.String("op", "usecase.Aggregate"))
	if a.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.cfg.Timeout)
		defer cancel()
	}
	log.Info("Aggregation started", slog.Int("feed_count", len(feeds)))

	perFeed := make([][]domain.FeedEntry, len(feeds))
	feedErrs := make([]error, len(feeds))
	fetchGroup := new(errgroup.Group)
	fetchGroup.SetLimit(a.cfg.MaxConcurrentFetches)
	for i, feed := range feeds {
		fetchGroup.Go(func() error {
			perFeed[i], feedErrs[i] = a.reader.Read(ctx, feed, i)
			return nil
		})
	}
	_ = fetchGroup.Wait()

	var entries []sourcedEntry
	var failed []error
	for i, feed := range feeds {
		if feedErrs[i] != nil {
			failed = append(failed, feedErrs[i])
			continue
		}
		for _, entry := range perFeed[i] {
			entries = append(entries, sourcedEntry{entry: entry, source: feed.Name})
		}
	}
	if len(feeds) > 0 && len(failed) == len(feeds) {
		log.Error("All feeds failed", slog.Int("feed_count", len(feeds)))
		return []domain.Article{}, fmt.Errorf("%w: %w", ErrAllFeedsFailed, errors.Join(failed...))
	}

	sortEntries(entries)
	found := len(entries)
	if a.cfg.MaxTotalArticles > 0 && len(entries) > a.cfg.MaxTotalArticles {
		entries = entries[:a.cfg.MaxTotalArticles]
	}

	articles := make([]domain.Article, len(entries))
	extractGroup := new(errgroup.Group)
	extractGroup.SetLimit(a.cfg.MaxConcurrentExtractions)
	for i, se := range entries {
		extractGroup.Go(func() error {
			articles[i] = a.pipeline.Process(ctx, se.entry, se.source)
			return nil
		})
	}
	_ = extractGroup.Wait()
	SortArticles(articles)

	withContent := 0
	for _, article := range articles {
		if article.Content != "" {
			withContent++
		}
	}
	log.Info("Aggregation completed",
		slog.Int("feeds_failed", len(failed)),
		slog.Int("entries_found", found),
		slog.Int("articles", len(articles)),
		slog.Int("with_content", withContent),
		slog.Duration("duration", time.Since(start)),
	)
	return articles, nil
}
