package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"newsfeed/internal/domain"
	"time"
)

// ErrUnknownSource означает, что лента с таким именем не настроена.
var ErrUnknownSource = errors.New("unknown source")

// NewsService отдает агрегированные новости через кэш результатов.
// Список лент фиксируется при создании и дальше не меняется.
type NewsService struct {
	cache      ResultCache
	aggregator *Aggregator
	feeds      []domain.FeedSource
	ttl        time.Duration
	defaults   Options
	log        *slog.Logger
}

// NewNewsService создает сервис новостей. defaults задает размер фрагмента по умолчанию
// и перекрытие, которое включается параметром overlap.
func NewNewsService(cache ResultCache, aggregator *Aggregator, feeds []domain.FeedSource, ttl time.Duration, defaults Options, log *slog.Logger) *NewsService {
	owned := make([]domain.FeedSource, len(feeds))
	copy(owned, feeds)
	return &NewsService{
		cache:      cache,
		aggregator: aggregator,
		feeds:      owned,
		ttl:        ttl,
		defaults:   defaults,
		log:        log.With(slog.String("component", "news-service")),
	}
}

// Options собирает параметры запроса: chunkSize <= 0 означает размер по умолчанию,
// withOverlap включает настроенное перекрытие.
func (s *NewsService) Options(chunkSize int, withOverlap bool) Options {
	opts := Options{ChunkSize: s.defaults.ChunkSize}
	if chunkSize > 0 {
		opts.ChunkSize = chunkSize
	}
	if withOverlap {
		opts.Overlap = s.defaults.Overlap
	}
	return opts
}

// Sources возвращает копию списка настроенных лент.
func (s *NewsService) Sources() []domain.FeedSource {
	out := make([]domain.FeedSource, len(s.feeds))
	copy(out, s.feeds)
	return out
}

// All возвращает статьи всех лент.
func (s *NewsService) All(ctx context.Context, opts Options) (domain.NewsResult, error) {
	return s.get(ctx, allKey, s.feeds, opts)
}

// BySource возвращает статьи одной ленты. Для ненастроенного имени возвращает ErrUnknownSource.
func (s *NewsService) BySource(ctx context.Context, name string, opts Options) (domain.NewsResult, error) {
	for _, feed := range s.feeds {
		if feed.Name == name {
			return s.get(ctx, sourceKey(name), []domain.FeedSource{feed}, opts)
		}
	}
	return domain.NewsResult{}, fmt.Errorf("%w: %s", ErrUnknownSource, name)
}

// Warm принудительно обновляет общий список статей, даже если запись еще свежая.
func (s *NewsService) Warm(ctx context.Context) error {
	_, err := s.cache.Refresh(ctx, allKey, s.ttl, s.refresher(s.feeds))
	return err
}

// get берет статьи из кэша и режет их на фрагменты под opts. В кэше лежат статьи без
// фрагментов, поэтому разные chunk_size и overlap не приводят к повторному обходу лент.
//
// Если ни одна лента не ответила и прежних данных нет, возвращается пустой результат:
// недоступность источников не считается ошибкой запроса.
func (s *NewsService) get(ctx context.Context, key string, feeds []domain.FeedSource, opts Options) (domain.NewsResult, error) {
	log := s.log.With(slog.String("op", "usecase.NewsService.get"), slog.String("key", key))
	articles, err := s.cache.GetOrRefresh(ctx, key, s.ttl, s.refresher(feeds))
	switch {
	case errors.Is(err, ErrAllFeedsFailed):
		log.Warn("No feed available and nothing cached, returning empty result", slog.Any("error", err))
		articles = []domain.Article{}
	case err != nil:
		log.Error("Failed to get news", slog.Any("error", err))
		return domain.NewsResult{}, fmt.Errorf("failed to get news: %w", err)
	}

	chunked := make([]domain.Article, len(articles))
	for i, article := range articles {
		chunked[i] = ChunkArticle(article, opts)
	}
	return domain.NewsResult{
		TotalArticles: len(chunked),
		Articles:      chunked,
		Timestamp:     time.Now().UTC(),
	}, nil
}

func (s *NewsService) refresher(feeds []domain.FeedSource) func(ctx context.Context) ([]domain.Article, error) {
	return func(ctx context.Context) ([]domain.Article, error) {
		return s.aggregator.Aggregate(ctx, feeds)
	}
}

const allKey = "news"

func sourceKey(name string) string {
	return "source:" + name
}
