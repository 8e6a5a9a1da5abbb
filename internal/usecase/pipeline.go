package usecase

import (
	"context"
	"log/slog"
	"newsfeed/internal/chunker"
	"newsfeed/internal/domain"
	"strings"

	"github.com/google/uuid"
)

// Options - параметры нарезки текста на фрагменты для одного запроса.
type Options struct {
	ChunkSize int
	Overlap   int
}

// ArticlePipeline превращает запись ленты в статью: извлекает текст и режет его на фрагменты.
type ArticlePipeline struct {
	extractor ContentExtractor
	log       *slog.Logger
}

func NewArticlePipeline(extractor ContentExtractor, log *slog.Logger) *ArticlePipeline {
	return &ArticlePipeline{
		extractor: extractor,
		log:       log.With(slog.String("component", "pipeline")),
	}
}

// ArticleID возвращает стабильный идентификатор статьи: UUIDv5 от ссылки.
// Для записей без ссылки используется пара источник и заголовок.
func ArticleID(entry domain.FeedEntry, source string) string {
	name := entry.Link
	if name == domain.NoLink {
		name = source + "\x00" + entry.Title
	}
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(name)).String()
}

// Process собирает статью по записи ленты: извлекает текст и считает слова.
// Фрагменты не заполняются, их строит ChunkArticle под параметры запроса.
// Сбой на любом шаге, включая панику, дает статью с пустым текстом, но не прерывает обработку ленты.
func (p *ArticlePipeline) Process(ctx context.Context, entry domain.FeedEntry, source string) (article domain.Article) {
	article = domain.Article{
		ID:          ArticleID(entry, source),
		Title:       entry.Title,
		Link:        entry.Link,
		Summary:     entry.Summary,
		Published:   entry.Published,
		PublishedAt: entry.PublishedAt,
		HasDate:     entry.HasDate,
		Source:      source,
		Chunks:      []domain.Chunk{},
		FeedIndex:   entry.FeedIndex,
		Position:    entry.Position,
	}
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("Article processing panicked",
				slog.String("link", entry.Link),
				slog.Any("panic", r),
			)
			article.Content = ""
			article.WordCount = 0
		}
	}()

	content := p.extractor.Extract(ctx, entry.Link)
	if content == "" {
		return article
	}
	article.Content = content
	article.WordCount = len(strings.Fields(content))
	return article
}

// ChunkArticle возвращает копию статьи с фрагментами текста под opts.
// Исходная статья не меняется, поэтому ее можно брать прямо из кэша.
func ChunkArticle(article domain.Article, opts Options) domain.Article {
	texts := chunker.Split(article.Content, opts.ChunkSize, opts.Overlap)
	article.Chunks = make([]domain.Chunk, len(texts))
	for i, text := range texts {
		article.Chunks[i] = domain.Chunk{
			Index:     i + 1,
			Total:     len(texts),
			ArticleID: article.ID,
			Text:      text,
			Source:    article.Source,
			Link:      article.Link,
			Published: article.Published,
		}
	}
	return article
}
