package usecase

import (
	"context"
	"io"
	"newsfeed/internal/domain"
	"time"
)

// FeedFetcher определяет интерфейс для загрузки данных по URL.
// Возвращает io.ReadCloser, который должен быть закрыт после использования.
type FeedFetcher interface {
	Fetch(ctx context.Context, url string) (io.ReadCloser, error)
}

// FeedParser определяет интерфейс для разбора документа ленты в нормализованные записи.
type FeedParser interface {
	Parse(ctx context.Context, reader io.Reader) ([]domain.FeedEntry, error)
}

// ContentExtractor извлекает основной текст статьи по ее URL.
// Пустая строка означает, что текст не найден; это не ошибка.
type ContentExtractor interface {
	Extract(ctx context.Context, url string) string
}

// ResultCache хранит результаты агрегации с окном свежести ttl.
// Refresh обновляет запись без проверки свежести.
type ResultCache interface {
	GetOrRefresh(ctx context.Context, key string, ttl time.Duration, refresh func(ctx context.Context) ([]domain.Article, error)) ([]domain.Article, error)
	Refresh(ctx context.Context, key string, ttl time.Duration, refresh func(ctx context.Context) ([]domain.Article, error)) ([]domain.Article, error)
}
