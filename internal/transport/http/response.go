package http

import (
	"encoding/json"
	"io"
	"newsfeed/internal/domain"
	"time"
)

type articleResponse struct {
	ID                string         `json:"id"`
	Title             string         `json:"title"`
	Link              string         `json:"link"`
	Summary           string         `json:"summary"`
	Published         string         `json:"published"`
	Source            string         `json:"source"`
	FullContent       string         `json:"full_content"`
	FullContentChunks []string       `json:"full_content_chunks"`
	WordCount         int            `json:"word_count"`
	Chunks            []domain.Chunk `json:"chunks,omitempty"`
}

type newsResponse struct {
	TotalArticles int               `json:"total_articles"`
	Articles      []articleResponse `json:"articles"`
	Timestamp     string            `json:"timestamp"`
}

type healthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

type sourcesResponse struct {
	Total   int                 `json:"total"`
	Sources []domain.FeedSource `json:"sources"`
}

// newNewsResponse преобразует результат сервиса в ответ API.
// Массив chunks добавляется только при detailed.
func newNewsResponse(result domain.NewsResult, detailed bool) newsResponse {
	resp := newsResponse{
		TotalArticles: result.TotalArticles,
		Articles:      make([]articleResponse, 0, len(result.Articles)),
		Timestamp:     result.Timestamp.UTC().Format(time.RFC3339),
	}
	for _, a := range result.Articles {
		item := articleResponse{
			ID:                a.ID,
			Title:             a.Title,
			Link:              a.Link,
			Summary:           a.Summary,
			Published:         a.Published,
			Source:            a.Source,
			FullContent:       a.Content,
			FullContentChunks: a.ChunkTexts(),
			WordCount:         a.WordCount,
		}
		if detailed {
			item.Chunks = a.Chunks
		}
		resp.Articles = append(resp.Articles, item)
	}
	return resp
}

// WriteNews пишет результат в том же JSON-виде, что и ответ /api/news.
func WriteNews(w io.Writer, result domain.NewsResult, detailed bool) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(newNewsResponse(result, detailed))
}
