package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"newsfeed/internal/cache"
	"newsfeed/internal/domain"
	"newsfeed/internal/usecase"
	"strconv"
	"time"
)

type newsService interface {
	All(ctx context.Context, opts usecase.Options) (domain.NewsResult, error)
	BySource(ctx context.Context, name string, opts usecase.Options) (domain.NewsResult, error)
	Options(chunkSize int, withOverlap bool) usecase.Options
	Sources() []domain.FeedSource
}

type statsProvider interface {
	Stats() cache.Stats
}

type Handler struct {
	log   *slog.Logger
	news  newsService
	stats statsProvider
}

func NewHandler(log *slog.Logger, news newsService, stats statsProvider) *Handler {
	return &Handler{
		log:   log.With(slog.String("component", "http")),
		news:  news,
		stats: stats,
	}
}

// newsQuery - разобранные параметры запроса новостей.
type newsQuery struct {
	opts     usecase.Options
	detailed bool
}

// parseNewsQuery разбирает chunk_size, overlap и detailed.
// Возвращает сообщение об ошибке для ответа 400, если параметр некорректен.
func (h *Handler) parseNewsQuery(r *http.Request) (newsQuery, string) {
	q := r.URL.Query()
	chunkSize := 0
	if raw := q.Get("chunk_size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return newsQuery{}, "Invalid 'chunk_size' parameter"
		}
		chunkSize = n
	}
	overlap, ok := parseFlag(q.Get("overlap"))
	if !ok {
		return newsQuery{}, "Invalid 'overlap' parameter"
	}
	detailed, ok := parseFlag(q.Get("detailed"))
	if !ok {
		return newsQuery{}, "Invalid 'detailed' parameter"
	}
	return newsQuery{opts: h.news.Options(chunkSize, overlap), detailed: detailed}, ""
}

func parseFlag(raw string) (bool, bool) {
	if raw == "" {
		return false, true
	}
	v, err := strconv.ParseBool(raw)
	return v, err == nil
}

// getNews - хендлер для эндпоинтов GET /news и GET /api/news
func (h *Handler) getNews(w http.ResponseWriter, r *http.Request) {
	const op = "transport.http/getNews"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", getRequestID(r.Context())),
	)
	query, msg := h.parseNewsQuery(r)
	if msg != "" {
		log.Warn("invalid query", slog.String("query", r.URL.RawQuery))
		respondWithError(w, http.StatusBadRequest, msg)
		return
	}
	result, err := h.news.All(r.Context(), query.opts)
	if err != nil {
		log.Error("Failed to get news", slog.Any("error", err))
		respondWithError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	respondWithJSON(w, http.StatusOK, newNewsResponse(result, query.detailed))
}

// getNewsBySource - хендлер для эндпоинта GET /api/news/source/{name}
func (h *Handler) getNewsBySource(w http.ResponseWriter, r *http.Request) {
	const op = "transport.http/getNewsBySource"
	name := r.PathValue("name")
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", getRequestID(r.Context())),
		slog.String("source", name),
	)
	query, msg := h.parseNewsQuery(r)
	if msg != "" {
		log.Warn("invalid query", slog.String("query", r.URL.RawQuery))
		respondWithError(w, http.StatusBadRequest, msg)
		return
	}
	result, err := h.news.BySource(r.Context(), name, query.opts)
	if errors.Is(err, usecase.ErrUnknownSource) {
		log.Warn("unknown source")
		respondWithError(w, http.StatusNotFound, "Source not found")
		return
	}
	if err != nil {
		log.Error("Failed to get news", slog.Any("error", err))
		respondWithError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	respondWithJSON(w, http.StatusOK, newNewsResponse(result, query.detailed))
}

// getSources - хендлер для эндпоинта GET /api/sources
func (h *Handler) getSources(w http.ResponseWriter, r *http.Request) {
	sources := h.news.Sources()
	respondWithJSON(w, http.StatusOK, sourcesResponse{Total: len(sources), Sources: sources})
}

// getCacheStats - хендлер для эндпоинта GET /api/cache/stats
func (h *Handler) getCacheStats(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, h.stats.Stats())
}

// healthCheck - хендлер для проверки состояния сервиса
func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, healthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// Вспомогательные функции для ответов
func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error": "Failed to marshal JSON response"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}
