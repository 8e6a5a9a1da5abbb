package http

import (
	"log/slog"
	"net/http"
)

// NewServer создает HTTP-обработчик с роутингом и middleware.
// Цепочка: CORS -> request id -> логирование -> роутер.
func NewServer(log *slog.Logger, h *Handler) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /news", h.getNews)
	mux.HandleFunc("GET /api/news", h.getNews)
	mux.HandleFunc("GET /api/news/source/{name}", h.getNewsBySource)
	mux.HandleFunc("GET /api/sources", h.getSources)
	mux.HandleFunc("GET /api/cache/stats", h.getCacheStats)
	mux.HandleFunc("GET /api/health", h.healthCheck)
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		respondWithError(w, http.StatusNotFound, "Not Found")
	})

	var handler http.Handler = mux
	handler = loggingMiddleware(log)(handler)
	handler = requestIDMiddleware()(handler)
	handler = corsMiddleware()(handler)
	return handler
}
