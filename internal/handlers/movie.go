package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cinerate/apiserver/internal/services"
)

// MovieHandler serves the catalog read views.
type MovieHandler struct {
	reviews *services.ReviewService
	logger  *slog.Logger
}

func NewMovieHandler(reviews *services.ReviewService, logger *slog.Logger) *MovieHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &MovieHandler{reviews: reviews, logger: logger}
}

// MovieRouter registers movie routes. Poster assignment needs a caller;
// whether that caller is an admin is decided by the service.
func MovieRouter(r chi.Router, h *MovieHandler, authMiddleware func(http.Handler) http.Handler) {
	r.Get("/", h.ListMovies)
	r.With(authMiddleware).Post("/assign-posters", h.AssignPosters)
	r.Get("/{movieID}", h.GetMovie)
}

func (h *MovieHandler) ListMovies(w http.ResponseWriter, r *http.Request) {
	movies, err := h.reviews.ListMoviesView(r.Context(), r.URL.Query().Get("search"))
	if err != nil {
		writeServiceError(w, r, h.logger, err, "")
		return
	}
	writeJSON(w, http.StatusOK, movies)
}

func (h *MovieHandler) GetMovie(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "movieID", "movie")
	if err != nil {
		writeServiceError(w, r, h.logger, err, "")
		return
	}

	movie, err := h.reviews.GetMovieView(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "movie not found")
		return
	}
	writeJSON(w, http.StatusOK, movie)
}

func (h *MovieHandler) AssignPosters(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	result, err := h.reviews.AssignPosters(r.Context(), identity)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "")
		return
	}
	writeJSON(w, http.StatusOK, result)
}
