package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cinerate/apiserver/internal/services"
)

// ReviewHandler serves review submission and the moderation actions that
// target a single review.
type ReviewHandler struct {
	reviews    *services.ReviewService
	moderation *services.ModerationService
	logger     *slog.Logger
}

func NewReviewHandler(reviews *services.ReviewService, moderation *services.ModerationService, logger *slog.Logger) *ReviewHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReviewHandler{reviews: reviews, moderation: moderation, logger: logger}
}

// ReviewRouter registers review routes; all of them require a caller.
func ReviewRouter(r chi.Router, h *ReviewHandler, authMiddleware func(http.Handler) http.Handler) {
	r.Use(authMiddleware)
	r.Post("/", h.SubmitReview)
	r.Get("/mine/{movieID}", h.GetOwnReview)
	r.Post("/{reviewID}/offense", h.RecordOffense)
	r.Delete("/{reviewID}", h.DeleteReview)
}

// SubmitReviewRequest leaves rating and comment to the service so a blocked
// caller is refused before either is looked at. The comment is free text.
type SubmitReviewRequest struct {
	MovieID int    `json:"movie_id" validate:"required,min=1"`
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

func (h *ReviewHandler) SubmitReview(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req SubmitReviewRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, h.logger, err, "")
		return
	}

	review, err := h.reviews.SubmitReview(r.Context(), identity, req.MovieID, req.Rating, req.Comment)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "movie not found")
		return
	}
	writeJSON(w, http.StatusCreated, review)
}

func (h *ReviewHandler) GetOwnReview(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	movieID, err := parseIDParam(r, "movieID", "movie")
	if err != nil {
		writeServiceError(w, r, h.logger, err, "")
		return
	}

	review, err := h.reviews.GetOwnReview(r.Context(), identity, movieID)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "review not found")
		return
	}
	writeJSON(w, http.StatusOK, review)
}

func (h *ReviewHandler) RecordOffense(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	reviewID, err := parseIDParam(r, "reviewID", "review")
	if err != nil {
		writeServiceError(w, r, h.logger, err, "")
		return
	}

	result, err := h.moderation.RecordOffense(r.Context(), identity, reviewID)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "review not found")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *ReviewHandler) DeleteReview(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	reviewID, err := parseIDParam(r, "reviewID", "review")
	if err != nil {
		writeServiceError(w, r, h.logger, err, "")
		return
	}

	if err := h.moderation.DeleteReview(r.Context(), identity, reviewID); err != nil {
		writeServiceError(w, r, h.logger, err, "review not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
