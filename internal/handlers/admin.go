package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cinerate/apiserver/internal/services"
)

type AdminHandler struct {
	moderation *services.ModerationService
	logger     *slog.Logger
}

func NewAdminHandler(moderation *services.ModerationService, logger *slog.Logger) *AdminHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AdminHandler{moderation: moderation, logger: logger}
}

func AdminRouter(r chi.Router, h *AdminHandler, authMiddleware func(http.Handler) http.Handler) {
	r.Use(authMiddleware)
	r.Get("/offenders", h.ListOffenders)
	r.Put("/users/{userID}/offense-count", h.SetOffenseCount)
}

type SetOffenseCountRequest struct {
	OffenseCount *int `json:"offense_count" validate:"required"`
}

func (h *AdminHandler) ListOffenders(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	offenders, err := h.moderation.ListOffenders(r.Context(), identity)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "")
		return
	}
	writeJSON(w, http.StatusOK, offenders)
}

func (h *AdminHandler) SetOffenseCount(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	userID, err := parseIDParam(r, "userID", "user")
	if err != nil {
		writeServiceError(w, r, h.logger, err, "")
		return
	}

	var req SetOffenseCountRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, h.logger, err, "")
		return
	}

	result, err := h.moderation.SetOffenseCount(r.Context(), identity, userID, *req.OffenseCount)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "user not found")
		return
	}
	writeJSON(w, http.StatusOK, result)
}
