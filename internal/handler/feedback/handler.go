package feedback

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hwpark/chatbot/backend/internal/auth"
	feedbackmodel "github.com/hwpark/chatbot/backend/internal/model/feedback"
	feedbackservice "github.com/hwpark/chatbot/backend/internal/service/feedback"
	"github.com/hwpark/chatbot/backend/internal/store"
	"github.com/hwpark/chatbot/backend/pkg/utils"
)

// Handler serves exchange rating endpoints.
type Handler struct {
	feedbacks *feedbackservice.Service
	logger    *slog.Logger
}

// New creates the feedback handler.
func New(feedbacks *feedbackservice.Service, logger *slog.Logger) *Handler {
	return &Handler{feedbacks: feedbacks, logger: logger}
}

// RegisterRoutes registers the authenticated feedback routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/feedbacks", h.handleCreate)
	r.Get("/feedbacks", h.handleList)
}

// RegisterAdminRoutes registers the admin-only status transition.
func (h *Handler) RegisterAdminRoutes(r chi.Router) {
	r.Patch("/feedbacks/{feedbackID}/status", h.handleUpdateStatus)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	usr, ok := auth.CurrentUser(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var payload struct {
		ExchangeID string `json:"exchangeId"`
		IsPositive *bool  `json:"isPositive"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.ExchangeID == "" || payload.IsPositive == nil {
		utils.RespondError(w, http.StatusBadRequest, "exchangeId and isPositive are required")
		return
	}

	fb, err := h.feedbacks.Create(r.Context(), usr, payload.ExchangeID, *payload.IsPositive)
	if err != nil {
		h.respondFeedbackError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusCreated, fb)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	usr, ok := auth.CurrentUser(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var isPositive *bool
	if raw := r.URL.Query().Get("isPositive"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			utils.RespondError(w, http.StatusBadRequest, "isPositive must be true or false")
			return
		}
		isPositive = &v
	}

	page := store.Page{Size: 20}
	if n, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && n >= 0 {
		page.Number = n
	}
	if s, err := strconv.Atoi(r.URL.Query().Get("size")); err == nil && s > 0 && s <= 100 {
		page.Size = s
	}

	items, total, err := h.feedbacks.List(r.Context(), usr, isPositive, page)
	if err != nil {
		h.respondFeedbackError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"feedbacks":  items,
		"totalCount": total,
		"page":       page.Number,
		"size":       page.Size,
	})
}

func (h *Handler) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	status := feedbackmodel.Status(payload.Status)
	if status != feedbackmodel.StatusPending && status != feedbackmodel.StatusResolved {
		utils.RespondError(w, http.StatusBadRequest, "unknown status")
		return
	}

	fb, err := h.feedbacks.UpdateStatus(r.Context(), chi.URLParam(r, "feedbackID"), status)
	if err != nil {
		h.respondFeedbackError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, fb)
}

func (h *Handler) respondFeedbackError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, feedbackservice.ErrDuplicate):
		utils.RespondError(w, http.StatusConflict, "feedback already submitted")
	case errors.Is(err, store.ErrNotFound):
		utils.RespondError(w, http.StatusNotFound, "not found")
	case errors.Is(err, auth.ErrForbidden):
		utils.RespondError(w, http.StatusForbidden, "access denied")
	default:
		h.logger.Error("feedback request failed", "error", err)
		utils.RespondError(w, http.StatusInternalServerError, "internal error")
	}
}
