package admin

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	adminservice "github.com/hwpark/chatbot/backend/internal/service/admin"
	"github.com/hwpark/chatbot/backend/pkg/utils"
)

// Handler serves admin statistics and exports.
type Handler struct {
	admin  *adminservice.Service
	logger *slog.Logger
}

// New creates the admin handler.
func New(admin *adminservice.Service, logger *slog.Logger) *Handler {
	return &Handler{admin: admin, logger: logger}
}

// RegisterRoutes registers the admin-only routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/admin/statistics", h.handleStatistics)
	r.Get("/admin/reports/chats", h.handleChatReport)
}

func (h *Handler) handleStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.admin.CollectStatistics(r.Context())
	if err != nil {
		h.logger.Error("statistics collection failed", "error", err)
		utils.RespondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	utils.RespondJSON(w, http.StatusOK, stats)
}

func (h *Handler) handleChatReport(w http.ResponseWriter, r *http.Request) {
	filename := fmt.Sprintf("chat-report-%s.csv", time.Now().UTC().Format("2006-01-02"))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

	if err := h.admin.WriteChatReport(r.Context(), w); err != nil {
		// Headers are already sent; all that remains is to log.
		h.logger.Error("chat report failed", "error", err)
	}
}
