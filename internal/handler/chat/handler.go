package chat

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hwpark/chatbot/backend/internal/auth"
	"github.com/hwpark/chatbot/backend/internal/service/ai"
	chatservice "github.com/hwpark/chatbot/backend/internal/service/chat"
	"github.com/hwpark/chatbot/backend/internal/store"
	"github.com/hwpark/chatbot/backend/pkg/utils"
)

// Handler serves the conversational endpoints.
type Handler struct {
	coordinator *chatservice.Coordinator
	threads     *chatservice.Threads
	logger      *slog.Logger
}

// New creates the chat handler.
func New(coordinator *chatservice.Coordinator, threads *chatservice.Threads, logger *slog.Logger) *Handler {
	return &Handler{
		coordinator: coordinator,
		threads:     threads,
		logger:      logger,
	}
}

// RegisterRoutes registers the chat routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/chats", h.handleAsk)
	r.Get("/chats", h.handleListThreads)
	r.Get("/chats/stream/ws", h.handleStreamWS)
	r.Delete("/chats/threads/{threadID}", h.handleDeleteThread)
}

// handleAsk answers one question, either as a complete JSON exchange or as
// an SSE stream of answer fragments.
func (h *Handler) handleAsk(w http.ResponseWriter, r *http.Request) {
	usr, ok := auth.CurrentUser(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var payload struct {
		Question  string `json:"question"`
		Context   string `json:"context"`
		Model     string `json:"model"`
		Streaming bool   `json:"isStreaming"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	reply, err := h.coordinator.Respond(r.Context(), usr, chatservice.Request{
		Question:  payload.Question,
		Context:   payload.Context,
		Model:     payload.Model,
		Streaming: payload.Streaming,
	})
	if err != nil {
		h.respondChatError(w, err)
		return
	}

	if reply.Stream != nil {
		h.streamSSE(w, r, reply.Stream)
		return
	}
	utils.RespondJSON(w, http.StatusCreated, reply.Exchange)
}

// streamSSE forwards the delivery branch to the client. The first fragment
// is awaited before committing to the SSE content type so upstream failures
// can still produce a JSON error status.
func (h *Handler) streamSSE(w http.ResponseWriter, r *http.Request, fan *chatservice.Fanout) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		fan.AbandonDelivery()
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	delivery := fan.Delivery()
	first, open := <-delivery
	if !open {
		if err := fan.Err(); err != nil {
			h.respondChatError(w, err)
			return
		}
		// Completed without a single fragment.
		utils.SetupSSEHeaders(w)
		flusher.Flush()
		return
	}

	utils.SetupSSEHeaders(w)
	if err := utils.SendSSEDelta(w, flusher, first); err != nil {
		fan.AbandonDelivery()
		return
	}

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			fan.AbandonDelivery()
			return
		case delta, open := <-delivery:
			if !open {
				return
			}
			if err := utils.SendSSEDelta(w, flusher, delta); err != nil {
				fan.AbandonDelivery()
				return
			}
		}
	}
}

// handleListThreads pages through the caller's sessions.
func (h *Handler) handleListThreads(w http.ResponseWriter, r *http.Request) {
	usr, ok := auth.CurrentUser(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	page := pageFromQuery(r)
	threads, total, err := h.threads.List(r.Context(), usr, page)
	if err != nil {
		h.respondChatError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"threads":    threads,
		"totalCount": total,
		"page":       page.Number,
		"size":       page.Size,
	})
}

// handleDeleteThread removes one session and its exchanges.
func (h *Handler) handleDeleteThread(w http.ResponseWriter, r *http.Request) {
	usr, ok := auth.CurrentUser(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	threadID := chi.URLParam(r, "threadID")
	if err := h.threads.Delete(r.Context(), usr, threadID); err != nil {
		h.respondChatError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// respondChatError maps service errors onto HTTP statuses.
func (h *Handler) respondChatError(w http.ResponseWriter, err error) {
	var svcErr *ai.ServiceError
	switch {
	case errors.Is(err, chatservice.ErrEmptyQuestion):
		utils.RespondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, chatservice.ErrSessionContention):
		utils.RespondError(w, http.StatusServiceUnavailable, "another request for this conversation is in flight")
	case errors.Is(err, store.ErrNotFound):
		utils.RespondError(w, http.StatusNotFound, "not found")
	case errors.Is(err, auth.ErrForbidden):
		utils.RespondError(w, http.StatusForbidden, "access denied")
	case errors.As(err, &svcErr):
		h.logger.Error("upstream generation failed", "error", err)
		utils.RespondError(w, http.StatusBadGateway, "answer generation failed")
	default:
		h.logger.Error("chat request failed", "error", err)
		utils.RespondError(w, http.StatusInternalServerError, "internal error")
	}
}

func pageFromQuery(r *http.Request) store.Page {
	page := store.Page{Size: 20}
	if n, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && n >= 0 {
		page.Number = n
	}
	if s, err := strconv.Atoi(r.URL.Query().Get("size")); err == nil && s > 0 && s <= 100 {
		page.Size = s
	}
	if r.URL.Query().Get("sort") == "asc" {
		page.Asc = true
	}
	return page
}
