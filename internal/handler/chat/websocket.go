package chat

import (
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/hwpark/chatbot/backend/internal/auth"
	chatservice "github.com/hwpark/chatbot/backend/internal/service/chat"
	"github.com/hwpark/chatbot/backend/pkg/utils"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// handleStreamWS answers one question over a WebSocket, one text message
// per answer fragment. The question arrives as a query parameter because
// the connection starts as a GET.
func (h *Handler) handleStreamWS(w http.ResponseWriter, r *http.Request) {
	usr, ok := auth.CurrentUser(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	question := r.URL.Query().Get("question")
	if question == "" {
		utils.RespondError(w, http.StatusBadRequest, "question query parameter is required")
		return
	}

	reply, err := h.coordinator.Respond(r.Context(), usr, chatservice.Request{
		Question:  question,
		Context:   r.URL.Query().Get("context"),
		Model:     r.URL.Query().Get("model"),
		Streaming: true,
	})
	if err != nil {
		h.respondChatError(w, err)
		return
	}
	fan := reply.Stream

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		fan.AbandonDelivery()
		return
	}
	defer conn.Close()

	for delta := range fan.Delivery() {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(delta)); err != nil {
			fan.AbandonDelivery()
			return
		}
	}

	if err := fan.Err(); err != nil {
		h.logger.Error("websocket stream failed upstream", "error", err)
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "answer generation failed"))
		return
	}
	conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}
