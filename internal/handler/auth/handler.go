package auth

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	userservice "github.com/hwpark/chatbot/backend/internal/service/user"
	"github.com/hwpark/chatbot/backend/pkg/utils"
)

// Handler serves signup and login.
type Handler struct {
	users  *userservice.Service
	logger *slog.Logger
}

// New creates the auth handler.
func New(users *userservice.Service, logger *slog.Logger) *Handler {
	return &Handler{users: users, logger: logger}
}

// RegisterRoutes registers the public auth routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/auth/signup", h.handleSignUp)
	r.Post("/auth/login", h.handleLogin)
}

func (h *Handler) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		Name     string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(payload.Email) == "" || payload.Password == "" {
		utils.RespondError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	result, err := h.users.SignUp(r.Context(), payload.Email, payload.Password, payload.Name)
	if err != nil {
		if errors.Is(err, userservice.ErrDuplicateEmail) {
			utils.RespondError(w, http.StatusConflict, "email already registered")
			return
		}
		h.logger.Error("signup failed", "error", err)
		utils.RespondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	utils.RespondJSON(w, http.StatusCreated, result)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.users.Login(r.Context(), payload.Email, payload.Password)
	if err != nil {
		if errors.Is(err, userservice.ErrInvalidCredentials) {
			utils.RespondError(w, http.StatusUnauthorized, "invalid email or password")
			return
		}
		h.logger.Error("login failed", "error", err)
		utils.RespondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	utils.RespondJSON(w, http.StatusOK, result)
}
