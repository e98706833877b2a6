package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	authpkg "github.com/hwpark/chatbot/backend/internal/auth"
	adminhandler "github.com/hwpark/chatbot/backend/internal/handler/admin"
	authhandler "github.com/hwpark/chatbot/backend/internal/handler/auth"
	chathandler "github.com/hwpark/chatbot/backend/internal/handler/chat"
	feedbackhandler "github.com/hwpark/chatbot/backend/internal/handler/feedback"
	middlewarePkg "github.com/hwpark/chatbot/backend/internal/middleware"
	adminservice "github.com/hwpark/chatbot/backend/internal/service/admin"
	chatservice "github.com/hwpark/chatbot/backend/internal/service/chat"
	feedbackservice "github.com/hwpark/chatbot/backend/internal/service/feedback"
	userservice "github.com/hwpark/chatbot/backend/internal/service/user"
	"github.com/hwpark/chatbot/backend/internal/store"
)

// Deps carries everything the router wires together.
type Deps struct {
	Users       store.Users
	Tokens      *authpkg.TokenProvider
	UserSvc     *userservice.Service
	Coordinator *chatservice.Coordinator
	Threads     *chatservice.Threads
	FeedbackSvc *feedbackservice.Service
	AdminSvc    *adminservice.Service
	Logger      *slog.Logger
}

// NewRouter wires HTTP routes to core services.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	authHandler := authhandler.New(deps.UserSvc, deps.Logger)
	chatHandler := chathandler.New(deps.Coordinator, deps.Threads, deps.Logger)
	feedbackHandler := feedbackhandler.New(deps.FeedbackSvc, deps.Logger)
	adminHandler := adminhandler.New(deps.AdminSvc, deps.Logger)

	r.Route("/api", func(api chi.Router) {
		// Public routes.
		authHandler.RegisterRoutes(api)

		// Authenticated routes.
		api.Group(func(authed chi.Router) {
			authed.Use(middlewarePkg.Auth(deps.Tokens, deps.Users))

			chatHandler.RegisterRoutes(authed)
			feedbackHandler.RegisterRoutes(authed)

			// Admin-only routes.
			authed.Group(func(admin chi.Router) {
				admin.Use(middlewarePkg.RequireAdmin)

				adminHandler.RegisterRoutes(admin)
				feedbackHandler.RegisterAdminRoutes(admin)
			})
		})
	})

	return r
}
