package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/zhouzirui/z-admin/assistant/internal/config"
	"github.com/zhouzirui/z-admin/assistant/internal/handler/chat"
	"github.com/zhouzirui/z-admin/assistant/internal/handler/health"
	"github.com/zhouzirui/z-admin/assistant/internal/middleware"
	chatService "github.com/zhouzirui/z-admin/assistant/internal/service/chat"
	"github.com/zhouzirui/z-admin/assistant/internal/service/reply"
)

// Deps are the services the router exposes.
type Deps struct {
	Chat       *chatService.Service
	Reply      *reply.Service
	Auth       config.AuthConfig
	Logger     *zap.Logger
	LLMEnabled bool
}

// NewRouter wires HTTP routes to core services. Chat endpoints live under
// /api/chat; health is unauthenticated.
func NewRouter(deps Deps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(logger))
	r.Use(chimw.Recoverer)
	r.Use(middleware.CORS)

	chatHandler := chat.New(deps.Chat, deps.Reply)
	healthHandler := health.New(deps.LLMEnabled)

	r.Route("/api/chat", func(api chi.Router) {
		healthHandler.RegisterRoutes(api)

		api.Group(func(protected chi.Router) {
			protected.Use(middleware.Auth(deps.Auth))
			chatHandler.RegisterRoutes(protected)
		})
	})

	return r
}
