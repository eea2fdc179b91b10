package api

import (
	"math/rand"
	"net/http"
	"time"

	"github.com/Rrens/support-chat/internal/api/handler"
	customMiddleware "github.com/Rrens/support-chat/internal/api/middleware"
	"github.com/Rrens/support-chat/internal/config"
	"github.com/Rrens/support-chat/internal/domain"
	"github.com/Rrens/support-chat/internal/realtime"
	"github.com/Rrens/support-chat/internal/repository/redis"
	"github.com/Rrens/support-chat/internal/security"
	"github.com/Rrens/support-chat/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Dependencies are the long-lived resources the router wires into handlers
type Dependencies struct {
	Agents   domain.AgentRepository
	Sessions domain.SessionRepository
	Hub      *realtime.Hub
	// Redis is optional; nil disables HTTP rate limiting and the per-user start lock
	Redis *redis.Client
}

// NewRouter creates and configures the HTTP router
func NewRouter(cfg *config.Config, deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(customMiddleware.Logger)
	r.Use(middleware.Recoverer)
	if cfg.Metrics.Enabled {
		r.Use(customMiddleware.Metrics)
	}

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Request-ID", "X-RateLimit-Remaining"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Initialize security components
	jwtManager := security.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	textValidator := security.NewTextValidator(cfg.Chat.MaxMessageLength)

	var locker service.Locker
	var rateLimitMiddleware *customMiddleware.RateLimitMiddleware
	readyChecks := map[string]handler.Pinger{"store": deps.Sessions}
	if deps.Redis != nil {
		locker = redis.NewUserLock(deps.Redis)
		rateLimiter := redis.NewRateLimiter(
			deps.Redis,
			cfg.Security.RateLimit.RequestsPerMinute,
			cfg.Security.RateLimit.Burst,
		)
		rateLimitMiddleware = customMiddleware.NewRateLimitMiddleware(rateLimiter)
		readyChecks["redis"] = deps.Redis
	}

	// Initialize services
	chatService := service.NewChatService(
		deps.Sessions,
		service.NewLoadCounter(deps.Agents, deps.Sessions),
		service.NewLeastLoadedPolicy(rand.NewSource(time.Now().UnixNano())),
		deps.Hub,
		locker,
		textValidator,
		cfg.Chat.StartLockTTL,
	)
	agentService := service.NewAgentService(deps.Agents, jwtManager, cfg.Auth)

	// Initialize handlers
	chatHandler := handler.NewChatHandler(chatService)
	agentHandler := handler.NewAgentHandler(agentService)
	wsHandler := realtime.NewHandler(deps.Hub, chatService, cfg.Chat, cfg.Server.AllowedOrigins, cfg.Server.MiddlewareTimeout)

	authMiddleware := customMiddleware.NewAuthMiddleware(jwtManager)
	adminOnly := customMiddleware.RequireRole(security.RoleAdmin)

	// Long-lived connections stay outside the request timeout
	r.Get("/ws", wsHandler.ServeHTTP)
	if cfg.Metrics.Enabled {
		r.Handle(cfg.Metrics.Path, promhttp.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Timeout(cfg.Server.MiddlewareTimeout))

		// Health check
		r.Get("/health", handler.HealthCheck)
		r.Get("/ready", handler.ReadyCheck(readyChecks))

		// Customer and login routes
		r.Group(func(r chi.Router) {
			if rateLimitMiddleware != nil {
				r.Use(rateLimitMiddleware.Limit)
			}

			r.Post("/start-session", chatHandler.StartSession)
			r.Post("/send-message", chatHandler.SendMessage)
			r.Get("/session", chatHandler.LatestSession)

			r.Post("/agents/login", agentHandler.Login)
			r.Post("/admin/login", agentHandler.AdminLogin)
		})

		// Console routes
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Authenticate)

			r.With(adminOnly).Get("/sessions", chatHandler.ListSessions)
			r.With(customMiddleware.RequireRole(security.RoleAgent, security.RoleAdmin)).
				Get("/sessions/{sessionID}", chatHandler.GetSession)

			// Agent self-service
			r.Group(func(r chi.Router) {
				r.Use(customMiddleware.RequireRole(security.RoleAgent))

				r.Get("/agents/me", agentHandler.Me)
				r.Get("/agents/me/sessions", chatHandler.MySessions)
				r.Put("/agents/me/password", agentHandler.ChangeMyPassword)
			})

			// Agent directory administration
			r.Group(func(r chi.Router) {
				r.Use(adminOnly)

				r.Get("/agents", agentHandler.List)
				r.Post("/agents", agentHandler.Create)
				r.Delete("/agents/{agentID}", agentHandler.Delete)
				r.Put("/agents/{agentID}/password", agentHandler.ResetPassword)
			})
		})
	})

	return r
}
