package api

import (
	"net/http"
	"time"

	"algoforge/internal/api/handler"
	"algoforge/internal/api/middleware"
	"algoforge/internal/app/service"
	"algoforge/internal/common"
	"algoforge/internal/common/security"
	"algoforge/internal/platform/logger"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/jwtauth/v5"
)

// RouterConfig carries the HTTP-level settings taken from config.AppConfig.
type RouterConfig struct {
	CORSOrigins    []string
	RequestTimeout time.Duration
}

// NewRouter wires every route. security.InitJWT must have been called first.
func NewRouter(
	cfg RouterConfig,
	log *logger.Logger,
	authService *service.AuthService,
	contentService *service.ContentService,
	userActionService *service.UserActionService,
	forumService *service.ForumService,
	leaderboardService *service.LeaderboardService,
	adminService *service.AdminService,
) http.Handler {
	r := chi.NewRouter()

	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(middleware.RequestLog(log.With("component", "http")))
	r.Use(chiMiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))
	r.Use(chiMiddleware.Timeout(timeout))

	// Parses "Authorization: Bearer T" when present; Authenticator enforces it per route.
	r.Use(jwtauth.Verifier(security.TokenAuth))

	r.Route("/api", func(api chi.Router) {
		api.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			common.RespondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		api.Route("/users", handler.NewAuthHandler(authService, log).RegisterRoutes)
		api.Route("/content", handler.NewContentHandler(contentService, log).RegisterRoutes)
		api.Route("/user-actions", handler.NewUserActionHandler(userActionService, log).RegisterRoutes)
		api.Route("/forum", handler.NewForumHandler(forumService, log).RegisterRoutes)
		api.Route("/leaderboard", handler.NewLeaderboardHandler(leaderboardService, log).RegisterRoutes)
		api.Route("/admin", handler.NewAdminHandler(adminService, contentService, forumService, leaderboardService, log).RegisterRoutes)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		common.RespondWithError(w, http.StatusNotFound, "route not found")
	})

	return r
}
