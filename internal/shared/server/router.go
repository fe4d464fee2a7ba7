package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	googleauth "pdfchat-backend/internal/auth"
	"pdfchat-backend/internal/chat"
	"pdfchat-backend/internal/documents"
	"pdfchat-backend/internal/shared/config"
	"pdfchat-backend/internal/shared/metrics"
	"pdfchat-backend/internal/shared/server/middleware"
	"pdfchat-backend/internal/shared/server/respond"
	"pdfchat-backend/internal/uploads"
	"pdfchat-backend/internal/users"
)

// RouterDeps carries the handlers the router wires up.
type RouterDeps struct {
	Config          config.Config
	ChatHandler     *chat.Handler
	DocumentHandler *documents.Handler
	UserHandler     *users.Handler
	GoogleAuth      *googleauth.GoogleService
	UploadsEnabled  bool
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
		middleware.Auth(deps.Config.Env),
		middleware.RateLimit(middleware.RateLimitConfig{
			// Completion turns hit paid providers, so they get a tighter
			// per-user budget than the rest of the API.
			Rules: map[string]middleware.RateLimitRule{
				"CHAT":    {Rate: 0.5, Burst: 5},
				"UPLOADS": {Rate: 0.2, Burst: 3},
			},
			GroupFor: func(c *gin.Context) string {
				if c.Request.Method == http.MethodPost {
					switch {
					case strings.HasSuffix(c.FullPath(), "/messages"):
						return "CHAT"
					case strings.HasSuffix(c.FullPath(), "/documents"), strings.HasSuffix(c.FullPath(), "/uploads/presign"):
						return "UPLOADS"
					}
				}
				return ""
			},
		}),
	)

	api := r.Group("/api/v1")
	api.GET("/health", func(c *gin.Context) {
		respond.JSON(c, http.StatusOK, gin.H{"ok": true})
	})
	api.GET("/metrics", metrics.Handler())

	if deps.GoogleAuth != nil {
		deps.GoogleAuth.RegisterRoutes(api)
	}
	if deps.DocumentHandler != nil {
		deps.DocumentHandler.RegisterRoutes(api)
	}
	if deps.ChatHandler != nil {
		deps.ChatHandler.RegisterRoutes(api)
	}
	if deps.UserHandler != nil {
		deps.UserHandler.RegisterRoutes(api)
	}
	if deps.UploadsEnabled {
		uploads.RegisterRoutes(api)
	}

	return r
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
