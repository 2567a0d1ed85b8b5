package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"cvgenius-backend/internal/account"
	"cvgenius-backend/internal/analytics"
	googleauth "cvgenius-backend/internal/auth"
	"cvgenius-backend/internal/cvs"
	"cvgenius-backend/internal/plans"
	"cvgenius-backend/internal/shared/config"
	"cvgenius-backend/internal/shared/metrics"
	"cvgenius-backend/internal/shared/server/middleware"
	"cvgenius-backend/internal/shared/server/respond"
	"cvgenius-backend/internal/users"
)

// RouterDeps carries the handlers the router wires up.
type RouterDeps struct {
	Config           config.Config
	CVHandler        *cvs.Handler
	AnalyticsHandler *analytics.Handler
	PlansHandler     *plans.Handler
	UsersHandler     *users.Handler
	AccountHandler   *account.Handler
	GoogleAuth       *googleauth.GoogleService
	StorageMode      string
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
	)

	r.GET("/healthz", func(c *gin.Context) {
		respond.JSON(c, http.StatusOK, gin.H{"ok": true, "storage": deps.StorageMode})
	})
	r.GET("/metrics", metrics.Handler())

	// Viewer-facing pages and the public tracking endpoints carry no auth;
	// the pages are meant to be shared by link.
	if deps.CVHandler != nil {
		deps.CVHandler.RegisterPublicRoutes(r)
	}
	public := r.Group("/api")
	if deps.AnalyticsHandler != nil {
		deps.AnalyticsHandler.RegisterPublicRoutes(public)
	}
	if deps.GoogleAuth != nil {
		deps.GoogleAuth.RegisterRoutes(public)
	}

	api := r.Group("/api")
	api.Use(
		middleware.Auth(deps.Config.Env),
		middleware.RateLimit(middleware.RateLimitConfig{
			Rules: map[string]middleware.RateLimitRule{
				"UPLOAD":  {Rate: 0.2, Burst: 3},
				"DEFAULT": {Rate: 10, Burst: 30},
			},
			GroupFor: func(c *gin.Context) string {
				if c.Request.Method == http.MethodPost && c.FullPath() == "/api/cv/upload" {
					return "UPLOAD"
				}
				return "DEFAULT"
			},
		}),
	)
	if deps.CVHandler != nil {
		deps.CVHandler.RegisterRoutes(api)
	}
	if deps.AnalyticsHandler != nil {
		deps.AnalyticsHandler.RegisterRoutes(api)
	}
	if deps.PlansHandler != nil {
		deps.PlansHandler.RegisterRoutes(api)
	}
	if deps.UsersHandler != nil {
		deps.UsersHandler.RegisterRoutes(api)
	}
	if deps.AccountHandler != nil {
		deps.AccountHandler.RegisterRoutes(api)
	}

	// Anything else is treated as a custom CV name, e.g. /jane-doe-x1y2z3.
	if deps.CVHandler != nil {
		r.NoRoute(customNameFallback(deps.CVHandler))
	}

	return r
}

func customNameFallback(h *cvs.Handler) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet {
			respond.Error(c, http.StatusNotFound, "not_found", "page not found", nil)
			return
		}
		name := c.Request.URL.Path
		if len(name) > 0 && name[0] == '/' {
			name = name[1:]
		}
		c.Params = append(c.Params, gin.Param{Key: "customUrlName", Value: name})
		h.ViewByCustomName(c)
	}
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
