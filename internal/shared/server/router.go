package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"medicare-backend/internal/notify"
	"medicare-backend/internal/shared/config"
	"medicare-backend/internal/shared/metrics"
	"medicare-backend/internal/shared/server/middleware"
	"medicare-backend/internal/shared/server/respond"
	"medicare-backend/internal/symptoms"
)

const (
	apiPrefix  = "/api/v1"
	healthPath = apiPrefix + "/health"
	streamPath = apiPrefix + "/symptoms/stream"
	pollPath   = apiPrefix + "/symptoms/analysis/:id"
)

// Clients poll a session until it is terminal, so polling gets its own bucket.
var pollingRule = middleware.RateLimitRule{Rate: 5, Burst: 20}

// RouterDeps carries the handlers and shared state the router mounts.
type RouterDeps struct {
	Config          config.Config
	SymptomsHandler *symptoms.Handler
	Hub             *notify.Hub
	// Health reports readiness of backing stores; nil means always healthy.
	Health func() error
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

	r.GET("/metrics", metrics.Handler())

	api := r.Group(apiPrefix)
	api.Use(
		middleware.Auth(middleware.AuthConfig{
			PublicPaths:     []string{healthPath},
			QueryTokenPaths: []string{streamPath},
		}),
		middleware.RateLimit(middleware.RateLimitConfig{
			GroupFor: rateLimitGroup,
			Rules: map[string]middleware.RateLimitRule{
				"DEFAULT": {Rate: deps.Config.APIRatePerSecond, Burst: deps.Config.APIRateBurst},
				"POLLING": pollingRule,
			},
		}),
	)

	api.GET("/health", healthHandler(deps.Health))
	registerMeRoutes(api)
	if deps.Hub != nil {
		api.GET("/symptoms/stream", notify.Handler(deps.Hub, notify.HandlerConfig{
			AllowedOrigins: deps.Config.CORSAllowOrigin,
		}))
	}
	if deps.SymptomsHandler != nil {
		deps.SymptomsHandler.RegisterRoutes(api)
	}

	return r
}

func rateLimitGroup(c *gin.Context) string {
	if c.Request.Method == http.MethodGet && c.FullPath() == pollPath {
		return "POLLING"
	}
	return "DEFAULT"
}

func healthHandler(check func() error) gin.HandlerFunc {
	return func(c *gin.Context) {
		if check != nil {
			if err := check(); err != nil {
				respond.JSON(c, http.StatusServiceUnavailable, gin.H{"ok": false, "error": err.Error()})
				return
			}
		}
		respond.JSON(c, http.StatusOK, gin.H{"ok": true})
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
