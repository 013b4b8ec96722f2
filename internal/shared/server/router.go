package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"adreview-backend/internal/services/health"
	"adreview-backend/internal/shared/config"
	"adreview-backend/internal/shared/metrics"
	"adreview-backend/internal/shared/server/middleware"
	"adreview-backend/internal/shared/server/respond"
)

// RouteRegistrar attaches a handler's routes to the API group.
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// RouterDeps carries the handlers the router wires up. Nil handlers are
// skipped, which keeps partial wiring possible in tests.
type RouterDeps struct {
	Config config.Config
	Health *health.Service

	BatchHandler    RouteRegistrar
	AnalysisHandler RouteRegistrar
	FilingHandler   RouteRegistrar
	HistoryHandler  RouteRegistrar
	KeywordHandler  RouteRegistrar
	RegDocHandler   RouteRegistrar
}

const pollingGroup = "POLLING"

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
		middleware.RateLimit(middleware.RateLimitConfig{
			Rules: map[string]middleware.RateLimitRule{
				// Status polling clients are expected to back off to 1-2s.
				pollingGroup: {Rate: 2, Burst: 5},
			},
			GroupFor: func(c *gin.Context) string {
				if c.Request.Method == http.MethodGet && c.FullPath() == "/api/v1/batches/:id" {
					return pollingGroup
				}
				return ""
			},
		}),
	)

	r.GET("/metrics", metrics.Handler())

	healthSvc := deps.Health
	if healthSvc == nil {
		healthSvc = health.NewService()
	}

	api := r.Group("/api/v1")
	api.GET("/health", func(c *gin.Context) {
		respond.JSON(c, http.StatusOK, healthSvc.Status())
	})

	for _, h := range []RouteRegistrar{
		deps.BatchHandler,
		deps.AnalysisHandler,
		deps.FilingHandler,
		deps.HistoryHandler,
		deps.KeywordHandler,
		deps.RegDocHandler,
	} {
		if h != nil {
			h.RegisterRoutes(api)
		}
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
