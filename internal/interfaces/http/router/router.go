// Package router 提供 HTTP 路由配置
package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"vidsum-ai-api/internal/config"
	"vidsum-ai-api/internal/interfaces/http/handler"
	"vidsum-ai-api/internal/interfaces/http/middleware"
)

// Handlers 路由依赖的处理器集合
type Handlers struct {
	Health *handler.HealthHandler
	Video  *handler.VideoHandler
	Search *handler.SearchHandler
	Job    *handler.JobHandler
}

// Router HTTP 路由器
type Router struct {
	engine *gin.Engine
	cfg    *config.Config
}

// New 创建路由器；limiter 为 nil 时不限流
func New(cfg *config.Config, h Handlers, limiter middleware.RateLimiter, keyFn middleware.KeyFunc) *Router {
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := &Router{engine: gin.New(), cfg: cfg}
	r.setupMiddleware(limiter, keyFn)
	r.setupRoutes(h)
	return r
}

// Engine 返回 Gin Engine
func (r *Router) Engine() *gin.Engine {
	return r.engine
}

func (r *Router) setupMiddleware(limiter middleware.RateLimiter, keyFn middleware.KeyFunc) {
	r.engine.Use(middleware.Recovery())
	r.engine.Use(middleware.RequestID())
	r.engine.Use(middleware.CORS(r.cfg.Security.CORS))

	if r.cfg.Observability.Tracing.Enabled {
		r.engine.Use(middleware.Trace(r.cfg.App.Name)...)
	}
	if r.cfg.Observability.Metrics.Enabled {
		r.engine.Use(middleware.Metrics(r.metricsPath(), "/health", "/live", "/ready"))
	}

	rl := r.cfg.Security.RateLimit
	r.engine.Use(middleware.RateLimit(middleware.RateLimitConfig{
		Enabled:           rl.Enabled,
		RequestsPerSecond: rl.RequestsPerSecond,
		Burst:             rl.Burst,
	}, limiter, keyFn))
}

func (r *Router) metricsPath() string {
	if p := r.cfg.Observability.Metrics.Path; p != "" {
		return p
	}
	return "/metrics"
}

func (r *Router) setupRoutes(h Handlers) {
	r.engine.GET("/", h.Health.Banner)
	r.engine.GET("/health", h.Health.Health)
	r.engine.GET("/ready", h.Health.Ready)
	r.engine.GET("/live", h.Health.Live)

	if r.cfg.Observability.Metrics.Enabled {
		r.engine.GET(r.metricsPath(), gin.WrapH(promhttp.Handler()))
	}

	RegisterLegacyRoutes(r.engine, h.Video, h.Search)
	RegisterV1Routes(r.engine.Group("/v1"), h.Video, h.Search, h.Job)
}
