package router

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/leadsla/internal/handler"
	"github.com/jwalitptl/leadsla/internal/middleware"
)

type Handler interface {
	RegisterRoutes(*gin.RouterGroup)
}

// CommandHandler also owns endpoints that start scans or send mail.
type CommandHandler interface {
	Handler
	RegisterCommandRoutes(*gin.RouterGroup)
}

type Router struct {
	engine        *gin.Engine
	h             *handler.Handler
	auditH        Handler
	slaH          CommandHandler
	notificationH CommandHandler
	commands      *middleware.RateLimiter
	metrics       *routerMetrics
}

type routerMetrics struct {
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	errorTotal      *prometheus.CounterVec
}

type RouterConfig struct {
	// CommandRate throttles the command endpoints across all callers.
	CommandRate   rate.Limit
	CommandBurst  int
	MetricsPrefix string
	Registerer    prometheus.Registerer
	Logger        *zerolog.Logger
}

func NewRouter(
	h *handler.Handler,
	auditH Handler,
	slaH CommandHandler,
	notificationH CommandHandler,
	config RouterConfig,
) *Router {
	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()

	if config.MetricsPrefix == "" {
		config.MetricsPrefix = "leadsla_http"
	}
	if config.CommandBurst <= 0 {
		config.CommandBurst = 1
	}
	if config.Logger == nil {
		nop := zerolog.Nop()
		config.Logger = &nop
	}

	metrics := initRouterMetrics(config.MetricsPrefix)
	if config.Registerer != nil {
		config.Registerer.MustRegister(metrics.requestDuration, metrics.requestTotal, metrics.errorTotal)
	}

	r := &Router{
		engine:        engine,
		h:             h,
		auditH:        auditH,
		slaH:          slaH,
		notificationH: notificationH,
		commands: middleware.NewRateLimiter(middleware.RateLimiterConfig{
			Rate:  config.CommandRate,
			Burst: config.CommandBurst,
		}),
		metrics: metrics,
	}

	engine.Use(
		middleware.RequestID(),
		middleware.Recovery(config.Logger),
		middleware.Logger(config.Logger),
		middleware.ErrorHandler(config.Logger),
		r.metricsMiddleware(),
	)

	return r
}

func (r *Router) Setup() {
	r.engine.GET("/metrics", r.h.MetricsHandler())

	api := r.engine.Group("/api/v1")
	api.Use(func(c *gin.Context) {
		c.Header("X-API-Version", "1.0")
		c.Next()
	})

	r.setupHealthCheck(api)

	r.auditH.RegisterRoutes(api)
	r.slaH.RegisterRoutes(api)
	r.notificationH.RegisterRoutes(api)

	commands := api.Group("")
	commands.Use(r.commands.RateLimit())
	r.slaH.RegisterCommandRoutes(commands)
	r.notificationH.RegisterCommandRoutes(commands)
}

func (r *Router) setupHealthCheck(rg *gin.RouterGroup) {
	health := rg.Group("/health")
	{
		health.GET("/live", r.h.LivenessCheck)
		health.GET("/ready", r.h.ReadinessCheck)
	}
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}

func initRouterMetrics(prefix string) *routerMetrics {
	return &routerMetrics{
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: prefix + "_request_duration_seconds",
				Help: "Duration of HTTP requests in seconds",
			},
			[]string{"method", "path", "status"},
		),
		requestTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		errorTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_errors_total",
				Help: "Total number of HTTP errors",
			},
			[]string{"method", "path", "type"},
		),
	}
}

func (r *Router) metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := fmt.Sprintf("%d", c.Writer.Status())
		duration := time.Since(start).Seconds()

		r.metrics.requestDuration.WithLabelValues(c.Request.Method, path, status).Observe(duration)
		r.metrics.requestTotal.WithLabelValues(c.Request.Method, path, status).Inc()

		if c.Writer.Status() >= 400 {
			errType := "client"
			if c.Writer.Status() >= 500 {
				errType = "server"
			}
			r.metrics.errorTotal.WithLabelValues(c.Request.Method, path, errType).Inc()
		}
	}
}
