package router

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/locaro/venue-api/internal/handler"
	broadcasthandler "github.com/locaro/venue-api/internal/handler/broadcast"
	venuehandler "github.com/locaro/venue-api/internal/handler/venue"
	webhookhandler "github.com/locaro/venue-api/internal/handler/webhook"
	"github.com/locaro/venue-api/internal/middleware"
	"github.com/locaro/venue-api/pkg/clock"
)

type Router struct {
	engine     *gin.Engine
	venueH     *venuehandler.Handler
	broadcastH *broadcasthandler.Handler
	webhookH   *webhookhandler.Handler
	h          *handler.Handler
	rdb        *redis.Client
	clk        clock.Clock
	config     Config
	metrics    *routerMetrics
}

type routerMetrics struct {
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
}

type Config struct {
	RateLimit     rate.Limit
	RateBurst     int
	CORSConfig    middleware.CORSConfig
	MetricsPrefix string
}

func NewRouter(
	venueH *venuehandler.Handler,
	broadcastH *broadcasthandler.Handler,
	webhookH *webhookhandler.Handler,
	h *handler.Handler,
	rdb *redis.Client,
	clk clock.Clock,
	config Config,
) *Router {
	gin.SetMode(gin.ReleaseMode)

	return &Router{
		engine:     gin.New(),
		venueH:     venueH,
		broadcastH: broadcastH,
		webhookH:   webhookH,
		h:          h,
		rdb:        rdb,
		clk:        clk,
		config:     config,
		metrics:    initRouterMetrics(config.MetricsPrefix),
	}
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}

func (r *Router) Setup() {
	r.engine.Use(middleware.RequestID())
	r.engine.Use(middleware.Recovery())
	r.engine.Use(middleware.Logger())
	r.engine.Use(middleware.Timeout(middleware.DefaultTimeoutConfig()))
	r.engine.Use(middleware.SizeLimit(middleware.DefaultSizeLimitConfig()))
	r.engine.Use(r.metricsMiddleware())

	r.engine.GET("/health", r.h.ReadinessCheck)
	r.engine.GET("/health/live", r.h.LivenessCheck)
	r.engine.GET("/metrics", r.h.MetricsHandler)

	// Provider callbacks: authenticated by HMAC signature, so outside the
	// public CORS/rate-limit surface.
	r.webhookH.RegisterRoutes(r.engine.Group(""))

	api := r.engine.Group("/api/v1")
	api.Use(middleware.CORS(r.config.CORSConfig))
	if r.config.RateLimit > 0 {
		limiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
			Rate:  r.config.RateLimit,
			Burst: r.config.RateBurst,
		})
		api.Use(limiter.RateLimit())
	}
	// Only the listing is epoch-cacheable: its order is fixed within one
	// rotation window. Broadcast reads must see live delivery state, which
	// webhooks mutate at any moment.
	venues := api.Group("")
	venues.Use(middleware.PageCache(r.rdb, r.clk))
	r.venueH.RegisterRoutes(venues)

	r.broadcastH.RegisterRoutes(api)
}

func initRouterMetrics(prefix string) *routerMetrics {
	if prefix == "" {
		prefix = "venue_api"
	}
	return &routerMetrics{
		requestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    fmt.Sprintf("%s_request_duration_seconds", prefix),
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		requestTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: fmt.Sprintf("%s_requests_total", prefix),
			Help: "HTTP requests",
		}, []string{"method", "path", "status"}),
	}
}

func (r *Router) metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := fmt.Sprintf("%d", c.Writer.Status())
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		r.metrics.requestDuration.WithLabelValues(c.Request.Method, path, status).Observe(time.Since(start).Seconds())
		r.metrics.requestTotal.WithLabelValues(c.Request.Method, path, status).Inc()
	}
}
