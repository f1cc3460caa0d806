package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/church-web/sermon-feed-go/internal/metrics"
	"github.com/church-web/sermon-feed-go/internal/middleware"
)

// RouterConfig collects the handlers and middleware the router mounts.
// Nil handlers leave their routes unregistered.
type RouterConfig struct {
	Sermons     *SermonHandler
	Proxy       *FeedProxyHandler
	Health      *HealthHandler
	Auth        *middleware.APIKeyAuth
	Metrics     *metrics.Metrics
	MetricsPath string
}

// NewRouter builds the gin engine with recovery, request logging and metrics.
func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(), middleware.Metrics(cfg.Metrics))

	if cfg.Health != nil {
		health := r.Group("/health")
		health.GET("/live", cfg.Health.LivenessProbe)
		health.GET("/ready", cfg.Health.ReadinessProbe)
	}

	if cfg.Metrics != nil {
		path := cfg.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.GET(path, gin.WrapH(cfg.Metrics.Handler()))
	}

	if cfg.Proxy != nil {
		r.GET("/api/youtube", cfg.Proxy.ServeFeed)
	}

	if cfg.Sermons != nil {
		v1 := r.Group("/api/v1")
		v1.GET("/sermons", cfg.Sermons.ListSermons)
		v1.GET("/sermons/latest", cfg.Sermons.LatestSermons)
		v1.GET("/sermons/clean-title", cfg.Sermons.CleanTitle)

		auth := cfg.Auth
		if auth == nil {
			auth = middleware.NewAPIKeyAuth(nil)
		}
		admin := v1.Group("/admin", auth.Middleware())
		admin.POST("/refresh", cfg.Sermons.Refresh)
		admin.GET("/fetches", cfg.Sermons.RecentFetches)
	}

	return r
}
