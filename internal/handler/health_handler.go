// Package handler provides HTTP request handlers for the application.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const readinessTimeout = 2 * time.Second

// Pinger is implemented by the repository and the feed cache.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthReporter is implemented by *service.MessagePublisher.
type HealthReporter interface {
	IsHealthy() bool
}

// HealthHandler handles health check endpoints. Every dependency is optional.
type HealthHandler struct {
	db        Pinger
	publisher HealthReporter
	cache     Pinger
	poller    FeedSnapshot
}

// NewHealthHandler creates a new HealthHandler instance.
func NewHealthHandler(db Pinger, publisher HealthReporter, cache Pinger, poller FeedSnapshot) *HealthHandler {
	return &HealthHandler{
		db:        db,
		publisher: publisher,
		cache:     cache,
		poller:    poller,
	}
}

// LivenessProbe checks if the application is running.
func (h *HealthHandler) LivenessProbe(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "UP",
		"time":   time.Now(),
	})
}

// ReadinessProbe reports DOWN when the database or RabbitMQ is unreachable.
// A missing snapshot or an unreachable cache only degrade the report, since
// the pipeline still answers with fallback data.
func (h *HealthHandler) ReadinessProbe(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), readinessTimeout)
	defer cancel()

	body := gin.H{"time": time.Now()}
	status := http.StatusOK

	if h.db != nil {
		if err := h.db.Ping(ctx); err != nil {
			body["database"] = "unhealthy"
			body["error"] = err.Error()
			status = http.StatusServiceUnavailable
		} else {
			body["database"] = "healthy"
		}
	}

	if h.publisher != nil {
		if h.publisher.IsHealthy() {
			body["rabbitmq"] = "healthy"
		} else {
			body["rabbitmq"] = "unhealthy"
			status = http.StatusServiceUnavailable
		}
	}

	if h.cache != nil {
		if err := h.cache.Ping(ctx); err != nil {
			body["redis"] = "degraded"
		} else {
			body["redis"] = "healthy"
		}
	}

	if h.poller != nil {
		if result, gen, err := h.poller.Latest(); err != nil {
			body["feed"] = "pending"
		} else {
			body["feed"] = string(result.Status)
			body["generation"] = gen
		}
	}

	if status == http.StatusOK {
		body["status"] = "UP"
	} else {
		body["status"] = "DOWN"
	}
	c.JSON(status, body)
}
