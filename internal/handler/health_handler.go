package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/GTDGit/catalog_api/internal/repository"
	"github.com/GTDGit/catalog_api/internal/service"
	"github.com/GTDGit/catalog_api/internal/utils"
)

var startTime = time.Now()

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler provides health endpoint.
type HealthHandler struct {
	gateway repository.Gateway
	catalog *service.CatalogService
	redis   Pinger
}

// NewHealthHandler creates a new HealthHandler. redis may be nil.
func NewHealthHandler(gateway repository.Gateway, catalog *service.CatalogService, redis Pinger) *HealthHandler {
	return &HealthHandler{gateway: gateway, catalog: catalog, redis: redis}
}

// GetHealth responds with service, store and catalog status.
func (h *HealthHandler) GetHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	storeStatus := "connected"
	if err := h.gateway.Ping(ctx); err != nil {
		storeStatus = "disconnected"
	}

	redisStatus := "disabled"
	if h.redis != nil {
		redisStatus = "connected"
		if err := h.redis.Ping(ctx); err != nil {
			redisStatus = "disconnected"
		}
	}

	utils.Success(c, 200, "Service is healthy", gin.H{
		"status":  "healthy",
		"version": "1.0.0",
		"uptime":  int(time.Since(startTime).Seconds()),
		"store":   gin.H{"status": storeStatus},
		"redis":   gin.H{"status": redisStatus},
		"catalog": h.catalog.State(),
	})
}
