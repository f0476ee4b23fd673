package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/taskchat/taskchat/pkg/logger"
	"github.com/taskchat/taskchat/pkg/version"
)

const (
	statusHealthy  = "healthy"
	statusReady    = "ready"
	statusNotReady = "not_ready"
	readyTimeout   = 2 * time.Second
)

// Liveness endpoint
//
//	@Summary	Get server health
//	@Tags		health
//	@Produce	json
//	@Success	200	{object}	map[string]any	"Process is up"
//	@Router		/health [get]
func CreateHealthHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  statusHealthy,
			"version": version.Get().Version,
		})
	}
}

// Readiness endpoint
//
//	@Summary	Get server readiness
//	@Tags		health
//	@Produce	json
//	@Success	200	{object}	map[string]any	"Store reachable"
//	@Failure	503	{object}	map[string]any	"Store unreachable"
//	@Router		/ready [get]
func CreateReadyHandler(store readinessChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		if store == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": statusNotReady, "store": gin.H{"ready": false}})
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), readyTimeout)
		defer cancel()
		if err := store.HealthCheck(ctx); err != nil {
			logger.FromContext(ctx).Warn("Readiness probe failed", "error", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": statusNotReady, "store": gin.H{"ready": false}})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": statusReady, "store": gin.H{"ready": true}})
	}
}
