package health

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// Pinger reports whether the storage backend is reachable.
type Pinger func(ctx context.Context) error

type Handler struct {
	ping Pinger
}

func NewHandler(ping Pinger) *Handler {
	return &Handler{ping: ping}
}

func (h *Handler) RegisterRoutes(r gin.IRouter) {
	health := r.Group("/health")
	{
		health.GET("/live", h.LivenessCheck)
		health.GET("/ready", h.ReadinessCheck)
	}
}

func (h *Handler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "UP"})
}

func (h *Handler) ReadinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if h.ping != nil {
		if err := h.ping(ctx); err != nil {
			log.Warn().Err(err).Msg("Readiness check failed")
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "DOWN",
				"reason": "Database connection failed",
			})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "UP"})
}
