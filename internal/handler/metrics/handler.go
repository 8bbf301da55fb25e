package metrics

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Handler struct {
	gatherer prometheus.Gatherer
}

// NewHandler serves gatherer, or the default registry when nil.
func NewHandler(gatherer prometheus.Gatherer) *Handler {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return &Handler{gatherer: gatherer}
}

func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{})))
}
