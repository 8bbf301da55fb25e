package referral

import (
	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/clinic-platform/internal/handler"
	"github.com/jwalitptl/clinic-platform/internal/service/referral"
)

type Handler struct {
	svc *referral.Service
}

func NewHandler(svc *referral.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterPublicRoutes(r *gin.RouterGroup) {
	r.GET("/referrals/:code", h.Lookup)
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	refs := r.Group("/referrals")
	{
		refs.GET("", h.ListMine)
		refs.GET("/stats", h.Stats)
	}
}

func (h *Handler) Lookup(c *gin.Context) {
	lookup, err := h.svc.Lookup(c.Request.Context(), c.Param("code"))
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.OK(c, lookup)
}

func (h *Handler) ListMine(c *gin.Context) {
	refs, err := h.svc.ListMine(c.Request.Context(), handler.CurrentActor(c).ID)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.OK(c, refs)
}

func (h *Handler) Stats(c *gin.Context) {
	stats, err := h.svc.Stats(c.Request.Context(), handler.CurrentActor(c).ID)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.OK(c, stats)
}
