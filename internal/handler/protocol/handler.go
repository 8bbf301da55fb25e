package protocol

import (
	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/clinic-platform/internal/handler"
	"github.com/jwalitptl/clinic-platform/internal/model"
	"github.com/jwalitptl/clinic-platform/internal/service/protocol"
	"github.com/jwalitptl/clinic-platform/pkg/httputil"
)

type Handler struct {
	svc *protocol.Service
}

func NewHandler(svc *protocol.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	protocols := r.Group("/protocols")
	{
		protocols.POST("", h.CreateProtocol)
		protocols.GET("", h.ListProtocols)
		protocols.GET("/:id", h.GetProtocol)
		protocols.PUT("/:id", h.UpdateProtocol)
		protocols.DELETE("/:id", h.DeleteProtocol)
		protocols.POST("/:id/duplicate", h.DuplicateProtocol)
	}
}

func (h *Handler) CreateProtocol(c *gin.Context) {
	var req model.ProtocolRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	p, err := h.svc.Create(c.Request.Context(), handler.CurrentActor(c).ID, &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.Created(c, p)
}

func (h *Handler) ListProtocols(c *gin.Context) {
	page, pageSize := httputil.ParsePagination(c)
	opts := model.ListOptions{
		Search: c.Query("search"),
		Limit:  pageSize,
		Offset: httputil.Offset(page, pageSize),
	}

	protocols, err := h.svc.List(c.Request.Context(), handler.CurrentActor(c).ID, opts)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.OK(c, protocols)
}

func (h *Handler) GetProtocol(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}

	p, err := h.svc.Get(c.Request.Context(), handler.CurrentActor(c), id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.OK(c, p)
}

func (h *Handler) UpdateProtocol(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}
	var req model.ProtocolRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	p, err := h.svc.Update(c.Request.Context(), handler.CurrentActor(c), id, &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.OK(c, p)
}

func (h *Handler) DeleteProtocol(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}

	if err := h.svc.Delete(c.Request.Context(), handler.CurrentActor(c), id); err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.NoContent(c)
}

func (h *Handler) DuplicateProtocol(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}

	p, err := h.svc.Duplicate(c.Request.Context(), handler.CurrentActor(c), id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.Created(c, p)
}
