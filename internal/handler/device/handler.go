package device

import (
	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/clinic-platform/internal/handler"
	"github.com/jwalitptl/clinic-platform/internal/model"
	"github.com/jwalitptl/clinic-platform/internal/service/notification"
)

// Handler manages push device registrations for the signed-in user.
type Handler struct {
	svc *notification.Service
}

func NewHandler(svc *notification.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	devices := r.Group("/devices")
	{
		devices.GET("", h.ListDevices)
		devices.POST("", h.RegisterDevice)
		devices.DELETE("/:token", h.UnregisterDevice)
	}
}

func (h *Handler) ListDevices(c *gin.Context) {
	devices, err := h.svc.ListDevices(c.Request.Context(), handler.CurrentActor(c).ID)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.OK(c, devices)
}

func (h *Handler) RegisterDevice(c *gin.Context) {
	var req model.RegisterDeviceRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	device, err := h.svc.RegisterDevice(c.Request.Context(), handler.CurrentActor(c).ID, &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.Created(c, device)
}

func (h *Handler) UnregisterDevice(c *gin.Context) {
	if err := h.svc.UnregisterDevice(c.Request.Context(), handler.CurrentActor(c).ID, c.Param("token")); err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.NoContent(c)
}
