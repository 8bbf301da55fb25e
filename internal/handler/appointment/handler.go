package appointment

import (
	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/clinic-platform/internal/handler"
	"github.com/jwalitptl/clinic-platform/internal/model"
	"github.com/jwalitptl/clinic-platform/internal/service/appointment"
)

type Handler struct {
	service *appointment.Service
}

func NewHandler(service *appointment.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	appointments := r.Group("/appointments")
	{
		appointments.POST("", h.BookAppointment)
		appointments.GET("", h.ListForDoctor)
		appointments.GET("/:id", h.GetAppointment)
		appointments.PUT("/:id", h.RescheduleAppointment)
		appointments.POST("/:id/cancel", h.CancelAppointment)
		appointments.POST("/:id/complete", h.CompleteAppointment)
	}
}

func (h *Handler) RegisterMobileRoutes(r *gin.RouterGroup) {
	appointments := r.Group("/appointments")
	{
		appointments.GET("", h.ListForPatient)
		appointments.GET("/:id", h.GetAppointment)
		appointments.POST("/:id/cancel", h.CancelAppointment)
	}
}

func (h *Handler) BookAppointment(c *gin.Context) {
	var req model.CreateAppointmentRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	apt, err := h.service.Book(c.Request.Context(), handler.CurrentActor(c).ID, &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.Created(c, apt)
}

// filters reads status, from and to; both list endpoints share them.
func (h *Handler) filters(c *gin.Context) (*model.AppointmentFilters, bool) {
	from, ok := handler.QueryTime(c, "from")
	if !ok {
		return nil, false
	}
	to, ok := handler.QueryTime(c, "to")
	if !ok {
		return nil, false
	}
	return &model.AppointmentFilters{
		Status: model.AppointmentStatus(c.Query("status")),
		From:   from,
		To:     to,
	}, true
}

func (h *Handler) ListForDoctor(c *gin.Context) {
	filters, ok := h.filters(c)
	if !ok {
		return
	}
	if filters.PatientID, ok = handler.QueryUUID(c, "patient_id"); !ok {
		return
	}
	doctorID := handler.CurrentActor(c).ID
	filters.DoctorID = &doctorID
	h.list(c, filters)
}

func (h *Handler) ListForPatient(c *gin.Context) {
	filters, ok := h.filters(c)
	if !ok {
		return
	}
	patientID := handler.CurrentActor(c).ID
	filters.PatientID = &patientID
	h.list(c, filters)
}

func (h *Handler) list(c *gin.Context, filters *model.AppointmentFilters) {
	list, err := h.service.List(c.Request.Context(), filters)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.OK(c, list)
}

func (h *Handler) GetAppointment(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}

	apt, err := h.service.Get(c.Request.Context(), handler.CurrentActor(c), id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.OK(c, apt)
}

func (h *Handler) RescheduleAppointment(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}
	var req model.RescheduleAppointmentRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	apt, err := h.service.Reschedule(c.Request.Context(), handler.CurrentActor(c), id, &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.OK(c, apt)
}

func (h *Handler) CancelAppointment(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}
	var req model.CancelAppointmentRequest
	if c.Request.ContentLength > 0 && !handler.BindJSON(c, &req) {
		return
	}

	apt, err := h.service.Cancel(c.Request.Context(), handler.CurrentActor(c), id, req.Reason)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.OK(c, apt)
}

func (h *Handler) CompleteAppointment(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}

	apt, err := h.service.Complete(c.Request.Context(), handler.CurrentActor(c), id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.OK(c, apt)
}
