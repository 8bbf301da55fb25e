package prescription

import (
	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/clinic-platform/internal/handler"
	"github.com/jwalitptl/clinic-platform/internal/model"
	"github.com/jwalitptl/clinic-platform/internal/service/prescription"
)

type Handler struct {
	svc *prescription.Service
}

func NewHandler(svc *prescription.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	prescriptions := r.Group("/prescriptions")
	{
		prescriptions.POST("", h.Assign)
		prescriptions.GET("", h.ListForDoctor)
		prescriptions.GET("/:id", h.GetPrescription)
		prescriptions.GET("/:id/progress", h.Progress)
		prescriptions.PATCH("/:id/status", h.UpdateStatus)
	}
}

// RegisterMobileRoutes mounts the patient's view of their prescriptions.
func (h *Handler) RegisterMobileRoutes(r *gin.RouterGroup) {
	prescriptions := r.Group("/prescriptions")
	{
		prescriptions.GET("", h.ListForPatient)
		prescriptions.GET("/:id", h.Progress)
		prescriptions.PATCH("/:id/status", h.UpdateStatus)
		prescriptions.POST("/:id/tasks/:taskId/complete", h.CompleteTask)
		prescriptions.DELETE("/:id/tasks/:taskId/complete", h.UncompleteTask)
	}
}

func (h *Handler) Assign(c *gin.Context) {
	var req model.AssignProtocolRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	p, err := h.svc.Assign(c.Request.Context(), handler.CurrentActor(c).ID, &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.Created(c, p)
}

func (h *Handler) ListForDoctor(c *gin.Context) {
	patientID, ok := handler.QueryUUID(c, "patient_id")
	if !ok {
		return
	}
	doctorID := handler.CurrentActor(c).ID
	h.list(c, &model.PrescriptionFilters{
		DoctorID:  &doctorID,
		PatientID: patientID,
		Status:    c.Query("status"),
	})
}

func (h *Handler) ListForPatient(c *gin.Context) {
	patientID := handler.CurrentActor(c).ID
	h.list(c, &model.PrescriptionFilters{
		PatientID: &patientID,
		Status:    c.Query("status"),
	})
}

func (h *Handler) list(c *gin.Context, filters *model.PrescriptionFilters) {
	list, err := h.svc.List(c.Request.Context(), filters)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.OK(c, list)
}

func (h *Handler) GetPrescription(c *gin.Context) {
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

func (h *Handler) Progress(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}

	progress, err := h.svc.Progress(c.Request.Context(), handler.CurrentActor(c), id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.OK(c, progress)
}

func (h *Handler) UpdateStatus(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}
	var req model.UpdatePrescriptionStatusRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	p, err := h.svc.UpdateStatus(c.Request.Context(), handler.CurrentActor(c), id, req.Status)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.OK(c, p)
}

func (h *Handler) CompleteTask(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}

	progress, err := h.svc.CompleteTask(c.Request.Context(), handler.CurrentActor(c).ID, id, c.Param("taskId"))
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.OK(c, progress)
}

func (h *Handler) UncompleteTask(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}

	progress, err := h.svc.UncompleteTask(c.Request.Context(), handler.CurrentActor(c).ID, id, c.Param("taskId"))
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.OK(c, progress)
}
