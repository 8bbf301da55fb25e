package relationship

import (
	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/clinic-platform/internal/handler"
	"github.com/jwalitptl/clinic-platform/internal/model"
	"github.com/jwalitptl/clinic-platform/internal/service/relationship"
	"github.com/jwalitptl/clinic-platform/pkg/httputil"
)

type Handler struct {
	svc *relationship.Service
}

func NewHandler(svc *relationship.Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the doctor's patient list.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	patients := r.Group("/patients")
	{
		patients.POST("", h.LinkPatient)
		patients.POST("/invite", h.InvitePatient)
		patients.GET("", h.ListPatients)
		patients.GET("/:id", h.GetPatient)
		patients.DELETE("/:id", h.UnlinkPatient)
	}
}

// RegisterSharedRoutes mounts endpoints either party of a relationship may call.
func (h *Handler) RegisterSharedRoutes(r *gin.RouterGroup) {
	rels := r.Group("/relationships")
	{
		rels.PUT("/:id/primary", h.SetPrimary)
		rels.DELETE("/:id", h.Unlink)
	}
}

func (h *Handler) LinkPatient(c *gin.Context) {
	var req model.LinkPatientRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	rel, err := h.svc.Link(c.Request.Context(), handler.CurrentActor(c).ID, &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.Created(c, rel)
}

func (h *Handler) InvitePatient(c *gin.Context) {
	var req model.InvitePatientRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	rel, patient, err := h.svc.InvitePatient(c.Request.Context(), handler.CurrentActor(c).ID, &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.Created(c, gin.H{"relationship": rel, "patient": patient})
}

func (h *Handler) ListPatients(c *gin.Context) {
	page, pageSize := httputil.ParsePagination(c)
	opts := model.ListOptions{
		Search: c.Query("search"),
		Limit:  pageSize,
		Offset: httputil.Offset(page, pageSize),
	}

	patients, err := h.svc.ListPatients(c.Request.Context(), handler.CurrentActor(c).ID, opts)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.OK(c, patients)
}

func (h *Handler) GetPatient(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}

	patient, err := h.svc.GetPatient(c.Request.Context(), handler.CurrentActor(c).ID, id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.OK(c, patient)
}

func (h *Handler) UnlinkPatient(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}

	if err := h.svc.UnlinkPatient(c.Request.Context(), handler.CurrentActor(c).ID, id); err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.NoContent(c)
}

func (h *Handler) SetPrimary(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}

	rel, err := h.svc.SetPrimary(c.Request.Context(), handler.CurrentActor(c), id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.OK(c, rel)
}

func (h *Handler) Unlink(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}

	if err := h.svc.Unlink(c.Request.Context(), handler.CurrentActor(c), id); err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.NoContent(c)
}
