package clinic

import (
	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/clinic-platform/internal/handler"
	"github.com/jwalitptl/clinic-platform/internal/model"
	"github.com/jwalitptl/clinic-platform/internal/service/clinic"
)

type Handler struct {
	svc *clinic.Service
}

func NewHandler(svc *clinic.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterPublicRoutes(r *gin.RouterGroup) {
	r.GET("/clinics/:slug", h.GetBySlug)
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	clinics := r.Group("/clinics")
	{
		clinics.POST("", h.CreateClinic)
		clinics.GET("", h.ListClinics)
		clinics.GET("/:id", h.GetClinic)
		clinics.PUT("/:id", h.UpdateClinic)
		clinics.DELETE("/:id", h.DeleteClinic)

		clinics.GET("/:id/members", h.ListMembers)
		clinics.POST("/:id/members", h.AddMember)
		clinics.DELETE("/:id/members/:userId", h.RemoveMember)
	}
}

func (h *Handler) GetBySlug(c *gin.Context) {
	page, err := h.svc.GetBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.OK(c, page)
}

func (h *Handler) CreateClinic(c *gin.Context) {
	var req model.CreateClinicRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	clinic, err := h.svc.Create(c.Request.Context(), handler.CurrentActor(c).ID, &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.Created(c, clinic)
}

func (h *Handler) ListClinics(c *gin.Context) {
	clinics, err := h.svc.ListMine(c.Request.Context(), handler.CurrentActor(c).ID)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.OK(c, clinics)
}

func (h *Handler) GetClinic(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}

	clinic, err := h.svc.Get(c.Request.Context(), handler.CurrentActor(c), id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.OK(c, clinic)
}

func (h *Handler) UpdateClinic(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}
	var req model.UpdateClinicRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	clinic, err := h.svc.Update(c.Request.Context(), handler.CurrentActor(c), id, &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.OK(c, clinic)
}

func (h *Handler) DeleteClinic(c *gin.Context) {
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

func (h *Handler) ListMembers(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}

	members, err := h.svc.ListMembers(c.Request.Context(), handler.CurrentActor(c), id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.OK(c, members)
}

func (h *Handler) AddMember(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}
	var req model.AddMemberRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	member, err := h.svc.AddMember(c.Request.Context(), handler.CurrentActor(c), id, req.UserID)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.Created(c, member)
}

func (h *Handler) RemoveMember(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}
	userID, ok := handler.ParamID(c, "userId")
	if !ok {
		return
	}

	if err := h.svc.RemoveMember(c.Request.Context(), handler.CurrentActor(c), id, userID); err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.NoContent(c)
}
