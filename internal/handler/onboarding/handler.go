package onboarding

import (
	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/clinic-platform/internal/handler"
	"github.com/jwalitptl/clinic-platform/internal/model"
	"github.com/jwalitptl/clinic-platform/internal/service/onboarding"
)

type Handler struct {
	svc *onboarding.Service
}

func NewHandler(svc *onboarding.Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterPublicRoutes mounts the invite pages opened from the emailed link.
func (h *Handler) RegisterPublicRoutes(r *gin.RouterGroup) {
	r.GET("/onboarding/:token", h.GetInvite)
	r.POST("/onboarding/:token", h.Submit)
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	ob := r.Group("/onboarding")
	{
		ob.POST("/templates", h.CreateTemplate)
		ob.GET("/templates", h.ListTemplates)
		ob.GET("/templates/:id", h.GetTemplate)
		ob.PUT("/templates/:id", h.UpdateTemplate)
		ob.DELETE("/templates/:id", h.DeleteTemplate)
		ob.POST("/templates/:id/default", h.SetDefaultTemplate)

		ob.POST("/invites", h.SendInvite)
		ob.GET("/invites", h.ListInvites)

		ob.GET("/responses", h.ListResponses)
		ob.GET("/responses/:id", h.GetResponse)
	}
}

func (h *Handler) CreateTemplate(c *gin.Context) {
	var req model.OnboardingTemplateRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	tpl, err := h.svc.CreateTemplate(c.Request.Context(), handler.CurrentActor(c).ID, &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.Created(c, tpl)
}

func (h *Handler) ListTemplates(c *gin.Context) {
	templates, err := h.svc.ListTemplates(c.Request.Context(), handler.CurrentActor(c).ID)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.OK(c, templates)
}

func (h *Handler) GetTemplate(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}

	tpl, err := h.svc.GetTemplate(c.Request.Context(), handler.CurrentActor(c), id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.OK(c, tpl)
}

func (h *Handler) UpdateTemplate(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}
	var req model.OnboardingTemplateRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	tpl, err := h.svc.UpdateTemplate(c.Request.Context(), handler.CurrentActor(c), id, &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.OK(c, tpl)
}

func (h *Handler) DeleteTemplate(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}

	if err := h.svc.DeleteTemplate(c.Request.Context(), handler.CurrentActor(c), id); err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.NoContent(c)
}

func (h *Handler) SetDefaultTemplate(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}

	tpl, err := h.svc.SetDefaultTemplate(c.Request.Context(), handler.CurrentActor(c), id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.OK(c, tpl)
}

func (h *Handler) SendInvite(c *gin.Context) {
	var req model.SendInviteRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	inv, err := h.svc.SendInvite(c.Request.Context(), handler.CurrentActor(c).ID, &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.Created(c, inv)
}

func (h *Handler) ListInvites(c *gin.Context) {
	invites, err := h.svc.ListInvites(c.Request.Context(), handler.CurrentActor(c).ID)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.OK(c, invites)
}

func (h *Handler) GetInvite(c *gin.Context) {
	inv, err := h.svc.GetInvite(c.Request.Context(), c.Param("token"))
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.OK(c, inv)
}

func (h *Handler) Submit(c *gin.Context) {
	var req model.SubmitOnboardingRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	resp, err := h.svc.Submit(c.Request.Context(), c.Param("token"), &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.Created(c, gin.H{"id": resp.ID, "submitted_at": resp.CreatedAt})
}

func (h *Handler) ListResponses(c *gin.Context) {
	responses, err := h.svc.ListResponses(c.Request.Context(), handler.CurrentActor(c).ID)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.OK(c, responses)
}

func (h *Handler) GetResponse(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}

	resp, err := h.svc.GetResponse(c.Request.Context(), handler.CurrentActor(c), id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.OK(c, resp)
}
