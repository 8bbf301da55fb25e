package subscription

import (
	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/clinic-platform/internal/handler"
	"github.com/jwalitptl/clinic-platform/internal/model"
	"github.com/jwalitptl/clinic-platform/internal/service/subscription"
)

type Handler struct {
	svc *subscription.Service
}

func NewHandler(svc *subscription.Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the plan catalog for any signed-in user.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/plans", h.ListPlans)
}

// RegisterDoctorRoutes mounts the caller's own subscription.
func (h *Handler) RegisterDoctorRoutes(r *gin.RouterGroup) {
	sub := r.Group("/subscription")
	{
		sub.GET("", h.Overview)
		sub.GET("/usage", h.Usage)
		sub.POST("", h.Subscribe)
		sub.PUT("", h.ChangePlan)
		sub.DELETE("", h.Cancel)
	}
}

func (h *Handler) RegisterAdminRoutes(r *gin.RouterGroup) {
	r.PUT("/plans/:code", h.UpsertPlan)
	r.POST("/payments", h.RecordPayment)
}

func (h *Handler) ListPlans(c *gin.Context) {
	plans, err := h.svc.ListPlans(c.Request.Context())
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.OK(c, plans)
}

func (h *Handler) Overview(c *gin.Context) {
	overview, err := h.svc.Overview(c.Request.Context(), handler.CurrentActor(c).ID)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.OK(c, overview)
}

func (h *Handler) Usage(c *gin.Context) {
	usage, err := h.svc.Usage(c.Request.Context(), handler.CurrentActor(c).ID)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.OK(c, usage)
}

func (h *Handler) Subscribe(c *gin.Context) {
	var req model.SubscribeRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	sub, err := h.svc.Subscribe(c.Request.Context(), handler.CurrentActor(c).ID, req.PlanCode)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.Created(c, sub)
}

func (h *Handler) ChangePlan(c *gin.Context) {
	var req model.SubscribeRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	sub, err := h.svc.ChangePlan(c.Request.Context(), handler.CurrentActor(c).ID, req.PlanCode)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.OK(c, sub)
}

func (h *Handler) Cancel(c *gin.Context) {
	sub, err := h.svc.Cancel(c.Request.Context(), handler.CurrentActor(c).ID)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.OK(c, sub)
}

func (h *Handler) UpsertPlan(c *gin.Context) {
	var req model.PlanRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	plan := &model.Plan{
		Code:             c.Param("code"),
		Name:             req.Name,
		PriceCents:       req.PriceCents,
		Interval:         req.Interval,
		MaxPatients:      req.MaxPatients,
		MaxProtocols:     req.MaxProtocols,
		MaxCourses:       req.MaxCourses,
		MaxClinicMembers: req.MaxClinicMembers,
		Active:           req.Active,
	}
	if err := h.svc.UpsertPlan(c.Request.Context(), plan); err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.OK(c, plan)
}

func (h *Handler) RecordPayment(c *gin.Context) {
	var req model.RecordPaymentRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	payment, err := h.svc.RecordPayment(c.Request.Context(), &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.Created(c, payment)
}
