package auth

import (
	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/clinic-platform/internal/handler"
	"github.com/jwalitptl/clinic-platform/internal/model"
	"github.com/jwalitptl/clinic-platform/internal/service/auth"
)

type Handler struct {
	svc *auth.Service
}

func NewHandler(svc *auth.Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterPublicRoutes mounts the unauthenticated token endpoints.
func (h *Handler) RegisterPublicRoutes(r *gin.RouterGroup) {
	auth := r.Group("/auth")
	{
		auth.POST("/register", h.Register)
		auth.POST("/login", h.Login)
		auth.POST("/refresh", h.Refresh)
	}
}

// RegisterRoutes mounts the profile endpoints for any signed-in user.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	me := r.Group("/auth/me")
	{
		me.GET("", h.Me)
		me.PUT("", h.UpdateProfile)
		me.POST("/password", h.ChangePassword)
	}
}

func (h *Handler) Register(c *gin.Context) {
	var req model.RegisterRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	tokens, err := h.svc.Register(c.Request.Context(), &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.Created(c, tokens)
}

func (h *Handler) Login(c *gin.Context) {
	var req model.LoginRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	tokens, err := h.svc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.OK(c, tokens)
}

func (h *Handler) Refresh(c *gin.Context) {
	var req model.RefreshTokenRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	tokens, err := h.svc.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.OK(c, tokens)
}

func (h *Handler) Me(c *gin.Context) {
	user, err := h.svc.Me(c.Request.Context(), handler.CurrentActor(c).ID)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.OK(c, user)
}

func (h *Handler) UpdateProfile(c *gin.Context) {
	var req model.UpdateProfileRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	user, err := h.svc.UpdateProfile(c.Request.Context(), handler.CurrentActor(c).ID, &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.OK(c, user)
}

func (h *Handler) ChangePassword(c *gin.Context) {
	var req model.ChangePasswordRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	if err := h.svc.ChangePassword(c.Request.Context(), handler.CurrentActor(c).ID, &req); err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.NoContent(c)
}
