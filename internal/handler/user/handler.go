package user

import (
	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/clinic-platform/internal/handler"
	"github.com/jwalitptl/clinic-platform/internal/model"
	"github.com/jwalitptl/clinic-platform/internal/service/auth"
	"github.com/jwalitptl/clinic-platform/pkg/httputil"
)

// Handler exposes account administration to admins.
type Handler struct {
	svc *auth.Service
}

func NewHandler(svc *auth.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	users := r.Group("/users")
	{
		users.GET("", h.ListUsers)
		users.GET("/:id", h.GetUser)
		users.PATCH("/:id/status", h.SetStatus)
	}
}

func (h *Handler) ListUsers(c *gin.Context) {
	page, pageSize := httputil.ParsePagination(c)
	filters := &model.UserFilters{
		Role:   c.Query("role"),
		Status: c.Query("status"),
		ListOptions: model.ListOptions{
			Search: c.Query("search"),
			Limit:  pageSize,
			Offset: httputil.Offset(page, pageSize),
		},
	}

	users, total, err := h.svc.ListUsers(c.Request.Context(), filters)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.OK(c, httputil.NewPaginated(users, page, pageSize, total))
}

func (h *Handler) GetUser(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}

	user, err := h.svc.Me(c.Request.Context(), id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.OK(c, user)
}

func (h *Handler) SetStatus(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}
	var req model.UpdateUserStatusRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	user, err := h.svc.SetStatus(c.Request.Context(), handler.CurrentActor(c).ID, id, req.Status)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.OK(c, user)
}
