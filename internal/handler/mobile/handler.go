// Package mobile serves the patient app's composite screens.
package mobile

import (
	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/clinic-platform/internal/handler"
	"github.com/jwalitptl/clinic-platform/internal/model"
	"github.com/jwalitptl/clinic-platform/internal/service/auth"
	"github.com/jwalitptl/clinic-platform/internal/service/habit"
	"github.com/jwalitptl/clinic-platform/internal/service/prescription"
	"github.com/jwalitptl/clinic-platform/internal/service/relationship"
)

type Handler struct {
	users         *auth.Service
	relationships *relationship.Service
	prescriptions *prescription.Service
	habits        *habit.Service
}

func NewHandler(users *auth.Service, relationships *relationship.Service,
	prescriptions *prescription.Service, habits *habit.Service) *Handler {
	return &Handler{
		users:         users,
		relationships: relationships,
		prescriptions: prescriptions,
		habits:        habits,
	}
}

type MeResponse struct {
	User    *model.User         `json:"user"`
	Doctors []*model.LinkedUser `json:"doctors"`
}

type TodayResponse struct {
	Prescriptions []*model.PrescriptionProgress `json:"prescriptions"`
	Habits        []*model.HabitSummary         `json:"habits"`
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/me", h.Me)
	r.GET("/today", h.Today)
}

func (h *Handler) Me(c *gin.Context) {
	ctx := c.Request.Context()
	actor := handler.CurrentActor(c)

	user, err := h.users.Me(ctx, actor.ID)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	doctors, err := h.relationships.ListDoctors(ctx, actor.ID)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.OK(c, MeResponse{User: user, Doctors: doctors})
}

// Today lists the sessions due today across active prescriptions together
// with the patient's habits.
func (h *Handler) Today(c *gin.Context) {
	ctx := c.Request.Context()
	actor := handler.CurrentActor(c)

	prescriptions, err := h.prescriptions.Today(ctx, actor.ID)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	habits, err := h.habits.List(ctx, actor, actor.ID, false)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.OK(c, TodayResponse{Prescriptions: prescriptions, Habits: habits})
}
