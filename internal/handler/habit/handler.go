package habit

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-platform/internal/handler"
	"github.com/jwalitptl/clinic-platform/internal/model"
	"github.com/jwalitptl/clinic-platform/internal/service/habit"
)

type Handler struct {
	svc *habit.Service
}

func NewHandler(svc *habit.Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the doctor's view of a linked patient's habits.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/patients/:id/habits", h.ListForPatient)
	r.POST("/patients/:id/habits", h.CreateForPatient)
	r.PUT("/habits/:id", h.UpdateHabit)
	r.POST("/habits/:id/archive", h.Archive)
	r.POST("/habits/:id/unarchive", h.Unarchive)
}

func (h *Handler) RegisterMobileRoutes(r *gin.RouterGroup) {
	habits := r.Group("/habits")
	{
		habits.GET("", h.ListMine)
		habits.POST("", h.CreateMine)
		habits.GET("/:id", h.GetHabit)
		habits.PUT("/:id", h.UpdateHabit)
		habits.POST("/:id/archive", h.Archive)
		habits.POST("/:id/unarchive", h.Unarchive)
		habits.POST("/:id/check-ins", h.CheckIn)
		habits.DELETE("/:id/check-ins/:date", h.UndoCheckIn)
	}
}

func (h *Handler) ListForPatient(c *gin.Context) {
	patientID, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}
	h.list(c, patientID)
}

func (h *Handler) ListMine(c *gin.Context) {
	h.list(c, handler.CurrentActor(c).ID)
}

func (h *Handler) list(c *gin.Context, patientID uuid.UUID) {
	archived, _ := strconv.ParseBool(c.Query("archived"))
	list, err := h.svc.List(c.Request.Context(), handler.CurrentActor(c), patientID, archived)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.OK(c, list)
}

func (h *Handler) CreateForPatient(c *gin.Context) {
	patientID, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}
	h.create(c, patientID)
}

func (h *Handler) CreateMine(c *gin.Context) {
	h.create(c, handler.CurrentActor(c).ID)
}

func (h *Handler) create(c *gin.Context, patientID uuid.UUID) {
	var req model.HabitRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	habit, err := h.svc.Create(c.Request.Context(), handler.CurrentActor(c), patientID, &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.Created(c, habit)
}

func (h *Handler) GetHabit(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}

	habit, err := h.svc.Get(c.Request.Context(), handler.CurrentActor(c), id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.OK(c, habit)
}

func (h *Handler) UpdateHabit(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}
	var req model.HabitRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	habit, err := h.svc.Update(c.Request.Context(), handler.CurrentActor(c), id, &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.OK(c, habit)
}

func (h *Handler) Archive(c *gin.Context)   { h.setArchived(c, true) }
func (h *Handler) Unarchive(c *gin.Context) { h.setArchived(c, false) }

func (h *Handler) setArchived(c *gin.Context, archived bool) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}

	habit, err := h.svc.SetArchived(c.Request.Context(), handler.CurrentActor(c), id, archived)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.OK(c, habit)
}

func (h *Handler) CheckIn(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}
	var req model.CheckInRequest
	if c.Request.ContentLength > 0 && !handler.BindJSON(c, &req) {
		return
	}

	summary, err := h.svc.CheckIn(c.Request.Context(), handler.CurrentActor(c).ID, id, req.Date)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.OK(c, summary)
}

func (h *Handler) UndoCheckIn(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}

	summary, err := h.svc.UndoCheckIn(c.Request.Context(), handler.CurrentActor(c).ID, id, c.Param("date"))
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.OK(c, summary)
}
