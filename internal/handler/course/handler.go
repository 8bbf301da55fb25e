package course

import (
	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/clinic-platform/internal/handler"
	"github.com/jwalitptl/clinic-platform/internal/model"
	"github.com/jwalitptl/clinic-platform/internal/service/course"
)

type Handler struct {
	svc *course.Service
}

func NewHandler(svc *course.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	courses := r.Group("/courses")
	{
		courses.POST("", h.CreateCourse)
		courses.GET("", h.ListCourses)
		courses.GET("/:id", h.GetCourse)
		courses.PUT("/:id", h.UpdateCourse)
		courses.DELETE("/:id", h.DeleteCourse)
		courses.POST("/:id/publish", h.Publish)
		courses.POST("/:id/unpublish", h.Unpublish)
		courses.POST("/:id/enrollments", h.Enroll)
	}
}

// RegisterMobileRoutes mounts the patient's enrolled courses.
func (h *Handler) RegisterMobileRoutes(r *gin.RouterGroup) {
	courses := r.Group("/courses")
	{
		courses.GET("", h.ListEnrollments)
		courses.GET("/:id", h.GetCourse)
		courses.GET("/:id/progress", h.Progress)
		courses.POST("/:id/lessons/:lessonId/complete", h.CompleteLesson)
	}
}

func (h *Handler) CreateCourse(c *gin.Context) {
	var req model.CourseRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	course, err := h.svc.Create(c.Request.Context(), handler.CurrentActor(c).ID, &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.Created(c, course)
}

func (h *Handler) ListCourses(c *gin.Context) {
	courses, err := h.svc.List(c.Request.Context(), handler.CurrentActor(c).ID)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.OK(c, courses)
}

func (h *Handler) GetCourse(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}

	course, err := h.svc.Get(c.Request.Context(), handler.CurrentActor(c), id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.OK(c, course)
}

func (h *Handler) UpdateCourse(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}
	var req model.CourseRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	course, err := h.svc.Update(c.Request.Context(), handler.CurrentActor(c), id, &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.OK(c, course)
}

func (h *Handler) DeleteCourse(c *gin.Context) {
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

func (h *Handler) Publish(c *gin.Context)   { h.setPublished(c, true) }
func (h *Handler) Unpublish(c *gin.Context) { h.setPublished(c, false) }

func (h *Handler) setPublished(c *gin.Context, published bool) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}

	course, err := h.svc.SetPublished(c.Request.Context(), handler.CurrentActor(c), id, published)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.OK(c, course)
}

func (h *Handler) Enroll(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}
	var req model.EnrollRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	enrollment, err := h.svc.Enroll(c.Request.Context(), handler.CurrentActor(c), id, req.PatientID)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.Created(c, enrollment)
}

func (h *Handler) ListEnrollments(c *gin.Context) {
	list, err := h.svc.ListEnrollments(c.Request.Context(), handler.CurrentActor(c).ID)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.OK(c, list)
}

func (h *Handler) Progress(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}

	progress, err := h.svc.Progress(c.Request.Context(), handler.CurrentActor(c).ID, id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.OK(c, progress)
}

func (h *Handler) CompleteLesson(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}

	progress, err := h.svc.CompleteLesson(c.Request.Context(), handler.CurrentActor(c).ID, id, c.Param("lessonId"))
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	handler.OK(c, progress)
}
