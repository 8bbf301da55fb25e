package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/clinic-platform/internal/service"
	apperrors "github.com/jwalitptl/clinic-platform/pkg/errors"
	"github.com/jwalitptl/clinic-platform/pkg/validator"
)

// Context keys set by the auth middleware.
const (
	ContextUserID = "user_id"
	ContextRole   = "user_role"
)

type Response struct {
	Status  string                 `json:"status"`
	Message string                 `json:"message,omitempty"`
	Data    interface{}            `json:"data,omitempty"`
	Errors  []validator.FieldError `json:"errors,omitempty"`
}

func NewSuccessResponse(data interface{}) *Response {
	return &Response{
		Status: "success",
		Data:   data,
	}
}

func NewErrorResponse(message string) *Response {
	return &Response{
		Status:  "error",
		Message: message,
	}
}

// RespondError maps err onto the error envelope. Unknown errors become 500s
// and are logged; their details never reach the client.
func RespondError(c *gin.Context, err error) {
	appErr, ok := apperrors.As(err)
	if !ok {
		appErr = apperrors.Internal(err)
	}
	status := appErr.HTTPStatus()
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).
			Str("path", c.FullPath()).
			Str("request_id", c.GetString("request_id")).
			Msg("Request failed")
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, NewErrorResponse(appErr.Message))
}

// BindJSON decodes and validates the body, writing a 400 on failure.
func BindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		resp := NewErrorResponse("invalid request body")
		if fields, ok := validator.Describe(err); ok {
			resp.Message = "validation failed"
			resp.Errors = fields
		}
		c.AbortWithStatusJSON(http.StatusBadRequest, resp)
		return false
	}
	return true
}

// ParamID parses a UUID path parameter, writing a 400 on failure.
func ParamID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, NewErrorResponse("invalid "+name))
		return uuid.Nil, false
	}
	return id, true
}

// QueryUUID parses an optional UUID query parameter, writing a 400 when it is malformed.
func QueryUUID(c *gin.Context, name string) (*uuid.UUID, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, NewErrorResponse("invalid "+name))
		return nil, false
	}
	return &id, true
}

// QueryTime parses an optional RFC 3339 query parameter.
func QueryTime(c *gin.Context, name string) (time.Time, bool) {
	raw := c.Query(name)
	if raw == "" {
		return time.Time{}, true
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, NewErrorResponse("invalid "+name))
		return time.Time{}, false
	}
	return t, true
}

// CurrentActor returns the authenticated caller.
func CurrentActor(c *gin.Context) service.Actor {
	var a service.Actor
	if v, ok := c.Get(ContextUserID); ok {
		a.ID, _ = v.(uuid.UUID)
	}
	a.Role = c.GetString(ContextRole)
	return a
}

func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, NewSuccessResponse(data))
}

func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, NewSuccessResponse(data))
}

func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}
