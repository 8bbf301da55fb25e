package audit

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/clinic-platform/internal/handler"
	"github.com/jwalitptl/clinic-platform/internal/model"
	"github.com/jwalitptl/clinic-platform/internal/service/audit"
	apperrors "github.com/jwalitptl/clinic-platform/pkg/errors"
	"github.com/jwalitptl/clinic-platform/pkg/httputil"
)

// exportLimit caps a single CSV export.
const exportLimit = 10000

type Handler struct {
	service *audit.Service
}

func NewHandler(service *audit.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	audit := r.Group("/audit")
	{
		audit.GET("/logs", h.ListLogs)
		audit.GET("/export", h.ExportLogs)
		audit.GET("/stats", h.GetStats)
	}
}

func (h *Handler) filters(c *gin.Context) (*model.AuditFilters, bool) {
	userID, ok := handler.QueryUUID(c, "user_id")
	if !ok {
		return nil, false
	}
	from, ok := handler.QueryTime(c, "from")
	if !ok {
		return nil, false
	}
	to, ok := handler.QueryTime(c, "to")
	if !ok {
		return nil, false
	}
	return &model.AuditFilters{
		UserID:     userID,
		EntityType: c.Query("entity_type"),
		Action:     c.Query("action"),
		From:       from,
		To:         to,
	}, true
}

func (h *Handler) ListLogs(c *gin.Context) {
	filters, ok := h.filters(c)
	if !ok {
		return
	}
	page, pageSize := httputil.ParsePagination(c)
	filters.Limit = pageSize
	filters.Offset = httputil.Offset(page, pageSize)

	logs, total, err := h.service.List(c.Request.Context(), filters)
	if err != nil {
		handler.RespondError(c, apperrors.Internal(err))
		return
	}
	handler.OK(c, httputil.NewPaginated(logs, page, pageSize, int(total)))
}

func (h *Handler) ExportLogs(c *gin.Context) {
	filters, ok := h.filters(c)
	if !ok {
		return
	}
	filters.Limit = exportLimit

	logs, _, err := h.service.List(c.Request.Context(), filters)
	if err != nil {
		handler.RespondError(c, apperrors.Internal(err))
		return
	}

	filename := fmt.Sprintf("audit_logs_%s.csv", time.Now().Format("20060102_150405"))
	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))

	if err := writeCSV(c.Writer, logs); err != nil {
		log.Error().Err(err).Int("rows", len(logs)).Msg("audit export interrupted")
		_ = c.Error(err)
	}
}

var exportHeader = []string{
	"ID", "User ID", "Action", "Entity Type", "Entity ID", "Changes", "IP Address", "User Agent", "Created At",
}

func writeCSV(w io.Writer, logs []*model.AuditLog) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(exportHeader); err != nil {
		return err
	}
	for _, entry := range logs {
		changes := ""
		if len(entry.Changes) > 0 {
			raw, err := json.Marshal(entry.Changes)
			if err != nil {
				return fmt.Errorf("encode changes of %s: %w", entry.ID, err)
			}
			changes = string(raw)
		}
		if err := writer.Write([]string{
			entry.ID.String(),
			optionalID(entry.UserID),
			entry.Action,
			entry.EntityType,
			optionalID(entry.EntityID),
			changes,
			entry.IPAddress,
			entry.UserAgent,
			entry.CreatedAt.Format(time.RFC3339),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func (h *Handler) GetStats(c *gin.Context) {
	filters, ok := h.filters(c)
	if !ok {
		return
	}
	if filters.From.IsZero() {
		filters.From = time.Now().AddDate(0, 0, -7)
	}

	stats, err := h.service.Stats(c.Request.Context(), filters)
	if err != nil {
		handler.RespondError(c, apperrors.Internal(err))
		return
	}
	handler.OK(c, stats)
}

func optionalID(id *uuid.UUID) string {
	if id == nil {
		return ""
	}
	return id.String()
}
