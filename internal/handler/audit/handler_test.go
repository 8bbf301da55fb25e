package audit

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-platform/internal/model"
	"github.com/jwalitptl/clinic-platform/internal/repository/memory"
	"github.com/jwalitptl/clinic-platform/internal/service/audit"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func setup(t *testing.T) (*gin.Engine, *audit.Service) {
	t.Helper()
	svc := audit.NewService(memory.NewStore().Audit)
	r := gin.New()
	NewHandler(svc).RegisterRoutes(r.Group("/admin"))
	return r, svc
}

func get(r http.Handler, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestHandler_ExportLogs(t *testing.T) {
	r, svc := setup(t)
	ctx := audit.WithClient(context.Background(), "192.0.2.1", "Mozilla/5.0 (X11, Linux)")
	userID, clinicID := uuid.New(), uuid.New()

	svc.Record(ctx, userID, model.AuditActionUpdate, "clinic", clinicID, map[string]interface{}{"name": `North, "Main"`})
	svc.Record(ctx, userID, model.AuditActionCreate, "protocol", uuid.New(), nil)

	w := get(r, "/admin/audit/export?entity_type=clinic")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "attachment; filename=audit_logs_")

	rows, err := csv.NewReader(strings.NewReader(w.Body.String())).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, exportHeader, rows[0])

	row := rows[1]
	assert.Equal(t, userID.String(), row[1])
	assert.Equal(t, model.AuditActionUpdate, row[2])
	assert.Equal(t, "clinic", row[3])
	assert.Equal(t, clinicID.String(), row[4])
	assert.Equal(t, "192.0.2.1", row[6])
	assert.Equal(t, "Mozilla/5.0 (X11, Linux)", row[7])

	var changes map[string]string
	require.NoError(t, json.Unmarshal([]byte(row[5]), &changes))
	assert.Equal(t, `North, "Main"`, changes["name"])
}

func TestHandler_ListAndStats(t *testing.T) {
	r, svc := setup(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		svc.Record(ctx, uuid.New(), model.AuditActionCreate, "course", uuid.New(), nil)
	}

	w := get(r, "/admin/audit/logs?page_size=2")
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Data struct {
			Items      []model.AuditLog `json:"items"`
			Pagination struct {
				Total int `json:"total"`
			} `json:"pagination"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Len(t, list.Data.Items, 2)
	assert.Equal(t, 3, list.Data.Pagination.Total)

	w = get(r, "/admin/audit/stats")
	require.Equal(t, http.StatusOK, w.Code)
	var stats struct {
		Data model.AuditStats `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.EqualValues(t, 3, stats.Data.TotalLogs)
	assert.Equal(t, 3, stats.Data.EntityCounts["course"])

	w = get(r, "/admin/audit/logs?from=yesterday")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

type brokenWriter struct{}

func (brokenWriter) Write([]byte) (int, error) { return 0, errors.New("connection reset") }

func TestWriteCSV_ReportsWriteErrors(t *testing.T) {
	logs := []*model.AuditLog{{ID: uuid.New(), Action: model.AuditActionRead, EntityType: "user"}}
	assert.EqualError(t, writeCSV(brokenWriter{}, logs), "connection reset")
}
