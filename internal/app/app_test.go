package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-platform/internal/config"
	"github.com/jwalitptl/clinic-platform/internal/model"
	"github.com/jwalitptl/clinic-platform/internal/repository/memory"
	"github.com/jwalitptl/clinic-platform/pkg/logger"
	"github.com/jwalitptl/clinic-platform/pkg/messaging"
)

func testConfig() *config.Config {
	return &config.Config{
		Server:   config.ServerConfig{Port: 8080, Mode: gin.TestMode, AllowedOrigins: []string{"*"}},
		Database: config.DatabaseConfig{Driver: "memory"},
		JWT: config.JWTConfig{
			Secret:        "test-secret",
			RefreshSecret: "test-refresh-secret",
			AccessExpiry:  time.Hour,
			RefreshExpiry: 24 * time.Hour,
			Issuer:        "clinic-test",
		},
		Outbox: config.OutboxConfig{
			BatchSize:     10,
			PollInterval:  time.Second,
			RetryAttempts: 3,
			RetryDelay:    time.Second,
		},
		Email:     config.EmailConfig{Provider: "log", FrontendURL: "http://localhost:3000"},
		Referral:  config.ReferralConfig{CodeLength: 8, MaxAttempts: 10},
		Reminders: config.ReminderConfig{LeadTime: time.Hour, Interval: time.Hour, ExpiryInterval: time.Hour},
		Security:  config.SecurityConfig{BcryptCost: 4, MaxLoginAttempts: 5, LockoutDuration: time.Minute},
	}
}

type testServer struct {
	t      *testing.T
	app    *App
	engine *gin.Engine
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	a, err := New(context.Background(), testConfig(),
		WithStore(memory.NewStore()),
		WithBroker(messaging.NewMemoryBroker()),
		WithRegistry(prometheus.NewRegistry()),
		WithLogger(logger.Nop()),
	)
	require.NoError(t, err)
	t.Cleanup(a.Close)
	return &testServer{t: t, app: a, engine: a.Router().Engine()}
}

func (s *testServer) do(method, path, token string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)

	var out map[string]interface{}
	if w.Body.Len() > 0 {
		_ = json.Unmarshal(w.Body.Bytes(), &out)
	}
	return w, out
}

func (s *testServer) register(email, role string) string {
	s.t.Helper()
	w, body := s.do(http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"email":      email,
		"password":   "correct-horse",
		"first_name": "Test",
		"last_name":  "User",
		"role":       role,
	})
	require.Equal(s.t, http.StatusCreated, w.Code, w.Body.String())
	data := body["data"].(map[string]interface{})
	return data["access_token"].(string)
}

func TestRouter_Health(t *testing.T) {
	s := newTestServer(t)

	w, body := s.do(http.MethodGet, "/health/live", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "UP", body["status"])

	w, _ = s.do(http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = s.do(http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_RequiresToken(t *testing.T) {
	s := newTestServer(t)

	w, body := s.do(http.MethodGet, "/api/v1/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "error", body["status"])
}

func TestRouter_RegisterLoginFlow(t *testing.T) {
	s := newTestServer(t)
	s.register("doc@example.com", "doctor")

	w, body := s.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email":    "doc@example.com",
		"password": "correct-horse",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	token := body["data"].(map[string]interface{})["access_token"].(string)

	w, body = s.do(http.MethodGet, "/api/v1/auth/me", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	me := body["data"].(map[string]interface{})
	assert.Equal(t, "doc@example.com", me["email"])
	assert.Equal(t, "doctor", me["role"])
	assert.NotEmpty(t, me["referral_code"])

	w, _ = s.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email":    "doc@example.com",
		"password": "wrong-password",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRouter_RegisterValidation(t *testing.T) {
	s := newTestServer(t)

	w, body := s.do(http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"email":    "not-an-email",
		"password": "short",
		"role":     "admin",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "validation failed", body["message"])
}

func TestRouter_RoleGroups(t *testing.T) {
	s := newTestServer(t)
	doctor := s.register("doc@example.com", "doctor")
	patient := s.register("pat@example.com", "patient")

	w, _ := s.do(http.MethodGet, "/api/v1/protocols", patient, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = s.do(http.MethodGet, "/api/v1/mobile/today", doctor, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = s.do(http.MethodGet, "/api/v1/admin/users", doctor, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = s.do(http.MethodGet, "/api/v1/protocols", doctor, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = s.do(http.MethodGet, "/api/v1/mobile/today", patient, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_AdminRoutes(t *testing.T) {
	s := newTestServer(t)
	_, err := s.app.Services.Auth.CreateAdmin(context.Background(), "root@example.com", "correct-horse", "Root", "Admin")
	require.NoError(t, err)

	w, body := s.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email":    "root@example.com",
		"password": "correct-horse",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	token := body["data"].(map[string]interface{})["access_token"].(string)

	w, _ = s.do(http.MethodGet, "/api/v1/admin/users", token, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	sub, err := s.app.Services.Subscriptions.Subscribe(context.Background(), uuid.New(), model.PlanFree)
	require.NoError(t, err)
	w, _ = s.do(http.MethodPost, "/api/v1/admin/payments", token, map[string]interface{}{
		"subscription_id": sub.ID,
		"amount_cents":    0,
		"reference":       "comp-1",
	})
	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w, _ = s.do(http.MethodPost, "/api/v1/admin/payments", token, map[string]interface{}{
		"subscription_id": sub.ID,
		"amount_cents":    -5,
		"reference":       "comp-2",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRouter_PublicClinicPage(t *testing.T) {
	s := newTestServer(t)
	doctor := s.register("doc@example.com", "doctor")

	w, _ := s.do(http.MethodPost, "/api/v1/clinics", doctor, map[string]string{
		"name": "Harbor Physio",
		"slug": "harbor-physio",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w, body := s.do(http.MethodGet, "/api/v1/public/clinics/harbor-physio", "", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Header().Get("Cache-Control"), "max-age=300")
	page := body["data"].(map[string]interface{})
	assert.Equal(t, "Harbor Physio", page["name"])
	assert.Len(t, page["doctors"], 1)

	w, _ = s.do(http.MethodGet, "/api/v1/public/clinics/missing", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestApp_OutboxPublishesEvents(t *testing.T) {
	s := newTestServer(t)
	broker := s.app.Broker

	sub, err := broker.Subscribe(context.Background(), messaging.EventsChannel)
	require.NoError(t, err)

	s.register("doc@example.com", "doctor")

	processor, err := s.app.OutboxProcessor()
	require.NoError(t, err)
	n, err := processor.ProcessBatch(context.Background())
	require.NoError(t, err)
	require.Positive(t, n)

	select {
	case raw := <-sub:
		var msg messaging.Message
		require.NoError(t, json.Unmarshal(raw, &msg))
		assert.NotEmpty(t, msg.Type)
	case <-time.After(time.Second):
		t.Fatal("no event published")
	}
}

func TestApp_Scheduler(t *testing.T) {
	s := newTestServer(t)

	sched, err := s.app.Scheduler()
	require.NoError(t, err)
	require.NotNil(t, sched)
}
