package health_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relaydesk/internal/platform/health"
)

func newRouter(h *health.Handler) chi.Router {
	r := chi.NewRouter()
	h.Register(r)
	return r
}

func TestLivenessAlwaysUp(t *testing.T) {
	h := health.New("test")
	h.RegisterCheck("postgres", func() error { return errors.New("connection refused") })

	rec := httptest.NewRecorder()
	newRouter(h).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestReadinessReportsBackends(t *testing.T) {
	h := health.New("test")
	h.RegisterCheck("postgres", func() error { return nil })
	h.RegisterCheck("redis", func() error { return errors.New("connection refused") })

	rec := httptest.NewRecorder()
	newRouter(h).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var resp health.ReadinessResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "not_ready", resp.Status)
	assert.Equal(t, "up", resp.Backends["postgres"])
	assert.Equal(t, "down: connection refused", resp.Backends["redis"])
}

func TestReadinessWithHealthyBackends(t *testing.T) {
	h := health.New("test")
	h.RegisterCheck("postgres", func() error { return nil })

	rec := httptest.NewRecorder()
	newRouter(h).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp health.ReadinessResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ready", resp.Status)
}

func TestStatusNamesTheService(t *testing.T) {
	rec := httptest.NewRecorder()
	newRouter(health.New("production")).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp health.StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "relaydesk", resp.Service)
	assert.Equal(t, "production", resp.Environment)
	assert.NotEmpty(t, resp.ServerTime)
}
