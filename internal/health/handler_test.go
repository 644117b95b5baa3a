package health_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/d9705996/huddle/internal/api/jsonapi"
	"github.com/d9705996/huddle/internal/health"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockPinger is an in-test implementation of health.Pinger.
type mockPinger struct{ err error }

func (m *mockPinger) Ping(_ context.Context) error { return m.err }

func ready(h *health.Handler) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/ready", nil)
	w := httptest.NewRecorder()
	h.ServeReady(w, req)
	return w
}

func TestServeHealth_AlwaysOK(t *testing.T) {
	h := health.New(health.Check{Name: "database", Pinger: &mockPinger{err: errors.New("down")}})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	w := httptest.NewRecorder()
	h.ServeHealth(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/vnd.api+json", w.Header().Get("Content-Type"))

	var doc jsonapi.Document
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))
	assert.NotNil(t, doc.Data)
}

func TestServeReady_AllHealthy(t *testing.T) {
	w := ready(health.New(
		health.Check{Name: "database", Pinger: &mockPinger{}},
		health.Check{Name: "redis", Pinger: &mockPinger{}},
	))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"redis":"ok"`)
}

func TestServeReady_OneUnhealthy(t *testing.T) {
	w := ready(health.New(
		health.Check{Name: "database", Pinger: &mockPinger{}},
		health.Check{Name: "redis", Pinger: &mockPinger{err: errors.New("connection refused")}},
	))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var doc jsonapi.ErrorDocument
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))
	require.Len(t, doc.Errors, 1)
	assert.Equal(t, "dependency_unavailable", doc.Errors[0].Code)
	assert.Equal(t, "redis", doc.Errors[0].Source.Parameter)
	assert.Contains(t, doc.Errors[0].Detail, "connection refused")
}

func TestServeReady_NilPinger(t *testing.T) {
	w := ready(health.New(health.Check{Name: "database"}))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
