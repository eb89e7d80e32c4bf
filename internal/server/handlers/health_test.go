package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/3leaps/beamspotlive/internal/errors"
)

func failing(msg string) Checker {
	return CheckerFunc(func(context.Context) error { return errors.New(msg) })
}

func passing() Checker {
	return CheckerFunc(func(context.Context) error { return nil })
}

func blocking() Checker {
	return CheckerFunc(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
}

func withGlobalManager(t *testing.T, m *HealthManager) {
	t.Helper()
	globalMu.Lock()
	original := globalHealthManager
	globalHealthManager = m
	globalMu.Unlock()
	t.Cleanup(func() {
		globalMu.Lock()
		globalHealthManager = original
		globalMu.Unlock()
	})
}

func TestHealthHandler_Healthy(t *testing.T) {
	m := NewHealthManager("1.2.3")
	m.RegisterChecker("ledger", passing())
	m.RegisterChecker("identity", passing())

	rec := httptest.NewRecorder()
	m.HealthHandler(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, StatusHealthy, resp.Status)
	assert.Equal(t, "1.2.3", resp.Version)
	assert.Equal(t, map[string]string{"ledger": StatusHealthy, "identity": StatusHealthy}, resp.Checks)
	assert.False(t, resp.Timestamp.IsZero())
}

func TestHealthHandler_UnhealthyLedger(t *testing.T) {
	m := NewHealthManager("1.2.3")
	m.RegisterChecker("ledger", failing("database is locked"))
	m.RegisterChecker("identity", passing())

	rec := httptest.NewRecorder()
	m.HealthHandler(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var resp apperrors.HTTPErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, apperrors.CodeServiceUnavailable, resp.Error.Code)

	checks, ok := resp.Error.Details["checks"].(map[string]any)
	require.True(t, ok, "details should carry the per-check status")
	assert.Equal(t, StatusUnhealthy, checks["ledger"])
	assert.Equal(t, StatusHealthy, checks["identity"])
}

func TestRunChecks_TimeoutIsDegraded(t *testing.T) {
	if testing.Short() {
		t.Skip("waits for the check timeout")
	}
	m := NewHealthManager("dev")
	m.RegisterChecker("ledger", blocking())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	checks := m.runChecks(ctx)
	assert.Equal(t, StatusTimeout, checks["ledger"])
	assert.Equal(t, StatusDegraded, m.determineOverallStatus(checks))
}

func TestDetermineOverallStatus(t *testing.T) {
	m := NewHealthManager("dev")

	tests := []struct {
		name   string
		checks map[string]string
		want   string
	}{
		{name: "no checks", checks: nil, want: StatusHealthy},
		{name: "all healthy", checks: map[string]string{"ledger": StatusHealthy, "signals": StatusHealthy}, want: StatusHealthy},
		{name: "timeout degrades", checks: map[string]string{"ledger": StatusTimeout, "signals": StatusHealthy}, want: StatusDegraded},
		{name: "unhealthy wins over timeout", checks: map[string]string{"ledger": StatusTimeout, "identity": StatusUnhealthy}, want: StatusUnhealthy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, m.determineOverallStatus(tt.checks))
		})
	}
}

func TestLivenessIgnoresCheckers(t *testing.T) {
	m := NewHealthManager("dev")
	m.RegisterChecker("ledger", failing("down"))

	for _, h := range []http.HandlerFunc{m.LivenessHandler, m.StartupHandler} {
		rec := httptest.NewRecorder()
		h(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	}

	rec := httptest.NewRecorder()
	m.ReadinessHandler(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestInitAndGetHealthManager(t *testing.T) {
	withGlobalManager(t, nil)
	assert.Nil(t, GetHealthManager())

	m := InitHealthManager("test-version")
	require.NotNil(t, m)
	assert.Same(t, m, GetHealthManager())
}

func TestGlobalHandlers(t *testing.T) {
	handlers := []struct {
		name    string
		path    string
		handler http.HandlerFunc
	}{
		{"HealthHandler", "/health", HealthHandler},
		{"LivenessHandler", "/health/live", LivenessHandler},
		{"ReadinessHandler", "/health/ready", ReadinessHandler},
		{"StartupHandler", "/health/startup", StartupHandler},
	}

	t.Run("initialized", func(t *testing.T) {
		withGlobalManager(t, NewHealthManager("test-version"))
		for _, h := range handlers {
			rec := httptest.NewRecorder()
			h.handler(rec, httptest.NewRequest(http.MethodGet, h.path, nil))
			assert.Equal(t, http.StatusOK, rec.Code, h.name)
		}
	})

	t.Run("not initialized", func(t *testing.T) {
		withGlobalManager(t, nil)
		for _, h := range handlers {
			rec := httptest.NewRecorder()
			h.handler(rec, httptest.NewRequest(http.MethodGet, h.path, nil))
			assert.Equal(t, http.StatusServiceUnavailable, rec.Code, h.name)
		}
	})
}
