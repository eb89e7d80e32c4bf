package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/3leaps/beamspotlive/internal/errors"
	"github.com/3leaps/beamspotlive/pkg/selector"
)

func restoreResponder(t *testing.T) {
	t.Helper()
	original := httpErrorResponder
	t.Cleanup(func() { httpErrorResponder = original })
}

func TestDefaultResponderMapsResolveErrors(t *testing.T) {
	restoreResponder(t)
	ResetHTTPErrorResponder()

	tests := []struct {
		name      string
		err       error
		wantCode  string
		wantField string
	}{
		{
			name:      "configuration error",
			err:       &selector.ConfigurationError{Field: "playback", Reason: "file replay on a playback system"},
			wantCode:  apperrors.CodeConfiguration,
			wantField: "playback",
		},
		{
			name:      "invalid run number",
			err:       fmt.Errorf("destination: %w", selector.ErrInvalidRunNumber),
			wantCode:  apperrors.CodeInvalidRunNumber,
			wantField: "run_number",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			respondWithError(rec, httptest.NewRequest(http.MethodGet, "/v1/resolve", nil), tt.err)
			require.Equal(t, http.StatusBadRequest, rec.Code)

			var body apperrors.HTTPErrorResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			assert.Equal(t, tt.wantCode, body.Error.Code)
			assert.Equal(t, tt.wantField, body.Error.Details["field"])
		})
	}
}

func TestSetHTTPErrorResponder(t *testing.T) {
	restoreResponder(t)

	var captured error
	SetHTTPErrorResponder(func(w http.ResponseWriter, r *http.Request, err error) {
		captured = err
		w.WriteHeader(http.StatusTeapot)
	})

	rec := httptest.NewRecorder()
	respondWithError(rec, httptest.NewRequest(http.MethodGet, "/v1/resolve", nil), assert.AnError)
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, assert.AnError, captured)

	t.Run("nil restores the envelope writer", func(t *testing.T) {
		SetHTTPErrorResponder(nil)

		rec := httptest.NewRecorder()
		respondWithError(rec, httptest.NewRequest(http.MethodGet, "/", nil), assert.AnError)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	})
}

func TestResetHTTPErrorResponder(t *testing.T) {
	restoreResponder(t)

	customCalled := false
	SetHTTPErrorResponder(func(w http.ResponseWriter, r *http.Request, err error) {
		customCalled = true
	})
	ResetHTTPErrorResponder()

	rec := httptest.NewRecorder()
	respondWithError(rec, httptest.NewRequest(http.MethodGet, "/", nil), apperrors.NewNotFound("no such run"))
	assert.False(t, customCalled)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
