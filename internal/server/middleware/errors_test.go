package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/3leaps/beamspotlive/internal/errors"
)

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestRecovery(t *testing.T) {
	tests := []struct {
		name     string
		handler  http.HandlerFunc
		wantCode int
		wantBody string
		wantMsg  string
	}{
		{
			name: "passes through",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte("resolved"))
			},
			wantCode: http.StatusOK,
			wantBody: "resolved",
		},
		{
			name: "string panic",
			handler: func(w http.ResponseWriter, r *http.Request) {
				panic("pset lookup failed")
			},
			wantCode: http.StatusInternalServerError,
			wantMsg:  "panic: pset lookup failed",
		},
		{
			name: "error panic",
			handler: func(w http.ResponseWriter, r *http.Request) {
				panic(assert.AnError)
			},
			wantCode: http.StatusInternalServerError,
			wantMsg:  "panic: " + assert.AnError.Error(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			require.NotPanics(t, func() {
				Recovery(tt.handler).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/resolve", nil))
			})
			assert.Equal(t, tt.wantCode, rec.Code)
			if tt.wantMsg == "" {
				assert.Equal(t, tt.wantBody, rec.Body.String())
				return
			}
			body := decodeEnvelope(t, rec)
			assert.Equal(t, apperrors.CodeInternal, body.Error.Code)
			assert.Equal(t, tt.wantMsg, body.Error.Message)
		})
	}
}

func TestRecovery_RepanicsOnAbort(t *testing.T) {
	h := Recovery(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(http.ErrAbortHandler)
	}))
	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})
}

func TestRequestIDReachesEnvelope(t *testing.T) {
	boom := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { panic("boom") })

	t.Run("propagated from header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/resolve", nil)
		req.Header.Set("X-Request-ID", "run-367100")
		rec := httptest.NewRecorder()
		RequestID(Recovery(boom)).ServeHTTP(rec, req)

		assert.Equal(t, "run-367100", decodeEnvelope(t, rec).Error.RequestID)
	})

	t.Run("generated when absent", func(t *testing.T) {
		rec := httptest.NewRecorder()
		RequestID(Recovery(boom)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/resolve", nil))

		assert.NotEmpty(t, decodeEnvelope(t, rec).Error.RequestID)
	})
}

func TestWriteErrorResponse(t *testing.T) {
	tests := []struct {
		name string
		err  *apperrors.AppError
	}{
		{name: "bad request", err: apperrors.NewBadRequest("run_type is required")},
		{name: "rate limited", err: apperrors.NewRateLimited("slow down")},
		{
			name: "configuration error with field",
			err: apperrors.New(apperrors.CodeConfiguration, http.StatusBadRequest, "file replay on a playback system").
				WithDetails(map[string]any{"field": "playback"}),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeErrorResponse(rec, httptest.NewRequest(http.MethodGet, "/", nil), tt.err)
			require.Equal(t, tt.err.Status, rec.Code)

			body := decodeEnvelope(t, rec)
			assert.Equal(t, tt.err.Code, body.Error.Code)
			assert.Equal(t, tt.err.Message, body.Error.Message)
			for k, v := range tt.err.Details {
				assert.Equal(t, v, body.Error.Details[k])
			}
		})
	}
}
