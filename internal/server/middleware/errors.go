package middleware

import (
	"fmt"
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	apperrors "github.com/3leaps/beamspotlive/internal/errors"
	"github.com/3leaps/beamspotlive/internal/observability"
)

// ErrorResponse is the JSON error envelope written by this package.
type ErrorResponse = apperrors.HTTPErrorResponse

// Recovery turns a panic into a 500 JSON error envelope.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}

			msg := fmt.Sprintf("panic: %v", rec)
			observability.CLILogger.Error("Recovered from handler panic",
				zap.String("panic", msg),
				zap.String("path", r.URL.Path),
				zap.String("request_id", chimw.GetReqID(r.Context())))

			writeErrorResponse(w, r, apperrors.New(apperrors.CodeInternal, http.StatusInternalServerError, msg))
		}()
		next.ServeHTTP(w, r)
	})
}

// RequestID assigns or propagates X-Request-ID.
func RequestID(next http.Handler) http.Handler {
	return chimw.RequestID(next)
}

func writeErrorResponse(w http.ResponseWriter, r *http.Request, appErr *apperrors.AppError) {
	body := ErrorResponse{Error: apperrors.HTTPError{
		Code:      appErr.Code,
		Message:   appErr.Message,
		Details:   appErr.Details,
		RequestID: chimw.GetReqID(r.Context()),
	}}
	apperrors.WriteJSON(w, appErr.Status, body)
}
