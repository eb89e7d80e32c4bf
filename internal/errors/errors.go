// Package errors defines the application error type and the JSON error
// envelope returned by the HTTP service.
package errors

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/3leaps/beamspotlive/pkg/inputs"
	"github.com/3leaps/beamspotlive/pkg/selector"
)

// Error codes used in HTTP responses.
const (
	CodeNotFound           = "NOT_FOUND"
	CodeMethodNotAllowed   = "METHOD_NOT_ALLOWED"
	CodeBadRequest         = "BAD_REQUEST"
	CodeConfiguration      = "CONFIGURATION_ERROR"
	CodeInvalidRunNumber   = "INVALID_RUN_NUMBER"
	CodeInvalidInputs      = "INVALID_INPUTS"
	CodeRateLimited        = "RATE_LIMITED"
	CodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	CodeExternalService    = "EXTERNAL_SERVICE_ERROR"
	CodeInternal           = "INTERNAL_ERROR"
)

// AppError carries an error code and HTTP status alongside the cause.
type AppError struct {
	Code    string
	Status  int
	Message string
	Details map[string]any
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetails returns a copy of e with details merged in.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	cp := *e
	cp.Details = make(map[string]any, len(e.Details)+len(details))
	for k, v := range e.Details {
		cp.Details[k] = v
	}
	for k, v := range details {
		cp.Details[k] = v
	}
	return &cp
}

// New creates an AppError.
func New(code string, status int, message string) *AppError {
	return &AppError{Code: code, Status: status, Message: message}
}

func NewNotFound(message string) *AppError {
	return New(CodeNotFound, http.StatusNotFound, message)
}

func NewMethodNotAllowed(message string) *AppError {
	return New(CodeMethodNotAllowed, http.StatusMethodNotAllowed, message)
}

func NewBadRequest(message string) *AppError {
	return New(CodeBadRequest, http.StatusBadRequest, message)
}

func NewRateLimited(message string) *AppError {
	return New(CodeRateLimited, http.StatusTooManyRequests, message)
}

func NewServiceUnavailable(message string) *AppError {
	return New(CodeServiceUnavailable, http.StatusServiceUnavailable, message)
}

// NewExternalServiceError reports a dependency the process could not reach.
func NewExternalServiceError(message string) *AppError {
	return New(CodeExternalService, http.StatusBadGateway, message)
}

// WrapInternal wraps err as an internal error. The context is accepted for
// call-site symmetry with request-scoped wrapping.
func WrapInternal(_ context.Context, err error, message string) *AppError {
	return &AppError{Code: CodeInternal, Status: http.StatusInternalServerError, Message: message, Err: err}
}

// FromResolveError classifies errors produced while resolving a job
// configuration. Unknown errors become internal errors.
func FromResolveError(err error) *AppError {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}

	var cfgErr *selector.ConfigurationError
	var verrs inputs.ValidationErrors
	switch {
	case stderrors.Is(err, selector.ErrInvalidRunNumber):
		return &AppError{Code: CodeInvalidRunNumber, Status: http.StatusBadRequest, Message: err.Error(), Err: err,
			Details: map[string]any{"field": "run_number"}}
	case stderrors.As(err, &cfgErr):
		e := &AppError{Code: CodeConfiguration, Status: http.StatusBadRequest, Message: err.Error(), Err: err}
		if cfgErr.Field != "" {
			e.Details = map[string]any{"field": cfgErr.Field}
		}
		return e
	case stderrors.Is(err, selector.ErrConfiguration):
		return &AppError{Code: CodeConfiguration, Status: http.StatusBadRequest, Message: err.Error(), Err: err}
	case stderrors.As(err, &verrs):
		problems := make([]string, 0, len(verrs))
		for _, v := range verrs {
			problems = append(problems, v.Error())
		}
		return &AppError{Code: CodeInvalidInputs, Status: http.StatusBadRequest, Message: "inputs failed validation", Err: err,
			Details: map[string]any{"problems": problems}}
	default:
		return WrapInternal(context.Background(), err, "internal error")
	}
}

// HTTPError is the body of the "error" member of the envelope.
type HTTPError struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
}

// HTTPErrorResponse is the JSON error envelope: {"error": {...}}.
type HTTPErrorResponse struct {
	Error HTTPError `json:"error"`
}

// RespondWithError writes err as a JSON error envelope.
func RespondWithError(w http.ResponseWriter, r *http.Request, err error) {
	appErr := FromResolveError(err)

	body := HTTPErrorResponse{Error: HTTPError{
		Code:    appErr.Code,
		Message: appErr.Message,
		Details: appErr.Details,
	}}
	if r != nil {
		body.Error.RequestID = middleware.GetReqID(r.Context())
	}
	WriteJSON(w, appErr.Status, body)
}

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
