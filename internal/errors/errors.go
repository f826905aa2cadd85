// Package errors defines the application error type shared by the JSON API,
// the dashboard pages and the SSE stream, together with the response
// envelopes written by the API handlers.
package errors

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

type ErrorCode string

const (
	CodeInternal       ErrorCode = "INTERNAL_ERROR"
	CodeNotFound       ErrorCode = "NOT_FOUND"
	CodeUnauthorized   ErrorCode = "UNAUTHORIZED"
	CodeForbidden      ErrorCode = "FORBIDDEN"
	CodeRateLimit      ErrorCode = "RATE_LIMIT_EXCEEDED"
	CodeServiceUnavail ErrorCode = "SERVICE_UNAVAILABLE"
	CodeEmptySelection ErrorCode = "EMPTY_SELECTION"
	CodeMissingColumn  ErrorCode = "MISSING_COLUMN"
	CodeUpstreamRead   ErrorCode = "UPSTREAM_READ"
)

// statusByCode lists every code that does not answer with a 500.
var statusByCode = map[ErrorCode]int{
	CodeNotFound:       http.StatusNotFound,
	CodeUnauthorized:   http.StatusUnauthorized,
	CodeForbidden:      http.StatusForbidden,
	CodeRateLimit:      http.StatusTooManyRequests,
	CodeServiceUnavail: http.StatusServiceUnavailable,
	CodeEmptySelection: http.StatusUnprocessableEntity,
	CodeUpstreamRead:   http.StatusBadGateway,
}

// Status is the HTTP status a response carrying c is sent with.
func (c ErrorCode) Status() int {
	if s, ok := statusByCode[c]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// Reporting failures. Producers wrap these with fmt.Errorf("...: %w", ...)
// and FromError maps them onto an AppError at the HTTP boundary.
var (
	ErrEmptySelection = stderrors.New("no data in selection")
	ErrMissingColumn  = stderrors.New("source table is missing a required column")
	ErrUpstreamRead   = stderrors.New("reading the source table failed")
)

// sentinels maps each reporting failure onto the code and user facing
// message it is presented with. Order matters for errors joining several.
var sentinels = []struct {
	target  error
	code    ErrorCode
	message string
}{
	{ErrEmptySelection, CodeEmptySelection, "No data in the current selection"},
	{ErrMissingColumn, CodeMissingColumn, "The orders table is missing an expected column"},
	{ErrUpstreamRead, CodeUpstreamRead, "Could not read the orders table"},
	{context.DeadlineExceeded, CodeServiceUnavail, "The request timed out"},
}

type AppError struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	Details    string    `json:"details,omitempty"`
	StatusCode int       `json:"-"`
	Cause      error     `json:"-"`
	Timestamp  time.Time `json:"timestamp"`
	RequestID  string    `json:"request_id,omitempty"`
}

func (e *AppError) Error() string {
	if e.Cause == nil {
		return string(e.Code) + ": " + e.Message
	}
	return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
}

func (e *AppError) Unwrap() error { return e.Cause }

func New(code ErrorCode, message string) *AppError {
	return Wrap(nil, code, message)
}

// Wrap attaches cause to a new AppError. A nil cause is allowed.
func Wrap(cause error, code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: code.Status(),
		Cause:      cause,
		Timestamp:  time.Now().UTC(),
	}
}

func Internal(message string) *AppError { return New(CodeInternal, message) }

func InternalWrap(err error, message string) *AppError { return Wrap(err, CodeInternal, message) }

func NotFound(message string) *AppError { return New(CodeNotFound, message) }

func Unauthorized(message string) *AppError { return New(CodeUnauthorized, message) }

func RateLimit(message string) *AppError { return New(CodeRateLimit, message) }

// FromError classifies err into an AppError. Errors that already are an
// AppError pass through unchanged.
func FromError(err error) *AppError {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	for _, s := range sentinels {
		if stderrors.Is(err, s.target) {
			return Wrap(err, s.code, s.message)
		}
	}
	return Wrap(err, CodeInternal, "An unexpected error occurred")
}

type ErrorResponse struct {
	Error   *AppError `json:"error"`
	Success bool      `json:"success"`
}

type SuccessResponse struct {
	Data    any  `json:"data"`
	Success bool `json:"success"`
}

// WriteError answers with the JSON error envelope for err and logs the
// failure, at warn level for client errors.
func WriteError(w http.ResponseWriter, logger *slog.Logger, err error, requestID string) {
	appErr := FromError(err)
	appErr.RequestID = requestID

	attrs := []slog.Attr{
		slog.String("error_code", string(appErr.Code)),
		slog.Int("status_code", appErr.StatusCode),
		slog.String("request_id", requestID),
	}
	if encodeErr := writeJSON(w, appErr.StatusCode, ErrorResponse{Error: appErr}); encodeErr != nil {
		logger.LogAttrs(context.Background(), slog.LevelError, "failed to encode error response",
			append(attrs, slog.Any("encode_error", encodeErr), slog.Any("original_error", err))...)
		return
	}

	level := slog.LevelWarn
	if appErr.StatusCode >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	logger.LogAttrs(context.Background(), level, "request failed",
		append(attrs, slog.String("error_message", appErr.Message), slog.Any("cause", appErr.Cause))...)
}

func WriteSuccess(w http.ResponseWriter, data any) {
	_ = writeJSON(w, http.StatusOK, SuccessResponse{Data: data, Success: true})
}

func WriteSuccessWithHeaders(w http.ResponseWriter, data any, headers map[string]string) {
	h := w.Header()
	for key, value := range headers {
		h.Set(key, value)
	}
	WriteSuccess(w, data)
}

func writeJSON(w http.ResponseWriter, status int, body any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(body)
}
