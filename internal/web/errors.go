package web

// errors.go provides unified error responses for the API.
//
// Every failure is logged with the technical error and the request id, then
// mapped through core.MapError so clients only ever see a user message, an
// action and a support code.

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/JonMunkholm/alchemist/internal/core"
	"github.com/JonMunkholm/alchemist/internal/export"
	"github.com/JonMunkholm/alchemist/internal/logging"
	"github.com/JonMunkholm/alchemist/internal/workspace"
)

var (
	errNoFiles        = errors.New("no file provided")
	errTooManyFiles   = errors.New("too many files")
	errInvalidRequest = errors.New("invalid request")
	errExportBlocked  = errors.New("export blocked")
)

// ErrorResponse is the JSON body of every API error.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// respondError logs err and writes its user-facing form with statusCode.
// A zero statusCode is derived from err.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error, statusCode int) {
	if statusCode == 0 {
		statusCode = statusFor(err)
	}
	msg := core.MapError(err)

	level := slog.LevelWarn
	if statusCode >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	logging.FromContext(r.Context()).Log(r.Context(), level, "request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", statusCode,
		"error", err.Error(),
		"code", msg.Code,
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	}); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}

// statusFor picks the HTTP status for a known error.
func statusFor(err error) int {
	switch {
	case errors.Is(err, workspace.ErrSessionNotFound),
		errors.Is(err, workspace.ErrUnknownTable),
		errors.Is(err, workspace.ErrRowOutOfRange):
		return http.StatusNotFound
	case errors.Is(err, core.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, core.ErrTooManyUploads):
		return http.StatusServiceUnavailable
	case errors.Is(err, export.ErrInvalidRules):
		return http.StatusUnprocessableEntity
	case errors.Is(err, errExportBlocked):
		return http.StatusConflict
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, errRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, errNoFiles),
		errors.Is(err, errTooManyFiles),
		errors.Is(err, errInvalidRequest),
		errors.Is(err, workspace.ErrEmptyColumn),
		errors.Is(err, core.ErrUnreadableFile):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// writeJSON encodes v with status. Encoding errors are only logged since
// the header is already sent.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}
