package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/kalambet/studybuddy/internal/settings"
)

// Error codes carried in the error envelope.
const (
	codeValidation       = "VALIDATION_ERROR"
	codeNotFound         = "NOT_FOUND"
	codeMethodNotAllowed = "METHOD_NOT_ALLOWED"
	codeUnauthorized     = "UNAUTHORIZED"
	codeTooLarge         = "PAYLOAD_TOO_LARGE"
	codeUnavailable      = "STORAGE_UNAVAILABLE"
	codeWriteFailure     = "WRITE_FAILURE"
	codeInternal         = "INTERNAL"
)

// errorBody is the envelope every error response uses:
// {"error": {"code": ..., "message": ..., "details": {...}}}.
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details"`
}

func httpError(w http.ResponseWriter, status int, code string, format string, args ...any) {
	httpErrorDetails(w, status, code, nil, format, args...)
}

func httpErrorDetails(w http.ResponseWriter, status int, code string, details map[string]any, format string, args ...any) {
	if details == nil {
		details = map[string]any{}
	}
	writeJSON(w, status, errorBody{Error: errorDetail{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Details: details,
	}})
}

// settingsError maps a settings failure onto a status code and error code.
func settingsError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, settings.ErrInvalidDocument), errors.Is(err, settings.ErrCorruptData):
		httpError(w, http.StatusUnprocessableEntity, codeValidation, "%v", err)
	case errors.Is(err, settings.ErrStorageUnavailable):
		httpError(w, http.StatusServiceUnavailable, codeUnavailable, "%v", err)
	case errors.Is(err, settings.ErrWriteFailure):
		httpError(w, http.StatusInternalServerError, codeWriteFailure, "%v", err)
	default:
		httpError(w, http.StatusInternalServerError, codeInternal, "%v", err)
	}
}

func handleNotFound(w http.ResponseWriter, r *http.Request) {
	httpError(w, http.StatusNotFound, codeNotFound, "no route for %s %s", r.Method, r.URL.Path)
}

func handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	httpError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method %s not allowed on %s", r.Method, r.URL.Path)
}

// Recoverer turns a handler panic into a 500 INTERNAL error response.
func Recoverer(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				logger.Error("handler panic",
					"request_id", RequestIDFrom(r.Context()),
					"method", r.Method,
					"path", r.URL.Path,
					"panic", rec,
					"stack", string(debug.Stack()),
				)
				httpError(w, http.StatusInternalServerError, codeInternal, "internal server error")
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
