package web

// errors.go provides unified error responses for the web layer.
//
// Every error is:
//   - Logged with full technical detail and the request id
//   - Mapped via core.MapError to a message, an action and a code
//   - Written as JSON for API and HTMX-less clients, or as an HTML alert
//
// The status code comes from statusFor unless the handler passes one.

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/QRBulk/internal/core"
	"github.com/JonMunkholm/QRBulk/internal/logging"
	"github.com/JonMunkholm/QRBulk/internal/render"
	"github.com/JonMunkholm/QRBulk/internal/store"
	"github.com/JonMunkholm/QRBulk/internal/tabular"
)

var (
	errRateLimited       = errors.New("rate limit exceeded")
	errNoFile            = errors.New("no file provided")
	errFileTooLarge      = errors.New("file too large or invalid form")
	errBadRequest        = errors.New("invalid request body")
	errTemplatesDisabled = errors.New("template storage is not configured")
)

// ErrorResponse is the JSON body of every API error.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// respondError logs err and writes the mapped user message. A zero status
// is derived from the error.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error, status int) {
	if status == 0 {
		status = statusFor(err)
	}
	msg := core.MapError(err)

	log := logging.FromContext(r.Context())
	attrs := []any{
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", msg.Code,
	}
	if status >= 500 {
		log.Error("request error", attrs...)
	} else {
		log.Warn("request error", attrs...)
	}

	if errors.Is(err, core.ErrTooManyRuns) {
		w.Header().Set("Retry-After", "5")
	}

	if isHTMX(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
		errorAlert(msg, middleware.GetReqID(r.Context())).Render(r.Context(), w)
		return
	}
	respondErrorJSON(w, msg, status)
}

func respondErrorJSON(w http.ResponseWriter, msg core.UserMessage, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorBody(msg))
}

func errorBody(msg core.UserMessage) ErrorResponse {
	return ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	}
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	var loadErr *tabular.LoadError

	switch {
	case errors.Is(err, core.ErrSessionNotFound),
		errors.Is(err, core.ErrDownloadNotFound),
		errors.Is(err, store.ErrTemplateNotFound):
		return http.StatusNotFound

	case errors.Is(err, core.ErrBatchBusy),
		errors.Is(err, store.ErrTemplateLimit):
		return http.StatusConflict

	case errors.Is(err, core.ErrTooManyRuns),
		errors.Is(err, errTemplatesDisabled):
		return http.StatusServiceUnavailable

	case errors.Is(err, errFileTooLarge):
		return http.StatusRequestEntityTooLarge

	case errors.Is(err, render.ErrInvalidStyle),
		errors.Is(err, errBadRequest),
		errors.Is(err, errNoFile),
		errors.Is(err, store.ErrInvalidName),
		errors.Is(err, store.ErrInvalidShareCode),
		errors.Is(err, tabular.ErrSheetNotFound),
		errors.As(err, &loadErr):
		return http.StatusBadRequest

	case errors.Is(err, core.ErrMappingIncomplete),
		errors.Is(err, core.ErrNoRows),
		errors.Is(err, core.ErrNothingGenerated),
		errors.Is(err, core.ErrNoPreview),
		errors.Is(err, render.ErrNoOutput):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// wantsJSON reports whether a non-API route should answer in JSON.
func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}
