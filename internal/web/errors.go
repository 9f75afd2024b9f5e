package web

// errors.go provides unified error response handling for the web layer.
//
// Every error is logged server-side with the request ID, then mapped through
// core.MapError to a user message with an action and a support code. Ingestion
// diagnostics keep their full structure so the caller can see which columns
// or rows were wrong; HTMX callers get the same content as an HTML fragment.

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/validata/internal/core"
	"github.com/JonMunkholm/validata/internal/web/views"
)

// ErrorResponse represents the JSON structure for API error responses.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// DiagnosticResponse is the body of an aborted ingestion or preview.
type DiagnosticResponse struct {
	*core.Diagnostic
	Error  string `json:"error"`
	Action string `json:"action,omitempty"`
	Code   string `json:"code"`
}

// statusFor picks the HTTP status of err.
func statusFor(err error) int {
	if d, ok := core.AsDiagnostic(err); ok {
		if d.IsClientError() {
			return http.StatusBadRequest
		}
		return http.StatusInternalServerError
	}

	switch {
	case errors.Is(err, core.ErrInvalidProject):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrProjectNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrDuplicateProject):
		return http.StatusConflict
	case errors.Is(err, core.ErrTooManyUploads):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// respondError logs err and writes the mapped response.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	userMsg := core.MapError(err)

	slog.Error("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", userMsg.Code,
		"request_id", middleware.GetReqID(r.Context()),
	)

	d, isDiag := core.AsDiagnostic(err)
	switch {
	case isHTMX(r) && isDiag:
		renderHTML(w, r, status, views.Diagnostic(d, userMsg))
	case isHTMX(r):
		renderHTML(w, r, status, views.ErrorAlert(userMsg.Message, userMsg.Action, userMsg.Code))
	case isDiag:
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(DiagnosticResponse{
			Diagnostic: d,
			Error:      d.Message,
			Action:     userMsg.Action,
			Code:       userMsg.Code,
		})
	default:
		respondErrorJSON(w, userMsg, status)
	}
}

// respondErrorJSON writes a JSON error response.
func respondErrorJSON(w http.ResponseWriter, msg core.UserMessage, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	})
}

// writeError writes a request-shape error that never reached the service.
func writeError(w http.ResponseWriter, status int, message, code string) {
	respondErrorJSON(w, core.UserMessage{Message: message, Code: code}, status)
}

// isHTMX checks if the request is an HTMX request.
func isHTMX(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("HX-Request"), "true")
}
