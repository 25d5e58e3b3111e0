package editor

// RESPONSE HELPERS:
// Page handlers end in one of three ways — a rendered template, a
// redirect, or an error. These helpers standardise the last case for
// both the HTML pages and the small JSON endpoints (preview, diagram
// polling) that the editor page calls from the browser.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/inkpad/internal/apperror"
)

// ErrorResponse is the JSON error shape for the editor's own endpoints.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			h.logger.Error("encoding JSON response", slog.String("error", err.Error()))
		}
	}
}

// errorStatus maps a gateway error to an HTTP status and a
// machine-readable type. The backend's human-readable detail rides
// along verbatim in the AppError message.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, apperror.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, apperror.ErrValidation):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, apperror.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, apperror.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, apperror.ErrConflict):
		return http.StatusConflict, "conflict"
	default:
		return http.StatusBadGateway, "backend_error"
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status, errType := errorStatus(err)
	h.writeJSON(w, status, ErrorResponse{Error: errType, Message: messageOf(err)})
}

// statusOf and messageOf are the pieces of writeError that form
// handlers need separately, to re-render the form around the message.
func statusOf(err error) int {
	status, _ := errorStatus(err)
	return status
}

func messageOf(err error) string {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "the publishing backend could not be reached"
}

// pageError resolves an error on an HTML route. An expired session
// bounces to the login page (the session notice carries the reason);
// everything else gets the error page with the backend's detail.
func (h *Handler) pageError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, apperror.ErrUnauthorized) {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	status, _ := errorStatus(err)
	message := messageOf(err)

	h.logger.Error("request failed",
		slog.String("path", r.URL.Path),
		slog.Int("status", status),
		slog.String("error", err.Error()),
	)

	w.WriteHeader(status)
	h.renderPage(w, "error.html", struct {
		basePage
		Message string
	}{h.page("Error"), message})
}
