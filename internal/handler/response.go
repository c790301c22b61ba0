package handler

// RESPONSE HELPERS:
// Two response shapes exist side by side.
//
// Form actions (POST /signup, /signin, /mypage/...) answer a failure with
//
//	{"errors": ["...", "..."]}
//
// and a success with "{}" or a 303 redirect. A client treats the absence of
// "errors" as success.
//
// The JSON API (/api/...) answers a failure with
//
//	{"error": "first message", "errors": ["first message", "..."]}
//
// so clients that only read "error" still get a message.
//
// STATUS MAPPING:
// The service layer never sees HTTP. Each failed Outcome carries an apperror
// sentinel in Cause; this file turns it into a status code.

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/sakif/account-portal/internal/apperror"
	"github.com/sakif/account-portal/internal/metrics"
	"github.com/sakif/account-portal/internal/service"
)

// ActionResult is the form-action response body.
type ActionResult struct {
	Errors []string `json:"errors,omitempty"`
}

// ErrorResponse is the JSON API failure body.
type ErrorResponse struct {
	Error  string   `json:"error"`
	Errors []string `json:"errors,omitempty"`
}

// MessageResponse is the JSON API success body for signup and sign-in.
type MessageResponse struct {
	Message string `json:"message"`
}

// writeJSON sets headers, then status, then the body. Headers changed after
// the first Write are silently ignored.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already sent; all we can do is log.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// statusFor maps a failure cause to a status. Form actions answer input
// problems with 422; the JSON API uses 400 for them.
func statusFor(cause error, badInput int) int {
	switch apperror.KindOf(cause) {
	case apperror.ErrValidation, apperror.ErrConflict:
		return badInput
	case apperror.ErrUnauthorized:
		return http.StatusUnauthorized
	case apperror.ErrForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// outcomeLabel is the metrics label for a pipeline result.
func outcomeLabel(out service.Outcome, err error) string {
	if err != nil {
		return "error"
	}
	return out.Kind.String()
}

// renderAction writes a pipeline result for a form action.
//
// An unexpected error is logged with its detail and answered with the
// generic system message; the detail never reaches the client.
func renderAction(w http.ResponseWriter, r *http.Request, logger *slog.Logger, op string, out service.Outcome, err error) {
	metrics.RecordAuthEvent(op, outcomeLabel(out, err))

	if err != nil {
		logger.ErrorContext(r.Context(), "account action failed", "operation", op, "error", err)
		writeJSON(w, http.StatusInternalServerError, ActionResult{Errors: []string{service.MsgSystemError}})
		return
	}

	switch out.Kind {
	case service.Redirect:
		http.Redirect(w, r, out.Target, http.StatusSeeOther)
	case service.Failure:
		writeJSON(w, statusFor(out.Cause, http.StatusUnprocessableEntity), ActionResult{Errors: out.Errors})
	default:
		writeJSON(w, http.StatusOK, ActionResult{})
	}
}

// renderAPIFailure writes the JSON API shape for a failed Outcome or an
// unexpected error. It reports whether anything was written.
func renderAPIFailure(w http.ResponseWriter, r *http.Request, logger *slog.Logger, op string, out service.Outcome, err error) bool {
	metrics.RecordAuthEvent(op, outcomeLabel(out, err))

	if err != nil {
		logger.ErrorContext(r.Context(), "api request failed", "operation", op, "error", err)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: service.MsgSystemError})
		return true
	}
	if out.Kind != service.Failure {
		return false
	}

	resp := ErrorResponse{Errors: out.Errors}
	if len(out.Errors) > 0 {
		resp.Error = out.Errors[0]
	}
	writeJSON(w, statusFor(out.Cause, http.StatusBadRequest), resp)
	return true
}
