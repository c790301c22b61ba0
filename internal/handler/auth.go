// Package handler is the HTTP glue between the router and the account
// pipelines. Handlers parse the request, bind the session cookie, call one
// pipeline and render its Outcome. They hold no business rules.
package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/sakif/account-portal/internal/auth"
	"github.com/sakif/account-portal/internal/service"
)

// maxFormBytes caps every request body the handlers read.
const maxFormBytes = 1 << 20

// AccountHandler serves the form actions and the JSON API.
//
// HANDLER RESPONSIBILITIES:
//   - HandleSignup / HandleSignIn / HandleSignOut → credential pipelines
//   - HandleMyPage / HandleEdit / HandleDelete   → the signed-in user's account
//   - HandleAdminUsers                           → paginated listing for admins
//   - HandleAPI*                                 → same pipelines, JSON bodies
//
// DEPENDENCY CHAIN:
//   - accounts *service.AuthService    → signup, sign-in, sign-out, deletion
//   - profiles *service.ProfileService → profile update
//   - admin    *service.AdminService   → user listing
//   - sessions *auth.SessionManager    → binds the identity cookie per request
type AccountHandler struct {
	accounts *service.AuthService
	profiles *service.ProfileService
	admin    *service.AdminService
	sessions *auth.SessionManager
	pageSize int
	logger   *slog.Logger
}

// NewAccountHandler creates an AccountHandler. pageSize is the admin listing
// page size; values below 1 fall back to service.DefaultPageSize.
func NewAccountHandler(
	accounts *service.AuthService,
	profiles *service.ProfileService,
	admin *service.AdminService,
	sessions *auth.SessionManager,
	pageSize int,
	logger *slog.Logger,
) *AccountHandler {
	if pageSize < 1 {
		pageSize = service.DefaultPageSize
	}
	return &AccountHandler{
		accounts: accounts,
		profiles: profiles,
		admin:    admin,
		sessions: sessions,
		pageSize: pageSize,
		logger:   logger,
	}
}

// readForm parses a urlencoded or multipart body into a service.Form.
// Query-string values are ignored: only the body counts.
func readForm(w http.ResponseWriter, r *http.Request) (service.Form, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(maxFormBytes); err != nil {
			return nil, err
		}
	} else if err := r.ParseForm(); err != nil {
		return nil, err
	}
	return service.FormFromValues(r.PostForm), nil
}

// readJSONForm decodes a JSON object body into a service.Form.
func readJSONForm(w http.ResponseWriter, r *http.Request) (service.Form, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	return service.FormFromJSON(r.Body)
}

// formUnreadable answers a body that could not be parsed at all. It gets
// the same message as a structurally malformed form.
func (h *AccountHandler) formUnreadable(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.WarnContext(r.Context(), "unreadable form body", "path", r.URL.Path, "error", err)
	status := http.StatusBadRequest
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		status = http.StatusRequestEntityTooLarge
	}
	writeJSON(w, status, ActionResult{Errors: []string{service.MsgFormInvalid}})
}

// HandleEntryPage answers GET /signin and GET /signup. The pages themselves
// are rendered by the frontend; the route exists so the guard's redirects
// land somewhere.
func HandleEntryPage(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

// HandleSignup registers an account.
//
// HTTP: POST /signup
// Body: username, email, role, password (form-encoded)
// Success: 303 → /signin. No cookie is written.
func (h *AccountHandler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	form, err := readForm(w, r)
	if err != nil {
		h.formUnreadable(w, r, err)
		return
	}
	out, err := h.accounts.Signup(r.Context(), form)
	renderAction(w, r, h.logger, "signup", out, err)
}

// HandleSignIn checks credentials and writes the identity cookie.
//
// HTTP: POST /signin
// Body: email, password (form-encoded)
// Success: Set-Cookie user_id, then 303 → /mypage.
func (h *AccountHandler) HandleSignIn(w http.ResponseWriter, r *http.Request) {
	form, err := readForm(w, r)
	if err != nil {
		h.formUnreadable(w, r, err)
		return
	}
	out, err := h.accounts.SignIn(r.Context(), h.sessions.Bind(w, r), form)
	renderAction(w, r, h.logger, "signin", out, err)
}

// HandleSignOut clears the identity cookie.
//
// HTTP: POST /mypage/signout
//
// WHY POST AND NOT GET?
// Sign-out changes state. A GET could be triggered by a prefetch or an
// <img> tag on another site.
func (h *AccountHandler) HandleSignOut(w http.ResponseWriter, r *http.Request) {
	out, err := h.accounts.SignOut(r.Context(), h.sessions.Bind(w, r))
	renderAction(w, r, h.logger, "signout", out, err)
}

// HandleMyPage returns the signed-in user's record.
//
// HTTP: GET /mypage
//
// A cookie naming a user that no longer exists is revoked before redirecting
// to /signin; otherwise the guard would bounce the client straight back.
func (h *AccountHandler) HandleMyPage(w http.ResponseWriter, r *http.Request) {
	session := h.sessions.Bind(w, r)
	user := h.accounts.CurrentUser(r.Context(), session)
	if user == nil {
		if err := session.Revoke(); err != nil {
			h.logger.ErrorContext(r.Context(), "revoking stale session failed", "error", err)
		}
		http.Redirect(w, r, service.DefaultPaths.SignIn, http.StatusSeeOther)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// HandleEdit updates the signed-in user's profile.
//
// HTTP: POST /mypage/edit
// Body: username, email, current_password, new_password (form-encoded)
// Success: 200 {} with the cookie issued again.
func (h *AccountHandler) HandleEdit(w http.ResponseWriter, r *http.Request) {
	form, err := readForm(w, r)
	if err != nil {
		h.formUnreadable(w, r, err)
		return
	}
	out, err := h.profiles.UpdateProfile(r.Context(), h.sessions.Bind(w, r), form)
	renderAction(w, r, h.logger, "update", out, err)
}

// HandleDelete removes the signed-in user's account.
//
// HTTP: POST /mypage/delete
// Success: cookie revoked, then 303 → /signin.
func (h *AccountHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	out, err := h.accounts.DeleteAccount(r.Context(), h.sessions.Bind(w, r))
	renderAction(w, r, h.logger, "delete", out, err)
}

// HandleAdminUsers lists users newest first.
//
// HTTP: GET /admin/users?page=N
//
// The body is always a UserPage. A failed page fetch still carries the
// totals, so the status is 500 but pagination can be drawn.
func (h *AccountHandler) HandleAdminUsers(w http.ResponseWriter, r *http.Request) {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil {
		page = 1
	}

	result := h.admin.ListUsers(r.Context(), h.sessions.Bind(w, r), page, h.pageSize)

	status := http.StatusOK
	switch result.Error {
	case "":
	case service.MsgNotSignedIn:
		status = http.StatusUnauthorized
	case service.MsgNotAdmin:
		status = http.StatusForbidden
	default:
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, result)
}
