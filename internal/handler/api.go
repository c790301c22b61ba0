package handler

import (
	"net/http"

	"github.com/sakif/account-portal/internal/model"
	"github.com/sakif/account-portal/internal/service"
)

// The /api routes run the same pipelines as the form actions with JSON
// bodies and the {"error": ...} response shape. They are not behind the
// route guard and are served with CORS headers.

// UserResponse wraps the updated user for POST /api/edit.
type UserResponse struct {
	User *model.User `json:"user"`
}

// HandleAPISignup registers an account.
//
// HTTP: POST /api/signup
// Body: {"username": "...", "email": "...", "role": "user", "password": "..."}
// Success: 200 {"message": "User registered successfully"}
func (h *AccountHandler) HandleAPISignup(w http.ResponseWriter, r *http.Request) {
	form, err := readJSONForm(w, r)
	if err != nil {
		h.apiUnreadable(w, r, err)
		return
	}
	out, err := h.accounts.Signup(r.Context(), form)
	if renderAPIFailure(w, r, h.logger, "signup", out, err) {
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "User registered successfully"})
}

// HandleAPISignIn checks credentials and writes the identity cookie.
//
// HTTP: POST /api/signin
// Body: {"email": "...", "password": "..."}
// Success: Set-Cookie user_id, 200 {"message": "Sign in successful"}
func (h *AccountHandler) HandleAPISignIn(w http.ResponseWriter, r *http.Request) {
	form, err := readJSONForm(w, r)
	if err != nil {
		h.apiUnreadable(w, r, err)
		return
	}
	out, err := h.accounts.SignIn(r.Context(), h.sessions.Bind(w, r), form)
	if renderAPIFailure(w, r, h.logger, "signin", out, err) {
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Sign in successful"})
}

// HandleAPIEdit updates the profile of the user named by the cookie. A user
// id in the body is ignored.
//
// HTTP: POST /api/edit
// Body: {"username": "...", "email": "...", "currentPassword": "...", "newPassword": "..."}
// Success: 200 {"user": {...}}
func (h *AccountHandler) HandleAPIEdit(w http.ResponseWriter, r *http.Request) {
	form, err := readJSONForm(w, r)
	if err != nil {
		h.apiUnreadable(w, r, err)
		return
	}
	renameKey(form, "currentPassword", "current_password")
	renameKey(form, "newPassword", "new_password")

	session := h.sessions.Bind(w, r)
	out, err := h.profiles.UpdateProfile(r.Context(), session, form)
	if renderAPIFailure(w, r, h.logger, "update", out, err) {
		return
	}
	writeJSON(w, http.StatusOK, UserResponse{User: h.accounts.CurrentUser(r.Context(), session)})
}

func (h *AccountHandler) apiUnreadable(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.WarnContext(r.Context(), "unreadable JSON body", "path", r.URL.Path, "error", err)
	writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: service.MsgFormInvalid})
}

// renameKey moves a camelCase JSON key to the snake_case name the pipelines
// read. An existing snake_case key wins.
func renameKey(form service.Form, from, to string) {
	v, ok := form[from]
	if !ok {
		return
	}
	delete(form, from)
	if _, exists := form[to]; !exists {
		form[to] = v
	}
}
