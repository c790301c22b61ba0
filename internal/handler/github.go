package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/rs/xid"

	"github.com/sakif/account-portal/internal/auth"
	"github.com/sakif/account-portal/internal/service"
)

const stateCookieName = "oauth_state"

// IdentityProvider is the OAuth side of a third-party login.
// *auth.GitHubProvider satisfies it.
type IdentityProvider interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (*auth.GitHubUser, error)
}

// GitHubHandler runs the GitHub OAuth login flow and signs the user in with
// the regular identity cookie.
type GitHubHandler struct {
	provider IdentityProvider
	accounts *service.AuthService
	sessions *auth.SessionManager
	secure   bool
	logger   *slog.Logger
}

func NewGitHubHandler(
	provider IdentityProvider,
	accounts *service.AuthService,
	sessions *auth.SessionManager,
	secure bool,
	logger *slog.Logger,
) *GitHubHandler {
	return &GitHubHandler{
		provider: provider,
		accounts: accounts,
		sessions: sessions,
		secure:   secure,
		logger:   logger,
	}
}

// HandleLogin redirects the browser to GitHub's authorization page.
//
// HTTP: GET /auth/github/login
//
// CSRF PROTECTION VIA STATE:
// A random state value goes both into a short-lived cookie and into the
// authorization URL. The callback only proceeds when the two match, which
// proves this server started the flow.
func (h *GitHubHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	state := xid.New().String()

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/auth/github",
		MaxAge:   600, // 10 minutes
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.provider.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleCallback completes the flow.
//
// HTTP: GET /auth/github/callback?code=xxx&state=yyy
//
// FLOW:
//  1. Validate the state parameter against the cookie (single use)
//  2. Exchange the code for the GitHub profile
//  3. Sign in the account with that email, creating it on first login
//  4. The pipeline writes the identity cookie and redirects to /mypage
func (h *GitHubHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	stateCookie, err := r.Cookie(stateCookieName)
	if err != nil || stateCookie.Value == "" || query.Get("state") != stateCookie.Value {
		h.logger.WarnContext(r.Context(), "github callback: state mismatch")
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid OAuth state"})
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    "",
		Path:     "/auth/github",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})

	if errParam := query.Get("error"); errParam != "" {
		h.logger.InfoContext(r.Context(), "github callback: authorization denied", "error", errParam)
		http.Redirect(w, r, service.DefaultPaths.SignIn, http.StatusSeeOther)
		return
	}

	code := query.Get("code")
	if code == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "missing OAuth code"})
		return
	}

	ghUser, err := h.provider.Exchange(r.Context(), code)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "github callback: exchange failed", "error", err)
		writeJSON(w, http.StatusBadGateway, ErrorResponse{Error: service.MsgSystemError})
		return
	}

	out, err := h.accounts.SignInWithProvider(r.Context(), h.sessions.Bind(w, r), service.ProviderProfile{
		Provider: "github",
		Login:    ghUser.Login,
		Email:    ghUser.Email,
	})
	renderAction(w, r, h.logger, "provider", out, err)
}
