package auth

import (
	"net/http"
	"strings"
)

// Decision is the route guard's verdict for one request.
type Decision int

const (
	Allow Decision = iota
	RedirectSignIn
	RedirectHome
)

func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case RedirectSignIn:
		return "redirect_signin"
	case RedirectHome:
		return "redirect_home"
	}
	return "unknown"
}

// GuardPaths names the entry points the guard redirects between.
// Public holds path prefixes reachable without a session.
type GuardPaths struct {
	SignIn string
	Home   string
	Public []string
}

// DefaultGuardPaths is the route table served by internal/server.
var DefaultGuardPaths = GuardPaths{
	SignIn: "/signin",
	Home:   "/mypage",
	Public: []string{"/signin", "/signup"},
}

func (p GuardPaths) isPublic(path string) bool {
	for _, prefix := range p.Public {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// Decide is the guard policy. It only looks at cookie presence: a cookie
// naming a deleted user is still allowed through, and the page itself
// resolves the user.
//
//	                 public path      other path
//	cookie absent    Allow            RedirectSignIn
//	cookie present   RedirectHome     Allow
func (p GuardPaths) Decide(hasCookie bool, path string) Decision {
	public := p.isPublic(path)
	switch {
	case !hasCookie && !public:
		return RedirectSignIn
	case hasCookie && public:
		return RedirectHome
	default:
		return Allow
	}
}

// Decide applies DefaultGuardPaths.
func Decide(hasCookie bool, path string) Decision {
	return DefaultGuardPaths.Decide(hasCookie, path)
}

// Guard is a middleware that applies the policy to every request it wraps.
//
// MIDDLEWARE PATTERN IN GO:
// A middleware takes an http.Handler and returns a new http.Handler that
// wraps it. Chi applies them in a chain: req → M1 → M2 → Handler.
//
// Mount it only on page routes; API, metrics and OAuth routes are not guarded.
func Guard(paths GuardPaths) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch paths.Decide(HasSessionCookie(r), r.URL.Path) {
			case RedirectSignIn:
				http.Redirect(w, r, paths.SignIn, http.StatusTemporaryRedirect)
			case RedirectHome:
				http.Redirect(w, r, paths.Home, http.StatusTemporaryRedirect)
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}
