package auth

import (
	"net/http"

	"github.com/tuneder/tuneder/internal/shared"
)

// LoginPath is where unauthenticated visitors are sent.
const LoginPath = "/inlog"

// RequireUser redirects requests without an authenticated session to the
// login page. Nothing of the wrapped handler runs for them.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !shared.SessionFromContext(r.Context()).Authenticated() {
			http.Redirect(w, r, LoginPath, http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}
