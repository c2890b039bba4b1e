package auth

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
)

// Authenticate verifies the bearer token of every request whose path is not
// in open. A request without a token proceeds anonymously and is stopped by
// RequireAny on guarded routes. A bad token is refused with 403.
func Authenticate(tokens *Tokens, open ...string) func(http.Handler) http.Handler {
	skip := make(map[string]bool, len(open))
	for _, p := range open {
		skip[p] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if skip[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}
			header := r.Header.Get("Authorization")
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}
			raw, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || raw == "" {
				deny(w, "malformed Authorization header")
				return
			}
			p, kind, err := tokens.Verify(raw)
			if err != nil {
				deny(w, err.Error())
				return
			}
			if kind != KindAccess {
				deny(w, "refresh token used as access token")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p, raw)))
		})
	}
}

// RequireAny refuses requests whose principal holds none of roles.
func RequireAny(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFrom(r.Context())
			if !ok {
				deny(w, "authentication required")
				return
			}
			if !p.HasAny(roles...) {
				deny(w, "access denied for "+p.Subject)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func deny(w http.ResponseWriter, msg string) {
	w.Header().Set("error-message", msg)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusForbidden)
	if err := json.NewEncoder(w).Encode(map[string]string{"error": msg}); err != nil {
		log.Warn().Err(err).Msg("encode auth error")
	}
}
