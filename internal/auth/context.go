package auth

import "context"

// Principal is the authenticated caller of a request.
type Principal struct {
	Subject string
	Roles   []string
}

// HasAny reports whether p holds at least one of roles.
func (p Principal) HasAny(roles ...string) bool {
	for _, want := range roles {
		for _, have := range p.Roles {
			if have == want {
				return true
			}
		}
	}
	return false
}

type contextKey int

const (
	principalKey contextKey = iota
	tokenKey
)

// WithPrincipal returns ctx carrying the caller and the raw bearer token it
// presented.
func WithPrincipal(ctx context.Context, p Principal, rawToken string) context.Context {
	ctx = context.WithValue(ctx, principalKey, p)
	return context.WithValue(ctx, tokenKey, rawToken)
}

// PrincipalFrom returns the caller stored in ctx, if any.
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey).(Principal)
	return p, ok
}

// TokenFrom returns the raw bearer token of the inbound request, or "".
func TokenFrom(ctx context.Context) string {
	tok, _ := ctx.Value(tokenKey).(string)
	return tok
}
