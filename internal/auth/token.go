package auth

import (
	"fmt"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// Token kinds, carried in the typ claim.
const (
	KindAccess  = "access"
	KindRefresh = "refresh"
)

const (
	rolesClaim = "roles"
	kindClaim  = "typ"
	issuer     = "billing"
)

// Tokens issues and verifies HS256 tokens signed with one shared secret.
type Tokens struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	clock      clock.Clock
}

func NewTokens(secret string, accessTTL, refreshTTL time.Duration, clk clock.Clock) *Tokens {
	if clk == nil {
		clk = clock.WallClock
	}
	return &Tokens{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		clock:      clk,
	}
}

// Issue signs a token of the given kind for subject.
func (t *Tokens) Issue(subject string, roles []string, kind string) (string, error) {
	ttl := t.accessTTL
	if kind == KindRefresh {
		ttl = t.refreshTTL
	}
	now := t.clock.Now()

	tok, err := jwt.NewBuilder().
		Issuer(issuer).
		Subject(subject).
		IssuedAt(now).
		Expiration(now.Add(ttl)).
		Claim(rolesClaim, roles).
		Claim(kindClaim, kind).
		Build()
	if err != nil {
		return "", errors.Annotate(err, "build token")
	}
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256, t.secret))
	if err != nil {
		return "", errors.Annotate(err, "sign token")
	}
	return string(signed), nil
}

// Verify checks the signature and lifetime of raw and returns its principal
// and kind.
func (t *Tokens) Verify(raw string) (Principal, string, error) {
	tok, err := jwt.Parse([]byte(raw),
		jwt.WithKey(jwa.HS256, t.secret),
		jwt.WithValidate(true),
		jwt.WithClock(t.clock),
		jwt.WithIssuer(issuer),
	)
	if err != nil {
		return Principal{}, "", errors.Unauthorizedf("invalid token: %v", err)
	}

	p := Principal{Subject: tok.Subject()}
	claims := tok.PrivateClaims()
	switch roles := claims[rolesClaim].(type) {
	case []any:
		for _, r := range roles {
			p.Roles = append(p.Roles, fmt.Sprint(r))
		}
	case []string:
		p.Roles = roles
	}
	kind, _ := claims[kindClaim].(string)
	return p, kind, nil
}
