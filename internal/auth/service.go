package auth

import (
	"context"
	"strings"

	"github.com/juju/errors"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/ledgerline/billing/internal/domain"
	"github.com/ledgerline/billing/internal/logger"
	"github.com/ledgerline/billing/internal/repository"
)

// TokenPair is what a successful login returns.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Account is a user to seed.
type Account struct {
	Username string
	Password string
	Roles    []string
}

// Service authenticates users and hands out tokens.
type Service struct {
	users  *repository.UserRepo
	tokens *Tokens
	cost   int
	log    zerolog.Logger
}

func NewService(users *repository.UserRepo, tokens *Tokens) *Service {
	return &Service{
		users:  users,
		tokens: tokens,
		cost:   bcrypt.DefaultCost,
		log:    logger.WithComponent("auth"),
	}
}

func (s *Service) Login(ctx context.Context, username, password string) (*TokenPair, error) {
	u, err := s.users.GetByUsername(ctx, strings.TrimSpace(username))
	if errors.Is(err, errors.NotFound) {
		return nil, errors.Unauthorizedf("bad credentials")
	}
	if err != nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		s.log.Info().Str("user", u.Username).Msg("login refused")
		return nil, errors.Unauthorizedf("bad credentials")
	}

	access, err := s.tokens.Issue(u.Username, u.Roles, KindAccess)
	if err != nil {
		return nil, err
	}
	refresh, err := s.tokens.Issue(u.Username, u.Roles, KindRefresh)
	if err != nil {
		return nil, err
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// Refresh trades a refresh token for a new access token carrying the user's
// current roles.
func (s *Service) Refresh(ctx context.Context, rawRefresh string) (*TokenPair, error) {
	if rawRefresh == "" {
		return nil, errors.Unauthorizedf("refresh token required")
	}
	p, kind, err := s.tokens.Verify(rawRefresh)
	if err != nil {
		return nil, err
	}
	if kind != KindRefresh {
		return nil, errors.Unauthorizedf("not a refresh token")
	}
	u, err := s.users.GetByUsername(ctx, p.Subject)
	if errors.Is(err, errors.NotFound) {
		return nil, errors.Unauthorizedf("unknown user %q", p.Subject)
	}
	if err != nil {
		return nil, err
	}
	access, err := s.tokens.Issue(u.Username, u.Roles, KindAccess)
	if err != nil {
		return nil, err
	}
	return &TokenPair{AccessToken: access, RefreshToken: rawRefresh}, nil
}

func (s *Service) List(ctx context.Context) ([]domain.User, error) {
	out, err := s.users.List(ctx)
	if out == nil && err == nil {
		out = []domain.User{}
	}
	return out, err
}

// Seed stores accounts when no user exists yet. Accounts without a password
// are skipped.
func (s *Service) Seed(ctx context.Context, accounts ...Account) error {
	n, err := s.users.Count(ctx)
	if err != nil {
		return errors.Annotate(err, "count users")
	}
	if n > 0 {
		return nil
	}
	for _, a := range accounts {
		if a.Username == "" || a.Password == "" {
			s.log.Warn().Str("user", a.Username).Msg("no password configured, account not seeded")
			continue
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(a.Password), s.cost)
		if err != nil {
			return errors.Annotatef(err, "hash password of %s", a.Username)
		}
		u := domain.User{Username: a.Username, PasswordHash: string(hash), Roles: a.Roles}
		if err := s.users.Insert(ctx, &u); err != nil {
			return err
		}
		s.log.Info().Str("user", u.Username).Strs("roles", u.Roles).Msg("seeded user")
	}
	return nil
}
