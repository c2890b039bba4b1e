package currency

import (
	"context"
	"strings"

	"github.com/juju/errors"
	"github.com/rs/zerolog"

	"github.com/ledgerline/billing/internal/domain"
	"github.com/ledgerline/billing/internal/logger"
	"github.com/ledgerline/billing/internal/repository"
)

// Service is the Currency Store: currencies, their rates against the single
// reference currency, and conversion between them.
type Service struct {
	repo *repository.CurrencyRepo
	log  zerolog.Logger
}

func NewService(repo *repository.CurrencyRepo) *Service {
	return &Service{
		repo: repo,
		log:  logger.WithComponent("currency"),
	}
}

// Convert moves amount from one currency to another. Codes are matched
// case-insensitively.
func (s *Service) Convert(ctx context.Context, amount float64, fromCode, toCode string) (float64, error) {
	from, err := s.GetByCode(ctx, fromCode)
	if err != nil {
		return 0, err
	}
	to, err := s.GetByCode(ctx, toCode)
	if err != nil {
		return 0, err
	}
	return domain.Convert(amount, *from, *to), nil
}

// Create stores a new currency. At most one currency may be the reference
// and it must have rate 1.
func (s *Service) Create(ctx context.Context, c domain.Currency) (*domain.Currency, error) {
	c.Code = domain.NormalizeCode(c.Code)
	c.Name = strings.TrimSpace(c.Name)

	if !domain.ValidCode(c.Code) {
		return nil, errors.NotValidf("currency code %q: must be exactly 3 letters", c.Code)
	}
	if c.Name == "" {
		return nil, errors.NotValidf("empty currency name")
	}
	if c.Rate <= 0 {
		return nil, errors.NotValidf("rate %v for %s: must be positive", c.Rate, c.Code)
	}
	if c.Reference && c.Rate != 1 {
		return nil, errors.NotValidf("reference currency %s with rate %v: must be 1", c.Code, c.Rate)
	}

	if _, err := s.repo.GetByCode(ctx, c.Code); err == nil {
		return nil, errors.AlreadyExistsf("currency %s", c.Code)
	} else if !errors.Is(err, errors.NotFound) {
		return nil, err
	}
	if c.Reference {
		ref, err := s.repo.GetReference(ctx)
		if err == nil {
			return nil, errors.AlreadyExistsf("reference currency (%s)", ref.Code)
		}
		if !errors.Is(err, errors.NotFound) {
			return nil, err
		}
	}

	if err := s.repo.Insert(ctx, &c); err != nil {
		// Lost a race on the unique code.
		if _, lookupErr := s.repo.GetByCode(ctx, c.Code); lookupErr == nil {
			return nil, errors.AlreadyExistsf("currency %s", c.Code)
		}
		return nil, err
	}
	s.log.Info().Str("code", c.Code).Float64("rate", c.Rate).Bool("reference", c.Reference).Msg("currency created")
	return &c, nil
}

func (s *Service) GetByCode(ctx context.Context, code string) (*domain.Currency, error) {
	return s.repo.GetByCode(ctx, domain.NormalizeCode(code))
}

func (s *Service) GetByID(ctx context.Context, id int64) (*domain.Currency, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]domain.Currency, error) {
	out, err := s.repo.List(ctx)
	if out == nil && err == nil {
		out = []domain.Currency{}
	}
	return out, err
}

// Reference returns the reference currency.
func (s *Service) Reference(ctx context.Context) (*domain.Currency, error) {
	return s.repo.GetReference(ctx)
}

// Seed fills an empty store with the reference currency and a few others.
// Rates are units of the reference currency per unit.
func (s *Service) Seed(ctx context.Context, referenceCode string) error {
	n, err := s.repo.Count(ctx)
	if err != nil {
		return errors.Annotate(err, "count currencies")
	}
	if n > 0 {
		s.log.Debug().Int("count", n).Msg("currencies present, skipping seed")
		return nil
	}

	seed := []domain.Currency{
		{Code: "MAD", Name: "Dirham marocain", Rate: 1.0},
		{Code: "USD", Name: "Dollar US", Rate: 9.5},
		{Code: "EUR", Name: "Euro", Rate: 10.2},
		{Code: "TND", Name: "Dinar tunisien", Rate: 3.3},
	}
	ref := domain.NormalizeCode(referenceCode)
	if ref != "MAD" {
		// The sample rates are expressed in MAD; keep them but anchor the
		// configured reference at 1.
		seed = []domain.Currency{{Code: ref, Name: ref, Rate: 1.0}}
	}
	seed[0].Reference = true

	for _, c := range seed {
		if _, err := s.Create(ctx, c); err != nil {
			return errors.Annotatef(err, "seed currency %s", c.Code)
		}
	}
	s.log.Info().Int("count", len(seed)).Str("reference", ref).Msg("seeded currencies")
	return nil
}
