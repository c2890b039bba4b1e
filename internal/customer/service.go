package customer

import (
	"context"
	"sort"
	"strings"

	"github.com/juju/errors"
	"github.com/rs/zerolog"

	"github.com/ledgerline/billing/internal/domain"
	"github.com/ledgerline/billing/internal/logger"
	"github.com/ledgerline/billing/internal/repository"
)

// Invoices is what the client service needs from the invoice service.
type Invoices interface {
	RevenueByClient(ctx context.Context, clientID int64, year int) (float64, error)
	Outstanding(ctx context.Context, clientID int64) (float64, error)
	ByClient(ctx context.Context, clientID int64, status domain.InvoiceStatus) ([]domain.Invoice, error)
	TopClients(ctx context.Context, year, limit int) ([]domain.ClientRevenue, error)
	RequestedProducts(ctx context.Context, clientID int64, limit int) ([]domain.ProductSales, error)
}

// Currencies converts amounts between currency codes.
type Currencies interface {
	Convert(ctx context.Context, amount float64, from, to string) (float64, error)
}

// Service is the Client Store plus the per-client figures it derives from
// the invoice and currency services.
type Service struct {
	repo          *repository.ClientRepo
	invoices      Invoices
	currencies    Currencies
	referenceCode string
	log           zerolog.Logger
}

func NewService(repo *repository.ClientRepo, invoices Invoices, currencies Currencies, referenceCode string) *Service {
	return &Service{
		repo:          repo,
		invoices:      invoices,
		currencies:    currencies,
		referenceCode: referenceCode,
		log:           logger.WithComponent("customer"),
	}
}

func (s *Service) List(ctx context.Context) ([]domain.Client, error) {
	out, err := s.repo.List(ctx)
	if out == nil && err == nil {
		out = []domain.Client{}
	}
	return out, err
}

func (s *Service) Get(ctx context.Context, id int64) (*domain.Client, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) Create(ctx context.Context, c domain.Client) (*domain.Client, error) {
	if err := validate(&c); err != nil {
		return nil, err
	}
	if err := s.repo.Insert(ctx, &c); err != nil {
		return nil, err
	}
	s.log.Info().Int64("client", c.ID).Str("name", c.Name).Msg("client created")
	return &c, nil
}

func (s *Service) Update(ctx context.Context, id int64, c domain.Client) (*domain.Client, error) {
	c.ID = id
	if err := validate(&c); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.repo.Delete(ctx, id)
}

// Revenue sums the client's invoice totals, in one year when year is not 0.
func (s *Service) Revenue(ctx context.Context, id int64, year int) (float64, error) {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return 0, err
	}
	return s.invoices.RevenueByClient(ctx, id, year)
}

// RevenueIn is Revenue expressed in currency instead of the reference.
func (s *Service) RevenueIn(ctx context.Context, id int64, currency string, year int) (float64, error) {
	currency = domain.NormalizeCode(currency)
	if currency == "" {
		return 0, errors.NotValidf("empty currency")
	}
	revenue, err := s.Revenue(ctx, id, year)
	if err != nil {
		return 0, err
	}
	return s.currencies.Convert(ctx, revenue, s.referenceCode, currency)
}

// Outstanding sums what the client still owes.
func (s *Service) Outstanding(ctx context.Context, id int64) (float64, error) {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return 0, err
	}
	return s.invoices.Outstanding(ctx, id)
}

// Invoices lists the client's invoices, only those in status when given.
func (s *Service) Invoices(ctx context.Context, id int64, status string) ([]domain.Invoice, error) {
	var st domain.InvoiceStatus
	if status != "" {
		var err error
		if st, err = domain.ParseInvoiceStatus(strings.ToUpper(status)); err != nil {
			return nil, err
		}
	}
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return s.invoices.ByClient(ctx, id, st)
}

// Loyal ranks every client by revenue, highest first, and keeps limit.
func (s *Service) Loyal(ctx context.Context, limit int) ([]domain.ClientRevenue, error) {
	if limit <= 0 {
		limit = 5
	}
	clients, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	ranked, err := s.invoices.TopClients(ctx, 0, 0)
	if err != nil {
		return nil, err
	}
	revenue := make(map[int64]float64, len(ranked))
	for _, r := range ranked {
		revenue[r.ClientID] = r.Revenue
	}

	out := make([]domain.ClientRevenue, 0, len(clients))
	for _, c := range clients {
		out = append(out, domain.ClientRevenue{ClientID: c.ID, ClientName: c.Name, Revenue: revenue[c.ID]})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Revenue > out[j].Revenue
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// RequestedProducts lists the products the client bought most.
func (s *Service) RequestedProducts(ctx context.Context, id int64, limit int) ([]domain.ProductSales, error) {
	if limit <= 0 {
		limit = 5
	}
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return s.invoices.RequestedProducts(ctx, id, limit)
}

// Seed fills an empty store with sample clients.
func (s *Service) Seed(ctx context.Context) error {
	n, err := s.repo.Count(ctx)
	if err != nil {
		return errors.Annotate(err, "count clients")
	}
	if n > 0 {
		return nil
	}
	seed := []domain.Client{
		{Name: "Ali", Email: "ali.ms@gmail.com", Address: "123 Rue Exemple"},
		{Name: "Mariem", Email: "Mariem.ms@gmail.com", Address: "456 Avenue Test"},
		{Name: "Mohamed", Email: "Mohamed.ms@gmail.com", Address: "789 Boulevard Demo"},
	}
	for _, c := range seed {
		if _, err := s.Create(ctx, c); err != nil {
			return errors.Annotatef(err, "seed client %s", c.Name)
		}
	}
	s.log.Info().Int("count", len(seed)).Msg("seeded clients")
	return nil
}

func validate(c *domain.Client) error {
	c.Name = strings.TrimSpace(c.Name)
	c.Email = strings.TrimSpace(c.Email)
	if c.Name == "" {
		return errors.NotValidf("empty client name")
	}
	if c.Email != "" && !strings.Contains(c.Email, "@") {
		return errors.NotValidf("email %q", c.Email)
	}
	return nil
}
