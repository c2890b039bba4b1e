package peer

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/ledgerline/billing/internal/domain"
)

// CurrencyClient calls the currency service.
type CurrencyClient struct {
	c *client
}

func NewCurrencyClient(baseURL string, opts Options) *CurrencyClient {
	return &CurrencyClient{c: newClient("currency", baseURL, opts)}
}

func (cc *CurrencyClient) GetByCode(ctx context.Context, code string) (*domain.Currency, error) {
	var out domain.Currency
	if err := cc.c.get(ctx, "/currencies/"+url.PathEscape(code), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (cc *CurrencyClient) Convert(ctx context.Context, amount float64, from, to string) (float64, error) {
	var out float64
	path := fmt.Sprintf("/currencies/convert/%s/%s/%s",
		strconv.FormatFloat(amount, 'f', -1, 64), url.PathEscape(from), url.PathEscape(to))
	if err := cc.c.get(ctx, path, &out); err != nil {
		return 0, err
	}
	return out, nil
}
