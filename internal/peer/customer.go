package peer

import (
	"context"
	"fmt"

	"github.com/ledgerline/billing/internal/domain"
)

// CustomerClient calls the client service.
type CustomerClient struct {
	c *client
}

func NewCustomerClient(baseURL string, opts Options) *CustomerClient {
	return &CustomerClient{c: newClient("customer", baseURL, opts)}
}

func (cc *CustomerClient) GetClient(ctx context.Context, id int64) (*domain.Client, error) {
	var out domain.Client
	if err := cc.c.get(ctx, fmt.Sprintf("/clients/%d", id), &out); err != nil {
		return nil, err
	}
	return &out, nil
}
