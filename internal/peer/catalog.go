package peer

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/ledgerline/billing/internal/domain"
)

// CatalogClient calls the catalog service.
type CatalogClient struct {
	c *client
}

func NewCatalogClient(baseURL string, opts Options) *CatalogClient {
	return &CatalogClient{c: newClient("catalog", baseURL, opts)}
}

func (cc *CatalogClient) GetByID(ctx context.Context, id int64) (*domain.Product, error) {
	var out domain.Product
	if err := cc.c.get(ctx, fmt.Sprintf("/products/%d", id), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (cc *CatalogClient) DecreaseStock(ctx context.Context, id, quantity int64) (*domain.Product, error) {
	return cc.moveStock(ctx, "decrease-stock", id, quantity)
}

func (cc *CatalogClient) IncreaseStock(ctx context.Context, id, quantity int64) (*domain.Product, error) {
	return cc.moveStock(ctx, "increase-stock", id, quantity)
}

func (cc *CatalogClient) moveStock(ctx context.Context, action string, id, quantity int64) (*domain.Product, error) {
	var out domain.Product
	path := fmt.Sprintf("/products/%d/%s", id, action) + query("quantity", strconv.FormatInt(quantity, 10))
	if err := cc.c.send(ctx, http.MethodPut, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
