package invoice

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/ledgerline/billing/internal/domain"
)

const lookupConcurrency = 8

// enrich attaches client and product views to invs. Lookups never fail the
// caller: a missing or unreachable entity becomes a placeholder.
func (l *Ledger) enrich(ctx context.Context, invs []domain.Invoice) {
	clientIDs := map[int64]bool{}
	productIDs := map[int64]bool{}
	for _, inv := range invs {
		clientIDs[inv.ClientID] = true
		for _, line := range inv.Lines {
			productIDs[line.ProductID] = true
		}
	}

	clients := l.clientViews(ctx, clientIDs)
	products := l.productViews(ctx, productIDs)

	for i := range invs {
		invs[i].Client = clients[invs[i].ClientID]
		for j := range invs[i].Lines {
			invs[i].Lines[j].Product = products[invs[i].Lines[j].ProductID]
		}
	}
}

func (l *Ledger) clientViews(ctx context.Context, ids map[int64]bool) map[int64]*domain.Client {
	var (
		mu  sync.Mutex
		out = make(map[int64]*domain.Client, len(ids))
		g   errgroup.Group
	)
	g.SetLimit(lookupConcurrency)
	for id := range ids {
		id := id
		g.Go(func() error {
			c, err := l.customers.GetClient(ctx, id)
			if err != nil {
				l.log.Warn().Err(err).Int64("client", id).Msg("client lookup failed, using placeholder")
				c = domain.PlaceholderClient(id)
			}
			mu.Lock()
			out[id] = c
			mu.Unlock()
			return nil
		})
	}
	g.Wait()
	return out
}

func (l *Ledger) productViews(ctx context.Context, ids map[int64]bool) map[int64]*domain.Product {
	var (
		mu  sync.Mutex
		out = make(map[int64]*domain.Product, len(ids))
		g   errgroup.Group
	)
	g.SetLimit(lookupConcurrency)
	for id := range ids {
		id := id
		g.Go(func() error {
			p, err := l.products.GetByID(ctx, id)
			if err != nil {
				l.log.Warn().Err(err).Int64("product", id).Msg("product lookup failed, using placeholder")
				p = domain.PlaceholderProduct(id)
			}
			mu.Lock()
			out[id] = p
			mu.Unlock()
			return nil
		})
	}
	g.Wait()
	return out
}
