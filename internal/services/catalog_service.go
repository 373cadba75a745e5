package services

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"bulkmart/internal/backend"
	"bulkmart/internal/domain"
	"bulkmart/internal/pricing"
)

// Reference is the slow-moving data pricing depends on.
type Reference struct {
	Categories        []domain.Category         `json:"categories"`
	CategoryDiscounts []domain.CategoryDiscount `json:"category_discounts"`
	FlashOffers       []domain.FlashOffer       `json:"flash_offers"`
	CreditPeriods     []domain.CreditPeriod     `json:"credit_periods"`
}

type CatalogService struct {
	API *backend.Client
	TTL time.Duration
	Now func() time.Time

	mu         sync.RWMutex
	ref        *Reference
	refAt      time.Time
	products   map[string]domain.Product
	productsAt time.Time
	group      singleflight.Group
}

func NewCatalogService(api *backend.Client, ttl time.Duration) *CatalogService {
	return &CatalogService{API: api, TTL: ttl, Now: time.Now}
}

// shared runs fn once for all concurrent callers of key. The fetch is
// detached from any single caller's cancellation; each caller still stops
// waiting when its own ctx ends.
func shared[T any](ctx context.Context, g *singleflight.Group, key string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	ch := g.DoChan(key, func() (any, error) {
		return fn(context.WithoutCancel(ctx))
	})
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return zero, r.Err
		}
		return r.Val.(T), nil
	}
}

func (s *CatalogService) fresh(at time.Time) bool {
	return s.TTL > 0 && !at.IsZero() && s.Now().Sub(at) < s.TTL
}

// Reference returns cached reference data, refetching all four tables
// concurrently once the TTL has passed.
func (s *CatalogService) Reference(ctx context.Context) (Reference, error) {
	s.mu.RLock()
	if s.ref != nil && s.fresh(s.refAt) {
		r := *s.ref
		s.mu.RUnlock()
		return r, nil
	}
	s.mu.RUnlock()

	return shared(ctx, &s.group, "reference", func(ctx context.Context) (Reference, error) {
		var r Reference
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() (err error) { r.Categories, err = s.API.ListCategories(gctx); return })
		g.Go(func() (err error) { r.CategoryDiscounts, err = s.API.ListCategoryDiscounts(gctx); return })
		g.Go(func() (err error) { r.FlashOffers, err = s.API.ListFlashOffers(gctx); return })
		g.Go(func() (err error) { r.CreditPeriods, err = s.API.ListCreditPeriods(gctx); return })
		if err := g.Wait(); err != nil {
			return Reference{}, err
		}
		s.mu.Lock()
		s.ref, s.refAt = &r, s.Now()
		s.mu.Unlock()
		return r, nil
	})
}

// Products always asks the backend; cart sync relies on it being current.
func (s *CatalogService) Products(ctx context.Context) ([]domain.Product, error) {
	return shared(ctx, &s.group, "products", func(ctx context.Context) ([]domain.Product, error) {
		list, err := s.API.ListProducts(ctx)
		if err != nil {
			return nil, err
		}
		byID := make(map[string]domain.Product, len(list))
		for _, p := range list {
			byID[p.ID] = p
		}
		s.mu.Lock()
		s.products, s.productsAt = byID, s.Now()
		s.mu.Unlock()
		return list, nil
	})
}

// Product looks id up in the last product list, refreshing it when older
// than the TTL.
func (s *CatalogService) Product(ctx context.Context, id string) (domain.Product, error) {
	s.mu.RLock()
	p, ok := s.products[id]
	fresh := s.products != nil && s.fresh(s.productsAt)
	s.mu.RUnlock()
	if ok && fresh {
		return p, nil
	}
	if _, err := s.Products(ctx); err != nil {
		return domain.Product{}, err
	}
	s.mu.RLock()
	p, ok = s.products[id]
	s.mu.RUnlock()
	if !ok {
		return domain.Product{}, ErrUnknownProduct
	}
	return p, nil
}

// CreditPeriod resolves a credit term. "0" always exists.
func (s *CatalogService) CreditPeriod(ctx context.Context, id string) (domain.CreditPeriod, error) {
	ref, err := s.Reference(ctx)
	if err != nil {
		return domain.CreditPeriod{}, err
	}
	for _, p := range ref.CreditPeriods {
		if p.ID == id {
			return p, nil
		}
	}
	if id == domain.NoCredit {
		return domain.CreditPeriod{ID: domain.NoCredit, Percentage: domain.NumberFromInt(0)}, nil
	}
	return domain.CreditPeriod{}, ErrUnknownCreditPeriod
}

func (s *CatalogService) Account(ctx context.Context, id string) (domain.Account, error) {
	return s.API.GetAccount(ctx, id)
}

// Rules builds the discount rules for acct from current reference data.
func (s *CatalogService) Rules(ctx context.Context, acct domain.Account) (pricing.Rules, error) {
	ref, err := s.Reference(ctx)
	if err != nil {
		return pricing.Rules{}, err
	}
	r := pricing.Rules{
		FlashOffers:       make(map[string]domain.FlashOffer, len(ref.FlashOffers)),
		CategoryDiscounts: make(map[string]domain.CategoryDiscount, len(ref.CategoryDiscounts)),
		RetailerPercent:   acct.RetailerDiscount,
		Now:               s.Now(),
	}
	for _, f := range ref.FlashOffers {
		r.FlashOffers[f.ProductID] = f
	}
	for _, d := range ref.CategoryDiscounts {
		r.CategoryDiscounts[d.CategoryID] = d
	}
	return r, nil
}

// Invalidate forces the next read to hit the backend.
func (s *CatalogService) Invalidate() {
	s.mu.Lock()
	s.ref, s.products = nil, nil
	s.mu.Unlock()
}
