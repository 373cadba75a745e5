package services

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"bulkmart/internal/backend"
	"bulkmart/internal/domain"
	applog "bulkmart/internal/log"
	"bulkmart/internal/repos"
)

// sessionCart is the cached cart of one session. mu serializes every
// mutation and sync against it.
type sessionCart struct {
	mu      sync.Mutex
	account string
	lines   []domain.CartLine
	loaded  bool
}

func (c *sessionCart) index(productID string) int {
	for i, l := range c.lines {
		if l.ProductID == productID {
			return i
		}
	}
	return -1
}

func (c *sessionCart) snapshot() []domain.CartLine {
	return append([]domain.CartLine(nil), c.lines...)
}

// CartStore is a write-through cache of the remote cart, one per session.
// Local state changes first; the backend is authoritative and a failed
// remote write is answered with a full resync.
type CartStore struct {
	API       *backend.Client
	Catalog   *CatalogService
	Snapshots *repos.CartRepo

	mu    sync.Mutex
	carts map[string]*sessionCart
	syncs singleflight.Group
}

func NewCartStore(api *backend.Client, catalog *CatalogService, snaps *repos.CartRepo) *CartStore {
	return &CartStore{API: api, Catalog: catalog, Snapshots: snaps, carts: map[string]*sessionCart{}}
}

// cart returns the session cart for account, dropping whatever the session
// held for a different account.
func (s *CartStore) cart(sid, account string) *sessionCart {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.carts[sid]
	if !ok {
		c = &sessionCart{account: account}
		s.carts[sid] = c
	}
	return c
}

// lock acquires the session cart and resets it if the account changed.
func (s *CartStore) lock(sid, account string) *sessionCart {
	c := s.cart(sid, account)
	c.mu.Lock()
	if c.account != account {
		applog.Info(nil, "cart.account.reset", map[string]any{"session": sid, "from": c.account, "to": account})
		c.account, c.lines, c.loaded = account, nil, false
		s.persist(sid, c)
	}
	return c
}

func (s *CartStore) persist(sid string, c *sessionCart) {
	if err := s.Snapshots.Save(sid, c.account, c.lines); err != nil {
		applog.Warn(nil, "cart.snapshot.fail", err, map[string]any{"session": sid})
	}
}

// syncLocked replaces the cart with the backend's copy joined to the
// current catalog. Lines whose product is gone are dropped.
func (s *CartStore) syncLocked(ctx context.Context, sid string, c *sessionCart) error {
	var (
		items    []backend.CartItem
		products []domain.Product
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) { items, err = s.API.GetCart(gctx, c.account); return })
	g.Go(func() (err error) { products, err = s.Catalog.Products(gctx); return })
	if err := g.Wait(); err != nil {
		return err
	}

	byID := make(map[string]domain.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	lines := make([]domain.CartLine, 0, len(items))
	seen := map[string]int{}
	var (
		dups   []string
		merged []int
	)
	for _, it := range items {
		p, ok := byID[it.ProductID]
		if !ok {
			applog.Warn(nil, "cart.sync.drop", nil, map[string]any{
				"session": sid, "account": c.account, "product_id": it.ProductID, "line_id": it.ID,
			})
			continue
		}
		// one line per product; later lines fold into the first
		if i, ok := seen[it.ProductID]; ok {
			lines[i].Quantity += it.Quantity
			dups = append(dups, it.ID)
			merged = append(merged, i)
			applog.Warn(nil, "cart.sync.merge", nil, map[string]any{
				"session": sid, "account": c.account, "product_id": it.ProductID,
				"line_id": it.ID, "into": lines[i].LineID, "credit_period": lines[i].CreditPeriod,
			})
			continue
		}
		seen[it.ProductID] = len(lines)
		period := it.CreditPeriod
		if period == "" {
			period = domain.NoCredit
		}
		lines = append(lines, domain.CartLine{
			LineID:           it.ID,
			ProductID:        it.ProductID,
			Product:          p,
			Quantity:         it.Quantity,
			CreditPeriod:     period,
			CreditPercentage: it.CreditPercentage,
		})
	}
	if len(dups) > 0 {
		if err := s.mergeRemote(ctx, c.account, lines, merged, dups); err != nil {
			return err
		}
	}
	c.lines, c.loaded = lines, true
	s.persist(sid, c)
	return nil
}

// mergeRemote makes the backend match a merged cart: duplicate lines go
// first, then the surviving lines get their summed quantity.
func (s *CartStore) mergeRemote(ctx context.Context, account string, lines []domain.CartLine, merged []int, dups []string) error {
	for _, id := range dups {
		if err := s.API.RemoveCartItem(ctx, account, id); err != nil {
			return err
		}
	}
	done := map[int]bool{}
	for _, i := range merged {
		if done[i] {
			continue
		}
		done[i] = true
		if err := s.API.UpdateCartItem(ctx, account, itemOf(lines[i])); err != nil {
			return err
		}
	}
	return nil
}

// ensureLoaded syncs a cart that has never been fetched.
func (s *CartStore) ensureLoaded(ctx context.Context, sid string, c *sessionCart) error {
	if c.loaded {
		return nil
	}
	return s.syncLocked(ctx, sid, c)
}

// revert answers a failed remote write with a resync.
func (s *CartStore) revert(ctx context.Context, op, sid string, c *sessionCart, cause error) error {
	fields := map[string]any{"session": sid, "account": c.account}
	if err := s.syncLocked(ctx, sid, c); err != nil {
		c.loaded = false
		fields["resync_err"] = err.Error()
	}
	applog.Warn(nil, "cart."+op+".revert", cause, fields)
	return fmt.Errorf("%w: %w", ErrReverted, cause)
}

// Sync refetches the cart. Concurrent syncs of one session share a fetch.
func (s *CartStore) Sync(ctx context.Context, sid, account string) ([]domain.CartLine, error) {
	return shared(ctx, &s.syncs, sid+"\x00"+account, func(ctx context.Context) ([]domain.CartLine, error) {
		c := s.lock(sid, account)
		defer c.mu.Unlock()
		if err := s.syncLocked(ctx, sid, c); err != nil {
			return nil, err
		}
		return c.snapshot(), nil
	})
}

// Lines returns the cached cart, syncing it on first use. When that first
// sync fails the persisted snapshot is returned together with ErrStale.
func (s *CartStore) Lines(ctx context.Context, sid, account string) ([]domain.CartLine, error) {
	c := s.lock(sid, account)
	defer c.mu.Unlock()
	err := s.ensureLoaded(ctx, sid, c)
	if err == nil {
		return c.snapshot(), nil
	}
	acct, lines, lerr := s.Snapshots.Load(sid)
	if lerr != nil || acct != account {
		return nil, err
	}
	applog.Warn(nil, "cart.sync.stale", err, map[string]any{"session": sid, "lines": len(lines)})
	return lines, fmt.Errorf("%w: %w", ErrStale, err)
}

// AddItem puts qty units of productID in the cart, merging with an
// existing line for the same product.
func (s *CartStore) AddItem(ctx context.Context, sid, account, productID string, qty int, creditPeriod string) ([]domain.CartLine, error) {
	if qty < 1 {
		return nil, ErrInvalidQuantity
	}
	if creditPeriod == "" {
		creditPeriod = domain.NoCredit
	}
	p, err := s.Catalog.Product(ctx, productID)
	if err != nil {
		return nil, err
	}
	term, err := s.Catalog.CreditPeriod(ctx, creditPeriod)
	if err != nil {
		return nil, err
	}

	c := s.lock(sid, account)
	defer c.mu.Unlock()
	if err := s.ensureLoaded(ctx, sid, c); err != nil {
		return nil, err
	}

	if i := c.index(productID); i >= 0 {
		c.lines[i].Quantity += qty
		c.lines[i].CreditPeriod, c.lines[i].CreditPercentage = term.ID, term.Percentage
		c.lines[i].Product = p
		s.persist(sid, c)
		if err := s.API.UpdateCartItem(ctx, account, itemOf(c.lines[i])); err != nil {
			return nil, s.revert(ctx, "add", sid, c, err)
		}
	} else {
		c.lines = append(c.lines, domain.CartLine{
			ProductID:        productID,
			Product:          p,
			Quantity:         qty,
			CreditPeriod:     term.ID,
			CreditPercentage: term.Percentage,
		})
		s.persist(sid, c)
		created, err := s.API.AddCartItem(ctx, account, itemOf(c.lines[len(c.lines)-1]))
		if err != nil {
			return nil, s.revert(ctx, "add", sid, c, err)
		}
		if i := c.index(productID); i >= 0 {
			c.lines[i].LineID = created.ID
			s.persist(sid, c)
		}
	}
	applog.Audit(nil, "cart.add", map[string]any{"session": sid, "account": account, "product_id": productID, "qty": qty})
	return c.snapshot(), nil
}

func (s *CartStore) RemoveItem(ctx context.Context, sid, account, productID string) ([]domain.CartLine, error) {
	c := s.lock(sid, account)
	defer c.mu.Unlock()
	if err := s.ensureLoaded(ctx, sid, c); err != nil {
		return nil, err
	}
	i := c.index(productID)
	if i < 0 {
		return nil, ErrNotInCart
	}
	removed := c.lines[i]
	c.lines = append(c.lines[:i:i], c.lines[i+1:]...)
	s.persist(sid, c)
	if err := s.API.RemoveCartItem(ctx, account, removed.LineID); err != nil {
		return nil, s.revert(ctx, "remove", sid, c, err)
	}
	applog.Audit(nil, "cart.remove", map[string]any{"session": sid, "account": account, "product_id": productID})
	return c.snapshot(), nil
}

func (s *CartStore) SetQuantity(ctx context.Context, sid, account, productID string, qty int) ([]domain.CartLine, error) {
	if qty < 1 {
		return nil, ErrInvalidQuantity
	}
	return s.update(ctx, "quantity", sid, account, productID, func(l *domain.CartLine) error {
		l.Quantity = qty
		return nil
	})
}

func (s *CartStore) SetCreditPeriod(ctx context.Context, sid, account, productID, period string) ([]domain.CartLine, error) {
	term, err := s.Catalog.CreditPeriod(ctx, period)
	if err != nil {
		return nil, err
	}
	return s.update(ctx, "credit", sid, account, productID, func(l *domain.CartLine) error {
		l.CreditPeriod, l.CreditPercentage = term.ID, term.Percentage
		return nil
	})
}

func (s *CartStore) update(ctx context.Context, op, sid, account, productID string, apply func(*domain.CartLine) error) ([]domain.CartLine, error) {
	c := s.lock(sid, account)
	defer c.mu.Unlock()
	if err := s.ensureLoaded(ctx, sid, c); err != nil {
		return nil, err
	}
	i := c.index(productID)
	if i < 0 {
		return nil, ErrNotInCart
	}
	if err := apply(&c.lines[i]); err != nil {
		return nil, err
	}
	s.persist(sid, c)
	if err := s.API.UpdateCartItem(ctx, account, itemOf(c.lines[i])); err != nil {
		return nil, s.revert(ctx, op, sid, c, err)
	}
	applog.Audit(nil, "cart."+op, map[string]any{
		"session": sid, "account": account, "product_id": productID,
		"qty": c.lines[i].Quantity, "credit_period": c.lines[i].CreditPeriod,
	})
	return c.snapshot(), nil
}

// Clear empties the cart locally and remotely.
func (s *CartStore) Clear(ctx context.Context, sid, account string) error {
	c := s.lock(sid, account)
	defer c.mu.Unlock()
	c.lines, c.loaded = nil, true
	s.persist(sid, c)
	if err := s.API.ClearCart(ctx, account); err != nil {
		return s.revert(ctx, "clear", sid, c, err)
	}
	applog.Audit(nil, "cart.clear", map[string]any{"session": sid, "account": account})
	return nil
}

// Checkout hands the loaded cart to submit while holding the session's
// lock and empties the cart once submit succeeds. Mutations of the same
// session wait until the cart has been cleared, so nothing added during
// submission is lost.
func (s *CartStore) Checkout(ctx context.Context, sid, account string, submit func([]domain.CartLine) error) error {
	c := s.lock(sid, account)
	defer c.mu.Unlock()
	if err := s.ensureLoaded(ctx, sid, c); err != nil {
		return fmt.Errorf("%w: %w", ErrStale, err)
	}
	if err := submit(c.snapshot()); err != nil {
		return err
	}

	// the order exists now; the clear must land even if the caller left
	ctx = context.WithoutCancel(ctx)
	c.lines, c.loaded = nil, true
	s.persist(sid, c)
	if err := s.API.ClearCart(ctx, account); err != nil {
		applog.Warn(nil, "cart.clear.fail", err, map[string]any{"session": sid, "account": account})
		if rerr := s.syncLocked(ctx, sid, c); rerr != nil {
			c.loaded = false
		}
		return nil
	}
	applog.Audit(nil, "cart.clear", map[string]any{"session": sid, "account": account})
	return nil
}

// Logout forgets the session's cart. The remote cart is left alone.
func (s *CartStore) Logout(sid string) {
	s.mu.Lock()
	c, ok := s.carts[sid]
	delete(s.carts, sid)
	s.mu.Unlock()
	if ok {
		c.mu.Lock()
		c.lines, c.loaded = nil, false
		c.mu.Unlock()
	}
	if err := s.Snapshots.Clear(sid); err != nil {
		applog.Warn(nil, "cart.snapshot.fail", err, map[string]any{"session": sid})
	}
}

func itemOf(l domain.CartLine) backend.CartItem {
	return backend.CartItem{
		ID:               l.LineID,
		ProductID:        l.ProductID,
		Quantity:         l.Quantity,
		CreditPeriod:     l.CreditPeriod,
		CreditPercentage: l.CreditPercentage,
	}
}
