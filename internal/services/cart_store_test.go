package services_test

import (
	"errors"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bulkmart/internal/backend"
	"bulkmart/internal/domain"
	"bulkmart/internal/repos"
	"bulkmart/internal/services"
)

func TestCartStore_AddWritesThrough(t *testing.T) {
	e := newEnv(t)

	lines, err := e.carts.AddItem(e.ctx, "sid-1", "acct-1", "p-rice", 2, "15")
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.NotEmpty(t, lines[0].LineID)
	assert.Equal(t, "1.5", lines[0].CreditPercentage.Decimal().String())

	remote := e.srv.Cart("acct-1")
	require.Len(t, remote, 1)
	assert.Equal(t, lines[0].LineID, remote[0].ID)
	assert.Equal(t, 2, remote[0].Quantity)

	// adding the same product again merges into the line
	lines, err = e.carts.AddItem(e.ctx, "sid-1", "acct-1", "p-rice", 3, "15")
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, 5, lines[0].Quantity)
	assert.Equal(t, 5, e.srv.Cart("acct-1")[0].Quantity)

	acct, snap, err := repos.NewCartRepo(e.db).Load("sid-1")
	require.NoError(t, err)
	assert.Equal(t, "acct-1", acct)
	require.Len(t, snap, 1)
	assert.Equal(t, 5, snap[0].Quantity)
}

func TestCartStore_FailedWriteResyncs(t *testing.T) {
	e := newEnv(t)
	_, err := e.carts.AddItem(e.ctx, "sid-1", "acct-1", "p-dal", 1, "0")
	require.NoError(t, err)

	e.srv.FailNext(http.MethodPost, "/carts/", http.StatusServiceUnavailable, "cart service down")
	entries := captureLogs(t, func() {
		_, err = e.carts.AddItem(e.ctx, "sid-1", "acct-1", "p-rice", 1, "0")
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, services.ErrReverted))
	var apiErr *backend.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "cart service down", apiErr.Message)
	assert.True(t, hasAction(entries, "cart.add.revert"))

	got, err := e.carts.Lines(e.ctx, "sid-1", "acct-1")
	require.NoError(t, err)
	require.Len(t, got, 1, "optimistic line must be gone after resync")
	assert.Equal(t, "p-dal", got[0].ProductID)

	_, snap, err := repos.NewCartRepo(e.db).Load("sid-1")
	require.NoError(t, err)
	assert.Len(t, snap, 1)
}

func TestCartStore_SyncDropsUnknownProducts(t *testing.T) {
	e := newEnv(t)
	e.srv.SetCart("acct-1",
		backend.CartItem{ProductID: "p-discontinued", Quantity: 4, CreditPeriod: "0"},
		backend.CartItem{ProductID: "p-dal", Quantity: 1, CreditPeriod: "30"},
	)

	var (
		lines []any
		err   error
	)
	entries := captureLogs(t, func() {
		got, serr := e.carts.Sync(e.ctx, "sid-1", "acct-1")
		err = serr
		for _, l := range got {
			lines = append(lines, l.ProductID)
		}
	})
	require.NoError(t, err)
	assert.Equal(t, []any{"p-dal"}, lines)
	assert.True(t, hasAction(entries, "cart.sync.drop"))
}

func TestCartStore_SyncMergesDuplicateProductLines(t *testing.T) {
	e := newEnv(t)
	e.srv.SetCart("acct-1",
		backend.CartItem{ProductID: "p-rice", Quantity: 2, CreditPeriod: "15"},
		backend.CartItem{ProductID: "p-dal", Quantity: 1, CreditPeriod: "0"},
		backend.CartItem{ProductID: "p-rice", Quantity: 3, CreditPeriod: "30"},
	)

	var (
		lines []domain.CartLine
		err   error
	)
	entries := captureLogs(t, func() {
		lines, err = e.carts.Sync(e.ctx, "sid-1", "acct-1")
	})
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, "p-rice", lines[0].ProductID)
	assert.Equal(t, 5, lines[0].Quantity)
	assert.Equal(t, "15", lines[0].CreditPeriod)
	assert.True(t, hasAction(entries, "cart.sync.merge"))

	remote := e.srv.Cart("acct-1")
	require.Len(t, remote, 2)
	assert.Equal(t, lines[0].LineID, remote[0].ID)
	assert.Equal(t, 5, remote[0].Quantity)

	_, snap, err := repos.NewCartRepo(e.db).Load("sid-1")
	require.NoError(t, err)
	assert.Len(t, snap, 2)

	// the merged line is reachable by product
	lines, err = e.carts.SetQuantity(e.ctx, "sid-1", "acct-1", "p-rice", 4)
	require.NoError(t, err)
	assert.Equal(t, 4, lines[0].Quantity)
	assert.Equal(t, 4, e.srv.Cart("acct-1")[0].Quantity)
}

func TestCartStore_StaleSnapshotWhenBackendDown(t *testing.T) {
	e := newEnv(t)
	_, err := e.carts.AddItem(e.ctx, "sid-1", "acct-1", "p-oil", 2, "0")
	require.NoError(t, err)

	// a restarted process has only the snapshot
	restarted := buildEnv(e.srv, e.db)
	e.srv.FailNext(http.MethodGet, "/carts/", http.StatusBadGateway, "upstream timeout")

	lines, err := restarted.carts.Lines(e.ctx, "sid-1", "acct-1")
	require.ErrorIs(t, err, services.ErrStale)
	require.Len(t, lines, 1)
	assert.Equal(t, "p-oil", lines[0].ProductID)

	// next read recovers
	lines, err = restarted.carts.Lines(e.ctx, "sid-1", "acct-1")
	require.NoError(t, err)
	assert.Len(t, lines, 1)
}

func TestCartStore_Validation(t *testing.T) {
	e := newEnv(t)
	_, err := e.carts.AddItem(e.ctx, "sid-1", "acct-1", "p-rice", 0, "0")
	assert.ErrorIs(t, err, services.ErrInvalidQuantity)

	_, err = e.carts.AddItem(e.ctx, "sid-1", "acct-1", "p-nope", 1, "0")
	assert.ErrorIs(t, err, services.ErrUnknownProduct)

	_, err = e.carts.AddItem(e.ctx, "sid-1", "acct-1", "p-rice", 1, "45")
	assert.ErrorIs(t, err, services.ErrUnknownCreditPeriod)

	_, err = e.carts.SetQuantity(e.ctx, "sid-1", "acct-1", "p-rice", 2)
	assert.ErrorIs(t, err, services.ErrNotInCart)

	_, err = e.carts.AddItem(e.ctx, "sid-1", "acct-1", "p-rice", 1, "0")
	require.NoError(t, err)
	_, err = e.carts.SetQuantity(e.ctx, "sid-1", "acct-1", "p-rice", -1)
	assert.ErrorIs(t, err, services.ErrInvalidQuantity)

	_, err = e.carts.RemoveItem(e.ctx, "sid-1", "acct-1", "p-dal")
	assert.ErrorIs(t, err, services.ErrNotInCart)
}

func TestCartStore_QuantityCreditRemoveClear(t *testing.T) {
	e := newEnv(t)
	_, err := e.carts.AddItem(e.ctx, "sid-1", "acct-1", "p-rice", 1, "0")
	require.NoError(t, err)
	_, err = e.carts.AddItem(e.ctx, "sid-1", "acct-1", "p-dal", 1, "0")
	require.NoError(t, err)

	lines, err := e.carts.SetQuantity(e.ctx, "sid-1", "acct-1", "p-rice", 7)
	require.NoError(t, err)
	assert.Equal(t, 7, lines[0].Quantity)

	lines, err = e.carts.SetCreditPeriod(e.ctx, "sid-1", "acct-1", "p-dal", "30")
	require.NoError(t, err)
	assert.Equal(t, "30", lines[1].CreditPeriod)
	assert.Equal(t, "3", e.srv.Cart("acct-1")[1].CreditPercentage.Decimal().String())

	lines, err = e.carts.RemoveItem(e.ctx, "sid-1", "acct-1", "p-rice")
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Len(t, e.srv.Cart("acct-1"), 1)

	require.NoError(t, e.carts.Clear(e.ctx, "sid-1", "acct-1"))
	assert.Empty(t, e.srv.Cart("acct-1"))
	acct, snap, err := repos.NewCartRepo(e.db).Load("sid-1")
	require.NoError(t, err)
	assert.Empty(t, acct)
	assert.Empty(t, snap)
}

func TestCartStore_SerializesConcurrentMutations(t *testing.T) {
	e := newEnv(t)
	const n = 12
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.carts.AddItem(e.ctx, "sid-1", "acct-1", "p-soap", 1, "0")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	lines, err := e.carts.Lines(e.ctx, "sid-1", "acct-1")
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, n, lines[0].Quantity)
	remote := e.srv.Cart("acct-1")
	require.Len(t, remote, 1)
	assert.Equal(t, n, remote[0].Quantity)
}

func TestSession_SwitchingAccountsDropsCart(t *testing.T) {
	e := newEnv(t)
	switched, err := e.sessions.Bind("sid-1", "acct-1")
	require.NoError(t, err)
	assert.False(t, switched)
	_, err = e.carts.AddItem(e.ctx, "sid-1", "acct-1", "p-rice", 2, "0")
	require.NoError(t, err)

	switched, err = e.sessions.Bind("sid-1", "acct-2")
	require.NoError(t, err)
	assert.True(t, switched)

	lines, err := e.carts.Lines(e.ctx, "sid-1", "acct-2")
	require.NoError(t, err)
	assert.Empty(t, lines)
	// the first account's remote cart is untouched
	assert.Len(t, e.srv.Cart("acct-1"), 1)
}

func TestSession_LogoutClearsLocalCart(t *testing.T) {
	e := newEnv(t)
	_, err := e.sessions.Bind("sid-1", "acct-1")
	require.NoError(t, err)
	_, err = e.carts.AddItem(e.ctx, "sid-1", "acct-1", "p-rice", 2, "0")
	require.NoError(t, err)

	require.NoError(t, e.sessions.Logout("sid-1"))
	acct, err := e.sessions.Account("sid-1")
	require.NoError(t, err)
	assert.Empty(t, acct)
	_, snap, err := repos.NewCartRepo(e.db).Load("sid-1")
	require.NoError(t, err)
	assert.Empty(t, snap)

	_, err = e.sessions.Bind("sid-1", "")
	assert.ErrorIs(t, err, services.ErrNoAccount)
}
