package backend_test

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bulkmart/internal/backend"
	"bulkmart/internal/backend/backendtest"
	"bulkmart/internal/domain"
)

func newClient(t *testing.T) (*backend.Client, *backendtest.Server) {
	t.Helper()
	srv := backendtest.New(t)
	return backend.NewClient(srv.URL+"/", "key-1", 2*time.Second), srv
}

func TestCatalogEndpoints(t *testing.T) {
	c, _ := newClient(t)
	ctx := context.Background()

	products, err := c.ListProducts(ctx)
	require.NoError(t, err)
	require.Len(t, products, 4)
	assert.Equal(t, "p-rice", products[0].ID)
	assert.True(t, products[0].SalePrice.IsSet())

	flash, err := c.ListFlashOffers(ctx)
	require.NoError(t, err)
	require.Len(t, flash, 1)
	assert.Equal(t, "p-soap", flash[0].ProductID)
	buy, _ := flash[0].BuyQuantity.Int()
	get, _ := flash[0].GetQuantity.Int()
	assert.Equal(t, 2, buy)
	assert.Equal(t, 1, get)

	periods, err := c.ListCreditPeriods(ctx)
	require.NoError(t, err)
	assert.Len(t, periods, 3)

	acct, err := c.GetAccount(ctx, "acct-1")
	require.NoError(t, err)
	assert.Equal(t, "5", acct.RetailerDiscount.Decimal().String())
}

func TestAPIErrorCarriesServerMessage(t *testing.T) {
	c, _ := newClient(t)

	_, err := c.GetAccount(context.Background(), "nobody")
	var apiErr *backend.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
	assert.Equal(t, "account not found", apiErr.Message)
	assert.Equal(t, "/accounts/nobody", apiErr.Path)
}

func TestInjectedFailure(t *testing.T) {
	c, srv := newClient(t)
	srv.FailNext(http.MethodPost, "/carts/", http.StatusServiceUnavailable, "cart service down")

	_, err := c.AddCartItem(context.Background(), "acct-1", backend.CartItem{ProductID: "p-rice", Quantity: 1, CreditPeriod: "0"})
	var apiErr *backend.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "cart service down", apiErr.Message)
	assert.Empty(t, srv.Cart("acct-1"))

	// only the next call fails
	_, err = c.AddCartItem(context.Background(), "acct-1", backend.CartItem{ProductID: "p-rice", Quantity: 1, CreditPeriod: "0"})
	require.NoError(t, err)
}

func TestCartRoundTrip(t *testing.T) {
	c, srv := newClient(t)
	ctx := backend.WithToken(context.Background(), "tok-abc")

	added, err := c.AddCartItem(ctx, "acct-1", backend.CartItem{ProductID: "p-dal", Quantity: 2, CreditPeriod: "15", CreditPercentage: domain.NewNumber(1.5)})
	require.NoError(t, err)
	require.NotEmpty(t, added.ID)
	assert.Equal(t, "Bearer tok-abc", srv.LastAuthorization())

	added.Quantity = 5
	require.NoError(t, c.UpdateCartItem(ctx, "acct-1", added))

	items, err := c.GetCart(ctx, "acct-1")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 5, items[0].Quantity)
	assert.Equal(t, "1.5", items[0].CreditPercentage.Decimal().String())

	require.NoError(t, c.RemoveCartItem(ctx, "acct-1", added.ID))
	items, err = c.GetCart(ctx, "acct-1")
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestOrdersAndInvoice(t *testing.T) {
	c, _ := newClient(t)
	ctx := context.Background()

	o, err := c.CreateOrder(ctx, backend.OrderRequest{
		SubmissionID: "sub-1",
		CustomerID:   "acct-2",
		Mode:         domain.ModePakka,
		Lines:        []map[string]any{{"product_id": "p-rice", "quantity": 2, "line_total": 236}},
		Totals:       map[string]any{"payable": 236},
	})
	require.NoError(t, err)
	assert.Equal(t, "PLACED", o.Status)

	list, err := c.ListOrders(ctx, "acct-2")
	require.NoError(t, err)
	require.Len(t, list, 1)

	pdf, err := c.GetInvoicePDF(ctx, o.ID)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF")))

	cancelled, err := c.CancelOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, "CANCELLED", cancelled.Status)

	_, err = c.CancelOrder(ctx, o.ID)
	var apiErr *backend.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusConflict, apiErr.Status)
}

func TestContextCancellation(t *testing.T) {
	c, _ := newClient(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.ListProducts(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
