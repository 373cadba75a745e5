package backend

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"

	"bulkmart/internal/domain"
)

func (c *Client) ListProducts(ctx context.Context) ([]domain.Product, error) {
	var out []domain.Product
	return out, c.do(ctx, http.MethodGet, "/products", nil, &out)
}

func (c *Client) ListCategories(ctx context.Context) ([]domain.Category, error) {
	var out []domain.Category
	return out, c.do(ctx, http.MethodGet, "/categories", nil, &out)
}

func (c *Client) ListCategoryDiscounts(ctx context.Context) ([]domain.CategoryDiscount, error) {
	var out []domain.CategoryDiscount
	return out, c.do(ctx, http.MethodGet, "/category-discounts", nil, &out)
}

func (c *Client) ListFlashOffers(ctx context.Context) ([]domain.FlashOffer, error) {
	var out []domain.FlashOffer
	return out, c.do(ctx, http.MethodGet, "/flash-offers", nil, &out)
}

func (c *Client) ListCreditPeriods(ctx context.Context) ([]domain.CreditPeriod, error) {
	var out []domain.CreditPeriod
	return out, c.do(ctx, http.MethodGet, "/credit-periods", nil, &out)
}

func (c *Client) GetAccount(ctx context.Context, id string) (domain.Account, error) {
	var out domain.Account
	return out, c.do(ctx, http.MethodGet, "/accounts/"+esc(id), nil, &out)
}

func (c *Client) GetStaff(ctx context.Context, id string) (domain.Staff, error) {
	var out domain.Staff
	return out, c.do(ctx, http.MethodGet, "/staff/"+esc(id), nil, &out)
}

// CartItem is the remote cart's view of a line: no product details.
type CartItem struct {
	ID               string        `json:"id"`
	ProductID        string        `json:"product_id"`
	Quantity         int           `json:"quantity"`
	CreditPeriod     string        `json:"credit_period"`
	CreditPercentage domain.Number `json:"credit_percentage"`
}

func (c *Client) GetCart(ctx context.Context, customer string) ([]CartItem, error) {
	var out []CartItem
	return out, c.do(ctx, http.MethodGet, "/carts/"+esc(customer), nil, &out)
}

func (c *Client) AddCartItem(ctx context.Context, customer string, it CartItem) (CartItem, error) {
	var out CartItem
	return out, c.do(ctx, http.MethodPost, "/carts/"+esc(customer)+"/items", it, &out)
}

func (c *Client) UpdateCartItem(ctx context.Context, customer string, it CartItem) error {
	return c.do(ctx, http.MethodPut, "/carts/"+esc(customer)+"/items/"+esc(it.ID), it, nil)
}

func (c *Client) RemoveCartItem(ctx context.Context, customer, lineID string) error {
	return c.do(ctx, http.MethodDelete, "/carts/"+esc(customer)+"/items/"+esc(lineID), nil, nil)
}

func (c *Client) ClearCart(ctx context.Context, customer string) error {
	return c.do(ctx, http.MethodDelete, "/carts/"+esc(customer), nil, nil)
}

// OrderRequest is the submission payload: priced lines plus totals.
type OrderRequest struct {
	SubmissionID string                  `json:"submission_id"`
	CustomerID   string                  `json:"customer_id"`
	StaffID      string                  `json:"staff_id,omitempty"`
	Mode         domain.ConfirmationMode `json:"mode"`
	Address      domain.Address          `json:"address"`
	Note         string                  `json:"note,omitempty"`
	Lines        any                     `json:"lines"`
	Totals       any                     `json:"totals"`
}

func (c *Client) CreateOrder(ctx context.Context, req OrderRequest) (domain.Order, error) {
	var out domain.Order
	return out, c.do(ctx, http.MethodPost, "/orders", req, &out)
}

func (c *Client) UpdateOrder(ctx context.Context, id string, req OrderRequest) (domain.Order, error) {
	var out domain.Order
	return out, c.do(ctx, http.MethodPut, "/orders/"+esc(id), req, &out)
}

func (c *Client) GetOrder(ctx context.Context, id string) (domain.Order, error) {
	var out domain.Order
	return out, c.do(ctx, http.MethodGet, "/orders/"+esc(id), nil, &out)
}

func (c *Client) ListOrders(ctx context.Context, customer string) ([]domain.Order, error) {
	var out []domain.Order
	q := url.Values{"customer_id": {customer}}
	return out, c.do(ctx, http.MethodGet, "/orders?"+q.Encode(), nil, &out)
}

func (c *Client) CancelOrder(ctx context.Context, id string) (domain.Order, error) {
	var out domain.Order
	return out, c.do(ctx, http.MethodPost, "/orders/"+esc(id)+"/cancel", nil, &out)
}

// GetInvoicePDF returns the decoded invoice document.
func (c *Client) GetInvoicePDF(ctx context.Context, id string) ([]byte, error) {
	var out struct {
		PDF string `json:"pdf_base64"`
	}
	if err := c.do(ctx, http.MethodGet, "/orders/"+esc(id)+"/invoice", nil, &out); err != nil {
		return nil, err
	}
	b, err := base64.StdEncoding.DecodeString(out.PDF)
	if err != nil {
		return nil, fmt.Errorf("invoice %s: %w", id, err)
	}
	return b, nil
}
