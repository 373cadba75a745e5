package services

import (
	"context"
	"errors"
	"net/http"

	"bulkmart/internal/backend"
	"bulkmart/internal/domain"
	applog "bulkmart/internal/log"
	"bulkmart/internal/repos"
)

// OrderService reads and cancels orders an account already placed.
type OrderService struct {
	API    *backend.Client
	Orders *repos.OrderRepo
}

func NewOrderService(api *backend.Client, orders *repos.OrderRepo) *OrderService {
	return &OrderService{API: api, Orders: orders}
}

// Get returns orderID if it belongs to account. Orders of other accounts
// look the same as missing ones.
func (s *OrderService) Get(ctx context.Context, account, orderID string) (domain.Order, error) {
	o, err := s.API.GetOrder(ctx, orderID)
	var apiErr *backend.APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
		return domain.Order{}, ErrOrderNotFound
	}
	if err != nil {
		return domain.Order{}, err
	}
	if o.CustomerID != account {
		return domain.Order{}, ErrOrderNotFound
	}
	return o, nil
}

func (s *OrderService) List(ctx context.Context, account string) ([]domain.Order, error) {
	out, err := s.API.ListOrders(ctx, account)
	if out == nil && err == nil {
		out = []domain.Order{}
	}
	return out, err
}

func (s *OrderService) Cancel(ctx context.Context, account, orderID string) (domain.Order, error) {
	if _, err := s.Get(ctx, account, orderID); err != nil {
		return domain.Order{}, err
	}
	o, err := s.API.CancelOrder(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	applog.Audit(nil, "order.cancel", map[string]any{"order_id": orderID, "account": account})
	return o, nil
}

// Invoice returns the order's PDF invoice.
func (s *OrderService) Invoice(ctx context.Context, account, orderID string) ([]byte, error) {
	if _, err := s.Get(ctx, account, orderID); err != nil {
		return nil, err
	}
	return s.API.GetInvoicePDF(ctx, orderID)
}

// Submissions lists placement attempts made through this service.
func (s *OrderService) Submissions(account string) ([]repos.Submission, error) {
	return s.Orders.ListByAccount(account, 50)
}
