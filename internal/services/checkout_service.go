package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"bulkmart/internal/backend"
	"bulkmart/internal/domain"
	applog "bulkmart/internal/log"
	"bulkmart/internal/pricing"
	"bulkmart/internal/repos"
)

// Quote is a priced cart.
type Quote struct {
	Account       domain.Account        `json:"account"`
	Lines         []domain.CartLine     `json:"lines"`
	Summary       pricing.OrderSummary  `json:"summary"`
	CreditPeriods []domain.CreditPeriod `json:"credit_periods"`
	// Stale is set when the lines come from the local snapshot.
	Stale bool `json:"stale,omitempty"`
}

// OrderTotals is the order-level part of a submission.
type OrderTotals struct {
	LineCount               int                    `json:"line_count"`
	ItemCount               int                    `json:"item_count"`
	FreeItemCount           int                    `json:"free_item_count"`
	TotalQuantityForBackend int                    `json:"total_quantity_for_backend"`
	Subtotal                decimal.Decimal        `json:"subtotal"`
	CreditCharges           decimal.Decimal        `json:"credit_charges"`
	Discounts               pricing.DiscountTotals `json:"discounts"`
	Taxable                 decimal.Decimal        `json:"taxable"`
	Tax                     decimal.Decimal        `json:"tax"`
	CGST                    decimal.Decimal        `json:"cgst"`
	SGST                    decimal.Decimal        `json:"sgst"`
	Payable                 decimal.Decimal        `json:"payable"`
	AverageCreditDays       decimal.Decimal        `json:"average_credit_days"`
}

func totalsOf(s pricing.OrderSummary) OrderTotals {
	return OrderTotals{
		LineCount:               s.LineCount,
		ItemCount:               s.ItemCount,
		FreeItemCount:           s.FreeItemCount,
		TotalQuantityForBackend: s.TotalQuantityForBackend,
		Subtotal:                s.Subtotal,
		CreditCharges:           s.CreditCharges,
		Discounts:               s.Discounts,
		Taxable:                 s.Taxable,
		Tax:                     s.Tax,
		CGST:                    s.CGST,
		SGST:                    s.SGST,
		Payable:                 s.Payable,
		AverageCreditDays:       s.AverageCreditDays,
	}
}

type PlaceRequest struct {
	Mode    domain.ConfirmationMode `json:"mode"`
	Address domain.Address          `json:"address"`
	Note    string                  `json:"note"`
	StaffID string                  `json:"staff_id"`
}

// EditLine is one line of a replacement order body.
type EditLine struct {
	ProductID    string `json:"product_id"`
	Quantity     int    `json:"quantity"`
	CreditPeriod string `json:"credit_period"`
}

type EditRequest struct {
	Lines   []EditLine              `json:"lines"`
	Mode    domain.ConfirmationMode `json:"mode"`
	Address *domain.Address         `json:"address"`
	Note    string                  `json:"note"`
}

type CheckoutService struct {
	API     *backend.Client
	Catalog *CatalogService
	Carts   *CartStore
	Orders  *repos.OrderRepo

	// PendingTTL is how long a PENDING submission blocks its session. A
	// row older than that was left behind by a crash.
	PendingTTL time.Duration

	// placing guards the pending-check-then-insert on submissions
	placing sync.Mutex
}

const defaultPendingTTL = time.Minute

func NewCheckoutService(api *backend.Client, catalog *CatalogService, carts *CartStore, orders *repos.OrderRepo) *CheckoutService {
	s := &CheckoutService{API: api, Catalog: catalog, Carts: carts, Orders: orders}
	// no request outlives the client timeout
	if t := api.HTTP.Timeout; t > 0 {
		s.PendingTTL = 2 * t
	}
	return s
}

// price runs the pricing engine and logs every coerced input.
func (s *CheckoutService) price(ctx context.Context, acct domain.Account, lines []domain.CartLine) (pricing.OrderSummary, error) {
	rules, err := s.Catalog.Rules(ctx, acct)
	if err != nil {
		return pricing.OrderSummary{}, err
	}
	sum := rules.Summarize(lines)
	for pid, cs := range sum.Coercions() {
		applog.Warn(nil, "pricing.coerce", nil, map[string]any{"account": acct.ID, "product_id": pid, "coercions": cs})
	}
	return sum, nil
}

// Quote prices the session cart. A cart served from the local snapshot is
// still priced and flagged Stale.
func (s *CheckoutService) Quote(ctx context.Context, sid, account string) (Quote, error) {
	lines, err := s.Carts.Lines(ctx, sid, account)
	stale := errors.Is(err, ErrStale)
	if err != nil && !stale {
		return Quote{}, err
	}
	acct, err := s.Catalog.Account(ctx, account)
	if err != nil {
		return Quote{}, err
	}
	ref, err := s.Catalog.Reference(ctx)
	if err != nil {
		return Quote{}, err
	}
	sum, err := s.price(ctx, acct, lines)
	if err != nil {
		return Quote{}, err
	}
	if lines == nil {
		lines = []domain.CartLine{}
	}
	return Quote{Account: acct, Lines: lines, Summary: sum, CreditPeriods: ref.CreditPeriods, Stale: stale}, nil
}

func validMode(m domain.ConfirmationMode) bool {
	return m == domain.ModeKacha || m == domain.ModePakka
}

// Place submits the session cart as an order. The backend call is made
// exactly once; a failure is returned as is and recorded against the
// submission.
func (s *CheckoutService) Place(ctx context.Context, sid, account string, req PlaceRequest) (domain.Order, repos.Submission, error) {
	req.Mode = domain.ConfirmationMode(strings.ToUpper(string(req.Mode)))
	if !validMode(req.Mode) {
		return domain.Order{}, repos.Submission{}, ErrInvalidMode
	}
	if !req.Address.Complete() {
		return domain.Order{}, repos.Submission{}, ErrMissingAddress
	}

	acct, err := s.Catalog.Account(ctx, account)
	if err != nil {
		return domain.Order{}, repos.Submission{}, err
	}

	var (
		order domain.Order
		subID string
	)
	err = s.Carts.Checkout(ctx, sid, account, func(lines []domain.CartLine) error {
		if len(lines) == 0 {
			return ErrCartEmpty
		}
		sum, err := s.price(ctx, acct, lines)
		if err != nil {
			return err
		}
		subID, err = s.begin(sid, account, pricing.Money(sum.Payable))
		if err != nil {
			return err
		}

		// the outcome is recorded even if the caller goes away
		ctx := context.WithoutCancel(ctx)
		order, err = s.API.CreateOrder(ctx, backend.OrderRequest{
			SubmissionID: subID,
			CustomerID:   account,
			StaffID:      req.StaffID,
			Mode:         req.Mode,
			Address:      req.Address,
			Note:         req.Note,
			Lines:        sum.Lines,
			Totals:       totalsOf(sum),
		})
		if err != nil {
			msg := err.Error()
			var apiErr *backend.APIError
			if errors.As(err, &apiErr) {
				msg = apiErr.Message
			}
			if merr := s.Orders.MarkFailed(subID, msg); merr != nil {
				applog.Error(nil, "order.submission.fail", merr, map[string]any{"submission": subID})
			}
			applog.Error(nil, "order.place.fail", err, map[string]any{"submission": subID, "account": account})
			return err
		}

		if err := s.Orders.MarkPlaced(subID, order.ID); err != nil {
			applog.Error(nil, "order.submission.fail", err, map[string]any{"submission": subID, "order_id": order.ID})
		}
		applog.Audit(nil, "order.place", map[string]any{
			"submission": subID, "order_id": order.ID, "account": account,
			"payable": pricing.Money(sum.Payable), "mode": string(req.Mode),
		})
		return nil
	})
	var sub repos.Submission
	if subID != "" {
		sub, _ = s.Orders.Get(subID)
	}
	if err != nil {
		return domain.Order{}, sub, err
	}
	return order, sub, nil
}

// begin records a PENDING submission for sid unless one is already in
// flight. PENDING rows older than PendingTTL are expired first.
func (s *CheckoutService) begin(sid, account, payable string) (string, error) {
	s.placing.Lock()
	defer s.placing.Unlock()
	cutoff := time.Now().Add(-s.pendingTTL())
	n, err := s.Orders.ExpirePending(sid, cutoff)
	if err != nil {
		return "", err
	}
	if n > 0 {
		applog.Warn(nil, "order.submission.expire", nil, map[string]any{"session": sid, "count": n})
	}
	pending, err := s.Orders.Pending(sid, cutoff)
	if err != nil {
		return "", err
	}
	if pending != nil {
		return "", ErrSubmissionPending
	}
	id := uuid.NewString()
	if err := s.Orders.Begin(id, sid, account, payable); err != nil {
		return "", err
	}
	return id, nil
}

func (s *CheckoutService) pendingTTL() time.Duration {
	if s.PendingTTL > 0 {
		return s.PendingTTL
	}
	return defaultPendingTTL
}

// Edit reprices a replacement set of lines for an existing order of
// account and sends it to the backend.
func (s *CheckoutService) Edit(ctx context.Context, account, orderID string, req EditRequest) (domain.Order, pricing.OrderSummary, error) {
	if len(req.Lines) == 0 {
		return domain.Order{}, pricing.OrderSummary{}, ErrCartEmpty
	}
	cur, err := s.API.GetOrder(ctx, orderID)
	if err != nil {
		return domain.Order{}, pricing.OrderSummary{}, err
	}
	if cur.CustomerID != account {
		return domain.Order{}, pricing.OrderSummary{}, ErrOrderNotFound
	}

	lines := make([]domain.CartLine, 0, len(req.Lines))
	for _, el := range req.Lines {
		if el.Quantity < 1 {
			return domain.Order{}, pricing.OrderSummary{}, ErrInvalidQuantity
		}
		p, err := s.Catalog.Product(ctx, el.ProductID)
		if err != nil {
			return domain.Order{}, pricing.OrderSummary{}, err
		}
		period := el.CreditPeriod
		if period == "" {
			period = domain.NoCredit
		}
		term, err := s.Catalog.CreditPeriod(ctx, period)
		if err != nil {
			return domain.Order{}, pricing.OrderSummary{}, err
		}
		lines = append(lines, domain.CartLine{
			ProductID:        p.ID,
			Product:          p,
			Quantity:         el.Quantity,
			CreditPeriod:     term.ID,
			CreditPercentage: term.Percentage,
		})
	}

	acct, err := s.Catalog.Account(ctx, account)
	if err != nil {
		return domain.Order{}, pricing.OrderSummary{}, err
	}
	sum, err := s.price(ctx, acct, lines)
	if err != nil {
		return domain.Order{}, pricing.OrderSummary{}, err
	}

	mode := domain.ConfirmationMode(strings.ToUpper(string(req.Mode)))
	if mode == "" {
		mode = cur.Mode
	}
	if !validMode(mode) {
		return domain.Order{}, pricing.OrderSummary{}, ErrInvalidMode
	}
	addr := cur.Address
	if req.Address != nil {
		addr = *req.Address
	}
	if !addr.Complete() {
		return domain.Order{}, pricing.OrderSummary{}, ErrMissingAddress
	}
	note := req.Note
	if note == "" {
		note = cur.Note
	}

	updated, err := s.API.UpdateOrder(ctx, orderID, backend.OrderRequest{
		CustomerID: account,
		Mode:       mode,
		Address:    addr,
		Note:       note,
		Lines:      sum.Lines,
		Totals:     totalsOf(sum),
	})
	if err != nil {
		return domain.Order{}, pricing.OrderSummary{}, err
	}
	applog.Audit(nil, "order.edit", map[string]any{"order_id": orderID, "account": account, "payable": pricing.Money(sum.Payable)})
	return updated, sum, nil
}
