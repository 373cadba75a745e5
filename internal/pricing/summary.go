package pricing

import (
	"github.com/shopspring/decimal"

	"bulkmart/internal/domain"
)

// DiscountTotals splits savings by the mechanism that produced them.
// Flash is the value of free units; the others are price reductions.
type DiscountTotals struct {
	Flash    decimal.Decimal `json:"flash"`
	Category decimal.Decimal `json:"category"`
	Retailer decimal.Decimal `json:"retailer"`
	Total    decimal.Decimal `json:"total"`
}

type OrderSummary struct {
	Lines     []LineBreakdown `json:"lines"`
	LineCount int             `json:"line_count"`
	// ItemCount counts paid units only.
	ItemCount               int `json:"item_count"`
	FreeItemCount           int `json:"free_item_count"`
	TotalQuantityForBackend int `json:"total_quantity_for_backend"`

	Subtotal      decimal.Decimal `json:"subtotal"`
	CreditCharges decimal.Decimal `json:"credit_charges"`
	Discounts     DiscountTotals  `json:"discounts"`
	Taxable       decimal.Decimal `json:"taxable"`
	Tax           decimal.Decimal `json:"tax"`
	CGST          decimal.Decimal `json:"cgst"`
	SGST          decimal.Decimal `json:"sgst"`
	Payable       decimal.Decimal `json:"payable"`

	// AverageCreditDays is the plain mean of per-line credit days.
	AverageCreditDays decimal.Decimal `json:"average_credit_days"`
}

// Aggregate prices every line and sums the results. discountOf supplies the
// resolution for each line; a nil discountOf prices everything undiscounted.
func Aggregate(lines []domain.CartLine, discountOf func(domain.CartLine) Resolution) OrderSummary {
	s := OrderSummary{
		Lines:             make([]LineBreakdown, 0, len(lines)),
		Subtotal:          decimal.Zero,
		CreditCharges:     decimal.Zero,
		Taxable:           decimal.Zero,
		Tax:               decimal.Zero,
		CGST:              decimal.Zero,
		SGST:              decimal.Zero,
		Payable:           decimal.Zero,
		AverageCreditDays: decimal.Zero,
		Discounts: DiscountTotals{
			Flash: decimal.Zero, Category: decimal.Zero, Retailer: decimal.Zero, Total: decimal.Zero,
		},
	}
	creditDays := 0
	for _, l := range lines {
		res := NoDiscount()
		if discountOf != nil {
			res = discountOf(l)
		}
		b := PriceLine(l, res)
		s.Lines = append(s.Lines, b)

		s.ItemCount += b.Quantity
		s.FreeItemCount += b.FreeQuantity
		s.TotalQuantityForBackend += b.TotalQuantityForBackend
		s.Subtotal = s.Subtotal.Add(b.LineBase)
		s.CreditCharges = s.CreditCharges.Add(b.LineCreditCharge)
		s.Discounts.Flash = s.Discounts.Flash.Add(b.FlashSavings)
		s.Discounts.Category = s.Discounts.Category.Add(b.CategoryDiscount)
		s.Discounts.Retailer = s.Discounts.Retailer.Add(b.RetailerDiscount)
		s.Taxable = s.Taxable.Add(b.LineTaxable)
		s.Tax = s.Tax.Add(b.LineTax)
		s.CGST = s.CGST.Add(b.LineCGST)
		s.SGST = s.SGST.Add(b.LineSGST)
		s.Payable = s.Payable.Add(b.LineTotal)
		creditDays += l.CreditDays()
	}
	s.LineCount = len(s.Lines)
	s.Discounts.Total = s.Discounts.Flash.Add(s.Discounts.Category).Add(s.Discounts.Retailer)
	if s.LineCount > 0 {
		s.AverageCreditDays = decimal.NewFromInt(int64(creditDays)).Div(decimal.NewFromInt(int64(s.LineCount)))
	}
	return s
}

// Coercions collects every coercion across the summary, keyed by product.
func (s OrderSummary) Coercions() map[string][]Coercion {
	out := map[string][]Coercion{}
	for _, l := range s.Lines {
		if len(l.Coercions) > 0 {
			out[l.ProductID] = append(out[l.ProductID], l.Coercions...)
		}
	}
	return out
}

// Money renders an amount for display, rounded half away from zero to paise.
func Money(d decimal.Decimal) string { return d.StringFixed(2) }
