// Package pricing computes per-line and order-level breakdowns for a cart:
// credit surcharge, discount by a single winning source, GST split and the
// payable amount. Every function here is pure.
package pricing

import (
	"time"

	"github.com/shopspring/decimal"

	"bulkmart/internal/domain"
)

type DiscountType string

const (
	DiscountFlash    DiscountType = "flash"
	DiscountCategory DiscountType = "category"
	DiscountRetailer DiscountType = "retailer"
	DiscountNone     DiscountType = "none"
)

type FlashDetail struct {
	BuyQuantity  int `json:"buy_quantity"`
	GetQuantity  int `json:"get_quantity"`
	FreeQuantity int `json:"free_quantity"`
}

// Resolution is the single discount source applied to a line.
type Resolution struct {
	Type    DiscountType    `json:"discount_type"`
	Percent decimal.Decimal `json:"discount_percent"`
	Flash   *FlashDetail    `json:"flash,omitempty"`

	// Coercions holds reference data that had to be read leniently.
	Coercions []Coercion `json:"-"`
}

func NoDiscount() Resolution { return Resolution{Type: DiscountNone, Percent: decimal.Zero} }

// Rules is the reference data a resolution is drawn from.
type Rules struct {
	FlashOffers       map[string]domain.FlashOffer       // by product id
	CategoryDiscounts map[string]domain.CategoryDiscount // by category id
	RetailerPercent   domain.Number
	Now               time.Time
}

// Resolve picks the discount for product at quantity, in strict priority:
// flash, then category, then retailer, then none. Sources never stack.
//
// A flash offer qualifies only when quantity equals its buy quantity
// exactly; one unit more or less falls through to the next source.
func (r Rules) Resolve(p domain.Product, quantity int) Resolution {
	var coerced []Coercion
	if fo, ok := r.FlashOffers[p.ID]; ok {
		buy, st := fo.BuyQuantity.Int()
		if st == domain.Malformed {
			coerced = append(coerced, Coercion{Field: "flash.buy_quantity", Reason: "malformed", Raw: fo.BuyQuantity.Raw()})
		}
		if buy > 0 && quantity == buy {
			free, st := fo.GetQuantity.Int()
			if st == domain.Malformed {
				coerced = append(coerced, Coercion{Field: "flash.get_quantity", Reason: "malformed", Raw: fo.GetQuantity.Raw()})
			}
			get := free
			if free < 0 {
				coerced = append(coerced, Coercion{Field: "flash.get_quantity", Reason: "negative", Raw: fo.GetQuantity.Raw()})
				free = 0
			}
			return Resolution{
				Type:      DiscountFlash,
				Percent:   decimal.Zero,
				Flash:     &FlashDetail{BuyQuantity: buy, GetQuantity: get, FreeQuantity: free},
				Coercions: coerced,
			}
		}
	}
	if cd, ok := r.CategoryDiscounts[p.CategoryID]; ok && p.CategoryID != "" && cd.ActiveAt(r.Now) {
		if pct := cd.Percent.Decimal(); pct.IsPositive() {
			return Resolution{Type: DiscountCategory, Percent: pct, Coercions: coerced}
		}
	}
	if pct := r.RetailerPercent.Decimal(); pct.IsPositive() {
		return Resolution{Type: DiscountRetailer, Percent: pct, Coercions: coerced}
	}
	res := NoDiscount()
	res.Coercions = coerced
	return res
}

// Summarize prices lines against these rules.
func (r Rules) Summarize(lines []domain.CartLine) OrderSummary {
	return Aggregate(lines, func(l domain.CartLine) Resolution {
		return r.Resolve(l.Product, l.Quantity)
	})
}
