package pricing

import (
	"github.com/shopspring/decimal"

	"bulkmart/internal/domain"
)

var (
	hundred = decimal.NewFromInt(100)
	two     = decimal.NewFromInt(2)
)

// Coercion records an input that was replaced to keep pricing going.
type Coercion struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
	Raw    string `json:"raw,omitempty"`
}

// LineBreakdown is the priced form of one cart line. Field names match the
// order submission payload.
type LineBreakdown struct {
	LineID       string `json:"id,omitempty"`
	ProductID    string `json:"product_id"`
	ProductName  string `json:"product_name"`
	Quantity     int    `json:"quantity"`
	FreeQuantity int    `json:"free_quantity"`
	// TotalQuantityForBackend is paid plus free units; the backend prices
	// and reserves stock on this figure.
	TotalQuantityForBackend int             `json:"total_quantity_for_backend"`
	CreditPeriod            string          `json:"credit_period"`
	CreditPercentage        decimal.Decimal `json:"credit_percentage"`

	DiscountType    DiscountType    `json:"discount_type"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	Flash           *FlashDetail    `json:"flash,omitempty"`

	GSTRate      decimal.Decimal `json:"gst_rate"`
	InclusiveGST bool            `json:"inclusive_gst"`

	UnitPrice              decimal.Decimal `json:"unit_price"`
	UnitCreditCharge       decimal.Decimal `json:"unit_credit_charge"`
	UnitPriceAfterCredit   decimal.Decimal `json:"unit_price_after_credit"`
	UnitDiscount           decimal.Decimal `json:"unit_discount"`
	UnitPriceAfterDiscount decimal.Decimal `json:"unit_price_after_discount"`
	UnitTaxable            decimal.Decimal `json:"unit_taxable"`
	UnitTax                decimal.Decimal `json:"unit_tax"`
	UnitCGST               decimal.Decimal `json:"unit_cgst"`
	UnitSGST               decimal.Decimal `json:"unit_sgst"`
	UnitFinal              decimal.Decimal `json:"unit_final"`

	LineBase         decimal.Decimal `json:"line_base"`
	LineCreditCharge decimal.Decimal `json:"line_credit_charge"`
	LineDiscount     decimal.Decimal `json:"line_discount"`
	FlashSavings     decimal.Decimal `json:"flash_savings"`
	CategoryDiscount decimal.Decimal `json:"category_discount"`
	RetailerDiscount decimal.Decimal `json:"retailer_discount"`
	LineTaxable      decimal.Decimal `json:"line_taxable"`
	LineTax          decimal.Decimal `json:"line_tax"`
	LineCGST         decimal.Decimal `json:"line_cgst"`
	LineSGST         decimal.Decimal `json:"line_sgst"`
	LineTotal        decimal.Decimal `json:"line_total"`

	Coercions []Coercion `json:"-"`
}

type coercer struct{ out []Coercion }

// amount reads a non-negative number, falling back to zero.
func (c *coercer) amount(field string, n domain.Number, flagMissing bool) decimal.Decimal {
	d, st := n.Value()
	switch st {
	case domain.Malformed:
		c.out = append(c.out, Coercion{Field: field, Reason: "malformed", Raw: n.Raw()})
		return decimal.Zero
	case domain.Missing:
		if flagMissing {
			c.out = append(c.out, Coercion{Field: field, Reason: "missing"})
		}
		return decimal.Zero
	}
	if d.IsNegative() {
		c.out = append(c.out, Coercion{Field: field, Reason: "negative", Raw: d.String()})
		return decimal.Zero
	}
	return d
}

func (c *coercer) percent(field string, d decimal.Decimal) decimal.Decimal {
	switch {
	case d.IsNegative():
		c.out = append(c.out, Coercion{Field: field, Reason: "negative", Raw: d.String()})
		return decimal.Zero
	case d.GreaterThan(hundred):
		c.out = append(c.out, Coercion{Field: field, Reason: "above_100", Raw: d.String()})
		return hundred
	}
	return d
}

// PriceLine computes the unit and line figures for one cart line under the
// given discount resolution. Nothing is rounded; see Money.
func PriceLine(line domain.CartLine, res Resolution) LineBreakdown {
	c := coercer{out: append([]Coercion(nil), res.Coercions...)}
	p := line.Product

	qty := line.Quantity
	if qty < 0 {
		c.out = append(c.out, Coercion{Field: "quantity", Reason: "negative"})
		qty = 0
	}

	var price decimal.Decimal
	if p.EditedSalePrice.IsSet() {
		price = c.amount("edited_sale_price", p.EditedSalePrice, false)
	} else {
		if p.EditedSalePrice.State() == domain.Malformed {
			c.out = append(c.out, Coercion{Field: "edited_sale_price", Reason: "malformed", Raw: p.EditedSalePrice.Raw()})
		}
		price = c.amount("sale_price", p.SalePrice, true)
	}
	creditPct := c.amount("credit_percentage", line.CreditPercentage, false)
	gstRate := c.amount("gst_rate", p.GSTRate, true)

	creditCharge := price.Mul(creditPct).Div(hundred)
	afterCredit := price.Add(creditCharge)

	discPct := decimal.Zero
	unitDiscount := decimal.Zero
	if res.Type != DiscountFlash && res.Type != "" {
		discPct = c.percent("discount_percent", res.Percent)
		unitDiscount = afterCredit.Mul(discPct).Div(hundred)
	}
	afterDiscount := afterCredit.Sub(unitDiscount)

	if p.InclusiveGST.State() == domain.Malformed {
		c.out = append(c.out, Coercion{Field: "inclusive_gst", Reason: "malformed", Raw: p.InclusiveGST.Raw()})
	}
	inclusive := p.InclusiveGST.Bool()

	var taxable, tax decimal.Decimal
	if inclusive {
		taxable = afterDiscount.Div(decimal.NewFromInt(1).Add(gstRate.Div(hundred)))
		tax = afterDiscount.Sub(taxable)
	} else {
		taxable = afterDiscount
		tax = taxable.Mul(gstRate).Div(hundred)
	}
	half := tax.Div(two)

	final := afterDiscount
	if !inclusive {
		final = afterDiscount.Add(tax)
	}

	typ := res.Type
	if typ == "" {
		typ = DiscountNone
	}
	b := LineBreakdown{
		LineID:           line.LineID,
		ProductID:        firstNonEmpty(line.ProductID, p.ID),
		ProductName:      p.Name,
		Quantity:         qty,
		CreditPeriod:     line.CreditPeriod,
		CreditPercentage: creditPct,
		DiscountType:     typ,
		DiscountPercent:  discPct,
		GSTRate:          gstRate,
		InclusiveGST:     inclusive,

		UnitPrice:              price,
		UnitCreditCharge:       creditCharge,
		UnitPriceAfterCredit:   afterCredit,
		UnitDiscount:           unitDiscount,
		UnitPriceAfterDiscount: afterDiscount,
		UnitTaxable:            taxable,
		UnitTax:                tax,
		UnitCGST:               half,
		UnitSGST:               half,
		UnitFinal:              final,

		FlashSavings:     decimal.Zero,
		CategoryDiscount: decimal.Zero,
		RetailerDiscount: decimal.Zero,
	}

	q := decimal.NewFromInt(int64(qty))
	b.LineBase = price.Mul(q)
	b.LineCreditCharge = creditCharge.Mul(q)
	b.LineDiscount = unitDiscount.Mul(q)
	b.LineTaxable = taxable.Mul(q)
	b.LineTax = tax.Mul(q)
	b.LineCGST = half.Mul(q)
	b.LineSGST = half.Mul(q)
	b.LineTotal = final.Mul(q)

	switch typ {
	case DiscountFlash:
		if res.Flash != nil {
			fd := *res.Flash
			b.Flash = &fd
			b.FreeQuantity = fd.FreeQuantity
		}
		b.FlashSavings = final.Mul(decimal.NewFromInt(int64(b.FreeQuantity)))
	case DiscountCategory:
		b.CategoryDiscount = b.LineDiscount
	case DiscountRetailer:
		b.RetailerDiscount = b.LineDiscount
	}
	b.TotalQuantityForBackend = qty + b.FreeQuantity
	b.Coercions = c.out
	return b
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
