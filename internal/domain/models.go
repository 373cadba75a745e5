package domain

import (
	"strconv"
	"strings"
	"time"
)

type Category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Product struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	SalePrice       Number `json:"sale_price"`
	MRP             Number `json:"mrp"`
	EditedSalePrice Number `json:"edited_sale_price"`
	GSTRate         Number `json:"gst_rate"` // percent
	InclusiveGST    Flag   `json:"inclusive_gst"`
	CategoryID      string `json:"category_id"`
	Stock           Count  `json:"stock"`
	Unit            string `json:"unit,omitempty"`
	Image           string `json:"image,omitempty"`
}

type CategoryDiscount struct {
	CategoryID string     `json:"category_id"`
	Percent    Number     `json:"percent"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
}

// ActiveAt reports whether the discount is still running at now.
// A zero now skips the expiry check.
func (d CategoryDiscount) ActiveAt(now time.Time) bool {
	if d.ExpiresAt == nil || now.IsZero() {
		return true
	}
	return now.Before(*d.ExpiresAt)
}

// FlashOffer is "buy BuyQuantity, get GetQuantity free" on one product.
type FlashOffer struct {
	ProductID   string `json:"product_id"`
	BuyQuantity Count  `json:"buy_quantity"`
	GetQuantity Count  `json:"get_quantity"`
}

// NoCredit identifies the pay-now term.
const NoCredit = "0"

type CreditPeriod struct {
	ID         string `json:"id"`
	Days       Count  `json:"days"`
	Percentage Number `json:"percentage"`
}

type Account struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Phone            string `json:"phone,omitempty"`
	RetailerDiscount Number `json:"retailer_discount"`
}

type Staff struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Phone string `json:"phone,omitempty"`
}

// CartLine is one product in a session cart.
type CartLine struct {
	LineID           string  `json:"id,omitempty"`
	ProductID        string  `json:"product_id"`
	Product          Product `json:"product"`
	Quantity         int     `json:"quantity"`
	CreditPeriod     string  `json:"credit_period"`
	CreditPercentage Number  `json:"credit_percentage"`
}

// CreditDays reads the credit period identifier as a day count.
// Unparseable identifiers count as zero days.
func (l CartLine) CreditDays() int {
	n, err := strconv.Atoi(strings.TrimSpace(l.CreditPeriod))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

type ConfirmationMode string

const (
	ModeKacha ConfirmationMode = "KACHA"
	ModePakka ConfirmationMode = "PAKKA"
)

type Address struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Line1   string `json:"line1"`
	Line2   string `json:"line2,omitempty"`
	City    string `json:"city"`
	State   string `json:"state"`
	Pincode string `json:"pincode"`
}

// Complete reports whether every required address field is filled in.
func (a Address) Complete() bool {
	for _, s := range []string{a.Name, a.Phone, a.Line1, a.City, a.State, a.Pincode} {
		if strings.TrimSpace(s) == "" {
			return false
		}
	}
	return true
}

type OrderItem struct {
	ProductID    string `json:"product_id"`
	Name         string `json:"name"`
	Quantity     int    `json:"quantity"`
	FreeQuantity int    `json:"free_quantity"`
	CreditPeriod string `json:"credit_period,omitempty"`
	UnitAmount   Number `json:"unit_amount"`
	LineTotal    Number `json:"line_total"`
}

type Order struct {
	ID         string           `json:"id"`
	CustomerID string           `json:"customer_id"`
	Status     string           `json:"status"`
	Mode       ConfirmationMode `json:"mode"`
	CreatedAt  string           `json:"created_at"`
	Address    Address          `json:"address"`
	Items      []OrderItem      `json:"items"`
	Total      Number           `json:"total"`
	Note       string           `json:"note,omitempty"`
}
