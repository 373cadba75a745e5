package services

import (
	"io"

	"github.com/shopspring/decimal"
	"github.com/tealeg/xlsx"
)

var quoteHeaders = []string{
	"Product ID", "Product", "Qty", "Free Qty", "Credit Period", "Discount",
	"Unit Price", "Unit Final", "Taxable", "CGST", "SGST", "Line Total",
}

// WriteQuoteXLSX writes q as a one-sheet workbook: a row per line followed
// by the order totals.
func WriteQuoteXLSX(w io.Writer, q Quote) error {
	file := xlsx.NewFile()
	sheet, err := file.AddSheet("Quote")
	if err != nil {
		return err
	}

	header := sheet.AddRow()
	for _, h := range quoteHeaders {
		header.AddCell().SetValue(h)
	}

	money := func(r *xlsx.Row, d decimal.Decimal) {
		f, _ := d.Round(2).Float64()
		r.AddCell().SetFloatWithFormat(f, "0.00")
	}

	for _, l := range q.Summary.Lines {
		row := sheet.AddRow()
		row.AddCell().SetValue(l.ProductID)
		row.AddCell().SetValue(l.ProductName)
		row.AddCell().SetInt(l.Quantity)
		row.AddCell().SetInt(l.FreeQuantity)
		row.AddCell().SetValue(l.CreditPeriod)
		row.AddCell().SetValue(string(l.DiscountType))
		money(row, l.UnitPrice)
		money(row, l.UnitFinal)
		money(row, l.LineTaxable)
		money(row, l.LineCGST)
		money(row, l.LineSGST)
		money(row, l.LineTotal)
	}

	sheet.AddRow()
	s := q.Summary
	for _, t := range []struct {
		label string
		v     decimal.Decimal
	}{
		{"Subtotal", s.Subtotal},
		{"Credit charges", s.CreditCharges},
		{"Flash savings", s.Discounts.Flash},
		{"Category discount", s.Discounts.Category},
		{"Retailer discount", s.Discounts.Retailer},
		{"Taxable", s.Taxable},
		{"CGST", s.CGST},
		{"SGST", s.SGST},
		{"Payable", s.Payable},
	} {
		row := sheet.AddRow()
		row.AddCell().SetValue(t.label)
		money(row, t.v)
	}
	items := sheet.AddRow()
	items.AddCell().SetValue("Items (paid + free)")
	items.AddCell().SetInt(s.TotalQuantityForBackend)

	return file.Write(w)
}
