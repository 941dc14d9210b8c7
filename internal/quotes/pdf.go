package quotes

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/jung-kurt/gofpdf"
)

// RenderPDF lays out a printable copy of the quote with its line items.
func RenderPDF(q *Quote) ([]byte, error) {
	if q == nil {
		return nil, newError(KindInvalidInput, "render quote pdf", ErrNotFound)
	}
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle(fmt.Sprintf("Quote #%d", q.ID), true)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, tr(fmt.Sprintf("Quote #%d", q.ID)), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 6, tr("Client: "+q.ClientName+" <"+q.ClientEmail+">"), "", 1, "L", false, 0, "")
	if q.ClientPhone != "" {
		pdf.CellFormat(0, 6, tr("Phone: "+q.ClientPhone), "", 1, "L", false, 0, "")
	}
	pdf.CellFormat(0, 6, tr("Service: "+q.ServiceType), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, "Status: "+string(q.Status), "", 1, "L", false, 0, "")
	if !q.CreatedAt.IsZero() {
		pdf.CellFormat(0, 6, "Date: "+q.CreatedAt.Format("2006-01-02"), "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)

	widths := []float64{95, 20, 35, 35}
	pdf.SetFont("Helvetica", "B", 10)
	for i, head := range []string{"Description", "Qty", "Unit price", "Total"} {
		align := "R"
		if i == 0 {
			align = "L"
		}
		pdf.CellFormat(widths[i], 7, head, "1", 0, align, false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 10)
	for _, item := range q.Items {
		pdf.CellFormat(widths[0], 7, tr(item.Description), "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[1], 7, strconv.Itoa(item.Quantity), "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[2], 7, money(item.UnitPrice), "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[3], 7, money(item.TotalPrice), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	pdf.Ln(2)
	summary := []struct {
		label string
		value float64
	}{
		{"Subtotal", q.Subtotal},
		{"Shipping", q.ShippingCost},
		{"Total", q.Total},
	}
	for _, row := range summary {
		if row.label == "Total" {
			pdf.SetFont("Helvetica", "B", 10)
		}
		pdf.CellFormat(widths[0]+widths[1]+widths[2], 7, row.label, "", 0, "R", false, 0, "")
		pdf.CellFormat(widths[3], 7, money(row.value), "", 1, "R", false, 0, "")
	}
	if q.Notes != "" {
		pdf.Ln(4)
		pdf.SetFont("Helvetica", "I", 9)
		pdf.MultiCell(0, 5, tr(q.Notes), "", "L", false)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("quotes: render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func money(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
