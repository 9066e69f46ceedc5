package scanning

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/zombor/invoice-scanner/internal/document"
)

// dateFormats are tried in order when the model ignores the requested layout
var dateFormats = []string{
	document.DateLayout,
	time.RFC3339,
	"2006/01/02",
	"02.01.2006",
	"01/02/2006",
	"02-01-2006",
	"January 2, 2006",
	"2 January 2006",
}

var monthFormats = []string{
	document.MonthLayout,
	"1-2006",
	"01/2006",
	"1/2006",
	"2006-01",
	"01.2006",
	"January 2006",
	"Jan 2006",
}

// parseRecord extracts the JSON object from a model answer and decodes it
// into a draft of the variant
func parseRecord(v document.Variant, text string) (document.Record, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSpace(text)

	startIdx := strings.Index(text, "{")
	if startIdx == -1 {
		return nil, fmt.Errorf("no JSON object found in response")
	}
	endIdx := strings.LastIndex(text, "}")
	if endIdx < startIdx {
		return nil, fmt.Errorf("invalid JSON object in response")
	}

	rec, err := document.Decode(v, []byte(text[startIdx:endIdx+1]))
	if err != nil {
		return nil, fmt.Errorf("unmarshaling json: %w", err)
	}

	// A draft never carries an identity, whatever the model said
	*rec.Meta() = document.Envelope{}

	switch r := rec.(type) {
	case *document.Invoice:
		normalizeInvoice(r)
	case *document.UtilityBill:
		normalizeBill(r)
	}
	return rec, nil
}

func normalizeInvoice(inv *document.Invoice) {
	inv.VendorName = strings.TrimSpace(inv.VendorName)
	inv.InvoiceNumber = strings.TrimSpace(inv.InvoiceNumber)
	inv.Currency = strings.ToUpper(strings.TrimSpace(inv.Currency))
	inv.InvoiceDate = normalizeDate(inv.InvoiceDate, dateFormats, document.DateLayout)
	inv.DueDate = normalizeOptional(inv.DueDate)
	if inv.DueDate != nil {
		d := normalizeDate(*inv.DueDate, dateFormats, document.DateLayout)
		inv.DueDate = &d
	}
	inv.IBAN = normalizeOptional(inv.IBAN)

	dropNegative("net_amount", &inv.NetAmount)
	dropNegative("tax_amount", &inv.TaxAmount)
	dropNegative("total_amount", &inv.TotalAmount)
}

func normalizeBill(b *document.UtilityBill) {
	b.CustomerID = strings.TrimSpace(b.CustomerID)
	b.CustomerName = strings.TrimSpace(b.CustomerName)
	b.BillingMonth = normalizeDate(b.BillingMonth, monthFormats, document.MonthLayout)
	b.InvoiceDate = normalizeDate(b.InvoiceDate, dateFormats, document.DateLayout)

	dropNegative("high_tariff", &b.MeterReadings.HighTariff)
	dropNegative("low_tariff", &b.MeterReadings.LowTariff)
	dropNegative("total_amount", &b.TotalAmount)
}

// normalizeDate rewrites a recognised date into layout. Text that matches no
// known format is kept as is for the reviewer to fix.
func normalizeDate(s string, formats []string, layout string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	for _, format := range formats {
		if d, err := time.Parse(format, s); err == nil {
			return d.Format(layout)
		}
	}
	return s
}

func normalizeOptional(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" || strings.EqualFold(v, "null") {
		return nil
	}
	return &v
}

// dropNegative clears amounts the model read as negative; they are never valid
func dropNegative(field string, a *document.Amount) {
	if a.IsNegative() {
		slog.Warn("Discarding negative amount from extraction", "field", field, "value", a.Decimal().String())
		*a = document.Amount{}
	}
}
