// Package export renders a committed collection as CSV.
package export

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/zombor/invoice-scanner/internal/document"
)

const delimiter = ","

// Formatter writes the fixed column layout of one variant
type Formatter struct {
	variant    document.Variant
	unitSymbol string
}

// NewFormatter creates a Formatter. unitSymbol labels the bill total column.
func NewFormatter(variant document.Variant, unitSymbol string) *Formatter {
	return &Formatter{
		variant:    variant,
		unitSymbol: unitSymbol,
	}
}

// Header returns the column titles in order
func (f *Formatter) Header() []string {
	if f.variant == document.VariantUtilityBill {
		return []string{"Customer ID", "Name", "Month", "Date", "A1 (High)", "A2 (Low)", fmt.Sprintf("Total (%s)", f.unitSymbol)}
	}
	return []string{"Invoice Date", "Due Date", "Vendor", "Invoice #", "Net", "Tax", "Total", "Currency", "IBAN"}
}

// Filename names an export made on the given day
func (f *Formatter) Filename(now time.Time) string {
	return Filename(f.variant, now)
}

// Filename names an export of the variant made on the given day
func Filename(variant document.Variant, now time.Time) string {
	return fmt.Sprintf("%s_export_%s.csv", variant, now.Format(document.DateLayout))
}

// WriteCSV renders records with a one-off Formatter
func WriteCSV(w io.Writer, variant document.Variant, records []document.Record, unitSymbol string) (int, error) {
	return NewFormatter(variant, unitSymbol).Write(w, records)
}

// Write renders the header and one row per record in the order given. An
// empty collection writes nothing. It returns the number of rows written.
func (f *Formatter) Write(w io.Writer, records []document.Record) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	bw := bufio.NewWriter(w)
	header := make([]string, 0, len(f.Header()))
	for _, h := range f.Header() {
		header = append(header, quoteIfNeeded(h))
	}
	if err := writeLine(bw, header); err != nil {
		return 0, err
	}

	rows := 0
	for _, rec := range records {
		var cells []string
		switch r := rec.(type) {
		case *document.Invoice:
			if f.variant != document.VariantInvoice {
				return rows, fmt.Errorf("unexpected %s record in %s export", r.Variant(), f.variant)
			}
			cells = invoiceRow(r)
		case *document.UtilityBill:
			if f.variant != document.VariantUtilityBill {
				return rows, fmt.Errorf("unexpected %s record in %s export", r.Variant(), f.variant)
			}
			cells = billRow(r)
		default:
			return rows, fmt.Errorf("unsupported record type %T", rec)
		}
		if err := writeLine(bw, cells); err != nil {
			return rows, err
		}
		rows++
	}

	if err := bw.Flush(); err != nil {
		return rows, fmt.Errorf("writing csv: %w", err)
	}
	return rows, nil
}

// Set amounts render with two decimals. An unset amount renders as an empty
// cell so it is not mistaken for a real 0.00.
func invoiceRow(inv *document.Invoice) []string {
	return []string{
		quoteIfNeeded(inv.InvoiceDate),
		quoteIfNeeded(deref(inv.DueDate)),
		quote(inv.VendorName),
		quoteIfNeeded(inv.InvoiceNumber),
		inv.NetAmount.String(),
		inv.TaxAmount.String(),
		inv.TotalAmount.String(),
		quoteIfNeeded(inv.Currency),
		quoteIfNeeded(deref(inv.IBAN)),
	}
}

// billRow renders unset meter readings and totals as empty cells, like
// invoiceRow.
func billRow(b *document.UtilityBill) []string {
	return []string{
		quoteIfNeeded(b.CustomerID),
		quote(b.CustomerName),
		quoteIfNeeded(b.BillingMonth),
		quoteIfNeeded(b.InvoiceDate),
		b.MeterReadings.HighTariff.String(),
		b.MeterReadings.LowTariff.String(),
		b.TotalAmount.String(),
	}
}

func writeLine(w *bufio.Writer, cells []string) error {
	if _, err := w.WriteString(strings.Join(cells, delimiter) + "\n"); err != nil {
		return fmt.Errorf("writing csv: %w", err)
	}
	return nil
}

// quote always wraps the value, doubling embedded quotes
func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func quoteIfNeeded(s string) string {
	if strings.ContainsAny(s, delimiter+"\"\r\n") {
		return quote(s)
	}
	return s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
