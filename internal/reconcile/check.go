// Package reconcile decides whether a record's monetary fields agree with
// each other.
package reconcile

import (
	"github.com/shopspring/decimal"

	"github.com/zombor/invoice-scanner/internal/document"
)

var hundred = decimal.NewFromInt(100)

var (
	// InvoiceTolerance is the deviation allowed between net+tax and total.
	// Subtotal plus tax is an exact identity so only rounding is tolerated.
	InvoiceTolerance = decimal.NewFromInt(2)

	// BillTolerance is the deviation allowed for the meter-reading estimate,
	// which leaves out fixed fees and VAT.
	BillTolerance = decimal.NewFromInt(25)
)

// Result is the advisory outcome of a check. It is never persisted.
type Result struct {
	IsConsistent     bool            `json:"is_consistent"`
	ExpectedTotal    decimal.Decimal `json:"expected_total"`
	DeviationPercent decimal.Decimal `json:"deviation_percent"`
	TolerancePercent decimal.Decimal `json:"tolerance_percent"`
}

// Check runs the variant's formula against the record
func Check(rec document.Record, tariff Tariff) Result {
	switch r := rec.(type) {
	case *document.Invoice:
		return CheckInvoice(r.NetAmount, r.TaxAmount, r.TotalAmount)
	case *document.UtilityBill:
		return CheckBill(r.MeterReadings.HighTariff, r.MeterReadings.LowTariff, r.TotalAmount, tariff)
	default:
		return Result{DeviationPercent: hundred}
	}
}

// CheckInvoice compares net + tax against the declared total
func CheckInvoice(net, tax, total document.Amount) Result {
	expected := net.Decimal().Add(tax.Decimal())
	return compare(expected, total, InvoiceTolerance, net.IsSet() && tax.IsSet())
}

// CheckBill estimates the total from the two meter readings at the tariff rates
func CheckBill(high, low, total document.Amount, tariff Tariff) Result {
	expected := high.Decimal().Mul(tariff.High).Add(low.Decimal().Mul(tariff.Low))
	return compare(expected, total, BillTolerance, high.IsSet() && low.IsSet())
}

func compare(expected decimal.Decimal, total document.Amount, tolerance decimal.Decimal, inputsSet bool) Result {
	res := Result{
		ExpectedTotal:    expected,
		TolerancePercent: tolerance,
	}

	declared := total.Decimal()
	if declared.IsZero() {
		res.DeviationPercent = hundred
		return res
	}

	res.DeviationPercent = expected.Sub(declared).Abs().Div(declared).Mul(hundred)
	res.IsConsistent = inputsSet && res.DeviationPercent.LessThanOrEqual(tolerance)
	return res
}
