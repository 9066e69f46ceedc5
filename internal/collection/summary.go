package collection

import (
	"github.com/shopspring/decimal"

	"github.com/zombor/invoice-scanner/internal/document"
)

// Total is the sum of record totals in one currency
type Total struct {
	Currency string          `json:"currency"`
	Amount   decimal.Decimal `json:"amount"`
}

// Summary is the dashboard overview of a collection
type Summary struct {
	Count  int     `json:"count"`
	Totals []Total `json:"totals"`
}

// Summarize counts records and sums their totals per currency, in order of
// first appearance. Amounts in different currencies are never combined.
// Utility bills carry no currency and are summed under unit.
func Summarize(records []document.Record, unit string) Summary {
	sum := Summary{Count: len(records), Totals: make([]Total, 0)}
	index := make(map[string]int)

	for _, rec := range records {
		var currency string
		var amount decimal.Decimal
		switch r := rec.(type) {
		case *document.Invoice:
			currency, amount = r.Currency, r.TotalAmount.Decimal()
		case *document.UtilityBill:
			currency, amount = unit, r.TotalAmount.Decimal()
		default:
			continue
		}

		i, ok := index[currency]
		if !ok {
			i = len(sum.Totals)
			index[currency] = i
			sum.Totals = append(sum.Totals, Total{Currency: currency, Amount: decimal.Zero})
		}
		sum.Totals[i].Amount = sum.Totals[i].Amount.Add(amount)
	}
	return sum
}
