package document

import (
	"fmt"
	"strings"
)

// MeterReadings are the two tariff registers of an electricity meter
type MeterReadings struct {
	HighTariff Amount `json:"high_tariff"`
	LowTariff  Amount `json:"low_tariff"`
}

// UtilityBill is a utility meter bill. Its total is in the unit of the
// configured tariff.
type UtilityBill struct {
	Envelope
	CustomerID    string        `json:"customer_id"`
	CustomerName  string        `json:"customer_name"`
	BillingMonth  string        `json:"billing_month"` // MM-YYYY
	InvoiceDate   string        `json:"invoice_date"`  // YYYY-MM-DD
	MeterReadings MeterReadings `json:"meter_readings"`
	TotalAmount   Amount        `json:"total_amount"`
}

// Variant implements Record
func (b *UtilityBill) Variant() Variant {
	return VariantUtilityBill
}

// Set edits one field by its JSON name. Meter readings are addressed as
// meter_readings.high_tariff or just high_tariff.
func (b *UtilityBill) Set(field, value string) error {
	value = strings.TrimSpace(value)
	switch field {
	case "customer_id":
		b.CustomerID = value
	case "customer_name":
		b.CustomerName = value
	case "billing_month":
		if err := checkDate(field, value, MonthLayout, "MM-YYYY"); err != nil {
			return err
		}
		b.BillingMonth = value
	case "invoice_date":
		if err := checkDate(field, value, DateLayout, "YYYY-MM-DD"); err != nil {
			return err
		}
		b.InvoiceDate = value
	case "meter_readings.high_tariff", "high_tariff":
		return setAmount(&b.MeterReadings.HighTariff, "high_tariff", value)
	case "meter_readings.low_tariff", "low_tariff":
		return setAmount(&b.MeterReadings.LowTariff, "low_tariff", value)
	case "total_amount":
		return setAmount(&b.TotalAmount, field, value)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownField, field)
	}
	return nil
}

// Validate reports the first missing identifying field
func (b *UtilityBill) Validate() error {
	if strings.TrimSpace(b.CustomerID) == "" {
		return NewValidationError("customer_id", "", "is required")
	}
	if strings.TrimSpace(b.BillingMonth) == "" {
		return NewValidationError("billing_month", "", "is required")
	}
	if strings.TrimSpace(b.InvoiceDate) == "" {
		return NewValidationError("invoice_date", "", "is required")
	}
	return nil
}

// Clone returns a deep copy
func (b *UtilityBill) Clone() Record {
	c := *b
	c.Envelope = b.Envelope.clone()
	return &c
}
