package document

import (
	"fmt"
	"strings"
)

// Invoice is a generic vendor invoice
type Invoice struct {
	Envelope
	VendorName    string  `json:"vendor_name"`
	InvoiceNumber string  `json:"invoice_number"`
	InvoiceDate   string  `json:"invoice_date"` // YYYY-MM-DD
	DueDate       *string `json:"due_date"`     // YYYY-MM-DD
	Currency      string  `json:"currency"`
	NetAmount     Amount  `json:"net_amount"`
	TaxAmount     Amount  `json:"tax_amount"`
	TotalAmount   Amount  `json:"total_amount"`
	IBAN          *string `json:"iban"` // opaque, not checksum validated
}

// Variant implements Record
func (i *Invoice) Variant() Variant {
	return VariantInvoice
}

// Set edits one field by its JSON name
func (i *Invoice) Set(field, value string) error {
	value = strings.TrimSpace(value)
	switch field {
	case "vendor_name":
		i.VendorName = value
	case "invoice_number":
		i.InvoiceNumber = value
	case "invoice_date":
		if err := checkDate(field, value, DateLayout, "YYYY-MM-DD"); err != nil {
			return err
		}
		i.InvoiceDate = value
	case "due_date":
		if err := checkDate(field, value, DateLayout, "YYYY-MM-DD"); err != nil {
			return err
		}
		i.DueDate = optional(value)
	case "currency":
		i.Currency = strings.ToUpper(value)
	case "net_amount":
		return setAmount(&i.NetAmount, field, value)
	case "tax_amount":
		return setAmount(&i.TaxAmount, field, value)
	case "total_amount":
		return setAmount(&i.TotalAmount, field, value)
	case "iban":
		i.IBAN = optional(value)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownField, field)
	}
	return nil
}

// Validate reports the first missing identifying field
func (i *Invoice) Validate() error {
	required := []struct {
		field string
		value string
	}{
		{"vendor_name", i.VendorName},
		{"invoice_number", i.InvoiceNumber},
		{"invoice_date", i.InvoiceDate},
		{"currency", i.Currency},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return NewValidationError(r.field, "", "is required")
		}
	}
	return nil
}

// Clone returns a deep copy
func (i *Invoice) Clone() Record {
	c := *i
	c.Envelope = i.Envelope.clone()
	c.DueDate = cloneString(i.DueDate)
	c.IBAN = cloneString(i.IBAN)
	return &c
}
