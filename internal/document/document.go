package document

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const (
	// DateLayout is the layout of invoice and due dates
	DateLayout = "2006-01-02"

	// MonthLayout is the layout of a utility bill's billing month
	MonthLayout = "01-2006"
)

// Variant names one of the closed set of document shapes
type Variant string

const (
	VariantInvoice     Variant = "invoice"
	VariantUtilityBill Variant = "utility_bill"
)

// ParseVariant validates a variant tag from configuration
func ParseVariant(s string) (Variant, error) {
	switch v := Variant(strings.ToLower(strings.TrimSpace(s))); v {
	case VariantInvoice, VariantUtilityBill:
		return v, nil
	default:
		return "", fmt.Errorf("unknown document variant %q (valid: %s, %s)", s, VariantInvoice, VariantUtilityBill)
	}
}

// SchemaVersion is bumped whenever the persisted shape of the variant changes
func (v Variant) SchemaVersion() int {
	switch v {
	case VariantInvoice:
		return 2
	default:
		return 1
	}
}

// New returns an empty draft of the variant
func (v Variant) New() Record {
	switch v {
	case VariantUtilityBill:
		return &UtilityBill{}
	default:
		return &Invoice{}
	}
}

// Envelope holds the identity assigned when a draft is committed.
// Both fields are absent while the record is under review.
type Envelope struct {
	ID        string     `json:"id,omitempty"`
	ScannedAt *time.Time `json:"scanned_at,omitempty"`
}

// Meta gives access to the envelope of any record
func (e *Envelope) Meta() *Envelope {
	return e
}

// Committed reports whether identity has been assigned
func (e *Envelope) Committed() bool {
	return e.ID != "" && e.ScannedAt != nil
}

func (e Envelope) clone() Envelope {
	if e.ScannedAt != nil {
		t := *e.ScannedAt
		e.ScannedAt = &t
	}
	return e
}

// Record is an extracted document of either variant
type Record interface {
	// Variant returns the document shape
	Variant() Variant

	// Meta returns the commit envelope
	Meta() *Envelope

	// Set edits one field by its JSON name
	Set(field, value string) error

	// Validate reports the first missing required field
	Validate() error

	// Clone returns a deep copy
	Clone() Record
}

// Decode parses a single record of the variant. Unknown fields are ignored;
// this is used for extraction output.
func Decode(v Variant, data []byte) (Record, error) {
	rec := v.New()
	if err := json.Unmarshal(data, rec); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", v, err)
	}
	return rec, nil
}

// DecodeCollection strictly parses a persisted JSON array of the variant.
// Any field outside the variant's shape fails the decode so that data written
// under a different shape is never misread.
func DecodeCollection(v Variant, data []byte) ([]Record, error) {
	switch v {
	case VariantUtilityBill:
		var bills []*UtilityBill
		if err := decodeStrict(data, &bills); err != nil {
			return nil, err
		}
		records := make([]Record, 0, len(bills))
		for _, b := range bills {
			if b != nil {
				records = append(records, b)
			}
		}
		return records, nil
	default:
		var invoices []*Invoice
		if err := decodeStrict(data, &invoices); err != nil {
			return nil, err
		}
		records := make([]Record, 0, len(invoices))
		for _, inv := range invoices {
			if inv != nil {
				records = append(records, inv)
			}
		}
		return records, nil
	}
}

func decodeStrict[T any](data []byte, dst *T) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("decoding collection: %w", err)
	}
	return nil
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func setAmount(dst *Amount, field, value string) error {
	a := ParseAmount(value)
	if a.IsNegative() {
		return NewValidationError(field, value, "must not be negative")
	}
	*dst = a
	return nil
}

// checkDate accepts an empty value; required-ness is Validate's concern
func checkDate(field, value, layout, format string) error {
	if value == "" {
		return nil
	}
	if _, err := time.Parse(layout, value); err != nil {
		return NewValidationError(field, value, "must use the format "+format)
	}
	return nil
}
