package document

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// Amount is a monetary field as extracted or entered by the reviewer.
// The zero value is unset: the field was missing or did not hold a number.
// An unset Amount counts as zero in calculations.
type Amount struct {
	value decimal.Decimal
	set   bool
}

// NewAmount returns a set Amount holding d
func NewAmount(d decimal.Decimal) Amount {
	return Amount{value: d, set: true}
}

// AmountFromFloat is a convenience for literals and extraction payloads
func AmountFromFloat(f float64) Amount {
	return NewAmount(decimal.NewFromFloat(f))
}

// ParseAmount reads a decimal from user or model text. Anything that is not
// a number yields an unset Amount.
func ParseAmount(s string) Amount {
	s = strings.TrimSpace(s)
	if s == "" {
		return Amount{}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}
	}
	return NewAmount(d)
}

// Decimal returns the value, or zero when unset
func (a Amount) Decimal() decimal.Decimal {
	if !a.set {
		return decimal.Zero
	}
	return a.value
}

// IsSet reports whether the field holds a number
func (a Amount) IsSet() bool {
	return a.set
}

// IsNegative reports whether a set value is below zero
func (a Amount) IsNegative() bool {
	return a.set && a.value.IsNegative()
}

// Equal compares two amounts by value; two unset amounts are equal
func (a Amount) Equal(b Amount) bool {
	if a.set != b.set {
		return false
	}
	return a.value.Equal(b.value)
}

// String renders the value with two decimals, or "" when unset
func (a Amount) String() string {
	if !a.set {
		return ""
	}
	return a.value.StringFixed(2)
}

// MarshalJSON writes an unquoted number, or null when unset
func (a Amount) MarshalJSON() ([]byte, error) {
	if !a.set {
		return []byte("null"), nil
	}
	return []byte(a.value.String()), nil
}

// UnmarshalJSON accepts numbers, numeric strings and null. Non-numeric
// strings decode to an unset Amount rather than failing the whole record.
func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*a = Amount{}
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = ParseAmount(s)
		return nil
	}
	d, err := decimal.NewFromString(string(data))
	if err != nil {
		return err
	}
	*a = NewAmount(d)
	return nil
}
