package reconcile

import (
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Tariff holds the per-unit rates used to estimate a utility bill. It is
// operator configuration; reviewers cannot change it.
type Tariff struct {
	High decimal.Decimal
	Low  decimal.Decimal
	Unit string
}

// DefaultTariff is used when no tariff file is configured
func DefaultTariff() Tariff {
	return Tariff{
		High: decimal.RequireFromString("0.09"),
		Low:  decimal.RequireFromString("0.04"),
		Unit: "EUR",
	}
}

// Symbol returns the display symbol of the unit, falling back to its code
func (t Tariff) Symbol() string {
	switch strings.ToUpper(t.Unit) {
	case "EUR":
		return "€"
	case "USD":
		return "$"
	case "GBP":
		return "£"
	default:
		return t.Unit
	}
}

type tariffFile struct {
	High string `yaml:"high"`
	Low  string `yaml:"low"`
	Unit string `yaml:"unit"`
}

// LoadTariff reads a YAML tariff file. Keys left out keep their defaults.
func LoadTariff(path string) (Tariff, error) {
	t := DefaultTariff()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, fmt.Errorf("reading tariff file: %w", err)
	}
	return parseTariff(raw, t)
}

func parseTariff(raw []byte, t Tariff) (Tariff, error) {
	var f tariffFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return t, fmt.Errorf("parsing tariff file: %w", err)
	}

	if f.High != "" {
		d, err := rate("high", f.High)
		if err != nil {
			return t, err
		}
		t.High = d
	}
	if f.Low != "" {
		d, err := rate("low", f.Low)
		if err != nil {
			return t, err
		}
		t.Low = d
	}
	if u := strings.TrimSpace(f.Unit); u != "" {
		t.Unit = strings.ToUpper(u)
	}
	return t, nil
}

func rate(name, value string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil {
		return decimal.Zero, fmt.Errorf("tariff %s rate %q: %w", name, value, err)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("tariff %s rate must not be negative", name)
	}
	return d, nil
}
