package parse

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ParseAmount converts an amount in ledger export notation to a decimal.
// The notation uses dots as thousands separators, a comma as the decimal
// separator and the trailing-minus sign convention for credits.
func ParseAmount(val string) (decimal.Decimal, error) {
	s := strings.TrimSpace(val)
	s = strings.ReplaceAll(s, ".", "")
	s = strings.ReplaceAll(s, ",", ".")

	if strings.HasSuffix(s, "-") {
		s = "-" + strings.TrimSuffix(s, "-")
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("cannot parse amount %q: %w", val, err)
	}
	return d, nil
}

var dateLayouts = []string{"02.01.2006", "02/01/2006", "02-01-2006"}

// ParseDate converts a day-first date string to a time value.
func ParseDate(val string) (time.Time, error) {
	s := strings.TrimSpace(val)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse date %q", val)
}
