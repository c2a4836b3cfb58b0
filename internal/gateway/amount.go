package gateway

import (
	"fmt"
	"math"
	"strings"

	"github.com/layoffproof/layoff-tracker/internal/domain"
)

// Currencies without a minor unit. The gateway expects their amounts as-is.
var zeroDecimalCurrencies = map[string]bool{
	"bif": true, "clp": true, "djf": true, "gnf": true, "jpy": true, "kmf": true,
	"krw": true, "mga": true, "pyg": true, "rwf": true, "ugx": true, "vnd": true,
	"vuv": true, "xaf": true, "xof": true, "xpf": true,
}

// ToMinorUnits converts an amount in major units into the integer minor-unit
// amount the gateway expects, rounding half away from zero (19.00 usd -> 1900).
func ToMinorUnits(amount float64, currency string) (int64, error) {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return 0, fmt.Errorf("%w: %v", domain.ErrInvalidAmount, amount)
	}

	factor := 100.0
	if ZeroDecimal(currency) {
		factor = 1
	}

	minor := math.Round(amount * factor)
	if minor <= 0 {
		return 0, fmt.Errorf("%w: %v", domain.ErrInvalidAmount, amount)
	}
	if minor > math.MaxInt64/2 {
		return 0, fmt.Errorf("%w: %v is too large", domain.ErrInvalidAmount, amount)
	}
	return int64(minor), nil
}

// NormalizeCurrency lower-cases code and falls back to DefaultCurrency.
func NormalizeCurrency(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" {
		return DefaultCurrency
	}
	return code
}

// ZeroDecimal reports whether currency has no minor unit.
func ZeroDecimal(currency string) bool {
	return zeroDecimalCurrencies[strings.ToLower(currency)]
}
