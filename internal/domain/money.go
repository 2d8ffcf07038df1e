package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Pesos converts centavos to an exact decimal peso amount.
func Pesos(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}

// FormatPeso renders centavos as "₱1,234.50".
func FormatPeso(cents int64) string {
	return FormatMoney("₱", cents)
}

func FormatMoney(symbol string, cents int64) string {
	amount := Pesos(cents)
	sign := ""
	if amount.IsNegative() {
		sign = "-"
		amount = amount.Neg()
	}
	fixed := amount.StringFixed(2)
	whole, frac, _ := strings.Cut(fixed, ".")
	return fmt.Sprintf("%s%s%s.%s", sign, symbol, groupThousands(whole), frac)
}

// ParsePesos parses a peso amount such as "90", "90.5" or "1,250.00" into centavos.
func ParsePesos(raw string) (int64, error) {
	clean := strings.TrimSpace(strings.ReplaceAll(raw, ",", ""))
	clean = strings.TrimPrefix(clean, "₱")
	amount, err := decimal.NewFromString(clean)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q", raw)
	}
	if amount.Exponent() < -2 && !amount.Equal(amount.Round(2)) {
		return 0, fmt.Errorf("amount %q has more than two decimal places", raw)
	}
	return amount.Shift(2).IntPart(), nil
}

// Percent returns part/whole*100 rounded to two decimals.
func Percent(part, whole int64) float64 {
	if whole <= 0 {
		return 0
	}
	ratio := decimal.NewFromInt(part).Mul(decimal.NewFromInt(100)).Div(decimal.NewFromInt(whole))
	f, _ := ratio.Round(2).Float64()
	return f
}

func groupThousands(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	lead := len(digits) % 3
	if lead > 0 {
		b.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}
