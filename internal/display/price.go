package display

import (
	"math"
	"strconv"
	"strings"
)

// Price formats an amount with a currency symbol and thousands separators.
// Whole amounts drop the cents: 50 -> "$50", 1234.5 -> "$1,234.50".
func Price(amount float64, symbol string) string {
	neg := amount < 0
	amount = math.Abs(amount)

	var s string
	if amount == math.Trunc(amount) {
		s = groupThousands(strconv.FormatFloat(amount, 'f', 0, 64))
	} else {
		whole, frac, _ := strings.Cut(strconv.FormatFloat(amount, 'f', 2, 64), ".")
		s = groupThousands(whole) + "." + frac
	}
	if neg {
		return "-" + symbol + s
	}
	return symbol + s
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
