// Package format renders amounts the way Italian users read them.
package format

import (
	"fmt"
	"math"
	"strings"
)

// Euro returns a currency string with the euro sign, dot thousands separators
// and a decimal comma (e.g., "-€ 1.234,56").
func Euro(amount float64) string {
	formatted := Number(math.Abs(amount))
	if amount < 0 && formatted != "0,00" {
		return "-€ " + formatted
	}
	return "€ " + formatted
}

// Number returns amount with two decimals in Italian notation
// (e.g., "-1.234,56").
func Number(amount float64) string {
	sign := ""
	if amount < 0 {
		sign = "-"
	}
	formatted := formatPositive(math.Abs(amount))
	if formatted == "0,00" {
		return formatted
	}
	return sign + formatted
}

// Percent renders a coefficient percentage with three decimals (e.g., "1,892%").
func Percent(value float64) string {
	return strings.Replace(fmt.Sprintf("%.3f", value), ".", ",", 1) + "%"
}

func formatPositive(value float64) string {
	formatted := fmt.Sprintf("%.2f", value)
	parts := strings.SplitN(formatted, ".", 2)
	intPart := parts[0]
	decPart := "00"
	if len(parts) == 2 {
		decPart = parts[1]
	}

	if len(intPart) > 3 {
		var builder strings.Builder
		for i, digit := range intPart {
			if i > 0 && (len(intPart)-i)%3 == 0 {
				builder.WriteByte('.')
			}
			builder.WriteRune(digit)
		}
		intPart = builder.String()
	}

	return intPart + "," + decPart
}
