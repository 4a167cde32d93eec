// Package mathutil provides common mathematical utility functions.
package mathutil

import (
	"math"

	"github.com/iwvelando/calcola-rata/pkg/constants"
)

// Round rounds a value to two decimals, i.e. to represent real currency.
// Only presentation code should call it; calculations keep full precision.
func Round(val float64) float64 {
	return math.Round(val*constants.DecimalPrecision) / constants.DecimalPrecision
}

// ApplyPercentage applies a percentage to a value
func ApplyPercentage(value, percentage float64) float64 {
	return value * (percentage / constants.PercentageMultiplier)
}

// InvertPercentage returns the value to which percentage was applied to
// obtain result. A non-positive percentage yields false.
func InvertPercentage(result, percentage float64) (float64, bool) {
	if percentage <= 0 {
		return 0, false
	}
	return result * constants.PercentageMultiplier / percentage, true
}
