// Package datetime provides date and time utility functions.
package datetime

import (
	"time"

	"github.com/iwvelando/calcola-rata/pkg/constants"
)

const (
	// DateTimeLayout is the month format used for schedule dates.
	DateTimeLayout = constants.DateTimeLayout
)

// MonthSequence returns count consecutive months starting at start, both in
// DateTimeLayout.
func MonthSequence(start string, count int) ([]string, error) {
	startT, err := time.Parse(DateTimeLayout, start)
	if err != nil {
		return nil, err
	}
	months := make([]string, count)
	for i := range months {
		months[i] = startT.AddDate(0, i, 0).Format(DateTimeLayout)
	}
	return months, nil
}
