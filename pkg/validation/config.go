package validation

import "fmt"

// ValidateAmount checks that an amount entered by the user can be priced.
func ValidateAmount(name string, amount float64) error {
	if amount <= 0 {
		return fmt.Errorf("%s must be positive, got %.2f", name, amount)
	}
	return nil
}

// ValidateDuration checks that a duration in months is usable and, when
// available is not empty, that it is one of the durations offered.
func ValidateDuration(duration int, available []int) error {
	if duration <= 0 {
		return fmt.Errorf("duration must be a positive number of months, got %d", duration)
	}
	if len(available) == 0 {
		return nil
	}
	for _, d := range available {
		if d == duration {
			return nil
		}
	}
	return fmt.Errorf("duration %d is not offered by any lender (available: %v)", duration, available)
}

// ValidateRate checks an annual interest rate percentage.
func ValidateRate(rate float64) error {
	if rate < 0 {
		return fmt.Errorf("annual rate must not be negative, got %.3f", rate)
	}
	return nil
}
