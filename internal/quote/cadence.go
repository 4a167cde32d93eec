package quote

import (
	"fmt"
	"strings"

	"github.com/iwvelando/calcola-rata/pkg/constants"
)

// Cadence is how often the installment is paid.
type Cadence int

const (
	Monthly Cadence = iota
	Quarterly
)

// ParseCadence accepts the Italian and English names, case-insensitively.
// The empty string means Monthly.
func ParseCadence(value string) (Cadence, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", constants.CadenceMonthly, "monthly", "m":
		return Monthly, nil
	case constants.CadenceQuarterly, "quarterly", "q", "t":
		return Quarterly, nil
	default:
		return Monthly, fmt.Errorf("expected cadence of %s or %s, got %s",
			constants.CadenceMonthly, constants.CadenceQuarterly, value)
	}
}

// Months returns the number of monthly installments one payment covers.
func (c Cadence) Months() int {
	if c == Quarterly {
		return constants.MonthsPerQuarter
	}
	return 1
}

func (c Cadence) String() string {
	if c == Quarterly {
		return constants.CadenceQuarterly
	}
	return constants.CadenceMonthly
}

// MarshalText implements encoding.TextMarshaler.
func (c Cadence) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Cadence) UnmarshalText(text []byte) error {
	parsed, err := ParseCadence(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
