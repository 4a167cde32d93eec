// Package loans provides common loan processing utilities.
package loans

import (
	"fmt"
	"math"

	"github.com/iwvelando/calcola-rata/pkg/constants"
	"github.com/iwvelando/calcola-rata/pkg/datetime"
	"github.com/iwvelando/calcola-rata/pkg/mathutil"
	"go.uber.org/zap"
)

// AmortizationRow holds the values for a given month of the schedule. All
// amounts are rounded to cents.
type AmortizationRow struct {
	Month            int     `json:"month"`
	Date             string  `json:"date,omitempty"`
	Installment      float64 `json:"installment"`
	Principal        float64 `json:"principal"`
	Interest         float64 `json:"interest"`
	RemainingBalance float64 `json:"remainingBalance"`
}

// ScheduleRequest represents the parameters of an amortization schedule.
type ScheduleRequest struct {
	Principal    float64
	InterestRate float64 // annual, percent
	Term         int     // months
	StartDate    string  // optional, YYYY-MM
}

// Schedule is a generated amortization schedule with its totals.
type Schedule struct {
	Installment   float64           `json:"installment"`
	TotalPaid     float64           `json:"totalPaid"`
	TotalInterest float64           `json:"totalInterest"`
	Rows          []AmortizationRow `json:"rows"`
}

// CalculateMonthlyPayment calculates the monthly payment for a loan using the standard amortization formula.
func CalculateMonthlyPayment(principal, annualInterestRate float64, termMonths int) float64 {
	if annualInterestRate == 0 {
		// For zero interest, simply divide the principal by term
		return principal / float64(termMonths)
	}

	periodicInterestRate := annualInterestRate / (constants.PercentageMultiplier * constants.MonthsPerYear)
	return principal * periodicInterestRate / (1 - math.Pow(1+periodicInterestRate, -float64(termMonths)))
}

// CalculateInterestPayment calculates the interest portion of a payment.
func CalculateInterestPayment(remainingPrincipal, annualInterestRate float64) float64 {
	return remainingPrincipal * annualInterestRate / (constants.PercentageMultiplier * constants.MonthsPerYear)
}

// AmortizationScheduleGenerator provides utilities for generating loan amortization schedules
type AmortizationScheduleGenerator struct {
	logger *zap.Logger
}

// NewAmortizationScheduleGenerator creates a new generator instance
func NewAmortizationScheduleGenerator(logger *zap.Logger) *AmortizationScheduleGenerator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AmortizationScheduleGenerator{logger: logger}
}

// GenerateSchedule creates a complete amortization schedule for a loan.
//
// Each row is rounded for presentation while the running balance keeps full
// precision, so the rounded rows may not sum exactly to the principal and the
// last remaining balance can differ from zero by a few cents.
func (g *AmortizationScheduleGenerator) GenerateSchedule(req ScheduleRequest) (*Schedule, error) {
	if req.Term <= 0 {
		return nil, fmt.Errorf("term must be a positive number of months, got %d", req.Term)
	}
	if req.InterestRate < 0 {
		return nil, fmt.Errorf("interest rate must not be negative, got %.4f", req.InterestRate)
	}

	var dates []string
	if req.StartDate != "" {
		var err error
		dates, err = datetime.MonthSequence(req.StartDate, req.Term)
		if err != nil {
			return nil, fmt.Errorf("invalid start date %q: %w", req.StartDate, err)
		}
	}

	installment := CalculateMonthlyPayment(req.Principal, req.InterestRate, req.Term)
	balance := req.Principal
	schedule := &Schedule{
		Installment: mathutil.Round(installment),
		Rows:        make([]AmortizationRow, 0, req.Term),
	}

	var totalInterest float64
	for month := 1; month <= req.Term; month++ {
		interest := CalculateInterestPayment(balance, req.InterestRate)
		principal := installment - interest
		balance -= principal
		totalInterest += interest

		row := AmortizationRow{
			Month:            month,
			Installment:      mathutil.Round(installment),
			Principal:        mathutil.Round(principal),
			Interest:         mathutil.Round(interest),
			RemainingBalance: roundCents(balance),
		}
		if dates != nil {
			row.Date = dates[month-1]
		}
		schedule.Rows = append(schedule.Rows, row)
	}

	schedule.TotalPaid = mathutil.Round(installment * float64(req.Term))
	schedule.TotalInterest = mathutil.Round(totalInterest)

	g.logger.Debug(fmt.Sprintf("generated %d-month schedule for %.2f at %.3f%%",
		req.Term, req.Principal, req.InterestRate),
		zap.String("op", "loans.GenerateSchedule"),
		zap.Float64("installment", schedule.Installment),
		zap.Float64("residual", balance),
	)

	return schedule, nil
}

// Amortize is a convenience wrapper producing only the schedule rows.
func Amortize(principal, annualInterestRate float64, termMonths int) ([]AmortizationRow, error) {
	schedule, err := NewAmortizationScheduleGenerator(nil).GenerateSchedule(ScheduleRequest{
		Principal:    principal,
		InterestRate: annualInterestRate,
		Term:         termMonths,
	})
	if err != nil {
		return nil, err
	}
	return schedule.Rows, nil
}

// roundCents rounds to cents and folds negative zero into zero.
func roundCents(val float64) float64 {
	rounded := mathutil.Round(val)
	if rounded == 0 {
		return 0
	}
	return rounded
}
