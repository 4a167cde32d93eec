// Package quote computes financing installments from a lender's coefficient
// table and estimates the principal behind a target installment.
//
// Coefficients are percentages of the principal giving the monthly
// installment; a quarterly installment is three monthly ones. Calculations
// keep full precision; rounding happens only when results are presented.
package quote

import (
	"github.com/iwvelando/calcola-rata/internal/ratetable"
	"github.com/iwvelando/calcola-rata/pkg/mathutil"
)

// Installment is the outcome of a forward calculation.
type Installment struct {
	Installment  float64
	Monthly      float64
	CoeffPercent float64
	Band         ratetable.Band
}

// Estimate is the outcome of a reverse calculation.
type Estimate struct {
	Principal    float64
	CoeffPercent float64
	Band         ratetable.Band
}

// ComputeInstallment applies the coefficient of the band containing principal
// at duration. It reports false when the duration is absent from the table or
// no band contains the principal.
func ComputeInstallment(principal float64, table *ratetable.Table, duration int, cadence Cadence) (Installment, bool) {
	entry, ok := table.Lookup(duration, principal)
	if !ok {
		return Installment{}, false
	}

	monthly := mathutil.ApplyPercentage(principal, entry.CoeffPercent)
	return Installment{
		Installment:  monthly * float64(cadence.Months()),
		Monthly:      monthly,
		CoeffPercent: entry.CoeffPercent,
		Band:         entry.Band,
	}, true
}

// ImpliedPrincipal estimates the principal that would produce installment.
//
// Each band at duration proposes the principal its coefficient implies; a
// proposal counts only if it falls inside the band that produced it. Bands
// with a non-positive coefficient are skipped. The smallest self-consistent
// proposal is returned, or false when there is none.
func ImpliedPrincipal(installment float64, table *ratetable.Table, duration int, cadence Cadence) (Estimate, bool) {
	monthly := installment / float64(cadence.Months())

	var best Estimate
	found := false
	for _, entry := range table.Entries(duration) {
		candidate, ok := mathutil.InvertPercentage(monthly, entry.CoeffPercent)
		if !ok || !entry.Band.Contains(candidate) {
			continue
		}
		if !found || candidate < best.Principal {
			best = Estimate{Principal: candidate, CoeffPercent: entry.CoeffPercent, Band: entry.Band}
			found = true
		}
	}
	return best, found
}
