package quote

import (
	"github.com/iwvelando/calcola-rata/internal/ratetable"
	"github.com/iwvelando/calcola-rata/pkg/mathutil"
)

// Result is one lender's row of a forward comparison. Amounts are rounded to
// cents; they are nil when the lender has no coefficient for the request, so
// the row can still be shown as "no data".
type Result struct {
	Lender       string          `json:"finanziaria"`
	Found        bool            `json:"found"`
	Installment  *float64        `json:"rata,omitempty"`
	Monthly      *float64        `json:"rataMensile,omitempty"`
	CoeffPercent *float64        `json:"coeffPercent,omitempty"`
	Band         *ratetable.Band `json:"fascia,omitempty"`
	Cheapest     bool            `json:"cheapest"`
}

// ReverseResult is one lender's row of a reverse comparison.
type ReverseResult struct {
	Lender       string          `json:"finanziaria"`
	Found        bool            `json:"found"`
	Principal    *float64        `json:"importo,omitempty"`
	CoeffPercent *float64        `json:"coeffPercent,omitempty"`
	Band         *ratetable.Band `json:"fascia,omitempty"`
}

// Request describes a comparison across lenders. An empty Lenders list means
// every lender in the set.
type Request struct {
	Lenders  []string
	Duration int
	Cadence  Cadence
}

func (r Request) lenders(set *ratetable.Set) []string {
	if len(r.Lenders) > 0 {
		return r.Lenders
	}
	return set.Lenders()
}

// Compare computes the installment of principal for each requested lender.
// Lenders unknown to the set produce a row without values. Every row sharing
// the lowest unrounded monthly installment is flagged Cheapest.
func Compare(set *ratetable.Set, req Request, principal float64) []Result {
	lenders := req.lenders(set)
	results := make([]Result, 0, len(lenders))

	monthly := make([]float64, len(lenders))
	var cheapest float64
	haveCheapest := false
	for i, lender := range lenders {
		result := Result{Lender: lender}
		table, _ := set.Table(lender)
		if inst, ok := ComputeInstallment(principal, table, req.Duration, req.Cadence); ok {
			result.Found = true
			result.Installment = rounded(inst.Installment)
			result.Monthly = rounded(inst.Monthly)
			result.CoeffPercent = value(inst.CoeffPercent)
			band := inst.Band
			result.Band = &band

			monthly[i] = inst.Monthly
			if !haveCheapest || inst.Monthly < cheapest {
				cheapest = inst.Monthly
				haveCheapest = true
			}
		}
		results = append(results, result)
	}

	if haveCheapest {
		for i := range results {
			if results[i].Found && monthly[i] == cheapest {
				results[i].Cheapest = true
			}
		}
	}
	return results
}

// CompareReverse estimates, for each requested lender, the principal that
// produces installment.
func CompareReverse(set *ratetable.Set, req Request, installment float64) []ReverseResult {
	lenders := req.lenders(set)
	results := make([]ReverseResult, 0, len(lenders))
	for _, lender := range lenders {
		result := ReverseResult{Lender: lender}
		table, _ := set.Table(lender)
		if est, ok := ImpliedPrincipal(installment, table, req.Duration, req.Cadence); ok {
			result.Found = true
			result.Principal = rounded(est.Principal)
			result.CoeffPercent = value(est.CoeffPercent)
			band := est.Band
			result.Band = &band
		}
		results = append(results, result)
	}
	return results
}

func rounded(v float64) *float64 {
	r := mathutil.Round(v)
	return &r
}

func value(v float64) *float64 {
	return &v
}
