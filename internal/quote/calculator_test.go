package quote

import (
	"math"
	"testing"

	"github.com/iwvelando/calcola-rata/internal/ratetable"
)

func testTable() *ratetable.Table {
	return ratetable.Build("Alfa", []ratetable.Row{
		{Duration: 24, Band: ratetable.Band{Min: 5000, Max: 49999}, CoeffPercent: 4.426},
		{Duration: 24, Band: ratetable.Band{Min: 50000, Max: 150000}, CoeffPercent: 4.380},
		{Duration: 60, Band: ratetable.Band{Min: 5000, Max: 49999}, CoeffPercent: 1.892},
		{Duration: 60, Band: ratetable.Band{Min: 50000, Max: 150000}, CoeffPercent: 1.812},
		{Duration: 72, Band: ratetable.Band{Min: 5000, Max: 49999}, CoeffPercent: 0},
	})
}

func TestComputeInstallment(t *testing.T) {
	table := testTable()

	tests := []struct {
		name        string
		principal   float64
		duration    int
		cadence     Cadence
		found       bool
		monthly     float64
		installment float64
	}{
		{"Quarterly 60 months", 15000, 60, Quarterly, true, 283.80, 851.40},
		{"Monthly 60 months", 15000, 60, Monthly, true, 283.80, 283.80},
		{"Monthly 24 months", 10000, 24, Monthly, true, 442.60, 442.60},
		{"Upper band", 80000, 60, Quarterly, true, 1449.60, 4348.80},
		{"Duration absent", 15000, 48, Monthly, false, 0, 0},
		{"Below lowest band", 1000, 60, Monthly, false, 0, 0},
		{"Above highest band", 200000, 60, Monthly, false, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, ok := ComputeInstallment(tt.principal, table, tt.duration, tt.cadence)
			if ok != tt.found {
				t.Fatalf("ComputeInstallment() found = %v, expected %v", ok, tt.found)
			}
			if !ok {
				return
			}
			if math.Abs(result.Monthly-tt.monthly) > 0.005 {
				t.Errorf("monthly = %.4f, expected %.2f", result.Monthly, tt.monthly)
			}
			if math.Abs(result.Installment-tt.installment) > 0.005 {
				t.Errorf("installment = %.4f, expected %.2f", result.Installment, tt.installment)
			}
		})
	}
}

func TestComputeInstallmentQuarterlyIsThreeMonthly(t *testing.T) {
	table := testTable()
	for _, principal := range []float64{5000, 12345.67, 49999, 50000, 99999.99} {
		monthly, ok := ComputeInstallment(principal, table, 60, Monthly)
		if !ok {
			t.Fatalf("expected a coefficient for %.2f", principal)
		}
		quarterly, _ := ComputeInstallment(principal, table, 60, Quarterly)
		if math.Abs(quarterly.Installment-3*monthly.Installment) > 1e-9 {
			t.Errorf("principal %.2f: quarterly %.4f is not three times monthly %.4f",
				principal, quarterly.Installment, monthly.Installment)
		}
		if quarterly.Monthly != monthly.Monthly {
			t.Errorf("principal %.2f: monthly equivalent differs between cadences", principal)
		}
	}
}

func TestImpliedPrincipal(t *testing.T) {
	table := testTable()

	tests := []struct {
		name        string
		installment float64
		duration    int
		cadence     Cadence
		found       bool
		principal   float64
	}{
		{"Monthly low band", 283.80, 60, Monthly, true, 15000},
		{"Quarterly low band", 851.40, 60, Quarterly, true, 15000},
		{"Upper band", 1449.60, 60, Monthly, true, 80000},
		{"Installment too small", 10, 60, Monthly, false, 0},
		{"Duration absent", 283.80, 48, Monthly, false, 0},
		{"Zero coefficient skipped", 100, 72, Monthly, false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			est, ok := ImpliedPrincipal(tt.installment, table, tt.duration, tt.cadence)
			if ok != tt.found {
				t.Fatalf("ImpliedPrincipal() found = %v, expected %v", ok, tt.found)
			}
			if ok && math.Abs(est.Principal-tt.principal) > 0.01 {
				t.Errorf("principal = %.2f, expected %.2f", est.Principal, tt.principal)
			}
		})
	}
}

func TestImpliedPrincipalPrefersSmallestCandidate(t *testing.T) {
	// Both bands are self-consistent for a 200.00 installment:
	// 200 / 2% = 10000 in [0, 12000] and 200 / 1.5% = 13333.33 in [9000, 20000].
	table := ratetable.Build("Beta", []ratetable.Row{
		{Duration: 36, Band: ratetable.Band{Min: 0, Max: 12000}, CoeffPercent: 2.0},
		{Duration: 36, Band: ratetable.Band{Min: 9000, Max: 20000}, CoeffPercent: 1.5},
	})

	est, ok := ImpliedPrincipal(200, table, 36, Monthly)
	if !ok {
		t.Fatal("expected a candidate")
	}
	if math.Abs(est.Principal-10000) > 1e-6 {
		t.Errorf("principal = %.2f, expected 10000.00", est.Principal)
	}
	if est.CoeffPercent != 2.0 {
		t.Errorf("coefficient = %.3f, expected 2.000", est.CoeffPercent)
	}
}

func TestRoundTrip(t *testing.T) {
	table := testTable()
	for _, duration := range []int{24, 60} {
		for _, principal := range []float64{5500, 15000, 32000.5, 49000, 55000, 75000, 149000} {
			for _, cadence := range []Cadence{Monthly, Quarterly} {
				inst, ok := ComputeInstallment(principal, table, duration, cadence)
				if !ok {
					t.Fatalf("no coefficient for %.2f at %d months", principal, duration)
				}
				est, ok := ImpliedPrincipal(inst.Installment, table, duration, cadence)
				if !ok {
					t.Fatalf("no implied principal for %.2f at %d months", principal, duration)
				}
				if math.Abs(est.Principal-principal) > 1e-6 {
					t.Errorf("round trip of %.2f at %d months (%s) gave %.6f",
						principal, duration, cadence, est.Principal)
				}
			}
		}
	}
}

func TestParseCadence(t *testing.T) {
	tests := []struct {
		input    string
		expected Cadence
		wantErr  bool
	}{
		{"", Monthly, false},
		{"mensile", Monthly, false},
		{"Monthly", Monthly, false},
		{"trimestrale", Quarterly, false},
		{" QUARTERLY ", Quarterly, false},
		{"annuale", Monthly, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseCadence(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseCadence(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.expected {
				t.Errorf("ParseCadence(%q) = %v, expected %v", tt.input, got, tt.expected)
			}
		})
	}

	if Quarterly.Months() != 3 || Monthly.Months() != 1 {
		t.Errorf("unexpected cadence month counts")
	}
}
