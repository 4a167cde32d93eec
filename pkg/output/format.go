// Package output provides utilities for formatting and displaying calculation results.
package output

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/iwvelando/calcola-rata/internal/quote"
	"github.com/iwvelando/calcola-rata/internal/ratetable"
	"github.com/iwvelando/calcola-rata/pkg/format"
	"github.com/iwvelando/calcola-rata/pkg/loans"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Placeholder shown for lenders without a coefficient for the request.
const notAvailable = "n.d."

// QuoteReport is a forward comparison ready to be rendered.
type QuoteReport struct {
	Principal float64        `json:"importo"`
	Duration  int            `json:"durata"`
	Cadence   quote.Cadence  `json:"cadenza"`
	Results   []quote.Result `json:"risultati"`
	Warnings  []string       `json:"warnings,omitempty"`
}

// ReverseReport is a reverse comparison ready to be rendered.
type ReverseReport struct {
	Installment float64               `json:"rata"`
	Duration    int                   `json:"durata"`
	Cadence     quote.Cadence         `json:"cadenza"`
	Results     []quote.ReverseResult `json:"risultati"`
	Warnings    []string              `json:"warnings,omitempty"`
}

// ScheduleReport is an amortization schedule ready to be rendered.
type ScheduleReport struct {
	Principal  float64 `json:"importo"`
	AnnualRate float64 `json:"tan"`
	Duration   int     `json:"durata"`
	*loans.Schedule
}

// LenderDurations lists the durations one lender offers.
type LenderDurations struct {
	Name      string `json:"nome"`
	Durations []int  `json:"durate"`
}

// LendersReport lists the lenders in force and the durations they offer.
type LendersReport struct {
	Lenders   []LenderDurations `json:"finanziarie"`
	Durations []int             `json:"durate"`
	Warnings  []string          `json:"warnings,omitempty"`
}

// TableReport is one lender's coefficient table.
type TableReport struct {
	Lender   string          `json:"finanziaria"`
	Rows     []ratetable.Row `json:"righe"`
	Warnings []string        `json:"warnings,omitempty"`
}

func printer() *message.Printer {
	return message.NewPrinter(language.Italian)
}

// PrettyQuotes outputs a human-readable table of installments per lender.
func PrettyQuotes(w io.Writer, report QuoteReport) {
	p := printer()
	_, _ = p.Fprintf(w, "--- Rata %s per %s in %d mesi ---\n",
		report.Cadence, format.Euro(report.Principal), report.Duration)
	_, _ = fmt.Fprintf(w, "%-24s | %-14s | %-14s | %s\n", "Finanziaria", "Rata", "Rata mensile", "Coefficiente")
	_, _ = fmt.Fprintf(w, "%-24s | %-14s | %-14s | %s\n", "___________", "____", "____________", "____________")

	anyCheapest := false
	for _, result := range report.Results {
		if !result.Found {
			_, _ = fmt.Fprintf(w, "%-24s | %-14s | %-14s | %s\n", result.Lender, notAvailable, notAvailable, notAvailable)
			continue
		}
		marker := ""
		if result.Cheapest {
			marker = " *"
			anyCheapest = true
		}
		_, _ = fmt.Fprintf(w, "%-24s | %-14s | %-14s | %s%s\n", result.Lender,
			format.Euro(*result.Installment), format.Euro(*result.Monthly), format.Percent(*result.CoeffPercent), marker)
	}
	if anyCheapest {
		_, _ = fmt.Fprintln(w, "* rata mensile più bassa")
	}
	writeWarnings(w, report.Warnings)
}

// CsvQuotes outputs the installments per lender in comma-separated value format.
func CsvQuotes(w io.Writer, report QuoteReport) error {
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"finanziaria", "rata", "rata_mensile", "coeff_percent", "fascia_min", "fascia_max", "piu_bassa"}); err != nil {
		return err
	}
	for _, result := range report.Results {
		record := []string{result.Lender, "", "", "", "", "", strconv.FormatBool(result.Cheapest)}
		if result.Found {
			record[1] = money(*result.Installment)
			record[2] = money(*result.Monthly)
			record[3] = strconv.FormatFloat(*result.CoeffPercent, 'f', -1, 64)
			record[4] = money(result.Band.Min)
			record[5] = money(result.Band.Max)
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// PrettyReverse outputs a human-readable table of implied principals per lender.
func PrettyReverse(w io.Writer, report ReverseReport) {
	p := printer()
	_, _ = p.Fprintf(w, "--- Importo finanziabile con rata %s di %s in %d mesi ---\n",
		report.Cadence, format.Euro(report.Installment), report.Duration)
	_, _ = fmt.Fprintf(w, "%-24s | %-16s | %s\n", "Finanziaria", "Importo", "Coefficiente")
	_, _ = fmt.Fprintf(w, "%-24s | %-16s | %s\n", "___________", "_______", "____________")
	for _, result := range report.Results {
		if !result.Found {
			_, _ = fmt.Fprintf(w, "%-24s | %-16s | %s\n", result.Lender, notAvailable, notAvailable)
			continue
		}
		_, _ = fmt.Fprintf(w, "%-24s | %-16s | %s\n", result.Lender,
			format.Euro(*result.Principal), format.Percent(*result.CoeffPercent))
	}
	writeWarnings(w, report.Warnings)
}

// CsvReverse outputs the implied principals per lender in comma-separated value format.
func CsvReverse(w io.Writer, report ReverseReport) error {
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"finanziaria", "importo", "coeff_percent", "fascia_min", "fascia_max"}); err != nil {
		return err
	}
	for _, result := range report.Results {
		record := []string{result.Lender, "", "", "", ""}
		if result.Found {
			record[1] = money(*result.Principal)
			record[2] = strconv.FormatFloat(*result.CoeffPercent, 'f', -1, 64)
			record[3] = money(result.Band.Min)
			record[4] = money(result.Band.Max)
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// PrettySchedule outputs a human-readable amortization schedule.
func PrettySchedule(w io.Writer, report ScheduleReport) {
	p := printer()
	_, _ = p.Fprintf(w, "--- Piano di ammortamento: %s al %v%% per %d mesi ---\n",
		format.Euro(report.Principal), report.AnnualRate, report.Duration)
	_, _ = fmt.Fprintf(w, "%-7s | %-8s | %-14s | %-14s | %-14s | %s\n", "Mese", "Data", "Rata", "Capitale", "Interessi", "Debito residuo")
	_, _ = fmt.Fprintf(w, "%-7s | %-8s | %-14s | %-14s | %-14s | %s\n", "____", "____", "____", "________", "_________", "______________")
	for _, row := range report.Rows {
		_, _ = fmt.Fprintf(w, "%-7d | %-8s | %-14s | %-14s | %-14s | %s\n", row.Month, row.Date,
			format.Euro(row.Installment), format.Euro(row.Principal), format.Euro(row.Interest), format.Euro(row.RemainingBalance))
	}
	_, _ = fmt.Fprintf(w, "Totale pagato: %s, di cui interessi: %s\n",
		format.Euro(report.TotalPaid), format.Euro(report.TotalInterest))
}

// CsvSchedule outputs the amortization schedule in comma-separated value format.
func CsvSchedule(w io.Writer, report ScheduleReport) error {
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"mese", "data", "rata", "capitale", "interessi", "debito_residuo"}); err != nil {
		return err
	}
	for _, row := range report.Rows {
		record := []string{
			strconv.Itoa(row.Month),
			row.Date,
			money(row.Installment),
			money(row.Principal),
			money(row.Interest),
			money(row.RemainingBalance),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// PrettyLenders outputs the lenders with the durations each one offers.
func PrettyLenders(w io.Writer, report LendersReport) {
	_, _ = fmt.Fprintln(w, "--- Finanziarie disponibili ---")
	for _, lender := range report.Lenders {
		_, _ = fmt.Fprintf(w, "%-24s | %s mesi\n", lender.Name, joinInts(lender.Durations, ", "))
	}
	_, _ = fmt.Fprintf(w, "Durate: %s\n", joinInts(report.Durations, ", "))
	writeWarnings(w, report.Warnings)
}

// CsvLenders outputs one row per lender and duration.
func CsvLenders(w io.Writer, report LendersReport) error {
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"finanziaria", "durata"}); err != nil {
		return err
	}
	for _, lender := range report.Lenders {
		for _, d := range lender.Durations {
			if err := writer.Write([]string{lender.Name, strconv.Itoa(d)}); err != nil {
				return err
			}
		}
	}
	writer.Flush()
	return writer.Error()
}

// PrettyTable outputs a lender's coefficients grouped by duration.
func PrettyTable(w io.Writer, report TableReport) {
	_, _ = fmt.Fprintf(w, "--- Coefficienti %s ---\n", report.Lender)
	_, _ = fmt.Fprintf(w, "%-7s | %-30s | %s\n", "Durata", "Fascia", "Coefficiente")
	_, _ = fmt.Fprintf(w, "%-7s | %-30s | %s\n", "______", "______", "____________")
	for _, row := range report.Rows {
		band := format.Euro(row.Band.Min) + " - " + format.Euro(row.Band.Max)
		_, _ = fmt.Fprintf(w, "%-7d | %-30s | %s\n", row.Duration, band, format.Percent(row.CoeffPercent))
	}
	writeWarnings(w, report.Warnings)
}

// CsvTable outputs a lender's coefficients in the tabular source layout, so
// the result can be edited and uploaded again.
func CsvTable(w io.Writer, report TableReport) error {
	writer := csv.NewWriter(w)
	header := []string{ratetable.ColumnLender, ratetable.ColumnDuration, ratetable.ColumnBandMin,
		ratetable.ColumnBandMax, ratetable.ColumnCoefficient}
	if err := writer.Write(header); err != nil {
		return err
	}
	for _, row := range report.Rows {
		record := []string{
			report.Lender,
			strconv.Itoa(row.Duration),
			money(row.Band.Min),
			money(row.Band.Max),
			strconv.FormatFloat(row.CoeffPercent, 'f', -1, 64),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// JSON outputs v as indented JSON.
func JSON(w io.Writer, v interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func writeWarnings(w io.Writer, warnings []string) {
	for _, warning := range warnings {
		_, _ = fmt.Fprintf(w, "attenzione: %s\n", warning)
	}
}

func joinInts(values []int, sep string) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, sep)
}

func money(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
