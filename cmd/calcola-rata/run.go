package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/iwvelando/calcola-rata/internal/catalog"
	"github.com/iwvelando/calcola-rata/internal/quote"
	"github.com/iwvelando/calcola-rata/internal/ratetable"
	"github.com/iwvelando/calcola-rata/pkg/constants"
	"github.com/iwvelando/calcola-rata/pkg/loans"
	"github.com/iwvelando/calcola-rata/pkg/output"
	"github.com/iwvelando/calcola-rata/pkg/validation"
	"go.uber.org/zap"
)

const (
	modeQuote    = "quote"
	modeReverse  = "reverse"
	modeSchedule = "schedule"
	modeLenders  = "lenders"
	modeTable    = "table"
	modeServe    = "serve"
)

type runOptions struct {
	Mode         string
	Lenders      []string
	Duration     int
	Amount       float64
	Installment  float64
	Cadence      string
	Rate         float64
	StartDate    string
	Upload       string
	OutputFormat string
}

func splitLenders(value string) []string {
	var lenders []string
	for _, name := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(name); trimmed != "" {
			lenders = append(lenders, trimmed)
		}
	}
	return lenders
}

// run executes one calculation and writes the result to w.
func run(w io.Writer, logger *zap.Logger, resolver *catalog.Resolver, opts runOptions) error {
	switch opts.Mode {
	case modeSchedule:
		return runSchedule(w, logger, opts)
	case modeQuote, modeReverse, modeLenders, modeTable:
	default:
		return fmt.Errorf("unknown mode %q", opts.Mode)
	}

	set, warnings, err := resolveTables(logger, resolver, opts)
	if err != nil {
		return err
	}
	for _, warning := range warnings {
		logger.Warn(warning, zap.String("op", "main.run"))
	}

	if opts.Mode == modeLenders {
		report := output.LendersReport{Durations: set.Durations(), Warnings: warnings}
		for _, name := range set.Lenders() {
			table, _ := set.Table(name)
			report.Lenders = append(report.Lenders, output.LenderDurations{Name: name, Durations: table.Durations()})
		}
		switch opts.OutputFormat {
		case constants.OutputFormatCSV:
			return output.CsvLenders(w, report)
		case constants.OutputFormatJSON:
			return output.JSON(w, report)
		default:
			output.PrettyLenders(w, report)
			return nil
		}
	}

	if opts.Mode == modeTable {
		if len(opts.Lenders) != 1 {
			return fmt.Errorf("table mode needs exactly one lender, got %d", len(opts.Lenders))
		}
		table, ok := set.Table(opts.Lenders[0])
		if !ok {
			return fmt.Errorf("unknown lender %q (available: %s)", opts.Lenders[0], strings.Join(set.Lenders(), ", "))
		}
		report := output.TableReport{Lender: table.Lender(), Rows: table.Rows(), Warnings: warnings}
		switch opts.OutputFormat {
		case constants.OutputFormatCSV:
			return output.CsvTable(w, report)
		case constants.OutputFormatJSON:
			return output.JSON(w, report)
		default:
			output.PrettyTable(w, report)
			return nil
		}
	}

	cadence, err := quote.ParseCadence(opts.Cadence)
	if err != nil {
		return err
	}
	if err := validation.ValidateDuration(opts.Duration, set.Durations()); err != nil {
		return err
	}
	req := quote.Request{Lenders: opts.Lenders, Duration: opts.Duration, Cadence: cadence}

	if opts.Mode == modeReverse {
		if err := validation.ValidateAmount("installment", opts.Installment); err != nil {
			return err
		}
		report := output.ReverseReport{
			Installment: opts.Installment,
			Duration:    opts.Duration,
			Cadence:     cadence,
			Results:     quote.CompareReverse(set, req, opts.Installment),
			Warnings:    warnings,
		}
		switch opts.OutputFormat {
		case constants.OutputFormatCSV:
			return output.CsvReverse(w, report)
		case constants.OutputFormatJSON:
			return output.JSON(w, report)
		default:
			output.PrettyReverse(w, report)
			return nil
		}
	}

	if err := validation.ValidateAmount("amount", opts.Amount); err != nil {
		return err
	}
	report := output.QuoteReport{
		Principal: opts.Amount,
		Duration:  opts.Duration,
		Cadence:   cadence,
		Results:   quote.Compare(set, req, opts.Amount),
		Warnings:  warnings,
	}
	switch opts.OutputFormat {
	case constants.OutputFormatCSV:
		return output.CsvQuotes(w, report)
	case constants.OutputFormatJSON:
		return output.JSON(w, report)
	default:
		output.PrettyQuotes(w, report)
		return nil
	}
}

// resolveTables resolves the tables in force and applies the upload, if any,
// to the single selected lender. An upload that cannot be opened is reported
// as a warning and the resolved tables are kept.
func resolveTables(logger *zap.Logger, resolver *catalog.Resolver, opts runOptions) (*ratetable.Set, []string, error) {
	set, warnings := resolver.Resolve()
	if opts.Upload == "" {
		return set, warnings, nil
	}
	if len(opts.Lenders) != 1 {
		return nil, nil, fmt.Errorf("an uploaded table applies to exactly one lender, got %d", len(opts.Lenders))
	}

	file, err := os.Open(opts.Upload)
	if err != nil {
		warning := fmt.Sprintf("unable to open uploaded table %s for lender '%s': %v", opts.Upload, opts.Lenders[0], err)
		return set, append(warnings, warning), nil
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			logger.Warn("failed to close uploaded table",
				zap.String("op", "main.resolveTables"),
				zap.Error(closeErr),
			)
		}
	}()

	set, uploadWarnings := resolver.ApplyUpload(set, opts.Lenders[0], filepath.Base(opts.Upload), file)
	return set, append(warnings, uploadWarnings...), nil
}

func runSchedule(w io.Writer, logger *zap.Logger, opts runOptions) error {
	if err := validation.ValidateAmount("amount", opts.Amount); err != nil {
		return err
	}
	if err := validation.ValidateRate(opts.Rate); err != nil {
		return err
	}

	schedule, err := loans.NewAmortizationScheduleGenerator(logger).GenerateSchedule(loans.ScheduleRequest{
		Principal:    opts.Amount,
		InterestRate: opts.Rate,
		Term:         opts.Duration,
		StartDate:    opts.StartDate,
	})
	if err != nil {
		return err
	}

	report := output.ScheduleReport{
		Principal:  opts.Amount,
		AnnualRate: opts.Rate,
		Duration:   opts.Duration,
		Schedule:   schedule,
	}
	switch opts.OutputFormat {
	case constants.OutputFormatCSV:
		return output.CsvSchedule(w, report)
	case constants.OutputFormatJSON:
		return output.JSON(w, report)
	default:
		output.PrettySchedule(w, report)
		return nil
	}
}
