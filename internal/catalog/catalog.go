// Package catalog resolves the rate tables in force for one calculation
// session: the configured defaults, replaced per lender by the bundled
// workbook when it can be read, and optionally by a user upload for a single
// lender. Load failures never abort resolution; they become warnings.
package catalog

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"

	"github.com/iwvelando/calcola-rata/internal/config"
	"github.com/iwvelando/calcola-rata/internal/ratetable"
	"go.uber.org/zap"
)

// ErrLenderNotInUpload is reported when an upload names lenders but none of
// them is the selected one.
var ErrLenderNotInUpload = errors.New("uploaded table does not name the selected lender")

// Resolver builds rate table sets from the configured sources.
type Resolver struct {
	logger           *zap.Logger
	defaults         []config.LenderTable
	bundledFile      string
	sheet            string
	validateOverlaps bool
}

// NewResolver creates a Resolver for the table sources in conf.
func NewResolver(logger *zap.Logger, conf *config.Configuration) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		logger:           logger,
		defaults:         conf.Defaults,
		bundledFile:      conf.Tables.BundledFile,
		sheet:            conf.Tables.Sheet,
		validateOverlaps: conf.Tables.ValidateOverlaps,
	}
}

// Defaults builds the set described by the configured default tables.
func (r *Resolver) Defaults() *ratetable.Set {
	tables := make([]*ratetable.Table, 0, len(r.defaults))
	for _, lender := range r.defaults {
		rows := make([]ratetable.Row, 0, len(lender.Rows))
		for _, row := range lender.Rows {
			rows = append(rows, ratetable.Row{
				Lender:       lender.Name,
				Duration:     row.Durata,
				Band:         ratetable.Band{Min: row.FasciaMin, Max: row.FasciaMax},
				CoeffPercent: row.CoeffPercent,
			})
		}
		tables = append(tables, ratetable.Build(lender.Name, rows))
	}
	return ratetable.NewSet(tables...)
}

// Resolve returns the defaults with every lender found in the bundled
// workbook replaced by the workbook's table. A missing workbook is skipped
// quietly; an unreadable one produces a warning.
func (r *Resolver) Resolve() (*ratetable.Set, []string) {
	set := r.Defaults()
	var warnings []string

	if r.bundledFile != "" {
		bundled, bundledWarnings, err := r.loadBundled()
		warnings = append(warnings, bundledWarnings...)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			r.logger.Debug(fmt.Sprintf("bundled table %s not found, using defaults", r.bundledFile),
				zap.String("op", "catalog.Resolve"),
			)
		case err != nil:
			warnings = append(warnings, r.warn("catalog.Resolve",
				fmt.Sprintf("unable to read bundled table %s, using defaults", r.bundledFile), err))
		default:
			r.logger.Info("loaded bundled rate tables",
				zap.String("op", "catalog.Resolve"),
				zap.String("file", r.bundledFile),
				zap.Strings("lenders", bundled.Lenders()),
			)
			set = set.With(bundled)
		}
	}

	warnings = append(warnings, r.validate(set)...)
	return set, warnings
}

func (r *Resolver) loadBundled() (*ratetable.Set, []string, error) {
	rows, err := ratetable.ReadFile(r.bundledFile, r.sheet, "")
	if err != nil {
		return nil, nil, err
	}

	var warnings []string
	named := rows[:0:0]
	unnamed := 0
	for _, row := range rows {
		if row.Lender == "" {
			unnamed++
			continue
		}
		named = append(named, row)
	}
	if unnamed > 0 {
		warnings = append(warnings, fmt.Sprintf("bundled table %s: ignored %d rows without a %s",
			r.bundledFile, unnamed, ratetable.ColumnLender))
	}
	if len(named) == 0 {
		return nil, warnings, fmt.Errorf("%w: no rows with a lender", ratetable.ErrEmptySource)
	}
	return ratetable.BuildSet(named, ""), warnings, nil
}

// ApplyUpload replaces lender's table in set with the table read from an
// uploaded source. When the upload names lenders, only the rows for lender
// are used, and an upload naming only other lenders is rejected. Any failure
// leaves set unchanged and is reported as a warning.
func (r *Resolver) ApplyUpload(set *ratetable.Set, lender, filename string, upload io.Reader) (*ratetable.Set, []string) {
	rows, err := ratetable.Read(filename, upload, r.sheet, lender)
	if err != nil {
		return set, []string{r.warn("catalog.ApplyUpload",
			fmt.Sprintf("unable to read uploaded table %s for lender '%s'", filename, lender), err)}
	}

	if len(rows) == 0 {
		return set, []string{r.warn("catalog.ApplyUpload",
			fmt.Sprintf("uploaded table %s for lender '%s' has no rows", filename, lender), ratetable.ErrEmptySource)}
	}

	// Rows without a lender name were attributed to lender by the reader.
	selected := rows[:0:0]
	for _, row := range rows {
		if strings.EqualFold(row.Lender, lender) {
			selected = append(selected, row)
		}
	}
	if len(selected) == 0 {
		return set, []string{r.warn("catalog.ApplyUpload",
			fmt.Sprintf("uploaded table %s has no rows for lender '%s'", filename, lender), ErrLenderNotInUpload)}
	}

	uploaded := ratetable.Build(lender, selected)
	if uploaded.Empty() {
		return set, []string{r.warn("catalog.ApplyUpload",
			fmt.Sprintf("uploaded table %s for lender '%s' has no rows", filename, lender), ratetable.ErrEmptySource)}
	}

	base, _ := set.Table(lender)
	replaced := ratetable.Override(base, uploaded)
	r.logger.Info("applied uploaded rate table",
		zap.String("op", "catalog.ApplyUpload"),
		zap.String("lender", lender),
		zap.String("file", filename),
		zap.Ints("durations", replaced.Durations()),
	)

	var warnings []string
	if r.validateOverlaps {
		warnings = replaced.Validate()
	}
	return set.WithTable(replaced), warnings
}

func (r *Resolver) validate(set *ratetable.Set) []string {
	if !r.validateOverlaps {
		return nil
	}
	var warnings []string
	for _, lender := range set.Lenders() {
		table, _ := set.Table(lender)
		warnings = append(warnings, table.Validate()...)
	}
	for _, warning := range warnings {
		r.logger.Warn(warning, zap.String("op", "catalog.validate"))
	}
	return warnings
}

func (r *Resolver) warn(op, msg string, err error) string {
	r.logger.Warn(msg,
		zap.String("op", op),
		zap.Error(err),
	)
	return fmt.Sprintf("%s: %v", msg, err)
}
