package ratetable

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Column names expected in a tabular source. Matching is case-insensitive.
const (
	ColumnLender      = "Finanziaria"
	ColumnDuration    = "Durata"
	ColumnBandMin     = "FasciaMin"
	ColumnBandMax     = "FasciaMax"
	ColumnCoefficient = "Coeff_percent"
	ColumnRV          = "RV"
)

var (
	// ErrEmptySource is returned when a source has no header row.
	ErrEmptySource = errors.New("rate table source is empty")

	// ErrMissingColumn is returned when a required column is absent.
	ErrMissingColumn = errors.New("rate table source is missing a required column")

	// ErrUnsupportedFormat is returned for file types other than CSV and XLSX.
	ErrUnsupportedFormat = errors.New("unsupported rate table format")
)

type columns struct {
	lender, duration, bandMin, bandMax, coefficient, rv int
}

func locateColumns(header []string) (columns, error) {
	cols := columns{lender: -1, duration: -1, bandMin: -1, bandMax: -1, coefficient: -1, rv: -1}
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))) {
		case strings.ToLower(ColumnLender):
			cols.lender = i
		case strings.ToLower(ColumnDuration):
			cols.duration = i
		case strings.ToLower(ColumnBandMin):
			cols.bandMin = i
		case strings.ToLower(ColumnBandMax):
			cols.bandMax = i
		case strings.ToLower(ColumnCoefficient):
			cols.coefficient = i
		case strings.ToLower(ColumnRV):
			cols.rv = i
		}
	}

	required := []struct {
		name  string
		index int
	}{
		{ColumnDuration, cols.duration},
		{ColumnBandMin, cols.bandMin},
		{ColumnBandMax, cols.bandMax},
		{ColumnCoefficient, cols.coefficient},
	}
	var missing []string
	for _, r := range required {
		if r.index < 0 {
			missing = append(missing, r.name)
		}
	}
	if len(missing) > 0 {
		return cols, fmt.Errorf("%w: %s", ErrMissingColumn, strings.Join(missing, ", "))
	}
	return cols, nil
}

// ParseRecords converts a header row followed by data rows into Rows. When the
// source has no Finanziaria column every row is attributed to lender. When an
// RV column is present only rows with RV equal to 1 are kept. Blank rows are
// skipped.
func ParseRecords(records [][]string, lender string) ([]Row, error) {
	if len(records) == 0 {
		return nil, ErrEmptySource
	}
	cols, err := locateColumns(records[0])
	if err != nil {
		return nil, err
	}

	var rows []Row
	for n, record := range records[1:] {
		line := n + 2
		if blank(record) {
			continue
		}

		if cols.rv >= 0 {
			rv, err := parseNumber(cell(record, cols.rv))
			if err != nil || rv != 1 {
				continue
			}
		}

		row := Row{Lender: lender}
		if cols.lender >= 0 {
			if name := strings.TrimSpace(cell(record, cols.lender)); name != "" {
				row.Lender = name
			}
		}

		duration, err := parseNumber(cell(record, cols.duration))
		if err != nil {
			return nil, fmt.Errorf("row %d: invalid %s: %w", line, ColumnDuration, err)
		}
		if duration != math.Trunc(duration) {
			return nil, fmt.Errorf("row %d: %s must be a whole number of months, got %v", line, ColumnDuration, duration)
		}
		row.Duration = int(duration)

		if row.Band.Min, err = parseNumber(cell(record, cols.bandMin)); err != nil {
			return nil, fmt.Errorf("row %d: invalid %s: %w", line, ColumnBandMin, err)
		}
		if row.Band.Max, err = parseNumber(cell(record, cols.bandMax)); err != nil {
			return nil, fmt.Errorf("row %d: invalid %s: %w", line, ColumnBandMax, err)
		}
		if row.CoeffPercent, err = parseNumber(cell(record, cols.coefficient)); err != nil {
			return nil, fmt.Errorf("row %d: invalid %s: %w", line, ColumnCoefficient, err)
		}

		rows = append(rows, row)
	}
	return rows, nil
}

// ReadCSV reads rows from CSV data. The delimiter is ',' or ';', whichever
// occurs more often in the header line.
func ReadCSV(r io.Reader, lender string) ([]Row, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = detectDelimiter(data)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse csv: %w", err)
	}
	return ParseRecords(records, lender)
}

// ReadWorkbook reads rows from the named sheet of an XLSX workbook, falling
// back to the first sheet when the name is empty or absent.
func ReadWorkbook(r io.Reader, sheet, lender string) ([]Row, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptySource
	}
	target := sheets[0]
	for _, name := range sheets {
		if strings.EqualFold(name, sheet) {
			target = name
			break
		}
	}

	records, err := f.GetRows(target, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", target, err)
	}
	return ParseRecords(records, lender)
}

// Read dispatches on the extension of name to the CSV or workbook reader.
func Read(name string, r io.Reader, sheet, lender string) ([]Row, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".txt":
		return ReadCSV(r, lender)
	case ".xlsx", ".xlsm":
		return ReadWorkbook(r, sheet, lender)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, name)
	}
}

// ReadFile opens path and reads it with Read.
func ReadFile(path, sheet, lender string) ([]Row, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = file.Close()
	}()
	return Read(path, file, sheet, lender)
}

func detectDelimiter(data []byte) rune {
	header := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		header = data[:i]
	}
	if bytes.Count(header, []byte(";")) > bytes.Count(header, []byte(",")) {
		return ';'
	}
	return ','
}

func cell(record []string, i int) string {
	if i < 0 || i >= len(record) {
		return ""
	}
	return record[i]
}

func blank(record []string) bool {
	for _, value := range record {
		if strings.TrimSpace(value) != "" {
			return false
		}
	}
	return true
}

// parseNumber accepts both "1234.56" and the Italian "1.234,56" notation.
// A comma followed by a dot, as in "1,000.50", is rejected.
func parseNumber(value string) (float64, error) {
	s := strings.TrimSpace(value)
	s = strings.TrimSuffix(s, "%")
	s = strings.TrimSpace(strings.TrimPrefix(s, "€"))
	if s == "" {
		return 0, errors.New("empty value")
	}
	if comma := strings.Index(s, ","); comma >= 0 {
		if strings.LastIndex(s, ".") > comma {
			return 0, fmt.Errorf("ambiguous number %q: use the 1.234,56 notation", value)
		}
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	}
	return strconv.ParseFloat(s, 64)
}
