// Package constants provides shared constants for the calcola-rata application.
package constants

// DateTimeLayout is the month format used for amortization schedule dates.
const DateTimeLayout = "2006-01"

// Financial constants
const (
	// MonthsPerYear is the number of months in a year
	MonthsPerYear = 12

	// MonthsPerQuarter is the number of monthly installments in a quarterly one
	MonthsPerQuarter = 3

	// DecimalPrecision is the precision for currency rounding (2 decimal places)
	DecimalPrecision = 100

	// PercentageMultiplier is used for percentage conversions
	PercentageMultiplier = 100.0
)

// Output format constants
const (
	// OutputFormatPretty is the human-readable output format
	OutputFormatPretty = "pretty"

	// OutputFormatCSV is the CSV output format
	OutputFormatCSV = "csv"

	// OutputFormatJSON is the JSON output format
	OutputFormatJSON = "json"
)

// Cadence names accepted on the CLI and the HTTP API
const (
	CadenceMonthly   = "mensile"
	CadenceQuarterly = "trimestrale"
)

// Configuration file constants
const (
	// DefaultConfigFile is the default configuration file name
	DefaultConfigFile = "calcola-rata.yaml"

	// DefaultServerConfigFile is the default server configuration file name
	DefaultServerConfigFile = "server-config.yaml"

	// EnvPrefix is the prefix for environment variable overrides
	EnvPrefix = "CALCOLARATA"
)

// Rate table source defaults
const (
	// DefaultBundledFile is the consolidated workbook checked for at startup
	DefaultBundledFile = "CalcolaRata_Fin.xlsx"

	// DefaultSheet is the workbook sheet holding the coefficient rows
	DefaultSheet = "Coefficienti"
)

// Server configuration defaults
const (
	// DefaultServerAddress is the default HTTP listen address
	DefaultServerAddress = ":8080"

	// DefaultMaxUploadSizeBytes is the default maximum upload size for rate tables (256 KB)
	DefaultMaxUploadSizeBytes int64 = 256 * 1024
)
