// Package config defines the data structures related to configuration and
// includes functions for loading and parsing the config.
package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"strings"

	"github.com/iwvelando/calcola-rata/pkg/constants"
	"github.com/spf13/viper"
)

//go:embed defaults.yaml
var defaultTables []byte

// Configuration holds all configuration for calcola-rata.
type Configuration struct {
	Logging  LoggingConfig `yaml:"logging,omitempty"`
	Output   OutputConfig  `yaml:"output,omitempty"`
	Tables   TablesConfig  `yaml:"tables,omitempty"`
	Defaults []LenderTable `yaml:"defaults,omitempty"`
}

// LoggingConfig holds logging configuration options
type LoggingConfig struct {
	Level      string `yaml:"level,omitempty"`      // debug, info, warn, error
	Format     string `yaml:"format,omitempty"`     // json, console
	OutputFile string `yaml:"outputFile,omitempty"` // optional file output
}

// OutputConfig holds output format configuration options
type OutputConfig struct {
	Format string `yaml:"format,omitempty"` // pretty, csv, json
}

// TablesConfig locates the consolidated workbook that replaces the default
// tables of every lender it contains.
type TablesConfig struct {
	BundledFile      string `yaml:"bundledFile,omitempty"`
	Sheet            string `yaml:"sheet,omitempty"`
	ValidateOverlaps bool   `yaml:"validateOverlaps"`
}

// LenderTable is the coefficient table of one lender as written in config.
type LenderTable struct {
	Name string           `yaml:"name"`
	Rows []CoefficientRow `yaml:"rows"`
}

// CoefficientRow is one banded coefficient.
type CoefficientRow struct {
	Durata       int     `yaml:"durata"`
	FasciaMin    float64 `yaml:"fasciaMin"`
	FasciaMax    float64 `yaml:"fasciaMax"`
	CoeffPercent float64 `yaml:"coeffPercent"`
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yml")
	v.SetEnvPrefix(constants.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("output.format", constants.OutputFormatPretty)
	v.SetDefault("tables.bundledFile", constants.DefaultBundledFile)
	v.SetDefault("tables.sheet", constants.DefaultSheet)
	v.SetDefault("tables.validateOverlaps", true)
	v.SetDefault("logging.level", "")
	v.SetDefault("logging.format", "")
	v.SetDefault("logging.outputFile", "")
	return v
}

// LoadConfiguration takes a file path as input and loads the YAML-formatted
// configuration there. An empty path yields the defaults, still subject to
// environment overrides.
func LoadConfiguration(configPath string) (*Configuration, error) {
	v := newViper()
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file, %s", err)
		}
	}
	return decode(v)
}

// LoadConfigurationFromReader loads YAML configuration from r.
func LoadConfigurationFromReader(r io.Reader) (*Configuration, error) {
	v := newViper()
	if err := v.ReadConfig(r); err != nil {
		return nil, fmt.Errorf("error reading config data, %s", err)
	}
	return decode(v)
}

func decode(v *viper.Viper) (*Configuration, error) {
	var configuration Configuration
	if err := v.Unmarshal(&configuration); err != nil {
		return nil, fmt.Errorf("unable to decode into struct, %s", err)
	}

	if len(configuration.Defaults) == 0 {
		defaults, err := DefaultTables()
		if err != nil {
			return nil, err
		}
		configuration.Defaults = defaults
	}
	return &configuration, nil
}

// DefaultTables returns the lender tables shipped with the binary.
func DefaultTables() ([]LenderTable, error) {
	v := viper.New()
	v.SetConfigType("yml")
	if err := v.ReadConfig(bytes.NewReader(defaultTables)); err != nil {
		return nil, fmt.Errorf("error reading default tables, %s", err)
	}

	var asset struct {
		Defaults []LenderTable
	}
	if err := v.Unmarshal(&asset); err != nil {
		return nil, fmt.Errorf("unable to decode default tables, %s", err)
	}
	return asset.Defaults, nil
}

// ValidateConfiguration performs general validation of the configuration and returns warnings
func (c *Configuration) ValidateConfiguration() []string {
	var warnings []string

	seen := make(map[string]struct{})
	for i, lender := range c.Defaults {
		name := strings.TrimSpace(lender.Name)
		if name == "" {
			warnings = append(warnings, fmt.Sprintf("Default table %d has no lender name", i+1))
			continue
		}
		if _, ok := seen[name]; ok {
			warnings = append(warnings, fmt.Sprintf("Lender '%s' is defined more than once; the last definition wins", name))
		}
		seen[name] = struct{}{}

		if len(lender.Rows) == 0 {
			warnings = append(warnings, fmt.Sprintf("Lender '%s' has no coefficient rows", name))
		}
		for j, row := range lender.Rows {
			if row.Durata <= 0 {
				warnings = append(warnings, fmt.Sprintf("Lender '%s' row %d has non-positive duration %d", name, j+1, row.Durata))
			}
			if row.CoeffPercent <= 0 {
				warnings = append(warnings, fmt.Sprintf("Lender '%s' row %d has non-positive coefficient %.3f", name, j+1, row.CoeffPercent))
			}
		}
	}

	return warnings
}
