// =============================================================================
// CFDI Stamp Reconciler - Configuration Module
// =============================================================================
//
// This module is responsible for loading and managing the application
// configuration. The reconciler is designed to run with no configuration file
// at all (every setting has a sensible default matching the production
// layout), but every file name, table name, and parsing knob can be overridden
// through config.yaml.
//
// CONFIGURATION FILE:
//   config.yaml in the working directory, or the path given via --config.
//
// ARCHITECTURE:
//   The configuration system is designed to be:
//   - Optional: a missing default config file falls back to defaults
//   - Explicit: defaults are applied in one place, then validated
//   - Flat: one struct, no per-company configuration files
//
// =============================================================================

package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// MAIN CONFIGURATION STRUCTURE
// =============================================================================

// Config holds the application configuration.
type Config struct {
	// =========================================================================
	// DIRECTORY AND FILE LAYOUT
	// =========================================================================

	// RootDir is the directory containing the company folders.
	// Each company folder holds an XML subfolder and, for the indexed
	// variant, a CSV or XLSX ledger.
	// Default: "."
	RootDir string `yaml:"root_dir"`

	// XMLSubdir is the name of the per-company subfolder holding the
	// CFDI documents.
	// Default: "XMLS"
	XMLSubdir string `yaml:"xml_subdir"`

	// IndexFile is the name of the per-company CSV ledger mapping database
	// identifiers to RFCs. When present, the company is reconciled by RFC.
	// Default: "information.csv"
	IndexFile string `yaml:"index_file"`

	// XLSXIndexFile is the XLSX variant of the ledger. It is consulted only
	// when IndexFile is absent; some operators export the ledger straight
	// from Excel instead of saving it as CSV.
	// Default: "information.xlsx"
	XLSXIndexFile string `yaml:"xlsx_index_file"`

	// QueriesFile is the name of the generated statement file written into
	// each company folder.
	// Default: "querys.sql"
	QueriesFile string `yaml:"queries_file"`

	// SearchFile is the name of the generated folio lookup file written for
	// companies reconciled by folio.
	// Default: "search.sql"
	SearchFile string `yaml:"search_file"`

	// =========================================================================
	// SQL GENERATION SETTINGS
	// =========================================================================

	// ConsoleCommand is the remote console invocation each UPDATE statement
	// is wrapped in. The statement itself is appended as one double-quoted
	// shell argument.
	// Default: "bin/console doctrine:query:sql"
	ConsoleCommand string `yaml:"console_command"`

	// AttemptsTable is the table receiving the stamp UPDATE statements.
	// Default: "invoice_invoice_attempts"
	AttemptsTable string `yaml:"attempts_table"`

	// InvoicesTable is the table queried by the generated folio lookup.
	// Default: "invoice_invoices"
	InvoicesTable string `yaml:"invoices_table"`

	// =========================================================================
	// INDEX PARSING SETTINGS
	// =========================================================================

	// Index contains settings for parsing the CSV ledger.
	Index IndexSettings `yaml:"index_settings"`

	// =========================================================================
	// LOGGING SETTINGS
	// =========================================================================

	// LogLevel controls the verbosity of logging.
	// Valid values: "debug", "info", "warn", "error"
	// Default: "info"
	LogLevel string `yaml:"log_level"`

	// LogFormat selects the logrus formatter.
	// Valid values: "text", "json"
	// Default: "text"
	LogFormat string `yaml:"log_format"`
}

// =============================================================================
// INDEX SETTINGS STRUCTURE
// =============================================================================

// IndexSettings contains settings for parsing the CSV ledger.
type IndexSettings struct {
	// Delimiter is the character used to separate fields in the CSV.
	// Common values: "," (comma), "|" (pipe), "\t" (tab)
	// Default: ","
	Delimiter string `yaml:"delimiter"`

	// Encoding is the character encoding of the ledger file.
	// Valid values: "UTF-8", "ISO-8859-1", "Windows-1252"
	// Default: "UTF-8"
	Encoding string `yaml:"encoding"`

	// HasHeader controls header-row handling.
	// Valid values:
	//   "auto" - detect a header row by inspecting the first record
	//   "yes"  - always skip the first row
	//   "no"   - treat every row as data
	// Default: "auto"
	HasHeader string `yaml:"has_header"`
}

// =============================================================================
// CONFIGURATION LOADING FUNCTIONS
// =============================================================================

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Load loads the configuration from a YAML file.
//
// PARAMETERS:
//   - configPath: The path to the configuration file.
//
// RETURNS:
//   - A pointer to the Config struct with defaults applied.
//   - An error if the file cannot be read or parsed.
func Load(configPath string) (*Config, error) {
	// Read the configuration file.
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse the YAML.
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Apply default values.
	applyDefaults(&cfg)

	// Validate the configuration.
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// LoadOrDefault loads the configuration from a YAML file, falling back to
// defaults when the file does not exist. Used for the implicit config.yaml
// lookup so the tool works out of the box in a bare company tree.
func LoadOrDefault(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return Default(), nil
	}
	return Load(configPath)
}

// applyDefaults sets default values for any unset configuration options.
func applyDefaults(cfg *Config) {
	if cfg.RootDir == "" {
		cfg.RootDir = "."
	}
	if cfg.XMLSubdir == "" {
		cfg.XMLSubdir = "XMLS"
	}
	if cfg.IndexFile == "" {
		cfg.IndexFile = "information.csv"
	}
	if cfg.XLSXIndexFile == "" {
		cfg.XLSXIndexFile = "information.xlsx"
	}
	if cfg.QueriesFile == "" {
		cfg.QueriesFile = "querys.sql"
	}
	if cfg.SearchFile == "" {
		cfg.SearchFile = "search.sql"
	}
	if cfg.ConsoleCommand == "" {
		cfg.ConsoleCommand = "bin/console doctrine:query:sql"
	}
	if cfg.AttemptsTable == "" {
		cfg.AttemptsTable = "invoice_invoice_attempts"
	}
	if cfg.InvoicesTable == "" {
		cfg.InvoicesTable = "invoice_invoices"
	}
	if cfg.Index.Delimiter == "" {
		cfg.Index.Delimiter = ","
	}
	if cfg.Index.Encoding == "" {
		cfg.Index.Encoding = "UTF-8"
	}
	if cfg.Index.HasHeader == "" {
		cfg.Index.HasHeader = "auto"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = "text"
	}
}

// validate validates the configuration.
func validate(cfg *Config) error {
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log_level %q", cfg.LogLevel)
	}

	switch cfg.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log_format %q", cfg.LogFormat)
	}

	switch cfg.Index.HasHeader {
	case "auto", "yes", "no":
	default:
		return fmt.Errorf("unknown has_header %q (want auto, yes or no)", cfg.Index.HasHeader)
	}

	if _, err := os.Stat(cfg.RootDir); err != nil {
		return fmt.Errorf("root_dir %q: %w", cfg.RootDir, err)
	}

	return nil
}
