// =============================================================================
// COVID Scenes - Configuration Module
// =============================================================================
//
// This module loads the application configuration. Values are resolved in
// three layers, later layers winning:
//   1. Built-in defaults (applyMainConfigDefaults)
//   2. The YAML configuration file (config.yaml by default)
//   3. Environment variables prefixed with SCENES_ (e.g. SCENES_SOURCE,
//      SCENES_SERVER_ADDR, SCENES_MALFORMED_POLICY)
//
// A missing configuration file is not an error; defaults and environment
// variables are used instead. Every loaded configuration is validated.
//
// =============================================================================

package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/ginjaninja78/covid-scenes/internal/csvparser"
	"github.com/ginjaninja78/covid-scenes/internal/records"
	"github.com/ginjaninja78/covid-scenes/internal/scene"
	"github.com/ginjaninja78/covid-scenes/internal/transform"
)

// EnvPrefix is the prefix for environment variable overrides.
const EnvPrefix = "SCENES"

// DefaultSource is the dataset used when none is configured.
const DefaultSource = "https://raw.githubusercontent.com/nytimes/covid-19-data/master/us-states.csv"

// =============================================================================
// MAIN CONFIGURATION STRUCTURE
// =============================================================================

// MainConfig holds the global application configuration.
type MainConfig struct {
	// =========================================================================
	// DATA SOURCE
	// =========================================================================

	// Source is a local path or an http(s) URL of the input table.
	// Files ending in .xlsx are read as workbooks, everything else as
	// delimited text.
	Source string `yaml:"source" envconfig:"SOURCE"`

	// FetchTimeout bounds a remote fetch.
	// Default: 30s
	FetchTimeout time.Duration `yaml:"fetch_timeout" envconfig:"FETCH_TIMEOUT"`

	// CachePath is the SQLite file used to cache parsed datasets.
	// Empty disables the cache.
	CachePath string `yaml:"cache_path" envconfig:"CACHE_PATH"`

	// CSVSettings contains settings for parsing delimited input.
	CSVSettings CSVSettings `yaml:"csv_settings" envconfig:"CSV"`

	// =========================================================================
	// RECORD PARSING
	// =========================================================================

	// DateFormats are Go time layouts tried in order for the date column.
	// Default: ["2006-01-02", "1/2/2006"]
	DateFormats []string `yaml:"date_formats" envconfig:"DATE_FORMATS"`

	// MalformedPolicy decides what happens to rows that fail parsing.
	// Valid values: "zero-fill", "skip", "reject"
	// Default: "zero-fill"
	MalformedPolicy string `yaml:"malformed_policy" envconfig:"MALFORMED_POLICY"`

	// Transform renames columns and rewrites values before parsing, for
	// sources that do not use the state/date/cases/deaths layout.
	Transform transform.Rules `yaml:"transform" envconfig:"TRANSFORM"`

	// =========================================================================
	// SCENES
	// =========================================================================

	// Navigation is the scene index policy at the bounds.
	// Valid values: "saturate", "wrap"
	// Default: "saturate"
	Navigation string `yaml:"navigation" envconfig:"NAVIGATION"`

	// Chart contains renderer settings.
	Chart ChartConfig `yaml:"chart" envconfig:"CHART"`

	// =========================================================================
	// OUTPUT SETTINGS
	// =========================================================================

	// OutputDir is where rendered scenes, exports and summaries are written.
	// Default: "./output"
	OutputDir string `yaml:"output_dir" envconfig:"OUTPUT_DIR"`

	// OutputNameFormat defines rendered file names.
	// Placeholders:
	//   {uuid}      - A random UUID
	//   {timestamp} - Current timestamp (YYYYMMDD_HHMMSS)
	//   {scene}     - Scene kind (heatmap, timeseries, comparison)
	//   {index}     - Scene index
	//   {state}     - Selected state, or "all"
	// Default: "{index}_{scene}_{state}.svg"
	OutputNameFormat string `yaml:"output_name_format" envconfig:"OUTPUT_NAME_FORMAT"`

	// =========================================================================
	// LOGGING SETTINGS
	// =========================================================================

	// LogLevel controls the verbosity of logging.
	// Valid values: "debug", "info", "warn", "error"
	// Default: "info"
	LogLevel string `yaml:"log_level" envconfig:"LOG_LEVEL"`

	// =========================================================================
	// SERVER SETTINGS
	// =========================================================================

	// Server contains settings for the serve command.
	Server ServerConfig `yaml:"server" envconfig:"SERVER"`
}

// =============================================================================
// NESTED CONFIGURATION STRUCTURES
// =============================================================================

// CSVSettings contains settings for parsing delimited files.
type CSVSettings struct {
	// Delimiter is the field separator.
	// Common values: "," (comma), "|" (pipe), "\t" or "tab"
	// Default: ","
	Delimiter string `yaml:"delimiter" envconfig:"DELIMITER"`

	// Comment marks lines to ignore when it is the first character.
	// Empty disables comment handling.
	Comment string `yaml:"comment" envconfig:"COMMENT"`
}

// ParserSettings converts the settings for the delimited-text parser.
func (s CSVSettings) ParserSettings() csvparser.Settings {
	return csvparser.Settings{Delimiter: s.Delimiter, Comment: s.Comment}
}

// ChartConfig contains renderer settings.
type ChartConfig struct {
	Width       int    `yaml:"width" envconfig:"WIDTH"`
	Height      int    `yaml:"height" envconfig:"HEIGHT"`
	CasesColor  string `yaml:"cases_color" envconfig:"CASES_COLOR"`
	DeathsColor string `yaml:"deaths_color" envconfig:"DEATHS_COLOR"`
	HeatColor   string `yaml:"heat_color" envconfig:"HEAT_COLOR"`

	// Format is "svg" or "png".
	Format string `yaml:"format" envconfig:"FORMAT"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Addr            string        `yaml:"addr" envconfig:"ADDR"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT"`

	// RateLimitRPS limits navigation requests per second; 0 disables it.
	RateLimitRPS   float64 `yaml:"rate_limit_rps" envconfig:"RATE_LIMIT_RPS"`
	RateLimitBurst int     `yaml:"rate_limit_burst" envconfig:"RATE_LIMIT_BURST"`
}

// =============================================================================
// CONFIGURATION LOADING FUNCTIONS
// =============================================================================

// LoadMainConfig loads the configuration from a YAML file and the
// environment.
//
// PARAMETERS:
//   - configPath: The path to the main configuration file. A missing file
//     is tolerated.
//
// RETURNS:
//   - A pointer to the MainConfig struct.
//   - An error if the file cannot be parsed or the result is invalid.
func LoadMainConfig(configPath string) (*MainConfig, error) {
	var config MainConfig

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		switch {
		case errors.Is(err, os.ErrNotExist):
			// Defaults and environment only.
		case err != nil:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, &config); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	if err := envconfig.Process(EnvPrefix, &config); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	applyMainConfigDefaults(&config)

	if err := validateMainConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Default returns a configuration built from defaults only.
func Default() *MainConfig {
	var config MainConfig
	applyMainConfigDefaults(&config)
	return &config
}

// applyMainConfigDefaults sets default values for any unset configuration options.
func applyMainConfigDefaults(config *MainConfig) {
	if config.Source == "" {
		config.Source = DefaultSource
	}
	if config.FetchTimeout == 0 {
		config.FetchTimeout = 30 * time.Second
	}
	if config.CSVSettings.Delimiter == "" {
		config.CSVSettings.Delimiter = ","
	}
	if len(config.DateFormats) == 0 {
		config.DateFormats = []string{"2006-01-02", "1/2/2006"}
	}
	if config.MalformedPolicy == "" {
		config.MalformedPolicy = string(records.PolicyZeroFill)
	}
	if config.Navigation == "" {
		config.Navigation = string(scene.Saturate)
	}
	if config.OutputDir == "" {
		config.OutputDir = "./output"
	}
	if config.OutputNameFormat == "" {
		config.OutputNameFormat = "{index}_{scene}_{state}.svg"
	}
	if config.LogLevel == "" {
		config.LogLevel = "info"
	}

	// Chart defaults.
	if config.Chart.Width == 0 {
		config.Chart.Width = 800
	}
	if config.Chart.Height == 0 {
		config.Chart.Height = 500
	}
	if config.Chart.CasesColor == "" {
		config.Chart.CasesColor = "#1f77b4"
	}
	if config.Chart.DeathsColor == "" {
		config.Chart.DeathsColor = "#ff7f0e"
	}
	if config.Chart.HeatColor == "" {
		config.Chart.HeatColor = "#b2182b"
	}
	if config.Chart.Format == "" {
		config.Chart.Format = "svg"
	}

	// Server defaults.
	if config.Server.Addr == "" {
		config.Server.Addr = ":8080"
	}
	if config.Server.ReadTimeout == 0 {
		config.Server.ReadTimeout = 15 * time.Second
	}
	if config.Server.WriteTimeout == 0 {
		config.Server.WriteTimeout = 15 * time.Second
	}
	if config.Server.ShutdownTimeout == 0 {
		config.Server.ShutdownTimeout = 10 * time.Second
	}
	if config.Server.RateLimitBurst == 0 {
		config.Server.RateLimitBurst = 10
	}
}

// validateMainConfig validates the main configuration.
func validateMainConfig(config *MainConfig) error {
	if _, err := records.ParsePolicy(config.MalformedPolicy); err != nil {
		return err
	}
	if _, err := scene.ParseNavigation(config.Navigation); err != nil {
		return err
	}
	if _, err := transform.New(config.Transform); err != nil {
		return fmt.Errorf("invalid transform: %w", err)
	}

	switch config.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log_level %q", config.LogLevel)
	}

	switch config.Chart.Format {
	case "svg", "png":
	default:
		return fmt.Errorf("unknown chart format %q (want svg or png)", config.Chart.Format)
	}

	if config.Chart.Width <= 0 || config.Chart.Height <= 0 {
		return fmt.Errorf("chart dimensions must be positive, got %dx%d", config.Chart.Width, config.Chart.Height)
	}
	if config.FetchTimeout < 0 {
		return fmt.Errorf("fetch_timeout must not be negative")
	}
	if config.Server.RateLimitRPS < 0 {
		return fmt.Errorf("server.rate_limit_rps must not be negative")
	}

	return nil
}

// Policy returns the parsed malformed-row policy.
func (c *MainConfig) Policy() records.Policy {
	p, _ := records.ParsePolicy(c.MalformedPolicy)
	return p
}

// NavigationPolicy returns the parsed navigation policy.
func (c *MainConfig) NavigationPolicy() scene.Navigation {
	n, _ := scene.ParseNavigation(c.Navigation)
	return n
}

// ParseOptions returns the record parser options for this configuration.
func (c *MainConfig) ParseOptions() records.Options {
	return records.Options{
		DateFormats: c.DateFormats,
		Policy:      c.Policy(),
	}
}

// Transformer compiles the transform rules. It returns nil when no rules
// are configured.
func (c *MainConfig) Transformer() (*transform.Transformer, error) {
	if c.Transform.Empty() {
		return nil, nil
	}
	return transform.New(c.Transform)
}
