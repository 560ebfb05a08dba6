// =============================================================================
// GTD Declaration Engine - Configuration Module
// =============================================================================
//
// This module is responsible for loading the engine configuration. A single
// YAML file carries:
//   1. Runtime settings (directories, logging, concurrency, HTTP address)
//   2. Regulatory constants (fee policy, default tariff rates)
//   3. Static reference tables (preference groups, fallback exchange rates)
//   4. Declaration-type defaults used by the auto-corrector
//   5. The reference data source (in-memory tables or SQLite store)
//
// Every call to Default returns a fresh value, so tests can substitute their
// own tables without touching process-wide state.
//
// =============================================================================

package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/ginjaninja78/gtd-declaration-engine/internal/types"
)

// ErrInvalidConfig is returned when the configuration fails validation.
var ErrInvalidConfig = errors.New("invalid configuration")

// =============================================================================
// MAIN CONFIGURATION STRUCTURE
// =============================================================================

// Config holds the engine configuration.
type Config struct {
	// BaseCurrency is the accounting currency all payments are computed in.
	// Default: "UZS"
	BaseCurrency string `yaml:"base_currency"`

	// =========================================================================
	// LOGGING SETTINGS
	// =========================================================================

	// LogLevel controls the verbosity of logging.
	// Valid values: "debug", "info", "warn", "error"
	LogLevel string `yaml:"log_level"`

	// LogFormat selects the slog handler: "text" or "json".
	LogFormat string `yaml:"log_format"`

	// =========================================================================
	// DIRECTORY AND OUTPUT SETTINGS
	// =========================================================================

	// InputDir is scanned by the process command for form JSON files.
	InputDir string `yaml:"input_dir"`

	// OutputDir receives XML exports and reports.
	OutputDir string `yaml:"output_dir"`

	// ArchiveDir receives processed input files.
	ArchiveDir string `yaml:"archive_dir"`

	// FileNameFormat defines export file names.
	// Placeholders: {uuid}, {timestamp}, {id}, {type}
	FileNameFormat string `yaml:"file_name_format"`

	// MaxConcurrency bounds per-item calculation and batch parallelism.
	MaxConcurrency int `yaml:"max_concurrency"`

	// =========================================================================
	// REGULATORY SETTINGS
	// =========================================================================

	Fee          FeeConfig                                  `yaml:"fee"`
	DefaultRates RatesConfig                                `yaml:"default_rates"`
	Preferences  PreferencesConfig                          `yaml:"preferences"`
	Defaults     map[types.DeclarationType]DeclarationDefaults `yaml:"declaration_defaults"`

	// FallbackExchangeRates is the conservative table used when no rate is
	// known for a currency at all. Rates are in base currency per unit.
	FallbackExchangeRates map[string]decimal.Decimal `yaml:"fallback_exchange_rates"`

	Reference ReferenceConfig `yaml:"reference"`
	HTTP      HTTPConfig      `yaml:"http"`
}

// FeeConfig is the statutory customs fee policy.
type FeeConfig struct {
	// Rate is the fraction of the customs value, 0.002 = 0.2%.
	Rate decimal.Decimal `yaml:"rate"`
	Min  decimal.Decimal `yaml:"min"`
	Max  decimal.Decimal `yaml:"max"`
}

// RatesConfig holds percentages used when an HS code is unknown.
type RatesConfig struct {
	Duty   decimal.Decimal `yaml:"duty"`
	VAT    decimal.Decimal `yaml:"vat"`
	Excise decimal.Decimal `yaml:"excise"`
}

// PreferencesConfig lists preference-group membership by ISO country code.
type PreferencesConfig struct {
	EAEU []string `yaml:"eaeu"`
	CIS  []string `yaml:"cis"`
}

// DeclarationDefaults are the values the corrector fills in when absent.
type DeclarationDefaults struct {
	DestinationCountry string `yaml:"destination_country"`
	DispatchCountry    string `yaml:"dispatch_country"`
	TransportMode      string `yaml:"transport_mode"`
	ProcedureCode      string `yaml:"procedure_code"`
	IncotermsPlace     string `yaml:"incoterms_place"`
}

// ReferenceConfig selects and seeds the reference data gateway.
type ReferenceConfig struct {
	// Driver is "memory" or "sqlite".
	Driver string `yaml:"driver"`

	// DSN is the SQLite database path (sqlite driver).
	DSN string `yaml:"dsn"`

	// TariffWorkbook is an optional XLSX tariff table loaded into memory.
	TariffWorkbook string `yaml:"tariff_workbook"`

	// ExchangeRatesCSV is an optional currency,date,rate file loaded into memory.
	ExchangeRatesCSV string `yaml:"exchange_rates_csv"`

	// Tariffs are inline rate rows.
	Tariffs []TariffRow `yaml:"tariffs"`
}

// TariffRow is one inline tariff entry.
type TariffRow struct {
	HSCode string          `yaml:"hs_code"`
	Duty   decimal.Decimal `yaml:"duty"`
	VAT    decimal.Decimal `yaml:"vat"`
	Excise decimal.Decimal `yaml:"excise"`
}

// HTTPConfig configures the serve command.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// =============================================================================
// DEFAULTS
// =============================================================================

// Default returns the built-in configuration.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// applyDefaults sets default values for any unset configuration options.
func applyDefaults(cfg *Config) {
	if cfg.BaseCurrency == "" {
		cfg.BaseCurrency = "UZS"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = "text"
	}
	if cfg.InputDir == "" {
		cfg.InputDir = "./input"
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = "./output"
	}
	if cfg.ArchiveDir == "" {
		cfg.ArchiveDir = "./archive"
	}
	if cfg.FileNameFormat == "" {
		cfg.FileNameFormat = "{type}_{id}_{timestamp}.xml"
	}
	if cfg.MaxConcurrency == 0 {
		cfg.MaxConcurrency = 4
	}

	if cfg.Fee.Rate.IsZero() {
		cfg.Fee.Rate = decimal.RequireFromString("0.002")
	}
	if cfg.Fee.Min.IsZero() {
		cfg.Fee.Min = decimal.NewFromInt(50000)
	}
	if cfg.Fee.Max.IsZero() {
		cfg.Fee.Max = decimal.NewFromInt(1000000)
	}

	// Duty and VAT default only when the whole block is absent; zero is a
	// legitimate configured rate.
	if cfg.DefaultRates.Duty.IsZero() && cfg.DefaultRates.VAT.IsZero() && cfg.DefaultRates.Excise.IsZero() {
		cfg.DefaultRates = RatesConfig{
			Duty:   decimal.NewFromInt(15),
			VAT:    decimal.NewFromInt(12),
			Excise: decimal.Zero,
		}
	}

	if cfg.Preferences.EAEU == nil {
		cfg.Preferences.EAEU = []string{"AM", "BY", "KG", "KZ", "RU"}
	}
	if cfg.Preferences.CIS == nil {
		cfg.Preferences.CIS = []string{"AZ", "MD", "TJ", "TM", "UA", "UZ"}
	}

	if cfg.Defaults == nil {
		cfg.Defaults = map[types.DeclarationType]DeclarationDefaults{}
	}
	builtin := map[types.DeclarationType]DeclarationDefaults{
		types.TypeImport: {
			DestinationCountry: "UZ",
			TransportMode:      "30",
			ProcedureCode:      "40",
			IncotermsPlace:     "TASHKENT",
		},
		types.TypeExport: {
			DispatchCountry: "UZ",
			TransportMode:   "30",
			ProcedureCode:   "10",
			IncotermsPlace:  "TASHKENT",
		},
		types.TypeTransit: {
			TransportMode: "30",
			ProcedureCode: "80",
		},
	}
	for t, d := range builtin {
		if _, ok := cfg.Defaults[t]; !ok {
			cfg.Defaults[t] = d
		}
	}

	if cfg.FallbackExchangeRates == nil {
		cfg.FallbackExchangeRates = map[string]decimal.Decimal{
			"USD": decimal.NewFromInt(12700),
			"EUR": decimal.NewFromInt(13900),
			"GBP": decimal.NewFromInt(16200),
			"RUB": decimal.NewFromInt(160),
			"CNY": decimal.NewFromInt(1780),
			"KZT": decimal.NewFromInt(26),
			"TRY": decimal.NewFromInt(390),
		}
	}

	if cfg.Reference.Driver == "" {
		cfg.Reference.Driver = "memory"
	}
	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = ":8080"
	}
}

// =============================================================================
// CONFIGURATION LOADING FUNCTIONS
// =============================================================================

// LoadConfig loads the configuration from a YAML file.
//
// A missing file yields the built-in defaults. A file that cannot be read,
// parsed or validated is an error.
func LoadConfig(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

// Parse builds a configuration from YAML bytes.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

var (
	countryCodePattern  = regexp.MustCompile(`^[A-Z]{2}$`)
	currencyCodePattern = regexp.MustCompile(`^[A-Z]{3}$`)
)

// Validate checks the configuration invariants.
func (c *Config) Validate() error {
	var problems []string

	if !currencyCodePattern.MatchString(c.BaseCurrency) {
		problems = append(problems, fmt.Sprintf("base_currency %q is not a 3-letter code", c.BaseCurrency))
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		problems = append(problems, fmt.Sprintf("log_level %q is not one of debug, info, warn, error", c.LogLevel))
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		problems = append(problems, fmt.Sprintf("log_format %q is not text or json", c.LogFormat))
	}
	if c.MaxConcurrency < 1 {
		problems = append(problems, "max_concurrency must be at least 1")
	}
	if !c.Fee.Rate.IsPositive() {
		problems = append(problems, "fee.rate must be positive")
	}
	if c.Fee.Min.IsNegative() || c.Fee.Min.GreaterThan(c.Fee.Max) {
		problems = append(problems, "fee.min must be non-negative and not above fee.max")
	}
	if c.DefaultRates.Duty.IsNegative() || c.DefaultRates.VAT.IsNegative() || c.DefaultRates.Excise.IsNegative() {
		problems = append(problems, "default_rates must be non-negative")
	}

	eaeu := make(map[string]bool, len(c.Preferences.EAEU))
	for _, code := range c.Preferences.EAEU {
		if !countryCodePattern.MatchString(code) {
			problems = append(problems, fmt.Sprintf("preferences.eaeu: %q is not a 2-letter code", code))
		}
		eaeu[code] = true
	}
	for _, code := range c.Preferences.CIS {
		if !countryCodePattern.MatchString(code) {
			problems = append(problems, fmt.Sprintf("preferences.cis: %q is not a 2-letter code", code))
		}
		if eaeu[code] {
			problems = append(problems, fmt.Sprintf("preferences: %s is listed in both eaeu and cis", code))
		}
	}

	currencies := make([]string, 0, len(c.FallbackExchangeRates))
	for currency := range c.FallbackExchangeRates {
		currencies = append(currencies, currency)
	}
	sort.Strings(currencies)
	for _, currency := range currencies {
		rate := c.FallbackExchangeRates[currency]
		if !currencyCodePattern.MatchString(currency) {
			problems = append(problems, fmt.Sprintf("fallback_exchange_rates: %q is not a 3-letter code", currency))
		}
		if !rate.IsPositive() {
			problems = append(problems, fmt.Sprintf("fallback_exchange_rates: %s rate must be positive", currency))
		}
	}

	declTypes := make([]types.DeclarationType, 0, len(c.Defaults))
	for t := range c.Defaults {
		declTypes = append(declTypes, t)
	}
	sort.Slice(declTypes, func(i, j int) bool { return declTypes[i] < declTypes[j] })
	for _, t := range declTypes {
		if !t.Valid() {
			problems = append(problems, fmt.Sprintf("declaration_defaults: unknown declaration type %q", t))
		}
		d := c.Defaults[t]
		for _, country := range []struct{ field, code string }{
			{"dispatch_country", d.DispatchCountry},
			{"destination_country", d.DestinationCountry},
		} {
			if country.code != "" && !countryCodePattern.MatchString(country.code) {
				problems = append(problems, fmt.Sprintf("declaration_defaults.%s.%s: %q is not an uppercase 2-letter code",
					t, country.field, country.code))
			}
		}
	}

	switch c.Reference.Driver {
	case "memory":
	case "sqlite":
		if c.Reference.DSN == "" {
			problems = append(problems, "reference.dsn is required for the sqlite driver")
		}
	default:
		problems = append(problems, fmt.Sprintf("reference.driver %q is not supported", c.Reference.Driver))
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// DefaultsFor returns the corrector defaults for a declaration type.
func (c *Config) DefaultsFor(t types.DeclarationType) DeclarationDefaults {
	return c.Defaults[t]
}
