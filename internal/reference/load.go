package reference

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/ginjaninja78/gtd-declaration-engine/internal/config"
	"github.com/ginjaninja78/gtd-declaration-engine/internal/csvparser"
	"github.com/ginjaninja78/gtd-declaration-engine/internal/types"
	"github.com/ginjaninja78/gtd-declaration-engine/internal/xlsxparser"
)

// PreferencesFromConfig builds the preference table from configuration.
func PreferencesFromConfig(cfg *config.Config) *PreferenceTable {
	return NewPreferenceTable(cfg.Preferences.EAEU, cfg.Preferences.CIS)
}

// DefaultsFromConfig returns the degradation defaults from configuration.
func DefaultsFromConfig(cfg *config.Config) Defaults {
	return Defaults{
		DutyRate:      cfg.DefaultRates.Duty,
		VATRate:       cfg.DefaultRates.VAT,
		ExciseRate:    cfg.DefaultRates.Excise,
		FallbackRates: cfg.FallbackExchangeRates,
	}
}

// Open builds the gateway described by cfg.Reference, wrapped in Resilient.
// The returned closer releases the underlying store.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...ResilientOption) (*Resilient, io.Closer, error) {
	prefs := PreferencesFromConfig(cfg)

	var (
		inner  Gateway
		closer io.Closer = nopCloser{}
	)

	switch cfg.Reference.Driver {
	case "sqlite":
		store, err := OpenSQLite(ctx, cfg.Reference.DSN, prefs)
		if err != nil {
			return nil, nil, err
		}
		inner, closer = store, store
	default:
		mem, err := LoadMemory(cfg, prefs)
		if err != nil {
			return nil, nil, err
		}
		inner = mem
	}

	if logger != nil {
		logger.Debug("reference gateway ready", "driver", cfg.Reference.Driver)
	}

	opts = append([]ResilientOption{WithLogger(logger)}, opts...)
	return NewResilient(inner, DefaultsFromConfig(cfg), prefs, opts...), closer, nil
}

// LoadMemory builds a Memory gateway from the inline tariffs, the tariff
// workbook and the exchange-rate file named in cfg. Workbook rows override
// inline rows for the same code.
func LoadMemory(cfg *config.Config, prefs *PreferenceTable) (*Memory, error) {
	mem := NewMemory(prefs)

	for _, row := range cfg.Reference.Tariffs {
		mem.PutRates(types.RateQuote{
			HSCode:     row.HSCode,
			DutyRate:   row.Duty,
			VATRate:    row.VAT,
			ExciseRate: row.Excise,
		})
	}

	if path := cfg.Reference.TariffWorkbook; path != "" {
		table, err := xlsxparser.Parse(path)
		if err != nil {
			return nil, fmt.Errorf("load tariff workbook: %w", err)
		}
		for _, row := range table.Rows {
			mem.PutRates(row.Quote())
		}
	}

	if path := cfg.Reference.ExchangeRatesCSV; path != "" {
		rates, err := csvparser.ParseFile(path, csvparser.DefaultSettings())
		if err != nil {
			return nil, fmt.Errorf("load exchange rates: %w", err)
		}
		mem.PutExchangeRates(rates...)
	}

	return mem, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
