package reference

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ginjaninja78/gtd-declaration-engine/internal/types"
)

// Lookup names used when reporting degradations.
const (
	LookupTariff       = "tariff"
	LookupExchangeRate = "exchange_rate"
	LookupPreference   = "preference"
)

// Observer is notified whenever a lookup is answered by something other than
// the primary source.
type Observer interface {
	ReferenceFallback(lookup string, source types.RateSource)
}

// Defaults are the values Resilient degrades to.
type Defaults struct {
	DutyRate   decimal.Decimal
	VATRate    decimal.Decimal
	ExciseRate decimal.Decimal

	// FallbackRates is the conservative exchange-rate table, base currency per unit.
	FallbackRates map[string]decimal.Decimal
}

// Resilient wraps a Gateway so that lookup failures degrade to documented
// defaults instead of failing the caller.
type Resilient struct {
	inner       Gateway
	defaults    Defaults
	preferences *PreferenceTable
	observer    Observer
	logger      *slog.Logger
}

// ResilientOption configures a Resilient gateway.
type ResilientOption func(*Resilient)

// WithObserver reports every degradation to o.
func WithObserver(o Observer) ResilientOption {
	return func(r *Resilient) { r.observer = o }
}

// WithLogger sets the logger used for degradation warnings.
func WithLogger(l *slog.Logger) ResilientOption {
	return func(r *Resilient) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewResilient wraps inner. prefs answers preference lookups when inner fails.
func NewResilient(inner Gateway, defaults Defaults, prefs *PreferenceTable, opts ...ResilientOption) *Resilient {
	r := &Resilient{
		inner:       inner,
		defaults:    defaults,
		preferences: prefs,
		logger:      slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// GetRate returns the tariff for hsCode, or the default quote when the code
// is unknown or the source is unavailable. It never fails.
func (r *Resilient) GetRate(ctx context.Context, hsCode string) (types.RateQuote, error) {
	q, err := r.inner.GetRate(ctx, hsCode)
	if err == nil {
		if q.Source == types.SourceHeading {
			r.report(LookupTariff, types.SourceHeading)
		}
		return q, nil
	}

	r.logger.WarnContext(ctx, "tariff lookup failed, using default rates",
		"hs_code", hsCode,
		"error", err,
	)
	r.report(LookupTariff, types.SourceDefault)
	return types.RateQuote{
		HSCode:     hsCode,
		DutyRate:   r.defaults.DutyRate,
		VATRate:    r.defaults.VATRate,
		ExciseRate: r.defaults.ExciseRate,
		Source:     types.SourceDefault,
	}, nil
}

// GetExchangeRate returns the source rate, degrading to the fallback table.
// When neither knows the currency the error wraps ErrNotFound.
func (r *Resilient) GetExchangeRate(ctx context.Context, currency string, date time.Time) (types.ExchangeRate, error) {
	rate, err := r.inner.GetExchangeRate(ctx, currency, date)
	if err == nil {
		if rate.Source == types.SourceLatest && !date.IsZero() {
			r.logger.WarnContext(ctx, "no exchange rate for date, using latest known rate",
				"currency", currency,
				"requested", date.Format(time.DateOnly),
				"used", rate.Date.Format(time.DateOnly),
			)
			r.report(LookupExchangeRate, types.SourceLatest)
		}
		return rate, nil
	}

	code := normalizeCode(currency)
	if fallback, ok := r.defaults.FallbackRates[code]; ok {
		r.logger.WarnContext(ctx, "exchange rate unavailable, using fallback table",
			"currency", code,
			"rate", fallback.String(),
			"error", err,
		)
		r.report(LookupExchangeRate, types.SourceFallback)
		return types.ExchangeRate{
			Currency: code,
			Rate:     fallback,
			Date:     date,
			Source:   types.SourceFallback,
		}, nil
	}

	if !errors.Is(err, ErrNotFound) {
		err = fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return types.ExchangeRate{}, err
}

// GetPreferenceGroup returns the source answer, or the static table's.
func (r *Resilient) GetPreferenceGroup(ctx context.Context, country string) (types.PreferenceGroup, error) {
	g, err := r.inner.GetPreferenceGroup(ctx, country)
	if err == nil {
		return g, nil
	}
	r.logger.WarnContext(ctx, "preference lookup failed, using static table",
		"country", country,
		"error", err,
	)
	r.report(LookupPreference, types.SourceDefault)
	return r.preferences.Group(country), nil
}

func (r *Resilient) report(lookup string, source types.RateSource) {
	if r.observer != nil {
		r.observer.ReferenceFallback(lookup, source)
	}
}
