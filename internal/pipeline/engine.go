// =============================================================================
// GTD Declaration Engine - Pipeline Module
// =============================================================================
//
// This module orchestrates the engine for a single declaration. It is the
// only place where validation, correction, reference lookups and payment
// calculation meet.
//
// PROCESSING PIPELINE:
//   1. Validate and correct the input record (independently, in parallel)
//   2. Resolve the exchange rate of the declaration currency
//   3. Calculate item payments (concurrently, results kept in item order)
//   4. Recompute the declaration aggregates
//   5. Build the validation report
//
// CONCURRENCY:
//   An Engine holds no per-call state and can process unrelated declarations
//   concurrently. Reference lookups are the only blocking calls.
//
// =============================================================================

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/ginjaninja78/gtd-declaration-engine/internal/adapter"
	"github.com/ginjaninja78/gtd-declaration-engine/internal/config"
	"github.com/ginjaninja78/gtd-declaration-engine/internal/correction"
	"github.com/ginjaninja78/gtd-declaration-engine/internal/logging"
	"github.com/ginjaninja78/gtd-declaration-engine/internal/metrics"
	"github.com/ginjaninja78/gtd-declaration-engine/internal/money"
	"github.com/ginjaninja78/gtd-declaration-engine/internal/reference"
	"github.com/ginjaninja78/gtd-declaration-engine/internal/tariff"
	"github.com/ginjaninja78/gtd-declaration-engine/internal/types"
	"github.com/ginjaninja78/gtd-declaration-engine/internal/validation"
)

// ErrMissingGateway is returned by New when no reference gateway is given.
var ErrMissingGateway = errors.New("reference gateway is required")

// =============================================================================
// RESULT STRUCTURE
// =============================================================================

// Report is the validation report surfaced to callers.
type Report struct {
	// IsValid is true when there are no error findings.
	IsValid bool `json:"is_valid"`

	Errors      []types.Finding         `json:"errors"`
	Warnings    []types.Finding         `json:"warnings"`
	Corrections []types.CorrectionEntry `json:"corrections"`
}

// NewReport splits findings by severity. Slices are never nil.
func NewReport(findings []types.Finding, corrections []types.CorrectionEntry) Report {
	summary := validation.Summarize(findings)
	if corrections == nil {
		corrections = []types.CorrectionEntry{}
	}
	return Report{
		IsValid:     summary.IsValid,
		Errors:      summary.Errors,
		Warnings:    summary.Warnings,
		Corrections: corrections,
	}
}

// Result represents the outcome of processing a single declaration.
type Result struct {
	// Declaration is the corrected record with payments and aggregates.
	Declaration types.Declaration

	Report Report

	// Payments are the declaration totals in the base currency. They are
	// zero when no exchange rate could be resolved.
	Payments tariff.DeclarationPayment

	// ExchangeRate is the rate used for conversion, nil when unavailable.
	ExchangeRate *types.ExchangeRate

	Stats Stats
}

// Document is the serialisable view of a Result, with the declaration in
// its form representation.
type Document struct {
	Declaration  adapter.Form              `json:"declaration"`
	Report       Report                    `json:"report"`
	Payments     tariff.DeclarationPayment `json:"payments"`
	ExchangeRate *types.ExchangeRate       `json:"exchange_rate,omitempty"`
	Stats        Stats                     `json:"stats"`
}

// Document returns the serialisable view of r.
func (r Result) Document() Document {
	return Document{
		Declaration:  adapter.CanonicalToForm(r.Declaration),
		Report:       r.Report,
		Payments:     r.Payments,
		ExchangeRate: r.ExchangeRate,
		Stats:        r.Stats,
	}
}

// Findings returns every finding of the report, errors first.
func (r Result) Findings() []types.Finding {
	out := make([]types.Finding, 0, len(r.Report.Errors)+len(r.Report.Warnings))
	out = append(out, r.Report.Errors...)
	return append(out, r.Report.Warnings...)
}

// Stats contains statistics about the processing.
type Stats struct {
	Items int `json:"items"`

	// Calculated items received payments; Aborted items failed inside the
	// calculator; Skipped items had nothing to calculate from.
	Calculated int `json:"calculated"`
	Aborted    int `json:"aborted"`
	Skipped    int `json:"skipped"`

	Corrections int `json:"corrections"`

	Duration time.Duration `json:"duration"`
}

// =============================================================================
// ENGINE STRUCTURE
// =============================================================================

// Engine runs the declaration pipeline.
type Engine struct {
	validator    *validation.Validator
	corrector    *correction.Corrector
	gateway      reference.Gateway
	policy       tariff.Policy
	defaultQuote types.RateQuote
	baseCurrency string
	concurrency  int
	metrics      *metrics.Metrics
	logger       *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithMetrics records pipeline metrics in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithLogger sets the pipeline logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = logging.OrDiscard(l) }
}

// WithConcurrency bounds the number of items calculated at once.
func WithConcurrency(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

// WithValidator replaces the default validator.
func WithValidator(v *validation.Validator) Option {
	return func(e *Engine) {
		if v != nil {
			e.validator = v
		}
	}
}

// WithCorrector replaces the corrector built from configuration.
func WithCorrector(c *correction.Corrector) Option {
	return func(e *Engine) {
		if c != nil {
			e.corrector = c
		}
	}
}

// New creates an Engine.
//
// PARAMETERS:
//   - cfg: The engine configuration (fee policy, defaults, base currency).
//   - gateway: The reference data source. Wrap it in reference.Resilient to
//     degrade lookup failures to defaults.
//   - opts: Optional overrides.
//
// RETURNS:
//   - The engine, or an error when the configuration cannot produce payments.
func New(cfg *config.Config, gateway reference.Gateway, opts ...Option) (*Engine, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: configuration is required", config.ErrInvalidConfig)
	}
	if gateway == nil {
		return nil, ErrMissingGateway
	}

	policy := tariff.PolicyFromConfig(cfg)
	if err := policy.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{
		validator: validation.NewValidator(),
		corrector: correction.NewFromConfig(cfg),
		gateway:   gateway,
		policy:    policy,
		defaultQuote: types.RateQuote{
			DutyRate:   cfg.DefaultRates.Duty,
			VATRate:    cfg.DefaultRates.VAT,
			ExciseRate: cfg.DefaultRates.Excise,
			Source:     types.SourceDefault,
		},
		baseCurrency: cfg.BaseCurrency,
		concurrency:  cfg.MaxConcurrency,
		logger:       logging.Discard(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.concurrency < 1 {
		e.concurrency = 1
	}
	return e, nil
}

// =============================================================================
// MAIN PROCESSING FUNCTIONS
// =============================================================================

// ProcessForm maps a form record onto the canonical model and processes it.
// Values that cannot be parsed become error findings and are treated as absent.
func (e *Engine) ProcessForm(ctx context.Context, form adapter.Form) (Result, error) {
	decl, err := adapter.FormToCanonical(form)

	var parseFindings []types.Finding
	if err != nil {
		var perr *adapter.ParseError
		if !errors.As(err, &perr) {
			return Result{}, err
		}
		for _, fe := range perr.Errors {
			parseFindings = append(parseFindings, types.Finding{
				Path:     fe.Path,
				Message:  fmt.Sprintf("value %q cannot be read: %s", fe.Value, fe.Reason),
				Severity: types.SeverityError,
				Kind:     types.KindFieldFormat,
			})
		}
	}

	return e.process(ctx, decl, parseFindings)
}

// Process validates, corrects and calculates a declaration. Data problems are
// reported as findings; the error is non-nil only when ctx ends first.
func (e *Engine) Process(ctx context.Context, decl types.Declaration) (Result, error) {
	return e.process(ctx, decl, nil)
}

func (e *Engine) process(ctx context.Context, decl types.Declaration, findings []types.Finding) (Result, error) {
	startTime := time.Now()
	result := Result{Stats: Stats{Items: len(decl.Items)}}

	// =========================================================================
	// STEP 1: VALIDATE AND CORRECT
	// =========================================================================
	// Both stages read the same input; the corrector works on its own copy.

	var (
		validationFindings []types.Finding
		corrected          types.Declaration
		corrections        []types.CorrectionEntry
		stages             errgroup.Group
	)
	stages.Go(func() error {
		validationFindings = e.validator.Validate(decl)
		return nil
	})
	stages.Go(func() error {
		corrected, corrections = e.corrector.Correct(decl)
		return nil
	})
	_ = stages.Wait()

	findings = append(findings, validationFindings...)
	result.Stats.Corrections = len(corrections)
	e.logger.DebugContext(ctx, "validated and corrected declaration",
		"id", decl.ID,
		"findings", len(validationFindings),
		"corrections", len(corrections),
	)

	// =========================================================================
	// STEP 2: RESOLVE EXCHANGE RATE
	// =========================================================================

	rate, rateFinding := e.resolveExchangeRate(ctx, &corrected)
	if rateFinding != nil {
		findings = append(findings, *rateFinding)
	}
	if rate != nil {
		result.ExchangeRate = rate
		if !corrected.Financial.ExchangeRate.Valid {
			corrected.Financial.ExchangeRate = types.Some(rate.Rate)
		}
	}

	// =========================================================================
	// STEP 3: CALCULATE ITEM PAYMENTS
	// =========================================================================

	outcomes := make([]itemOutcome, len(corrected.Items))
	if rate == nil {
		for i := range outcomes {
			outcomes[i] = itemOutcome{status: metrics.OutcomeSkipped}
		}
	} else {
		var err error
		outcomes, err = e.calculateItems(ctx, corrected, rate.Rate)
		if err != nil {
			return Result{}, err
		}
	}

	var payments []types.ItemPayment
	for i, o := range outcomes {
		corrected.Items[i].Payment = o.payment
		findings = append(findings, o.findings...)
		e.metrics.IncrementItemCalculation(o.status)

		switch o.status {
		case metrics.OutcomeCalculated:
			result.Stats.Calculated++
			payments = append(payments, o.payment)
		case metrics.OutcomeAborted:
			result.Stats.Aborted++
		default:
			result.Stats.Skipped++
		}
	}

	// =========================================================================
	// STEP 4: AGGREGATES
	// =========================================================================

	aggregateQuantities(&corrected)
	if rate != nil {
		result.Payments = tariff.CalculateTotals(payments)
		result.Payments.Apply(&corrected.Totals)
	} else {
		clearPaymentTotals(&corrected.Totals)
	}

	// =========================================================================
	// COMPLETE
	// =========================================================================

	result.Declaration = corrected
	result.Report = NewReport(findings, corrections)
	result.Stats.Duration = time.Since(startTime)

	e.metrics.ObserveFindings(findings)
	e.metrics.ObserveCorrections(corrections)
	e.metrics.ObservePipelineDuration(result.Stats.Duration)

	e.logger.InfoContext(ctx, "processed declaration",
		"id", corrected.ID,
		"valid", result.Report.IsValid,
		"errors", len(result.Report.Errors),
		"warnings", len(result.Report.Warnings),
		"items", result.Stats.Items,
		"calculated", result.Stats.Calculated,
		"duration", result.Stats.Duration,
	)

	return result, nil
}

// =============================================================================
// EXCHANGE RATE
// =============================================================================

// resolveExchangeRate picks the rate converting the declaration currency into
// the base currency. A declared positive rate wins; the base currency (or no
// currency at all) converts at 1; anything else is looked up for the
// declaration date, or the latest rate when the date is unusable.
func (e *Engine) resolveExchangeRate(ctx context.Context, decl *types.Declaration) (*types.ExchangeRate, *types.Finding) {
	currency := decl.Financial.Currency
	date, err := money.ParseDate(decl.Date)
	if err != nil {
		date = time.Time{}
	}

	if declared := decl.Financial.ExchangeRate; declared.Valid && declared.Decimal.IsPositive() {
		return &types.ExchangeRate{Currency: currency, Rate: declared.Decimal, Date: date, Source: types.SourceDeclared}, nil
	}
	if currency == "" || currency == e.baseCurrency {
		return &types.ExchangeRate{Currency: e.baseCurrency, Rate: decimal.NewFromInt(1), Date: date, Source: types.SourceBase}, nil
	}

	rate, err := e.gateway.GetExchangeRate(ctx, currency, date)
	if err != nil {
		e.logger.ErrorContext(ctx, "no exchange rate, payments not calculated",
			"currency", currency,
			"error", err,
		)
		return nil, &types.Finding{
			Path:     "financial.exchange_rate",
			Message:  fmt.Sprintf("no exchange rate available for %s; payments were not calculated", currency),
			Severity: types.SeverityError,
			Kind:     types.KindReferenceDataUnavailable,
		}
	}

	if rate.Source == types.SourceFallback {
		return &rate, &types.Finding{
			Path:     "financial.exchange_rate",
			Message:  fmt.Sprintf("no published exchange rate for %s; conservative fallback rate %s applied", currency, rate.Rate),
			Severity: types.SeverityWarning,
			Kind:     types.KindReferenceDataUnavailable,
		}
	}
	return &rate, nil
}

// =============================================================================
// ITEM CALCULATION
// =============================================================================

// itemOutcome is the calculation result of one item.
type itemOutcome struct {
	payment  types.ItemPayment
	status   string
	findings []types.Finding
}

// calculateItems runs the calculator over every item with bounded
// parallelism. Outcomes are indexed by item position.
func (e *Engine) calculateItems(ctx context.Context, decl types.Declaration, rate decimal.Decimal) ([]itemOutcome, error) {
	outcomes := make([]itemOutcome, len(decl.Items))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)

	calc, err := tariff.NewCalculator(e.policy, e.preferenceResolver(gctx))
	if err != nil {
		return nil, err
	}

	for i, item := range decl.Items {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			outcomes[i] = e.calculateItem(gctx, calc, i, item, decl.Logistics.OriginCountry, rate)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return outcomes, nil
}

// calculateItem converts the item value into the base currency, looks up its
// tariff and computes its payments.
func (e *Engine) calculateItem(ctx context.Context, calc *tariff.Calculator, i int, item types.Item, declOrigin string, rate decimal.Decimal) itemOutcome {
	path := fmt.Sprintf("items[%d]", i)
	var out itemOutcome

	value := item.CustomsValue
	if !value.Valid {
		if !item.InvoiceValue.Valid {
			out.status = metrics.OutcomeSkipped
			out.findings = append(out.findings, types.Finding{
				Path:     path + ".customs_value",
				Message:  "customs value and invoice value are both missing; payments were not calculated",
				Severity: types.SeverityError,
				Kind:     types.KindFieldFormat,
			})
			return out
		}
		e.logger.DebugContext(ctx, "customs value missing, using invoice value", "item", path)
		value = item.InvoiceValue
	}

	converted := item
	converted.CustomsValue = types.Some(money.Round2(value.Decimal.Mul(rate)))

	quote, err := e.gateway.GetRate(ctx, item.HSCode)
	if err != nil {
		e.logger.WarnContext(ctx, "tariff lookup failed, using default rates",
			"item", path,
			"hs_code", item.HSCode,
			"error", err,
		)
		quote = e.defaultQuote
		quote.HSCode = item.HSCode
	}
	if quote.Source == types.SourceDefault {
		out.findings = append(out.findings, types.Finding{
			Path: path + ".hs_code",
			Message: fmt.Sprintf("no tariff for HS code %q; default rates applied (duty %s%%, VAT %s%%, excise %s%%)",
				item.HSCode, quote.DutyRate, quote.VATRate, quote.ExciseRate),
			Severity: types.SeverityWarning,
			Kind:     types.KindReferenceDataUnavailable,
		})
	}

	origin := item.OriginCountry
	if origin == "" {
		origin = declOrigin
	}

	payment, err := calc.CalculateItem(converted, origin, quote)
	if err != nil {
		e.logger.ErrorContext(ctx, "item calculation aborted", "item", path, "error", err)
		out.status = metrics.OutcomeAborted
		out.findings = append(out.findings, calculationFinding(path, err))
		return out
	}

	out.status = metrics.OutcomeCalculated
	out.payment = payment
	return out
}

// calculationFinding classifies a calculator error.
func calculationFinding(path string, err error) types.Finding {
	f := types.Finding{
		Path:     path,
		Message:  "payment calculation aborted: " + err.Error(),
		Severity: types.SeverityError,
		Kind:     types.KindCalculationOverflow,
	}
	if !errors.Is(err, tariff.ErrInvalidInput) {
		return f
	}

	var calcErr *tariff.CalculationError
	if errors.As(err, &calcErr) && calcErr.Step == "customs value" {
		f.Path = path + ".customs_value"
		f.Kind = types.KindFieldFormat
		return f
	}
	f.Path = path + ".hs_code"
	f.Kind = types.KindReferenceDataUnavailable
	return f
}

// preferenceResolver answers preference groups through the gateway. A failed
// lookup applies the full rate.
func (e *Engine) preferenceResolver(ctx context.Context) tariff.GroupFunc {
	return func(country string) types.PreferenceGroup {
		if country == "" {
			return types.GroupMFN
		}
		group, err := e.gateway.GetPreferenceGroup(ctx, country)
		if err != nil {
			e.logger.WarnContext(ctx, "preference lookup failed, applying full duty rate",
				"country", country,
				"error", err,
			)
			return types.GroupMFN
		}
		return group
	}
}

// =============================================================================
// AGGREGATES
// =============================================================================

// aggregateQuantities sets the weight and package totals to the sums of the
// item values. A total is left as declared when no item carries the value.
func aggregateQuantities(decl *types.Declaration) {
	if sum, ok := sumItems(decl.Items, func(it types.Item) decimal.NullDecimal { return it.GrossWeight }); ok {
		decl.Totals.GrossWeight = types.Some(money.Round3(sum))
	}
	if sum, ok := sumItems(decl.Items, func(it types.Item) decimal.NullDecimal { return it.NetWeight }); ok {
		decl.Totals.NetWeight = types.Some(money.Round3(sum))
	}

	var packages int64
	var counted bool
	for _, it := range decl.Items {
		if it.PackageCount.Valid {
			packages += it.PackageCount.Int64
			counted = true
		}
	}
	if counted {
		decl.Totals.Packages = types.SomeInt(packages)
	}
}

func sumItems(items []types.Item, field func(types.Item) decimal.NullDecimal) (decimal.Decimal, bool) {
	sum := decimal.Zero
	var present bool
	for _, it := range items {
		if v := field(it); v.Valid {
			sum = sum.Add(v.Decimal)
			present = true
		}
	}
	return sum, present
}

func clearPaymentTotals(t *types.Totals) {
	t.Duty = types.None()
	t.VAT = types.None()
	t.Excise = types.None()
	t.Fee = types.None()
	t.Payment = types.None()
}
