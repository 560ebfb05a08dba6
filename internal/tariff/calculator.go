// Package tariff computes customs payments: duty, excise, VAT and the
// statutory customs fee per item, and their declaration totals.
//
// Every intermediate amount is rounded to 2 decimals as soon as it is
// computed, so each printed line is individually exact. Declaration totals
// are the sums of the rounded item amounts and may differ by a few rounding
// units from a computation over the summed customs value.
package tariff

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/ginjaninja78/gtd-declaration-engine/internal/config"
	"github.com/ginjaninja78/gtd-declaration-engine/internal/money"
	"github.com/ginjaninja78/gtd-declaration-engine/internal/types"
)

var (
	// ErrCalculationOverflow is returned when an amount leaves the representable range.
	ErrCalculationOverflow = errors.New("calculation overflow")

	// ErrInvalidInput is returned for a missing or negative customs value or rate.
	ErrInvalidInput = errors.New("invalid calculation input")

	// ErrInvalidPolicy is returned when the fee policy is unusable.
	ErrInvalidPolicy = errors.New("invalid tariff policy")
)

// CalculationError reports the item and step where a calculation was aborted.
type CalculationError struct {
	Seq  int
	Step string
	Err  error
}

func (e *CalculationError) Error() string {
	return fmt.Sprintf("item %d: %s: %v", e.Seq, e.Step, e.Err)
}

func (e *CalculationError) Unwrap() error {
	return e.Err
}

// PreferenceResolver answers the preference group of an origin country.
type PreferenceResolver interface {
	Group(country string) types.PreferenceGroup
}

// GroupFunc adapts a function to PreferenceResolver.
type GroupFunc func(country string) types.PreferenceGroup

// Group implements PreferenceResolver.
func (f GroupFunc) Group(country string) types.PreferenceGroup {
	return f(country)
}

// Policy holds the regulatory constants of the calculation.
type Policy struct {
	// FeeRate is the customs fee as a fraction of the customs value.
	FeeRate decimal.Decimal
	FeeMin  decimal.Decimal
	FeeMax  decimal.Decimal

	// CISFactor scales the base duty rate for CIS origins.
	CISFactor decimal.Decimal

	// MaxAmount bounds every input and computed amount in absolute value.
	MaxAmount decimal.Decimal
}

// DefaultPolicy returns the statutory constants.
func DefaultPolicy() Policy {
	return Policy{
		FeeRate:   decimal.RequireFromString("0.002"),
		FeeMin:    decimal.NewFromInt(50000),
		FeeMax:    decimal.NewFromInt(1000000),
		CISFactor: decimal.RequireFromString("0.75"),
		MaxAmount: decimal.New(1, 15),
	}
}

// PolicyFromConfig returns the policy with the configured fee settings.
func PolicyFromConfig(cfg *config.Config) Policy {
	p := DefaultPolicy()
	p.FeeRate = cfg.Fee.Rate
	p.FeeMin = cfg.Fee.Min
	p.FeeMax = cfg.Fee.Max
	return p
}

// Validate checks that the policy can produce meaningful amounts.
func (p Policy) Validate() error {
	switch {
	case !p.FeeRate.IsPositive():
		return fmt.Errorf("%w: fee rate must be positive", ErrInvalidPolicy)
	case p.FeeMin.IsNegative() || p.FeeMin.GreaterThan(p.FeeMax):
		return fmt.Errorf("%w: fee bounds [%s, %s]", ErrInvalidPolicy, p.FeeMin, p.FeeMax)
	case p.CISFactor.IsNegative():
		return fmt.Errorf("%w: CIS factor must not be negative", ErrInvalidPolicy)
	case !p.MaxAmount.IsPositive():
		return fmt.Errorf("%w: max amount must be positive", ErrInvalidPolicy)
	}
	return nil
}

// Calculator computes item payments. It is stateless and safe for concurrent use.
type Calculator struct {
	policy Policy
	prefs  PreferenceResolver
}

// NewCalculator creates a Calculator. prefs must not be nil.
func NewCalculator(policy Policy, prefs PreferenceResolver) (*Calculator, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	if prefs == nil {
		return nil, fmt.Errorf("%w: preference resolver is required", ErrInvalidPolicy)
	}
	return &Calculator{policy: policy, prefs: prefs}, nil
}

// EffectiveDutyRate applies the preference of group to a base duty rate.
func (c *Calculator) EffectiveDutyRate(base decimal.Decimal, group types.PreferenceGroup) decimal.Decimal {
	switch group {
	case types.GroupEAEU:
		return decimal.Zero
	case types.GroupCIS:
		return base.Mul(c.policy.CISFactor)
	default:
		return base
	}
}

// CalculateItem computes the payments of one item. The item's customs value
// must already be in the base accounting currency.
func (c *Calculator) CalculateItem(item types.Item, originCountry string, quote types.RateQuote) (types.ItemPayment, error) {
	fail := func(step string, err error) (types.ItemPayment, error) {
		return types.ItemPayment{}, &CalculationError{Seq: item.Seq, Step: step, Err: err}
	}

	if !item.CustomsValue.Valid {
		return fail("customs value", fmt.Errorf("%w: customs value is missing", ErrInvalidInput))
	}
	cv := item.CustomsValue.Decimal
	if cv.IsNegative() {
		return fail("customs value", fmt.Errorf("%w: customs value %s is negative", ErrInvalidInput, cv))
	}
	if err := c.checkRange(cv); err != nil {
		return fail("customs value", err)
	}
	rates := []struct {
		name string
		rate decimal.Decimal
	}{
		{"duty rate", quote.DutyRate},
		{"excise rate", quote.ExciseRate},
		{"VAT rate", quote.VATRate},
	}
	for _, r := range rates {
		if r.rate.IsNegative() {
			return fail(r.name, fmt.Errorf("%w: %s %s is negative", ErrInvalidInput, r.name, r.rate))
		}
	}

	dutyRate := c.EffectiveDutyRate(quote.DutyRate, c.prefs.Group(originCountry))

	duty := money.Round2(money.Percent(cv, dutyRate))
	excise := money.Round2(money.Percent(cv, quote.ExciseRate))
	vatBase := cv.Add(duty).Add(excise)
	vat := money.Round2(money.Percent(vatBase, quote.VATRate))
	fee := money.Clamp(money.Round2(cv.Mul(c.policy.FeeRate)), c.policy.FeeMin, c.policy.FeeMax)
	total := money.Round2(duty.Add(vat).Add(excise).Add(fee))

	steps := []struct {
		name  string
		value decimal.Decimal
	}{
		{"duty", duty},
		{"excise", excise},
		{"vat", vat},
		{"fee", fee},
		{"total", total},
	}
	for _, s := range steps {
		if err := c.checkRange(s.value); err != nil {
			return fail(s.name, err)
		}
	}

	return types.ItemPayment{
		DutyRate:   types.Some(dutyRate),
		VATRate:    types.Some(quote.VATRate),
		ExciseRate: types.Some(quote.ExciseRate),
		Duty:       types.Some(duty),
		VAT:        types.Some(vat),
		Excise:     types.Some(excise),
		Fee:        types.Some(fee),
		Total:      types.Some(total),
	}, nil
}

func (c *Calculator) checkRange(v decimal.Decimal) error {
	if v.Abs().GreaterThan(c.policy.MaxAmount) {
		return fmt.Errorf("%w: |%s| exceeds %s", ErrCalculationOverflow, v, c.policy.MaxAmount)
	}
	return nil
}

// DeclarationPayment is the sum of item payments.
type DeclarationPayment struct {
	Duty   decimal.Decimal `json:"duty"`
	VAT    decimal.Decimal `json:"vat"`
	Excise decimal.Decimal `json:"excise"`
	Fee    decimal.Decimal `json:"fee"`
	Total  decimal.Decimal `json:"total"`
}

// CalculateTotals sums item payments, each column independently rounded to
// 2 decimals. Absent amounts count as zero.
func CalculateTotals(payments []types.ItemPayment) DeclarationPayment {
	var out DeclarationPayment
	for _, p := range payments {
		out.Duty = out.Duty.Add(types.Or(p.Duty))
		out.VAT = out.VAT.Add(types.Or(p.VAT))
		out.Excise = out.Excise.Add(types.Or(p.Excise))
		out.Fee = out.Fee.Add(types.Or(p.Fee))
		out.Total = out.Total.Add(types.Or(p.Total))
	}
	out.Duty = money.Round2(out.Duty)
	out.VAT = money.Round2(out.VAT)
	out.Excise = money.Round2(out.Excise)
	out.Fee = money.Round2(out.Fee)
	out.Total = money.Round2(out.Total)
	return out
}

// Apply writes the declaration payment into totals.
func (p DeclarationPayment) Apply(t *types.Totals) {
	t.Duty = types.Some(p.Duty)
	t.VAT = types.Some(p.VAT)
	t.Excise = types.Some(p.Excise)
	t.Fee = types.Some(p.Fee)
	t.Payment = types.Some(p.Total)
}
