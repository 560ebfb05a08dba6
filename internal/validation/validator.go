// =============================================================================
// GTD Declaration Engine - Field Validator
// =============================================================================
//
// This module evaluates the field and cross-field rules of a declaration and
// returns an ordered list of findings. It never mutates its input and never
// fails for data-quality problems: every rule runs, so a single call surfaces
// the complete defect set.
//
// VALIDATION LEVELS:
//   1. Field-level: format of codes, identifiers, dates and numbers
//   2. Item-level: cross-field rules inside one item (net <= gross weight)
//   3. Declaration-level: item sequencing and aggregate totals
//
// OUTPUT ORDER:
//   Findings follow document order: header fields (type, dates, parties,
//   financial terms, logistics, totals), then the item list as a whole, then
//   each item in slice order. Re-running on identical input yields an
//   identical slice.
//
// SEVERITY:
//   - "error"   : the value violates a hard format or consistency rule
//   - "warning" : advisory (pending classification, rounding drift, unknown
//                 but plausible codes)
//
// Non-finite numbers cannot reach this module; they are rejected while the
// form is mapped to the canonical model.
//
// =============================================================================

package validation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ginjaninja78/gtd-declaration-engine/internal/money"
	"github.com/ginjaninja78/gtd-declaration-engine/internal/types"
)

// =============================================================================
// PATTERNS
// =============================================================================

var (
	tinPattern           = regexp.MustCompile(`^\d{9}$`)
	countryPattern       = regexp.MustCompile(`^[A-Z]{2}$`)
	currencyPattern      = regexp.MustCompile(`^[A-Z]{3}$`)
	hsCodePattern        = regexp.MustCompile(`^\d{10}$`)
	twoDigitPattern      = regexp.MustCompile(`^\d{2}$`)
	customsOfficePattern = regexp.MustCompile(`^\d{5}$`)
)

// KnownIncoterms are the Incoterms 2020 rules plus DAT from Incoterms 2010,
// which is still seen on older contracts.
var KnownIncoterms = []string{
	"EXW", "FCA", "FAS", "FOB", "CFR", "CIF",
	"CPT", "CIP", "DAP", "DPU", "DDP", "DAT",
}

// =============================================================================
// VALIDATOR
// =============================================================================

// Options contains options for validation.
type Options struct {
	// DomesticCountry is the country whose parties must carry a 9-digit TIN.
	// Parties without a country are treated as domestic.
	// Default: "UZ"
	DomesticCountry string

	// Tolerance is the allowed difference between a declared aggregate and
	// the sum of the corresponding item fields.
	// Default: 0.01
	Tolerance decimal.Decimal

	// Incoterms is the list of accepted delivery-term codes.
	Incoterms []string
}

// DefaultOptions returns the default validation options.
func DefaultOptions() Options {
	return Options{
		DomesticCountry: "UZ",
		Tolerance:       decimal.RequireFromString("0.01"),
		Incoterms:       KnownIncoterms,
	}
}

// Validator evaluates declaration rules. It holds no per-call state and is
// safe for concurrent use.
type Validator struct {
	options   Options
	incoterms map[string]bool
}

// NewValidator creates a Validator with the default options.
func NewValidator() *Validator {
	return NewValidatorWithOptions(DefaultOptions())
}

// NewValidatorWithOptions creates a Validator with custom options.
func NewValidatorWithOptions(options Options) *Validator {
	v := &Validator{options: options, incoterms: make(map[string]bool, len(options.Incoterms))}
	for _, code := range options.Incoterms {
		v.incoterms[strings.ToUpper(code)] = true
	}
	return v
}

// Validate evaluates every rule with the default options.
func Validate(decl types.Declaration) []types.Finding {
	return NewValidator().Validate(decl)
}

// =============================================================================
// MAIN VALIDATION FUNCTION
// =============================================================================

// Validate evaluates every rule against decl and returns the findings in
// document order.
func (v *Validator) Validate(decl types.Declaration) []types.Finding {
	c := &collector{}

	v.validateHeader(c, decl)
	v.validateParty(c, "exporter", decl.Exporter)
	v.validateParty(c, "consignee", decl.Consignee)
	v.validateParty(c, "declarant", decl.Declarant)
	v.validateFinancial(c, decl)
	v.validateLogistics(c, decl.Logistics)
	v.validateTotals(c, decl)
	v.validateSequence(c, decl.Items)

	for i, item := range decl.Items {
		v.validateItem(c, fmt.Sprintf("items[%d]", i), item)
	}

	return c.findings
}

// collector accumulates findings in emission order.
type collector struct {
	findings []types.Finding
}

func (c *collector) add(path string, severity types.Severity, kind types.ErrorKind, format string, args ...interface{}) {
	c.findings = append(c.findings, types.Finding{
		Path:     path,
		Message:  fmt.Sprintf(format, args...),
		Severity: severity,
		Kind:     kind,
	})
}

func (c *collector) formatError(path, format string, args ...interface{}) {
	c.add(path, types.SeverityError, types.KindFieldFormat, format, args...)
}

func (c *collector) formatWarning(path, format string, args ...interface{}) {
	c.add(path, types.SeverityWarning, types.KindFieldFormat, format, args...)
}

// =============================================================================
// HEADER RULES
// =============================================================================

func (v *Validator) validateHeader(c *collector, decl types.Declaration) {
	if !decl.Type.Valid() {
		c.formatError("type", "declaration type %q must be one of IMPORT, EXPORT, TRANSIT", decl.Type)
	}
	checkDate(c, "date", decl.Date)
	if decl.ProcedureCode != "" && !twoDigitPattern.MatchString(decl.ProcedureCode) {
		c.formatWarning("procedure_code", "procedure code %q should be 2 digits", decl.ProcedureCode)
	}
}

func (v *Validator) validateParty(c *collector, prefix string, p types.Party) {
	if p.TIN != "" && v.isDomestic(p) && !tinPattern.MatchString(p.TIN) {
		c.formatError(prefix+".tin", "tax id %q must be exactly 9 digits", p.TIN)
	}
	checkCountry(c, prefix+".country", p.Country)
}

// isDomestic reports whether the party falls under the domestic TIN rule.
func (v *Validator) isDomestic(p types.Party) bool {
	country := strings.ToUpper(strings.TrimSpace(p.Country))
	return country == "" || country == v.options.DomesticCountry
}

func (v *Validator) validateFinancial(c *collector, decl types.Declaration) {
	f := decl.Financial

	switch currency := strings.ToUpper(strings.TrimSpace(f.Currency)); {
	case currency == "":
		c.formatError("financial.currency", "currency code is required")
	case !currencyPattern.MatchString(currency):
		c.formatError("financial.currency", "currency code %q must be 3 letters", f.Currency)
	}

	checkDate(c, "financial.invoice_date", f.InvoiceDate)
	checkNonNegative(c, "financial.invoice_total", f.InvoiceTotal)

	if f.ExchangeRate.Valid && !f.ExchangeRate.Decimal.IsPositive() {
		c.formatError("financial.exchange_rate", "exchange rate must be positive, got %s", f.ExchangeRate.Decimal)
	}

	if code := strings.ToUpper(strings.TrimSpace(f.Incoterms)); code != "" && !v.incoterms[code] {
		c.formatWarning("financial.incoterms", "unknown Incoterms code %q", f.Incoterms)
	}

	if f.InvoiceTotal.Valid {
		sum, found := sumItems(decl.Items, func(it types.Item) decimal.NullDecimal { return it.InvoiceValue })
		if found {
			v.checkAggregate(c, "financial.invoice_total", "invoice total", f.InvoiceTotal.Decimal, sum)
		}
	}
}

func (v *Validator) validateLogistics(c *collector, l types.Logistics) {
	if l.TransportMode != "" && !twoDigitPattern.MatchString(l.TransportMode) {
		c.formatWarning("logistics.transport_mode", "transport mode %q should be a 2-digit code", l.TransportMode)
	}
	checkCountry(c, "logistics.dispatch_country", l.DispatchCountry)
	checkCountry(c, "logistics.origin_country", l.OriginCountry)
	checkCountry(c, "logistics.destination_country", l.DestinationCountry)
	if l.CustomsOffice != "" && !customsOfficePattern.MatchString(l.CustomsOffice) {
		c.formatWarning("logistics.customs_office", "customs office %q should be a 5-digit code", l.CustomsOffice)
	}
}

// validateTotals checks declared aggregates for sign and against item sums.
func (v *Validator) validateTotals(c *collector, decl types.Declaration) {
	t := decl.Totals
	items := decl.Items

	amounts := []struct {
		key   string
		label string
		value decimal.NullDecimal
		item  func(types.Item) decimal.NullDecimal
	}{
		{"gross_weight", "gross weight", t.GrossWeight, func(it types.Item) decimal.NullDecimal { return it.GrossWeight }},
		{"net_weight", "net weight", t.NetWeight, func(it types.Item) decimal.NullDecimal { return it.NetWeight }},
		{"duty", "duty", t.Duty, func(it types.Item) decimal.NullDecimal { return it.Payment.Duty }},
		{"vat", "VAT", t.VAT, func(it types.Item) decimal.NullDecimal { return it.Payment.VAT }},
		{"excise", "excise", t.Excise, func(it types.Item) decimal.NullDecimal { return it.Payment.Excise }},
		{"fee", "customs fee", t.Fee, func(it types.Item) decimal.NullDecimal { return it.Payment.Fee }},
		{"payment", "total payment", t.Payment, func(it types.Item) decimal.NullDecimal { return it.Payment.Total }},
	}

	for _, a := range amounts {
		path := "totals." + a.key
		checkNonNegative(c, path, a.value)
		if a.value.Valid {
			sum, _ := sumItems(items, a.item)
			v.checkAggregate(c, path, a.label, a.value.Decimal, sum)
		}
	}

	if t.Packages.Valid {
		if t.Packages.Int64 < 0 {
			c.formatError("totals.packages", "package count must not be negative, got %d", t.Packages.Int64)
		}
		var sum int64
		for _, it := range items {
			if it.PackageCount.Valid {
				sum += it.PackageCount.Int64
			}
		}
		if sum != t.Packages.Int64 {
			c.add("totals.packages", types.SeverityWarning, types.KindCrossFieldInconsistency,
				"declared package count %d differs from item sum %d", t.Packages.Int64, sum)
		}
	}
}

func (v *Validator) checkAggregate(c *collector, path, label string, declared, sum decimal.Decimal) {
	if declared.Sub(sum).Abs().GreaterThan(v.options.Tolerance) {
		c.add(path, types.SeverityWarning, types.KindCrossFieldInconsistency,
			"declared %s %s differs from item sum %s by more than %s",
			label, declared.String(), sum.String(), v.options.Tolerance.String())
	}
}

// validateSequence checks that item sequence numbers are exactly 1..N.
func (v *Validator) validateSequence(c *collector, items []types.Item) {
	if len(items) == 0 {
		c.formatWarning("items", "declaration has no goods items")
		return
	}

	seen := make(map[int]bool, len(items))
	var problems []string
	for i, it := range items {
		switch {
		case it.Seq < 1 || it.Seq > len(items):
			problems = append(problems, fmt.Sprintf("item %d has sequence %d outside 1..%d", i+1, it.Seq, len(items)))
		case seen[it.Seq]:
			problems = append(problems, fmt.Sprintf("sequence %d is used more than once", it.Seq))
		}
		seen[it.Seq] = true
	}

	if len(problems) > 0 {
		c.add("items", types.SeverityError, types.KindCrossFieldInconsistency,
			"item sequence numbers must be dense and unique 1..%d: %s", len(items), strings.Join(problems, "; "))
	}
}

// =============================================================================
// ITEM RULES
// =============================================================================

func (v *Validator) validateItem(c *collector, prefix string, it types.Item) {
	switch {
	case it.HSCode == "":
		c.formatWarning(prefix+".hs_code", "HS code is missing (classification pending)")
	case !hsCodePattern.MatchString(it.HSCode):
		c.formatWarning(prefix+".hs_code", "HS code %q should be 10 digits", it.HSCode)
	}

	if strings.TrimSpace(it.Description) == "" {
		c.formatWarning(prefix+".description", "goods description is missing")
	}

	checkCountry(c, prefix+".origin_country", it.OriginCountry)

	checkNonNegative(c, prefix+".gross_weight", it.GrossWeight)
	checkNonNegative(c, prefix+".net_weight", it.NetWeight)
	if it.GrossWeight.Valid && it.NetWeight.Valid && it.NetWeight.Decimal.GreaterThan(it.GrossWeight.Decimal) {
		c.add(prefix+".net_weight", types.SeverityError, types.KindCrossFieldInconsistency,
			"net weight %s exceeds gross weight %s", it.NetWeight.Decimal.String(), it.GrossWeight.Decimal.String())
	}

	checkNonNegative(c, prefix+".quantity", it.Quantity)
	checkNonNegative(c, prefix+".invoice_value", it.InvoiceValue)
	checkNonNegative(c, prefix+".customs_value", it.CustomsValue)
	checkNonNegative(c, prefix+".statistical_value", it.StatisticalValue)

	if it.PackageCount.Valid && it.PackageCount.Int64 < 0 {
		c.formatError(prefix+".package_count", "package count must not be negative, got %d", it.PackageCount.Int64)
	}
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// checkDate requires a present date to be a calendar-valid YYYY-MM-DD.
func checkDate(c *collector, path, value string) {
	if value == "" {
		return
	}
	if _, err := money.ParseDate(value); err != nil {
		c.formatError(path, "date %q must be a valid YYYY-MM-DD date", value)
	}
}

// checkCountry requires a present country code to be 2 letters. Lower case
// is accepted; the corrector normalizes it.
func checkCountry(c *collector, path, value string) {
	if value == "" {
		return
	}
	if !countryPattern.MatchString(strings.ToUpper(strings.TrimSpace(value))) {
		c.formatError(path, "country code %q must be 2 letters", value)
	}
}

func checkNonNegative(c *collector, path string, value decimal.NullDecimal) {
	if value.Valid && value.Decimal.IsNegative() {
		c.formatError(path, "value must not be negative, got %s", value.Decimal.String())
	}
}

// sumItems adds the present values of one item field. The flag reports
// whether any item had a value.
func sumItems(items []types.Item, field func(types.Item) decimal.NullDecimal) (decimal.Decimal, bool) {
	sum := decimal.Zero
	found := false
	for _, it := range items {
		if v := field(it); v.Valid {
			sum = sum.Add(v.Decimal)
			found = true
		}
	}
	return sum, found
}
