// =============================================================================
// GTD Declaration Engine - Auto-Corrector
// =============================================================================
//
// This module produces a corrected copy of a declaration together with an
// audit log of every change. Corrections are conservative and non-financial:
//   - Country, currency and Incoterms codes are trimmed and uppercased
//   - HS codes written with dots or spaces are reduced to digits
//   - Missing routing and procedure fields get declaration-type defaults
//   - Package counts of declared goods are raised to at least 1
//   - Weights are rounded to 3 decimals, monetary values to 2 (half-up)
//
// Tax ids, sequence numbers and monetary amounts beyond rounding are never
// touched. Corrections run as a chain of rules in a fixed order, each rule
// appending one CorrectionEntry per changed field. Applying the corrector to
// its own output yields an empty log.
//
// =============================================================================

package correction

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ginjaninja78/gtd-declaration-engine/internal/config"
	"github.com/ginjaninja78/gtd-declaration-engine/internal/money"
	"github.com/ginjaninja78/gtd-declaration-engine/internal/types"
)

// =============================================================================
// CORRECTOR
// =============================================================================

// Rule is one correction step. It edits decl in place and records every
// change through log.
type Rule func(decl *types.Declaration, log *Log)

// Corrector applies a chain of correction rules.
type Corrector struct {
	rules []Rule
}

// New creates a Corrector using the given per-type defaults.
func New(defaults map[types.DeclarationType]config.DeclarationDefaults) *Corrector {
	return &Corrector{
		rules: []Rule{
			NormalizeCodes,
			ApplyDefaults(defaults),
			NormalizeHSCodes,
			ClampPackageCounts,
			RoundValues,
		},
	}
}

// NewFromConfig creates a Corrector from the engine configuration.
func NewFromConfig(cfg *config.Config) *Corrector {
	return New(cfg.Defaults)
}

// NewWithRules creates a Corrector running exactly the given rules.
func NewWithRules(rules ...Rule) *Corrector {
	return &Corrector{rules: rules}
}

// Correct returns a corrected copy of decl and the log of changes. The input
// is not modified. The log is never nil.
func (c *Corrector) Correct(decl types.Declaration) (types.Declaration, []types.CorrectionEntry) {
	out := decl.Clone()
	log := &Log{entries: []types.CorrectionEntry{}}
	for _, rule := range c.rules {
		rule(&out, log)
	}
	return out, log.entries
}

// Log collects correction entries in the order they are made.
type Log struct {
	entries []types.CorrectionEntry
}

// Record appends an entry.
func (l *Log) Record(path, original, corrected string, reason types.ReasonCode) {
	l.entries = append(l.entries, types.CorrectionEntry{
		Path:      path,
		Original:  original,
		Corrected: corrected,
		Reason:    reason,
	})
}

// =============================================================================
// CODE NORMALIZATION
// =============================================================================

// NormalizeCodes trims and uppercases ISO country and currency codes and the
// Incoterms code.
func NormalizeCodes(decl *types.Declaration, log *Log) {
	parties := []struct {
		prefix string
		party  *types.Party
	}{
		{"exporter", &decl.Exporter},
		{"consignee", &decl.Consignee},
		{"declarant", &decl.Declarant},
	}
	for _, p := range parties {
		upperCode(&p.party.Country, p.prefix+".country", types.ReasonCountryCodeNormalized, log)
	}

	upperCode(&decl.Financial.Currency, "financial.currency", types.ReasonCurrencyCodeNormalized, log)
	upperCode(&decl.Financial.Incoterms, "financial.incoterms", types.ReasonIncotermsNormalized, log)

	upperCode(&decl.Logistics.DispatchCountry, "logistics.dispatch_country", types.ReasonCountryCodeNormalized, log)
	upperCode(&decl.Logistics.OriginCountry, "logistics.origin_country", types.ReasonCountryCodeNormalized, log)
	upperCode(&decl.Logistics.DestinationCountry, "logistics.destination_country", types.ReasonCountryCodeNormalized, log)

	for i := range decl.Items {
		upperCode(&decl.Items[i].OriginCountry, itemPath(i, "origin_country"), types.ReasonCountryCodeNormalized, log)
	}
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func upperCode(field *string, path string, reason types.ReasonCode, log *Log) {
	normalized := normalizeCode(*field)
	if normalized == *field {
		return
	}
	log.Record(path, *field, normalized, reason)
	*field = normalized
}

// NormalizeHSCodes strips dots and spaces from HS codes that are otherwise
// all digits. Codes with other characters are left for the validator.
func NormalizeHSCodes(decl *types.Declaration, log *Log) {
	for i := range decl.Items {
		raw := decl.Items[i].HSCode
		code := strings.Map(func(r rune) rune {
			if r == '.' || r == ' ' {
				return -1
			}
			return r
		}, raw)
		if code == raw || code == "" || !allDigits(code) {
			continue
		}
		log.Record(itemPath(i, "hs_code"), raw, code, types.ReasonHSCodeNormalized)
		decl.Items[i].HSCode = code
	}
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// =============================================================================
// DEFAULTS
// =============================================================================

// ApplyDefaults fills empty routing and procedure fields with the defaults of
// the declaration type. Unknown types get no defaults.
func ApplyDefaults(defaults map[types.DeclarationType]config.DeclarationDefaults) Rule {
	return func(decl *types.Declaration, log *Log) {
		d, ok := defaults[decl.Type]
		if !ok {
			return
		}

		fill := func(field *string, path, value string) {
			if strings.TrimSpace(*field) != "" || value == "" {
				return
			}
			log.Record(path, *field, value, types.ReasonDefaultApplied)
			*field = value
		}

		fill(&decl.ProcedureCode, "procedure_code", d.ProcedureCode)
		fill(&decl.Financial.IncotermsPlace, "financial.incoterms_place", d.IncotermsPlace)
		fill(&decl.Logistics.TransportMode, "logistics.transport_mode", d.TransportMode)
		// Country defaults are filled in NormalizeCodes form.
		fill(&decl.Logistics.DispatchCountry, "logistics.dispatch_country", normalizeCode(d.DispatchCountry))
		fill(&decl.Logistics.DestinationCountry, "logistics.destination_country", normalizeCode(d.DestinationCountry))
	}
}

// =============================================================================
// PACKAGES
// =============================================================================

// ClampPackageCounts raises the package count of declared goods to 1 when it
// is zero or absent. Negative counts are left for the validator.
func ClampPackageCounts(decl *types.Declaration, log *Log) {
	for i := range decl.Items {
		it := &decl.Items[i]
		if !goodsDeclared(*it) {
			continue
		}
		if it.PackageCount.Valid && it.PackageCount.Int64 != 0 {
			continue
		}
		original := ""
		if it.PackageCount.Valid {
			original = "0"
		}
		log.Record(itemPath(i, "package_count"), original, "1", types.ReasonPackageCountClamped)
		it.PackageCount = types.SomeInt(1)
	}
}

// goodsDeclared reports whether an item describes actual goods.
func goodsDeclared(it types.Item) bool {
	return strings.TrimSpace(it.Description) != "" ||
		it.HSCode != "" ||
		(it.Quantity.Valid && it.Quantity.Decimal.IsPositive())
}

// =============================================================================
// ROUNDING
// =============================================================================

// RoundValues rounds weights and quantities to 3 decimals and monetary values
// to 2 decimals. Exchange rates and computed payments are not rounded here.
func RoundValues(decl *types.Declaration, log *Log) {
	round(&decl.Financial.InvoiceTotal, "financial.invoice_total", money.Round2, log)
	round(&decl.Totals.GrossWeight, "totals.gross_weight", money.Round3, log)
	round(&decl.Totals.NetWeight, "totals.net_weight", money.Round3, log)

	for i := range decl.Items {
		it := &decl.Items[i]
		round(&it.GrossWeight, itemPath(i, "gross_weight"), money.Round3, log)
		round(&it.NetWeight, itemPath(i, "net_weight"), money.Round3, log)
		round(&it.Quantity, itemPath(i, "quantity"), money.Round3, log)
		round(&it.InvoiceValue, itemPath(i, "invoice_value"), money.Round2, log)
		round(&it.CustomsValue, itemPath(i, "customs_value"), money.Round2, log)
		round(&it.StatisticalValue, itemPath(i, "statistical_value"), money.Round2, log)
	}
}

func round(field *decimal.NullDecimal, path string, fn func(decimal.Decimal) decimal.Decimal, log *Log) {
	if !field.Valid {
		return
	}
	rounded := fn(field.Decimal)
	if rounded.Equal(field.Decimal) {
		return
	}
	log.Record(path, field.Decimal.String(), rounded.String(), types.ReasonRounded)
	field.Decimal = rounded
}

func itemPath(i int, key string) string {
	return fmt.Sprintf("items[%d].%s", i, key)
}
