// =============================================================================
// GTD Declaration Engine - Shared Types
// =============================================================================
//
// This package contains the canonical declaration model and the types shared
// across the engine packages to avoid import cycles. Types defined here are
// used by:
//   - validation  (findings)
//   - correction  (correction log)
//   - tariff      (rate quotes, payments)
//   - reference   (rate quotes, exchange rates, preference groups)
//   - adapter     (form, print and XML mappings)
//   - pipeline    (orchestration)
//
// Absent values: strings are absent when empty, amounts are absent when the
// NullDecimal is not Valid, integer counts are absent when not Valid.
//
// =============================================================================

package types

import (
	"database/sql"

	"github.com/shopspring/decimal"
)

// =============================================================================
// DECLARATION TYPES
// =============================================================================

// DeclarationType is the customs regime family of a declaration.
type DeclarationType string

const (
	TypeImport  DeclarationType = "IMPORT"
	TypeExport  DeclarationType = "EXPORT"
	TypeTransit DeclarationType = "TRANSIT"
)

// Valid reports whether t is one of the known declaration types.
func (t DeclarationType) Valid() bool {
	switch t {
	case TypeImport, TypeExport, TypeTransit:
		return true
	}
	return false
}

// DeclarationTypes lists the known declaration types in a stable order.
func DeclarationTypes() []DeclarationType {
	return []DeclarationType{TypeImport, TypeExport, TypeTransit}
}

// =============================================================================
// DECLARATION RECORD
// =============================================================================

// Declaration is the canonical GTD record: header, parties, financial terms,
// logistics, computed aggregates and goods items.
type Declaration struct {
	// ID is the identifier assigned by the caller (draft id, registration number).
	ID string `json:"id"`

	// Type is IMPORT, EXPORT or TRANSIT.
	Type DeclarationType `json:"type"`

	// Date is the declaration date, YYYY-MM-DD.
	Date string `json:"date"`

	// ProcedureCode is the customs regime code (40 release for home use, 10 export, 80 transit).
	ProcedureCode string `json:"procedure_code"`

	Exporter  Party `json:"exporter"`
	Consignee Party `json:"consignee"`
	Declarant Party `json:"declarant"`

	Financial Financial `json:"financial"`
	Logistics Logistics `json:"logistics"`
	Totals    Totals    `json:"totals"`

	// Items are the goods lines in document order.
	Items []Item `json:"items"`
}

// Party is one of the declaration participants.
type Party struct {
	Name    string `json:"name"`
	Address string `json:"address"`

	// TIN is the taxpayer identification number. Nine digits for Uzbek parties.
	TIN string `json:"tin"`

	// Country is the ISO 3166-1 alpha-2 code.
	Country string `json:"country"`
}

// Financial holds the commercial terms of the shipment.
type Financial struct {
	// Currency is the ISO 4217 invoice currency.
	Currency string `json:"currency"`

	InvoiceNumber string `json:"invoice_number"`

	// InvoiceDate is YYYY-MM-DD.
	InvoiceDate string `json:"invoice_date"`

	InvoiceTotal decimal.NullDecimal `json:"invoice_total"`

	// ExchangeRate converts one unit of Currency into the base accounting currency.
	ExchangeRate decimal.NullDecimal `json:"exchange_rate"`

	// Incoterms is the delivery-term code (FOB, DAP, ...).
	Incoterms      string `json:"incoterms"`
	IncotermsPlace string `json:"incoterms_place"`
}

// Logistics holds routing information.
type Logistics struct {
	TransportMode      string `json:"transport_mode"`
	DispatchCountry    string `json:"dispatch_country"`
	OriginCountry      string `json:"origin_country"`
	DestinationCountry string `json:"destination_country"`
	CustomsOffice      string `json:"customs_office"`
}

// Totals are the declaration-level aggregates. After calculation they equal
// the sums of the corresponding item fields.
type Totals struct {
	GrossWeight decimal.NullDecimal `json:"gross_weight"`
	NetWeight   decimal.NullDecimal `json:"net_weight"`
	Packages    sql.NullInt64       `json:"packages"`
	Duty        decimal.NullDecimal `json:"duty"`
	VAT         decimal.NullDecimal `json:"vat"`
	Excise      decimal.NullDecimal `json:"excise"`
	Fee         decimal.NullDecimal `json:"fee"`
	Payment     decimal.NullDecimal `json:"payment"`
}

// =============================================================================
// DECLARATION ITEM
// =============================================================================

// Item is one goods line of the declaration.
type Item struct {
	// Seq is the 1-based position of the item. Zero means unassigned.
	Seq int `json:"seq"`

	// HSCode is the 10-digit commodity code, empty while classification is pending.
	HSCode string `json:"hs_code"`

	Description   string `json:"description"`
	OriginCountry string `json:"origin_country"`

	// Weights are in kilograms.
	GrossWeight decimal.NullDecimal `json:"gross_weight"`
	NetWeight   decimal.NullDecimal `json:"net_weight"`

	Quantity decimal.NullDecimal `json:"quantity"`
	UnitCode string              `json:"unit_code"`

	// Values are denominated in the declaration currency.
	InvoiceValue     decimal.NullDecimal `json:"invoice_value"`
	CustomsValue     decimal.NullDecimal `json:"customs_value"`
	StatisticalValue decimal.NullDecimal `json:"statistical_value"`

	PackagingType string        `json:"packaging_type"`
	PackageCount  sql.NullInt64 `json:"package_count"`

	Payment ItemPayment `json:"payment"`
}

// ItemPayment holds the computed customs payments of an item, all in the base
// accounting currency. Rates are the effective percentages after preferences.
type ItemPayment struct {
	DutyRate   decimal.NullDecimal `json:"duty_rate"`
	VATRate    decimal.NullDecimal `json:"vat_rate"`
	ExciseRate decimal.NullDecimal `json:"excise_rate"`

	Duty   decimal.NullDecimal `json:"duty"`
	VAT    decimal.NullDecimal `json:"vat"`
	Excise decimal.NullDecimal `json:"excise"`
	Fee    decimal.NullDecimal `json:"fee"`
	Total  decimal.NullDecimal `json:"total"`
}

// Clone returns a deep copy of the declaration. Items are copied so callers
// can mutate the result without touching the input.
func (d Declaration) Clone() Declaration {
	out := d
	if d.Items != nil {
		out.Items = make([]Item, len(d.Items))
		copy(out.Items, d.Items)
	}
	return out
}

// =============================================================================
// OPTIONAL VALUE HELPERS
// =============================================================================

// Some wraps a decimal as a present optional value.
func Some(d decimal.Decimal) decimal.NullDecimal {
	return decimal.NewNullDecimal(d)
}

// None is an absent optional value.
func None() decimal.NullDecimal {
	return decimal.NullDecimal{}
}

// Or returns the wrapped decimal, or zero when absent.
func Or(n decimal.NullDecimal) decimal.Decimal {
	if !n.Valid {
		return decimal.Zero
	}
	return n.Decimal
}

// SomeInt wraps an integer as a present optional count.
func SomeInt(v int64) sql.NullInt64 {
	return sql.NullInt64{Int64: v, Valid: true}
}
