package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// PreferenceGroup is the tariff preference regime of an origin country.
type PreferenceGroup string

const (
	// GroupEAEU members pay no customs duty.
	GroupEAEU PreferenceGroup = "EAEU"
	// GroupCIS members pay 75% of the base duty rate.
	GroupCIS PreferenceGroup = "CIS"
	// GroupMFN pays the full rate.
	GroupMFN PreferenceGroup = "MFN"
)

// RateSource tells where a reference value came from.
type RateSource string

const (
	SourceExact    RateSource = "exact"
	SourceHeading  RateSource = "heading"
	SourceLatest   RateSource = "latest"
	SourceDefault  RateSource = "default"
	SourceFallback RateSource = "fallback"
	SourceDeclared RateSource = "declared"
	SourceBase     RateSource = "base"
)

// RateQuote holds the tariff percentages for an HS code.
type RateQuote struct {
	HSCode     string          `json:"hs_code" db:"hs_code"`
	DutyRate   decimal.Decimal `json:"duty_rate" db:"duty_rate"`
	VATRate    decimal.Decimal `json:"vat_rate" db:"vat_rate"`
	ExciseRate decimal.Decimal `json:"excise_rate" db:"excise_rate"`
	Source     RateSource      `json:"source" db:"-"`
}

// ExchangeRate converts one unit of Currency into the base currency.
type ExchangeRate struct {
	Currency string          `json:"currency"`
	Rate     decimal.Decimal `json:"rate"`
	Date     time.Time       `json:"date"`
	Source   RateSource      `json:"source"`
}
