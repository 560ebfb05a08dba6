// Package reference provides read-only lookups of tariff rates, exchange
// rates and preference-group membership. It is the only part of the engine
// that performs I/O.
package reference

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/ginjaninja78/gtd-declaration-engine/internal/types"
)

// ErrNotFound is returned when a lookup has no answer in the source.
var ErrNotFound = errors.New("reference data not found")

// Gateway is the Reference Data Gateway.
type Gateway interface {
	// GetRate returns the tariff rates for an HS code. Codes are resolved by
	// exact match first, then by their 8, 6 and 4 digit headings.
	GetRate(ctx context.Context, hsCode string) (types.RateQuote, error)

	// GetExchangeRate returns the rate for currency on date, or the latest
	// known rate when the date has none. A zero date asks for the latest rate.
	GetExchangeRate(ctx context.Context, currency string, date time.Time) (types.ExchangeRate, error)

	// GetPreferenceGroup returns the preference group of a country.
	GetPreferenceGroup(ctx context.Context, country string) (types.PreferenceGroup, error)
}

// headingLengths are the HS prefix lengths tried after an exact miss.
var headingLengths = []int{8, 6, 4}

// hsCandidates returns the lookup keys for an HS code, longest first.
func hsCandidates(hsCode string) []string {
	code := normalizeCode(hsCode)
	if code == "" {
		return nil
	}
	out := []string{code}
	for _, n := range headingLengths {
		if len(code) > n {
			out = append(out, code[:n])
		}
	}
	return out
}

func normalizeCode(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// dateKey truncates t to a calendar day.
func dateKey(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
