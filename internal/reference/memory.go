package reference

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ginjaninja78/gtd-declaration-engine/internal/types"
)

// Memory is an in-memory Gateway fed from configuration, tariff workbooks and
// exchange-rate files.
type Memory struct {
	mu          sync.RWMutex
	tariffs     map[string]types.RateQuote
	rates       map[string][]types.ExchangeRate // sorted by date ascending
	preferences *PreferenceTable
}

// NewMemory creates an empty gateway using prefs for preference groups.
func NewMemory(prefs *PreferenceTable) *Memory {
	return &Memory{
		tariffs:     make(map[string]types.RateQuote),
		rates:       make(map[string][]types.ExchangeRate),
		preferences: prefs,
	}
}

// PutRates stores tariff quotes, replacing existing entries for the same code.
func (m *Memory) PutRates(quotes ...types.RateQuote) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, q := range quotes {
		code := normalizeCode(q.HSCode)
		q.HSCode = code
		q.Source = ""
		m.tariffs[code] = q
	}
}

// PutExchangeRates stores exchange rates. A rate for an existing currency and
// day replaces the old one.
func (m *Memory) PutExchangeRates(rates ...types.ExchangeRate) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range rates {
		r.Currency = normalizeCode(r.Currency)
		r.Date = dateKey(r.Date)
		r.Source = ""

		list := m.rates[r.Currency]
		i := sort.Search(len(list), func(i int) bool { return !list[i].Date.Before(r.Date) })
		if i < len(list) && list[i].Date.Equal(r.Date) {
			list[i] = r
			continue
		}
		list = append(list, types.ExchangeRate{})
		copy(list[i+1:], list[i:])
		list[i] = r
		m.rates[r.Currency] = list
	}
}

// GetRate implements Gateway.
func (m *Memory) GetRate(_ context.Context, hsCode string) (types.RateQuote, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for i, key := range hsCandidates(hsCode) {
		if q, ok := m.tariffs[key]; ok {
			q.HSCode = normalizeCode(hsCode)
			q.Source = types.SourceExact
			if i > 0 {
				q.Source = types.SourceHeading
			}
			return q, nil
		}
	}
	return types.RateQuote{}, fmt.Errorf("tariff for HS code %q: %w", hsCode, ErrNotFound)
}

// GetExchangeRate implements Gateway.
func (m *Memory) GetExchangeRate(_ context.Context, currency string, date time.Time) (types.ExchangeRate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	list := m.rates[normalizeCode(currency)]
	if len(list) == 0 {
		return types.ExchangeRate{}, fmt.Errorf("exchange rate for %q: %w", currency, ErrNotFound)
	}

	if !date.IsZero() {
		day := dateKey(date)
		i := sort.Search(len(list), func(i int) bool { return !list[i].Date.Before(day) })
		if i < len(list) && list[i].Date.Equal(day) {
			r := list[i]
			r.Source = types.SourceExact
			return r, nil
		}
	}

	r := list[len(list)-1]
	r.Source = types.SourceLatest
	return r, nil
}

// GetPreferenceGroup implements Gateway.
func (m *Memory) GetPreferenceGroup(ctx context.Context, country string) (types.PreferenceGroup, error) {
	return m.preferences.GetPreferenceGroup(ctx, country)
}
