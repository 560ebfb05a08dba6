package tariff

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ginjaninja78/gtd-declaration-engine/internal/config"
	"github.com/ginjaninja78/gtd-declaration-engine/internal/money"
	"github.com/ginjaninja78/gtd-declaration-engine/internal/types"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// staticGroups maps countries to groups; anything else is MFN.
type staticGroups map[string]types.PreferenceGroup

func (s staticGroups) Group(country string) types.PreferenceGroup {
	if g, ok := s[country]; ok {
		return g
	}
	return types.GroupMFN
}

var testGroups = staticGroups{
	"KZ": types.GroupEAEU,
	"RU": types.GroupEAEU,
	"BY": types.GroupEAEU,
	"TJ": types.GroupCIS,
	"AZ": types.GroupCIS,
}

func newCalculator(t *testing.T) *Calculator {
	t.Helper()
	c, err := NewCalculator(PolicyFromConfig(config.Default()), testGroups)
	require.NoError(t, err)
	return c
}

func carQuote() types.RateQuote {
	return types.RateQuote{HSCode: "8703220000", DutyRate: d("25"), VATRate: d("12"), ExciseRate: decimal.Zero}
}

func item(cv string) types.Item {
	return types.Item{Seq: 1, HSCode: "8703220000", CustomsValue: types.Some(d(cv))}
}

func assertAmount(t *testing.T, want string, got decimal.NullDecimal, msg string) {
	t.Helper()
	require.True(t, got.Valid, msg)
	assert.Equal(t, want, got.Decimal.StringFixed(2), msg)
}

func TestCalculateItem_MFNExample(t *testing.T) {
	p, err := newCalculator(t).CalculateItem(item("19245.00"), "CN", carQuote())
	require.NoError(t, err)

	assertAmount(t, "4811.25", p.Duty, "duty")
	assertAmount(t, "0.00", p.Excise, "excise")
	assertAmount(t, "2886.75", p.VAT, "vat")
	assertAmount(t, "50000.00", p.Fee, "fee")
	assertAmount(t, "57698.00", p.Total, "total")
	assertAmount(t, "25.00", p.DutyRate, "effective duty rate")
}

func TestCalculateItem_EAEUExample(t *testing.T) {
	p, err := newCalculator(t).CalculateItem(item("19245.00"), "KZ", carQuote())
	require.NoError(t, err)

	assertAmount(t, "0.00", p.Duty, "duty")
	assertAmount(t, "2309.40", p.VAT, "vat")
	assertAmount(t, "50000.00", p.Fee, "fee")
	assertAmount(t, "52309.40", p.Total, "total")
}

func TestCalculateItem_EAEUPaysNoDuty(t *testing.T) {
	c := newCalculator(t)
	quotes := []types.RateQuote{
		carQuote(),
		{HSCode: "2203000100", DutyRate: d("10"), VATRate: d("12"), ExciseRate: d("20")},
		{HSCode: "2402201000", DutyRate: d("30"), VATRate: d("12"), ExciseRate: d("5.5")},
		{HSCode: "0000000000", DutyRate: d("15"), VATRate: d("12")},
	}
	for _, country := range []string{"KZ", "RU", "BY"} {
		for _, q := range quotes {
			for _, cv := range []string{"0.01", "19245.00", "123456789.99"} {
				p, err := c.CalculateItem(item(cv), country, q)
				require.NoError(t, err)
				assert.True(t, p.Duty.Decimal.IsZero(), "%s %s %s", country, q.HSCode, cv)
			}
		}
	}
}

func TestCalculateItem_CISPaysThreeQuartersOfBaseDuty(t *testing.T) {
	c := newCalculator(t)
	rates := []string{"25", "10", "7.5", "15", "0.3"}
	values := []string{"19245.00", "1000.10", "0.07", "333.33", "98765432.1"}

	for _, rate := range rates {
		for _, cv := range values {
			q := types.RateQuote{DutyRate: d(rate), VATRate: d("12")}
			p, err := c.CalculateItem(item(cv), "TJ", q)
			require.NoError(t, err)

			base := money.Percent(d(cv), d(rate))
			want := money.Round2(base.Mul(d("0.75")))
			assert.True(t, want.Equal(p.Duty.Decimal), "rate %s cv %s: want %s got %s", rate, cv, want, p.Duty.Decimal)
		}
	}
}

func TestCalculateItem_FeeBounds(t *testing.T) {
	c := newCalculator(t)
	tests := []struct {
		cv   string
		want string
	}{
		{"0.01", "50000.00"},
		{"19245.00", "50000.00"},
		{"25000000.00", "50000.00"},
		{"30000000.00", "60000.00"},
		{"123456789.01", "246913.58"},
		{"500000000.00", "1000000.00"},
		{"999999999999.99", "1000000.00"},
	}
	for _, tt := range tests {
		t.Run(tt.cv, func(t *testing.T) {
			p, err := c.CalculateItem(item(tt.cv), "CN", carQuote())
			require.NoError(t, err)
			assertAmount(t, tt.want, p.Fee, "fee")
			assert.True(t, p.Fee.Decimal.GreaterThanOrEqual(d("50000")))
			assert.True(t, p.Fee.Decimal.LessThanOrEqual(d("1000000")))
		})
	}
}

func TestCalculateItem_RoundsEachStep(t *testing.T) {
	// duty 333.33 * 7.5% = 24.99975 -> 25.00; excise 333.33 * 3% = 9.9999 -> 10.00;
	// VAT (333.33 + 25.00 + 10.00) * 12% = 44.1996 -> 44.20
	q := types.RateQuote{DutyRate: d("7.5"), VATRate: d("12"), ExciseRate: d("3")}
	p, err := newCalculator(t).CalculateItem(item("333.33"), "CN", q)
	require.NoError(t, err)

	assertAmount(t, "25.00", p.Duty, "duty")
	assertAmount(t, "10.00", p.Excise, "excise")
	assertAmount(t, "44.20", p.VAT, "vat")
	assertAmount(t, "50079.20", p.Total, "total")
}

func TestCalculateItem_Errors(t *testing.T) {
	c := newCalculator(t)

	t.Run("missing customs value", func(t *testing.T) {
		_, err := c.CalculateItem(types.Item{Seq: 3}, "CN", carQuote())
		require.ErrorIs(t, err, ErrInvalidInput)

		var calcErr *CalculationError
		require.ErrorAs(t, err, &calcErr)
		assert.Equal(t, 3, calcErr.Seq)
	})

	t.Run("negative customs value", func(t *testing.T) {
		_, err := c.CalculateItem(item("-1"), "CN", carQuote())
		require.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("negative rate", func(t *testing.T) {
		q := carQuote()
		q.VATRate = d("-12")
		_, err := c.CalculateItem(item("100"), "CN", q)
		require.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("customs value beyond range", func(t *testing.T) {
		_, err := c.CalculateItem(item("1000000000000000.01"), "CN", carQuote())
		require.ErrorIs(t, err, ErrCalculationOverflow)
	})

	t.Run("computed amount beyond range", func(t *testing.T) {
		q := carQuote()
		q.ExciseRate = d("1000")
		_, err := c.CalculateItem(item("900000000000000"), "CN", q)
		require.ErrorIs(t, err, ErrCalculationOverflow)

		var calcErr *CalculationError
		require.ErrorAs(t, err, &calcErr)
		assert.Equal(t, "excise", calcErr.Step)
	})
}

func TestNewCalculator_RejectsBadPolicy(t *testing.T) {
	p := DefaultPolicy()
	p.FeeMin = d("2000000")
	_, err := NewCalculator(p, testGroups)
	require.ErrorIs(t, err, ErrInvalidPolicy)

	_, err = NewCalculator(DefaultPolicy(), nil)
	require.ErrorIs(t, err, ErrInvalidPolicy)
}

func TestCalculateTotals(t *testing.T) {
	c := newCalculator(t)
	mfn, err := c.CalculateItem(item("19245.00"), "CN", carQuote())
	require.NoError(t, err)
	eaeu, err := c.CalculateItem(item("19245.00"), "KZ", carQuote())
	require.NoError(t, err)

	totals := CalculateTotals([]types.ItemPayment{mfn, eaeu, {}})
	assert.Equal(t, "4811.25", totals.Duty.StringFixed(2))
	assert.Equal(t, "5196.15", totals.VAT.StringFixed(2))
	assert.Equal(t, "100000.00", totals.Fee.StringFixed(2))
	assert.Equal(t, "110007.40", totals.Total.StringFixed(2))

	var tot types.Totals
	totals.Apply(&tot)
	assert.True(t, tot.Payment.Valid)
	assert.True(t, tot.Payment.Decimal.Equal(d("110007.40")))

	empty := CalculateTotals(nil)
	assert.True(t, empty.Total.IsZero())
}

func TestGroupFunc(t *testing.T) {
	c, err := NewCalculator(DefaultPolicy(), GroupFunc(func(string) types.PreferenceGroup { return types.GroupEAEU }))
	require.NoError(t, err)
	p, err := c.CalculateItem(item("1000"), "anything", carQuote())
	require.NoError(t, err)
	assert.True(t, p.Duty.Decimal.IsZero())
}
