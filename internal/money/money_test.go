package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestRound2_HalfUp(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"38.49", "38.49"},
		{"1.005", "1.01"},
		{"2.345", "2.35"},
		{"2.344", "2.34"},
		{"4811.25", "4811.25"},
		{"0.125", "0.13"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.True(t, Round2(d(tt.in)).Equal(d(tt.want)), "Round2(%s) = %s", tt.in, Round2(d(tt.in)))
		})
	}
}

func TestRound3(t *testing.T) {
	assert.True(t, Round3(d("12.3455")).Equal(d("12.346")))
	assert.True(t, Round3(d("12.3454")).Equal(d("12.345")))
}

func TestPercent(t *testing.T) {
	assert.True(t, Percent(d("19245.00"), d("25")).Equal(d("4811.25")))
	assert.True(t, Percent(d("19245.00"), d("0.2")).Equal(d("38.49")))
}

func TestClamp(t *testing.T) {
	lo, hi := d("50000"), d("1000000")
	assert.True(t, Clamp(d("38.49"), lo, hi).Equal(lo))
	assert.True(t, Clamp(d("2000000"), lo, hi).Equal(hi))
	assert.True(t, Clamp(d("60000.10"), lo, hi).Equal(d("60000.10")))
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "19245.00", FormatAmount(decimal.NewNullDecimal(d("19245"))))
	assert.Equal(t, "1.500", FormatWeight(decimal.NewNullDecimal(d("1.5"))))
	assert.Equal(t, "", FormatAmount(decimal.NullDecimal{}))
	assert.Equal(t, "", FormatWeight(decimal.NullDecimal{}))
}

func TestFormatDate(t *testing.T) {
	assert.Equal(t, "2024-03-01", FormatDate("2024-03-01"))
	assert.Equal(t, "01.03.2024", FormatDate("01.03.2024"))
	assert.Equal(t, "", FormatDate(""))

	_, err := ParseDate("2024-02-30")
	assert.Error(t, err)
}
