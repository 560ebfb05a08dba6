package reference

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"github.com/ginjaninja78/gtd-declaration-engine/internal/types"
)

type MemoryGatewaySuite struct {
	suite.Suite
	gw *Memory
}

func TestMemoryGatewaySuite(t *testing.T) {
	suite.Run(t, new(MemoryGatewaySuite))
}

func (s *MemoryGatewaySuite) SetupTest() {
	s.gw = NewMemory(NewPreferenceTable([]string{"KZ", "RU"}, []string{"TJ", "uz "}))
	s.gw.PutRates(
		types.RateQuote{HSCode: "8703220000", DutyRate: decimal.NewFromInt(25), VATRate: decimal.NewFromInt(12)},
		types.RateQuote{HSCode: "2203", DutyRate: decimal.NewFromInt(10), VATRate: decimal.NewFromInt(12), ExciseRate: decimal.NewFromInt(20)},
		types.RateQuote{HSCode: "220300", DutyRate: decimal.NewFromInt(5), VATRate: decimal.NewFromInt(12)},
	)
	s.gw.PutExchangeRates(
		types.ExchangeRate{Currency: "usd", Rate: decimal.RequireFromString("12600"), Date: day(2024, 2, 28)},
		types.ExchangeRate{Currency: "USD", Rate: decimal.RequireFromString("12700"), Date: day(2024, 3, 1)},
		types.ExchangeRate{Currency: "USD", Rate: decimal.RequireFromString("12650"), Date: day(2024, 2, 29)},
	)
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (s *MemoryGatewaySuite) TestGetRate() {
	ctx := context.Background()

	s.Run("exact code", func() {
		q, err := s.gw.GetRate(ctx, "8703220000")
		s.Require().NoError(err)
		s.True(q.DutyRate.Equal(decimal.NewFromInt(25)))
		s.Equal(types.SourceExact, q.Source)
	})

	s.Run("longest heading wins", func() {
		q, err := s.gw.GetRate(ctx, "2203001000")
		s.Require().NoError(err)
		s.True(q.DutyRate.Equal(decimal.NewFromInt(5)))
		s.Equal("2203001000", q.HSCode)
		s.Equal(types.SourceHeading, q.Source)
	})

	s.Run("unknown code", func() {
		_, err := s.gw.GetRate(ctx, "9999999999")
		s.Require().ErrorIs(err, ErrNotFound)
	})

	s.Run("empty code", func() {
		_, err := s.gw.GetRate(ctx, "")
		s.Require().ErrorIs(err, ErrNotFound)
	})
}

func (s *MemoryGatewaySuite) TestGetExchangeRate() {
	ctx := context.Background()

	s.Run("exact date", func() {
		r, err := s.gw.GetExchangeRate(ctx, "USD", day(2024, 2, 29))
		s.Require().NoError(err)
		s.True(r.Rate.Equal(decimal.NewFromInt(12650)))
		s.Equal(types.SourceExact, r.Source)
	})

	s.Run("missing date falls back to latest", func() {
		r, err := s.gw.GetExchangeRate(ctx, "usd", day(2024, 3, 15))
		s.Require().NoError(err)
		s.True(r.Rate.Equal(decimal.NewFromInt(12700)))
		s.Equal(day(2024, 3, 1), r.Date)
		s.Equal(types.SourceLatest, r.Source)
	})

	s.Run("zero date asks for latest", func() {
		r, err := s.gw.GetExchangeRate(ctx, "USD", time.Time{})
		s.Require().NoError(err)
		s.True(r.Rate.Equal(decimal.NewFromInt(12700)))
	})

	s.Run("replacing a day keeps one entry", func() {
		s.gw.PutExchangeRates(types.ExchangeRate{Currency: "USD", Rate: decimal.NewFromInt(1), Date: day(2024, 2, 29)})
		r, err := s.gw.GetExchangeRate(ctx, "USD", day(2024, 2, 29))
		s.Require().NoError(err)
		s.True(r.Rate.Equal(decimal.NewFromInt(1)))
		s.Len(s.gw.rates["USD"], 3)
	})

	s.Run("unknown currency", func() {
		_, err := s.gw.GetExchangeRate(ctx, "XYZ", day(2024, 3, 1))
		s.Require().ErrorIs(err, ErrNotFound)
	})
}

func (s *MemoryGatewaySuite) TestGetPreferenceGroup() {
	ctx := context.Background()
	tests := []struct {
		country string
		want    types.PreferenceGroup
	}{
		{"KZ", types.GroupEAEU},
		{" ru", types.GroupEAEU},
		{"TJ", types.GroupCIS},
		{"UZ", types.GroupCIS},
		{"CN", types.GroupMFN},
		{"", types.GroupMFN},
	}
	for _, tt := range tests {
		g, err := s.gw.GetPreferenceGroup(ctx, tt.country)
		s.Require().NoError(err)
		s.Equal(tt.want, g, tt.country)
	}
}

func (s *MemoryGatewaySuite) TestEAEUTakesPrecedenceOverCIS() {
	table := NewPreferenceTable([]string{"KZ"}, []string{"KZ", "TJ"})
	s.Equal(types.GroupEAEU, table.Group("KZ"))
	s.Equal(types.GroupCIS, table.Group("TJ"))

	var nilTable *PreferenceTable
	s.Equal(types.GroupMFN, nilTable.Group("KZ"))
}
