package reference

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"github.com/ginjaninja78/gtd-declaration-engine/internal/types"
)

type SQLiteGatewaySuite struct {
	suite.Suite
	store *SQLite
}

func TestSQLiteGatewaySuite(t *testing.T) {
	suite.Run(t, new(SQLiteGatewaySuite))
}

func (s *SQLiteGatewaySuite) SetupTest() {
	path := filepath.Join(s.T().TempDir(), "reference.db")
	store, err := OpenSQLite(context.Background(), path, NewPreferenceTable([]string{"KZ"}, []string{"TJ"}))
	s.Require().NoError(err)
	s.store = store

	n, err := store.ImportTariffs(context.Background(), []TariffImport{
		{Quote: types.RateQuote{HSCode: "8703220000", DutyRate: decimal.NewFromInt(25), VATRate: decimal.NewFromInt(12)}, Description: "Cars"},
		{Quote: types.RateQuote{HSCode: "2203", DutyRate: decimal.NewFromInt(10), VATRate: decimal.NewFromInt(12), ExciseRate: decimal.NewFromInt(20)}, Description: "Beer"},
	})
	s.Require().NoError(err)
	s.Equal(2, n)

	_, err = store.ImportExchangeRates(context.Background(), []types.ExchangeRate{
		{Currency: "USD", Rate: decimal.RequireFromString("12650.5"), Date: day(2024, 2, 29)},
		{Currency: "USD", Rate: decimal.RequireFromString("12700"), Date: day(2024, 3, 1)},
	})
	s.Require().NoError(err)
}

func (s *SQLiteGatewaySuite) TearDownTest() {
	s.Require().NoError(s.store.Close())
}

func (s *SQLiteGatewaySuite) TestGetRate() {
	ctx := context.Background()

	s.Run("exact code", func() {
		q, err := s.store.GetRate(ctx, "8703220000")
		s.Require().NoError(err)
		s.True(q.DutyRate.Equal(decimal.NewFromInt(25)))
		s.True(q.ExciseRate.IsZero())
		s.Equal(types.SourceExact, q.Source)
	})

	s.Run("heading match", func() {
		q, err := s.store.GetRate(ctx, "2203001000")
		s.Require().NoError(err)
		s.True(q.ExciseRate.Equal(decimal.NewFromInt(20)))
		s.Equal(types.SourceHeading, q.Source)
	})

	s.Run("unknown code", func() {
		_, err := s.store.GetRate(ctx, "0101210000")
		s.Require().ErrorIs(err, ErrNotFound)
	})
}

func (s *SQLiteGatewaySuite) TestGetExchangeRate() {
	ctx := context.Background()

	s.Run("exact date", func() {
		r, err := s.store.GetExchangeRate(ctx, "usd", day(2024, 2, 29))
		s.Require().NoError(err)
		s.True(r.Rate.Equal(decimal.RequireFromString("12650.5")))
		s.Equal(types.SourceExact, r.Source)
	})

	s.Run("latest for a date without a rate", func() {
		r, err := s.store.GetExchangeRate(ctx, "USD", day(2024, 4, 1))
		s.Require().NoError(err)
		s.True(r.Rate.Equal(decimal.NewFromInt(12700)))
		s.Equal(types.SourceLatest, r.Source)
		s.Equal(day(2024, 3, 1), r.Date)
	})

	s.Run("unknown currency", func() {
		_, err := s.store.GetExchangeRate(ctx, "EUR", time.Time{})
		s.Require().ErrorIs(err, ErrNotFound)
	})
}

func (s *SQLiteGatewaySuite) TestImportUpserts() {
	ctx := context.Background()

	_, err := s.store.ImportTariffs(ctx, []TariffImport{
		{Quote: types.RateQuote{HSCode: "8703220000", DutyRate: decimal.NewFromInt(30), VATRate: decimal.NewFromInt(12)}, Description: "Cars (2025)"},
	})
	s.Require().NoError(err)

	q, err := s.store.GetRate(ctx, "8703220000")
	s.Require().NoError(err)
	s.True(q.DutyRate.Equal(decimal.NewFromInt(30)))

	rows, err := s.store.Tariffs(ctx)
	s.Require().NoError(err)
	s.Len(rows, 2)
	s.Equal("2203", rows[0].Quote.HSCode)
	s.Equal("Cars (2025)", rows[1].Description)
}

func (s *SQLiteGatewaySuite) TestReopenKeepsData() {
	path := filepath.Join(s.T().TempDir(), "reopen.db")
	ctx := context.Background()

	first, err := OpenSQLite(ctx, path, nil)
	s.Require().NoError(err)
	_, err = first.ImportExchangeRates(ctx, []types.ExchangeRate{{Currency: "EUR", Rate: decimal.NewFromInt(13900), Date: day(2024, 3, 1)}})
	s.Require().NoError(err)
	s.Require().NoError(first.Close())

	second, err := OpenSQLite(ctx, path, nil)
	s.Require().NoError(err)
	defer second.Close()

	r, err := second.GetExchangeRate(ctx, "EUR", day(2024, 3, 1))
	s.Require().NoError(err)
	s.True(r.Rate.Equal(decimal.NewFromInt(13900)))

	g, err := second.GetPreferenceGroup(ctx, "KZ")
	s.Require().NoError(err)
	s.Equal(types.GroupMFN, g)
}
