package reference

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/ginjaninja78/gtd-declaration-engine/internal/money"
	"github.com/ginjaninja78/gtd-declaration-engine/internal/types"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLite is a Gateway backed by a SQLite reference store. Tariffs and
// exchange rates live in tables; preference groups come from configuration.
type SQLite struct {
	db          *sqlx.DB
	preferences *PreferenceTable
}

// OpenSQLite opens (creating if needed) the store at path and applies the
// embedded migrations.
func OpenSQLite(ctx context.Context, path string, prefs *PreferenceTable) (*SQLite, error) {
	db, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite reference store: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite reference store: %w", err)
	}

	if err := migrate(ctx, db.DB); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLite{db: db, preferences: prefs}, nil
}

// migrate runs all pending migrations embedded in the binary.
func migrate(ctx context.Context, db *sql.DB) error {
	dir, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("open embedded migrations: %w", err)
	}

	provider, err := goose.NewProvider(goose.DialectSQLite3, db, dir)
	if err != nil {
		return fmt.Errorf("create goose provider: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("run goose up migrations: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// tariffRow is the scan target of tariff_rates.
type tariffRow struct {
	HSCode      string          `db:"hs_code"`
	Description string          `db:"description"`
	DutyRate    decimal.Decimal `db:"duty_rate"`
	VATRate     decimal.Decimal `db:"vat_rate"`
	ExciseRate  decimal.Decimal `db:"excise_rate"`
}

// rateRow is the scan target of exchange_rates.
type rateRow struct {
	Currency string          `db:"currency"`
	RateDate string          `db:"rate_date"`
	Rate     decimal.Decimal `db:"rate"`
}

// GetRate implements Gateway.
func (s *SQLite) GetRate(ctx context.Context, hsCode string) (types.RateQuote, error) {
	candidates := hsCandidates(hsCode)
	if len(candidates) == 0 {
		return types.RateQuote{}, fmt.Errorf("tariff for empty HS code: %w", ErrNotFound)
	}

	query, args, err := sqlx.In(
		`SELECT hs_code, description, duty_rate, vat_rate, excise_rate
		   FROM tariff_rates
		  WHERE hs_code IN (?)
		  ORDER BY length(hs_code) DESC
		  LIMIT 1`, candidates)
	if err != nil {
		return types.RateQuote{}, fmt.Errorf("build tariff query: %w", err)
	}

	var row tariffRow
	if err := s.db.GetContext(ctx, &row, s.db.Rebind(query), args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.RateQuote{}, fmt.Errorf("tariff for HS code %q: %w", hsCode, ErrNotFound)
		}
		return types.RateQuote{}, fmt.Errorf("query tariff for HS code %q: %w", hsCode, err)
	}

	source := types.SourceExact
	if row.HSCode != candidates[0] {
		source = types.SourceHeading
	}
	return types.RateQuote{
		HSCode:     candidates[0],
		DutyRate:   row.DutyRate,
		VATRate:    row.VATRate,
		ExciseRate: row.ExciseRate,
		Source:     source,
	}, nil
}

// GetExchangeRate implements Gateway.
func (s *SQLite) GetExchangeRate(ctx context.Context, currency string, date time.Time) (types.ExchangeRate, error) {
	code := normalizeCode(currency)
	var row rateRow

	if !date.IsZero() {
		err := s.db.GetContext(ctx, &row,
			`SELECT currency, rate_date, rate FROM exchange_rates WHERE currency = ? AND rate_date = ?`,
			code, dateKey(date).Format(money.DateLayout))
		switch {
		case err == nil:
			return row.toExchangeRate(types.SourceExact)
		case !errors.Is(err, sql.ErrNoRows):
			return types.ExchangeRate{}, fmt.Errorf("query exchange rate for %q: %w", code, err)
		}
	}

	err := s.db.GetContext(ctx, &row,
		`SELECT currency, rate_date, rate FROM exchange_rates WHERE currency = ? ORDER BY rate_date DESC LIMIT 1`,
		code)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.ExchangeRate{}, fmt.Errorf("exchange rate for %q: %w", code, ErrNotFound)
		}
		return types.ExchangeRate{}, fmt.Errorf("query latest exchange rate for %q: %w", code, err)
	}
	return row.toExchangeRate(types.SourceLatest)
}

func (r rateRow) toExchangeRate(source types.RateSource) (types.ExchangeRate, error) {
	day, err := money.ParseDate(r.RateDate)
	if err != nil {
		return types.ExchangeRate{}, fmt.Errorf("stored exchange rate date %q: %w", r.RateDate, err)
	}
	return types.ExchangeRate{
		Currency: r.Currency,
		Rate:     r.Rate,
		Date:     day,
		Source:   source,
	}, nil
}

// GetPreferenceGroup implements Gateway.
func (s *SQLite) GetPreferenceGroup(ctx context.Context, country string) (types.PreferenceGroup, error) {
	return s.preferences.GetPreferenceGroup(ctx, country)
}

// TariffImport is one row written by ImportTariffs.
type TariffImport struct {
	Quote       types.RateQuote
	Description string
}

// ImportTariffs upserts tariff rows in a single transaction and returns the
// number of rows written.
func (s *SQLite) ImportTariffs(ctx context.Context, rows []TariffImport) (int, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tariff import: %w", err)
	}
	defer tx.Rollback()

	for _, r := range rows {
		_, err := tx.NamedExecContext(ctx,
			`INSERT INTO tariff_rates (hs_code, description, duty_rate, vat_rate, excise_rate)
			 VALUES (:hs_code, :description, :duty_rate, :vat_rate, :excise_rate)
			 ON CONFLICT (hs_code) DO UPDATE SET
			   description = excluded.description,
			   duty_rate   = excluded.duty_rate,
			   vat_rate    = excluded.vat_rate,
			   excise_rate = excluded.excise_rate`,
			tariffRow{
				HSCode:      normalizeCode(r.Quote.HSCode),
				Description: r.Description,
				DutyRate:    r.Quote.DutyRate,
				VATRate:     r.Quote.VATRate,
				ExciseRate:  r.Quote.ExciseRate,
			})
		if err != nil {
			return 0, fmt.Errorf("upsert tariff %q: %w", r.Quote.HSCode, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit tariff import: %w", err)
	}
	return len(rows), nil
}

// ImportExchangeRates upserts exchange rates in a single transaction and
// returns the number of rows written.
func (s *SQLite) ImportExchangeRates(ctx context.Context, rates []types.ExchangeRate) (int, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin exchange rate import: %w", err)
	}
	defer tx.Rollback()

	for _, r := range rates {
		_, err := tx.NamedExecContext(ctx,
			`INSERT INTO exchange_rates (currency, rate_date, rate)
			 VALUES (:currency, :rate_date, :rate)
			 ON CONFLICT (currency, rate_date) DO UPDATE SET rate = excluded.rate`,
			rateRow{
				Currency: normalizeCode(r.Currency),
				RateDate: dateKey(r.Date).Format(money.DateLayout),
				Rate:     r.Rate,
			})
		if err != nil {
			return 0, fmt.Errorf("upsert exchange rate %s@%s: %w", r.Currency, r.Date.Format(money.DateLayout), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit exchange rate import: %w", err)
	}
	return len(rates), nil
}

// Tariffs lists all stored tariff rows ordered by HS code.
func (s *SQLite) Tariffs(ctx context.Context) ([]TariffImport, error) {
	var rows []tariffRow
	if err := s.db.SelectContext(ctx, &rows,
		`SELECT hs_code, description, duty_rate, vat_rate, excise_rate FROM tariff_rates ORDER BY hs_code`); err != nil {
		return nil, fmt.Errorf("list tariffs: %w", err)
	}
	out := make([]TariffImport, 0, len(rows))
	for _, r := range rows {
		out = append(out, TariffImport{
			Quote: types.RateQuote{
				HSCode:     r.HSCode,
				DutyRate:   r.DutyRate,
				VATRate:    r.VATRate,
				ExciseRate: r.ExciseRate,
			},
			Description: r.Description,
		})
	}
	return out, nil
}
