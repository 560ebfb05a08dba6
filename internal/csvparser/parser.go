// =============================================================================
// GTD Declaration Engine - Exchange Rate CSV Parser
// =============================================================================
//
// This module is responsible for parsing exchange-rate files published by the
// central bank (or exported from an accounting system). The file has a header
// row naming the columns, in any order:
//
//   currency,date,rate
//   USD,2024-03-01,12545.60
//   EUR,2024-03-01,13590.12
//
// FEATURES:
//   - Delimiter is configurable (comma, semicolon, pipe, tab)
//   - Header names are case-insensitive; "code" and "ccy" are accepted for
//     currency, "rate_date" for date, "value" for rate
//   - Decimal commas are accepted in the rate column
//   - Errors carry the 1-based line number
//
// =============================================================================

package csvparser

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ginjaninja78/gtd-declaration-engine/internal/money"
	"github.com/ginjaninja78/gtd-declaration-engine/internal/types"
)

// =============================================================================
// SETTINGS
// =============================================================================

// Settings controls how the rate file is read.
type Settings struct {
	// Delimiter is ",", ";", "|" or "tab". Default: ",".
	Delimiter string
}

// DefaultSettings returns comma-separated settings.
func DefaultSettings() Settings {
	return Settings{Delimiter: ","}
}

// =============================================================================
// PARSE ERRORS
// =============================================================================

// LineError reports a malformed line.
type LineError struct {
	Line   int
	Reason string
}

func (e *LineError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Reason)
}

// =============================================================================
// PARSER FUNCTIONS
// =============================================================================

// ParseFile reads an exchange-rate CSV file.
func ParseFile(filePath string, settings Settings) ([]types.ExchangeRate, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	rates, err := Parse(bufio.NewReader(file), settings)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filePath, err)
	}
	return rates, nil
}

// Parse reads exchange rates from r.
//
// RETURNS:
//   - The rates in file order, currencies uppercased, dates at UTC midnight.
//   - An error for a missing header column or the first malformed line.
func Parse(r io.Reader, settings Settings) ([]types.ExchangeRate, error) {
	csvReader := csv.NewReader(r)
	configureReader(csvReader, settings)

	header, err := csvReader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("CSV file is empty")
		}
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	cols, err := locateColumns(header)
	if err != nil {
		return nil, err
	}

	var rates []types.ExchangeRate
	for {
		record, err := csvReader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV: %w", err)
		}
		if isRowEmpty(record) {
			continue
		}
		line, _ := csvReader.FieldPos(0)

		rate, err := parseRecord(record, cols)
		if err != nil {
			return nil, &LineError{Line: line, Reason: err.Error()}
		}
		rates = append(rates, rate)
	}

	return rates, nil
}

// configureReader configures the CSV reader based on the settings.
func configureReader(reader *csv.Reader, settings Settings) {
	switch settings.Delimiter {
	case "\\t", "tab", "TAB":
		reader.Comma = '\t'
	case "|", "pipe", "PIPE":
		reader.Comma = '|'
	case ";", "semicolon":
		reader.Comma = ';'
	default:
		reader.Comma = ','
	}

	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
}

// columns holds the positions of the required columns.
type columns struct {
	currency, date, rate int
}

// locateColumns finds the required columns in the header row.
func locateColumns(header []string) (columns, error) {
	cols := columns{currency: -1, date: -1, rate: -1}
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))) {
		case "currency", "code", "ccy":
			cols.currency = i
		case "date", "rate_date":
			cols.date = i
		case "rate", "value":
			cols.rate = i
		}
	}

	var missing []string
	if cols.currency < 0 {
		missing = append(missing, "currency")
	}
	if cols.date < 0 {
		missing = append(missing, "date")
	}
	if cols.rate < 0 {
		missing = append(missing, "rate")
	}
	if len(missing) > 0 {
		return cols, fmt.Errorf("header is missing column(s): %s", strings.Join(missing, ", "))
	}
	return cols, nil
}

// parseRecord converts one CSV record to an exchange rate.
func parseRecord(record []string, cols columns) (types.ExchangeRate, error) {
	get := func(i int) string {
		if i < len(record) {
			return strings.TrimSpace(record[i])
		}
		return ""
	}

	currency := strings.ToUpper(get(cols.currency))
	if len(currency) != 3 {
		return types.ExchangeRate{}, fmt.Errorf("invalid currency %q", currency)
	}

	date, err := money.ParseDate(get(cols.date))
	if err != nil {
		return types.ExchangeRate{}, fmt.Errorf("invalid date %q", get(cols.date))
	}

	raw := strings.ReplaceAll(get(cols.rate), ",", ".")
	rate, err := decimal.NewFromString(raw)
	if err != nil {
		return types.ExchangeRate{}, fmt.Errorf("invalid rate %q", get(cols.rate))
	}
	if !rate.IsPositive() {
		return types.ExchangeRate{}, fmt.Errorf("rate must be positive, got %s", rate)
	}

	return types.ExchangeRate{
		Currency: currency,
		Rate:     rate,
		Date:     date.UTC(),
	}, nil
}

// isRowEmpty checks if a row contains only empty cells.
func isRowEmpty(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// Write renders rates in the canonical comma-separated layout.
func Write(w io.Writer, rates []types.ExchangeRate) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"currency", "date", "rate"}); err != nil {
		return err
	}
	for _, r := range rates {
		if err := cw.Write([]string{r.Currency, r.Date.Format(money.DateLayout), r.Rate.String()}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
