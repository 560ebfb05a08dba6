// =============================================================================
// GTD Declaration Engine - Tariff Workbook Parser
// =============================================================================
//
// This module is responsible for parsing XLSX tariff workbooks that feed the
// reference data gateway. Each workbook row carries the rates for one HS code
// or HS heading:
//
//   | Column A   | Column B           | Column C | Column D | Column E   |
//   |------------|--------------------|----------|----------|------------|
//   | HS Code    | Description        | Duty %   | VAT %    | Excise %   |
//   | 8703220000 | Passenger cars     | 25       | 12       | 0          |
//   | 2203       | Beer made from malt| 10       | 12       | 20         |
//
// HS codes may be written with dots or spaces ("8703.22.00.00"); they are
// reduced to digits. Headings of 4, 6 or 8 digits are allowed so the gateway
// can resolve codes by longest prefix. Empty rate cells mean 0.
//
// Every non-hidden sheet (names not starting with "_") is read, in workbook
// order. A later row for the same code replaces an earlier one.
//
// =============================================================================

package xlsxparser

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/ginjaninja78/gtd-declaration-engine/internal/types"
)

// =============================================================================
// TARIFF TABLE STRUCTURE
// =============================================================================

// TariffTable is the parsed content of a tariff workbook.
type TariffTable struct {
	// SourceFile is the path to the workbook.
	SourceFile string

	// Rows are the tariff rows in workbook order, one per HS code.
	Rows []TariffRow
}

// TariffRow is one HS code with its rates.
type TariffRow struct {
	HSCode      string
	Description string
	Duty        decimal.Decimal
	VAT         decimal.Decimal
	Excise      decimal.Decimal

	// Sheet and Row locate the row for error messages (Row is 1-based).
	Sheet string
	Row   int
}

// Quote converts the row to a rate quote.
func (r TariffRow) Quote() types.RateQuote {
	return types.RateQuote{
		HSCode:     r.HSCode,
		DutyRate:   r.Duty,
		VATRate:    r.VAT,
		ExciseRate: r.Excise,
	}
}

// Quotes returns the table as rate quotes keyed by HS code.
func (t *TariffTable) Quotes() map[string]types.RateQuote {
	out := make(map[string]types.RateQuote, len(t.Rows))
	for _, row := range t.Rows {
		out[row.HSCode] = row.Quote()
	}
	return out
}

// =============================================================================
// WORKBOOK COLUMN CONFIGURATION
// =============================================================================

// WorkbookColumns defines which columns of the workbook carry which data.
// Column indices are 0-based (A=0, B=1, C=2, etc.)
type WorkbookColumns struct {
	HSCodeColumn      int
	DescriptionColumn int
	DutyColumn        int
	VATColumn         int
	ExciseColumn      int

	// DataStartRow is the row number where data begins (0-based).
	DataStartRow int
}

// DefaultWorkbookColumns returns the default column layout.
func DefaultWorkbookColumns() WorkbookColumns {
	return WorkbookColumns{
		HSCodeColumn:      0, // Column A
		DescriptionColumn: 1, // Column B
		DutyColumn:        2, // Column C
		VATColumn:         3, // Column D
		ExciseColumn:      4, // Column E
		DataStartRow:      1, // Row 2
	}
}

// =============================================================================
// PARSER FUNCTIONS
// =============================================================================

// Parse reads a tariff workbook with the default column layout.
func Parse(workbookPath string) (*TariffTable, error) {
	return ParseWithConfig(workbookPath, DefaultWorkbookColumns())
}

// ParseWithConfig reads a tariff workbook using a custom column layout.
//
// RETURNS:
//   - The tariff table with one row per HS code.
//   - An error if the file cannot be read or a row is malformed.
func ParseWithConfig(workbookPath string, columns WorkbookColumns) (*TariffTable, error) {
	f, err := excelize.OpenFile(workbookPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open tariff workbook: %w", err)
	}
	defer f.Close()

	table, err := ParseFile(f, columns)
	if err != nil {
		return nil, err
	}
	table.SourceFile = workbookPath
	return table, nil
}

// ParseFile reads an already opened workbook.
func ParseFile(f *excelize.File, columns WorkbookColumns) (*TariffTable, error) {
	table := &TariffTable{}
	index := make(map[string]int)

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("tariff workbook has no sheets")
	}

	for _, sheetName := range sheets {
		if strings.HasPrefix(sheetName, "_") {
			continue
		}

		rows, err := f.GetRows(sheetName)
		if err != nil {
			return nil, fmt.Errorf("failed to read rows of sheet '%s': %w", sheetName, err)
		}

		for i := columns.DataStartRow; i < len(rows); i++ {
			row := rows[i]
			if len(row) == 0 || isRowEmpty(row) {
				continue
			}

			parsed, err := parseRow(row, columns)
			if err != nil {
				return nil, fmt.Errorf("sheet '%s' row %d: %w", sheetName, i+1, err)
			}
			parsed.Sheet = sheetName
			parsed.Row = i + 1

			if pos, seen := index[parsed.HSCode]; seen {
				table.Rows[pos] = parsed
				continue
			}
			index[parsed.HSCode] = len(table.Rows)
			table.Rows = append(table.Rows, parsed)
		}
	}

	return table, nil
}

// parseRow extracts a TariffRow from a single row.
func parseRow(row []string, columns WorkbookColumns) (TariffRow, error) {
	getCell := func(index int) string {
		if index < len(row) {
			return strings.TrimSpace(row[index])
		}
		return ""
	}

	code, err := NormalizeHSCode(getCell(columns.HSCodeColumn))
	if err != nil {
		return TariffRow{}, err
	}

	out := TariffRow{
		HSCode:      code,
		Description: getCell(columns.DescriptionColumn),
	}

	rates := []struct {
		name string
		cell string
		dst  *decimal.Decimal
	}{
		{"duty", getCell(columns.DutyColumn), &out.Duty},
		{"vat", getCell(columns.VATColumn), &out.VAT},
		{"excise", getCell(columns.ExciseColumn), &out.Excise},
	}
	for _, r := range rates {
		v, err := parseRate(r.cell)
		if err != nil {
			return TariffRow{}, fmt.Errorf("%s rate: %w", r.name, err)
		}
		*r.dst = v
	}

	return out, nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// NormalizeHSCode strips dots and spaces from an HS code and checks that the
// result is a 4, 6, 8 or 10 digit heading.
func NormalizeHSCode(raw string) (string, error) {
	code := strings.Map(func(r rune) rune {
		if r == '.' || r == ' ' {
			return -1
		}
		return r
	}, raw)

	if code == "" {
		return "", fmt.Errorf("missing HS code")
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return "", fmt.Errorf("HS code %q is not numeric", raw)
		}
	}
	switch len(code) {
	case 4, 6, 8, 10:
		return code, nil
	}
	return "", fmt.Errorf("HS code %q must have 4, 6, 8 or 10 digits", raw)
}

// parseRate parses a percentage cell. A trailing "%" and a decimal comma are
// accepted; empty means 0.
func parseRate(cell string) (decimal.Decimal, error) {
	cell = strings.TrimSuffix(strings.TrimSpace(cell), "%")
	cell = strings.ReplaceAll(strings.TrimSpace(cell), ",", ".")
	if cell == "" {
		return decimal.Zero, nil
	}
	v, err := decimal.NewFromString(cell)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid percentage %q", cell)
	}
	if v.IsNegative() {
		return decimal.Zero, fmt.Errorf("negative percentage %q", cell)
	}
	return v, nil
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

// =============================================================================
// WORKBOOK GENERATION
// =============================================================================

// headerRow is written by Write as the first row of the tariff sheet.
var headerRow = []interface{}{"HS Code", "Description", "Duty %", "VAT %", "Excise %"}

// Write stores a tariff table as a single-sheet workbook in the default
// layout. It is used to export the SQLite store and to build fixtures.
func Write(path string, rows []TariffRow) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	if err := f.SetSheetRow(sheet, "A1", &headerRow); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := []interface{}{
			row.HSCode,
			row.Description,
			row.Duty.String(),
			row.VAT.String(),
			row.Excise.String(),
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save tariff workbook: %w", err)
	}
	return nil
}
