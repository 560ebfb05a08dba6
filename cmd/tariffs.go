// =============================================================================
// GTD Declaration Engine - Tariffs Command
// =============================================================================
//
// COMMAND USAGE:
//   gtd tariffs import --db reference.db [--workbook tariffs.xlsx] [--rates rates.csv]
//
// Imports tariff rows from an XLSX workbook and exchange rates from a CSV
// file into the SQLite reference store. Existing rows are updated in place.
// Migrations run when the database is opened.
//
// =============================================================================

package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/gtd-declaration-engine/internal/csvparser"
	"github.com/ginjaninja78/gtd-declaration-engine/internal/reference"
	"github.com/ginjaninja78/gtd-declaration-engine/internal/xlsxparser"
)

var (
	tariffsDB       string
	tariffsWorkbook string
	tariffsRates    string
)

var tariffsCmd = &cobra.Command{
	Use:   "tariffs",
	Short: "Manage the SQLite reference store",
}

var tariffsImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Import tariff rates and exchange rates into SQLite",
	RunE: func(cmd *cobra.Command, args []string) error {
		if tariffsWorkbook == "" && tariffsRates == "" {
			return errors.New("nothing to import: give --workbook, --rates or both")
		}

		dsn := tariffsDB
		if dsn == "" {
			dsn = cfg.Reference.DSN
		}
		if dsn == "" {
			return errors.New("no database: give --db or set reference.dsn")
		}

		ctx := cmd.Context()
		store, err := reference.OpenSQLite(ctx, dsn, reference.PreferencesFromConfig(cfg))
		if err != nil {
			return err
		}
		defer store.Close()

		out := cmd.OutOrStdout()

		if tariffsWorkbook != "" {
			table, err := xlsxparser.Parse(tariffsWorkbook)
			if err != nil {
				return err
			}
			rows := make([]reference.TariffImport, 0, len(table.Rows))
			for _, row := range table.Rows {
				rows = append(rows, reference.TariffImport{Quote: row.Quote(), Description: row.Description})
			}
			n, err := store.ImportTariffs(ctx, rows)
			if err != nil {
				return err
			}
			logger.InfoContext(ctx, "imported tariffs", "workbook", tariffsWorkbook, "rows", n)
			fmt.Fprintf(out, "Tariff rates:    %d\n", n)
		}

		if tariffsRates != "" {
			rates, err := csvparser.ParseFile(tariffsRates, csvparser.DefaultSettings())
			if err != nil {
				return err
			}
			n, err := store.ImportExchangeRates(ctx, rates)
			if err != nil {
				return err
			}
			logger.InfoContext(ctx, "imported exchange rates", "file", tariffsRates, "rows", n)
			fmt.Fprintf(out, "Exchange rates:  %d\n", n)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(tariffsCmd)
	tariffsCmd.AddCommand(tariffsImportCmd)

	tariffsImportCmd.Flags().StringVar(&tariffsDB, "db", "", "SQLite database path (default reference.dsn)")
	tariffsImportCmd.Flags().StringVar(&tariffsWorkbook, "workbook", "", "Tariff workbook (.xlsx)")
	tariffsImportCmd.Flags().StringVar(&tariffsRates, "rates", "", "Exchange rate file (currency,date,rate CSV)")
}
