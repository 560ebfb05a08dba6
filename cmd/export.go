// =============================================================================
// GTD Declaration Engine - Export Command
// =============================================================================
//
// COMMAND USAGE:
//   gtd export --file declaration.json [--format xml|print] [--out path]
//
// FORMATS:
//   xml   : the customs XML document (default)
//   print : the print-form model as JSON, split into main and continuation
//           sheets
//
// The declaration is validated, corrected and calculated before export.
// Findings are logged; use 'gtd check' to see the full report.
//
// =============================================================================

package cmd

import (
	"bytes"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/gtd-declaration-engine/internal/adapter"
	"github.com/ginjaninja78/gtd-declaration-engine/internal/xmlwriter"
)

// Export formats.
const (
	formatXML   = "xml"
	formatPrint = "print"
)

var (
	exportFile   string
	exportFormat string
	exportOut    string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a processed declaration as XML or print model",
	RunE: func(cmd *cobra.Command, args []string) error {
		if exportFormat != formatXML && exportFormat != formatPrint {
			return fmt.Errorf("unknown format %q (want %s or %s)", exportFormat, formatXML, formatPrint)
		}

		ctx := cmd.Context()
		result, err := processFile(ctx, exportFile)
		if err != nil {
			return err
		}
		if !result.Report.IsValid {
			logger.WarnContext(ctx, "exporting declaration with errors",
				"file", exportFile,
				"errors", len(result.Report.Errors),
			)
		}

		var buf bytes.Buffer
		switch exportFormat {
		case formatXML:
			doc, err := xmlwriter.Generate(result.Declaration)
			if err != nil {
				return fmt.Errorf("failed to generate XML: %w", err)
			}
			buf.Write(doc)
		case formatPrint:
			if err := writeJSON(&buf, adapter.CanonicalToPrintModel(result.Declaration)); err != nil {
				return err
			}
		}

		if exportOut == "" {
			_, err := cmd.OutOrStdout().Write(buf.Bytes())
			return err
		}
		if err := os.WriteFile(exportOut, buf.Bytes(), 0o644); err != nil {
			return fmt.Errorf("failed to write export: %w", err)
		}
		logger.InfoContext(ctx, "wrote export", "format", exportFormat, "output", exportOut)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringVarP(&exportFile, "file", "f", "", "Path to the declaration form JSON")
	exportCmd.Flags().StringVar(&exportFormat, "format", formatXML, "Export format: xml or print")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "Output path (stdout when empty)")
	_ = exportCmd.MarkFlagRequired("file")
}
