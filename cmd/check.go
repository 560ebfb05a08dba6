// =============================================================================
// GTD Declaration Engine - Check Command
// =============================================================================
//
// COMMAND USAGE:
//   gtd check --file declaration.json [--strict] [--text] [--findings-log path]
//
// OUTPUT:
//   The report document as JSON: the corrected declaration form, the
//   validation report (errors, warnings, corrections) and the payments.
//   With --text, a numbered list of findings instead.
//
// EXIT CODE:
//   0 regardless of findings. With --strict, 1 when the report has errors.
//
// =============================================================================

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/gtd-declaration-engine/internal/validation"
)

// checkFile is the form JSON file to check.
var checkFile string

// strict makes error findings fail the command.
var strict bool

var (
	textOutput  bool
	findingsLog string
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate a declaration and print the report",
	Long: `Runs a declaration form through validation, auto-correction and payment
calculation and prints the resulting report. Findings are reported in the
output, not as a command failure, unless --strict is given.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		result, err := processFile(cmd.Context(), checkFile)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if textOutput {
			fmt.Fprintln(out, validation.FormatFindings(result.Findings()))
		} else if err := writeJSON(out, result.Document()); err != nil {
			return err
		}

		if findingsLog != "" {
			if err := validation.WriteFindingsLog(result.Findings(), findingsLog); err != nil {
				return err
			}
		}

		if strict && !result.Report.IsValid {
			return fmt.Errorf("declaration has %d error finding(s)", len(result.Report.Errors))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)

	checkCmd.Flags().StringVarP(&checkFile, "file", "f", "", "Path to the declaration form JSON")
	checkCmd.Flags().BoolVar(&strict, "strict", false, "Exit with status 1 when the declaration has errors")
	checkCmd.Flags().BoolVar(&textOutput, "text", false, "Print findings as text instead of the JSON report")
	checkCmd.Flags().StringVar(&findingsLog, "findings-log", "", "Also write the findings to this text file")
	_ = checkCmd.MarkFlagRequired("file")
}
