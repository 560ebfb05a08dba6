// =============================================================================
// GTD Declaration Engine - Process Command
// =============================================================================
//
// This file defines the 'process' command, which runs every declaration form
// in the input directory through the engine and writes the exports.
//
// COMMAND USAGE:
//   gtd process [flags]
//
// FLAGS:
//   --dry-run : Process and report without writing or archiving anything
//   --file    : Process a single file instead of scanning the input directory
//   --pattern : Glob for input files (default *.json)
//
// PROCESSING PIPELINE:
//   1. Prepare the input, output and archive directories
//   2. Discover form files in the input directory
//   3. Build the engine over the configured reference data
//   4. For each file (concurrently):
//      a. Decode the form
//      b. Validate, correct and calculate payments
//      c. Write the XML export and the JSON report
//      d. Archive the input file
//   5. Print the summary and write the summary log
//
// =============================================================================

package cmd

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/gtd-declaration-engine/internal/pipeline"
	"github.com/ginjaninja78/gtd-declaration-engine/pkg/utils"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

// dryRun processes files without writing output files.
var dryRun bool

// filePath is a single file to process.
var filePath string

// pattern selects input files in the input directory.
var pattern string

// =============================================================================
// PROCESS COMMAND DEFINITION
// =============================================================================

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Process declaration forms from the input directory",
	Long: `The process command scans the input directory for declaration form JSON
files and runs each one through validation, auto-correction and payment
calculation.

Processing is done concurrently. Each file is processed independently, and
errors in one file do not affect the processing of others.

On successful processing:
  - The XML export and the JSON report are placed in the output directory
  - The original form is moved to the archive directory
  - A summary log is written to the output directory

On error:
  - The original form remains in the input directory
  - Processing continues for other files`,

	RunE: func(cmd *cobra.Command, args []string) error {
		return runProcess(cmd)
	},
}

func init() {
	rootCmd.AddCommand(processCmd)

	processCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Process without writing output files")
	processCmd.Flags().StringVar(&filePath, "file", "", "Process only this file")
	processCmd.Flags().StringVar(&pattern, "pattern", "*.json", "Glob for input files")
}

// =============================================================================
// MAIN PROCESSING FUNCTION
// =============================================================================

// runProcess orchestrates batch processing.
func runProcess(cmd *cobra.Command) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	startTime := time.Now()

	fmt.Fprintln(out, "=== GTD Declaration Engine ===")

	// =========================================================================
	// STEP 1: PREPARE DIRECTORIES
	// =========================================================================

	fm := utils.NewFileManager(cfg.InputDir, cfg.OutputDir, cfg.ArchiveDir, cfg.FileNameFormat)
	if !dryRun {
		if err := fm.EnsureDirectories(); err != nil {
			return fmt.Errorf("failed to prepare directories: %w", err)
		}
	}

	// =========================================================================
	// STEP 2: DISCOVER INPUT FILES
	// =========================================================================

	var inputFiles []string
	if filePath != "" {
		inputFiles = []string{filePath}
	} else {
		files, err := fm.DiscoverInputFiles(pattern)
		if err != nil {
			return fmt.Errorf("failed to discover input files: %w", err)
		}
		inputFiles = files
	}

	if len(inputFiles) == 0 {
		fmt.Fprintln(out, "No declaration forms found in the input directory.")
		return nil
	}
	fmt.Fprintf(out, "Found %d file(s) to process\n", len(inputFiles))

	// =========================================================================
	// STEP 3: BUILD ENGINE
	// =========================================================================

	engine, closer, err := newEngine(ctx, nil)
	if err != nil {
		return err
	}
	defer closer.Close()

	// =========================================================================
	// STEP 4: PROCESS FILES
	// =========================================================================

	if dryRun {
		return dryRunFiles(cmd, engine, inputFiles)
	}

	batch := pipeline.NewBatch(engine, fm, cfg.MaxConcurrency)
	results, runErr := batch.Run(ctx, inputFiles)

	for _, result := range results {
		name := filepath.Base(result.FilePath)
		if result.Success {
			fmt.Fprintf(out, "  ✓ %s -> %s (%d error(s), %d warning(s))\n",
				name, filepath.Base(result.OutputFile),
				len(result.Result.Report.Errors), len(result.Result.Report.Warnings))
			continue
		}
		if result.Error != nil {
			fmt.Fprintf(out, "  ✗ %s: %v\n", name, result.Error)
		}
	}

	// =========================================================================
	// STEP 5: SUMMARY
	// =========================================================================

	summary := pipeline.Summarize(results, startTime, time.Now())

	fmt.Fprintln(out, "\n=== Processing Complete ===")
	fmt.Fprintf(out, "Total files:     %d\n", summary.TotalFiles)
	fmt.Fprintf(out, "Successful:      %d\n", summary.SuccessfulFiles)
	fmt.Fprintf(out, "Failed:          %d\n", summary.FailedFiles)
	fmt.Fprintf(out, "Items:           %d\n", summary.TotalItems)
	fmt.Fprintf(out, "Time elapsed:    %s\n", summary.EndTime.Sub(summary.StartTime).Round(time.Millisecond))

	logPath, err := utils.WriteSummaryLog(summary, cfg.OutputDir)
	if err != nil {
		logger.WarnContext(ctx, "failed to write summary log", "error", err)
	} else {
		fmt.Fprintf(out, "Summary log:     %s\n", logPath)
	}

	return runErr
}

// dryRunFiles processes each file and prints its findings without writing.
func dryRunFiles(cmd *cobra.Command, engine *pipeline.Engine, files []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return err
		}

		name := filepath.Base(path)
		form, err := pipeline.ReadForm(path)
		if err != nil {
			fmt.Fprintf(out, "  ✗ %s: %v\n", name, err)
			continue
		}
		result, err := engine.ProcessForm(ctx, form)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "  • %s: valid=%t, %d error(s), %d warning(s), %d correction(s)\n",
			name, result.Report.IsValid,
			len(result.Report.Errors), len(result.Report.Warnings), len(result.Report.Corrections))
	}
	return nil
}
