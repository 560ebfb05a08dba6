package validation

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ginjaninja78/gtd-declaration-engine/internal/types"
)

// =============================================================================
// VALIDATION RESULT
// =============================================================================

// Result splits findings by severity.
type Result struct {
	// IsValid is true if there are no error findings.
	IsValid bool `json:"is_valid"`

	Errors   []types.Finding `json:"errors"`
	Warnings []types.Finding `json:"warnings"`
}

// Summarize splits findings by severity, keeping their relative order.
// Errors and Warnings are never nil so they serialize as empty arrays.
func Summarize(findings []types.Finding) Result {
	r := Result{
		IsValid:  true,
		Errors:   []types.Finding{},
		Warnings: []types.Finding{},
	}
	for _, f := range findings {
		if f.Severity == types.SeverityError {
			r.Errors = append(r.Errors, f)
			r.IsValid = false
			continue
		}
		r.Warnings = append(r.Warnings, f)
	}
	return r
}

// =============================================================================
// FINDING FORMATTING
// =============================================================================

// FormatFindings formats findings for display or logging.
func FormatFindings(findings []types.Finding) string {
	if len(findings) == 0 {
		return "No validation findings."
	}

	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("Validation completed with %d finding(s):\n\n", len(findings)))
	for i, f := range findings {
		builder.WriteString(fmt.Sprintf("%d. %s\n", i+1, f.String()))
	}
	return builder.String()
}

// WriteFindingsLog writes findings to a text file with a timestamped header.
func WriteFindingsLog(findings []types.Finding, filePath string) error {
	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("failed to create findings log: %w", err)
	}
	defer file.Close()

	r := Summarize(findings)
	writer := bufio.NewWriter(file)
	fmt.Fprintf(writer, "Validation report generated %s\n", time.Now().UTC().Format(time.RFC3339))
	fmt.Fprintf(writer, "Errors: %d, Warnings: %d\n\n", len(r.Errors), len(r.Warnings))
	writer.WriteString(FormatFindings(findings))

	if err := writer.Flush(); err != nil {
		return fmt.Errorf("failed to write findings log: %w", err)
	}
	return nil
}
