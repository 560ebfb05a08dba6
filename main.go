// =============================================================================
// GTD Declaration Engine - Main Entry Point
// =============================================================================
//
// USAGE:
//   gtd check     - Validate a declaration and print the report
//   gtd export    - Export a declaration as XML or print model
//   gtd merge     - Merge document extractions into a declaration form
//   gtd process   - Process all forms in the input directory
//   gtd serve     - Start the HTTP API
//   gtd tariffs   - Import reference data into SQLite
//   gtd version   - Display the application version
//
// ARCHITECTURE:
//   - cmd/       : CLI command definitions (Cobra)
//   - internal/  : declaration model, validation, correction, tariff
//                  calculation, adapters, reference data, pipeline, HTTP API
//   - pkg/       : file management shared by batch processing
//
// =============================================================================

package main

import (
	"github.com/ginjaninja78/gtd-declaration-engine/cmd"
)

func main() {
	cmd.Execute()
}
