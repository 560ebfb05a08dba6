// =============================================================================
// GTD Declaration Engine - Merge Command
// =============================================================================
//
// COMMAND USAGE:
//   gtd merge invoice.json packing.json cmr.json [--provenance]
//
// Each argument is one extraction: {"source", "header", "items"} with
// confidence-scored values. The merged declaration form is printed; with
// --provenance the output is {"form", "provenance"}.
//
// =============================================================================

package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/gtd-declaration-engine/internal/extraction"
	"github.com/ginjaninja78/gtd-declaration-engine/internal/httpapi"
)

var withProvenance bool

var mergeCmd = &cobra.Command{
	Use:   "merge extraction.json...",
	Short: "Merge document extractions into one declaration form",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		extractions := make([]extraction.Extraction, 0, len(args))
		for _, path := range args {
			e, err := readExtraction(path)
			if err != nil {
				return err
			}
			extractions = append(extractions, e)
		}

		form, prov := extraction.Merge(extractions...)
		for _, key := range prov.Unknown {
			logger.WarnContext(cmd.Context(), "dropped unknown extraction key", "key", key)
		}

		if withProvenance {
			return writeJSON(cmd.OutOrStdout(), httpapi.MergeResponse{Form: form, Provenance: prov})
		}
		return writeJSON(cmd.OutOrStdout(), form)
	},
}

func init() {
	rootCmd.AddCommand(mergeCmd)

	mergeCmd.Flags().BoolVar(&withProvenance, "provenance", false, "Include the source of every merged value")
}

// readExtraction decodes one extraction file. An extraction without a source
// is named after its file.
func readExtraction(path string) (extraction.Extraction, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return extraction.Extraction{}, fmt.Errorf("failed to read extraction: %w", err)
	}

	var e extraction.Extraction
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&e); err != nil {
		return extraction.Extraction{}, fmt.Errorf("failed to decode extraction %s: %w", filepath.Base(path), err)
	}
	if e.Source == "" {
		e.Source = filepath.Base(path)
	}
	return e, nil
}
