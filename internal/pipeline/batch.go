package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ginjaninja78/gtd-declaration-engine/internal/adapter"
	"github.com/ginjaninja78/gtd-declaration-engine/internal/xmlwriter"
	"github.com/ginjaninja78/gtd-declaration-engine/pkg/utils"
)

// FileResult represents the outcome of processing one form file.
type FileResult struct {
	// FilePath is the path to the input file that was processed.
	FilePath string

	// OutputFile and ReportFile are empty if processing failed.
	OutputFile  string
	ReportFile  string
	ArchivePath string

	// Success indicates whether the exports were written. A declaration with
	// error findings is still a success: the report carries the findings.
	Success bool

	// Error is the reason the file could not be processed.
	Error error

	Result Result

	ProcessingTime time.Duration
}

// Batch processes form files from the input directory.
type Batch struct {
	engine      *Engine
	files       *utils.FileManager
	concurrency int
	xmlOptions  xmlwriter.GenerateOptions
}

// NewBatch creates a batch processor. concurrency bounds the number of files
// processed at once.
func NewBatch(engine *Engine, files *utils.FileManager, concurrency int) *Batch {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Batch{
		engine:      engine,
		files:       files,
		concurrency: concurrency,
		xmlOptions:  xmlwriter.DefaultGenerateOptions(),
	}
}

// Run processes every file concurrently. Results are in input order; one
// failing file does not stop the others.
func (b *Batch) Run(ctx context.Context, paths []string) ([]FileResult, error) {
	results := make([]FileResult, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)
	for i, path := range paths {
		results[i].FilePath = path
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = b.ProcessFile(gctx, path)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}

// ProcessFile runs one form file through the engine and writes its exports.
//
// PROCESSING STEPS:
//  1. Read and decode the form JSON
//  2. Assign an id when the form has none
//  3. Process the declaration
//  4. Write the XML export and the JSON report
//  5. Archive the input file
func (b *Batch) ProcessFile(ctx context.Context, path string) FileResult {
	startTime := time.Now()
	result := FileResult{FilePath: path}
	logger := b.engine.logger.With("file", filepath.Base(path))

	// =========================================================================
	// STEP 1: READ FORM
	// =========================================================================

	form, err := ReadForm(path)
	if err != nil {
		result.Error = err
		return result
	}

	// =========================================================================
	// STEP 2: ASSIGN ID
	// =========================================================================

	if form.ID == nil || *form.ID == "" {
		form.ID = adapter.Ref(uuid.NewString())
		logger.DebugContext(ctx, "assigned declaration id", "id", *form.ID)
	}

	// =========================================================================
	// STEP 3: PROCESS DECLARATION
	// =========================================================================

	processed, err := b.engine.ProcessForm(ctx, form)
	if err != nil {
		result.Error = fmt.Errorf("failed to process declaration: %w", err)
		return result
	}
	result.Result = processed

	// =========================================================================
	// STEP 4: WRITE EXPORTS
	// =========================================================================

	doc, err := xmlwriter.GenerateModel(adapter.CanonicalToXMLModel(processed.Declaration), b.xmlOptions)
	if err != nil {
		result.Error = fmt.Errorf("failed to generate XML: %w", err)
		return result
	}

	name := b.files.OutputFileName(map[string]string{
		"id":   processed.Declaration.ID,
		"type": string(processed.Declaration.Type),
	})
	if result.OutputFile, err = b.files.WriteExport(name, doc); err != nil {
		result.Error = err
		return result
	}
	if result.ReportFile, err = b.files.WriteReport(utils.ReportFileName(name), processed.Document()); err != nil {
		result.Error = err
		return result
	}

	// =========================================================================
	// STEP 5: ARCHIVE INPUT
	// =========================================================================

	if result.ArchivePath, err = b.files.ArchiveInputFile(path); err != nil {
		logger.WarnContext(ctx, "failed to archive input", "error", err)
	}

	result.Success = true
	result.ProcessingTime = time.Since(startTime)
	logger.InfoContext(ctx, "wrote export", "output", result.OutputFile, "valid", processed.Report.IsValid)
	return result
}

// ReadForm decodes a form JSON file. Unknown fields are rejected.
func ReadForm(path string) (adapter.Form, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return adapter.Form{}, fmt.Errorf("failed to read form: %w", err)
	}

	var form adapter.Form
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&form); err != nil {
		return adapter.Form{}, fmt.Errorf("failed to decode form: %w", err)
	}
	return form, nil
}

// Summarize builds the processing summary of a batch run.
func Summarize(results []FileResult, start, end time.Time) utils.ProcessingSummary {
	summary := utils.ProcessingSummary{StartTime: start, EndTime: end}
	for _, r := range results {
		if !r.Success {
			msg := "not processed"
			if r.Error != nil {
				msg = r.Error.Error()
			}
			summary.Add(nil, &utils.FailedFileInfo{InputFile: r.FilePath, ErrorMessage: msg})
			continue
		}
		summary.Add(&utils.ProcessedFileInfo{
			InputFile:   r.FilePath,
			OutputFile:  r.OutputFile,
			ReportFile:  r.ReportFile,
			ArchivePath: r.ArchivePath,
			Items:       r.Result.Stats.Items,
			Errors:      len(r.Result.Report.Errors),
			Warnings:    len(r.Result.Report.Warnings),
			ProcessTime: r.ProcessingTime,
		}, nil)
	}
	return summary
}
