// =============================================================================
// GTD Declaration Engine - File Manager Utility
// =============================================================================
//
// This module provides file management utilities for batch processing:
//   - Input discovery (form JSON files)
//   - Export and report writing
//   - Output file naming
//   - Archival of processed inputs
//   - Processing summary logs
//
// ARCHIVAL STRATEGY:
//   - Input files are moved to the archive directory after successful processing
//   - Failed files remain in their original location
//   - Exports and reports stay in the output directory
//
// =============================================================================

package utils

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// FILE MANAGER
// =============================================================================

// FileManager handles file operations for batch processing.
type FileManager struct {
	// InputDir is the directory where form files are placed.
	InputDir string

	// OutputDir is the directory where exports and reports are written.
	OutputDir string

	// ArchiveDir is the directory for processed input files.
	ArchiveDir string

	// FileNameFormat is the export file name pattern, see GenerateOutputFileName.
	FileNameFormat string

	// UseTimestampSubdirs creates date-based subdirectories in the archive.
	// Example: archive/2024/01/15/form.json
	UseTimestampSubdirs bool

	// ArchiveOnSuccess determines whether inputs are moved after processing.
	ArchiveOnSuccess bool

	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
}

// NewFileManager creates a new FileManager with the specified directories.
func NewFileManager(inputDir, outputDir, archiveDir, fileNameFormat string) *FileManager {
	return &FileManager{
		InputDir:         inputDir,
		OutputDir:        outputDir,
		ArchiveDir:       archiveDir,
		FileNameFormat:   fileNameFormat,
		ArchiveOnSuccess: true,
		Now:              time.Now,
	}
}

func (fm *FileManager) now() time.Time {
	if fm.Now == nil {
		return time.Now()
	}
	return fm.Now()
}

// =============================================================================
// DIRECTORY MANAGEMENT
// =============================================================================

// EnsureDirectories creates all required directories if they don't exist.
func (fm *FileManager) EnsureDirectories() error {
	for _, dir := range []string{fm.InputDir, fm.OutputDir, fm.ArchiveDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// =============================================================================
// FILE DISCOVERY
// =============================================================================

// DiscoverInputFiles lists the files of the input directory matching pattern,
// sorted by name.
//
// PARAMETERS:
//   - pattern: A glob pattern to match files. Defaults to "*.json".
//
// RETURNS:
//   - A slice of file paths.
//   - An error if the pattern is malformed.
func (fm *FileManager) DiscoverInputFiles(pattern string) ([]string, error) {
	if pattern == "" {
		pattern = "*.json"
	}

	matches, err := filepath.Glob(filepath.Join(fm.InputDir, pattern))
	if err != nil {
		return nil, fmt.Errorf("failed to scan input directory: %w", err)
	}

	files := matches[:0]
	for _, path := range matches {
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			continue
		}
		files = append(files, path)
	}
	sort.Strings(files)
	return files, nil
}

// =============================================================================
// FILE ARCHIVAL
// =============================================================================

// ArchiveInputFile moves a processed input file to the archive directory.
//
// RETURNS:
//   - The path to the archived file.
//   - An error if archival fails.
func (fm *FileManager) ArchiveInputFile(filePath string) (string, error) {
	if !fm.ArchiveOnSuccess {
		return filePath, nil
	}

	archivePath := fm.archivePath(filePath)
	if err := os.MkdirAll(filepath.Dir(archivePath), 0o755); err != nil {
		return "", fmt.Errorf("failed to create archive directory: %w", err)
	}

	if err := os.Rename(filePath, archivePath); err != nil {
		// Cross-device moves fall back to copy and delete.
		if err := copyFile(filePath, archivePath); err != nil {
			return "", fmt.Errorf("failed to copy file to archive: %w", err)
		}
		if err := os.Remove(filePath); err != nil {
			return "", fmt.Errorf("failed to remove original file: %w", err)
		}
	}

	return archivePath, nil
}

func (fm *FileManager) archivePath(filePath string) string {
	fileName := filepath.Base(filePath)
	if !fm.UseTimestampSubdirs {
		return filepath.Join(fm.ArchiveDir, fileName)
	}
	now := fm.now()
	return filepath.Join(
		fm.ArchiveDir,
		fmt.Sprintf("%d", now.Year()),
		fmt.Sprintf("%02d", now.Month()),
		fmt.Sprintf("%02d", now.Day()),
		fileName,
	)
}

// =============================================================================
// OUTPUT FILE NAMING
// =============================================================================

// OutputFileName generates an export file name from the configured format.
func (fm *FileManager) OutputFileName(params map[string]string) string {
	return generateOutputFileName(fm.FileNameFormat, params, fm.now())
}

// GenerateOutputFileName generates a unique output file name.
//
// PARAMETERS:
//   - format: The format string for the file name.
//     Placeholders:
//     {uuid}      - A random UUID
//     {timestamp} - Current timestamp (YYYYMMDD_HHMMSS)
//     {date}      - Current date (YYYYMMDD)
//     {time}      - Current time (HHMMSS)
//     {id}        - Declaration id
//     {type}      - Declaration type
//   - params: A map of placeholder values. Path separators in values are
//     replaced with underscores.
//
// EXAMPLE:
//
//	format: "{type}_{id}_{timestamp}.xml"
//	params: {"type": "IMPORT", "id": "GTD-1"}
//	output: "IMPORT_GTD-1_20240115_143022.xml"
func GenerateOutputFileName(format string, params map[string]string) string {
	return generateOutputFileName(format, params, time.Now())
}

var unsafeNameChars = strings.NewReplacer("/", "_", "\\", "_", ":", "_", "..", "_")

func generateOutputFileName(format string, params map[string]string, now time.Time) string {
	if format == "" {
		format = "{type}_{id}_{timestamp}.xml"
	}

	replacements := []string{
		"{uuid}", uuid.New().String(),
		"{timestamp}", now.Format("20060102_150405"),
		"{date}", now.Format("20060102"),
		"{time}", now.Format("150405"),
	}

	keys := make([]string, 0, len(params))
	for key := range params {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		replacements = append(replacements, "{"+key+"}", unsafeNameChars.Replace(params[key]))
	}

	result := strings.NewReplacer(replacements...).Replace(format)
	if !strings.HasSuffix(strings.ToLower(result), ".xml") {
		result += ".xml"
	}
	return result
}

// ReportFileName returns the report file name belonging to an export.
func ReportFileName(exportName string) string {
	base := exportName
	if ext := filepath.Ext(base); strings.EqualFold(ext, ".xml") {
		base = strings.TrimSuffix(base, ext)
	}
	return base + ".report.json"
}

// =============================================================================
// OUTPUT WRITING
// =============================================================================

// WriteExport writes an export document into the output directory.
func (fm *FileManager) WriteExport(name string, data []byte) (string, error) {
	path := filepath.Join(fm.OutputDir, filepath.Base(name))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write export %s: %w", path, err)
	}
	return path, nil
}

// WriteReport writes v as indented JSON into the output directory.
func (fm *FileManager) WriteReport(name string, v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode report: %w", err)
	}
	data = append(data, '\n')

	path := filepath.Join(fm.OutputDir, filepath.Base(name))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write report %s: %w", path, err)
	}
	return path, nil
}

// =============================================================================
// PROCESSING SUMMARY
// =============================================================================

// ProcessingSummary contains summary information about a processing run.
type ProcessingSummary struct {
	StartTime       time.Time
	EndTime         time.Time
	TotalFiles      int
	SuccessfulFiles int
	FailedFiles     int
	TotalItems      int
	Errors          int
	Warnings        int
	ProcessedFiles  []ProcessedFileInfo
	FailedFilesList []FailedFileInfo
}

// ProcessedFileInfo contains information about a successfully processed file.
type ProcessedFileInfo struct {
	InputFile   string
	OutputFile  string
	ReportFile  string
	ArchivePath string
	Items       int
	Errors      int
	Warnings    int
	ProcessTime time.Duration
}

// FailedFileInfo contains information about a failed file.
type FailedFileInfo struct {
	InputFile    string
	ErrorMessage string
}

// Add records the outcome of one file.
func (s *ProcessingSummary) Add(processed *ProcessedFileInfo, failed *FailedFileInfo) {
	s.TotalFiles++
	if failed != nil {
		s.FailedFiles++
		s.FailedFilesList = append(s.FailedFilesList, *failed)
		return
	}
	if processed == nil {
		return
	}
	s.SuccessfulFiles++
	s.TotalItems += processed.Items
	s.Errors += processed.Errors
	s.Warnings += processed.Warnings
	s.ProcessedFiles = append(s.ProcessedFiles, *processed)
}

// WriteSummaryLog writes a processing summary to a log file.
//
// PARAMETERS:
//   - summary: The processing summary.
//   - outputDir: The directory to write the summary file.
//
// RETURNS:
//   - The path to the summary file.
//   - An error if writing fails.
func WriteSummaryLog(summary ProcessingSummary, outputDir string) (string, error) {
	summaryFileName := fmt.Sprintf("processing_summary_%s.txt", summary.EndTime.Format("20060102_150405"))
	summaryPath := filepath.Join(outputDir, summaryFileName)

	file, err := os.Create(summaryPath)
	if err != nil {
		return "", fmt.Errorf("failed to create summary file: %w", err)
	}
	defer file.Close()

	if err := writeSummary(file, summary); err != nil {
		return "", err
	}
	return summaryPath, nil
}

func writeSummary(w io.Writer, summary ProcessingSummary) error {
	writer := bufio.NewWriter(w)

	duration := summary.EndTime.Sub(summary.StartTime)
	fmt.Fprintf(writer, "GTD Declaration Engine - Processing Summary\n"+
		"================================================================================\n\n"+
		"Run Information:\n"+
		"  Start Time:     %s\n"+
		"  End Time:       %s\n"+
		"  Duration:       %s\n\n"+
		"Statistics:\n"+
		"  Total Files:    %d\n"+
		"  Successful:     %d\n"+
		"  Failed:         %d\n"+
		"  Total Items:    %d\n"+
		"  Errors:         %d\n"+
		"  Warnings:       %d\n\n",
		summary.StartTime.Format("2006-01-02 15:04:05"),
		summary.EndTime.Format("2006-01-02 15:04:05"),
		duration.String(),
		summary.TotalFiles,
		summary.SuccessfulFiles,
		summary.FailedFiles,
		summary.TotalItems,
		summary.Errors,
		summary.Warnings)

	if len(summary.ProcessedFiles) > 0 {
		writer.WriteString("Successful Files:\n")
		writer.WriteString("--------------------------------------------------------------------------------\n")
		for _, pf := range summary.ProcessedFiles {
			fmt.Fprintf(writer, "  Input:        %s\n", pf.InputFile)
			fmt.Fprintf(writer, "  Output:       %s\n", pf.OutputFile)
			fmt.Fprintf(writer, "  Report:       %s\n", pf.ReportFile)
			fmt.Fprintf(writer, "  Items:        %d\n", pf.Items)
			fmt.Fprintf(writer, "  Findings:     %d error(s), %d warning(s)\n", pf.Errors, pf.Warnings)
			fmt.Fprintf(writer, "  Process Time: %s\n\n", pf.ProcessTime.String())
		}
	}

	if len(summary.FailedFilesList) > 0 {
		writer.WriteString("Failed Files:\n")
		writer.WriteString("--------------------------------------------------------------------------------\n")
		for _, ff := range summary.FailedFilesList {
			fmt.Fprintf(writer, "  File:  %s\n", ff.InputFile)
			fmt.Fprintf(writer, "  Error: %s\n\n", ff.ErrorMessage)
		}
	}

	writer.WriteString("================================================================================\n" +
		"End of Summary\n")

	if err := writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush summary file: %w", err)
	}
	return nil
}

// =============================================================================
// UTILITY FUNCTIONS
// =============================================================================

// copyFile copies a file from src to dst.
func copyFile(src, dst string) error {
	sourceFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer sourceFile.Close()

	destFile, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer destFile.Close()

	if _, err := io.Copy(destFile, sourceFile); err != nil {
		return err
	}
	return destFile.Sync()
}
