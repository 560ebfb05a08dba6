package utils

import (
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 3, 1, 14, 30, 22, 0, time.UTC)

func newManager(t *testing.T) *FileManager {
	t.Helper()
	root := t.TempDir()
	fm := NewFileManager(
		filepath.Join(root, "input"),
		filepath.Join(root, "output"),
		filepath.Join(root, "archive"),
		"{type}_{id}_{timestamp}.xml",
	)
	fm.Now = func() time.Time { return fixedNow }
	require.NoError(t, fm.EnsureDirectories())
	return fm
}

func TestOutputFileName(t *testing.T) {
	fm := newManager(t)

	tests := []struct {
		name   string
		format string
		params map[string]string
		want   string
	}{
		{"default format", "", map[string]string{"type": "IMPORT", "id": "GTD-1"}, "IMPORT_GTD-1_20240301_143022.xml"},
		{"date and time", "{date}-{time}-{id}", map[string]string{"id": "7"}, "20240301-143022-7.xml"},
		{"separators sanitized", "{id}.xml", map[string]string{"id": "../a/b:c"}, "__a_b_c.xml"},
		{"extension kept", "{id}.XML", map[string]string{"id": "x"}, "x.XML"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fm.FileNameFormat = tt.format
			assert.Equal(t, tt.want, fm.OutputFileName(tt.params))
		})
	}
}

func TestGenerateOutputFileName_UUID(t *testing.T) {
	name := GenerateOutputFileName("{uuid}", nil)
	assert.Regexp(t, regexp.MustCompile(`^[0-9a-f-]{36}\.xml$`), name)
	assert.NotEqual(t, name, GenerateOutputFileName("{uuid}", nil))
}

func TestReportFileName(t *testing.T) {
	assert.Equal(t, "IMPORT_1.report.json", ReportFileName("IMPORT_1.xml"))
	assert.Equal(t, "a.b.report.json", ReportFileName("a.b"))
}

func TestDiscoverInputFiles(t *testing.T) {
	fm := newManager(t)
	for _, name := range []string{"b.json", "a.json", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(fm.InputDir, name), []byte("{}"), 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(fm.InputDir, "dir.json"), 0o755))

	files, err := fm.DiscoverInputFiles("")
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(fm.InputDir, "a.json"),
		filepath.Join(fm.InputDir, "b.json"),
	}, files)
}

func TestArchiveInputFile(t *testing.T) {
	fm := newManager(t)
	src := filepath.Join(fm.InputDir, "form.json")
	require.NoError(t, os.WriteFile(src, []byte("{}"), 0o644))

	fm.UseTimestampSubdirs = true
	archived, err := fm.ArchiveInputFile(src)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(fm.ArchiveDir, "2024", "03", "01", "form.json"), archived)
	assert.FileExists(t, archived)
	assert.NoFileExists(t, src)
}

func TestArchiveInputFile_Disabled(t *testing.T) {
	fm := newManager(t)
	fm.ArchiveOnSuccess = false
	src := filepath.Join(fm.InputDir, "form.json")
	require.NoError(t, os.WriteFile(src, []byte("{}"), 0o644))

	archived, err := fm.ArchiveInputFile(src)
	require.NoError(t, err)
	assert.Equal(t, src, archived)
	assert.FileExists(t, src)
}

func TestWriteExportAndReport(t *testing.T) {
	fm := newManager(t)

	exportPath, err := fm.WriteExport("../escape.xml", []byte("<Declaration/>"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(fm.OutputDir, "escape.xml"), exportPath)

	reportPath, err := fm.WriteReport("escape.report.json", map[string]int{"errors": 2})
	require.NoError(t, err)

	data, err := os.ReadFile(reportPath)
	require.NoError(t, err)
	var decoded map[string]int
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, 2, decoded["errors"])
}

func TestWriteSummaryLog(t *testing.T) {
	fm := newManager(t)

	var summary ProcessingSummary
	summary.StartTime = fixedNow
	summary.EndTime = fixedNow.Add(2 * time.Second)
	summary.Add(&ProcessedFileInfo{InputFile: "a.json", OutputFile: "a.xml", Items: 3, Errors: 1, Warnings: 2}, nil)
	summary.Add(nil, &FailedFileInfo{InputFile: "b.json", ErrorMessage: "malformed JSON"})

	assert.Equal(t, 2, summary.TotalFiles)
	assert.Equal(t, 1, summary.SuccessfulFiles)
	assert.Equal(t, 1, summary.FailedFiles)
	assert.Equal(t, 3, summary.TotalItems)

	path, err := WriteSummaryLog(summary, fm.OutputDir)
	require.NoError(t, err)
	assert.Equal(t, "processing_summary_20240301_143024.txt", filepath.Base(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, "Total Files:    2")
	assert.Contains(t, text, "Findings:     1 error(s), 2 warning(s)")
	assert.Contains(t, text, "Error: malformed JSON")
	assert.Contains(t, text, "Duration:       2s")
}
