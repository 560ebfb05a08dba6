package pipeline

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ginjaninja78/gtd-declaration-engine/internal/config"
	"github.com/ginjaninja78/gtd-declaration-engine/internal/reference"
	"github.com/ginjaninja78/gtd-declaration-engine/internal/types"
	"github.com/ginjaninja78/gtd-declaration-engine/pkg/utils"
)

const carForm = `{
  "type": "IMPORT",
  "date": "2024-03-01",
  "currency": "UZS",
  "consignee_name": "Tashkent Motors LLC",
  "consignee_tin": "123456789",
  "consignee_country": "UZ",
  "items": [
    {"seq": "1", "hs_code": "8703220000", "description": "Passenger car",
     "origin_country": "CN", "customs_value": "19245.00", "package_count": "1"}
  ]
}`

func newBatch(t *testing.T) (*Batch, *utils.FileManager) {
	t.Helper()

	cfg := config.Default()
	prefs := reference.PreferencesFromConfig(cfg)
	mem := reference.NewMemory(prefs)
	mem.PutRates(types.RateQuote{HSCode: "8703220000", DutyRate: decimal.NewFromInt(25), VATRate: decimal.NewFromInt(12)})

	engine, err := New(cfg, reference.NewResilient(mem, reference.DefaultsFromConfig(cfg), prefs))
	require.NoError(t, err)

	root := t.TempDir()
	fm := utils.NewFileManager(
		filepath.Join(root, "input"),
		filepath.Join(root, "output"),
		filepath.Join(root, "archive"),
		"{type}_{id}.xml",
	)
	require.NoError(t, fm.EnsureDirectories())
	return NewBatch(engine, fm, 2), fm
}

func writeInput(t *testing.T, fm *utils.FileManager, name, content string) string {
	t.Helper()
	path := filepath.Join(fm.InputDir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestBatch_Run(t *testing.T) {
	batch, fm := newBatch(t)
	good := writeInput(t, fm, "a.json", carForm)
	bad := writeInput(t, fm, "b.json", `{"type": "IMPORT", "items": [`)
	unknown := writeInput(t, fm, "c.json", `{"vin": "X"}`)

	files, err := fm.DiscoverInputFiles("")
	require.NoError(t, err)
	require.Equal(t, []string{good, bad, unknown}, files)

	start := time.Now()
	results, err := batch.Run(context.Background(), files)
	require.NoError(t, err)
	require.Len(t, results, 3)

	ok := results[0]
	require.True(t, ok.Success, "error: %v", ok.Error)
	assert.Equal(t, good, ok.FilePath)
	assert.NotEmpty(t, ok.Result.Declaration.ID, "forms without an id get one")
	assert.Equal(t, "IMPORT_"+ok.Result.Declaration.ID+".xml", filepath.Base(ok.OutputFile))
	assert.Equal(t, filepath.Join(fm.ArchiveDir, "a.json"), ok.ArchivePath)
	assert.NoFileExists(t, good)

	xmlDoc, err := os.ReadFile(ok.OutputFile)
	require.NoError(t, err)
	assert.Contains(t, string(xmlDoc), "<Total>57698.00</Total>")
	assert.Contains(t, string(xmlDoc), "<Payment>57698.00</Payment>")

	reportData, err := os.ReadFile(ok.ReportFile)
	require.NoError(t, err)
	var doc Document
	require.NoError(t, json.Unmarshal(reportData, &doc))
	assert.True(t, doc.Report.IsValid)
	require.NotNil(t, doc.Declaration.TotalPayment)
	assert.Equal(t, "57698", *doc.Declaration.TotalPayment)

	for _, failed := range results[1:] {
		assert.False(t, failed.Success)
		assert.Error(t, failed.Error)
		assert.FileExists(t, failed.FilePath, "failed inputs stay in place")
	}
	assert.True(t, strings.Contains(results[2].Error.Error(), "unknown field"))

	summary := Summarize(results, start, time.Now())
	assert.Equal(t, 3, summary.TotalFiles)
	assert.Equal(t, 1, summary.SuccessfulFiles)
	assert.Equal(t, 2, summary.FailedFiles)
	assert.Equal(t, 1, summary.TotalItems)
}

func TestBatch_ProcessFileMissing(t *testing.T) {
	batch, fm := newBatch(t)

	res := batch.ProcessFile(context.Background(), filepath.Join(fm.InputDir, "absent.json"))
	assert.False(t, res.Success)
	assert.ErrorIs(t, res.Error, os.ErrNotExist)
}

func TestBatch_RunCancelled(t *testing.T) {
	batch, fm := newBatch(t)
	path := writeInput(t, fm, "a.json", carForm)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := batch.Run(ctx, []string{path})
	assert.ErrorIs(t, err, context.Canceled)
	require.Len(t, results, 1)
	assert.Equal(t, path, results[0].FilePath)
	assert.False(t, results[0].Success)
	assert.FileExists(t, path)
}
