package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ginjaninja78/gtd-declaration-engine/internal/reference"
	"github.com/ginjaninja78/gtd-declaration-engine/internal/types"
)

var _ reference.Observer = (*Metrics)(nil)

func TestMetrics_Counters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveFindings([]types.Finding{
		{Severity: types.SeverityError, Kind: types.KindFieldFormat},
		{Severity: types.SeverityError, Kind: types.KindFieldFormat},
		{Severity: types.SeverityWarning, Kind: types.KindCrossFieldInconsistency},
	})
	m.ObserveCorrections([]types.CorrectionEntry{{Reason: types.ReasonRounded}})
	m.IncrementItemCalculation(OutcomeCalculated)
	m.IncrementItemCalculation(OutcomeCalculated)
	m.IncrementItemCalculation(OutcomeAborted)
	m.ReferenceFallback(reference.LookupTariff, types.SourceDefault)
	m.ObservePipelineDuration(12 * time.Millisecond)

	assert.Equal(t, 2.0, value(t, m.Findings.WithLabelValues("error", "FieldFormatError")))
	assert.Equal(t, 1.0, value(t, m.Findings.WithLabelValues("warning", "CrossFieldInconsistency")))
	assert.Equal(t, 1.0, value(t, m.Corrections.WithLabelValues("ROUNDED")))
	assert.Equal(t, 2.0, value(t, m.ItemCalculations.WithLabelValues(OutcomeCalculated)))
	assert.Equal(t, 1.0, value(t, m.ItemCalculations.WithLabelValues(OutcomeAborted)))
	assert.Equal(t, 1.0, value(t, m.ReferenceFallbacks.WithLabelValues("tariff", "default")))

	var pb dto.Metric
	require.NoError(t, m.PipelineDuration.Write(&pb))
	assert.Equal(t, uint64(1), pb.GetHistogram().GetSampleCount())
}

func value(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var pb dto.Metric
	require.NoError(t, c.Write(&pb))
	return pb.GetCounter().GetValue()
}

func TestMetrics_SeparateRegistries(t *testing.T) {
	require.NotPanics(t, func() {
		New(prometheus.NewRegistry())
		New(prometheus.NewRegistry())
	})
}

func TestMetrics_NilIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveFindings([]types.Finding{{Severity: types.SeverityError}})
		m.ObserveCorrections([]types.CorrectionEntry{{Reason: types.ReasonRounded}})
		m.IncrementItemCalculation(OutcomeSkipped)
		m.ReferenceFallback(reference.LookupExchangeRate, types.SourceFallback)
		m.ObservePipelineDuration(time.Second)
	})
}
