package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ginjaninja78/gtd-declaration-engine/internal/types"
)

// Calculation outcomes.
const (
	OutcomeCalculated = "calculated"
	OutcomeAborted    = "aborted"
	OutcomeSkipped    = "skipped"
)

// Metrics provides observability for the declaration engine. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	// Findings by severity and error kind
	Findings *prometheus.CounterVec

	// Corrections by reason code
	Corrections *prometheus.CounterVec

	// Item payment calculations by outcome
	ItemCalculations *prometheus.CounterVec

	// Reference lookups answered by a fallback, by lookup and source
	ReferenceFallbacks *prometheus.CounterVec

	// Full pipeline latency
	PipelineDuration prometheus.Histogram
}

// New creates a Metrics instance registered with reg. A nil reg uses the
// default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		Findings: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gtd_findings_total",
			Help: "Total validation findings by severity and kind",
		}, []string{"severity", "kind"}),

		Corrections: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gtd_corrections_total",
			Help: "Total auto-corrections by reason code",
		}, []string{"reason"}),

		ItemCalculations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gtd_item_calculations_total",
			Help: "Total item payment calculations by outcome",
		}, []string{"outcome"}), // outcome: "calculated", "aborted", "skipped"

		ReferenceFallbacks: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gtd_reference_fallbacks_total",
			Help: "Reference lookups answered by something other than the primary source",
		}, []string{"lookup", "source"}),

		PipelineDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "gtd_pipeline_duration_seconds",
			Help:    "Duration of a full declaration pipeline run",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
	}
}

// ObserveFindings counts validation findings.
func (m *Metrics) ObserveFindings(findings []types.Finding) {
	if m == nil {
		return
	}
	for _, f := range findings {
		m.Findings.WithLabelValues(string(f.Severity), string(f.Kind)).Inc()
	}
}

// ObserveCorrections counts correction log entries.
func (m *Metrics) ObserveCorrections(entries []types.CorrectionEntry) {
	if m == nil {
		return
	}
	for _, e := range entries {
		m.Corrections.WithLabelValues(string(e.Reason)).Inc()
	}
}

// IncrementItemCalculation records one item calculation outcome.
func (m *Metrics) IncrementItemCalculation(outcome string) {
	if m != nil {
		m.ItemCalculations.WithLabelValues(outcome).Inc()
	}
}

// ReferenceFallback implements reference.Observer.
func (m *Metrics) ReferenceFallback(lookup string, source types.RateSource) {
	if m != nil {
		m.ReferenceFallbacks.WithLabelValues(lookup, string(source)).Inc()
	}
}

// ObservePipelineDuration records the duration of a pipeline run.
func (m *Metrics) ObservePipelineDuration(d time.Duration) {
	if m != nil {
		m.PipelineDuration.Observe(d.Seconds())
	}
}
