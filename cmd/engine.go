package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ginjaninja78/gtd-declaration-engine/internal/metrics"
	"github.com/ginjaninja78/gtd-declaration-engine/internal/pipeline"
	"github.com/ginjaninja78/gtd-declaration-engine/internal/reference"
)

// newEngine builds the engine over the configured reference gateway. Metrics
// are registered with reg; a nil reg uses a private registry. The returned
// closer releases the reference store.
func newEngine(ctx context.Context, reg prometheus.Registerer) (*pipeline.Engine, io.Closer, error) {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := metrics.New(reg)

	gateway, closer, err := reference.Open(ctx, cfg, logger, reference.WithObserver(m))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open reference data: %w", err)
	}

	engine, err := pipeline.New(cfg, gateway,
		pipeline.WithMetrics(m),
		pipeline.WithLogger(logger),
		pipeline.WithConcurrency(cfg.MaxConcurrency),
	)
	if err != nil {
		_ = closer.Close()
		return nil, nil, err
	}
	return engine, closer, nil
}

// processFile reads a form file and runs it through a fresh engine.
func processFile(ctx context.Context, path string) (pipeline.Result, error) {
	form, err := pipeline.ReadForm(path)
	if err != nil {
		return pipeline.Result{}, err
	}

	engine, closer, err := newEngine(ctx, nil)
	if err != nil {
		return pipeline.Result{}, err
	}
	defer closer.Close()

	return engine.ProcessForm(ctx, form)
}

// writeJSON prints v as indented JSON.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
