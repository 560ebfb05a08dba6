// Package httpapi exposes the declaration engine over HTTP.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ginjaninja78/gtd-declaration-engine/internal/adapter"
	"github.com/ginjaninja78/gtd-declaration-engine/internal/extraction"
	"github.com/ginjaninja78/gtd-declaration-engine/internal/logging"
	"github.com/ginjaninja78/gtd-declaration-engine/internal/pipeline"
	"github.com/ginjaninja78/gtd-declaration-engine/internal/xmlwriter"
)

// MaxBodyBytes bounds request bodies.
const MaxBodyBytes = 4 << 20

// Processor runs a declaration form through the engine.
type Processor interface {
	ProcessForm(ctx context.Context, form adapter.Form) (pipeline.Result, error)
}

// Handler wires declaration endpoints to the engine.
type Handler struct {
	engine Processor
	logger *slog.Logger
}

// New constructs a declaration handler.
func New(engine Processor, logger *slog.Logger) *Handler {
	return &Handler{
		engine: engine,
		logger: logging.OrDiscard(logger),
	}
}

// Register mounts declaration and extraction endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/v1", func(r chi.Router) {
		r.Post("/declarations/check", h.HandleCheck)
		r.Post("/declarations/export/xml", h.HandleExportXML)
		r.Post("/declarations/export/print", h.HandleExportPrint)
		r.Post("/extractions/merge", h.HandleMerge)
	})
}

// NewRouter builds the full router: request ids, panic recovery, the
// declaration endpoints, /healthz and /metrics served from gatherer.
func NewRouter(h *Handler, gatherer prometheus.Gatherer) chi.Router {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	h.Register(r)
	return r
}

// CheckResponse is the body of a successful check.
type CheckResponse = pipeline.Document

// MergeResponse is the body of a successful merge.
type MergeResponse struct {
	Form       adapter.Form          `json:"form"`
	Provenance extraction.Provenance `json:"provenance"`
}

// HandleCheck handles POST /v1/declarations/check.
func (h *Handler) HandleCheck(w http.ResponseWriter, r *http.Request) {
	result, ok := h.process(w, r, "check")
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, result.Document())
}

// HandleExportXML handles POST /v1/declarations/export/xml.
func (h *Handler) HandleExportXML(w http.ResponseWriter, r *http.Request) {
	result, ok := h.process(w, r, "export_xml")
	if !ok {
		return
	}

	doc, err := xmlwriter.Generate(result.Declaration)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "xml generation failed",
			"request_id", middleware.GetReqID(r.Context()),
			"error", err,
		)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to generate XML")
		return
	}

	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc)
}

// HandleExportPrint handles POST /v1/declarations/export/print.
func (h *Handler) HandleExportPrint(w http.ResponseWriter, r *http.Request) {
	result, ok := h.process(w, r, "export_print")
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, adapter.CanonicalToPrintModel(result.Declaration))
}

// HandleMerge handles POST /v1/extractions/merge.
func (h *Handler) HandleMerge(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var extractions []extraction.Extraction
	if err := decode(w, r, &extractions); err != nil {
		h.logger.InfoContext(ctx, "rejected merge request",
			"request_id", middleware.GetReqID(ctx),
			"error", err,
		)
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	form, prov := extraction.Merge(extractions...)
	h.logger.InfoContext(ctx, "extractions merged",
		"request_id", middleware.GetReqID(ctx),
		"sources", len(extractions),
		"items", len(form.Items),
	)
	writeJSON(w, http.StatusOK, MergeResponse{Form: form, Provenance: prov})
}

// process decodes the form body and runs the engine. On failure the error
// response is already written.
func (h *Handler) process(w http.ResponseWriter, r *http.Request, op string) (pipeline.Result, bool) {
	ctx := r.Context()
	requestID := middleware.GetReqID(ctx)
	start := time.Now()

	var form adapter.Form
	if err := decode(w, r, &form); err != nil {
		h.logger.InfoContext(ctx, "rejected declaration request",
			"request_id", requestID,
			"op", op,
			"error", err,
		)
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return pipeline.Result{}, false
	}

	result, err := h.engine.ProcessForm(ctx, form)
	if err != nil {
		h.logger.ErrorContext(ctx, "declaration processing failed",
			"request_id", requestID,
			"op", op,
			"error", err,
		)
		writeError(w, http.StatusInternalServerError, "internal_error", "declaration processing failed")
		return pipeline.Result{}, false
	}

	h.logger.InfoContext(ctx, "declaration processed",
		"request_id", requestID,
		"op", op,
		"valid", result.Report.IsValid,
		"errors", len(result.Report.Errors),
		"warnings", len(result.Report.Warnings),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return result, true
}

// =============================================================================
// JSON HELPERS
// =============================================================================

type errorResponse struct {
	Error       string `json:"error"`
	Description string `json:"error_description,omitempty"`
}

// decode reads a single JSON value. Unknown fields and trailing data are
// rejected.
func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return fmt.Errorf("request body exceeds %d bytes", tooLarge.Limit)
		}
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if dec.More() {
		return errors.New("invalid JSON: unexpected data after the request body")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to encode response")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

func writeError(w http.ResponseWriter, status int, code, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorResponse{Error: code, Description: description})
}
