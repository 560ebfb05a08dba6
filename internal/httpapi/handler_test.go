package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ginjaninja78/gtd-declaration-engine/internal/adapter"
	"github.com/ginjaninja78/gtd-declaration-engine/internal/config"
	"github.com/ginjaninja78/gtd-declaration-engine/internal/metrics"
	"github.com/ginjaninja78/gtd-declaration-engine/internal/pipeline"
	"github.com/ginjaninja78/gtd-declaration-engine/internal/reference"
	"github.com/ginjaninja78/gtd-declaration-engine/internal/types"
)

const carForm = `{
  "id": "GTD-7",
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

func newServer(t *testing.T) http.Handler {
	t.Helper()

	cfg := config.Default()
	prefs := reference.PreferencesFromConfig(cfg)
	mem := reference.NewMemory(prefs)
	mem.PutRates(types.RateQuote{HSCode: "8703220000", DutyRate: decimal.NewFromInt(25), VATRate: decimal.NewFromInt(12)})

	reg := prometheus.NewRegistry()
	engine, err := pipeline.New(cfg,
		reference.NewResilient(mem, reference.DefaultsFromConfig(cfg), prefs),
		pipeline.WithMetrics(metrics.New(reg)),
	)
	require.NoError(t, err)

	return NewRouter(New(engine, nil), reg)
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var body errorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body
}

func TestHandleCheck(t *testing.T) {
	h := newServer(t)

	rec := do(t, h, http.MethodPost, "/v1/declarations/check", carForm)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var doc pipeline.Document
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&doc))
	assert.True(t, doc.Report.IsValid)
	assert.Empty(t, doc.Report.Errors)
	require.NotNil(t, doc.Declaration.TotalPayment)
	assert.Equal(t, "57698", *doc.Declaration.TotalPayment)
	assert.Equal(t, "57698", doc.Payments.Total.String())
}

func TestHandleCheck_ReportsFindings(t *testing.T) {
	h := newServer(t)

	rec := do(t, h, http.MethodPost, "/v1/declarations/check", `{"type": "IMPORT", "date": "01.03.2024"}`)
	require.Equal(t, http.StatusOK, rec.Code, "findings are not transport errors")

	var doc pipeline.Document
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&doc))
	assert.False(t, doc.Report.IsValid)
	assert.NotEmpty(t, doc.Report.Errors)
}

func TestHandleExportXML(t *testing.T) {
	h := newServer(t)

	rec := do(t, h, http.MethodPost, "/v1/declarations/export/xml", carForm)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/xml; charset=utf-8", rec.Header().Get("Content-Type"))

	body := rec.Body.String()
	assert.True(t, strings.HasPrefix(body, "<?xml"))
	assert.Contains(t, body, "<ID>GTD-7</ID>")
	assert.Contains(t, body, "<Payment>57698.00</Payment>")
}

func TestHandleExportPrint(t *testing.T) {
	h := newServer(t)

	rec := do(t, h, http.MethodPost, "/v1/declarations/export/print", carForm)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var model adapter.PrintModel
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&model))
	assert.Equal(t, 1, model.TotalItems)
	assert.Equal(t, 1, model.TotalSheets)
	assert.Equal(t, "57698.00", model.Header.TotalPayment)
	require.NotNil(t, model.Primary)
	assert.Equal(t, "19245.00", model.Primary.CustomsValue)
}

func TestHandleMerge(t *testing.T) {
	h := newServer(t)

	body := `[
	  {"source": "invoice", "header": {"consignee_name": {"value": "Tashkent Motors", "confidence": 0.6}},
	   "items": [{"hs_code": {"value": "8703220000", "confidence": 0.9}}]},
	  {"source": "cmr", "header": {"consignee_name": {"value": "Tashkent Motors LLC", "confidence": 0.8}}}
	]`
	rec := do(t, h, http.MethodPost, "/v1/extractions/merge", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp MergeResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.NotNil(t, resp.Form.ConsigneeName)
	assert.Equal(t, "Tashkent Motors LLC", *resp.Form.ConsigneeName)
	assert.Equal(t, "cmr", resp.Provenance.Header["consignee_name"].Source)
	require.Len(t, resp.Form.Items, 1)
	require.NotNil(t, resp.Form.Items[0].HSCode)
	assert.Equal(t, "8703220000", *resp.Form.Items[0].HSCode)
}

func TestBadRequests(t *testing.T) {
	h := newServer(t)

	tests := []struct {
		name string
		path string
		body string
	}{
		{"malformed form", "/v1/declarations/check", `{"type": `},
		{"unknown form field", "/v1/declarations/export/xml", `{"vin": "X"}`},
		{"trailing data", "/v1/declarations/export/print", `{} {}`},
		{"merge expects a list", "/v1/extractions/merge", `{"source": "invoice"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			body := decodeError(t, rec)
			assert.Equal(t, "bad_request", body.Error)
			assert.NotEmpty(t, body.Description)
		})
	}
}

func TestBodyTooLarge(t *testing.T) {
	h := newServer(t)

	big := `{"id": "` + strings.Repeat("x", MaxBodyBytes) + `"}`
	rec := do(t, h, http.MethodPost, "/v1/declarations/check", big)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeError(t, rec).Description, "exceeds")
}

type failingEngine struct{}

func (failingEngine) ProcessForm(context.Context, adapter.Form) (pipeline.Result, error) {
	return pipeline.Result{}, errors.New("reference store offline")
}

func TestEngineFailure(t *testing.T) {
	h := NewRouter(New(failingEngine{}, nil), prometheus.NewRegistry())

	rec := do(t, h, http.MethodPost, "/v1/declarations/check", carForm)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, "internal_error", body.Error)
	assert.NotContains(t, body.Description, "offline")
}

func TestHealthAndMetrics(t *testing.T) {
	h := newServer(t)

	rec := do(t, h, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	do(t, h, http.MethodPost, "/v1/declarations/check", carForm)

	rec = do(t, h, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `gtd_item_calculations_total{outcome="calculated"} 1`)
}

func TestMethodNotAllowed(t *testing.T) {
	h := newServer(t)

	rec := do(t, h, http.MethodGet, "/v1/declarations/check", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
