package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/property-report/internal/county"
	"github.com/sells-group/property-report/internal/model"
	"github.com/sells-group/property-report/internal/render"
	"github.com/sells-group/property-report/internal/report"
	"github.com/sells-group/property-report/internal/schema"
	"github.com/sells-group/property-report/internal/source"
)

type fixture struct {
	srv        *Server
	apiCalls   *atomic.Int32
	countyHits *atomic.Int32
}

func newFixture(t *testing.T, opts ...Option) fixture {
	t.Helper()
	sch, err := schema.Default()
	require.NoError(t, err)

	apiCalls := &atomic.Int32{}
	countyHits := &atomic.Int32{}
	api := source.Func{ID: "attom", Fn: func(context.Context, string) model.SourceRecord {
		apiCalls.Add(1)
		return model.Succeeded("ATTOM Data", map[model.Path]string{
			"assessment.assessedValue": "250000",
			"building.rooms.beds":      "3",
		})
	}}
	hcad := source.Func{ID: "hcad", Fn: func(context.Context, string) model.SourceRecord {
		countyHits.Add(1)
		return model.Failed(model.KindTimeout, "hcad: deadline exceeded")
	}}

	svc := report.NewService(sch, api, map[string]source.Adapter{county.Harris: hcad},
		report.WithAPITimeout(time.Second),
		report.WithCountyTimeout(time.Second),
	)
	return fixture{srv: NewServer(svc, opts...), apiCalls: apiCalls, countyHits: countyHits}
}

func (f fixture) do(t *testing.T, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			rdr = strings.NewReader(b)
		default:
			data, err := json.Marshal(b)
			require.NoError(t, err)
			rdr = bytes.NewReader(data)
		}
	}
	req := httptest.NewRequest(method, target, rdr)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	_, err := uuid.Parse(rec.Header().Get(RequestIDHeader))
	assert.NoError(t, err)
}

func TestRequestID_ReusesIncoming(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	id := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, id)
	rec := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, id, rec.Header().Get(RequestIDHeader))
}

func TestGetReport(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/api/report?address=123+Main+St,+Houston,+TX+77002", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp reportResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "123 Main St, Houston, TX 77002", resp.Address)
	assert.Equal(t, "$250,000", resp.Report.Field("assessedValue").DisplayValue)
	assert.Equal(t, model.SourceAPI, resp.Report.Field("assessedValue").SourceUsed)
	assert.Equal(t, model.StatusFailed, resp.Report.SourceStatus.County.State)
	assert.True(t, resp.Sources.API.OK)
	assert.Equal(t, int32(1), f.countyHits.Load())
}

func TestGetReport_Validation(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/api/report", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/report?address=1+Main&county=dallas", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "unknown county selection")
	assert.Equal(t, int32(0), f.apiCalls.Load())
}

func TestPostReport_ManualAndSkippedCounty(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/api/report", map[string]any{
		"address":      "123 Main St, Houston, TX",
		"county":       "none",
		"manualValues": map[string]string{"beds": "4", "baths": "n/a"},
		"preferences":  map[string]string{"assessedValue": "api"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp reportResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, model.SourceManual, resp.Report.Field("beds").SourceUsed)
	assert.Equal(t, model.SourceNone, resp.Report.Field("baths").SourceUsed)
	assert.Equal(t, []string{"beds"}, resp.Report.ManualEdits)
	assert.Equal(t, model.StatusSkipped, resp.Report.SourceStatus.County.State)
	assert.Equal(t, int32(0), f.countyHits.Load())
}

func TestPostReport_SuppliedSourcesSkipAdapters(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/api/report", `{
		"address": "123 Main St, Houston, TX",
		"currentValues": {"owner": "JANE DOE"},
		"uploadedImage": {"dataUrl": "data:image/png;base64,AAAA"},
		"sources": {
			"api": {"ok": true, "values": {"building.rooms.beds": "2"}, "provenance": "ATTOM Data"},
			"county": {"ok": false, "error_kind": "skipped", "message": "skipped"}
		}
	}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp reportResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "2", resp.Report.Field("beds").DisplayValue)
	assert.Equal(t, "JANE DOE", resp.Report.Field("owner").DisplayValue)
	require.NotNil(t, resp.Report.Image)
	assert.Equal(t, model.ImageUpload, resp.Report.Image.Source)
	assert.Equal(t, int32(0), f.apiCalls.Load())
	assert.Equal(t, int32(0), f.countyHits.Load())
}

func TestPostReport_BadBody(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/api/report", `{"address":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/report", map[string]any{"county": "harris"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "required")

	rec = f.do(t, http.MethodPost, "/api/report", map[string]any{
		"address":     "1 Main",
		"preferences": map[string]string{"beds": "zillow"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "oneof")
}

func TestDownload_Text(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/api/report/download?format=text", map[string]any{
		"address": "123 Main St, Houston, TX",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "property-report-123-main-st-houston-tx.txt")
	assert.Contains(t, rec.Body.String(), "$250,000")
	assert.Contains(t, rec.Body.String(), "County property data was not available")
}

func TestDownload_PDF(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/api/report/download?format=pdf", map[string]any{
		"address": "123 Main St, Houston, TX",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "property-report-123-main-st-houston-tx.pdf")
	assert.True(t, strings.HasPrefix(rec.Body.String(), "%PDF-"))
}

func TestDownload_UnknownFormat(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/api/report/download?format=docx", map[string]any{"address": "1 Main"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, int32(0), f.apiCalls.Load())
}

type brokenRenderer struct{ render.JSON }

func (brokenRenderer) Render(io.Writer, *model.Report) error { return errors.New("layout overflow") }

func TestDownload_RenderFailureReturnsReport(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.srv.newRenderer = func(string) (render.Renderer, error) { return brokenRenderer{}, nil }

	rec := f.do(t, http.MethodPost, "/api/report/download", map[string]any{"address": "123 Main St, Houston, TX"})
	require.Equal(t, http.StatusBadGateway, rec.Code)

	var resp renderFailure
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "render", resp.Kind)
	assert.Contains(t, resp.Error, "layout overflow")
	require.NotNil(t, resp.Report)
	assert.Equal(t, "$250,000", resp.Report.Field("assessedValue").DisplayValue)
}

func TestLocate(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/api/locate?address=4810+Sweetwater+Blvd,+Sugar+Land,+TX", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var hint county.Hint
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &hint))
	assert.Equal(t, county.FortBend, hint.Jurisdiction)
	assert.Equal(t, county.ConfidenceHigh, hint.Confidence)

	rec = f.do(t, http.MethodGet, "/api/locate", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFields(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/api/fields", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp fieldsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp.Categories, "Financial Information")
	assert.NotEmpty(t, resp.Fields)
}

func TestSourceDiagnostics(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/api/sources/attom?address=1+Main+St", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var d report.Diagnostic
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &d))
	assert.Equal(t, "attom", d.Adapter)
	assert.True(t, d.Success)

	rec = f.do(t, http.MethodGet, "/api/sources/county?address=1+Main+St&county=harris", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &d))
	assert.Equal(t, "hcad", d.Adapter)
	assert.False(t, d.Success)
	assert.Equal(t, model.KindTimeout, d.Record.ErrorKind)

	rec = f.do(t, http.MethodGet, "/api/sources/county?county=harris", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/report", nil)
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestStaticDir(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>report</h1>"), 0o644))

	f := newFixture(t, WithStaticDir(dir))
	rec := f.do(t, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<h1>report</h1>")
}
