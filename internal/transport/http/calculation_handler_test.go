package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coefcalc/internal/config"
	apierrors "coefcalc/internal/errors"
	"coefcalc/internal/exporter"
	"coefcalc/internal/ingest"
	"coefcalc/internal/services"
	"coefcalc/internal/shared/testutil"
	"coefcalc/pkg/contracts/domain"
)

type stubRunner struct {
	mu    sync.Mutex
	res   *domain.CalculationResult
	err   error
	files []ingest.File
	opts  services.CalculationOptions
	calls int
}

func (s *stubRunner) Calculate(ctx context.Context, files []ingest.File, opts services.CalculationOptions) (*domain.CalculationResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.files = files
	s.opts = opts
	if opts.Reporter != nil {
		opts.Reporter.Report(ctx, services.StageDemand, 25, "demand parsed")
	}
	if s.err != nil {
		return nil, s.err
	}
	res := *s.res
	if opts.ID != "" {
		res.ID = opts.ID
	}
	return &res, nil
}

type event struct {
	kind    string
	id      string
	payload string
}

type stubPublisher struct {
	mu     sync.Mutex
	events []event
}

func (p *stubPublisher) BroadcastProgress(_ context.Context, id, stage string, _ int, _ string) {
	p.add(event{"progress", id, stage})
}

func (p *stubPublisher) BroadcastError(_ context.Context, id, message string) {
	p.add(event{"error", id, message})
}

func (p *stubPublisher) BroadcastComplete(_ context.Context, id string, _ any) {
	p.add(event{"complete", id, ""})
}

func (p *stubPublisher) add(e event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func (p *stubPublisher) kinds() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.kind
	}
	return out
}

type stubWriter struct {
	body string
	err  error
}

func (w stubWriter) Write(_ context.Context, out io.Writer, _ *domain.CalculationResult) error {
	if w.err != nil {
		return w.err
	}
	_, err := io.WriteString(out, w.body)
	return err
}

func sampleResult() *domain.CalculationResult {
	row := func(id string, sales, demand, swat, diff int64, raw, adj float64, adjType domain.AdjustmentType) domain.ProductResult {
		return domain.ProductResult{
			ProductMetrics: domain.ProductMetrics{
				ProductID:  id,
				Level1:     id[:1],
				Level4:     id[1:],
				SalesSum:   sales,
				DemandSum:  demand,
				Difference: diff,
			},
			SwatSum:             swat,
			CoefficientRaw:      raw,
			CoefficientAdjusted: adj,
			AdjustmentType:      adjType,
		}
	}
	return &domain.CalculationResult{
		ID:          "calc-1",
		GeneratedAt: time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC),
		Results: []domain.ProductResult{
			row("B2", 12345, 150, 100, -5, 1.5, 1.5, domain.AdjustmentCeiling),
			row("A1", 10, 40, 0, 3, 0, 0.8, domain.AdjustmentFloor),
			row("C3", 1, 100, 98, 0, 1.02, 1, domain.AdjustmentParity),
		},
		Statistics: domain.CoefficientStats{Total: 3, AtParity: 1, AtFloor: 1, AtCeiling: 1, SalesTotal: 12356},
		Summary:    domain.CalculationSummary{Keyset: "demand", DemandFileCount: 1, SwatFileCount: 1, Products: 3},
	}
}

type handlerFixture struct {
	runner    *stubRunner
	store     *services.SessionStore
	publisher *stubPublisher
	handler   *CalculationHandler
	router    chi.Router
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()
	logger, _ := testutil.NewTestLogger(t)
	f := &handlerFixture{
		runner:    &stubRunner{res: sampleResult()},
		store:     services.NewSessionStore(config.Default().Calculation, nil, logger),
		publisher: &stubPublisher{},
	}
	f.handler = NewCalculationHandler(CalculationHandlerConfig{
		Runner:       f.runner,
		Store:        f.store,
		Publisher:    f.publisher,
		Workbook:     stubWriter{body: "xlsx-bytes"},
		CSV:          stubWriter{body: "csv-bytes"},
		MaxFileBytes: 1 << 20,
		PreviewRows:  2,
		Logger:       logger,
	})
	f.router = chi.NewRouter()
	f.router.Mount("/api/calculations", f.handler.Routes())
	return f
}

type upload struct {
	field, name, content string
}

func multipartBody(t *testing.T, fields map[string]string, files ...upload) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for _, f := range files {
		part, err := mw.CreateFormFile(f.field, f.name)
		require.NoError(t, err)
		_, err = io.WriteString(part, f.content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func standardUploads() []upload {
	return []upload{
		{FieldDemand, "demand.csv", testutil.BuildCSV(testutil.DemandRow("A", "1", "demand", "10"))},
		{FieldSwat, "swat.csv", testutil.BuildCSV(testutil.SwatRow("A", "1", "10"))},
	}
}

func (f *handlerFixture) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestCalculationHandler_Create(t *testing.T) {
	f := newHandlerFixture(t)

	id := "0b6f3c5e-8f0e-4c36-9d3b-2d4c8a4f6e11"
	body, contentType := multipartBody(t,
		map[string]string{FieldKeyset: "union", FieldCalculationID: id},
		standardUploads()...)
	req := httptest.NewRequest(http.MethodPost, "/api/calculations", body)
	req.Header.Set("Content-Type", contentType)

	rec := f.do(req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp CalculationResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, id, resp.ID)
	assert.Equal(t, 3, resp.Preview.Total)
	assert.Len(t, resp.Preview.Rows, 2)
	assert.Equal(t, 1, resp.Preview.Remaining)
	assert.Equal(t, "/calculations/"+id, resp.Links["page"])

	require.Len(t, f.runner.files, 2)
	assert.Equal(t, domain.FamilyDemand, f.runner.files[0].Family)
	assert.Equal(t, "demand.csv", f.runner.files[0].Name)
	assert.Equal(t, domain.FamilySwat, f.runner.files[1].Family)
	assert.Equal(t, "union", f.runner.opts.Keyset)
	assert.Equal(t, id, f.runner.opts.ID)

	assert.Equal(t, []string{"progress", "complete"}, f.publisher.kinds())

	stored, err := f.store.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, id, stored.ID)
}

func TestCalculationHandler_CreateWithoutIDSkipsProgress(t *testing.T) {
	f := newHandlerFixture(t)

	body, contentType := multipartBody(t, nil, standardUploads()...)
	req := httptest.NewRequest(http.MethodPost, "/api/calculations", body)
	req.Header.Set("Content-Type", contentType)

	rec := f.do(req)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Nil(t, f.runner.opts.Reporter)
	assert.Equal(t, []string{"complete"}, f.publisher.kinds())
}

func TestCalculationHandler_CreateErrors(t *testing.T) {
	tests := []struct {
		name       string
		fields     map[string]string
		runnerErr  error
		noContent  bool
		wantStatus int
		wantCalls  int
	}{
		{
			name:       "unknown keyset",
			fields:     map[string]string{FieldKeyset: "everything"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "malformed calculation id",
			fields:     map[string]string{FieldCalculationID: "not-a-uuid"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "no usable data",
			runnerErr:  apierrors.NewNoDataError("the demand files contain no products", services.ErrNoData),
			wantStatus: http.StatusUnprocessableEntity,
			wantCalls:  1,
		},
		{
			name:       "limit exceeded",
			runnerErr:  apierrors.NewLimitError("too many rows", services.ErrLimitExceeded),
			wantStatus: http.StatusRequestEntityTooLarge,
			wantCalls:  1,
		},
		{
			name:       "missing content type",
			noContent:  true,
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newHandlerFixture(t)
			f.runner.err = tt.runnerErr

			body, contentType := multipartBody(t, tt.fields, standardUploads()...)
			req := httptest.NewRequest(http.MethodPost, "/api/calculations", body)
			if !tt.noContent {
				req.Header.Set("Content-Type", contentType)
			}

			rec := f.do(req)
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			assert.Equal(t, tt.wantCalls, f.runner.calls)
			assert.Empty(t, f.store.List())
		})
	}
}

func TestCalculationHandler_CreateErrorIsPublished(t *testing.T) {
	f := newHandlerFixture(t)
	f.runner.err = apierrors.NewAppValidationError("no usable SWAT files were given")

	id := "0b6f3c5e-8f0e-4c36-9d3b-2d4c8a4f6e11"
	body, contentType := multipartBody(t, map[string]string{FieldCalculationID: id}, standardUploads()...)
	req := httptest.NewRequest(http.MethodPost, "/api/calculations", body)
	req.Header.Set("Content-Type", contentType)

	rec := f.do(req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	f.publisher.mu.Lock()
	defer f.publisher.mu.Unlock()
	require.Len(t, f.publisher.events, 2)
	last := f.publisher.events[1]
	assert.Equal(t, "error", last.kind)
	assert.Equal(t, id, last.id)
	assert.Equal(t, "no usable SWAT files were given", last.payload)
}

func TestCalculationHandler_Get(t *testing.T) {
	f := newHandlerFixture(t)
	f.store.Put(context.Background(), sampleResult())

	tests := []struct {
		name       string
		query      string
		wantStatus int
		wantIDs    []string
		remaining  int
	}{
		{"default window", "", http.StatusOK, []string{"B2", "A1"}, 1},
		{"offset", "?offset=1&limit=5", http.StatusOK, []string{"A1", "C3"}, 0},
		{"sorted", "?sort=product_id&limit=3", http.StatusOK, []string{"A1", "B2", "C3"}, 0},
		{"bad limit", "?limit=0", http.StatusBadRequest, nil, 0},
		{"bad sort", "?sort=swat", http.StatusBadRequest, nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(httptest.NewRequest(http.MethodGet, "/api/calculations/calc-1"+tt.query, nil))
			require.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			if tt.wantStatus != http.StatusOK {
				return
			}

			var preview Preview
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &preview))
			ids := make([]string, len(preview.Rows))
			for i, r := range preview.Rows {
				ids[i] = r.ProductID
			}
			assert.Equal(t, tt.wantIDs, ids)
			assert.Equal(t, tt.remaining, preview.Remaining)
		})
	}
}

func TestCalculationHandler_GetUnknown(t *testing.T) {
	f := newHandlerFixture(t)
	rec := f.do(httptest.NewRequest(http.MethodGet, "/api/calculations/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCalculationHandler_List(t *testing.T) {
	f := newHandlerFixture(t)
	f.store.Put(context.Background(), sampleResult())

	rec := f.do(httptest.NewRequest(http.MethodGet, "/api/calculations", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Calculations []map[string]string `json:"calculations"`
		Count        int                 `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Count)
	assert.Equal(t, "calc-1", body.Calculations[0]["id"])
}

func TestCalculationHandler_Download(t *testing.T) {
	tests := []struct {
		query       string
		contentType string
		filename    string
		body        string
	}{
		{"", contentTypeXLSX, exporter.ReportFilename(sampleResult().GeneratedAt), "xlsx-bytes"},
		{"?format=csv", contentTypeCSV, exporter.CSVFilename(sampleResult().GeneratedAt), "csv-bytes"},
	}

	for _, tt := range tests {
		t.Run(tt.contentType, func(t *testing.T) {
			f := newHandlerFixture(t)
			f.store.Put(context.Background(), sampleResult())

			rec := f.do(httptest.NewRequest(http.MethodGet, "/api/calculations/calc-1/report"+tt.query, nil))
			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tt.contentType, rec.Header().Get("Content-Type"))
			assert.Equal(t, `attachment; filename="`+tt.filename+`"`, rec.Header().Get("Content-Disposition"))
			assert.Equal(t, tt.body, rec.Body.String())
		})
	}
}

func TestCalculationHandler_DownloadFailure(t *testing.T) {
	f := newHandlerFixture(t)
	f.handler.workbook = stubWriter{err: errors.New("disk full")}
	f.store.Put(context.Background(), sampleResult())

	rec := f.do(httptest.NewRequest(http.MethodGet, "/api/calculations/calc-1/report", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "disk full")

	rec = f.do(httptest.NewRequest(http.MethodGet, "/api/calculations/calc-1/report?format=pdf", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCalculationHandler_Delete(t *testing.T) {
	f := newHandlerFixture(t)
	f.store.Put(context.Background(), sampleResult())

	rec := f.do(httptest.NewRequest(http.MethodDelete, "/api/calculations/calc-1", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(httptest.NewRequest(http.MethodDelete, "/api/calculations/calc-1", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
