package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coefcalc/internal/config"
	"coefcalc/internal/shared/testutil"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Paths.ExecutableDir = t.TempDir()
	cfg.Server.Port = 0
	cfg.Server.ShutdownTimeout = 5 * time.Second
	cfg.Security.RateLimit.Enabled = false
	cfg.Calculation.PreviewRows = 1
	return cfg
}

func newTestApp(t *testing.T) *Application {
	t.Helper()
	logger, _ := testutil.NewTestLogger(t)
	app, err := New(testConfig(t), logger)
	require.NoError(t, err)
	t.Cleanup(func() {
		app.OTelProviders.Shutdown(context.Background())
	})
	return app
}

func uploadRequest(t *testing.T, target string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	add := func(field, name, content string) {
		part, err := mw.CreateFormFile(field, name)
		require.NoError(t, err)
		_, err = io.WriteString(part, content)
		require.NoError(t, err)
	}
	add("demand", "demand.csv", testutil.BuildCSV(
		testutil.DemandRow("A", "1", "demand", "150"),
		testutil.DemandRow("A", "1", "sales", "120"),
		testutil.DemandRow("B", "2", "demand", "40"),
	))
	add("swat", "swat.csv", testutil.BuildCSV(
		testutil.SwatRow("A", "1", "100"),
	))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, target, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func serve(app *Application, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)
	return rec
}

func TestNew_WiresServices(t *testing.T) {
	app := newTestApp(t)

	require.NotNil(t, app.Services)
	assert.NotNil(t, app.Services.Calculation)
	assert.NotNil(t, app.Services.Sessions)
	assert.NotNil(t, app.Services.Health)
	assert.NotNil(t, app.Services.WebSocket)
	assert.NotNil(t, app.Router)
	assert.Equal(t, "demand", string(app.Services.Calculation.Keyset()))

	for _, dir := range []string{app.Paths.DataDir, app.Paths.ReportsDir, app.Paths.LogsDir} {
		info, err := os.Stat(dir)
		require.NoError(t, err, dir)
		assert.True(t, info.IsDir())
	}

	assert.Equal(t, app.Config.Server.WriteTimeout, app.Server.WriteTimeout)
	assert.Equal(t, app.Config.Server.OperationTimeout, app.Server.ReadTimeout)
}

func TestNew_RejectsBadKeyset(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	cfg := testConfig(t)
	cfg.Calculation.Keyset = "everything"

	_, err := New(cfg, logger)
	assert.Error(t, err)
}

func TestRouter_CalculationRoundTrip(t *testing.T) {
	app := newTestApp(t)

	rec := serve(app, uploadRequest(t, "/api/calculations"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	var created struct {
		ID      string `json:"id"`
		Preview struct {
			Total     int `json:"total"`
			Remaining int `json:"remaining"`
			Rows      []struct {
				ProductID           string  `json:"product_id"`
				CoefficientAdjusted float64 `json:"coefficient_adjusted"`
			} `json:"rows"`
		} `json:"preview"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.NotEmpty(t, created.ID)
	assert.Equal(t, 2, created.Preview.Total)
	assert.Equal(t, 1, created.Preview.Remaining)
	require.Len(t, created.Preview.Rows, 1)
	assert.Equal(t, "A1", created.Preview.Rows[0].ProductID)
	assert.Equal(t, 1.5, created.Preview.Rows[0].CoefficientAdjusted)

	rec = serve(app, httptest.NewRequest(http.MethodGet, "/api/calculations/"+created.ID+"?limit=10", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"B2"`)

	rec = serve(app, httptest.NewRequest(http.MethodGet, "/api/calculations/"+created.ID+"/report", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")), "xlsx is a zip container")

	rec = serve(app, httptest.NewRequest(http.MethodGet, "/api/calculations/"+created.ID+"/report?format=csv", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "A1")

	rec = serve(app, httptest.NewRequest(http.MethodGet, "/calculations/"+created.ID, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "... and 1 more rows")

	rec = serve(app, httptest.NewRequest(http.MethodDelete, "/api/calculations/"+created.ID, nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestRouter_PageUploadRedirects(t *testing.T) {
	app := newTestApp(t)

	rec := serve(app, uploadRequest(t, "/calculations"))
	require.Equal(t, http.StatusSeeOther, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Header().Get("Location"), "/calculations/")
}

func TestRouter_Endpoints(t *testing.T) {
	app := newTestApp(t)

	tests := []struct {
		method, path string
		wantStatus   int
		wantBody     string
	}{
		{http.MethodGet, "/", http.StatusOK, "multipart/form-data"},
		{http.MethodGet, "/api/health", http.StatusOK, `"status":"ok"`},
		{http.MethodGet, "/api/health/ready", http.StatusOK, "ready"},
		{http.MethodGet, "/api/health/live", http.StatusOK, "alive"},
		{http.MethodGet, "/api/version", http.StatusOK, config.AppName},
		{http.MethodGet, "/api/stats", http.StatusOK, "sessions"},
		{http.MethodGet, "/api/calculations", http.StatusOK, `"count":0`},
		{http.MethodGet, "/api/calculations/missing", http.StatusNotFound, "CALCULATION_NOT_FOUND"},
		{http.MethodGet, "/metrics", http.StatusOK, "target_info"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := serve(app, httptest.NewRequest(tt.method, tt.path, nil))
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantBody)
		})
	}
}

func TestRouter_PageUsesConfiguredKeyset(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	cfg := testConfig(t)
	cfg.Calculation.Keyset = "union"
	app, err := New(cfg, logger)
	require.NoError(t, err)
	t.Cleanup(func() {
		app.OTelProviders.Shutdown(context.Background())
	})

	rec := serve(app, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `value="union" checked`)
}

func TestRouter_UploadTooLarge(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	cfg := testConfig(t)
	cfg.Limits.MaxFileBytes = 1024
	cfg.Limits.MaxFiles = 1
	app, err := New(cfg, logger)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/calculations", bytes.NewReader(make([]byte, 2<<20)))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=x")

	rec := serve(app, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestApplication_StartStop(t *testing.T) {
	app := newTestApp(t)
	app.Server.Addr = "127.0.0.1:0"

	require.NoError(t, app.Start(context.Background()))

	resp, err := http.Get("http://" + app.Addr() + "/api/health/live")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, app.Stop(context.Background()))

	select {
	case <-app.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
