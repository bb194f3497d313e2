package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coefcalc/internal/shared/testutil"
)

func TestClientLogHandler_Handle(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantLevel  slog.Level
	}{
		{"info entry", `{"level":"info","message":"page loaded","source":"upload_page"}`, http.StatusOK, slog.LevelInfo},
		{"warn entry", `{"level":"warn","message":"progress channel failed"}`, http.StatusOK, slog.LevelWarn},
		{"warning alias", `{"level":"WARNING","message":"x"}`, http.StatusOK, slog.LevelWarn},
		{"error with data", `{"level":"error","message":"boom","data":{"stage":"swat"},"calculation_id":"c1"}`, http.StatusOK, slog.LevelError},
		{"unknown level logs at info", `{"level":"fatal","message":"x"}`, http.StatusOK, slog.LevelInfo},
		{"missing message", `{"level":"info"}`, http.StatusBadRequest, 0},
		{"invalid json", `not json`, http.StatusBadRequest, 0},
		{"empty body", ``, http.StatusBadRequest, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, logs := testutil.NewTestLogger(t)
			handler := NewClientLogHandler(logger)

			req := httptest.NewRequest(http.MethodPost, "/api/logs", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()
			handler.Handle(rec, req)

			require.Equal(t, tt.wantStatus, rec.Code)

			var response map[string]interface{}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, true, response["success"])
				assert.Len(t, logs.GetRecordsByLevel(tt.wantLevel), 1)
			} else {
				assert.Equal(t, false, response["success"])
				assert.Zero(t, logs.Count())
			}
		})
	}
}

func TestClientLogHandler_TruncatesLongMessages(t *testing.T) {
	logger, logs := testutil.NewTestLogger(t)
	handler := NewClientLogHandler(logger)

	long := strings.Repeat("x", maxClientMessage*2)
	req := httptest.NewRequest(http.MethodPost, "/api/logs", strings.NewReader(`{"message":"`+long+`"}`))
	rec := httptest.NewRecorder()
	handler.Handle(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	records := logs.GetRecords()
	require.Len(t, records, 1)
	assert.Len(t, records[0].Message, maxClientMessage)
}
