package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medclaims-analyzer-server/internal/decision"
	"github.com/medclaims-analyzer-server/internal/domain"
	"github.com/medclaims-analyzer-server/internal/extract"
	"github.com/medclaims-analyzer-server/internal/ingest"
	"github.com/medclaims-analyzer-server/internal/report"
	"github.com/medclaims-analyzer-server/internal/score"
	"github.com/medclaims-analyzer-server/internal/service"
	"github.com/medclaims-analyzer-server/internal/store"
	"github.com/medclaims-analyzer-server/internal/validate"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func testServerConfig(reportDir string) *domain.Config {
	return &domain.Config{
		Server: domain.ServerConfig{
			Host: "127.0.0.1", Port: 0,
			RatePerSecond: 1000, RateBurst: 1000,
		},
		Validation: domain.ValidationConfig{
			AmountCeiling: 500000, LineItemTolerance: 0.01, MaxStayDays: 60,
		},
		Scoring: domain.ScoringConfig{
			CriticalPenalty: 30, WarningPenalty: 10,
			DuplicateWeight: 40, WatchlistWeight: 35,
			RoundAmountWeight: 15, WeekendWeight: 10,
			RoundAmountThreshold: 50000, DuplicateWindowDays: 30,
			HeuristicWeight: 0.6, FraudWeight: 0.4,
			BandLow: 80, BandMedium: 60, BandHigh: 40,
		},
		Report:  domain.ReportConfig{OutputDir: reportDir},
		Logging: domain.LoggingConfig{Level: "error", Format: "text"},
	}
}

func newTestServer(t *testing.T) (*Server, *store.SQLiteStore) {
	t.Helper()
	logger := testLogger()
	reportDir := t.TempDir()
	cfg := testServerConfig(reportDir)

	claimStore, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "claims.db"))
	require.NoError(t, err)
	t.Cleanup(func() { claimStore.Close() })

	normalizer := extract.NewNormalizer(ingest.NewPlainTextExtractor(), logger)
	extractor := extract.NewExtractor(nil, logger)
	validator := validate.NewValidator(cfg.Validation, logger).
		WithClock(func() time.Time { return time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC) })
	scorer := score.NewScorer(cfg.Scoring, store.NewHistory(claimStore), claimStore, logger)
	decider := decision.NewEngine(cfg.Decision, logger)
	renderer := report.NewRenderer(reportDir, logger)

	analyzer := service.NewAnalyzer(logger, normalizer, extractor, validator, scorer, decider, claimStore, service.AnalyzerOptions{
		Renderer: renderer,
	})

	return NewServer(cfg, analyzer, claimStore, NewHub(logger), logger), claimStore
}

const cleanBill = `Patient ID: P-10023
Provider ID: HOSP-881
Diagnosis Code: J18.9
Procedure Code: 99213
Admission Date: 03-03-2025
Discharge Date: 06-03-2025
Total Amount: 123456.00`

func analyzeBody(t *testing.T) *bytes.Buffer {
	t.Helper()
	body, err := json.Marshal(analyzeRequest{
		Documents: []analyzeDocument{
			{FileName: "bill.txt", Type: "BILL", Text: cleanBill},
		},
	})
	require.NoError(t, err)
	return bytes.NewBuffer(body)
}

func TestHealthEndpoint(t *testing.T) {
	server, _ := newTestServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	server.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestAnalyzeEndpoint(t *testing.T) {
	server, claimStore := newTestServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/claims/CLM-1/analyze", analyzeBody(t))
	req.Header.Set("Content-Type", "application/json")
	server.Router().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var record domain.ClaimRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &record))
	assert.Equal(t, "CLM-1", record.ClaimID)
	assert.Equal(t, domain.DecisionApproved, record.Decision)
	assert.NotEmpty(t, record.ReportArtifact)

	stored, err := claimStore.GetLatest(req.Context(), "CLM-1")
	require.NoError(t, err)
	assert.Equal(t, record.RunID, stored.RunID)
}

func TestAnalyzeEndpointRejectsEmptyBody(t *testing.T) {
	server, _ := newTestServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/claims/CLM-1/analyze", bytes.NewBufferString(`{"documents":[]}`))
	req.Header.Set("Content-Type", "application/json")
	server.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetLatestNotFound(t *testing.T) {
	server, _ := newTestServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/claims/UNKNOWN", nil)
	server.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListRunsAndRecent(t *testing.T) {
	server, _ := newTestServer(t)

	for range 2 {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/claims/CLM-2/analyze", analyzeBody(t))
		req.Header.Set("Content-Type", "application/json")
		server.Router().ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/claims/CLM-2/runs", nil)
	server.Router().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var runsResp struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &runsResp))
	assert.Equal(t, 2, runsResp.Count)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/v1/claims?limit=1", nil)
	server.Router().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var recentResp struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &recentResp))
	assert.Equal(t, 1, recentResp.Count)
}

func TestGetReportEndpoint(t *testing.T) {
	server, _ := newTestServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/claims/CLM-3/analyze", analyzeBody(t))
	req.Header.Set("Content-Type", "application/json")
	server.Router().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/v1/claims/CLM-3/report", nil)
	server.Router().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Claim Analysis Report")
}
