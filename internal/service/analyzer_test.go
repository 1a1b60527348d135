package service

import (
	"context"
	"errors"
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
	"github.com/medclaims-analyzer-server/internal/score"
	"github.com/medclaims-analyzer-server/internal/store"
	"github.com/medclaims-analyzer-server/internal/validate"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func newTestAnalyzer(t *testing.T, claimStore domain.ClaimStore) *Analyzer {
	t.Helper()
	logger := testLogger()

	validationCfg := domain.ValidationConfig{
		AmountCeiling:     500000,
		LineItemTolerance: 0.01,
		MaxStayDays:       60,
	}
	scoringCfg := domain.ScoringConfig{
		CriticalPenalty: 30, WarningPenalty: 10,
		DuplicateWeight: 40, WatchlistWeight: 35,
		RoundAmountWeight: 15, WeekendWeight: 10,
		RoundAmountThreshold: 50000, DuplicateWindowDays: 30,
		HeuristicWeight: 0.6, FraudWeight: 0.4,
		BandLow: 80, BandMedium: 60, BandHigh: 40,
	}

	normalizer := extract.NewNormalizer(ingest.NewPlainTextExtractor(), logger)
	extractor := extract.NewExtractor(nil, logger)
	validator := validate.NewValidator(validationCfg, logger).
		WithClock(func() time.Time { return time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC) })
	scorer := score.NewScorer(scoringCfg, store.NewHistory(claimStore), nil, logger)
	decider := decision.NewEngine(domain.DecisionConfig{}, logger)

	return NewAnalyzer(logger, normalizer, extractor, validator, scorer, decider, claimStore, AnalyzerOptions{
		WriteAttempts: 2,
		WriteBackoff:  time.Millisecond,
	})
}

func createTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "claims.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

const cleanBill = `Patient ID: P-10023
Provider ID: HOSP-881
Diagnosis Code: J18.9
Procedure Code: 99213
Admission Date: 03-03-2025
Discharge Date: 06-03-2025
Total Amount: 123456.00`

func rawDocs(text string) []extract.RawDocument {
	return []extract.RawDocument{
		{FileName: "bill.txt", Type: domain.DocumentBill, Payload: []byte(text)},
	}
}

func TestAnalyzeCleanClaimApproves(t *testing.T) {
	s := createTestStore(t)
	a := newTestAnalyzer(t, s)

	record, err := a.Analyze(context.Background(), "CLM-1", rawDocs(cleanBill))
	require.NoError(t, err)

	assert.Equal(t, "CLM-1", record.ClaimID)
	assert.Equal(t, PipelineVersion, record.PipelineVersion)
	assert.Empty(t, record.Findings)
	assert.Equal(t, 100.0, record.Scores.CompositeScore)
	assert.Equal(t, domain.RiskLow, record.Scores.Band)
	assert.Equal(t, domain.DecisionApproved, record.Decision)
	assert.NotEmpty(t, record.DecisionReasons)

	// The run is persisted.
	stored, err := s.GetRecord(context.Background(), record.RunID)
	require.NoError(t, err)
	assert.Equal(t, record.Decision, stored.Decision)
}

func TestAnalyzeMissingFieldsRejects(t *testing.T) {
	s := createTestStore(t)
	a := newTestAnalyzer(t, s)

	// A nearly empty document: most required fields missing.
	record, err := a.Analyze(context.Background(), "CLM-2", rawDocs("Notes: patient seen today."))
	require.NoError(t, err)

	assert.NotEmpty(t, record.CriticalFindings())
	assert.Equal(t, domain.DecisionRejected, record.Decision)
	assert.Equal(t, 0.0, record.Scores.HeuristicScore)
}

func TestAnalyzeReRunAppendsNewRecord(t *testing.T) {
	s := createTestStore(t)
	a := newTestAnalyzer(t, s)
	ctx := context.Background()

	first, err := a.Analyze(ctx, "CLM-3", rawDocs(cleanBill))
	require.NoError(t, err)
	second, err := a.Analyze(ctx, "CLM-3", rawDocs(cleanBill))
	require.NoError(t, err)

	assert.NotEqual(t, first.RunID, second.RunID)

	runs, err := s.ListRuns(ctx, "CLM-3")
	require.NoError(t, err)
	assert.Len(t, runs, 2)

	// Deterministic pipeline: both runs agree on everything but identity.
	assert.Equal(t, first.Fields, second.Fields)
	assert.Equal(t, first.Findings, second.Findings)
	assert.Equal(t, first.Scores.HeuristicScore, second.Scores.HeuristicScore)
	assert.Equal(t, first.Decision, second.Decision)
}

func TestAnalyzeRetainsDocumentsOnRecord(t *testing.T) {
	s := createTestStore(t)
	a := newTestAnalyzer(t, s)

	docs := []extract.RawDocument{
		{FileName: "bill.txt", Type: domain.DocumentBill, Payload: []byte(cleanBill)},
		{FileName: "scan.bin", Type: domain.DocumentLabReport, Payload: []byte{0xff, 0xfe}},
	}
	record, err := a.Analyze(context.Background(), "CLM-7", docs)
	require.NoError(t, err)

	// The unreadable scan stays on the record with empty text.
	require.Len(t, record.Documents, 2)
	assert.NotEmpty(t, record.Documents[0].RawText)
	assert.Empty(t, record.Documents[1].RawText)

	stored, err := s.GetRecord(context.Background(), record.RunID)
	require.NoError(t, err)
	require.Len(t, stored.Documents, 2)
	assert.Equal(t, domain.DocumentLabReport, stored.Documents[1].Type)
}

func TestAnalyzeUnreadableClaimAborts(t *testing.T) {
	s := createTestStore(t)
	a := newTestAnalyzer(t, s)

	_, err := a.Analyze(context.Background(), "CLM-8", []extract.RawDocument{
		{FileName: "a.bin", Payload: []byte{0xff}},
		{FileName: "b.bin", Payload: []byte{0xfe}},
	})
	require.ErrorIs(t, err, domain.ErrNoReadableDocuments)

	// Nothing is persisted for an aborted run.
	runs, err := s.ListRuns(context.Background(), "CLM-8")
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestAnalyzeEmptyClaimFails(t *testing.T) {
	s := createTestStore(t)
	a := newTestAnalyzer(t, s)

	_, err := a.Analyze(context.Background(), "CLM-4", nil)
	assert.ErrorIs(t, err, domain.ErrEmptyClaim)
}

// failingStore always fails writes to exercise the retry path.
type failingStore struct {
	domain.ClaimStore
	attempts int
}

func (f *failingStore) SaveRecord(ctx context.Context, record *domain.ClaimRecord) error {
	f.attempts++
	return errors.New("disk full")
}

func TestAnalyzeStoreWriteFailureIsFatal(t *testing.T) {
	inner := createTestStore(t)
	failing := &failingStore{ClaimStore: inner}
	a := newTestAnalyzer(t, failing)

	_, err := a.Analyze(context.Background(), "CLM-5", rawDocs(cleanBill))

	var storeErr *domain.StoreWriteError
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, "CLM-5", storeErr.ClaimID)
	assert.Equal(t, 2, storeErr.Attempts)
	assert.Equal(t, 2, failing.attempts)
}

type captPublisher struct {
	records []*domain.ClaimRecord
}

func (p *captPublisher) Publish(record *domain.ClaimRecord) {
	p.records = append(p.records, record)
}

func TestAnalyzePublishesCompletedRecord(t *testing.T) {
	s := createTestStore(t)
	pub := &captPublisher{}

	a := newTestAnalyzer(t, s)
	a.publisher = pub

	record, err := a.Analyze(context.Background(), "CLM-6", rawDocs(cleanBill))
	require.NoError(t, err)
	require.Len(t, pub.records, 1)
	assert.Equal(t, record.RunID, pub.records[0].RunID)
}
