package report

import (
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medclaims-analyzer-server/internal/domain"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func sampleRecord() *domain.ClaimRecord {
	return &domain.ClaimRecord{
		RunID:           "run-1",
		ClaimID:         "CLM-1",
		PipelineVersion: "2.1.0",
		Fields: domain.ExtractedFieldSet{
			domain.FieldPatientID:   {Value: "P-10023", Confidence: 0.95, Source: domain.SourceHeuristic},
			domain.FieldClaimAmount: {Value: "12345.00", Confidence: 0.9, Source: domain.SourceHeuristic},
		},
		Findings: []domain.ValidationFinding{
			{RuleID: "code.diagnosis_format", Field: domain.FieldDiagnosisCode, Severity: domain.SeverityWarning, Message: "bad code"},
		},
		Scores: domain.ScoreBreakdown{
			HeuristicScore: 90,
			FraudScore:     15,
			FraudSignals:   []domain.FraudSignal{{ID: "fraud.round_amount", Weight: 15, Detail: "round figure"}},
			CompositeScore: 88,
			Band:           domain.RiskLow,
		},
		Decision:        domain.DecisionApproved,
		DecisionReasons: []string{"no critical findings and risk band is low"},
		StartedAt:       time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC),
		CompletedAt:     time.Date(2025, 6, 1, 10, 0, 3, 0, time.UTC),
	}
}

func TestArtifactNameFormat(t *testing.T) {
	name := ArtifactName(sampleRecord())
	assert.Regexp(t, regexp.MustCompile(`^CLM_20250601_[0-9a-f]{8}_comprehensive_report$`), name)
}

func TestArtifactNameStableAcrossRuns(t *testing.T) {
	record := sampleRecord()
	first := ArtifactName(record)

	// A later run of the same claim on the same day keeps the same name.
	record.RunID = "run-2"
	assert.Equal(t, first, ArtifactName(record))

	// A different claim gets a different digest.
	record.ClaimID = "CLM-2"
	assert.NotEqual(t, first, ArtifactName(record))
}

func TestRenderWritesArtifacts(t *testing.T) {
	dir := t.TempDir()
	r := NewRenderer(dir, testLogger())

	name, err := r.Render(sampleRecord())
	require.NoError(t, err)

	md, err := os.ReadFile(filepath.Join(dir, name+".md"))
	require.NoError(t, err)
	content := string(md)
	assert.Contains(t, content, "CLM-1")
	assert.Contains(t, content, "APPROVED")
	assert.Contains(t, content, "code.diagnosis_format")
	assert.Contains(t, content, "fraud.round_amount")

	_, err = os.Stat(filepath.Join(dir, name+".json"))
	assert.NoError(t, err)
}

func TestRenderIdempotent(t *testing.T) {
	dir := t.TempDir()
	r := NewRenderer(dir, testLogger())
	record := sampleRecord()

	name1, err := r.Render(record)
	require.NoError(t, err)
	first, err := os.ReadFile(filepath.Join(dir, name1+".md"))
	require.NoError(t, err)

	name2, err := r.Render(record)
	require.NoError(t, err)
	second, err := os.ReadFile(filepath.Join(dir, name2+".md"))
	require.NoError(t, err)

	assert.Equal(t, name1, name2)
	assert.Equal(t, first, second)
}
