package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEnumValidity(t *testing.T) {
	assert.True(t, SeverityCritical.IsValid())
	assert.True(t, RiskLow.IsValid())
	assert.True(t, DecisionReview.IsValid())
	assert.True(t, SourceLLM.IsValid())
	assert.True(t, DocumentBill.IsValid())
	assert.True(t, DocumentTreatmentPlan.IsValid())

	assert.False(t, Severity("fatal").IsValid())
	assert.False(t, RiskBand("extreme").IsValid())
	assert.False(t, Decision("maybe").IsValid())
	assert.False(t, FieldSource("manual").IsValid())
	assert.False(t, DocumentType("FAX").IsValid())
}

func TestExtractedFieldSetGet(t *testing.T) {
	fields := ExtractedFieldSet{
		FieldPatientID: {Value: "P-1", Confidence: 0.9, Source: SourceHeuristic},
		FieldProviderID: {Value: "", Confidence: 0.5, Source: SourceLLM},
	}

	f, ok := fields.Get(FieldPatientID)
	assert.True(t, ok)
	assert.Equal(t, "P-1", f.Value)

	// An empty value counts as absent.
	_, ok = fields.Get(FieldProviderID)
	assert.False(t, ok)

	_, ok = fields.Get(FieldClaimAmount)
	assert.False(t, ok)
	assert.Empty(t, fields.Value(FieldClaimAmount))
}

func validRecord() *ClaimRecord {
	return &ClaimRecord{
		RunID:       "run-1",
		ClaimID:     "CLM-1",
		Decision:    DecisionApproved,
		Scores:      ScoreBreakdown{Band: RiskLow},
		StartedAt:   time.Now(),
		CompletedAt: time.Now(),
	}
}

func TestClaimRecordValidate(t *testing.T) {
	assert.NoError(t, validRecord().Validate())

	r := validRecord()
	r.RunID = ""
	assert.Error(t, r.Validate())

	r = validRecord()
	r.ClaimID = ""
	assert.Error(t, r.Validate())

	r = validRecord()
	r.Decision = "maybe"
	assert.ErrorIs(t, r.Validate(), ErrInvalidDecision)

	r = validRecord()
	r.Scores.Band = "extreme"
	assert.Error(t, r.Validate())

	r = validRecord()
	r.Findings = []ValidationFinding{{RuleID: "x", Severity: "fatal"}}
	assert.ErrorIs(t, r.Validate(), ErrInvalidSeverity)
}

func TestCriticalFindings(t *testing.T) {
	r := validRecord()
	r.Findings = []ValidationFinding{
		{RuleID: "a", Severity: SeverityWarning},
		{RuleID: "b", Severity: SeverityCritical},
		{RuleID: "c", Severity: SeverityInfo},
		{RuleID: "d", Severity: SeverityCritical},
	}

	criticals := r.CriticalFindings()
	assert.Len(t, criticals, 2)
	assert.Equal(t, "b", criticals[0].RuleID)
	assert.Equal(t, "d", criticals[1].RuleID)
}
