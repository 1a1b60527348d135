package decision

import (
	"testing"

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

func critical(ruleID string) domain.ValidationFinding {
	return domain.ValidationFinding{RuleID: ruleID, Severity: domain.SeverityCritical, Message: ruleID}
}

func warning(ruleID string) domain.ValidationFinding {
	return domain.ValidationFinding{RuleID: ruleID, Severity: domain.SeverityWarning, Message: ruleID}
}

func TestDecidePolicyTable(t *testing.T) {
	engine := NewEngine(domain.DecisionConfig{}, testLogger())

	tests := []struct {
		name     string
		findings []domain.ValidationFinding
		band     domain.RiskBand
		want     domain.Decision
	}{
		{"clean low band approves", nil, domain.RiskLow, domain.DecisionApproved},
		{"warnings alone still approve on low band", []domain.ValidationFinding{warning("w")}, domain.RiskLow, domain.DecisionApproved},
		{"medium band goes to review", nil, domain.RiskMedium, domain.DecisionReview},
		{"high band goes to review", nil, domain.RiskHigh, domain.DecisionReview},
		{"critical band rejects", nil, domain.RiskCritical, domain.DecisionRejected},
		{"critical band rejects regardless of findings", []domain.ValidationFinding{warning("w")}, domain.RiskCritical, domain.DecisionRejected},
		{"critical finding rejects on low band", []domain.ValidationFinding{critical("financial.amount_ceiling")}, domain.RiskLow, domain.DecisionRejected},
		{"critical finding rejects on medium band", []domain.ValidationFinding{critical("financial.amount_ceiling")}, domain.RiskMedium, domain.DecisionRejected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, reasons := engine.Decide(tt.findings, tt.band)
			assert.Equal(t, tt.want, got)
			assert.NotEmpty(t, reasons)
		})
	}
}

func TestDecideOverridableCriticals(t *testing.T) {
	engine := NewEngine(domain.DecisionConfig{
		OverridableRules: []string{"financial.amount_ceiling"},
	}, testLogger())

	// Low band with only overridable criticals downgrades to review.
	got, reasons := engine.Decide([]domain.ValidationFinding{critical("financial.amount_ceiling")}, domain.RiskLow)
	assert.Equal(t, domain.DecisionReview, got)
	assert.Contains(t, reasons[len(reasons)-1], "overridable")

	// A non-overridable critical alongside still rejects.
	got, _ = engine.Decide([]domain.ValidationFinding{
		critical("financial.amount_ceiling"),
		critical("temporal.future_date"),
	}, domain.RiskLow)
	assert.Equal(t, domain.DecisionRejected, got)

	// Override only applies on the low band.
	got, _ = engine.Decide([]domain.ValidationFinding{critical("financial.amount_ceiling")}, domain.RiskMedium)
	assert.Equal(t, domain.DecisionRejected, got)
}

func TestDecideDeterministic(t *testing.T) {
	engine := NewEngine(domain.DecisionConfig{}, testLogger())
	findings := []domain.ValidationFinding{critical("a"), critical("b"), warning("c")}

	d1, r1 := engine.Decide(findings, domain.RiskHigh)
	d2, r2 := engine.Decide(findings, domain.RiskHigh)
	require.Equal(t, d1, d2)
	assert.Equal(t, r1, r2)
}
