// Package decision maps a claim run's findings and risk band onto the
// terminal recommendation.
package decision

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/medclaims-analyzer-server/internal/domain"
)

// Engine applies the decision policy. Precedence, highest first:
//
//  1. critical risk band rejects outright
//  2. critical findings reject, unless the band is low and every critical
//     finding's rule is on the overridable list, which downgrades to review
//  3. otherwise the band decides: low approves, medium and high go to review
type Engine struct {
	overridable map[string]bool
	log         *logrus.Logger
}

// NewEngine creates a decision engine with the configured overridable
// critical rules.
func NewEngine(cfg domain.DecisionConfig, logger *logrus.Logger) *Engine {
	overridable := make(map[string]bool, len(cfg.OverridableRules))
	for _, id := range cfg.OverridableRules {
		overridable[id] = true
	}
	return &Engine{
		overridable: overridable,
		log:         logger,
	}
}

// Decide returns the decision and the ordered reasons behind it. The same
// findings and band always produce the same decision.
func (e *Engine) Decide(findings []domain.ValidationFinding, band domain.RiskBand) (domain.Decision, []string) {
	var criticals []domain.ValidationFinding
	for _, f := range findings {
		if f.Severity == domain.SeverityCritical {
			criticals = append(criticals, f)
		}
	}

	if band == domain.RiskCritical {
		reasons := []string{"risk band is critical"}
		for _, f := range criticals {
			reasons = append(reasons, criticalReason(f))
		}
		return domain.DecisionRejected, reasons
	}

	if len(criticals) > 0 {
		reasons := make([]string, 0, len(criticals)+1)
		for _, f := range criticals {
			reasons = append(reasons, criticalReason(f))
		}

		if band == domain.RiskLow && e.allOverridable(criticals) {
			reasons = append(reasons, "all critical findings are overridable and risk band is low")
			return domain.DecisionReview, reasons
		}
		return domain.DecisionRejected, reasons
	}

	switch band {
	case domain.RiskLow:
		return domain.DecisionApproved, []string{"no critical findings and risk band is low"}
	default:
		return domain.DecisionReview, []string{fmt.Sprintf("risk band is %s", band)}
	}
}

func (e *Engine) allOverridable(criticals []domain.ValidationFinding) bool {
	for _, f := range criticals {
		if !e.overridable[f.RuleID] {
			return false
		}
	}
	return true
}

func criticalReason(f domain.ValidationFinding) string {
	return fmt.Sprintf("critical finding %s: %s", f.RuleID, f.Message)
}
