package validate

import (
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/medclaims-analyzer-server/internal/domain"
)

// Validator evaluates the full rule catalog against an extracted field set.
type Validator struct {
	rules []Rule
	cfg   domain.ValidationConfig
	now   func() time.Time
	log   *logrus.Logger
}

// NewValidator creates a validator over the default catalog.
func NewValidator(cfg domain.ValidationConfig, logger *logrus.Logger) *Validator {
	return &Validator{
		rules: Catalog(),
		cfg:   cfg,
		now:   time.Now,
		log:   logger,
	}
}

// WithClock overrides the evaluation clock. Used by tests to pin "today".
func (v *Validator) WithClock(now func() time.Time) *Validator {
	v.now = now
	return v
}

// Validate runs every rule. A rule that returns an error is skipped and
// recorded in ruleErrors; the remaining rules still run, so one broken
// rule never aborts the claim. Findings come back in a stable order.
func (v *Validator) Validate(fields domain.ExtractedFieldSet) (findings []domain.ValidationFinding, ruleErrors []string) {
	rc := RuleContext{
		Fields: fields,
		Config: v.cfg,
		Now:    v.now().UTC(),
	}

	for _, rule := range v.rules {
		out, err := v.evaluate(rule, rc)
		if err != nil {
			v.log.WithFields(logrus.Fields{
				"rule_id": rule.ID,
				"error":   err.Error(),
			}).Error("Validation rule failed, skipping")
			ruleErrors = append(ruleErrors, fmt.Sprintf("%s: %v", rule.ID, err))
			continue
		}
		findings = append(findings, out...)
	}

	sort.SliceStable(findings, func(i, j int) bool {
		if findings[i].RuleID != findings[j].RuleID {
			return findings[i].RuleID < findings[j].RuleID
		}
		return findings[i].Field < findings[j].Field
	})
	return findings, ruleErrors
}

// evaluate runs one rule, converting a panic into a rule error so a buggy
// check cannot take down the pipeline.
func (v *Validator) evaluate(rule Rule, rc RuleContext) (out []domain.ValidationFinding, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = fmt.Errorf("rule panicked: %v", r)
		}
	}()
	return rule.Check(rc)
}
