// Package validate checks an extracted field set against the validation
// rule catalog. Rules are pure and independent; each inspects the fields
// and emits zero or more findings.
package validate

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"time"

	"github.com/medclaims-analyzer-server/internal/domain"
)

// RuleContext carries everything a rule may inspect: the resolved fields,
// the tunable thresholds and the evaluation time. Rules read it and never
// mutate it, which keeps every rule deterministic for a fixed context.
type RuleContext struct {
	Fields domain.ExtractedFieldSet
	Config domain.ValidationConfig
	Now    time.Time
}

// Rule is one entry of the validation catalog.
type Rule struct {
	ID          string
	Category    string
	Description string
	Check       func(rc RuleContext) ([]domain.ValidationFinding, error)
}

var (
	icd10Pattern = regexp.MustCompile(`^[A-TV-Z][0-9][0-9A-Z](\.[0-9A-Z]{1,4})?$`)
	cptPattern   = regexp.MustCompile(`^[0-9]{4}[0-9A-Z]$`)
)

// Catalog returns the validation rule catalog. Rules are data so the set
// can be listed, tested one by one and extended without touching the
// evaluation loop.
func Catalog() []Rule {
	return []Rule{
		{
			ID:          "structural.required_field_missing",
			Category:    "structural",
			Description: "Every required field must be present with a non-empty value",
			Check:       checkRequiredFields,
		},
		{
			ID:          "code.diagnosis_format",
			Category:    "code",
			Description: "Diagnosis code must be a well-formed ICD-10 code",
			Check:       checkDiagnosisFormat,
		},
		{
			ID:          "code.procedure_format",
			Category:    "code",
			Description: "Procedure code must be a well-formed CPT code",
			Check:       checkProcedureFormat,
		},
		{
			ID:          "code.deprecated",
			Category:    "code",
			Description: "Diagnosis code is on the configured deprecated list",
			Check:       checkDeprecatedCode,
		},
		{
			ID:          "financial.nonpositive_amount",
			Category:    "financial",
			Description: "Claim amount must be a positive number",
			Check:       checkNonpositiveAmount,
		},
		{
			ID:          "financial.amount_ceiling",
			Category:    "financial",
			Description: "Claim amount must not exceed the configured ceiling",
			Check:       checkAmountCeiling,
		},
		{
			ID:          "financial.line_item_mismatch",
			Category:    "financial",
			Description: "Line item charges should sum to the claim amount within tolerance",
			Check:       checkLineItemSum,
		},
		{
			ID:          "temporal.discharge_before_service",
			Category:    "temporal",
			Description: "Discharge date must not precede the service date",
			Check:       checkDischargeBeforeService,
		},
		{
			ID:          "temporal.future_date",
			Category:    "temporal",
			Description: "Service and discharge dates must not be in the future",
			Check:       checkFutureDates,
		},
		{
			ID:          "temporal.implausible_stay",
			Category:    "temporal",
			Description: "Stay length must be within the plausible window",
			Check:       checkImplausibleStay,
		},
	}
}

func checkRequiredFields(rc RuleContext) ([]domain.ValidationFinding, error) {
	var findings []domain.ValidationFinding
	for _, name := range domain.RequiredFields {
		if _, ok := rc.Fields.Get(name); !ok {
			findings = append(findings, domain.ValidationFinding{
				RuleID:   "structural.required_field_missing",
				Field:    name,
				Severity: domain.SeverityCritical,
				Message:  fmt.Sprintf("required field %s is missing", name),
			})
		}
	}
	return findings, nil
}

func checkDiagnosisFormat(rc RuleContext) ([]domain.ValidationFinding, error) {
	f, ok := rc.Fields.Get(domain.FieldDiagnosisCode)
	if !ok {
		return nil, nil
	}
	if !icd10Pattern.MatchString(f.Value) {
		return []domain.ValidationFinding{{
			RuleID:   "code.diagnosis_format",
			Field:    domain.FieldDiagnosisCode,
			Severity: domain.SeverityWarning,
			Message:  fmt.Sprintf("diagnosis code %q is not a valid ICD-10 code", f.Value),
		}}, nil
	}
	return nil, nil
}

func checkProcedureFormat(rc RuleContext) ([]domain.ValidationFinding, error) {
	f, ok := rc.Fields.Get(domain.FieldProcedureCode)
	if !ok {
		return nil, nil
	}
	if !cptPattern.MatchString(f.Value) {
		return []domain.ValidationFinding{{
			RuleID:   "code.procedure_format",
			Field:    domain.FieldProcedureCode,
			Severity: domain.SeverityWarning,
			Message:  fmt.Sprintf("procedure code %q is not a valid CPT code", f.Value),
		}}, nil
	}
	return nil, nil
}

func checkDeprecatedCode(rc RuleContext) ([]domain.ValidationFinding, error) {
	f, ok := rc.Fields.Get(domain.FieldDiagnosisCode)
	if !ok {
		return nil, nil
	}
	for _, dep := range rc.Config.DeprecatedDiagCode {
		if f.Value == dep {
			return []domain.ValidationFinding{{
				RuleID:   "code.deprecated",
				Field:    domain.FieldDiagnosisCode,
				Severity: domain.SeverityInfo,
				Message:  fmt.Sprintf("diagnosis code %s is deprecated", f.Value),
			}}, nil
		}
	}
	return nil, nil
}

func checkNonpositiveAmount(rc RuleContext) ([]domain.ValidationFinding, error) {
	f, ok := rc.Fields.Get(domain.FieldClaimAmount)
	if !ok {
		return nil, nil
	}
	amount, err := strconv.ParseFloat(f.Value, 64)
	if err != nil {
		return []domain.ValidationFinding{{
			RuleID:   "financial.nonpositive_amount",
			Field:    domain.FieldClaimAmount,
			Severity: domain.SeverityCritical,
			Message:  fmt.Sprintf("claim amount %q is not a number", f.Value),
		}}, nil
	}
	if amount <= 0 {
		return []domain.ValidationFinding{{
			RuleID:   "financial.nonpositive_amount",
			Field:    domain.FieldClaimAmount,
			Severity: domain.SeverityCritical,
			Message:  fmt.Sprintf("claim amount %.2f is not positive", amount),
		}}, nil
	}
	return nil, nil
}

func checkAmountCeiling(rc RuleContext) ([]domain.ValidationFinding, error) {
	f, ok := rc.Fields.Get(domain.FieldClaimAmount)
	if !ok {
		return nil, nil
	}
	amount, err := strconv.ParseFloat(f.Value, 64)
	if err != nil {
		return nil, nil // format handled by financial.nonpositive_amount
	}
	if rc.Config.AmountCeiling > 0 && amount > rc.Config.AmountCeiling {
		return []domain.ValidationFinding{{
			RuleID:   "financial.amount_ceiling",
			Field:    domain.FieldClaimAmount,
			Severity: domain.SeverityCritical,
			Message:  fmt.Sprintf("claim amount %.2f exceeds ceiling %.2f", amount, rc.Config.AmountCeiling),
		}}, nil
	}
	return nil, nil
}

func checkLineItemSum(rc RuleContext) ([]domain.ValidationFinding, error) {
	total, ok := rc.Fields.Get(domain.FieldClaimAmount)
	if !ok {
		return nil, nil
	}
	totalAmount, err := strconv.ParseFloat(total.Value, 64)
	if err != nil || totalAmount <= 0 {
		return nil, nil
	}

	var sum float64
	var present int
	for _, name := range domain.LineItemFields {
		f, ok := rc.Fields.Get(name)
		if !ok {
			continue
		}
		v, err := strconv.ParseFloat(f.Value, 64)
		if err != nil {
			continue
		}
		sum += v
		present++
	}
	// A single line item is not a meaningful cross-check.
	if present < 2 {
		return nil, nil
	}

	tolerance := rc.Config.LineItemTolerance
	if tolerance <= 0 {
		tolerance = 0.01
	}
	if math.Abs(sum-totalAmount) > totalAmount*tolerance {
		return []domain.ValidationFinding{{
			RuleID:   "financial.line_item_mismatch",
			Field:    domain.FieldClaimAmount,
			Severity: domain.SeverityWarning,
			Message:  fmt.Sprintf("line items sum to %.2f but claim amount is %.2f", sum, totalAmount),
		}}, nil
	}
	return nil, nil
}

func checkDischargeBeforeService(rc RuleContext) ([]domain.ValidationFinding, error) {
	service, discharge, ok := parseStayDates(rc.Fields)
	if !ok {
		return nil, nil
	}
	if discharge.Before(service) {
		return []domain.ValidationFinding{{
			RuleID:   "temporal.discharge_before_service",
			Field:    domain.FieldDischargeDate,
			Severity: domain.SeverityCritical,
			Message: fmt.Sprintf("discharge date %s precedes service date %s",
				discharge.Format("2006-01-02"), service.Format("2006-01-02")),
		}}, nil
	}
	return nil, nil
}

func checkFutureDates(rc RuleContext) ([]domain.ValidationFinding, error) {
	var findings []domain.ValidationFinding
	today := rc.Now.Truncate(24 * time.Hour)
	for _, name := range []string{domain.FieldServiceDate, domain.FieldDischargeDate} {
		f, ok := rc.Fields.Get(name)
		if !ok {
			continue
		}
		t, err := time.Parse("2006-01-02", f.Value)
		if err != nil {
			continue
		}
		if t.After(today) {
			findings = append(findings, domain.ValidationFinding{
				RuleID:   "temporal.future_date",
				Field:    name,
				Severity: domain.SeverityCritical,
				Message:  fmt.Sprintf("%s %s is in the future", name, f.Value),
			})
		}
	}
	return findings, nil
}

func checkImplausibleStay(rc RuleContext) ([]domain.ValidationFinding, error) {
	service, discharge, ok := parseStayDates(rc.Fields)
	if !ok {
		return nil, nil
	}
	maxDays := rc.Config.MaxStayDays
	if maxDays <= 0 {
		maxDays = 60
	}
	stay := int(discharge.Sub(service).Hours() / 24)
	if stay > maxDays {
		return []domain.ValidationFinding{{
			RuleID:   "temporal.implausible_stay",
			Field:    domain.FieldDischargeDate,
			Severity: domain.SeverityWarning,
			Message:  fmt.Sprintf("stay of %d days exceeds plausible window of %d days", stay, maxDays),
		}}, nil
	}
	return nil, nil
}

func parseStayDates(fields domain.ExtractedFieldSet) (service, discharge time.Time, ok bool) {
	sf, sok := fields.Get(domain.FieldServiceDate)
	df, dok := fields.Get(domain.FieldDischargeDate)
	if !sok || !dok {
		return time.Time{}, time.Time{}, false
	}
	service, err := time.Parse("2006-01-02", sf.Value)
	if err != nil {
		return time.Time{}, time.Time{}, false
	}
	discharge, err = time.Parse("2006-01-02", df.Value)
	if err != nil {
		return time.Time{}, time.Time{}, false
	}
	return service, discharge, true
}
