// Package domain contains the core entities and types for medical claim
// analysis: documents, extracted fields, validation findings, score
// breakdowns and the final claim record.
package domain

import "errors"

// DocumentType identifies the kind of source document in a claim bundle.
type DocumentType string

const (
	DocumentBill          DocumentType = "BILL"
	DocumentDischarge     DocumentType = "DISCHARGE_SUMMARY"
	DocumentLabReport     DocumentType = "LAB_REPORT"
	DocumentTreatmentPlan DocumentType = "TREATMENT_PLAN"
	DocumentOther         DocumentType = "OTHER"
)

// FieldSource records which extraction strategy produced a candidate value.
type FieldSource string

const (
	SourceHeuristic FieldSource = "heuristic"
	SourceLLM       FieldSource = "llm"
)

// Severity grades a validation finding.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// RiskBand buckets the composite score into an actionable category.
type RiskBand string

const (
	RiskLow      RiskBand = "low"
	RiskMedium   RiskBand = "medium"
	RiskHigh     RiskBand = "high"
	RiskCritical RiskBand = "critical"
)

// Decision is the terminal recommendation for a claim run.
type Decision string

const (
	DecisionApproved Decision = "approved"
	DecisionReview   Decision = "review"
	DecisionRejected Decision = "rejected"
)

// Sentinel errors shared across the pipeline.
var (
	ErrNotFound            = errors.New("not found")
	ErrEmptyClaim          = errors.New("claim has no documents")
	ErrNoReadableDocuments = errors.New("no readable documents in claim")
	ErrInvalidSeverity     = errors.New("invalid finding severity")
	ErrInvalidDecision     = errors.New("invalid decision")
)

// IsValid reports whether the document type is one of the known kinds.
func (dt DocumentType) IsValid() bool {
	switch dt {
	case DocumentBill, DocumentDischarge, DocumentLabReport, DocumentTreatmentPlan, DocumentOther:
		return true
	default:
		return false
	}
}

func (dt DocumentType) String() string {
	return string(dt)
}

// IsValid reports whether the source is a known extraction strategy.
func (fs FieldSource) IsValid() bool {
	switch fs {
	case SourceHeuristic, SourceLLM:
		return true
	default:
		return false
	}
}

func (fs FieldSource) String() string {
	return string(fs)
}

// IsValid reports whether the severity is a known grade.
func (s Severity) IsValid() bool {
	switch s {
	case SeverityInfo, SeverityWarning, SeverityCritical:
		return true
	default:
		return false
	}
}

func (s Severity) String() string {
	return string(s)
}

// IsValid reports whether the band is a known risk category.
func (rb RiskBand) IsValid() bool {
	switch rb {
	case RiskLow, RiskMedium, RiskHigh, RiskCritical:
		return true
	default:
		return false
	}
}

func (rb RiskBand) String() string {
	return string(rb)
}

// IsValid reports whether the decision is one of the terminal outcomes.
func (d Decision) IsValid() bool {
	switch d {
	case DecisionApproved, DecisionReview, DecisionRejected:
		return true
	default:
		return false
	}
}

func (d Decision) String() string {
	return string(d)
}
