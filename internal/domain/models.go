package domain

import (
	"fmt"
	"time"
)

// Canonical field names produced by extraction. Required fields must be
// present for a claim to pass structural validation; line-item fields are
// optional and feed the financial cross-check.
const (
	FieldPatientID     = "patient_id"
	FieldProviderID    = "provider_id"
	FieldDiagnosisCode = "diagnosis_code"
	FieldProcedureCode = "procedure_code"
	FieldClaimAmount   = "claim_amount"
	FieldServiceDate   = "service_date"
	FieldDischargeDate = "discharge_date"

	FieldRoomCharges          = "room_charges"
	FieldSurgeryCharges       = "surgery_charges"
	FieldMedicationCharges    = "medication_charges"
	FieldInvestigationCharges = "investigation_charges"
)

// RequiredFields lists the fields every claim must carry, in canonical order.
var RequiredFields = []string{
	FieldPatientID,
	FieldProviderID,
	FieldDiagnosisCode,
	FieldProcedureCode,
	FieldClaimAmount,
	FieldServiceDate,
	FieldDischargeDate,
}

// LineItemFields lists the optional charge breakdown fields.
var LineItemFields = []string{
	FieldRoomCharges,
	FieldSurgeryCharges,
	FieldMedicationCharges,
	FieldInvestigationCharges,
}

// ClaimDocument is one normalized source document within a claim bundle.
// RawText may be empty when ingestion failed for the document; the claim is
// still processed with the remaining documents.
type ClaimDocument struct {
	ID       string       `json:"id"`
	ClaimID  string       `json:"claim_id"`
	Type     DocumentType `json:"type"`
	FileName string       `json:"file_name,omitempty"`
	RawText  string       `json:"raw_text"`
	Ingested time.Time    `json:"ingested_at"`
}

// CandidateField is a single proposed value for a canonical field, with the
// provenance needed to audit the later selection.
type CandidateField struct {
	Name       string      `json:"name"`
	Value      string      `json:"value"`
	Confidence float64     `json:"confidence"`
	Source     FieldSource `json:"source"`
	DocumentID string      `json:"document_id,omitempty"`
}

// ResolvedField is the winning candidate for a field after selection.
type ResolvedField struct {
	Value      string      `json:"value"`
	Confidence float64     `json:"confidence"`
	Source     FieldSource `json:"source"`
}

// ExtractedFieldSet maps canonical field names to their resolved values.
// A field the pipeline could not resolve is absent from the map; that is
// equivalent to an entry with an empty value at zero confidence, and Get
// treats the two identically.
type ExtractedFieldSet map[string]ResolvedField

// Get returns the resolved value for a field and whether it is present
// with a non-empty value.
func (fs ExtractedFieldSet) Get(name string) (ResolvedField, bool) {
	f, ok := fs[name]
	if !ok || f.Value == "" {
		return ResolvedField{}, false
	}
	return f, true
}

// Value returns the raw value for a field, or "" when absent.
func (fs ExtractedFieldSet) Value(name string) string {
	return fs[name].Value
}

// ValidationFinding is one rule outcome. Findings are facts about the claim,
// not judgements; scoring and decisions interpret them downstream.
type ValidationFinding struct {
	RuleID   string   `json:"rule_id"`
	Field    string   `json:"field,omitempty"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

// FraudSignal is one triggered fraud indicator with its score contribution.
type FraudSignal struct {
	ID     string  `json:"id"`
	Weight float64 `json:"weight"`
	Detail string  `json:"detail,omitempty"`
}

// ScoreBreakdown carries every intermediate scoring value so the final
// numbers can be audited and recomputed.
type ScoreBreakdown struct {
	HeuristicScore float64       `json:"heuristic_score"`
	FraudScore     float64       `json:"fraud_score"`
	FraudSignals   []FraudSignal `json:"fraud_signals"`
	CompositeScore float64       `json:"composite_score"`
	Band           RiskBand      `json:"band"`
	Degraded       bool          `json:"degraded,omitempty"`
}

// ClaimRecord is the immutable result of one analysis run. Every run gets a
// fresh RunID; re-analysis of the same claim appends a new record.
type ClaimRecord struct {
	RunID           string              `json:"run_id"`
	ClaimID         string              `json:"claim_id"`
	PipelineVersion string              `json:"pipeline_version"`
	Documents       []ClaimDocument     `json:"documents"`
	Fields          ExtractedFieldSet   `json:"fields"`
	Findings        []ValidationFinding `json:"findings"`
	Scores          ScoreBreakdown      `json:"scores"`
	Decision        Decision            `json:"decision"`
	DecisionReasons []string            `json:"decision_reasons"`
	DegradedFields  []string            `json:"degraded_fields,omitempty"`
	RuleErrors      []string            `json:"rule_errors,omitempty"`
	ReportArtifact  string              `json:"report_artifact,omitempty"`
	StartedAt       time.Time           `json:"started_at"`
	CompletedAt     time.Time           `json:"completed_at"`
}

// Validate checks internal consistency before the record is persisted.
func (r *ClaimRecord) Validate() error {
	if r.RunID == "" {
		return fmt.Errorf("claim record validation: run ID is required")
	}
	if r.ClaimID == "" {
		return fmt.Errorf("claim record validation: claim ID is required")
	}
	if !r.Decision.IsValid() {
		return fmt.Errorf("claim record validation: %w", ErrInvalidDecision)
	}
	if !r.Scores.Band.IsValid() {
		return fmt.Errorf("claim record validation: invalid risk band %q", r.Scores.Band)
	}
	for _, f := range r.Findings {
		if !f.Severity.IsValid() {
			return fmt.Errorf("claim record validation: %w (rule %s)", ErrInvalidSeverity, f.RuleID)
		}
	}
	return nil
}

// CriticalFindings returns the subset of findings with critical severity.
func (r *ClaimRecord) CriticalFindings() []ValidationFinding {
	var out []ValidationFinding
	for _, f := range r.Findings {
		if f.Severity == SeverityCritical {
			out = append(out, f)
		}
	}
	return out
}

// ProviderID is a convenience accessor used by history lookups.
func (r *ClaimRecord) ProviderID() string {
	return r.Fields.Value(FieldProviderID)
}
