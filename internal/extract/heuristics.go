package extract

import (
	"regexp"

	"github.com/medclaims-analyzer-server/internal/domain"
)

// HeuristicRule proposes values for one canonical field by pattern match.
// Pattern must carry exactly one capture group: the candidate value.
// Confidence reflects how specific the pattern is; a labeled "Patient ID:"
// match is worth more than a bare identifier found near a keyword.
type HeuristicRule struct {
	Field      string
	Pattern    *regexp.Regexp
	Confidence float64
}

// heuristicRules is the extraction rule catalog. Rules are data so the
// catalog can be inspected, tested and extended without touching the
// matching loop.
var heuristicRules = []HeuristicRule{
	// Identifiers
	{
		Field:      domain.FieldPatientID,
		Pattern:    regexp.MustCompile(`(?i)patient\s*(?:id|no|number)\s*[:#]\s*([A-Za-z0-9][A-Za-z0-9/-]{2,31})`),
		Confidence: 0.95,
	},
	{
		Field:      domain.FieldPatientID,
		Pattern:    regexp.MustCompile(`(?i)\bUHID\s*[:#]?\s*([A-Za-z0-9][A-Za-z0-9/-]{2,31})`),
		Confidence: 0.85,
	},
	{
		Field:      domain.FieldProviderID,
		Pattern:    regexp.MustCompile(`(?i)(?:provider|hospital)\s*(?:id|no|number|code)\s*[:#]\s*([A-Za-z0-9][A-Za-z0-9/-]{2,31})`),
		Confidence: 0.95,
	},
	{
		Field:      domain.FieldProviderID,
		Pattern:    regexp.MustCompile(`(?i)\bNPI\s*[:#]?\s*(\d{10})\b`),
		Confidence: 0.9,
	},

	// Clinical codes
	{
		Field:      domain.FieldDiagnosisCode,
		Pattern:    regexp.MustCompile(`(?i)(?:diagnosis|icd[- ]?10?)\s*(?:code)?\s*[:#]\s*([A-TV-Za-tv-z][0-9][0-9A-Za-z](?:\.[0-9A-Za-z]{1,4})?)`),
		Confidence: 0.95,
	},
	{
		Field:      domain.FieldDiagnosisCode,
		Pattern:    regexp.MustCompile(`\b([A-TV-Z][0-9][0-9A-Z]\.[0-9A-Z]{1,4})\b`),
		Confidence: 0.6,
	},
	{
		Field:      domain.FieldProcedureCode,
		Pattern:    regexp.MustCompile(`(?i)(?:procedure|cpt)\s*(?:code)?\s*[:#]\s*([0-9]{4}[0-9A-Za-z])`),
		Confidence: 0.95,
	},

	// Amounts
	{
		Field:      domain.FieldClaimAmount,
		Pattern:    regexp.MustCompile(`(?i)(?:total|claim|claimed|net payable|grand total)\s*(?:amount|charges)?\s*[:#]?\s*(?:rs\.?|inr|usd|\$|₹)?\s*([0-9][0-9,]*(?:\.[0-9]{1,2})?)`),
		Confidence: 0.9,
	},
	{
		Field:      domain.FieldClaimAmount,
		Pattern:    regexp.MustCompile(`(?i)amount\s*(?:payable|due|claimed)\s*[:#]?\s*(?:rs\.?|inr|usd|\$|₹)?\s*([0-9][0-9,]*(?:\.[0-9]{1,2})?)`),
		Confidence: 0.75,
	},
	{
		Field:      domain.FieldRoomCharges,
		Pattern:    regexp.MustCompile(`(?i)room\s*(?:rent|charges?)\s*[:#]?\s*(?:rs\.?|inr|usd|\$|₹)?\s*([0-9][0-9,]*(?:\.[0-9]{1,2})?)`),
		Confidence: 0.85,
	},
	{
		Field:      domain.FieldSurgeryCharges,
		Pattern:    regexp.MustCompile(`(?i)(?:surgery|surgical|ot)\s*charges?\s*[:#]?\s*(?:rs\.?|inr|usd|\$|₹)?\s*([0-9][0-9,]*(?:\.[0-9]{1,2})?)`),
		Confidence: 0.85,
	},
	{
		Field:      domain.FieldMedicationCharges,
		Pattern:    regexp.MustCompile(`(?i)(?:medication|medicine|pharmacy)\s*charges?\s*[:#]?\s*(?:rs\.?|inr|usd|\$|₹)?\s*([0-9][0-9,]*(?:\.[0-9]{1,2})?)`),
		Confidence: 0.85,
	},
	{
		Field:      domain.FieldInvestigationCharges,
		Pattern:    regexp.MustCompile(`(?i)(?:investigation|diagnostic|lab)\s*charges?\s*[:#]?\s*(?:rs\.?|inr|usd|\$|₹)?\s*([0-9][0-9,]*(?:\.[0-9]{1,2})?)`),
		Confidence: 0.85,
	},

	// Dates
	{
		Field:      domain.FieldServiceDate,
		Pattern:    regexp.MustCompile(`(?i)(?:admission|service|admit)\s*date\s*[:#]?\s*([0-9]{1,4}[-/][0-9]{1,2}[-/][0-9]{1,4})`),
		Confidence: 0.9,
	},
	{
		Field:      domain.FieldServiceDate,
		Pattern:    regexp.MustCompile(`(?i)date\s*of\s*(?:admission|service)\s*[:#]?\s*([0-9]{1,4}[-/][0-9]{1,2}[-/][0-9]{1,4})`),
		Confidence: 0.9,
	},
	{
		Field:      domain.FieldDischargeDate,
		Pattern:    regexp.MustCompile(`(?i)discharge\s*date\s*[:#]?\s*([0-9]{1,4}[-/][0-9]{1,2}[-/][0-9]{1,4})`),
		Confidence: 0.9,
	},
	{
		Field:      domain.FieldDischargeDate,
		Pattern:    regexp.MustCompile(`(?i)date\s*of\s*discharge\s*[:#]?\s*([0-9]{1,4}[-/][0-9]{1,2}[-/][0-9]{1,4})`),
		Confidence: 0.9,
	},
}

// allFieldNames is the full set of fields the heuristics know about.
var allFieldNames = append(append([]string{}, domain.RequiredFields...), domain.LineItemFields...)

// runHeuristics applies the rule catalog to one document and returns every
// candidate found. The same field may yield multiple candidates with
// different values or confidences; selection happens later.
func runHeuristics(doc domain.ClaimDocument) []domain.CandidateField {
	if doc.RawText == "" {
		return nil
	}

	var candidates []domain.CandidateField
	for _, rule := range heuristicRules {
		matches := rule.Pattern.FindAllStringSubmatch(doc.RawText, -1)
		for _, m := range matches {
			if len(m) < 2 || m[1] == "" {
				continue
			}
			candidates = append(candidates, domain.CandidateField{
				Name:       rule.Field,
				Value:      m[1],
				Confidence: rule.Confidence,
				Source:     domain.SourceHeuristic,
				DocumentID: doc.ID,
			})
		}
	}
	return candidates
}
