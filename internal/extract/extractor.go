package extract

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/medclaims-analyzer-server/internal/domain"
)

// confidentThreshold marks a heuristic candidate as trustworthy enough to
// skip the LLM fallback even when candidates disagree.
const confidentThreshold = 0.8

// llmConfidence is the fixed confidence assigned to LLM answers. The LLM
// candidate competes under the same selection policy as heuristic ones, so
// a heuristic match above this value still wins the field.
const llmConfidence = 0.7

// DateLayouts are the accepted input date formats, tried in order.
var DateLayouts = []string{"2006-01-02", "02-01-2006", "02/01/2006"}

// CanonicalDateLayout is the output format for all resolved dates.
const CanonicalDateLayout = "2006-01-02"

// Extractor resolves canonical fields from a claim's normalized documents.
// The LLM provider is optional; without it, fields the heuristics cannot
// settle are reported as degraded.
type Extractor struct {
	llm domain.LLMProvider
	log *logrus.Logger
}

// NewExtractor creates a field extractor. llm may be nil.
func NewExtractor(llm domain.LLMProvider, logger *logrus.Logger) *Extractor {
	return &Extractor{
		llm: llm,
		log: logger,
	}
}

// ExtractFields runs the heuristic catalog over every document, resolves
// each field by the selection policy, and falls back to the LLM for fields
// the heuristics missed or could not settle. It returns the resolved set
// and the names of fields whose resolution was degraded. The same inputs
// always produce the same resolved set.
func (e *Extractor) ExtractFields(ctx context.Context, docs []domain.ClaimDocument) (domain.ExtractedFieldSet, []string, error) {
	if len(docs) == 0 {
		return nil, nil, domain.ErrEmptyClaim
	}

	byField := make(map[string][]domain.CandidateField)
	for _, doc := range docs {
		for _, c := range runHeuristics(doc) {
			byField[c.Name] = append(byField[c.Name], c)
		}
	}

	fields := make(domain.ExtractedFieldSet)
	var needLLM []string

	for _, name := range allFieldNames {
		candidates := byField[name]
		if len(candidates) == 0 {
			needLLM = append(needLLM, name)
			continue
		}

		winner := selectCandidate(candidates)
		if conflicting(candidates) && winner.Confidence <= confidentThreshold {
			needLLM = append(needLLM, name)
			continue
		}

		fields[name] = domain.ResolvedField{
			Value:      normalizeValue(name, winner.Value),
			Confidence: winner.Confidence,
			Source:     winner.Source,
		}
	}

	degraded := e.resolveWithLLM(ctx, docs, byField, fields, needLLM)
	return fields, degraded, nil
}

// resolveWithLLM asks the LLM provider for the listed fields. Each answer
// joins the field's heuristic candidates and the selection policy picks the
// winner across both sources. Fields the LLM cannot supply fall back to the
// best heuristic candidate when one exists and are reported as degraded.
func (e *Extractor) resolveWithLLM(ctx context.Context, docs []domain.ClaimDocument, byField map[string][]domain.CandidateField, fields domain.ExtractedFieldSet, needLLM []string) []string {
	if len(needLLM) == 0 {
		return nil
	}

	var llmValues map[string]string
	if e.llm != nil {
		text := combinedText(docs)
		values, err := e.llm.ExtractFields(ctx, text, needLLM)
		if err != nil {
			e.log.WithFields(logrus.Fields{
				"provider": e.llm.Name(),
				"fields":   needLLM,
				"error":    err.Error(),
			}).Warn("LLM extraction failed, degrading to heuristic candidates")
		} else {
			llmValues = values
		}
	}

	var degraded []string
	for _, name := range needLLM {
		candidates := byField[name]

		if v, ok := llmValues[name]; ok && strings.TrimSpace(v) != "" {
			merged := append(append([]domain.CandidateField{}, candidates...), domain.CandidateField{
				Name:       name,
				Value:      strings.TrimSpace(v),
				Confidence: llmConfidence,
				Source:     domain.SourceLLM,
			})
			winner := selectCandidate(merged)
			fields[name] = domain.ResolvedField{
				Value:      normalizeValue(name, winner.Value),
				Confidence: winner.Confidence,
				Source:     winner.Source,
			}
			continue
		}

		// LLM unavailable or silent on this field.
		if len(candidates) > 0 {
			winner := selectCandidate(candidates)
			fields[name] = domain.ResolvedField{
				Value:      normalizeValue(name, winner.Value),
				Confidence: winner.Confidence,
				Source:     winner.Source,
			}
		}
		degraded = append(degraded, name)
	}

	sort.Strings(degraded)
	return degraded
}

// selectCandidate picks the winning candidate: highest confidence first,
// heuristic over LLM on ties, then lexicographic value for determinism.
func selectCandidate(candidates []domain.CandidateField) domain.CandidateField {
	best := candidates[0]
	for _, c := range candidates[1:] {
		if betterCandidate(c, best) {
			best = c
		}
	}
	return best
}

func betterCandidate(a, b domain.CandidateField) bool {
	if a.Confidence != b.Confidence {
		return a.Confidence > b.Confidence
	}
	if a.Source != b.Source {
		return a.Source == domain.SourceHeuristic
	}
	return a.Value < b.Value
}

// conflicting reports whether the candidates disagree on the normalized value.
func conflicting(candidates []domain.CandidateField) bool {
	if len(candidates) < 2 {
		return false
	}
	first := normalizeValue(candidates[0].Name, candidates[0].Value)
	for _, c := range candidates[1:] {
		if normalizeValue(c.Name, c.Value) != first {
			return true
		}
	}
	return false
}

// normalizeValue canonicalizes a raw candidate value for its field kind.
// Unparseable values pass through unchanged so format rules can flag them.
func normalizeValue(name, value string) string {
	value = strings.TrimSpace(value)
	switch name {
	case domain.FieldDiagnosisCode, domain.FieldProcedureCode:
		return strings.ToUpper(value)
	case domain.FieldClaimAmount, domain.FieldRoomCharges, domain.FieldSurgeryCharges,
		domain.FieldMedicationCharges, domain.FieldInvestigationCharges:
		return strings.ReplaceAll(value, ",", "")
	case domain.FieldServiceDate, domain.FieldDischargeDate:
		if t, ok := ParseDate(value); ok {
			return t.Format(CanonicalDateLayout)
		}
		return value
	default:
		return value
	}
}

// ParseDate tries each accepted layout and reports whether one matched.
func ParseDate(value string) (time.Time, bool) {
	for _, layout := range DateLayouts {
		if t, err := time.Parse(layout, strings.TrimSpace(value)); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// combinedText joins the documents' text for LLM extraction, largest
// documents first so the most substantial content survives truncation.
func combinedText(docs []domain.ClaimDocument) string {
	sorted := make([]domain.ClaimDocument, len(docs))
	copy(sorted, docs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return len(sorted[i].RawText) > len(sorted[j].RawText)
	})

	var b strings.Builder
	for _, doc := range sorted {
		if doc.RawText == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n---\n\n")
		}
		b.WriteString(doc.RawText)
	}
	return b.String()
}
