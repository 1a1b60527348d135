// Package extract turns a claim's raw documents into a resolved set of
// canonical fields. Normalization canonicalizes document text, heuristic
// rules propose candidate values, and an optional LLM provider fills the
// gaps the heuristics leave.
package extract

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/medclaims-analyzer-server/internal/domain"
)

// RawDocument is one document as submitted for analysis, before text
// extraction and normalization.
type RawDocument struct {
	FileName string
	Type     domain.DocumentType
	Payload  []byte
}

// Normalizer converts raw documents into ClaimDocuments with canonical text.
type Normalizer struct {
	extractor domain.TextExtractor
	log       *logrus.Logger
}

// NewNormalizer creates a normalizer backed by the given text extractor.
func NewNormalizer(extractor domain.TextExtractor, logger *logrus.Logger) *Normalizer {
	return &Normalizer{
		extractor: extractor,
		log:       logger,
	}
}

var (
	crlfPattern       = regexp.MustCompile(`\r\n?`)
	spaceRunPattern   = regexp.MustCompile(`[ \t]+`)
	blankLinesPattern = regexp.MustCompile(`\n{3,}`)
)

// Normalize ingests every document of the claim. A document whose text
// extraction fails is retained with empty text so the claim can still be
// processed from the remaining documents. The run is aborted when the
// claim has no documents at all, or when none of them yielded any text.
func (n *Normalizer) Normalize(ctx context.Context, claimID string, docs []RawDocument) ([]domain.ClaimDocument, error) {
	if len(docs) == 0 {
		return nil, domain.ErrEmptyClaim
	}

	readable := 0
	out := make([]domain.ClaimDocument, 0, len(docs))
	for _, raw := range docs {
		docType := raw.Type
		if !docType.IsValid() {
			docType = classifyByName(raw.FileName)
		}

		doc := domain.ClaimDocument{
			ID:       uuid.New().String(),
			ClaimID:  claimID,
			Type:     docType,
			FileName: raw.FileName,
			Ingested: time.Now().UTC(),
		}

		text, err := n.extractor.Extract(ctx, raw.FileName, raw.Payload)
		if err != nil {
			n.log.WithFields(logrus.Fields{
				"claim_id":  claimID,
				"file_name": raw.FileName,
				"error":     err.Error(),
			}).Warn("Text extraction failed, retaining document with empty text")
		} else {
			doc.RawText = CanonicalizeText(text)
		}
		if doc.RawText != "" {
			readable++
		}

		out = append(out, doc)
	}

	if readable == 0 {
		return nil, fmt.Errorf("claim %s: %w", claimID, domain.ErrNoReadableDocuments)
	}

	return out, nil
}

// CanonicalizeText normalizes line endings, collapses runs of spaces and
// tabs, and trims trailing whitespace per line. The result is stable for
// identical inputs, which keeps downstream extraction deterministic.
func CanonicalizeText(text string) string {
	text = crlfPattern.ReplaceAllString(text, "\n")
	text = spaceRunPattern.ReplaceAllString(text, " ")

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " ")
	}
	text = strings.Join(lines, "\n")

	text = blankLinesPattern.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// classifyByName guesses the document type from its file name when the
// caller did not supply one.
func classifyByName(fileName string) domain.DocumentType {
	name := strings.ToLower(fileName)
	switch {
	case strings.Contains(name, "bill") || strings.Contains(name, "invoice"):
		return domain.DocumentBill
	case strings.Contains(name, "discharge"):
		return domain.DocumentDischarge
	case strings.Contains(name, "treatment") || strings.Contains(name, "plan"):
		return domain.DocumentTreatmentPlan
	case strings.Contains(name, "lab") || strings.Contains(name, "report"):
		return domain.DocumentLabReport
	default:
		return domain.DocumentOther
	}
}
