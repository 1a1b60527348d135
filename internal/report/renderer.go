// Package report renders the per-run report artifact for a completed
// claim analysis.
package report

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/medclaims-analyzer-server/internal/domain"
)

// Renderer writes report artifacts to the output directory. Each run
// produces a markdown report and a JSON sidecar under the same artifact
// name; rendering the same record twice overwrites with identical content.
type Renderer struct {
	outputDir string
	log       *logrus.Logger
}

// NewRenderer creates a renderer rooted at outputDir.
func NewRenderer(outputDir string, logger *logrus.Logger) *Renderer {
	return &Renderer{
		outputDir: outputDir,
		log:       logger,
	}
}

// ArtifactName derives the stable artifact name for a record:
// CLM_<YYYYMMDD>_<8 hex digest chars>_comprehensive_report. The digest
// depends only on the claim ID, so re-rendering never moves the artifact.
func ArtifactName(record *domain.ClaimRecord) string {
	sum := sha256.Sum256([]byte(record.ClaimID))
	digest := hex.EncodeToString(sum[:4])
	return fmt.Sprintf("CLM_%s_%s_comprehensive_report",
		record.CompletedAt.UTC().Format("20060102"), digest)
}

// Render writes the markdown and JSON artifacts and returns the artifact
// name.
func (r *Renderer) Render(record *domain.ClaimRecord) (string, error) {
	if err := os.MkdirAll(r.outputDir, 0755); err != nil {
		return "", fmt.Errorf("creating report directory: %w", err)
	}

	name := ArtifactName(record)

	mdPath := filepath.Join(r.outputDir, name+".md")
	if err := os.WriteFile(mdPath, []byte(renderMarkdown(record)), 0644); err != nil {
		return "", fmt.Errorf("writing markdown report: %w", err)
	}

	doc, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling record: %w", err)
	}
	jsonPath := filepath.Join(r.outputDir, name+".json")
	if err := os.WriteFile(jsonPath, doc, 0644); err != nil {
		return "", fmt.Errorf("writing json report: %w", err)
	}

	r.log.WithFields(logrus.Fields{
		"claim_id": record.ClaimID,
		"run_id":   record.RunID,
		"artifact": name,
	}).Info("Report artifact rendered")
	return name, nil
}

func renderMarkdown(record *domain.ClaimRecord) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Claim Analysis Report\n\n")
	fmt.Fprintf(&b, "- Claim ID: %s\n", record.ClaimID)
	fmt.Fprintf(&b, "- Run ID: %s\n", record.RunID)
	fmt.Fprintf(&b, "- Pipeline version: %s\n", record.PipelineVersion)
	fmt.Fprintf(&b, "- Completed: %s\n\n", record.CompletedAt.UTC().Format("2006-01-02 15:04:05 UTC"))

	fmt.Fprintf(&b, "## Decision\n\n")
	fmt.Fprintf(&b, "**%s** (risk band: %s, composite score: %.1f)\n\n",
		strings.ToUpper(string(record.Decision)), record.Scores.Band, record.Scores.CompositeScore)
	for _, reason := range record.DecisionReasons {
		fmt.Fprintf(&b, "- %s\n", reason)
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "## Extracted Fields\n\n")
	fmt.Fprintf(&b, "| Field | Value | Confidence | Source |\n")
	fmt.Fprintf(&b, "|---|---|---|---|\n")
	for _, name := range append(append([]string{}, domain.RequiredFields...), domain.LineItemFields...) {
		f, ok := record.Fields.Get(name)
		if !ok {
			fmt.Fprintf(&b, "| %s | (missing) | | |\n", name)
			continue
		}
		fmt.Fprintf(&b, "| %s | %s | %.2f | %s |\n", name, f.Value, f.Confidence, f.Source)
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "## Findings\n\n")
	if len(record.Findings) == 0 {
		b.WriteString("No findings.\n\n")
	} else {
		for _, f := range record.Findings {
			fmt.Fprintf(&b, "- [%s] %s: %s\n", strings.ToUpper(string(f.Severity)), f.RuleID, f.Message)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "## Scores\n\n")
	fmt.Fprintf(&b, "- Heuristic score: %.1f\n", record.Scores.HeuristicScore)
	fmt.Fprintf(&b, "- Fraud score: %.1f\n", record.Scores.FraudScore)
	fmt.Fprintf(&b, "- Composite score: %.1f\n", record.Scores.CompositeScore)
	if record.Scores.Degraded {
		fmt.Fprintf(&b, "- Fraud scoring degraded: some history lookups were unavailable\n")
	}
	for _, sig := range record.Scores.FraudSignals {
		fmt.Fprintf(&b, "- Signal %s (+%.0f): %s\n", sig.ID, sig.Weight, sig.Detail)
	}

	if len(record.DegradedFields) > 0 {
		fmt.Fprintf(&b, "\n## Extraction Notes\n\n")
		fmt.Fprintf(&b, "Degraded fields: %s\n", strings.Join(record.DegradedFields, ", "))
	}
	if len(record.RuleErrors) > 0 {
		fmt.Fprintf(&b, "\nSkipped rules: %s\n", strings.Join(record.RuleErrors, "; "))
	}

	return b.String()
}
