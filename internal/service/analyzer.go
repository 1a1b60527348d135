// Package service contains the claim analyzer, the orchestrator that runs
// a claim through normalization, extraction, validation, scoring and
// decision, then persists and publishes the resulting record.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/medclaims-analyzer-server/internal/decision"
	"github.com/medclaims-analyzer-server/internal/domain"
	"github.com/medclaims-analyzer-server/internal/extract"
	"github.com/medclaims-analyzer-server/internal/score"
	"github.com/medclaims-analyzer-server/internal/validate"
)

// PipelineVersion identifies the rule catalogs and scoring formulas in
// effect. Recorded on every run so stored results remain interpretable
// after the catalogs change.
const PipelineVersion = "2.1.0"

// Analyzer orchestrates one claim analysis run end to end.
type Analyzer struct {
	normalizer *extract.Normalizer
	extractor  domain.FieldExtractor
	validator  *validate.Validator
	scorer     *score.Scorer
	decider    *decision.Engine
	store      domain.ClaimStore
	renderer   domain.ReportRenderer
	publisher  domain.RecordPublisher

	writeAttempts int
	writeBackoff  time.Duration
	log           *logrus.Logger
}

// AnalyzerOptions carries the optional collaborators and retry tuning.
type AnalyzerOptions struct {
	Renderer      domain.ReportRenderer
	Publisher     domain.RecordPublisher
	WriteAttempts int
	WriteBackoff  time.Duration
}

// NewAnalyzer wires the pipeline stages together.
func NewAnalyzer(
	logger *logrus.Logger,
	normalizer *extract.Normalizer,
	extractor domain.FieldExtractor,
	validator *validate.Validator,
	scorer *score.Scorer,
	decider *decision.Engine,
	store domain.ClaimStore,
	opts AnalyzerOptions,
) *Analyzer {
	attempts := opts.WriteAttempts
	if attempts < 1 {
		attempts = 3
	}
	backoff := opts.WriteBackoff
	if backoff <= 0 {
		backoff = 200 * time.Millisecond
	}
	return &Analyzer{
		normalizer:    normalizer,
		extractor:     extractor,
		validator:     validator,
		scorer:        scorer,
		decider:       decider,
		store:         store,
		renderer:      opts.Renderer,
		publisher:     opts.Publisher,
		writeAttempts: attempts,
		writeBackoff:  backoff,
		log:           logger,
	}
}

// Analyze runs the full pipeline for one claim and returns the persisted
// record. Each call is an independent run with its own run ID; earlier
// records for the same claim are never modified.
func (a *Analyzer) Analyze(ctx context.Context, claimID string, docs []extract.RawDocument) (*domain.ClaimRecord, error) {
	startTime := time.Now().UTC()
	runID := uuid.New().String()

	a.log.WithFields(logrus.Fields{
		"claim_id":  claimID,
		"run_id":    runID,
		"documents": len(docs),
	}).Info("Starting claim analysis")

	// Step 1: Normalize the document set.
	normalized, err := a.normalizer.Normalize(ctx, claimID, docs)
	if err != nil {
		return nil, fmt.Errorf("normalizing documents: %w", err)
	}

	// Step 2: Extract fields.
	fields, degradedFields, err := a.extractor.ExtractFields(ctx, normalized)
	if err != nil {
		return nil, fmt.Errorf("extracting fields: %w", err)
	}

	// Step 3: Validate.
	findings, ruleErrors := a.validator.Validate(fields)

	// Step 4: Score.
	scores := a.scorer.Score(ctx, claimID, fields, findings)

	// Step 5: Decide.
	verdict, reasons := a.decider.Decide(findings, scores.Band)

	record := &domain.ClaimRecord{
		RunID:           runID,
		ClaimID:         claimID,
		PipelineVersion: PipelineVersion,
		Documents:       normalized,
		Fields:          fields,
		Findings:        findings,
		Scores:          scores,
		Decision:        verdict,
		DecisionReasons: reasons,
		DegradedFields:  degradedFields,
		RuleErrors:      ruleErrors,
		StartedAt:       startTime,
		CompletedAt:     time.Now().UTC(),
	}

	// Step 6: Render the report artifact. A rendering failure is logged
	// and the record is still persisted without an artifact reference.
	if a.renderer != nil {
		artifact, err := a.renderer.Render(record)
		if err != nil {
			a.log.WithFields(logrus.Fields{
				"claim_id": claimID,
				"run_id":   runID,
				"error":    err.Error(),
			}).Error("Report rendering failed")
		} else {
			record.ReportArtifact = artifact
		}
	}

	// Step 7: Persist with bounded retries. A run that cannot be stored
	// is a failed run.
	if err := a.persist(ctx, record); err != nil {
		return nil, err
	}

	if a.publisher != nil {
		a.publisher.Publish(record)
	}

	a.log.WithFields(logrus.Fields{
		"claim_id":        claimID,
		"run_id":          runID,
		"decision":        record.Decision,
		"band":            record.Scores.Band,
		"composite_score": record.Scores.CompositeScore,
		"findings":        len(record.Findings),
		"processing_time": record.CompletedAt.Sub(record.StartedAt),
	}).Info("Claim analysis completed")

	return record, nil
}

// persist writes the record, retrying transient failures with linear
// backoff before giving up with a StoreWriteError.
func (a *Analyzer) persist(ctx context.Context, record *domain.ClaimRecord) error {
	var lastErr error
	for attempt := 1; attempt <= a.writeAttempts; attempt++ {
		lastErr = a.store.SaveRecord(ctx, record)
		if lastErr == nil {
			return nil
		}

		a.log.WithFields(logrus.Fields{
			"claim_id": record.ClaimID,
			"run_id":   record.RunID,
			"attempt":  attempt,
			"error":    lastErr.Error(),
		}).Warn("Store write failed")

		if attempt < a.writeAttempts {
			select {
			case <-time.After(time.Duration(attempt) * a.writeBackoff):
			case <-ctx.Done():
				return &domain.StoreWriteError{
					RunID:    record.RunID,
					ClaimID:  record.ClaimID,
					Attempts: attempt,
					Err:      ctx.Err(),
				}
			}
		}
	}
	return &domain.StoreWriteError{
		RunID:    record.RunID,
		ClaimID:  record.ClaimID,
		Attempts: a.writeAttempts,
		Err:      lastErr,
	}
}
