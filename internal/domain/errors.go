package domain

import (
	"fmt"
	"time"
)

// Error codes for failure classification across the pipeline and API.
const (
	ErrCodeIngestion      = "INGESTION_ERROR"
	ErrCodeExtraction     = "EXTRACTION_ERROR"
	ErrCodeValidation     = "VALIDATION_ERROR"
	ErrCodeScoring        = "SCORING_ERROR"
	ErrCodeStore          = "STORE_ERROR"
	ErrCodeExternalAPI    = "EXTERNAL_API_ERROR"
	ErrCodeRateLimit      = "RATE_LIMIT_EXCEEDED"
	ErrCodeInvalidInput   = "INVALID_INPUT"
	ErrCodeInternalServer = "INTERNAL_SERVER_ERROR"
)

// PipelineError is a standardized error carried across stage boundaries and
// surfaced by the API.
type PipelineError struct {
	Code      string    `json:"code"`
	Stage     string    `json:"stage,omitempty"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
}

// Error implements the error interface.
func (e *PipelineError) Error() string {
	if e.Stage != "" {
		return fmt.Sprintf("%s [%s]: %s", e.Code, e.Stage, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewPipelineError creates a PipelineError with a UTC timestamp.
func NewPipelineError(code, stage, message string) *PipelineError {
	return &PipelineError{
		Code:      code,
		Stage:     stage,
		Message:   message,
		Timestamp: time.Now().UTC(),
	}
}

// StoreWriteError signals that persisting a completed record failed after
// all retries. The run's analysis results are attached so callers can log
// them before discarding the run.
type StoreWriteError struct {
	RunID    string
	ClaimID  string
	Attempts int
	Err      error
}

func (e *StoreWriteError) Error() string {
	return fmt.Sprintf("store write failed for run %s (claim %s) after %d attempts: %v",
		e.RunID, e.ClaimID, e.Attempts, e.Err)
}

func (e *StoreWriteError) Unwrap() error {
	return e.Err
}

// ExternalServiceError wraps a collaborator failure (LLM, cache, store read)
// with enough context to decide whether the pipeline can degrade.
type ExternalServiceError struct {
	Service string
	Op      string
	Err     error
}

func (e *ExternalServiceError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Service, e.Op, e.Err)
}

func (e *ExternalServiceError) Unwrap() error {
	return e.Err
}
