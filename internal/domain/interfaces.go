package domain

import (
	"context"
	"time"
)

// TextExtractor converts a raw document payload into plain text. OCR-backed
// implementations live behind this interface; a failed extraction returns an
// error and the document is retained with empty text.
type TextExtractor interface {
	Extract(ctx context.Context, fileName string, payload []byte) (string, error)
}

// FieldExtractor resolves canonical fields from a normalized document set.
type FieldExtractor interface {
	ExtractFields(ctx context.Context, docs []ClaimDocument) (ExtractedFieldSet, []string, error)
}

// LLMProvider performs targeted field extraction via a language model.
// Implementations must honor the context deadline and never panic on
// malformed model output.
type LLMProvider interface {
	ExtractFields(ctx context.Context, text string, fields []string) (map[string]string, error)
	Name() string
}

// ClaimStore persists completed analysis runs. Records are append-only.
type ClaimStore interface {
	SaveRecord(ctx context.Context, record *ClaimRecord) error
	GetRecord(ctx context.Context, runID string) (*ClaimRecord, error)
	GetLatest(ctx context.Context, claimID string) (*ClaimRecord, error)
	ListRuns(ctx context.Context, claimID string) ([]*ClaimRecord, error)
	ListRecent(ctx context.Context, limit int) ([]*ClaimRecord, error)
	CountByProvider(ctx context.Context, providerID string, from, to time.Time, excludeClaimID string) (int64, error)
	Close() error
}

// WatchlistReader reports whether a provider is on the fraud watchlist.
type WatchlistReader interface {
	IsWatchlisted(ctx context.Context, providerID string) (bool, error)
}

// HistoryReader answers prior-claim questions for fraud scoring. Backed by
// the claim store, optionally fronted by a cache.
type HistoryReader interface {
	PriorClaimCount(ctx context.Context, providerID string, serviceDate time.Time, windowDays int, excludeClaimID string) (int64, error)
}

// ReportRenderer produces the per-run report artifact.
type ReportRenderer interface {
	Render(record *ClaimRecord) (artifactName string, err error)
}

// RecordPublisher pushes completed records to live subscribers.
type RecordPublisher interface {
	Publish(record *ClaimRecord)
}
