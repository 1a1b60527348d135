// Package store persists completed claim analysis runs. Records are
// append-only; re-analysis of a claim adds a new run rather than mutating
// the previous one.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/medclaims-analyzer-server/internal/domain"
)

// SQLiteStore implements domain.ClaimStore using SQLite. The full record
// is stored as a JSON document alongside the indexed columns used for
// lookups and fraud history queries.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStore creates a new SQLite claim store. It creates the database
// file and schema if they don't exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// scanner is an interface for sql.Row and sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

// scanRecord scans a row holding the JSON record document.
func scanRecord(s scanner) (*domain.ClaimRecord, error) {
	var doc []byte
	if err := s.Scan(&doc); err != nil {
		return nil, err
	}
	record := &domain.ClaimRecord{}
	if err := json.Unmarshal(doc, record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal record: %w", err)
	}
	return record, nil
}

// createSchema creates the database tables and indexes.
func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS claim_records (
		run_id TEXT PRIMARY KEY,
		claim_id TEXT NOT NULL,
		provider_id TEXT DEFAULT '',
		service_date TEXT DEFAULT '',
		decision TEXT NOT NULL,
		composite_score REAL NOT NULL,
		record TEXT NOT NULL,
		completed_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_claim_id ON claim_records(claim_id);
	CREATE INDEX IF NOT EXISTS idx_provider_service ON claim_records(provider_id, service_date);
	CREATE INDEX IF NOT EXISTS idx_completed_at ON claim_records(completed_at);

	CREATE TABLE IF NOT EXISTS provider_watchlist (
		provider_id TEXT PRIMARY KEY,
		reason TEXT DEFAULT '',
		added_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`

	_, err := db.Exec(schema)
	return err
}

// SaveRecord inserts a completed run. Records are immutable; attempting to
// save the same run ID twice is an error.
func (s *SQLiteStore) SaveRecord(ctx context.Context, record *domain.ClaimRecord) error {
	if err := record.Validate(); err != nil {
		return err
	}

	doc, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO claim_records (
			run_id, claim_id, provider_id, service_date,
			decision, composite_score, record, completed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		record.RunID,
		record.ClaimID,
		record.ProviderID(),
		record.Fields.Value(domain.FieldServiceDate),
		string(record.Decision),
		record.Scores.CompositeScore,
		string(doc),
		record.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert record: %w", err)
	}
	return nil
}

// GetRecord retrieves one run by its ID.
func (s *SQLiteStore) GetRecord(ctx context.Context, runID string) (*domain.ClaimRecord, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT record FROM claim_records WHERE run_id = ?", runID)

	record, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan: %w", err)
	}
	return record, nil
}

// GetLatest retrieves the most recent run for a claim.
func (s *SQLiteStore) GetLatest(ctx context.Context, claimID string) (*domain.ClaimRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT record FROM claim_records
		WHERE claim_id = ?
		ORDER BY completed_at DESC, run_id DESC
		LIMIT 1
	`, claimID)

	record, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan: %w", err)
	}
	return record, nil
}

// ListRuns returns every run for a claim, newest first.
func (s *SQLiteStore) ListRuns(ctx context.Context, claimID string) ([]*domain.ClaimRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT record FROM claim_records
		WHERE claim_id = ?
		ORDER BY completed_at DESC, run_id DESC
	`, claimID)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}
	defer rows.Close()

	return collectRecords(rows)
}

// ListRecent returns the most recently completed runs across all claims.
func (s *SQLiteStore) ListRecent(ctx context.Context, limit int) ([]*domain.ClaimRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT record FROM claim_records
		ORDER BY completed_at DESC, run_id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}
	defer rows.Close()

	return collectRecords(rows)
}

// CountByProvider counts runs by a provider whose service date falls in
// [from, to], excluding runs of the given claim. Used for duplicate-claim
// fraud signals.
func (s *SQLiteStore) CountByProvider(ctx context.Context, providerID string, from, to time.Time, excludeClaimID string) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM claim_records
		WHERE provider_id = ?
		  AND service_date >= ? AND service_date <= ?
		  AND claim_id != ?
	`,
		providerID,
		from.Format("2006-01-02"),
		to.Format("2006-01-02"),
		excludeClaimID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count: %w", err)
	}
	return count, nil
}

// IsWatchlisted reports whether the provider is on the watchlist.
func (s *SQLiteStore) IsWatchlisted(ctx context.Context, providerID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		"SELECT 1 FROM provider_watchlist WHERE provider_id = ?", providerID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to query watchlist: %w", err)
	}
	return true, nil
}

// AddToWatchlist puts a provider on the watchlist.
func (s *SQLiteStore) AddToWatchlist(ctx context.Context, providerID, reason string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO provider_watchlist (provider_id, reason) VALUES (?, ?)
		ON CONFLICT(provider_id) DO UPDATE SET reason = excluded.reason
	`, providerID, reason)
	if err != nil {
		return fmt.Errorf("failed to add to watchlist: %w", err)
	}
	return nil
}

func collectRecords(rows *sql.Rows) ([]*domain.ClaimRecord, error) {
	var result []*domain.ClaimRecord
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		result = append(result, record)
	}
	return result, rows.Err()
}

// Close closes the store and releases resources.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
