package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/medclaims-analyzer-server/internal/domain"
)

// PostgresStore implements domain.ClaimStore using PostgreSQL. The full
// record lives in a JSONB column next to the indexed lookup columns.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL claim store. It expects the
// schema to already exist (created via migrations).
func NewPostgresStore(db *sql.DB) (*PostgresStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

// NewPostgresStoreFromURL creates a new PostgreSQL claim store from a
// connection URL.
func NewPostgresStoreFromURL(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	store, err := NewPostgresStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// SaveRecord inserts a completed run. Records are immutable.
func (s *PostgresStore) SaveRecord(ctx context.Context, record *domain.ClaimRecord) error {
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
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		record.RunID,
		record.ClaimID,
		record.ProviderID(),
		record.Fields.Value(domain.FieldServiceDate),
		string(record.Decision),
		record.Scores.CompositeScore,
		doc,
		record.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert record: %w", err)
	}
	return nil
}

// GetRecord retrieves one run by its ID.
func (s *PostgresStore) GetRecord(ctx context.Context, runID string) (*domain.ClaimRecord, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT record FROM claim_records WHERE run_id = $1", runID)

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
func (s *PostgresStore) GetLatest(ctx context.Context, claimID string) (*domain.ClaimRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT record FROM claim_records
		WHERE claim_id = $1
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
func (s *PostgresStore) ListRuns(ctx context.Context, claimID string) ([]*domain.ClaimRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT record FROM claim_records
		WHERE claim_id = $1
		ORDER BY completed_at DESC, run_id DESC
	`, claimID)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}
	defer rows.Close()

	return collectRecords(rows)
}

// ListRecent returns the most recently completed runs across all claims.
func (s *PostgresStore) ListRecent(ctx context.Context, limit int) ([]*domain.ClaimRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT record FROM claim_records
		ORDER BY completed_at DESC, run_id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}
	defer rows.Close()

	return collectRecords(rows)
}

// CountByProvider counts runs by a provider whose service date falls in
// [from, to], excluding runs of the given claim.
func (s *PostgresStore) CountByProvider(ctx context.Context, providerID string, from, to time.Time, excludeClaimID string) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM claim_records
		WHERE provider_id = $1
		  AND service_date >= $2 AND service_date <= $3
		  AND claim_id != $4
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
func (s *PostgresStore) IsWatchlisted(ctx context.Context, providerID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		"SELECT 1 FROM provider_watchlist WHERE provider_id = $1", providerID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to query watchlist: %w", err)
	}
	return true, nil
}

// AddToWatchlist puts a provider on the watchlist.
func (s *PostgresStore) AddToWatchlist(ctx context.Context, providerID, reason string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO provider_watchlist (provider_id, reason) VALUES ($1, $2)
		ON CONFLICT (provider_id) DO UPDATE SET reason = EXCLUDED.reason
	`, providerID, reason)
	if err != nil {
		return fmt.Errorf("failed to add to watchlist: %w", err)
	}
	return nil
}

// Close closes the store and releases resources.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
