package store

import (
	"context"
	"time"

	"github.com/medclaims-analyzer-server/internal/domain"
)

// History adapts a ClaimStore into the HistoryReader used by fraud scoring.
type History struct {
	store domain.ClaimStore
}

// NewHistory creates a history reader over the given store.
func NewHistory(store domain.ClaimStore) *History {
	return &History{store: store}
}

// PriorClaimCount counts runs by the provider with a service date within
// windowDays of the given date, excluding the claim under analysis.
func (h *History) PriorClaimCount(ctx context.Context, providerID string, serviceDate time.Time, windowDays int, excludeClaimID string) (int64, error) {
	window := time.Duration(windowDays) * 24 * time.Hour
	from := serviceDate.Add(-window)
	to := serviceDate.Add(window)
	return h.store.CountByProvider(ctx, providerID, from, to, excludeClaimID)
}
