// Package score computes the heuristic, fraud and composite scores for a
// claim run and assigns the risk band.
package score

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/medclaims-analyzer-server/internal/domain"
)

// Scorer combines validation findings and fraud signals into a score
// breakdown. History and watchlist readers are optional; when a lookup
// fails the dependent signals are skipped and the breakdown is marked
// degraded rather than failing the run.
type Scorer struct {
	cfg       domain.ScoringConfig
	history   domain.HistoryReader
	watchlist domain.WatchlistReader
	log       *logrus.Logger
}

// NewScorer creates a scorer. history and watchlist may be nil.
func NewScorer(cfg domain.ScoringConfig, history domain.HistoryReader, watchlist domain.WatchlistReader, logger *logrus.Logger) *Scorer {
	return &Scorer{
		cfg:       cfg,
		history:   history,
		watchlist: watchlist,
		log:       logger,
	}
}

// Score produces the full breakdown for one run. The same findings and
// fields always yield the same heuristic score; fraud signals additionally
// depend on history and watchlist state at evaluation time.
func (s *Scorer) Score(ctx context.Context, claimID string, fields domain.ExtractedFieldSet, findings []domain.ValidationFinding) domain.ScoreBreakdown {
	breakdown := domain.ScoreBreakdown{
		HeuristicScore: s.heuristicScore(findings),
	}

	signals, degraded := s.fraudSignals(ctx, claimID, fields)
	breakdown.FraudSignals = signals
	breakdown.Degraded = degraded

	var fraud float64
	for _, sig := range signals {
		fraud += sig.Weight
	}
	breakdown.FraudScore = math.Min(fraud, 100)

	breakdown.CompositeScore = s.composite(breakdown.HeuristicScore, breakdown.FraudScore)
	breakdown.Band = s.band(breakdown.CompositeScore)
	return breakdown
}

// heuristicScore starts at 100 and subtracts a fixed penalty per critical
// and warning finding, floored at zero. Info findings do not penalize.
func (s *Scorer) heuristicScore(findings []domain.ValidationFinding) float64 {
	score := 100.0
	for _, f := range findings {
		switch f.Severity {
		case domain.SeverityCritical:
			score -= s.cfg.CriticalPenalty
		case domain.SeverityWarning:
			score -= s.cfg.WarningPenalty
		}
	}
	return math.Max(score, 0)
}

// fraudSignals evaluates the fraud indicator catalog. Signals whose data
// source is unavailable are skipped and reported via degraded.
func (s *Scorer) fraudSignals(ctx context.Context, claimID string, fields domain.ExtractedFieldSet) (signals []domain.FraudSignal, degraded bool) {
	if sig := s.roundAmountSignal(fields); sig != nil {
		signals = append(signals, *sig)
	}
	if sig := s.weekendAdmissionSignal(fields); sig != nil {
		signals = append(signals, *sig)
	}

	providerID := fields.Value(domain.FieldProviderID)
	if providerID == "" {
		return signals, degraded
	}

	if s.watchlist != nil {
		listed, err := s.watchlist.IsWatchlisted(ctx, providerID)
		switch {
		case err != nil:
			s.log.WithFields(logrus.Fields{
				"claim_id":    claimID,
				"provider_id": providerID,
				"error":       err.Error(),
			}).Warn("Watchlist lookup failed, skipping signal")
			degraded = true
		case listed:
			signals = append(signals, domain.FraudSignal{
				ID:     "fraud.watchlisted_provider",
				Weight: s.cfg.WatchlistWeight,
				Detail: fmt.Sprintf("provider %s is on the watchlist", providerID),
			})
		}
	}

	if s.history != nil {
		if sig, ok := s.duplicateSignal(ctx, claimID, providerID, fields); ok {
			if sig != nil {
				signals = append(signals, *sig)
			}
		} else {
			degraded = true
		}
	}

	return signals, degraded
}

// roundAmountSignal flags large claim amounts that are suspiciously round.
func (s *Scorer) roundAmountSignal(fields domain.ExtractedFieldSet) *domain.FraudSignal {
	f, ok := fields.Get(domain.FieldClaimAmount)
	if !ok {
		return nil
	}
	amount, err := strconv.ParseFloat(f.Value, 64)
	if err != nil {
		return nil
	}
	threshold := s.cfg.RoundAmountThreshold
	if threshold <= 0 {
		threshold = 50000
	}
	if amount > threshold && math.Mod(amount, 1000) == 0 {
		return &domain.FraudSignal{
			ID:     "fraud.round_amount",
			Weight: s.cfg.RoundAmountWeight,
			Detail: fmt.Sprintf("amount %.2f is a round figure above %.0f", amount, threshold),
		}
	}
	return nil
}

// weekendAdmissionSignal flags service dates on weekends, a weak behavioral
// indicator for planned procedures.
func (s *Scorer) weekendAdmissionSignal(fields domain.ExtractedFieldSet) *domain.FraudSignal {
	f, ok := fields.Get(domain.FieldServiceDate)
	if !ok {
		return nil
	}
	t, err := time.Parse("2006-01-02", f.Value)
	if err != nil {
		return nil
	}
	if wd := t.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return &domain.FraudSignal{
			ID:     "fraud.weekend_admission",
			Weight: s.cfg.WeekendWeight,
			Detail: fmt.Sprintf("service date %s falls on a %s", f.Value, wd),
		}
	}
	return nil
}

// duplicateSignal checks for prior claims by the same provider around the
// same service date. ok is false when the lookup failed.
func (s *Scorer) duplicateSignal(ctx context.Context, claimID, providerID string, fields domain.ExtractedFieldSet) (*domain.FraudSignal, bool) {
	f, ok := fields.Get(domain.FieldServiceDate)
	if !ok {
		return nil, true
	}
	serviceDate, err := time.Parse("2006-01-02", f.Value)
	if err != nil {
		return nil, true
	}

	window := s.cfg.DuplicateWindowDays
	if window <= 0 {
		window = 30
	}

	count, err := s.history.PriorClaimCount(ctx, providerID, serviceDate, window, claimID)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"claim_id":    claimID,
			"provider_id": providerID,
			"error":       err.Error(),
		}).Warn("History lookup failed, skipping duplicate signal")
		return nil, false
	}
	if count > 0 {
		return &domain.FraudSignal{
			ID:     "fraud.duplicate_claim",
			Weight: s.cfg.DuplicateWeight,
			Detail: fmt.Sprintf("%d prior claims by provider %s within %d days", count, providerID, window),
		}, true
	}
	return nil, true
}

// composite blends the heuristic score with the inverted fraud score and
// clamps to [0, 100]. Higher is safer.
func (s *Scorer) composite(heuristic, fraud float64) float64 {
	hw, fw := s.cfg.HeuristicWeight, s.cfg.FraudWeight
	if hw+fw <= 0 {
		hw, fw = 0.6, 0.4
	}
	composite := (hw*heuristic + fw*(100-fraud)) / (hw + fw)
	return math.Max(0, math.Min(composite, 100))
}

// band maps the composite score onto the configured cutoffs.
func (s *Scorer) band(composite float64) domain.RiskBand {
	switch {
	case composite >= s.cfg.BandLow:
		return domain.RiskLow
	case composite >= s.cfg.BandMedium:
		return domain.RiskMedium
	case composite >= s.cfg.BandHigh:
		return domain.RiskHigh
	default:
		return domain.RiskCritical
	}
}
