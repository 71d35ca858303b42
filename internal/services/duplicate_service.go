package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vidarx/recovery-backend/internal/metrics"
	"github.com/vidarx/recovery-backend/internal/models"
	repo "github.com/vidarx/recovery-backend/internal/repository"
)

const (
	// Candidate window: amount within ±5% (absorbs rounding noise, not a
	// currency conversion), created within ±10 minutes.
	candidateWindow = 10 * time.Minute

	accidentalRetryGap = 2 * time.Minute
	suspectedRetryGap  = 5 * time.Minute
)

var (
	amountLowFactor  = decimal.NewFromFloat(0.95)
	amountHighFactor = decimal.NewFromFloat(1.05)
)

// DuplicateService finds likely duplicate charges (e.g. a customer's panic
// retry) among a customer's prior transactions.
type DuplicateService struct {
	store repo.Transactions
	log   *slog.Logger
}

func NewDuplicateService(store repo.Transactions, log *slog.Logger) *DuplicateService {
	return &DuplicateService{store: store, log: log}
}

// FindDuplicates reports candidates ordered earliest-first. A transaction
// without a customer id yields an empty report, not an error.
func (s *DuplicateService) FindDuplicates(ctx context.Context, id string) (models.DuplicateReport, error) {
	target, err := s.store.GetByID(ctx, id)
	if err != nil {
		return models.DuplicateReport{}, err
	}

	report := models.DuplicateReport{TransactionID: target.ID, Duplicates: []models.DuplicateEntry{}}
	if target.CustomerID == nil {
		return report, nil
	}

	candidates, err := s.store.ListCandidates(ctx,
		*target.CustomerID,
		target.Amount.Mul(amountLowFactor),
		target.Amount.Mul(amountHighFactor),
		target.CreatedAt.Add(-candidateWindow),
		target.CreatedAt.Add(candidateWindow),
	)
	if err != nil {
		return models.DuplicateReport{}, err
	}

	type scored struct {
		entry     models.DuplicateEntry
		createdAt time.Time
	}
	var matches []scored
	for _, cand := range candidates {
		if cand.ID == target.ID {
			continue
		}
		gap := target.CreatedAt.Sub(cand.CreatedAt)
		if gap < 0 {
			gap = -gap
		}
		score := confidenceScore(target, cand, gap)
		rec, reason := recommend(target, cand)
		matches = append(matches, scored{
			entry: models.DuplicateEntry{
				DuplicateTransactionID: cand.ID,
				ConfidenceScore:        score,
				DuplicateType:          classify(score, gap, target.Processor == cand.Processor),
				TimeGapSeconds:         gap.Seconds(),
				Recommendation:         rec,
				Reasoning:              reason,
			},
			createdAt: cand.CreatedAt,
		})
	}

	// Earliest-first, id as tiebreak for reproducible reports.
	sort.Slice(matches, func(i, j int) bool {
		if !matches[i].createdAt.Equal(matches[j].createdAt) {
			return matches[i].createdAt.Before(matches[j].createdAt)
		}
		return matches[i].entry.DuplicateTransactionID < matches[j].entry.DuplicateTransactionID
	})
	for _, m := range matches {
		report.Duplicates = append(report.Duplicates, m.entry)
	}

	report.DuplicatesFound = len(report.Duplicates)
	if report.DuplicatesFound > 0 {
		metrics.DuplicatesDetectedTotal.Add(float64(report.DuplicatesFound))
	}
	return report, nil
}

// confidenceScore is additive with mutually exclusive amount and time tiers,
// capped at 100.
func confidenceScore(target, cand models.Transaction, gap time.Duration) int {
	score := 0
	if target.Amount.Equal(cand.Amount) {
		score += 40
	} else {
		score += 20 // within 5%, already filtered by the candidate query
	}
	if target.Processor == cand.Processor {
		score += 20
	}
	switch {
	case gap < accidentalRetryGap:
		score += 30
	case gap < suspectedRetryGap:
		score += 20
	default:
		score += 10 // within the 10 minute window
	}
	if score > 100 {
		score = 100
	}
	return score
}

func classify(score int, gap time.Duration, sameProcessor bool) models.DuplicateType {
	switch {
	case score >= 80 && gap < accidentalRetryGap && sameProcessor:
		return models.DupAccidentalRetry
	case score >= 60 && gap < suspectedRetryGap:
		return models.DupSuspectedRetry
	default:
		return models.DupLikelyLegitimate
	}
}

// recommend derives the remediation from the pair's effective states. The
// reasoning always names the earlier transaction as the one kept.
func recommend(target, cand models.Transaction) (models.DuplicateRecommendation, string) {
	ts, cs := target.EffectiveState(), cand.EffectiveState()

	switch {
	case ts == models.StateApproved && cs == models.StateApproved:
		earlier, later := target, cand
		if cand.CreatedAt.Before(target.CreatedAt) {
			earlier, later = cand, target
		}
		return models.RecommendRefundDuplicate,
			fmt.Sprintf("both approved; keep %s (earlier), refund %s", earlier.ID, later.ID)

	case ts == models.StateApproved && cs == models.StateUnknown:
		return models.RecommendMarkDuplicate,
			fmt.Sprintf("%s approved; %s is an unresolved duplicate", target.ID, cand.ID)

	case ts == models.StateUnknown && cs == models.StateApproved:
		return models.RecommendMarkDuplicate,
			fmt.Sprintf("%s approved; %s is an unresolved duplicate", cand.ID, target.ID)

	case ts == models.StateDeclined && cs == models.StateDeclined:
		return models.RecommendNoAction, "both declined; no duplicate charge occurred"

	case (ts == models.StateApproved && cs == models.StateDeclined) ||
		(ts == models.StateDeclined && cs == models.StateApproved):
		return models.RecommendNoAction, "different outcomes; only one side was charged"

	default:
		return models.RecommendManualReview,
			fmt.Sprintf("ambiguous state pair %s/%s; not auto-deciding", ts, cs)
	}
}
