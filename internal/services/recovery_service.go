package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/vidarx/recovery-backend/internal/metrics"
	"github.com/vidarx/recovery-backend/internal/models"
	"github.com/vidarx/recovery-backend/internal/normalizer"
	"github.com/vidarx/recovery-backend/internal/processor"
	repo "github.com/vidarx/recovery-backend/internal/repository"
)

// StaleThreshold is the age past which a processor's answer about an old
// timeout is considered too unreliable to act on financially.
const StaleThreshold = 30 * 24 * time.Hour

// RecoveryService resolves transactions stuck in the unknown state by
// querying the originating processor. It is the only writer of the recovery
// fields.
type RecoveryService struct {
	store    repo.Transactions
	gateways processor.Registry
	profiles normalizer.Table
	log      *slog.Logger
}

func NewRecoveryService(store repo.Transactions, gateways processor.Registry, profiles normalizer.Table, log *slog.Logger) *RecoveryService {
	return &RecoveryService{store: store, gateways: gateways, profiles: profiles, log: log}
}

// Recover resolves one transaction.
//
// Already recovered: the stored outcome is served and no processor call is
// made. Re-querying wastes a rate-limited call and risks a second, different
// answer corrupting a consistent record.
//
// Stale (older than 30 days): recovered as unknown with a warning, without
// consulting the processor, since its answer would not be trusted anyway.
//
// Otherwise the gateway is queried, the response normalized, and the
// recovery fields persisted once. A transient gateway failure propagates
// with no partial write.
func (s *RecoveryService) Recover(ctx context.Context, id string) (models.RecoveryResult, error) {
	txn, err := s.store.GetByID(ctx, id)
	if err != nil {
		return models.RecoveryResult{}, err
	}

	if txn.Recovered() {
		return s.storedResult(txn), nil
	}

	now := time.Now().UTC()
	if age := now.Sub(txn.CreatedAt); age > StaleThreshold {
		return s.recoverStale(ctx, txn, now, age)
	}

	gw, ok := s.gateways.Lookup(txn.Processor)
	if !ok {
		return models.RecoveryResult{}, fmt.Errorf("no gateway for processor %q: %w", txn.Processor, processor.ErrUnavailable)
	}

	raw, err := gw.Query(ctx, txn.ID, txn.RealState)
	if err != nil {
		metrics.ProcessorErrorsTotal.WithLabelValues(txn.Processor).Inc()
		s.log.Warn("processor query failed", "transaction", txn.ID, "processor", txn.Processor, "err", err)
		return models.RecoveryResult{}, err
	}

	out, err := s.profiles.Normalize(txn.Processor, raw)
	if err != nil {
		return models.RecoveryResult{}, err
	}

	recoveredAt := time.Now().UTC()
	wrote, err := s.store.SetRecovered(ctx, txn.ID, out.State, recoveredAt, out.ProcessorTimestamp)
	if err != nil {
		return models.RecoveryResult{}, err
	}
	if !wrote {
		// A concurrent recovery won the conditional write; report what it
		// persisted instead of our answer.
		txn, err = s.store.GetByID(ctx, txn.ID)
		if err != nil {
			return models.RecoveryResult{}, err
		}
		return s.storedResult(txn), nil
	}

	metrics.RecoveriesTotal.WithLabelValues(string(out.State)).Inc()
	s.log.Info("transaction recovered", "transaction", txn.ID, "processor", txn.Processor, "state", out.State)

	return models.RecoveryResult{
		TransactionID:      txn.ID,
		OriginalStatus:     txn.OriginalStatus,
		RecoveredState:     out.State,
		ProcessorTimestamp: out.ProcessorTimestamp,
		RecommendedAction:  normalizer.ActionFor(out.State),
		NextRetryAt:        s.profiles.NextRetryAt(txn.Processor, out.State, recoveredAt),
		RawResponse:        raw,
		RecoveredAt:        recoveredAt,
	}, nil
}

func staleWarning(txn models.Transaction, age time.Duration) string {
	days := int(age.Hours() / 24)
	return fmt.Sprintf(
		"transaction is %d days old (threshold: %d days); the processor's answer is not trusted for a timeout this old, verify manually with %s",
		days, int(StaleThreshold.Hours()/24), txn.Processor)
}

func (s *RecoveryService) recoverStale(ctx context.Context, txn models.Transaction, now time.Time, age time.Duration) (models.RecoveryResult, error) {
	warning := staleWarning(txn, age)

	wrote, err := s.store.SetRecovered(ctx, txn.ID, models.StateUnknown, now, nil)
	if err != nil {
		return models.RecoveryResult{}, err
	}
	if !wrote {
		txn, err = s.store.GetByID(ctx, txn.ID)
		if err != nil {
			return models.RecoveryResult{}, err
		}
		return s.storedResult(txn), nil
	}

	metrics.RecoveriesTotal.WithLabelValues(string(models.StateUnknown)).Inc()
	s.log.Info("stale transaction escalated", "transaction", txn.ID, "age_days", int(age.Hours()/24))

	return models.RecoveryResult{
		TransactionID:     txn.ID,
		OriginalStatus:    txn.OriginalStatus,
		RecoveredState:    models.StateUnknown,
		RecommendedAction: models.ActionEscalate,
		StaleWarning:      warning,
		RawResponse:       processor.RawResponse{"skipped": true, "reason": "stale_transaction"},
		RecoveredAt:       now,
	}, nil
}

// storedResult rebuilds the outcome from persisted fields. The recommended
// action derives purely from state, and the staleness warning derives from
// CreatedAt, so both round-trip without the raw response.
func (s *RecoveryService) storedResult(txn models.Transaction) models.RecoveryResult {
	state := *txn.RecoveredState
	recoveredAt := txn.CreatedAt
	if txn.RecoveredAt != nil {
		recoveredAt = *txn.RecoveredAt
	}
	var warning string
	if state == models.StateUnknown {
		if age := time.Now().UTC().Sub(txn.CreatedAt); age > StaleThreshold {
			warning = staleWarning(txn, age)
		}
	}
	return models.RecoveryResult{
		TransactionID:      txn.ID,
		OriginalStatus:     txn.OriginalStatus,
		RecoveredState:     state,
		ProcessorTimestamp: txn.ProcessorTimestamp,
		RecommendedAction:  normalizer.ActionFor(state),
		StaleWarning:       warning,
		RawResponse:        processor.RawResponse{"cached": true, "status": string(state)},
		RecoveredAt:        recoveredAt,
	}
}
