package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vidarx/recovery-backend/internal/metrics"
	"github.com/vidarx/recovery-backend/internal/models"
	repo "github.com/vidarx/recovery-backend/internal/repository"
	"github.com/vidarx/recovery-backend/internal/worker"
)

// MaxBatchSize bounds a bulk recovery request; an oversized batch is
// rejected before any processor call is made.
const MaxBatchSize = 500

var ErrBatchTooLarge = errors.New("batch too large")

// BulkService fans a batch of transaction ids out to the recovery service
// and aggregates a summary. Per-item failures are isolated; one bad id never
// aborts the rest of the batch.
type BulkService struct {
	recovery   *RecoveryService
	duplicates *DuplicateService
	store      repo.Transactions
	pool       *worker.Pool
	log        *slog.Logger
}

func NewBulkService(recovery *RecoveryService, duplicates *DuplicateService, store repo.Transactions, pool *worker.Pool, log *slog.Logger) *BulkService {
	return &BulkService{recovery: recovery, duplicates: duplicates, store: store, pool: pool, log: log}
}

func (s *BulkService) BulkRecover(ctx context.Context, ids []string) (models.BulkSummary, error) {
	if len(ids) > MaxBatchSize {
		return models.BulkSummary{}, fmt.Errorf("%d transaction ids exceeds limit of %d: %w", len(ids), MaxBatchSize, ErrBatchTooLarge)
	}
	start := time.Now()

	// One slot per id; aggregation reads only completed slots, in the
	// caller-supplied order, so the report never depends on completion order.
	type slot struct {
		result models.RecoveryResult
		err    error
	}
	slots := make([]slot, len(ids))

	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		s.pool.Submit(func() {
			defer wg.Done()
			slots[i].result, slots[i].err = s.recovery.Recover(ctx, id)
		})
	}
	wg.Wait()

	summary := models.BulkSummary{
		TotalProcessed:          len(ids),
		RefundCurrencyBreakdown: map[string]decimal.Decimal{},
		Transactions:            []models.RecoveryResult{},
		FailedTransactions:      []models.FailedTransaction{},
	}

	for i, id := range ids {
		if err := slots[i].err; err != nil {
			summary.Results.Errors++
			summary.FailedTransactions = append(summary.FailedTransactions, models.FailedTransaction{
				TransactionID: id,
				Error:         err.Error(),
			})
			continue
		}
		res := slots[i].result
		summary.Transactions = append(summary.Transactions, res)
		switch res.RecoveredState {
		case models.StateApproved:
			summary.Results.Approved++
		case models.StateDeclined:
			summary.Results.Declined++
		case models.StatePending:
			summary.Results.Pending++
		default:
			summary.Results.StillUnknown++
		}
		s.tallyDuplicates(ctx, id, &summary)
	}

	elapsed := time.Since(start)
	summary.ProcessingTimeMs = elapsed.Milliseconds()
	metrics.BulkBatchSeconds.Observe(elapsed.Seconds())
	s.log.Info("bulk recovery finished",
		"total", summary.TotalProcessed,
		"errors", summary.Results.Errors,
		"duplicates", summary.DuplicatesDetected,
		"elapsed_ms", summary.ProcessingTimeMs)
	return summary, nil
}

// tallyDuplicates runs duplicate detection for one recovered transaction and
// folds refund recommendations into per-currency buckets. Amounts are never
// summed across currencies.
func (s *BulkService) tallyDuplicates(ctx context.Context, id string, summary *models.BulkSummary) {
	txn, err := s.store.GetByID(ctx, id)
	if err != nil || txn.CustomerID == nil {
		return
	}
	report, err := s.duplicates.FindDuplicates(ctx, id)
	if err != nil {
		s.log.Warn("duplicate detection failed", "transaction", id, "err", err)
		return
	}
	summary.DuplicatesDetected += report.DuplicatesFound
	for _, dup := range report.Duplicates {
		if dup.Recommendation != models.RecommendRefundDuplicate {
			continue
		}
		bucket := summary.RefundCurrencyBreakdown[txn.Currency]
		summary.RefundCurrencyBreakdown[txn.Currency] = bucket.Add(txn.Amount)
	}
}
