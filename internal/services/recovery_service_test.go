package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vidarx/recovery-backend/internal/models"
	"github.com/vidarx/recovery-backend/internal/normalizer"
	"github.com/vidarx/recovery-backend/internal/processor"
	"github.com/vidarx/recovery-backend/internal/repository"
	"github.com/vidarx/recovery-backend/internal/repository/memory"
)

func TestRecoverNotFound(t *testing.T) {
	_, _, svc := newRecoveryRig(t)
	_, err := svc.Recover(context.Background(), "txn_missing")
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestRecoverPersistsOutcome(t *testing.T) {
	store, gw, svc := newRecoveryRig(t)
	txn := seedTxn(t, store, nil)

	res, err := svc.Recover(context.Background(), txn.ID)
	require.NoError(t, err)

	assert.Equal(t, txn.ID, res.TransactionID)
	assert.Equal(t, models.StateUnknown, res.OriginalStatus)
	assert.Equal(t, models.StateApproved, res.RecoveredState)
	assert.Equal(t, models.ActionFulfillOrder, res.RecommendedAction)
	assert.Nil(t, res.NextRetryAt)
	assert.Empty(t, res.StaleWarning)
	require.NotNil(t, res.ProcessorTimestamp)
	assert.NotNil(t, res.RawResponse)
	assert.EqualValues(t, 1, gw.calls.Load())

	stored, err := store.GetByID(context.Background(), txn.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.RecoveredState)
	assert.Equal(t, models.StateApproved, *stored.RecoveredState)
	require.NotNil(t, stored.RecoveredAt)
	assert.True(t, stored.RecoveredAt.Equal(res.RecoveredAt))
	assert.Equal(t, models.StateUnknown, stored.OriginalStatus)
}

func TestRecoverPendingSchedulesRetry(t *testing.T) {
	store, _, svc := newRecoveryRig(t)
	txn := seedTxn(t, store, func(tx *models.Transaction) {
		tx.RealState = models.StatePending
	})

	res, err := svc.Recover(context.Background(), txn.ID)
	require.NoError(t, err)

	assert.Equal(t, models.StatePending, res.RecoveredState)
	assert.Equal(t, models.ActionWaitForSettlement, res.RecommendedAction)
	require.NotNil(t, res.NextRetryAt)
	assert.True(t, res.NextRetryAt.Equal(res.RecoveredAt.Add(5*time.Minute)),
		"bancosur retries 5 minutes after recovery")
}

func TestRecoverIsIdempotent(t *testing.T) {
	store, gw, svc := newRecoveryRig(t)
	txn := seedTxn(t, store, nil)

	first, err := svc.Recover(context.Background(), txn.ID)
	require.NoError(t, err)
	require.EqualValues(t, 1, gw.calls.Load())

	second, err := svc.Recover(context.Background(), txn.ID)
	require.NoError(t, err)

	assert.EqualValues(t, 1, gw.calls.Load(), "second call must not touch the processor")
	assert.Equal(t, first.TransactionID, second.TransactionID)
	assert.Equal(t, first.RecoveredState, second.RecoveredState)
	assert.Equal(t, first.RecommendedAction, second.RecommendedAction)
	assert.Equal(t, first.ProcessorTimestamp, second.ProcessorTimestamp)
	assert.True(t, first.RecoveredAt.Equal(second.RecoveredAt))
	assert.Equal(t, true, second.RawResponse["cached"])
}

func TestRecoverStaleSkipsProcessor(t *testing.T) {
	store, gw, svc := newRecoveryRig(t)
	txn := seedTxn(t, store, func(tx *models.Transaction) {
		tx.CreatedAt = time.Now().UTC().Add(-31 * 24 * time.Hour)
		tx.RealState = models.StateApproved // the answer must not be trusted
	})

	res, err := svc.Recover(context.Background(), txn.ID)
	require.NoError(t, err)

	assert.EqualValues(t, 0, gw.calls.Load(), "stale recovery must not query the processor")
	assert.Equal(t, models.StateUnknown, res.RecoveredState)
	assert.Equal(t, models.ActionEscalate, res.RecommendedAction)
	assert.Contains(t, res.StaleWarning, "31 days old")
	assert.Contains(t, res.StaleWarning, "bancosur")

	stored, err := store.GetByID(context.Background(), txn.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.RecoveredState)
	assert.Equal(t, models.StateUnknown, *stored.RecoveredState)

	// The persisted escalation is final: a later call serves the same
	// outcome, warning included.
	again, err := svc.Recover(context.Background(), txn.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 0, gw.calls.Load())
	assert.Equal(t, models.StateUnknown, again.RecoveredState)
	assert.Equal(t, models.ActionEscalate, again.RecommendedAction)
	assert.Contains(t, again.StaleWarning, "31 days old")
	assert.Contains(t, again.StaleWarning, "bancosur")
	assert.Equal(t, true, again.RawResponse["cached"])
}

func TestRecoverTransientFailureLeavesNoPartialWrite(t *testing.T) {
	store, gw, svc := newRecoveryRig(t)
	gw.err = fmt.Errorf("bancosur: 503: %w", processor.ErrUnavailable)
	txn := seedTxn(t, store, nil)

	_, err := svc.Recover(context.Background(), txn.ID)
	require.ErrorIs(t, err, processor.ErrUnavailable)

	stored, err := store.GetByID(context.Background(), txn.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.RecoveredState, "a failed query must not mark the transaction recovered")
	assert.Nil(t, stored.RecoveredAt)

	// Once the processor is back the same id recovers normally.
	gw.err = nil
	res, err := svc.Recover(context.Background(), txn.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StateApproved, res.RecoveredState)
}

// racingStore simulates a concurrent recovery winning the conditional write:
// by the time this process tries to persist, another one already has.
type racingStore struct {
	*memory.Store
}

func (s *racingStore) SetRecovered(ctx context.Context, id string, _ models.CanonicalState, recoveredAt time.Time, _ *string) (bool, error) {
	if _, err := s.Store.SetRecovered(ctx, id, models.StateDeclined, recoveredAt, nil); err != nil {
		return false, err
	}
	return false, nil
}

func TestRecoverLostRaceReturnsStoredOutcome(t *testing.T) {
	store := memory.NewStore()
	gw := &stubGateway{name: "bancosur"}
	svc := NewRecoveryService(&racingStore{store}, processor.Registry{"bancosur": gw}, normalizer.Default(), discardLogger())
	txn := seedTxn(t, store, nil) // real state approved; the winner saw declined

	res, err := svc.Recover(context.Background(), txn.ID)
	require.NoError(t, err)

	assert.EqualValues(t, 1, gw.calls.Load())
	assert.Equal(t, models.StateDeclined, res.RecoveredState, "the persisted outcome wins over our answer")
	assert.Equal(t, models.ActionRefundCustomer, res.RecommendedAction)
	assert.Equal(t, true, res.RawResponse["cached"])
}

func TestRecoverUnknownProcessor(t *testing.T) {
	store, _, svc := newRecoveryRig(t)
	txn := seedTxn(t, store, func(tx *models.Transaction) {
		tx.Processor = "globopay"
	})

	_, err := svc.Recover(context.Background(), txn.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, processor.ErrUnavailable))
}
