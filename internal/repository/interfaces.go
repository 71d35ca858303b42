package repository

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vidarx/recovery-backend/internal/models"
)

// ErrNotFound is returned when a transaction id is unrecognized.
var ErrNotFound = errors.New("transaction not found")

// Transactions is the record store the recovery core depends on.
type Transactions interface {
	Create(ctx context.Context, tx models.Transaction) (models.Transaction, error)
	GetByID(ctx context.Context, id string) (models.Transaction, error)
	List(ctx context.Context, limit, offset int) ([]models.Transaction, error)

	// ListCandidates returns the customer's transactions with an amount in
	// [amountLow, amountHigh] created within [from, to]. The target itself
	// may be included; callers filter it out.
	ListCandidates(ctx context.Context, customerID string, amountLow, amountHigh decimal.Decimal, from, to time.Time) ([]models.Transaction, error)

	// SetRecovered writes the recovery fields only if no recovery has been
	// persisted yet. Returns false when a prior recovery already won.
	SetRecovered(ctx context.Context, id string, state models.CanonicalState, recoveredAt time.Time, processorTS *string) (bool, error)

	Count(ctx context.Context) (int, error)
}
