// Package seed loads a deterministic demo dataset so the recovery flows can
// be exercised without real upstream traffic: a realistic state mix, retry
// clusters for the duplicate detector, and the known edge cases (stale,
// missing customer id, off-currency).
package seed

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vidarx/recovery-backend/internal/models"
	repo "github.com/vidarx/recovery-backend/internal/repository"
)

var (
	processors = []string{"bancosur", "mexpay", "andespsp", "cashvoucher"}
	currencies = []string{"MXN", "COP", "CLP"}

	// 60% approved, 25% declined, 10% pending, 5% unknown
	stateMix = append(append(append(
		repeat(models.StateApproved, 60),
		repeat(models.StateDeclined, 25)...),
		repeat(models.StatePending, 10)...),
		repeat(models.StateUnknown, 5)...)
)

func repeat(s models.CanonicalState, n int) []models.CanonicalState {
	out := make([]models.CanonicalState, n)
	for i := range out {
		out[i] = s
	}
	return out
}

// Run seeds the store unless it already holds data.
func Run(ctx context.Context, store repo.Transactions, log *slog.Logger) error {
	n, err := store.Count(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		log.Info("store already seeded", "transactions", n)
		return nil
	}

	rng := rand.New(rand.NewPCG(42, 0))
	base := time.Now().UTC().Add(-24 * time.Hour).Truncate(time.Hour)

	var txns []models.Transaction

	// regular traffic
	for i := 0; i < 120; i++ {
		cust := fmt.Sprintf("cust_%04d", rng.IntN(60)+1)
		txns = append(txns, newTxn(&cust,
			amount(rng, 100, 50000),
			currencies[rng.IntN(len(currencies))],
			processors[rng.IntN(len(processors))],
			stateMix[rng.IntN(len(stateMix))],
			base.Add(time.Duration(rng.IntN(72*3600))*time.Second),
			nil))
	}

	// accidental-retry clusters: same customer, amount, processor within
	// a few minutes
	for i := 0; i < 10; i++ {
		cust := fmt.Sprintf("cust_dup_%03d", i)
		amt := amount(rng, 500, 20000)
		cur := currencies[rng.IntN(len(currencies))]
		proc := processors[rng.IntN(len(processors))]
		clusterStart := base.Add(time.Duration(rng.IntN(48*3600)) * time.Second)
		note := fmt.Sprintf("accidental_retry_cluster_%d", i)
		for j := 0; j < 2+rng.IntN(2); j++ {
			state := models.StateApproved
			if j > 0 && rng.IntN(2) == 0 {
				state = models.StateUnknown
			}
			txns = append(txns, newTxn(&cust, amt, cur, proc, state,
				clusterStart.Add(time.Duration(j*rng.IntN(280))*time.Second), &note))
		}
	}

	// same price twice, different processors: likely legitimate
	for i := 0; i < 5; i++ {
		cust := fmt.Sprintf("cust_legit_%03d", i)
		amt := amount(rng, 1000, 5000)
		cur := currencies[rng.IntN(len(currencies))]
		clusterStart := base.Add(time.Duration(rng.IntN(48*3600)) * time.Second)
		note := fmt.Sprintf("legit_same_price_cluster_%d", i)
		for j := 0; j < 2; j++ {
			txns = append(txns, newTxn(&cust, amt, cur,
				processors[rng.IntN(len(processors))], models.StateApproved,
				clusterStart.Add(time.Duration(j*(60+rng.IntN(180)))*time.Second), &note))
		}
	}

	// stale, off-currency, and anonymous edge cases
	for i := 0; i < 5; i++ {
		cust := fmt.Sprintf("cust_%04d", rng.IntN(60)+1)
		note := "stale_transaction"
		txns = append(txns, newTxn(&cust,
			amount(rng, 100, 10000),
			currencies[rng.IntN(len(currencies))],
			processors[rng.IntN(len(processors))],
			stateMix[rng.IntN(len(stateMix))],
			base.AddDate(0, 0, -(31+rng.IntN(60))), &note))
	}
	for i := 0; i < 3; i++ {
		cust := fmt.Sprintf("cust_%04d", rng.IntN(60)+1)
		note := "mismatched_currency"
		txns = append(txns, newTxn(&cust,
			amount(rng, 100, 10000), "USD",
			processors[rng.IntN(len(processors))],
			stateMix[rng.IntN(len(stateMix))],
			base.Add(time.Duration(rng.IntN(24*3600))*time.Second), &note))
	}
	for i := 0; i < 4; i++ {
		note := "null_customer_id"
		txns = append(txns, newTxn(nil,
			amount(rng, 100, 10000),
			currencies[rng.IntN(len(currencies))],
			processors[rng.IntN(len(processors))],
			stateMix[rng.IntN(len(stateMix))],
			base.Add(time.Duration(rng.IntN(24*3600))*time.Second), &note))
	}

	for _, tx := range txns {
		if _, err := store.Create(ctx, tx); err != nil {
			return err
		}
	}
	log.Info("seeded demo transactions", "count", len(txns))
	return nil
}

func newTxn(customerID *string, amt decimal.Decimal, currency, proc string, realState models.CanonicalState, createdAt time.Time, notes *string) models.Transaction {
	return models.Transaction{
		ID:             "txn_" + uuid.NewString()[:8],
		CustomerID:     customerID,
		Amount:         amt,
		Currency:       currency,
		Processor:      proc,
		OriginalStatus: models.StateUnknown,
		RealState:      realState,
		Notes:          notes,
		CreatedAt:      createdAt,
	}
}

func amount(rng *rand.Rand, low, high int) decimal.Decimal {
	cents := int64(low*100) + rng.Int64N(int64((high-low)*100))
	return decimal.New(cents, -2)
}
