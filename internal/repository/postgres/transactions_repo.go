package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/vidarx/recovery-backend/internal/models"
	"github.com/vidarx/recovery-backend/internal/repository"
)

type transactionsRepo struct{ pool *pgxpool.Pool }

const txnColumns = `id, customer_id, amount, currency, processor, original_status,
  real_state, recovered_state, recovered_at, processor_timestamp, notes, created_at`

func scanTxn(row pgx.Row) (models.Transaction, error) {
	var tx models.Transaction
	err := row.Scan(
		&tx.ID, &tx.CustomerID, &tx.Amount, &tx.Currency, &tx.Processor,
		&tx.OriginalStatus, &tx.RealState, &tx.RecoveredState, &tx.RecoveredAt,
		&tx.ProcessorTimestamp, &tx.Notes, &tx.CreatedAt,
	)
	return tx, err
}

func (r *transactionsRepo) Create(ctx context.Context, tx models.Transaction) (models.Transaction, error) {
	if tx.ID == "" {
		tx.ID = "txn_" + uuid.NewString()[:8]
	}
	const q = `
INSERT INTO transactions (
  id, customer_id, amount, currency, processor, original_status,
  real_state, recovered_state, recovered_at, processor_timestamp, notes, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
RETURNING ` + txnColumns
	return scanTxn(r.pool.QueryRow(ctx, q,
		tx.ID, tx.CustomerID, tx.Amount, tx.Currency, tx.Processor, tx.OriginalStatus,
		tx.RealState, tx.RecoveredState, tx.RecoveredAt, tx.ProcessorTimestamp, tx.Notes, tx.CreatedAt,
	))
}

func (r *transactionsRepo) GetByID(ctx context.Context, id string) (models.Transaction, error) {
	tx, err := scanTxn(r.pool.QueryRow(ctx,
		`SELECT `+txnColumns+` FROM transactions WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Transaction{}, repository.ErrNotFound
	}
	return tx, err
}

func (r *transactionsRepo) List(ctx context.Context, limit, offset int) ([]models.Transaction, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+txnColumns+` FROM transactions ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collect(rows)
}

func (r *transactionsRepo) ListCandidates(ctx context.Context, customerID string, amountLow, amountHigh decimal.Decimal, from, to time.Time) ([]models.Transaction, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+txnColumns+` FROM transactions
		  WHERE customer_id=$1
		    AND amount BETWEEN $2 AND $3
		    AND created_at BETWEEN $4 AND $5
		  ORDER BY created_at ASC, id ASC`,
		customerID, amountLow, amountHigh, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collect(rows)
}

// SetRecovered is conditional on no prior recovery; the first completed
// recovery wins even across processes.
func (r *transactionsRepo) SetRecovered(ctx context.Context, id string, state models.CanonicalState, recoveredAt time.Time, processorTS *string) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE transactions
		    SET recovered_state=$2, recovered_at=$3, processor_timestamp=$4
		  WHERE id=$1 AND recovered_state IS NULL`,
		id, state, recoveredAt, processorTS)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *transactionsRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT count(*) FROM transactions`).Scan(&n)
	return n, err
}

func collect(rows pgx.Rows) ([]models.Transaction, error) {
	var out []models.Transaction
	for rows.Next() {
		tx, err := scanTxn(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}
