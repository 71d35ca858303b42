package postgres

import (
	"github.com/jackc/pgx/v5/pgxpool"

	repo "github.com/vidarx/recovery-backend/internal/repository"
)

type Repositories struct {
	Transactions repo.Transactions
}

func NewRepositories(pool *pgxpool.Pool) Repositories {
	return Repositories{
		Transactions: &transactionsRepo{pool},
	}
}
