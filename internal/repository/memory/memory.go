// Package memory is a mutex-guarded in-process transaction store. It backs
// the test suites and the STORE=memory demo mode, where running Postgres
// would be overkill.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vidarx/recovery-backend/internal/models"
	"github.com/vidarx/recovery-backend/internal/repository"
)

type Store struct {
	mu   sync.RWMutex
	txns map[string]models.Transaction
}

func NewStore() *Store {
	return &Store{txns: make(map[string]models.Transaction)}
}

func (s *Store) Create(_ context.Context, tx models.Transaction) (models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tx.ID == "" {
		tx.ID = "txn_" + uuid.NewString()[:8]
	}
	s.txns[tx.ID] = tx
	return tx, nil
}

func (s *Store) GetByID(_ context.Context, id string) (models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tx, ok := s.txns[id]
	if !ok {
		return models.Transaction{}, repository.ErrNotFound
	}
	return tx, nil
}

func (s *Store) List(_ context.Context, limit, offset int) ([]models.Transaction, error) {
	s.mu.RLock()
	all := make([]models.Transaction, 0, len(s.txns))
	for _, tx := range s.txns {
		all = append(all, tx)
	}
	s.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID < all[j].ID
	})
	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

func (s *Store) ListCandidates(_ context.Context, customerID string, amountLow, amountHigh decimal.Decimal, from, to time.Time) ([]models.Transaction, error) {
	s.mu.RLock()
	var out []models.Transaction
	for _, tx := range s.txns {
		if tx.CustomerID == nil || *tx.CustomerID != customerID {
			continue
		}
		if tx.Amount.LessThan(amountLow) || tx.Amount.GreaterThan(amountHigh) {
			continue
		}
		if tx.CreatedAt.Before(from) || tx.CreatedAt.After(to) {
			continue
		}
		out = append(out, tx)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) SetRecovered(_ context.Context, id string, state models.CanonicalState, recoveredAt time.Time, processorTS *string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.txns[id]
	if !ok {
		return false, repository.ErrNotFound
	}
	if tx.RecoveredState != nil {
		return false, nil
	}
	tx.RecoveredState = &state
	tx.RecoveredAt = &recoveredAt
	tx.ProcessorTimestamp = processorTS
	s.txns[id] = tx
	return true, nil
}

func (s *Store) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.txns), nil
}
