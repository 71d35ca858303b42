package services

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/vidarx/recovery-backend/internal/models"
	"github.com/vidarx/recovery-backend/internal/normalizer"
	"github.com/vidarx/recovery-backend/internal/processor"
	"github.com/vidarx/recovery-backend/internal/repository/memory"
)

// stubGateway answers in BancoSur's vocabulary regardless of the name it is
// registered under, and counts how often it was queried.
type stubGateway struct {
	name  string
	err   error
	calls atomic.Int64
}

func (g *stubGateway) Name() string { return g.name }

func (g *stubGateway) Query(_ context.Context, transactionID string, realState models.CanonicalState) (processor.RawResponse, error) {
	g.calls.Add(1)
	if g.err != nil {
		return nil, g.err
	}
	return processor.RawResponse{
		"transaction_id": transactionID,
		"status":         strings.ToUpper(string(realState)),
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
	}, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newRecoveryRig(t *testing.T) (*memory.Store, *stubGateway, *RecoveryService) {
	t.Helper()
	store := memory.NewStore()
	gw := &stubGateway{name: "bancosur"}
	svc := NewRecoveryService(store, processor.Registry{"bancosur": gw}, normalizer.Default(), discardLogger())
	return store, gw, svc
}

func seedTxn(t *testing.T, store *memory.Store, mut func(*models.Transaction)) models.Transaction {
	t.Helper()
	cust := "CUST-001"
	tx := models.Transaction{
		CustomerID:     &cust,
		Amount:         decimal.NewFromInt(1500),
		Currency:       "MXN",
		Processor:      "bancosur",
		OriginalStatus: models.StateUnknown,
		RealState:      models.StateApproved,
		CreatedAt:      time.Now().UTC().Add(-time.Hour),
	}
	if mut != nil {
		mut(&tx)
	}
	created, err := store.Create(context.Background(), tx)
	require.NoError(t, err)
	return created
}

func statePtr(s models.CanonicalState) *models.CanonicalState { return &s }
