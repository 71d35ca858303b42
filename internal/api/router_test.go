package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vidarx/recovery-backend/internal/api/handlers"
	"github.com/vidarx/recovery-backend/internal/auth"
	"github.com/vidarx/recovery-backend/internal/config"
	"github.com/vidarx/recovery-backend/internal/middleware"
	"github.com/vidarx/recovery-backend/internal/models"
	"github.com/vidarx/recovery-backend/internal/normalizer"
	"github.com/vidarx/recovery-backend/internal/processor"
	"github.com/vidarx/recovery-backend/internal/repository/memory"
	"github.com/vidarx/recovery-backend/internal/services"
	"github.com/vidarx/recovery-backend/internal/worker"
)

// echoGateway answers in BancoSur's vocabulary with the transaction's ground
// truth, optionally failing every query.
type echoGateway struct {
	name string
	fail bool
}

func (g *echoGateway) Name() string { return g.name }

func (g *echoGateway) Query(_ context.Context, transactionID string, realState models.CanonicalState) (processor.RawResponse, error) {
	if g.fail {
		return nil, fmt.Errorf("%s: down: %w", g.name, processor.ErrUnavailable)
	}
	return processor.RawResponse{
		"transaction_id": transactionID,
		"status":         strings.ToUpper(string(realState)),
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
	}, nil
}

type apiRig struct {
	store   *memory.Store
	handler http.Handler
}

func newAPIRig(t *testing.T) *apiRig {
	t.Helper()

	store := memory.NewStore()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	registry := processor.Registry{
		"bancosur": &echoGateway{name: "bancosur"},
		"mexpay":   &echoGateway{name: "mexpay", fail: true},
	}

	recovery := services.NewRecoveryService(store, registry, normalizer.Default(), log)
	duplicates := services.NewDuplicateService(store, log)
	pool := worker.NewPool(4)
	t.Cleanup(pool.Stop)
	bulk := services.NewBulkService(recovery, duplicates, store, pool, log)

	tm := auth.NewTokenManager("test-access-secret", "test-refresh-secret", 15*time.Minute, 24*time.Hour)
	hash, err := auth.HashPassword("changeme")
	require.NoError(t, err)

	handler := NewRouter(RouterDeps{
		Cfg:          config.Config{RateRPS: 0}, // rate limiting off in tests
		Auth:         handlers.NewAuthHandler(tm, "ops", hash),
		Transactions: handlers.NewTransactionsHandler(store, recovery, duplicates),
		Bulk:         handlers.NewBulkHandler(bulk),
		AuthMW:       middleware.NewAuthMiddleware(tm),
	})
	return &apiRig{store: store, handler: handler}
}

func (rig *apiRig) seed(t *testing.T, id, customer, proc string, amount int64) models.Transaction {
	t.Helper()
	tx := models.Transaction{
		ID:             id,
		Amount:         decimal.NewFromInt(amount),
		Currency:       "MXN",
		Processor:      proc,
		OriginalStatus: models.StateUnknown,
		RealState:      models.StateApproved,
		CreatedAt:      time.Now().UTC().Add(-time.Hour),
	}
	if customer != "" {
		tx.CustomerID = &customer
	}
	created, err := rig.store.Create(context.Background(), tx)
	require.NoError(t, err)
	return created
}

func (rig *apiRig) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	rig.handler.ServeHTTP(rec, req)
	return rec
}

func (rig *apiRig) login(t *testing.T) string {
	t.Helper()
	rec := rig.do(t, http.MethodPost, "/api/v1/auth/login", "",
		map[string]string{"username": "ops", "password": "changeme"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var tokens struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tokens))
	require.NotEmpty(t, tokens.AccessToken)
	return tokens.AccessToken
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var e struct {
		Code string `json:"code"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &e))
	return e.Code
}

func TestHealth(t *testing.T) {
	rig := newAPIRig(t)
	rec := rig.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	rig := newAPIRig(t)
	rec := rig.do(t, http.MethodPost, "/api/v1/auth/login", "",
		map[string]string{"username": "ops", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthorized", decodeError(t, rec))
}

func TestRefreshRotatesTokens(t *testing.T) {
	rig := newAPIRig(t)
	rec := rig.do(t, http.MethodPost, "/api/v1/auth/login", "",
		map[string]string{"username": "ops", "password": "changeme"})
	require.Equal(t, http.StatusOK, rec.Code)
	var tokens struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tokens))

	rec = rig.do(t, http.MethodPost, "/api/v1/auth/refresh", "",
		map[string]string{"refresh_token": tokens.RefreshToken})
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// An access token is not a refresh token.
	rec = rig.do(t, http.MethodPost, "/api/v1/auth/refresh", "",
		map[string]string{"refresh_token": tokens.AccessToken})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGetTransaction(t *testing.T) {
	rig := newAPIRig(t)
	rig.seed(t, "txn_1", "CUST-1", "bancosur", 1500)

	rec := rig.do(t, http.MethodGet, "/api/v1/transactions/txn_1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var tx map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tx))
	assert.Equal(t, "txn_1", tx["id"])
	assert.Equal(t, "unknown", tx["original_status"])
	assert.NotContains(t, tx, "recovered_state")

	rec = rig.do(t, http.MethodGet, "/api/v1/transactions/txn_missing", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decodeError(t, rec))
}

func TestListTransactions(t *testing.T) {
	rig := newAPIRig(t)
	for i := 0; i < 3; i++ {
		rig.seed(t, fmt.Sprintf("txn_%d", i), "CUST-1", "bancosur", 100)
	}

	rec := rig.do(t, http.MethodGet, "/api/v1/transactions?limit=2", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var txns []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &txns))
	assert.Len(t, txns, 2)
}

func TestRecoverRequiresAuth(t *testing.T) {
	rig := newAPIRig(t)
	rig.seed(t, "txn_1", "CUST-1", "bancosur", 1500)

	rec := rig.do(t, http.MethodPost, "/api/v1/transactions/txn_1/recover", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = rig.do(t, http.MethodPost, "/api/v1/transactions/txn_1/recover", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRecoverEndpoint(t *testing.T) {
	rig := newAPIRig(t)
	rig.seed(t, "txn_1", "CUST-1", "bancosur", 1500)
	token := rig.login(t)

	rec := rig.do(t, http.MethodPost, "/api/v1/transactions/txn_1/recover", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, "txn_1", res["transaction_id"])
	assert.Equal(t, "approved", res["recovered_state"])
	assert.Equal(t, "fulfill_order", res["recommended_action"])

	rec = rig.do(t, http.MethodPost, "/api/v1/transactions/txn_missing/recover", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRecoverUnavailableProcessorIs502(t *testing.T) {
	rig := newAPIRig(t)
	rig.seed(t, "txn_down", "CUST-1", "mexpay", 1500)
	token := rig.login(t)

	rec := rig.do(t, http.MethodPost, "/api/v1/transactions/txn_down/recover", token, nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "processor_unavailable", decodeError(t, rec))
}

func TestDuplicatesEndpoint(t *testing.T) {
	rig := newAPIRig(t)
	rig.seed(t, "txn_a", "CUST-1", "bancosur", 3200)
	rig.seed(t, "txn_b", "CUST-1", "bancosur", 3200)

	rec := rig.do(t, http.MethodGet, "/api/v1/transactions/txn_a/duplicates", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var report map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, "txn_a", report["transaction_id"])
	assert.EqualValues(t, 1, report["duplicates_found"])
}

func TestBulkRecoverEndpoint(t *testing.T) {
	rig := newAPIRig(t)
	rig.seed(t, "txn_1", "CUST-1", "bancosur", 100)
	rig.seed(t, "txn_2", "CUST-2", "bancosur", 200)
	token := rig.login(t)

	rec := rig.do(t, http.MethodPost, "/api/v1/transactions/bulk-recover", token,
		map[string][]string{"transaction_ids": {"txn_1", "txn_2", "txn_missing"}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var summary struct {
		TotalProcessed int `json:"total_processed"`
		Results        struct {
			Approved int `json:"approved"`
			Errors   int `json:"errors"`
		} `json:"results"`
		FailedTransactions []struct {
			TransactionID string `json:"transaction_id"`
		} `json:"failed_transactions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, 3, summary.TotalProcessed)
	assert.Equal(t, 2, summary.Results.Approved)
	assert.Equal(t, 1, summary.Results.Errors)
	require.Len(t, summary.FailedTransactions, 1)
	assert.Equal(t, "txn_missing", summary.FailedTransactions[0].TransactionID)
}

func TestBulkRecoverValidation(t *testing.T) {
	rig := newAPIRig(t)
	token := rig.login(t)

	rec := rig.do(t, http.MethodPost, "/api/v1/transactions/bulk-recover", token,
		map[string][]string{"transaction_ids": {}})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "validation_failed", decodeError(t, rec))

	ids := make([]string, services.MaxBatchSize+1)
	for i := range ids {
		ids[i] = fmt.Sprintf("txn_%04d", i)
	}
	rec = rig.do(t, http.MethodPost, "/api/v1/transactions/bulk-recover", token,
		map[string][]string{"transaction_ids": ids})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "validation_failed", decodeError(t, rec))

	rec = rig.do(t, http.MethodPost, "/api/v1/transactions/bulk-recover", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
