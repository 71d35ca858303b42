package processor

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/vidarx/recovery-backend/internal/models"
)

// BancoSur reports APPROVED/DECLINED/PENDING/UNKNOWN in a `status` field
// with ISO-8601 timestamps.
type BancoSur struct {
	failureRate float64
}

var bancoSurStates = map[models.CanonicalState]string{
	models.StateApproved: "APPROVED",
	models.StateDeclined: "DECLINED",
	models.StatePending:  "PENDING",
	models.StateUnknown:  "UNKNOWN",
}

func (g *BancoSur) Name() string { return "bancosur" }

func (g *BancoSur) Query(ctx context.Context, transactionID string, realState models.CanonicalState) (RawResponse, error) {
	if err := simulateLatency(ctx, g.Name()); err != nil {
		return nil, err
	}
	if shouldFail(g.failureRate) {
		return nil, fmt.Errorf("bancosur: 503 service unavailable: %w", ErrUnavailable)
	}

	status, ok := bancoSurStates[realState]
	if !ok {
		status = "UNKNOWN"
	}
	resp := RawResponse{
		"transaction_id": transactionID,
		"status":         status,
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
		"processor":      "BancoSur",
		"response_code":  "05",
	}
	if status == "APPROVED" {
		resp["response_code"] = "00"
		resp["authorization_code"] = fmt.Sprintf("BS%06d", rand.IntN(900000)+100000)
	}
	return resp, nil
}
