package processor

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/vidarx/recovery-backend/internal/models"
)

// MexPay reports success/failed/processing/indeterminate in a
// `payment_status` field with Unix-epoch timestamps.
type MexPay struct {
	failureRate float64
}

var mexPayStates = map[models.CanonicalState]string{
	models.StateApproved: "success",
	models.StateDeclined: "failed",
	models.StatePending:  "processing",
	models.StateUnknown:  "indeterminate",
}

func (g *MexPay) Name() string { return "mexpay" }

func (g *MexPay) Query(ctx context.Context, transactionID string, realState models.CanonicalState) (RawResponse, error) {
	if err := simulateLatency(ctx, g.Name()); err != nil {
		return nil, err
	}
	if shouldFail(g.failureRate) {
		return nil, fmt.Errorf("mexpay: connection timeout: %w", ErrUnavailable)
	}

	status, ok := mexPayStates[realState]
	if !ok {
		status = "indeterminate"
	}
	return RawResponse{
		"id":             transactionID,
		"payment_status": status,
		"processed_at":   time.Now().Unix(),
		"gateway":        "MexPay",
		"mx_code":        rand.IntN(9000) + 1000,
		"approved":       status == "success",
	}, nil
}
