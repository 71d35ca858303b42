package processor

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/vidarx/recovery-backend/internal/models"
)

// CashVoucher reports PAID/REJECTED/WAITING/ERROR in a `state` field with
// RFC-2822 timestamps.
type CashVoucher struct {
	failureRate float64
}

var cashVoucherStates = map[models.CanonicalState]string{
	models.StateApproved: "PAID",
	models.StateDeclined: "REJECTED",
	models.StatePending:  "WAITING",
	models.StateUnknown:  "ERROR",
}

func (g *CashVoucher) Name() string { return "cashvoucher" }

func (g *CashVoucher) Query(ctx context.Context, transactionID string, realState models.CanonicalState) (RawResponse, error) {
	if err := simulateLatency(ctx, g.Name()); err != nil {
		return nil, err
	}
	if shouldFail(g.failureRate) {
		return nil, fmt.Errorf("cashvoucher: service error 503: %w", ErrUnavailable)
	}

	state, ok := cashVoucherStates[realState]
	if !ok {
		state = "ERROR"
	}
	return RawResponse{
		"voucher_ref":    transactionID,
		"state":          state,
		"issued_at":      time.Now().UTC().Format(time.RFC1123Z),
		"issuer":         "CashVoucher",
		"voucher_number": fmt.Sprintf("CV%05d", rand.IntN(90000)+10000),
		"valid":          state == "PAID",
	}, nil
}
