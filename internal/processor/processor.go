// Package processor holds the gateway abstraction for the upstream payment
// processors plus the simulated implementations used by this service. Each
// gateway answers in its own wire vocabulary; only the normalizer may
// interpret the raw payloads.
package processor

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/vidarx/recovery-backend/internal/models"
)

// RawResponse is processor-shaped and opaque to everything but the normalizer.
type RawResponse map[string]any

// ErrUnavailable marks a transient failure to reach a processor, as opposed
// to a declined outcome.
var ErrUnavailable = errors.New("processor unavailable")

// Gateway queries one payment processor for a transaction's current state.
// realState exists only because the processors are simulated here; a real
// gateway would ignore it.
type Gateway interface {
	Name() string
	Query(ctx context.Context, transactionID string, realState models.CanonicalState) (RawResponse, error)
}

// Registry maps processor names to gateways. It is an explicit value passed
// in at construction time, so tests substitute gateways by building a
// different registry, never by mutating shared state.
type Registry map[string]Gateway

func (r Registry) Lookup(name string) (Gateway, bool) {
	g, ok := r[name]
	return g, ok
}

// NewRegistry builds the four production-shaped simulated gateways with the
// given transient failure rate (0 disables failures).
func NewRegistry(failureRate float64) Registry {
	gws := []Gateway{
		&BancoSur{failureRate: failureRate},
		&MexPay{failureRate: failureRate},
		&AndesPSP{failureRate: failureRate},
		&CashVoucher{failureRate: failureRate},
	}
	reg := make(Registry, len(gws))
	for _, g := range gws {
		reg[g.Name()] = g
	}
	return reg
}

// simulateLatency sleeps 10-200ms, honoring cancellation. A timed-out
// recovery call is a transient failure, not a state change.
func simulateLatency(ctx context.Context, name string) error {
	delay := time.Duration(10+rand.IntN(190)) * time.Millisecond
	select {
	case <-time.After(delay):
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%s: query cancelled: %w", name, ErrUnavailable)
	}
}

func shouldFail(rate float64) bool {
	return rate > 0 && rand.Float64() < rate
}
