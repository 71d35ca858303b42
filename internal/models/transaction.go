package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CanonicalState is the normalized outcome vocabulary. No processor-specific
// status string leaks past the normalizer boundary.
type CanonicalState string

const (
	StateApproved CanonicalState = "approved"
	StateDeclined CanonicalState = "declined"
	StatePending  CanonicalState = "pending"
	StateUnknown  CanonicalState = "unknown"
)

// RecommendedAction is derived purely from the canonical state.
type RecommendedAction string

const (
	ActionFulfillOrder      RecommendedAction = "fulfill_order"
	ActionRefundCustomer    RecommendedAction = "refund_customer"
	ActionWaitForSettlement RecommendedAction = "wait_for_settlement"
	ActionEscalate          RecommendedAction = "escalate_to_manual_review"
)

// Transaction is a charge that timed out at creation and landed in the
// "unknown" state. OriginalStatus never changes; the recovery fields are
// written exactly once, by the recovery service.
type Transaction struct {
	ID                 string          `json:"id"`
	CustomerID         *string         `json:"customer_id,omitempty"`
	Amount             decimal.Decimal `json:"amount"`
	Currency           string          `json:"currency"`
	Processor          string          `json:"processor"`
	OriginalStatus     CanonicalState  `json:"original_status"`
	RealState          CanonicalState  `json:"-"` // ground truth fed to the simulated gateways
	RecoveredState     *CanonicalState `json:"recovered_state,omitempty"`
	RecoveredAt        *time.Time      `json:"recovered_at,omitempty"`
	ProcessorTimestamp *string         `json:"processor_timestamp,omitempty"`
	Notes              *string         `json:"notes,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
}

// Recovered reports whether a recovery outcome has already been persisted.
func (t Transaction) Recovered() bool { return t.RecoveredState != nil }

// EffectiveState is the recovered state when present, else the ground-truth
// state. Used only for duplicate-pair comparison, where an unrecovered
// transaction's recoverable outcome is still knowable.
func (t Transaction) EffectiveState() CanonicalState {
	if t.RecoveredState != nil {
		return *t.RecoveredState
	}
	return t.RealState
}
