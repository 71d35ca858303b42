package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// RecoveryResult is the outcome of recovering a single transaction.
type RecoveryResult struct {
	TransactionID      string            `json:"transaction_id"`
	OriginalStatus     CanonicalState    `json:"original_status"`
	RecoveredState     CanonicalState    `json:"recovered_state"`
	ProcessorTimestamp *string           `json:"processor_timestamp"`
	RecommendedAction  RecommendedAction `json:"recommended_action"`
	NextRetryAt        *time.Time        `json:"next_retry_at,omitempty"`
	StaleWarning       string            `json:"stale_transaction_warning,omitempty"`
	RawResponse        map[string]any    `json:"processor_raw_response"`
	RecoveredAt        time.Time         `json:"recovered_at"`
}

// DuplicateType classifies how likely a candidate is a retry of the target.
type DuplicateType string

const (
	DupAccidentalRetry  DuplicateType = "accidental_retry"
	DupSuspectedRetry   DuplicateType = "suspected_retry"
	DupLikelyLegitimate DuplicateType = "likely_legitimate"
)

// DuplicateRecommendation is the remediation derived from the effective
// states of a target/candidate pair.
type DuplicateRecommendation string

const (
	RecommendRefundDuplicate DuplicateRecommendation = "refund_duplicate"
	RecommendMarkDuplicate   DuplicateRecommendation = "mark_as_duplicate"
	RecommendNoAction        DuplicateRecommendation = "no_action"
	RecommendManualReview    DuplicateRecommendation = "manual_review"
)

type DuplicateEntry struct {
	DuplicateTransactionID string                  `json:"duplicate_transaction_id"`
	ConfidenceScore        int                     `json:"confidence_score"`
	DuplicateType          DuplicateType           `json:"duplicate_type"`
	TimeGapSeconds         float64                 `json:"time_gap_seconds"`
	Recommendation         DuplicateRecommendation `json:"recommendation"`
	Reasoning              string                  `json:"reasoning"`
}

// DuplicateReport is computed fresh on every request, never cached.
// Entries are ordered earliest-first by candidate creation time.
type DuplicateReport struct {
	TransactionID   string           `json:"transaction_id"`
	DuplicatesFound int              `json:"duplicates_found"`
	Duplicates      []DuplicateEntry `json:"duplicates"`
}

type BulkCounts struct {
	Approved     int `json:"approved"`
	Declined     int `json:"declined"`
	Pending      int `json:"pending"`
	StillUnknown int `json:"still_unknown"`
	Errors       int `json:"errors"`
}

type FailedTransaction struct {
	TransactionID string `json:"transaction_id"`
	Error         string `json:"error"`
}

// BulkSummary aggregates a batch of recoveries. Refund amounts are bucketed
// by currency and never summed across currencies.
type BulkSummary struct {
	TotalProcessed          int                        `json:"total_processed"`
	Results                 BulkCounts                 `json:"results"`
	DuplicatesDetected      int                        `json:"duplicates_detected"`
	RefundCurrencyBreakdown map[string]decimal.Decimal `json:"refund_currency_breakdown"`
	Transactions            []RecoveryResult           `json:"transactions"`
	FailedTransactions      []FailedTransaction        `json:"failed_transactions"`
	ProcessingTimeMs        int64                      `json:"processing_time_ms"`
}
