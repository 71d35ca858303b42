// Package normalizer maps processor-specific raw responses to the canonical
// outcome vocabulary. Each processor contributes four independently pluggable
// facts: the field carrying its status, its status vocabulary, a timestamp
// parser, and a retry delay. Adding a processor is one new Profile entry.
package normalizer

import (
	"fmt"
	"strconv"
	"time"

	"github.com/vidarx/recovery-backend/internal/models"
	"github.com/vidarx/recovery-backend/internal/processor"
)

// Outcome is the canonical result of normalizing one raw response.
// ProcessorTimestamp, when present, is ISO-8601 in UTC.
type Outcome struct {
	State              models.CanonicalState
	ProcessorTimestamp *string
	Raw                processor.RawResponse
}

// Profile describes how to read one processor's responses.
type Profile struct {
	StatusField    string
	States         map[string]models.CanonicalState
	ParseTimestamp func(raw processor.RawResponse) *string
	RetryDelay     time.Duration
}

// Table resolves profiles by processor name.
type Table map[string]Profile

// Default covers the four supported processors.
func Default() Table {
	return Table{
		"bancosur": {
			StatusField: "status",
			States: map[string]models.CanonicalState{
				"APPROVED": models.StateApproved,
				"DECLINED": models.StateDeclined,
				"PENDING":  models.StatePending,
				"UNKNOWN":  models.StateUnknown,
			},
			ParseTimestamp: parseISO8601("timestamp"),
			RetryDelay:     5 * time.Minute,
		},
		"mexpay": {
			StatusField: "payment_status",
			States: map[string]models.CanonicalState{
				"success":       models.StateApproved,
				"failed":        models.StateDeclined,
				"processing":    models.StatePending,
				"indeterminate": models.StateUnknown,
			},
			ParseTimestamp: parseEpoch("processed_at"),
			RetryDelay:     time.Hour,
		},
		"andespsp": {
			StatusField: "transaction_state",
			States: map[string]models.CanonicalState{
				"aprobada":    models.StateApproved,
				"rechazada":   models.StateDeclined,
				"pendiente":   models.StatePending,
				"desconocido": models.StateUnknown,
			},
			ParseTimestamp: parseLayout("fecha_hora", "02/01/2006 15:04:05"),
			RetryDelay:     24 * time.Hour,
		},
		"cashvoucher": {
			StatusField: "state",
			States: map[string]models.CanonicalState{
				"PAID":     models.StateApproved,
				"REJECTED": models.StateDeclined,
				"WAITING":  models.StatePending,
				"ERROR":    models.StateUnknown,
			},
			ParseTimestamp: parseRFC2822("issued_at"),
			RetryDelay:     24 * time.Hour,
		},
	}
}

// Normalize is total for known processors: an unrecognized raw status maps
// to unknown rather than failing, so malformed upstream data still yields a
// canonical outcome.
func (t Table) Normalize(processorName string, raw processor.RawResponse) (Outcome, error) {
	p, ok := t[processorName]
	if !ok {
		return Outcome{}, fmt.Errorf("normalizer: unknown processor %q", processorName)
	}

	state := models.StateUnknown
	if s, ok := raw[p.StatusField].(string); ok {
		if mapped, ok := p.States[s]; ok {
			state = mapped
		}
	}

	var ts *string
	if p.ParseTimestamp != nil {
		ts = p.ParseTimestamp(raw)
	}
	return Outcome{State: state, ProcessorTimestamp: ts, Raw: raw}, nil
}

// ActionFor depends on canonical state alone, never on amount, currency, or
// processor.
func ActionFor(state models.CanonicalState) models.RecommendedAction {
	switch state {
	case models.StateApproved:
		return models.ActionFulfillOrder
	case models.StateDeclined:
		return models.ActionRefundCustomer
	case models.StatePending:
		return models.ActionWaitForSettlement
	default:
		return models.ActionEscalate
	}
}

// NextRetryAt schedules a follow-up only for pending and unknown states;
// retrying a resolved transaction is never meaningful.
func (t Table) NextRetryAt(processorName string, state models.CanonicalState, now time.Time) *time.Time {
	if state != models.StatePending && state != models.StateUnknown {
		return nil
	}
	delay := time.Hour
	if p, ok := t[processorName]; ok && p.RetryDelay > 0 {
		delay = p.RetryDelay
	}
	at := now.Add(delay)
	return &at
}

func parseISO8601(field string) func(processor.RawResponse) *string {
	return func(raw processor.RawResponse) *string {
		s, ok := raw[field].(string)
		if !ok || s == "" {
			return nil
		}
		ts, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return nil
		}
		return iso(ts)
	}
}

func parseEpoch(field string) func(processor.RawResponse) *string {
	return func(raw processor.RawResponse) *string {
		var sec int64
		switch v := raw[field].(type) {
		case int64:
			sec = v
		case int:
			sec = int64(v)
		case float64: // json.Unmarshal decodes numbers as float64
			sec = int64(v)
		case string:
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return nil
			}
			sec = n
		default:
			return nil
		}
		return iso(time.Unix(sec, 0))
	}
}

func parseLayout(field, layout string) func(processor.RawResponse) *string {
	return func(raw processor.RawResponse) *string {
		s, ok := raw[field].(string)
		if !ok || s == "" {
			return nil
		}
		ts, err := time.ParseInLocation(layout, s, time.UTC)
		if err != nil {
			return nil
		}
		return iso(ts)
	}
}

func parseRFC2822(field string) func(processor.RawResponse) *string {
	return func(raw processor.RawResponse) *string {
		s, ok := raw[field].(string)
		if !ok || s == "" {
			return nil
		}
		ts, err := time.Parse(time.RFC1123Z, s)
		if err != nil {
			if ts, err = time.Parse(time.RFC1123, s); err != nil {
				return nil
			}
		}
		return iso(ts)
	}
}

func iso(ts time.Time) *string {
	s := ts.UTC().Format(time.RFC3339)
	return &s
}
