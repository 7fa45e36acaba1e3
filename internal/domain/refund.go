/**
 * @description
 * Domain models for the refund subsystem: per-creator refund policies and the
 * refund-request state machine.
 *
 * @notes
 * - A RefundRequest's amount is computed once, at request time, from the
 *   policy then in effect. Later policy changes never retroactively affect
 *   pending requests.
 * - Pending is the only non-terminal status. Approved exists for parity with
 *   the on-chain enum but is informational; processing moves a request
 *   straight from Pending to Processed or Rejected.
 */
package domain

import "time"

// RefundStatus enumerates the refund-request state machine.
type RefundStatus uint8

const (
	RefundPending RefundStatus = iota
	RefundApproved
	RefundRejected
	RefundProcessed
)

// String returns the lowercase name used in API responses and logs.
func (s RefundStatus) String() string {
	switch s {
	case RefundPending:
		return "pending"
	case RefundApproved:
		return "approved"
	case RefundRejected:
		return "rejected"
	case RefundProcessed:
		return "processed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition is permitted.
func (s RefundStatus) Terminal() bool {
	return s == RefundRejected || s == RefundProcessed
}

// RefundPolicy determines what fraction of a charge is returned to a
// subscriber, and for how long after the subscription start a request is
// accepted. One default policy is owner-controlled; creators may register
// one override each.
type RefundPolicy struct {
	RefundWindowDays uint32 `json:"refund_window_days"`
	RefundPercentage uint32 `json:"refund_percentage"` // 0-100
	IsActive         bool   `json:"is_active"`
}

// RefundRequest is one subscriber-initiated dispute over a charge. At most
// one Pending request may exist per subscription at a time.
type RefundRequest struct {
	ID             uint64       `json:"id"`
	SubscriptionID uint64       `json:"subscription_id"`
	Subscriber     string       `json:"subscriber"`
	Creator        string       `json:"creator"`
	Token          string       `json:"token"`
	Amount         int64        `json:"amount"` // pre-computed per policy at request time
	RequestTime    time.Time    `json:"request_time"`
	Status         RefundStatus `json:"status"`
}
