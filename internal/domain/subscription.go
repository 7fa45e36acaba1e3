/**
 * @description
 * Core domain model for recurring subscriptions. A Subscription is the record
 * of a standing payment obligation from a subscriber to a creator: a fixed
 * amount of a payment token charged once per interval.
 *
 * @notes
 * - Amounts are stored as `int64` in the token's smallest unit to avoid
 *   floating-point inaccuracies with financial data.
 * - Subscription ids are sequential and assigned by the store on creation.
 */
package domain

import "time"

// Subscription represents a recurring payment obligation between a subscriber
// and a creator. Once IsActive is false the record is terminal and no further
// mutation is permitted.
type Subscription struct {
	ID             uint64    `json:"id"`
	Subscriber     string    `json:"subscriber"`
	Creator        string    `json:"creator"`
	PaymentToken   string    `json:"payment_token"`
	Amount         int64     `json:"amount"`   // smallest token unit
	Interval       int64     `json:"interval"` // seconds
	NextPaymentDue time.Time `json:"next_payment_due"`
	IsActive       bool      `json:"is_active"`
	StartTime      time.Time `json:"start_time"`
}

// IntervalDuration returns the charge interval as a time.Duration.
func (s *Subscription) IntervalDuration() time.Duration {
	return time.Duration(s.Interval) * time.Second
}
