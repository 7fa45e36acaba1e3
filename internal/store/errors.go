/**
 * @description
 * Sentinel errors shared by every Store implementation. The engine returns
 * these directly to callers, and the API layer maps them to HTTP status
 * codes, so their identity is part of the operation contract.
 */
package store

import "errors"

var (
	ErrInsufficientFunds            = errors.New("insufficient funds")
	ErrInsufficientAvailableBalance = errors.New("insufficient available balance")
	ErrInsufficientBalance          = errors.New("insufficient balance")
	ErrInsufficientLocked           = errors.New("insufficient locked balance")
	ErrSubscriptionNotFound         = errors.New("subscription not found")
	ErrRefundRequestNotFound        = errors.New("refund request not found")
	ErrPolicyNotFound               = errors.New("refund policy not found")
	ErrPriceNotFound                = errors.New("price not found")
	ErrFactoryStateNotFound         = errors.New("factory state not found")
)
