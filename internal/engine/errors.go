/**
 * @description
 * Sentinel errors for the engine's validation, authorization and
 * temporal/state failures. Balance and not-found failures live with the
 * store; everything here is decided by the engine itself before any state
 * is touched. Each message mirrors the condition the callers are shown.
 */
package engine

import "errors"

var (
	// Authorization.
	ErrUnauthorized                     = errors.New("unauthorized")
	ErrNotAuthorized                    = errors.New("not authorized")
	ErrOnlySubscriberCanRequest         = errors.New("only subscriber can request refund")
	ErrOnlySubscriberOrCreatorCanCancel = errors.New("only subscriber or creator can cancel")

	// Validation.
	ErrInvalidToken         = errors.New("invalid token address")
	ErrInvalidPrice         = errors.New("invalid price")
	ErrInvalidAmount        = errors.New("amount must be greater than 0")
	ErrInvalidCreator       = errors.New("invalid creator address")
	ErrInvalidInterval      = errors.New("interval must be greater than 0")
	ErrPercentageExceeds100 = errors.New("percentage must be <= 100")
	ErrFeeExceeds10Percent  = errors.New("fee cannot exceed 10%")

	// Temporal / state.
	ErrPriceExpired           = errors.New("price expired")
	ErrPaymentNotDueYet       = errors.New("payment not due yet")
	ErrSubscriptionNotActive  = errors.New("subscription is not active")
	ErrRefundWindowExpired    = errors.New("refund window expired")
	ErrRefundAlreadyRequested = errors.New("refund already requested")
	ErrAlreadyProcessed       = errors.New("already processed")

	// Resources.
	ErrInsufficientDeploymentFee = errors.New("insufficient deployment fee")
	ErrNoFeesToWithdraw          = errors.New("no fees to withdraw")
)
