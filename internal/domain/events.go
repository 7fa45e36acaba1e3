/**
 * @description
 * Typed payloads for every event the engine emits. Consumers (the dashboard,
 * monitoring) bind to these shapes, so field order and names are part of the
 * external contract and must not change.
 */
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Routing keys for the subscription_events exchange.
const (
	EventSubscriptionCreated   = "subscription.created"
	EventPaymentProcessed      = "payment.processed"
	EventSubscriptionCancelled = "subscription.cancelled"
	EventDeposited             = "vault.deposited"
	EventWithdrawn             = "vault.withdrawn"
	EventRefundRequested       = "refund.requested"
	EventRefundProcessed       = "refund.processed"
	EventRefundPolicyUpdated   = "refund.policy_updated"
	EventPriceUpdated          = "price.updated"
	EventManagerDeployed       = "factory.manager_deployed"
	EventDeploymentFeeUpdated  = "factory.deployment_fee_updated"
	EventProtocolFeeUpdated    = "factory.protocol_fee_updated"
	EventRoleGranted           = "access.role_granted"
	EventRoleRevoked           = "access.role_revoked"
)

// SubscriptionCreatedEvent is emitted once per createSubscription, after the
// first charge has settled.
type SubscriptionCreatedEvent struct {
	SubscriptionID uint64    `json:"subscription_id"`
	Subscriber     string    `json:"subscriber"`
	Creator        string    `json:"creator"`
	PaymentToken   string    `json:"payment_token"`
	Amount         int64     `json:"amount"`
	Interval       int64     `json:"interval"`
	Timestamp      time.Time `json:"timestamp"`
}

// PaymentProcessedEvent is emitted for each successful recurring charge.
type PaymentProcessedEvent struct {
	SubscriptionID uint64    `json:"subscription_id"`
	Subscriber     string    `json:"subscriber"`
	Creator        string    `json:"creator"`
	Amount         int64     `json:"amount"`
	NextPaymentDue time.Time `json:"next_payment_due"`
	Timestamp      time.Time `json:"timestamp"`
}

// SubscriptionCancelledEvent is emitted when either party cancels.
type SubscriptionCancelledEvent struct {
	SubscriptionID uint64    `json:"subscription_id"`
	CancelledBy    string    `json:"cancelled_by"`
	Timestamp      time.Time `json:"timestamp"`
}

// DepositedEvent is emitted when funds enter vault custody.
type DepositedEvent struct {
	User      string    `json:"user"`
	Token     string    `json:"token"`
	Amount    int64     `json:"amount"`
	Timestamp time.Time `json:"timestamp"`
}

// WithdrawnEvent is emitted when funds leave vault custody.
type WithdrawnEvent struct {
	User      string    `json:"user"`
	Token     string    `json:"token"`
	Amount    int64     `json:"amount"`
	Timestamp time.Time `json:"timestamp"`
}

// RefundRequestedEvent is emitted when a subscriber opens a refund request.
type RefundRequestedEvent struct {
	RefundID       uint64    `json:"refund_id"`
	SubscriptionID uint64    `json:"subscription_id"`
	Subscriber     string    `json:"subscriber"`
	Creator        string    `json:"creator"`
	Amount         int64     `json:"amount"`
	Timestamp      time.Time `json:"timestamp"`
}

// RefundProcessedEvent is emitted for both approval and rejection.
type RefundProcessedEvent struct {
	RefundID  uint64    `json:"refund_id"`
	Approved  bool      `json:"approved"`
	Amount    int64     `json:"amount"`
	Timestamp time.Time `json:"timestamp"`
}

// RefundPolicyUpdatedEvent is emitted when a creator registers a policy.
type RefundPolicyUpdatedEvent struct {
	Creator          string `json:"creator"`
	RefundWindowDays uint32 `json:"refund_window_days"`
	RefundPercentage uint32 `json:"refund_percentage"`
}

// PriceUpdatedEvent is emitted on every successful oracle write.
type PriceUpdatedEvent struct {
	TokenA    string    `json:"token_a"`
	TokenB    string    `json:"token_b"`
	Rate      int64     `json:"rate"`
	Timestamp time.Time `json:"timestamp"`
}

// ManagerDeployedEvent is emitted when the factory provisions an instance.
type ManagerDeployedEvent struct {
	Creator   string    `json:"creator"`
	ManagerID uuid.UUID `json:"manager_id"`
	Timestamp time.Time `json:"timestamp"`
}

// DeploymentFeeUpdatedEvent is emitted when the owner changes the fee.
type DeploymentFeeUpdatedEvent struct {
	NewFee int64 `json:"new_fee"`
}

// ProtocolFeeUpdatedEvent is emitted when the owner changes the protocol fee.
type ProtocolFeeUpdatedEvent struct {
	NewPercentageBps int64 `json:"new_percentage_bps"`
}

// RoleGrantedEvent is emitted when an admin grants a role.
type RoleGrantedEvent struct {
	Account   string    `json:"account"`
	Role      Role      `json:"role"`
	Timestamp time.Time `json:"timestamp"`
}

// RoleRevokedEvent is emitted when an admin revokes a role.
type RoleRevokedEvent struct {
	Account   string    `json:"account"`
	Role      Role      `json:"role"`
	Timestamp time.Time `json:"timestamp"`
}
