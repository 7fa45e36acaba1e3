/**
 * @description
 * Domain models for the subscription factory: provisioning records for
 * dedicated payment-manager instances, plus the factory's fee settings and
 * accrued fee pot.
 */
package domain

import (
	"time"

	"github.com/google/uuid"
)

// ManagerDeployment records one payment-manager instance provisioned for a
// creator through the factory.
type ManagerDeployment struct {
	ID        uuid.UUID `json:"id"`
	Creator   string    `json:"creator"`
	CreatedAt time.Time `json:"created_at"`
}

// FactoryState holds the factory's mutable configuration and the fees it has
// collected but not yet withdrawn. Protocol fee is expressed in basis points
// (250 == 2.5%) and is capped at 1000.
type FactoryState struct {
	DeploymentFee  int64 `json:"deployment_fee"` // native settlement token, smallest unit
	ProtocolFeeBps int64 `json:"protocol_fee_bps"`
	CollectedFees  int64 `json:"collected_fees"`
}
