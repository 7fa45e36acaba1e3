/**
 * @description
 * Domain model for the price oracle: stored exchange rates between token
 * pairs with a freshness window.
 *
 * @notes
 * - Rates are directional. The pair (A, B) is distinct from (B, A); callers
 *   must query in the direction the rate was written.
 * - Rates use an 18-decimal fixed-point scale (1e18 == 1.0), matching the
 *   settlement layer the rates are sourced from.
 * - An int64 rate caps at ~9.22 at this scale. Pairs with a larger ratio
 *   must be stored in the cheaper-to-dearer direction (e.g. USDC→ETH
 *   rather than ETH→USDC) and converted with the pair queried that way.
 */
package domain

import "time"

// RateScale is the fixed-point denominator for PricePair rates.
const RateScale = 1e18

// PriceValidity is how long a stored rate may be used before queries
// against it fail as expired.
const PriceValidity = 24 * time.Hour

// PricePair is a stored, time-bounded exchange rate from TokenA to TokenB.
type PricePair struct {
	TokenA    string    `json:"token_a"`
	TokenB    string    `json:"token_b"`
	Rate      int64     `json:"rate"` // 18-decimal fixed point
	UpdatedAt time.Time `json:"updated_at"`
}

// ValidAt reports whether the rate is still fresh at the given instant.
func (p PricePair) ValidAt(now time.Time) bool {
	return p.Rate > 0 && now.Sub(p.UpdatedAt) < PriceValidity
}
