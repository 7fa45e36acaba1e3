/**
 * @description
 * Domain model for the subscription vault: a custodial ledger of per-user,
 * per-token balances with a lock mechanism so authorized managers can earmark
 * funds for pending charges without a fresh approval each cycle.
 */
package domain

// VaultAccount is the balance record for one (owner, token) pair.
// Invariant: 0 <= LockedBalance <= TotalBalance. Zero-balance accounts
// persist as empty records; they are never destroyed.
type VaultAccount struct {
	Owner         string `json:"owner"`
	Token         string `json:"token"`
	TotalBalance  int64  `json:"total_balance"`
	LockedBalance int64  `json:"locked_balance"`
}

// Available returns the withdrawable portion of the balance. It is derived,
// never stored.
func (a VaultAccount) Available() int64 {
	return a.TotalBalance - a.LockedBalance
}
