/**
 * @description
 * Subscription vault: custodial ledger of per-user, per-token balances with
 * a lock/unlock mechanism. Subscribers deposit funds once; authorized
 * managers (typically payment-manager instances) may then earmark and
 * release portions without a fresh approval each cycle.
 *
 * Every mutation preserves 0 <= locked <= total; the store applies the
 * ledger movement and the balance update as one atomic step.
 */
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/oiiaimeow/Reclaim/internal/domain"
)

// VaultStore is the persistence slice the vault depends on.
type VaultStore interface {
	GetVaultAccount(ctx context.Context, owner, token string) (domain.VaultAccount, error)
	VaultDeposit(ctx context.Context, owner, token string, amount int64) (domain.VaultAccount, error)
	VaultWithdraw(ctx context.Context, owner, token string, amount int64) (domain.VaultAccount, error)
	VaultLock(ctx context.Context, owner, token string, amount int64) (domain.VaultAccount, error)
	VaultUnlock(ctx context.Context, owner, token string, amount int64) (domain.VaultAccount, error)
	IsAuthorizedManager(ctx context.Context, manager string) (bool, error)
	SetAuthorizedManager(ctx context.Context, manager string, authorized bool) error
}

// SubscriptionVault owns the vault ledger.
type SubscriptionVault struct {
	mu     sync.Mutex
	store  VaultStore
	owner  string
	events Publisher
	logger *slog.Logger
	now    func() time.Time
}

// NewSubscriptionVault creates the vault. owner is the only account allowed
// to change the authorized-manager set.
func NewSubscriptionVault(store VaultStore, events Publisher, logger *slog.Logger, owner string) *SubscriptionVault {
	return &SubscriptionVault{
		store:  store,
		owner:  owner,
		events: events,
		logger: logger,
		now:    time.Now,
	}
}

// Deposit pulls amount of token from the caller into vault custody.
func (v *SubscriptionVault) Deposit(ctx context.Context, caller, token string, amount int64) (domain.VaultAccount, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if amount <= 0 {
		return domain.VaultAccount{}, ErrInvalidAmount
	}
	if token == "" {
		return domain.VaultAccount{}, ErrInvalidToken
	}

	acct, err := v.store.VaultDeposit(ctx, caller, token, amount)
	if err != nil {
		return domain.VaultAccount{}, err
	}

	emit(ctx, v.events, v.logger, domain.EventDeposited, domain.DepositedEvent{
		User:      caller,
		Token:     token,
		Amount:    amount,
		Timestamp: v.now(),
	})
	return acct, nil
}

// Withdraw returns available (unlocked) funds to the caller.
func (v *SubscriptionVault) Withdraw(ctx context.Context, caller, token string, amount int64) (domain.VaultAccount, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if amount <= 0 {
		return domain.VaultAccount{}, ErrInvalidAmount
	}

	acct, err := v.store.VaultWithdraw(ctx, caller, token, amount)
	if err != nil {
		return domain.VaultAccount{}, err
	}

	emit(ctx, v.events, v.logger, domain.EventWithdrawn, domain.WithdrawnEvent{
		User:      caller,
		Token:     token,
		Amount:    amount,
		Timestamp: v.now(),
	})
	return acct, nil
}

// SetAuthorizedManager toggles a manager's permission to lock and unlock
// any account's funds. Owner-only.
func (v *SubscriptionVault) SetAuthorizedManager(ctx context.Context, caller, manager string, authorized bool) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if caller != v.owner {
		return ErrUnauthorized
	}
	return v.store.SetAuthorizedManager(ctx, manager, authorized)
}

// IsAuthorizedManager reports whether the manager may lock and unlock funds.
func (v *SubscriptionVault) IsAuthorizedManager(ctx context.Context, manager string) (bool, error) {
	return v.store.IsAuthorizedManager(ctx, manager)
}

// LockFunds earmarks part of an owner's available balance. Caller must be
// an authorized manager.
func (v *SubscriptionVault) LockFunds(ctx context.Context, caller, owner, token string, amount int64) (domain.VaultAccount, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.requireManager(ctx, caller); err != nil {
		return domain.VaultAccount{}, err
	}
	if amount <= 0 {
		return domain.VaultAccount{}, ErrInvalidAmount
	}
	if token == "" {
		return domain.VaultAccount{}, ErrInvalidToken
	}
	return v.store.VaultLock(ctx, owner, token, amount)
}

// UnlockFunds releases previously locked funds. Caller must be an
// authorized manager.
func (v *SubscriptionVault) UnlockFunds(ctx context.Context, caller, owner, token string, amount int64) (domain.VaultAccount, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.requireManager(ctx, caller); err != nil {
		return domain.VaultAccount{}, err
	}
	if amount <= 0 {
		return domain.VaultAccount{}, ErrInvalidAmount
	}
	if token == "" {
		return domain.VaultAccount{}, ErrInvalidToken
	}
	return v.store.VaultUnlock(ctx, owner, token, amount)
}

func (v *SubscriptionVault) requireManager(ctx context.Context, caller string) error {
	authorized, err := v.store.IsAuthorizedManager(ctx, caller)
	if err != nil {
		return fmt.Errorf("failed to check manager authorization: %w", err)
	}
	if !authorized {
		return ErrNotAuthorized
	}
	return nil
}

// GetTotalBalance returns the total custody balance for (owner, token).
func (v *SubscriptionVault) GetTotalBalance(ctx context.Context, owner, token string) (int64, error) {
	acct, err := v.store.GetVaultAccount(ctx, owner, token)
	if err != nil {
		return 0, err
	}
	return acct.TotalBalance, nil
}

// GetLockedBalance returns the locked portion for (owner, token).
func (v *SubscriptionVault) GetLockedBalance(ctx context.Context, owner, token string) (int64, error) {
	acct, err := v.store.GetVaultAccount(ctx, owner, token)
	if err != nil {
		return 0, err
	}
	return acct.LockedBalance, nil
}

// GetAvailableBalance returns total minus locked for (owner, token).
func (v *SubscriptionVault) GetAvailableBalance(ctx context.Context, owner, token string) (int64, error) {
	acct, err := v.store.GetVaultAccount(ctx, owner, token)
	if err != nil {
		return 0, err
	}
	return acct.Available(), nil
}

// GetAccount returns the full balance record for (owner, token).
func (v *SubscriptionVault) GetAccount(ctx context.Context, owner, token string) (domain.VaultAccount, error) {
	return v.store.GetVaultAccount(ctx, owner, token)
}
