/**
 * @description
 * In-memory implementation of the Store interface. A single mutex serializes
 * every operation, which gives the engine the single-writer transactional
 * environment it assumes: each mutation is atomic and no partial state is
 * ever observable.
 *
 * Used by the test suites and by STORE_DRIVER=memory single-process mode.
 * Mint is the local analogue of a stablecoin faucet.
 */
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/oiiaimeow/Reclaim/internal/domain"
)

type pairKey struct {
	tokenA string
	tokenB string
}

type acctKey struct {
	owner string
	token string
}

// Memory is a mutex-guarded, map-backed Store.
type Memory struct {
	mu sync.Mutex

	balances map[string]map[string]int64
	roles    map[string]map[domain.Role]bool
	prices   map[pairKey]domain.PricePair

	vaultAccounts map[acctKey]domain.VaultAccount
	vaultManagers map[string]bool

	subscriptions map[uint64]domain.Subscription
	nextSubID     uint64
	bySubscriber  map[string][]uint64
	byCreator     map[string][]uint64

	defaultPolicy   *domain.RefundPolicy
	creatorPolicies map[string]domain.RefundPolicy
	refunds         map[uint64]domain.RefundRequest
	nextRefundID    uint64
	pendingBySub    map[uint64]uint64

	factoryState *domain.FactoryState
	managers     []domain.ManagerDeployment
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		balances:        make(map[string]map[string]int64),
		roles:           make(map[string]map[domain.Role]bool),
		prices:          make(map[pairKey]domain.PricePair),
		vaultAccounts:   make(map[acctKey]domain.VaultAccount),
		vaultManagers:   make(map[string]bool),
		subscriptions:   make(map[uint64]domain.Subscription),
		nextSubID:       1,
		bySubscriber:    make(map[string][]uint64),
		byCreator:       make(map[string][]uint64),
		creatorPolicies: make(map[string]domain.RefundPolicy),
		refunds:         make(map[uint64]domain.RefundRequest),
		nextRefundID:    1,
		pendingBySub:    make(map[uint64]uint64),
	}
}

// Mint credits freshly issued tokens to an account. Test and local-mode
// helper; there is no ledger-level counterpart in production, where tokens
// only enter through deposits recorded against real custody.
func (m *Memory) Mint(account, token string, amount int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.credit(account, token, amount)
}

func (m *Memory) credit(account, token string, amount int64) {
	if m.balances[account] == nil {
		m.balances[account] = make(map[string]int64)
	}
	m.balances[account][token] += amount
}

func (m *Memory) debit(account, token string, amount int64) error {
	if m.balances[account] == nil || m.balances[account][token] < amount {
		return ErrInsufficientFunds
	}
	m.balances[account][token] -= amount
	return nil
}

// TokenBalance returns the ledger balance for (account, token).
func (m *Memory) TokenBalance(ctx context.Context, account, token string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[account][token], nil
}

// TransferTokens atomically moves amount from one account to another.
func (m *Memory) TransferTokens(ctx context.Context, from, to, token string, amount int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.debit(from, token, amount); err != nil {
		return err
	}
	m.credit(to, token, amount)
	return nil
}

// HasRole reports whether the account holds the role.
func (m *Memory) HasRole(ctx context.Context, account string, role domain.Role) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.roles[account][role], nil
}

// SetRole grants or revokes a role. Repeated writes are no-ops.
func (m *Memory) SetRole(ctx context.Context, account string, role domain.Role, granted bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.roles[account] == nil {
		m.roles[account] = make(map[domain.Role]bool)
	}
	if granted {
		m.roles[account][role] = true
	} else {
		delete(m.roles[account], role)
	}
	return nil
}

// GetPricePair returns the stored rate for the directional pair (tokenA, tokenB).
func (m *Memory) GetPricePair(ctx context.Context, tokenA, tokenB string) (domain.PricePair, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pair, ok := m.prices[pairKey{tokenA, tokenB}]
	if !ok {
		return domain.PricePair{}, ErrPriceNotFound
	}
	return pair, nil
}

// PutPricePair stores or replaces the rate for a directional pair.
func (m *Memory) PutPricePair(ctx context.Context, pair domain.PricePair) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prices[pairKey{pair.TokenA, pair.TokenB}] = pair
	return nil
}

// GetVaultAccount returns the balance record for (owner, token). Absent
// accounts read as empty records; they are materialized on first deposit.
func (m *Memory) GetVaultAccount(ctx context.Context, owner, token string) (domain.VaultAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.vaultAccount(owner, token), nil
}

func (m *Memory) vaultAccount(owner, token string) domain.VaultAccount {
	if acct, ok := m.vaultAccounts[acctKey{owner, token}]; ok {
		return acct
	}
	return domain.VaultAccount{Owner: owner, Token: token}
}

// VaultDeposit pulls tokens from the owner into vault custody and credits
// the total balance, as one atomic step.
func (m *Memory) VaultDeposit(ctx context.Context, owner, token string, amount int64) (domain.VaultAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.debit(owner, token, amount); err != nil {
		return domain.VaultAccount{}, err
	}
	m.credit(VaultCustodyAccount, token, amount)
	acct := m.vaultAccount(owner, token)
	acct.TotalBalance += amount
	m.vaultAccounts[acctKey{owner, token}] = acct
	return acct, nil
}

// VaultWithdraw releases tokens from custody back to the owner. Locked
// funds are not withdrawable.
func (m *Memory) VaultWithdraw(ctx context.Context, owner, token string, amount int64) (domain.VaultAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	acct := m.vaultAccount(owner, token)
	if amount > acct.Available() {
		return acct, ErrInsufficientAvailableBalance
	}
	if err := m.debit(VaultCustodyAccount, token, amount); err != nil {
		return acct, err
	}
	m.credit(owner, token, amount)
	acct.TotalBalance -= amount
	m.vaultAccounts[acctKey{owner, token}] = acct
	return acct, nil
}

// VaultLock moves available funds into the locked portion.
func (m *Memory) VaultLock(ctx context.Context, owner, token string, amount int64) (domain.VaultAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	acct := m.vaultAccount(owner, token)
	if amount > acct.Available() {
		return acct, ErrInsufficientBalance
	}
	acct.LockedBalance += amount
	m.vaultAccounts[acctKey{owner, token}] = acct
	return acct, nil
}

// VaultUnlock releases locked funds back to the available portion.
func (m *Memory) VaultUnlock(ctx context.Context, owner, token string, amount int64) (domain.VaultAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	acct := m.vaultAccount(owner, token)
	if amount > acct.LockedBalance {
		return acct, ErrInsufficientLocked
	}
	acct.LockedBalance -= amount
	m.vaultAccounts[acctKey{owner, token}] = acct
	return acct, nil
}

// IsAuthorizedManager reports whether the manager may lock and unlock funds.
func (m *Memory) IsAuthorizedManager(ctx context.Context, manager string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.vaultManagers[manager], nil
}

// SetAuthorizedManager toggles a manager's lock/unlock permission.
func (m *Memory) SetAuthorizedManager(ctx context.Context, manager string, authorized bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if authorized {
		m.vaultManagers[manager] = true
	} else {
		delete(m.vaultManagers, manager)
	}
	return nil
}

// CreateSubscription assigns the next sequential id, stores the record and
// appends the id to both index lists.
func (m *Memory) CreateSubscription(ctx context.Context, sub *domain.Subscription) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sub.ID = m.nextSubID
	m.nextSubID++
	m.subscriptions[sub.ID] = *sub
	m.bySubscriber[sub.Subscriber] = append(m.bySubscriber[sub.Subscriber], sub.ID)
	m.byCreator[sub.Creator] = append(m.byCreator[sub.Creator], sub.ID)
	return sub.ID, nil
}

// GetSubscription returns a copy of the subscription record.
func (m *Memory) GetSubscription(ctx context.Context, id uint64) (*domain.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sub, ok := m.subscriptions[id]
	if !ok {
		return nil, ErrSubscriptionNotFound
	}
	return &sub, nil
}

// UpdateSubscription replaces the stored record in place.
func (m *Memory) UpdateSubscription(ctx context.Context, sub *domain.Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.subscriptions[sub.ID]; !ok {
		return ErrSubscriptionNotFound
	}
	m.subscriptions[sub.ID] = *sub
	return nil
}

// ListSubscriptionIDsBySubscriber returns the append-only index list.
func (m *Memory) ListSubscriptionIDsBySubscriber(ctx context.Context, subscriber string) ([]uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]uint64(nil), m.bySubscriber[subscriber]...), nil
}

// ListSubscriptionIDsByCreator returns the append-only index list.
func (m *Memory) ListSubscriptionIDsByCreator(ctx context.Context, creator string) ([]uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]uint64(nil), m.byCreator[creator]...), nil
}

// ListDueSubscriptionIDs returns ids of active subscriptions whose next
// payment is due at or before asOf, in id order.
func (m *Memory) ListDueSubscriptionIDs(ctx context.Context, asOf time.Time) ([]uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var due []uint64
	for id, sub := range m.subscriptions {
		if sub.IsActive && !sub.NextPaymentDue.After(asOf) {
			due = append(due, id)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i] < due[j] })
	return due, nil
}

// GetDefaultRefundPolicy returns the platform-wide policy.
func (m *Memory) GetDefaultRefundPolicy(ctx context.Context) (domain.RefundPolicy, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.defaultPolicy == nil {
		return domain.RefundPolicy{}, ErrPolicyNotFound
	}
	return *m.defaultPolicy, nil
}

// SetDefaultRefundPolicy stores the platform-wide policy.
func (m *Memory) SetDefaultRefundPolicy(ctx context.Context, policy domain.RefundPolicy) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaultPolicy = &policy
	return nil
}

// GetCreatorRefundPolicy returns a creator's override, if registered.
func (m *Memory) GetCreatorRefundPolicy(ctx context.Context, creator string) (domain.RefundPolicy, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	policy, ok := m.creatorPolicies[creator]
	if !ok {
		return domain.RefundPolicy{}, ErrPolicyNotFound
	}
	return policy, nil
}

// SetCreatorRefundPolicy stores a creator's override.
func (m *Memory) SetCreatorRefundPolicy(ctx context.Context, creator string, policy domain.RefundPolicy) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creatorPolicies[creator] = policy
	return nil
}

// CreateRefundRequest assigns the next sequential id and records the
// request. A Pending request also occupies the per-subscription slot that
// enforces the at-most-one-pending invariant.
func (m *Memory) CreateRefundRequest(ctx context.Context, req *domain.RefundRequest) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	req.ID = m.nextRefundID
	m.nextRefundID++
	m.refunds[req.ID] = *req
	if req.Status == domain.RefundPending {
		m.pendingBySub[req.SubscriptionID] = req.ID
	}
	return req.ID, nil
}

// GetRefundRequest returns a copy of the request record.
func (m *Memory) GetRefundRequest(ctx context.Context, id uint64) (*domain.RefundRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.refunds[id]
	if !ok {
		return nil, ErrRefundRequestNotFound
	}
	return &req, nil
}

// UpdateRefundRequest replaces the stored record, releasing the pending
// slot when the request reaches a terminal status.
func (m *Memory) UpdateRefundRequest(ctx context.Context, req *domain.RefundRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.refunds[req.ID]; !ok {
		return ErrRefundRequestNotFound
	}
	m.refunds[req.ID] = *req
	if req.Status.Terminal() && m.pendingBySub[req.SubscriptionID] == req.ID {
		delete(m.pendingBySub, req.SubscriptionID)
	}
	return nil
}

// HasPendingRefund reports whether a non-terminal request exists for the
// subscription.
func (m *Memory) HasPendingRefund(ctx context.Context, subscriptionID uint64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.pendingBySub[subscriptionID]
	return ok, nil
}

// InitFactoryState seeds the factory configuration if none exists yet.
func (m *Memory) InitFactoryState(ctx context.Context, state domain.FactoryState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.factoryState == nil {
		m.factoryState = &state
	}
	return nil
}

// GetFactoryState returns the factory configuration.
func (m *Memory) GetFactoryState(ctx context.Context) (domain.FactoryState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.factoryState == nil {
		return domain.FactoryState{}, ErrFactoryStateNotFound
	}
	return *m.factoryState, nil
}

// UpdateFactoryState replaces the factory configuration.
func (m *Memory) UpdateFactoryState(ctx context.Context, state domain.FactoryState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.factoryState == nil {
		return ErrFactoryStateNotFound
	}
	m.factoryState = &state
	return nil
}

// CreateManagerDeployment appends a provisioning record.
func (m *Memory) CreateManagerDeployment(ctx context.Context, dep domain.ManagerDeployment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.managers = append(m.managers, dep)
	return nil
}

// ListManagersByCreator returns deployments for one creator, oldest first.
func (m *Memory) ListManagersByCreator(ctx context.Context, creator string) ([]domain.ManagerDeployment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.ManagerDeployment
	for _, dep := range m.managers {
		if dep.Creator == creator {
			out = append(out, dep)
		}
	}
	return out, nil
}

// ListAllManagers returns every deployment, oldest first.
func (m *Memory) ListAllManagers(ctx context.Context) ([]domain.ManagerDeployment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.ManagerDeployment(nil), m.managers...), nil
}

// CountManagers returns the total number of deployments.
func (m *Memory) CountManagers(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.managers), nil
}
