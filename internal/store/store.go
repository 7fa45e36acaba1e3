/**
 * @description
 * The Store interface is the single persistence boundary of the engine. It
 * covers the custodial token ledger plus the five record families the
 * components own: role assignments, price pairs, vault accounts,
 * subscriptions with their index lists, refund policies/requests, and
 * factory state. Two implementations exist: an in-memory store for tests and
 * single-process mode, and a PostgreSQL store backed by pgx.
 *
 * Mutating methods are individually atomic: either the whole mutation is
 * applied (ledger movement and balance update together) or none of it is.
 */
package store

import (
	"context"
	"time"

	"github.com/oiiaimeow/Reclaim/internal/domain"
)

// Internal custody accounts on the token ledger. The "@" prefix keeps them
// out of the caller account-id namespace.
const (
	VaultCustodyAccount = "@vault"
	FactoryFeeAccount   = "@factory"
)

// Store is the full persistence surface. Engine components depend on the
// narrow slices they declare themselves; both implementations satisfy all
// of them through this interface.
type Store interface {
	// Token ledger.
	TokenBalance(ctx context.Context, account, token string) (int64, error)
	TransferTokens(ctx context.Context, from, to, token string, amount int64) error

	// Role assignments.
	HasRole(ctx context.Context, account string, role domain.Role) (bool, error)
	SetRole(ctx context.Context, account string, role domain.Role, granted bool) error

	// Price pairs.
	GetPricePair(ctx context.Context, tokenA, tokenB string) (domain.PricePair, error)
	PutPricePair(ctx context.Context, pair domain.PricePair) error

	// Vault accounts. The four mutations move tokens between the owner and
	// vault custody (or between available and locked) and update the balance
	// record in one atomic step, returning the updated record.
	GetVaultAccount(ctx context.Context, owner, token string) (domain.VaultAccount, error)
	VaultDeposit(ctx context.Context, owner, token string, amount int64) (domain.VaultAccount, error)
	VaultWithdraw(ctx context.Context, owner, token string, amount int64) (domain.VaultAccount, error)
	VaultLock(ctx context.Context, owner, token string, amount int64) (domain.VaultAccount, error)
	VaultUnlock(ctx context.Context, owner, token string, amount int64) (domain.VaultAccount, error)
	IsAuthorizedManager(ctx context.Context, manager string) (bool, error)
	SetAuthorizedManager(ctx context.Context, manager string, authorized bool) error

	// Subscriptions. CreateSubscription assigns the next sequential id and
	// appends it to the subscriber and creator index lists.
	CreateSubscription(ctx context.Context, sub *domain.Subscription) (uint64, error)
	GetSubscription(ctx context.Context, id uint64) (*domain.Subscription, error)
	UpdateSubscription(ctx context.Context, sub *domain.Subscription) error
	ListSubscriptionIDsBySubscriber(ctx context.Context, subscriber string) ([]uint64, error)
	ListSubscriptionIDsByCreator(ctx context.Context, creator string) ([]uint64, error)
	ListDueSubscriptionIDs(ctx context.Context, asOf time.Time) ([]uint64, error)

	// Refund policies and requests.
	GetDefaultRefundPolicy(ctx context.Context) (domain.RefundPolicy, error)
	SetDefaultRefundPolicy(ctx context.Context, policy domain.RefundPolicy) error
	GetCreatorRefundPolicy(ctx context.Context, creator string) (domain.RefundPolicy, error)
	SetCreatorRefundPolicy(ctx context.Context, creator string, policy domain.RefundPolicy) error
	CreateRefundRequest(ctx context.Context, req *domain.RefundRequest) (uint64, error)
	GetRefundRequest(ctx context.Context, id uint64) (*domain.RefundRequest, error)
	UpdateRefundRequest(ctx context.Context, req *domain.RefundRequest) error
	HasPendingRefund(ctx context.Context, subscriptionID uint64) (bool, error)

	// Factory state and manager deployments.
	InitFactoryState(ctx context.Context, state domain.FactoryState) error
	GetFactoryState(ctx context.Context) (domain.FactoryState, error)
	UpdateFactoryState(ctx context.Context, state domain.FactoryState) error
	CreateManagerDeployment(ctx context.Context, dep domain.ManagerDeployment) error
	ListManagersByCreator(ctx context.Context, creator string) ([]domain.ManagerDeployment, error)
	ListAllManagers(ctx context.Context) ([]domain.ManagerDeployment, error)
	CountManagers(ctx context.Context) (int, error)
}
