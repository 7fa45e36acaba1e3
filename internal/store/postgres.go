/**
 * @description
 * PostgreSQL implementation of the Store interface. Compound operations
 * (token transfers, vault movements) run inside a transaction with
 * SELECT ... FOR UPDATE row locks so concurrent engine instances cannot
 * observe or produce partial state.
 *
 * @dependencies
 * - github.com/jackc/pgx/v5: PostgreSQL driver and connection pool.
 * - internal/domain: domain models scanned from rows.
 */
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oiiaimeow/Reclaim/internal/domain"
)

// Postgres is a pgxpool-backed Store.
type Postgres struct {
	db *pgxpool.Pool
}

// NewPostgres creates a Store backed by the given pool.
func NewPostgres(db *pgxpool.Pool) *Postgres {
	return &Postgres{db: db}
}

// NewPool opens a pgx connection pool against the database URL.
func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database url: %w", err)
	}
	poolConfig.MaxConns = 100
	poolConfig.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}
	return pool, nil
}

func creditTx(ctx context.Context, tx pgx.Tx, account, token string, amount int64) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO token_balances (account, token, balance)
		VALUES ($1, $2, $3)
		ON CONFLICT (account, token) DO UPDATE SET balance = token_balances.balance + EXCLUDED.balance
	`, account, token, amount)
	return err
}

func debitTx(ctx context.Context, tx pgx.Tx, account, token string, amount int64) error {
	tag, err := tx.Exec(ctx, `
		UPDATE token_balances SET balance = balance - $3
		WHERE account = $1 AND token = $2 AND balance >= $3
	`, account, token, amount)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrInsufficientFunds
	}
	return nil
}

// TokenBalance returns the ledger balance for (account, token).
func (p *Postgres) TokenBalance(ctx context.Context, account, token string) (int64, error) {
	var balance int64
	err := p.db.QueryRow(ctx,
		"SELECT balance FROM token_balances WHERE account = $1 AND token = $2",
		account, token).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return balance, nil
}

// TransferTokens atomically moves amount from one account to another.
func (p *Postgres) TransferTokens(ctx context.Context, from, to, token string, amount int64) error {
	tx, err := p.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := debitTx(ctx, tx, from, token, amount); err != nil {
		return err
	}
	if err := creditTx(ctx, tx, to, token, amount); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// HasRole reports whether the account holds the role.
func (p *Postgres) HasRole(ctx context.Context, account string, role domain.Role) (bool, error) {
	var exists bool
	err := p.db.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM account_roles WHERE account = $1 AND role = $2)",
		account, string(role)).Scan(&exists)
	return exists, err
}

// SetRole grants or revokes a role. Repeated writes are no-ops.
func (p *Postgres) SetRole(ctx context.Context, account string, role domain.Role, granted bool) error {
	var err error
	if granted {
		_, err = p.db.Exec(ctx,
			"INSERT INTO account_roles (account, role) VALUES ($1, $2) ON CONFLICT DO NOTHING",
			account, string(role))
	} else {
		_, err = p.db.Exec(ctx,
			"DELETE FROM account_roles WHERE account = $1 AND role = $2",
			account, string(role))
	}
	return err
}

// GetPricePair returns the stored rate for the directional pair (tokenA, tokenB).
func (p *Postgres) GetPricePair(ctx context.Context, tokenA, tokenB string) (domain.PricePair, error) {
	pair := domain.PricePair{TokenA: tokenA, TokenB: tokenB}
	err := p.db.QueryRow(ctx,
		"SELECT rate, updated_at FROM price_pairs WHERE token_a = $1 AND token_b = $2",
		tokenA, tokenB).Scan(&pair.Rate, &pair.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.PricePair{}, ErrPriceNotFound
		}
		return domain.PricePair{}, err
	}
	return pair, nil
}

// PutPricePair stores or replaces the rate for a directional pair.
func (p *Postgres) PutPricePair(ctx context.Context, pair domain.PricePair) error {
	_, err := p.db.Exec(ctx, `
		INSERT INTO price_pairs (token_a, token_b, rate, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (token_a, token_b) DO UPDATE SET rate = EXCLUDED.rate, updated_at = EXCLUDED.updated_at
	`, pair.TokenA, pair.TokenB, pair.Rate, pair.UpdatedAt)
	return err
}

// GetVaultAccount returns the balance record for (owner, token). Absent
// accounts read as empty records.
func (p *Postgres) GetVaultAccount(ctx context.Context, owner, token string) (domain.VaultAccount, error) {
	acct := domain.VaultAccount{Owner: owner, Token: token}
	err := p.db.QueryRow(ctx,
		"SELECT total_balance, locked_balance FROM vault_accounts WHERE owner = $1 AND token = $2",
		owner, token).Scan(&acct.TotalBalance, &acct.LockedBalance)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return domain.VaultAccount{}, err
	}
	return acct, nil
}

func lockVaultAccountTx(ctx context.Context, tx pgx.Tx, owner, token string) (domain.VaultAccount, error) {
	acct := domain.VaultAccount{Owner: owner, Token: token}
	err := tx.QueryRow(ctx,
		"SELECT total_balance, locked_balance FROM vault_accounts WHERE owner = $1 AND token = $2 FOR UPDATE",
		owner, token).Scan(&acct.TotalBalance, &acct.LockedBalance)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return domain.VaultAccount{}, err
	}
	return acct, nil
}

// VaultDeposit pulls tokens from the owner into vault custody and credits
// the total balance, as one atomic step.
func (p *Postgres) VaultDeposit(ctx context.Context, owner, token string, amount int64) (domain.VaultAccount, error) {
	tx, err := p.db.Begin(ctx)
	if err != nil {
		return domain.VaultAccount{}, err
	}
	defer tx.Rollback(ctx)

	if err := debitTx(ctx, tx, owner, token, amount); err != nil {
		return domain.VaultAccount{}, err
	}
	if err := creditTx(ctx, tx, VaultCustodyAccount, token, amount); err != nil {
		return domain.VaultAccount{}, err
	}

	acct := domain.VaultAccount{Owner: owner, Token: token}
	err = tx.QueryRow(ctx, `
		INSERT INTO vault_accounts (owner, token, total_balance)
		VALUES ($1, $2, $3)
		ON CONFLICT (owner, token) DO UPDATE SET total_balance = vault_accounts.total_balance + EXCLUDED.total_balance
		RETURNING total_balance, locked_balance
	`, owner, token, amount).Scan(&acct.TotalBalance, &acct.LockedBalance)
	if err != nil {
		return domain.VaultAccount{}, err
	}
	return acct, tx.Commit(ctx)
}

// VaultWithdraw releases available tokens from custody back to the owner.
func (p *Postgres) VaultWithdraw(ctx context.Context, owner, token string, amount int64) (domain.VaultAccount, error) {
	tx, err := p.db.Begin(ctx)
	if err != nil {
		return domain.VaultAccount{}, err
	}
	defer tx.Rollback(ctx)

	acct, err := lockVaultAccountTx(ctx, tx, owner, token)
	if err != nil {
		return domain.VaultAccount{}, err
	}
	if amount > acct.Available() {
		return acct, ErrInsufficientAvailableBalance
	}
	if err := debitTx(ctx, tx, VaultCustodyAccount, token, amount); err != nil {
		return acct, err
	}
	if err := creditTx(ctx, tx, owner, token, amount); err != nil {
		return acct, err
	}
	_, err = tx.Exec(ctx,
		"UPDATE vault_accounts SET total_balance = total_balance - $3 WHERE owner = $1 AND token = $2",
		owner, token, amount)
	if err != nil {
		return acct, err
	}
	acct.TotalBalance -= amount
	return acct, tx.Commit(ctx)
}

// VaultLock moves available funds into the locked portion.
func (p *Postgres) VaultLock(ctx context.Context, owner, token string, amount int64) (domain.VaultAccount, error) {
	tx, err := p.db.Begin(ctx)
	if err != nil {
		return domain.VaultAccount{}, err
	}
	defer tx.Rollback(ctx)

	acct, err := lockVaultAccountTx(ctx, tx, owner, token)
	if err != nil {
		return domain.VaultAccount{}, err
	}
	if amount > acct.Available() {
		return acct, ErrInsufficientBalance
	}
	_, err = tx.Exec(ctx,
		"UPDATE vault_accounts SET locked_balance = locked_balance + $3 WHERE owner = $1 AND token = $2",
		owner, token, amount)
	if err != nil {
		return acct, err
	}
	acct.LockedBalance += amount
	return acct, tx.Commit(ctx)
}

// VaultUnlock releases locked funds back to the available portion.
func (p *Postgres) VaultUnlock(ctx context.Context, owner, token string, amount int64) (domain.VaultAccount, error) {
	tx, err := p.db.Begin(ctx)
	if err != nil {
		return domain.VaultAccount{}, err
	}
	defer tx.Rollback(ctx)

	acct, err := lockVaultAccountTx(ctx, tx, owner, token)
	if err != nil {
		return domain.VaultAccount{}, err
	}
	if amount > acct.LockedBalance {
		return acct, ErrInsufficientLocked
	}
	_, err = tx.Exec(ctx,
		"UPDATE vault_accounts SET locked_balance = locked_balance - $3 WHERE owner = $1 AND token = $2",
		owner, token, amount)
	if err != nil {
		return acct, err
	}
	acct.LockedBalance -= amount
	return acct, tx.Commit(ctx)
}

// IsAuthorizedManager reports whether the manager may lock and unlock funds.
func (p *Postgres) IsAuthorizedManager(ctx context.Context, manager string) (bool, error) {
	var exists bool
	err := p.db.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM vault_managers WHERE manager = $1)", manager).Scan(&exists)
	return exists, err
}

// SetAuthorizedManager toggles a manager's lock/unlock permission.
func (p *Postgres) SetAuthorizedManager(ctx context.Context, manager string, authorized bool) error {
	var err error
	if authorized {
		_, err = p.db.Exec(ctx,
			"INSERT INTO vault_managers (manager) VALUES ($1) ON CONFLICT DO NOTHING", manager)
	} else {
		_, err = p.db.Exec(ctx, "DELETE FROM vault_managers WHERE manager = $1", manager)
	}
	return err
}

// CreateSubscription inserts the record and fills in the assigned id.
func (p *Postgres) CreateSubscription(ctx context.Context, sub *domain.Subscription) (uint64, error) {
	var id int64
	err := p.db.QueryRow(ctx, `
		INSERT INTO subscriptions (subscriber, creator, payment_token, amount, interval_seconds, next_payment_due, is_active, start_time)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`, sub.Subscriber, sub.Creator, sub.PaymentToken, sub.Amount, sub.Interval,
		sub.NextPaymentDue, sub.IsActive, sub.StartTime).Scan(&id)
	if err != nil {
		return 0, err
	}
	sub.ID = uint64(id)
	return sub.ID, nil
}

// GetSubscription returns the subscription record.
func (p *Postgres) GetSubscription(ctx context.Context, id uint64) (*domain.Subscription, error) {
	var sub domain.Subscription
	var subID int64
	err := p.db.QueryRow(ctx, `
		SELECT id, subscriber, creator, payment_token, amount, interval_seconds, next_payment_due, is_active, start_time
		FROM subscriptions WHERE id = $1
	`, int64(id)).Scan(&subID, &sub.Subscriber, &sub.Creator, &sub.PaymentToken,
		&sub.Amount, &sub.Interval, &sub.NextPaymentDue, &sub.IsActive, &sub.StartTime)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, err
	}
	sub.ID = uint64(subID)
	return &sub, nil
}

// UpdateSubscription replaces the mutable columns of the stored record.
func (p *Postgres) UpdateSubscription(ctx context.Context, sub *domain.Subscription) error {
	tag, err := p.db.Exec(ctx, `
		UPDATE subscriptions SET next_payment_due = $2, is_active = $3 WHERE id = $1
	`, int64(sub.ID), sub.NextPaymentDue, sub.IsActive)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrSubscriptionNotFound
	}
	return nil
}

func (p *Postgres) listSubscriptionIDs(ctx context.Context, query string, arg any) ([]uint64, error) {
	rows, err := p.db.Query(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uint64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, uint64(id))
	}
	return ids, rows.Err()
}

// ListSubscriptionIDsBySubscriber returns the subscriber's ids in creation order.
func (p *Postgres) ListSubscriptionIDsBySubscriber(ctx context.Context, subscriber string) ([]uint64, error) {
	return p.listSubscriptionIDs(ctx,
		"SELECT id FROM subscriptions WHERE subscriber = $1 ORDER BY id", subscriber)
}

// ListSubscriptionIDsByCreator returns the creator's ids in creation order.
func (p *Postgres) ListSubscriptionIDsByCreator(ctx context.Context, creator string) ([]uint64, error) {
	return p.listSubscriptionIDs(ctx,
		"SELECT id FROM subscriptions WHERE creator = $1 ORDER BY id", creator)
}

// ListDueSubscriptionIDs returns ids of active subscriptions whose next
// payment is due at or before asOf, in id order.
func (p *Postgres) ListDueSubscriptionIDs(ctx context.Context, asOf time.Time) ([]uint64, error) {
	return p.listSubscriptionIDs(ctx,
		"SELECT id FROM subscriptions WHERE is_active AND next_payment_due <= $1 ORDER BY id", asOf)
}

// GetDefaultRefundPolicy returns the platform-wide policy.
func (p *Postgres) GetDefaultRefundPolicy(ctx context.Context) (domain.RefundPolicy, error) {
	var policy domain.RefundPolicy
	err := p.db.QueryRow(ctx,
		"SELECT refund_window_days, refund_percentage, is_active FROM default_refund_policy").
		Scan(&policy.RefundWindowDays, &policy.RefundPercentage, &policy.IsActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.RefundPolicy{}, ErrPolicyNotFound
		}
		return domain.RefundPolicy{}, err
	}
	return policy, nil
}

// SetDefaultRefundPolicy stores the platform-wide policy.
func (p *Postgres) SetDefaultRefundPolicy(ctx context.Context, policy domain.RefundPolicy) error {
	_, err := p.db.Exec(ctx, `
		INSERT INTO default_refund_policy (singleton, refund_window_days, refund_percentage, is_active)
		VALUES (TRUE, $1, $2, $3)
		ON CONFLICT (singleton) DO UPDATE SET
			refund_window_days = EXCLUDED.refund_window_days,
			refund_percentage = EXCLUDED.refund_percentage,
			is_active = EXCLUDED.is_active
	`, policy.RefundWindowDays, policy.RefundPercentage, policy.IsActive)
	return err
}

// GetCreatorRefundPolicy returns a creator's override, if registered.
func (p *Postgres) GetCreatorRefundPolicy(ctx context.Context, creator string) (domain.RefundPolicy, error) {
	var policy domain.RefundPolicy
	err := p.db.QueryRow(ctx,
		"SELECT refund_window_days, refund_percentage, is_active FROM creator_refund_policies WHERE creator = $1",
		creator).Scan(&policy.RefundWindowDays, &policy.RefundPercentage, &policy.IsActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.RefundPolicy{}, ErrPolicyNotFound
		}
		return domain.RefundPolicy{}, err
	}
	return policy, nil
}

// SetCreatorRefundPolicy stores a creator's override.
func (p *Postgres) SetCreatorRefundPolicy(ctx context.Context, creator string, policy domain.RefundPolicy) error {
	_, err := p.db.Exec(ctx, `
		INSERT INTO creator_refund_policies (creator, refund_window_days, refund_percentage, is_active)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (creator) DO UPDATE SET
			refund_window_days = EXCLUDED.refund_window_days,
			refund_percentage = EXCLUDED.refund_percentage,
			is_active = EXCLUDED.is_active
	`, creator, policy.RefundWindowDays, policy.RefundPercentage, policy.IsActive)
	return err
}

// CreateRefundRequest inserts the record and fills in the assigned id. The
// partial unique index on pending requests backs the one-pending invariant.
func (p *Postgres) CreateRefundRequest(ctx context.Context, req *domain.RefundRequest) (uint64, error) {
	var id int64
	err := p.db.QueryRow(ctx, `
		INSERT INTO refund_requests (subscription_id, subscriber, creator, token, amount, request_time, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`, int64(req.SubscriptionID), req.Subscriber, req.Creator, req.Token,
		req.Amount, req.RequestTime, int16(req.Status)).Scan(&id)
	if err != nil {
		return 0, err
	}
	req.ID = uint64(id)
	return req.ID, nil
}

// GetRefundRequest returns the request record.
func (p *Postgres) GetRefundRequest(ctx context.Context, id uint64) (*domain.RefundRequest, error) {
	var req domain.RefundRequest
	var reqID, subID int64
	var status int16
	err := p.db.QueryRow(ctx, `
		SELECT id, subscription_id, subscriber, creator, token, amount, request_time, status
		FROM refund_requests WHERE id = $1
	`, int64(id)).Scan(&reqID, &subID, &req.Subscriber, &req.Creator, &req.Token,
		&req.Amount, &req.RequestTime, &status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRefundRequestNotFound
		}
		return nil, err
	}
	req.ID = uint64(reqID)
	req.SubscriptionID = uint64(subID)
	req.Status = domain.RefundStatus(status)
	return &req, nil
}

// UpdateRefundRequest replaces the status of the stored record.
func (p *Postgres) UpdateRefundRequest(ctx context.Context, req *domain.RefundRequest) error {
	tag, err := p.db.Exec(ctx,
		"UPDATE refund_requests SET status = $2 WHERE id = $1",
		int64(req.ID), int16(req.Status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrRefundRequestNotFound
	}
	return nil
}

// HasPendingRefund reports whether a non-terminal request exists for the
// subscription.
func (p *Postgres) HasPendingRefund(ctx context.Context, subscriptionID uint64) (bool, error) {
	var exists bool
	err := p.db.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM refund_requests WHERE subscription_id = $1 AND status = 0)",
		int64(subscriptionID)).Scan(&exists)
	return exists, err
}

// InitFactoryState seeds the factory configuration if none exists yet.
func (p *Postgres) InitFactoryState(ctx context.Context, state domain.FactoryState) error {
	_, err := p.db.Exec(ctx, `
		INSERT INTO factory_state (singleton, deployment_fee, protocol_fee_bps, collected_fees)
		VALUES (TRUE, $1, $2, $3)
		ON CONFLICT (singleton) DO NOTHING
	`, state.DeploymentFee, state.ProtocolFeeBps, state.CollectedFees)
	return err
}

// GetFactoryState returns the factory configuration.
func (p *Postgres) GetFactoryState(ctx context.Context) (domain.FactoryState, error) {
	var state domain.FactoryState
	err := p.db.QueryRow(ctx,
		"SELECT deployment_fee, protocol_fee_bps, collected_fees FROM factory_state").
		Scan(&state.DeploymentFee, &state.ProtocolFeeBps, &state.CollectedFees)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.FactoryState{}, ErrFactoryStateNotFound
		}
		return domain.FactoryState{}, err
	}
	return state, nil
}

// UpdateFactoryState replaces the factory configuration.
func (p *Postgres) UpdateFactoryState(ctx context.Context, state domain.FactoryState) error {
	tag, err := p.db.Exec(ctx, `
		UPDATE factory_state SET deployment_fee = $1, protocol_fee_bps = $2, collected_fees = $3
	`, state.DeploymentFee, state.ProtocolFeeBps, state.CollectedFees)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrFactoryStateNotFound
	}
	return nil
}

// CreateManagerDeployment appends a provisioning record.
func (p *Postgres) CreateManagerDeployment(ctx context.Context, dep domain.ManagerDeployment) error {
	_, err := p.db.Exec(ctx,
		"INSERT INTO manager_deployments (id, creator, created_at) VALUES ($1, $2, $3)",
		dep.ID, dep.Creator, dep.CreatedAt)
	return err
}

func (p *Postgres) listManagers(ctx context.Context, query string, args ...any) ([]domain.ManagerDeployment, error) {
	rows, err := p.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ManagerDeployment
	for rows.Next() {
		var dep domain.ManagerDeployment
		if err := rows.Scan(&dep.ID, &dep.Creator, &dep.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, dep)
	}
	return out, rows.Err()
}

// ListManagersByCreator returns deployments for one creator, oldest first.
func (p *Postgres) ListManagersByCreator(ctx context.Context, creator string) ([]domain.ManagerDeployment, error) {
	return p.listManagers(ctx,
		"SELECT id, creator, created_at FROM manager_deployments WHERE creator = $1 ORDER BY created_at", creator)
}

// ListAllManagers returns every deployment, oldest first.
func (p *Postgres) ListAllManagers(ctx context.Context) ([]domain.ManagerDeployment, error) {
	return p.listManagers(ctx,
		"SELECT id, creator, created_at FROM manager_deployments ORDER BY created_at")
}

// CountManagers returns the total number of deployments.
func (p *Postgres) CountManagers(ctx context.Context) (int, error) {
	var count int
	err := p.db.QueryRow(ctx, "SELECT COUNT(*) FROM manager_deployments").Scan(&count)
	return count, err
}
