/**
 * @description
 * Subscription factory: provisions dedicated payment-manager instances for
 * creators against a deployment fee paid in the platform's native
 * settlement token, and accrues protocol fees for the owner to withdraw.
 *
 * Excess value offered above the deployment fee is never debited — only the
 * fee itself leaves the caller's balance.
 */
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/oiiaimeow/Reclaim/internal/domain"
	"github.com/oiiaimeow/Reclaim/internal/store"
)

const maxProtocolFeeBps = 1000 // 10%

// FactoryStore is the persistence slice the factory depends on.
type FactoryStore interface {
	InitFactoryState(ctx context.Context, state domain.FactoryState) error
	GetFactoryState(ctx context.Context) (domain.FactoryState, error)
	UpdateFactoryState(ctx context.Context, state domain.FactoryState) error
	CreateManagerDeployment(ctx context.Context, dep domain.ManagerDeployment) error
	ListManagersByCreator(ctx context.Context, creator string) ([]domain.ManagerDeployment, error)
	ListAllManagers(ctx context.Context) ([]domain.ManagerDeployment, error)
	CountManagers(ctx context.Context) (int, error)
	TransferTokens(ctx context.Context, from, to, token string, amount int64) error
}

// SubscriptionFactory tracks manager deployments and fee accounting.
type SubscriptionFactory struct {
	mu       sync.Mutex
	store    FactoryStore
	owner    string
	feeToken string
	events   Publisher
	logger   *slog.Logger
	now      func() time.Time
}

// NewSubscriptionFactory creates the factory, seeding its fee settings if
// this is the first start.
func NewSubscriptionFactory(ctx context.Context, factoryStore FactoryStore, events Publisher, logger *slog.Logger, owner, feeToken string, deploymentFee, protocolFeeBps int64) (*SubscriptionFactory, error) {
	if protocolFeeBps > maxProtocolFeeBps {
		return nil, ErrFeeExceeds10Percent
	}
	if err := factoryStore.InitFactoryState(ctx, domain.FactoryState{
		DeploymentFee:  deploymentFee,
		ProtocolFeeBps: protocolFeeBps,
	}); err != nil {
		return nil, fmt.Errorf("failed to seed factory state: %w", err)
	}
	return &SubscriptionFactory{
		store:    factoryStore,
		owner:    owner,
		feeToken: feeToken,
		events:   events,
		logger:   logger,
		now:      time.Now,
	}, nil
}

// DeployPaymentManager provisions a manager instance for the caller. value
// is the amount of the native token the caller offers; it must cover the
// deployment fee, and only the fee is debited.
func (f *SubscriptionFactory) DeployPaymentManager(ctx context.Context, caller string, value int64) (*domain.ManagerDeployment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	state, err := f.store.GetFactoryState(ctx)
	if err != nil {
		return nil, err
	}
	if value < state.DeploymentFee {
		return nil, ErrInsufficientDeploymentFee
	}

	fee := state.DeploymentFee
	if err := f.store.TransferTokens(ctx, caller, store.FactoryFeeAccount, f.feeToken, fee); err != nil {
		return nil, err
	}

	state.CollectedFees += fee
	if err := f.store.UpdateFactoryState(ctx, state); err != nil {
		if revErr := f.store.TransferTokens(ctx, store.FactoryFeeAccount, caller, f.feeToken, fee); revErr != nil {
			f.logger.Error("failed to reverse deployment fee after accrual failure",
				"creator", caller, "error", revErr)
		}
		return nil, fmt.Errorf("failed to accrue deployment fee: %w", err)
	}

	dep := domain.ManagerDeployment{
		ID:        uuid.New(),
		Creator:   caller,
		CreatedAt: f.now(),
	}
	if err := f.store.CreateManagerDeployment(ctx, dep); err != nil {
		state.CollectedFees -= fee
		if revErr := f.store.UpdateFactoryState(ctx, state); revErr != nil {
			f.logger.Error("failed to reverse fee accrual after record failure",
				"creator", caller, "error", revErr)
		}
		if revErr := f.store.TransferTokens(ctx, store.FactoryFeeAccount, caller, f.feeToken, fee); revErr != nil {
			f.logger.Error("failed to reverse deployment fee after record failure",
				"creator", caller, "error", revErr)
		}
		return nil, fmt.Errorf("failed to record manager deployment: %w", err)
	}

	emit(ctx, f.events, f.logger, domain.EventManagerDeployed, domain.ManagerDeployedEvent{
		Creator:   caller,
		ManagerID: dep.ID,
		Timestamp: dep.CreatedAt,
	})
	return &dep, nil
}

// SetDeploymentFee changes the provisioning fee. Owner-only.
func (f *SubscriptionFactory) SetDeploymentFee(ctx context.Context, caller string, fee int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if caller != f.owner {
		return ErrUnauthorized
	}
	state, err := f.store.GetFactoryState(ctx)
	if err != nil {
		return err
	}
	state.DeploymentFee = fee
	if err := f.store.UpdateFactoryState(ctx, state); err != nil {
		return fmt.Errorf("failed to update deployment fee: %w", err)
	}

	emit(ctx, f.events, f.logger, domain.EventDeploymentFeeUpdated, domain.DeploymentFeeUpdatedEvent{NewFee: fee})
	return nil
}

// SetProtocolFeePercentage changes the protocol fee in basis points,
// capped at 10%. Owner-only.
func (f *SubscriptionFactory) SetProtocolFeePercentage(ctx context.Context, caller string, bps int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if caller != f.owner {
		return ErrUnauthorized
	}
	if bps > maxProtocolFeeBps {
		return ErrFeeExceeds10Percent
	}
	state, err := f.store.GetFactoryState(ctx)
	if err != nil {
		return err
	}
	state.ProtocolFeeBps = bps
	if err := f.store.UpdateFactoryState(ctx, state); err != nil {
		return fmt.Errorf("failed to update protocol fee: %w", err)
	}

	emit(ctx, f.events, f.logger, domain.EventProtocolFeeUpdated, domain.ProtocolFeeUpdatedEvent{NewPercentageBps: bps})
	return nil
}

// WithdrawFees pays every accrued fee out to the owner. Owner-only.
func (f *SubscriptionFactory) WithdrawFees(ctx context.Context, caller string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if caller != f.owner {
		return 0, ErrUnauthorized
	}
	state, err := f.store.GetFactoryState(ctx)
	if err != nil {
		return 0, err
	}
	if state.CollectedFees == 0 {
		return 0, ErrNoFeesToWithdraw
	}

	amount := state.CollectedFees
	if err := f.store.TransferTokens(ctx, store.FactoryFeeAccount, f.owner, f.feeToken, amount); err != nil {
		return 0, err
	}
	state.CollectedFees = 0
	if err := f.store.UpdateFactoryState(ctx, state); err != nil {
		if revErr := f.store.TransferTokens(ctx, f.owner, store.FactoryFeeAccount, f.feeToken, amount); revErr != nil {
			f.logger.Error("failed to reverse fee withdrawal after state failure", "error", revErr)
		}
		return 0, fmt.Errorf("failed to clear collected fees: %w", err)
	}
	return amount, nil
}

// GetState returns the factory's fee settings and accrued fee pot.
func (f *SubscriptionFactory) GetState(ctx context.Context) (domain.FactoryState, error) {
	return f.store.GetFactoryState(ctx)
}

// GetCreatorManagers returns the deployments owned by one creator.
func (f *SubscriptionFactory) GetCreatorManagers(ctx context.Context, creator string) ([]domain.ManagerDeployment, error) {
	return f.store.ListManagersByCreator(ctx, creator)
}

// GetAllManagers returns every deployment.
func (f *SubscriptionFactory) GetAllManagers(ctx context.Context) ([]domain.ManagerDeployment, error) {
	return f.store.ListAllManagers(ctx)
}

// GetManagerCount returns the total number of deployments.
func (f *SubscriptionFactory) GetManagerCount(ctx context.Context) (int, error) {
	return f.store.CountManagers(ctx)
}
