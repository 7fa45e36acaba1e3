/**
 * @description
 * Refund handler: per-creator refund policies plus the refund-request state
 * machine. A subscriber may dispute a charge within the policy window; the
 * creator (or the platform owner) approves or rejects it, and an approved
 * refund moves tokens from the creator back to the subscriber.
 *
 * The refund amount is computed once, at request time, from the policy then
 * in effect. Later policy changes never touch pending requests.
 */
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/oiiaimeow/Reclaim/internal/domain"
	"github.com/oiiaimeow/Reclaim/internal/store"
)

// Platform default applied when no policy has ever been configured:
// full refund within seven days.
const (
	defaultRefundWindowDays = 7
	defaultRefundPercentage = 100
)

// RefundStore is the persistence slice the refund handler depends on.
type RefundStore interface {
	GetDefaultRefundPolicy(ctx context.Context) (domain.RefundPolicy, error)
	SetDefaultRefundPolicy(ctx context.Context, policy domain.RefundPolicy) error
	GetCreatorRefundPolicy(ctx context.Context, creator string) (domain.RefundPolicy, error)
	SetCreatorRefundPolicy(ctx context.Context, creator string, policy domain.RefundPolicy) error
	CreateRefundRequest(ctx context.Context, req *domain.RefundRequest) (uint64, error)
	GetRefundRequest(ctx context.Context, id uint64) (*domain.RefundRequest, error)
	UpdateRefundRequest(ctx context.Context, req *domain.RefundRequest) error
	HasPendingRefund(ctx context.Context, subscriptionID uint64) (bool, error)
	TransferTokens(ctx context.Context, from, to, token string, amount int64) error
}

// RefundHandler owns the refund policy table and the request table.
type RefundHandler struct {
	mu     sync.Mutex
	store  RefundStore
	owner  string
	events Publisher
	logger *slog.Logger
	now    func() time.Time
}

// NewRefundHandler creates the handler and seeds the default policy
// (7 days, 100%) if none has been configured yet.
func NewRefundHandler(ctx context.Context, refundStore RefundStore, events Publisher, logger *slog.Logger, owner string) (*RefundHandler, error) {
	if _, err := refundStore.GetDefaultRefundPolicy(ctx); err != nil {
		if !errors.Is(err, store.ErrPolicyNotFound) {
			return nil, fmt.Errorf("failed to load default refund policy: %w", err)
		}
		seed := domain.RefundPolicy{
			RefundWindowDays: defaultRefundWindowDays,
			RefundPercentage: defaultRefundPercentage,
			IsActive:         true,
		}
		if err := refundStore.SetDefaultRefundPolicy(ctx, seed); err != nil {
			return nil, fmt.Errorf("failed to seed default refund policy: %w", err)
		}
	}
	return &RefundHandler{
		store:  refundStore,
		owner:  owner,
		events: events,
		logger: logger,
		now:    time.Now,
	}, nil
}

// SetDefaultRefundPolicy replaces the platform-wide policy. Owner-only.
func (h *RefundHandler) SetDefaultRefundPolicy(ctx context.Context, caller string, windowDays, percentage uint32) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if caller != h.owner {
		return ErrUnauthorized
	}
	if percentage > 100 {
		return ErrPercentageExceeds100
	}
	return h.store.SetDefaultRefundPolicy(ctx, domain.RefundPolicy{
		RefundWindowDays: windowDays,
		RefundPercentage: percentage,
		IsActive:         true,
	})
}

// SetCreatorRefundPolicy registers the caller's own policy override.
func (h *RefundHandler) SetCreatorRefundPolicy(ctx context.Context, caller string, windowDays, percentage uint32) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if percentage > 100 {
		return ErrPercentageExceeds100
	}
	policy := domain.RefundPolicy{
		RefundWindowDays: windowDays,
		RefundPercentage: percentage,
		IsActive:         true,
	}
	if err := h.store.SetCreatorRefundPolicy(ctx, caller, policy); err != nil {
		return fmt.Errorf("failed to store creator refund policy: %w", err)
	}

	emit(ctx, h.events, h.logger, domain.EventRefundPolicyUpdated, domain.RefundPolicyUpdatedEvent{
		Creator:          caller,
		RefundWindowDays: windowDays,
		RefundPercentage: percentage,
	})
	return nil
}

// GetRefundPolicy returns the policy in effect for a creator: their own
// override when one exists, the default otherwise.
func (h *RefundHandler) GetRefundPolicy(ctx context.Context, creator string) (domain.RefundPolicy, error) {
	policy, err := h.store.GetCreatorRefundPolicy(ctx, creator)
	if err == nil && policy.IsActive {
		return policy, nil
	}
	if err != nil && !errors.Is(err, store.ErrPolicyNotFound) {
		return domain.RefundPolicy{}, err
	}
	return h.store.GetDefaultRefundPolicy(ctx)
}

// CalculateRefundAmount applies the creator's effective policy percentage
// to an original charge, flooring on the divide.
func (h *RefundHandler) CalculateRefundAmount(ctx context.Context, creator string, originalAmount int64) (int64, error) {
	policy, err := h.GetRefundPolicy(ctx, creator)
	if err != nil {
		return 0, err
	}
	return originalAmount * int64(policy.RefundPercentage) / 100, nil
}

// RequestRefund opens a refund request for a charge. Caller must be the
// subscriber; the request must fall inside the policy window, and only one
// pending request may exist per subscription.
func (h *RefundHandler) RequestRefund(ctx context.Context, caller string, subscriptionID uint64, subscriber, creator, token string, amount int64, subscriptionStartTime time.Time) (*domain.RefundRequest, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if caller != subscriber {
		return nil, ErrOnlySubscriberCanRequest
	}

	policy, err := h.GetRefundPolicy(ctx, creator)
	if err != nil {
		return nil, err
	}

	now := h.now()
	window := time.Duration(policy.RefundWindowDays) * 24 * time.Hour
	if now.Sub(subscriptionStartTime) > window {
		return nil, ErrRefundWindowExpired
	}

	pending, err := h.store.HasPendingRefund(ctx, subscriptionID)
	if err != nil {
		return nil, fmt.Errorf("failed to check pending refunds: %w", err)
	}
	if pending {
		return nil, ErrRefundAlreadyRequested
	}

	req := &domain.RefundRequest{
		SubscriptionID: subscriptionID,
		Subscriber:     subscriber,
		Creator:        creator,
		Token:          token,
		Amount:         amount * int64(policy.RefundPercentage) / 100,
		RequestTime:    now,
		Status:         domain.RefundPending,
	}
	if _, err := h.store.CreateRefundRequest(ctx, req); err != nil {
		return nil, fmt.Errorf("failed to create refund request: %w", err)
	}

	emit(ctx, h.events, h.logger, domain.EventRefundRequested, domain.RefundRequestedEvent{
		RefundID:       req.ID,
		SubscriptionID: subscriptionID,
		Subscriber:     subscriber,
		Creator:        creator,
		Amount:         req.Amount,
		Timestamp:      now,
	})
	return req, nil
}

// ProcessRefund settles a pending request. Caller must be the request's
// creator or the platform owner. Approval transfers the stored amount from
// the creator to the subscriber; rejection moves no funds. Both outcomes
// are terminal.
func (h *RefundHandler) ProcessRefund(ctx context.Context, caller string, refundID uint64, approve bool) (*domain.RefundRequest, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	req, err := h.store.GetRefundRequest(ctx, refundID)
	if err != nil {
		return nil, err
	}
	if caller != req.Creator && caller != h.owner {
		return nil, ErrNotAuthorized
	}
	if req.Status != domain.RefundPending {
		return nil, ErrAlreadyProcessed
	}

	if approve {
		if err := h.store.TransferTokens(ctx, req.Creator, req.Subscriber, req.Token, req.Amount); err != nil {
			return nil, err
		}
		req.Status = domain.RefundProcessed
	} else {
		req.Status = domain.RefundRejected
	}

	if err := h.store.UpdateRefundRequest(ctx, req); err != nil {
		if approve {
			// The payout already settled; pull it back so a retry starts clean.
			if revErr := h.store.TransferTokens(ctx, req.Subscriber, req.Creator, req.Token, req.Amount); revErr != nil {
				h.logger.Error("failed to reverse refund payout after status update failure",
					"refund_id", refundID, "error", revErr)
			}
		}
		return nil, fmt.Errorf("failed to update refund request: %w", err)
	}

	emit(ctx, h.events, h.logger, domain.EventRefundProcessed, domain.RefundProcessedEvent{
		RefundID:  refundID,
		Approved:  approve,
		Amount:    req.Amount,
		Timestamp: h.now(),
	})
	return req, nil
}

// GetRefundRequest returns one request by id.
func (h *RefundHandler) GetRefundRequest(ctx context.Context, id uint64) (*domain.RefundRequest, error) {
	return h.store.GetRefundRequest(ctx, id)
}
