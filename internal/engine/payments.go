/**
 * @description
 * Payment manager: the subscription lifecycle. Creation charges the first
 * cycle immediately and schedules the next due date; processPayment
 * re-charges once per elapsed cycle; either party may cancel.
 *
 * Charges are state-then-effect inverted deliberately: the token transfer
 * settles first and the subscription record is written after, with a
 * compensating reverse transfer if the write fails, so a caller never ends
 * up with a recorded subscription that was not paid for.
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

// PaymentStore is the persistence slice the payment manager depends on.
type PaymentStore interface {
	CreateSubscription(ctx context.Context, sub *domain.Subscription) (uint64, error)
	GetSubscription(ctx context.Context, id uint64) (*domain.Subscription, error)
	UpdateSubscription(ctx context.Context, sub *domain.Subscription) error
	ListSubscriptionIDsBySubscriber(ctx context.Context, subscriber string) ([]uint64, error)
	ListSubscriptionIDsByCreator(ctx context.Context, creator string) ([]uint64, error)
	TransferTokens(ctx context.Context, from, to, token string, amount int64) error
}

// PaymentManager owns the subscription table and its index lists.
type PaymentManager struct {
	mu     sync.Mutex
	store  PaymentStore
	events Publisher
	logger *slog.Logger
	now    func() time.Time
}

// NewPaymentManager creates the subscription lifecycle manager.
func NewPaymentManager(store PaymentStore, events Publisher, logger *slog.Logger) *PaymentManager {
	return &PaymentManager{
		store:  store,
		events: events,
		logger: logger,
		now:    time.Now,
	}
}

// CreateSubscription charges the first cycle from the subscriber to the
// creator, records the subscription and returns it. The next payment falls
// due exactly one interval after the start.
func (p *PaymentManager) CreateSubscription(ctx context.Context, subscriber, creator, paymentToken string, amount, interval int64) (*domain.Subscription, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if creator == "" {
		return nil, ErrInvalidCreator
	}
	if paymentToken == "" {
		return nil, ErrInvalidToken
	}
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if interval <= 0 {
		return nil, ErrInvalidInterval
	}

	// First cycle is charged at creation time.
	if err := p.store.TransferTokens(ctx, subscriber, creator, paymentToken, amount); err != nil {
		return nil, err
	}

	now := p.now()
	sub := &domain.Subscription{
		Subscriber:     subscriber,
		Creator:        creator,
		PaymentToken:   paymentToken,
		Amount:         amount,
		Interval:       interval,
		NextPaymentDue: now.Add(time.Duration(interval) * time.Second),
		IsActive:       true,
		StartTime:      now,
	}
	if _, err := p.store.CreateSubscription(ctx, sub); err != nil {
		if revErr := p.store.TransferTokens(ctx, creator, subscriber, paymentToken, amount); revErr != nil {
			p.logger.Error("failed to reverse first charge after subscription create failure",
				"subscriber", subscriber, "creator", creator, "error", revErr)
		}
		return nil, fmt.Errorf("failed to create subscription: %w", err)
	}

	emit(ctx, p.events, p.logger, domain.EventSubscriptionCreated, domain.SubscriptionCreatedEvent{
		SubscriptionID: sub.ID,
		Subscriber:     subscriber,
		Creator:        creator,
		PaymentToken:   paymentToken,
		Amount:         amount,
		Interval:       interval,
		Timestamp:      now,
	})
	return sub, nil
}

// ProcessPayment charges one elapsed cycle. It fails if the subscription is
// inactive or the due date has not passed, and advances the due date by
// exactly one interval per call — a caller catching up on several skipped
// cycles must call once per cycle.
func (p *PaymentManager) ProcessPayment(ctx context.Context, subscriptionID uint64) (*domain.Subscription, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	sub, err := p.store.GetSubscription(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}
	if !sub.IsActive {
		return nil, ErrSubscriptionNotActive
	}
	if p.now().Before(sub.NextPaymentDue) {
		return nil, ErrPaymentNotDueYet
	}

	if err := p.store.TransferTokens(ctx, sub.Subscriber, sub.Creator, sub.PaymentToken, sub.Amount); err != nil {
		return nil, err
	}

	sub.NextPaymentDue = sub.NextPaymentDue.Add(sub.IntervalDuration())
	if err := p.store.UpdateSubscription(ctx, sub); err != nil {
		if revErr := p.store.TransferTokens(ctx, sub.Creator, sub.Subscriber, sub.PaymentToken, sub.Amount); revErr != nil {
			p.logger.Error("failed to reverse charge after due-date update failure",
				"subscription_id", subscriptionID, "error", revErr)
		}
		return nil, fmt.Errorf("failed to advance due date: %w", err)
	}

	emit(ctx, p.events, p.logger, domain.EventPaymentProcessed, domain.PaymentProcessedEvent{
		SubscriptionID: sub.ID,
		Subscriber:     sub.Subscriber,
		Creator:        sub.Creator,
		Amount:         sub.Amount,
		NextPaymentDue: sub.NextPaymentDue,
		Timestamp:      p.now(),
	})
	return sub, nil
}

// CancelSubscription deactivates a subscription. Only the subscriber or the
// creator may cancel, and cancelling an already-cancelled subscription
// fails rather than silently succeeding.
func (p *PaymentManager) CancelSubscription(ctx context.Context, caller string, subscriptionID uint64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	sub, err := p.store.GetSubscription(ctx, subscriptionID)
	if err != nil {
		return err
	}
	if caller != sub.Subscriber && caller != sub.Creator {
		return ErrOnlySubscriberOrCreatorCanCancel
	}
	if !sub.IsActive {
		return ErrSubscriptionNotActive
	}

	sub.IsActive = false
	if err := p.store.UpdateSubscription(ctx, sub); err != nil {
		return fmt.Errorf("failed to cancel subscription: %w", err)
	}

	emit(ctx, p.events, p.logger, domain.EventSubscriptionCancelled, domain.SubscriptionCancelledEvent{
		SubscriptionID: subscriptionID,
		CancelledBy:    caller,
		Timestamp:      p.now(),
	})
	return nil
}

// GetSubscription returns one subscription by id.
func (p *PaymentManager) GetSubscription(ctx context.Context, id uint64) (*domain.Subscription, error) {
	return p.store.GetSubscription(ctx, id)
}

// GetCreatorSubscriptions returns the ids of every subscription paying a
// creator, in creation order.
func (p *PaymentManager) GetCreatorSubscriptions(ctx context.Context, creator string) ([]uint64, error) {
	return p.store.ListSubscriptionIDsByCreator(ctx, creator)
}

// GetSubscriberSubscriptions returns the ids of every subscription a
// subscriber has opened, in creation order.
func (p *PaymentManager) GetSubscriberSubscriptions(ctx context.Context, subscriber string) ([]uint64, error) {
	return p.store.ListSubscriptionIDsBySubscriber(ctx, subscriber)
}
