/**
 * @description
 * Scheduled job implementations for the billing scheduler. The renewal job
 * scans for subscriptions whose next payment is due and charges them through
 * the payment manager.
 */
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/oiiaimeow/Reclaim/internal/domain"
	"github.com/oiiaimeow/Reclaim/internal/engine"
)

// maxCatchUpCharges caps how many missed billing cycles a single job run
// will collect for one subscription.
const maxCatchUpCharges = 12

// Repository defines database operations needed by the jobs.
type Repository interface {
	ListDueSubscriptionIDs(ctx context.Context, asOf time.Time) ([]uint64, error)
}

// Charger defines the payment operations the renewal job drives.
type Charger interface {
	ProcessPayment(ctx context.Context, subscriptionID uint64) (*domain.Subscription, error)
}

// Jobs contains the logic for all scheduled tasks.
type Jobs struct {
	repo    Repository
	charger Charger
	logger  *slog.Logger
	now     func() time.Time
}

// NewJobs creates a new Jobs runner.
func NewJobs(repo Repository, charger Charger, logger *slog.Logger) *Jobs {
	return &Jobs{
		repo:    repo,
		charger: charger,
		logger:  logger,
		now:     time.Now,
	}
}

// ProcessDuePayments charges every subscription whose next payment date has
// passed. A subscription that has missed several cycles is charged once per
// cycle until it is caught up.
func (j *Jobs) ProcessDuePayments() {
	j.logger.Info("starting subscription renewal job")
	ctx := context.Background()

	ids, err := j.repo.ListDueSubscriptionIDs(ctx, j.now())
	if err != nil {
		j.logger.Error("failed to list due subscriptions", "error", err)
		return
	}

	if len(ids) == 0 {
		j.logger.Info("no subscriptions due for renewal")
		return
	}

	j.logger.Info("found subscriptions due for renewal", "count", len(ids))

	charged := 0
	for _, id := range ids {
		for attempt := 0; attempt < maxCatchUpCharges; attempt++ {
			_, err := j.charger.ProcessPayment(ctx, id)
			if err == nil {
				charged++
				continue
			}
			if errors.Is(err, engine.ErrPaymentNotDueYet) {
				// Caught up.
				break
			}
			j.logger.Error("failed to process subscription payment", "subscription_id", id, "error", err)
			break
		}
	}

	j.logger.Info("subscription renewal job finished", "charged", charged)
}
