package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/oiiaimeow/Reclaim/internal/domain"
	"github.com/oiiaimeow/Reclaim/internal/engine"
	"github.com/oiiaimeow/Reclaim/internal/store"
)

type jobsRepoStub struct {
	ids     []uint64
	listErr error
}

func (s *jobsRepoStub) ListDueSubscriptionIDs(ctx context.Context, asOf time.Time) ([]uint64, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.ids, nil
}

// chargerStub returns one error from errs per call for a subscription, then
// keeps returning ErrPaymentNotDueYet.
type chargerStub struct {
	errs  map[uint64][]error
	calls map[uint64]int
}

func newChargerStub() *chargerStub {
	return &chargerStub{errs: make(map[uint64][]error), calls: make(map[uint64]int)}
}

func (s *chargerStub) ProcessPayment(ctx context.Context, subscriptionID uint64) (*domain.Subscription, error) {
	call := s.calls[subscriptionID]
	s.calls[subscriptionID] = call + 1
	queue := s.errs[subscriptionID]
	if call < len(queue) {
		if queue[call] != nil {
			return nil, queue[call]
		}
		return &domain.Subscription{ID: subscriptionID}, nil
	}
	return nil, engine.ErrPaymentNotDueYet
}

func newTestJobs(repo Repository, charger Charger) *Jobs {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewJobs(repo, charger, logger)
}

func TestProcessDuePayments_NoDueSubscriptions(t *testing.T) {
	charger := newChargerStub()
	jobs := newTestJobs(&jobsRepoStub{}, charger)

	jobs.ProcessDuePayments()

	if len(charger.calls) != 0 {
		t.Fatalf("expected no charges, got %v", charger.calls)
	}
}

func TestProcessDuePayments_SkipsOnListError(t *testing.T) {
	charger := newChargerStub()
	jobs := newTestJobs(&jobsRepoStub{listErr: errors.New("db unavailable")}, charger)

	jobs.ProcessDuePayments()

	if len(charger.calls) != 0 {
		t.Fatalf("expected no charges on list error, got %v", charger.calls)
	}
}

func TestProcessDuePayments_ChargesEachDueSubscription(t *testing.T) {
	charger := newChargerStub()
	charger.errs[1] = []error{nil}
	charger.errs[2] = []error{nil}
	jobs := newTestJobs(&jobsRepoStub{ids: []uint64{1, 2}}, charger)

	jobs.ProcessDuePayments()

	// One successful charge plus the not-due probe each.
	if charger.calls[1] != 2 || charger.calls[2] != 2 {
		t.Fatalf("expected each subscription charged once, got %v", charger.calls)
	}
}

func TestProcessDuePayments_CatchesUpMissedCycles(t *testing.T) {
	charger := newChargerStub()
	charger.errs[7] = []error{nil, nil, nil}
	jobs := newTestJobs(&jobsRepoStub{ids: []uint64{7}}, charger)

	jobs.ProcessDuePayments()

	if charger.calls[7] != 4 {
		t.Fatalf("expected three charges plus the not-due probe, got %d", charger.calls[7])
	}
}

func TestProcessDuePayments_StopsOnChargeError(t *testing.T) {
	charger := newChargerStub()
	charger.errs[1] = []error{store.ErrInsufficientFunds}
	charger.errs[2] = []error{nil}
	jobs := newTestJobs(&jobsRepoStub{ids: []uint64{1, 2}}, charger)

	jobs.ProcessDuePayments()

	if charger.calls[1] != 1 {
		t.Fatalf("expected failed subscription dropped after one attempt, got %d", charger.calls[1])
	}
	if charger.calls[2] != 2 {
		t.Fatalf("expected next subscription still charged, got %d", charger.calls[2])
	}
}
