package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/oiiaimeow/Reclaim/internal/domain"
	"github.com/oiiaimeow/Reclaim/internal/store"
)

func newTestRefundHandler(t *testing.T) (*RefundHandler, *store.Memory, *testClock) {
	t.Helper()
	mem := store.NewMemory()
	clk := newTestClock()
	handler, err := NewRefundHandler(context.Background(), mem, &recordingPublisher{}, testLogger(), "owner")
	if err != nil {
		t.Fatalf("failed to create refund handler: %v", err)
	}
	handler.now = clk.Now
	return handler, mem, clk
}

func TestRefundHandler_SeedsDefaultPolicy(t *testing.T) {
	handler, _, _ := newTestRefundHandler(t)

	policy, err := handler.GetRefundPolicy(context.Background(), "creator")
	if err != nil {
		t.Fatalf("GetRefundPolicy failed: %v", err)
	}
	if policy.RefundWindowDays != 7 || policy.RefundPercentage != 100 || !policy.IsActive {
		t.Fatalf("expected default policy 7d/100%%/active, got %+v", policy)
	}
}

func TestRefundHandler_DefaultPolicyOwnerOnly(t *testing.T) {
	handler, _, _ := newTestRefundHandler(t)
	ctx := context.Background()

	if err := handler.SetDefaultRefundPolicy(ctx, "mallory", 14, 50); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if err := handler.SetDefaultRefundPolicy(ctx, "owner", 14, 101); !errors.Is(err, ErrPercentageExceeds100) {
		t.Fatalf("expected ErrPercentageExceeds100, got %v", err)
	}
	if err := handler.SetDefaultRefundPolicy(ctx, "owner", 14, 50); err != nil {
		t.Fatalf("owner update failed: %v", err)
	}

	policy, err := handler.GetRefundPolicy(ctx, "creator")
	if err != nil {
		t.Fatalf("GetRefundPolicy failed: %v", err)
	}
	if policy.RefundWindowDays != 14 || policy.RefundPercentage != 50 {
		t.Fatalf("expected 14d/50%%, got %+v", policy)
	}
}

func TestRefundHandler_CreatorPolicyOverridesDefault(t *testing.T) {
	handler, _, _ := newTestRefundHandler(t)
	ctx := context.Background()

	if err := handler.SetCreatorRefundPolicy(ctx, "creator", 3, 80); err != nil {
		t.Fatalf("creator policy update failed: %v", err)
	}
	if err := handler.SetCreatorRefundPolicy(ctx, "creator", 3, 101); !errors.Is(err, ErrPercentageExceeds100) {
		t.Fatalf("expected ErrPercentageExceeds100, got %v", err)
	}

	policy, err := handler.GetRefundPolicy(ctx, "creator")
	if err != nil {
		t.Fatalf("GetRefundPolicy failed: %v", err)
	}
	if policy.RefundWindowDays != 3 || policy.RefundPercentage != 80 {
		t.Fatalf("expected override 3d/80%%, got %+v", policy)
	}

	// Other creators still see the default.
	policy, err = handler.GetRefundPolicy(ctx, "other")
	if err != nil {
		t.Fatalf("GetRefundPolicy failed: %v", err)
	}
	if policy.RefundWindowDays != 7 || policy.RefundPercentage != 100 {
		t.Fatalf("expected default 7d/100%% for other creator, got %+v", policy)
	}
}

func TestRefundHandler_CalculateRefundAmountFloors(t *testing.T) {
	handler, _, _ := newTestRefundHandler(t)
	ctx := context.Background()
	if err := handler.SetCreatorRefundPolicy(ctx, "creator", 7, 50); err != nil {
		t.Fatalf("creator policy update failed: %v", err)
	}

	got, err := handler.CalculateRefundAmount(ctx, "creator", 101)
	if err != nil {
		t.Fatalf("CalculateRefundAmount failed: %v", err)
	}
	if got != 50 {
		t.Fatalf("expected floor(101*50/100)=50, got %d", got)
	}
}

func TestRefundHandler_RequestRefundValidations(t *testing.T) {
	handler, _, clk := newTestRefundHandler(t)
	ctx := context.Background()
	start := clk.Now()

	_, err := handler.RequestRefund(ctx, "mallory", 1, "alice", "creator", tokenUSDC, 1000, start)
	if !errors.Is(err, ErrOnlySubscriberCanRequest) {
		t.Fatalf("expected ErrOnlySubscriberCanRequest, got %v", err)
	}

	clk.Advance(7*24*time.Hour + time.Hour)
	_, err = handler.RequestRefund(ctx, "alice", 1, "alice", "creator", tokenUSDC, 1000, start)
	if !errors.Is(err, ErrRefundWindowExpired) {
		t.Fatalf("expected ErrRefundWindowExpired, got %v", err)
	}
}

func TestRefundHandler_OnePendingRequestPerSubscription(t *testing.T) {
	handler, _, clk := newTestRefundHandler(t)
	ctx := context.Background()
	start := clk.Now()

	if _, err := handler.RequestRefund(ctx, "alice", 1, "alice", "creator", tokenUSDC, 1000, start); err != nil {
		t.Fatalf("first request failed: %v", err)
	}
	_, err := handler.RequestRefund(ctx, "alice", 1, "alice", "creator", tokenUSDC, 1000, start)
	if !errors.Is(err, ErrRefundAlreadyRequested) {
		t.Fatalf("expected ErrRefundAlreadyRequested, got %v", err)
	}
}

func TestRefundHandler_AmountFixedAtRequestTime(t *testing.T) {
	handler, mem, clk := newTestRefundHandler(t)
	ctx := context.Background()
	mem.Mint("creator", tokenUSDC, 10_000)

	if err := handler.SetCreatorRefundPolicy(ctx, "creator", 7, 50); err != nil {
		t.Fatalf("creator policy update failed: %v", err)
	}
	req, err := handler.RequestRefund(ctx, "alice", 1, "alice", "creator", tokenUSDC, 1000, clk.Now())
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if req.Amount != 500 {
		t.Fatalf("expected refund amount 500 at 50%%, got %d", req.Amount)
	}

	// A later policy change must not touch the pending request.
	if err := handler.SetCreatorRefundPolicy(ctx, "creator", 7, 10); err != nil {
		t.Fatalf("policy change failed: %v", err)
	}
	processed, err := handler.ProcessRefund(ctx, "creator", req.ID, true)
	if err != nil {
		t.Fatalf("process failed: %v", err)
	}
	if processed.Amount != 500 {
		t.Fatalf("expected payout of the stored 500, got %d", processed.Amount)
	}

	balance, err := mem.TokenBalance(ctx, "alice", tokenUSDC)
	if err != nil {
		t.Fatalf("balance read failed: %v", err)
	}
	if balance != 500 {
		t.Fatalf("expected subscriber balance 500 after payout, got %d", balance)
	}
}

func TestRefundHandler_ProcessRefundAuthorization(t *testing.T) {
	handler, mem, clk := newTestRefundHandler(t)
	ctx := context.Background()
	mem.Mint("creator", tokenUSDC, 10_000)

	req, err := handler.RequestRefund(ctx, "alice", 1, "alice", "creator", tokenUSDC, 1000, clk.Now())
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	if _, err := handler.ProcessRefund(ctx, "mallory", req.ID, true); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("expected ErrNotAuthorized for stranger, got %v", err)
	}
	// The platform owner may settle on the creator's behalf.
	if _, err := handler.ProcessRefund(ctx, "owner", req.ID, true); err != nil {
		t.Fatalf("owner process failed: %v", err)
	}
}

func TestRefundHandler_ApprovalIsTerminal(t *testing.T) {
	handler, mem, clk := newTestRefundHandler(t)
	ctx := context.Background()
	mem.Mint("creator", tokenUSDC, 10_000)

	req, err := handler.RequestRefund(ctx, "alice", 1, "alice", "creator", tokenUSDC, 1000, clk.Now())
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	processed, err := handler.ProcessRefund(ctx, "creator", req.ID, true)
	if err != nil {
		t.Fatalf("process failed: %v", err)
	}
	if processed.Status != domain.RefundProcessed {
		t.Fatalf("expected status Processed, got %s", processed.Status)
	}

	if _, err := handler.ProcessRefund(ctx, "creator", req.ID, true); !errors.Is(err, ErrAlreadyProcessed) {
		t.Fatalf("expected ErrAlreadyProcessed on second settle, got %v", err)
	}
}

func TestRefundHandler_RejectionMovesNoFunds(t *testing.T) {
	handler, mem, clk := newTestRefundHandler(t)
	ctx := context.Background()
	mem.Mint("creator", tokenUSDC, 10_000)

	req, err := handler.RequestRefund(ctx, "alice", 1, "alice", "creator", tokenUSDC, 1000, clk.Now())
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	processed, err := handler.ProcessRefund(ctx, "creator", req.ID, false)
	if err != nil {
		t.Fatalf("reject failed: %v", err)
	}
	if processed.Status != domain.RefundRejected {
		t.Fatalf("expected status Rejected, got %s", processed.Status)
	}

	balance, err := mem.TokenBalance(ctx, "alice", tokenUSDC)
	if err != nil {
		t.Fatalf("balance read failed: %v", err)
	}
	if balance != 0 {
		t.Fatalf("expected no payout on rejection, got %d", balance)
	}

	// A terminal rejection frees the pending slot for a new request.
	if _, err := handler.RequestRefund(ctx, "alice", 1, "alice", "creator", tokenUSDC, 1000, clk.Now()); err != nil {
		t.Fatalf("expected new request after rejection, got %v", err)
	}
}

func TestRefundHandler_ApprovalFailsWhenCreatorCannotPay(t *testing.T) {
	handler, mem, clk := newTestRefundHandler(t)
	ctx := context.Background()
	mem.Mint("creator", tokenUSDC, 100) // less than the refund amount

	req, err := handler.RequestRefund(ctx, "alice", 1, "alice", "creator", tokenUSDC, 1000, clk.Now())
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if _, err := handler.ProcessRefund(ctx, "creator", req.ID, true); !errors.Is(err, store.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}

	// The request stays pending and can be settled once funded.
	stored, err := handler.GetRefundRequest(ctx, req.ID)
	if err != nil {
		t.Fatalf("GetRefundRequest failed: %v", err)
	}
	if stored.Status != domain.RefundPending {
		t.Fatalf("expected request to stay Pending, got %s", stored.Status)
	}
	mem.Mint("creator", tokenUSDC, 900)
	if _, err := handler.ProcessRefund(ctx, "creator", req.ID, true); err != nil {
		t.Fatalf("settle after funding failed: %v", err)
	}
}
