package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/oiiaimeow/Reclaim/internal/domain"
	"github.com/oiiaimeow/Reclaim/internal/store"
)

const (
	tokenUSDC = "USDC"
	tokenDAI  = "DAI"
)

func newTestOracle(t *testing.T, access AdminChecker) (*PriceOracle, *testClock) {
	t.Helper()
	clk := newTestClock()
	oracle := NewPriceOracle(store.NewMemory(), access, &recordingPublisher{}, testLogger(), "owner")
	oracle.now = clk.Now
	return oracle, clk
}

func TestPriceOracle_OwnerUpdatesAndReadsPrice(t *testing.T) {
	oracle, _ := newTestOracle(t, nil)
	ctx := context.Background()

	if err := oracle.UpdatePrice(ctx, "owner", tokenUSDC, tokenDAI, domain.RateScale); err != nil {
		t.Fatalf("update price failed: %v", err)
	}

	rate, err := oracle.GetPrice(ctx, tokenUSDC, tokenDAI)
	if err != nil {
		t.Fatalf("get price failed: %v", err)
	}
	if rate != domain.RateScale {
		t.Fatalf("expected rate=%d, got %d", int64(domain.RateScale), rate)
	}
}

func TestPriceOracle_AdminMayUpdate(t *testing.T) {
	mem := store.NewMemory()
	ac, err := NewAccessControl(context.Background(), mem, &recordingPublisher{}, testLogger(), "alice")
	if err != nil {
		t.Fatalf("failed to create access control: %v", err)
	}
	oracle, _ := newTestOracle(t, ac)
	ctx := context.Background()

	if err := oracle.UpdatePrice(ctx, "alice", tokenUSDC, tokenDAI, 5); err != nil {
		t.Fatalf("expected admin update to succeed, got %v", err)
	}

	err = oracle.UpdatePrice(ctx, "mallory", tokenUSDC, tokenDAI, 5)
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for stranger, got %v", err)
	}
}

func TestPriceOracle_RejectsInvalidInput(t *testing.T) {
	oracle, _ := newTestOracle(t, nil)
	ctx := context.Background()

	if err := oracle.UpdatePrice(ctx, "owner", "", tokenDAI, 1); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for empty token, got %v", err)
	}
	if err := oracle.UpdatePrice(ctx, "owner", tokenUSDC, tokenDAI, 0); !errors.Is(err, ErrInvalidPrice) {
		t.Fatalf("expected ErrInvalidPrice for zero rate, got %v", err)
	}
	if err := oracle.UpdatePrice(ctx, "owner", tokenUSDC, tokenDAI, -1); !errors.Is(err, ErrInvalidPrice) {
		t.Fatalf("expected ErrInvalidPrice for negative rate, got %v", err)
	}
}

func TestPriceOracle_MissingPriceReadsAsExpired(t *testing.T) {
	oracle, _ := newTestOracle(t, nil)
	ctx := context.Background()

	_, err := oracle.GetPrice(ctx, tokenUSDC, tokenDAI)
	if !errors.Is(err, ErrPriceExpired) {
		t.Fatalf("expected ErrPriceExpired for missing pair, got %v", err)
	}

	valid, err := oracle.IsPriceValid(ctx, tokenUSDC, tokenDAI)
	if err != nil {
		t.Fatalf("IsPriceValid failed: %v", err)
	}
	if valid {
		t.Fatal("expected missing pair to be invalid")
	}
}

func TestPriceOracle_PriceExpiresAfterValidityWindow(t *testing.T) {
	oracle, clk := newTestOracle(t, nil)
	ctx := context.Background()

	if err := oracle.UpdatePrice(ctx, "owner", tokenUSDC, tokenDAI, 42); err != nil {
		t.Fatalf("update price failed: %v", err)
	}

	clk.Advance(domain.PriceValidity - time.Minute)
	if _, err := oracle.GetPrice(ctx, tokenUSDC, tokenDAI); err != nil {
		t.Fatalf("expected price still fresh just inside the window, got %v", err)
	}

	clk.Advance(2 * time.Minute)
	_, err := oracle.GetPrice(ctx, tokenUSDC, tokenDAI)
	if !errors.Is(err, ErrPriceExpired) {
		t.Fatalf("expected ErrPriceExpired after validity window, got %v", err)
	}

	valid, err := oracle.IsPriceValid(ctx, tokenUSDC, tokenDAI)
	if err != nil {
		t.Fatalf("IsPriceValid failed: %v", err)
	}
	if valid {
		t.Fatal("expected stale pair to be invalid")
	}

	// A fresh write makes the pair usable again.
	if err := oracle.UpdatePrice(ctx, "owner", tokenUSDC, tokenDAI, 43); err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	rate, err := oracle.GetPrice(ctx, tokenUSDC, tokenDAI)
	if err != nil {
		t.Fatalf("get price after refresh failed: %v", err)
	}
	if rate != 43 {
		t.Fatalf("expected refreshed rate=43, got %d", rate)
	}
}

func TestPriceOracle_ConvertAmount(t *testing.T) {
	oracle, _ := newTestOracle(t, nil)
	ctx := context.Background()

	// 1 USDC = 2 DAI.
	if err := oracle.UpdatePrice(ctx, "owner", tokenUSDC, tokenDAI, 2*domain.RateScale); err != nil {
		t.Fatalf("update price failed: %v", err)
	}
	// 1 DAI = 0.5 USDC.
	if err := oracle.UpdatePrice(ctx, "owner", tokenDAI, tokenUSDC, domain.RateScale/2); err != nil {
		t.Fatalf("update price failed: %v", err)
	}

	tests := []struct {
		name   string
		tokenA string
		tokenB string
		amount int64
		want   int64
	}{
		{name: "doubles at rate 2", tokenA: tokenUSDC, tokenB: tokenDAI, amount: 1000, want: 2000},
		{name: "halves at rate 0.5", tokenA: tokenDAI, tokenB: tokenUSDC, amount: 1000, want: 500},
		{name: "truncates toward zero", tokenA: tokenDAI, tokenB: tokenUSDC, amount: 3, want: 1},
		{name: "same token is identity", tokenA: tokenUSDC, tokenB: tokenUSDC, amount: 777, want: 777},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := oracle.ConvertAmount(ctx, tt.tokenA, tt.tokenB, tt.amount)
			if err != nil {
				t.Fatalf("convert failed: %v", err)
			}
			if got != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, got)
			}
		})
	}
}

func TestPriceOracle_ConvertLargeAmountDoesNotOverflow(t *testing.T) {
	oracle, _ := newTestOracle(t, nil)
	ctx := context.Background()

	// amount * rate overflows int64; the conversion must still be exact.
	if err := oracle.UpdatePrice(ctx, "owner", tokenUSDC, tokenDAI, 3*domain.RateScale); err != nil {
		t.Fatalf("update price failed: %v", err)
	}

	amount := int64(1_000_000_000_000) // 1e12 smallest units
	got, err := oracle.ConvertAmount(ctx, tokenUSDC, tokenDAI, amount)
	if err != nil {
		t.Fatalf("convert failed: %v", err)
	}
	if got != 3*amount {
		t.Fatalf("expected %d, got %d", 3*amount, got)
	}
}
