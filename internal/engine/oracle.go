/**
 * @description
 * Price oracle: stores directional exchange rates between token pairs and
 * converts amounts across tokens at 18-decimal fixed point. Rates are only
 * usable while fresh (24 hours); queries against stale data fail rather
 * than returning it.
 *
 * @notes
 * - convertAmount is integer multiply-then-divide with truncation on the
 *   divide. The intermediate product is taken through big.Int so a large
 *   amount times a large rate cannot overflow int64.
 */
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/oiiaimeow/Reclaim/internal/domain"
	"github.com/oiiaimeow/Reclaim/internal/store"
)

// PriceStore is the persistence slice the oracle depends on.
type PriceStore interface {
	GetPricePair(ctx context.Context, tokenA, tokenB string) (domain.PricePair, error)
	PutPricePair(ctx context.Context, pair domain.PricePair) error
}

// AdminChecker lets the oracle accept price updates from platform admins in
// addition to its owner.
type AdminChecker interface {
	IsAdmin(ctx context.Context, account string) (bool, error)
}

var rateScale = big.NewInt(domain.RateScale)

// PriceOracle owns the price-pair table.
type PriceOracle struct {
	mu     sync.Mutex
	store  PriceStore
	access AdminChecker // optional
	owner  string
	events Publisher
	logger *slog.Logger
	now    func() time.Time
}

// NewPriceOracle creates the oracle. access may be nil, in which case only
// the owner can write prices.
func NewPriceOracle(store PriceStore, access AdminChecker, events Publisher, logger *slog.Logger, owner string) *PriceOracle {
	return &PriceOracle{
		store:  store,
		access: access,
		owner:  owner,
		events: events,
		logger: logger,
		now:    time.Now,
	}
}

// UpdatePrice stores a fresh rate for the directional pair (tokenA, tokenB).
func (o *PriceOracle) UpdatePrice(ctx context.Context, caller, tokenA, tokenB string, rate int64) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	allowed, err := o.canUpdate(ctx, caller)
	if err != nil {
		return err
	}
	if !allowed {
		return ErrUnauthorized
	}
	if tokenA == "" || tokenB == "" {
		return ErrInvalidToken
	}
	if rate <= 0 {
		return ErrInvalidPrice
	}

	pair := domain.PricePair{
		TokenA:    tokenA,
		TokenB:    tokenB,
		Rate:      rate,
		UpdatedAt: o.now(),
	}
	if err := o.store.PutPricePair(ctx, pair); err != nil {
		return fmt.Errorf("failed to store price: %w", err)
	}

	emit(ctx, o.events, o.logger, domain.EventPriceUpdated, domain.PriceUpdatedEvent{
		TokenA:    tokenA,
		TokenB:    tokenB,
		Rate:      rate,
		Timestamp: pair.UpdatedAt,
	})
	return nil
}

func (o *PriceOracle) canUpdate(ctx context.Context, caller string) (bool, error) {
	if caller == o.owner {
		return true, nil
	}
	if o.access == nil {
		return false, nil
	}
	isAdmin, err := o.access.IsAdmin(ctx, caller)
	if err != nil {
		return false, fmt.Errorf("failed to check admin role: %w", err)
	}
	return isAdmin, nil
}

// GetPrice returns the stored rate for (tokenA, tokenB). Missing and stale
// entries both fail as expired.
func (o *PriceOracle) GetPrice(ctx context.Context, tokenA, tokenB string) (int64, error) {
	pair, err := o.freshPair(ctx, tokenA, tokenB)
	if err != nil {
		return 0, err
	}
	return pair.Rate, nil
}

// IsPriceValid reports whether a fresh rate exists for the pair.
func (o *PriceOracle) IsPriceValid(ctx context.Context, tokenA, tokenB string) (bool, error) {
	pair, err := o.store.GetPricePair(ctx, tokenA, tokenB)
	if err != nil {
		if errors.Is(err, store.ErrPriceNotFound) {
			return false, nil
		}
		return false, err
	}
	return pair.ValidAt(o.now()), nil
}

// ConvertAmount converts amount from tokenA units to tokenB units using the
// stored rate. Converting a token to itself is the identity.
func (o *PriceOracle) ConvertAmount(ctx context.Context, tokenA, tokenB string, amount int64) (int64, error) {
	if tokenA == tokenB {
		return amount, nil
	}
	pair, err := o.freshPair(ctx, tokenA, tokenB)
	if err != nil {
		return 0, err
	}

	// amount * rate / 1e18, truncating on the divide.
	product := new(big.Int).Mul(big.NewInt(amount), big.NewInt(pair.Rate))
	return new(big.Int).Quo(product, rateScale).Int64(), nil
}

func (o *PriceOracle) freshPair(ctx context.Context, tokenA, tokenB string) (domain.PricePair, error) {
	pair, err := o.store.GetPricePair(ctx, tokenA, tokenB)
	if err != nil {
		if errors.Is(err, store.ErrPriceNotFound) {
			return domain.PricePair{}, ErrPriceExpired
		}
		return domain.PricePair{}, err
	}
	if !pair.ValidAt(o.now()) {
		return domain.PricePair{}, ErrPriceExpired
	}
	return pair, nil
}
