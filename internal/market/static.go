package market

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
)

// StaticOracle serves operator-set prices. Used in paper mode and tests.
type StaticOracle struct {
	mu     sync.RWMutex
	prices map[string]decimal.Decimal
}

func NewStaticOracle(prices map[string]decimal.Decimal) *StaticOracle {
	o := &StaticOracle{prices: make(map[string]decimal.Decimal, len(prices))}
	for feed, p := range prices {
		o.prices[feed] = p
	}
	return o
}

func (o *StaticOracle) Set(feed string, price decimal.Decimal) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.prices[feed] = price
}

func (o *StaticOracle) Price(ctx context.Context, feed string) (decimal.Decimal, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	p, ok := o.prices[feed]
	if !ok {
		return decimal.Zero, fmt.Errorf("no price for feed %q", feed)
	}
	return p, nil
}
