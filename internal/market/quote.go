package market

import (
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Quote is the latest price seen for one feed.
type Quote struct {
	Feed        string
	price       decimal.Decimal
	LastUpdated time.Time
	mu          sync.RWMutex
}

func NewQuote(feed string) *Quote {
	return &Quote{Feed: feed}
}

// Update parses and stores a price. Non-positive prices are rejected.
func (q *Quote) Update(priceStr string, at time.Time) error {
	price, err := decimal.NewFromString(priceStr)
	if err != nil {
		return err
	}
	if !price.IsPositive() {
		return fmt.Errorf("non-positive price %s for %s", priceStr, q.Feed)
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	// out-of-order updates are ignored
	if at.Before(q.LastUpdated) {
		return nil
	}
	q.price = price
	q.LastUpdated = at
	return nil
}

// Get returns the price and when it was last updated.
func (q *Quote) Get() (decimal.Decimal, time.Time) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.price, q.LastUpdated
}
