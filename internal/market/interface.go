package market

import (
	"context"

	"github.com/shopspring/decimal"
)

// Oracle prices an asset feed in the common value unit.
type Oracle interface {
	Price(ctx context.Context, feed string) (decimal.Decimal, error)
}

// Provider is a streaming oracle with a lifecycle.
type Provider interface {
	Oracle
	Subscribe(feeds []string)
	Start()
	Stop()
}
