package leverage

import (
	"fmt"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

// MaxDecimals bounds token precision so 10^decimals fits comfortably in uint256.
const MaxDecimals = 36

// FromRaw converts raw base units of a token with the given decimals into a
// normalized amount.
func FromRaw(raw *uint256.Int, decimals uint8) decimal.Decimal {
	if raw == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(raw.ToBig(), -int32(decimals))
}

// ToRaw converts a normalized amount into raw base units, flooring any dust below
// the token's precision.
func ToRaw(amount decimal.Decimal, decimals uint8) (*uint256.Int, error) {
	if amount.IsNegative() {
		return nil, fmt.Errorf("negative amount %s", amount)
	}
	scaled := amount.Shift(int32(decimals)).Floor()
	raw, overflow := uint256.FromBig(scaled.BigInt())
	if overflow {
		return nil, fmt.Errorf("amount %s overflows uint256", amount)
	}
	return raw, nil
}
