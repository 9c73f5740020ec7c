package leverage

import (
	"errors"

	"github.com/shopspring/decimal"
)

// Precision is the number of decimal places every ratio, price and amount is carried at.
const Precision int32 = 18

var (
	ErrUndefinedLeverage = errors.New("leverage undefined: collateral value must exceed borrow value")
	ErrZeroLeverage      = errors.New("current leverage ratio must be positive")
	ErrZeroSupply        = errors.New("total supply must be positive")
	ErrZeroPrice         = errors.New("price must be positive")
)

var (
	One = decimal.NewFromInt(1)
	// OneX is the leverage ratio of an unlevered position.
	OneX = One
)

// MulDown multiplies and rounds toward negative infinity at Precision.
func MulDown(a, b decimal.Decimal) decimal.Decimal {
	return a.Mul(b).RoundFloor(Precision)
}

// DivDown divides and rounds toward negative infinity at Precision.
// Callers guarantee b is non-zero.
func DivDown(a, b decimal.Decimal) decimal.Decimal {
	q, r := a.QuoRem(b, Precision)
	// QuoRem truncates toward zero; step down once for negative inexact quotients.
	if !r.IsZero() && a.Sign()*b.Sign() < 0 {
		q = q.Sub(decimal.New(1, -Precision))
	}
	return q
}

// CurrentLeverageRatio returns collateralValue / (collateralValue - borrowValue).
func CurrentLeverageRatio(collateralValue, borrowValue decimal.Decimal) (decimal.Decimal, error) {
	if collateralValue.LessThanOrEqual(borrowValue) {
		return decimal.Zero, ErrUndefinedLeverage
	}
	return DivDown(collateralValue, collateralValue.Sub(borrowValue)), nil
}

// NewLeverageRatio moves current toward target by speed of the gap and clamps the
// result to [min, max]:
//
//	max(min, min(max, current*(1-speed) + target*speed))
//
// Because speed is at most 1 the unclamped value never passes target, so the clamp
// only ever pulls an out-of-band ratio onto the nearest bound.
func NewLeverageRatio(current, target, min, max, speed decimal.Decimal) decimal.Decimal {
	a := MulDown(target, speed)
	b := MulDown(One.Sub(speed), current)
	next := a.Add(b)
	if next.GreaterThan(max) {
		next = max
	}
	if next.LessThan(min) {
		next = min
	}
	return next
}

// TotalRebalanceNotional is the absolute collateral amount that moves the position
// from current to next leverage: |next-current| / current * collateralBalance.
func TotalRebalanceNotional(current, next, collateralBalance decimal.Decimal) (decimal.Decimal, error) {
	if !current.IsPositive() {
		return decimal.Zero, ErrZeroLeverage
	}
	diff := next.Sub(current).Abs()
	return MulDown(DivDown(diff, current), collateralBalance), nil
}

// CollateralUnitsForLeverageDelta returns the signed per-share collateral delta for a
// move from current to next leverage. Positive means collateral is bought (lever).
func CollateralUnitsForLeverageDelta(current, next, collateralBalance, totalSupply decimal.Decimal) (decimal.Decimal, error) {
	if !totalSupply.IsPositive() {
		return decimal.Zero, ErrZeroSupply
	}
	notional, err := TotalRebalanceNotional(current, next, collateralBalance)
	if err != nil {
		return decimal.Zero, err
	}
	units := DivDown(notional, totalSupply)
	if next.LessThan(current) {
		return units.Neg(), nil
	}
	return units, nil
}

// CollateralUnits converts an absolute collateral notional into per-share units.
func CollateralUnits(notional, totalSupply decimal.Decimal) (decimal.Decimal, error) {
	if !totalSupply.IsPositive() {
		return decimal.Zero, ErrZeroSupply
	}
	return DivDown(notional, totalSupply), nil
}

func netBorrowLimit(collateralValue, collateralFactor, unutilized decimal.Decimal) decimal.Decimal {
	return MulDown(MulDown(collateralValue, collateralFactor), One.Sub(unutilized))
}

// MaxBorrowForLever is the largest collateral amount that can be bought with new
// debt while keeping unutilized of the borrow capacity unused. Floors at zero.
func MaxBorrowForLever(collateralBalance, collateralFactor, unutilized, collateralPrice, borrowPrice, borrowBalance decimal.Decimal) (decimal.Decimal, error) {
	if !collateralPrice.IsPositive() {
		return decimal.Zero, ErrZeroPrice
	}
	collateralValue := MulDown(collateralPrice, collateralBalance)
	borrowValue := MulDown(borrowPrice, borrowBalance)
	limit := netBorrowLimit(collateralValue, collateralFactor, unutilized)
	if limit.LessThanOrEqual(borrowValue) {
		return decimal.Zero, nil
	}
	return DivDown(limit.Sub(borrowValue), collateralPrice), nil
}

// MaxBorrowForDelever is the largest collateral amount that can be withdrawn to
// repay debt without breaching the collateral factor, after reserving unutilized
// headroom. Floors at zero.
func MaxBorrowForDelever(collateralBalance, collateralFactor, unutilized, collateralPrice, borrowPrice, borrowBalance decimal.Decimal) decimal.Decimal {
	collateralValue := MulDown(collateralPrice, collateralBalance)
	borrowValue := MulDown(borrowPrice, borrowBalance)
	limit := netBorrowLimit(collateralValue, collateralFactor, unutilized)
	if limit.LessThanOrEqual(borrowValue) {
		return decimal.Zero
	}
	return DivDown(MulDown(collateralBalance, limit.Sub(borrowValue)), limit)
}

// MaxRedeemToZero returns the per-share collateral to redeem so the whole debt can
// be repaid, padded by slippage so the trade still covers the debt after adverse
// movement during settlement.
func MaxRedeemToZero(current, oneX, collateralBalance, totalSupply, slippage decimal.Decimal) (decimal.Decimal, error) {
	if !totalSupply.IsPositive() {
		return decimal.Zero, ErrZeroSupply
	}
	notional, err := TotalRebalanceNotional(current, oneX, collateralBalance)
	if err != nil {
		return decimal.Zero, err
	}
	return DivDown(MulDown(notional, One.Add(slippage)), totalSupply), nil
}

// BorrowUnits is the debt needed to buy collateralUnits of collateral.
func BorrowUnits(collateralUnits, collateralPrice, borrowPrice decimal.Decimal) (decimal.Decimal, error) {
	if !borrowPrice.IsPositive() {
		return decimal.Zero, ErrZeroPrice
	}
	return DivDown(MulDown(collateralUnits, collateralPrice), borrowPrice), nil
}

// MinCollateralReceiveUnits is the minimum collateral accepted when levering.
func MinCollateralReceiveUnits(collateralUnits, slippage decimal.Decimal) decimal.Decimal {
	return MulDown(collateralUnits, One.Sub(slippage))
}

// MinRepayUnits is the minimum borrow asset accepted when selling collateralUnits.
func MinRepayUnits(collateralUnits, slippage, collateralPrice, borrowPrice decimal.Decimal) (decimal.Decimal, error) {
	units, err := BorrowUnits(collateralUnits, collateralPrice, borrowPrice)
	if err != nil {
		return decimal.Zero, err
	}
	return MulDown(units, One.Sub(slippage)), nil
}

// MinDecimal returns the smallest of the given values.
func MinDecimal(first decimal.Decimal, rest ...decimal.Decimal) decimal.Decimal {
	out := first
	for _, v := range rest {
		if v.LessThan(out) {
			out = v
		}
	}
	return out
}
