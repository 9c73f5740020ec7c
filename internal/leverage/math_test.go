package leverage

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestDivDownRoundsTowardNegativeInfinity(t *testing.T) {
	assert.Equal(t, "0.333333333333333333", DivDown(d("1"), d("3")).String())
	assert.Equal(t, "-0.333333333333333334", DivDown(d("-1"), d("3")).String())
	assert.Equal(t, "-0.5", DivDown(d("-1"), d("2")).String())
}

func TestCurrentLeverageRatio(t *testing.T) {
	ratio, err := CurrentLeverageRatio(d("2000"), d("1000"))
	require.NoError(t, err)
	assert.True(t, ratio.Equal(d("2")))

	_, err = CurrentLeverageRatio(d("1000"), d("1000"))
	assert.ErrorIs(t, err, ErrUndefinedLeverage)

	_, err = CurrentLeverageRatio(d("900"), d("1000"))
	assert.ErrorIs(t, err, ErrUndefinedLeverage)
}

func TestNewLeverageRatioNudgesTowardTarget(t *testing.T) {
	// 5% of the 0.2x gap between 1.8x and 2x
	next := NewLeverageRatio(d("1.8"), d("2"), d("1.7"), d("2.3"), d("0.05"))
	assert.Equal(t, "1.81", next.String())
}

func TestNewLeverageRatioClampsToNearestBound(t *testing.T) {
	tests := []struct {
		name    string
		current string
		speed   string
		want    string
	}{
		{name: "far above max, slow speed", current: "3", speed: "0.05", want: "2.3"},
		{name: "above max, half speed still above max", current: "3", speed: "0.5", want: "2.3"},
		{name: "above max, full speed lands on target", current: "3", speed: "1", want: "2"},
		{name: "far below min, slow speed", current: "1.1", speed: "0.05", want: "1.7"},
		{name: "below min, large speed lands inside band", current: "1.5", speed: "0.9", want: "1.95"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewLeverageRatio(d(tt.current), d("2"), d("1.7"), d("2.3"), d(tt.speed))
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestNewLeverageRatioMonotonicConvergence(t *testing.T) {
	target, min, max := d("2"), d("1.7"), d("2.3")
	currents := []string{"1.01", "1.2", "1.69", "2.31", "2.8", "4"}
	speeds := []string{"0.01", "0.05", "0.3", "0.75", "1"}

	for _, c := range currents {
		for _, s := range speeds {
			current := d(c)
			next := NewLeverageRatio(current, target, min, max, d(s))

			// never leaves the band and never overshoots target
			assert.True(t, next.GreaterThanOrEqual(min), "current=%s speed=%s next=%s", c, s, next)
			assert.True(t, next.LessThanOrEqual(max), "current=%s speed=%s next=%s", c, s, next)
			if current.LessThan(target) {
				assert.True(t, next.GreaterThan(current) && next.LessThanOrEqual(target), "current=%s speed=%s next=%s", c, s, next)
			} else {
				assert.True(t, next.LessThan(current) && next.GreaterThanOrEqual(target), "current=%s speed=%s next=%s", c, s, next)
			}
		}
	}
}

func TestTotalRebalanceNotional(t *testing.T) {
	notional, err := TotalRebalanceNotional(d("2"), d("1.8"), d("1000"))
	require.NoError(t, err)
	assert.True(t, notional.Equal(d("100")))

	_, err = TotalRebalanceNotional(decimal.Zero, d("1.8"), d("1000"))
	assert.ErrorIs(t, err, ErrZeroLeverage)
}

func TestCollateralUnitsForLeverageDelta(t *testing.T) {
	units, err := CollateralUnitsForLeverageDelta(d("2"), d("1.8"), d("1000"), d("100"))
	require.NoError(t, err)
	assert.True(t, units.Equal(d("-1")), "got %s", units)

	units, err = CollateralUnitsForLeverageDelta(d("1"), d("2"), d("1000"), d("100"))
	require.NoError(t, err)
	assert.True(t, units.Equal(d("10")), "got %s", units)

	_, err = CollateralUnitsForLeverageDelta(d("2"), d("1.8"), d("1000"), decimal.Zero)
	assert.ErrorIs(t, err, ErrZeroSupply)
}

func TestMaxBorrowForDelever(t *testing.T) {
	// limit = 1000 * 0.8 * 0.9 = 720, headroom = 420
	got := MaxBorrowForDelever(d("10"), d("0.8"), d("0.1"), d("100"), d("1"), d("300"))
	assert.Equal(t, "5.833333333333333333", got.String())

	// debt already above the reduced limit: never a negative redemption
	got = MaxBorrowForDelever(d("10"), d("0.8"), d("0.1"), d("100"), d("1"), d("800"))
	assert.True(t, got.IsZero())
}

func TestMaxBorrowForLever(t *testing.T) {
	got, err := MaxBorrowForLever(d("10"), d("0.8"), d("0.1"), d("100"), d("1"), d("300"))
	require.NoError(t, err)
	assert.True(t, got.Equal(d("4.2")), "got %s", got)

	got, err = MaxBorrowForLever(d("10"), d("0.8"), d("0.1"), d("100"), d("1"), d("720"))
	require.NoError(t, err)
	assert.True(t, got.IsZero())
}

func TestMaxRedeemToZero(t *testing.T) {
	// half the collateral unwinds a 2x position, padded by 2% slippage, per share of 5
	got, err := MaxRedeemToZero(d("2"), OneX, d("10"), d("5"), d("0.02"))
	require.NoError(t, err)
	assert.True(t, got.Equal(d("1.02")), "got %s", got)
}

func TestTradeSizing(t *testing.T) {
	borrow, err := BorrowUnits(d("2"), d("2000"), d("1"))
	require.NoError(t, err)
	assert.True(t, borrow.Equal(d("4000")))

	assert.True(t, MinCollateralReceiveUnits(d("2"), d("0.01")).Equal(d("1.98")))

	repay, err := MinRepayUnits(d("2"), d("0.05"), d("2000"), d("1"))
	require.NoError(t, err)
	assert.True(t, repay.Equal(d("3800")))

	_, err = BorrowUnits(d("2"), d("2000"), decimal.Zero)
	assert.ErrorIs(t, err, ErrZeroPrice)
}

func TestRawConversion(t *testing.T) {
	raw, err := ToRaw(d("1.5"), 6)
	require.NoError(t, err)
	assert.Equal(t, uint64(1_500_000), raw.Uint64())
	assert.True(t, FromRaw(raw, 6).Equal(d("1.5")))

	dust, err := ToRaw(d("0.0000009"), 6)
	require.NoError(t, err)
	assert.True(t, dust.IsZero())

	_, err = ToRaw(d("-1"), 6)
	assert.Error(t, err)

	assert.True(t, FromRaw(uint256.NewInt(0), 18).IsZero())
	assert.True(t, FromRaw(nil, 18).IsZero())
}

func TestMinDecimal(t *testing.T) {
	assert.True(t, MinDecimal(d("3"), d("1"), d("2")).Equal(d("1")))
	assert.True(t, MinDecimal(d("3")).Equal(d("3")))
}
