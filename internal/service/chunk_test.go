package service

import (
	"context"
	"testing"

	"github.com/GoPolymarket/levergate/internal/leverage"
	"github.com/GoPolymarket/levergate/internal/model"
	"github.com/GoPolymarket/levergate/internal/pkg/apperrors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func leverageInfo(collateral, debt, price, maxTrade string) model.LeverageInfo {
	d := decimal.RequireFromString
	a := model.ActionInfo{
		CollateralPrice:   d(price),
		BorrowPrice:       decimal.NewFromInt(1),
		CollateralBalance: d(collateral),
		BorrowBalance:     d(debt),
		CollateralFactor:  d("0.75"),
		TotalSupply:       decimal.NewFromInt(1),
	}
	a.CollateralValue = leverage.MulDown(a.CollateralPrice, a.CollateralBalance)
	a.BorrowValue = leverage.MulDown(a.BorrowPrice, a.BorrowBalance)
	current, _ := LeverageRatio(a)
	return model.LeverageInfo{
		Action:               a,
		CurrentLeverageRatio: current,
		SlippageTolerance:    d("0.02"),
		MaxTradeSize:         d(maxTrade),
	}
}

func TestChunkRebalanceNotional(t *testing.T) {
	d := decimal.RequireFromString
	unutilized := d("0.01")

	t.Run("venue cap", func(t *testing.T) {
		info := leverageInfo("1000", "400", "0.9", "0.5")
		chunk, total, err := ChunkRebalanceNotional(info, d("1.80144"), true, unutilized)
		require.NoError(t, err)
		assert.Equal(t, "0.8", total.String())
		assert.Equal(t, "0.5", chunk.String())
	})

	t.Run("whole move fits", func(t *testing.T) {
		info := leverageInfo("1000", "400", "0.9", "5")
		chunk, total, err := ChunkRebalanceNotional(info, d("1.80144"), true, unutilized)
		require.NoError(t, err)
		assert.True(t, chunk.Equal(total))
	})

	t.Run("borrow capacity cap on lever", func(t *testing.T) {
		// limit = 1000*0.75*0.99 = 742.5, 700 already borrowed
		info := leverageInfo("1000", "700", "1", "1000")
		chunk, _, err := ChunkRebalanceNotional(info, d("5"), true, unutilized)
		require.NoError(t, err)
		assert.Equal(t, "42.5", chunk.String())
	})

	t.Run("no headroom on delever", func(t *testing.T) {
		info := leverageInfo("1000", "745", "1", "1000")
		chunk, total, err := ChunkRebalanceNotional(info, d("2"), false, unutilized)
		require.NoError(t, err)
		assert.True(t, chunk.IsZero())
		assert.True(t, total.IsPositive())
	})
}

type stubOracle map[string]decimal.Decimal

func (o stubOracle) Price(ctx context.Context, feed string) (decimal.Decimal, error) {
	return o[feed], nil
}

type stubLending struct {
	collateral, debt *uint256.Int
}

func (l stubLending) CollateralBalance(ctx context.Context) (*uint256.Int, error) { return l.collateral, nil }
func (l stubLending) BorrowBalance(ctx context.Context) (*uint256.Int, error) { return l.debt, nil }
func (l stubLending) Supply(ctx context.Context, amount *uint256.Int) error { return nil }
func (l stubLending) Withdraw(ctx context.Context, amount *uint256.Int) error { return nil }
func (l stubLending) Borrow(ctx context.Context, amount *uint256.Int) error { return nil }
func (l stubLending) Repay(ctx context.Context, amount *uint256.Int) error { return nil }
func (l stubLending) CollateralFactor(ctx context.Context, market common.Address) (decimal.Decimal, error) {
	return decimal.RequireFromString("0.8"), nil
}

type stubToken struct{}

func (stubToken) TotalSupply(ctx context.Context) (decimal.Decimal, error) {
	return decimal.NewFromInt(10), nil
}

func TestPositionReader(t *testing.T) {
	strategy := model.StrategySettings{
		CollateralFeed:     "ETH",
		BorrowFeed:         "USDC",
		CollateralDecimals: 18,
		BorrowDecimals:     6,
	}
	lending := stubLending{
		collateral: uint256.MustFromDecimal("2000000000000000000"), // 2 ETH
		debt:       uint256.NewInt(2_000_000_000),                  // 2000 USDC
	}
	oracle := stubOracle{"ETH": decimal.NewFromInt(2000), "USDC": decimal.NewFromInt(1)}
	r := NewPositionReader(strategy, oracle, lending, stubToken{})

	info, err := r.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2", info.CollateralBalance.String())
	assert.Equal(t, "2000", info.BorrowBalance.String())
	assert.Equal(t, "4000", info.CollateralValue.String())
	assert.Equal(t, "0.8", info.CollateralFactor.String())

	ratio, err := r.CurrentLeverageRatio(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2", ratio.String())

	oracle["ETH"] = decimal.NewFromInt(1000)
	_, err = r.CurrentLeverageRatio(context.Background())
	assert.True(t, apperrors.Is(err, apperrors.ErrArithmetic), "underwater position: %v", err)

	oracle["USDC"] = decimal.Zero
	_, err = r.Read(context.Background())
	assert.True(t, apperrors.Is(err, apperrors.ErrArithmetic))
}
