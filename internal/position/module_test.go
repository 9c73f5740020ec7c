package position

import (
	"context"
	"errors"
	"testing"

	"github.com/GoPolymarket/levergate/internal/market"
	"github.com/GoPolymarket/levergate/internal/model"
	"github.com/GoPolymarket/levergate/internal/service"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	weth = common.HexToAddress("0x00000000000000000000000000000000000000c0")
	usdc = common.HexToAddress("0x00000000000000000000000000000000000000b0")
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func paperStrategy() model.StrategySettings {
	return model.StrategySettings{
		CollateralAsset:    weth,
		BorrowAsset:        usdc,
		CollateralFeed:     "ETH",
		BorrowFeed:         "USDC",
		CollateralDecimals: 18,
		BorrowDecimals:     6,
	}
}

type paperFixture struct {
	oracle  *market.StaticOracle
	wallet  *PaperWallet
	lending *PaperLending
	module  *Module
}

func newPaperFixture(t *testing.T, collateral, debt string, fee decimal.Decimal) *paperFixture {
	t.Helper()
	strategy := paperStrategy()
	oracle := market.NewStaticOracle(map[string]decimal.Decimal{"ETH": d("2000"), "USDC": d("1")})
	wallet := NewPaperWallet()
	lending := NewPaperLending(strategy, oracle, wallet, d("0.8"))
	require.NoError(t, lending.Seed(d(collateral), d(debt)))
	exchange := NewPaperExchange(strategy, oracle, wallet, fee)
	return &paperFixture{
		oracle:  oracle,
		wallet:  wallet,
		lending: lending,
		module:  NewModule(strategy, lending, exchange),
	}
}

func (f *paperFixture) balances(t *testing.T) (collateral, debt string) {
	c, err := f.lending.CollateralBalance(context.Background())
	require.NoError(t, err)
	b, err := f.lending.BorrowBalance(context.Background())
	require.NoError(t, err)
	return c.Dec(), b.Dec()
}

func TestModule_Lever(t *testing.T) {
	f := newPaperFixture(t, "10", "0", decimal.Zero)

	// 0.5 per share on 2 shares = 1 ETH bought with 2000 USDC
	err := f.module.Lever(context.Background(), service.LeverParams{
		Exchange:           "paper",
		BorrowUnits:        d("1000"),
		MinCollateralUnits: d("0.49"),
		TotalSupply:        d("2"),
	})
	require.NoError(t, err)

	collateral, debt := f.balances(t)
	assert.Equal(t, "11000000000000000000", collateral)
	assert.Equal(t, "2000000000", debt)
	assert.True(t, f.wallet.Balance(usdc).IsZero())
}

func TestModule_LeverSlippageRejected(t *testing.T) {
	f := newPaperFixture(t, "10", "0", d("0.05"))

	err := f.module.Lever(context.Background(), service.LeverParams{
		Exchange:           "paper",
		BorrowUnits:        d("2000"),
		MinCollateralUnits: d("0.98"),
		TotalSupply:        d("1"),
	})
	assert.ErrorIs(t, err, ErrSlippage)

	// the borrow is repaid, nothing left idle
	collateral, debt := f.balances(t)
	assert.Equal(t, "10000000000000000000", collateral)
	assert.Equal(t, "0", debt)
	assert.True(t, f.wallet.Balance(usdc).IsZero())
}

type stuckRepayLending struct {
	*PaperLending
}

func (l stuckRepayLending) Repay(ctx context.Context, amount *uint256.Int) error {
	return errors.New("repay paused")
}

func TestModule_LeverUnwindFailureReportsBoth(t *testing.T) {
	f := newPaperFixture(t, "10", "0", d("0.05"))
	m := NewModule(paperStrategy(), stuckRepayLending{f.lending}, NewPaperExchange(paperStrategy(), f.oracle, f.wallet, d("0.05")))

	err := m.Lever(context.Background(), service.LeverParams{
		Exchange:           "paper",
		BorrowUnits:        d("2000"),
		MinCollateralUnits: d("0.98"),
		TotalSupply:        d("1"),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSlippage)
	assert.ErrorContains(t, err, "repay borrow: repay paused")
}

func TestModule_DeleverSlippageRestoresCollateral(t *testing.T) {
	f := newPaperFixture(t, "10", "5000", decimal.Zero)

	err := f.module.Delever(context.Background(), service.DeleverParams{
		Exchange:        "paper",
		CollateralUnits: d("1"),
		MinRepayUnits:   d("2001"),
		TotalSupply:     d("1"),
	})
	assert.ErrorIs(t, err, ErrSlippage)

	collateral, debt := f.balances(t)
	assert.Equal(t, "10000000000000000000", collateral)
	assert.Equal(t, "5000000000", debt)
	assert.True(t, f.wallet.Balance(weth).IsZero())
}

func TestModule_LeverOverBorrowRejected(t *testing.T) {
	f := newPaperFixture(t, "1", "0", decimal.Zero)

	// 1 ETH at 2000 with factor 0.8 supports 1600 USDC
	err := f.module.Lever(context.Background(), service.LeverParams{
		Exchange:           "paper",
		BorrowUnits:        d("1700"),
		MinCollateralUnits: d("0"),
		TotalSupply:        d("1"),
	})
	assert.ErrorIs(t, err, ErrInsufficientLiquidity)
}

func TestModule_Delever(t *testing.T) {
	f := newPaperFixture(t, "10", "5000", decimal.Zero)

	err := f.module.Delever(context.Background(), service.DeleverParams{
		Exchange:        "paper",
		CollateralUnits: d("1"),
		MinRepayUnits:   d("1960"),
		TotalSupply:     d("1"),
	})
	require.NoError(t, err)

	collateral, debt := f.balances(t)
	assert.Equal(t, "9000000000000000000", collateral)
	assert.Equal(t, "3000000000", debt)
}

func TestModule_DeleverRepayCappedAtDebt(t *testing.T) {
	f := newPaperFixture(t, "10", "1000", decimal.Zero)

	err := f.module.Delever(context.Background(), service.DeleverParams{
		Exchange:        "paper",
		CollateralUnits: d("1"),
		MinRepayUnits:   d("0"),
		TotalSupply:     d("1"),
	})
	require.NoError(t, err)

	_, debt := f.balances(t)
	assert.Equal(t, "0", debt)
	assert.Equal(t, uint256.NewInt(1_000_000_000), f.wallet.Balance(usdc))
}

func TestModule_DeleverToZero(t *testing.T) {
	f := newPaperFixture(t, "10", "1000", decimal.Zero)

	err := f.module.DeleverToZeroBorrowBalance(context.Background(), "paper", d("0.51"), d("1"), nil)
	require.NoError(t, err)
	_, debt := f.balances(t)
	assert.Equal(t, "0", debt)

	// not enough collateral sold to cover the debt
	f = newPaperFixture(t, "10", "1000", decimal.Zero)
	err = f.module.DeleverToZeroBorrowBalance(context.Background(), "paper", d("0.4"), d("1"), nil)
	assert.ErrorIs(t, err, ErrSlippage)

	// withdrawn collateral goes back into the market
	collateral, debt := f.balances(t)
	assert.Equal(t, "10000000000000000000", collateral)
	assert.Equal(t, "1000000000", debt)
	assert.True(t, f.wallet.Balance(weth).IsZero())
}

func TestPaperExchange_UnknownAsset(t *testing.T) {
	f := newPaperFixture(t, "1", "0", decimal.Zero)
	x := NewPaperExchange(paperStrategy(), f.oracle, f.wallet, decimal.Zero)

	_, err := x.Trade(context.Background(), model.TradeRequest{
		SellAsset:  common.HexToAddress("0xdead"),
		BuyAsset:   weth,
		SellAmount: uint256.NewInt(1),
	})
	assert.Error(t, err)
}

func TestPaperWallet(t *testing.T) {
	w := NewPaperWallet()
	w.Credit(weth, uint256.NewInt(5))
	require.NoError(t, w.Debit(weth, uint256.NewInt(3)))
	assert.Equal(t, uint256.NewInt(2), w.Balance(weth))
	assert.ErrorIs(t, w.Debit(weth, uint256.NewInt(3)), ErrInsufficientBalance)
	assert.ErrorIs(t, w.Debit(usdc, uint256.NewInt(1)), ErrInsufficientBalance)
}
