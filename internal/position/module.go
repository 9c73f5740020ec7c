package position

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/GoPolymarket/levergate/internal/leverage"
	"github.com/GoPolymarket/levergate/internal/model"
	"github.com/GoPolymarket/levergate/internal/pkg/logger"
	"github.com/GoPolymarket/levergate/internal/service"
	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

// Module moves collateral for one position by composing the lending market with
// a trade venue. Per-share units are scaled by the share supply and converted to
// raw token units before anything is sent out.
type Module struct {
	strategy model.StrategySettings
	lending  service.LendingIntegration
	trader   service.TradeExecutor
	log      *slog.Logger
}

func NewModule(strategy model.StrategySettings, lending service.LendingIntegration, trader service.TradeExecutor) *Module {
	return &Module{
		strategy: strategy,
		lending:  lending,
		trader:   trader,
		log:      logger.Component("position"),
	}
}

// Lever borrows, buys collateral with the debt and supplies what was bought.
func (m *Module) Lever(ctx context.Context, p service.LeverParams) error {
	borrowRaw, err := m.toRaw(p.BorrowUnits, p.TotalSupply, m.strategy.BorrowDecimals)
	if err != nil {
		return fmt.Errorf("borrow amount: %w", err)
	}
	minReceive, err := m.toRaw(p.MinCollateralUnits, p.TotalSupply, m.strategy.CollateralDecimals)
	if err != nil {
		return fmt.Errorf("min receive amount: %w", err)
	}

	if err := m.lending.Borrow(ctx, borrowRaw); err != nil {
		return fmt.Errorf("borrow: %w", err)
	}
	bought, err := m.trader.Trade(ctx, model.TradeRequest{
		Exchange:     p.Exchange,
		SellAsset:    m.strategy.BorrowAsset,
		BuyAsset:     m.strategy.CollateralAsset,
		SellAmount:   borrowRaw,
		MinBuyAmount: minReceive,
		Data:         p.Data,
	})
	if err != nil {
		return m.unwind(ctx, fmt.Errorf("trade on %s: %w", p.Exchange, err), "repay borrow", m.lending.Repay, borrowRaw)
	}
	if err := m.lending.Supply(ctx, bought); err != nil {
		return fmt.Errorf("supply: %w", err)
	}

	m.log.Info("levered",
		"exchange", p.Exchange,
		"borrowed", borrowRaw.Dec(),
		"collateral_bought", bought.Dec())
	return nil
}

// Delever withdraws collateral, sells it for the borrow asset and repays. Any
// proceeds above the outstanding debt stay with the position.
func (m *Module) Delever(ctx context.Context, p service.DeleverParams) error {
	sellRaw, err := m.toRaw(p.CollateralUnits, p.TotalSupply, m.strategy.CollateralDecimals)
	if err != nil {
		return fmt.Errorf("collateral amount: %w", err)
	}
	minRepay, err := m.toRaw(p.MinRepayUnits, p.TotalSupply, m.strategy.BorrowDecimals)
	if err != nil {
		return fmt.Errorf("min repay amount: %w", err)
	}

	if err := m.lending.Withdraw(ctx, sellRaw); err != nil {
		return fmt.Errorf("withdraw: %w", err)
	}
	received, err := m.trader.Trade(ctx, model.TradeRequest{
		Exchange:     p.Exchange,
		SellAsset:    m.strategy.CollateralAsset,
		BuyAsset:     m.strategy.BorrowAsset,
		SellAmount:   sellRaw,
		MinBuyAmount: minRepay,
		Data:         p.Data,
	})
	if err != nil {
		return m.unwind(ctx, fmt.Errorf("trade on %s: %w", p.Exchange, err), "resupply collateral", m.lending.Supply, sellRaw)
	}

	debt, err := m.lending.BorrowBalance(ctx)
	if err != nil {
		return fmt.Errorf("borrow balance: %w", err)
	}
	repay := received
	if repay.Gt(debt) {
		repay = debt
	}
	if err := m.lending.Repay(ctx, repay); err != nil {
		return fmt.Errorf("repay: %w", err)
	}

	m.log.Info("delevered",
		"exchange", p.Exchange,
		"collateral_sold", sellRaw.Dec(),
		"repaid", repay.Dec())
	return nil
}

// DeleverToZeroBorrowBalance redeems up to maxCollateralUnits and requires the
// trade to cover the whole debt, which is then repaid in full.
func (m *Module) DeleverToZeroBorrowBalance(ctx context.Context, exchange string, maxCollateralUnits, totalSupply decimal.Decimal, data []byte) error {
	sellRaw, err := m.toRaw(maxCollateralUnits, totalSupply, m.strategy.CollateralDecimals)
	if err != nil {
		return fmt.Errorf("collateral amount: %w", err)
	}
	debt, err := m.lending.BorrowBalance(ctx)
	if err != nil {
		return fmt.Errorf("borrow balance: %w", err)
	}

	if err := m.lending.Withdraw(ctx, sellRaw); err != nil {
		return fmt.Errorf("withdraw: %w", err)
	}
	if _, err := m.trader.Trade(ctx, model.TradeRequest{
		Exchange:     exchange,
		SellAsset:    m.strategy.CollateralAsset,
		BuyAsset:     m.strategy.BorrowAsset,
		SellAmount:   sellRaw,
		MinBuyAmount: debt,
		Data:         data,
	}); err != nil {
		return m.unwind(ctx, fmt.Errorf("trade on %s: %w", exchange, err), "resupply collateral", m.lending.Supply, sellRaw)
	}
	if err := m.lending.Repay(ctx, debt); err != nil {
		return fmt.Errorf("repay: %w", err)
	}

	m.log.Info("debt closed",
		"exchange", exchange,
		"collateral_sold", sellRaw.Dec(),
		"repaid", debt.Dec())
	return nil
}

// unwind reverses the lending step that preceded a failed trade so the position
// is left as it was found. If the reversal fails as well both errors are returned.
func (m *Module) unwind(ctx context.Context, cause error, step string, undo func(context.Context, *uint256.Int) error, amount *uint256.Int) error {
	// the undo must run even when the caller's context is already done
	if err := undo(context.WithoutCancel(ctx), amount); err != nil {
		m.log.Error("unwind failed", "step", step, "amount", amount.Dec(), "error", err)
		return errors.Join(cause, fmt.Errorf("%s: %w", step, err))
	}
	m.log.Warn("unwound after failed trade", "step", step, "amount", amount.Dec(), "error", cause)
	return cause
}

func (m *Module) toRaw(units, totalSupply decimal.Decimal, decimals uint8) (*uint256.Int, error) {
	return leverage.ToRaw(leverage.MulDown(units, totalSupply), decimals)
}
