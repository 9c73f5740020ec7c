package service

import (
	"context"
	"errors"

	"github.com/GoPolymarket/levergate/internal/leverage"
	"github.com/GoPolymarket/levergate/internal/model"
	"github.com/GoPolymarket/levergate/internal/pkg/apperrors"
	"github.com/GoPolymarket/levergate/internal/pkg/metrics"
	"github.com/shopspring/decimal"
)

// PositionReader builds fresh ActionInfo snapshots. Nothing is cached: balances
// can move between chunks through interest accrual.
type PositionReader struct {
	strategy model.StrategySettings
	oracle   PriceOracle
	lending  LendingIntegration
	token    PositionToken
}

func NewPositionReader(strategy model.StrategySettings, oracle PriceOracle, lending LendingIntegration, token PositionToken) *PositionReader {
	return &PositionReader{
		strategy: strategy,
		oracle:   oracle,
		lending:  lending,
		token:    token,
	}
}

func (r *PositionReader) Read(ctx context.Context) (model.ActionInfo, error) {
	var info model.ActionInfo

	collateralPrice, err := r.oracle.Price(ctx, r.strategy.CollateralFeed)
	if err != nil {
		return info, apperrors.Upstream("collateral price unavailable", err)
	}
	borrowPrice, err := r.oracle.Price(ctx, r.strategy.BorrowFeed)
	if err != nil {
		return info, apperrors.Upstream("borrow price unavailable", err)
	}
	if !collateralPrice.IsPositive() || !borrowPrice.IsPositive() {
		return info, apperrors.New(apperrors.ErrArithmetic, "oracle returned a non-positive price", nil).
			WithDetail("collateral_price", collateralPrice.String()).
			WithDetail("borrow_price", borrowPrice.String())
	}

	rawCollateral, err := r.lending.CollateralBalance(ctx)
	if err != nil {
		return info, apperrors.Upstream("collateral balance unavailable", err)
	}
	rawBorrow, err := r.lending.BorrowBalance(ctx)
	if err != nil {
		return info, apperrors.Upstream("borrow balance unavailable", err)
	}
	factor, err := r.lending.CollateralFactor(ctx, r.strategy.CollateralMarket)
	if err != nil {
		return info, apperrors.Upstream("collateral factor unavailable", err)
	}
	supply, err := r.token.TotalSupply(ctx)
	if err != nil {
		return info, apperrors.Upstream("total supply unavailable", err)
	}

	info.CollateralPrice = collateralPrice
	info.BorrowPrice = borrowPrice
	info.CollateralBalance = leverage.FromRaw(rawCollateral, r.strategy.CollateralDecimals)
	info.BorrowBalance = leverage.FromRaw(rawBorrow, r.strategy.BorrowDecimals)
	info.CollateralValue = leverage.MulDown(collateralPrice, info.CollateralBalance)
	info.BorrowValue = leverage.MulDown(borrowPrice, info.BorrowBalance)
	info.CollateralFactor = factor
	info.TotalSupply = supply
	return info, nil
}

// LeverageRatio returns the leverage implied by info. An unlevered position is 1x.
func LeverageRatio(info model.ActionInfo) (decimal.Decimal, error) {
	if info.BorrowBalance.IsZero() {
		return leverage.OneX, nil
	}
	ratio, err := leverage.CurrentLeverageRatio(info.CollateralValue, info.BorrowValue)
	if err != nil {
		if errors.Is(err, leverage.ErrUndefinedLeverage) {
			return decimal.Zero, apperrors.New(apperrors.ErrArithmetic, "leverage ratio undefined", err).
				WithDetail("collateral_value", info.CollateralValue.String()).
				WithDetail("borrow_value", info.BorrowValue.String())
		}
		return decimal.Zero, err
	}
	metrics.LeverageRatio.Set(ratio.InexactFloat64())
	return ratio, nil
}

// CurrentLeverageRatio reads the position and returns its leverage ratio.
func (r *PositionReader) CurrentLeverageRatio(ctx context.Context) (decimal.Decimal, error) {
	info, err := r.Read(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	return LeverageRatio(info)
}
