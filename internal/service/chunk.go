package service

import (
	"context"

	"github.com/GoPolymarket/levergate/internal/leverage"
	"github.com/GoPolymarket/levergate/internal/model"
	"github.com/GoPolymarket/levergate/internal/pkg/apperrors"
	"github.com/shopspring/decimal"
)

// ChunkRebalanceNotional sizes the next trade toward newRatio:
// chunk = min(total, max borrow in the trade direction, venue max). Both values
// are absolute collateral amounts.
func ChunkRebalanceNotional(info model.LeverageInfo, newRatio decimal.Decimal, isLever bool, unutilized decimal.Decimal) (chunk, total decimal.Decimal, err error) {
	a := info.Action
	total, err = leverage.TotalRebalanceNotional(info.CurrentLeverageRatio, newRatio, a.CollateralBalance)
	if err != nil {
		return decimal.Zero, decimal.Zero, arithmetic("total rebalance notional", err)
	}

	var maxBorrow decimal.Decimal
	if isLever {
		maxBorrow, err = leverage.MaxBorrowForLever(a.CollateralBalance, a.CollateralFactor, unutilized, a.CollateralPrice, a.BorrowPrice, a.BorrowBalance)
		if err != nil {
			return decimal.Zero, decimal.Zero, arithmetic("max borrow", err)
		}
	} else {
		maxBorrow = leverage.MaxBorrowForDelever(a.CollateralBalance, a.CollateralFactor, unutilized, a.CollateralPrice, a.BorrowPrice, a.BorrowBalance)
	}

	chunk = leverage.MinDecimal(total, maxBorrow, info.MaxTradeSize)
	return chunk, total, nil
}

// GetChunkRebalanceNotional projects the next chunk per venue without touching
// state. Sizes are in units of the asset that would be sold.
func (e *Engine) GetChunkRebalanceNotional(ctx context.Context, exchanges []string) (*model.ChunkNotionalResponse, error) {
	e.mu.Lock()
	state := e.state.Clone()
	e.mu.Unlock()

	info, err := e.reader.Read(ctx)
	if err != nil {
		return nil, err
	}
	current, err := LeverageRatio(info)
	if err != nil {
		return nil, err
	}

	s := state.Settings
	isRipcord, reached := false, false
	var newRatio decimal.Decimal
	switch {
	case current.GreaterThanOrEqual(s.Incentive.IncentivizedLeverageRatio):
		newRatio = s.Methodology.MaxLeverageRatio
		isRipcord = true
	case state.InTwap():
		newRatio = state.TwapLeverageRatio
		reached = twapTargetReached(current, newRatio, s.Methodology.TargetLeverageRatio)
	default:
		newRatio = e.newLeverageRatio(s, current)
	}
	isLever := newRatio.GreaterThan(current)
	if reached {
		// iterate would skip the trade; keep the TWAP's direction and quote nothing
		isLever = newRatio.LessThan(s.Methodology.TargetLeverageRatio)
	}

	resp := &model.ChunkNotionalResponse{
		Exchanges: exchanges,
		Sizes:     make([]decimal.Decimal, len(exchanges)),
	}
	for i, name := range exchanges {
		ex, ok := state.Exchange(name)
		if !ok {
			return nil, apperrors.Precondition("must be valid exchange").WithDetail("exchange", name)
		}
		if reached {
			resp.Sizes[i] = decimal.Zero
			continue
		}
		levInfo := model.LeverageInfo{
			Action:               info,
			CurrentLeverageRatio: current,
			SlippageTolerance:    s.Execution.SlippageTolerance,
			MaxTradeSize:         ex.TwapMaxTradeSize,
			ExchangeName:         name,
		}
		if isRipcord {
			levInfo.SlippageTolerance = s.Incentive.IncentivizedSlippageTolerance
			levInfo.MaxTradeSize = ex.IncentivizedTwapMaxTradeSize
		}
		chunk, _, err := ChunkRebalanceNotional(levInfo, newRatio, isLever, s.Execution.UnutilizedLeveragePercentage)
		if err != nil {
			return nil, err
		}
		if isLever {
			chunk, err = leverage.BorrowUnits(chunk, info.CollateralPrice, info.BorrowPrice)
			if err != nil {
				return nil, arithmetic("borrow units", err)
			}
		}
		resp.Sizes[i] = chunk
	}

	if isLever {
		resp.SellAsset, resp.BuyAsset = e.strategy.BorrowAsset, e.strategy.CollateralAsset
	} else {
		resp.SellAsset, resp.BuyAsset = e.strategy.CollateralAsset, e.strategy.BorrowAsset
	}
	return resp, nil
}

func arithmetic(what string, err error) *apperrors.AppError {
	return apperrors.New(apperrors.ErrArithmetic, what+" undefined", err)
}
