package service

import (
	"time"

	"github.com/GoPolymarket/levergate/internal/model"
	"github.com/shopspring/decimal"
)

// ClassifyInput is everything the decision function looks at for one venue.
type ClassifyInput struct {
	CurrentLeverageRatio decimal.Decimal
	MinLeverageRatio     decimal.Decimal
	MaxLeverageRatio     decimal.Decimal
	Settings             model.Settings
	InTwap               bool
	Now                  time.Time
	// GlobalLastTrade gates every non-emergency action across venues.
	GlobalLastTrade time.Time
	// ExchangeLastTrade gates ripcord on this venue.
	ExchangeLastTrade time.Time
}

// Classify decides which entry point, if any, is currently callable:
//
//   - L >= incentivized ratio: RIPCORD once the venue's incentivized cooldown elapsed, else NONE
//   - mid-TWAP: ITERATE once the TWAP cooldown elapsed since the last trade on any venue
//   - otherwise: REBALANCE once the TWAP cooldown elapsed and either L is outside
//     [min, max] or the rebalance interval elapsed
func Classify(in ClassifyInput) model.Action {
	s := in.Settings
	if in.CurrentLeverageRatio.GreaterThanOrEqual(s.Incentive.IncentivizedLeverageRatio) {
		if elapsed(in.Now, in.ExchangeLastTrade, s.Incentive.IncentivizedTwapCooldownPeriod.Std()) {
			return model.ActionRipcord
		}
		return model.ActionNone
	}

	if !elapsed(in.Now, in.GlobalLastTrade, s.Execution.TwapCooldownPeriod.Std()) {
		return model.ActionNone
	}

	if in.InTwap {
		return model.ActionIterate
	}

	if outOfBounds(in.CurrentLeverageRatio, in.MinLeverageRatio, in.MaxLeverageRatio) ||
		elapsed(in.Now, in.GlobalLastTrade, s.Methodology.RebalanceInterval.Std()) {
		return model.ActionRebalance
	}
	return model.ActionNone
}

// PositionStateOf derives the lifecycle state from the debt balance and TWAP flag.
func PositionStateOf(state *model.EngineState, borrowBalance decimal.Decimal) model.PositionState {
	switch {
	case state.InTwap():
		return model.StateInTwap
	case borrowBalance.IsZero():
		return model.StateUnengaged
	default:
		return model.StateSteady
	}
}

func elapsed(now, last time.Time, period time.Duration) bool {
	if last.IsZero() {
		return true
	}
	return now.Sub(last) > period
}

func nextEligible(last time.Time, period time.Duration) time.Time {
	return last.Add(period).Add(time.Second)
}

func outOfBounds(ratio, min, max decimal.Decimal) bool {
	return ratio.LessThan(min) || ratio.GreaterThan(max)
}

// twapTargetReached reports whether price movement alone has carried leverage
// to (or past) the TWAP goal, in which case the TWAP is complete.
func twapTargetReached(current, twap, target decimal.Decimal) bool {
	switch {
	case current.Equal(twap):
		return true
	case twap.LessThan(target):
		return current.GreaterThanOrEqual(twap)
	case twap.GreaterThan(target):
		return current.LessThanOrEqual(twap)
	default:
		return false
	}
}
