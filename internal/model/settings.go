package model

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/shopspring/decimal"
)

// StrategySettings identifies the managed position. Immutable after construction.
type StrategySettings struct {
	CollateralAsset    common.Address `json:"collateral_asset"`
	BorrowAsset        common.Address `json:"borrow_asset"`
	CollateralFeed     string         `json:"collateral_feed"` // oracle handle
	BorrowFeed         string         `json:"borrow_feed"`
	CollateralMarket   common.Address `json:"collateral_market"` // lending handle (cToken-like)
	BorrowMarket       common.Address `json:"borrow_market"`
	CollateralDecimals uint8          `json:"collateral_decimals"`
	BorrowDecimals     uint8          `json:"borrow_decimals"`
}

// MethodologySettings 定义杠杆区间与再平衡节奏
type MethodologySettings struct {
	TargetLeverageRatio decimal.Decimal `json:"target_leverage_ratio"`
	MinLeverageRatio    decimal.Decimal `json:"min_leverage_ratio"`
	MaxLeverageRatio    decimal.Decimal `json:"max_leverage_ratio"`
	RecenteringSpeed    decimal.Decimal `json:"recentering_speed"`
	RebalanceInterval   Duration        `json:"rebalance_interval"`
}

type ExecutionSettings struct {
	UnutilizedLeveragePercentage decimal.Decimal `json:"unutilized_leverage_percentage"`
	SlippageTolerance            decimal.Decimal `json:"slippage_tolerance"`
	TwapCooldownPeriod           Duration        `json:"twap_cooldown_period"`
}

type IncentiveSettings struct {
	IncentivizedTwapCooldownPeriod Duration        `json:"incentivized_twap_cooldown_period"`
	IncentivizedSlippageTolerance  decimal.Decimal `json:"incentivized_slippage_tolerance"`
	EtherReward                    decimal.Decimal `json:"ether_reward"`
	IncentivizedLeverageRatio      decimal.Decimal `json:"incentivized_leverage_ratio"`
}

// ExchangeSettings is the per-venue configuration. A venue with a zero
// TwapMaxTradeSize is treated as not enabled.
type ExchangeSettings struct {
	TwapMaxTradeSize             decimal.Decimal `json:"twap_max_trade_size"`
	IncentivizedTwapMaxTradeSize decimal.Decimal `json:"incentivized_twap_max_trade_size"`
	ExchangeLastTradeTimestamp   time.Time       `json:"exchange_last_trade_timestamp"`
	LeverExchangeData            hexutil.Bytes   `json:"lever_exchange_data,omitempty"`
	DeleverExchangeData          hexutil.Bytes   `json:"delever_exchange_data,omitempty"`
}

// Settings bundles the mutable rule set that is validated as a whole.
type Settings struct {
	Methodology MethodologySettings `json:"methodology"`
	Execution   ExecutionSettings   `json:"execution"`
	Incentive   IncentiveSettings   `json:"incentive"`
}
