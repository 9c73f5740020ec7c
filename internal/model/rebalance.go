package model

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

// ActionInfo is a fresh snapshot of prices and balances, normalized to token units.
type ActionInfo struct {
	CollateralPrice   decimal.Decimal `json:"collateral_price"`
	BorrowPrice       decimal.Decimal `json:"borrow_price"`
	CollateralBalance decimal.Decimal `json:"collateral_balance"`
	BorrowBalance     decimal.Decimal `json:"borrow_balance"`
	CollateralValue   decimal.Decimal `json:"collateral_value"`
	BorrowValue       decimal.Decimal `json:"borrow_value"`
	CollateralFactor  decimal.Decimal `json:"collateral_factor"`
	TotalSupply       decimal.Decimal `json:"total_supply"`
}

// LeverageInfo is ActionInfo plus everything needed to size one chunk on a venue.
type LeverageInfo struct {
	Action               ActionInfo
	CurrentLeverageRatio decimal.Decimal
	SlippageTolerance    decimal.Decimal
	MaxTradeSize         decimal.Decimal
	ExchangeName         string
}

// TradeRequest is handed to a venue's trade executor.
type TradeRequest struct {
	Exchange     string
	SellAsset    common.Address
	BuyAsset     common.Address
	SellAmount   *uint256.Int
	MinBuyAmount *uint256.Int
	Data         []byte
}

// RebalanceResult describes one completed entry-point call.
type RebalanceResult struct {
	Action             string          `json:"action"`
	Exchange           string          `json:"exchange"`
	Caller             common.Address  `json:"caller"`
	CurrentLeverage    decimal.Decimal `json:"current_leverage_ratio"`
	NewLeverage        decimal.Decimal `json:"new_leverage_ratio"`
	ChunkNotional      decimal.Decimal `json:"chunk_rebalance_notional"`
	TotalNotional      decimal.Decimal `json:"total_rebalance_notional"`
	CollateralUnits    decimal.Decimal `json:"collateral_units"`
	TwapLeverageRatio  decimal.Decimal `json:"twap_leverage_ratio"`
	BountyPaid         decimal.Decimal `json:"bounty_paid"`
	TradeSkipped       bool            `json:"trade_skipped,omitempty"`
	ClosedDebtPosition bool            `json:"closed_debt_position,omitempty"`
	Timestamp          time.Time       `json:"timestamp"`
}

// ShouldRebalanceResponse lists every enabled venue with its recommended action.
type ShouldRebalanceResponse struct {
	CurrentLeverageRatio decimal.Decimal `json:"current_leverage_ratio"`
	Exchanges            []string        `json:"exchanges"`
	Actions              []Action        `json:"actions"`
}

// ChunkNotionalResponse is a read-only projection of the next chunk per venue.
type ChunkNotionalResponse struct {
	Exchanges []string          `json:"exchanges"`
	Sizes     []decimal.Decimal `json:"sizes"`
	SellAsset common.Address    `json:"sell_asset"`
	BuyAsset  common.Address    `json:"buy_asset"`
}

// StrategyView is the full read model served to operators.
type StrategyView struct {
	Strategy             StrategySettings `json:"strategy"`
	State                *EngineState     `json:"state"`
	PositionState        PositionState    `json:"position_state"`
	CurrentLeverageRatio *decimal.Decimal `json:"current_leverage_ratio,omitempty"`
	Position             *ActionInfo      `json:"position,omitempty"`
	BountyBalance        decimal.Decimal  `json:"bounty_balance"`
}
