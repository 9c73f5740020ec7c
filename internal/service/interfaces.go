package service

import (
	"context"

	"github.com/GoPolymarket/levergate/internal/model"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

// PriceOracle returns the current price of the asset behind a feed handle, in the
// common value unit. Assumed synchronous and always available.
type PriceOracle interface {
	Price(ctx context.Context, feed string) (decimal.Decimal, error)
}

// LendingIntegration moves the position's collateral and debt. Amounts are raw
// base units of the respective asset.
type LendingIntegration interface {
	CollateralBalance(ctx context.Context) (*uint256.Int, error)
	BorrowBalance(ctx context.Context) (*uint256.Int, error)
	Supply(ctx context.Context, amount *uint256.Int) error
	Withdraw(ctx context.Context, amount *uint256.Int) error
	Borrow(ctx context.Context, amount *uint256.Int) error
	Repay(ctx context.Context, amount *uint256.Int) error
	CollateralFactor(ctx context.Context, market common.Address) (decimal.Decimal, error)
}

// TradeExecutor swaps on a named venue and returns the amount actually bought.
type TradeExecutor interface {
	Trade(ctx context.Context, req model.TradeRequest) (*uint256.Int, error)
}

// PositionToken reports the share supply the position is split across.
type PositionToken interface {
	TotalSupply(ctx context.Context) (decimal.Decimal, error)
}

// LeverParams describe one lever chunk in per-share units.
type LeverParams struct {
	Exchange           string
	BorrowUnits        decimal.Decimal
	MinCollateralUnits decimal.Decimal
	TotalSupply        decimal.Decimal
	Data               []byte
}

// DeleverParams describe one delever chunk in per-share units.
type DeleverParams struct {
	Exchange        string
	CollateralUnits decimal.Decimal
	MinRepayUnits   decimal.Decimal
	TotalSupply     decimal.Decimal
	Data            []byte
}

// CollateralMover is the external collateral-move collaborator: it performs the
// borrow/trade/supply (or withdraw/trade/repay) sequence for one chunk.
type CollateralMover interface {
	Lever(ctx context.Context, p LeverParams) error
	Delever(ctx context.Context, p DeleverParams) error
	// DeleverToZeroBorrowBalance redeems up to MaxCollateralUnits and repays the
	// whole outstanding debt.
	DeleverToZeroBorrowBalance(ctx context.Context, exchange string, maxCollateralUnits, totalSupply decimal.Decimal, data []byte) error
}

// Authorizer answers role questions about a caller.
type Authorizer interface {
	IsOperator(caller common.Address) bool
	IsAllowedTrader(caller common.Address) bool
}

// CallerGuard reports whether an address is a contract rather than an
// externally owned account.
type CallerGuard interface {
	IsContract(ctx context.Context, addr common.Address) (bool, error)
}

// BountyVault holds the ether paid to ripcord callers.
type BountyVault interface {
	Balance(ctx context.Context) (decimal.Decimal, error)
	Deposit(ctx context.Context, amount decimal.Decimal) error
	Pay(ctx context.Context, to common.Address, amount decimal.Decimal) error
}

// BalanceRestorer is implemented by vaults that keep their balance in process,
// so a restart can put back the balance saved with the engine state.
type BalanceRestorer interface {
	RestoreBalance(balance decimal.Decimal)
}

// StateStore persists the engine's mutable context. Load returns (nil, nil)
// when nothing has been stored yet.
type StateStore interface {
	Load(ctx context.Context) (*model.EngineState, error)
	Save(ctx context.Context, state *model.EngineState) error
}

type EventSink interface {
	Emit(event *model.Event)
}

// AccessControl is the Authorizer plus the operator-managed allow list.
type AccessControl interface {
	Authorizer
	UpdateCallerStatus(callers []common.Address, statuses []bool) error
	SetAnyoneCallable(status bool)
	AnyoneCallable() bool
}
