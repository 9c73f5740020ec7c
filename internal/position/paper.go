package position

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/GoPolymarket/levergate/internal/leverage"
	"github.com/GoPolymarket/levergate/internal/model"
	"github.com/GoPolymarket/levergate/internal/service"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

var (
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInsufficientLiquidity = errors.New("insufficient liquidity")
	ErrSlippage              = errors.New("received less than minimum")
)

// PaperWallet holds the idle token balances of a paper position.
type PaperWallet struct {
	mu       sync.Mutex
	balances map[common.Address]*uint256.Int
}

func NewPaperWallet() *PaperWallet {
	return &PaperWallet{balances: make(map[common.Address]*uint256.Int)}
}

func (w *PaperWallet) Balance(asset common.Address) *uint256.Int {
	w.mu.Lock()
	defer w.mu.Unlock()
	if b, ok := w.balances[asset]; ok {
		return new(uint256.Int).Set(b)
	}
	return new(uint256.Int)
}

func (w *PaperWallet) Credit(asset common.Address, amount *uint256.Int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	b, ok := w.balances[asset]
	if !ok {
		b = new(uint256.Int)
		w.balances[asset] = b
	}
	b.Add(b, amount)
}

func (w *PaperWallet) Debit(asset common.Address, amount *uint256.Int) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	b, ok := w.balances[asset]
	if !ok || b.Lt(amount) {
		return fmt.Errorf("%w: %s", ErrInsufficientBalance, asset.Hex())
	}
	b.Sub(b, amount)
	return nil
}

// PaperLending is a single-account lending market. Borrow and withdraw are
// refused when the debt value would exceed collateral value times the
// collateral factor. No interest accrues.
type PaperLending struct {
	mu         sync.Mutex
	strategy   model.StrategySettings
	oracle     service.PriceOracle
	wallet     *PaperWallet
	collateral *uint256.Int
	debt       *uint256.Int
	factor     decimal.Decimal
}

func NewPaperLending(strategy model.StrategySettings, oracle service.PriceOracle, wallet *PaperWallet, factor decimal.Decimal) *PaperLending {
	return &PaperLending{
		strategy:   strategy,
		oracle:     oracle,
		wallet:     wallet,
		collateral: new(uint256.Int),
		debt:       new(uint256.Int),
		factor:     factor,
	}
}

// Seed sets the supplied collateral and outstanding debt, in token units.
func (l *PaperLending) Seed(collateral, debt decimal.Decimal) error {
	c, err := leverage.ToRaw(collateral, l.strategy.CollateralDecimals)
	if err != nil {
		return fmt.Errorf("seed collateral: %w", err)
	}
	d, err := leverage.ToRaw(debt, l.strategy.BorrowDecimals)
	if err != nil {
		return fmt.Errorf("seed debt: %w", err)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.collateral, l.debt = c, d
	return nil
}

func (l *PaperLending) CollateralBalance(ctx context.Context) (*uint256.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return new(uint256.Int).Set(l.collateral), nil
}

func (l *PaperLending) BorrowBalance(ctx context.Context) (*uint256.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return new(uint256.Int).Set(l.debt), nil
}

func (l *PaperLending) CollateralFactor(ctx context.Context, market common.Address) (decimal.Decimal, error) {
	return l.factor, nil
}

func (l *PaperLending) Supply(ctx context.Context, amount *uint256.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.wallet.Debit(l.strategy.CollateralAsset, amount); err != nil {
		return err
	}
	l.collateral = new(uint256.Int).Add(l.collateral, amount)
	return nil
}

func (l *PaperLending) Withdraw(ctx context.Context, amount *uint256.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.collateral.Lt(amount) {
		return fmt.Errorf("%w: withdraw %s of %s supplied", ErrInsufficientBalance, amount.Dec(), l.collateral.Dec())
	}
	next := new(uint256.Int).Sub(l.collateral, amount)
	if err := l.checkHealth(ctx, next, l.debt); err != nil {
		return err
	}
	l.collateral = next
	l.wallet.Credit(l.strategy.CollateralAsset, amount)
	return nil
}

func (l *PaperLending) Borrow(ctx context.Context, amount *uint256.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	next := new(uint256.Int).Add(l.debt, amount)
	if err := l.checkHealth(ctx, l.collateral, next); err != nil {
		return err
	}
	l.debt = next
	l.wallet.Credit(l.strategy.BorrowAsset, amount)
	return nil
}

func (l *PaperLending) Repay(ctx context.Context, amount *uint256.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if amount.Gt(l.debt) {
		return fmt.Errorf("repay %s exceeds debt %s", amount.Dec(), l.debt.Dec())
	}
	if err := l.wallet.Debit(l.strategy.BorrowAsset, amount); err != nil {
		return err
	}
	l.debt = new(uint256.Int).Sub(l.debt, amount)
	return nil
}

func (l *PaperLending) checkHealth(ctx context.Context, collateral, debt *uint256.Int) error {
	if debt.IsZero() {
		return nil
	}
	cp, err := l.oracle.Price(ctx, l.strategy.CollateralFeed)
	if err != nil {
		return err
	}
	bp, err := l.oracle.Price(ctx, l.strategy.BorrowFeed)
	if err != nil {
		return err
	}
	limit := leverage.MulDown(leverage.MulDown(cp, leverage.FromRaw(collateral, l.strategy.CollateralDecimals)), l.factor)
	debtValue := leverage.MulDown(bp, leverage.FromRaw(debt, l.strategy.BorrowDecimals))
	if debtValue.GreaterThan(limit) {
		return fmt.Errorf("%w: debt value %s above limit %s", ErrInsufficientLiquidity, debtValue, limit)
	}
	return nil
}

type paperAsset struct {
	feed     string
	decimals uint8
}

// PaperExchange fills every trade at the oracle price less a flat fee. Every
// venue name routes to the same book.
type PaperExchange struct {
	oracle service.PriceOracle
	wallet *PaperWallet
	assets map[common.Address]paperAsset
	fee    decimal.Decimal
}

func NewPaperExchange(strategy model.StrategySettings, oracle service.PriceOracle, wallet *PaperWallet, fee decimal.Decimal) *PaperExchange {
	return &PaperExchange{
		oracle: oracle,
		wallet: wallet,
		assets: map[common.Address]paperAsset{
			strategy.CollateralAsset: {feed: strategy.CollateralFeed, decimals: strategy.CollateralDecimals},
			strategy.BorrowAsset:     {feed: strategy.BorrowFeed, decimals: strategy.BorrowDecimals},
		},
		fee: fee,
	}
}

func (x *PaperExchange) Trade(ctx context.Context, req model.TradeRequest) (*uint256.Int, error) {
	sell, ok := x.assets[req.SellAsset]
	if !ok {
		return nil, fmt.Errorf("unknown sell asset %s", req.SellAsset.Hex())
	}
	buy, ok := x.assets[req.BuyAsset]
	if !ok {
		return nil, fmt.Errorf("unknown buy asset %s", req.BuyAsset.Hex())
	}
	if req.SellAmount == nil || req.SellAmount.IsZero() {
		return nil, errors.New("sell amount must be > 0")
	}

	sellPrice, err := x.oracle.Price(ctx, sell.feed)
	if err != nil {
		return nil, err
	}
	buyPrice, err := x.oracle.Price(ctx, buy.feed)
	if err != nil {
		return nil, err
	}
	if !buyPrice.IsPositive() {
		return nil, leverage.ErrZeroPrice
	}

	value := leverage.MulDown(leverage.FromRaw(req.SellAmount, sell.decimals), sellPrice)
	value = leverage.MulDown(value, leverage.One.Sub(x.fee))
	out, err := leverage.ToRaw(leverage.DivDown(value, buyPrice), buy.decimals)
	if err != nil {
		return nil, err
	}
	if req.MinBuyAmount != nil && out.Lt(req.MinBuyAmount) {
		return nil, fmt.Errorf("%w: got %s, want %s", ErrSlippage, out.Dec(), req.MinBuyAmount.Dec())
	}

	if err := x.wallet.Debit(req.SellAsset, req.SellAmount); err != nil {
		return nil, err
	}
	x.wallet.Credit(req.BuyAsset, out)
	return out, nil
}

// PaperToken is a fixed share supply.
type PaperToken struct {
	mu     sync.RWMutex
	supply decimal.Decimal
}

func NewPaperToken(supply decimal.Decimal) *PaperToken {
	return &PaperToken{supply: supply}
}

func (t *PaperToken) TotalSupply(ctx context.Context) (decimal.Decimal, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.supply, nil
}

func (t *PaperToken) SetSupply(supply decimal.Decimal) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.supply = supply
}
