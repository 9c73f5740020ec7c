package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/GoPolymarket/levergate/internal/config"
	"github.com/GoPolymarket/levergate/internal/leverage"
	"github.com/GoPolymarket/levergate/internal/model"
	"github.com/GoPolymarket/levergate/internal/pkg/apperrors"
	"github.com/GoPolymarket/levergate/internal/pkg/logger"
	"github.com/GoPolymarket/levergate/internal/pkg/metrics"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// EngineDeps are the collaborators the engine drives. Guard, Events and Clock
// are optional.
type EngineDeps struct {
	Reader *PositionReader
	Mover  CollateralMover
	Access AccessControl
	Guard  CallerGuard
	Vault  BountyVault
	Store  StateStore
	Events EventSink
	Clock  func() time.Time
}

// Engine is the execution orchestrator for one leveraged position. Entry points
// are serialized; each one either commits its state change after the collateral
// move succeeded or leaves state untouched.
type Engine struct {
	mu       sync.Mutex
	strategy model.StrategySettings
	state    *model.EngineState

	reader *PositionReader
	mover  CollateralMover
	access AccessControl
	guard  CallerGuard
	vault  BountyVault
	store  StateStore
	events EventSink
	now    func() time.Time
	log    *slog.Logger
}

// NewEngine restores state from the store, or validates and stores the initial
// settings when the store is empty.
func NewEngine(ctx context.Context, strategy model.StrategySettings, settings model.Settings, exchanges []config.NamedExchange, deps EngineDeps) (*Engine, error) {
	if err := ValidateStrategy(strategy); err != nil {
		return nil, err
	}
	if deps.Reader == nil || deps.Mover == nil || deps.Access == nil || deps.Vault == nil || deps.Store == nil {
		return nil, apperrors.New(apperrors.ErrInternal, "engine collaborators missing", nil)
	}

	e := &Engine{
		strategy: strategy,
		reader:   deps.Reader,
		mover:    deps.Mover,
		access:   deps.Access,
		guard:    deps.Guard,
		vault:    deps.Vault,
		store:    deps.Store,
		events:   deps.Events,
		now:      deps.Clock,
		log:      logger.Component("engine"),
	}
	if e.now == nil {
		e.now = time.Now
	}

	stored, err := deps.Store.Load(ctx)
	if err != nil {
		return nil, apperrors.Upstream("load engine state", err)
	}
	if stored != nil {
		if err := ValidateSettings(stored.Settings); err != nil {
			return nil, err
		}
		e.state = stored
		if err := e.restoreOverrides(stored); err != nil {
			return nil, err
		}
		e.log.Info("engine state restored",
			"version", stored.Version,
			"exchanges", stored.EnabledExchanges,
			"twap_leverage_ratio", stored.TwapLeverageRatio.String())
		metrics.TwapActive.Set(boolGauge(stored.InTwap()))
		return e, nil
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, err
	}
	state := model.NewEngineState(settings)
	for _, ex := range exchanges {
		if _, dup := state.Exchanges[ex.Name]; dup {
			return nil, apperrors.Precondition("exchange already enabled").WithDetail("exchange", ex.Name)
		}
		if err := ValidateExchange(ex.Name, ex.Settings); err != nil {
			return nil, err
		}
		s := ex.Settings
		state.Exchanges[ex.Name] = &s
		state.EnabledExchanges = append(state.EnabledExchanges, ex.Name)
	}
	// empty until the first save; persist stamps version 1
	e.state = &model.EngineState{}
	if err := e.persist(ctx, state); err != nil {
		return nil, err
	}
	return e, nil
}

// Engage opens the levered position from an unlevered one, targeting the
// methodology target ratio.
func (e *Engine) Engage(ctx context.Context, caller common.Address, exchange string) (res *model.RebalanceResult, err error) {
	defer e.observe("engage", exchange, &err)
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireEOA(ctx, caller); err != nil {
		return nil, err
	}
	if !e.access.IsOperator(caller) {
		return nil, apperrors.Unauthorized("caller must be operator").WithDetail("caller", caller.Hex())
	}
	ex, err := e.exchange(exchange)
	if err != nil {
		return nil, err
	}
	info, err := e.reader.Read(ctx)
	if err != nil {
		return nil, err
	}
	if err := requireBalances(info, false); err != nil {
		return nil, err
	}

	s := e.state.Settings
	lev := model.LeverageInfo{
		Action:               info,
		CurrentLeverageRatio: leverage.OneX,
		SlippageTolerance:    s.Execution.SlippageTolerance,
		MaxTradeSize:         ex.TwapMaxTradeSize,
		ExchangeName:         exchange,
	}
	target := s.Methodology.TargetLeverageRatio
	chunk, total, err := ChunkRebalanceNotional(lev, target, true, s.Execution.UnutilizedLeveragePercentage)
	if err != nil {
		return nil, err
	}
	units, err := e.trade(ctx, lev, chunk, true, ex)
	if err != nil {
		return nil, err
	}

	now := e.now().UTC()
	next := e.state.Clone()
	markTrade(next, exchange, now)
	if chunk.LessThan(total) {
		next.TwapLeverageRatio = target
	}
	e.commit(ctx, next)

	res = e.result(model.EventEngaged, exchange, caller, lev.CurrentLeverageRatio, target, chunk, total, units, now)
	e.emitResult(model.EventEngaged, res)
	return res, nil
}

// Rebalance moves leverage toward target by the recentering speed. Callable once
// the TWAP cooldown elapsed and either leverage left the band or the rebalance
// interval elapsed.
func (e *Engine) Rebalance(ctx context.Context, caller common.Address, exchange string) (res *model.RebalanceResult, err error) {
	defer e.observe("rebalance", exchange, &err)
	e.mu.Lock()
	defer e.mu.Unlock()

	lev, ex, err := e.prepareTraderCall(ctx, caller, exchange)
	if err != nil {
		return nil, err
	}
	s := e.state.Settings
	now := e.now().UTC()

	if e.state.InTwap() {
		return nil, apperrors.InvalidState("must call iterate").
			WithDetail("twap_leverage_ratio", e.state.TwapLeverageRatio.String())
	}
	if !elapsed(now, e.state.GlobalLastTradeTimestamp, s.Execution.TwapCooldownPeriod.Std()) {
		return nil, e.cooldownError("TWAP cooldown must have elapsed", e.state.GlobalLastTradeTimestamp, s.Execution.TwapCooldownPeriod)
	}
	if lev.CurrentLeverageRatio.GreaterThanOrEqual(s.Incentive.IncentivizedLeverageRatio) {
		return nil, apperrors.InvalidState("must call ripcord").
			WithDetail("current_leverage_ratio", lev.CurrentLeverageRatio.String()).
			WithDetail("incentivized_leverage_ratio", s.Incentive.IncentivizedLeverageRatio.String())
	}
	m := s.Methodology
	if !outOfBounds(lev.CurrentLeverageRatio, m.MinLeverageRatio, m.MaxLeverageRatio) &&
		!elapsed(now, e.state.GlobalLastTradeTimestamp, m.RebalanceInterval.Std()) {
		return nil, e.cooldownError("rebalance interval not elapsed and leverage within bounds", e.state.GlobalLastTradeTimestamp, m.RebalanceInterval).
			WithDetail("current_leverage_ratio", lev.CurrentLeverageRatio.String()).
			WithDetail("min_leverage_ratio", m.MinLeverageRatio.String()).
			WithDetail("max_leverage_ratio", m.MaxLeverageRatio.String())
	}

	newRatio := e.newLeverageRatio(s, lev.CurrentLeverageRatio)
	chunk, total, units, err := e.handleRebalance(ctx, lev, newRatio, ex)
	if err != nil {
		return nil, err
	}

	next := e.state.Clone()
	markTrade(next, exchange, now)
	if chunk.LessThan(total) {
		next.TwapLeverageRatio = newRatio
	}
	e.commit(ctx, next)

	res = e.result(model.EventRebalanced, exchange, caller, lev.CurrentLeverageRatio, newRatio, chunk, total, units, now)
	e.emitResult(model.EventRebalanced, res)
	return res, nil
}

// IterateRebalance trades the next chunk of an ongoing TWAP.
func (e *Engine) IterateRebalance(ctx context.Context, caller common.Address, exchange string) (res *model.RebalanceResult, err error) {
	defer e.observe("iterate", exchange, &err)
	e.mu.Lock()
	defer e.mu.Unlock()

	lev, ex, err := e.prepareTraderCall(ctx, caller, exchange)
	if err != nil {
		return nil, err
	}
	s := e.state.Settings
	now := e.now().UTC()

	if lev.CurrentLeverageRatio.GreaterThanOrEqual(s.Incentive.IncentivizedLeverageRatio) {
		return nil, apperrors.InvalidState("must call ripcord").
			WithDetail("current_leverage_ratio", lev.CurrentLeverageRatio.String()).
			WithDetail("incentivized_leverage_ratio", s.Incentive.IncentivizedLeverageRatio.String())
	}
	if !e.state.InTwap() {
		return nil, apperrors.InvalidState("not in TWAP state")
	}
	if !elapsed(now, e.state.GlobalLastTradeTimestamp, s.Execution.TwapCooldownPeriod.Std()) {
		return nil, e.cooldownError("TWAP cooldown must have elapsed", e.state.GlobalLastTradeTimestamp, s.Execution.TwapCooldownPeriod)
	}

	twap := e.state.TwapLeverageRatio
	next := e.state.Clone()

	if twapTargetReached(lev.CurrentLeverageRatio, twap, s.Methodology.TargetLeverageRatio) {
		// price already did the work
		next.TwapLeverageRatio = decimal.Zero
		e.commit(ctx, next)
		res = e.result(model.EventRebalanceIterated, exchange, caller, lev.CurrentLeverageRatio, twap, decimal.Zero, decimal.Zero, decimal.Zero, now)
		res.TradeSkipped = true
		e.emitResult(model.EventRebalanceIterated, res)
		return res, nil
	}

	chunk, total, units, err := e.handleRebalance(ctx, lev, twap, ex)
	if err != nil {
		return nil, err
	}
	markTrade(next, exchange, now)
	if chunk.Equal(total) {
		next.TwapLeverageRatio = decimal.Zero
	}
	e.commit(ctx, next)

	res = e.result(model.EventRebalanceIterated, exchange, caller, lev.CurrentLeverageRatio, twap, chunk, total, units, now)
	e.emitResult(model.EventRebalanceIterated, res)
	return res, nil
}

// Ripcord delevers toward the max ratio once leverage reached the incentivized
// ratio. Anyone may call it and is paid the ether reward, capped at the vault
// balance.
func (e *Engine) Ripcord(ctx context.Context, caller common.Address, exchange string) (res *model.RebalanceResult, err error) {
	defer e.observe("ripcord", exchange, &err)
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireEOA(ctx, caller); err != nil {
		return nil, err
	}
	ex, err := e.exchange(exchange)
	if err != nil {
		return nil, err
	}
	info, err := e.reader.Read(ctx)
	if err != nil {
		return nil, err
	}
	if err := requireBalances(info, true); err != nil {
		return nil, err
	}
	current, err := LeverageRatio(info)
	if err != nil {
		return nil, err
	}

	s := e.state.Settings
	now := e.now().UTC()
	if current.LessThan(s.Incentive.IncentivizedLeverageRatio) {
		return nil, apperrors.InvalidState("must be above incentivized leverage ratio").
			WithDetail("current_leverage_ratio", current.String()).
			WithDetail("incentivized_leverage_ratio", s.Incentive.IncentivizedLeverageRatio.String())
	}
	if !elapsed(now, ex.ExchangeLastTradeTimestamp, s.Incentive.IncentivizedTwapCooldownPeriod.Std()) {
		return nil, e.cooldownError("incentivized TWAP cooldown must have elapsed", ex.ExchangeLastTradeTimestamp, s.Incentive.IncentivizedTwapCooldownPeriod).
			WithDetail("exchange", exchange)
	}

	lev := model.LeverageInfo{
		Action:               info,
		CurrentLeverageRatio: current,
		SlippageTolerance:    s.Incentive.IncentivizedSlippageTolerance,
		MaxTradeSize:         ex.IncentivizedTwapMaxTradeSize,
		ExchangeName:         exchange,
	}
	target := s.Methodology.MaxLeverageRatio
	chunk, total, err := ChunkRebalanceNotional(lev, target, false, s.Execution.UnutilizedLeveragePercentage)
	if err != nil {
		return nil, err
	}
	units, err := e.trade(ctx, lev, chunk, false, ex)
	if err != nil {
		return nil, err
	}

	next := e.state.Clone()
	markTrade(next, exchange, now)
	next.TwapLeverageRatio = decimal.Zero
	e.commit(ctx, next)

	res = e.result(model.EventRipcordCalled, exchange, caller, current, target, chunk, total, units, now)
	res.BountyPaid = e.payBounty(ctx, caller, s.Incentive.EtherReward)
	e.emitResult(model.EventRipcordCalled, res)
	return res, nil
}

// Disengage unwinds toward 1x. When the remainder fits in one chunk the whole
// debt is repaid.
func (e *Engine) Disengage(ctx context.Context, caller common.Address, exchange string) (res *model.RebalanceResult, err error) {
	defer e.observe("disengage", exchange, &err)
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireEOA(ctx, caller); err != nil {
		return nil, err
	}
	if !e.access.IsOperator(caller) {
		return nil, apperrors.Unauthorized("caller must be operator").WithDetail("caller", caller.Hex())
	}
	ex, err := e.exchange(exchange)
	if err != nil {
		return nil, err
	}
	lev, err := e.leverageInfo(ctx, exchange, ex)
	if err != nil {
		return nil, err
	}

	s := e.state.Settings
	now := e.now().UTC()
	chunk, total, err := ChunkRebalanceNotional(lev, leverage.OneX, false, s.Execution.UnutilizedLeveragePercentage)
	if err != nil {
		return nil, err
	}

	var units decimal.Decimal
	closed := false
	if total.GreaterThan(chunk) {
		units, err = e.trade(ctx, lev, chunk, false, ex)
		if err != nil {
			return nil, err
		}
	} else {
		a := lev.Action
		maxUnits, err := leverage.MaxRedeemToZero(lev.CurrentLeverageRatio, leverage.OneX, a.CollateralBalance, a.TotalSupply, s.Execution.SlippageTolerance)
		if err != nil {
			return nil, arithmetic("redeem to zero", err)
		}
		if err := e.mover.DeleverToZeroBorrowBalance(ctx, exchange, maxUnits, a.TotalSupply, ex.DeleverExchangeData); err != nil {
			return nil, wrapMove("delever to zero borrow balance", exchange, err)
		}
		units = maxUnits.Neg()
		chunk = total
		closed = true
	}

	next := e.state.Clone()
	markTrade(next, exchange, now)
	next.TwapLeverageRatio = decimal.Zero
	e.commit(ctx, next)

	res = e.result(model.EventDisengaged, exchange, caller, lev.CurrentLeverageRatio, leverage.OneX, chunk, total, units, now)
	res.ClosedDebtPosition = closed
	e.emitResult(model.EventDisengaged, res)
	return res, nil
}

// prepareTraderCall runs the checks shared by rebalance and iterate.
func (e *Engine) prepareTraderCall(ctx context.Context, caller common.Address, exchange string) (model.LeverageInfo, *model.ExchangeSettings, error) {
	if err := e.requireEOA(ctx, caller); err != nil {
		return model.LeverageInfo{}, nil, err
	}
	if !e.access.IsAllowedTrader(caller) {
		return model.LeverageInfo{}, nil, apperrors.Unauthorized("address not permitted to call").WithDetail("caller", caller.Hex())
	}
	ex, err := e.exchange(exchange)
	if err != nil {
		return model.LeverageInfo{}, nil, err
	}
	lev, err := e.leverageInfo(ctx, exchange, ex)
	if err != nil {
		return model.LeverageInfo{}, nil, err
	}
	return lev, ex, nil
}

func (e *Engine) leverageInfo(ctx context.Context, exchange string, ex *model.ExchangeSettings) (model.LeverageInfo, error) {
	info, err := e.reader.Read(ctx)
	if err != nil {
		return model.LeverageInfo{}, err
	}
	if err := requireBalances(info, true); err != nil {
		return model.LeverageInfo{}, err
	}
	current, err := LeverageRatio(info)
	if err != nil {
		return model.LeverageInfo{}, err
	}
	return model.LeverageInfo{
		Action:               info,
		CurrentLeverageRatio: current,
		SlippageTolerance:    e.state.Settings.Execution.SlippageTolerance,
		MaxTradeSize:         ex.TwapMaxTradeSize,
		ExchangeName:         exchange,
	}, nil
}

func requireBalances(info model.ActionInfo, engaged bool) error {
	if !info.TotalSupply.IsPositive() {
		return apperrors.Precondition("total supply must be > 0")
	}
	if !info.CollateralBalance.IsPositive() {
		return apperrors.Precondition("collateral balance must be > 0")
	}
	if engaged && !info.BorrowBalance.IsPositive() {
		return apperrors.Precondition("borrow balance must exist")
	}
	if !engaged && !info.BorrowBalance.IsZero() {
		return apperrors.Precondition("debt must be 0")
	}
	return nil
}

func (e *Engine) handleRebalance(ctx context.Context, lev model.LeverageInfo, newRatio decimal.Decimal, ex *model.ExchangeSettings) (chunk, total, units decimal.Decimal, err error) {
	isLever := newRatio.GreaterThan(lev.CurrentLeverageRatio)
	chunk, total, err = ChunkRebalanceNotional(lev, newRatio, isLever, e.state.Settings.Execution.UnutilizedLeveragePercentage)
	if err != nil {
		return decimal.Zero, decimal.Zero, decimal.Zero, err
	}
	units, err = e.trade(ctx, lev, chunk, isLever, ex)
	if err != nil {
		return decimal.Zero, decimal.Zero, decimal.Zero, err
	}
	return chunk, total, units, nil
}

// trade moves chunk of collateral through the collateral mover and returns the
// signed per-share collateral units.
func (e *Engine) trade(ctx context.Context, lev model.LeverageInfo, chunk decimal.Decimal, isLever bool, ex *model.ExchangeSettings) (decimal.Decimal, error) {
	a := lev.Action
	units, err := leverage.CollateralUnits(chunk, a.TotalSupply)
	if err != nil {
		return decimal.Zero, arithmetic("collateral units", err)
	}
	if !units.IsPositive() {
		return decimal.Zero, apperrors.InvalidState("rebalance notional is zero").
			WithDetail("exchange", lev.ExchangeName).
			WithDetail("current_leverage_ratio", lev.CurrentLeverageRatio.String())
	}

	if isLever {
		borrowUnits, err := leverage.BorrowUnits(units, a.CollateralPrice, a.BorrowPrice)
		if err != nil {
			return decimal.Zero, arithmetic("borrow units", err)
		}
		err = e.mover.Lever(ctx, LeverParams{
			Exchange:           lev.ExchangeName,
			BorrowUnits:        borrowUnits,
			MinCollateralUnits: leverage.MinCollateralReceiveUnits(units, lev.SlippageTolerance),
			TotalSupply:        a.TotalSupply,
			Data:               ex.LeverExchangeData,
		})
		if err != nil {
			return decimal.Zero, wrapMove("lever", lev.ExchangeName, err)
		}
		metrics.ChunkNotional.WithLabelValues("lever").Observe(chunk.InexactFloat64())
		return units, nil
	}

	minRepay, err := leverage.MinRepayUnits(units, lev.SlippageTolerance, a.CollateralPrice, a.BorrowPrice)
	if err != nil {
		return decimal.Zero, arithmetic("min repay units", err)
	}
	err = e.mover.Delever(ctx, DeleverParams{
		Exchange:        lev.ExchangeName,
		CollateralUnits: units,
		MinRepayUnits:   minRepay,
		TotalSupply:     a.TotalSupply,
		Data:            ex.DeleverExchangeData,
	})
	if err != nil {
		return decimal.Zero, wrapMove("delever", lev.ExchangeName, err)
	}
	metrics.ChunkNotional.WithLabelValues("delever").Observe(chunk.InexactFloat64())
	return units.Neg(), nil
}

func wrapMove(op, exchange string, err error) error {
	if apperrors.TypeOf(err) != "" {
		return err
	}
	return apperrors.Upstream(op+" failed", err).WithDetail("exchange", exchange)
}

func (e *Engine) newLeverageRatio(s model.Settings, current decimal.Decimal) decimal.Decimal {
	m := s.Methodology
	return leverage.NewLeverageRatio(current, m.TargetLeverageRatio, m.MinLeverageRatio, m.MaxLeverageRatio, m.RecenteringSpeed)
}

func (e *Engine) exchange(name string) (*model.ExchangeSettings, error) {
	ex, ok := e.state.Exchange(name)
	if !ok {
		return nil, apperrors.Precondition("must be valid exchange").WithDetail("exchange", name)
	}
	return ex, nil
}

func (e *Engine) requireEOA(ctx context.Context, caller common.Address) error {
	if caller == (common.Address{}) {
		return apperrors.Unauthorized("caller address required")
	}
	if e.guard == nil {
		return nil
	}
	isContract, err := e.guard.IsContract(ctx, caller)
	if err != nil {
		return apperrors.Upstream("caller code lookup failed", err)
	}
	if isContract {
		return apperrors.Unauthorized("caller must be EOA address").WithDetail("caller", caller.Hex())
	}
	return nil
}

func (e *Engine) cooldownError(msg string, last time.Time, period model.Duration) *apperrors.AppError {
	return apperrors.Cooldown(msg).
		WithDetail("last_trade_timestamp", last).
		WithDetail("cooldown", period.String()).
		WithDetail("next_eligible_at", nextEligible(last, period.Std()))
}

func markTrade(state *model.EngineState, exchange string, now time.Time) {
	state.GlobalLastTradeTimestamp = now
	if ex, ok := state.Exchanges[exchange]; ok {
		ex.ExchangeLastTradeTimestamp = now
	}
}

// persist stores next before it becomes visible. Used where nothing external
// happened yet, so a failed save leaves the engine unchanged.
func (e *Engine) persist(ctx context.Context, next *model.EngineState) error {
	next.Version = e.state.Version + 1
	if err := e.store.Save(ctx, next); err != nil {
		return apperrors.Upstream("save engine state", err)
	}
	e.state = next
	metrics.TwapActive.Set(boolGauge(next.InTwap()))
	return nil
}

// commit makes next visible after a collateral move already happened. The move
// cannot be undone, so a failed save is logged and the in-memory state wins.
func (e *Engine) commit(ctx context.Context, next *model.EngineState) {
	next.Version = e.state.Version + 1
	e.state = next
	metrics.TwapActive.Set(boolGauge(next.InTwap()))
	if err := e.store.Save(ctx, next); err != nil {
		logger.LogError(ctx, err, "engine state not persisted after trade", "version", next.Version)
	}
}

func (e *Engine) payBounty(ctx context.Context, to common.Address, reward decimal.Decimal) decimal.Decimal {
	if !reward.IsPositive() {
		return decimal.Zero
	}
	balance, err := e.vault.Balance(ctx)
	if err != nil {
		logger.LogError(ctx, err, "bounty balance unavailable", "caller", to.Hex())
		return decimal.Zero
	}
	amount := leverage.MinDecimal(reward, balance)
	if !amount.IsPositive() {
		return decimal.Zero
	}
	if err := e.vault.Pay(ctx, to, amount); err != nil {
		logger.LogError(ctx, err, "bounty payment failed", "caller", to.Hex(), "amount", amount.String())
		return decimal.Zero
	}
	e.recordBounty(ctx, balance.Sub(amount))
	metrics.BountyPaid.Add(amount.InexactFloat64())
	return amount
}

func (e *Engine) result(evt model.EventType, exchange string, caller common.Address, current, newRatio, chunk, total, units decimal.Decimal, now time.Time) *model.RebalanceResult {
	return &model.RebalanceResult{
		Action:            string(evt),
		Exchange:          exchange,
		Caller:            caller,
		CurrentLeverage:   current,
		NewLeverage:       newRatio,
		ChunkNotional:     chunk,
		TotalNotional:     total,
		CollateralUnits:   units,
		TwapLeverageRatio: e.state.TwapLeverageRatio,
		BountyPaid:        decimal.Zero,
		Timestamp:         now,
	}
}

func (e *Engine) emitResult(evt model.EventType, res *model.RebalanceResult) {
	payload := map[string]interface{}{
		"current_leverage_ratio":   res.CurrentLeverage.String(),
		"new_leverage_ratio":       res.NewLeverage.String(),
		"chunk_rebalance_notional": res.ChunkNotional.String(),
		"total_rebalance_notional": res.TotalNotional.String(),
		"collateral_units":         res.CollateralUnits.String(),
		"twap_leverage_ratio":      res.TwapLeverageRatio.String(),
	}
	if !res.BountyPaid.IsZero() {
		payload["bounty_paid"] = res.BountyPaid.String()
	}
	if res.TradeSkipped {
		payload["trade_skipped"] = true
	}
	e.log.Info("rebalance executed",
		"action", res.Action,
		"exchange", res.Exchange,
		"caller", res.Caller.Hex(),
		"current_leverage_ratio", res.CurrentLeverage.String(),
		"new_leverage_ratio", res.NewLeverage.String(),
		"chunk", res.ChunkNotional.String(),
		"total", res.TotalNotional.String())
	e.emit(evt, res.Exchange, res.Caller, payload)
}

func (e *Engine) emit(evt model.EventType, exchange string, caller common.Address, payload map[string]interface{}) {
	if e.events == nil {
		return
	}
	e.events.Emit(&model.Event{
		Type:      evt,
		Exchange:  exchange,
		Caller:    caller,
		Payload:   payload,
		CreatedAt: e.now().UTC(),
	})
}

func (e *Engine) observe(action, exchange string, err *error) {
	status := "ok"
	if *err != nil {
		status = "error"
		reason := string(apperrors.TypeOf(*err))
		if reason == "" {
			reason = string(apperrors.ErrInternal)
		}
		metrics.RebalanceRejects.WithLabelValues(reason).Inc()
		e.log.Warn("entry point rejected", "action", action, "exchange", exchange, "error", (*err).Error())
	}
	metrics.RebalancesTotal.WithLabelValues(action, exchange, status).Inc()
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
