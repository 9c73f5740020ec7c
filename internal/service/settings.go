package service

import (
	"context"
	"fmt"

	"github.com/GoPolymarket/levergate/internal/leverage"
	"github.com/GoPolymarket/levergate/internal/model"
	"github.com/GoPolymarket/levergate/internal/pkg/apperrors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// ValidateStrategy checks the immutable position identity.
func ValidateStrategy(s model.StrategySettings) error {
	if s.CollateralAsset == (common.Address{}) || s.BorrowAsset == (common.Address{}) {
		return apperrors.Precondition("collateral and borrow assets must be set")
	}
	if s.CollateralAsset == s.BorrowAsset {
		return apperrors.Precondition("collateral and borrow assets must differ")
	}
	if s.CollateralFeed == "" || s.BorrowFeed == "" {
		return apperrors.Precondition("price feeds must be set")
	}
	if s.CollateralDecimals > leverage.MaxDecimals || s.BorrowDecimals > leverage.MaxDecimals {
		return apperrors.Precondition(fmt.Sprintf("asset decimals must be <= %d", leverage.MaxDecimals))
	}
	return nil
}

// ValidateSettings checks the cross-field invariants of the whole rule set.
func ValidateSettings(s model.Settings) error {
	m, x, in := s.Methodology, s.Execution, s.Incentive

	if !m.MinLeverageRatio.IsPositive() {
		return apperrors.Precondition("min leverage ratio must be positive")
	}
	if m.MinLeverageRatio.GreaterThan(m.TargetLeverageRatio) {
		return apperrors.Precondition("min leverage ratio must be <= target")
	}
	if m.TargetLeverageRatio.GreaterThan(m.MaxLeverageRatio) {
		return apperrors.Precondition("target leverage ratio must be <= max")
	}
	if !m.RecenteringSpeed.IsPositive() || m.RecenteringSpeed.GreaterThan(leverage.One) {
		return apperrors.Precondition("recentering speed must be in (0, 1]")
	}
	if !m.MaxLeverageRatio.LessThan(in.IncentivizedLeverageRatio) {
		return apperrors.Precondition("incentivized leverage ratio must be > max leverage ratio")
	}
	if m.RebalanceInterval <= x.TwapCooldownPeriod {
		return apperrors.Precondition("rebalance interval must be > TWAP cooldown period")
	}
	if x.TwapCooldownPeriod <= in.IncentivizedTwapCooldownPeriod {
		return apperrors.Precondition("TWAP cooldown period must be > incentivized TWAP cooldown period")
	}
	if in.IncentivizedTwapCooldownPeriod < 0 {
		return apperrors.Precondition("incentivized TWAP cooldown period must not be negative")
	}

	fractions := []struct {
		name string
		v    decimal.Decimal
	}{
		{"unutilized leverage percentage", x.UnutilizedLeveragePercentage},
		{"slippage tolerance", x.SlippageTolerance},
		{"incentivized slippage tolerance", in.IncentivizedSlippageTolerance},
	}
	for _, f := range fractions {
		if f.v.IsNegative() || f.v.GreaterThanOrEqual(leverage.One) {
			return apperrors.Precondition(f.name + " must be in [0, 1)")
		}
	}
	if in.EtherReward.IsNegative() {
		return apperrors.Precondition("ether reward must not be negative")
	}
	return nil
}

// ValidateExchange checks a venue before it is added or replaced.
func ValidateExchange(name string, ex model.ExchangeSettings) error {
	if name == "" {
		return apperrors.Precondition("exchange name must not be empty")
	}
	if !ex.TwapMaxTradeSize.IsPositive() {
		return apperrors.Precondition("max TWAP trade size must be > 0").WithDetail("exchange", name)
	}
	if !ex.IncentivizedTwapMaxTradeSize.IsPositive() {
		return apperrors.Precondition("incentivized max TWAP trade size must be > 0").WithDetail("exchange", name)
	}
	return nil
}

func (e *Engine) SetMethodologySettings(ctx context.Context, caller common.Address, m model.MethodologySettings) error {
	return e.updateSettings(ctx, caller, model.EventMethodologySettingsUpdated, func(s *model.Settings) {
		s.Methodology = m
	}, m)
}

func (e *Engine) SetExecutionSettings(ctx context.Context, caller common.Address, x model.ExecutionSettings) error {
	return e.updateSettings(ctx, caller, model.EventExecutionSettingsUpdated, func(s *model.Settings) {
		s.Execution = x
	}, x)
}

func (e *Engine) SetIncentiveSettings(ctx context.Context, caller common.Address, in model.IncentiveSettings) error {
	return e.updateSettings(ctx, caller, model.EventIncentiveSettingsUpdated, func(s *model.Settings) {
		s.Incentive = in
	}, in)
}

func (e *Engine) updateSettings(ctx context.Context, caller common.Address, evt model.EventType, apply func(*model.Settings), payload interface{}) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireOperatorNoTwap(caller); err != nil {
		return err
	}
	next := e.state.Clone()
	apply(&next.Settings)
	if err := ValidateSettings(next.Settings); err != nil {
		return err
	}
	if err := e.persist(ctx, next); err != nil {
		return err
	}
	e.emit(evt, "", caller, map[string]interface{}{"settings": payload})
	return nil
}

// AddEnabledExchange registers a new venue. Duplicates are rejected.
func (e *Engine) AddEnabledExchange(ctx context.Context, caller common.Address, name string, ex model.ExchangeSettings) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireOperatorNoTwap(caller); err != nil {
		return err
	}
	if _, exists := e.state.Exchange(name); exists {
		return apperrors.Precondition("exchange already enabled").WithDetail("exchange", name)
	}
	if err := ValidateExchange(name, ex); err != nil {
		return err
	}

	next := e.state.Clone()
	ex.ExchangeLastTradeTimestamp = ex.ExchangeLastTradeTimestamp.UTC()
	next.Exchanges[name] = &ex
	next.EnabledExchanges = append(next.EnabledExchanges, name)
	if err := e.persist(ctx, next); err != nil {
		return err
	}
	e.emit(model.EventExchangeAdded, name, caller, exchangePayload(ex))
	return nil
}

// UpdateEnabledExchange replaces a venue's settings in place. The venue's last
// trade timestamp is kept so an update cannot reset its cooldown.
func (e *Engine) UpdateEnabledExchange(ctx context.Context, caller common.Address, name string, ex model.ExchangeSettings) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireOperatorNoTwap(caller); err != nil {
		return err
	}
	current, ok := e.state.Exchange(name)
	if !ok {
		return apperrors.New(apperrors.ErrNotFound, "exchange not enabled", nil).WithDetail("exchange", name)
	}
	if err := ValidateExchange(name, ex); err != nil {
		return err
	}

	next := e.state.Clone()
	ex.ExchangeLastTradeTimestamp = current.ExchangeLastTradeTimestamp
	next.Exchanges[name] = &ex
	if err := e.persist(ctx, next); err != nil {
		return err
	}
	e.emit(model.EventExchangeUpdated, name, caller, exchangePayload(ex))
	return nil
}

func (e *Engine) RemoveEnabledExchange(ctx context.Context, caller common.Address, name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireOperatorNoTwap(caller); err != nil {
		return err
	}
	if _, ok := e.state.Exchange(name); !ok {
		return apperrors.New(apperrors.ErrNotFound, "exchange not enabled", nil).WithDetail("exchange", name)
	}

	next := e.state.Clone()
	delete(next.Exchanges, name)
	enabled := next.EnabledExchanges[:0]
	for _, n := range next.EnabledExchanges {
		if n != name {
			enabled = append(enabled, n)
		}
	}
	next.EnabledExchanges = enabled
	if err := e.persist(ctx, next); err != nil {
		return err
	}
	e.emit(model.EventExchangeRemoved, name, caller, nil)
	return nil
}

func (e *Engine) requireOperatorNoTwap(caller common.Address) error {
	if !e.access.IsOperator(caller) {
		return apperrors.Unauthorized("caller must be operator").WithDetail("caller", caller.Hex())
	}
	if e.state.InTwap() {
		return apperrors.InvalidState("rebalance in progress").
			WithDetail("twap_leverage_ratio", e.state.TwapLeverageRatio.String())
	}
	return nil
}

func exchangePayload(ex model.ExchangeSettings) map[string]interface{} {
	return map[string]interface{}{
		"twap_max_trade_size":              ex.TwapMaxTradeSize.String(),
		"incentivized_twap_max_trade_size": ex.IncentivizedTwapMaxTradeSize.String(),
	}
}
