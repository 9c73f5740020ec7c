package service

import (
	"context"

	"github.com/GoPolymarket/levergate/internal/model"
	"github.com/GoPolymarket/levergate/internal/pkg/apperrors"
	"github.com/shopspring/decimal"
)

// ShouldRebalance classifies every enabled venue against the methodology bounds.
func (e *Engine) ShouldRebalance(ctx context.Context) (*model.ShouldRebalanceResponse, error) {
	e.mu.Lock()
	m := e.state.Settings.Methodology
	e.mu.Unlock()
	return e.shouldRebalance(ctx, m.MinLeverageRatio, m.MaxLeverageRatio)
}

// ShouldRebalanceWithBounds lets a keeper use a band at least as wide as the
// methodology band.
func (e *Engine) ShouldRebalanceWithBounds(ctx context.Context, customMin, customMax decimal.Decimal) (*model.ShouldRebalanceResponse, error) {
	e.mu.Lock()
	m := e.state.Settings.Methodology
	e.mu.Unlock()

	if customMin.GreaterThan(m.MinLeverageRatio) {
		return nil, apperrors.Precondition("custom bounds must be valid").
			WithDetail("custom_min", customMin.String()).
			WithDetail("min_leverage_ratio", m.MinLeverageRatio.String())
	}
	if customMax.LessThan(m.MaxLeverageRatio) {
		return nil, apperrors.Precondition("custom bounds must be valid").
			WithDetail("custom_max", customMax.String()).
			WithDetail("max_leverage_ratio", m.MaxLeverageRatio.String())
	}
	return e.shouldRebalance(ctx, customMin, customMax)
}

func (e *Engine) shouldRebalance(ctx context.Context, min, max decimal.Decimal) (*model.ShouldRebalanceResponse, error) {
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

	resp := &model.ShouldRebalanceResponse{
		CurrentLeverageRatio: current,
		Exchanges:            make([]string, 0, len(state.EnabledExchanges)),
		Actions:              make([]model.Action, 0, len(state.EnabledExchanges)),
	}
	now := e.now().UTC()
	for _, name := range state.EnabledExchanges {
		ex, ok := state.Exchange(name)
		if !ok {
			continue
		}
		action := model.ActionNone
		// nothing to rebalance until the position is engaged
		if info.BorrowBalance.IsPositive() {
			action = Classify(ClassifyInput{
				CurrentLeverageRatio: current,
				MinLeverageRatio:     min,
				MaxLeverageRatio:     max,
				Settings:             state.Settings,
				InTwap:               state.InTwap(),
				Now:                  now,
				GlobalLastTrade:      state.GlobalLastTradeTimestamp,
				ExchangeLastTrade:    ex.ExchangeLastTradeTimestamp,
			})
		}
		resp.Exchanges = append(resp.Exchanges, name)
		resp.Actions = append(resp.Actions, action)
	}
	return resp, nil
}

func (e *Engine) GetCurrentLeverageRatio(ctx context.Context) (decimal.Decimal, error) {
	return e.reader.CurrentLeverageRatio(ctx)
}

func (e *Engine) GetSettings() model.Settings {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Settings
}

// GetState returns a copy of the engine state.
func (e *Engine) GetState() *model.EngineState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Clone()
}

func (e *Engine) Strategy() model.StrategySettings {
	return e.strategy
}

// View assembles the operator read model. A failing position read does not fail
// the view; the position fields are left empty.
func (e *Engine) View(ctx context.Context) (*model.StrategyView, error) {
	state := e.GetState()
	view := &model.StrategyView{
		Strategy:      e.strategy,
		State:         state,
		PositionState: PositionStateOf(state, decimal.Zero),
	}

	balance, err := e.vault.Balance(ctx)
	if err != nil {
		return nil, apperrors.Upstream("bounty balance unavailable", err)
	}
	view.BountyBalance = balance

	info, err := e.reader.Read(ctx)
	if err != nil {
		e.log.Warn("position read failed", "error", err.Error())
		return view, nil
	}
	view.Position = &info
	view.PositionState = PositionStateOf(state, info.BorrowBalance)
	if ratio, err := LeverageRatio(info); err == nil {
		view.CurrentLeverageRatio = &ratio
	}
	return view, nil
}
