package service

import (
	"context"

	"github.com/GoPolymarket/levergate/internal/model"
	"github.com/GoPolymarket/levergate/internal/pkg/apperrors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// UpdateCallerStatus toggles allowed-trader status for a batch of addresses.
// The change is saved with the engine state before it takes effect.
func (e *Engine) UpdateCallerStatus(ctx context.Context, caller common.Address, callers []common.Address, statuses []bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.access.IsOperator(caller) {
		return apperrors.Unauthorized("caller must be operator").WithDetail("caller", caller.Hex())
	}
	if len(callers) != len(statuses) {
		return apperrors.NewInvalidRequest("invalid caller status update").
			WithDetail("callers", len(callers)).
			WithDetail("statuses", len(statuses))
	}

	next := e.state.Clone()
	if next.Callers == nil {
		next.Callers = make(map[common.Address]bool, len(callers))
	}
	for i, c := range callers {
		next.Callers[c] = statuses[i]
	}
	if err := e.persist(ctx, next); err != nil {
		return err
	}
	if err := e.access.UpdateCallerStatus(callers, statuses); err != nil {
		return apperrors.New(apperrors.ErrInvalidRequest, "invalid caller status update", err)
	}
	for i, c := range callers {
		e.emit(model.EventCallerStatusUpdated, "", caller, map[string]interface{}{
			"address": c.Hex(),
			"status":  statuses[i],
		})
	}
	return nil
}

func (e *Engine) SetAnyoneCallable(ctx context.Context, caller common.Address, status bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.access.IsOperator(caller) {
		return apperrors.Unauthorized("caller must be operator").WithDetail("caller", caller.Hex())
	}
	next := e.state.Clone()
	next.AnyoneCallable = &status
	if err := e.persist(ctx, next); err != nil {
		return err
	}
	e.access.SetAnyoneCallable(status)
	e.emit(model.EventAnyoneCallableUpdated, "", caller, map[string]interface{}{"status": status})
	return nil
}

// DepositBounty funds the ripcord reward vault.
func (e *Engine) DepositBounty(ctx context.Context, caller common.Address, amount decimal.Decimal) (decimal.Decimal, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.access.IsOperator(caller) {
		return decimal.Zero, apperrors.Unauthorized("caller must be operator").WithDetail("caller", caller.Hex())
	}
	if !amount.IsPositive() {
		return decimal.Zero, apperrors.NewInvalidRequest("deposit amount must be > 0")
	}
	if err := e.vault.Deposit(ctx, amount); err != nil {
		return decimal.Zero, apperrors.Upstream("bounty deposit failed", err)
	}
	balance, err := e.vault.Balance(ctx)
	if err != nil {
		return decimal.Zero, apperrors.Upstream("bounty balance unavailable", err)
	}
	e.recordBounty(ctx, balance)
	e.emit(model.EventBountyDeposited, "", caller, map[string]interface{}{
		"amount":  amount.String(),
		"balance": balance.String(),
	})
	return balance, nil
}

// WithdrawBounty moves ether out of the vault. Refused mid-TWAP.
func (e *Engine) WithdrawBounty(ctx context.Context, caller, to common.Address, amount decimal.Decimal) (decimal.Decimal, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireOperatorNoTwap(caller); err != nil {
		return decimal.Zero, err
	}
	if to == (common.Address{}) {
		return decimal.Zero, apperrors.NewInvalidRequest("recipient required")
	}
	if !amount.IsPositive() {
		return decimal.Zero, apperrors.NewInvalidRequest("withdraw amount must be > 0")
	}
	balance, err := e.vault.Balance(ctx)
	if err != nil {
		return decimal.Zero, apperrors.Upstream("bounty balance unavailable", err)
	}
	if amount.GreaterThan(balance) {
		return decimal.Zero, apperrors.Precondition("insufficient bounty balance").
			WithDetail("balance", balance.String()).
			WithDetail("amount", amount.String())
	}
	if err := e.vault.Pay(ctx, to, amount); err != nil {
		return decimal.Zero, apperrors.Upstream("bounty withdraw failed", err)
	}
	remaining := balance.Sub(amount)
	e.recordBounty(ctx, remaining)
	e.emit(model.EventBountyWithdrawn, "", caller, map[string]interface{}{
		"to":      to.Hex(),
		"amount":  amount.String(),
		"balance": remaining.String(),
	})
	return remaining, nil
}

// recordBounty saves the vault balance after ether already moved, so a failed
// save is only logged.
func (e *Engine) recordBounty(ctx context.Context, balance decimal.Decimal) {
	next := e.state.Clone()
	next.BountyBalance = &balance
	e.commit(ctx, next)
}

// restoreOverrides replays saved allow-list changes and the vault balance over
// what was built from config.
func (e *Engine) restoreOverrides(state *model.EngineState) error {
	if len(state.Callers) > 0 {
		callers := make([]common.Address, 0, len(state.Callers))
		statuses := make([]bool, 0, len(state.Callers))
		for c, ok := range state.Callers {
			callers = append(callers, c)
			statuses = append(statuses, ok)
		}
		if err := e.access.UpdateCallerStatus(callers, statuses); err != nil {
			return apperrors.New(apperrors.ErrInternal, "restore caller status", err)
		}
	}
	if state.AnyoneCallable != nil {
		e.access.SetAnyoneCallable(*state.AnyoneCallable)
	}
	if state.BountyBalance != nil {
		if r, ok := e.vault.(BalanceRestorer); ok {
			r.RestoreBalance(*state.BountyBalance)
		}
	}
	return nil
}
