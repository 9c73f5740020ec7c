package keeper

import (
	"context"
	"log/slog"
	"time"

	"github.com/GoPolymarket/levergate/internal/model"
	"github.com/GoPolymarket/levergate/internal/pkg/logger"
	"github.com/ethereum/go-ethereum/common"
)

// Engine is the part of the orchestrator a keeper drives.
type Engine interface {
	ShouldRebalance(ctx context.Context) (*model.ShouldRebalanceResponse, error)
	Rebalance(ctx context.Context, caller common.Address, exchange string) (*model.RebalanceResult, error)
	IterateRebalance(ctx context.Context, caller common.Address, exchange string) (*model.RebalanceResult, error)
	Ripcord(ctx context.Context, caller common.Address, exchange string) (*model.RebalanceResult, error)
}

// Runner polls the engine and calls whatever entry point is due. Failed calls
// are retried on the next tick.
type Runner struct {
	engine   Engine
	caller   common.Address
	interval time.Duration
	log      *slog.Logger
}

func NewRunner(engine Engine, caller common.Address, interval time.Duration) *Runner {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Runner{
		engine:   engine,
		caller:   caller,
		interval: interval,
		log:      logger.Component("keeper"),
	}
}

// Run blocks until ctx is cancelled.
func (r *Runner) Run(ctx context.Context) {
	r.log.Info("keeper started", "caller", r.caller.Hex(), "interval", r.interval.String())
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.log.Info("keeper stopped")
			return
		case <-ticker.C:
			if _, err := r.Tick(ctx); err != nil {
				r.log.Warn("keeper tick failed", "error", err.Error())
			}
		}
	}
}

// Tick runs one pass: the first venue with a pending action is called.
// Returns (nil, nil) when nothing is due.
func (r *Runner) Tick(ctx context.Context) (*model.RebalanceResult, error) {
	resp, err := r.engine.ShouldRebalance(ctx)
	if err != nil {
		return nil, err
	}

	// ripcord first, it is the only action with its own clock
	for _, want := range []model.Action{model.ActionRipcord, model.ActionIterate, model.ActionRebalance} {
		for i, action := range resp.Actions {
			if action != want {
				continue
			}
			exchange := resp.Exchanges[i]
			r.log.Debug("dispatching", "action", action, "exchange", exchange,
				"current_leverage_ratio", resp.CurrentLeverageRatio.String())
			return r.dispatch(ctx, action, exchange)
		}
	}
	return nil, nil
}

func (r *Runner) dispatch(ctx context.Context, action model.Action, exchange string) (*model.RebalanceResult, error) {
	switch action {
	case model.ActionRipcord:
		return r.engine.Ripcord(ctx, r.caller, exchange)
	case model.ActionIterate:
		return r.engine.IterateRebalance(ctx, r.caller, exchange)
	default:
		return r.engine.Rebalance(ctx, r.caller, exchange)
	}
}
