package keeper

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/GoPolymarket/levergate/internal/model"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	action   string
	caller   common.Address
	exchange string
}

type fakeEngine struct {
	mu      sync.Mutex
	resp    *model.ShouldRebalanceResponse
	respErr error
	calls   []call
}

func (f *fakeEngine) ShouldRebalance(ctx context.Context) (*model.ShouldRebalanceResponse, error) {
	return f.resp, f.respErr
}

func (f *fakeEngine) record(action string, caller common.Address, exchange string) (*model.RebalanceResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{action, caller, exchange})
	return &model.RebalanceResult{Action: action, Exchange: exchange}, nil
}

func (f *fakeEngine) Rebalance(ctx context.Context, caller common.Address, exchange string) (*model.RebalanceResult, error) {
	return f.record("rebalance", caller, exchange)
}

func (f *fakeEngine) IterateRebalance(ctx context.Context, caller common.Address, exchange string) (*model.RebalanceResult, error) {
	return f.record("iterate", caller, exchange)
}

func (f *fakeEngine) Ripcord(ctx context.Context, caller common.Address, exchange string) (*model.RebalanceResult, error) {
	return f.record("ripcord", caller, exchange)
}

func (f *fakeEngine) Calls() []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]call(nil), f.calls...)
}

func response(pairs ...interface{}) *model.ShouldRebalanceResponse {
	resp := &model.ShouldRebalanceResponse{CurrentLeverageRatio: decimal.NewFromInt(2)}
	for i := 0; i < len(pairs); i += 2 {
		resp.Exchanges = append(resp.Exchanges, pairs[i].(string))
		resp.Actions = append(resp.Actions, pairs[i+1].(model.Action))
	}
	return resp
}

func TestTick(t *testing.T) {
	keeperAddr := common.HexToAddress("0x0b")

	tests := []struct {
		name     string
		resp     *model.ShouldRebalanceResponse
		wantCall *call
	}{
		{"nothing due", response("A", model.ActionNone, "B", model.ActionNone), nil},
		{"rebalance", response("A", model.ActionNone, "B", model.ActionRebalance), &call{"rebalance", keeperAddr, "B"}},
		{"iterate", response("A", model.ActionIterate), &call{"iterate", keeperAddr, "A"}},
		{"ripcord preferred", response("A", model.ActionNone, "B", model.ActionRipcord), &call{"ripcord", keeperAddr, "B"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := &fakeEngine{resp: tt.resp}
			r := NewRunner(engine, keeperAddr, time.Second)

			res, err := r.Tick(context.Background())
			require.NoError(t, err)
			if tt.wantCall == nil {
				assert.Nil(t, res)
				assert.Empty(t, engine.Calls())
				return
			}
			require.NotNil(t, res)
			assert.Equal(t, []call{*tt.wantCall}, engine.Calls())
		})
	}
}

func TestTick_ShouldRebalanceError(t *testing.T) {
	engine := &fakeEngine{respErr: errors.New("oracle down")}
	r := NewRunner(engine, common.HexToAddress("0x0b"), time.Second)
	_, err := r.Tick(context.Background())
	assert.Error(t, err)
}

func TestRun_StopsOnCancel(t *testing.T) {
	engine := &fakeEngine{resp: response("A", model.ActionRebalance)}
	r := NewRunner(engine, common.HexToAddress("0x0b"), 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return len(engine.Calls()) > 0 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("runner did not stop")
	}
}
