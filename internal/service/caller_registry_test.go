package service

import (
	"testing"

	"github.com/GoPolymarket/levergate/internal/config"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func TestCallerRegistry(t *testing.T) {
	op := common.HexToAddress("0x01")
	keeper := common.HexToAddress("0x02")
	other := common.HexToAddress("0x03")

	r, err := NewCallerRegistry(config.AccessConfig{
		Operators:      []string{op.Hex()},
		AllowedCallers: []string{keeper.Hex()},
	})
	require.NoError(t, err)

	assert.True(t, r.IsOperator(op))
	assert.False(t, r.IsOperator(keeper))
	assert.True(t, r.IsAllowedTrader(op), "operators may always trade")
	assert.True(t, r.IsAllowedTrader(keeper))
	assert.False(t, r.IsAllowedTrader(other))

	require.NoError(t, r.UpdateCallerStatus([]common.Address{other, keeper}, []bool{true, false}))
	assert.True(t, r.IsAllowedTrader(other))
	assert.False(t, r.IsAllowedTrader(keeper))
	assert.Equal(t, []common.Address{other}, r.AllowedCallers())

	assert.Error(t, r.UpdateCallerStatus([]common.Address{keeper}, []bool{true, false}))

	r.SetAnyoneCallable(true)
	assert.True(t, r.AnyoneCallable())
	assert.True(t, r.IsAllowedTrader(keeper))
	assert.False(t, r.IsOperator(keeper))
}

func TestCallerRegistry_BadAddress(t *testing.T) {
	_, err := NewCallerRegistry(config.AccessConfig{Operators: []string{"not-an-address"}})
	assert.Error(t, err)
}

func TestCallerRegistry_Limiter(t *testing.T) {
	caller := common.HexToAddress("0x02")

	unlimited, err := NewCallerRegistry(config.AccessConfig{})
	require.NoError(t, err)
	assert.Equal(t, rate.Inf, unlimited.Limiter(caller).Limit())

	r, err := NewCallerRegistry(config.AccessConfig{RateQPS: 1, RateBurst: 2})
	require.NoError(t, err)
	l := r.Limiter(caller)
	assert.Same(t, l, r.Limiter(caller))
	assert.True(t, l.Allow())
	assert.True(t, l.Allow())
	assert.False(t, l.Allow())
}
