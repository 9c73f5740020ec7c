package manager

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeNonceStore struct {
	accept bool
	err    error
	calls  int
}

func (f *fakeNonceStore) Consume(ctx context.Context, caller common.Address, nonce *big.Int) (bool, error) {
	f.calls++
	return f.accept, f.err
}

func TestNonceManager_StrictlyIncreasing(t *testing.T) {
	m := NewNonceManager(nil)
	caller := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	ctx := context.Background()

	assert.Equal(t, int64(0), m.Next(caller).Int64())
	require.NoError(t, m.Consume(ctx, caller, big.NewInt(5)))
	assert.Equal(t, int64(6), m.Next(caller).Int64())

	assert.ErrorIs(t, m.Consume(ctx, caller, big.NewInt(5)), ErrNonceUsed)
	assert.ErrorIs(t, m.Consume(ctx, caller, big.NewInt(4)), ErrNonceUsed)
	assert.NoError(t, m.Consume(ctx, caller, big.NewInt(9)))

	other := common.HexToAddress("0x00000000000000000000000000000000000000bb")
	assert.NoError(t, m.Consume(ctx, other, big.NewInt(0)))

	assert.Error(t, m.Consume(ctx, caller, big.NewInt(-1)))
	assert.Error(t, m.Consume(ctx, caller, nil))

	m.Reset(caller)
	assert.Equal(t, int64(0), m.Next(caller).Int64())
}

func TestNonceManager_SharedStore(t *testing.T) {
	caller := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	ctx := context.Background()

	store := &fakeNonceStore{accept: false}
	m := NewNonceManager(store)
	assert.ErrorIs(t, m.Consume(ctx, caller, big.NewInt(1)), ErrNonceUsed)
	assert.Equal(t, int64(0), m.Next(caller).Int64())

	store.err = errors.New("redis down")
	assert.Error(t, m.Consume(ctx, caller, big.NewInt(1)))

	store.accept, store.err = true, nil
	assert.NoError(t, m.Consume(ctx, caller, big.NewInt(1)))
	assert.Equal(t, 3, store.calls)
}
