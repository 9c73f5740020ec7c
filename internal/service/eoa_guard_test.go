package service

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCodeReader struct {
	mu    sync.Mutex
	code  map[common.Address][]byte
	calls int
	fail  int
}

func (f *fakeCodeReader) CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.fail > 0 {
		f.fail--
		return nil, errors.New("connection reset")
	}
	return f.code[account], nil
}

func TestEOAGuard_IsContract(t *testing.T) {
	contract := common.HexToAddress("0xc0ffee")
	eoa := common.HexToAddress("0xbeef")
	reader := &fakeCodeReader{code: map[common.Address][]byte{contract: {0x60, 0x80}}}
	g := NewEOAGuardWithClient(reader, time.Minute)

	isContract, err := g.IsContract(context.Background(), contract)
	require.NoError(t, err)
	assert.True(t, isContract)

	isContract, err = g.IsContract(context.Background(), eoa)
	require.NoError(t, err)
	assert.False(t, isContract)

	// cached
	_, err = g.IsContract(context.Background(), contract)
	require.NoError(t, err)
	assert.Equal(t, 2, reader.calls)
}

func TestEOAGuard_Retries(t *testing.T) {
	reader := &fakeCodeReader{fail: 1}
	g := NewEOAGuardWithClient(reader, time.Minute)
	g.retries = 1

	isContract, err := g.IsContract(context.Background(), common.HexToAddress("0x01"))
	require.NoError(t, err)
	assert.False(t, isContract)
	assert.Equal(t, 2, reader.calls)
}

func TestEOAGuard_NoRPC(t *testing.T) {
	g := NewEOAGuard("", time.Minute, time.Second, 0)
	_, err := g.IsContract(context.Background(), common.HexToAddress("0x01"))
	assert.ErrorContains(t, err, "rpc url not configured")
}
