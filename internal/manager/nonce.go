package manager

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/GoPolymarket/levergate/internal/pkg/logger"
	"github.com/ethereum/go-ethereum/common"
)

// ErrNonceUsed is returned for a nonce at or below the caller's last consumed one.
var ErrNonceUsed = fmt.Errorf("nonce already used")

// NonceStore shares consumed nonces between replicas. Consume must atomically
// accept only a nonce above the last one stored for caller.
type NonceStore interface {
	Consume(ctx context.Context, caller common.Address, nonce *big.Int) (bool, error)
}

// NonceManager enforces strictly increasing per-caller nonces on signed calls,
// so a captured signature cannot be replayed.
type NonceManager struct {
	mu    sync.Mutex
	last  map[common.Address]*big.Int
	store NonceStore
}

func NewNonceManager(store NonceStore) *NonceManager {
	return &NonceManager{
		last:  make(map[common.Address]*big.Int),
		store: store,
	}
}

// Next returns the lowest nonce the caller may use.
func (m *NonceManager) Next(caller common.Address) *big.Int {
	m.mu.Lock()
	defer m.mu.Unlock()
	last, ok := m.last[caller]
	if !ok {
		return big.NewInt(0)
	}
	return new(big.Int).Add(last, big.NewInt(1))
}

// Consume records nonce for caller. Call this before executing the request.
func (m *NonceManager) Consume(ctx context.Context, caller common.Address, nonce *big.Int) error {
	if nonce == nil || nonce.Sign() < 0 {
		return fmt.Errorf("invalid nonce")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if last, ok := m.last[caller]; ok && nonce.Cmp(last) <= 0 {
		return fmt.Errorf("%w: got %s, next is %s", ErrNonceUsed, nonce, new(big.Int).Add(last, big.NewInt(1)))
	}

	if m.store != nil {
		ok, err := m.store.Consume(ctx, caller, nonce)
		if err != nil {
			return fmt.Errorf("nonce store: %w", err)
		}
		if !ok {
			return fmt.Errorf("%w: got %s", ErrNonceUsed, nonce)
		}
	}

	m.last[caller] = new(big.Int).Set(nonce)
	return nil
}

// Reset forgets the local view of caller's nonce; the shared store still applies.
func (m *NonceManager) Reset(caller common.Address) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.last, caller)
	logger.Info("Reset caller nonce", "address", caller.Hex())
}
