package service

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
)

// CodeReader is the slice of ethclient the guard needs.
type CodeReader interface {
	CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error)
}

// EOAGuard rejects contract callers by looking for deployed code at the
// caller's address. Results are cached; an address that has code never loses it
// within the cache TTL.
type EOAGuard struct {
	rpcURL   string
	mu       sync.Mutex
	client   CodeReader
	cacheTTL time.Duration
	cache    map[common.Address]cacheEntry
	timeout  time.Duration
	retries  int
}

type cacheEntry struct {
	isContract bool
	expires    time.Time
}

func NewEOAGuard(rpcURL string, ttl time.Duration, timeout time.Duration, retries int) *EOAGuard {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if retries < 0 {
		retries = 0
	}
	return &EOAGuard{
		rpcURL:   strings.TrimSpace(rpcURL),
		cacheTTL: ttl,
		cache:    make(map[common.Address]cacheEntry),
		timeout:  timeout,
		retries:  retries,
	}
}

// NewEOAGuardWithClient is used when a client already exists (and in tests).
func NewEOAGuardWithClient(client CodeReader, ttl time.Duration) *EOAGuard {
	g := NewEOAGuard("", ttl, 0, 0)
	g.client = client
	return g
}

func (g *EOAGuard) IsContract(ctx context.Context, addr common.Address) (bool, error) {
	if hit, ok := g.cacheGet(addr); ok {
		return hit, nil
	}

	var lastErr error
	for attempt := 0; attempt <= g.retries; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, g.timeout)
		client, err := g.getClient(attemptCtx)
		if err != nil {
			cancel()
			lastErr = err
			if !shouldRetry(ctx, attempt, g.retries) {
				break
			}
			continue
		}

		code, err := client.CodeAt(attemptCtx, addr, nil)
		cancel()
		if err != nil {
			lastErr = fmt.Errorf("rpc call failed: %w", err)
			if !shouldRetry(ctx, attempt, g.retries) {
				break
			}
			continue
		}
		isContract := len(code) > 0
		g.cacheSet(addr, isContract)
		return isContract, nil
	}
	return false, lastErr
}

func (g *EOAGuard) getClient(ctx context.Context) (CodeReader, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.client != nil {
		return g.client, nil
	}
	if g.rpcURL == "" {
		return nil, fmt.Errorf("rpc url not configured")
	}
	client, err := ethclient.DialContext(ctx, g.rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect rpc: %w", err)
	}
	g.client = client
	return g.client, nil
}

func (g *EOAGuard) cacheGet(addr common.Address) (bool, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	entry, ok := g.cache[addr]
	if !ok {
		return false, false
	}
	if time.Now().After(entry.expires) {
		delete(g.cache, addr)
		return false, false
	}
	return entry.isContract, true
}

func (g *EOAGuard) cacheSet(addr common.Address, isContract bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cache[addr] = cacheEntry{
		isContract: isContract,
		expires:    time.Now().Add(g.cacheTTL),
	}
}

func shouldRetry(ctx context.Context, attempt, max int) bool {
	if attempt >= max {
		return false
	}
	select {
	case <-ctx.Done():
		return false
	default:
	}
	time.Sleep(time.Duration(attempt+1) * 200 * time.Millisecond)
	return true
}
