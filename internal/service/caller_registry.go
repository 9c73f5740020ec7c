package service

import (
	"fmt"
	"sync"

	"github.com/GoPolymarket/levergate/internal/config"
	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/time/rate"
)

// CallerRegistry 管理操作员、白名单调用者以及每个调用者的限流器
type CallerRegistry struct {
	mu             sync.RWMutex
	operators      map[common.Address]struct{}
	allowed        map[common.Address]bool
	anyoneCallable bool
	limiters       map[common.Address]*rate.Limiter
	limit          rate.Limit
	burst          int
}

func NewCallerRegistry(cfg config.AccessConfig) (*CallerRegistry, error) {
	operators, err := config.Addresses("access.operators", cfg.Operators)
	if err != nil {
		return nil, err
	}
	allowed, err := config.Addresses("access.allowed_callers", cfg.AllowedCallers)
	if err != nil {
		return nil, err
	}

	// 配置为0时不限流
	limit := rate.Limit(cfg.RateQPS)
	if limit == 0 {
		limit = rate.Inf
	}
	burst := cfg.RateBurst
	if burst == 0 {
		burst = 1
	}

	r := &CallerRegistry{
		operators:      make(map[common.Address]struct{}, len(operators)),
		allowed:        make(map[common.Address]bool, len(allowed)),
		anyoneCallable: cfg.AnyoneCallable,
		limiters:       make(map[common.Address]*rate.Limiter),
		limit:          limit,
		burst:          burst,
	}
	for _, op := range operators {
		r.operators[op] = struct{}{}
	}
	for _, c := range allowed {
		r.allowed[c] = true
	}
	return r, nil
}

func (r *CallerRegistry) IsOperator(caller common.Address) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.operators[caller]
	return ok
}

// IsAllowedTrader is true for listed callers, operators, or anyone when the
// anyone-callable switch is on.
func (r *CallerRegistry) IsAllowedTrader(caller common.Address) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.anyoneCallable || r.allowed[caller] {
		return true
	}
	_, op := r.operators[caller]
	return op
}

func (r *CallerRegistry) UpdateCallerStatus(callers []common.Address, statuses []bool) error {
	if len(callers) != len(statuses) {
		return fmt.Errorf("array length mismatch: %d callers, %d statuses", len(callers), len(statuses))
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, c := range callers {
		if statuses[i] {
			r.allowed[c] = true
		} else {
			delete(r.allowed, c)
		}
	}
	return nil
}

func (r *CallerRegistry) SetAnyoneCallable(status bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.anyoneCallable = status
}

func (r *CallerRegistry) AnyoneCallable() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.anyoneCallable
}

// AllowedCallers lists explicitly allowed addresses.
func (r *CallerRegistry) AllowedCallers() []common.Address {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]common.Address, 0, len(r.allowed))
	for c := range r.allowed {
		out = append(out, c)
	}
	return out
}

// Limiter 获取或懒加载调用者的限流器
func (r *CallerRegistry) Limiter(caller common.Address) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()
	if l, ok := r.limiters[caller]; ok {
		return l
	}
	l := rate.NewLimiter(r.limit, r.burst)
	r.limiters[caller] = l
	return l
}
