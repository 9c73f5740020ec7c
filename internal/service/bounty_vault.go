package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// Payout is one transfer out of the vault.
type Payout struct {
	To     common.Address
	Amount decimal.Decimal
}

// MemoryBountyVault keeps the reward balance in process. Transfers are recorded
// so an operator can reconcile them against a real treasury.
type MemoryBountyVault struct {
	mu      sync.Mutex
	balance decimal.Decimal
	payouts []Payout
}

func NewMemoryBountyVault(initial decimal.Decimal) *MemoryBountyVault {
	if initial.IsNegative() {
		initial = decimal.Zero
	}
	return &MemoryBountyVault{balance: initial}
}

func (v *MemoryBountyVault) Balance(ctx context.Context) (decimal.Decimal, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.balance, nil
}

func (v *MemoryBountyVault) Deposit(ctx context.Context, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("deposit must be positive")
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.balance = v.balance.Add(amount)
	return nil
}

func (v *MemoryBountyVault) Pay(ctx context.Context, to common.Address, amount decimal.Decimal) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if amount.GreaterThan(v.balance) {
		return fmt.Errorf("insufficient balance: have %s, want %s", v.balance, amount)
	}
	v.balance = v.balance.Sub(amount)
	v.payouts = append(v.payouts, Payout{To: to, Amount: amount})
	return nil
}

func (v *MemoryBountyVault) RestoreBalance(balance decimal.Decimal) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.balance = balance
}

func (v *MemoryBountyVault) Payouts() []Payout {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]Payout(nil), v.payouts...)
}
