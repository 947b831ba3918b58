// Package bank provides the in-process reference implementation of the
// balance ledger the escrow engine settles against. Each call is atomic:
// a transfer either moves the full amount or leaves both accounts
// untouched.
package bank

import (
	"errors"
	"fmt"
	"sync"
)

// ErrInsufficientBalance is returned when a debit exceeds the account
// balance.
var ErrInsufficientBalance = errors.New("insufficient balance")

// Ledger is a mutex-guarded account store with burn tracking. Burned
// funds are removed from circulation permanently and only accumulate.
type Ledger struct {
	mu       sync.Mutex
	balances map[string]uint64
	burned   uint64
}

// New creates an empty ledger.
func New() *Ledger {
	return &Ledger{balances: make(map[string]uint64)}
}

// Mint credits amount to addr out of thin air. Funding primitive for
// tests and the reference deployment; a production ledger would back
// this with deposits.
func (l *Ledger) Mint(addr string, amount uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[addr] += amount
}

// Transfer moves amount from one account to another atomically.
func (l *Ledger) Transfer(from, to string, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.balances[from] < amount {
		return fmt.Errorf("transfer %d from %s: %w", amount, from, ErrInsufficientBalance)
	}
	l.balances[from] -= amount
	l.balances[to] += amount
	return nil
}

// Burn removes amount from addr and from circulation.
func (l *Ledger) Burn(from string, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.balances[from] < amount {
		return fmt.Errorf("burn %d from %s: %w", amount, from, ErrInsufficientBalance)
	}
	l.balances[from] -= amount
	l.burned += amount
	return nil
}

// BalanceOf returns the current balance of addr. Unknown accounts
// report zero.
func (l *Ledger) BalanceOf(addr string) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[addr]
}

// TotalBurned returns the cumulative amount removed from circulation.
func (l *Ledger) TotalBurned() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.burned
}
