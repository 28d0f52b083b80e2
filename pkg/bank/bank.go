// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package bank

import (
	"errors"
	"fmt"
	"sync"

	"github.com/adxyz/slotbid/pkg/log"
)

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrAccountBlocked    = errors.New("account blocked")
	ErrInvalidAmount     = errors.New("amount must be positive")
	ErrInvalidAccount    = errors.New("invalid account")
)

// Leg is one transfer of a multi-leg payout.
type Leg struct {
	From   string
	To     string
	Amount uint64
}

// Bank is an in-memory account ledger with all-or-nothing transfers. It is
// the fund-transfer primitive backing bid escrow and settlement payouts.
//
// Accounts can be blocked to simulate recipients that cannot accept funds;
// any transfer touching a blocked account fails without moving anything.
type Bank struct {
	mu       sync.Mutex
	balances map[string]uint64
	blocked  map[string]bool
	log      log.Logger
}

// New creates an empty bank.
func New(logger log.Logger) *Bank {
	return &Bank{
		balances: make(map[string]uint64),
		blocked:  make(map[string]bool),
		log:      logger,
	}
}

// Deposit credits an account. Used by the faucet/deposit surface; deposits
// into the system are external to the auction protocol itself.
func (b *Bank) Deposit(account string, amount uint64) error {
	if account == "" {
		return ErrInvalidAccount
	}
	if amount == 0 {
		return ErrInvalidAmount
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.blocked[account] {
		return fmt.Errorf("%w: %s", ErrAccountBlocked, account)
	}
	b.balances[account] += amount
	return nil
}

// Balance returns the current balance of an account. Unknown accounts have a
// zero balance.
func (b *Bank) Balance(account string) uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.balances[account]
}

// Transfer moves amount from one account to another, all or nothing.
func (b *Bank) Transfer(from, to string, amount uint64) error {
	return b.TransferAll([]Leg{{From: from, To: to, Amount: amount}})
}

// TransferAll applies every leg or none of them. The legs are staged against
// a scratch view of the touched balances and committed only when every leg
// clears, so a failure partway through leaves the ledger untouched.
func (b *Bank) TransferAll(legs []Leg) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	stage := make(map[string]uint64, 2*len(legs))
	balance := func(account string) uint64 {
		if v, ok := stage[account]; ok {
			return v
		}
		return b.balances[account]
	}

	for _, leg := range legs {
		if leg.From == "" || leg.To == "" {
			return ErrInvalidAccount
		}
		if leg.Amount == 0 {
			return ErrInvalidAmount
		}
		if b.blocked[leg.From] {
			return fmt.Errorf("%w: %s", ErrAccountBlocked, leg.From)
		}
		if b.blocked[leg.To] {
			return fmt.Errorf("%w: %s", ErrAccountBlocked, leg.To)
		}

		fromBalance := balance(leg.From)
		if fromBalance < leg.Amount {
			return fmt.Errorf("%w: %s has %d, needs %d", ErrInsufficientFunds, leg.From, fromBalance, leg.Amount)
		}
		stage[leg.From] = fromBalance - leg.Amount
		stage[leg.To] = balance(leg.To) + leg.Amount
	}

	for account, v := range stage {
		b.balances[account] = v
	}
	return nil
}

// Block marks an account as unable to send or receive funds.
func (b *Bank) Block(account string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.blocked[account] = true
}

// Unblock clears a block.
func (b *Bank) Unblock(account string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.blocked, account)
}

// TotalSupply returns the sum of all balances. Transfers conserve it; only
// deposits change it.
func (b *Bank) TotalSupply() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	var total uint64
	for _, v := range b.balances {
		total += v
	}
	return total
}
