// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package bank

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/adxyz/slotbid/pkg/log"
)

func TestDepositAndBalance(t *testing.T) {
	require := require.New(t)
	b := New(log.NoOp())

	require.NoError(b.Deposit("alice", 100))
	require.NoError(b.Deposit("alice", 50))
	require.Equal(uint64(150), b.Balance("alice"))
	require.Equal(uint64(0), b.Balance("unknown"))

	require.ErrorIs(b.Deposit("alice", 0), ErrInvalidAmount)
	require.ErrorIs(b.Deposit("", 10), ErrInvalidAccount)
}

func TestTransfer(t *testing.T) {
	require := require.New(t)
	b := New(log.NoOp())

	require.NoError(b.Deposit("alice", 100))
	require.NoError(b.Transfer("alice", "bob", 40))
	require.Equal(uint64(60), b.Balance("alice"))
	require.Equal(uint64(40), b.Balance("bob"))

	require.ErrorIs(b.Transfer("alice", "bob", 1000), ErrInsufficientFunds)
	require.Equal(uint64(60), b.Balance("alice"))
}

func TestTransferBlocked(t *testing.T) {
	require := require.New(t)
	b := New(log.NoOp())

	require.NoError(b.Deposit("alice", 100))
	b.Block("bob")

	require.ErrorIs(b.Transfer("alice", "bob", 10), ErrAccountBlocked)
	require.Equal(uint64(100), b.Balance("alice"))

	b.Unblock("bob")
	require.NoError(b.Transfer("alice", "bob", 10))
}

func TestTransferAllAtomic(t *testing.T) {
	require := require.New(t)
	b := New(log.NoOp())

	require.NoError(b.Deposit("escrow", 100))

	// Second leg fails, first must not apply.
	err := b.TransferAll([]Leg{
		{From: "escrow", To: "alice", Amount: 90},
		{From: "escrow", To: "bob", Amount: 20},
	})
	require.ErrorIs(err, ErrInsufficientFunds)
	require.Equal(uint64(100), b.Balance("escrow"))
	require.Equal(uint64(0), b.Balance("alice"))

	// All legs clear together.
	require.NoError(b.TransferAll([]Leg{
		{From: "escrow", To: "alice", Amount: 90},
		{From: "escrow", To: "bob", Amount: 7},
		{From: "escrow", To: "treasury", Amount: 3},
	}))
	require.Equal(uint64(0), b.Balance("escrow"))
	require.Equal(uint64(90), b.Balance("alice"))
	require.Equal(uint64(7), b.Balance("bob"))
	require.Equal(uint64(3), b.Balance("treasury"))
}

func TestTransferAllBlockedRecipient(t *testing.T) {
	require := require.New(t)
	b := New(log.NoOp())

	require.NoError(b.Deposit("escrow", 100))
	b.Block("alice")

	err := b.TransferAll([]Leg{
		{From: "escrow", To: "bob", Amount: 10},
		{From: "escrow", To: "alice", Amount: 10},
	})
	require.ErrorIs(err, ErrAccountBlocked)
	require.Equal(uint64(100), b.Balance("escrow"))
	require.Equal(uint64(0), b.Balance("bob"))
}

func TestTransfersConserveSupply(t *testing.T) {
	require := require.New(t)
	b := New(log.NoOp())

	require.NoError(b.Deposit("alice", 1000))
	require.NoError(b.Deposit("bob", 1000))
	supply := b.TotalSupply()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			b.Transfer("alice", "bob", 10)
		}()
		go func() {
			defer wg.Done()
			b.Transfer("bob", "alice", 10)
		}()
	}
	wg.Wait()

	require.Equal(supply, b.TotalSupply())
}
