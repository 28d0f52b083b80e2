// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package coordinator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/adxyz/slotbid/pkg/bank"
	"github.com/adxyz/slotbid/pkg/eventlog"
	"github.com/adxyz/slotbid/pkg/ledger"
	"github.com/adxyz/slotbid/pkg/log"
	"github.com/adxyz/slotbid/pkg/registry"
	"github.com/adxyz/slotbid/pkg/settlement"
	"github.com/adxyz/slotbid/pkg/storage"
)

func newCoordinator(t *testing.T) (*Coordinator, *bank.Bank) {
	t.Helper()
	require := require.New(t)

	store := storage.NewMemory()
	events, err := eventlog.Open(store, log.NoOp())
	require.NoError(err)
	reg, err := registry.Open(store, events, log.NoOp())
	require.NoError(err)
	b := bank.New(log.NoOp())

	l, err := ledger.New(ledger.Config{
		Registry: reg,
		Store:    store,
		Events:   events,
		Funds:    b,
		Policy:   settlement.DefaultPolicy,
	})
	require.NoError(err)

	return New(Config{Registry: reg, Ledger: l, Events: events}), b
}

func TestLifecycle(t *testing.T) {
	require := require.New(t)
	c, b := newCoordinator(t)

	slot, err := c.CreateSlot("Header", "example.com", 728, 90, "ownerX")
	require.NoError(err)
	require.Len(c.ListSlots(), 1)

	got, err := c.GetSlot(slot.ID)
	require.NoError(err)
	require.Equal(slot.ID, got.ID)

	require.NoError(b.Deposit("alice", 100))
	rcpt, err := c.PlaceBid(context.Background(), slot.ID, "alice", 100, "cidA")
	require.NoError(err)
	require.False(rcpt.Replaced)

	bid, err := c.GetCurrentBid(slot.ID)
	require.NoError(err)
	require.Equal("alice", bid.Bidder)

	// Creation and bid are both on the fact stream.
	cursor := c.Events(1)
	defer cursor.Release()
	require.True(cursor.Next())
	require.Equal(eventlog.KindSlotCreated, cursor.Fact().Kind)
	require.True(cursor.Next())
	require.Equal(eventlog.KindBidPlaced, cursor.Fact().Kind)
}

func TestRejectReason(t *testing.T) {
	require := require.New(t)

	require.Equal("not_found", RejectReason(registry.ErrNotFound))
	require.Equal("bid_too_low", RejectReason(ledger.ErrBidTooLow))
	require.Equal("zero_bid", RejectReason(ledger.ErrZeroBid))
	require.Equal("invalid_creative", RejectReason(ledger.ErrInvalidCreative))
	require.Equal("settlement_failed", RejectReason(ledger.ErrSettlementFailed))
	require.Equal("canceled", RejectReason(context.Canceled))
	require.Equal("internal", RejectReason(ledger.ErrInternal))
}
