// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package registry

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/adxyz/slotbid/pkg/eventlog"
	"github.com/adxyz/slotbid/pkg/ids"
	"github.com/adxyz/slotbid/pkg/log"
	"github.com/adxyz/slotbid/pkg/storage"
)

func newRegistry(t *testing.T) (*Registry, *storage.Storage, *eventlog.Log) {
	t.Helper()
	store := storage.NewMemory()
	events, err := eventlog.Open(store, log.NoOp())
	require.NoError(t, err)
	reg, err := Open(store, events, log.NoOp())
	require.NoError(t, err)
	return reg, store, events
}

func TestCreateSlot(t *testing.T) {
	require := require.New(t)
	reg, _, events := newRegistry(t)

	slot, err := reg.CreateSlot("Header", "example.com", 728, 90, "ownerX")
	require.NoError(err)
	require.False(slot.ID.IsEmpty())
	require.Equal(uint64(1), slot.Seq)
	require.Equal("example.com", slot.DomainName)
	require.Equal(int64(728), slot.Width)
	require.Equal(int64(90), slot.Height)

	// Creation appended a SlotCreated fact.
	cursor := events.ReadFrom(1)
	defer cursor.Release()
	require.True(cursor.Next())
	f := cursor.Fact()
	require.Equal(eventlog.KindSlotCreated, f.Kind)
	require.Equal(slot.ID, f.SlotCreated.SlotID)
	require.Equal(slot.Seq, f.SlotCreated.SlotSeq)
}

func TestCreateSlotValidation(t *testing.T) {
	require := require.New(t)
	reg, _, _ := newRegistry(t)

	_, err := reg.CreateSlot("Header", "example.com", 0, 90, "ownerX")
	require.ErrorIs(err, ErrInvalidDimensions)

	_, err = reg.CreateSlot("Header", "example.com", 728, -1, "ownerX")
	require.ErrorIs(err, ErrInvalidDimensions)

	_, err = reg.CreateSlot("", "example.com", 728, 90, "ownerX")
	require.ErrorIs(err, ErrInvalidName)

	_, err = reg.CreateSlot("Header", "", 728, 90, "ownerX")
	require.ErrorIs(err, ErrInvalidName)

	require.Equal(0, reg.Len())
}

func TestGet(t *testing.T) {
	require := require.New(t)
	reg, _, _ := newRegistry(t)

	slot, err := reg.CreateSlot("Header", "example.com", 728, 90, "ownerX")
	require.NoError(err)

	got, err := reg.Get(slot.ID)
	require.NoError(err)
	require.Equal(slot, got)

	_, err = reg.Get(ids.GenerateTestID())
	require.ErrorIs(err, ErrNotFound)
}

func TestIdentifiersNeverReused(t *testing.T) {
	require := require.New(t)
	reg, _, _ := newRegistry(t)

	seen := make(map[ids.SlotID]bool)
	var lastSeq uint64
	for i := 0; i < 100; i++ {
		slot, err := reg.CreateSlot("Slot", "example.com", 300, 250, "ownerX")
		require.NoError(err)
		require.False(seen[slot.ID], "identifier reused")
		seen[slot.ID] = true
		require.Greater(slot.Seq, lastSeq, "sequence must strictly increase")
		lastSeq = slot.Seq
	}
}

func TestListSnapshot(t *testing.T) {
	require := require.New(t)
	reg, _, _ := newRegistry(t)

	var created []ids.SlotID
	for i := 0; i < 10; i++ {
		slot, err := reg.CreateSlot("Slot", "example.com", 300, 250, "ownerX")
		require.NoError(err)
		created = append(created, slot.ID)
	}

	listed := reg.List()
	require.Len(listed, 10)
	for i, slot := range listed {
		require.Equal(created[i], slot.ID, "creation order preserved")
	}

	// Listing concurrent with creation never omits a pre-existing slot.
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			reg.CreateSlot("Slot", "example.com", 300, 250, "ownerY")
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			snapshot := reg.List()
			require.GreaterOrEqual(len(snapshot), 10)
			for j, id := range created {
				require.Equal(id, snapshot[j].ID)
			}
		}
	}()
	wg.Wait()
}

func TestReopenRestoresSlots(t *testing.T) {
	require := require.New(t)
	store := storage.NewMemory()
	events, err := eventlog.Open(store, log.NoOp())
	require.NoError(err)
	reg, err := Open(store, events, log.NoOp())
	require.NoError(err)

	slot, err := reg.CreateSlot("Header", "example.com", 728, 90, "ownerX")
	require.NoError(err)

	reopened, err := Open(store, events, log.NoOp())
	require.NoError(err)
	require.Equal(1, reopened.Len())

	got, err := reopened.Get(slot.ID)
	require.NoError(err)
	require.Equal(slot.ID, got.ID)
	require.Equal(slot.Seq, got.Seq)

	// Sequence numbering continues past the restored high-water mark.
	next, err := reopened.CreateSlot("Footer", "example.com", 728, 90, "ownerX")
	require.NoError(err)
	require.Equal(slot.Seq+1, next.Seq)
}
