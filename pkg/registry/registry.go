// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/adxyz/slotbid/pkg/eventlog"
	"github.com/adxyz/slotbid/pkg/ids"
	"github.com/adxyz/slotbid/pkg/log"
	"github.com/adxyz/slotbid/pkg/storage"
)

var (
	ErrNotFound          = errors.New("slot not found")
	ErrInvalidDimensions = errors.New("slot dimensions must be positive")
	ErrInvalidName       = errors.New("slot name and domain must not be empty")
)

// Slot is a registered advertising placement. Slots are immutable after
// creation and are never deleted; only the associated current bid changes.
type Slot struct {
	ID         ids.SlotID `json:"id"`
	Name       string     `json:"name"`
	DomainName string     `json:"domain_name"`
	Width      int64      `json:"width"`
	Height     int64      `json:"height"`
	Owner      string     `json:"owner"`
	Seq        uint64     `json:"seq"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Registry owns the set of advertising slots.
type Registry struct {
	store  *storage.Storage
	events *eventlog.Log
	log    log.Logger

	mu      sync.RWMutex
	byID    map[ids.SlotID]*Slot
	ordered []*Slot // creation order, append-only
	nextSeq uint64
}

// Open loads the registry from storage.
func Open(store *storage.Storage, events *eventlog.Log, logger log.Logger) (*Registry, error) {
	r := &Registry{
		store:  store,
		events: events,
		log:    logger,
		byID:   make(map[ids.SlotID]*Slot),
	}

	it := store.SlotIterator()
	defer it.Release()
	for it.Next() {
		slot := new(Slot)
		if err := json.Unmarshal(it.Value(), slot); err != nil {
			return nil, fmt.Errorf("corrupt slot record: %w", err)
		}
		r.byID[slot.ID] = slot
		r.ordered = append(r.ordered, slot)
		if slot.Seq > r.nextSeq {
			r.nextSeq = slot.Seq
		}
	}
	if err := it.Error(); err != nil {
		return nil, err
	}

	return r, nil
}

// CreateSlot registers a new slot and appends a SlotCreated fact. The
// returned identifier is fresh and never reused.
func (r *Registry) CreateSlot(name, domainName string, width, height int64, owner string) (*Slot, error) {
	if width <= 0 || height <= 0 {
		return nil, ErrInvalidDimensions
	}
	if name == "" || domainName == "" {
		return nil, ErrInvalidName
	}
	if owner == "" {
		return nil, ErrInvalidName
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	seq := r.nextSeq + 1
	id := ids.DeriveSlotID(owner, seq)
	if _, exists := r.byID[id]; exists {
		return nil, fmt.Errorf("slot ID collision at seq %d", seq)
	}

	slot := &Slot{
		ID:         id,
		Name:       name,
		DomainName: domainName,
		Width:      width,
		Height:     height,
		Owner:      owner,
		Seq:        seq,
		CreatedAt:  time.Now().UTC(),
	}

	data, err := json.Marshal(slot)
	if err != nil {
		return nil, err
	}
	if err := r.store.PutSlot(seq, data); err != nil {
		return nil, fmt.Errorf("persist slot: %w", err)
	}

	r.byID[id] = slot
	r.ordered = append(r.ordered, slot)
	r.nextSeq = seq

	if _, err := r.events.Append(eventlog.Fact{
		Kind: eventlog.KindSlotCreated,
		SlotCreated: &eventlog.SlotCreated{
			SlotID:     slot.ID,
			Name:       slot.Name,
			DomainName: slot.DomainName,
			Width:      slot.Width,
			Height:     slot.Height,
			Owner:      slot.Owner,
			SlotSeq:    slot.Seq,
			CreatedAt:  slot.CreatedAt,
		},
	}); err != nil {
		return nil, err
	}

	r.log.Info("slot created",
		log.String("slot", slot.ID.String()),
		log.String("domain", slot.DomainName),
		log.Uint64("seq", slot.Seq))

	return slot, nil
}

// Get returns a slot by identifier.
func (r *Registry) Get(id ids.SlotID) (*Slot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	slot, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return slot, nil
}

// List returns all slots in creation order. The result is a snapshot: it
// contains every slot that existed when List was called, may omit slots
// created afterwards, and never contains a partially constructed slot (slots
// are immutable and published only after persistence).
func (r *Registry) List() []*Slot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Slot, len(r.ordered))
	copy(out, r.ordered)
	return out
}

// Len returns the number of registered slots.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.ordered)
}
