// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package storage

import (
	"encoding/binary"
	"fmt"

	"github.com/luxfi/database"
	"github.com/luxfi/database/badgerdb"
	"github.com/luxfi/database/memdb"

	"github.com/adxyz/slotbid/pkg/ids"
)

// Key prefixes. Slots are keyed by creation sequence so iteration yields
// creation order; facts are keyed by log sequence for the same reason.
var (
	slotPrefix = []byte("slot/")
	bidPrefix  = []byte("bid/")
	factPrefix = []byte("fact/")
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = database.ErrNotFound

// Storage is the durable key-value layer for slots, current bids, and the
// event log, backed by luxfi/database.
type Storage struct {
	db database.Database
}

// New creates a storage instance. Supported backends: "memory", "badger".
func New(dbType string, path string) (*Storage, error) {
	switch dbType {
	case "memory":
		return &Storage{db: memdb.New()}, nil
	case "badger", "":
		db, err := badgerdb.New(path, nil, "", nil)
		if err != nil {
			return nil, err
		}
		return &Storage{db: db}, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", dbType)
	}
}

// NewMemory creates an in-memory storage instance for tests.
func NewMemory() *Storage {
	return &Storage{db: memdb.New()}
}

// PutSlot stores an immutable slot record under its creation sequence.
func (s *Storage) PutSlot(seq uint64, data []byte) error {
	return s.db.Put(slotKey(seq), data)
}

// SlotIterator iterates slot records in creation order. The caller must
// release it.
func (s *Storage) SlotIterator() database.Iterator {
	return s.db.NewIteratorWithPrefix(slotPrefix)
}

// PutCurrentBid stores the current bid for a slot, replacing any previous
// holder's record.
func (s *Storage) PutCurrentBid(id ids.SlotID, data []byte) error {
	return s.db.Put(bidKey(id), data)
}

// GetCurrentBid returns the stored current bid for a slot, or ErrNotFound if
// the slot has never been bid on.
func (s *Storage) GetCurrentBid(id ids.SlotID) ([]byte, error) {
	return s.db.Get(bidKey(id))
}

// PutFact stores an event-log fact under its sequence number.
func (s *Storage) PutFact(seq uint64, data []byte) error {
	return s.db.Put(factKey(seq), data)
}

// FactIterator iterates facts with sequence >= from, in sequence order.
func (s *Storage) FactIterator(from uint64) database.Iterator {
	return s.db.NewIteratorWithStartAndPrefix(factKey(from), factPrefix)
}

// Close closes the underlying database.
func (s *Storage) Close() error {
	return s.db.Close()
}

// Database exposes the underlying database for batch operations.
func (s *Storage) Database() database.Database {
	return s.db
}

func slotKey(seq uint64) []byte {
	return appendUint64(slotPrefix, seq)
}

func bidKey(id ids.SlotID) []byte {
	key := make([]byte, 0, len(bidPrefix)+ids.SlotIDLen)
	key = append(key, bidPrefix...)
	return append(key, id.Bytes()...)
}

func factKey(seq uint64) []byte {
	return appendUint64(factPrefix, seq)
}

func appendUint64(prefix []byte, v uint64) []byte {
	key := make([]byte, len(prefix)+8)
	copy(key, prefix)
	binary.BigEndian.PutUint64(key[len(prefix):], v)
	return key
}
