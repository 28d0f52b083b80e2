// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package eventlog

import (
	"encoding/json"
	"errors"
	"sync"

	"github.com/adxyz/slotbid/pkg/log"
	"github.com/adxyz/slotbid/pkg/storage"
)

// ErrAppendFailed wraps storage failures during append. Append never fails
// under normal operation; a persistent storage failure is fatal to the
// process, not recoverable in-process.
var ErrAppendFailed = errors.New("event log append failed")

// Log is the append-only fact log. Sequence numbers are assigned under a
// counter lock but the durable write happens outside it, so log-write latency
// never serializes unrelated slots' bid processing. A contiguous durability
// watermark gates readers: a fact becomes visible only once every lower
// sequence number is durable, so no reader ever sees a gap, a duplicate, or
// an order inversion.
type Log struct {
	store *storage.Storage
	log   log.Logger

	mu        sync.Mutex
	nextSeq   uint64          // last assigned sequence number
	watermark uint64          // highest contiguous durable sequence number
	staged    map[uint64]Fact // durable facts above the watermark
	subs      map[int]chan Fact
	nextSub   int
}

// Open recovers the log state from storage.
func Open(store *storage.Storage, logger log.Logger) (*Log, error) {
	l := &Log{
		store:  store,
		log:    logger,
		staged: make(map[uint64]Fact),
		subs:   make(map[int]chan Fact),
	}

	it := store.FactIterator(0)
	defer it.Release()
	var maxSeq uint64
	for it.Next() {
		var f Fact
		if err := json.Unmarshal(it.Value(), &f); err != nil {
			return nil, err
		}
		if f.Seq > maxSeq {
			maxSeq = f.Seq
		}
	}
	if err := it.Error(); err != nil {
		return nil, err
	}

	l.nextSeq = maxSeq
	l.watermark = maxSeq
	return l, nil
}

// Append assigns the next sequence number to the fact, persists it, and
// publishes it to subscribers once it is contiguous with the watermark.
func (l *Log) Append(f Fact) (uint64, error) {
	l.mu.Lock()
	l.nextSeq++
	seq := l.nextSeq
	l.mu.Unlock()

	f.Seq = seq
	data, err := json.Marshal(f)
	if err != nil {
		return 0, errors.Join(ErrAppendFailed, err)
	}
	if err := l.store.PutFact(seq, data); err != nil {
		// The sequence number stays burned; the watermark will not advance
		// past it, so readers never observe facts beyond the failure.
		l.log.Error("fact write failed", log.Uint64("seq", seq), log.Error(err))
		return 0, errors.Join(ErrAppendFailed, err)
	}

	l.mu.Lock()
	l.staged[seq] = f
	for {
		next, ok := l.staged[l.watermark+1]
		if !ok {
			break
		}
		delete(l.staged, l.watermark+1)
		l.watermark++
		for id, ch := range l.subs {
			select {
			case ch <- next:
			default:
				l.log.Warn("event subscriber lagging, dropping fact",
					log.Int("subscriber", id), log.Uint64("seq", next.Seq))
			}
		}
	}
	l.mu.Unlock()

	return seq, nil
}

// Watermark returns the highest sequence number visible to readers.
func (l *Log) Watermark() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.watermark
}

// ReadFrom returns a cursor over facts with sequence >= from. The cursor is
// finite at any instant: each page observes the watermark at the time it is
// served, so facts appended later surface on later pages, in order, exactly
// once. Callers must Release the cursor.
func (l *Log) ReadFrom(from uint64) *Cursor {
	if from == 0 {
		from = 1
	}
	return &Cursor{log: l, next: from, pageSize: defaultPageSize}
}

// Subscribe returns a live feed of facts appended from now on plus a cancel
// function. Slow subscribers drop facts rather than stall appends; they can
// recover through ReadFrom.
func (l *Log) Subscribe(buffer int) (<-chan Fact, func()) {
	ch := make(chan Fact, buffer)

	l.mu.Lock()
	id := l.nextSub
	l.nextSub++
	l.subs[id] = ch
	l.mu.Unlock()

	cancel := func() {
		l.mu.Lock()
		if _, ok := l.subs[id]; ok {
			delete(l.subs, id)
			close(ch)
		}
		l.mu.Unlock()
	}
	return ch, cancel
}

const defaultPageSize = 64

// Cursor pages through the log in sequence order.
type Cursor struct {
	log      *Log
	next     uint64
	pageSize int

	page []Fact
	idx  int
	cur  Fact
	err  error
}

// Next advances the cursor. It returns false when no more facts are visible
// or an error occurred.
func (c *Cursor) Next() bool {
	if c.err != nil {
		return false
	}
	if c.idx >= len(c.page) {
		if !c.loadPage() {
			return false
		}
	}
	c.cur = c.page[c.idx]
	c.idx++
	return true
}

func (c *Cursor) loadPage() bool {
	watermark := c.log.Watermark()
	if c.next > watermark {
		return false
	}

	it := c.log.store.FactIterator(c.next)
	defer it.Release()

	page := make([]Fact, 0, c.pageSize)
	for it.Next() && len(page) < c.pageSize {
		var f Fact
		if err := json.Unmarshal(it.Value(), &f); err != nil {
			c.err = err
			return false
		}
		if f.Seq > watermark {
			break
		}
		page = append(page, f)
	}
	if err := it.Error(); err != nil {
		c.err = err
		return false
	}
	if len(page) == 0 {
		return false
	}

	c.page = page
	c.idx = 0
	c.next = page[len(page)-1].Seq + 1
	return true
}

// Fact returns the fact at the current position.
func (c *Cursor) Fact() Fact {
	return c.cur
}

// Err returns the first error encountered by the cursor.
func (c *Cursor) Err() error {
	return c.err
}

// Release frees the cursor. Safe to call multiple times.
func (c *Cursor) Release() {
	c.page = nil
	c.idx = 0
}
