// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package ledger holds, per slot, the single currently-escrowed bid and runs
// the atomic replace-and-settle protocol: a strictly higher bid evicts the
// previous holder, refunds it net of fees, and pays the slot owner and the
// platform treasury, all as one indivisible transition.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/adxyz/slotbid/pkg/bank"
	"github.com/adxyz/slotbid/pkg/eventlog"
	"github.com/adxyz/slotbid/pkg/ids"
	"github.com/adxyz/slotbid/pkg/log"
	"github.com/adxyz/slotbid/pkg/registry"
	"github.com/adxyz/slotbid/pkg/settlement"
	"github.com/adxyz/slotbid/pkg/storage"
	"github.com/adxyz/slotbid/pkg/verify"
)

var (
	ErrBidTooLow        = errors.New("bid not above current bid")
	ErrZeroBid          = errors.New("first bid must be positive")
	ErrInvalidCreative  = errors.New("invalid creative")
	ErrSettlementFailed = errors.New("settlement failed")
	ErrInternal         = errors.New("internal ledger failure")
)

// Funds is the fund-transfer capability the ledger requires. Both methods
// are all-or-nothing.
type Funds interface {
	Transfer(from, to string, amount uint64) error
	TransferAll(legs []bank.Leg) error
}

// Accounts names the system accounts settlement moves money through.
type Accounts struct {
	Escrow   string
	Treasury string
}

// DefaultAccounts are the account names used by the daemon.
var DefaultAccounts = Accounts{
	Escrow:   "sys:escrow",
	Treasury: "sys:treasury",
}

// Bid is the current holder of a slot. Superseded bids are not retained in
// the ledger; they are echoed into the event log only.
type Bid struct {
	Bidder      string    `json:"bidder"`
	Amount      uint64    `json:"amount"`
	CreativeCID string    `json:"creative_cid"`
	AcceptedAt  time.Time `json:"accepted_at"`
}

// Receipt identifies an accepted bid and any refund issued to the evicted
// holder.
type Receipt struct {
	ReceiptID  string     `json:"receipt_id"`
	SlotID     ids.SlotID `json:"slot_id"`
	Bid        Bid        `json:"bid"`
	Replaced   bool       `json:"replaced"`
	PrevBidder string     `json:"prev_bidder,omitempty"`
	Refunded   uint64     `json:"refunded,omitempty"`
	EventSeq   uint64     `json:"event_seq"`
}

// Config wires the ledger's collaborators.
type Config struct {
	Registry *registry.Registry
	Store    *storage.Storage
	Events   *eventlog.Log
	Funds    Funds
	Verifier verify.Verifier
	Policy   settlement.Policy
	Accounts Accounts
	Log      log.Logger
}

// entry is one slot's bid state. The semaphore is the slot's critical
// section: writers hold it for the whole read-validate-settle-write-log
// sequence, readers hold it just long enough to observe a consistent state.
// Waiting on it honors context cancellation; once acquired, the operation
// runs to completion.
type entry struct {
	sem chan struct{}
	bid *Bid
}

// Ledger maps each slot to its optional current bid. Operations on distinct
// slots proceed fully in parallel; only same-slot operations contend.
type Ledger struct {
	cfg Config

	mu      sync.RWMutex
	entries map[ids.SlotID]*entry
}

// New creates a ledger.
func New(cfg Config) (*Ledger, error) {
	if err := cfg.Policy.Validate(); err != nil {
		return nil, err
	}
	if cfg.Accounts.Escrow == "" || cfg.Accounts.Treasury == "" {
		cfg.Accounts = DefaultAccounts
	}
	if cfg.Verifier == nil {
		cfg.Verifier = verify.AllowAll
	}
	if cfg.Log == nil {
		cfg.Log = log.NoLog
	}

	l := &Ledger{
		cfg:     cfg,
		entries: make(map[ids.SlotID]*entry),
	}
	if err := l.recover(); err != nil {
		return nil, err
	}
	return l, nil
}

// recover reloads persisted current bids for known slots.
func (l *Ledger) recover() error {
	for _, slot := range l.cfg.Registry.List() {
		data, err := l.cfg.Store.GetCurrentBid(slot.ID)
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		bid := new(Bid)
		if err := json.Unmarshal(data, bid); err != nil {
			return fmt.Errorf("corrupt bid record for %s: %w", slot.ID, err)
		}
		e := newEntry()
		e.bid = bid
		l.entries[slot.ID] = e
	}
	return nil
}

func newEntry() *entry {
	return &entry{sem: make(chan struct{}, 1)}
}

func (l *Ledger) entryFor(id ids.SlotID) *entry {
	l.mu.RLock()
	e, ok := l.entries[id]
	l.mu.RUnlock()
	if ok {
		return e
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok := l.entries[id]; ok {
		return e
	}
	e = newEntry()
	l.entries[id] = e
	return e
}

// PlaceBid validates, settles, and installs a bid as the slot's new holder.
//
// The context is honored only while waiting for the slot's critical section.
// Once settlement begins, the operation runs to completion or aborts with no
// partial effect: all validation happens before any money moves, and a fund
// transfer failure releases the new bidder's escrow hold and leaves the
// previous holder unchanged.
func (l *Ledger) PlaceBid(ctx context.Context, slotID ids.SlotID, bidder string, amount uint64, creativeCID string) (*Receipt, error) {
	slot, err := l.cfg.Registry.Get(slotID)
	if err != nil {
		return nil, err
	}
	if bidder == "" {
		return nil, fmt.Errorf("%w: empty bidder", ErrSettlementFailed)
	}

	e := l.entryFor(slotID)
	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-e.sem }()

	current := e.bid

	// Validation. Everything is rejected here, before any fund movement.
	if current != nil {
		if amount <= current.Amount {
			return nil, fmt.Errorf("%w: %d <= %d", ErrBidTooLow, amount, current.Amount)
		}
	} else if amount == 0 {
		return nil, ErrZeroBid
	}
	if creativeCID == "" {
		return nil, fmt.Errorf("%w: empty creative ID", ErrInvalidCreative)
	}
	ok, err := l.cfg.Verifier.VerifyCreative(ctx, creativeCID)
	if err != nil {
		return nil, fmt.Errorf("%w: creative verification: %v", ErrInternal, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s rejected by verifier", ErrInvalidCreative, creativeCID)
	}

	// Escrow the new bid in full.
	if err := l.cfg.Funds.Transfer(bidder, l.cfg.Accounts.Escrow, amount); err != nil {
		return nil, fmt.Errorf("%w: escrow hold: %v", ErrSettlementFailed, err)
	}

	var prevBidder string
	var refunded uint64
	if current != nil {
		split, err := l.cfg.Policy.Split(current.Amount)
		if err != nil {
			l.releaseHold(bidder, amount)
			return nil, fmt.Errorf("%w: %v", ErrInternal, err)
		}
		// Tiny amounts can round a fee share down to zero; zero legs are
		// omitted rather than transferred.
		legs := make([]bank.Leg, 0, 3)
		for _, leg := range []bank.Leg{
			{From: l.cfg.Accounts.Escrow, To: current.Bidder, Amount: split.Refund},
			{From: l.cfg.Accounts.Escrow, To: slot.Owner, Amount: split.OwnerFee},
			{From: l.cfg.Accounts.Escrow, To: l.cfg.Accounts.Treasury, Amount: split.PlatformFee},
		} {
			if leg.Amount > 0 {
				legs = append(legs, leg)
			}
		}
		if err := l.cfg.Funds.TransferAll(legs); err != nil {
			l.releaseHold(bidder, amount)
			return nil, fmt.Errorf("%w: payout: %v", ErrSettlementFailed, err)
		}
		prevBidder = current.Bidder
		refunded = split.Refund
	}

	newBid := &Bid{
		Bidder:      bidder,
		Amount:      amount,
		CreativeCID: creativeCID,
		AcceptedAt:  time.Now().UTC(),
	}

	data, err := json.Marshal(newBid)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternal, err)
	}
	if err := l.cfg.Store.PutCurrentBid(slotID, data); err != nil {
		// Funds have already moved; a storage failure here is fatal, not
		// recoverable in-process. Surface it, never swallow it.
		l.cfg.Log.Error("bid persist failed after settlement",
			log.String("slot", slotID.String()), log.Error(err))
		return nil, fmt.Errorf("%w: persist bid: %v", ErrInternal, err)
	}

	e.bid = newBid

	seq, err := l.cfg.Events.Append(eventlog.Fact{
		Kind: eventlog.KindBidPlaced,
		BidPlaced: &eventlog.BidPlaced{
			SlotID:      slotID,
			Bidder:      newBid.Bidder,
			Amount:      newBid.Amount,
			CreativeCID: newBid.CreativeCID,
			AcceptedAt:  newBid.AcceptedAt,
			PrevBidder:  prevBidder,
			Refunded:    refunded,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternal, err)
	}

	l.cfg.Log.Info("bid placed",
		log.String("slot", slotID.String()),
		log.String("bidder", bidder),
		log.Uint64("amount", amount),
		log.Uint64("seq", seq))

	return &Receipt{
		ReceiptID:  uuid.NewString(),
		SlotID:     slotID,
		Bid:        *newBid,
		Replaced:   current != nil,
		PrevBidder: prevBidder,
		Refunded:   refunded,
		EventSeq:   seq,
	}, nil
}

// releaseHold returns an escrow hold to the bidder after an aborted
// settlement. The escrow account always holds the funds, so this only fails
// if the bidder was blocked mid-operation.
func (l *Ledger) releaseHold(bidder string, amount uint64) {
	if err := l.cfg.Funds.Transfer(l.cfg.Accounts.Escrow, bidder, amount); err != nil {
		l.cfg.Log.Error("escrow release failed",
			log.String("bidder", bidder),
			log.Uint64("amount", amount),
			log.Error(err))
	}
}

// CurrentBid returns the slot's current holder, or nil if the slot has never
// been bid on. It acquires the slot's critical section so a concurrent
// replacement is observed either entirely or not at all.
func (l *Ledger) CurrentBid(slotID ids.SlotID) (*Bid, error) {
	if _, err := l.cfg.Registry.Get(slotID); err != nil {
		return nil, err
	}

	e := l.entryFor(slotID)
	e.sem <- struct{}{}
	bid := e.bid
	<-e.sem

	if bid == nil {
		return nil, nil
	}
	cp := *bid
	return &cp, nil
}
