// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package eventlog

import (
	"time"

	"github.com/adxyz/slotbid/pkg/ids"
)

// Kind discriminates the fact payload.
type Kind string

const (
	KindSlotCreated Kind = "slot_created"
	KindBidPlaced   Kind = "bid_placed"
)

// SlotCreated records the registration of a new advertising slot.
type SlotCreated struct {
	SlotID     ids.SlotID `json:"slot_id"`
	Name       string     `json:"name"`
	DomainName string     `json:"domain_name"`
	Width      int64      `json:"width"`
	Height     int64      `json:"height"`
	Owner      string     `json:"owner"`
	SlotSeq    uint64     `json:"slot_seq"`
	CreatedAt  time.Time  `json:"created_at"`
}

// BidPlaced records an accepted bid. When the bid superseded a previous
// holder, PrevBidder and Refunded echo the eviction; the superseded bid is
// not retained anywhere else.
type BidPlaced struct {
	SlotID      ids.SlotID `json:"slot_id"`
	Bidder      string     `json:"bidder"`
	Amount      uint64     `json:"amount"`
	CreativeCID string     `json:"creative_cid"`
	AcceptedAt  time.Time  `json:"accepted_at"`
	PrevBidder  string     `json:"prev_bidder,omitempty"`
	Refunded    uint64     `json:"refunded,omitempty"`
}

// Fact is one immutable entry of the append-only log. Seq is assigned at
// append time and is strictly increasing.
type Fact struct {
	Seq         uint64       `json:"seq"`
	Kind        Kind         `json:"kind"`
	SlotCreated *SlotCreated `json:"slot_created,omitempty"`
	BidPlaced   *BidPlaced   `json:"bid_placed,omitempty"`
}
