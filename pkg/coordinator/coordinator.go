// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package coordinator is the façade external callers use: create slot, place
// bid, read the current holder, list slots, read the fact stream. It holds no
// state of its own beyond references to the components it delegates to.
package coordinator

import (
	"context"
	"errors"
	"time"

	"github.com/adxyz/slotbid/pkg/eventlog"
	"github.com/adxyz/slotbid/pkg/ids"
	"github.com/adxyz/slotbid/pkg/ledger"
	"github.com/adxyz/slotbid/pkg/log"
	"github.com/adxyz/slotbid/pkg/metric"
	"github.com/adxyz/slotbid/pkg/registry"
)

// Coordinator combines the slot registry, bid ledger, and event log behind
// the public operation surface.
type Coordinator struct {
	registry *registry.Registry
	ledger   *ledger.Ledger
	events   *eventlog.Log
	metrics  *metric.Metrics
	log      log.Logger
}

// Config wires the coordinator.
type Config struct {
	Registry *registry.Registry
	Ledger   *ledger.Ledger
	Events   *eventlog.Log
	Metrics  *metric.Metrics
	Log      log.Logger
}

// New creates a coordinator.
func New(cfg Config) *Coordinator {
	if cfg.Log == nil {
		cfg.Log = log.NoLog
	}
	return &Coordinator{
		registry: cfg.Registry,
		ledger:   cfg.Ledger,
		events:   cfg.Events,
		metrics:  cfg.Metrics,
		log:      cfg.Log,
	}
}

// CreateSlot registers a new advertising slot.
func (c *Coordinator) CreateSlot(name, domainName string, width, height int64, owner string) (*registry.Slot, error) {
	slot, err := c.registry.CreateSlot(name, domainName, width, height, owner)
	if err != nil {
		return nil, err
	}
	if c.metrics != nil {
		c.metrics.SlotsCreated.Inc()
		c.metrics.FactsAppended.Inc()
	}
	return slot, nil
}

// PlaceBid escrows and installs a bid as a slot's new holder.
func (c *Coordinator) PlaceBid(ctx context.Context, slotID ids.SlotID, bidder string, amount uint64, creativeCID string) (*ledger.Receipt, error) {
	start := time.Now()
	receipt, err := c.ledger.PlaceBid(ctx, slotID, bidder, amount, creativeCID)
	if c.metrics != nil {
		c.metrics.BidLatency.Observe(time.Since(start).Seconds())
		if err != nil {
			c.metrics.BidsRejected.WithLabelValues(RejectReason(err)).Inc()
			if errors.Is(err, ledger.ErrSettlementFailed) {
				c.metrics.SettlementFailures.Inc()
			}
		} else {
			c.metrics.BidsPlaced.Inc()
			c.metrics.FactsAppended.Inc()
			c.metrics.EscrowedTotal.Add(float64(amount))
		}
	}
	return receipt, err
}

// GetCurrentBid returns the current holder of a slot, nil when the slot has
// never been bid on.
func (c *Coordinator) GetCurrentBid(slotID ids.SlotID) (*ledger.Bid, error) {
	return c.ledger.CurrentBid(slotID)
}

// GetSlot returns a slot by identifier.
func (c *Coordinator) GetSlot(slotID ids.SlotID) (*registry.Slot, error) {
	return c.registry.Get(slotID)
}

// ListSlots returns a creation-ordered snapshot of every slot.
func (c *Coordinator) ListSlots() []*registry.Slot {
	return c.registry.List()
}

// Events returns a cursor over facts with sequence >= from.
func (c *Coordinator) Events(from uint64) *eventlog.Cursor {
	return c.events.ReadFrom(from)
}

// SubscribeEvents returns a live fact feed plus its cancel function.
func (c *Coordinator) SubscribeEvents(buffer int) (<-chan eventlog.Fact, func()) {
	return c.events.Subscribe(buffer)
}

// RejectReason maps an operation error to its taxonomy kind. Used for metric
// labels and API error bodies.
func RejectReason(err error) string {
	switch {
	case errors.Is(err, registry.ErrNotFound):
		return "not_found"
	case errors.Is(err, registry.ErrInvalidDimensions):
		return "invalid_dimensions"
	case errors.Is(err, registry.ErrInvalidName):
		return "invalid_name"
	case errors.Is(err, ledger.ErrBidTooLow):
		return "bid_too_low"
	case errors.Is(err, ledger.ErrZeroBid):
		return "zero_bid"
	case errors.Is(err, ledger.ErrInvalidCreative):
		return "invalid_creative"
	case errors.Is(err, ledger.ErrSettlementFailed):
		return "settlement_failed"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "internal"
	}
}
