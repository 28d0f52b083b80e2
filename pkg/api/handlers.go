// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package api

import (
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prebid/openrtb/v20/openrtb2"
	"github.com/shopspring/decimal"

	"github.com/adxyz/slotbid/pkg/coordinator"
	"github.com/adxyz/slotbid/pkg/ids"
	"github.com/adxyz/slotbid/pkg/ledger"
	"github.com/adxyz/slotbid/pkg/log"
	"github.com/adxyz/slotbid/pkg/registry"
)

type createSlotRequest struct {
	Name       string `json:"name" binding:"required"`
	DomainName string `json:"domain_name" binding:"required"`
	Width      int64  `json:"width" binding:"required"`
	Height     int64  `json:"height" binding:"required"`
	Owner      string `json:"owner" binding:"required"`
}

type placeBidRequest struct {
	Bidder      string `json:"bidder" binding:"required"`
	Amount      string `json:"amount" binding:"required"`
	CreativeCID string `json:"creative_cid" binding:"required"`
}

type depositRequest struct {
	Amount string `json:"amount" binding:"required"`
}

func (s *Server) createSlot(c *gin.Context) {
	var req createSlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	slot, err := s.cfg.Coordinator.CreateSlot(req.Name, req.DomainName, req.Width, req.Height, req.Owner)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, slot)
}

func (s *Server) listSlots(c *gin.Context) {
	slots := s.cfg.Coordinator.ListSlots()
	c.JSON(http.StatusOK, gin.H{
		"slots": slots,
		"total": len(slots),
	})
}

func (s *Server) getSlot(c *gin.Context) {
	id, ok := s.slotID(c)
	if !ok {
		return
	}
	slot, err := s.cfg.Coordinator.GetSlot(id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, slot)
}

func (s *Server) getCurrentBid(c *gin.Context) {
	id, ok := s.slotID(c)
	if !ok {
		return
	}
	bid, err := s.cfg.Coordinator.GetCurrentBid(id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	if bid == nil {
		c.JSON(http.StatusOK, gin.H{"bid": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"bid": s.bidBody(bid)})
}

func (s *Server) placeBid(c *gin.Context) {
	id, ok := s.slotID(c)
	if !ok {
		return
	}
	var req placeBidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	amount, err := s.parseAmount(req.Amount)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	receipt, err := s.cfg.Coordinator.PlaceBid(c.Request.Context(), id, req.Bidder, amount, req.CreativeCID)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"receipt_id":  receipt.ReceiptID,
		"slot_id":     receipt.SlotID,
		"bid":         s.bidBody(&receipt.Bid),
		"replaced":    receipt.Replaced,
		"prev_bidder": receipt.PrevBidder,
		"refunded":    s.formatAmount(receipt.Refunded),
		"event_seq":   receipt.EventSeq,
	})
}

// serveAd renders the current holder's creative reference as an OpenRTB bid
// response for downstream ad servers. 204 when the slot has no holder.
func (s *Server) serveAd(c *gin.Context) {
	id, ok := s.slotID(c)
	if !ok {
		return
	}
	slot, err := s.cfg.Coordinator.GetSlot(id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	bid, err := s.cfg.Coordinator.GetCurrentBid(id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	if bid == nil {
		c.Status(http.StatusNoContent)
		return
	}

	// Price is display-only here; settlement never touches floats.
	price, _ := decimal.NewFromBigInt(new(big.Int).SetUint64(bid.Amount), -s.cfg.Scale).Float64()

	resp := openrtb2.BidResponse{
		ID:  uuid.NewString(),
		Cur: s.cfg.Currency,
		SeatBid: []openrtb2.SeatBid{{
			Bid: []openrtb2.Bid{{
				ID:      uuid.NewString(),
				ImpID:   slot.ID.String(),
				Price:   price,
				CrID:    bid.CreativeCID,
				IURL:    fmt.Sprintf("%s/%s", s.cfg.CreativeGateway, bid.CreativeCID),
				ADomain: []string{slot.DomainName},
				W:       slot.Width,
				H:       slot.Height,
			}},
		}},
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) listEvents(c *gin.Context) {
	from, err := strconv.ParseUint(c.DefaultQuery("from", "1"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid from"})
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if err != nil || limit <= 0 || limit > 1000 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
		return
	}

	cursor := s.cfg.Coordinator.Events(from)
	defer cursor.Release()

	facts := make([]any, 0, limit)
	next := from
	for len(facts) < limit && cursor.Next() {
		f := cursor.Fact()
		facts = append(facts, f)
		next = f.Seq + 1
	}
	if err := cursor.Err(); err != nil {
		s.cfg.Log.Error("event read failed", log.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "event read failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"facts": facts,
		"next":  next,
	})
}

// streamEvents pushes facts appended from now on over a websocket. Consumers
// needing history page through /events first; the log never rewrites or
// deletes a fact, so the two views stitch together by sequence number.
func (s *Server) streamEvents(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	feed, cancel := s.cfg.Coordinator.SubscribeEvents(256)
	defer cancel()

	// Drain client frames so close frames are processed.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	ping := time.NewTicker(30 * time.Second)
	defer ping.Stop()

	for {
		select {
		case fact, ok := <-feed:
			if !ok {
				return
			}
			if err := conn.WriteJSON(fact); err != nil {
				return
			}
		case <-ping.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *Server) getBalance(c *gin.Context) {
	account := c.Param("id")
	balance := s.cfg.Bank.Balance(account)
	c.JSON(http.StatusOK, gin.H{
		"account":  account,
		"balance":  s.formatAmount(balance),
		"currency": s.cfg.Currency,
	})
}

func (s *Server) deposit(c *gin.Context) {
	account := c.Param("id")
	var req depositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	amount, err := s.parseAmount(req.Amount)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.cfg.Bank.Deposit(account, amount); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"account":     account,
		"new_balance": s.formatAmount(s.cfg.Bank.Balance(account)),
	})
}

func (s *Server) slotID(c *gin.Context) (ids.SlotID, bool) {
	id, err := ids.FromString(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid slot ID"})
		return ids.Empty, false
	}
	return id, true
}

func (s *Server) bidBody(bid *ledger.Bid) gin.H {
	return gin.H{
		"bidder":       bid.Bidder,
		"amount":       bid.Amount,
		"amount_units": s.formatAmount(bid.Amount),
		"creative_cid": bid.CreativeCID,
		"accepted_at":  bid.AcceptedAt,
	}
}

// parseAmount converts a decimal token amount to integer base units exactly.
// Fractions smaller than one base unit are rejected, not rounded.
func (s *Server) parseAmount(str string) (uint64, error) {
	d, err := decimal.NewFromString(str)
	if err != nil {
		return 0, fmt.Errorf("invalid amount: %w", err)
	}
	if d.IsNegative() {
		return 0, errors.New("amount must not be negative")
	}
	base := d.Shift(s.cfg.Scale)
	if !base.IsInteger() {
		return 0, fmt.Errorf("amount has more than %d decimal places", s.cfg.Scale)
	}
	bi := base.BigInt()
	if !bi.IsUint64() {
		return 0, errors.New("amount out of range")
	}
	return bi.Uint64(), nil
}

func (s *Server) formatAmount(v uint64) string {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(v), -s.cfg.Scale).String()
}

// writeError maps the error taxonomy to HTTP statuses. Every rejection
// carries its kind so callers can drive retry policy.
func (s *Server) writeError(c *gin.Context, err error) {
	kind := coordinator.RejectReason(err)
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, registry.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, registry.ErrInvalidDimensions),
		errors.Is(err, registry.ErrInvalidName),
		errors.Is(err, ledger.ErrZeroBid):
		status = http.StatusBadRequest
	case errors.Is(err, ledger.ErrBidTooLow):
		status = http.StatusConflict
	case errors.Is(err, ledger.ErrInvalidCreative):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, ledger.ErrSettlementFailed):
		status = http.StatusBadGateway
	}
	if status == http.StatusInternalServerError {
		s.cfg.Log.Error("request failed", log.Error(err))
	}
	c.JSON(status, gin.H{
		"error": err.Error(),
		"kind":  kind,
	})
}
