// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package settlement

import "errors"

var (
	ErrInvalidAmount = errors.New("invalid settlement amount")
	ErrInvalidPolicy = errors.New("invalid settlement policy")
)

// Policy describes how a superseded bid amount is split between the slot
// owner, the platform treasury, and the refunded bidder. All arithmetic is
// exact integer arithmetic over base currency units.
type Policy struct {
	FeeNum   uint64 `json:"fee_num"`
	FeeDen   uint64 `json:"fee_den"`
	OwnerNum uint64 `json:"owner_num"`
	OwnerDen uint64 `json:"owner_den"`
}

// DefaultPolicy levies a 10% total fee, split 70% to the slot owner and 30%
// to the platform.
var DefaultPolicy = Policy{
	FeeNum:   10,
	FeeDen:   100,
	OwnerNum: 70,
	OwnerDen: 100,
}

// Result is the exact split of a superseded bid amount.
// OwnerFee + PlatformFee + Refund always equals the input amount.
type Result struct {
	TotalFee    uint64 `json:"total_fee"`
	OwnerFee    uint64 `json:"owner_fee"`
	PlatformFee uint64 `json:"platform_fee"`
	Refund      uint64 `json:"refund"`
}

// Validate checks the policy fractions are well formed.
func (p Policy) Validate() error {
	if p.FeeDen == 0 || p.OwnerDen == 0 {
		return ErrInvalidPolicy
	}
	if p.FeeNum > p.FeeDen || p.OwnerNum > p.OwnerDen {
		return ErrInvalidPolicy
	}
	return nil
}

// Split computes the fee split for a superseded bid amount.
//
// PlatformFee is derived by subtraction from TotalFee, and Refund by
// subtraction from the amount, so the three parts sum to the amount exactly
// for every input. The zero-amount check is defensive: the ledger rejects
// zero bids before settlement is ever consulted.
func (p Policy) Split(amount uint64) (Result, error) {
	if err := p.Validate(); err != nil {
		return Result{}, err
	}
	if amount == 0 {
		return Result{}, ErrInvalidAmount
	}

	totalFee := amount / p.FeeDen * p.FeeNum
	// Recover the truncated remainder's share without overflowing on large
	// amounts.
	totalFee += amount % p.FeeDen * p.FeeNum / p.FeeDen

	ownerFee := totalFee / p.OwnerDen * p.OwnerNum
	ownerFee += totalFee % p.OwnerDen * p.OwnerNum / p.OwnerDen

	return Result{
		TotalFee:    totalFee,
		OwnerFee:    ownerFee,
		PlatformFee: totalFee - ownerFee,
		Refund:      amount - totalFee,
	}, nil
}
