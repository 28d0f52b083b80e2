// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package verify defines the boundary to the external content-verification
// collaborator. The core never fetches or inspects creative bytes; it only
// asks whether an opaque content identifier passed moderation.
package verify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Verifier reports whether a creative content identifier is acceptable.
// Retries are the caller's concern, not the core's.
type Verifier interface {
	VerifyCreative(ctx context.Context, cid string) (bool, error)
}

// Static is a fixed-outcome verifier, used when no external verifier is
// configured and in tests.
type Static struct {
	Allow bool
}

func (s Static) VerifyCreative(ctx context.Context, cid string) (bool, error) {
	return s.Allow, nil
}

// AllowAll accepts every creative.
var AllowAll = Static{Allow: true}

// HTTPVerifier calls an external moderation endpoint.
type HTTPVerifier struct {
	endpoint string
	client   *http.Client
}

// NewHTTPVerifier creates a verifier that POSTs creative identifiers to the
// given endpoint.
func NewHTTPVerifier(endpoint string, timeout time.Duration) *HTTPVerifier {
	return &HTTPVerifier{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

type verifyRequest struct {
	CID string `json:"cid"`
}

type verifyResponse struct {
	Approved bool `json:"approved"`
}

// VerifyCreative returns the moderation verdict for the identifier. Transport
// failures are returned as errors, distinct from a clean rejection.
func (v *HTTPVerifier) VerifyCreative(ctx context.Context, cid string) (bool, error) {
	body, err := json.Marshal(verifyRequest{CID: cid})
	if err != nil {
		return false, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.endpoint, bytes.NewReader(body))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := v.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("verifier unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("verifier returned status %d", resp.StatusCode)
	}

	var verdict verifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&verdict); err != nil {
		return false, fmt.Errorf("verifier response malformed: %w", err)
	}
	return verdict.Approved, nil
}
