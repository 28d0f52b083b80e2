// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package verify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStatic(t *testing.T) {
	require := require.New(t)

	ok, err := AllowAll.VerifyCreative(context.Background(), "cid")
	require.NoError(err)
	require.True(ok)

	ok, err = Static{Allow: false}.VerifyCreative(context.Background(), "cid")
	require.NoError(err)
	require.False(ok)
}

func TestHTTPVerifier(t *testing.T) {
	require := require.New(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req verifyRequest
		require.NoError(json.NewDecoder(r.Body).Decode(&req))
		json.NewEncoder(w).Encode(verifyResponse{Approved: req.CID == "good"})
	}))
	defer srv.Close()

	v := NewHTTPVerifier(srv.URL, time.Second)

	ok, err := v.VerifyCreative(context.Background(), "good")
	require.NoError(err)
	require.True(ok)

	// A clean rejection is not an error.
	ok, err = v.VerifyCreative(context.Background(), "bad")
	require.NoError(err)
	require.False(ok)
}

func TestHTTPVerifierTransportErrors(t *testing.T) {
	require := require.New(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	v := NewHTTPVerifier(srv.URL, time.Second)
	_, err := v.VerifyCreative(context.Background(), "cid")
	require.Error(err)

	srv.Close()
	_, err = v.VerifyCreative(context.Background(), "cid")
	require.Error(err)
}
