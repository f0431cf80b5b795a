// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package crypto holds the hashing primitive shared by every commitment in
// the ledger (block ids, transaction ids, merkle nodes and randomness).
package crypto

import (
	"github.com/ava-labs/avalanchego/ids"
	"golang.org/x/crypto/sha3"
)

// Keccak256 returns the legacy Keccak-256 digest of the concatenation of
// [data].
func Keccak256(data ...[]byte) ids.ID {
	h := sha3.NewLegacyKeccak256()
	for _, b := range data {
		_, _ = h.Write(b)
	}
	var out ids.ID
	h.Sum(out[:0])
	return out
}
