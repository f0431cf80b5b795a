// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package chain

import (
	"github.com/ava-labs/avalanchego/ids"

	"github.com/ava-labs/ledgervm/crypto/secp256k1"
)

const (
	// DefaultGenesisTimestamp matches the networks launched before the
	// timestamp became configurable.
	DefaultGenesisTimestamp uint64 = 1656356645000000

	genesisKeyHex = "e89ef6409c467285bcae9f80ab1cfeb3487cfe61ab28fb7d36443e1daa0c2867"
)

// GenesisKey is the well-known key that signs every genesis block. It has no
// authority beyond height 0.
func GenesisKey() (*secp256k1.PrivateKey, error) {
	return secp256k1.HexToPrivateKey(genesisKeyHex)
}

// NewGenesisBlock returns the empty block at height 0 with a zero parent.
func NewGenesisBlock(timestamp uint64) (*Block, error) {
	key, err := GenesisKey()
	if err != nil {
		return nil, err
	}
	return NewBuilder(ids.Empty, 0, timestamp).Finalize(key)
}
