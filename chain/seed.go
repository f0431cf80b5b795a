// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package chain

import (
	"github.com/ava-labs/avalanchego/ids"

	"github.com/ava-labs/ledgervm/crypto"
	"github.com/ava-labs/ledgervm/merkle"
)

// DeriveRandomness hashes the concatenated seeds of [vtxs] in order. A block
// without validator transactions has [ids.Empty] randomness.
//
// The last validator to reveal its seed can still choose whether to publish,
// so the output is biasable by that signer.
func DeriveRandomness(vtxs []*ValidatorTransaction) ids.ID {
	if len(vtxs) == 0 {
		return ids.Empty
	}
	seeds := make([][]byte, len(vtxs))
	for i, vtx := range vtxs {
		seeds[i] = vtx.Seed()
	}
	return crypto.Keccak256(seeds...)
}

func txRoot(txs []*Transaction) ids.ID {
	leaves := make([][]byte, len(txs))
	for i, tx := range txs {
		leaves[i] = tx.Bytes()
	}
	return merkle.Root(leaves)
}

func validatorTxRoot(vtxs []*ValidatorTransaction) ids.ID {
	leaves := make([][]byte, len(vtxs))
	for i, vtx := range vtxs {
		leaves[i] = vtx.Bytes()
	}
	return merkle.Root(leaves)
}
