// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package chaintest builds signed transactions and blocks for tests.
package chaintest

import (
	"crypto/rand"
	"math/big"
	"testing"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/set"
	"github.com/stretchr/testify/require"

	"github.com/ava-labs/ledgervm/chain"
	"github.com/ava-labs/ledgervm/crypto/secp256k1"
)

const (
	ChainID = 8848

	// GenesisTimestamp is used by tests that don't care about the value.
	GenesisTimestamp = chain.DefaultGenesisTimestamp
)

var _ chain.SignerSet = Signers(nil)

// Signers is a static signer set.
type Signers set.Set[ids.ShortID]

func NewSigners(keys ...*secp256k1.PrivateKey) Signers {
	s := set.NewSet[ids.ShortID](len(keys))
	for _, k := range keys {
		s.Add(k.Address())
	}
	return Signers(s)
}

func (s Signers) IsValidator(addr ids.ShortID) bool {
	validators := set.Set[ids.ShortID](s)
	return validators.Contains(addr)
}

func Keys(t testing.TB, n int) []*secp256k1.PrivateKey {
	keys := make([]*secp256k1.PrivateKey, n)
	for i := range keys {
		k, err := secp256k1.GeneratePrivateKey()
		require.NoError(t, err)
		keys[i] = k
	}
	return keys
}

func Address(t testing.TB) ids.ShortID {
	var addr ids.ShortID
	_, err := rand.Read(addr[:])
	require.NoError(t, err)
	return addr
}

// NewTx returns a value transfer from [key] to [to].
func NewTx(t testing.TB, key *secp256k1.PrivateKey, nonce uint64, to ids.ShortID) *chain.Transaction {
	tx, err := chain.SignTx(chain.TxData{
		Nonce:    nonce,
		GasPrice: big.NewInt(25_000_000_000),
		Gas:      21_000,
		To:       to,
		Value:    big.NewInt(int64(nonce) + 1),
		Data:     []byte{byte(nonce)},
		ChainID:  ChainID,
	}, key)
	require.NoError(t, err)
	return tx
}

// NewValidatorTx returns a validator transaction with a random seed.
func NewValidatorTx(t testing.TB, key *secp256k1.PrivateKey, height uint64) *chain.ValidatorTransaction {
	data := make([]byte, chain.MinValidatorTxData)
	_, err := rand.Read(data)
	require.NoError(t, err)
	vtx, err := chain.SignValidatorTx(chain.ValidatorTxData{
		Data:    data,
		ChainID: ChainID,
		NHeight: height,
	}, key)
	require.NoError(t, err)
	return vtx
}

// NewChild finalizes a block on top of [parent] holding [vtxs] validator
// transactions authored by [signer] and [txs] transfers.
func NewChild(t testing.TB, parent *chain.Block, signer *secp256k1.PrivateKey, vtxs int, txs int) *chain.Block {
	b := chain.NewChildBuilder(parent, parent.Timestamp()+1)
	for i := 0; i < vtxs; i++ {
		require.True(t, b.AppendValidatorTx(NewValidatorTx(t, signer, parent.Height()+1)))
	}
	sender := Keys(t, 1)[0]
	for i := 0; i < txs; i++ {
		require.True(t, b.AppendTx(NewTx(t, sender, uint64(i), Address(t))))
	}
	blk, err := b.Finalize(signer)
	require.NoError(t, err)
	return blk
}

// NewChain returns genesis followed by [n] blocks holding [txs] transfers
// each.
func NewChain(t testing.TB, signer *secp256k1.PrivateKey, n int, txs int) []*chain.Block {
	genesis, err := chain.NewGenesisBlock(GenesisTimestamp)
	require.NoError(t, err)
	blks := []*chain.Block{genesis}
	for i := 0; i < n; i++ {
		blks = append(blks, NewChild(t, blks[len(blks)-1], signer, 0, txs))
	}
	return blks
}
