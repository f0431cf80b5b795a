// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package chain_test

import (
	"testing"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/stretchr/testify/require"

	"github.com/ava-labs/ledgervm/chain"
	"github.com/ava-labs/ledgervm/chain/chaintest"
	"github.com/ava-labs/ledgervm/crypto"
)

func TestBuilderFinalize(t *testing.T) {
	require := require.New(t)

	keys := chaintest.Keys(t, 2)
	genesis, err := chain.NewGenesisBlock(chaintest.GenesisTimestamp)
	require.NoError(err)

	b := chain.NewChildBuilder(genesis, genesis.Timestamp()+1)
	txs := []*chain.Transaction{
		chaintest.NewTx(t, keys[1], 0, chaintest.Address(t)),
		chaintest.NewTx(t, keys[1], 1, chaintest.Address(t)),
		chaintest.NewTx(t, keys[1], 2, chaintest.Address(t)),
	}
	for _, tx := range txs {
		require.True(b.AppendTx(tx))
	}
	blk, err := b.Finalize(keys[0])
	require.NoError(err)
	require.True(b.Sealed())

	require.Equal(genesis.ID(), blk.Parent())
	require.Equal(uint64(1), blk.Height())
	require.Equal(ids.Empty, blk.Randomness())
	require.Equal(ids.Empty, blk.ValidatorRoot())
	require.NotEqual(ids.Empty, blk.TxRoot())
	for i, tx := range txs {
		require.True(tx.Indexed())
		require.Equal(uint32(i), tx.BlockIndex())
		found, ok := blk.Transaction(tx.ID())
		require.True(ok)
		require.Equal(tx, found)
	}
	require.NoError(blk.IndexTxs())

	signer, err := blk.Signer()
	require.NoError(err)
	require.Equal(keys[0].Address(), signer)

	// Sealed builders refuse further changes.
	require.False(b.AppendTx(chaintest.NewTx(t, keys[1], 3, chaintest.Address(t))))
	require.False(b.AppendValidatorTx(chaintest.NewValidatorTx(t, keys[0], 1)))
	_, err = b.Finalize(keys[0])
	require.ErrorIs(err, chain.ErrBlockFinalized)
}

func TestFinalizeRejectsIndexedTx(t *testing.T) {
	require := require.New(t)

	keys := chaintest.Keys(t, 2)
	tx := chaintest.NewTx(t, keys[1], 0, chaintest.Address(t))

	first := chain.NewBuilder(ids.Empty, 1, 1)
	require.True(first.AppendTx(tx))
	_, err := first.Finalize(keys[0])
	require.NoError(err)

	second := chain.NewBuilder(ids.Empty, 1, 2)
	require.True(second.AppendTx(tx))
	_, err = second.Finalize(keys[0])
	require.ErrorIs(err, chain.ErrBlockIndexSet)
	require.False(second.Sealed())

	require.ErrorIs(tx.SetBlockIndex(5), chain.ErrBlockIndexSet)
	require.Equal(uint32(0), tx.BlockIndex())
}

func TestBlockIDExcludesSignature(t *testing.T) {
	require := require.New(t)

	keys := chaintest.Keys(t, 2)
	build := func(signerIndex int) *chain.Block {
		b := chain.NewBuilder(ids.Empty, 7, 99)
		blk, err := b.Finalize(keys[signerIndex])
		require.NoError(err)
		return blk
	}
	a, b := build(0), build(1)
	require.Equal(a.ID(), b.ID())
	require.NotEqual(a.Signature(), b.Signature())
}

func TestDeriveRandomness(t *testing.T) {
	require := require.New(t)

	require.Equal(ids.Empty, chain.DeriveRandomness(nil))

	key := chaintest.Keys(t, 1)[0]
	vtxs := []*chain.ValidatorTransaction{
		chaintest.NewValidatorTx(t, key, 1),
		chaintest.NewValidatorTx(t, key, 1),
	}
	expected := crypto.Keccak256(vtxs[0].Data[4:36], vtxs[1].Data[4:36])
	require.Equal(expected, chain.DeriveRandomness(vtxs))

	reversed := []*chain.ValidatorTransaction{vtxs[1], vtxs[0]}
	require.NotEqual(expected, chain.DeriveRandomness(reversed))
}

func TestValidatorTxPayload(t *testing.T) {
	require := require.New(t)

	key := chaintest.Keys(t, 1)[0]
	_, err := chain.SignValidatorTx(chain.ValidatorTxData{
		Data:    make([]byte, chain.MinValidatorTxData-1),
		ChainID: chaintest.ChainID,
	}, key)
	require.ErrorIs(err, chain.ErrValidatorTxPayload)

	vtx := chaintest.NewValidatorTx(t, key, 3)
	parsed, err := chain.UnmarshalValidatorTx(vtx.Bytes())
	require.NoError(err)
	require.Equal(vtx.ID(), parsed.ID())
	require.Equal(key.Address(), parsed.From())
	require.Equal(uint64(3), parsed.NHeight)
}

func TestTransactionRecoversSender(t *testing.T) {
	require := require.New(t)

	key := chaintest.Keys(t, 1)[0]
	to := chaintest.Address(t)
	tx := chaintest.NewTx(t, key, 4, to)

	parsed, err := chain.UnmarshalTx(tx.Bytes())
	require.NoError(err)
	require.Equal(tx.ID(), parsed.ID())
	require.Equal(key.Address(), parsed.From())
	require.Equal(to, parsed.To)
	require.Equal(uint64(chaintest.ChainID), parsed.ChainID)
	require.Zero(tx.Value.Cmp(parsed.Value))
	require.False(parsed.Indexed())

	// The signature is not part of the identity.
	resigned, err := chain.SignTx(tx.TxData, key)
	require.NoError(err)
	require.Equal(tx.ID(), resigned.ID())
}

func TestGenesisBlock(t *testing.T) {
	require := require.New(t)

	genesis, err := chain.NewGenesisBlock(chaintest.GenesisTimestamp)
	require.NoError(err)
	require.Equal(uint64(0), genesis.Height())
	require.Equal(ids.Empty, genesis.Parent())
	require.Equal(chaintest.GenesisTimestamp, genesis.Timestamp())
	require.Empty(genesis.Txs())

	key, err := chain.GenesisKey()
	require.NoError(err)
	signer, err := genesis.Signer()
	require.NoError(err)
	require.Equal(key.Address(), signer)

	again, err := chain.NewGenesisBlock(chaintest.GenesisTimestamp)
	require.NoError(err)
	require.Equal(genesis.ID(), again.ID())
}
