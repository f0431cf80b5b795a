// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package blockmanager

import (
	"testing"

	"github.com/ava-labs/avalanchego/database/memdb"
	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/logging"
	"github.com/stretchr/testify/require"

	"github.com/ava-labs/ledgervm/chain"
	"github.com/ava-labs/ledgervm/chain/chaintest"
	"github.com/ava-labs/ledgervm/crypto/secp256k1"
	"github.com/ava-labs/ledgervm/storage"
)

func addresses(keys []*secp256k1.PrivateKey) []ids.ShortID {
	addrs := make([]ids.ShortID, len(keys))
	for i, k := range keys {
		addrs[i] = k.Address()
	}
	return addrs
}

func genesis(t *testing.T) *chain.Block {
	blk, err := chain.NewGenesisBlock(chaintest.GenesisTimestamp)
	require.NoError(t, err)
	return blk
}

func TestSeedAndLoad(t *testing.T) {
	require := require.New(t)

	db := storage.FromDatabase(memdb.New())
	keys := chaintest.Keys(t, 4)
	m, err := New(logging.NoLog{}, db, addresses(keys), genesis(t))
	require.NoError(err)
	require.Equal(addresses(keys), m.Validators())
	for _, k := range keys {
		require.True(m.IsValidator(k.Address()))
	}
	require.False(m.IsValidator(chaintest.Address(t)))

	// The stored set wins over a different initial list.
	loaded, err := New(logging.NoLog{}, db, addresses(chaintest.Keys(t, 2)), genesis(t))
	require.NoError(err)
	require.Equal(addresses(keys), loaded.Validators())
	require.Equal(m.Proposer(), loaded.Proposer())
}

func TestInvalidValidatorSets(t *testing.T) {
	require := require.New(t)

	_, err := New(logging.NoLog{}, storage.FromDatabase(memdb.New()), nil, genesis(t))
	require.ErrorIs(err, ErrNoValidators)

	addr := chaintest.Address(t)
	db := storage.FromDatabase(memdb.New())
	_, err = New(logging.NoLog{}, db, []ids.ShortID{addr, addr}, genesis(t))
	require.ErrorIs(err, ErrDuplicateValidator)
	has, err := db.Has(validatorKey(0))
	require.NoError(err)
	require.False(has)

	require.NoError(db.Put(validatorKey(0), []byte{1, 2, 3}))
	_, err = New(logging.NoLog{}, db, nil, genesis(t))
	require.ErrorIs(err, ErrCorruptValidator)
}

func TestValidateBlock(t *testing.T) {
	require := require.New(t)

	keys := chaintest.Keys(t, 4)
	parent := genesis(t)
	m, err := New(logging.NoLog{}, storage.FromDatabase(memdb.New()), addresses(keys), parent)
	require.NoError(err)
	require.Equal(keys[0].Address(), m.Proposer())

	require.NoError(m.ValidateBlock(chaintest.NewChild(t, parent, keys[0], 2, 2)))
	require.ErrorIs(m.ValidateBlock(chaintest.NewChild(t, parent, keys[1], 0, 1)), ErrWrongProposer)

	outsider := chaintest.Keys(t, 1)[0]
	b := chain.NewChildBuilder(parent, parent.Timestamp()+1)
	require.True(b.AppendValidatorTx(chaintest.NewValidatorTx(t, outsider, 1)))
	blk, err := b.Finalize(keys[0])
	require.NoError(err)
	require.ErrorIs(m.ValidateBlock(blk), ErrUnknownValidator)
}

func TestProcessBlockRotation(t *testing.T) {
	require := require.New(t)

	keys := chaintest.Keys(t, 4)
	parent := genesis(t)
	db := storage.FromDatabase(memdb.New())
	m, err := New(logging.NoLog{}, db, addresses(keys), parent)
	require.NoError(err)

	// Without validator transactions the order rotates by one each height.
	blk1 := chaintest.NewChild(t, parent, keys[0], 0, 1)
	m.ProcessBlock(blk1)
	require.Equal(keys[1].Address(), m.Proposer())
	blk2 := chaintest.NewChild(t, blk1, keys[1], 0, 1)
	m.ProcessBlock(blk2)
	require.Equal(keys[2].Address(), m.Proposer())

	// A block carrying randomness reshuffles the set deterministically.
	blk3 := chaintest.NewChild(t, blk2, keys[2], 2, 0)
	require.NotEqual(ids.Empty, blk3.Randomness())
	m.ProcessBlock(blk3)
	reloaded, err := New(logging.NoLog{}, db, nil, blk3)
	require.NoError(err)
	require.Equal(m.Proposer(), reloaded.Proposer())
	require.True(m.IsValidator(m.Proposer()))
}

func TestShuffle(t *testing.T) {
	require := require.New(t)

	validators := make([]ids.ShortID, 16)
	for i := range validators {
		validators[i] = ids.GenerateTestShortID()
	}
	seed := ids.GenerateTestID()

	a := proposerOrder(validators, 7, seed)
	b := proposerOrder(validators, 7, seed)
	require.Equal(a, b)
	require.ElementsMatch(validators, a)
	require.NotEqual(a, proposerOrder(validators, 7, ids.GenerateTestID()))

	rotated := proposerOrder(validators, 17, ids.Empty)
	require.Equal(validators[1], rotated[0])
	require.Equal(validators[0], rotated[len(rotated)-1])
}

func TestRandomness(t *testing.T) {
	require := require.New(t)

	key := chaintest.Keys(t, 1)[0]
	vtxs := []*chain.ValidatorTransaction{
		chaintest.NewValidatorTx(t, key, 1),
		chaintest.NewValidatorTx(t, key, 1),
	}
	m := &BlockManager{}
	require.Equal(chain.DeriveRandomness(vtxs), m.Randomness(vtxs))
	require.Equal(ids.Empty, m.Randomness(nil))
}
