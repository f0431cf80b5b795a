// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package blockmanager owns the validator set and decides which validator
// may propose the next block.
package blockmanager

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/logging"
	"github.com/ava-labs/avalanchego/utils/set"
	"go.uber.org/zap"

	"github.com/ava-labs/ledgervm/chain"
	"github.com/ava-labs/ledgervm/consts"
	"github.com/ava-labs/ledgervm/storage"
)

const validatorPrefix byte = 0x5 // index -> address

var _ chain.SignerSet = (*BlockManager)(nil)

func validatorKey(index uint64) []byte {
	return append([]byte{validatorPrefix}, database.PackUInt64(index)...)
}

type BlockManager struct {
	log logging.Logger

	lock       sync.RWMutex
	validators []ids.ShortID
	members    set.Set[ids.ShortID]
	// order is the proposer rotation after the latest accepted block.
	// order[0] proposes the next block.
	order []ids.ShortID
}

// New loads the validator set from [db]. An empty database is seeded with
// [initial]. The proposer order is derived from [latest], the last accepted
// block.
func New(
	log logging.Logger,
	db storage.Database,
	initial []ids.ShortID,
	latest *chain.Block,
) (*BlockManager, error) {
	validators, err := loadValidators(db)
	if err != nil {
		return nil, err
	}
	seed := len(validators) == 0
	if seed {
		validators = append([]ids.ShortID(nil), initial...)
	}
	if len(validators) == 0 {
		return nil, ErrNoValidators
	}

	members := set.NewSet[ids.ShortID](len(validators))
	for _, v := range validators {
		if members.Contains(v) {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateValidator, v)
		}
		members.Add(v)
	}
	if seed {
		if err := storeValidators(db, validators); err != nil {
			return nil, err
		}
		log.Info("stored initial validator set", zap.Int("validators", len(validators)))
	}
	m := &BlockManager{
		log:        log,
		validators: validators,
		members:    members,
		order:      proposerOrder(validators, latest.Height(), latest.Randomness()),
	}
	log.Info("loaded validator set",
		zap.Int("validators", len(validators)),
		zap.Stringer("proposer", m.order[0]),
	)
	return m, nil
}

func loadValidators(db storage.Database) ([]ids.ShortID, error) {
	var validators []ids.ShortID
	for i := uint64(0); ; i++ {
		raw, err := db.Get(validatorKey(i))
		if errors.Is(err, database.ErrNotFound) {
			return validators, nil
		}
		if err != nil {
			return nil, err
		}
		if len(raw) != consts.AddressLen {
			return nil, fmt.Errorf("%w: index %d has %d bytes", ErrCorruptValidator, i, len(raw))
		}
		validators = append(validators, ids.ShortID(raw))
	}
}

func storeValidators(db storage.Database, validators []ids.ShortID) error {
	batch := db.NewBatch()
	for i, v := range validators {
		if err := batch.Put(validatorKey(uint64(i)), v[:]); err != nil {
			return err
		}
	}
	return batch.Write()
}

func (m *BlockManager) IsValidator(addr ids.ShortID) bool {
	m.lock.RLock()
	defer m.lock.RUnlock()

	return m.members.Contains(addr)
}

// Validators returns the validator set in storage order.
func (m *BlockManager) Validators() []ids.ShortID {
	m.lock.RLock()
	defer m.lock.RUnlock()

	return append([]ids.ShortID(nil), m.validators...)
}

// Proposer returns the validator expected to sign the next block.
func (m *BlockManager) Proposer() ids.ShortID {
	m.lock.RLock()
	defer m.lock.RUnlock()

	return m.order[0]
}

// ValidateBlock checks that [blk] was signed by the current proposer and
// that every validator transaction comes from a validator.
func (m *BlockManager) ValidateBlock(blk *chain.Block) error {
	signer, err := blk.Signer()
	if err != nil {
		return err
	}

	m.lock.RLock()
	defer m.lock.RUnlock()

	if signer != m.order[0] {
		return fmt.Errorf("%w: signer=%s proposer=%s", ErrWrongProposer, signer, m.order[0])
	}
	for i, vtx := range blk.ValidatorTxs() {
		if !m.members.Contains(vtx.From()) {
			return fmt.Errorf("%w: index=%d from=%s", ErrUnknownValidator, i, vtx.From())
		}
	}
	return nil
}

// Randomness derives the seed a block built from [vtxs] must carry.
func (*BlockManager) Randomness(vtxs []*chain.ValidatorTransaction) ids.ID {
	return chain.DeriveRandomness(vtxs)
}

// ProcessBlock advances the proposer order past the accepted block [blk].
func (m *BlockManager) ProcessBlock(blk *chain.Block) {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.order = proposerOrder(m.validators, blk.Height(), blk.Randomness())
	m.log.Debug("rotated proposer",
		zap.Stringer("blkID", blk.ID()),
		zap.Uint64("height", blk.Height()),
		zap.Stringer("proposer", m.order[0]),
	)
}
