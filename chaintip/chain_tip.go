// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package chaintip tracks blocks that consensus has verified but not yet
// decided.
package chaintip

import (
	"context"
	"fmt"
	"sync"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/logging"
	"go.uber.org/zap"
	"golang.org/x/exp/maps"

	"github.com/ava-labs/ledgervm/chain"
	"github.com/ava-labs/ledgervm/chainhead"
)

// ChainTip holds pending blocks and the status of every block it has seen.
//
// Blocks are immutable once parsed or finalized, so the pending map owns the
// only mutable reference to each entry and the handles returned by
// [ChainTip.GetBlock] are safe snapshots. [ChainTip.Accept] hands the pending
// block to its collaborators without copying it.
//
// All methods take a single lock. None of them are reentrant.
type ChainTip struct {
	log logging.Logger

	lock       sync.RWMutex
	pending    map[ids.ID]*chain.Block
	status     map[ids.ID]Status
	preference ids.ID
}

func New(log logging.Logger) *ChainTip {
	return &ChainTip{
		log:     log,
		pending: make(map[ids.ID]*chain.Block),
		status:  make(map[ids.ID]Status),
	}
}

// ProcessBlock registers [blk] as Processing. Registering a block that is
// already Processing is a no-op.
func (c *ChainTip) ProcessBlock(blk *chain.Block) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	id := blk.ID()
	switch status := c.status[id]; status {
	case Processing:
		return nil
	case Accepted, Rejected:
		return fmt.Errorf("%w: %s is %s", ErrDecided, id, status)
	}
	c.pending[id] = blk
	c.status[id] = Processing
	c.log.Debug("processing block",
		zap.Stringer("blkID", id),
		zap.Uint64("height", blk.Height()),
	)
	return nil
}

func (c *ChainTip) IsProcessing(id ids.ID) bool {
	c.lock.RLock()
	defer c.lock.RUnlock()

	return c.status[id] == Processing
}

// GetStatus returns [Unknown] for blocks that were never registered.
func (c *ChainTip) GetStatus(id ids.ID) Status {
	c.lock.RLock()
	defer c.lock.RUnlock()

	return c.status[id]
}

// Exists reports whether [id] was ever registered, decided or not.
func (c *ChainTip) Exists(id ids.ID) bool {
	c.lock.RLock()
	defer c.lock.RUnlock()

	_, ok := c.status[id]
	return ok
}

// GetBlock returns a pending block. Decided blocks are not returned.
func (c *ChainTip) GetBlock(id ids.ID) (*chain.Block, bool) {
	c.lock.RLock()
	defer c.lock.RUnlock()

	blk, ok := c.pending[id]
	return blk, ok
}

// Processing lists the pending blocks in no particular order.
func (c *ChainTip) Processing() []ids.ID {
	c.lock.RLock()
	defer c.lock.RUnlock()

	return maps.Keys(c.pending)
}

// Accept applies the pending block [id] to [state] and appends it to
// [head]. A block that does not extend [head] never reaches [state]. If
// either collaborator fails the block stays Processing and the error is
// returned.
//
// Accepting a block that was already decided returns a nil block and no
// error.
func (c *ChainTip) Accept(
	ctx context.Context,
	id ids.ID,
	state State,
	head *chainhead.ChainHead,
) (*chain.Block, error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	switch c.status[id] {
	case Unknown:
		return nil, fmt.Errorf("%w: %s", ErrUnknownBlock, id)
	case Accepted:
		return nil, nil
	case Rejected:
		c.log.Warn("ignoring accept of rejected block", zap.Stringer("blkID", id))
		return nil, nil
	}

	blk := c.pending[id]
	if err := head.Extends(blk); err != nil {
		return nil, err
	}
	if err := state.ProcessNewBlock(ctx, blk, head); err != nil {
		return nil, fmt.Errorf("failed to process block %s: %w", id, err)
	}
	if err := head.PushBack(blk); err != nil {
		return nil, fmt.Errorf("failed to append block %s: %w", id, err)
	}
	delete(c.pending, id)
	c.status[id] = Accepted
	c.log.Debug("accepted block",
		zap.Stringer("blkID", id),
		zap.Uint64("height", blk.Height()),
		zap.Int("txs", len(blk.Txs())),
	)
	return blk, nil
}

// Reject drops the pending block [id]. Rejecting a decided block is a no-op.
func (c *ChainTip) Reject(id ids.ID) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	switch c.status[id] {
	case Unknown:
		return fmt.Errorf("%w: %s", ErrUnknownBlock, id)
	case Rejected:
		return nil
	case Accepted:
		c.log.Warn("ignoring reject of accepted block", zap.Stringer("blkID", id))
		return nil
	}
	delete(c.pending, id)
	c.status[id] = Rejected
	c.log.Debug("rejected block", zap.Stringer("blkID", id))
	return nil
}

func (c *ChainTip) SetPreference(id ids.ID) {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.preference = id
}

func (c *ChainTip) GetPreference() ids.ID {
	c.lock.RLock()
	defer c.lock.RUnlock()

	return c.preference
}
