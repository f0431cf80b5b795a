// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package chainhead maintains the finalized ledger: a window of recent
// blocks in memory backed by the full history on disk.
package chainhead

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ava-labs/avalanchego/cache"
	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/buffer"
	"github.com/ava-labs/avalanchego/utils/logging"
	"github.com/ava-labs/avalanchego/utils/set"
	"github.com/neilotoole/errgroup"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/ava-labs/ledgervm/chain"
	"github.com/ava-labs/ledgervm/storage"
)

// Parser decodes blocks in their storage encoding.
type Parser interface {
	ParseStoredBlock([]byte) (*chain.Block, error)
}

// ChainHead is safe for concurrent use. Reads share a lock and writes,
// including the whole of [Flush], hold it exclusively.
type ChainHead struct {
	log     logging.Logger
	config  Config
	db      storage.Database
	parser  Parser
	metrics *metrics

	lock         sync.RWMutex
	window       buffer.Deque[*chain.Block]
	byHash       map[ids.ID]*chain.Block
	heightToHash map[uint64]ids.ID
	txToBlock    map[ids.ID]ids.ID
	// dirty holds the window blocks that are not yet on disk.
	dirty set.Set[ids.ID]

	cache     *cache.LRU[ids.ID, *chain.Block]
	rehydrate singleflight.Group
}

// New loads the chain from [db], or writes a genesis block if [db] is
// empty.
func New(
	ctx context.Context,
	log logging.Logger,
	registerer prometheus.Registerer,
	config Config,
	db storage.Database,
	parser Parser,
) (*ChainHead, error) {
	if config.WindowSize <= 0 {
		return nil, ErrInvalidWindowSize
	}
	m, err := newMetrics(registerer)
	if err != nil {
		return nil, err
	}
	c := &ChainHead{
		log:          log,
		config:       config,
		db:           db,
		parser:       parser,
		metrics:      m,
		window:       buffer.NewUnboundedDeque[*chain.Block](config.WindowSize),
		byHash:       make(map[ids.ID]*chain.Block, config.WindowSize),
		heightToHash: make(map[uint64]ids.ID, config.WindowSize),
		txToBlock:    make(map[ids.ID]ids.ID),
		dirty:        set.NewSet[ids.ID](config.WindowSize),
		cache:        &cache.LRU[ids.ID, *chain.Block]{Size: config.RehydrationCacheSize},
	}

	latest, err := db.Get(latestKey)
	switch {
	case errors.Is(err, database.ErrNotFound):
		if err := c.initGenesis(); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	case len(latest) != ids.IDLen:
		return nil, fmt.Errorf("%w: latest pointer has %d bytes", ErrCorruptBlock, len(latest))
	default:
		if err := c.load(ctx, ids.ID(latest)); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *ChainHead) initGenesis() error {
	genesis, err := chain.NewGenesisBlock(c.config.GenesisTimestamp)
	if err != nil {
		return err
	}
	if err := c.PushBack(genesis); err != nil {
		return err
	}
	if err := c.Flush(); err != nil {
		return err
	}
	c.log.Info("created genesis block",
		zap.Stringer("blkID", genesis.ID()),
		zap.Uint64("timestamp", genesis.Timestamp()),
	)
	return nil
}

// load reads the latest block and back-fills the window below it.
func (c *ChainHead) load(ctx context.Context, latestID ids.ID) error {
	latest, err := c.readBlock(latestID)
	if err != nil {
		return err
	}
	var (
		tip   = latest.Height()
		count = uint64(c.config.WindowSize)
		start uint64
	)
	if tip+1 > count {
		start = tip + 1 - count
	}

	// Index i holds height start+i.
	blks := make([]*chain.Block, tip-start+1)
	blks[len(blks)-1] = latest
	g, gctx := errgroup.WithContextN(ctx, c.config.LoadConcurrency, 0)
	for height := start; height < tip; height++ {
		height := height
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			id, err := c.readHeight(height)
			if err != nil {
				return fmt.Errorf("%w: missing height %d: %w", ErrCorruptBlock, height, err)
			}
			blk, err := c.readBlock(id)
			if err != nil {
				return err
			}
			blks[height-start] = blk
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	c.lock.Lock()
	defer c.lock.Unlock()

	c.add(latest)
	c.window.PushRight(latest)
	for i := len(blks) - 2; i >= 0; i-- {
		if err := c.pushFront(blks[i]); err != nil {
			return fmt.Errorf("%w: %w", ErrCorruptBlock, err)
		}
	}
	c.metrics.windowSize.Set(float64(c.window.Len()))
	c.log.Info("loaded chain head",
		zap.Stringer("blkID", latest.ID()),
		zap.Uint64("height", tip),
		zap.Int("window", c.window.Len()),
	)
	return nil
}

func (c *ChainHead) readHeight(height uint64) (ids.ID, error) {
	raw, err := c.db.Get(heightKey(height))
	if err != nil {
		return ids.Empty, err
	}
	if len(raw) != ids.IDLen {
		return ids.Empty, fmt.Errorf("%w: height %d maps to %d bytes", ErrCorruptBlock, height, len(raw))
	}
	return ids.ID(raw), nil
}

// readBlock decodes a block from disk. Stored blocks were verified before
// they were accepted, so a decode failure is an integrity error.
func (c *ChainHead) readBlock(id ids.ID) (*chain.Block, error) {
	raw, err := c.db.Get(blockKey(id))
	if err != nil {
		return nil, err
	}
	c.metrics.storageReads.Inc()
	blk, err := c.parser.ParseStoredBlock(raw)
	if err == nil && blk.ID() != id {
		err = fmt.Errorf("stored under %s but hashes to %s", id, blk.ID())
	}
	if err != nil {
		c.log.Error("corrupt block in storage",
			zap.Stringer("blkID", id),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: %s: %w", ErrCorruptBlock, id, err)
	}
	return blk, nil
}

// add indexes [blk] in memory. Caller must hold the write lock.
func (c *ChainHead) add(blk *chain.Block) {
	id := blk.ID()
	c.byHash[id] = blk
	c.heightToHash[blk.Height()] = id
	for _, tx := range blk.Txs() {
		c.txToBlock[tx.ID()] = id
	}
}

func (c *ChainHead) remove(blk *chain.Block) {
	delete(c.byHash, blk.ID())
	delete(c.heightToHash, blk.Height())
	for _, tx := range blk.Txs() {
		delete(c.txToBlock, tx.ID())
	}
}

// Extends returns [ErrNonContiguousBlock] unless [blk] is the child of the
// current tip. Callers use it to check a block before applying it elsewhere.
func (c *ChainHead) Extends(blk *chain.Block) error {
	c.lock.RLock()
	defer c.lock.RUnlock()

	return c.extends(blk)
}

func (c *ChainHead) extends(blk *chain.Block) error {
	tip, ok := c.window.PeekRight()
	if !ok {
		return nil
	}
	if blk.Height() != tip.Height()+1 || blk.Parent() != tip.ID() {
		return fmt.Errorf("%w: height=%d parent=%s tip=%s tipHeight=%d",
			ErrNonContiguousBlock, blk.Height(), blk.Parent(), tip.ID(), tip.Height())
	}
	return nil
}

// PushBack appends the child of the current tip.
func (c *ChainHead) PushBack(blk *chain.Block) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	if err := c.extends(blk); err != nil {
		return err
	}
	c.add(blk)
	c.window.PushRight(blk)
	c.dirty.Add(blk.ID())
	c.metrics.windowSize.Set(float64(c.window.Len()))
	return nil
}

// PushFront prepends the parent of the oldest block in memory.
func (c *ChainHead) PushFront(blk *chain.Block) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	if err := c.pushFront(blk); err != nil {
		return err
	}
	c.dirty.Add(blk.ID())
	c.metrics.windowSize.Set(float64(c.window.Len()))
	return nil
}

func (c *ChainHead) pushFront(blk *chain.Block) error {
	if front, ok := c.window.PeekLeft(); ok {
		if front.Height() != blk.Height()+1 || front.Parent() != blk.ID() {
			return fmt.Errorf("%w: height=%d id=%s front=%s frontHeight=%d",
				ErrNonContiguousBlock, blk.Height(), blk.ID(), front.ID(), front.Height())
		}
	}
	c.add(blk)
	c.window.PushLeft(blk)
	return nil
}

// Latest returns the highest finalized block.
func (c *ChainHead) Latest() *chain.Block {
	c.lock.RLock()
	defer c.lock.RUnlock()

	blk, _ := c.window.PeekRight()
	return blk
}

// Size is the number of blocks held in the in-memory window.
func (c *ChainHead) Size() int {
	c.lock.RLock()
	defer c.lock.RUnlock()

	return c.window.Len()
}

func (c *ChainHead) Exists(id ids.ID) (bool, error) {
	c.lock.RLock()
	_, ok := c.byHash[id]
	c.lock.RUnlock()
	if ok {
		return true, nil
	}
	return c.db.Has(blockKey(id))
}

func (c *ChainHead) ExistsAtHeight(height uint64) (bool, error) {
	c.lock.RLock()
	_, ok := c.heightToHash[height]
	c.lock.RUnlock()
	if ok {
		return true, nil
	}
	return c.db.Has(heightKey(height))
}

// GetBlock checks the window, then the rehydration cache, then disk. Blocks
// read from disk are cached. Missing blocks return [database.ErrNotFound].
func (c *ChainHead) GetBlock(id ids.ID) (*chain.Block, error) {
	c.lock.RLock()
	blk, ok := c.byHash[id]
	c.lock.RUnlock()
	if ok {
		return blk, nil
	}
	if blk, ok := c.cache.Get(id); ok {
		c.metrics.cacheHits.Inc()
		return blk, nil
	}
	c.metrics.cacheMisses.Inc()

	// Concurrent misses on the same block share one read.
	v, err, _ := c.rehydrate.Do(string(id[:]), func() (interface{}, error) {
		blk, err := c.readBlock(id)
		if err != nil {
			return nil, err
		}
		c.cache.Put(id, blk)
		return blk, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*chain.Block), nil
}

func (c *ChainHead) GetBlockIDAtHeight(height uint64) (ids.ID, error) {
	c.lock.RLock()
	id, ok := c.heightToHash[height]
	c.lock.RUnlock()
	if ok {
		return id, nil
	}
	return c.readHeight(height)
}

func (c *ChainHead) GetBlockByHeight(height uint64) (*chain.Block, error) {
	id, err := c.GetBlockIDAtHeight(height)
	if err != nil {
		return nil, err
	}
	return c.GetBlock(id)
}

// GetHeight returns the height of the block with hash [id].
func (c *ChainHead) GetHeight(id ids.ID) (uint64, error) {
	c.lock.RLock()
	blk, ok := c.byHash[id]
	c.lock.RUnlock()
	if ok {
		return blk.Height(), nil
	}
	raw, err := c.db.Get(blockHeightKey(id))
	if err != nil {
		return 0, err
	}
	return database.ParseUInt64(raw)
}

// GetBlockFromTx returns the block that includes transaction [txID].
func (c *ChainHead) GetBlockFromTx(txID ids.ID) (*chain.Block, error) {
	c.lock.RLock()
	id, ok := c.txToBlock[txID]
	c.lock.RUnlock()
	if !ok {
		raw, err := c.db.Get(txKey(txID))
		if err != nil {
			return nil, err
		}
		if len(raw) != ids.IDLen {
			return nil, fmt.Errorf("%w: tx %s maps to %d bytes", ErrCorruptBlock, txID, len(raw))
		}
		id = ids.ID(raw)
	}
	return c.GetBlock(id)
}

func (c *ChainHead) GetTransaction(txID ids.ID) (*chain.Transaction, error) {
	blk, err := c.GetBlockFromTx(txID)
	if err != nil {
		return nil, err
	}
	tx, ok := blk.Transaction(txID)
	if !ok {
		return nil, fmt.Errorf("%w: block %s does not include tx %s", ErrCorruptBlock, blk.ID(), txID)
	}
	return tx, nil
}

// Flush writes every unpersisted block and its index entries in a single
// batch, then drops all but the tip from memory. Evicted blocks move to the
// rehydration cache. Readers block for the whole write.
func (c *ChainHead) Flush() error {
	c.lock.Lock()
	defer c.lock.Unlock()

	start := time.Now()
	tip, ok := c.window.PeekRight()
	if !ok {
		return nil
	}

	batch := c.db.NewBatch()
	written := 0
	for _, blk := range c.window.List() {
		id := blk.ID()
		if !c.dirty.Contains(id) {
			continue
		}
		raw, err := blk.StorageBytes()
		if err != nil {
			return err
		}
		errs := []error{
			batch.Put(blockKey(id), raw),
			batch.Put(heightKey(blk.Height()), id[:]),
			batch.Put(blockHeightKey(id), database.PackUInt64(blk.Height())),
		}
		for _, tx := range blk.Txs() {
			errs = append(errs, batch.Put(txKey(tx.ID()), id[:]))
		}
		if err := errors.Join(errs...); err != nil {
			return err
		}
		written++
	}
	tipID := tip.ID()
	if err := batch.Put(latestKey, tipID[:]); err != nil {
		return err
	}
	if err := batch.Write(); err != nil {
		return fmt.Errorf("failed to flush %d blocks: %w", written, err)
	}

	for c.window.Len() > 1 {
		blk, _ := c.window.PopLeft()
		c.remove(blk)
		c.cache.Put(blk.ID(), blk)
	}
	c.dirty.Clear()

	c.metrics.flushed.Add(float64(written))
	c.metrics.windowSize.Set(float64(c.window.Len()))
	c.metrics.flush.Observe(float64(time.Since(start)))
	c.log.Debug("flushed chain head",
		zap.Int("blocks", written),
		zap.Stringer("tipID", tipID),
		zap.Uint64("tipHeight", tip.Height()),
		zap.Duration("t", time.Since(start)),
	)
	return nil
}
