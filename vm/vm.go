// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package vm exposes the ledger to a Snowman consensus engine.
package vm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/trace"
	"github.com/ava-labs/avalanchego/utils/logging"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/ava-labs/ledgervm/blockmanager"
	"github.com/ava-labs/ledgervm/chain"
	"github.com/ava-labs/ledgervm/chainhead"
	"github.com/ava-labs/ledgervm/chaintip"
	"github.com/ava-labs/ledgervm/storage"
	"github.com/ava-labs/ledgervm/utils"

	ltrace "github.com/ava-labs/ledgervm/trace"
)

const dbNamespace = "ledger"

var _ chain.SignerSet = (*VM)(nil)

type VM struct {
	log     logging.Logger
	config  Config
	tracer  trace.Tracer
	metrics *metrics

	state        chaintip.State
	parser       *chain.Parser
	chainHead    *chainhead.ChainHead
	chainTip     *chaintip.ChainTip
	blockManager *blockmanager.BlockManager

	// db is closed on shutdown when the VM opened it.
	db io.Closer

	shutdown atomic.Bool
	stop     chan struct{}
	wg       sync.WaitGroup
}

// Open creates a pebble store under [chainDataDir] and starts a VM on it.
// The store is closed by [VM.Shutdown].
func Open(
	ctx context.Context,
	log logging.Logger,
	registerer prometheus.Registerer,
	chainDataDir string,
	state chaintip.State,
	configBytes []byte,
) (*VM, error) {
	config, err := ParseConfig(configBytes)
	if err != nil {
		return nil, err
	}
	db, err := storage.New(config.Pebble, chainDataDir, dbNamespace, registerer)
	if err != nil {
		return nil, err
	}
	vm, err := New(ctx, log, registerer, db, state, configBytes)
	if err != nil {
		return nil, errors.Join(err, db.Close())
	}
	vm.db = db
	return vm, nil
}

// New loads the ledger from [db] and starts the periodic flush. [state]
// validates and applies blocks on behalf of the VM.
func New(
	ctx context.Context,
	log logging.Logger,
	registerer prometheus.Registerer,
	db storage.Database,
	state chaintip.State,
	configBytes []byte,
) (*VM, error) {
	config, err := ParseConfig(configBytes)
	if err != nil {
		return nil, err
	}
	if len(config.Validators) == 0 {
		key, err := chain.GenesisKey()
		if err != nil {
			return nil, err
		}
		config.Validators = []ids.ShortID{key.Address()}
	}
	log.Info("initialized vm config", zap.Any("config", config))

	tracer, err := ltrace.New(&config.TraceConfig)
	if err != nil {
		return nil, err
	}
	ctx, span := tracer.Start(ctx, "VM.New")
	defer span.End()

	m, err := newMetrics(registerer)
	if err != nil {
		return nil, err
	}
	vm := &VM{
		log:      log,
		config:   config,
		tracer:   tracer,
		metrics:  m,
		state:    state,
		chainTip: chaintip.New(log),
		stop:     make(chan struct{}),
	}
	// The parser only consults the signer set for network blocks, which
	// cannot arrive before New returns.
	vm.parser, err = chain.NewParser(log, tracer, config.Parser, vm, registerer)
	if err != nil {
		return nil, err
	}
	vm.chainHead, err = chainhead.New(ctx, log, registerer, config.ChainHead, db, vm.parser)
	if err != nil {
		vm.parser.Close()
		return nil, err
	}
	latest := vm.chainHead.Latest()
	vm.blockManager, err = blockmanager.New(log, db, config.Validators, latest)
	if err != nil {
		vm.parser.Close()
		return nil, err
	}
	vm.chainTip.SetPreference(latest.ID())

	vm.wg.Add(1)
	go vm.flushLoop()

	log.Info("vm started",
		zap.Stringer("lastAccepted", latest.ID()),
		zap.Uint64("height", latest.Height()),
		zap.Stringer("proposer", vm.blockManager.Proposer()),
	)
	return vm, nil
}

func (vm *VM) flushLoop() {
	defer vm.wg.Done()

	t := time.NewTicker(vm.config.FlushInterval)
	defer t.Stop()

	for {
		select {
		case <-t.C:
			if err := vm.chainHead.Flush(); err != nil {
				vm.metrics.flushFailures.Inc()
				vm.log.Error("periodic flush failed", zap.Error(err))
			}
		case <-vm.stop:
			return
		}
	}
}

// IsValidator reports whether [addr] belongs to the validator set.
func (vm *VM) IsValidator(addr ids.ShortID) bool {
	return vm.blockManager.IsValidator(addr)
}

// ParseBlock decodes and verifies a block received from the network.
func (vm *VM) ParseBlock(ctx context.Context, source []byte) (*chain.Block, error) {
	ctx, span := vm.tracer.Start(ctx, "VM.ParseBlock", oteltrace.WithAttributes(
		attribute.Int("size", len(source)),
	))
	defer span.End()

	if vm.shutdown.Load() {
		return nil, ErrShutdown
	}
	blk, err := vm.parser.ParseBlock(ctx, source)
	if err != nil {
		vm.log.Warn("failed to parse block", zap.Error(err))
		return nil, err
	}
	return blk, nil
}

// VerifyBlock checks that [blk] was built by the current proposer and that
// state accepts it, then registers it as processing.
func (vm *VM) VerifyBlock(ctx context.Context, blk *chain.Block) error {
	ctx, span := vm.tracer.Start(ctx, "VM.VerifyBlock", oteltrace.WithAttributes(
		attribute.Stringer("blkID", blk.ID()),
		attribute.Int64("height", int64(blk.Height())),
		attribute.Int("txs", len(blk.Txs())),
	))
	defer span.End()

	start := time.Now()
	defer func() {
		vm.metrics.verify.Observe(float64(time.Since(start)))
	}()

	if vm.shutdown.Load() {
		return ErrShutdown
	}
	if vm.chainTip.IsProcessing(blk.ID()) {
		return nil
	}
	if err := vm.blockManager.ValidateBlock(blk); err != nil {
		vm.metrics.verifyFailed.Inc()
		vm.log.Warn("invalid block proposer",
			zap.Stringer("blkID", blk.ID()),
			zap.Error(err),
		)
		return err
	}
	if !vm.state.ValidateNewBlock(ctx, blk, vm.chainHead) {
		vm.metrics.verifyFailed.Inc()
		vm.log.Warn("state rejected block", zap.Stringer("blkID", blk.ID()))
		return fmt.Errorf("%w: %s", ErrInvalidBlock, blk.ID())
	}
	if err := vm.chainTip.ProcessBlock(blk); err != nil {
		return err
	}
	vm.metrics.verified.Inc()
	return nil
}

// Accept finalizes the processing block [blkID] and advances the proposer
// order.
func (vm *VM) Accept(ctx context.Context, blkID ids.ID) error {
	ctx, span := vm.tracer.Start(ctx, "VM.Accept", oteltrace.WithAttributes(
		attribute.Stringer("blkID", blkID),
	))
	defer span.End()

	start := time.Now()
	blk, err := vm.chainTip.Accept(ctx, blkID, vm.state, vm.chainHead)
	if err != nil {
		vm.log.Error("failed to accept block",
			zap.Stringer("blkID", blkID),
			zap.Error(err),
		)
		return err
	}
	if blk == nil {
		return nil
	}
	vm.blockManager.ProcessBlock(blk)

	vm.metrics.accepted.Inc()
	vm.metrics.txsAccepted.Add(float64(len(blk.Txs())))
	vm.metrics.accept.Observe(float64(time.Since(start)))
	vm.log.Info("accepted block",
		zap.Stringer("blkID", blkID),
		zap.Uint64("height", blk.Height()),
		zap.Int("txs", len(blk.Txs())),
		zap.Stringer("nextProposer", vm.blockManager.Proposer()),
	)
	return nil
}

func (vm *VM) Reject(_ context.Context, blkID ids.ID) error {
	if err := vm.chainTip.Reject(blkID); err != nil {
		return err
	}
	vm.metrics.rejected.Inc()
	vm.log.Debug("rejected block", zap.Stringer("blkID", blkID))
	return nil
}

func (vm *VM) SetPreference(_ context.Context, blkID ids.ID) error {
	vm.chainTip.SetPreference(blkID)
	return nil
}

func (vm *VM) Preferred() ids.ID {
	return vm.chainTip.GetPreference()
}

func (vm *VM) LastAccepted(context.Context) (ids.ID, error) {
	return vm.chainHead.Latest().ID(), nil
}

// Status reports the consensus status of [blkID]. Blocks known only to the
// ledger are Accepted.
func (vm *VM) Status(blkID ids.ID) (chaintip.Status, error) {
	if status := vm.chainTip.GetStatus(blkID); status != chaintip.Unknown {
		return status, nil
	}
	ok, err := vm.chainHead.Exists(blkID)
	switch {
	case err != nil:
		return chaintip.Unknown, err
	case ok:
		return chaintip.Accepted, nil
	default:
		return chaintip.Unknown, nil
	}
}

// GetBlock returns a processing block or an accepted one.
func (vm *VM) GetBlock(_ context.Context, blkID ids.ID) (*chain.Block, error) {
	if blk, ok := vm.chainTip.GetBlock(blkID); ok {
		return blk, nil
	}
	return vm.chainHead.GetBlock(blkID)
}

func (vm *VM) GetBlockIDAtHeight(_ context.Context, height uint64) (ids.ID, error) {
	return vm.chainHead.GetBlockIDAtHeight(height)
}

// GetAncestors returns the bytes of [blkID] followed by up to [depth]-1 of
// its ancestors, newest first. The walk stops at genesis or at the first
// ancestor that is not known. A non-positive [depth] returns nothing.
func (vm *VM) GetAncestors(ctx context.Context, blkID ids.ID, depth int) ([][]byte, error) {
	if depth <= 0 {
		return nil, nil
	}
	if depth > vm.config.MaxAncestors {
		depth = vm.config.MaxAncestors
	}
	blks := make([]*chain.Block, 0, depth)
	for len(blks) < depth {
		blk, err := vm.GetBlock(ctx, blkID)
		if errors.Is(err, database.ErrNotFound) && len(blks) > 0 {
			break
		}
		if err != nil {
			return nil, err
		}
		blks = append(blks, blk)
		if blk.Height() == 0 {
			break
		}
		blkID = blk.Parent()
	}
	return utils.Map((*chain.Block).Bytes, blks), nil
}

// Shutdown stops the flush loop and persists the window. It is safe to call
// more than once.
func (vm *VM) Shutdown(context.Context) error {
	if !vm.shutdown.CompareAndSwap(false, true) {
		return nil
	}
	close(vm.stop)
	vm.wg.Wait()
	vm.parser.Close()

	err := vm.chainHead.Flush()
	if err != nil {
		vm.log.Error("final flush failed", zap.Error(err))
	}
	errs := []error{err, vm.tracer.Close()}
	if vm.db != nil {
		errs = append(errs, vm.db.Close())
	}
	return errors.Join(errs...)
}
