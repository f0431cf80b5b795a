// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package chain

import (
	"context"
	"fmt"
	"time"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/trace"
	"github.com/ava-labs/avalanchego/utils/logging"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/ava-labs/ledgervm/codec"
	"github.com/ava-labs/ledgervm/consts"
	"github.com/ava-labs/ledgervm/internal/workers"
)

// SignerSet reports whether an address may sign block headers.
type SignerSet interface {
	IsValidator(ids.ShortID) bool
}

// Parser decodes and verifies blocks. It is safe for concurrent use.
type Parser struct {
	log     logging.Logger
	tracer  trace.Tracer
	config  ParserConfig
	signers SignerSet
	workers workers.Workers
	metrics *parserMetrics
}

func NewParser(
	log logging.Logger,
	tracer trace.Tracer,
	config ParserConfig,
	signers SignerSet,
	registerer prometheus.Registerer,
) (*Parser, error) {
	m, err := newParserMetrics(registerer)
	if err != nil {
		return nil, err
	}
	return &Parser{
		log:     log,
		tracer:  tracer,
		config:  config,
		signers: signers,
		workers: workers.NewParallel(config.DecodeCores),
		metrics: m,
	}, nil
}

// Close stops the decode workers.
func (p *Parser) Close() {
	p.workers.Stop()
}

// ParseBlock decodes a block received from the network. Every transaction
// sender is recovered and the header must be signed by a member of the
// signer set.
func (p *Parser) ParseBlock(ctx context.Context, raw []byte) (*Block, error) {
	_, span := p.tracer.Start(ctx, "Chain.ParseBlock",
		oteltrace.WithAttributes(
			attribute.Int("size", len(raw)),
		),
	)
	defer span.End()

	return p.observe(raw, false)
}

// ParseStoredBlock decodes a block persisted by this node. Senders and block
// indices come from the storage encoding and the header signature is not
// rechecked. Roots and randomness are still verified.
func (p *Parser) ParseStoredBlock(raw []byte) (*Block, error) {
	return p.observe(raw, true)
}

func (p *Parser) observe(raw []byte, trusted bool) (*Block, error) {
	start := time.Now()
	blk, err := p.parse(raw, trusted)
	if err != nil {
		p.metrics.parseFailures.Inc()
		p.log.Debug("failed to parse block",
			zap.Int("size", len(raw)),
			zap.Bool("trusted", trusted),
			zap.Error(err),
		)
		return nil, err
	}
	p.metrics.blocksParsed.Inc()
	p.metrics.txsParsed.Add(float64(len(blk.txs)))
	p.metrics.parse.Observe(float64(time.Since(start)))
	return blk, nil
}

func (p *Parser) parse(raw []byte, trusted bool) (*Block, error) {
	if len(raw) > consts.NetworkSizeLimit {
		return nil, fmt.Errorf("%w: size=%d", ErrBlockTooLarge, len(raw))
	}
	if len(raw) < HeaderLen {
		return nil, fmt.Errorf("%w: size=%d", ErrTruncatedHeader, len(raw))
	}

	var (
		r   = codec.NewReader(raw[:HeaderLen], HeaderLen)
		blk = &Block{}
	)
	copy(blk.signature[:], r.UnpackFixedBytes(consts.SignatureLen))
	r.UnpackID(&blk.prev)
	r.UnpackID(&blk.randomness)
	r.UnpackID(&blk.validatorRoot)
	r.UnpackID(&blk.txRoot)
	blk.timestamp = r.UnpackUint64()
	blk.height = r.UnpackUint64()
	vtxCount := r.UnpackUint64()
	txCount := r.UnpackUint64()
	vtxOffset := r.UnpackUint64()
	txOffset := r.UnpackUint64()
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTruncatedHeader, err)
	}

	size := uint64(len(raw))
	if vtxOffset != HeaderLen || txOffset < vtxOffset || txOffset > size {
		return nil, fmt.Errorf("%w: validatorTxs=%d txs=%d size=%d", ErrInvalidOffsets, vtxOffset, txOffset, size)
	}
	// Every entry carries at least its size prefix, which bounds the counts
	// before anything is allocated.
	if vtxCount > (txOffset-vtxOffset)/consts.IntLen || txCount > (size-txOffset)/consts.IntLen {
		return nil, fmt.Errorf("%w: validatorTxCount=%d txCount=%d", ErrInvalidOffsets, vtxCount, txCount)
	}

	var err error
	blk.validatorTxs, err = parseValidatorTxs(raw[vtxOffset:txOffset], int(vtxCount), trusted)
	if err != nil {
		return nil, err
	}
	blk.txs, err = p.parseTxs(raw[txOffset:], int(txCount), trusted)
	if err != nil {
		return nil, err
	}

	if root := validatorTxRoot(blk.validatorTxs); root != blk.validatorRoot {
		return nil, fmt.Errorf("%w: validator txs computed=%s header=%s", ErrMerkleMismatch, root, blk.validatorRoot)
	}
	if root := txRoot(blk.txs); root != blk.txRoot {
		return nil, fmt.Errorf("%w: txs computed=%s header=%s", ErrMerkleMismatch, root, blk.txRoot)
	}
	if randomness := DeriveRandomness(blk.validatorTxs); randomness != blk.randomness {
		return nil, fmt.Errorf("%w: computed=%s header=%s", ErrRandomnessMismatch, randomness, blk.randomness)
	}
	blk.id = headerID(blk.prev, blk.randomness, blk.validatorRoot, blk.txRoot, blk.timestamp, blk.height)

	if !trusted {
		signer, err := blk.Signer()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidSignature, err)
		}
		if p.signers != nil && !p.signers.IsValidator(signer) {
			return nil, fmt.Errorf("%w: signer=%s is not a validator", ErrInvalidSignature, signer)
		}
	}
	for i, tx := range blk.txs {
		if tx.To == BlockManagerAddress {
			return nil, fmt.Errorf("%w: tx=%s index=%d", ErrIllegalRecipient, tx.ID(), i)
		}
	}

	if trusted {
		for i, tx := range blk.txs {
			if tx.BlockIndex() != uint32(i) {
				return nil, fmt.Errorf("%w: tx=%s stored index=%d position=%d", ErrInvalidTransaction, tx.ID(), tx.BlockIndex(), i)
			}
		}
		blk.indexed = true
		blk.bytes, err = blk.encode(false)
		if err != nil {
			return nil, err
		}
	} else {
		if err := blk.IndexTxs(); err != nil {
			return nil, err
		}
		blk.bytes = raw
	}
	blk.buildTxIndex()
	return blk, nil
}

func parseValidatorTxs(section []byte, count int, trusted bool) ([]*ValidatorTransaction, error) {
	var (
		r    = codec.NewReader(section, consts.NetworkSizeLimit)
		vtxs = make([]*ValidatorTransaction, 0, count)
	)
	for i := 0; i < count; i++ {
		entry := r.UnpackSized()
		if err := r.Err(); err != nil {
			return nil, fmt.Errorf("%w: validator tx %d: %w", ErrTruncatedSection, i, err)
		}
		var (
			vtx *ValidatorTransaction
			err error
		)
		if trusted {
			vtx, err = unmarshalStoredValidatorTx(entry)
		} else {
			vtx, err = UnmarshalValidatorTx(entry)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: validator tx %d: %w", ErrInvalidTransaction, i, err)
		}
		vtxs = append(vtxs, vtx)
	}
	if !r.Empty() {
		return nil, fmt.Errorf("%w: %d bytes after validator txs", ErrInvalidOffsets, len(section)-r.Offset())
	}
	return vtxs, nil
}

type span struct {
	start int
	end   int
}

// txSpans walks the size prefixes of the transaction section. Entries are
// variable length, so this pass must finish before any shard can start.
func txSpans(section []byte, count int) ([]span, error) {
	var (
		r     = codec.NewReader(section, consts.NetworkSizeLimit)
		spans = make([]span, count)
	)
	for i := range spans {
		entry := r.UnpackSized()
		if err := r.Err(); err != nil {
			return nil, fmt.Errorf("%w: tx %d: %w", ErrTruncatedSection, i, err)
		}
		spans[i] = span{start: r.Offset() - len(entry), end: r.Offset()}
	}
	if !r.Empty() {
		return nil, fmt.Errorf("%w: %d bytes after txs", ErrTrailingBytes, len(section)-r.Offset())
	}
	return spans, nil
}

// parseTxs decodes the transaction section. Above the configured threshold
// the entries are split into contiguous shards that decode concurrently, each
// writing only its own slots, so the resulting order never depends on
// scheduling.
func (p *Parser) parseTxs(section []byte, count int, trusted bool) ([]*Transaction, error) {
	spans, err := txSpans(section, count)
	if err != nil {
		return nil, err
	}
	txs := make([]*Transaction, count)
	if count == 0 {
		return txs, nil
	}

	pool := workers.NewSerial()
	if count >= p.config.ParallelDecodeThreshold {
		pool = p.workers
		p.metrics.parallelDecodes.Inc()
	}
	job, err := pool.NewJob()
	if err != nil {
		return nil, err
	}
	shards := min(job.Workers(), count)
	perShard := (count + shards - 1) / shards
	for start := 0; start < count; start += perShard {
		var (
			lo = start
			hi = min(start+perShard, count)
		)
		job.Go(func() error {
			for i := lo; i < hi; i++ {
				entry := section[spans[i].start:spans[i].end]
				var (
					tx  *Transaction
					err error
				)
				if trusted {
					tx, err = unmarshalStoredTx(entry)
				} else {
					tx, err = UnmarshalTx(entry)
				}
				if err != nil {
					return fmt.Errorf("%w: tx %d: %w", ErrInvalidTransaction, i, err)
				}
				txs[i] = tx
			}
			return nil
		})
	}
	job.Done(nil)
	if err := job.Wait(); err != nil {
		return nil, err
	}
	return txs, nil
}
