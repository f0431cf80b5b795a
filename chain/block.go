// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package chain

import (
	"fmt"
	"sync"
	"time"

	"github.com/ava-labs/avalanchego/ids"

	"github.com/ava-labs/ledgervm/codec"
	"github.com/ava-labs/ledgervm/consts"
	"github.com/ava-labs/ledgervm/crypto"
	"github.com/ava-labs/ledgervm/crypto/secp256k1"
)

const (
	// HeaderLen is the size of the fixed header that precedes the
	// transaction sections.
	HeaderLen = consts.SignatureLen + 4*consts.HashLen + 6*consts.Uint64Len

	hashedHeaderLen = 4*consts.HashLen + 2*consts.Uint64Len
)

// Block is a finalized block. Blocks are immutable: handles returned by
// [Builder.Finalize], the parser, or any lookup may be shared freely.
type Block struct {
	prev          ids.ID
	randomness    ids.ID
	validatorRoot ids.ID
	txRoot        ids.ID
	timestamp     uint64
	height        uint64
	signature     secp256k1.Signature

	validatorTxs []*ValidatorTransaction
	txs          []*Transaction

	id      ids.ID
	bytes   []byte
	txIndex map[ids.ID]int
	indexed bool

	signerOnce sync.Once
	signer     ids.ShortID
	signerErr  error
}

func (b *Block) ID() ids.ID            { return b.id }
func (b *Block) Parent() ids.ID        { return b.prev }
func (b *Block) Height() uint64        { return b.height }
func (b *Block) Timestamp() uint64     { return b.timestamp }
func (b *Block) Randomness() ids.ID    { return b.randomness }
func (b *Block) ValidatorRoot() ids.ID { return b.validatorRoot }
func (b *Block) TxRoot() ids.ID        { return b.txRoot }

func (b *Block) Signature() secp256k1.Signature {
	return b.signature
}

// Bytes is the network encoding. Callers must not modify it.
func (b *Block) Bytes() []byte { return b.bytes }
func (b *Block) Size() int     { return len(b.bytes) }

// Txs and ValidatorTxs are shared with the block and must not be modified.
func (b *Block) Txs() []*Transaction                   { return b.txs }
func (b *Block) ValidatorTxs() []*ValidatorTransaction { return b.validatorTxs }

func (b *Block) TimestampSeconds() uint64 {
	return b.timestamp / consts.NanosecondsPerSecond
}

func (b *Block) Time() time.Time {
	return time.Unix(0, int64(b.timestamp))
}

func (b *Block) String() string {
	return fmt.Sprintf(
		"(BlockID=%s, Height=%d, Parent=%s, ValidatorTxs=%d, Txs=%d, Size=%d)",
		b.id, b.height, b.prev, len(b.validatorTxs), len(b.txs), len(b.bytes),
	)
}

func (b *Block) ContainsTx(id ids.ID) bool {
	_, ok := b.txIndex[id]
	return ok
}

func (b *Block) Transaction(id ids.ID) (*Transaction, bool) {
	i, ok := b.txIndex[id]
	if !ok {
		return nil, false
	}
	return b.txs[i], true
}

// Signer recovers the address that signed the header. The result is cached.
func (b *Block) Signer() (ids.ShortID, error) {
	b.signerOnce.Do(func() {
		b.signer, b.signerErr = secp256k1.RecoverAddress(b.id, b.signature)
	})
	return b.signer, b.signerErr
}

// IndexTxs stamps every transaction with its position in the block. It is a
// no-op once the block is indexed and fails without stamping anything if a
// transaction already belongs to another block.
func (b *Block) IndexTxs() error {
	if b.indexed {
		return nil
	}
	for _, tx := range b.txs {
		if tx.Indexed() {
			return fmt.Errorf("%w: tx=%s index=%d", ErrBlockIndexSet, tx.ID(), tx.BlockIndex())
		}
	}
	for i, tx := range b.txs {
		if err := tx.SetBlockIndex(uint32(i)); err != nil {
			return err
		}
	}
	b.indexed = true
	return nil
}

// StorageBytes is the encoding persisted by the chain head. Each
// transaction carries its sender and position.
func (b *Block) StorageBytes() ([]byte, error) {
	return b.encode(true)
}

func (b *Block) buildTxIndex() {
	b.txIndex = make(map[ids.ID]int, len(b.txs))
	for i, tx := range b.txs {
		b.txIndex[tx.ID()] = i
	}
}

func headerID(prev, randomness, validatorRoot, txRoot ids.ID, timestamp, height uint64) ids.ID {
	p := codec.NewWriter(hashedHeaderLen, hashedHeaderLen)
	p.PackID(prev)
	p.PackID(randomness)
	p.PackID(validatorRoot)
	p.PackID(txRoot)
	p.PackUint64(timestamp)
	p.PackUint64(height)
	return crypto.Keccak256(p.Bytes())
}

func (b *Block) encode(forStorage bool) ([]byte, error) {
	vtxBytes := make([][]byte, len(b.validatorTxs))
	for i, vtx := range b.validatorTxs {
		if !forStorage {
			vtxBytes[i] = vtx.Bytes()
			continue
		}
		raw, err := vtx.StorageBytes()
		if err != nil {
			return nil, err
		}
		vtxBytes[i] = raw
	}
	txBytes := make([][]byte, len(b.txs))
	for i, tx := range b.txs {
		if !forStorage {
			txBytes[i] = tx.Bytes()
			continue
		}
		raw, err := tx.StorageBytes()
		if err != nil {
			return nil, err
		}
		txBytes[i] = raw
	}

	vtxSection := codec.CummSizedLen(vtxBytes)
	txSection := codec.CummSizedLen(txBytes)
	p := codec.NewWriter(HeaderLen+vtxSection+txSection, consts.NetworkSizeLimit)

	p.PackFixedBytes(b.signature[:])
	p.PackID(b.prev)
	p.PackID(b.randomness)
	p.PackID(b.validatorRoot)
	p.PackID(b.txRoot)
	p.PackUint64(b.timestamp)
	p.PackUint64(b.height)
	p.PackUint64(uint64(len(b.validatorTxs)))
	p.PackUint64(uint64(len(b.txs)))
	p.PackUint64(HeaderLen)
	p.PackUint64(uint64(HeaderLen + vtxSection))
	for _, raw := range vtxBytes {
		p.PackSized(raw)
	}
	for _, raw := range txBytes {
		p.PackSized(raw)
	}
	if err := p.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBlockTooLarge, err)
	}
	return p.Bytes(), nil
}

// Builder assembles a block. It is not safe for concurrent use.
type Builder struct {
	prev      ids.ID
	timestamp uint64
	height    uint64

	validatorTxs []*ValidatorTransaction
	txs          []*Transaction

	sealed bool
}

func NewBuilder(prev ids.ID, height uint64, timestamp uint64) *Builder {
	return &Builder{
		prev:      prev,
		height:    height,
		timestamp: timestamp,
	}
}

// NewChildBuilder starts a block that extends [parent].
func NewChildBuilder(parent *Block, timestamp uint64) *Builder {
	return NewBuilder(parent.ID(), parent.Height()+1, timestamp)
}

// AppendTx returns false once the builder has been finalized.
func (b *Builder) AppendTx(tx *Transaction) bool {
	if b.sealed || tx == nil {
		return false
	}
	b.txs = append(b.txs, tx)
	return true
}

func (b *Builder) AppendValidatorTx(vtx *ValidatorTransaction) bool {
	if b.sealed || vtx == nil {
		return false
	}
	b.validatorTxs = append(b.validatorTxs, vtx)
	return true
}

func (b *Builder) Sealed() bool { return b.sealed }

// Finalize commits to the appended transactions, signs the header with
// [key] and indexes the transactions. A builder can only be finalized once.
func (b *Builder) Finalize(key *secp256k1.PrivateKey) (*Block, error) {
	if b.sealed {
		return nil, ErrBlockFinalized
	}
	blk := &Block{
		prev:          b.prev,
		randomness:    DeriveRandomness(b.validatorTxs),
		validatorRoot: validatorTxRoot(b.validatorTxs),
		txRoot:        txRoot(b.txs),
		timestamp:     b.timestamp,
		height:        b.height,
		validatorTxs:  b.validatorTxs,
		txs:           b.txs,
	}
	blk.id = headerID(blk.prev, blk.randomness, blk.validatorRoot, blk.txRoot, blk.timestamp, blk.height)
	sig, err := key.SignHash(blk.id)
	if err != nil {
		return nil, err
	}
	blk.signature = sig
	blk.signerOnce.Do(func() {
		blk.signer = key.Address()
	})
	blk.bytes, err = blk.encode(false)
	if err != nil {
		return nil, err
	}
	if err := blk.IndexTxs(); err != nil {
		return nil, err
	}
	blk.buildTxIndex()
	b.sealed = true
	return blk, nil
}
