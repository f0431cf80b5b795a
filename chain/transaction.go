// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package chain

import (
	"fmt"
	"math/big"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/ethereum/go-ethereum/rlp"
	"go.uber.org/atomic"

	"github.com/ava-labs/ledgervm/codec"
	"github.com/ava-labs/ledgervm/consts"
	"github.com/ava-labs/ledgervm/crypto"
	"github.com/ava-labs/ledgervm/crypto/secp256k1"
)

// TxStorageTrailerLen is the size of the out-of-band fields appended to a
// transaction when it is persisted: from, blockIndex and callsContract.
const TxStorageTrailerLen = consts.AddressLen + consts.IntLen + consts.BoolLen

// BlockManagerAddress is reserved for the protocol. Regular transactions may
// not send to it.
var BlockManagerAddress = ids.ShortID{
	0, 0, 0, 0, 0, 0, 0, 0,
	'b', 'l', 'o', 'c', 'k', 'M', 'a', 'n', 'a', 'g', 'e', 'r',
}

var vOffset = big.NewInt(35)

type TxData struct {
	Nonce    uint64
	GasPrice *big.Int
	Gas      uint64
	To       ids.ShortID
	Value    *big.Int
	Data     []byte
	ChainID  uint64
}

// Transaction is a signed account transaction. It must not be modified once
// signed or parsed.
type Transaction struct {
	TxData

	v *big.Int
	r *big.Int
	s *big.Int

	id    ids.ID
	bytes []byte
	from  ids.ShortID

	// Out-of-band fields, assigned by the block or the state.
	blockIndex    uint32
	indexed       bool
	callsContract atomic.Bool
}

// rlpTx is the canonical encoding. The unsigned form replaces (v, r, s) with
// (chainID, 0, 0).
type rlpTx struct {
	Nonce    uint64
	GasPrice *big.Int
	Gas      uint64
	To       ids.ShortID
	Value    *big.Int
	Data     []byte
	V        *big.Int
	R        *big.Int
	S        *big.Int
}

func orZero(i *big.Int) *big.Int {
	if i == nil {
		return new(big.Int)
	}
	return i
}

func (d *TxData) digest() (ids.ID, error) {
	raw, err := rlp.EncodeToBytes(&rlpTx{
		Nonce:    d.Nonce,
		GasPrice: orZero(d.GasPrice),
		Gas:      d.Gas,
		To:       d.To,
		Value:    orZero(d.Value),
		Data:     d.Data,
		V:        new(big.Int).SetUint64(d.ChainID),
		R:        new(big.Int),
		S:        new(big.Int),
	})
	if err != nil {
		return ids.Empty, err
	}
	return crypto.Keccak256(raw), nil
}

// SignTx signs [data] with [key] using EIP-155 replay protection.
func SignTx(data TxData, key *secp256k1.PrivateKey) (*Transaction, error) {
	data.GasPrice = orZero(data.GasPrice)
	data.Value = orZero(data.Value)
	digest, err := data.digest()
	if err != nil {
		return nil, err
	}
	sig, err := key.SignHash(digest)
	if err != nil {
		return nil, err
	}
	r, s, recoveryID := sig.Components()
	tx := &Transaction{
		TxData: data,
		v:      chainV(data.ChainID, recoveryID),
		r:      r,
		s:      s,
		id:     digest,
		from:   key.Address(),
	}
	tx.bytes, err = rlp.EncodeToBytes(&rlpTx{
		Nonce:    data.Nonce,
		GasPrice: data.GasPrice,
		Gas:      data.Gas,
		To:       data.To,
		Value:    data.Value,
		Data:     data.Data,
		V:        tx.v,
		R:        tx.r,
		S:        tx.s,
	})
	if err != nil {
		return nil, err
	}
	return tx, nil
}

func chainV(chainID uint64, recoveryID byte) *big.Int {
	v := new(big.Int).SetUint64(chainID)
	v.Lsh(v, 1)
	v.Add(v, vOffset)
	return v.Add(v, big.NewInt(int64(recoveryID)))
}

func splitV(v *big.Int) (uint64, byte, error) {
	if v == nil || v.Cmp(vOffset) < 0 {
		return 0, 0, ErrInvalidV
	}
	x := new(big.Int).Sub(v, vOffset)
	recoveryID := byte(x.Bit(0))
	x.Rsh(x, 1)
	if !x.IsUint64() {
		return 0, 0, ErrInvalidV
	}
	return x.Uint64(), recoveryID, nil
}

// decodeTx parses the signed encoding without recovering the sender.
func decodeTx(raw []byte) (*Transaction, byte, error) {
	var w rlpTx
	if err := rlp.DecodeBytes(raw, &w); err != nil {
		return nil, 0, err
	}
	chainID, recoveryID, err := splitV(w.V)
	if err != nil {
		return nil, 0, err
	}
	tx := &Transaction{
		TxData: TxData{
			Nonce:    w.Nonce,
			GasPrice: orZero(w.GasPrice),
			Gas:      w.Gas,
			To:       w.To,
			Value:    orZero(w.Value),
			Data:     w.Data,
			ChainID:  chainID,
		},
		v:     w.V,
		r:     orZero(w.R),
		s:     orZero(w.S),
		bytes: raw,
	}
	tx.id, err = tx.digest()
	if err != nil {
		return nil, 0, err
	}
	return tx, recoveryID, nil
}

// UnmarshalTx parses a signed transaction received from an untrusted source
// and recovers its sender.
func UnmarshalTx(raw []byte) (*Transaction, error) {
	tx, recoveryID, err := decodeTx(raw)
	if err != nil {
		return nil, err
	}
	sig, err := secp256k1.FromComponents(tx.r, tx.s, recoveryID)
	if err != nil {
		return nil, err
	}
	tx.from, err = secp256k1.RecoverAddress(tx.id, sig)
	if err != nil {
		return nil, err
	}
	return tx, nil
}

// unmarshalStoredTx parses the storage form, trusting the persisted sender
// and block index.
func unmarshalStoredTx(raw []byte) (*Transaction, error) {
	if len(raw) < TxStorageTrailerLen {
		return nil, fmt.Errorf("%w: missing storage trailer", ErrInvalidTransaction)
	}
	body := raw[:len(raw)-TxStorageTrailerLen]
	tx, _, err := decodeTx(body)
	if err != nil {
		return nil, err
	}
	p := codec.NewReader(raw[len(body):], TxStorageTrailerLen)
	p.UnpackShortID(&tx.from)
	tx.blockIndex = p.UnpackUint32()
	tx.callsContract.Store(p.UnpackBool())
	if err := p.Err(); err != nil {
		return nil, err
	}
	tx.indexed = true
	return tx, nil
}

func (t *Transaction) ID() ids.ID { return t.id }

// Bytes is the signed canonical encoding. The merkle leaf is its hash.
func (t *Transaction) Bytes() []byte     { return t.bytes }
func (t *Transaction) Size() int         { return len(t.bytes) }
func (t *Transaction) From() ids.ShortID { return t.from }

// Signature returns the EIP-155 (v, r, s) values.
func (t *Transaction) Signature() (*big.Int, *big.Int, *big.Int) {
	return new(big.Int).Set(t.v), new(big.Int).Set(t.r), new(big.Int).Set(t.s)
}

// StorageBytes appends the out-of-band fields to [Bytes] so that reloading the
// transaction does not require signature recovery.
func (t *Transaction) StorageBytes() ([]byte, error) {
	p := codec.NewWriter(len(t.bytes)+TxStorageTrailerLen, consts.NetworkSizeLimit)
	p.PackFixedBytes(t.bytes)
	p.PackShortID(t.from)
	p.PackUint32(t.blockIndex)
	p.PackBool(t.callsContract.Load())
	return p.Bytes(), p.Err()
}

func (t *Transaction) BlockIndex() uint32 { return t.blockIndex }
func (t *Transaction) Indexed() bool      { return t.indexed }

// SetBlockIndex records the position of the transaction in its block. It may
// only be called once.
func (t *Transaction) SetBlockIndex(i uint32) error {
	if t.indexed {
		return fmt.Errorf("%w: tx=%s index=%d", ErrBlockIndexSet, t.id, t.blockIndex)
	}
	t.blockIndex = i
	t.indexed = true
	return nil
}

func (t *Transaction) CallsContract() bool { return t.callsContract.Load() }

// MarkCallsContract is set by the state when [To] is a contract.
func (t *Transaction) MarkCallsContract() { t.callsContract.Store(true) }
