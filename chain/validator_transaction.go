// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package chain

import (
	"fmt"
	"math/big"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/ava-labs/ledgervm/codec"
	"github.com/ava-labs/ledgervm/consts"
	"github.com/ava-labs/ledgervm/crypto"
	"github.com/ava-labs/ledgervm/crypto/secp256k1"
)

const (
	// A validator payload starts with a 4-byte function selector followed by
	// the 32-byte value that feeds block randomness.
	SelectorLen        = 4
	SeedLen            = consts.HashLen
	MinValidatorTxData = SelectorLen + SeedLen

	ValidatorTxStorageTrailerLen = consts.AddressLen
)

type ValidatorTxData struct {
	Data    []byte
	ChainID uint64
	NHeight uint64
}

// ValidatorTransaction is authored by a block producer. Validators are not
// accounts, so it carries no nonce, value or gas.
type ValidatorTransaction struct {
	ValidatorTxData

	v *big.Int
	r *big.Int
	s *big.Int

	id    ids.ID
	bytes []byte
	from  ids.ShortID
}

type rlpValidatorTx struct {
	Data    []byte
	ChainID uint64
	NHeight uint64
	V       *big.Int
	R       *big.Int
	S       *big.Int
}

type rlpUnsignedValidatorTx struct {
	Data    []byte
	ChainID uint64
	NHeight uint64
}

func (d *ValidatorTxData) digest() (ids.ID, error) {
	raw, err := rlp.EncodeToBytes(&rlpUnsignedValidatorTx{
		Data:    d.Data,
		ChainID: d.ChainID,
		NHeight: d.NHeight,
	})
	if err != nil {
		return ids.Empty, err
	}
	return crypto.Keccak256(raw), nil
}

func (d *ValidatorTxData) verifyPayload() error {
	if len(d.Data) < MinValidatorTxData {
		return fmt.Errorf("%w: length=%d", ErrValidatorTxPayload, len(d.Data))
	}
	return nil
}

func SignValidatorTx(data ValidatorTxData, key *secp256k1.PrivateKey) (*ValidatorTransaction, error) {
	if err := data.verifyPayload(); err != nil {
		return nil, err
	}
	digest, err := data.digest()
	if err != nil {
		return nil, err
	}
	sig, err := key.SignHash(digest)
	if err != nil {
		return nil, err
	}
	r, s, recoveryID := sig.Components()
	vtx := &ValidatorTransaction{
		ValidatorTxData: data,
		v:               chainV(data.ChainID, recoveryID),
		r:               r,
		s:               s,
		id:              digest,
		from:            key.Address(),
	}
	vtx.bytes, err = rlp.EncodeToBytes(&rlpValidatorTx{
		Data:    data.Data,
		ChainID: data.ChainID,
		NHeight: data.NHeight,
		V:       vtx.v,
		R:       vtx.r,
		S:       vtx.s,
	})
	if err != nil {
		return nil, err
	}
	return vtx, nil
}

func decodeValidatorTx(raw []byte) (*ValidatorTransaction, byte, error) {
	var w rlpValidatorTx
	if err := rlp.DecodeBytes(raw, &w); err != nil {
		return nil, 0, err
	}
	chainID, recoveryID, err := splitV(w.V)
	if err != nil {
		return nil, 0, err
	}
	if chainID != w.ChainID {
		return nil, 0, fmt.Errorf("%w: chainID=%d v=%s", ErrInvalidV, w.ChainID, w.V)
	}
	vtx := &ValidatorTransaction{
		ValidatorTxData: ValidatorTxData{
			Data:    w.Data,
			ChainID: w.ChainID,
			NHeight: w.NHeight,
		},
		v:     w.V,
		r:     orZero(w.R),
		s:     orZero(w.S),
		bytes: raw,
	}
	if err := vtx.verifyPayload(); err != nil {
		return nil, 0, err
	}
	vtx.id, err = vtx.digest()
	if err != nil {
		return nil, 0, err
	}
	return vtx, recoveryID, nil
}

// UnmarshalValidatorTx parses an untrusted validator transaction and recovers
// its signer.
func UnmarshalValidatorTx(raw []byte) (*ValidatorTransaction, error) {
	vtx, recoveryID, err := decodeValidatorTx(raw)
	if err != nil {
		return nil, err
	}
	sig, err := secp256k1.FromComponents(vtx.r, vtx.s, recoveryID)
	if err != nil {
		return nil, err
	}
	vtx.from, err = secp256k1.RecoverAddress(vtx.id, sig)
	if err != nil {
		return nil, err
	}
	return vtx, nil
}

func unmarshalStoredValidatorTx(raw []byte) (*ValidatorTransaction, error) {
	if len(raw) < ValidatorTxStorageTrailerLen {
		return nil, fmt.Errorf("%w: missing storage trailer", ErrInvalidTransaction)
	}
	body := raw[:len(raw)-ValidatorTxStorageTrailerLen]
	vtx, _, err := decodeValidatorTx(body)
	if err != nil {
		return nil, err
	}
	copy(vtx.from[:], raw[len(body):])
	return vtx, nil
}

func (v *ValidatorTransaction) ID() ids.ID        { return v.id }
func (v *ValidatorTransaction) Bytes() []byte     { return v.bytes }
func (v *ValidatorTransaction) From() ids.ShortID { return v.from }

// Seed is the slice of the payload committed to block randomness.
func (v *ValidatorTransaction) Seed() []byte {
	return v.Data[SelectorLen:MinValidatorTxData]
}

func (v *ValidatorTransaction) StorageBytes() ([]byte, error) {
	p := codec.NewWriter(len(v.bytes)+ValidatorTxStorageTrailerLen, consts.NetworkSizeLimit)
	p.PackFixedBytes(v.bytes)
	p.PackShortID(v.from)
	return p.Bytes(), p.Err()
}
