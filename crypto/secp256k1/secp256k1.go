// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package secp256k1

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/ava-labs/avalanchego/ids"

	avasecp256k1 "github.com/ava-labs/avalanchego/utils/crypto/secp256k1"

	"github.com/ava-labs/ledgervm/consts"
	"github.com/ava-labs/ledgervm/crypto"
)

const (
	PrivateKeyLen = 32
	SignatureLen  = consts.SignatureLen // r(32) || s(32) || v(1)

	scalarLen = 32
	// recoveryIDIndex is the position of v in a [Signature].
	recoveryIDIndex = 2 * scalarLen
)

// Signature is a recoverable secp256k1 signature laid out as r || s || v with
// v in {0, 1}.
type Signature [SignatureLen]byte

var EmptySignature = Signature{}

type PrivateKey struct {
	sk *avasecp256k1.PrivateKey
}

// GeneratePrivateKey returns a fresh random secp256k1 private key.
func GeneratePrivateKey() (*PrivateKey, error) {
	sk, err := avasecp256k1.NewPrivateKey()
	if err != nil {
		return nil, err
	}
	return &PrivateKey{sk: sk}, nil
}

// ToPrivateKey parses a 32-byte scalar.
func ToPrivateKey(b []byte) (*PrivateKey, error) {
	if len(b) != PrivateKeyLen {
		return nil, fmt.Errorf("%w: length=%d", crypto.ErrInvalidPrivateKey, len(b))
	}
	sk, err := avasecp256k1.ToPrivateKey(b)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", crypto.ErrInvalidPrivateKey, err)
	}
	return &PrivateKey{sk: sk}, nil
}

// HexToPrivateKey parses a hex scalar, with or without a 0x prefix.
func HexToPrivateKey(s string) (*PrivateKey, error) {
	b, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", crypto.ErrInvalidPrivateKey, err)
	}
	return ToPrivateKey(b)
}

func (p *PrivateKey) Bytes() []byte {
	return p.sk.Bytes()
}

// Address is the 20-byte account derived from the public key.
func (p *PrivateKey) Address() ids.ShortID {
	return p.sk.Address()
}

// SignHash signs a pre-computed 32-byte digest.
func (p *PrivateKey) SignHash(hash ids.ID) (Signature, error) {
	raw, err := p.sk.SignHash(hash[:])
	if err != nil {
		return EmptySignature, err
	}
	if len(raw) != SignatureLen {
		return EmptySignature, fmt.Errorf("%w: length=%d", crypto.ErrInvalidSignature, len(raw))
	}
	return Signature(raw), nil
}

// RecoverAddress returns the address of the key that produced [sig] over
// [hash].
func RecoverAddress(hash ids.ID, sig Signature) (ids.ShortID, error) {
	pk, err := avasecp256k1.RecoverPublicKeyFromHash(hash[:], sig[:])
	if err != nil {
		return ids.ShortEmpty, fmt.Errorf("%w: %w", crypto.ErrInvalidSignature, err)
	}
	return pk.Address(), nil
}

// Verify reports whether [sig] over [hash] was produced by [addr].
func Verify(hash ids.ID, sig Signature, addr ids.ShortID) bool {
	signer, err := RecoverAddress(hash, sig)
	return err == nil && signer == addr
}

// Components splits [s] into the scalars and recovery id used by
// transaction encodings.
func (s Signature) Components() (*big.Int, *big.Int, byte) {
	r := new(big.Int).SetBytes(s[:scalarLen])
	sv := new(big.Int).SetBytes(s[scalarLen:recoveryIDIndex])
	return r, sv, s[recoveryIDIndex]
}

// FromComponents rebuilds a [Signature] from its scalars and recovery id.
func FromComponents(r, s *big.Int, recoveryID byte) (Signature, error) {
	var sig Signature
	if r == nil || s == nil || r.Sign() < 0 || s.Sign() < 0 ||
		r.BitLen() > 8*scalarLen || s.BitLen() > 8*scalarLen {
		return sig, crypto.ErrInvalidSignature
	}
	if recoveryID > 1 {
		return sig, fmt.Errorf("%w: %d", crypto.ErrInvalidRecoveryID, recoveryID)
	}
	r.FillBytes(sig[:scalarLen])
	s.FillBytes(sig[scalarLen:recoveryIDIndex])
	sig[recoveryIDIndex] = recoveryID
	return sig, nil
}
