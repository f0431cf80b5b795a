// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package chain

import "errors"

var (
	// Structural
	ErrBlockTooLarge      = errors.New("block too large")
	ErrTruncatedHeader    = errors.New("truncated block header")
	ErrTruncatedSection   = errors.New("truncated transaction section")
	ErrInvalidOffsets     = errors.New("invalid section offsets")
	ErrTrailingBytes      = errors.New("trailing bytes")
	ErrInvalidTransaction = errors.New("invalid transaction")

	// Verification
	ErrMerkleMismatch     = errors.New("merkle root mismatch")
	ErrRandomnessMismatch = errors.New("randomness mismatch")
	ErrInvalidSignature   = errors.New("invalid block signature")
	ErrIllegalRecipient   = errors.New("transaction addressed to block manager")

	// Assembly
	ErrBlockFinalized = errors.New("block already finalized")
	ErrBlockIndexSet  = errors.New("block index already set")

	// Transactions
	ErrInvalidV           = errors.New("invalid signature v value")
	ErrValidatorTxPayload = errors.New("validator transaction payload too short")
	ErrMissingSigner      = errors.New("missing signer")
)
