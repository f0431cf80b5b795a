// Copyright (C) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package consts

const (
	HashLen      = 32
	AddressLen   = 20
	SignatureLen = 65
	IntLen       = 4
	Uint64Len    = 8
	BoolLen      = 1
	MaxUint32    = ^uint32(0)
	MaxUint64    = ^uint64(0)
	MaxInt       = int(^uint(0) >> 1)

	// NetworkSizeLimit bounds any block handed to the parser.
	NetworkSizeLimit = 256 * 1024 * 1024 // 256 MiB

	NanosecondsPerSecond = 1_000_000_000
)
