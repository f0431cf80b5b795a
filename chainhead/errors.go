// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package chainhead

import "errors"

var (
	ErrCorruptBlock       = errors.New("corrupt block in storage")
	ErrNonContiguousBlock = errors.New("block does not extend the chain")
	ErrInvalidWindowSize  = errors.New("window size must be positive")
)
