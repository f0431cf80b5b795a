// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package chaintip

import "errors"

var (
	ErrUnknownBlock = errors.New("unknown block")
	ErrDecided      = errors.New("block already decided")
)
