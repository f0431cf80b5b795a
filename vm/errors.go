// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package vm

import "errors"

var (
	ErrInvalidConfig = errors.New("invalid config")
	ErrInvalidBlock  = errors.New("block rejected by state")
	ErrShutdown      = errors.New("vm shut down")
)
