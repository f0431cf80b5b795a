// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package blockmanager

import "errors"

var (
	ErrNoValidators       = errors.New("no validators")
	ErrDuplicateValidator = errors.New("duplicate validator")
	ErrCorruptValidator   = errors.New("corrupt validator entry")
	ErrWrongProposer      = errors.New("block not signed by the current proposer")
	ErrUnknownValidator   = errors.New("validator transaction signed by non-validator")
)
