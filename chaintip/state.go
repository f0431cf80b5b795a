// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package chaintip

import (
	"context"

	"github.com/ava-labs/ledgervm/chain"
	"github.com/ava-labs/ledgervm/chainhead"
)

// State applies the effects of blocks to the account ledger.
//
// Implementations must not call back into the [ChainTip] that invokes them.
type State interface {
	// ValidateNewBlock reports whether [blk] can be applied on top of the
	// latest block in [head].
	ValidateNewBlock(ctx context.Context, blk *chain.Block, head *chainhead.ChainHead) bool
	// ProcessNewBlock applies [blk]. It is called exactly once per accepted
	// block, before the block is appended to [head].
	ProcessNewBlock(ctx context.Context, blk *chain.Block, head *chainhead.ChainHead) error
}
