// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package chaintip

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/ava-labs/avalanchego/database/memdb"
	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/ava-labs/ledgervm/chain"
	"github.com/ava-labs/ledgervm/chain/chaintest"
	"github.com/ava-labs/ledgervm/chainhead"
	"github.com/ava-labs/ledgervm/storage"
	"github.com/ava-labs/ledgervm/trace"
)

var errProcess = errors.New("process failed")

func newHead(t *testing.T) *chainhead.ChainHead {
	require := require.New(t)

	parser, err := chain.NewParser(
		logging.NoLog{},
		trace.Noop("test"),
		chain.NewDefaultParserConfig(),
		nil,
		prometheus.NewRegistry(),
	)
	require.NoError(err)
	t.Cleanup(parser.Close)

	head, err := chainhead.New(
		context.Background(),
		logging.NoLog{},
		prometheus.NewRegistry(),
		chainhead.NewDefaultConfig(),
		storage.FromDatabase(memdb.New()),
		parser,
	)
	require.NoError(err)
	return head
}

func TestStatusString(t *testing.T) {
	require := require.New(t)

	require.Equal("Unknown", Unknown.String())
	require.Equal("Processing", Processing.String())
	require.Equal("Rejected", Rejected.String())
	require.Equal("Accepted", Accepted.String())
	require.False(Processing.Decided())
	require.True(Accepted.Decided())
	require.True(Rejected.Decided())
}

func TestUnknownBlock(t *testing.T) {
	require := require.New(t)

	tip := New(logging.NoLog{})
	id := ids.GenerateTestID()
	require.Equal(Unknown, tip.GetStatus(id))
	require.False(tip.IsProcessing(id))
	require.False(tip.Exists(id))
	_, ok := tip.GetBlock(id)
	require.False(ok)

	ctrl := gomock.NewController(t)
	_, err := tip.Accept(context.Background(), id, NewMockState(ctrl), newHead(t))
	require.ErrorIs(err, ErrUnknownBlock)
	require.ErrorIs(tip.Reject(id), ErrUnknownBlock)
}

func TestAccept(t *testing.T) {
	require := require.New(t)
	ctrl := gomock.NewController(t)

	ctx := context.Background()
	head := newHead(t)
	key := chaintest.Keys(t, 1)[0]
	blk := chaintest.NewChild(t, head.Latest(), key, 0, 2)

	tip := New(logging.NoLog{})
	require.NoError(tip.ProcessBlock(blk))
	require.NoError(tip.ProcessBlock(blk))
	require.True(tip.IsProcessing(blk.ID()))
	require.Equal([]ids.ID{blk.ID()}, tip.Processing())
	got, ok := tip.GetBlock(blk.ID())
	require.True(ok)
	require.Equal(blk, got)

	state := NewMockState(ctrl)
	state.EXPECT().ProcessNewBlock(ctx, blk, head).Return(nil).Times(1)
	accepted, err := tip.Accept(ctx, blk.ID(), state, head)
	require.NoError(err)
	require.Equal(blk, accepted)

	require.Equal(Accepted, tip.GetStatus(blk.ID()))
	require.False(tip.IsProcessing(blk.ID()))
	require.True(tip.Exists(blk.ID()))
	_, ok = tip.GetBlock(blk.ID())
	require.False(ok)
	require.Empty(tip.Processing())
	require.Equal(blk.ID(), head.Latest().ID())

	// Redelivered decisions do not reach the collaborators again.
	accepted, err = tip.Accept(ctx, blk.ID(), state, head)
	require.NoError(err)
	require.Nil(accepted)
	require.NoError(tip.Reject(blk.ID()))
	require.Equal(Accepted, tip.GetStatus(blk.ID()))
	require.ErrorIs(tip.ProcessBlock(blk), ErrDecided)
}

func TestAcceptFailureKeepsProcessing(t *testing.T) {
	require := require.New(t)
	ctrl := gomock.NewController(t)

	ctx := context.Background()
	head := newHead(t)
	key := chaintest.Keys(t, 1)[0]
	blk := chaintest.NewChild(t, head.Latest(), key, 0, 1)

	tip := New(logging.NoLog{})
	require.NoError(tip.ProcessBlock(blk))

	state := NewMockState(ctrl)
	gomock.InOrder(
		state.EXPECT().ProcessNewBlock(ctx, blk, head).Return(errProcess),
		state.EXPECT().ProcessNewBlock(ctx, blk, head).Return(nil),
	)
	_, err := tip.Accept(ctx, blk.ID(), state, head)
	require.ErrorIs(err, errProcess)
	require.Equal(Processing, tip.GetStatus(blk.ID()))
	require.Equal(uint64(0), head.Latest().Height())

	_, err = tip.Accept(ctx, blk.ID(), state, head)
	require.NoError(err)
	require.Equal(Accepted, tip.GetStatus(blk.ID()))
	require.Equal(uint64(1), head.Latest().Height())
}

func TestAcceptNonContiguous(t *testing.T) {
	require := require.New(t)
	ctrl := gomock.NewController(t)

	ctx := context.Background()
	head := newHead(t)
	key := chaintest.Keys(t, 1)[0]
	child := chaintest.NewChild(t, head.Latest(), key, 0, 0)
	grandchild := chaintest.NewChild(t, child, key, 0, 0)

	tip := New(logging.NoLog{})
	require.NoError(tip.ProcessBlock(child))
	require.NoError(tip.ProcessBlock(grandchild))

	// The mock fails the test if state sees the grandchild before its parent
	// is in the ledger.
	state := NewMockState(ctrl)
	for i := 0; i < 3; i++ {
		_, err := tip.Accept(ctx, grandchild.ID(), state, head)
		require.ErrorIs(err, chainhead.ErrNonContiguousBlock)
		require.Equal(Processing, tip.GetStatus(grandchild.ID()))
		require.Equal(uint64(0), head.Latest().Height())
	}

	gomock.InOrder(
		state.EXPECT().ProcessNewBlock(ctx, child, head).Return(nil),
		state.EXPECT().ProcessNewBlock(ctx, grandchild, head).Return(nil),
	)
	_, err := tip.Accept(ctx, child.ID(), state, head)
	require.NoError(err)
	_, err = tip.Accept(ctx, grandchild.ID(), state, head)
	require.NoError(err)
	require.Equal(grandchild.ID(), head.Latest().ID())
}

func TestReject(t *testing.T) {
	require := require.New(t)
	ctrl := gomock.NewController(t)

	head := newHead(t)
	key := chaintest.Keys(t, 1)[0]
	blk := chaintest.NewChild(t, head.Latest(), key, 0, 1)

	tip := New(logging.NoLog{})
	require.NoError(tip.ProcessBlock(blk))
	require.NoError(tip.Reject(blk.ID()))
	require.NoError(tip.Reject(blk.ID()))

	require.Equal(Rejected, tip.GetStatus(blk.ID()))
	_, ok := tip.GetBlock(blk.ID())
	require.False(ok)
	require.Empty(tip.Processing())

	accepted, err := tip.Accept(context.Background(), blk.ID(), NewMockState(ctrl), head)
	require.NoError(err)
	require.Nil(accepted)
	require.Equal(Rejected, tip.GetStatus(blk.ID()))
	require.Equal(uint64(0), head.Latest().Height())
}

func TestPreference(t *testing.T) {
	require := require.New(t)

	tip := New(logging.NoLog{})
	require.Equal(ids.Empty, tip.GetPreference())

	a, b := ids.GenerateTestID(), ids.GenerateTestID()
	tip.SetPreference(a)
	tip.SetPreference(b)
	require.Equal(b, tip.GetPreference())
}

func TestConcurrentDecisions(t *testing.T) {
	require := require.New(t)

	head := newHead(t)
	key := chaintest.Keys(t, 1)[0]
	blks := make([]*chain.Block, 16)
	tip := New(logging.NoLog{})
	for i := range blks {
		blks[i] = chaintest.NewChild(t, head.Latest(), key, 0, 1)
		require.NoError(tip.ProcessBlock(blks[i]))
	}

	var wg sync.WaitGroup
	for _, blk := range blks {
		blk := blk
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = tip.Reject(blk.ID())
		}()
		go func() {
			defer wg.Done()
			_ = tip.GetStatus(blk.ID())
			_, _ = tip.GetBlock(blk.ID())
		}()
	}
	wg.Wait()

	for _, blk := range blks {
		require.Equal(Rejected, tip.GetStatus(blk.ID()))
	}
	require.Empty(tip.Processing())
}
