// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package storage

import (
	"testing"

	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/database/memdb"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/ava-labs/ledgervm/pebble"
)

func testDatabase(t *testing.T, db Database) {
	require := require.New(t)

	_, err := db.Get([]byte("a"))
	require.ErrorIs(err, database.ErrNotFound)

	batch := db.NewBatch()
	require.NoError(batch.Put([]byte("a"), []byte{1}))
	require.NoError(batch.Put([]byte("b"), []byte{2}))
	require.NoError(batch.Write())

	for k, v := range map[string]byte{"a": 1, "b": 2} {
		has, err := db.Has([]byte(k))
		require.NoError(err)
		require.True(has)
		got, err := db.Get([]byte(k))
		require.NoError(err)
		require.Equal([]byte{v}, got)
	}
	require.NoError(db.Close())
}

func TestMemDatabase(t *testing.T) {
	testDatabase(t, FromDatabase(memdb.New()))
}

func TestPebbleDatabase(t *testing.T) {
	cfg := pebble.NewDefaultConfig()
	cfg.CacheSize = 1024 * 1024
	db, err := New(cfg, t.TempDir(), "blockdb", prometheus.NewRegistry())
	require.NoError(t, err)
	testDatabase(t, db)
}
