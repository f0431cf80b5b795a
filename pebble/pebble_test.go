// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package pebble

import (
	"crypto/rand"
	"fmt"
	"testing"

	"github.com/ava-labs/avalanchego/database"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

const batchSize = 10_000

func randBytes() []byte {
	b := make([]byte, 32)
	_, err := rand.Read(b)
	if err != nil {
		panic(err)
	}
	return b
}

func newTestDB(t *testing.T, dir string) *Database {
	cfg := NewDefaultConfig()
	cfg.CacheSize = 1024 * 1024
	db, err := New(dir, cfg, prometheus.NewRegistry())
	require.NoError(t, err)
	return db
}

func TestGetPut(t *testing.T) {
	require := require.New(t)

	db := newTestDB(t, t.TempDir())
	defer db.Close()

	has, err := db.Has([]byte("missing"))
	require.NoError(err)
	require.False(has)
	_, err = db.Get([]byte("missing"))
	require.ErrorIs(err, database.ErrNotFound)

	require.NoError(db.Put([]byte("k"), []byte("v")))
	has, err = db.Has([]byte("k"))
	require.NoError(err)
	require.True(has)
	v, err := db.Get([]byte("k"))
	require.NoError(err)
	require.Equal([]byte("v"), v)
}

func TestBatchPersists(t *testing.T) {
	require := require.New(t)

	dir := t.TempDir()
	db := newTestDB(t, dir)
	keys := make([][]byte, 100)
	batch := db.NewBatch()
	for i := range keys {
		keys[i] = randBytes()
		require.NoError(batch.Put(keys[i], keys[i]))
	}
	require.Equal(100*64, batch.Size())

	// Nothing is visible until the batch is written.
	has, err := db.Has(keys[0])
	require.NoError(err)
	require.False(has)

	require.NoError(batch.Write())
	batch.Reset()
	require.Zero(batch.Size())
	require.NoError(db.Close())

	db = newTestDB(t, dir)
	defer db.Close()
	for _, k := range keys {
		v, err := db.Get(k)
		require.NoError(err)
		require.Equal(k, v)
	}
}

func TestClosed(t *testing.T) {
	require := require.New(t)

	db := newTestDB(t, t.TempDir())
	batch := db.NewBatch()
	require.NoError(batch.Put([]byte("k"), []byte("v")))
	require.NoError(db.Close())

	_, err := db.Get([]byte("k"))
	require.ErrorIs(err, database.ErrClosed)
	require.ErrorIs(db.Put([]byte("k"), []byte("v")), database.ErrClosed)
	require.ErrorIs(batch.Write(), database.ErrClosed)
	require.ErrorIs(db.Close(), database.ErrClosed)
}

func BenchmarkBatchInsertion(b *testing.B) {
	for _, sync := range []bool{false, true} {
		b.Run(fmt.Sprintf("sync=%t", sync), func(b *testing.B) {
			b.StopTimer()
			cfg := NewDefaultConfig()
			cfg.Sync = sync
			db, err := New(b.TempDir(), cfg, prometheus.NewRegistry())
			if err != nil {
				b.Fatal(err)
			}
			defer db.Close()

			keys := make([][]byte, batchSize)
			for i := range keys {
				keys[i] = randBytes()
			}

			b.StartTimer()
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				batch := db.NewBatch()
				for j := 0; j < batchSize; j++ {
					if err := batch.Put(keys[j], randBytes()); err != nil {
						b.Fatal(err)
					}
				}
				if err := batch.Write(); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func TestBatchMetrics(t *testing.T) {
	require := require.New(t)

	registry := prometheus.NewRegistry()
	cfg := NewDefaultConfig()
	cfg.CacheSize = 1024 * 1024
	db, err := New(t.TempDir(), cfg, registry)
	require.NoError(err)
	defer db.Close()

	batch := db.NewBatch()
	for round := 0; round < 2; round++ {
		for i := 0; i < 10; i++ {
			require.NoError(batch.Put(randBytes(), randBytes()))
		}
		require.NoError(batch.Write())
		batch.Reset()
	}

	families, err := registry.Gather()
	require.NoError(err)
	values := make(map[string]float64)
	for _, family := range families {
		for _, m := range family.GetMetric() {
			if c := m.GetCounter(); c != nil {
				values[family.GetName()] = c.GetValue()
			}
		}
	}
	require.Equal(float64(2), values["pebble_batch_commits"])
	require.Equal(float64(2*10*64), values["pebble_batch_bytes"])
}
