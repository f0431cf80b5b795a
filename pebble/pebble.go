// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package pebble

import (
	"errors"
	"sync"
	"time"

	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/utils/units"
	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/bloom"
	"github.com/prometheus/client_golang/prometheus"
)

type Config struct {
	CacheSize                   int  `json:"cacheSize"`
	BytesPerSync                int  `json:"bytesPerSync"`
	WALBytesPerSync             int  `json:"walBytesPerSync"`
	MemTableStopWritesThreshold int  `json:"memTableStopWritesThreshold"`
	MemTableSize                int  `json:"memTableSize"`
	MaxOpenFiles                int  `json:"maxOpenFiles"`
	ConcurrentCompactions       int  `json:"concurrentCompactions"`
	Sync                        bool `json:"sync"`
}

func NewDefaultConfig() Config {
	return Config{
		CacheSize:                   512 * units.MiB,
		BytesPerSync:                units.MiB,
		WALBytesPerSync:             units.MiB,
		MemTableStopWritesThreshold: 8,
		MemTableSize:                16 * units.MiB,
		MaxOpenFiles:                4_096,
		ConcurrentCompactions:       1,
		Sync:                        true,
	}
}

// Database is a durable key-value store. Reads of missing keys return
// [database.ErrNotFound] and any use after [Close] returns
// [database.ErrClosed].
type Database struct {
	lock   sync.RWMutex
	closed bool

	db           *pebble.DB
	writeOptions *pebble.WriteOptions

	metrics *metrics
	closing chan struct{}
}

func New(file string, cfg Config, registerer prometheus.Registerer) (*Database, error) {
	m, err := newMetrics(registerer)
	if err != nil {
		return nil, err
	}
	d := &Database{
		writeOptions: &pebble.WriteOptions{Sync: cfg.Sync},
		metrics:      m,
		closing:      make(chan struct{}),
	}

	cache := pebble.NewCache(int64(cfg.CacheSize))
	defer cache.Unref()
	opts := &pebble.Options{
		Cache:                       cache,
		BytesPerSync:                cfg.BytesPerSync,
		Comparer:                    pebble.DefaultComparer,
		WALBytesPerSync:             cfg.WALBytesPerSync,
		MemTableStopWritesThreshold: cfg.MemTableStopWritesThreshold,
		MemTableSize:                uint64(cfg.MemTableSize),
		MaxOpenFiles:                cfg.MaxOpenFiles,
		MaxConcurrentCompactions:    func() int { return cfg.ConcurrentCompactions },
		Levels:                      make([]pebble.LevelOptions, 7),
	}
	// Block lookups are point reads keyed by hash, so every level but the
	// last gets a bloom filter.
	for i := range opts.Levels {
		l := &opts.Levels[i]
		l.BlockSize = 32 * units.KiB
		l.IndexBlockSize = 256 * units.KiB
		l.FilterPolicy = bloom.FilterPolicy(10)
		l.FilterType = pebble.TableFilter
		if i > 0 {
			l.TargetFileSize = opts.Levels[i-1].TargetFileSize * 2
		}
		l.EnsureDefaults()
	}
	opts.Levels[6].FilterPolicy = nil
	opts.EventListener = &pebble.EventListener{
		CompactionBegin: d.onCompactionBegin,
		CompactionEnd:   d.onCompactionEnd,
		WriteStallBegin: d.onWriteStallBegin,
		WriteStallEnd:   d.onWriteStallEnd,
	}

	db, err := pebble.Open(file, opts)
	if err != nil {
		return nil, err
	}
	d.db = db
	go d.collectMetrics()
	return d, nil
}

func (d *Database) Has(key []byte) (bool, error) {
	_, err := d.Get(key)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, database.ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

// Get returns a copy of the value stored at [key].
func (d *Database) Get(key []byte) ([]byte, error) {
	d.lock.RLock()
	defer d.lock.RUnlock()

	if d.closed {
		return nil, database.ErrClosed
	}
	start := time.Now()
	value, closer, err := d.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, database.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()
	d.metrics.getLatency.Observe(float64(time.Since(start)))
	return append([]byte(nil), value...), nil
}

func (d *Database) Put(key []byte, value []byte) error {
	d.lock.RLock()
	defer d.lock.RUnlock()

	if d.closed {
		return database.ErrClosed
	}
	return d.db.Set(key, value, d.writeOptions)
}

func (d *Database) NewBatch() *Batch {
	return &Batch{
		d:     d,
		batch: d.db.NewBatch(),
	}
}

func (d *Database) Close() error {
	d.lock.Lock()
	defer d.lock.Unlock()

	if d.closed {
		return database.ErrClosed
	}
	d.closed = true
	close(d.closing)
	return d.db.Close()
}

// Batch collects writes that are committed atomically.
type Batch struct {
	d     *Database
	batch *pebble.Batch
	size  int
}

func (b *Batch) Put(key []byte, value []byte) error {
	b.size += len(key) + len(value)
	return b.batch.Set(key, value, nil)
}

// Size is the number of key and value bytes written to the batch.
func (b *Batch) Size() int {
	return b.size
}

func (b *Batch) Write() error {
	b.d.lock.RLock()
	defer b.d.lock.RUnlock()

	if b.d.closed {
		return database.ErrClosed
	}
	if err := b.batch.Commit(b.d.writeOptions); err != nil {
		return err
	}
	b.d.metrics.batchCommits.Inc()
	b.d.metrics.batchBytes.Add(float64(b.size))
	return nil
}

func (b *Batch) Reset() {
	b.batch.Reset()
	b.size = 0
}
