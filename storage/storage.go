// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package storage defines the key-value contract used by the ledger and
// opens the durable store backing it.
package storage

import (
	"io"

	"github.com/ava-labs/avalanchego/database"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ava-labs/ledgervm/pebble"
	"github.com/ava-labs/ledgervm/utils"
)

var (
	_ Database = (*pebbleDatabase)(nil)
	_ Database = (*avalancheDatabase)(nil)
)

// Batch is an atomic set of writes.
type Batch interface {
	Put(key []byte, value []byte) error
	Size() int
	Write() error
	Reset()
}

// Database is the subset of a key-value store the ledger relies on. Missing
// keys are reported with [database.ErrNotFound].
type Database interface {
	Has(key []byte) (bool, error)
	Get(key []byte) ([]byte, error)
	Put(key []byte, value []byte) error
	NewBatch() Batch
	io.Closer
}

type pebbleDatabase struct {
	*pebble.Database
}

func (p pebbleDatabase) NewBatch() Batch {
	return p.Database.NewBatch()
}

// New opens a pebble store in the [namespace] sub-directory of
// [chainDataDir]. Its metrics are prefixed with [namespace].
func New(
	cfg pebble.Config,
	chainDataDir string,
	namespace string,
	registerer prometheus.Registerer,
) (Database, error) {
	path, err := utils.InitSubDirectory(chainDataDir, namespace)
	if err != nil {
		return nil, err
	}
	db, err := pebble.New(path, cfg, prometheus.WrapRegistererWithPrefix(namespace+"_", registerer))
	if err != nil {
		return nil, err
	}
	return pebbleDatabase{Database: db}, nil
}

type avalancheDatabase struct {
	database.Database
}

func (a avalancheDatabase) NewBatch() Batch {
	return a.Database.NewBatch()
}

// FromDatabase adapts any avalanchego database, such as memdb in tests or a
// node-provided store.
func FromDatabase(db database.Database) Database {
	return avalancheDatabase{Database: db}
}
