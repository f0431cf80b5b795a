// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package chainhead

import (
	"runtime"

	"github.com/ava-labs/ledgervm/chain"
)

type Config struct {
	// WindowSize is the number of recent blocks loaded into memory on
	// startup.
	WindowSize int `json:"windowSize"`
	// RehydrationCacheSize bounds the blocks kept in memory after they are
	// flushed out of the window or read back from disk.
	RehydrationCacheSize int    `json:"rehydrationCacheSize"`
	GenesisTimestamp     uint64 `json:"genesisTimestamp"`
	LoadConcurrency      int    `json:"loadConcurrency"`
}

func NewDefaultConfig() Config {
	return Config{
		WindowSize:           1_000,
		RehydrationCacheSize: 128,
		GenesisTimestamp:     chain.DefaultGenesisTimestamp,
		LoadConcurrency:      runtime.NumCPU(),
	}
}
