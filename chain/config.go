// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package chain

import "runtime"

const DefaultParallelDecodeThreshold = 1_000

type ParserConfig struct {
	// Blocks with at least this many transactions decode their transaction
	// section on the worker pool.
	ParallelDecodeThreshold int `json:"parallelDecodeThreshold"`
	DecodeCores             int `json:"decodeCores"`
}

func NewDefaultParserConfig() ParserConfig {
	return ParserConfig{
		ParallelDecodeThreshold: DefaultParallelDecodeThreshold,
		DecodeCores:             runtime.NumCPU(),
	}
}
