// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package vm

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ava-labs/avalanchego/ids"

	"github.com/ava-labs/ledgervm/chain"
	"github.com/ava-labs/ledgervm/chainhead"
	"github.com/ava-labs/ledgervm/pebble"
	"github.com/ava-labs/ledgervm/trace"
)

type Config struct {
	TraceConfig   trace.Config       `json:"traceConfig"`
	Parser        chain.ParserConfig `json:"parser"`
	ChainHead     chainhead.Config   `json:"chainHead"`
	FlushInterval time.Duration      `json:"flushInterval"`
	MaxAncestors  int                `json:"maxAncestors"`
	// Pebble configures the store opened by [Open].
	Pebble pebble.Config `json:"pebble"`
	// Validators seeds an empty database. Once stored, the validator set is
	// read from disk and this field is ignored.
	Validators []ids.ShortID `json:"validators"`
}

func NewConfig() Config {
	return Config{
		TraceConfig:   trace.Config{Enabled: false},
		Parser:        chain.NewDefaultParserConfig(),
		ChainHead:     chainhead.NewDefaultConfig(),
		FlushInterval: 15 * time.Second,
		MaxAncestors:  128,
		Pebble:        pebble.NewDefaultConfig(),
	}
}

// ParseConfig unmarshals [b] over the defaults.
func ParseConfig(b []byte) (Config, error) {
	c := NewConfig()
	if len(b) > 0 {
		if err := json.Unmarshal(b, &c); err != nil {
			return Config{}, fmt.Errorf("failed to unmarshal config %s: %w", string(b), err)
		}
	}
	if c.FlushInterval <= 0 {
		return Config{}, fmt.Errorf("%w: flushInterval=%s", ErrInvalidConfig, c.FlushInterval)
	}
	if c.MaxAncestors <= 0 {
		return Config{}, fmt.Errorf("%w: maxAncestors=%d", ErrInvalidConfig, c.MaxAncestors)
	}
	return c, nil
}
