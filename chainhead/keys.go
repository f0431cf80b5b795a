// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package chainhead

import (
	"encoding/binary"

	"github.com/ava-labs/avalanchego/ids"

	"github.com/ava-labs/ledgervm/consts"
)

const (
	blockPrefix       byte = 0x0 // hash -> block (storage encoding)
	heightPrefix      byte = 0x1 // height -> hash
	blockHeightPrefix byte = 0x2 // hash -> height
	txPrefix          byte = 0x3 // tx hash -> block hash
	latestByte        byte = 0x4 // latest -> hash
)

var latestKey = []byte{latestByte}

func prefixIDKey(prefix byte, id ids.ID) []byte {
	k := make([]byte, 1+consts.HashLen)
	k[0] = prefix
	copy(k[1:], id[:])
	return k
}

func blockKey(id ids.ID) []byte       { return prefixIDKey(blockPrefix, id) }
func blockHeightKey(id ids.ID) []byte { return prefixIDKey(blockHeightPrefix, id) }
func txKey(id ids.ID) []byte          { return prefixIDKey(txPrefix, id) }

func heightKey(height uint64) []byte {
	k := make([]byte, 1+consts.Uint64Len)
	k[0] = heightPrefix
	binary.BigEndian.PutUint64(k[1:], height)
	return k
}
