// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package codec

import "github.com/ava-labs/ledgervm/consts"

// SizedLen is the packed size of [msg] written with [Packer.PackSized].
func SizedLen(msg []byte) int {
	return consts.IntLen + len(msg)
}

// CummSizedLen sums [SizedLen] over [msgs].
func CummSizedLen(msgs [][]byte) int {
	size := 0
	for _, msg := range msgs {
		size += SizedLen(msg)
	}
	return size
}
