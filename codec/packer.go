// Copyright (C) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package codec

import (
	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/wrappers"

	"github.com/ava-labs/ledgervm/consts"
)

// Packer is a big-endian reader/writer for the block wire format.
//
// Errors are sticky: the first failure is recorded and every following call
// becomes a no-op, so callers check [Err] once at the end.
type Packer struct {
	p *wrappers.Packer
}

// NewReader returns a Packer that reads from [src]. [limit] bounds the
// largest byte slice that may be read.
func NewReader(src []byte, limit int) *Packer {
	return &Packer{
		p: &wrappers.Packer{
			Bytes:   src,
			MaxSize: limit,
		},
	}
}

// NewWriter returns a Packer with [initial] bytes of pre-allocated capacity
// that refuses to grow beyond [limit].
func NewWriter(initial, limit int) *Packer {
	return &Packer{
		p: &wrappers.Packer{
			Bytes:   make([]byte, 0, initial),
			MaxSize: limit,
		},
	}
}

func (p *Packer) Bytes() []byte {
	return p.p.Bytes
}

func (p *Packer) Offset() int {
	return p.p.Offset
}

func (p *Packer) Err() error {
	return p.p.Err
}

// Empty reports whether every byte has been consumed.
func (p *Packer) Empty() bool {
	return p.p.Offset == len(p.p.Bytes)
}

func (p *Packer) PackFixedBytes(b []byte) {
	p.p.PackFixedBytes(b)
}

func (p *Packer) PackID(id ids.ID) {
	p.p.PackFixedBytes(id[:])
}

func (p *Packer) PackShortID(id ids.ShortID) {
	p.p.PackFixedBytes(id[:])
}

func (p *Packer) PackUint64(v uint64) {
	p.p.PackLong(v)
}

func (p *Packer) PackUint32(v uint32) {
	p.p.PackInt(v)
}

func (p *Packer) PackBool(v bool) {
	p.p.PackBool(v)
}

// PackSized writes [b] prefixed by its length as a u32.
func (p *Packer) PackSized(b []byte) {
	if len(b) > int(consts.MaxUint32) {
		p.p.Add(ErrTooLarge)
		return
	}
	p.p.PackInt(uint32(len(b)))
	p.p.PackFixedBytes(b)
}

// UnpackFixedBytes returns the next [size] bytes without copying.
func (p *Packer) UnpackFixedBytes(size int) []byte {
	return p.p.UnpackFixedBytes(size)
}

func (p *Packer) UnpackID(dest *ids.ID) {
	copy((*dest)[:], p.p.UnpackFixedBytes(consts.HashLen))
}

func (p *Packer) UnpackShortID(dest *ids.ShortID) {
	copy((*dest)[:], p.p.UnpackFixedBytes(consts.AddressLen))
}

func (p *Packer) UnpackUint64() uint64 {
	return p.p.UnpackLong()
}

func (p *Packer) UnpackUint32() uint32 {
	return p.p.UnpackInt()
}

func (p *Packer) UnpackBool() bool {
	return p.p.UnpackBool()
}

// UnpackSized reads a u32 length prefix followed by that many bytes. The
// returned slice aliases the underlying buffer.
func (p *Packer) UnpackSized() []byte {
	size := p.p.UnpackInt()
	if p.p.Errored() {
		return nil
	}
	return p.p.UnpackFixedBytes(int(size))
}
