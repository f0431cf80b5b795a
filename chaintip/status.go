// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package chaintip

// Status is the consensus status of a block known to a [ChainTip].
type Status uint32

const (
	Unknown Status = iota
	Processing
	Rejected
	Accepted
)

// Decided reports whether the status is terminal.
func (s Status) Decided() bool {
	return s == Rejected || s == Accepted
}

func (s Status) String() string {
	switch s {
	case Unknown:
		return "Unknown"
	case Processing:
		return "Processing"
	case Rejected:
		return "Rejected"
	case Accepted:
		return "Accepted"
	default:
		return "Invalid status"
	}
}
