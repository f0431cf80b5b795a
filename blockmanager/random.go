// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package blockmanager

import (
	"math/big"

	"github.com/ava-labs/avalanchego/ids"

	"github.com/ava-labs/ledgervm/crypto"
)

// randomGen is a keccak hash chain. Each draw replaces the seed with its
// hash and returns the new seed as a 256-bit integer.
type randomGen struct {
	seed ids.ID
}

func (g *randomGen) next() *big.Int {
	g.seed = crypto.Keccak256(g.seed[:])
	return new(big.Int).SetBytes(g.seed[:])
}

// shuffle permutes [list] in place with a Fisher-Yates pass driven by [seed].
func shuffle(list []ids.ShortID, seed ids.ID) {
	g := &randomGen{seed: seed}
	for i := 0; i < len(list)-1; i++ {
		remaining := big.NewInt(int64(len(list) - i))
		j := i + int(new(big.Int).Mod(g.next(), remaining).Int64())
		list[i], list[j] = list[j], list[i]
	}
}

// proposerOrder derives the proposer order that follows [latest]. Blocks
// carrying randomness reshuffle the set. Blocks without validator
// transactions rotate it by height, so the order never stalls.
func proposerOrder(validators []ids.ShortID, latest uint64, randomness ids.ID) []ids.ShortID {
	order := make([]ids.ShortID, len(validators))
	if randomness == ids.Empty {
		offset := int(latest % uint64(len(validators)))
		copy(order, validators[offset:])
		copy(order[len(validators)-offset:], validators[:offset])
		return order
	}
	copy(order, validators)
	shuffle(order, randomness)
	return order
}
