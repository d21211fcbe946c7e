// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

package pmmr

import (
	"encoding/binary"

	"github.com/grincore/node/consensus"
)

func posBytes(pos uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, pos)
	return b
}

// hashLeaf returns a leaf's stored hash, H(pos || elem). Committing to the
// position, not just the data, keeps leaves at different positions from
// ever hashing equal even when their data collides.
func hashLeaf(pos uint64, elem []byte) consensus.Hash {
	return consensus.Blake2b(posBytes(pos), elem)
}

// hashParent returns an interior node's stored hash, H(pos || left || right).
// left and right are never reordered - the tree family rule fixes which
// child is which well before hashing.
func hashParent(pos uint64, left, right consensus.Hash) consensus.Hash {
	return consensus.Blake2b(posBytes(pos), left, right)
}
