// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

package pmmr

import "github.com/grincore/node/consensus"

// MerkleProof is an inclusion proof for one leaf: the MMR's size at the
// time the proof was taken, and the path of sibling/peak hashes needed to
// rebuild the root (spec.md §4.1).
type MerkleProof struct {
	MMRSize uint64
	Path    []consensus.Hash
}

// Verify checks that elem is included at pos in the MMR the proof was
// produced against, per spec.md §4.1's verify rule: rebuild the leaf hash
// at pos' (pos itself, or mmr_size if pos has since fallen outside of it),
// fold in proof.Path's sibling hashes following the tree family rule up to
// the containing peak, then bag the remaining peaks - substituting the
// freshly computed peak hash for the one the proof doesn't carry - and
// compare the result to root.
func Verify(root consensus.Hash, elem []byte, pos uint64, proof *MerkleProof) bool {
	size := proof.MMRSize
	if size == 0 {
		return false
	}

	posPrime := pos
	if posPrime >= size {
		posPrime = size
	}

	acc := hashLeaf(posPrime, elem)
	peak, steps := climb(posPrime, size)

	if len(steps) > len(proof.Path) {
		return false
	}
	for i, s := range steps {
		sib := proof.Path[i]
		if s.curRight {
			acc = hashParent(s.parent, sib, acc)
		} else {
			acc = hashParent(s.parent, acc, sib)
		}
	}

	peaks := Peaks(size)
	peakIdx := -1
	for i, p := range peaks {
		if p == peak {
			peakIdx = i
			break
		}
	}
	if peakIdx < 0 {
		return false
	}

	full := make([]consensus.Hash, len(peaks))
	full[peakIdx] = acc

	rem := proof.Path[len(steps):]
	j := 0
	for i := len(peaks) - 1; i >= 0; i-- {
		if i == peakIdx {
			continue
		}
		if j >= len(rem) {
			return false
		}
		full[i] = rem[j]
		j++
	}
	if j != len(rem) {
		return false
	}

	result := full[len(full)-1]
	for i := len(full) - 2; i >= 0; i-- {
		result = consensus.Blake2b(posBytes(size), full[i], result)
	}

	return result.Equal(root)
}
