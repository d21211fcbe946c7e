// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

package pmmr

import (
	"fmt"

	"github.com/grincore/node/consensus"
)

// PMMR is a logical pruned Merkle Mountain Range over a Backend. It knows
// only position arithmetic and hashing; all storage, pruning and
// durability are the Backend's concern.
type PMMR struct {
	backend Backend
	lastPos uint64
}

// New wraps backend into a PMMR, trusting backend.UnprunedSize() for the
// current size.
func New(backend Backend) *PMMR {
	return &PMMR{backend: backend, lastPos: backend.UnprunedSize()}
}

// UnprunedSize returns the MMR's current size (highest used position).
func (m *PMMR) UnprunedSize() uint64 { return m.lastPos }

// GetHash returns the hash stored at pos.
func (m *PMMR) GetHash(pos uint64) (consensus.Hash, bool) { return m.backend.GetHash(pos) }

// GetData returns the leaf data stored at pos.
func (m *PMMR) GetData(pos uint64) ([]byte, bool) { return m.backend.GetData(pos) }

// PeakPositions returns the positions of the MMR's current peaks, left to
// right.
func (m *PMMR) PeakPositions() []uint64 { return Peaks(m.lastPos) }

// Push writes elem as a new leaf, H(pos || elem), then backfills any
// parent hashes the insertion completes, ascending while a left sibling
// already exists at the current height. Returns the leaf's 1-based
// position.
func (m *PMMR) Push(elem []byte) (uint64, error) {
	leafPos := m.lastPos + 1
	hashes := []consensus.Hash{hashLeaf(leafPos, elem)}

	i := leafPos
	left := hashes[0]
	height := uint64(0)
	for posHeight(i+1) > height {
		leftPos := i - (uint64(1)<<(height+1)) + 1
		leftHash, ok := m.backend.GetHash(leftPos)
		if !ok {
			return 0, fmt.Errorf("pmmr: missing left sibling hash at position %d", leftPos)
		}

		parentPos := i + 1
		parentHash := hashParent(parentPos, leftHash, left)
		hashes = append(hashes, parentHash)

		left = parentHash
		i = parentPos
		height++
	}

	if err := m.backend.Append(elem, hashes); err != nil {
		return 0, err
	}
	m.lastPos = i
	return leafPos, nil
}

// Root computes the MMR's root: the peak hashes, bagged right to left,
// each fold salted with the MMR's size so that two MMRs whose peak sets
// happen to collide as hash values still produce distinct roots. The
// empty MMR's root is the zero hash.
func (m *PMMR) Root() (consensus.Hash, error) {
	peaks := Peaks(m.lastPos)
	if len(peaks) == 0 {
		return consensus.ZeroHash(), nil
	}

	hashes := make([]consensus.Hash, len(peaks))
	for i, p := range peaks {
		h, ok := m.backend.GetHash(p)
		if !ok {
			return nil, fmt.Errorf("pmmr: missing peak hash at position %d", p)
		}
		hashes[i] = h
	}

	acc := hashes[len(hashes)-1]
	for i := len(hashes) - 2; i >= 0; i-- {
		acc = consensus.Blake2b(posBytes(m.lastPos), hashes[i], acc)
	}
	return acc, nil
}

// MerkleProof builds an inclusion proof for the node at pos: the sibling
// hashes collected while climbing from pos to its containing peak, followed
// by the MMR's remaining peak hashes in bagging (right-to-left) order.
func (m *PMMR) MerkleProof(pos uint64) (*MerkleProof, error) {
	if pos == 0 || pos > m.lastPos {
		return nil, fmt.Errorf("pmmr: position %d out of range for mmr size %d", pos, m.lastPos)
	}

	peak, steps := climb(pos, m.lastPos)

	path := make([]consensus.Hash, 0, len(steps))
	for _, s := range steps {
		h, ok := m.backend.GetHash(s.sibling)
		if !ok {
			return nil, fmt.Errorf("pmmr: missing sibling hash at position %d", s.sibling)
		}
		path = append(path, h)
	}

	peaks := Peaks(m.lastPos)
	peakIdx := -1
	for i, p := range peaks {
		if p == peak {
			peakIdx = i
			break
		}
	}
	if peakIdx < 0 {
		return nil, fmt.Errorf("pmmr: position %d climbed to %d, not a peak of size %d", pos, peak, m.lastPos)
	}

	for i := len(peaks) - 1; i >= 0; i-- {
		if i == peakIdx {
			continue
		}
		h, ok := m.backend.GetHash(peaks[i])
		if !ok {
			return nil, fmt.Errorf("pmmr: missing peak hash at position %d", peaks[i])
		}
		path = append(path, h)
	}

	return &MerkleProof{MMRSize: m.lastPos, Path: path}, nil
}

// Rewind truncates the MMR to size, undoing every push and leaf-spend
// recorded since. rewindSpentBitmap lists the leaf positions spent after
// size; the backend re-adds those at or below size to its leaf set and
// drops leaves above size (spec.md §4.1, §4.3 rewind).
func (m *PMMR) Rewind(size uint64, rewindSpentBitmap []uint64) error {
	if size > m.lastPos {
		return fmt.Errorf("pmmr: cannot rewind to size %d beyond current size %d", size, m.lastPos)
	}
	if err := m.backend.Rewind(size, rewindSpentBitmap); err != nil {
		return err
	}
	m.lastPos = size
	return nil
}
