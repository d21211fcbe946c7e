// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

package backend

import (
	"sort"

	"github.com/grincore/node/pmmr"
)

// PruneList records which subtrees of a PMMR have been compacted away: only
// each subtree's root hash is kept, every other position beneath it is
// removed from the hash file. get_shift/get_leaf_shift (spec.md §4.2) use
// this to translate a logical position into its on-disk offset.
type PruneList struct {
	// roots holds the position of every pruned subtree's root, sorted
	// ascending. Adding a position whose sibling is already fully pruned
	// compacts the pair up into their shared parent, repeating to the
	// root - so roots never holds two positions that are siblings of one
	// another.
	roots []uint64
}

// NewPruneList returns an empty prune list.
func NewPruneList() *PruneList { return &PruneList{} }

func (p *PruneList) indexOf(pos uint64) int {
	return sort.Search(len(p.roots), func(i int) bool { return p.roots[i] >= pos })
}

// IsPruned reports whether pos lies within (but is not the root of) a
// pruned subtree.
func (p *PruneList) IsPruned(pos uint64) bool {
	for _, r := range p.roots {
		if r < pos {
			continue
		}
		if subtreeContains(r, pos) {
			return pos != r
		}
	}
	return false
}

// subtreeContains reports whether pos falls within the subtree rooted at
// root (root included).
func subtreeContains(root, pos uint64) bool {
	if pos > root {
		return false
	}
	h := pmmr.Height(root)
	size := (uint64(1) << (h + 1)) - 1
	return pos > root-size && pos <= root
}

// Add marks the subtree rooted at pos as pruned (its leaves and interior
// nodes removed from the hash file, only pos's own hash retained, via
// append_pruned_subtree). If pos's sibling is already fully pruned, Add
// compacts the pair: both are dropped from roots and their shared parent
// takes their place, repeating up to the peak.
func (p *PruneList) Add(pos uint64, size uint64) {
	for {
		if p.contains(pos) {
			return
		}

		parent, sibling, ok := pmmr.Family(pos, size)
		if ok && p.contains(sibling) {
			p.remove(sibling)
			pos = parent
			continue
		}

		p.insert(pos)
		return
	}
}

func (p *PruneList) contains(pos uint64) bool {
	i := p.indexOf(pos)
	return i < len(p.roots) && p.roots[i] == pos
}

func (p *PruneList) insert(pos uint64) {
	i := p.indexOf(pos)
	p.roots = append(p.roots, 0)
	copy(p.roots[i+1:], p.roots[i:])
	p.roots[i] = pos
}

func (p *PruneList) remove(pos uint64) {
	i := p.indexOf(pos)
	if i < len(p.roots) && p.roots[i] == pos {
		p.roots = append(p.roots[:i], p.roots[i+1:]...)
	}
}

// Shift returns the number of hash-file positions to skip when translating
// the logical position pos into its on-disk offset: the sum, over every
// pruned root at or before pos, of the positions that root's subtree
// removed (everything but the root itself, which is retained). A root
// exactly at pos is included because its descendants - all at positions
// before pos - were removed from disk, shifting pos's own offset down.
func (p *PruneList) Shift(pos uint64) uint64 {
	var shift uint64
	for _, r := range p.roots {
		if r > pos {
			break
		}
		h := pmmr.Height(r)
		size := (uint64(1) << (h + 1)) - 1
		shift += size - 1
	}
	return shift
}

// LeafShift is the analogous shift in leaf-index space: the number of
// leaves removed by pruned subtrees strictly before pos.
func (p *PruneList) LeafShift(pos uint64) uint64 {
	var shift uint64
	for _, r := range p.roots {
		if r >= pos {
			break
		}
		h := pmmr.Height(r)
		shift += uint64(1) << h
	}
	return shift
}

// Roots returns the pruned subtree root positions, ascending.
func (p *PruneList) Roots() []uint64 { return append([]uint64(nil), p.roots...) }

// Truncate drops every root beyond pos, used when a rewind discards
// positions that a prior compaction had pruned.
func (p *PruneList) Truncate(pos uint64) {
	i := sort.Search(len(p.roots), func(i int) bool { return p.roots[i] > pos })
	p.roots = p.roots[:i]
}

// Bytes serializes the prune list's root positions for persistence to
// pmmr_prun.bin.
func (p *PruneList) Bytes() []byte {
	out := make([]byte, len(p.roots)*8)
	for i, r := range p.roots {
		for j := 0; j < 8; j++ {
			out[i*8+j] = byte(r >> (8 * j))
		}
	}
	return out
}

// PruneListFromBytes reconstructs a prune list from Bytes' output.
func PruneListFromBytes(data []byte) *PruneList {
	p := &PruneList{roots: make([]uint64, len(data)/8)}
	for i := range p.roots {
		var r uint64
		for j := 0; j < 8; j++ {
			r |= uint64(data[i*8+j]) << (8 * j)
		}
		p.roots[i] = r
	}
	return p
}
