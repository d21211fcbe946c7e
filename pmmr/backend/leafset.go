// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

package backend

// LeafSet tracks which leaf positions of an output PMMR are currently
// unspent. A position enters the set when its leaf is appended and leaves
// it when the corresponding input spends it (spec.md §4.3 apply_block).
type LeafSet struct {
	bits *bitset
}

// NewLeafSet returns an empty leaf set.
func NewLeafSet() *LeafSet {
	return &LeafSet{bits: newBitset()}
}

// LeafSetFromBytes reconstructs a leaf set from its serialized form.
func LeafSetFromBytes(data []byte) *LeafSet {
	return &LeafSet{bits: bitsetFromBytes(data)}
}

// Add marks pos unspent.
func (l *LeafSet) Add(pos uint64) { l.bits.Set(pos) }

// Remove marks pos spent.
func (l *LeafSet) Remove(pos uint64) { l.bits.Clear(pos) }

// Contains reports whether pos is currently unspent.
func (l *LeafSet) Contains(pos uint64) bool { return l.bits.Contains(pos) }

// Len returns the number of unspent leaves tracked.
func (l *LeafSet) Len() uint64 { return l.bits.Count() }

// Each calls f once for every unspent leaf position, ascending.
func (l *LeafSet) Each(f func(pos uint64)) { l.bits.Each(f) }

// Bytes serializes the leaf set for persistence to pmmr_leaf.bin.
func (l *LeafSet) Bytes() []byte { return l.bits.Bytes() }

// Snapshot returns the positions currently marked unspent, ascending -
// used to compute rewind_added_bitmap/rewind_spent_bitmap deltas against a
// later snapshot.
func (l *LeafSet) Snapshot() []uint64 {
	var out []uint64
	l.Each(func(pos uint64) { out = append(out, pos) })
	return out
}
