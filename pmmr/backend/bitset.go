// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

// Package backend implements the PMMR storage contract (pmmr.Backend) over
// append-only flat files, plus the leaf_set and prune_list compact bitmaps
// spec.md §4.2 and §6 require. No roaring/compressed-bitmap library appears
// anywhere in the retrieved corpus, so leaf_set is built on this small
// math/bits-backed bitset; prune_list keeps a sorted slice of its roots.
package backend

import "math/bits"

// bitset is a growable set of non-negative integers backed by a []uint64
// word array, used for leaf_set (unspent leaf positions).
type bitset struct {
	words []uint64
}

func newBitset() *bitset { return &bitset{} }

func (b *bitset) ensure(word int) {
	for len(b.words) <= word {
		b.words = append(b.words, 0)
	}
}

// Set marks i as present.
func (b *bitset) Set(i uint64) {
	word, bit := int(i/64), i%64
	b.ensure(word)
	b.words[word] |= uint64(1) << bit
}

// Clear marks i as absent.
func (b *bitset) Clear(i uint64) {
	word, bit := int(i/64), i%64
	if word >= len(b.words) {
		return
	}
	b.words[word] &^= uint64(1) << bit
}

// Contains reports whether i is present.
func (b *bitset) Contains(i uint64) bool {
	word, bit := int(i/64), i%64
	if word >= len(b.words) {
		return false
	}
	return b.words[word]&(uint64(1)<<bit) != 0
}

// Count returns the number of set bits.
func (b *bitset) Count() uint64 {
	var n uint64
	for _, w := range b.words {
		n += uint64(bits.OnesCount64(w))
	}
	return n
}

// Each calls f once for every set bit, in ascending order.
func (b *bitset) Each(f func(i uint64)) {
	for wi, w := range b.words {
		for w != 0 {
			bit := bits.TrailingZeros64(w)
			f(uint64(wi)*64 + uint64(bit))
			w &= w - 1
		}
	}
}

// Bytes returns the bitset's raw word storage, little-endian within each
// word, for serialization to pmmr_leaf.bin-style flat files.
func (b *bitset) Bytes() []byte {
	out := make([]byte, len(b.words)*8)
	for i, w := range b.words {
		for j := 0; j < 8; j++ {
			out[i*8+j] = byte(w >> (8 * j))
		}
	}
	return out
}

// bitsetFromBytes reconstructs a bitset from Bytes' output.
func bitsetFromBytes(data []byte) *bitset {
	b := newBitset()
	b.words = make([]uint64, (len(data)+7)/8)
	for i := range b.words {
		var w uint64
		for j := 0; j < 8 && i*8+j < len(data); j++ {
			w |= uint64(data[i*8+j]) << (8 * j)
		}
		b.words[i] = w
	}
	return b
}
