// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

// Package cuckoo verifies Cuckoo-cycle proofs of work: a keyed pseudo-random
// graph over a header's bytes, and a claimed length-42 cycle within it.
package cuckoo

import (
	"encoding/binary"

	"golang.org/x/crypto/blake2b"
)

// Edge is one edge of a candidate cycle, linking node U to node V.
type Edge struct {
	U, V         uint64
	usedU, usedV bool
}

// findCycleLength walks a candidate edge set alternately matching on U and
// on V. A Cuckoo cycle proof is valid iff this walk, started from any edge,
// visits every edge exactly once and returns to its start - i.e. the edges
// form one single cycle covering the whole set.
func findCycleLength(edges []*Edge) int {
	n := len(edges)
	if n == 0 {
		return 0
	}

	i := 0
	matchV := false
	cycle := 0

	for {
		found := false

		if !matchV {
			for j := 0; j < n; j++ {
				if j != i && !edges[j].usedU && edges[i].U == edges[j].U {
					edges[i].usedU = true
					edges[j].usedU = true
					i = j
					matchV = true
					cycle++
					found = true
					break
				}
			}
		} else {
			for j := 0; j < n; j++ {
				if j != i && !edges[j].usedV && edges[i].V == edges[j].V {
					edges[i].usedV = true
					edges[j].usedV = true
					i = j
					matchV = false
					cycle++
					found = true
					break
				}
			}
		}

		if !found {
			break
		}
	}

	if cycle == n {
		return cycle
	}
	return 0
}

// Cuckoo is the bipartite Cuckoo-cycle graph: U and V nodes occupy disjoint
// halves of the node space (tagged by the low bit), as used by the Cuckaroo
// and Cuckarood variants.
type Cuckoo struct {
	v [4]uint64
}

// NewFromKeys builds a bipartite graph directly from its four siphash keys,
// bypassing header hashing - used by tests and by variants that derive
// their keys differently from plain Cuckatoo.
func NewFromKeys(key [4]uint64) *Cuckoo {
	return &Cuckoo{v: key}
}

// New derives a bipartite graph's siphash keys from header, applying the
// ChaCha-style key-schedule constants before the first round (the same
// construction the reference Cuckaroo siphash uses).
func New(header []byte) *Cuckoo {
	sum := blake2b.Sum256(header)
	k0 := binary.LittleEndian.Uint64(sum[:8])
	k1 := binary.LittleEndian.Uint64(sum[8:16])

	return &Cuckoo{v: [4]uint64{
		k0 ^ 0x736f6d6570736575,
		k1 ^ 0x646f72616e646f6d,
		k0 ^ 0x6c7967656e657261,
		k1 ^ 0x7465646279746573,
	}}
}

func (c *Cuckoo) node(nonce, side, mask uint64) uint64 {
	return ((siphash24(c.v, 2*nonce+side) & mask) << 1) | side
}

func (c *Cuckoo) edge(nonce uint32, mask uint64) *Edge {
	return &Edge{
		U: c.node(uint64(nonce), 0, mask),
		V: c.node(uint64(nonce), 1, mask),
	}
}

// Verify reports whether nonces forms a valid cycle in the bipartite graph
// of the given edgeBits size. nonces must be strictly increasing, each
// within the graph's edge range - both consensus requirements that also
// keep the edge list free of trivial duplicate-nonce cheats.
func (c *Cuckoo) Verify(nonces []uint32, edgeBits uint8) bool {
	if len(nonces) == 0 {
		return false
	}

	mask := (uint64(1)<<edgeBits)/2 - 1
	edges := make([]*Edge, len(nonces))

	for i, n := range nonces {
		if uint64(n) >= uint64(1)<<edgeBits || (i != 0 && nonces[i] <= nonces[i-1]) {
			return false
		}
		edges[i] = c.edge(n, mask)
	}

	return findCycleLength(edges) == len(nonces)
}

// Cuckatoo is the monopartite Cuckoo-cycle graph: U and V nodes share the
// whole node space (no side bit), as used by the Cuckaroom and Cuckarooz
// variants and by the original ASIC-friendly Cuckatoo.
type Cuckatoo struct {
	v        [4]uint64
	edgeBits uint8
}

// NewCuckatoo derives a monopartite graph's siphash keys as the four
// little-endian 64-bit words of header's Blake2b-256 digest.
func NewCuckatoo(header []byte, edgeBits uint8) *Cuckatoo {
	sum := blake2b.Sum256(header)

	var v [4]uint64
	for i := range v {
		v[i] = binary.LittleEndian.Uint64(sum[i*8 : i*8+8])
	}

	return &Cuckatoo{v: v, edgeBits: edgeBits}
}

func (c *Cuckatoo) mask() uint64 {
	return uint64(1)<<c.edgeBits - 1
}

func (c *Cuckatoo) node(nonce, side uint64) uint64 {
	return siphash24(c.v, 2*nonce+side) & c.mask()
}

func (c *Cuckatoo) edge(nonce uint32) *Edge {
	return &Edge{
		U: c.node(uint64(nonce), 0),
		V: c.node(uint64(nonce), 1),
	}
}

// Verify reports whether nonces forms a valid cycle in the monopartite
// graph. nonces must be strictly increasing and below the graph's edge
// count, 2^edgeBits.
func (c *Cuckatoo) Verify(nonces []uint32) bool {
	if len(nonces) == 0 {
		return false
	}

	limit := uint64(1) << c.edgeBits
	edges := make([]*Edge, len(nonces))

	for i, n := range nonces {
		if uint64(n) >= limit || (i != 0 && nonces[i] <= nonces[i-1]) {
			return false
		}
		edges[i] = c.edge(n)
	}

	return findCycleLength(edges) == len(nonces)
}
