// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

package consensus

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/grincore/node/cuckoo"
)

// Proof is a Cuckoo-cycle proof of work: the graph size used (as a power of
// two, edge_bits) and the ProofSize nonces forming the cycle.
type Proof struct {
	// EdgeBits is the log2 of the number of edges in the graph the cycle
	// was found in.
	EdgeBits uint8
	// Nonces are the cycle's edges.
	Nonces []uint32
}

// NewProof wraps nonces found at edgeBits into a Proof.
func NewProof(edgeBits uint8, nonces []uint32) Proof {
	return Proof{EdgeBits: edgeBits, Nonces: nonces}
}

// Validate verifies that p is a valid Cuckoo cycle for header, using the
// variant selected by the header's height per spec.md §4.7's hard-fork
// schedule.
func (p *Proof) Validate(header *BlockHeader, params ConsensusParams) error {
	graph, err := cuckoo.NewGraph(header.bytesWithoutPOW(), p.EdgeBits, params.HeaderVersion(header.Height))
	if err != nil {
		return fmt.Errorf("consensus: %w", err)
	}

	if err := graph.Verify(p.Nonces, ProofSize); err != nil {
		return fmt.Errorf("consensus: invalid proof of work: %w", err)
	}

	return nil
}

// ToDifficulty converts the proof to a Difficulty so that proofs can be
// compared against a chain's current target: hashes the proof's packed
// nonces and reads the result as a target.
func (p *Proof) ToDifficulty(scaling uint32) Difficulty {
	d := FromHash(p.Hash())
	if scaling == 0 {
		return d
	}
	return Difficulty(d.IntoNum() / uint64(scaling))
}

// Hash returns a hash of the proof's packed nonces.
func (p *Proof) Hash() Hash {
	return Blake2b(p.Bytes())
}

// ProofBytes returns the proof nonces packed into a bit vector, EdgeBits
// bits per nonce, matching the wire format of the reference Grin node.
func (p *Proof) ProofBytes() []byte {
	nonceLengthBits := uint(p.EdgeBits)
	bitvecLengthBits := nonceLengthBits * uint(ProofSize)
	bitvec := make([]uint8, (bitvecLengthBits+7)/8)

	for n, nonce := range p.Nonces {
		for bit := uint(0); bit < nonceLengthBits; bit++ {
			if nonce&(1<<bit) != 0 {
				offsetBits := uint(n)*nonceLengthBits + bit
				bitvec[offsetBits/8] |= 1 << (offsetBits % 8)
			}
		}
	}

	return bitvec
}

// Bytes returns the canonical wire encoding of the proof: edge_bits
// followed by the packed nonces.
func (p *Proof) Bytes() []byte {
	buff := new(bytes.Buffer)
	mustWrite(buff, p.EdgeBits)
	buff.Write(p.ProofBytes())
	return buff.Bytes()
}

// Read deserializes a Proof from r.
func (p *Proof) Read(r io.Reader) error {
	if err := binary.Read(r, binary.BigEndian, &p.EdgeBits); err != nil {
		return err
	}

	if p.EdgeBits == 0 || p.EdgeBits > 63 {
		return fmt.Errorf("consensus: invalid cuckoo edge_bits: %d", p.EdgeBits)
	}

	p.Nonces = make([]uint32, ProofSize)

	nonceLengthBits := uint(p.EdgeBits)
	bitvecLengthBits := nonceLengthBits * uint(ProofSize)
	bitvec := make([]uint8, (bitvecLengthBits+7)/8)
	if _, err := io.ReadFull(r, bitvec); err != nil {
		return err
	}

	for i := 0; i < ProofSize; i++ {
		var nonce uint32
		for bit := uint(0); bit < nonceLengthBits; bit++ {
			offsetBits := uint(i)*nonceLengthBits + bit
			if bitvec[offsetBits/8]&(1<<(offsetBits%8)) != 0 {
				nonce |= 1 << bit
			}
		}
		p.Nonces[i] = nonce
	}

	return nil
}
