// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

package pmmr

import (
	"fmt"
	"testing"

	"github.com/grincore/node/consensus"
)

// memBackend is a minimal in-memory Backend for exercising the logical
// PMMR without touching pmmr/backend's flat files.
type memBackend struct {
	hashes map[uint64]consensus.Hash
	data   map[uint64][]byte
	size   uint64
}

func newMemBackend() *memBackend {
	return &memBackend{hashes: map[uint64]consensus.Hash{}, data: map[uint64][]byte{}}
}

func (b *memBackend) Append(elem []byte, hashes []consensus.Hash) error {
	if elem != nil {
		b.data[b.size+1] = elem
	}
	for _, h := range hashes {
		b.size++
		b.hashes[b.size] = h
	}
	return nil
}

func (b *memBackend) AppendPrunedSubtree(hash consensus.Hash, pos uint64) error {
	b.hashes[pos] = hash
	if pos > b.size {
		b.size = pos
	}
	return nil
}

func (b *memBackend) GetHash(pos uint64) (consensus.Hash, bool) {
	h, ok := b.hashes[pos]
	return h, ok
}

func (b *memBackend) GetData(pos uint64) ([]byte, bool) {
	d, ok := b.data[pos]
	return d, ok
}

func (b *memBackend) Rewind(pos uint64, spentBitmap []uint64) error {
	for p := pos + 1; p <= b.size; p++ {
		delete(b.hashes, p)
		delete(b.data, p)
	}
	b.size = pos
	return nil
}

func (b *memBackend) Sync() error { return nil }
func (b *memBackend) Discard()    {}
func (b *memBackend) UnprunedSize() uint64 { return b.size }

func TestPushAndPeaks(t *testing.T) {
	m := New(newMemBackend())

	// Pushing 4 leaves builds one perfect tree of size 7: two leaf pairs
	// combine into two height-1 parents, which combine into one height-2
	// peak.
	for i := 0; i < 4; i++ {
		if _, err := m.Push([]byte(fmt.Sprintf("leaf-%d", i))); err != nil {
			t.Fatalf("push %d: %v", i, err)
		}
	}

	if m.UnprunedSize() != 7 {
		t.Fatalf("expected size 7 after 4 leaves, got %d", m.UnprunedSize())
	}

	peaks := m.PeakPositions()
	if len(peaks) != 1 || peaks[0] != 7 {
		t.Fatalf("expected single peak at position 7, got %v", peaks)
	}
}

func TestRootChangesOnPush(t *testing.T) {
	m := New(newMemBackend())

	r0, err := m.Root()
	if err != nil {
		t.Fatal(err)
	}
	if !r0.IsZero() {
		t.Fatal("empty mmr root should be the zero hash")
	}

	if _, err := m.Push([]byte("a")); err != nil {
		t.Fatal(err)
	}
	r1, err := m.Root()
	if err != nil {
		t.Fatal(err)
	}
	if r1.Equal(r0) {
		t.Fatal("root should change after a push")
	}

	if _, err := m.Push([]byte("b")); err != nil {
		t.Fatal(err)
	}
	r2, err := m.Root()
	if err != nil {
		t.Fatal(err)
	}
	if r2.Equal(r1) {
		t.Fatal("root should change after a second push")
	}
}

func TestMerkleProofRoundTrip(t *testing.T) {
	m := New(newMemBackend())

	leaves := [][]byte{[]byte("a"), []byte("b"), []byte("c"), []byte("d"), []byte("e")}
	positions := make([]uint64, len(leaves))
	for i, l := range leaves {
		pos, err := m.Push(l)
		if err != nil {
			t.Fatalf("push %d: %v", i, err)
		}
		positions[i] = pos
	}

	root, err := m.Root()
	if err != nil {
		t.Fatal(err)
	}

	for i, l := range leaves {
		proof, err := m.MerkleProof(positions[i])
		if err != nil {
			t.Fatalf("merkle proof for leaf %d: %v", i, err)
		}
		if !Verify(root, l, positions[i], proof) {
			t.Errorf("proof for leaf %d (pos %d) did not verify", i, positions[i])
		}
		if Verify(root, []byte("tampered"), positions[i], proof) {
			t.Errorf("proof for leaf %d verified against the wrong element", i)
		}
	}
}

func TestRewindShrinksMMR(t *testing.T) {
	m := New(newMemBackend())

	for i := 0; i < 4; i++ {
		if _, err := m.Push([]byte(fmt.Sprintf("leaf-%d", i))); err != nil {
			t.Fatal(err)
		}
	}

	sizeBefore := m.UnprunedSize()

	if _, err := m.Push([]byte("leaf-4")); err != nil {
		t.Fatal(err)
	}

	if err := m.Rewind(sizeBefore, nil); err != nil {
		t.Fatal(err)
	}
	if m.UnprunedSize() != sizeBefore {
		t.Fatalf("expected size %d after rewind, got %d", sizeBefore, m.UnprunedSize())
	}
}
