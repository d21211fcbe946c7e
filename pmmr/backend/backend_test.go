// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

package backend

import (
	"testing"

	"github.com/grincore/node/pmmr"
)

func newBackend(t *testing.T) *Backend {
	t.Helper()
	b, err := Open(t.TempDir(), NewLeafSet(), NewPruneList())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return b
}

func pushLeaf(t *testing.T, m *pmmr.PMMR, elem []byte) uint64 {
	t.Helper()
	pos, err := m.Push(elem)
	if err != nil {
		t.Fatalf("Push: %v", err)
	}
	return pos
}

func TestBackendHashesAndRootPresentAfterSync(t *testing.T) {
	b := newBackend(t)
	m := pmmr.New(b)

	for i := 0; i < 5; i++ {
		pushLeaf(t, m, []byte{byte(i)})
	}
	if err := b.Sync(); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	root, err := m.Root()
	if err != nil {
		t.Fatalf("Root: %v", err)
	}

	for pos := uint64(1); pos <= b.UnprunedSize(); pos++ {
		if _, ok := b.GetHash(pos); !ok {
			t.Errorf("GetHash(%d) missing after sync", pos)
		}
	}
	if root.IsZero() {
		t.Error("root should not be zero after pushing leaves")
	}
}

func TestBackendGetDataRoundTrip(t *testing.T) {
	b := newBackend(t)
	m := pmmr.New(b)

	pos := pushLeaf(t, m, []byte("hello"))
	data, ok := b.GetData(pos)
	if !ok || string(data) != "hello" {
		t.Fatalf("GetData(%d) = (%q, %v), want (\"hello\", true)", pos, data, ok)
	}

	// pos+1 or beyond doesn't exist yet at this size.
	if _, ok := b.GetData(pos + 100); ok {
		t.Error("GetData should fail for an out-of-range position")
	}
}

func TestBackendLeafSetTracksPushes(t *testing.T) {
	b := newBackend(t)
	m := pmmr.New(b)

	var positions []uint64
	for i := 0; i < 4; i++ {
		positions = append(positions, pushLeaf(t, m, []byte{byte(i)}))
	}
	for _, pos := range positions {
		if !b.LeafSet().Contains(pos) {
			t.Errorf("leaf set should contain position %d after push", pos)
		}
	}
	if got := b.LeafSet().Len(); got != uint64(len(positions)) {
		t.Errorf("LeafSet().Len() = %d, want %d", got, len(positions))
	}
}

func TestBackendRewindUndoesPushes(t *testing.T) {
	b := newBackend(t)
	m := pmmr.New(b)

	for i := 0; i < 4; i++ {
		pushLeaf(t, m, []byte{byte(i)})
	}
	if err := b.Sync(); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	rootBefore, _ := m.Root()
	sizeBefore := m.UnprunedSize()

	pushLeaf(t, m, []byte("extra"))

	if err := m.Rewind(sizeBefore, nil); err != nil {
		t.Fatalf("Rewind: %v", err)
	}
	rootAfter, err := m.Root()
	if err != nil {
		t.Fatalf("Root after rewind: %v", err)
	}
	if !rootBefore.Equal(rootAfter) {
		t.Fatalf("root after rewind = %x, want %x", rootAfter, rootBefore)
	}
	if m.UnprunedSize() != sizeBefore {
		t.Fatalf("UnprunedSize after rewind = %d, want %d", m.UnprunedSize(), sizeBefore)
	}
}

func TestBackendRewindReinstatesSpentLeaves(t *testing.T) {
	b := newBackend(t)
	m := pmmr.New(b)

	pos := pushLeaf(t, m, []byte("spendable"))
	pushLeaf(t, m, []byte("second"))
	sizeAfterTwo := m.UnprunedSize()

	b.LeafSet().Remove(pos)
	pushLeaf(t, m, []byte("third"))

	if err := m.Rewind(sizeAfterTwo, []uint64{pos}); err != nil {
		t.Fatalf("Rewind: %v", err)
	}
	if !b.LeafSet().Contains(pos) {
		t.Errorf("rewind should have reinstated spent position %d", pos)
	}
}

func TestBackendCheckCompactDropsPrunedData(t *testing.T) {
	b := newBackend(t)
	m := pmmr.New(b)

	spent := pushLeaf(t, m, []byte("will be spent"))
	pushLeaf(t, m, []byte("stays unspent"))
	if err := b.Sync(); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	if err := b.CheckCompact([]uint64{spent}); err != nil {
		t.Fatalf("CheckCompact: %v", err)
	}

	if _, ok := b.GetData(spent); ok {
		t.Errorf("GetData(%d) should fail after compaction removed its record", spent)
	}
	// A lone pruned leaf becomes its own prune-list root rather than a
	// "non-root pruned" position, so its hash is still retrievable.
	if _, ok := b.GetHash(spent); !ok {
		t.Errorf("GetHash(%d) should still return the retained root hash", spent)
	}
	roots := b.PruneList().Roots()
	found := false
	for _, r := range roots {
		if r == spent {
			found = true
		}
	}
	if !found {
		t.Errorf("prune list should record %d as a pruned root, got %v", spent, roots)
	}
}
