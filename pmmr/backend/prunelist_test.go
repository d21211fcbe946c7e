// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

package backend

import "testing"

// Size 10 has two peaks: leaves 1,2,4,5 under peak 7 (interior nodes 3,
// 6), plus leaves 8,9 under peak 10.
const size10 = 10

func TestPruneListAddCompactsSiblings(t *testing.T) {
	p := NewPruneList()
	p.Add(1, size10)
	p.Add(2, size10)
	if got := p.Roots(); len(got) != 1 || got[0] != 3 {
		t.Fatalf("after pruning 1 and 2, roots = %v, want [3]", got)
	}

	p.Add(4, size10)
	p.Add(5, size10)
	// 3 and 6 are themselves siblings under peak 7, so pruning the second
	// half compacts all the way up to the shared peak.
	if got := p.Roots(); len(got) != 1 || got[0] != 7 {
		t.Fatalf("after pruning the whole left half, roots = %v, want [7]", got)
	}
}

func TestPruneListIsPruned(t *testing.T) {
	p := NewPruneList()
	p.Add(1, size10)
	p.Add(2, size10)
	// The pair compacted up to root 3: 1 and 2 are pruned-but-not-root,
	// 3 is the retained root itself.
	if !p.IsPruned(1) || !p.IsPruned(2) {
		t.Error("positions 1 and 2 should report pruned")
	}
	if p.IsPruned(3) {
		t.Error("root position 3 should not report pruned")
	}
	if p.IsPruned(8) {
		t.Error("untouched position 8 should not report pruned")
	}
}

func TestPruneListShiftAndLeafShift(t *testing.T) {
	p := NewPruneList()
	p.Add(1, size10)
	p.Add(2, size10)
	p.Add(4, size10)
	p.Add(5, size10)
	// roots is now [7], a fully pruned height-2 subtree covering 1..7.

	if got := p.Shift(8); got != 6 {
		t.Errorf("Shift(8) = %d, want 6", got)
	}
	if got := p.LeafShift(8); got != 4 {
		t.Errorf("LeafShift(8) = %d, want 4", got)
	}
	if got := p.Shift(1); got != 0 {
		t.Errorf("Shift(1) = %d, want 0 (no root strictly before position 1)", got)
	}
}

func TestPruneListTruncateDropsLaterRoots(t *testing.T) {
	p := NewPruneList()
	p.Add(1, size10)
	p.Add(2, size10)
	p.Add(4, size10)
	p.Add(5, size10)
	// roots == [7]

	p.Truncate(6)
	if got := p.Roots(); len(got) != 0 {
		t.Fatalf("Truncate(6) should drop root 7, got %v", got)
	}
}

func TestPruneListBytesRoundTrip(t *testing.T) {
	p := NewPruneList()
	p.Add(1, size10)
	p.Add(2, size10)

	round := PruneListFromBytes(p.Bytes())
	if got := round.Roots(); len(got) != 1 || got[0] != 3 {
		t.Fatalf("round-tripped roots = %v, want [3]", got)
	}
}
