// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

package pmmr

import "testing"

func TestIsLeaf(t *testing.T) {
	// Positions 1, 2, 4, 5 are leaves; 3, 6 are interior (height 1); 7 is
	// the peak (height 2) of the size-7 perfect tree built from 4 leaves.
	leaves := map[uint64]bool{
		1: true, 2: true, 3: false,
		4: true, 5: true, 6: false, 7: false,
	}
	for pos, want := range leaves {
		if got := IsLeaf(pos); got != want {
			t.Errorf("IsLeaf(%d) = %v, want %v", pos, got, want)
		}
	}
}

func TestHeight(t *testing.T) {
	heights := map[uint64]uint64{1: 0, 2: 0, 3: 1, 4: 0, 5: 0, 6: 1, 7: 2}
	for pos, want := range heights {
		if got := Height(pos); got != want {
			t.Errorf("Height(%d) = %d, want %d", pos, got, want)
		}
	}
}

func TestPeaksPerfectTree(t *testing.T) {
	peaks := Peaks(7)
	if len(peaks) != 1 || peaks[0] != 7 {
		t.Fatalf("Peaks(7) = %v, want [7]", peaks)
	}
}

func TestPeaksMultiplePeaks(t *testing.T) {
	// size 10: a size-7 perfect tree over the first 4 leaves (peak 7), plus
	// a height-1 pair over the next 2 leaves (peak 10).
	peaks := Peaks(10)
	want := []uint64{7, 10}
	if len(peaks) != len(want) {
		t.Fatalf("Peaks(10) = %v, want %v", peaks, want)
	}
	for i := range want {
		if peaks[i] != want[i] {
			t.Fatalf("Peaks(10) = %v, want %v", peaks, want)
		}
	}
}

func TestPeaksInvalidSize(t *testing.T) {
	// size 2 names only the first leaf pair without their parent at
	// position 3 - no sequence of Push calls ever leaves an MMR at this
	// size, since backfilling a completed pair is unconditional.
	if peaks := Peaks(2); peaks != nil {
		t.Fatalf("Peaks(2) = %v, want nil for an invalid size", peaks)
	}
}

func TestNLeaves(t *testing.T) {
	cases := map[uint64]uint64{7: 4, 10: 6}
	for size, want := range cases {
		if got := NLeaves(size); got != want {
			t.Errorf("NLeaves(%d) = %d, want %d", size, got, want)
		}
	}
}

func TestFamilyPeakHasNoSibling(t *testing.T) {
	if _, _, ok := Family(7, 7); ok {
		t.Fatal("the sole peak of a size-7 mmr should report no sibling")
	}
}

func TestFamilyLeafPair(t *testing.T) {
	parent, sibling, ok := Family(1, 7)
	if !ok || parent != 3 || sibling != 2 {
		t.Fatalf("Family(1, 7) = (%d, %d, %v), want (3, 2, true)", parent, sibling, ok)
	}

	parent, sibling, ok = Family(2, 7)
	if !ok || parent != 3 || sibling != 1 {
		t.Fatalf("Family(2, 7) = (%d, %d, %v), want (3, 1, true)", parent, sibling, ok)
	}
}
