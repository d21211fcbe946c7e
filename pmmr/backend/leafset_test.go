// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

package backend

import "testing"

func TestLeafSetAddRemoveContains(t *testing.T) {
	l := NewLeafSet()
	l.Add(1)
	l.Add(2)
	l.Add(4)

	if !l.Contains(2) {
		t.Error("Contains(2) = false, want true")
	}
	l.Remove(2)
	if l.Contains(2) {
		t.Error("Contains(2) = true after Remove, want false")
	}
	if l.Len() != 2 {
		t.Errorf("Len() = %d, want 2", l.Len())
	}
}

func TestLeafSetSnapshotAscending(t *testing.T) {
	l := NewLeafSet()
	for _, p := range []uint64{8, 1, 4} {
		l.Add(p)
	}
	snap := l.Snapshot()
	want := []uint64{1, 4, 8}
	if len(snap) != len(want) {
		t.Fatalf("Snapshot() = %v, want %v", snap, want)
	}
	for i := range want {
		if snap[i] != want[i] {
			t.Fatalf("Snapshot() = %v, want %v", snap, want)
		}
	}
}

func TestLeafSetFromBytesRoundTrip(t *testing.T) {
	l := NewLeafSet()
	l.Add(5)
	l.Add(65)

	round := LeafSetFromBytes(l.Bytes())
	if !round.Contains(5) || !round.Contains(65) {
		t.Error("round-tripped leaf set lost a member")
	}
	if round.Contains(6) {
		t.Error("round-tripped leaf set gained a spurious member")
	}
}
