// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

package backend

import "testing"

func TestBitsetSetClearContains(t *testing.T) {
	b := newBitset()
	b.Set(0)
	b.Set(63)
	b.Set(64)
	b.Set(200)

	for _, i := range []uint64{0, 63, 64, 200} {
		if !b.Contains(i) {
			t.Errorf("Contains(%d) = false, want true", i)
		}
	}
	if b.Contains(1) {
		t.Error("Contains(1) = true, want false")
	}

	b.Clear(64)
	if b.Contains(64) {
		t.Error("Contains(64) = true after Clear, want false")
	}
	if b.Count() != 3 {
		t.Errorf("Count() = %d, want 3", b.Count())
	}
}

func TestBitsetEachAscending(t *testing.T) {
	b := newBitset()
	want := []uint64{2, 5, 130}
	for _, i := range want {
		b.Set(i)
	}
	var got []uint64
	b.Each(func(i uint64) { got = append(got, i) })
	if len(got) != len(want) {
		t.Fatalf("Each produced %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Each produced %v, want %v", got, want)
		}
	}
}

func TestBitsetBytesRoundTrip(t *testing.T) {
	b := newBitset()
	b.Set(3)
	b.Set(70)
	b.Set(1000)

	round := bitsetFromBytes(b.Bytes())
	for _, i := range []uint64{3, 70, 1000} {
		if !round.Contains(i) {
			t.Errorf("round-tripped bitset missing %d", i)
		}
	}
	if round.Count() != b.Count() {
		t.Errorf("round-tripped Count() = %d, want %d", round.Count(), b.Count())
	}
}
