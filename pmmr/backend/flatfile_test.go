// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

package backend

import (
	"path/filepath"
	"testing"

	"github.com/grincore/node/consensus"
)

func TestHashFileAppendSyncGet(t *testing.T) {
	hf, err := OpenHashFile(filepath.Join(t.TempDir(), "pmmr_hash.bin"))
	if err != nil {
		t.Fatalf("OpenHashFile: %v", err)
	}
	defer hf.Close()

	h0 := consensus.Blake2b([]byte("a"))
	h1 := consensus.Blake2b([]byte("b"))
	hf.Append(h0)
	hf.Append(h1)

	if got, ok := hf.Get(0); !ok || !got.Equal(h0) {
		t.Fatalf("Get(0) before sync = (%x, %v), want (%x, true)", got, ok, h0)
	}

	if err := hf.Sync(); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if hf.Count() != 2 {
		t.Fatalf("Count() = %d, want 2", hf.Count())
	}
	if got, ok := hf.Get(1); !ok || !got.Equal(h1) {
		t.Fatalf("Get(1) after sync = (%x, %v), want (%x, true)", got, ok, h1)
	}
}

func TestHashFileDiscard(t *testing.T) {
	hf, err := OpenHashFile(filepath.Join(t.TempDir(), "pmmr_hash.bin"))
	if err != nil {
		t.Fatalf("OpenHashFile: %v", err)
	}
	defer hf.Close()

	hf.Append(consensus.Blake2b([]byte("synced")))
	hf.Sync()
	hf.Append(consensus.Blake2b([]byte("unsynced")))
	hf.Discard()

	if hf.Count() != 1 {
		t.Fatalf("Count() after discard = %d, want 1", hf.Count())
	}
}

func TestHashFileTruncate(t *testing.T) {
	hf, err := OpenHashFile(filepath.Join(t.TempDir(), "pmmr_hash.bin"))
	if err != nil {
		t.Fatalf("OpenHashFile: %v", err)
	}
	defer hf.Close()

	for i := 0; i < 5; i++ {
		hf.Append(consensus.Blake2b([]byte{byte(i)}))
	}
	hf.Sync()

	if err := hf.Truncate(3); err != nil {
		t.Fatalf("Truncate: %v", err)
	}
	if hf.Count() != 3 {
		t.Fatalf("Count() after Truncate(3) = %d, want 3", hf.Count())
	}
	if _, ok := hf.Get(3); ok {
		t.Error("Get(3) should fail after truncating to count 3")
	}
}

func TestDataFileAppendSyncGet(t *testing.T) {
	df, err := OpenDataFile(filepath.Join(t.TempDir(), "pmmr_data.bin"))
	if err != nil {
		t.Fatalf("OpenDataFile: %v", err)
	}
	defer df.Close()

	df.Append(1, []byte("first"))
	df.Append(2, []byte("second-longer"))

	if got, ok := df.Get(1); !ok || string(got) != "first" {
		t.Fatalf("Get(1) before sync = (%q, %v), want (\"first\", true)", got, ok)
	}

	if err := df.Sync(); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if got, ok := df.Get(2); !ok || string(got) != "second-longer" {
		t.Fatalf("Get(2) after sync = (%q, %v), want (\"second-longer\", true)", got, ok)
	}
}

func TestDataFileTruncateReadsBeforeOverwriting(t *testing.T) {
	df, err := OpenDataFile(filepath.Join(t.TempDir(), "pmmr_data.bin"))
	if err != nil {
		t.Fatalf("OpenDataFile: %v", err)
	}
	defer df.Close()

	df.Append(1, []byte("keep-one"))
	df.Append(2, []byte("keep-two"))
	df.Append(3, []byte("drop-three"))
	if err := df.Sync(); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	if err := df.Truncate(3); err != nil {
		t.Fatalf("Truncate: %v", err)
	}

	got1, ok1 := df.Get(1)
	got2, ok2 := df.Get(2)
	if !ok1 || string(got1) != "keep-one" {
		t.Fatalf("Get(1) after truncate = (%q, %v), want (\"keep-one\", true)", got1, ok1)
	}
	if !ok2 || string(got2) != "keep-two" {
		t.Fatalf("Get(2) after truncate = (%q, %v), want (\"keep-two\", true)", got2, ok2)
	}
	if _, ok := df.Get(3); ok {
		t.Error("Get(3) should fail, its record was truncated away")
	}
}

func TestDataFileCompactDropsSelected(t *testing.T) {
	df, err := OpenDataFile(filepath.Join(t.TempDir(), "pmmr_data.bin"))
	if err != nil {
		t.Fatalf("OpenDataFile: %v", err)
	}
	defer df.Close()

	df.Append(1, []byte("a"))
	df.Append(5, []byte("b"))
	df.Append(9, []byte("c"))
	if err := df.Sync(); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	if err := df.Compact(func(pos uint64) bool { return pos != 5 }); err != nil {
		t.Fatalf("Compact: %v", err)
	}

	if _, ok := df.Get(5); ok {
		t.Error("Get(5) should fail after Compact dropped it")
	}
	if got, ok := df.Get(9); !ok || string(got) != "c" {
		t.Fatalf("Get(9) after compact = (%q, %v), want (\"c\", true)", got, ok)
	}
}
