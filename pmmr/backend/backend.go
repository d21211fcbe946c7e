// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

package backend

import (
	"fmt"
	"path/filepath"

	"github.com/grincore/node/consensus"
	"github.com/grincore/node/pmmr"
)

// Backend is the flat-file pmmr.Backend: a hash file and a data file on
// disk, plus an in-memory leaf set and prune list (persisted separately to
// pmmr_leaf.bin/pmmr_prun.bin by the caller, typically alongside a Sync).
// One Backend serves one logical PMMR - a chain keeps four (output,
// rangeproof, kernel, header), per spec.md §4.2/§6.
type Backend struct {
	hashes *HashFile
	data   *DataFile
	leaves *LeafSet
	prune  *PruneList

	lastPos uint64
}

// Open opens (creating if absent) pmmr_hash.bin and pmmr_data.bin under
// dir. leaves and prune seed the in-memory leaf set and prune list; pass
// NewLeafSet()/NewPruneList() for a fresh PMMR or the results of
// LeafSetFromBytes/PruneListFromBytes when resuming from pmmr_leaf.bin and
// pmmr_prun.bin.
func Open(dir string, leaves *LeafSet, prune *PruneList) (*Backend, error) {
	hf, err := OpenHashFile(filepath.Join(dir, "pmmr_hash.bin"))
	if err != nil {
		return nil, fmt.Errorf("backend: opening hash file: %w", err)
	}
	df, err := OpenDataFile(filepath.Join(dir, "pmmr_data.bin"))
	if err != nil {
		hf.Close()
		return nil, fmt.Errorf("backend: opening data file: %w", err)
	}
	return &Backend{
		hashes:  hf,
		data:    df,
		leaves:  leaves,
		prune:   prune,
		lastPos: hf.Count() + prune.totalShifted(),
	}, nil
}

// totalShifted returns the number of positions the prune list has removed
// from the hash file entirely (everything under a pruned root except the
// root itself), used to recover the logical last_pos from the on-disk hash
// count on reopen.
func (p *PruneList) totalShifted() uint64 {
	var n uint64
	for _, r := range p.roots {
		h := pmmr.Height(r)
		size := (uint64(1) << (h + 1)) - 1
		n += size - 1
	}
	return n
}

// LeafSet returns the backend's leaf set, for callers that need to persist
// or inspect it directly (e.g. chain.Extension.validate summing unspent
// commitments).
func (b *Backend) LeafSet() *LeafSet { return b.leaves }

// PruneList returns the backend's prune list.
func (b *Backend) PruneList() *PruneList { return b.prune }

// Append writes elem (if non-nil, meaning pos is a leaf) to the data file
// and hashes to the hash file, advancing last_pos by len(hashes).
func (b *Backend) Append(elem []byte, hashes []consensus.Hash) error {
	if len(hashes) == 0 {
		return fmt.Errorf("backend: append with no hashes")
	}
	leafPos := b.lastPos + 1
	if elem != nil {
		b.data.Append(leafPos, elem)
		b.leaves.Add(leafPos)
	}
	for _, h := range hashes {
		b.hashes.Append(h)
	}
	b.lastPos += uint64(len(hashes))
	return nil
}

// AppendPrunedSubtree writes a single hash standing in for the entire
// subtree rooted at pos, and records the subtree as pruned.
func (b *Backend) AppendPrunedSubtree(hash consensus.Hash, pos uint64) error {
	b.hashes.Append(hash)
	size := b.lastPos
	if pos > size {
		size = pos
	}
	b.prune.Add(pos, size)
	if pos > b.lastPos {
		b.lastPos = pos
	}
	return nil
}

// GetHash returns the hash at pos, honoring the prune-list shift.
func (b *Backend) GetHash(pos uint64) (consensus.Hash, bool) {
	if pos == 0 || pos > b.lastPos || b.prune.IsPruned(pos) {
		return nil, false
	}
	offset := pos - 1 - b.prune.Shift(pos)
	return b.hashes.Get(offset)
}

// GetData returns the leaf data at pos, if pos is a leaf with data still on
// hand.
func (b *Backend) GetData(pos uint64) ([]byte, bool) {
	if pos == 0 || pos > b.lastPos || !pmmr.IsLeaf(pos) {
		return nil, false
	}
	return b.data.Get(pos)
}

// Rewind truncates the backend to pos, re-adding the leaves named in
// spentBitmap (positions spent after pos, now un-spent again) and dropping
// every leaf added after pos from the leaf set.
func (b *Backend) Rewind(pos uint64, spentBitmap []uint64) error {
	if pos > b.lastPos {
		return fmt.Errorf("backend: cannot rewind to %d beyond last_pos %d", pos, b.lastPos)
	}

	hashOffset := pos - b.prune.Shift(pos)
	if err := b.hashes.Truncate(hashOffset); err != nil {
		return err
	}
	if err := b.data.Truncate(pos + 1); err != nil {
		return err
	}
	b.prune.Truncate(pos)

	var dropped []uint64
	b.leaves.Each(func(p uint64) {
		if p > pos {
			dropped = append(dropped, p)
		}
	})
	for _, p := range dropped {
		b.leaves.Remove(p)
	}
	for _, p := range spentBitmap {
		if p <= pos {
			b.leaves.Add(p)
		}
	}

	b.lastPos = pos
	return nil
}

// Sync flushes the hash and data files and fsyncs them.
func (b *Backend) Sync() error {
	if err := b.hashes.Sync(); err != nil {
		return err
	}
	return b.data.Sync()
}

// Discard drops in-memory appends made since the last Sync.
func (b *Backend) Discard() {
	b.hashes.Discard()
	b.data.Discard()
}

// UnprunedSize returns the backend's current last position.
func (b *Backend) UnprunedSize() uint64 { return b.lastPos }

// CheckCompact walks newlyPrunedLeaves (leaf positions at or below the
// compaction horizon that are spent, i.e. absent from leaves), moves them
// into the prune list, and physically rewrites the hash and data files to
// drop everything the prune list now covers (spec.md §4.2 check_compact).
func (b *Backend) CheckCompact(newlyPrunedLeaves []uint64) error {
	// Read every surviving hash against the current file layout before the
	// prune list (and with it every on-disk offset) changes.
	before := make(map[uint64]consensus.Hash, b.lastPos)
	for pos := uint64(1); pos <= b.lastPos; pos++ {
		if h, ok := b.GetHash(pos); ok {
			before[pos] = h
		}
	}

	removed := make(map[uint64]bool, len(newlyPrunedLeaves))
	for _, pos := range newlyPrunedLeaves {
		b.leaves.Remove(pos)
		b.prune.Add(pos, b.lastPos)
		removed[pos] = true
	}

	kept := make([]consensus.Hash, 0, b.lastPos)
	for pos := uint64(1); pos <= b.lastPos; pos++ {
		if b.prune.IsPruned(pos) {
			continue
		}
		h, ok := before[pos]
		if !ok {
			return fmt.Errorf("backend: missing hash at position %d during compaction", pos)
		}
		kept = append(kept, h)
	}
	if err := b.hashes.Rewrite(kept); err != nil {
		return err
	}

	return b.data.Compact(func(pos uint64) bool { return !removed[pos] })
}

// Close closes the underlying flat files.
func (b *Backend) Close() error {
	if err := b.hashes.Close(); err != nil {
		return err
	}
	return b.data.Close()
}

var _ pmmr.Backend = (*Backend)(nil)
