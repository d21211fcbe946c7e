// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

package pmmr

import "github.com/grincore/node/consensus"

// Backend is the storage contract a logical PMMR is built on (spec.md
// §4.2). pmmr/backend provides the production flat-file implementation;
// other implementations (in-memory, for tests) may satisfy this directly.
type Backend interface {
	// Append writes elem to the data file (leaves only - elem is nil for
	// interior-node-only appends) and hashes to the hash file, advancing
	// the backend's last position by len(hashes).
	Append(elem []byte, hashes []consensus.Hash) error

	// AppendPrunedSubtree writes a single hash at pos, standing in for an
	// entire subtree whose leaves are not (yet, or any longer) held
	// locally, and records the subtree in the prune list.
	AppendPrunedSubtree(hash consensus.Hash, pos uint64) error

	// GetHash returns the hash stored at pos, honoring the prune-list
	// shift. ok is false if pos is beyond the last position or has been
	// pruned out from under a compacted subtree.
	GetHash(pos uint64) (hash consensus.Hash, ok bool)

	// GetData returns the leaf data stored at pos. ok is false for
	// non-leaf positions, pruned positions, or positions beyond the last
	// one.
	GetData(pos uint64) (data []byte, ok bool)

	// Rewind truncates the backend to pos, then re-adds the leaves named
	// in spentBitmap (positions spent after pos) back to the leaf set.
	Rewind(pos uint64, spentBitmap []uint64) error

	// Sync flushes all buffers and fsyncs; state is durable up to the
	// last successful Sync call.
	Sync() error

	// Discard drops in-memory appends made since the last Sync.
	Discard()

	// UnprunedSize returns the backend's current last position (the MMR's
	// logical size).
	UnprunedSize() uint64
}
