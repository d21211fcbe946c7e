// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

package consensus

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"

	"github.com/dchest/siphash"
	"golang.org/x/crypto/blake2b"
)

const (
	// BlockHashSize is the size in bytes of a block/commitment/kernel hash.
	BlockHashSize = 32

	// ShortIDSize is the size of a short id used to identify inputs, outputs
	// and kernels inside a compact block (6 bytes).
	ShortIDSize = 6
)

// Hash is a 32-byte Blake2b digest. Canonical equality and ordering use the
// raw bytes.
type Hash []byte

// ZeroHash is the all-zero hash, the root of an empty PMMR.
func ZeroHash() Hash {
	return make(Hash, BlockHashSize)
}

// Blake2b returns the Blake2b-256 digest of data as a Hash.
func Blake2b(data ...[]byte) Hash {
	hasher, err := blake2b.New256(nil)
	if err != nil {
		// blake2b.New256 only errors on a bad key, and we never pass one.
		panic(err)
	}
	for _, d := range data {
		hasher.Write(d)
	}
	return hasher.Sum(nil)
}

// IsZero reports whether h is the zero hash or empty.
func (h Hash) IsZero() bool {
	return len(h) == 0 || bytes.Equal(h, ZeroHash())
}

// Equal reports whether h and other represent the same hash.
func (h Hash) Equal(other Hash) bool {
	return bytes.Equal(h, other)
}

// String returns the hex representation of the hash.
func (h Hash) String() string {
	return hex.EncodeToString(h)
}

// ShortID identifies an input, output or kernel inside a compact block.
type ShortID []byte

// String returns the hex representation of the short id.
func (id ShortID) String() string {
	return hex.EncodeToString(id)
}

// ShortID derives the short id for h, keyed by the block hash it appears in,
// per the compact-block hydration contract (spec.md §6).
func (h Hash) ShortID(blockHash Hash) ShortID {
	result := make(ShortID, ShortIDSize+2)

	k0 := binary.LittleEndian.Uint64(blockHash[:8])
	k1 := binary.LittleEndian.Uint64(blockHash[8:16])

	hash := siphash.Hash(k0, k1, h)
	binary.LittleEndian.PutUint64(result, hash)

	return result[0:ShortIDSize]
}

// ShortIDList is a sortable list of short ids, used for compact-block
// canonical encoding.
type ShortIDList []ShortID

func (s ShortIDList) Len() int      { return len(s) }
func (s ShortIDList) Swap(i, j int) { s[i], s[j] = s[j], s[i] }
func (s ShortIDList) Less(i, j int) bool {
	return bytes.Compare(s[i], s[j]) < 0
}
