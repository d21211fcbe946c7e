// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

package chain

import (
	"bytes"
	"encoding/binary"
	"errors"

	"github.com/grincore/node/consensus"
	"github.com/grincore/node/secp256k1zkp"
	"github.com/syndtr/goleveldb/leveldb"
)

// BlockSums is the running per-block kernel-excess accumulator: a block's
// BlockSums is its parent's KernelSum plus the new block's own kernel
// excesses. ProcessBlock computes and stores it for every accepted block,
// but block validation does not compare against it; the kernel-sum check in
// Extension.validate uses the header's TotalKernelSum instead.
type BlockSums struct {
	KernelSum secp256k1zkp.Commitment
}

// BlockDelta is the bitmap accumulator spec.md §4.3 rewind relies on:
// exactly which output-PMMR leaf positions a block added and which it spent,
// recorded at apply_block time so a later rewind across this block can
// invert the spend side without rescanning the block's inputs.
type BlockDelta struct {
	AddedOutputPos []uint64
	SpentOutputPos []uint64
}

// Storage represents the persistence methods the chain package needs.
// Storage doesn't check consensus rules; every error returned from it is
// fatal to the in-flight request (spec.md §4.4 failure semantics), adapted
// from the teacher's src/chain/storage.go Storage interface (AddBlock/
// DelBlock/GetBlock/GetLastBlock/From) and widened with the indices the
// five-stage pipeline needs: block_sums, output-commitment position, kernel
// excess height, and an invalid-block marker.
type Storage interface {
	// PutBlock persists block, indexed by hash.
	PutBlock(block *consensus.Block) error
	// GetBlock returns the block by hash or height (whichever id carries),
	// or nil if not found.
	GetBlock(id consensus.BlockID) (*consensus.Block, error)
	// GetHeadHash returns the current best-chain tip hash, or ok=false if
	// the store is empty.
	GetHeadHash() (hash consensus.Hash, ok bool, err error)
	// SetHeadHash records hash as the new best-chain tip.
	SetHeadHash(hash consensus.Hash) error
	// PutHeightIndex records hash as the canonical block at height (used by
	// reorgs to move the index onto the new branch).
	PutHeightIndex(height uint64, hash consensus.Hash) error
	// GetHashByHeight returns the canonical block hash at height.
	GetHashByHeight(height uint64) (consensus.Hash, bool, error)

	// GetBlockSums returns the stored BlockSums for a block, or ok=false.
	GetBlockSums(hash consensus.Hash) (sums *BlockSums, ok bool, err error)
	// PutBlockSums persists sums for hash.
	PutBlockSums(hash consensus.Hash, sums *BlockSums) error

	// GetOutputPos returns the output PMMR position commit was appended at.
	GetOutputPos(commit secp256k1zkp.Commitment) (pos uint64, ok bool, err error)
	// PutOutputPos records the output PMMR position commit was appended at.
	PutOutputPos(commit secp256k1zkp.Commitment, pos uint64) error
	// DeleteOutputPos removes commit's position index entry (called when
	// the output is spent and pruned out of the leaf set for good).
	DeleteOutputPos(commit secp256k1zkp.Commitment) error

	// GetKernelHeight returns the height a kernel with this excess was last
	// seen at, used to enforce NoRecentDuplicate.
	GetKernelHeight(excess secp256k1zkp.Commitment) (height uint64, ok bool, err error)
	// PutKernelHeight records that a kernel with this excess was accepted
	// at height.
	PutKernelHeight(excess secp256k1zkp.Commitment, height uint64) error

	// MarkInvalid records hash as a known-bad block so it isn't retried.
	MarkInvalid(hash consensus.Hash) error
	// IsInvalid reports whether hash was previously marked invalid.
	IsInvalid(hash consensus.Hash) (bool, error)

	// GetOutputHeight returns the height the output committing to commit
	// was created at, used for the coinbase-maturity check.
	GetOutputHeight(commit secp256k1zkp.Commitment) (height uint64, ok bool, err error)
	// PutOutputHeight records the creation height of an output commitment.
	PutOutputHeight(commit secp256k1zkp.Commitment, height uint64) error

	// GetBlockDelta returns the set of output-PMMR positions a block added
	// and spent, recorded at apply time for later rewind.
	GetBlockDelta(hash consensus.Hash) (delta *BlockDelta, ok bool, err error)
	// PutBlockDelta records a block's added/spent output-PMMR positions.
	PutBlockDelta(hash consensus.Hash, delta *BlockDelta) error

	// Close releases the underlying store.
	Close() error
}

var (
	keyHead         = []byte("head")
	prefixBlock     = []byte("blk:")
	prefixHeight    = []byte("hgt:")
	prefixSums      = []byte("sum:")
	prefixOutputPos = []byte("opo:")
	prefixKernelHgt = []byte("ker:")
	prefixInvalid   = []byte("inv:")
	prefixOutputHgt = []byte("ohg:")
	prefixDelta     = []byte("dlt:")
)

func blockKey(hash consensus.Hash) []byte { return append(append([]byte{}, prefixBlock...), hash...) }
func heightKey(height uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], height)
	return append(append([]byte{}, prefixHeight...), buf[:]...)
}
func sumsKey(hash consensus.Hash) []byte { return append(append([]byte{}, prefixSums...), hash...) }
func outputPosKey(commit secp256k1zkp.Commitment) []byte {
	return append(append([]byte{}, prefixOutputPos...), commit...)
}
func kernelHeightKey(excess secp256k1zkp.Commitment) []byte {
	return append(append([]byte{}, prefixKernelHgt...), excess...)
}
func invalidKey(hash consensus.Hash) []byte { return append(append([]byte{}, prefixInvalid...), hash...) }
func outputHeightKey(commit secp256k1zkp.Commitment) []byte {
	return append(append([]byte{}, prefixOutputHgt...), commit...)
}
func deltaKey(hash consensus.Hash) []byte { return append(append([]byte{}, prefixDelta...), hash...) }

// encodeUint64Slice/decodeUint64Slice serialize a []uint64 as a
// length-prefixed sequence of big-endian uint64s, used to persist
// BlockDelta's position lists.
func encodeUint64Slice(xs []uint64) []byte {
	buf := make([]byte, 8+8*len(xs))
	binary.BigEndian.PutUint64(buf[:8], uint64(len(xs)))
	for i, x := range xs {
		binary.BigEndian.PutUint64(buf[8+8*i:16+8*i], x)
	}
	return buf
}

func decodeUint64Slice(buf []byte) []uint64 {
	if len(buf) < 8 {
		return nil
	}
	n := binary.BigEndian.Uint64(buf[:8])
	xs := make([]uint64, 0, n)
	for i := uint64(0); i < n; i++ {
		off := 8 + 8*i
		if off+8 > uint64(len(buf)) {
			break
		}
		xs = append(xs, binary.BigEndian.Uint64(buf[off:off+8]))
	}
	return xs
}

func encodeBlockDelta(d *BlockDelta) []byte {
	added := encodeUint64Slice(d.AddedOutputPos)
	spent := encodeUint64Slice(d.SpentOutputPos)
	out := make([]byte, 0, len(added)+len(spent))
	out = append(out, added...)
	out = append(out, spent...)
	return out
}

func decodeBlockDelta(buf []byte) *BlockDelta {
	if len(buf) < 8 {
		return &BlockDelta{}
	}
	addedLen := binary.BigEndian.Uint64(buf[:8])
	addedBytes := 8 + 8*int(addedLen)
	if addedBytes > len(buf) {
		addedBytes = len(buf)
	}
	added := decodeUint64Slice(buf[:addedBytes])
	spent := decodeUint64Slice(buf[addedBytes:])
	return &BlockDelta{AddedOutputPos: added, SpentOutputPos: spent}
}

// LevelDBStorage is the production Storage, backed by goleveldb - the same
// embedded sorted-KV engine the pack's EXCCoin-exccd uses for its
// chain-state layer (database/go.mod), replacing the teacher's relational
// src/storage/mysql.go which has no component in this layout to serve.
type LevelDBStorage struct {
	db *leveldb.DB
}

// OpenLevelDBStorage opens (creating if absent) a goleveldb store at path.
func OpenLevelDBStorage(path string) (*LevelDBStorage, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, err
	}
	return &LevelDBStorage{db: db}, nil
}

func (s *LevelDBStorage) PutBlock(block *consensus.Block) error {
	return s.db.Put(blockKey(block.Hash()), block.Bytes(), nil)
}

func (s *LevelDBStorage) GetBlock(id consensus.BlockID) (*consensus.Block, error) {
	hash := id.Hash
	if hash == nil {
		if id.Height == nil {
			return nil, errors.New("chain: GetBlock requires a hash or a height")
		}
		h, ok, err := s.GetHashByHeight(*id.Height)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, nil
		}
		hash = h
	}

	raw, err := s.db.Get(blockKey(hash), nil)
	if err == leveldb.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	block := new(consensus.Block)
	if err := block.Read(bytes.NewReader(raw)); err != nil {
		return nil, err
	}
	return block, nil
}

func (s *LevelDBStorage) GetHeadHash() (consensus.Hash, bool, error) {
	raw, err := s.db.Get(keyHead, nil)
	if err == leveldb.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return consensus.Hash(raw), true, nil
}

func (s *LevelDBStorage) SetHeadHash(hash consensus.Hash) error {
	return s.db.Put(keyHead, hash, nil)
}

func (s *LevelDBStorage) PutHeightIndex(height uint64, hash consensus.Hash) error {
	return s.db.Put(heightKey(height), hash, nil)
}

func (s *LevelDBStorage) GetHashByHeight(height uint64) (consensus.Hash, bool, error) {
	raw, err := s.db.Get(heightKey(height), nil)
	if err == leveldb.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return consensus.Hash(raw), true, nil
}

func (s *LevelDBStorage) GetBlockSums(hash consensus.Hash) (*BlockSums, bool, error) {
	raw, err := s.db.Get(sumsKey(hash), nil)
	if err == leveldb.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return &BlockSums{KernelSum: secp256k1zkp.Commitment(raw)}, true, nil
}

func (s *LevelDBStorage) PutBlockSums(hash consensus.Hash, sums *BlockSums) error {
	return s.db.Put(sumsKey(hash), sums.KernelSum.Bytes(), nil)
}

func (s *LevelDBStorage) GetOutputPos(commit secp256k1zkp.Commitment) (uint64, bool, error) {
	raw, err := s.db.Get(outputPosKey(commit), nil)
	if err == leveldb.ErrNotFound {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return binary.BigEndian.Uint64(raw), true, nil
}

func (s *LevelDBStorage) PutOutputPos(commit secp256k1zkp.Commitment, pos uint64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], pos)
	return s.db.Put(outputPosKey(commit), buf[:], nil)
}

func (s *LevelDBStorage) DeleteOutputPos(commit secp256k1zkp.Commitment) error {
	return s.db.Delete(outputPosKey(commit), nil)
}

func (s *LevelDBStorage) GetKernelHeight(excess secp256k1zkp.Commitment) (uint64, bool, error) {
	raw, err := s.db.Get(kernelHeightKey(excess), nil)
	if err == leveldb.ErrNotFound {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return binary.BigEndian.Uint64(raw), true, nil
}

func (s *LevelDBStorage) PutKernelHeight(excess secp256k1zkp.Commitment, height uint64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], height)
	return s.db.Put(kernelHeightKey(excess), buf[:], nil)
}

func (s *LevelDBStorage) MarkInvalid(hash consensus.Hash) error {
	return s.db.Put(invalidKey(hash), []byte{1}, nil)
}

func (s *LevelDBStorage) IsInvalid(hash consensus.Hash) (bool, error) {
	_, err := s.db.Get(invalidKey(hash), nil)
	if err == leveldb.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *LevelDBStorage) GetOutputHeight(commit secp256k1zkp.Commitment) (uint64, bool, error) {
	raw, err := s.db.Get(outputHeightKey(commit), nil)
	if err == leveldb.ErrNotFound {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return binary.BigEndian.Uint64(raw), true, nil
}

func (s *LevelDBStorage) PutOutputHeight(commit secp256k1zkp.Commitment, height uint64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], height)
	return s.db.Put(outputHeightKey(commit), buf[:], nil)
}

func (s *LevelDBStorage) GetBlockDelta(hash consensus.Hash) (*BlockDelta, bool, error) {
	raw, err := s.db.Get(deltaKey(hash), nil)
	if err == leveldb.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return decodeBlockDelta(raw), true, nil
}

func (s *LevelDBStorage) PutBlockDelta(hash consensus.Hash, delta *BlockDelta) error {
	return s.db.Put(deltaKey(hash), encodeBlockDelta(delta), nil)
}

func (s *LevelDBStorage) Close() error { return s.db.Close() }
