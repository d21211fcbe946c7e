// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

package backend

import (
	"bufio"
	"encoding/binary"
	"os"

	"github.com/grincore/node/consensus"
)

const hashRecordSize = consensus.BlockHashSize

// HashFile is an append-only flat file of fixed-size 32-byte hash records,
// indexed by on-disk (post-shift) offset: record i occupies bytes
// [i*32, i*32+32) (spec.md §4.2, §6 pmmr_hash.bin).
type HashFile struct {
	file *os.File
	// count is the number of records already fsynced to disk.
	count uint64
	// pending holds records appended since the last Sync - visible to
	// readers but not yet durable.
	pending []consensus.Hash
}

// OpenHashFile opens (creating if absent) the hash file at path.
func OpenHashFile(path string) (*HashFile, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	return &HashFile{file: f, count: uint64(info.Size()) / hashRecordSize}, nil
}

// Append queues h as the next record, visible to Get immediately but not
// durable until Sync.
func (hf *HashFile) Append(h consensus.Hash) {
	hf.pending = append(hf.pending, h)
}

// Count returns the number of committed-or-pending records.
func (hf *HashFile) Count() uint64 { return hf.count + uint64(len(hf.pending)) }

// Get returns the record at the given on-disk offset.
func (hf *HashFile) Get(offset uint64) (consensus.Hash, bool) {
	if offset < hf.count {
		buf := make([]byte, hashRecordSize)
		if _, err := hf.file.ReadAt(buf, int64(offset*hashRecordSize)); err != nil {
			return nil, false
		}
		return consensus.Hash(buf), true
	}
	pendingIdx := offset - hf.count
	if pendingIdx < uint64(len(hf.pending)) {
		return hf.pending[pendingIdx], true
	}
	return nil, false
}

// Sync flushes pending records to disk and fsyncs.
func (hf *HashFile) Sync() error {
	if len(hf.pending) == 0 {
		return nil
	}
	if _, err := hf.file.Seek(int64(hf.count*hashRecordSize), 0); err != nil {
		return err
	}
	w := bufio.NewWriter(hf.file)
	for _, h := range hf.pending {
		if _, err := w.Write(h); err != nil {
			return err
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if err := hf.file.Sync(); err != nil {
		return err
	}
	hf.count += uint64(len(hf.pending))
	hf.pending = nil
	return nil
}

// Discard drops records appended since the last Sync.
func (hf *HashFile) Discard() { hf.pending = nil }

// Truncate drops every record at or beyond offset, pending or synced, and
// syncs the result.
func (hf *HashFile) Truncate(offset uint64) error {
	if offset >= hf.count {
		if keep := offset - hf.count; keep < uint64(len(hf.pending)) {
			hf.pending = hf.pending[:keep]
		}
		return nil
	}
	hf.pending = nil
	if err := hf.file.Truncate(int64(offset * hashRecordSize)); err != nil {
		return err
	}
	hf.count = offset
	return hf.file.Sync()
}

// Rewrite replaces the file's entire contents with hashes, in order, and
// syncs - used by check_compact once the surviving on-disk sequence (with
// newly-pruned positions skipped) has been computed.
func (hf *HashFile) Rewrite(hashes []consensus.Hash) error {
	hf.pending = nil
	if err := hf.file.Truncate(0); err != nil {
		return err
	}
	if _, err := hf.file.Seek(0, 0); err != nil {
		return err
	}
	w := bufio.NewWriter(hf.file)
	for _, h := range hashes {
		if _, err := w.Write(h); err != nil {
			return err
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if err := hf.file.Sync(); err != nil {
		return err
	}
	hf.count = uint64(len(hashes))
	return nil
}

// Close closes the underlying file.
func (hf *HashFile) Close() error { return hf.file.Close() }

// dataRecord locates one leaf's data within DataFile.
type dataRecord struct {
	pos    uint64
	offset int64
	length uint32
}

// DataFile is an append-only flat file of length-prefixed leaf data
// records, indexed in memory by the leaf's on-disk position (spec.md §4.2,
// §6 pmmr_data.bin).
type DataFile struct {
	file    *os.File
	records []dataRecord
	index   map[uint64]int
	pending []dataRecord
	// pendingData holds the payload for each entry in pending, parallel by
	// index (kept separate so dataRecord stays a small fixed-size struct).
	pendingData [][]byte
	end         int64
}

// OpenDataFile opens (creating if absent) the data file at path. index maps
// each already-committed record's position to its slice index and must be
// supplied by the caller (rebuilt from a prior run's manifest, or empty for
// a fresh file) since DataFile itself does not persist positions.
func OpenDataFile(path string) (*DataFile, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	return &DataFile{file: f, index: map[uint64]int{}, end: info.Size()}, nil
}

// Append queues data as pos's leaf record.
func (df *DataFile) Append(pos uint64, data []byte) {
	df.pending = append(df.pending, dataRecord{pos: pos, length: uint32(len(data)), offset: -1})
	df.pendingData = append(df.pendingData, data)
}

func (df *DataFile) Get(pos uint64) ([]byte, bool) {
	if i, ok := df.index[pos]; ok {
		rec := df.records[i]
		buf := make([]byte, rec.length)
		if _, err := df.file.ReadAt(buf, rec.offset); err != nil {
			return nil, false
		}
		return buf, true
	}
	for i, rec := range df.pending {
		if rec.pos == pos {
			return df.pendingData[i], true
		}
	}
	return nil, false
}

// Sync appends pending records to the file, length-prefixed, and fsyncs.
func (df *DataFile) Sync() error {
	if len(df.pending) == 0 {
		return nil
	}
	w := bufio.NewWriter(df.file)
	offset := df.end
	for i, rec := range df.pending {
		var lenBuf [4]byte
		binary.BigEndian.PutUint32(lenBuf[:], rec.length)
		if _, err := w.Write(lenBuf[:]); err != nil {
			return err
		}
		if _, err := w.Write(df.pendingData[i]); err != nil {
			return err
		}
		rec.offset = offset + 4
		df.records = append(df.records, rec)
		df.index[rec.pos] = len(df.records) - 1
		offset += 4 + int64(rec.length)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if err := df.file.Sync(); err != nil {
		return err
	}
	df.end = offset
	df.pending = nil
	df.pendingData = nil
	return nil
}

// Discard drops records appended since the last Sync.
func (df *DataFile) Discard() {
	df.pending = nil
	df.pendingData = nil
}

// Truncate drops every committed record whose position is >= pos,
// rewriting the file without them (positions are not necessarily
// contiguous after pruning, so truncation is a rewrite, not a byte-offset
// cut).
func (df *DataFile) Truncate(pos uint64) error {
	return df.Compact(func(p uint64) bool { return p < pos })
}

// Compact rewrites the file keeping only records for which keep(pos) is
// true, used by check_compact to drop data for positions the prune list
// has just absorbed. Every kept record's payload is read off the
// still-intact file before anything is overwritten.
func (df *DataFile) Compact(keep func(pos uint64) bool) error {
	df.pending = nil
	df.pendingData = nil

	kept := df.records[:0]
	for _, rec := range df.records {
		if keep(rec.pos) {
			kept = append(kept, rec)
		}
	}

	payloads := make([][]byte, len(kept))
	for i, rec := range kept {
		buf := make([]byte, rec.length)
		if _, err := df.file.ReadAt(buf, rec.offset); err != nil {
			return err
		}
		payloads[i] = buf
	}

	if err := df.file.Truncate(0); err != nil {
		return err
	}
	if _, err := df.file.Seek(0, 0); err != nil {
		return err
	}

	w := bufio.NewWriter(df.file)
	df.index = map[uint64]int{}
	var offset int64
	newRecords := make([]dataRecord, 0, len(kept))
	for i, rec := range kept {
		var lenBuf [4]byte
		binary.BigEndian.PutUint32(lenBuf[:], rec.length)
		if _, err := w.Write(lenBuf[:]); err != nil {
			return err
		}
		if _, err := w.Write(payloads[i]); err != nil {
			return err
		}
		newRec := dataRecord{pos: rec.pos, offset: offset + 4, length: rec.length}
		newRecords = append(newRecords, newRec)
		df.index[rec.pos] = len(newRecords) - 1
		offset += 4 + int64(rec.length)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if err := df.file.Sync(); err != nil {
		return err
	}
	df.records = newRecords
	df.end = offset
	return nil
}

// Close closes the underlying file.
func (df *DataFile) Close() error { return df.file.Close() }
