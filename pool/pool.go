// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

// Package pool implements the transaction pool and its Dandelion++ stem/
// fluff staging (spec.md §4.5/§4.6): an ordered txpool of broadcastable
// transactions, a stempool of embargoed ones awaiting fluff, and the
// periodic DandelionMonitor that moves entries between them.
package pool

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/grincore/node/consensus"
)

// TxSource records why a PoolEntry ended up in its pool, carried through to
// relay/log decisions the same way the teacher's peerInfo.Status records why
// a peer is in a given connection state.
type TxSource int

const (
	// Push is a transaction freshly submitted by a wallet or peer.
	Push TxSource = iota
	// Fluff is a stempool aggregate moved to the txpool by the Dandelion
	// monitor once its aggregation window has passed.
	Fluff
	// EmbargoExpired is a stempool entry moved to the txpool because its
	// relay embargo ran out before a stem peer fluffed it.
	EmbargoExpired
	// Stem is a transaction currently staged for single-path relay.
	Stem
	// Reorg is a transaction reinstated into the pool because the block
	// that had confirmed it was reorged out.
	Reorg
)

func (s TxSource) String() string {
	switch s {
	case Push:
		return "Push"
	case Fluff:
		return "Fluff"
	case EmbargoExpired:
		return "EmbargoExpired"
	case Stem:
		return "Stem"
	case Reorg:
		return "Reorg"
	default:
		return "Unknown"
	}
}

// PoolEntry is one pooled transaction (spec.md §4.5 PoolEntry): its source
// and admission time. For stempool entries, TxAt is also what the Dandelion
// monitor measures both the aggregation window and the embargo against.
type PoolEntry struct {
	Src  TxSource
	TxAt time.Time
	Tx   *consensus.Transaction
}

// ChainView is the read-only slice of chain.Chain the pool needs: the
// current tip, for tie-breaking and logging, and a way to simulate a
// candidate transaction against the live UTXO set without mutating it.
type ChainView interface {
	Head() consensus.BlockHeader
	ValidateRawTx(tx *consensus.Transaction) error
}

// Pool holds the txpool and stempool under one lock, the same single-mutex
// shape as the teacher's p2p.peersPool protecting its peer tables - spec.md
// §4.6 requires the Dandelion monitor take this lock only for the duration
// of its own mutation, never nested with anything else.
type Pool struct {
	mu sync.RWMutex

	params consensus.ConsensusParams
	chain  ChainView

	txpool   []PoolEntry
	stempool []PoolEntry

	clock func() time.Time
}

// New returns an empty Pool bound to chain.
func New(params consensus.ConsensusParams, chain ChainView) *Pool {
	return &Pool{
		params: params,
		chain:  chain,
		clock:  time.Now,
	}
}

// AddToPool runs the five-step add_to_pool admission of spec.md §4.5: a
// lightweight structural validation, duplicate/NRD-duplicate rejection,
// candidate-aggregate balance validation against the live UTXO set, weight
// and minimum-fee-rate enforcement, and finally insertion with tx_at = now.
func (p *Pool) AddToPool(src TxSource, tx *consensus.Transaction, stem bool) error {
	if err := tx.ValidateStructure(); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.checkDuplicate(tx, stem); err != nil {
		return err
	}

	target := &p.txpool
	if stem {
		target = &p.stempool
	}

	candidate := consensus.AggregateDeep(append(txsOf(*target), tx))
	if err := p.chain.ValidateRawTx(candidate); err != nil {
		return err
	}

	weight := tx.Weight(p.params)
	if weight > p.params.MaxBlockWeight {
		return errors.New("pool: transaction exceeds the maximum block weight on its own")
	}
	if tx.FeeRate(p.params) < p.params.AcceptFeeBase {
		return errors.New("pool: transaction fee rate is below the minimum accepted rate")
	}

	*target = append(*target, PoolEntry{Src: src, TxAt: p.clock(), Tx: tx})

	return nil
}

// checkDuplicate rejects tx if any of its kernels' excesses already appear
// in the target pool, or - for NoRecentDuplicate kernels - in either pool,
// per spec.md §4.5 step 2's extra NRD rule (prevents back-to-back NRD
// admission via one pool then the other).
func (p *Pool) checkDuplicate(tx *consensus.Transaction, stem bool) error {
	hasNRD := false
	for i := range tx.Kernels {
		if tx.Kernels[i].Features == consensus.NoRecentDuplicateKernel {
			hasNRD = true
			break
		}
	}

	target := p.txpool
	if stem {
		target = p.stempool
	}

	for i := range tx.Kernels {
		excess := tx.Kernels[i].Excess
		if poolHasExcess(target, excess) {
			return errors.New("pool: transaction kernel already present in the pool")
		}
		if hasNRD && (poolHasExcess(p.txpool, excess) || poolHasExcess(p.stempool, excess)) {
			return errors.New("pool: no-recent-duplicate kernel already present")
		}
	}
	return nil
}

func poolHasExcess(entries []PoolEntry, excess []byte) bool {
	for _, e := range entries {
		for i := range e.Tx.Kernels {
			if string(e.Tx.Kernels[i].Excess) == string(excess) {
				return true
			}
		}
	}
	return false
}

func txsOf(entries []PoolEntry) []*consensus.Transaction {
	txs := make([]*consensus.Transaction, len(entries))
	for i := range entries {
		txs[i] = entries[i].Tx
	}
	return txs
}

// ReconcileBlock drops every txpool/stempool entry whose kernel excess now
// appears in block, then re-validates each remaining txpool entry on its
// own against the new head, dropping entries that no longer validate
// (spec.md §4.5 reconcile_block). The remaining entries are not validated
// together as one aggregate, and stempool entries are not re-validated.
func (p *Pool) ReconcileBlock(block *consensus.Block) {
	p.mu.Lock()
	defer p.mu.Unlock()

	mined := make(map[string]bool, len(block.Kernels))
	for i := range block.Kernels {
		mined[string(block.Kernels[i].Excess)] = true
	}

	p.txpool = dropMined(p.txpool, mined)
	p.stempool = dropMined(p.stempool, mined)

	kept := make([]PoolEntry, 0, len(p.txpool))
	for _, entry := range p.txpool {
		if err := p.chain.ValidateRawTx(entry.Tx); err != nil {
			continue
		}
		kept = append(kept, entry)
	}
	p.txpool = kept
}

func dropMined(entries []PoolEntry, mined map[string]bool) []PoolEntry {
	kept := make([]PoolEntry, 0, len(entries))
	for _, entry := range entries {
		conflict := false
		for i := range entry.Tx.Kernels {
			if mined[string(entry.Tx.Kernels[i].Excess)] {
				conflict = true
				break
			}
		}
		if !conflict {
			kept = append(kept, entry)
		}
	}
	return kept
}

// PrepareMineableTransactions packs txpool entries by fee-rate descending
// (ties broken by tx_at ascending, then kernel-excess lexicographic order)
// until max_block_weight would be exceeded, per spec.md §4.5
// prepare_mineable_transactions.
func (p *Pool) PrepareMineableTransactions() []*consensus.Transaction {
	p.mu.RLock()
	entries := make([]PoolEntry, len(p.txpool))
	copy(entries, p.txpool)
	p.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		ri, rj := entries[i].Tx.FeeRate(p.params), entries[j].Tx.FeeRate(p.params)
		if ri != rj {
			return ri > rj
		}
		if !entries[i].TxAt.Equal(entries[j].TxAt) {
			return entries[i].TxAt.Before(entries[j].TxAt)
		}
		return excessKey(entries[i].Tx) < excessKey(entries[j].Tx)
	})

	var packed []*consensus.Transaction
	var weight uint64
	for _, entry := range entries {
		w := entry.Tx.Weight(p.params)
		if weight+w > p.params.MaxBlockWeight {
			break
		}
		weight += w
		packed = append(packed, entry.Tx)
	}

	return packed
}

func excessKey(tx *consensus.Transaction) string {
	if len(tx.Kernels) == 0 {
		return ""
	}
	return string(tx.Kernels[0].Excess)
}

// FluffStale moves every stempool entry whose TxAt is older than cutoff into
// the txpool as a single aggregated transaction with source Fluff, per
// spec.md §4.6's aggregation_secs rule. It returns nil if nothing qualified.
func (p *Pool) FluffStale(cutoff time.Time) *consensus.Transaction {
	p.mu.Lock()
	defer p.mu.Unlock()

	var stale, remaining []PoolEntry
	for _, entry := range p.stempool {
		if entry.TxAt.Before(cutoff) {
			stale = append(stale, entry)
		} else {
			remaining = append(remaining, entry)
		}
	}
	if len(stale) == 0 {
		return nil
	}
	p.stempool = remaining

	aggregate := consensus.AggregateDeep(txsOf(stale))
	p.txpool = append(p.txpool, PoolEntry{Src: Fluff, TxAt: p.clock(), Tx: aggregate})
	return aggregate
}

// ExpireEmbargoed unconditionally moves every stempool entry whose TxAt is
// older than cutoff into the txpool with source EmbargoExpired, per spec.md
// §4.6's embargo_secs+U(0,30) rule - the caller picks cutoff fresh each
// tick so the jitter varies tick to tick rather than being fixed per entry.
func (p *Pool) ExpireEmbargoed(cutoff time.Time) []*consensus.Transaction {
	p.mu.Lock()
	defer p.mu.Unlock()

	var expired, remaining []PoolEntry
	for _, entry := range p.stempool {
		if entry.TxAt.Before(cutoff) {
			expired = append(expired, entry)
		} else {
			remaining = append(remaining, entry)
		}
	}
	if len(expired) == 0 {
		return nil
	}
	p.stempool = remaining

	txs := make([]*consensus.Transaction, 0, len(expired))
	for _, entry := range expired {
		p.txpool = append(p.txpool, PoolEntry{Src: EmbargoExpired, TxAt: p.clock(), Tx: entry.Tx})
		txs = append(txs, entry.Tx)
	}
	return txs
}

// Len returns the current txpool and stempool sizes.
func (p *Pool) Len() (txpool, stempool int) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.txpool), len(p.stempool)
}
