// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

package chain

import (
	"bytes"

	"github.com/grincore/node/consensus"
	"github.com/grincore/node/secp256k1zkp"
)

// Tip describes the chain's head after a successful ProcessBlock: the
// accepted block's header plus whether accepting it moved the best chain
// (a reorg) or merely recorded a side branch.
type Tip struct {
	Header   consensus.BlockHeader
	Reorg    bool
	SideFork bool
}

// ProcessBlock runs the five-stage acceptance pipeline of spec.md §4.4 over
// block: header validation, block-fit, body validation under an Extension,
// commit, and fork choice. A nil Tip with a nil error means the block was
// already known and nothing changed.
func (c *Chain) ProcessBlock(block *consensus.Block) (*Tip, error) {
	hash := block.Hash()

	if known, err := c.storage.GetBlock(consensus.BlockID{Hash: hash}); err != nil {
		return nil, wrapErr(ErrStorage, "checking for known block", err)
	} else if known != nil {
		return nil, nil
	}
	if invalid, err := c.storage.IsInvalid(hash); err != nil {
		return nil, wrapErr(ErrStorage, "checking invalid marker", err)
	} else if invalid {
		return nil, newErr(ErrAlreadyKnown, "block was previously marked invalid")
	}

	// Stage 1: header validation. Failures here are attributable to
	// whoever handed us the block - a malformed header never becomes a
	// side branch, it's simply rejected (spec.md §4.4 failure semantics).
	prev, err := c.storage.GetBlock(consensus.BlockID{Hash: block.Header.Previous})
	if err != nil {
		return nil, wrapErr(ErrStorage, "loading previous block", err)
	}
	if prev == nil {
		return nil, newErr(ErrUnfitBlock, "previous block is unknown")
	}

	if err := block.Header.Validate(c.params); err != nil {
		return nil, wrapErr(ErrInvalidHeader, "header failed structural validation", err)
	}
	if block.Header.Height != prev.Header.Height+1 {
		return nil, newErr(ErrInvalidHeader, "block height does not follow its previous block")
	}
	if !block.Header.Timestamp.After(prev.Header.Timestamp) {
		return nil, newErr(ErrInvalidHeader, "block timestamp does not advance on its previous block")
	}

	window, err := c.headerWindow(block.Header.Previous, c.params.DifficultyAdjustWindow+1)
	if err != nil {
		return nil, err
	}
	expected := consensus.NextDifficulty(c.params, window)
	if block.Header.Difficulty != expected {
		return nil, newErr(ErrInvalidHeader, "block difficulty does not match the retarget")
	}
	if block.Header.TotalDifficulty != prev.Header.TotalDifficulty+block.Header.Difficulty {
		return nil, newErr(ErrInvalidHeader, "block total difficulty is inconsistent")
	}

	// Stage 2: block-fit. Known-previous and height+1 were already
	// confirmed above; what remains is deciding whether this extends the
	// current head or opens/extends a side branch to be judged at fork
	// choice time.
	c.RLock()
	headHash := c.head.Hash()
	c.RUnlock()
	extendsHead := bytes.Equal(block.Header.Previous, headHash)

	if err := block.ValidateStructure(c.params); err != nil {
		return nil, wrapErr(ErrInvalidBody, "block failed structural validation", err)
	}
	if block.Weight(c.params) > c.params.MaxBlockWeight {
		return nil, newErr(ErrInvalidBody, "block exceeds the maximum block weight")
	}

	// Stage 3: body validation, run against an Extension rooted at the
	// block's own previous block (so side-branch blocks are validated
	// against their own ancestry, not whatever the current head happens
	// to be).
	var added, spent []uint64
	var sums *BlockSums

	apply := func(ext *Extension) error {
		if !extendsHead {
			if err := ext.rewind(&prev.Header, headHash); err != nil {
				return err
			}
		}

		a, s, err := ext.applyBlock(block, block.Header.Height)
		if err != nil {
			return err
		}
		added, spent = a, s

		parentSums, ok, err := c.storage.GetBlockSums(prev.Hash())
		if err != nil {
			return wrapErr(ErrStorage, "loading parent block sums", err)
		}

		excesses := make([]secp256k1zkp.Commitment, len(block.Kernels))
		for i := range block.Kernels {
			excesses[i] = block.Kernels[i].Excess
		}
		blockSum, serr := secp256k1zkp.Sum(excesses, nil)
		if serr != nil {
			return wrapErr(ErrInvalidBody, "summing block kernel excesses", serr)
		}
		if ok {
			total, serr := secp256k1zkp.Sum([]secp256k1zkp.Commitment{parentSums.KernelSum, blockSum}, nil)
			if serr != nil {
				return wrapErr(ErrInvalidBody, "combining kernel sums", serr)
			}
			sums = &BlockSums{KernelSum: total}
		} else {
			sums = &BlockSums{KernelSum: blockSum}
		}

		if err := c.checkNRD(block); err != nil {
			return err
		}

		return ext.validate(&block.Header, true)
	}

	if err := extending(c.txhs, c.storage, c.params, apply); err != nil {
		if !IsErrorKind(err, ErrStorage) {
			if merr := c.storage.MarkInvalid(hash); merr != nil {
				return nil, wrapErr(ErrStorage, "marking invalid block", merr)
			}
		}
		return nil, err
	}

	// Stage 4: commit. The block, its sums and its delta are always
	// persisted; the head pointer and height index only move if this
	// block wins fork choice below.
	if err := c.storage.PutBlock(block); err != nil {
		return nil, wrapErr(ErrStorage, "persisting block", err)
	}
	if err := c.storage.PutBlockSums(hash, sums); err != nil {
		return nil, wrapErr(ErrStorage, "persisting block sums", err)
	}
	if err := c.storage.PutBlockDelta(hash, &BlockDelta{AddedOutputPos: added, SpentOutputPos: spent}); err != nil {
		return nil, wrapErr(ErrStorage, "persisting block delta", err)
	}
	for i := range block.Kernels {
		if err := c.storage.PutKernelHeight(block.Kernels[i].Excess, block.Header.Height); err != nil {
			return nil, wrapErr(ErrStorage, "indexing kernel height", err)
		}
	}

	// Stage 5: fork choice. Greatest total difficulty wins; ties keep the
	// incumbent head, same as the teacher's src/chain/chain.go Validate.
	c.Lock()
	reorg := false
	sideFork := true
	if block.Header.TotalDifficulty > c.head.TotalDifficulty {
		c.head = block.Header
		c.height = block.Header.Height
		sideFork = false
		reorg = !extendsHead
	}
	newHead := c.head
	c.Unlock()

	if !sideFork {
		if err := c.storage.SetHeadHash(newHead.Hash()); err != nil {
			return nil, wrapErr(ErrStorage, "updating head pointer", err)
		}
		if err := c.storage.PutHeightIndex(newHead.Height, newHead.Hash()); err != nil {
			return nil, wrapErr(ErrStorage, "updating height index", err)
		}
		if c.onAccepted != nil {
			c.onAccepted(block)
		}
	}

	return &Tip{Header: block.Header, Reorg: reorg, SideFork: sideFork}, nil
}

// checkNRD enforces NoRecentDuplicateKernel: such kernels are rejected when
// NRD is not enabled or the block is below HF3Height, and otherwise a
// kernel with this excess must not have appeared within RelativeHeight
// blocks of the current one.
func (c *Chain) checkNRD(block *consensus.Block) error {
	for i := range block.Kernels {
		k := &block.Kernels[i]
		if k.Features != consensus.NoRecentDuplicateKernel {
			continue
		}
		if !c.params.NRDEnabled {
			return newErr(ErrInvalidBody, "no-recent-duplicate kernels are not enabled")
		}
		if block.Header.Height < c.params.HF3Height {
			return newErr(ErrInvalidBody, "no-recent-duplicate kernel before the HF3 height")
		}
		lastSeen, ok, err := c.storage.GetKernelHeight(k.Excess)
		if err != nil {
			return wrapErr(ErrStorage, "looking up kernel height", err)
		}
		if ok && block.Header.Height-lastSeen <= uint64(k.RelativeHeight) {
			return newErr(ErrInvalidBody, "kernel violates no-recent-duplicate window")
		}
	}
	return nil
}
