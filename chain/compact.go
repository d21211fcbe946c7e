// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

package chain

import "github.com/grincore/node/consensus"

// Compact walks every block below the cut-through horizon and asks the
// output PMMR's backend to physically drop leaves spent before that point,
// replacing their sibling pairs with pruned-subtree stand-ins (spec.md §4.2
// prune_list). ArchiveMode chains skip this entirely, keeping full history
// for auditing instead of reclaiming disk.
func (c *Chain) Compact() error {
	if c.params.ArchiveMode {
		return nil
	}

	c.RLock()
	height := c.height
	headHash := c.head.Hash()
	c.RUnlock()

	if height <= consensus.CutThroughHorizon {
		return nil
	}
	horizon := height - consensus.CutThroughHorizon

	var spent []uint64
	hash := headHash
	for {
		block, err := c.storage.GetBlock(consensus.BlockID{Hash: hash})
		if err != nil {
			return wrapErr(ErrStorage, "loading block during compaction", err)
		}
		if block == nil {
			break
		}
		if block.Header.Height < horizon {
			delta, ok, err := c.storage.GetBlockDelta(hash)
			if err != nil {
				return wrapErr(ErrStorage, "loading block delta during compaction", err)
			}
			if ok {
				spent = append(spent, delta.SpentOutputPos...)
			}
		}

		if block.Header.Height == 0 {
			break
		}
		hash = block.Header.Previous
	}

	if err := c.txhs.outputBackend.CheckCompact(spent); err != nil {
		return wrapErr(ErrStorage, "compacting output pmmr", err)
	}
	if err := c.txhs.proofBackend.CheckCompact(spent); err != nil {
		return wrapErr(ErrStorage, "compacting rangeproof pmmr", err)
	}
	return c.txhs.sync()
}
