// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

// Package chain implements the consensus-critical block acceptance pipeline:
// a Chain Extension over four PMMRs (chain/extension.go, spec.md §4.3), the
// five-stage ProcessBlock pipeline (chain/pipeline.go, spec.md §4.4), and
// the goleveldb-backed Storage (chain/storage.go) they're built on.
package chain

import (
	"bytes"
	"math/big"
	"sync"

	"github.com/grincore/node/consensus"
	"github.com/grincore/node/secp256k1zkp"
)

// BlockAcceptedFunc is invoked after ProcessBlock commits a new head; the
// P2P/API/TUI layers this node doesn't implement (spec.md §1 Non-goals)
// would subscribe here to learn about new blocks to relay or serve.
type BlockAcceptedFunc func(block *consensus.Block)

// Chain is the single mutable view of accepted blocks: the current best
// chain's tip, height and total difficulty, backed by Storage and a
// TxHashSet. The embedded RWMutex guards head, height and onAccepted only;
// storage is read and written without holding it (ProcessBlock's lookups
// and commits run outside the lock).
type Chain struct {
	sync.RWMutex

	params  consensus.ConsensusParams
	storage Storage
	txhs    *TxHashSet

	genesis consensus.Block
	head    consensus.BlockHeader
	height  uint64

	onAccepted BlockAcceptedFunc
}

// New opens a Chain over storage/txhs, installing genesis as the head when
// the store is empty (genesis is never run through ProcessBlock - it is
// trusted data, same as the teacher's New does for Testnet1/Testnet2).
func New(params consensus.ConsensusParams, storage Storage, txhs *TxHashSet, genesis consensus.Block) (*Chain, error) {
	c := &Chain{
		params:  params,
		storage: storage,
		txhs:    txhs,
		genesis: genesis,
		head:    genesis.Header,
		height:  genesis.Header.Height,
	}

	headHash, ok, err := storage.GetHeadHash()
	if err != nil {
		return nil, wrapErr(ErrStorage, "loading head hash", err)
	}
	if !ok {
		var added []uint64
		genErr := extending(txhs, storage, params, func(ext *Extension) error {
			a, err := ext.applyGenesis(&genesis)
			added = a
			return err
		})
		if genErr != nil {
			return nil, genErr
		}

		if err := storage.PutBlock(&genesis); err != nil {
			return nil, wrapErr(ErrStorage, "storing genesis block", err)
		}
		if err := storage.PutBlockSums(genesis.Hash(), &BlockSums{KernelSum: genesis.Kernels[0].Excess}); err != nil {
			return nil, wrapErr(ErrStorage, "storing genesis block sums", err)
		}
		if err := storage.PutBlockDelta(genesis.Hash(), &BlockDelta{AddedOutputPos: added}); err != nil {
			return nil, wrapErr(ErrStorage, "storing genesis block delta", err)
		}
		if err := storage.SetHeadHash(genesis.Hash()); err != nil {
			return nil, wrapErr(ErrStorage, "setting genesis as head", err)
		}
		if err := storage.PutHeightIndex(0, genesis.Hash()); err != nil {
			return nil, wrapErr(ErrStorage, "indexing genesis height", err)
		}
		return c, nil
	}

	block, err := storage.GetBlock(consensus.BlockID{Hash: headHash})
	if err != nil {
		return nil, wrapErr(ErrStorage, "loading stored head", err)
	}
	if block == nil {
		return nil, wrapErr(ErrStorage, "stored head hash has no block", nil)
	}
	c.head = block.Header
	c.height = block.Header.Height

	return c, nil
}

// OnBlockAccepted registers the callback invoked whenever ProcessBlock
// commits a new best-chain head.
func (c *Chain) OnBlockAccepted(f BlockAcceptedFunc) {
	c.Lock()
	defer c.Unlock()
	c.onAccepted = f
}

// Genesis returns the chain's genesis block.
func (c *Chain) Genesis() consensus.Block {
	return c.genesis
}

// Head returns the current best-chain tip header.
func (c *Chain) Head() consensus.BlockHeader {
	c.RLock()
	defer c.RUnlock()
	return c.head
}

// Height returns the current best-chain height.
func (c *Chain) Height() uint64 {
	c.RLock()
	defer c.RUnlock()
	return c.height
}

// TotalDifficulty returns the current best-chain's accumulated difficulty.
func (c *Chain) TotalDifficulty() consensus.Difficulty {
	c.RLock()
	defer c.RUnlock()
	return c.head.TotalDifficulty
}

// GetBlock returns the block identified by hash, or nil if unknown.
func (c *Chain) GetBlock(hash consensus.Hash) (*consensus.Block, error) {
	block, err := c.storage.GetBlock(consensus.BlockID{Hash: hash})
	if err != nil {
		return nil, wrapErr(ErrStorage, "loading block", err)
	}
	return block, nil
}

// GetBlockID returns the block identified by b (hash or height), or nil.
func (c *Chain) GetBlockID(b consensus.BlockID) (*consensus.Block, error) {
	block, err := c.storage.GetBlock(b)
	if err != nil {
		return nil, wrapErr(ErrStorage, "loading block", err)
	}
	return block, nil
}

// GetBlockHeaders returns the headers following the first locator hash that
// is known to this chain but isn't the current tip, same semantics as the
// teacher's src/chain/chain.go GetBlockHeaders.
func (c *Chain) GetBlockHeaders(loc consensus.Locator) ([]consensus.BlockHeader, error) {
	hashes := loc.Hashes
	if len(hashes) > consensus.MaxLocators {
		hashes = hashes[:consensus.MaxLocators]
	}

	c.RLock()
	defer c.RUnlock()

	result := make([]consensus.BlockHeader, 0)
	for _, hash := range hashes {
		if bytes.Equal(hash, c.head.Hash()) {
			return result, nil
		}

		block, err := c.storage.GetBlock(consensus.BlockID{Hash: hash})
		if err != nil {
			return nil, wrapErr(ErrStorage, "loading locator block", err)
		}
		if block == nil {
			continue
		}

		height := block.Header.Height + 1
		for i := 0; i < consensus.MaxBlockHeaders && height <= c.height; i++ {
			h, ok, err := c.storage.GetHashByHeight(height)
			if err != nil {
				return nil, wrapErr(ErrStorage, "loading height index", err)
			}
			if !ok {
				break
			}
			next, err := c.storage.GetBlock(consensus.BlockID{Hash: h})
			if err != nil {
				return nil, wrapErr(ErrStorage, "loading header", err)
			}
			if next == nil {
				break
			}
			result = append(result, next.Header)
			height++
		}
		return result, nil
	}

	return result, nil
}

// headerWindow returns up to n headers ending at (and including) the block
// with the given hash, newest first - the shape consensus.NextDifficulty's
// damped moving average retarget consumes.
func (c *Chain) headerWindow(fromHash consensus.Hash, n int) ([]consensus.HeaderInfo, error) {
	out := make([]consensus.HeaderInfo, 0, n)
	hash := fromHash

	for len(out) < n {
		block, err := c.storage.GetBlock(consensus.BlockID{Hash: hash})
		if err != nil {
			return nil, wrapErr(ErrStorage, "loading header window", err)
		}
		if block == nil {
			break
		}

		isSecondary := block.Header.POW.EdgeBits == c.params.SecondPowEdgeBits
		out = append(out, consensus.HeaderInfo{
			Timestamp:        block.Header.Timestamp,
			Difficulty:       block.Header.Difficulty,
			SecondaryScaling: block.Header.ScalingDifficulty,
			IsSecondary:      isSecondary,
		})

		if block.Header.Height == 0 {
			break
		}
		hash = block.Header.Previous
	}

	return out, nil
}

// Validate walks the chain from the current head back to genesis,
// re-running every block's structural checks - used by integrity checks and
// tests, not the hot path (ProcessBlock already validated each block once).
func (c *Chain) Validate() error {
	c.RLock()
	headHash := c.head.Hash()
	c.RUnlock()

	hash := headHash
	genesisHash := c.genesis.Hash()

	for {
		block, err := c.storage.GetBlock(consensus.BlockID{Hash: hash})
		if err != nil {
			return wrapErr(ErrStorage, "loading block during validation", err)
		}
		if block == nil {
			return newErr(ErrStorage, "chain integrity broken: missing block")
		}

		if !bytes.Equal(hash, genesisHash) {
			if err := block.ValidateStructure(c.params); err != nil {
				return wrapErr(ErrInvalidBody, "block failed structural validation", err)
			}
		}

		if bytes.Equal(hash, genesisHash) {
			return nil
		}
		hash = block.Header.Previous
	}
}

// ValidateRawTx simulates applying tx against the current UTXO set without
// mutating any state: every input must reference a currently-unspent
// output, and the transaction must balance (sum of outputs, minus sum of
// inputs, equals sum of kernel excesses plus the offset applied to the
// generator point). This is the pool package's validate_raw_txs (spec.md
// §4.5 add_to_pool step 3) - a read-only counterpart to Extension.applyBlock
// that never touches the PMMRs.
func (c *Chain) ValidateRawTx(tx *consensus.Transaction) error {
	var inputCommits, outputCommits []secp256k1zkp.Commitment

	for i := range tx.Inputs {
		input := &tx.Inputs[i]
		pos, ok, err := c.storage.GetOutputPos(input.Commit)
		if err != nil {
			return wrapErr(ErrStorage, "looking up output position", err)
		}
		if !ok {
			return newErr(ErrInvalidBody, "transaction spends an unknown output")
		}
		if !c.txhs.outputBackend.LeafSet().Contains(pos) {
			return newErr(ErrInvalidBody, "transaction spends an already-spent output")
		}
		inputCommits = append(inputCommits, input.Commit)
	}

	for i := range tx.Outputs {
		outputCommits = append(outputCommits, tx.Outputs[i].Commit)
	}

	var kernelExcesses []secp256k1zkp.Commitment
	for i := range tx.Kernels {
		kernelExcesses = append(kernelExcesses, tx.Kernels[i].Excess)
	}

	offset := new(big.Int).SetBytes(tx.Offset)
	offsetCommit := secp256k1zkp.Commit(offset, big.NewInt(0))

	lhs, err := secp256k1zkp.Sum(outputCommits, inputCommits)
	if err != nil {
		return wrapErr(ErrInvalidBody, "summing transaction outputs and inputs", err)
	}
	rhs, err := secp256k1zkp.Sum(append(kernelExcesses, offsetCommit), nil)
	if err != nil {
		return wrapErr(ErrInvalidBody, "summing kernel excesses and offset", err)
	}

	if !bytes.Equal(lhs.Bytes(), rhs.Bytes()) {
		return newErr(ErrInvalidBody, "transaction does not balance")
	}

	return nil
}

// Close releases the chain's storage and txhashset.
func (c *Chain) Close() error {
	if err := c.storage.Close(); err != nil {
		return err
	}
	return c.txhs.Close()
}
