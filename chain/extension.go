// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

package chain

import (
	"bytes"
	"math/big"
	"math/bits"

	"github.com/grincore/node/consensus"
	"github.com/grincore/node/secp256k1zkp"
)

// Extension is a unit of work bracketing one block apply or one rewind,
// exposing apply_block/rewind/validate over the four PMMRs of a TxHashSet
// (spec.md §4.3). Within a single extending call every write appears
// atomically to subsequent readers: nothing commits until the closure
// returns Ok, and nothing is visible outside the closure until then either,
// since the backends only flush on Sync.
type Extension struct {
	txhs   *TxHashSet
	store  Storage
	params consensus.ConsensusParams
}

// extending runs f against a fresh Extension over txhs. On f returning nil,
// all four PMMR backends are synced and the mutation is durable; on error,
// every backend discards its unsynced appends and the mutation is as if it
// never happened.
func extending(txhs *TxHashSet, store Storage, params consensus.ConsensusParams, f func(*Extension) error) error {
	ext := &Extension{txhs: txhs, store: store, params: params}

	if err := f(ext); err != nil {
		txhs.discard()
		return err
	}

	if err := txhs.sync(); err != nil {
		return wrapErr(ErrStorage, "syncing txhashset", err)
	}
	return nil
}

// applyBlock mutates the four PMMRs for block: spends its inputs, appends
// its outputs/rangeproofs/kernels, appends the new header, then checks the
// post-apply sizes and roots against what block.Header declares (spec.md
// §4.3 apply_block). It returns the set of output-PMMR positions the block
// added and spent, for the caller to persist as the block's BlockDelta.
func (e *Extension) applyBlock(block *consensus.Block, currentHeight uint64) (added, spent []uint64, err error) {
	if !bytes.Equal(block.Header.PreviousRoot, mustRoot(e.txhs.Header)) {
		return nil, nil, newErr(ErrInvalidBody, "previous header root mismatch")
	}

	for i := range block.Inputs {
		input := &block.Inputs[i]
		pos, ok, gerr := e.store.GetOutputPos(input.Commit)
		if gerr != nil {
			return nil, nil, wrapErr(ErrStorage, "looking up output position", gerr)
		}
		if !ok {
			return nil, nil, newErr(ErrInvalidBody, "input spends unknown output")
		}
		if !e.txhs.outputBackend.LeafSet().Contains(pos) {
			return nil, nil, newErr(ErrInvalidBody, "input spends an already-spent output")
		}

		if input.Features&consensus.CoinbaseOutput != 0 {
			createdAt, ok, gerr := e.store.GetOutputHeight(input.Commit)
			if gerr != nil {
				return nil, nil, wrapErr(ErrStorage, "looking up output height", gerr)
			}
			if !ok || currentHeight-createdAt < e.params.CoinbaseMaturity {
				return nil, nil, newErr(ErrInvalidBody, "input spends an immature coinbase output")
			}
		}

		e.txhs.outputBackend.LeafSet().Remove(pos)
		if derr := e.store.DeleteOutputPos(input.Commit); derr != nil {
			return nil, nil, wrapErr(ErrStorage, "deleting output position", derr)
		}
		spent = append(spent, pos)
	}

	for i := range block.Outputs {
		output := &block.Outputs[i]

		if _, ok, gerr := e.store.GetOutputPos(output.Commit); gerr != nil {
			return nil, nil, wrapErr(ErrStorage, "looking up output position", gerr)
		} else if ok {
			return nil, nil, newErr(ErrInvalidBody, "block has cut-through: output already exists")
		}

		pos, perr := e.txhs.Output.Push(output.BytesWithoutProof())
		if perr != nil {
			return nil, nil, wrapErr(ErrStorage, "appending output pmmr", perr)
		}
		if _, perr := e.txhs.RangeProof.Push(output.RangeProof.Bytes()); perr != nil {
			return nil, nil, wrapErr(ErrStorage, "appending rangeproof pmmr", perr)
		}

		if perr := e.store.PutOutputPos(output.Commit, pos); perr != nil {
			return nil, nil, wrapErr(ErrStorage, "storing output position", perr)
		}
		if perr := e.store.PutOutputHeight(output.Commit, block.Header.Height); perr != nil {
			return nil, nil, wrapErr(ErrStorage, "storing output height", perr)
		}
		added = append(added, pos)
	}

	for i := range block.Kernels {
		if _, perr := e.txhs.Kernel.Push(block.Kernels[i].Bytes()); perr != nil {
			return nil, nil, wrapErr(ErrStorage, "appending kernel pmmr", perr)
		}
	}

	if _, perr := e.txhs.Header.Push(block.Header.Bytes()); perr != nil {
		return nil, nil, wrapErr(ErrStorage, "appending header pmmr", perr)
	}

	if e.txhs.Output.UnprunedSize() != block.Header.OutputMmrSize {
		return nil, nil, newErr(ErrInvalidBody, "output mmr size mismatch")
	}
	if e.txhs.Kernel.UnprunedSize() != block.Header.KernelMmrSize {
		return nil, nil, newErr(ErrInvalidBody, "kernel mmr size mismatch")
	}

	outputRoot, rerr := e.txhs.Output.Root()
	if rerr != nil {
		return nil, nil, wrapErr(ErrStorage, "computing output root", rerr)
	}
	if !bytes.Equal(outputRoot, block.Header.UTXORoot) {
		return nil, nil, newErr(ErrInvalidBody, "output root mismatch")
	}

	proofRoot, rerr := e.txhs.RangeProof.Root()
	if rerr != nil {
		return nil, nil, wrapErr(ErrStorage, "computing rangeproof root", rerr)
	}
	if !bytes.Equal(proofRoot, block.Header.RangeProofRoot) {
		return nil, nil, newErr(ErrInvalidBody, "rangeproof root mismatch")
	}

	kernelRoot, rerr := e.txhs.Kernel.Root()
	if rerr != nil {
		return nil, nil, wrapErr(ErrStorage, "computing kernel root", rerr)
	}
	if !bytes.Equal(kernelRoot, block.Header.KernelRoot) {
		return nil, nil, newErr(ErrInvalidBody, "kernel root mismatch")
	}

	return added, spent, nil
}

// applyGenesis appends genesis's outputs, range proofs, kernels and header
// to the four PMMRs without running any of applyBlock's consensus checks:
// genesis carries placeholder commitments and signatures that were never
// meant to verify against the curve (see chain/genesis.go), so it is pushed
// once, directly, the first time a Chain opens over an empty store.
func (e *Extension) applyGenesis(genesis *consensus.Block) (added []uint64, err error) {
	for i := range genesis.Outputs {
		output := &genesis.Outputs[i]

		pos, perr := e.txhs.Output.Push(output.BytesWithoutProof())
		if perr != nil {
			return nil, wrapErr(ErrStorage, "appending genesis output pmmr", perr)
		}
		if _, perr := e.txhs.RangeProof.Push(output.RangeProof.Bytes()); perr != nil {
			return nil, wrapErr(ErrStorage, "appending genesis rangeproof pmmr", perr)
		}
		if perr := e.store.PutOutputPos(output.Commit, pos); perr != nil {
			return nil, wrapErr(ErrStorage, "storing genesis output position", perr)
		}
		if perr := e.store.PutOutputHeight(output.Commit, genesis.Header.Height); perr != nil {
			return nil, wrapErr(ErrStorage, "storing genesis output height", perr)
		}
		added = append(added, pos)
	}

	for i := range genesis.Kernels {
		if _, perr := e.txhs.Kernel.Push(genesis.Kernels[i].Bytes()); perr != nil {
			return nil, wrapErr(ErrStorage, "appending genesis kernel pmmr", perr)
		}
	}

	if _, perr := e.txhs.Header.Push(genesis.Header.Bytes()); perr != nil {
		return nil, wrapErr(ErrStorage, "appending genesis header pmmr", perr)
	}

	return added, nil
}

// rewind truncates all four PMMRs back to target's post-apply sizes,
// re-adding to the output leaf set every position spent by a block between
// the current chain head and target (inclusive of target's child, exclusive
// of target itself), per spec.md §4.3 rewind. headHash is the hash the
// chain currently considers its tip.
func (e *Extension) rewind(target *consensus.BlockHeader, headHash consensus.Hash) error {
	var spent []uint64

	hash := headHash
	for !bytes.Equal(hash, target.Hash()) {
		block, err := e.store.GetBlock(consensus.BlockID{Hash: hash})
		if err != nil {
			return wrapErr(ErrStorage, "loading block during rewind", err)
		}
		if block == nil {
			return newErr(ErrUnfitBlock, "rewind target is not an ancestor of the current head")
		}

		delta, ok, err := e.store.GetBlockDelta(hash)
		if err != nil {
			return wrapErr(ErrStorage, "loading block delta during rewind", err)
		}
		if ok {
			spent = append(spent, delta.SpentOutputPos...)
		}

		hash = block.Header.Previous
	}

	if err := e.txhs.Output.Rewind(target.OutputMmrSize, spent); err != nil {
		return wrapErr(ErrStorage, "rewinding output pmmr", err)
	}
	if err := e.txhs.RangeProof.Rewind(target.OutputMmrSize, nil); err != nil {
		return wrapErr(ErrStorage, "rewinding rangeproof pmmr", err)
	}
	if err := e.txhs.Kernel.Rewind(target.KernelMmrSize, nil); err != nil {
		return wrapErr(ErrStorage, "rewinding kernel pmmr", err)
	}
	// The header PMMR holds one leaf per header from genesis to target;
	// an MMR of n leaves has 2n - popcount(n) positions.
	headerLeaves := target.Height + 1
	headerSize := 2*headerLeaves - uint64(bits.OnesCount64(headerLeaves))
	if err := e.txhs.Header.Rewind(headerSize, nil); err != nil {
		return wrapErr(ErrStorage, "rewinding header pmmr", err)
	}

	return nil
}

// validate sums every unspent output-PMMR leaf's commitment and compares it
// to the declared total kernel excess sum plus the total kernel offset
// applied to the generator point, per spec.md §4.3 validate(fast). When
// fast is false it additionally re-verifies every unspent output's range
// proof and every kernel's signature (the slow path used on full chain
// validation).
func (e *Extension) validate(header *consensus.BlockHeader, fast bool) error {
	var outputs []secp256k1zkp.Commitment
	var rangeProofErr error

	e.txhs.outputBackend.LeafSet().Each(func(pos uint64) {
		if rangeProofErr != nil {
			return
		}
		data, ok := e.txhs.outputBackend.GetData(pos)
		if !ok {
			rangeProofErr = newErr(ErrStorage, "missing output data for unspent leaf")
			return
		}
		// BytesWithoutProof is features(1) || commitment(33).
		if len(data) < 1+secp256k1zkp.PedersenCommitmentSize {
			rangeProofErr = newErr(ErrInvalidBody, "malformed stored output")
			return
		}
		outputs = append(outputs, secp256k1zkp.Commitment(data[1:1+secp256k1zkp.PedersenCommitmentSize]))
	})
	if rangeProofErr != nil {
		return rangeProofErr
	}

	utxoSum, err := secp256k1zkp.Sum(outputs, nil)
	if err != nil {
		return wrapErr(ErrInvalidBody, "summing unspent outputs", err)
	}

	offset := new(big.Int).SetBytes(header.TotalKernelOffset)
	offsetCommit := secp256k1zkp.Commit(offset, big.NewInt(0))

	expected, err := secp256k1zkp.Sum([]secp256k1zkp.Commitment{header.TotalKernelSum, offsetCommit}, nil)
	if err != nil {
		return wrapErr(ErrInvalidBody, "summing kernel excess and offset", err)
	}

	if !bytes.Equal(utxoSum.Bytes(), expected.Bytes()) {
		return newErr(ErrInvalidBody, "unspent output sum does not balance against kernel excess")
	}

	if fast {
		return nil
	}

	// Slow path: re-verify every stored kernel's signature and every
	// unspent output's range proof, rather than trusting the checks run at
	// admission time.
	for pos := uint64(1); pos <= e.txhs.Kernel.UnprunedSize(); pos++ {
		data, ok := e.txhs.kernelBackend.GetData(pos)
		if !ok {
			continue
		}
		kernel := new(consensus.TxKernel)
		if rerr := kernel.Read(bytes.NewReader(data)); rerr != nil {
			return wrapErr(ErrInvalidBody, "decoding stored kernel", rerr)
		}
		if rerr := kernel.Validate(); rerr != nil {
			return wrapErr(ErrInvalidBody, "re-verifying kernel signature", rerr)
		}
	}

	var proofErr error
	e.txhs.outputBackend.LeafSet().Each(func(pos uint64) {
		if proofErr != nil {
			return
		}
		commitData, ok := e.txhs.outputBackend.GetData(pos)
		if !ok || len(commitData) < 1+secp256k1zkp.PedersenCommitmentSize {
			return
		}
		proofData, ok := e.txhs.proofBackend.GetData(pos)
		if !ok {
			return
		}
		commit := secp256k1zkp.Commitment(commitData[1 : 1+secp256k1zkp.PedersenCommitmentSize])
		if verr := secp256k1zkp.VerifyRangeProof(commit, proofData); verr != nil {
			proofErr = wrapErr(ErrInvalidBody, "re-verifying range proof", verr)
		}
	})

	return proofErr
}

func mustRoot(p interface{ Root() (consensus.Hash, error) }) consensus.Hash {
	root, err := p.Root()
	if err != nil {
		return consensus.ZeroHash()
	}
	return root
}
