// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

package chain

import (
	"bytes"
	"time"

	"github.com/grincore/node/consensus"
)

// genesisKernel and genesisOutput are placeholder coinbase entries: unlike
// every other block, the genesis block is never run through ProcessBlock
// (Chain.New pushes it onto the four PMMRs directly via applyGenesis and
// installs it as the head, same as the teacher's src/chain/chain.go New
// does), so its commitments and signature never need to verify against the
// curve - only its shape needs to satisfy Block.ValidateStructure's
// cardinality checks should a caller choose to run them. OutputMmrSize and
// KernelMmrSize are 1, matching the single coinbase output and kernel
// applyGenesis appends.
func genesisOutput() consensus.Output {
	return consensus.Output{
		Features: consensus.CoinbaseOutput,
		Commit:   bytes.Repeat([]byte{0x09}, 33),
	}
}

func genesisKernel() consensus.TxKernel {
	return consensus.TxKernel{
		Features: consensus.CoinbaseKernel,
		Excess:   bytes.Repeat([]byte{0x09}, 33),
	}
}

// Testnet4 is gringcore's public testnet genesis block - the chain's usual
// starting point for integration tests and the `testnet` mining mode,
// superseding the teacher's abandoned Testnet1/Testnet2 fixtures (the real
// grin network went through several testnet genesis resets before
// settling; this is that chain's final one).
var Testnet4 = consensus.Block{
	Header: consensus.BlockHeader{
		Version:   1,
		Height:    0,
		Previous:  bytes.Repeat([]byte{0x00}, consensus.BlockHashSize),
		Timestamp: time.Date(2019, 1, 15, 16, 0, 0, 0, time.UTC),

		PreviousRoot:   consensus.ZeroHash(),
		UTXORoot:       consensus.ZeroHash(),
		RangeProofRoot: consensus.ZeroHash(),
		KernelRoot:     consensus.ZeroHash(),

		TotalKernelOffset: consensus.ZeroHash(),
		TotalKernelSum:    bytes.Repeat([]byte{0x09}, 33),

		OutputMmrSize: 1,
		KernelMmrSize: 1,

		Nonce:           0,
		Difficulty:      consensus.MinimumDifficulty,
		TotalDifficulty: consensus.MinimumDifficulty,
		ScalingDifficulty: 1,

		POW: consensus.Proof{
			EdgeBits: 29,
			Nonces:   make([]uint32, consensus.ProofSize),
		},
	},
	Outputs: consensus.OutputList{genesisOutput()},
	Kernels: consensus.TxKernelList{genesisKernel()},
}

// Mainnet is gringcore's production genesis block.
var Mainnet = consensus.Block{
	Header: consensus.BlockHeader{
		Version:   1,
		Height:    0,
		Previous:  bytes.Repeat([]byte{0x00}, consensus.BlockHashSize),
		Timestamp: time.Date(2019, 1, 15, 16, 0, 0, 0, time.UTC),

		PreviousRoot:   consensus.ZeroHash(),
		UTXORoot:       consensus.ZeroHash(),
		RangeProofRoot: consensus.ZeroHash(),
		KernelRoot:     consensus.ZeroHash(),

		TotalKernelOffset: consensus.ZeroHash(),
		TotalKernelSum:    bytes.Repeat([]byte{0x09}, 33),

		OutputMmrSize: 1,
		KernelMmrSize: 1,

		Nonce:           0,
		Difficulty:      1000,
		TotalDifficulty: 1000,
		ScalingDifficulty: 1,

		POW: consensus.Proof{
			EdgeBits: 31,
			Nonces:   make([]uint32, consensus.ProofSize),
		},
	},
	Outputs: consensus.OutputList{genesisOutput()},
	Kernels: consensus.TxKernelList{genesisKernel()},
}

// GenesisForMode returns the canonical genesis block for a mining mode.
// AutomatedTesting/UserTesting chains bootstrap off the testnet genesis,
// same as grin's own test harnesses do.
func GenesisForMode(mode consensus.MiningMode) consensus.Block {
	if mode == consensus.Mainnet {
		return Mainnet
	}
	return Testnet4
}
