// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

// Package consensus holds the protocol-fixed constants and wire types that
// every node on the network must agree on byte-for-byte: block and
// transaction structures, their canonical encoding, difficulty retargeting
// and the Cuckoo proof-of-work envelope. Anything that varies by chain
// (mainnet/testnet/automated-testing) lives in ConsensusParams instead of a
// package-level constant (see params.go).
package consensus

// Consensus rule that everything is sorted in lexicographical order on the wire.

// MAXTarget is the 8-byte value block hashes must be lower than once
// treated as a big-endian integer.
var MAXTarget = []byte{0xf, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}

const (
	// GrinBase is the smallest indivisible currency unit multiplier; a coin
	// is divisible to 10^9, following the SI prefixes.
	GrinBase uint64 = 1e9

	// MilliGrin is a thousandth of a GrinBase.
	MilliGrin uint64 = GrinBase / 1000

	// MicroGrin is a thousandth of a MilliGrin.
	MicroGrin uint64 = MilliGrin / 1000

	// NanoGrin is the smallest unit, a billion to the GrinBase.
	NanoGrin uint64 = 1

	// MaxBlockCoinbaseOutputs bounds the number of coinbase outputs in a
	// valid block, to prevent a miner generating an excessively large
	// compact block.
	MaxBlockCoinbaseOutputs = 1

	// MaxBlockCoinbaseKernels bounds the number of coinbase kernels in a
	// valid block, for the same reason as MaxBlockCoinbaseOutputs.
	MaxBlockCoinbaseKernels = 1

	// SwitchCommitHashSize is the size used for the stored Blake2b hash of
	// a switch commitment.
	SwitchCommitHashSize = 20

	// CutThroughHorizon is the default number of blocks in the past beyond
	// which cross-block cut-through (pruning of spent outputs) is allowed
	// to happen. Needs to be long enough not to overlap with a plausible
	// reorg: the longest historical bitcoin fork was about 30 blocks (5h);
	// an order of magnitude margin rounds to 48h of one-minute blocks.
	CutThroughHorizon uint64 = 48 * 3600 / 60

	// ProofSize is the fixed Cuckoo-cycle length required by the protocol.
	// Unlike edge_bits, this never varies between chains or hard forks.
	ProofSize = 42

	// MaxKernelExcessSigSize bounds a kernel's Schnorr signature wire length.
	MaxKernelExcessSigSize = 64
)
