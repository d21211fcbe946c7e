// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

package consensus

import "time"

// MiningMode identifies the chain type a node is running, mirroring the
// recognized `mining_mode` config option of spec.md §6.
type MiningMode uint8

const (
	Mainnet MiningMode = iota
	Testnet
	AutomatedTesting
	UserTesting
)

func (m MiningMode) String() string {
	switch m {
	case Mainnet:
		return "mainnet"
	case Testnet:
		return "testnet"
	case AutomatedTesting:
		return "automated_testing"
	case UserTesting:
		return "user_testing"
	}
	return "unknown"
}

// ConsensusParams is the immutable set of consensus-relevant parameters
// threaded through every chain/pool call, replacing the teacher's
// package-level global constants (`consensus.Reward`, `consensus.CoinbaseMaturity`,
// chain_type process flags, ...) per spec.md §9 "Global mutable state".
// Constructed once at startup and never mutated afterwards.
type ConsensusParams struct {
	Mode MiningMode

	// GrinBase is the smallest indivisible currency unit multiplier.
	GrinBase uint64

	// Reward is the block subsidy paid to the coinbase output.
	Reward uint64

	// CoinbaseMaturity is the number of blocks before a coinbase output can
	// be spent.
	CoinbaseMaturity uint64

	// BlockTimeSec is the target block interval in seconds.
	BlockTimeSec int64

	// DifficultyAdjustWindow is the number of headers the damped moving
	// average retarget looks back over (spec.md §4.8: "last 60 headers").
	DifficultyAdjustWindow int

	// MedianTimeWindow is the window, in blocks, used to compute the median
	// timestamp at the edges of the difficulty adjustment window.
	MedianTimeWindow int

	// FutureTimeLimit bounds how far into the future (seconds) a header
	// timestamp may be relative to wall-clock.
	FutureTimeLimit int64

	// MaxBlockWeight is the total maximum block weight.
	MaxBlockWeight uint64

	// BlockInputWeight, BlockOutputWeight, BlockKernelWeight are the weight
	// contributions of a single input/output/kernel.
	BlockInputWeight  uint64
	BlockOutputWeight uint64
	BlockKernelWeight uint64

	// AcceptFeeBase is the minimum fee-rate (fee*1000/weight) for pool
	// admission.
	AcceptFeeBase uint64

	// NRDEnabled toggles acceptance of NoRecentDuplicate kernels, gated
	// separately from the NRD hard-fork height (HF3Height) so test chains
	// can enable NRD before mainnet's activation height.
	NRDEnabled bool

	// HF3Height is the height at which NRD kernels become valid consensus
	// rule (spec.md §8 S4 "pre-HF3 rejection").
	HF3Height uint64

	// HardForkInterval is the height interval between header-version
	// hard forks.
	HardForkInterval uint64

	// ArchiveMode disables compaction below the horizon entirely (the
	// conservative resolution of spec.md §9's archive_mode/compact() open
	// question, see DESIGN.md).
	ArchiveMode bool

	// DefaultMinEdgeBits is the minimum primary-PoW edge_bits accepted.
	DefaultMinEdgeBits uint8

	// SecondPowEdgeBits is the edge_bits value reserved for the secondary
	// (ASIC-resistant) PoW variant.
	SecondPowEdgeBits uint8
}

// MainNetParams returns the production consensus parameters.
func MainNetParams() ConsensusParams {
	return ConsensusParams{
		Mode:                   Mainnet,
		GrinBase:               1e9,
		Reward:                 60 * 1e9,
		CoinbaseMaturity:       1440,
		BlockTimeSec:           60,
		DifficultyAdjustWindow: 60,
		MedianTimeWindow:       11,
		FutureTimeLimit:        12 * 60,
		MaxBlockWeight:         80000,
		BlockInputWeight:       1,
		BlockOutputWeight:      10,
		BlockKernelWeight:      2,
		AcceptFeeBase:          500000,
		NRDEnabled:             true,
		HF3Height:              786160,
		HardForkInterval:       250000,
		DefaultMinEdgeBits:     31,
		SecondPowEdgeBits:      29,
	}
}

// TestNetParams returns the public testnet consensus parameters: same
// shape as mainnet but with a much lower coinbase maturity and HF3 height so
// integration tests don't need to mine thousands of blocks.
func TestNetParams() ConsensusParams {
	p := MainNetParams()
	p.Mode = Testnet
	p.CoinbaseMaturity = 60
	p.HF3Height = 10
	p.DefaultMinEdgeBits = 29
	return p
}

// AutomatedTestingParams returns consensus parameters tuned for the
// in-process test chain used by the block pipeline / pool test suites
// (spec.md §8 S1-S6): tiny coinbase maturity, a low HF3 height, and an
// edge_bits floor low enough for the test Cuckoo context to mine instantly.
func AutomatedTestingParams() ConsensusParams {
	p := MainNetParams()
	p.Mode = AutomatedTesting
	p.CoinbaseMaturity = 3
	p.HF3Height = 9
	p.MaxBlockWeight = 80000
	p.DefaultMinEdgeBits = 10
	p.SecondPowEdgeBits = 10
	p.DifficultyAdjustWindow = 10
	p.MedianTimeWindow = 5
	return p
}

// UserTestingParams returns consensus parameters for a single-user local
// chain (manual mining, generous future time limit).
func UserTestingParams() ConsensusParams {
	p := AutomatedTestingParams()
	p.Mode = UserTesting
	p.FutureTimeLimit = 3600
	return p
}

// ParamsForMode returns the canonical parameter set for a mining mode.
func ParamsForMode(mode MiningMode) ConsensusParams {
	switch mode {
	case Mainnet:
		return MainNetParams()
	case Testnet:
		return TestNetParams()
	case AutomatedTesting:
		return AutomatedTestingParams()
	case UserTesting:
		return UserTestingParams()
	}
	return MainNetParams()
}

// HeaderVersion returns the block header version required at height, per
// the piecewise-constant hard-fork schedule (spec.md §4.8), adapted from
// the teacher's src/consensus/block.go ValidateBlockVersion.
func (p ConsensusParams) HeaderVersion(height uint64) uint16 {
	switch {
	case height < p.HardForkInterval:
		return 1
	case height < 2*p.HardForkInterval:
		return 2
	case height < 3*p.HardForkInterval:
		return 3
	default:
		return 4
	}
}

// ValidateHeaderVersion reports whether version is the one required at height.
func (p ConsensusParams) ValidateHeaderVersion(height uint64, version uint16) bool {
	return version == p.HeaderVersion(height)
}

// BlockTimeWindow is the average span, in wall-clock time, of the
// difficulty adjustment window.
func (p ConsensusParams) BlockTimeWindow() time.Duration {
	return time.Duration(p.DifficultyAdjustWindow) * time.Duration(p.BlockTimeSec) * time.Second
}

// UpperTimeBound is the maximum size time window used for difficulty
// adjustments (damping clamp), 4/3 of the target window.
func (p ConsensusParams) UpperTimeBound() time.Duration {
	return p.BlockTimeWindow() * 4 / 3
}

// LowerTimeBound is the minimum size time window used for difficulty
// adjustments (damping clamp), 3/4 of the target window.
func (p ConsensusParams) LowerTimeBound() time.Duration {
	return p.BlockTimeWindow() * 3 / 4
}
