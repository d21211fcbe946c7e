// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

package consensus

import (
	"encoding/binary"
	"sort"
	"time"
)

const (
	// ZeroDifficulty is the difficulty value of an empty chain.
	ZeroDifficulty Difficulty = 0

	// MinimumDifficulty is the minimum mining difficulty the network allows.
	MinimumDifficulty Difficulty = 1
)

// Difficulty is the maximum target divided by a block hash, read as a
// big-endian integer.
type Difficulty uint64

// FromNum wraps num as a Difficulty.
func FromNum(num uint64) Difficulty {
	return Difficulty(num)
}

// FromHash computes the difficulty implied by hash: the maximum target
// divided by the hash's leading 64 bits.
func FromHash(hash Hash) Difficulty {
	maxTarget := binary.BigEndian.Uint64(MAXTarget)
	num := binary.BigEndian.Uint64(hash[:8])
	if num == 0 {
		return Difficulty(maxTarget)
	}
	return Difficulty(maxTarget / num)
}

// IntoNum returns the raw numeric value of d.
func (d Difficulty) IntoNum() uint64 {
	return uint64(d)
}

// HeaderInfo is the minimal per-header data the difficulty retarget needs:
// a timestamp and the difficulty (and secondary-scaling factor) used to
// mine that header. Callers supply these newest-first, mirroring the
// height-descending iterator spec.md §4.8 describes.
type HeaderInfo struct {
	Timestamp         time.Time
	Difficulty        Difficulty
	SecondaryScaling  uint32
	IsSecondary       bool
}

// NextDifficulty computes the proof-of-work difficulty the next block must
// comply with, given headers ordered from latest (index 0) to oldest.
//
// The calculation follows the Digishield/GravityWave family: the reference
// difficulty is the average difficulty over a window of
// params.DifficultyAdjustWindow headers, and the corresponding timespan is
// the difference between the median timestamps at the beginning and end of
// that window, damped and clamped to [3/4, 4/3] of the target window.
func NextDifficulty(params ConsensusParams, headers []HeaderInfo) Difficulty {
	window := params.DifficultyAdjustWindow
	medianWindow := params.MedianTimeWindow

	if len(headers) == 0 {
		return ZeroDifficulty
	}

	var sumDiff Difficulty
	windowBegin := make([]time.Time, 0, medianWindow)
	windowEnd := make([]time.Time, 0, medianWindow)

	for i, h := range headers {
		switch {
		case i < window:
			sumDiff += h.Difficulty
			if i < medianWindow {
				windowBegin = append(windowBegin, h.Timestamp)
			}
		case i < window+medianWindow:
			windowEnd = append(windowEnd, h.Timestamp)
		default:
			goto windowed
		}
	}
windowed:

	if len(windowEnd) < medianWindow || len(windowBegin) < medianWindow {
		return MinimumDifficulty
	}

	sort.SliceStable(windowBegin, func(i, j int) bool { return windowBegin[i].Before(windowBegin[j]) })
	sort.SliceStable(windowEnd, func(i, j int) bool { return windowEnd[i].Before(windowEnd[j]) })

	beginTime := windowBegin[len(windowBegin)/2]
	endTime := windowEnd[len(windowEnd)/2]

	diffAvg := sumDiff / FromNum(uint64(window))
	ts := (3*params.BlockTimeWindow() + beginTime.Sub(endTime)) / 4

	if ts < params.LowerTimeBound() {
		ts = params.LowerTimeBound()
	}
	if ts > params.UpperTimeBound() {
		ts = params.UpperTimeBound()
	}

	diff := diffAvg * FromNum(uint64(params.BlockTimeWindow().Seconds())) / FromNum(uint64(ts.Seconds()))
	if diff > MinimumDifficulty {
		return diff
	}
	return MinimumDifficulty
}
