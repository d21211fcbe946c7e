// Copyright 2018 The Gringo Developers. All rights reserved.
// Use of this source code is governed by a GNU GENERAL PUBLIC LICENSE v3
// license that can be found in the LICENSE file.

package pool

import (
	"math/rand"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Defaults for the Dandelion epoch/embargo timers (spec.md §4.6). Grin's own
// deployment uses these same values; they are exposed as vars rather than
// consts so a node under test can shrink them.
var (
	DefaultTickInterval    = 10 * time.Second
	DefaultAggregationSecs = 30 * time.Second
	DefaultEmbargoSecs     = 180 * time.Second
	DefaultEpochSecs       = 600 * time.Second
	DefaultStemProbability = 0.9
)

// StopState is a shared, idempotent cancellation signal: the Dandelion
// monitor observes it and exits within one tick of it closing, the same
// quit-channel shape the teacher's p2p.peersPool.Run/Stop uses.
type StopState struct {
	once sync.Once
	stop chan struct{}
}

// NewStopState returns a StopState in the running state.
func NewStopState() *StopState {
	return &StopState{stop: make(chan struct{})}
}

// Stop signals the stop state. Safe to call more than once.
func (s *StopState) Stop() {
	s.once.Do(func() { close(s.stop) })
}

// Done returns the channel that closes when Stop is called.
func (s *StopState) Done() <-chan struct{} {
	return s.stop
}

// PeerPicker selects a single outbound peer to relay a stem transaction to.
// The P2P layer this node doesn't implement (spec.md §1 Non-goals) would
// back this with its connected-peers table, the same role the teacher's
// peersPool.Peers plays for block propagation.
type PeerPicker interface {
	PickStemRelay() (peerID string, ok bool)
}

// epoch is the monitor's own stem/fluff state, held under its own mutex
// rather than the Pool's - the Pool lock is only ever taken for the
// duration of a single pool mutation (spec.md §4.6 concurrency note).
type epoch struct {
	mu       sync.Mutex
	isStem   bool
	deadline time.Time
	relay    string
}

// DandelionMonitor is the periodic task of spec.md §4.6: it fluffs stale
// stempool entries, force-expires embargoed ones, and rolls the stem/fluff
// epoch, all against a bound Pool.
type DandelionMonitor struct {
	pool   *Pool
	picker PeerPicker
	stop   *StopState

	tickInterval    time.Duration
	aggregationSecs time.Duration
	embargoSecs     time.Duration
	epochSecs       time.Duration
	stemProbability float64

	clock func() time.Time
	rng   *rand.Rand

	ep epoch
}

// NewDandelionMonitor returns a monitor over pool using the package
// defaults; picker may be nil, in which case the epoch always resolves to
// fluff (there being no peer to stem through).
func NewDandelionMonitor(pool *Pool, picker PeerPicker, stop *StopState) *DandelionMonitor {
	return &DandelionMonitor{
		pool:            pool,
		picker:          picker,
		stop:            stop,
		tickInterval:    DefaultTickInterval,
		aggregationSecs: DefaultAggregationSecs,
		embargoSecs:     DefaultEmbargoSecs,
		epochSecs:       DefaultEpochSecs,
		stemProbability: DefaultStemProbability,
		clock:           time.Now,
		rng:             rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Run executes the monitor's ticker loop until StopState fires. Intended to
// be started with `go monitor.Run()`.
func (m *DandelionMonitor) Run() {
	ticker := time.NewTicker(m.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop.Done():
			return
		case <-ticker.C:
			m.tick()
		}
	}
}

// IsStemEpoch reports whether the monitor is currently in the stem phase.
func (m *DandelionMonitor) IsStemEpoch() bool {
	m.ep.mu.Lock()
	defer m.ep.mu.Unlock()
	return m.ep.isStem
}

func (m *DandelionMonitor) tick() {
	now := m.clock()

	m.ep.mu.Lock()
	expired := now.After(m.ep.deadline)
	fluffEpoch := !m.ep.isStem || expired
	m.ep.mu.Unlock()

	if fluffEpoch {
		if agg := m.pool.FluffStale(now.Add(-m.aggregationSecs)); agg != nil {
			logrus.WithField("kernels", len(agg.Kernels)).Debug("dandelion: fluffed stempool aggregate")
		}
	}

	jitter := time.Duration(m.rng.Int63n(int64(30 * time.Second)))
	if expiredTxs := m.pool.ExpireEmbargoed(now.Add(-(m.embargoSecs + jitter))); len(expiredTxs) > 0 {
		logrus.WithField("count", len(expiredTxs)).Debug("dandelion: embargo expired, fluffing")
	}

	if expired {
		m.rollEpoch(now)
	}
}

// rollEpoch decides, with probability stemProbability, whether the next
// epoch is stem or fluff, and - if stem - picks a single relay peer,
// per spec.md §4.6's epoch-boundary rule.
func (m *DandelionMonitor) rollEpoch(now time.Time) {
	isStem := m.rng.Float64() < m.stemProbability

	relay := ""
	if isStem && m.picker != nil {
		if peerID, ok := m.picker.PickStemRelay(); ok {
			relay = peerID
		} else {
			isStem = false
		}
	} else if m.picker == nil {
		isStem = false
	}

	m.ep.mu.Lock()
	m.ep.isStem = isStem
	m.ep.deadline = now.Add(m.epochSecs)
	m.ep.relay = relay
	m.ep.mu.Unlock()
}
