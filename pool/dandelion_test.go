package pool

import (
	"testing"
	"time"

	"github.com/grincore/node/consensus"
)

func TestDandelionMonitorFluffesOnExpiredEpoch(t *testing.T) {
	params := consensus.AutomatedTestingParams()
	chain := newFakeChain()
	p := New(params, chain)

	base := time.Unix(10000, 0)
	p.clock = func() time.Time { return base }

	tx := fundedTx(params, 100, 1000000)
	if err := p.AddToPool(Stem, tx, true); err != nil {
		t.Fatalf("stem admission: %v", err)
	}

	stop := NewStopState()
	m := NewDandelionMonitor(p, nil, stop)
	m.aggregationSecs = 0
	m.clock = func() time.Time { return base.Add(time.Hour) }

	m.tick()

	txpool, stempool := p.Len()
	if stempool != 0 {
		t.Fatalf("stempool size after tick = %d, want 0", stempool)
	}
	if txpool != 1 {
		t.Fatalf("txpool size after tick = %d, want 1", txpool)
	}
}

func TestStopStateIsIdempotent(t *testing.T) {
	stop := NewStopState()

	done := make(chan struct{})
	go func() {
		<-stop.Done()
		close(done)
	}()

	stop.Stop()
	stop.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("StopState.Done() did not fire after Stop()")
	}
}

func TestDandelionMonitorRunExitsOnStop(t *testing.T) {
	params := consensus.AutomatedTestingParams()
	chain := newFakeChain()
	p := New(params, chain)

	stop := NewStopState()
	m := NewDandelionMonitor(p, nil, stop)
	m.tickInterval = time.Millisecond

	done := make(chan struct{})
	go func() {
		m.Run()
		close(done)
	}()

	stop.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after Stop")
	}
}
