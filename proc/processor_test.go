package proc_test

import (
	"testing"

	"github.com/go-logr/logr"

	"github.com/sarchlab/nmpsim/memhier"
	"github.com/sarchlab/nmpsim/proc"
)

func newHostProcessor() *proc.Processor {
	return proc.NewProcessor(proc.HostRole, 0, 0, logr.Discard())
}

func TestCanContextSwitchBlocksOnNonEmptyWindow(t *testing.T) {
	p := newHostProcessor()
	c := proc.NewCore(0, proc.OutOfOrder, nil, nil, 2, 4)
	c.DeployedAppID = 1
	p.AddCore(c)

	c.Window.Insert(false, 0x1000) // not ready: window is non-empty

	if p.CanContextSwitch(1) {
		t.Fatalf("expected CanContextSwitch to block while the window still holds an in-flight instruction")
	}

	c.Window.Retire() // not ready, so Retire drains nothing; still blocked
	if p.CanContextSwitch(1) {
		t.Fatalf("expected CanContextSwitch to still block: the entry was never marked ready")
	}

	c.Window.SetReady(0x1000, ^uint64(0))
	c.Window.Retire()
	if !p.CanContextSwitch(1) {
		t.Fatalf("expected CanContextSwitch to succeed once the window has drained")
	}
}

func TestCanContextSwitchIgnoresOtherProcesses(t *testing.T) {
	p := newHostProcessor()
	busy := proc.NewCore(0, proc.OutOfOrder, nil, nil, 2, 4)
	busy.DeployedAppID = 1
	p.AddCore(busy)
	busy.Window.Insert(false, 0x2000)

	if !p.CanContextSwitch(2) {
		t.Fatalf("a core running a different processID must not gate the switch")
	}
}

func TestCanContextSwitchFlushesCachesWhenNLPFacilityDisabled(t *testing.T) {
	p := newHostProcessor()
	p.NLPFacility = false
	c := proc.NewCore(0, proc.InOrder, nil, nil, 1, 4)
	c.DeployedAppID = 1
	p.AddCore(c)

	geom := memhier.Geometry{SizeBytes: 256, Associativity: 2, BlockSize: 64, MSHRCount: 2}
	p.LLC = memhier.New(memhier.L3, geom, 4, 0, memhier.NewCacheSystem(nil), false)
	p.LLC.Send(memhier.Request{Addr: 0x1000, Kind: memhier.Write}, 0)
	if !p.LLC.IsDirtyAt(0x1000) {
		t.Fatalf("expected the write-allocated LLC line to start dirty")
	}

	if !p.CanContextSwitch(1) {
		t.Fatalf("an InOrder core with no window never blocks the switch")
	}
	if p.LLC.IsDirtyAt(0x1000) {
		t.Fatalf("expected the switch to flush the dirty LLC line with the NLP facility disabled")
	}
}

func TestCanNMPSwitchGatesOnEveryCoreFinishedOrIdle(t *testing.T) {
	p := newHostProcessor()
	c := proc.NewCore(0, proc.OutOfOrder, nil, nil, 2, 4)
	c.MoreReqs = true
	p.AddCore(c)

	c.Window.Insert(false, 0x3000)
	if p.CanNMPSwitch() {
		t.Fatalf("expected CanNMPSwitch to block while a core with more work has a non-empty window")
	}

	c.Window.SetReady(0x3000, ^uint64(0))
	c.Window.Retire()
	if !p.CanNMPSwitch() {
		t.Fatalf("expected CanNMPSwitch to succeed once the window drains")
	}
}

func TestCanNMPSwitchTreatsNoMoreReqsAsIdleRegardlessOfWindow(t *testing.T) {
	p := newHostProcessor()
	c := proc.NewCore(0, proc.OutOfOrder, nil, nil, 2, 4)
	c.MoreReqs = false
	p.AddCore(c)

	c.Window.Insert(false, 0x4000) // would block if MoreReqs were true
	if !p.CanNMPSwitch() {
		t.Fatalf("a core with no more work is idle regardless of leftover window state")
	}
}
