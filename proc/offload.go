package proc

import (
	"fmt"

	"github.com/sarchlab/nmpsim/offload"
	"github.com/sarchlab/nmpsim/trace"
)

// primeOffloadTargets gives every NMP core (and every NLP core, if the NLP
// facility is enabled) its first instruction once a context switch has been
// cleared to proceed, right after the overhead debt is paid off.
func (c *Core) primeOffloadTargets() {
	if c.proc == nil {
		return
	}
	if c.proc.NMPProc != nil {
		for _, nc := range c.proc.NMPProc.Cores {
			if !nc.hasCurrent && !nc.MoreReqs {
				nc.getFirstInstruction()
			}
		}
	}
	if c.proc.NLPProc != nil && c.proc.NLPFacility {
		for _, nc := range c.proc.NLPProc.Cores {
			if !nc.hasCurrent && !nc.MoreReqs {
				nc.getFirstInstruction()
			}
		}
	}
}

// offloadStrategy dispatches to the configured offload policy once warmup
// has completed; during warmup every core runs Host-only regardless of its
// configured mode.
func (c *Core) offloadStrategy() {
	if !c.isWarmupDone {
		c.hostOnly()
		return
	}
	switch c.Mode {
	case offload.AllOffload:
		c.allOffload()
	case offload.CoSimulation:
		c.coSimulationOffload()
	case offload.MCPOnly:
		c.mcpOnly()
	default:
		c.hostOnly()
	}
}

// hostOnly skips past region markers without ever offloading.
func (c *Core) hostOnly() {
	for c.current.IsRegionBegin() || c.current.IsRegionEnd() {
		if !c.getNextInstruction() {
			return
		}
	}
}

// mcpOnly forces every instruction onto the bypass path, continuously.
func (c *Core) mcpOnly() {
	for c.current.IsRegionBegin() || c.current.IsRegionEnd() {
		if !c.getNextInstruction() {
			return
		}
	}
	c.chargeOverhead()
	c.LockCore = true
	c.instructionBypass(c.current)
}

// chargeOverhead adds the configured per-decision overhead to this core's
// debt and arms the overhead-wait gate the next tick checks before
// continuing.
func (c *Core) chargeOverhead() {
	c.decisionOverheadDebt += c.OverheadCycles
	c.waitingForOverhead = true
}

// allOffload bypasses every instruction whose region is marked for offload,
// and blocks the core (waiting on the NMP/NLP side to drain) when an
// offloaded region is open but the current instruction is outside it.
func (c *Core) allOffload() {
	for {
		switch {
		case c.current.IsRegionEnd():
			if c.offloadRegions.Contains(c.current.RegionID) {
				c.offloadRegions.Leave(c.current.RegionID)
				if c.offloadRegions.Empty() {
					c.insideRegion = false
				}
			}
		case c.current.IsRegionBegin():
			c.chargeOverhead()
			c.Stats.RegionCount++
			c.Stats.OffloadRegionCount++
			c.offloadRegions.Enter(c.current.RegionID)
			c.insideRegion = true
			c.nlpCoreIDGen = 0
			c.lockOwnCores(c.DeployedAppID, true)
		case c.offloadRegions.Contains(c.current.RegionID):
			c.instructionBypass(c.current)
			return
		default:
			if c.offloadRegions.Empty() {
				// Not inside any offloaded region: a plain Host-only
				// instruction, not a hand-off stall.
				return
			}
			c.waitForNMPFinish = true
			c.lockOwnCores(c.DeployedAppID, false)
			return
		}
		if !c.getNextInstruction() {
			return
		}
	}
}

// coSimulationOffload is allOffload's sibling, but ROI_BEGIN only enters the
// offloading branch when the compiler's basic-block instruction mix (plus
// the current system telemetry) says the region is worth it.
func (c *Core) coSimulationOffload() {
	for {
		switch {
		case c.current.IsRegionEnd():
			if c.offloadRegions.Contains(c.current.RegionID) {
				c.offloadRegions.Leave(c.current.RegionID)
				if c.offloadRegions.Empty() {
					c.insideRegion = false
				}
			}
		case c.current.IsRegionBegin():
			worth := c.decideRegion(c.current.RegionID)
			if worth {
				c.chargeOverhead()
				c.Stats.RegionCount++
				c.Stats.OffloadRegionCount++
				c.offloadRegions.Enter(c.current.RegionID)
				c.insideRegion = true
				c.nlpCoreIDGen = 0
				c.lockOwnCores(c.DeployedAppID, true)
			}
		case c.offloadRegions.Contains(c.current.RegionID):
			c.instructionBypass(c.current)
			return
		default:
			if c.offloadRegions.Empty() {
				// Rejected (or never-marked) region: treat as Host-Only —
				// skip the marker and let normal execution continue,
				// rather than stalling for a hand-off that never happens.
				return
			}
			c.waitForNMPFinish = true
			c.lockOwnCores(c.DeployedAppID, false)
			return
		}
		if !c.getNextInstruction() {
			return
		}
	}
}

// decideRegion consults the compiler's basic-block instruction mix for
// regionID. Co-Simulation mode requires that index to exist and to cover
// every region the trace visits; either one missing is a simulator bug, not
// a condition to silently route around, so both panic rather than falling
// back to some other policy.
func (c *Core) decideRegion(regionID uint64) bool {
	if c.BBInfo == nil {
		panic(fmt.Sprintf("proc: core %d is running Co-Simulation mode with no BB-info index loaded", c.ID))
	}
	bb, ok := c.BBInfo.Lookup(regionID)
	if !ok {
		panic(fmt.Sprintf("proc: BB-info lookup miss for region %d on core %d", regionID, c.ID))
	}
	sys := offload.SystemState{}
	if c.proc != nil {
		sys = c.proc.CollectSystemInfo()
	}
	fn := c.DecisionFunc
	if fn == nil {
		fn = offload.DefaultDecisionFunc
	}
	return fn(bb, sys)
}

// lockOwnCores sets LockCore on every core in the same processor that is
// currently running processID's thread.
func (c *Core) lockOwnCores(processID uint64, lock bool) {
	if c.proc == nil {
		return
	}
	for _, oc := range c.proc.Cores {
		if oc.DeployedAppID == processID {
			oc.LockCore = lock
		}
	}
}

// instructionBypass routes rec to an NLP core (if the NLP facility is on and
// any touched address is dirty in the LLC — preserving coherence without a
// full protocol) or to the NMP core owning the vault the instruction's
// address maps to. It returns false if the target queue is at capacity, in
// which case the caller must retry the same record next tick.
func (c *Core) instructionBypass(rec trace.Record) bool {
	c.lockOwnCores(rec.ProcessID, true)

	if c.proc != nil && c.proc.NLPFacility && c.anyTouchedAddrDirty(rec) {
		return c.dispatchToNLP(rec)
	}
	return c.dispatchToNMP(rec)
}

func (c *Core) anyTouchedAddrDirty(rec trace.Record) bool {
	if c.proc == nil || c.proc.LLC == nil {
		return false
	}
	for _, a := range rec.SourceAddr {
		if a != 0 && c.proc.LLC.IsDirtyAt(a) {
			return true
		}
	}
	for _, a := range rec.DestAddr {
		if a != 0 && c.proc.LLC.IsDirtyAt(a) {
			return true
		}
	}
	return false
}

func (c *Core) dispatchToNLP(rec trace.Record) bool {
	if c.proc == nil || c.proc.NLPProc == nil || len(c.proc.NLPProc.Cores) == 0 {
		return false
	}
	target := c.proc.NLPProc.Cores[c.nlpCoreIDGen%len(c.proc.NLPProc.Cores)]
	if !c.enqueueBounded(target, rec) {
		c.pendingBypass = &rec
		return false
	}
	c.nlpCoreIDGen++
	if c.proc.NMPProc != nil {
		c.proc.NMPProc.LockAllCores(true)
	}
	return true
}

func (c *Core) dispatchToNMP(rec trace.Record) bool {
	if c.VaultMapper == nil || c.proc == nil || c.proc.NMPProc == nil || len(c.proc.NMPProc.Cores) == 0 {
		return false
	}
	idx := c.VaultMapper.VaultIndex(rec.InstPointer) % len(c.proc.NMPProc.Cores)
	target := c.proc.NMPProc.Cores[idx]
	if !c.enqueueBounded(target, rec) {
		c.pendingBypass = &rec
		return false
	}
	return true
}

// enqueueBounded pushes rec onto target's ScheduleQueue unless it is at its
// configured capacity (0 meaning unlimited).
func (c *Core) enqueueBounded(target *Core, rec trace.Record) bool {
	if target.QueueCapacity > 0 && target.inQueue.Len() >= target.QueueCapacity {
		return false
	}
	target.inQueue.PushBack(rec)
	if !target.hasCurrent && !target.MoreReqs {
		target.getFirstInstruction()
	}
	return true
}
