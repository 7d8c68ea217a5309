package proc

import (
	"github.com/sarchlab/nmpsim/memhier"
	"github.com/sarchlab/nmpsim/offload"
)

const instructionFetchBlockSize = 64

// Tick advances this core by one cycle, dispatching to the out-of-order or
// in-order execution model.
func (c *Core) Tick(now uint64) {
	switch c.Type {
	case OutOfOrder:
		c.tickOutOfOrder(now)
	default:
		c.tickInOrder(now)
	}
}

// tickOutOfOrder runs one cycle's check order: drain retirement, bail out on
// no more work or an in-flight fetch, spend any owed context-switch overhead,
// retry a pending bypass, wait out a pending NMP/NLP hand-off, then
// fetch/issue/retire for real.
func (c *Core) tickOutOfOrder(now uint64) {
	if c.L1 != nil {
		c.L1.Tick(now)
	}
	c.Stats.Retired += uint64(c.Window.Retire())

	if !c.MoreReqs {
		c.Stats.IdleCycles++
		return
	}
	if c.inFlightMemoryAccess >= 1 {
		return
	}

	if c.waitingForOverhead {
		if c.decisionOverheadDebt > 0 {
			c.decisionOverheadDebt--
			c.Stats.OverheadCycles++
			c.Stats.IdleCycles++
			return
		}
		if c.proc != nil && !c.proc.CanContextSwitch(c.DeployedAppID) {
			c.Stats.IdleCycles++
			return
		}
		c.waitingForOverhead = false
		c.primeOffloadTargets()
	}

	if c.pendingBypass != nil {
		rec := *c.pendingBypass
		if c.instructionBypass(rec) {
			c.pendingBypass = nil
		} else {
			c.Stats.IdleCycles++
			return
		}
	}

	if c.waitForNMPFinish {
		ready := c.proc == nil || c.proc.NMPProc == nil || c.proc.NMPProc.CanContextSwitch(c.DeployedAppID)
		if ready && c.proc != nil && c.proc.NLPProc != nil {
			ready = c.proc.NLPProc.CanContextSwitch(c.DeployedAppID)
		}
		if !ready {
			c.Stats.IdleCycles++
			return
		}
		c.waitForNMPFinish = false
	}

	if !c.LockCore {
		if !c.executeOutOfOrder(now) {
			return
		}
	}

	if !c.getNextInstruction() {
		c.finishOnExhaustion(now)
		return
	}

	if c.current.IsRegionBegin() || c.current.IsRegionEnd() || c.insideRegion || c.Mode == offload.MCPOnly {
		c.offloadStrategy()
	}

	c.checkLimit(now)
	if !c.ReachedLimit {
		c.executionFlagsReset()
	}
}

// executeOutOfOrder performs one instruction's fetch/issue step. It returns
// false when the core must stall (blocked instruction fetch, a full window,
// or a refused cache send) so the caller does not advance to the next
// trace record this cycle.
func (c *Core) executeOutOfOrder(now uint64) bool {
	if !c.fetchIssued {
		ok := c.sendInstructionFetch(now)
		if !ok {
			c.Stats.IdleCycles++
			return false
		}
		c.fetchIssued = true
	}

	issued := 0
	for !c.bubblesDone() && !c.Window.IsFull() && issued < c.Window.IPC {
		c.Window.Insert(true, 0)
		c.bubblesIssued++
		issued++
	}
	if !c.bubblesDone() {
		return false
	}

	if !c.loadsIssued {
		for c.lIndex < len(c.current.SourceAddr) && c.current.SourceAddr[c.lIndex] != 0 {
			if c.Window.IsFull() {
				c.Stats.IdleCycles++
				return false
			}
			addr := c.current.SourceAddr[c.lIndex]
			req := memhier.Request{Addr: addr, Kind: memhier.Read, CoreID: c.ID, IsNMP: c.IsNMP, Callback: c.proc.Receive}
			if c.L1 == nil || !c.L1.Send(req, now) {
				c.Stats.IdleCycles++
				return false
			}
			c.Window.Insert(false, addr)
			c.lIndex++
		}
		c.loadsIssued = true
	}

	if !c.storesIssued {
		for c.sIndex < len(c.current.DestAddr) && c.current.DestAddr[c.sIndex] != 0 {
			addr := c.current.DestAddr[c.sIndex]
			req := memhier.Request{Addr: addr, Kind: memhier.Write, CoreID: c.ID, IsNMP: c.IsNMP, Callback: c.proc.Receive}
			if c.L1 == nil || !c.L1.Send(req, now) {
				c.Stats.IdleCycles++
				return false
			}
			c.sIndex++
		}
		c.storesIssued = true
	}

	c.fetchIssued = false
	return true
}

func (c *Core) bubblesDone() bool { return c.bubblesIssued >= c.bubbleTarget }

func (c *Core) sendInstructionFetch(now uint64) bool {
	req := memhier.Request{
		Addr: 0, Kind: memhier.Read, CoreID: c.ID, IsNMP: c.IsNMP,
		IsInstructionFetch: true, Callback: c.proc.Receive,
	}
	if c.L1 == nil {
		c.Stats.CPUInstructions++
		if c.current.HasMemoryOperand() {
			c.Stats.MemoryInstructions++
		}
		return true
	}
	if !c.L1.Send(req, now) {
		return false
	}
	c.inFlightMemoryAccess++
	c.Stats.CPUInstructions++
	if c.current.HasMemoryOperand() {
		c.Stats.MemoryInstructions++
	}
	return true
}

// tickInOrder mirrors the out-of-order model without a reorder window: every
// instruction waits for its instruction fetch to complete and for each of
// its loads and stores to be accepted by the cache before the next one
// starts. It does not wait for the loads' data to return.
func (c *Core) tickInOrder(now uint64) {
	if !c.MoreReqs {
		c.Stats.IdleCycles++
		return
	}
	if c.inFlightMemoryAccess >= 1 {
		return
	}

	if c.NLPSide {
		if c.proc != nil && c.proc.NMPProc != nil && !c.proc.NMPProc.CanNMPSwitch() {
			c.Stats.IdleCycles++
			return
		}
	} else if c.IsNMP {
		if c.proc != nil && c.proc.NLPProc != nil && !c.proc.NLPProc.CanNMPSwitch() {
			c.Stats.IdleCycles++
			return
		}
		c.LockCore = false
	}
	if c.LockCore {
		c.Stats.IdleCycles++
		return
	}

	if !c.instructionFetchDone {
		if !c.sendInstructionFetch(now) {
			c.Stats.IdleCycles++
			return
		}
		c.instructionFetchDone = true
		return
	}

	c.Stats.Retired++

	for c.lIndex < len(c.current.SourceAddr) && c.current.SourceAddr[c.lIndex] != 0 {
		addr := c.current.SourceAddr[c.lIndex]
		req := c.ownOrBypassRequest(addr, memhier.Read, now)
		if !req.sent {
			c.Stats.IdleCycles++
			return
		}
		c.lIndex++
	}
	for c.sIndex < len(c.current.DestAddr) && c.current.DestAddr[c.sIndex] != 0 {
		addr := c.current.DestAddr[c.sIndex]
		req := c.ownOrBypassRequest(addr, memhier.Write, now)
		if !req.sent {
			c.Stats.IdleCycles++
			return
		}
		c.sIndex++
	}

	c.instructionFetchDone = false
	if c.getNextInstruction() {
		c.executionFlagsReset()
	}
}

type sentResult struct{ sent bool }

// ownOrBypassRequest sends a load/store to this core's L1, marked IsNMP when
// it targets the vault this NMP core privately owns and not otherwise. A core
// with no L1 sends nothing and reports the access as sent.
func (c *Core) ownOrBypassRequest(addr uint64, kind memhier.Kind, now uint64) sentResult {
	isOwn := c.VaultMapper == nil || c.VaultMapper.VaultIndex(addr) == c.OwnVaultTarget
	req := memhier.Request{Addr: addr, Kind: kind, CoreID: c.ID, IsNMP: isOwn, Callback: c.proc.Receive}
	if c.L1 == nil {
		return sentResult{sent: true}
	}
	return sentResult{sent: c.L1.Send(req, now)}
}

func (c *Core) finishOnExhaustion(now uint64) {
	if !c.ReachedLimit {
		c.ReachedLimit = true
		if c.proc != nil {
			c.proc.RecordCycles = c.proc.CPUCycles
			c.proc.RecordInsts = c.proc.TotalInstructions
		}
	}
}

func (c *Core) checkLimit(now uint64) {
	if c.proc == nil || c.proc.ExpectedLimitInsts <= 0 || c.ReachedLimit {
		return
	}
	total := c.proc.combinedExecutedInsts()
	if total >= uint64(c.proc.ExpectedLimitInsts) {
		c.proc.RecordCycles = c.proc.CPUCycles
		c.proc.RecordInsts = total
		c.proc.forceLimitReached()
	}
}
