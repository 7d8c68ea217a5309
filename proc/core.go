package proc

import (
	"github.com/sarchlab/nmpsim/corearch"
	"github.com/sarchlab/nmpsim/memhier"
	"github.com/sarchlab/nmpsim/offload"
	"github.com/sarchlab/nmpsim/trace"
	"github.com/sarchlab/nmpsim/vault"
	"github.com/sarchlab/nmpsim/window"
)

// CoreType selects the execution model a Core runs.
type CoreType int

const (
	// OutOfOrder cores retire through a fixed-depth ReorderWindow.
	OutOfOrder CoreType = iota
	// InOrder cores have no window: every instruction blocks the next.
	InOrder
)

// CoreStats are the per-core counters the owning Processor aggregates.
type CoreStats struct {
	Retired              uint64
	IdleCycles           uint64
	CPUInstructions      uint64
	MemoryInstructions   uint64
	OverheadCycles       uint64
	RegionCount          uint64
	OffloadRegionCount   uint64
	MemoryAccessCycles   uint64
}

// Core drives one hardware thread's worth of trace-driven execution: fetch,
// issue, retire, and — once warmup is done — the offload decision that may
// route an instruction to NMP or NLP instead of executing it locally.
type Core struct {
	ID      int
	Type    CoreType
	IsNMP   bool
	NLPSide bool

	proc *Processor

	L1         *memhier.Cache
	Window     *window.Window // nil for InOrder cores
	CycleTable *corearch.CycleTable

	VaultMapper    *vault.Mapper
	OwnVaultTarget int // meaningful only for an NMP core: the vault it privately owns
	QueueCapacity  int // max pending ScheduleQueue entries; 0 means unlimited

	Mode         offload.Mode
	DecisionFunc offload.DecisionFunc
	BBInfo       *offload.BBInfoIndex
	OverheadCycles int64

	reader  *trace.Reader
	inQueue ScheduleQueue

	current  trace.Record
	hasCurrent bool

	MoreReqs      bool
	LockCore      bool
	DeployedAppID uint64
	ReachedLimit  bool

	lIndex, sIndex            int
	loadsIssued, storesIssued bool
	bubblesIssued             int
	bubbleTarget              int
	fetchIssued               bool
	instructionFetchDone      bool
	inFlightMemoryAccess      int
	decisionOverheadDebt      int64
	waitingForOverhead        bool

	insideRegion     bool
	offloadRegions   *offload.RegionSet
	waitForNMPFinish bool
	pendingBypass    *trace.Record
	nlpCoreIDGen     int

	isWarmupDone bool

	Stats CoreStats
}

// NewCore builds a Core. The window is created only for OutOfOrder cores.
func NewCore(id int, typ CoreType, l1 *memhier.Cache, cycles *corearch.CycleTable, ipc, depth int) *Core {
	c := &Core{
		ID:             id,
		Type:           typ,
		L1:             l1,
		CycleTable:     cycles,
		Mode:           offload.HostOnly,
		DecisionFunc:   offload.DefaultDecisionFunc,
		offloadRegions: offload.NewRegionSet(),
		MoreReqs:       true,
	}
	if typ == OutOfOrder {
		c.Window = window.New(ipc, depth)
	}
	return c
}

// AttachTrace gives the core its own trace reader (the "master thread" case:
// only core 0 typically reads a trace file directly; other cores receive
// records exclusively via Bypass/ScheduleQueue redirection).
func (c *Core) AttachTrace(r *trace.Reader) { c.reader = r }

// MarkWarmupDone ends the forced Host-only warmup phase for this core,
// letting its configured offload Mode take effect from here on.
func (c *Core) MarkWarmupDone() { c.isWarmupDone = true }

// GetFirstInstructionIfIdle primes this core with its first instruction if
// it has not already started (no current record, and no attempt yet to
// fetch one). Safe to call on every core at startup: cores fed exclusively
// via ScheduleQueue redirection from a peer simply have nothing to prime
// yet and are left alone.
func (c *Core) GetFirstInstructionIfIdle() {
	if c.hasCurrent {
		return
	}
	if c.reader == nil && c.inQueue.Empty() {
		return
	}
	c.getFirstInstruction()
}

// blockMask clears the intra-block offset bits for the core's L1 block size,
// used to mask addresses when resolving window ready bits.
func (c *Core) blockMask() uint64 {
	if c.L1 == nil {
		return ^uint64(0)
	}
	return ^(uint64(64) - 1)
}

// getFirstInstruction primes current with the first record this core will
// execute: from its own trace file if it has one, otherwise from records a
// peer has already redirected into its ScheduleQueue.
func (c *Core) getFirstInstruction() {
	if rec, ok := c.nextFromAnySource(); ok {
		c.current = rec
		c.hasCurrent = true
		c.DeployedAppID = rec.ProcessID
		c.MoreReqs = true
	} else {
		c.MoreReqs = false
	}
	c.LockCore = !c.MoreReqs
	if c.Mode == offload.MCPOnly {
		c.LockCore = true
	}
	c.ReachedLimit = !c.MoreReqs
	c.executionFlagsReset()
}

func (c *Core) nextFromAnySource() (trace.Record, bool) {
	if c.reader != nil {
		for {
			rec, ok, err := c.reader.Next()
			if err != nil || !ok {
				return trace.Record{}, false
			}
			if rec.ThreadID != uint64(c.ID) && c.proc != nil {
				peer := c.proc.coreForThread(int(rec.ThreadID))
				if peer != nil {
					peer.inQueue.PushBack(rec)
					if !peer.hasCurrent && !peer.MoreReqs {
						peer.getFirstInstruction()
					}
					continue
				}
			}
			return rec, true
		}
	}
	return c.inQueue.PopFront()
}

// getNextInstruction advances current to the next record for this core.
func (c *Core) getNextInstruction() bool {
	rec, ok := c.nextFromAnySource()
	if !ok {
		c.MoreReqs = false
		c.LockCore = true
		return false
	}
	c.current = rec
	c.hasCurrent = true
	c.DeployedAppID = rec.ProcessID
	c.LockCore = !c.MoreReqs
	return true
}

func (c *Core) executionFlagsReset() {
	c.lIndex = 0
	c.sIndex = 0
	c.loadsIssued = false
	c.storesIssued = false
	if !c.current.HasMemoryOperand() {
		c.loadsIssued = true
		c.storesIssued = true
	}
	c.bubblesIssued = 0
	bubbles := 0
	if c.CycleTable != nil {
		bubbles = c.CycleTable.BubbleCycles(c.current.Opcode())
	}
	c.bubbleTarget = bubbles
}

// Receive resolves a completed memory access: it marks every window entry
// whose address matches ready (a no-op for InOrder cores, which have no
// window), tracks memory-access-cycle accounting, and releases the
// instruction-fetch block if this was the fetch itself.
func (c *Core) Receive(req memhier.Request) {
	if c.Window != nil {
		c.Window.SetReady(req.Addr, c.blockMask())
	} else {
		c.Stats.Retired++
	}
	if req.Depart > 0 {
		c.Stats.MemoryAccessCycles += uint64(req.Depart - req.Arrive)
	}
	if req.IsInstructionFetch && c.inFlightMemoryAccess > 0 {
		c.inFlightMemoryAccess--
	}
}
