package proc

import (
	"github.com/go-logr/logr"

	"github.com/sarchlab/nmpsim/memhier"
	"github.com/sarchlab/nmpsim/offload"
)

// Role names which of the three co-simulated execution domains a Processor
// represents.
type Role int

const (
	HostRole Role = iota
	NMPRole
	NLPRole
)

func (r Role) String() string {
	switch r {
	case HostRole:
		return "host"
	case NMPRole:
		return "nmp"
	case NLPRole:
		return "nlp"
	default:
		return "unknown"
	}
}

// Processor owns a set of cores that share a role (Host, NMP, or NLP) and
// routes completed memory accesses, context-switch permission, and
// aggregate statistics for them.
type Processor struct {
	Role          Role
	InitialCoreID int
	Cores         []*Core

	LLC         *memhier.Cache // shared LLC; only set on the Host processor
	CacheSystem *memhier.CacheSystem

	NoSharedCache bool
	NoCoreCaches  bool
	NLPFacility   bool
	DebugMode     bool

	NMPProc *Processor
	NLPProc *Processor

	CPUCycles         uint64
	TotalRetired      uint64
	TotalInstructions uint64
	CycleTimePS       uint64

	EarlyExit          bool
	ExpectedLimitInsts int64
	RecordCycles       uint64
	RecordInsts        uint64

	Energy EnergyModel

	Log logr.Logger

	heartbeatEvery uint64
}

// NewProcessor builds a Processor. heartbeatEvery is the host-cycle cadence
// for progress logging (0 disables it).
func NewProcessor(role Role, initialCoreID int, heartbeatEvery uint64, log logr.Logger) *Processor {
	p := &Processor{Role: role, InitialCoreID: initialCoreID, heartbeatEvery: heartbeatEvery, Log: log}
	return p
}

// AddCore attaches core to this processor, wiring its back-pointer.
func (p *Processor) AddCore(c *Core) {
	c.proc = p
	p.Cores = append(p.Cores, c)
}

func (p *Processor) coreForThread(threadID int) *Core {
	idx := threadID - p.InitialCoreID
	if idx < 0 || idx >= len(p.Cores) {
		return nil
	}
	return p.Cores[idx]
}

// Tick advances every owned core by one cycle, plus the cache hierarchy this
// processor drives (the shared LLC + CacheSystem on the Host, nothing on
// NMP/NLP, which forward straight to the Host's).
func (p *Processor) Tick(now uint64) {
	p.CPUCycles++
	if p.Role == HostRole {
		if p.CacheSystem != nil {
			p.CacheSystem.Tick(now)
		}
		if p.LLC != nil {
			p.LLC.Tick(now)
		}
		if p.heartbeatEvery > 0 && p.CPUCycles%p.heartbeatEvery == 0 {
			p.Log.Info("heartbeat", "cycle", p.CPUCycles, "executedInsts", p.GetExecutedInsts())
		}
	}
	for _, c := range p.Cores {
		c.Tick(now)
	}
}

// Receive is bound as every Request's Callback at core construction time. It
// always cascades the cache-unlock chain starting at this processor's
// terminus cache (a no-op for a pure hit completion, since hits never
// register an MSHR entry anywhere), then delivers to the owning core so it
// can resolve its reorder window.
func (p *Processor) Receive(req memhier.Request) {
	switch {
	case !p.NoSharedCache && p.LLC != nil:
		p.LLC.Callback(req)
	case p.NoCoreCaches:
		// no private caches either: nothing to unlock.
	default:
		for _, c := range p.Cores {
			if c.L1 != nil {
				c.L1.Callback(req)
			}
		}
	}
	if p.NLPProc != nil && p.Role == HostRole {
		for _, c := range p.NLPProc.Cores {
			if c.L1 != nil {
				c.L1.Callback(req)
			}
		}
	}

	core := p.coreForThread(req.CoreID)
	if core != nil {
		core.Receive(req)
	}
}

// LockAllCores sets LockCore on every core this processor owns.
func (p *Processor) LockAllCores(lock bool) {
	for _, c := range p.Cores {
		c.LockCore = lock
	}
}

// combinedExecutedInsts sums this processor's CPU instructions with its
// NMP/NLP counterparts, used for the weighted-speedup instruction limit.
func (p *Processor) combinedExecutedInsts() uint64 {
	total := p.GetExecutedInsts()
	if p.NMPProc != nil {
		total += p.NMPProc.GetExecutedInsts()
	}
	if p.NLPProc != nil {
		total += p.NLPProc.GetExecutedInsts()
	}
	return total
}

// forceLimitReached stops every core across Host, NMP, and NLP once the
// combined instruction limit has been hit.
func (p *Processor) forceLimitReached() {
	for _, proc := range []*Processor{p, p.NMPProc, p.NLPProc} {
		if proc == nil {
			continue
		}
		for _, c := range proc.Cores {
			if !c.ReachedLimit {
				c.MoreReqs = false
				c.ReachedLimit = true
			}
		}
	}
}

// GetExecutedInsts reports the total CPU instructions retired across every
// core this processor owns.
func (p *Processor) GetExecutedInsts() uint64 {
	var total uint64
	for _, c := range p.Cores {
		total += c.Stats.CPUInstructions
	}
	return total
}

// HasReachedLimit reports whether every core has hit the instruction limit.
// It is always false when no limit is configured.
func (p *Processor) HasReachedLimit() bool {
	if p.ExpectedLimitInsts <= 0 {
		return false
	}
	for _, c := range p.Cores {
		if !c.ReachedLimit {
			return false
		}
	}
	return true
}

// Finished reports whether this processor is done: under early exit, as soon
// as any core finishes; otherwise only once every core has.
func (p *Processor) Finished() bool {
	if len(p.Cores) == 0 {
		return true
	}
	if p.EarlyExit {
		for _, c := range p.Cores {
			if !c.MoreReqs {
				return true
			}
		}
		return false
	}
	for _, c := range p.Cores {
		if c.MoreReqs {
			return false
		}
	}
	return true
}

// CanContextSwitch is the quiescence gate a core consults before letting a
// Host<->NMP (or NMP<->NLP) hand-off proceed: every core running processID
// must have an empty reorder window, and — if the NLP facility is disabled —
// every cache owned by this processor is flushed of dirty lines first, since
// there will be no NLP-side coherence check to catch a stale copy.
func (p *Processor) CanContextSwitch(processID uint64) bool {
	for _, c := range p.Cores {
		if c.DeployedAppID != processID {
			continue
		}
		if c.Window != nil && !c.Window.IsEmpty() {
			return false
		}
		if p.DebugMode {
			if c.L1 != nil && (!c.L1.RetryListEmpty() || !c.L1.MSHREmpty()) {
				return false
			}
			if p.CacheSystem != nil && !p.CacheSystem.IsWaitListEmptyForCore(c.ID) {
				return false
			}
		}
	}
	if !p.NLPFacility {
		p.FlushAllCaches()
	}
	return true
}

// CanNMPSwitch is the symmetric gate between the NMP and NLP sides.
func (p *Processor) CanNMPSwitch() bool {
	for _, c := range p.Cores {
		if !c.finishedOrIdle() {
			return false
		}
	}
	return true
}

func (c *Core) finishedOrIdle() bool {
	if !c.MoreReqs {
		return true
	}
	if c.Window != nil {
		return c.Window.IsEmpty()
	}
	return true
}

// IsComplete reports whether every core owned by this processor has both
// drained its reorder window (if any) and has nothing left in flight toward
// memory.
func (p *Processor) IsComplete() bool {
	for _, c := range p.Cores {
		if c.Window != nil && !c.Window.IsEmpty() {
			return false
		}
		if c.L1 != nil && !c.L1.RetryListEmpty() {
			return false
		}
	}
	if p.CacheSystem != nil && !p.CacheSystem.IsWaitListEmpty() {
		return false
	}
	return true
}

// FlushAllCaches writes back every dirty line in every cache this processor
// owns — each core's private levels plus the shared LLC, if any. Flushing a
// core's L1 also flushes every level beneath it. This is a whole-hierarchy
// flush, never a per-core one.
func (p *Processor) FlushAllCaches() {
	for _, c := range p.Cores {
		if c.L1 != nil {
			c.L1.Flush(p.CPUCycles)
		}
	}
	if p.LLC != nil {
		p.LLC.Flush(p.CPUCycles)
	}
}

// CollectSystemInfo computes the telemetry vector a Co-Simulation decision
// function may consult: instructions per second, energy per unit time, LLC
// miss rate, and off-chip transactions per instruction.
func (p *Processor) CollectSystemInfo() offload.SystemState {
	insts := p.GetExecutedInsts()
	var state offload.SystemState
	if p.CPUCycles > 0 && p.CycleTimePS > 0 {
		seconds := float64(p.CPUCycles) * float64(p.CycleTimePS) / 1e12
		if seconds > 0 {
			state.IPS = float64(insts) / seconds
			state.EnergyPerTime = p.Energy.Estimate(p, insts) / seconds
		}
	}
	if p.LLC != nil && p.LLC.Stats.TotalAccess > 0 {
		state.LLCMissRate = float64(p.LLC.Stats.TotalMiss) / float64(p.LLC.Stats.TotalAccess)
	}
	if insts > 0 && p.LLC != nil {
		offChip := p.LLC.Stats.WriteBackMemory + p.LLC.Stats.TotalMiss
		state.OffChipTransPerInst = float64(offChip) / float64(insts)
	}
	return state
}

// CalcStats aggregates per-core counters into the processor-wide totals
// reported by the stats package.
func (p *Processor) CalcStats() {
	p.TotalRetired = 0
	p.TotalInstructions = 0
	for _, c := range p.Cores {
		p.TotalRetired += c.Stats.Retired
		p.TotalInstructions += c.Stats.CPUInstructions
	}
}

// IPC returns this processor's aggregate instructions-per-cycle, or 0 if it
// has not ticked yet.
func (p *Processor) IPC() float64 {
	if p.CPUCycles == 0 {
		return 0
	}
	return float64(p.TotalInstructions) / float64(p.CPUCycles)
}
