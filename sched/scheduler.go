// Package sched drives the single interleaved tick loop that co-simulates
// Host, NMP, and NLP against one shared memory system: three independent
// "next tick" counters advanced at fixed, frequency-derived ratios.
package sched

import (
	"time"

	"github.com/go-logr/logr"

	"github.com/sarchlab/nmpsim/offload"
	"github.com/sarchlab/nmpsim/proc"
)

// MemoryTicker is the narrow interface the scheduler needs from the memory
// system to drive its own clock independently of Host/NMP/NLP.
type MemoryTicker interface {
	ClockPeriodPS() uint64
	Tick(now uint64)
}

// Scheduler owns the three processors plus the shared memory system and
// drives them at their configured tick ratios until the run completes.
type Scheduler struct {
	Host *proc.Processor
	NMP  *proc.Processor
	NLP  *proc.Processor // nil when the NLP facility is disabled

	Memory MemoryTicker

	Mode offload.Mode

	WarmupInsts int64

	Log logr.Logger

	stepCPU, stepNMP, stepMem uint64
	nextCPU, nextNMP, nextMem uint64
	i                         uint64
	warmupDone                bool
}

// New builds a Scheduler from already-constructed processors and memory
// system, deriving the three tick-step counts from their clock periods via
// their greatest common divisor.
func New(host, nmp, nlp *proc.Processor, memory MemoryTicker, mode offload.Mode, warmupInsts int64, log logr.Logger) *Scheduler {
	cpuPS := host.CycleTimePS
	nmpPS := nmp.CycleTimePS
	memPS := memory.ClockPeriodPS()

	g := gcd3(cpuPS, nmpPS, memPS)
	if g == 0 {
		g = 1
	}

	s := &Scheduler{
		Host: host, NMP: nmp, NLP: nlp,
		Memory:      memory,
		Mode:        mode,
		WarmupInsts: warmupInsts,
		Log:         log,
		stepCPU:     cpuPS / g,
		stepNMP:     nmpPS / g,
		stepMem:     memPS / g,
	}
	s.nextCPU, s.nextNMP, s.nextMem = s.stepCPU, s.stepNMP, s.stepMem
	return s
}

func gcd(a, b uint64) uint64 {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

func gcd3(a, b, c uint64) uint64 { return gcd(gcd(a, b), c) }

// Run drives the tick loop to completion: warmup first (Host + memory
// only), then the full three-way co-simulation until every completion
// condition converges. It returns the final global tick count.
func (s *Scheduler) Run() uint64 {
	started := time.Now()
	s.RunWarmup()
	s.runMain()
	s.Log.Info("run complete", "ticks", s.i, "elapsed", time.Since(started))
	return s.i
}

// RunWarmup advances Host and memory only, until the Host has retired at
// least WarmupInsts instructions (or immediately, if no warmup is
// configured). It is a no-op if warmup has already run.
func (s *Scheduler) RunWarmup() {
	if s.warmupDone {
		return
	}
	if s.WarmupInsts <= 0 {
		s.markWarmupDone()
		return
	}
	for s.Host.GetExecutedInsts() < uint64(s.WarmupInsts) {
		s.i++
		if s.i == s.nextCPU {
			s.Host.Tick(s.i)
			s.nextCPU += s.stepCPU
		}
		if s.i == s.nextMem {
			s.Memory.Tick(s.i)
			s.nextMem += s.stepMem
		}
		if s.Host.Finished() {
			break
		}
	}
	s.markWarmupDone()
}

func (s *Scheduler) markWarmupDone() {
	s.warmupDone = true
	markCoresWarm(s.Host)
	markCoresWarm(s.NMP)
	markCoresWarm(s.NLP)
}

func markCoresWarm(p *proc.Processor) {
	if p == nil {
		return
	}
	for _, c := range p.Cores {
		c.MarkWarmupDone()
	}
}

// runMain advances Host, NMP, and (if enabled) NLP together, each at its own
// tick ratio, until completion converges across every active domain.
func (s *Scheduler) runMain() {
	for !s.Done() {
		s.stepOnce()
	}
}

// StepMain advances the post-warmup tick loop by exactly n global ticks (or
// until convergence, whichever comes first), for the interactive debugger.
// RunWarmup must already have completed; calling it here would be a no-op
// after the first run regardless.
func (s *Scheduler) StepMain(n uint64) {
	s.RunWarmup()
	for i := uint64(0); i < n && !s.Done(); i++ {
		s.stepOnce()
	}
}

func (s *Scheduler) stepOnce() {
	hostOnly := s.Mode == offload.HostOnly
	s.i++
	if s.i == s.nextCPU {
		s.Host.Tick(s.i)
		s.nextCPU += s.stepCPU
	}
	if !hostOnly && s.i == s.nextNMP {
		s.NMP.Tick(s.i)
		if s.NLP != nil {
			s.NLP.Tick(s.i)
		}
		s.nextNMP += s.stepNMP
	}
	if s.i == s.nextMem {
		s.Memory.Tick(s.i)
		s.nextMem += s.stepMem
	}
}

// Done reports whether the main loop has converged: the instruction limit
// was reached, or every active domain (Host, and NMP/NLP unless running
// Host-only) has finished and drained.
func (s *Scheduler) Done() bool {
	if s.Host.HasReachedLimit() {
		return true
	}
	if s.Mode == offload.HostOnly {
		return s.Host.Finished() && s.Host.IsComplete()
	}
	hostDone := s.Host.Finished() && s.Host.IsComplete()
	nmpDone := s.NMP.Finished() && s.NMP.IsComplete()
	nlpDone := s.NLP == nil || (s.NLP.Finished() && s.NLP.IsComplete())
	return hostDone && nmpDone && nlpDone
}

// CurrentTick returns the global tick counter.
func (s *Scheduler) CurrentTick() uint64 { return s.i }
