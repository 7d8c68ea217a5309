// Package dram ships a fixed-latency stand-in memory system. The real HMC
// timing model (vault/bank conflict, refresh, queueing delay) is out of
// scope for this simulator: every other component only ever talks to
// memhier.MemorySystem, so a detailed model can be substituted later without
// touching cache, core, or processor code.
package dram

import "github.com/sarchlab/nmpsim/memhier"

// FixedLatencyMemory is a minimal memhier.MemorySystem: every request
// completes on the first Tick at least Latency global scheduler ticks after
// it is accepted, independent of address, bank, or channel. It exists so the rest of the
// simulator is runnable and testable without a real DRAM timing model
// plugged in. Like CacheSystem, it keeps no clock of its own: every due
// timestamp is computed from (and compared against) the global tick counter
// the scheduler passes in, so a Request's Depart stamp lands on the same
// time base as its Arrive stamp.
type FixedLatencyMemory struct {
	clockPeriodPS uint64
	latency       uint64
	pending       []pendingRequest
}

type pendingRequest struct {
	due uint64
	req memhier.Request
}

// NewFixedLatencyMemory builds a FixedLatencyMemory with the given clock
// period (picoseconds) and fixed per-access latency (global scheduler ticks).
func NewFixedLatencyMemory(clockPeriodPS, latency uint64) *FixedLatencyMemory {
	return &FixedLatencyMemory{clockPeriodPS: clockPeriodPS, latency: latency}
}

// ClockPeriodPS implements MemorySystem.
func (m *FixedLatencyMemory) ClockPeriodPS() uint64 { return m.clockPeriodPS }

// SendRequest implements MemorySystem.
func (m *FixedLatencyMemory) SendRequest(now uint64, req memhier.Request) bool {
	m.pending = append(m.pending, pendingRequest{due: now + m.latency, req: req})
	return true
}

// Tick implements MemorySystem.
func (m *FixedLatencyMemory) Tick(now uint64) {
	remaining := m.pending[:0]
	for _, p := range m.pending {
		if now >= p.due {
			if p.req.Callback != nil {
				p.req.Depart = int64(now)
				p.req.Callback(p.req)
			}
			continue
		}
		remaining = append(remaining, p)
	}
	m.pending = remaining
}

// PendingRequests implements MemorySystem.
func (m *FixedLatencyMemory) PendingRequests() int { return len(m.pending) }
