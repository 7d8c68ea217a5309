package memhier

type timedRequest struct {
	due uint64
	req Request
}

// MemorySystem is the contract CacheSystem uses to reach backing storage.
// It is declared here (rather than in package dram) so that memhier, the
// lower-level package, has no dependency on dram's concrete implementation —
// dram.FixedLatencyMemory and any other MemorySystem satisfy it structurally.
type MemorySystem interface {
	ClockPeriodPS() uint64
	SendRequest(now uint64, req Request) bool
	Tick(now uint64)
	PendingRequests() int
}

// CacheSystem owns the two time-ordered lists every cache level's misses and
// hits pass through: wait_list holds requests dispatched toward memory,
// hit_list delays a hit's callback by that level's own latency so a hit is
// never observed "instantly" by the issuing core. It has no clock of its
// own: every due timestamp and every Tick call is expressed in the same
// global tick counter the scheduler hands to every Processor and Cache, so
// a request enqueued from the Host side and one enqueued from the NMP side
// are compared on the same time base.
type CacheSystem struct {
	waitList []timedRequest
	hitList  []timedRequest
	memory   MemorySystem
}

// NewCacheSystem builds a CacheSystem dispatching misses to memory.
func NewCacheSystem(memory MemorySystem) *CacheSystem {
	return &CacheSystem{memory: memory}
}

func (s *CacheSystem) enqueueWait(due uint64, req Request) {
	s.waitList = append(s.waitList, timedRequest{due: due, req: req})
}

func (s *CacheSystem) enqueueHit(due uint64, req Request) {
	s.hitList = append(s.hitList, timedRequest{due: due, req: req})
}

// Tick dispatches every wait-list entry matured as of now to memory, and
// fires every matured hit-list entry's callback directly.
func (s *CacheSystem) Tick(now uint64) {
	remainingWait := s.waitList[:0]
	for _, e := range s.waitList {
		if now >= e.due && s.memory.SendRequest(now, e.req) {
			continue
		}
		remainingWait = append(remainingWait, e)
	}
	s.waitList = remainingWait

	remainingHit := s.hitList[:0]
	for _, e := range s.hitList {
		if now < e.due {
			remainingHit = append(remainingHit, e)
			continue
		}
		if e.req.Callback != nil {
			e.req.Depart = int64(now)
			e.req.Callback(e.req)
		}
	}
	s.hitList = remainingHit
}

// IsWaitListEmpty reports whether no request is still queued toward memory.
func (s *CacheSystem) IsWaitListEmpty() bool { return len(s.waitList) == 0 }

// IsWaitListEmptyForCore reports whether coreID has no request still queued
// toward memory — used by the quiescence gate to check a single core rather
// than the whole system.
func (s *CacheSystem) IsWaitListEmptyForCore(coreID int) bool {
	for _, e := range s.waitList {
		if e.req.CoreID == coreID {
			return false
		}
	}
	return true
}
