package memhier

import (
	"fmt"

	akitacache "github.com/sarchlab/akita/v4/mem/cache"
)

// lineMeta carries the bookkeeping akita's Block does not: the lock bit held
// while a line's fill is outstanding, and the core that last installed it.
type lineMeta struct {
	lock   bool
	coreID int
}

type mshrEntry struct {
	addr  uint64
	block *akitacache.Block
}

// Cache is one level of the hierarchy: inclusive, write-back,
// write-allocate, with a bounded number of outstanding misses (MSHR) and a
// forwarding retry queue for downward requests the next level refused.
type Cache struct {
	Level           Level
	IsNMP           bool
	geometry        Geometry
	latencyEach     uint64
	energyPerAccess float64

	directory *akitacache.DirectoryImpl
	meta      map[*akitacache.Block]*lineMeta

	higher []*Cache
	lower  *Cache
	system *CacheSystem

	mshr      []mshrEntry
	retryList []Request

	Stats Stats
}

// New builds a Cache at the given level. system is the owning CacheSystem
// used to schedule hit and memory-dispatch latency; every level schedules
// its hits through it, so it must not be nil.
func New(level Level, geom Geometry, latencyEach uint64, energyPerAccess float64, system *CacheSystem, isNMP bool) *Cache {
	return &Cache{
		Level:           level,
		IsNMP:           isNMP,
		geometry:        geom,
		latencyEach:     latencyEach,
		energyPerAccess: energyPerAccess,
		directory:       akitacache.NewDirectory(geom.numSets(), geom.Associativity, geom.BlockSize, akitacache.NewLRUVictimFinder()),
		meta:            make(map[*akitacache.Block]*lineMeta),
		system:          system,
	}
}

// ConcatLower places lower directly beneath c in the hierarchy, building an
// L1->L2->LLC chain per core.
func (c *Cache) ConcatLower(lower *Cache) {
	c.lower = lower
	lower.higher = append(lower.higher, c)
}

func (c *Cache) align(addr uint64) uint64 {
	bs := uint64(c.geometry.BlockSize)
	return addr &^ (bs - 1)
}

func (c *Cache) setIndex(blockAddr uint64) int {
	return int((blockAddr / uint64(c.geometry.BlockSize)) % uint64(c.geometry.numSets()))
}

func (c *Cache) setBlocks(blockAddr uint64) []*akitacache.Block {
	return c.directory.GetSets()[c.setIndex(blockAddr)].Blocks
}

func (c *Cache) lookupValid(blockAddr uint64) *akitacache.Block {
	block := c.directory.Lookup(0, blockAddr)
	if block == nil || !block.IsValid || block.Tag != blockAddr {
		return nil
	}
	return block
}

func (c *Cache) hitMSHR(blockAddr uint64) bool {
	for _, m := range c.mshr {
		if m.addr == blockAddr {
			return true
		}
	}
	return false
}

// allWaysLocked reports whether every way of the set addressed by blockAddr
// is both valid and locked — i.e. there is no free slot and no unlocked
// victim, so a new miss cannot be serviced this cycle.
func (c *Cache) allWaysLocked(blockAddr uint64) bool {
	for _, b := range c.setBlocks(blockAddr) {
		if !b.IsValid {
			return false
		}
		m := c.meta[b]
		if m == nil || !m.lock {
			return false
		}
	}
	return true
}

// Send issues req against this cache. It returns false when the access
// cannot be accepted this cycle (no free MSHR entry, or the addressed set is
// entirely locked) — the caller is expected to reissue the same request on a
// later tick, exactly as a blocked load or store stalls the issuing core.
func (c *Cache) Send(req Request, now uint64) bool {
	blockAddr := c.align(req.Addr)

	if req.Kind == Read {
		c.Stats.ReadAccess++
	} else {
		c.Stats.WriteAccess++
	}
	c.Stats.TotalAccess++

	if block := c.lookupValid(blockAddr); block != nil {
		if m := c.meta[block]; m == nil || !m.lock {
			c.Stats.Hit++
			c.directory.Visit(block)
			if req.Kind == Write {
				block.IsDirty = true
			}
			hit := req
			hit.Arrive = int64(now)
			c.system.enqueueHit(now+c.latencyEach, hit)
			return true
		}
	}

	if c.hitMSHR(blockAddr) {
		c.Stats.MSHRHit++
		return true
	}

	if req.Kind == Read {
		c.Stats.ReadMiss++
	} else {
		c.Stats.WriteMiss++
	}
	c.Stats.TotalMiss++

	if len(c.mshr) >= c.geometry.MSHRCount {
		c.Stats.MSHRUnavailable++
		return false
	}
	if c.allWaysLocked(blockAddr) {
		c.Stats.SetUnavailable++
		return false
	}

	victim := c.directory.FindVictim(blockAddr)
	if victim == nil {
		c.Stats.SetUnavailable++
		return false
	}

	if victim.IsValid {
		c.Stats.Eviction++
		c.invalidateHigher(victim.Tag)
		if victim.IsDirty {
			c.writeback(victim.Tag, now)
		}
		delete(c.meta, victim)
	}

	victim.Tag = blockAddr
	victim.IsValid = true
	victim.IsDirty = req.Kind == Write
	c.meta[victim] = &lineMeta{lock: true, coreID: req.CoreID}
	c.directory.Visit(victim)

	c.mshr = append(c.mshr, mshrEntry{addr: blockAddr, block: victim})

	fill := req
	fill.Kind = Read // write-allocate: the line is always fetched on a miss
	fill.Arrive = int64(now) + int64(c.latencyEach)
	c.forward(fill, now)

	return true
}

// forward dispatches a fill request to the next level (another Cache, or
// memory via the owning CacheSystem's wait list). If the next cache refuses,
// the request is queued on this cache's own retry list to be reattempted on
// the next Tick.
func (c *Cache) forward(req Request, now uint64) {
	if c.lower != nil {
		if !c.lower.Send(req, now) {
			c.retryList = append(c.retryList, req)
		}
		return
	}
	c.system.enqueueWait(now+c.latencyEach, req)
}

// invalidateHigher recursively drops any copy of blockAddr held by a higher
// (closer to the core) cache, as inclusion requires on an eviction here.
func (c *Cache) invalidateHigher(blockAddr uint64) {
	for _, h := range c.higher {
		block := h.directory.Lookup(0, blockAddr)
		if block == nil || !block.IsValid || block.Tag != blockAddr {
			continue
		}
		if block.IsDirty {
			h.Stats.LoadBlocks++
		}
		block.IsValid = false
		block.IsDirty = false
		delete(h.meta, block)
		h.invalidateHigher(blockAddr)
	}
}

// writeback pushes a dirty victim's block down to the next level: another
// cache's line directly (no MSHR contention — the data is already resident
// somewhere in the hierarchy), or out to memory if this is the LLC.
func (c *Cache) writeback(blockAddr uint64, now uint64) {
	if c.lower != nil {
		c.lower.evictLine(blockAddr, true)
		c.Stats.WriteBackLower++
		return
	}
	c.system.enqueueWait(now+c.latencyEach, Request{Addr: blockAddr, Kind: Write, CoreID: -1})
	c.Stats.WriteBackMemory++
}

// evictLine installs or refreshes blockAddr at this level as the direct
// target of a writeback descending from a higher cache's eviction. It never
// contends for an MSHR: the block's presence here is a bookkeeping fact, not
// a pending fetch.
func (c *Cache) evictLine(blockAddr uint64, dirty bool) {
	block := c.lookupValid(blockAddr)
	if block == nil {
		victim := c.directory.FindVictim(blockAddr)
		if victim == nil {
			return
		}
		if victim.IsValid {
			c.Stats.Eviction++
			c.invalidateHigher(victim.Tag)
			if victim.IsDirty {
				c.writeback(victim.Tag, 0)
			}
			delete(c.meta, victim)
		}
		victim.Tag = blockAddr
		victim.IsValid = true
		block = victim
	}
	c.directory.Visit(block)
	if dirty {
		block.IsDirty = true
	}
	if m, ok := c.meta[block]; ok {
		m.lock = false
	} else {
		c.meta[block] = &lineMeta{}
	}
}

// Callback resolves a completed fill: it unlocks the corresponding line,
// drops the MSHR entry, and propagates the callback up to every cache that
// also needs to unlock its own copy. A request with no matching MSHR entry
// is a pure-hit completion reaching this level by mistake (hits never touch
// an MSHR) and is silently ignored — it is not this cache's to resolve.
func (c *Cache) Callback(req Request) {
	blockAddr := c.align(req.Addr)
	idx := -1
	for i, m := range c.mshr {
		if m.addr == blockAddr {
			idx = i
			break
		}
	}
	if idx < 0 {
		return
	}
	entry := c.mshr[idx]
	c.mshr = append(c.mshr[:idx], c.mshr[idx+1:]...)
	if m, ok := c.meta[entry.block]; ok {
		m.lock = false
	}
	for _, h := range c.higher {
		h.Callback(req)
	}
}

// Tick drains the retry list, re-invoking forward on each entry.
func (c *Cache) Tick(now uint64) {
	if len(c.retryList) == 0 {
		return
	}
	pending := c.retryList
	c.retryList = nil
	for _, req := range pending {
		c.forward(req, now)
	}
}

// Invalidate drops any resident copy of addr from this cache (and, if a
// higher cache depends on inclusion, it has already been asked to drop its
// own copy via invalidateHigher when this level evicted the block).
func (c *Cache) Invalidate(addr uint64) {
	blockAddr := c.align(addr)
	block := c.lookupValid(blockAddr)
	if block == nil {
		return
	}
	block.IsValid = false
	block.IsDirty = false
	delete(c.meta, block)
}

// Flush writes back every dirty line in this cache without invalidating it,
// then flushes every level below it the same way, matching the whole-cache
// coherence flush the quiescence gate performs before a context switch when
// the NLP facility is disabled.
func (c *Cache) Flush(now uint64) {
	for _, set := range c.directory.GetSets() {
		for _, b := range set.Blocks {
			if b.IsValid && b.IsDirty {
				c.writeback(b.Tag, now)
				b.IsDirty = false
			}
		}
	}
	if c.lower != nil {
		c.lower.Flush(now)
	}
}

// IsDirtyAt reports whether the block containing addr is resident and dirty
// in this cache — the offload policy's coherence check before bypassing an
// instruction to NLP.
func (c *Cache) IsDirtyAt(addr uint64) bool {
	block := c.lookupValid(c.align(addr))
	return block != nil && block.IsDirty
}

// RetryListEmpty reports whether this cache has no pending downward forward
// awaiting retry — part of the quiescence gate's debug-mode checks.
func (c *Cache) RetryListEmpty() bool { return len(c.retryList) == 0 }

// MSHREmpty reports whether this cache has no outstanding miss.
func (c *Cache) MSHREmpty() bool { return len(c.mshr) == 0 }

func (c *Cache) String() string {
	return fmt.Sprintf("%s cache (nmp=%v)", c.Level, c.IsNMP)
}
