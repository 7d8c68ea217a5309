// Package memhier implements the inclusive, write-back, write-allocate cache
// hierarchy shared by the Host, NMP, and NLP execution domains, built on top
// of akita's set/way directory for indexing and LRU victim selection.
package memhier

// Level names a position in the cache hierarchy.
type Level int

const (
	L1 Level = iota
	L2
	L3
)

func (l Level) String() string {
	switch l {
	case L1:
		return "L1"
	case L2:
		return "L2"
	case L3:
		return "L3"
	default:
		return "unknown"
	}
}

// Kind distinguishes a read from a write request.
type Kind int

const (
	Read Kind = iota
	Write
)

// Request is one in-flight memory access traveling through the cache
// hierarchy. It carries no data payload: this is a timing model, not a
// functional emulator.
type Request struct {
	Addr                uint64
	Kind                Kind
	CoreID              int
	IsNMP               bool
	IsInstructionFetch  bool
	Callback            func(Request)

	// Arrive and Depart are cycle timestamps filled in as the request moves
	// through the hierarchy, used for memory-access-cycle accounting.
	Arrive int64
	Depart int64
}

// Stats accumulates the scalar counters a cache reports.
type Stats struct {
	ReadMiss        uint64
	WriteMiss       uint64
	TotalMiss       uint64
	Eviction        uint64
	ReadAccess      uint64
	WriteAccess     uint64
	TotalAccess     uint64
	MSHRHit         uint64
	MSHRUnavailable uint64
	SetUnavailable  uint64
	Hit             uint64
	LoadBlocks      uint64
	WriteBackLower  uint64
	WriteBackMemory uint64
}

// Geometry sizes one cache level.
type Geometry struct {
	SizeBytes     int
	Associativity int
	BlockSize     int
	MSHRCount     int
}

func (g Geometry) numSets() int {
	return g.SizeBytes / (g.Associativity * g.BlockSize)
}

// DefaultL1Geometry returns a typical private L1 geometry: 32KB, 8-way,
// 64-byte lines, 4 outstanding misses.
func DefaultL1Geometry() Geometry {
	return Geometry{SizeBytes: 32 * 1024, Associativity: 8, BlockSize: 64, MSHRCount: 4}
}

// DefaultL2Geometry returns a typical private L2 geometry: 256KB, 8-way.
func DefaultL2Geometry() Geometry {
	return Geometry{SizeBytes: 256 * 1024, Associativity: 8, BlockSize: 64, MSHRCount: 8}
}

// DefaultLLCGeometry returns a typical shared LLC geometry: 8MB, 16-way.
func DefaultLLCGeometry() Geometry {
	return Geometry{SizeBytes: 8 * 1024 * 1024, Associativity: 16, BlockSize: 64, MSHRCount: 16}
}

// DefaultNMPL1Geometry returns the smaller per-vault NMP L1 geometry: 8KB,
// 4-way (NMP cores only ever have a private L1, never an L2 or LLC).
func DefaultNMPL1Geometry() Geometry {
	return Geometry{SizeBytes: 8 * 1024, Associativity: 4, BlockSize: 64, MSHRCount: 2}
}
