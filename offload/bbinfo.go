package offload

import (
	"encoding/json"
	"fmt"
	"os"
)

// BBInfo is the compiler-computed instruction mix of one basic block, read
// from the annotation pass's JSON descriptor.
type BBInfo struct {
	MemoryInstructions     int
	NonMemoryInstructions  int
	ArithmeticInstructions int
	TotalInstructions      int
	TotalMemoryConsumption int
}

// MemoryBound reports whether this block has more memory instructions than
// non-memory ones — the default Co-Simulation offload heuristic.
func (b BBInfo) MemoryBound() bool {
	return b.MemoryInstructions > b.NonMemoryInstructions
}

type bbInfoFile struct {
	FunctionName string `json:"FunctionName"`
	BasicBlocks  []struct {
		BasicBlockID           uint64 `json:"BasicBlockID"`
		BasicBlockName         string `json:"BasicBlockName"`
		MemoryInstructions     int    `json:"MemoryInstructions"`
		NonMemoryInstructions  int    `json:"NonMemoryInstructions"`
		ArithmeticInstructions int    `json:"ArithmeticInstructions"`
		TotalInstructions      int    `json:"TotalInstructions"`
		TotalMemoryConsumption int    `json:"TotalMemoryConsumption"`
	} `json:"BasicBlocks"`
}

// BBInfoIndex is a per-process index from basic-block ID to its instruction
// mix, built once at process construction and looked up on every ROI_BEGIN.
type BBInfoIndex struct {
	byBlockID map[uint64]BBInfo
}

// LoadBBInfo reads the per-process basic-block descriptor at path. A missing
// file is returned as an error; a Co-Simulation core with no index configured
// at all panics at its first ROI_BEGIN decision — see Core.decideRegion.
func LoadBBInfo(path string) (*BBInfoIndex, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("offload: read bb-info %s: %w", path, err)
	}

	var functions []bbInfoFile
	if err := json.Unmarshal(data, &functions); err != nil {
		return nil, fmt.Errorf("offload: parse bb-info %s: %w", path, err)
	}

	idx := &BBInfoIndex{byBlockID: make(map[uint64]BBInfo)}
	for _, fn := range functions {
		for _, bb := range fn.BasicBlocks {
			idx.byBlockID[bb.BasicBlockID] = BBInfo{
				MemoryInstructions:     bb.MemoryInstructions,
				NonMemoryInstructions:  bb.NonMemoryInstructions,
				ArithmeticInstructions: bb.ArithmeticInstructions,
				TotalInstructions:      bb.TotalInstructions,
				TotalMemoryConsumption: bb.TotalMemoryConsumption,
			}
		}
	}
	return idx, nil
}

// Lookup returns the instruction mix for blockID, if known.
func (idx *BBInfoIndex) Lookup(blockID uint64) (BBInfo, bool) {
	bb, ok := idx.byBlockID[blockID]
	return bb, ok
}

// BBInfoPath builds the conventional per-process descriptor file name.
func BBInfoPath(jsonDir string, processID uint64) string {
	return fmt.Sprintf("%s/proc_%d_bb_info.json", jsonDir, processID)
}
