package proc

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/sarchlab/nmpsim/offload"
	"github.com/sarchlab/nmpsim/trace"
)

func buildBBInfo(t *testing.T, regionID uint64, memoryBound bool) *offload.BBInfoIndex {
	t.Helper()
	mem, nonMem := 1, 5
	if memoryBound {
		mem, nonMem = 5, 1
	}
	doc := fmt.Sprintf(`[{"FunctionName":"f","BasicBlocks":[{"BasicBlockID":%d,"BasicBlockName":"b","MemoryInstructions":%d,"NonMemoryInstructions":%d,"ArithmeticInstructions":0,"TotalInstructions":%d,"TotalMemoryConsumption":0}]}]`,
		regionID, mem, nonMem, mem+nonMem)

	path := filepath.Join(t.TempDir(), "bb.json")
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	idx, err := offload.LoadBBInfo(path)
	if err != nil {
		t.Fatal(err)
	}
	return idx
}

func regionMarker(opcode string, processID, regionID uint64) trace.Record {
	var r trace.Record
	r.ProcessID = processID
	r.RegionID = regionID
	r.SetOpcode(opcode)
	return r
}

func plainInstruction(processID uint64) trace.Record {
	var r trace.Record
	r.ProcessID = processID
	return r
}

// TestCoSimulationOffloadRejectedRegionDoesNotStall is the regression test for
// the region-reject path: a ROI_BEGIN that decideRegion turns down must never
// leave offloadRegions non-empty, and the plain instruction immediately
// following it must run straight through rather than tripping the
// waitForNMPFinish hand-off stall meant for an actually-offloaded region.
func TestCoSimulationOffloadRejectedRegionDoesNotStall(t *testing.T) {
	c := NewCore(0, InOrder, nil, nil, 1, 16)
	c.Mode = offload.CoSimulation
	c.isWarmupDone = true
	c.BBInfo = buildBBInfo(t, 42, false) // compute-bound: decideRegion -> false
	c.DeployedAppID = 1

	c.current = regionMarker(trace.RegionBeginOpcode, 1, 42)
	c.hasCurrent = true

	after := plainInstruction(1)
	c.inQueue.PushBack(after)
	c.inQueue.PushBack(regionMarker(trace.RegionEndOpcode, 1, 42))

	c.coSimulationOffload()

	if !c.offloadRegions.Empty() {
		t.Fatalf("a rejected region must never be entered into offloadRegions")
	}
	if c.waitForNMPFinish {
		t.Fatalf("a rejected Co-Simulation region must behave as Host-Only, not stall waiting on an NMP hand-off")
	}
	if c.current.IsRegionBegin() || c.current.IsRegionEnd() {
		t.Fatalf("expected to land past the markers on the plain instruction, got opcode %q", c.current.Opcode())
	}
}

// TestCoSimulationOffloadAcceptedRegionStillBypasses confirms the Empty()
// guard added for the reject path doesn't regress the accept path: a region
// decideRegion approves must still be entered into offloadRegions, and its
// body must take the bypass branch rather than the NMP hand-off stall.
func TestCoSimulationOffloadAcceptedRegionStillBypasses(t *testing.T) {
	c := NewCore(0, InOrder, nil, nil, 1, 16)
	c.Mode = offload.CoSimulation
	c.isWarmupDone = true
	c.BBInfo = buildBBInfo(t, 7, true) // memory-bound: decideRegion -> true
	c.DeployedAppID = 1

	c.current = regionMarker(trace.RegionBeginOpcode, 1, 7)
	c.hasCurrent = true

	body := plainInstruction(1)
	body.RegionID = 7
	c.inQueue.PushBack(body)

	c.coSimulationOffload()

	if c.offloadRegions.Empty() {
		t.Fatalf("an accepted region must be entered into offloadRegions")
	}
	if c.waitForNMPFinish {
		t.Fatalf("the body of an accepted region must be bypassed, not stall waiting on an NMP hand-off")
	}
}

func TestDecideRegionPanicsWithoutBBInfo(t *testing.T) {
	c := NewCore(0, InOrder, nil, nil, 1, 16)
	c.Mode = offload.CoSimulation

	defer func() {
		if recover() == nil {
			t.Fatalf("expected decideRegion to panic with no BB-info index configured")
		}
	}()
	c.decideRegion(1)
}

func TestDecideRegionPanicsOnLookupMiss(t *testing.T) {
	c := NewCore(0, InOrder, nil, nil, 1, 16)
	c.Mode = offload.CoSimulation
	c.BBInfo = buildBBInfo(t, 42, true)

	defer func() {
		if recover() == nil {
			t.Fatalf("expected decideRegion to panic on a BB-info lookup miss")
		}
	}()
	c.decideRegion(999)
}
