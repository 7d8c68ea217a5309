package offload_test

import (
	"os"
	"path/filepath"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/nmpsim/offload"
)

func TestOffload(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Offload Suite")
}

var _ = Describe("Mode", func() {
	It("round-trips every known mode through ParseMode and String", func() {
		for _, m := range []offload.Mode{offload.HostOnly, offload.AllOffload, offload.CoSimulation, offload.MCPOnly} {
			parsed, ok := offload.ParseMode(m.String())
			Expect(ok).To(BeTrue())
			Expect(parsed).To(Equal(m))
		}
	})

	It("reports HostOnly and ok=false for an unknown mode string", func() {
		m, ok := offload.ParseMode("not-a-mode")
		Expect(ok).To(BeFalse())
		Expect(m).To(Equal(offload.HostOnly))
	})
})

var _ = Describe("RegionSet", func() {
	It("tracks nested regions by explicit ID, not depth", func() {
		s := offload.NewRegionSet()
		Expect(s.Empty()).To(BeTrue())

		s.Enter(1)
		s.Enter(2)
		Expect(s.Contains(1)).To(BeTrue())
		Expect(s.Contains(2)).To(BeTrue())
		Expect(s.Len()).To(Equal(2))

		s.Leave(1)
		Expect(s.Contains(1)).To(BeFalse())
		Expect(s.Contains(2)).To(BeTrue())
		Expect(s.Empty()).To(BeFalse())

		s.Leave(2)
		Expect(s.Empty()).To(BeTrue())
	})

	It("treats Leave of a never-entered region as a no-op", func() {
		s := offload.NewRegionSet()
		s.Leave(99)
		Expect(s.Empty()).To(BeTrue())
	})
})

var _ = Describe("DefaultDecisionFunc", func() {
	It("offloads a memory-bound block", func() {
		bb := offload.BBInfo{MemoryInstructions: 5, NonMemoryInstructions: 2}
		Expect(offload.DefaultDecisionFunc(bb, offload.SystemState{})).To(BeTrue())
	})

	It("keeps a compute-bound block on the host", func() {
		bb := offload.BBInfo{MemoryInstructions: 1, NonMemoryInstructions: 9}
		Expect(offload.DefaultDecisionFunc(bb, offload.SystemState{})).To(BeFalse())
	})
})

var _ = Describe("BBInfoIndex", func() {
	It("loads and looks up basic blocks by ID from a descriptor file", func() {
		dir := GinkgoT().TempDir()
		path := filepath.Join(dir, "proc_0_bb_info.json")
		const doc = `[{
			"FunctionName": "foo",
			"BasicBlocks": [
				{"BasicBlockID": 7, "BasicBlockName": "bb7", "MemoryInstructions": 3, "NonMemoryInstructions": 1, "ArithmeticInstructions": 1, "TotalInstructions": 5, "TotalMemoryConsumption": 64}
			]
		}]`
		Expect(os.WriteFile(path, []byte(doc), 0o644)).To(Succeed())

		idx, err := offload.LoadBBInfo(path)
		Expect(err).NotTo(HaveOccurred())

		bb, ok := idx.Lookup(7)
		Expect(ok).To(BeTrue())
		Expect(bb.MemoryBound()).To(BeTrue())

		_, ok = idx.Lookup(404)
		Expect(ok).To(BeFalse())
	})

	It("returns an error for a missing descriptor file", func() {
		_, err := offload.LoadBBInfo("/nonexistent/proc_0_bb_info.json")
		Expect(err).To(HaveOccurred())
	})

	It("builds the conventional per-process descriptor path", func() {
		Expect(offload.BBInfoPath("/traces", 3)).To(Equal("/traces/proc_3_bb_info.json"))
	})
})
