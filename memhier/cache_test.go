package memhier_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/nmpsim/dram"
	"github.com/sarchlab/nmpsim/memhier"
)

func TestMemhier(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Memhier Suite")
}

func smallGeometry() memhier.Geometry {
	return memhier.Geometry{SizeBytes: 256, Associativity: 2, BlockSize: 64, MSHRCount: 2}
}

var _ = Describe("Cache", func() {
	var (
		mem    *dram.FixedLatencyMemory
		system *memhier.CacheSystem
		llc    *memhier.Cache
	)

	BeforeEach(func() {
		mem = dram.NewFixedLatencyMemory(1, 10)
		system = memhier.NewCacheSystem(mem)
		llc = memhier.New(memhier.L3, smallGeometry(), 4, 0.5, system, false)
	})

	tickAll := func(n int) {
		for i := 0; i < n; i++ {
			llc.Tick(uint64(i))
			system.Tick(uint64(i))
			mem.Tick(uint64(i))
		}
	}

	Describe("cold access", func() {
		It("misses on a first touch and later hits on the same block", func() {
			var delivered []memhier.Request
			req := memhier.Request{
				Addr: 0x1000,
				Kind: memhier.Read,
				Callback: func(r memhier.Request) {
					delivered = append(delivered, r)
					llc.Callback(r)
				},
			}

			ok := llc.Send(req, 0)
			Expect(ok).To(BeTrue())
			Expect(llc.Stats.ReadMiss).To(Equal(uint64(1)))

			tickAll(20)
			Expect(delivered).To(HaveLen(1))

			ok = llc.Send(req, 20)
			Expect(ok).To(BeTrue())
			Expect(llc.Stats.Hit).To(Equal(uint64(1)))
		})
	})

	Describe("MSHR exhaustion", func() {
		It("refuses a miss once every MSHR entry is outstanding", func() {
			g := smallGeometry()
			ok1 := llc.Send(memhier.Request{Addr: 0x1000, Kind: memhier.Read}, 0)
			ok2 := llc.Send(memhier.Request{Addr: 0x2000, Kind: memhier.Read}, 0)
			Expect(ok1).To(BeTrue())
			Expect(ok2).To(BeTrue())

			ok3 := llc.Send(memhier.Request{Addr: 0x3000, Kind: memhier.Read}, 0)
			Expect(ok3).To(BeFalse())
			Expect(llc.Stats.MSHRUnavailable).To(Equal(uint64(1)))
			_ = g
		})
	})

	Describe("write-back", func() {
		It("allocates a dirty line on a write miss that a later read hits", func() {
			req := memhier.Request{Addr: 0x4000, Kind: memhier.Write, Callback: func(r memhier.Request) {
				llc.Callback(r)
			}}
			llc.Send(req, 0)
			Expect(llc.IsDirtyAt(0x4000)).To(BeTrue())
			tickAll(20)

			ok := llc.Send(memhier.Request{Addr: 0x4000, Kind: memhier.Read}, 20)
			Expect(ok).To(BeTrue())
			Expect(llc.Stats.Hit).To(Equal(uint64(1)))
		})
	})
})
