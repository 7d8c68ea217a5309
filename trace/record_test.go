package trace_test

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/nmpsim/trace"
)

func TestTrace(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Trace Suite")
}

var _ = Describe("Record", func() {
	It("round-trips through the wire format bit-for-bit", func() {
		var rec trace.Record
		rec.ProcessID = 7
		rec.ThreadID = 2
		rec.InstPointer = 0xdeadbeef
		rec.SourceAddr = [trace.NumSources]uint64{0x1000, 0x2000, 0, 0}
		rec.DestAddr = [trace.NumDests]uint64{0x3000, 0, 0, 0}
		rec.RegionID = 42
		rec.SetOpcode("LOAD")

		var buf bytes.Buffer
		n, err := rec.WriteTo(&buf)
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(int64(trace.RecordSize)))

		var got trace.Record
		_, err = got.ReadFrom(&buf)
		Expect(err).NotTo(HaveOccurred())

		if diff := cmp.Diff(rec, got, cmp.AllowUnexported(trace.Record{})); diff != "" {
			Fail("record round-trip mismatch (-want +got):\n" + diff)
		}
	})

	It("recognizes the region sentinel opcodes", func() {
		var begin, end, other trace.Record
		begin.SetOpcode(trace.RegionBeginOpcode)
		end.SetOpcode(trace.RegionEndOpcode)
		other.SetOpcode("ADD")

		Expect(begin.IsRegionBegin()).To(BeTrue())
		Expect(end.IsRegionEnd()).To(BeTrue())
		Expect(other.IsRegionBegin()).To(BeFalse())
		Expect(other.IsRegionEnd()).To(BeFalse())
	})

	It("reports memory operands only when an address is non-zero", func() {
		var rec trace.Record
		Expect(rec.HasMemoryOperand()).To(BeFalse())
		rec.DestAddr[2] = 0x40
		Expect(rec.HasMemoryOperand()).To(BeTrue())
	})
})
