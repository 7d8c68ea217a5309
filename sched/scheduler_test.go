package sched_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-logr/logr"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/nmpsim/offload"
	"github.com/sarchlab/nmpsim/proc"
	"github.com/sarchlab/nmpsim/sched"
	"github.com/sarchlab/nmpsim/trace"
)

func TestSched(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Sched Suite")
}

// fakeMemory is the narrowest possible sched.MemoryTicker: it never has
// anything pending, so it never blocks convergence.
type fakeMemory struct{ periodPS uint64 }

func (m fakeMemory) ClockPeriodPS() uint64 { return m.periodPS }
func (m fakeMemory) Tick(now uint64)       {}

// emptyTraceProcessor builds a one-core Processor of role with an empty
// trace file attached and primed, so the core reports MoreReqs=false (and
// therefore Finished()/IsComplete()) without ever being ticked.
func emptyTraceProcessor(dir string, role proc.Role, initialCoreID int, cyclePS uint64) *proc.Processor {
	p := proc.NewProcessor(role, initialCoreID, 0, logr.Discard())
	p.CycleTimePS = cyclePS

	path := filepath.Join(dir, role.String()+".trace")
	Expect(os.WriteFile(path, nil, 0o644)).To(Succeed())
	r, err := trace.Open(path)
	Expect(err).NotTo(HaveOccurred())

	c := proc.NewCore(initialCoreID, proc.InOrder, nil, nil, 1, 16)
	c.AttachTrace(r)
	p.AddCore(c)

	for _, core := range p.Cores {
		core.GetFirstInstructionIfIdle()
	}
	return p
}

var _ = Describe("Scheduler", func() {
	var dir string

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
	})

	It("converges immediately in HostOnly mode once the Host core has no more trace", func() {
		host := emptyTraceProcessor(dir, proc.HostRole, 0, 1000)
		nmp := emptyTraceProcessor(dir, proc.NMPRole, 1, 1000)
		mem := fakeMemory{periodPS: 1000}

		s := sched.New(host, nmp, nil, mem, offload.HostOnly, 0, logr.Discard())
		Expect(s.Done()).To(BeTrue())

		ticks := s.Run()
		Expect(ticks).To(BeNumerically(">=", 0))
		Expect(s.Done()).To(BeTrue())
	})

	It("requires every active domain to finish under a co-simulated mode", func() {
		host := emptyTraceProcessor(dir, proc.HostRole, 0, 1000)
		nmp := emptyTraceProcessor(dir, proc.NMPRole, 1, 2000)
		mem := fakeMemory{periodPS: 500}

		s := sched.New(host, nmp, nil, mem, offload.CoSimulation, 0, logr.Discard())
		Expect(s.Done()).To(BeTrue(), "both Host and NMP already report no more work")
	})

	It("treats a WarmupInsts<=0 config as an immediate, idempotent warmup", func() {
		host := emptyTraceProcessor(dir, proc.HostRole, 0, 1000)
		nmp := emptyTraceProcessor(dir, proc.NMPRole, 1, 1000)
		mem := fakeMemory{periodPS: 1000}

		s := sched.New(host, nmp, nil, mem, offload.HostOnly, 0, logr.Discard())
		s.RunWarmup()
		s.RunWarmup() // second call must be a no-op, not a re-run
		Expect(s.CurrentTick()).To(Equal(uint64(0)))
	})

	It("reports HasReachedLimit as the Done short-circuit once the instruction cap is hit", func() {
		host := emptyTraceProcessor(dir, proc.HostRole, 0, 1000)
		nmp := emptyTraceProcessor(dir, proc.NMPRole, 1, 1000)
		mem := fakeMemory{periodPS: 1000}

		host.ExpectedLimitInsts = 1
		for _, c := range host.Cores {
			c.ReachedLimit = true
		}

		s := sched.New(host, nmp, nil, mem, offload.HostOnly, 0, logr.Discard())
		Expect(s.Done()).To(BeTrue())
	})
})
