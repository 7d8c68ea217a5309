// Package main is the nmpsim command-line entry point: it wires the
// configuration, trace files, cache hierarchy, and the three Host/NMP/NLP
// processors into a Scheduler, runs it to completion, and writes the stats
// report.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/go-logr/logr"
	"github.com/go-logr/logr/funcr"
	flag "github.com/spf13/pflag"

	"github.com/sarchlab/nmpsim/config"
	"github.com/sarchlab/nmpsim/corearch"
	"github.com/sarchlab/nmpsim/debugshell"
	"github.com/sarchlab/nmpsim/dram"
	"github.com/sarchlab/nmpsim/memhier"
	"github.com/sarchlab/nmpsim/offload"
	"github.com/sarchlab/nmpsim/proc"
	"github.com/sarchlab/nmpsim/sched"
	"github.com/sarchlab/nmpsim/stats"
	"github.com/sarchlab/nmpsim/trace"
	"github.com/sarchlab/nmpsim/vault"
)

var (
	configPath  = flag.StringP("config", "c", "", "path to the simulation config file (required)")
	traceFiles  = flag.StringArrayP("trace", "t", nil, "trace file path (repeatable; one per Host thread)")
	statsPath   = flag.StringP("stats", "s", "", "path to write the stats report (default <config>.stats)")
	interactive = flag.BoolP("interactive", "i", false, "drop into the step debugger")
	runIDFlag   = flag.String("run-id", "", "override the generated run ID")
	breakEvery  = flag.Uint64("break-every", 1, "global scheduler ticks between debugger breaks under --interactive")
)

func main() {
	flag.Parse()

	log := logr.New(funcr.New(func(prefix, args string) {
		fmt.Fprintln(os.Stderr, prefix, args)
	}, funcr.Options{}).GetSink())

	if *configPath == "" || len(*traceFiles) == 0 {
		fmt.Fprintln(os.Stderr, "usage: nmpsim --config PATH --trace FILE [--trace FILE ...] [--stats PATH] [--interactive]")
		flag.PrintDefaults()
		os.Exit(1)
	}

	id := *runIDFlag
	if id == "" {
		id = stats.NewRunID()
	}
	log = log.WithValues("runID", id)

	defer func() {
		if r := recover(); r != nil {
			log.Error(fmt.Errorf("%v", r), "fatal assertion")
			os.Exit(1)
		}
	}()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error(err, "loading config")
		os.Exit(1)
	}

	started := time.Now()
	host, nmp, nlp, memory := buildSystem(cfg, log)

	if err := attachTraces(host, *traceFiles); err != nil {
		log.Error(err, "attaching traces")
		os.Exit(1)
	}
	primeAll(host, nmp, nlp)

	mode, ok := offload.ParseMode(cfg.SimMode)
	if !ok {
		log.Error(fmt.Errorf("unknown simMode %q", cfg.SimMode), "parsing config")
		os.Exit(1)
	}

	scheduler := sched.New(host, nmp, nlp, memory, mode, cfg.WarmupInsts, log)

	if *interactive {
		runInteractive(scheduler, host)
	} else {
		scheduler.Run()
	}

	report := stats.Build(id, started, time.Now(), host, nmp, nlp)
	path := *statsPath
	if path == "" {
		path = *configPath + ".stats"
	}
	if err := stats.WriteFile(path, report); err != nil {
		log.Error(err, "writing stats")
		os.Exit(1)
	}
	log.Info("done", "path", path)
}

// buildSystem constructs the memory system, the shared LLC, and the Host,
// NMP, and (if enabled) NLP processors, wiring their cache hierarchies and
// cross-processor pointers.
func buildSystem(cfg config.Config, log logr.Logger) (host, nmp, nlp *proc.Processor, memory *dram.FixedLatencyMemory) {
	memory = dram.NewFixedLatencyMemory(cfg.MemoryClockPeriodPS, cfg.MemoryLatencyCycles)
	cacheSystem := memhier.NewCacheSystem(memory)

	vaultCount := cfg.Channels * cfg.Ranks
	if vaultCount <= 0 {
		vaultCount = 1
	}
	geom := vault.DefaultGeometry(vaultCount, uint(log2(cfg.CachelineSize)))
	mapper := vault.NewMapper(vaultCount, geom)

	cycles := corearch.NewCycleTable()

	host = proc.NewProcessor(proc.HostRole, 0, 100_000, log.WithName("host"))
	host.CycleTimePS = cfg.CPUTickPS()
	host.NLPFacility = cfg.NLPFacilityOn()
	host.DebugMode = cfg.DebugContextSwitchOn()
	host.EarlyExit = cfg.EarlyExitOn()
	host.ExpectedLimitInsts = cfg.ExpectedLimitInsts
	host.Energy = proc.DefaultEnergyModel()
	host.CacheSystem = cacheSystem

	llc := memhier.New(memhier.L3, memhier.DefaultLLCGeometry(), 30, host.Energy.CacheEnergyPerAccess[2], cacheSystem, false)
	host.LLC = llc

	for i := 0; i < cfg.CoreNum; i++ {
		l1 := memhier.New(memhier.L1, memhier.DefaultL1Geometry(), 4, host.Energy.CacheEnergyPerAccess[0], cacheSystem, false)
		l2 := memhier.New(memhier.L2, memhier.DefaultL2Geometry(), 12, host.Energy.CacheEnergyPerAccess[1], cacheSystem, false)
		l1.ConcatLower(l2)
		l2.ConcatLower(llc)

		typ := proc.OutOfOrder
		if cfg.CoreOrg == "in_order" {
			typ = proc.InOrder
		}
		c := proc.NewCore(i, typ, l1, cycles, 4, 128)
		c.Mode = mustMode(cfg.SimMode)
		c.VaultMapper = mapper
		c.QueueCapacity = 0
		host.AddCore(c)
	}

	bbIndex := loadBBInfoIfConfigured(cfg)
	for _, c := range host.Cores {
		c.BBInfo = bbIndex
	}

	nmp = proc.NewProcessor(proc.NMPRole, cfg.CoreNum, 100_000, log.WithName("nmp"))
	nmp.CycleTimePS = cfg.NMPTickPS()
	nmp.Energy = proc.DefaultEnergyModel()
	nmp.NLPFacility = host.NLPFacility
	for i := 0; i < cfg.NMPCoreNum; i++ {
		var l1 *memhier.Cache
		if cfg.NMPHasCoreCaches {
			l1 = memhier.New(memhier.L1, memhier.DefaultNMPL1Geometry(), 2, nmp.Energy.CacheEnergyPerAccess[0], cacheSystem, true)
			l1.ConcatLower(llc)
		}
		typ := proc.InOrder
		if cfg.NMPCoreOrg == "out_of_order" {
			typ = proc.OutOfOrder
		}
		c := proc.NewCore(cfg.CoreNum+i, typ, l1, cycles, 1, 16)
		c.IsNMP = true
		c.OwnVaultTarget = i % vaultCount
		c.VaultMapper = mapper
		c.QueueCapacity = cfg.NMPQueueMaxSize
		nmp.AddCore(c)
	}
	host.NMPProc = nmp

	if host.NLPFacility {
		nlp = proc.NewProcessor(proc.NLPRole, cfg.CoreNum+cfg.NMPCoreNum, 100_000, log.WithName("nlp"))
		nlp.CycleTimePS = nmp.CycleTimePS
		nlp.Energy = proc.DefaultEnergyModel()
		for i := 0; i < cfg.NLPCoreNum; i++ {
			c := proc.NewCore(cfg.CoreNum+cfg.NMPCoreNum+i, proc.InOrder, nil, cycles, 1, 16)
			c.IsNMP = true
			c.NLPSide = true
			nlp.AddCore(c)
		}
		host.NLPProc = nlp
		nmp.NLPProc = nlp
	}

	return host, nmp, nlp, memory
}

func mustMode(s string) offload.Mode {
	m, ok := offload.ParseMode(s)
	if !ok {
		return offload.HostOnly
	}
	return m
}

func loadBBInfoIfConfigured(cfg config.Config) *offload.BBInfoIndex {
	if cfg.JSONPath == "" {
		return nil
	}
	idx, err := offload.LoadBBInfo(offload.BBInfoPath(cfg.JSONPath, 0))
	if err != nil {
		return nil
	}
	return idx
}

func log2(n int) int {
	bits := 0
	for n > 1 {
		n >>= 1
		bits++
	}
	return bits
}

// attachTraces opens one trace reader per file and attaches it to the Host
// core at the matching index.
func attachTraces(host *proc.Processor, paths []string) error {
	for i, path := range paths {
		if i >= len(host.Cores) {
			break
		}
		r, err := trace.Open(path)
		if err != nil {
			return fmt.Errorf("opening trace %s: %w", path, err)
		}
		host.Cores[i].AttachTrace(r)
	}
	return nil
}

func primeAll(procs ...*proc.Processor) {
	for _, p := range procs {
		if p == nil {
			continue
		}
		for _, c := range p.Cores {
			c.GetFirstInstructionIfIdle()
		}
	}
}

type inspector struct {
	host *proc.Processor
	tick func() uint64
}

func (ins inspector) Tick() uint64 { return ins.tick() }

func (ins inspector) CoreByID(id int) (*proc.Core, bool) {
	for _, c := range ins.host.Cores {
		if c.ID == id {
			return c, true
		}
	}
	if ins.host.NMPProc != nil {
		for _, c := range ins.host.NMPProc.Cores {
			if c.ID == id {
				return c, true
			}
		}
	}
	return nil, false
}

func (ins inspector) CacheLevelReport(level string) (string, bool) {
	if ins.host.LLC == nil {
		return "", false
	}
	switch level {
	case "llc", "l3":
		return ins.host.LLC.String(), true
	default:
		return "", false
	}
}

func runInteractive(scheduler *sched.Scheduler, host *proc.Processor) {
	scheduler.RunWarmup()

	ins := inspector{host: host, tick: scheduler.CurrentTick}
	shell := debugshell.New(ins, scheduler.StepMain, func() {
		for !scheduler.Done() {
			scheduler.StepMain(1)
		}
	}, *breakEvery)
	shell.Open()
	defer shell.Close()

	for !scheduler.Done() && !shell.Quit() {
		shell.Break()
	}
}
