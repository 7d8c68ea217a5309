// Package config defines the simulator's configuration file: core
// organization, cache geometry, NMP/NLP facility toggles, and simulation
// mode, read as JSON-with-comments so an operator can annotate a
// configuration with trailing notes.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/tailscale/hujson"
)

// Config is the fully validated, typed simulation configuration.
type Config struct {
	// Host organization.
	CoreOrg        string `json:"coreOrg"`
	CoreNum        int    `json:"coreNum"`
	CPUFrequencyMHz int   `json:"cpuFrequencyMHz"`

	HostLLCSizeBytes int `json:"hostLLCSizeBytes"`
	HostLLCAssoc     int `json:"hostLLCAssoc"`
	HasL3Cache       bool `json:"hasL3Cache"`
	HasCoreCaches    bool `json:"hasCoreCaches"`

	// NMP organization.
	NMPCoreOrg        string `json:"nmpCoreOrg"`
	NMPCoreInstIssue  string `json:"nmpCoreInstIssue"`
	NMPCoreNum        int    `json:"nmpCoreNum"`
	MCPFrequencyMHz   int    `json:"mcpFrequencyMHz"`
	NMPHasCoreCaches  bool   `json:"nmpHasCoreCaches"`
	NMPQueueMaxSize   int    `json:"nmpQueueMaxSize"`

	// NLP facility.
	NLPFacility string `json:"nlpFacility"` // "on" or "off"
	NLPCoreNum  int    `json:"nlpCoreNum"`

	// HMC geometry.
	Stacks    int `json:"stacks"`
	Channels  int `json:"channels"`
	Ranks     int `json:"ranks"`
	Subarrays int `json:"subarrays"`

	// Offload policy.
	SimMode      string `json:"simMode"` // host-only | all-offload | co-simulation | mcp-only
	OverheadCycle int   `json:"overheadCycle"`
	JSONPath     string `json:"jsonPath"` // directory of per-process BB-info descriptors

	// Execution control.
	HostThreadSpawning  string `json:"hostThreadSpawning"`
	DebugContextSwitch  string `json:"debugContextSwitch"` // "on" or "off"
	ConsiderInstFetch   string `json:"considerInstFetch"`  // "on" or "off"
	WarmupInsts         int64  `json:"warmupInsts"`
	ExpectedLimitInsts  int64  `json:"expectedLimitInsts"`
	EarlyExit           string `json:"earlyExit"` // "off" disables; anything else (or absent) enables

	// Memory timing (out of scope, consumed only through a fixed-latency
	// stand-in — see package dram).
	MemoryClockPeriodPS uint64 `json:"memoryClockPeriodPS"`
	MemoryLatencyCycles uint64 `json:"memoryLatencyCycles"`

	CachelineSize int `json:"cachelineSize"`
}

// DefaultConfig returns a small, internally consistent configuration
// suitable for tests and smoke runs.
func DefaultConfig() Config {
	return Config{
		CoreOrg:            "out_of_order",
		CoreNum:            4,
		CPUFrequencyMHz:    2000,
		HostLLCSizeBytes:   8 * 1024 * 1024,
		HostLLCAssoc:       16,
		HasL3Cache:         true,
		HasCoreCaches:      true,
		NMPCoreOrg:         "in_order",
		NMPCoreInstIssue:   "in_order",
		NMPCoreNum:         16,
		MCPFrequencyMHz:    1000,
		NMPHasCoreCaches:   true,
		NMPQueueMaxSize:    0,
		NLPFacility:        "off",
		NLPCoreNum:         4,
		Stacks:             1,
		Channels:           1,
		Ranks:              1,
		Subarrays:          16,
		SimMode:            "host-only",
		OverheadCycle:      50,
		JSONPath:           "",
		HostThreadSpawning: "static",
		DebugContextSwitch: "off",
		ConsiderInstFetch:  "on",
		WarmupInsts:        0,
		ExpectedLimitInsts: 0,
		EarlyExit:          "on",
		MemoryClockPeriodPS: 800,
		MemoryLatencyCycles: 100,
		CachelineSize:      64,
	}
}

// Load reads and validates a JSON-with-comments configuration file.
func Load(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	std, err := hujson.Standardize(raw)
	if err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(std, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config: invalid %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg back out as plain indented JSON (comments, if any existed
// in the source file, are not round-tripped).
func (c Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}

// Validate checks field-by-field invariants the rest of the simulator
// assumes hold.
func (c Config) Validate() error {
	switch {
	case c.CoreNum <= 0:
		return fmt.Errorf("coreNum must be positive, got %d", c.CoreNum)
	case c.CPUFrequencyMHz <= 0:
		return fmt.Errorf("cpuFrequencyMHz must be positive, got %d", c.CPUFrequencyMHz)
	case c.MCPFrequencyMHz <= 0:
		return fmt.Errorf("mcpFrequencyMHz must be positive, got %d", c.MCPFrequencyMHz)
	case c.HostLLCSizeBytes <= 0:
		return fmt.Errorf("hostLLCSizeBytes must be positive, got %d", c.HostLLCSizeBytes)
	case c.HostLLCAssoc <= 0:
		return fmt.Errorf("hostLLCAssoc must be positive, got %d", c.HostLLCAssoc)
	case c.NMPCoreNum <= 0:
		return fmt.Errorf("nmpCoreNum must be positive, got %d", c.NMPCoreNum)
	case c.Stacks <= 0 || c.Channels <= 0 || c.Ranks <= 0 || c.Subarrays <= 0:
		return fmt.Errorf("stacks/channels/ranks/subarrays must all be positive")
	case c.CachelineSize <= 0 || c.CachelineSize&(c.CachelineSize-1) != 0:
		return fmt.Errorf("cachelineSize must be a positive power of two, got %d", c.CachelineSize)
	case c.MemoryClockPeriodPS == 0:
		return fmt.Errorf("memoryClockPeriodPS must be positive")
	}
	if _, ok := validSimModes[c.SimMode]; !ok {
		return fmt.Errorf("simMode %q is not one of host-only/all-offload/co-simulation/mcp-only", c.SimMode)
	}
	return nil
}

var validSimModes = map[string]struct{}{
	"host-only":     {},
	"all-offload":   {},
	"co-simulation": {},
	"mcp-only":      {},
}

// Clone returns a deep copy of c (every field is a value type, so a plain
// struct copy already suffices — Clone exists to document that intent).
func (c Config) Clone() Config { return c }

// CPUTickPS returns the Host clock period in picoseconds.
func (c Config) CPUTickPS() uint64 {
	return uint64(1_000_000.0 / float64(c.CPUFrequencyMHz))
}

// NMPTickPS returns the NMP clock period in picoseconds.
func (c Config) NMPTickPS() uint64 {
	return uint64(1_000_000.0 / float64(c.MCPFrequencyMHz))
}

// NLPFacilityOn reports whether the NLP compute-near-LLC facility is active.
func (c Config) NLPFacilityOn() bool { return c.NLPFacility == "on" }

// DebugContextSwitchOn reports whether the quiescence gate should run its
// extra debug-mode invariant checks.
func (c Config) DebugContextSwitchOn() bool { return c.DebugContextSwitch == "on" }

// EarlyExitOn reports whether the Host processor counts as finished as soon
// as any one of its cores runs out of work, defaulting to true.
func (c Config) EarlyExitOn() bool { return c.EarlyExit != "off" }

// CalcWeightedSpeedup reports whether an instruction limit is configured.
func (c Config) CalcWeightedSpeedup() bool { return c.ExpectedLimitInsts != 0 }
