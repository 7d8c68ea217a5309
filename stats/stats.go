// Package stats collects scalar run statistics and writes the final report
// atomically, the way a crash or a concurrent reader would otherwise see a
// half-written file.
package stats

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/natefinch/atomic"
	"github.com/rs/xid"

	"github.com/sarchlab/nmpsim/proc"
)

// ProcessorReport is the flat summary of one Processor's run.
type ProcessorReport struct {
	Role              string  `json:"role"`
	Cores             int     `json:"cores"`
	CPUCycles         uint64  `json:"cpuCycles"`
	TotalInstructions uint64  `json:"totalInstructions"`
	TotalRetired      uint64  `json:"totalRetired"`
	IPC               float64 `json:"ipc"`
	RegionCount       uint64  `json:"regionCount"`
	OffloadRegionCount uint64 `json:"offloadRegionCount"`
}

// Report is the complete run report written to the stats file.
type Report struct {
	RunID     string    `json:"runId"`
	StartedAt time.Time `json:"startedAt"`
	EndedAt   time.Time `json:"endedAt"`

	Host ProcessorReport `json:"host"`
	NMP  ProcessorReport `json:"nmp"`
	NLP  *ProcessorReport `json:"nlp,omitempty"`

	WeightedSpeedupInsts uint64  `json:"weightedSpeedupInsts,omitempty"`
	WeightedSpeedupCycles uint64 `json:"weightedSpeedupCycles,omitempty"`

	EnergyJoules float64 `json:"energyJoules"`
}

// NewRunID returns a new globally sortable, collision-resistant run
// identifier.
func NewRunID() string { return xid.New().String() }

func summarize(role string, p *proc.Processor) ProcessorReport {
	p.CalcStats()
	var regions, offloadRegions uint64
	for _, c := range p.Cores {
		regions += c.Stats.RegionCount
		offloadRegions += c.Stats.OffloadRegionCount
	}
	return ProcessorReport{
		Role:               role,
		Cores:              len(p.Cores),
		CPUCycles:          p.CPUCycles,
		TotalInstructions:  p.TotalInstructions,
		TotalRetired:       p.TotalRetired,
		IPC:                p.IPC(),
		RegionCount:        regions,
		OffloadRegionCount: offloadRegions,
	}
}

// Build assembles a Report from the three (host/NMP/NLP — NLP optional)
// processors at the end of a run.
func Build(runID string, started, ended time.Time, host, nmp, nlp *proc.Processor) Report {
	r := Report{
		RunID:     runID,
		StartedAt: started,
		EndedAt:   ended,
		Host:      summarize("host", host),
		NMP:       summarize("nmp", nmp),
	}
	if host.ExpectedLimitInsts > 0 {
		r.WeightedSpeedupInsts = host.RecordInsts
		r.WeightedSpeedupCycles = host.RecordCycles
	}
	r.EnergyJoules = host.Energy.Estimate(host, host.TotalInstructions) +
		nmp.Energy.Estimate(nmp, nmp.TotalInstructions)
	if nlp != nil {
		nlpReport := summarize("nlp", nlp)
		r.NLP = &nlpReport
		r.EnergyJoules += nlp.Energy.Estimate(nlp, nlp.TotalInstructions)
	}
	return r
}

// WriteFile renders r as indented JSON and writes it atomically, so a reader
// polling the stats file never observes a partial write.
func WriteFile(path string, r Report) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("stats: marshal report: %w", err)
	}
	data = append(data, '\n')
	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("stats: write %s: %w", path, err)
	}
	return nil
}
