package offload

// SystemState is the system-wide telemetry vector collected at each
// ROI_BEGIN under Co-Simulation: instructions per second, energy per unit
// time, LLC miss rate, and off-chip transactions per instruction. The
// shipped default DecisionFunc does not consume it — it exists so a
// telemetry-aware policy can be swapped in without changing the
// DecisionFunc signature.
type SystemState struct {
	IPS                 float64
	EnergyPerTime        float64
	LLCMissRate          float64
	OffChipTransPerInst  float64
}

// DecisionFunc decides whether a region of interest should be offloaded,
// given the compiler's basic-block instruction mix and the current system
// telemetry.
type DecisionFunc func(bb BBInfo, sys SystemState) bool

// DefaultDecisionFunc offloads a region whenever its basic block is
// memory-bound, ignoring SystemState.
func DefaultDecisionFunc(bb BBInfo, _ SystemState) bool {
	return bb.MemoryBound()
}
