package proc

// EnergyModel holds the per-component energy constants combined into a
// single joule estimate: active/idle core-cycle energy, per-level
// cache-access energy, and the per-transaction off-chip energy cost.
type EnergyModel struct {
	ActiveCoreEnergyPerCycle float64
	IdleCoreEnergyPerCycle   float64

	// CacheEnergyPerAccess is indexed by memhier.Level (L1, L2, L3).
	CacheEnergyPerAccess [3]float64

	// MemoryEnergyPerByte is charged per off-chip transaction, scaled by the
	// transaction size (512 bytes).
	MemoryEnergyPerByte float64
	TransactionBytes    int
}

// DefaultEnergyModel returns the reference energy constants: 0.494/3.307/
// 6.995 nJ per L1/L2/L3 access, 0.010558 nJ/byte off-chip.
func DefaultEnergyModel() EnergyModel {
	return EnergyModel{
		ActiveCoreEnergyPerCycle: 1.0,
		IdleCoreEnergyPerCycle:   0.1,
		CacheEnergyPerAccess:     [3]float64{0.494, 3.307, 6.995},
		MemoryEnergyPerByte:      0.010558,
		TransactionBytes:         512,
	}
}

// Estimate returns a joule estimate for the energy this processor has spent:
// retired instructions and idle cycles of its cores, accesses to each core's
// L1 and to the shared LLC, and every off-chip transaction. L2 accesses are
// not counted, and the insts argument does not enter the estimate.
func (e EnergyModel) Estimate(p *Processor, insts uint64) float64 {
	var active, idle uint64
	for _, c := range p.Cores {
		active += c.Stats.Retired
		idle += c.Stats.IdleCycles
	}
	energy := float64(active)*e.ActiveCoreEnergyPerCycle + float64(idle)*e.IdleCoreEnergyPerCycle

	for _, c := range p.Cores {
		if c.L1 == nil {
			continue
		}
		energy += float64(c.L1.Stats.TotalAccess) * e.CacheEnergyPerAccess[0]
	}
	if p.LLC != nil {
		energy += float64(p.LLC.Stats.TotalAccess) * e.CacheEnergyPerAccess[2]
	}

	if p.LLC != nil {
		offChipTrans := p.LLC.Stats.WriteBackMemory + p.LLC.Stats.TotalMiss
		energy += float64(offChipTrans) * float64(e.TransactionBytes) * e.MemoryEnergyPerByte
	}

	return energy
}
