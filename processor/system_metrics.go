package processor

import (
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/sirstudly/littlehotelier-sub001/errors"
)

// MemoryStats is host memory usage, logged at the end of each cycle.
type MemoryStats struct {
	UsedMB    float64
	TotalMB   float64
	UsedRatio float64
}

// getMemoryStats reads host memory usage.
func getMemoryStats() (MemoryStats, error) {
	v, err := mem.VirtualMemory()
	if err != nil {
		return MemoryStats{}, errors.Wrap(err, "failed to get memory stats")
	}

	const mb = 1024 * 1024
	stats := MemoryStats{
		UsedMB:  float64(v.Total-v.Available) / mb,
		TotalMB: float64(v.Total) / mb,
	}
	if v.Total > 0 {
		stats.UsedRatio = float64(v.Total-v.Available) / float64(v.Total)
	}
	return stats, nil
}
