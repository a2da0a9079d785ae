package engine

import "github.com/shirou/gopsutil/v4/mem"

// systemMemoryAvailable reports the host's currently available memory in
// bytes, for the additive system.memoryAvailable health field. A gopsutil
// failure degrades to zero rather than failing the health check.
func systemMemoryAvailable() uint64 {
	if vmStat, err := mem.VirtualMemory(); err == nil {
		return vmStat.Available
	}
	return 0
}
