package cmd

import (
	"github.com/shirou/gopsutil/v4/mem"
)

// hostMemorySampler reports host RAM utilization via gopsutil. VRAM
// sampling is out of scope without a concrete accelerator binding, so it
// always reports unavailable.
type hostMemorySampler struct{}

func newMemorySampler() hostMemorySampler { return hostMemorySampler{} }

func (hostMemorySampler) SampleRAMPercent() float64 {
	v, err := mem.VirtualMemory()
	if err != nil {
		return 0
	}
	return v.UsedPercent
}

func (hostMemorySampler) SampleVRAMPercent() (float64, bool) {
	return 0, false
}
