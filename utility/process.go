package utility

import (
	"fmt"
	"os"

	"github.com/shirou/gopsutil/v3/process"
)

// ProcessStats is the resource usage of the training process.
type ProcessStats struct {
	RSSMiB     uint64
	CPUPercent float64
}

// ReadProcessStats samples the resident memory and CPU usage of this process.
func ReadProcessStats() (ProcessStats, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return ProcessStats{}, fmt.Errorf("failed to get process: %w", err)
	}
	memInfo, err := proc.MemoryInfo()
	if err != nil {
		return ProcessStats{}, fmt.Errorf("failed to get memory info: %w", err)
	}
	cpuPercent, err := proc.CPUPercent()
	if err != nil {
		return ProcessStats{}, fmt.Errorf("failed to get CPU percent: %w", err)
	}
	return ProcessStats{RSSMiB: memInfo.RSS / 1024 / 1024, CPUPercent: cpuPercent}, nil
}
