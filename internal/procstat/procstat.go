package procstat

import (
	"fmt"

	"github.com/shirou/gopsutil/v3/process"
)

// Stats is a resource usage sample of one process
type Stats struct {
	PID        int32
	CPUPercent float64
	MemoryMB   float64 // RSS in MB
	NumThreads int32
	Children   int
}

// Sample collects the current resource usage of pid. Fields which cannot be read (for
// example because the process is exiting) are left at zero.
func Sample(pid int32) (*Stats, error) {
	p, err := process.NewProcess(pid)
	if err != nil {
		return nil, fmt.Errorf("process not found: %w", err)
	}

	stats := &Stats{PID: pid}

	if cpuPercent, err := p.CPUPercent(); err == nil {
		stats.CPUPercent = cpuPercent
	}

	if memInfo, err := p.MemoryInfo(); err == nil {
		stats.MemoryMB = float64(memInfo.RSS) / 1024 / 1024
	}

	if numThreads, err := p.NumThreads(); err == nil {
		stats.NumThreads = numThreads
	}

	if children, err := p.Children(); err == nil {
		stats.Children = len(children)
	}

	return stats, nil
}

// String renders the sample as the payload of a control line.
func (s *Stats) String() string {
	return fmt.Sprintf("stats cpu=%.1f rss=%.1fMB threads=%d children=%d", s.CPUPercent, s.MemoryMB, s.NumThreads, s.Children)
}
