package metrics

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/shirou/gopsutil/v4/process"
)

// Stats is a point-in-time view of one OS process.
type Stats struct {
	PID        int       `json:"pid" yaml:"pid"`
	Name       string    `json:"name" yaml:"name"`
	User       string    `json:"user" yaml:"user"`
	CPUPercent float64   `json:"cpu_percent" yaml:"cpu_percent"`
	MemoryMB   float64   `json:"memory_mb" yaml:"memory_mb"`
	NumThreads int32     `json:"num_threads" yaml:"num_threads"`
	StartedAt  time.Time `json:"started_at" yaml:"started_at"`
}

// Sampler reads live stats for a pid.
type Sampler interface {
	Sample(pid int) (Stats, error)
}

// OSSampler samples processes of the local host.
type OSSampler struct{}

func (OSSampler) Sample(pid int) (Stats, error) { return Sample(pid) }

// Sample returns CPU, memory, owner and start time of pid.
// Fields the OS refuses to report are left zero.
func Sample(pid int) (Stats, error) {
	if pid <= 0 {
		return Stats{}, fmt.Errorf("invalid pid %d", pid)
	}
	proc, err := process.NewProcess(int32(pid))
	if err != nil {
		return Stats{}, fmt.Errorf("failed to create process handle: %w", err)
	}
	return statsOf(proc), nil
}

func statsOf(proc *process.Process) Stats {
	st := Stats{PID: int(proc.Pid)}
	if name, err := proc.Name(); err == nil {
		st.Name = name
	}
	if user, err := proc.Username(); err == nil {
		st.User = user
	}
	if cpu, err := proc.CPUPercent(); err == nil {
		st.CPUPercent = cpu
	} else {
		slog.Debug("Failed to get CPU percent", "pid", proc.Pid, "error", err)
	}
	if mem, err := proc.MemoryInfo(); err == nil && mem != nil {
		st.MemoryMB = float64(mem.RSS) / 1024 / 1024
	}
	if n, err := proc.NumThreads(); err == nil {
		st.NumThreads = n
	}
	if secs := procStartUnix(int(proc.Pid)); secs > 0 {
		st.StartedAt = time.Unix(secs, 0)
	}
	return st
}

// SystemProcesses lists every process visible to the caller, ordered by pid.
func SystemProcesses() ([]Stats, error) {
	procs, err := process.Processes()
	if err != nil {
		return nil, fmt.Errorf("failed to list processes: %w", err)
	}
	out := make([]Stats, 0, len(procs))
	for _, p := range procs {
		out = append(out, statsOf(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PID < out[j].PID })
	return out, nil
}
