//go:build linux

package proc

import (
	"log/slog"

	"github.com/ja7ad/tegramon/pkg/system/util"
)

// HostCPUMode selects how HostReader turns /proc/stat into a percentage.
type HostCPUMode int

const (
	// CPUSinceBoot reports 100*(1 - idle/total) over the counters
	// accumulated since boot. It is a point-in-time ratio, not a windowed
	// delta, so it tracks the long-run average and barely moves on short
	// spikes.
	CPUSinceBoot HostCPUMode = iota

	// CPUWindow reports the same ratio over the deltas between two
	// consecutive readings, matching the per-process figure. The first
	// reading has no previous window and falls back to CPUSinceBoot.
	CPUWindow
)

func (m HostCPUMode) String() string {
	switch m {
	case CPUWindow:
		return "window"
	default:
		return "boot"
	}
}

// ParseHostCPUMode maps "boot" and "window" to a mode.
func ParseHostCPUMode(s string) (HostCPUMode, bool) {
	switch s {
	case "", "boot":
		return CPUSinceBoot, true
	case "window":
		return CPUWindow, true
	default:
		return CPUSinceBoot, false
	}
}

// HostReader samples host-wide CPU and memory. In CPUSinceBoot mode it
// keeps no state across calls.
type HostReader struct {
	fs   FS
	mode HostCPUMode

	prev    CPUTimes
	hasPrev bool
}

func NewHostReader(fs FS, mode HostCPUMode) *HostReader {
	return &HostReader{fs: fs, mode: mode}
}

// SampleCPU returns host CPU utilization in percent. An unreadable
// counter source yields 0 for this tick.
func (h *HostReader) SampleCPU() float64 {
	now, err := h.fs.ReadSystemCPU()
	if err != nil {
		slog.Debug("host cpu unavailable", "err", err)
		return 0
	}
	if h.mode != CPUWindow {
		return busyPercent(now)
	}

	cur := now
	if h.hasPrev {
		cur = CPUTimes{
			Idle:  util.DeltaU64(now.Idle, h.prev.Idle),
			Total: util.DeltaU64(now.Total, h.prev.Total),
		}
	}
	h.prev, h.hasPrev = now, true
	return busyPercent(cur)
}

// SampleMemoryUsedKB returns MemTotal - MemFree in kB, or 0 when
// /proc/meminfo cannot be read.
//
// TODO: report an explicit "unavailable" state instead of 0 once the
// status line format grows a placeholder for it.
func (h *HostReader) SampleMemoryUsedKB() uint64 {
	total, free, err := h.fs.ReadMemInfo()
	if err != nil {
		slog.Debug("host meminfo unavailable", "err", err)
		return 0
	}
	return usedKB(total, free)
}

func (h *HostReader) Sample() HostSnapshot {
	return HostSnapshot{
		CPUPercent:   h.SampleCPU(),
		MemoryUsedKB: h.SampleMemoryUsedKB(),
	}
}

func busyPercent(t CPUTimes) float64 {
	if t.Total == 0 {
		return 0
	}
	return util.ClampPercent(100 * (1 - util.SafeDiv(float64(t.Idle), float64(t.Total))))
}

func usedKB(total, free uint64) uint64 {
	return util.DeltaU64(total, free)
}
