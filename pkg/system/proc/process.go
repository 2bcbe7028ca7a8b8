//go:build linux

package proc

import (
	"fmt"
	"time"

	"github.com/ja7ad/tegramon/pkg/system/util"
)

// ProcessReader samples a single process.
//
// It holds exactly one CPU baseline (previous utime+stime and the wall
// clock at which it was read). A reader therefore tracks one Identity for
// its whole lifetime: asking for a different Identity discards the
// baseline and starts over at 0. Monitoring several processes needs one
// reader each. The baseline is not locked; only the polling loop may call
// CPUPercent.
type ProcessReader struct {
	fs     FS
	clkTck int
	now    func() time.Time

	baseID    Identity
	lastTicks uint64
	lastWall  time.Time
	primed    bool
}

func NewProcessReader(fs FS) *ProcessReader {
	return &ProcessReader{
		fs:     fs,
		clkTck: ClockTicks(),
		now:    time.Now,
	}
}

// CPUPercent returns the CPU used by id since the previous call, as a
// percentage of one core: 100 * (Δticks / CLK_TCK) / Δwall.
//
// The first call (and the first call after the identity changes) only
// records the baseline and returns 0. A failed read returns 0 and keeps
// the old baseline.
func (r *ProcessReader) CPUPercent(id Identity) float64 {
	st, err := r.fs.ReadProcStat(id.PID)
	if err != nil {
		return 0
	}
	ticks := st.UTime + st.STime
	wall := r.now()

	if !r.primed || r.baseID != id {
		r.baseID, r.lastTicks, r.lastWall, r.primed = id, ticks, wall, true
		return 0
	}

	diffTicks := util.DeltaU64(ticks, r.lastTicks)
	diffWall := wall.Sub(r.lastWall).Seconds()
	r.lastTicks, r.lastWall = ticks, wall

	cpuSec := float64(diffTicks) / float64(r.clkTck)
	return 100 * util.SafeDiv(cpuSec, diffWall)
}

// Reset drops the CPU baseline so the next CPUPercent call returns 0.
func (r *ProcessReader) Reset() { r.primed = false }

// ResidentMemoryKB returns VmRSS in kB, or 0 if the process or the field
// is gone. Callers check liveness first.
func (r *ProcessReader) ResidentMemoryKB(pid int) uint64 {
	kb, err := r.fs.ReadStatusRSSKB(pid)
	if err != nil {
		return 0
	}
	return kb
}

// StartTimeTicks returns the starttime field of /proc/<pid>/stat.
// On failure it returns -1 alongside the error.
func (r *ProcessReader) StartTimeTicks(pid int) (int64, error) {
	st, err := r.fs.ReadProcStat(pid)
	if err != nil {
		return -1, fmt.Errorf("start time of pid %d: %w", pid, err)
	}
	return int64(st.StartTime), nil
}

// Identity reads the current Identity of pid.
func (r *ProcessReader) Identity(pid int) (Identity, error) {
	start, err := r.StartTimeTicks(pid)
	if err != nil {
		return Identity{PID: pid, StartTime: -1}, err
	}
	return Identity{PID: pid, StartTime: start}, nil
}

func (r *ProcessReader) Sample(id Identity) ProcessSample {
	return ProcessSample{
		CPUPercent:       r.CPUPercent(id),
		ResidentMemoryKB: r.ResidentMemoryKB(id.PID),
	}
}
