//go:build linux

// Package monitor drives a sampling session: the per-process validity state
// machine (Process) and the whole-host status loop (Host).
package monitor

import (
	"time"

	"github.com/ja7ad/tegramon/pkg/system/gpu"
	"github.com/ja7ad/tegramon/pkg/system/proc"
)

// GPUSource is the telemetry side of a session. *gpu.Reader implements it.
type GPUSource interface {
	Start(intervalMs int) error
	Stop()
	Latest() (gpu.Snapshot, bool)
}

// Recorder receives every tick's readings. *telemetry.Metrics implements it.
// Negative values mean "not sampled this tick".
type Recorder interface {
	RecordProcess(cpuPercent float64, rssBytes uint64)
	RecordHost(cpuPercent float64, usedBytes uint64)
	RecordGPU(utilPercent int, ramUsedBytes int64)
}

// Config tunes a session. Zero fields fall back to defaults.
type Config struct {
	FS            proc.FS
	Interval      time.Duration
	GPUIntervalMs int
	HostCPUMode   proc.HostCPUMode
	Metrics       Recorder
}

const (
	DefaultProcessInterval = time.Second
	DefaultHostInterval    = 5 * time.Second
)

func (c *Config) withDefaults(interval time.Duration) Config {
	merged := Config{
		FS:            proc.NewFS(""),
		Interval:      interval,
		GPUIntervalMs: gpu.DefaultIntervalMs,
	}
	if c == nil {
		return merged
	}
	if c.FS.Root() != "" {
		merged.FS = c.FS
	}
	if c.Interval > 0 {
		merged.Interval = c.Interval
	}
	if c.GPUIntervalMs > 0 {
		merged.GPUIntervalMs = c.GPUIntervalMs
	}
	merged.HostCPUMode = c.HostCPUMode
	merged.Metrics = c.Metrics
	return merged
}

func recordGPU(m Recorder, snap gpu.Snapshot, ok bool) {
	if m == nil || !ok {
		return
	}
	ram := int64(-1)
	if snap.HasRAM() {
		ram = int64(snap.RAMUsed())
	}
	m.RecordGPU(snap.GPUUtilPercent, ram)
}
