//go:build linux

package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/ja7ad/tegramon/pkg/logsink"
	"github.com/ja7ad/tegramon/pkg/summary"
	"github.com/ja7ad/tegramon/pkg/system/proc"
)

// Host logs a whole-system status line every interval. It has no target
// process and therefore no validity checks; it runs until ctx is done.
type Host struct {
	cfg  Config
	sink logsink.Sink
	gpu  GPUSource
	host *proc.HostReader
	sum  *summary.Accumulator
}

func NewHost(sink logsink.Sink, gpu GPUSource, cfg *Config) *Host {
	c := cfg.withDefaults(DefaultHostInterval)
	if sink == nil {
		sink = logsink.Discard{}
	}
	return &Host{
		cfg:  c,
		sink: sink,
		gpu:  gpu,
		host: proc.NewHostReader(c.FS, c.HostCPUMode),
		sum:  summary.New(),
	}
}

// StartGPU starts the telemetry reader. Host mode keeps running without
// GPU data, so callers usually log the error and carry on.
func (h *Host) StartGPU() error {
	if err := h.gpu.Start(h.cfg.GPUIntervalMs); err != nil {
		return fmt.Errorf("%w: %w", ErrGPUStart, err)
	}
	return nil
}

// Run ticks immediately and then once per interval until ctx is done.
func (h *Host) Run(ctx context.Context) {
	defer h.gpu.Stop()

	ticker := time.NewTicker(h.cfg.Interval)
	defer ticker.Stop()

	for {
		h.Tick()
		select {
		case <-ctx.Done():
			h.sink.Log("Stopped by user (signal).")
			return
		case <-ticker.C:
		}
	}
}

// Tick samples the host and the latest GPU snapshot, logs the status line
// and returns it.
func (h *Host) Tick() string {
	s := h.host.Sample()
	used := s.MemoryUsed()
	snap, ok := h.gpu.Latest()

	line := fmt.Sprintf("CPU: %.2f%%, RAM: %d MB", s.CPUPercent, used.MB())
	gpuSample := -1
	if ok {
		line += fmt.Sprintf(", GR3D: %d%%, SYS_RAM: %d/%d MB",
			snap.GPUUtilPercent, snap.RAMUsedMB, snap.RAMTotalMB)
		if snap.HasGPU() {
			gpuSample = snap.GPUUtilPercent
		}
	} else {
		line += ", GR3D: N/A"
	}
	h.sink.Log(line)

	h.sum.Apply(summary.Sample{CPUPercent: s.CPUPercent, Memory: used, GPUUtilPercent: gpuSample})
	if m := h.cfg.Metrics; m != nil {
		m.RecordHost(s.CPUPercent, uint64(used))
		recordGPU(m, snap, ok)
	}
	return line
}

// Summary returns the running averages of the logged ticks.
func (h *Host) Summary() summary.Result { return h.sum.Averages() }

