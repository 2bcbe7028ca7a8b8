//go:build linux

package monitor

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ja7ad/tegramon/pkg/logsink"
	"github.com/ja7ad/tegramon/pkg/summary"
	"github.com/ja7ad/tegramon/pkg/system/proc"
	"github.com/ja7ad/tegramon/pkg/types"
)

// Process monitors one target PID until it exits, its PID is taken over by
// another process, or a stop is requested.
//
// Identity is captured once at Init. Every tick compares the live start
// time against it; a mismatch means the PID was recycled and anything read
// from it now describes a different process, so the session ends.
type Process struct {
	pid  int
	cfg  Config
	sink logsink.Sink
	gpu  GPUSource

	host   *proc.HostReader
	reader *proc.ProcessReader
	sum    *summary.Accumulator

	baseline proc.Identity

	// mu serializes terminal transitions: Stop may run on another goroutine
	// while Run is in the middle of a tick.
	mu                sync.Mutex
	state             atomic.Int32
	terminationLogged bool
	reusedLogged      bool
	stopLogged        bool

	stopRequested atomic.Bool
	wake          chan struct{}
}

func NewProcess(pid int, sink logsink.Sink, gpu GPUSource, cfg *Config) *Process {
	c := cfg.withDefaults(DefaultProcessInterval)
	if sink == nil {
		sink = logsink.Discard{}
	}
	return &Process{
		pid:    pid,
		cfg:    c,
		sink:   sink,
		gpu:    gpu,
		host:   proc.NewHostReader(c.FS, c.HostCPUMode),
		reader: proc.NewProcessReader(c.FS),
		sum:    summary.New(),
		wake:   make(chan struct{}, 1),
	}
}

// PID returns the monitored PID.
func (p *Process) PID() int { return p.pid }

// State returns the current session state.
func (p *Process) State() State { return State(p.state.Load()) }

// Baseline returns the identity captured by Init.
func (p *Process) Baseline() proc.Identity { return p.baseline }

// Summary returns the running averages of the logged ticks.
func (p *Process) Summary() summary.Result { return p.sum.Averages() }

// Init checks that the target exists, captures its identity, starts the
// GPU reader and takes the warm-up CPU sample. Any failure leaves the
// session in StateFailed.
func (p *Process) Init() error {
	if p.State() != StateInit {
		return ErrAlreadyInitialized
	}

	if !p.cfg.FS.Exists(p.pid) {
		p.state.Store(int32(StateFailed))
		return fmt.Errorf("%w: pid %d not in %s", ErrProcessNotFound, p.pid, p.cfg.FS.Root())
	}

	id, err := p.reader.Identity(p.pid)
	if err != nil {
		p.state.Store(int32(StateFailed))
		return fmt.Errorf("%w: %w", ErrIdentityUnreadable, err)
	}

	if err := p.gpu.Start(p.cfg.GPUIntervalMs); err != nil {
		p.state.Store(int32(StateFailed))
		return fmt.Errorf("%w: %w", ErrGPUStart, err)
	}

	p.baseline = id
	p.reader.CPUPercent(id)
	p.state.Store(int32(StateRunning))
	return nil
}

// Run polls once per interval while the session is running and returns
// the terminal state. Cancelling ctx counts as a user stop.
func (p *Process) Run(ctx context.Context) State {
	if p.State() != StateRunning {
		return p.State()
	}
	defer p.gpu.Stop()

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.Stop()
			return p.State()
		case <-p.wake:
		case <-ticker.C:
		}

		if p.stopRequested.Load() {
			p.Stop()
			return p.State()
		}
		if p.State() != StateRunning {
			return p.State()
		}
		if !p.CheckValidity() {
			return p.State()
		}
		p.CollectAndLog()
	}
}

// RequestStop asks Run to stop at its next iteration. It does no I/O and
// takes no locks, so it is safe from any goroutine, including a signal
// forwarder; the CLI calls it when its signal context is cancelled.
func (p *Process) RequestStop() {
	p.stopRequested.Store(true)
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// Stop ends a running session with one "stopped by user" line and stops
// the GPU reader. Calls after the session has ended do nothing.
func (p *Process) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.State() != StateRunning {
		return
	}
	p.state.Store(int32(StateStopped))
	if !p.stopLogged {
		p.stopLogged = true
		p.sink.Log(p.tag() + " Stopped by user (signal).")
	}
	p.gpu.Stop()
}

// CheckValidity reports whether the target is still the process captured
// at Init. The first failed check moves the session to StateTerminated
// (PID gone) or StateReused (PID held by a different process) and logs one
// line; later checks return false without logging again.
func (p *Process) CheckValidity() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.State() != StateRunning {
		return false
	}

	if !p.cfg.FS.Exists(p.pid) {
		p.endLocked(StateTerminated)
		return false
	}

	id, err := p.reader.Identity(p.pid)
	if err != nil {
		// Exited between the two reads.
		if !p.cfg.FS.Exists(p.pid) {
			p.endLocked(StateTerminated)
			return false
		}
		// Present but unreadable: a transient failure, try again next tick.
		return true
	}
	if id != p.baseline {
		p.endLocked(StateReused)
		return false
	}
	return true
}

func (p *Process) endLocked(s State) {
	switch s {
	case StateTerminated:
		if !p.terminationLogged {
			p.terminationLogged = true
			p.sink.Log(p.tag() + " Process terminated.")
		}
	case StateReused:
		if !p.reusedLogged {
			p.reusedLogged = true
			p.sink.Log(p.tag() + " PID reused by another process.")
		}
	}
	p.state.Store(int32(s))
}

// CollectAndLog samples the target, the host and the latest GPU snapshot
// and writes one status line. GPU reads 0 until a snapshot exists. Once the
// session has ended it writes nothing, so no status line follows a
// terminal line.
func (p *Process) CollectAndLog() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.State() != StateRunning {
		return
	}

	cpu := p.reader.CPUPercent(p.baseline)
	rss := types.FromKB(p.reader.ResidentMemoryKB(p.pid))
	sys := types.FromKB(p.host.SampleMemoryUsedKB())

	snap, ok := p.gpu.Latest()
	gpuUtil := 0
	if ok {
		gpuUtil = snap.GPUUtilPercent
	}

	p.sink.Log(fmt.Sprintf("%s CPU: %.2f%%, PROC_RAM: %d MB, SYS_RAM: %d MB, GPU: %d%%",
		p.tag(), cpu, rss.MB(), sys.MB(), gpuUtil))

	gpuSample := -1
	if ok && snap.HasGPU() {
		gpuSample = snap.GPUUtilPercent
	}
	p.sum.Apply(summary.Sample{CPUPercent: cpu, Memory: rss, GPUUtilPercent: gpuSample})

	if m := p.cfg.Metrics; m != nil {
		m.RecordProcess(cpu, uint64(rss))
		m.RecordHost(-1, uint64(sys))
		recordGPU(m, snap, ok)
	}
}

func (p *Process) tag() string { return fmt.Sprintf("[PID:%d]", p.pid) }
