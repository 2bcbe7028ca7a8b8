//go:build linux

package gpu

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strconv"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

const (
	// DefaultCommand is NVIDIA's Jetson telemetry tool.
	DefaultCommand = "tegrastats"

	// DefaultIntervalMs matches the one second poll of the process monitor.
	DefaultIntervalMs = 1000

	maxLine  = 64 * 1024
	reapWait = 2 * time.Second
)

// Reader runs a telemetry subprocess and keeps the most recent parsed
// line in a single slot.
//
// One goroutine reads the subprocess output and is the only writer of the
// slot; Latest copies it out under the lock and never blocks on I/O.
// Lifecycle is Stopped -> Running -> Stopped. The reader also stops on its
// own when the subprocess output ends.
type Reader struct {
	name string
	args []string

	carryForward bool

	life   sync.Mutex // serializes Start/Stop
	cmd    *exec.Cmd
	stdout io.ReadCloser
	done   chan struct{}

	running atomic.Bool

	mu     sync.Mutex
	latest Snapshot
	has    bool
}

// NewReader returns a stopped Reader that will run name with args followed
// by "--interval <ms>". An empty name selects DefaultCommand.
func NewReader(name string, args ...string) *Reader {
	if name == "" {
		name = DefaultCommand
	}
	return &Reader{name: name, args: args}
}

// SetCarryForward makes a line that lacks a field keep the previously
// published value for it instead of reporting Unknown. Call before Start.
func (r *Reader) SetCarryForward(v bool) { r.carryForward = v }

// Start launches the subprocess with the given sampling interval and the
// background reader. It does not wait for the first line. Calling Start on
// a running Reader is a no-op.
func (r *Reader) Start(intervalMs int) error {
	r.life.Lock()
	defer r.life.Unlock()

	if r.running.Load() {
		return nil
	}
	// The previous subprocess ended by itself; reap it before relaunching.
	r.teardownLocked()

	if intervalMs <= 0 {
		intervalMs = DefaultIntervalMs
	}
	args := append(append([]string(nil), r.args...), "--interval", strconv.Itoa(intervalMs))

	cmd := exec.Command(r.name, args...)
	// Own process group, so Stop also reaches children of wrapper scripts.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStart, err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrStart, r.name, err)
	}

	r.cmd, r.stdout, r.done = cmd, stdout, make(chan struct{})
	r.running.Store(true)
	go r.readLoop(stdout, r.done)
	return nil
}

// Stop terminates the subprocess and waits for the background reader to
// exit; no snapshot is published after Stop returns. It is safe to call
// more than once and concurrently with the reader; only the first call
// after a Start has an effect.
func (r *Reader) Stop() {
	r.life.Lock()
	defer r.life.Unlock()
	r.teardownLocked()
}

// Running reports whether the background reader is still consuming output.
func (r *Reader) Running() bool { return r.running.Load() }

// Latest returns a copy of the most recent snapshot, or false if no line
// has parsed yet.
func (r *Reader) Latest() (Snapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.latest, r.has
}

func (r *Reader) teardownLocked() {
	if r.cmd == nil {
		return
	}
	r.running.Store(false)

	pid := r.cmd.Process.Pid
	if err := unix.Kill(-pid, unix.SIGTERM); err != nil && !errors.Is(err, unix.ESRCH) {
		slog.Debug("gpu: signal telemetry group", "pid", pid, "err", err)
	}
	// Closing our end unblocks a pending read even if the child lingers.
	_ = r.stdout.Close()
	<-r.done

	waitErr := make(chan error, 1)
	go func(cmd *exec.Cmd) { waitErr <- cmd.Wait() }(r.cmd)
	select {
	case <-waitErr:
	case <-time.After(reapWait):
		_ = unix.Kill(-pid, unix.SIGKILL)
		<-waitErr
	}

	r.cmd, r.stdout, r.done = nil, nil, nil
}

func (r *Reader) readLoop(stdout io.Reader, done chan<- struct{}) {
	defer close(done)
	defer r.running.Store(false)

	sc := bufio.NewScanner(stdout)
	sc.Buffer(make([]byte, 4096), maxLine)
	for sc.Scan() {
		snap, ok := ParseLine(sc.Text())
		if !ok {
			continue
		}
		r.publish(snap)
	}
	if err := sc.Err(); err != nil {
		slog.Debug("gpu: telemetry stream ended", "err", err)
	}
}

func (r *Reader) publish(snap Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.carryForward && r.has {
		snap = snap.mergeMissing(r.latest)
	}
	r.latest, r.has = snap, true
}
