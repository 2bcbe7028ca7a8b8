//go:build linux

package monitor

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ja7ad/tegramon/pkg/system/gpu"
	"github.com/ja7ad/tegramon/pkg/system/proc"
)

type recordingSink struct {
	mu    sync.Mutex
	lines []string
}

func (s *recordingSink) Log(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = append(s.lines, line)
}

func (s *recordingSink) Lines() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.lines...)
}

func (s *recordingSink) Count(line string) int {
	n := 0
	for _, l := range s.Lines() {
		if l == line {
			n++
		}
	}
	return n
}

type fakeGPU struct {
	mu       sync.Mutex
	startErr error
	starts   int
	stops    int
	interval int
	snap     gpu.Snapshot
	has      bool
}

func (g *fakeGPU) Start(intervalMs int) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.startErr != nil {
		return g.startErr
	}
	g.starts++
	g.interval = intervalMs
	return nil
}

func (g *fakeGPU) Stop() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.stops++
}

func (g *fakeGPU) Latest() (gpu.Snapshot, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.snap, g.has
}

func (g *fakeGPU) set(s gpu.Snapshot) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.snap, g.has = s, true
}

func (g *fakeGPU) Stops() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.stops
}

type recorder struct {
	mu        sync.Mutex
	procCPU   float64
	procRSS   uint64
	hostCPU   float64
	hostUsed  uint64
	gpuUtil   int
	gpuRAM    int64
	procCalls int
	gpuCall   int
}

func (r *recorder) RecordProcess(cpu float64, rss uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.procCPU, r.procRSS = cpu, rss
	r.procCalls++
}

func (r *recorder) RecordHost(cpu float64, used uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hostCPU, r.hostUsed = cpu, used
}

func (r *recorder) RecordGPU(util int, ram int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gpuUtil, r.gpuRAM = util, ram
	r.gpuCall++
}

// procTree is a fake /proc rooted in a temp dir.
type procTree struct {
	t    *testing.T
	root string
}

func newProcTree(t *testing.T) *procTree {
	t.Helper()
	pt := &procTree{t: t, root: t.TempDir()}
	pt.write("stat", "cpu  100 0 100 800 0 0 0 0 0 0\ncpu0 100 0 100 800 0 0 0 0 0 0\n")
	pt.write("meminfo", "MemTotal:        8192000 kB\nMemFree:         6144000 kB\nMemAvailable:    7000000 kB\n")
	return pt
}

func (pt *procTree) write(rel, content string) {
	pt.t.Helper()
	p := filepath.Join(pt.root, rel)
	require.NoError(pt.t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(pt.t, os.WriteFile(p, []byte(content), 0o644))
}

func (pt *procTree) spawn(pid int, start, utime, rssKB uint64) {
	pt.t.Helper()
	pt.write(fmt.Sprintf("%d/stat", pid), fmt.Sprintf(
		"%d (worker) S 1 %d %d 0 -1 4194560 100 0 0 0 %d 0 0 0 20 0 1 0 %d 1000000 200 18446744073709551615\n",
		pid, pid, pid, utime, start))
	pt.write(fmt.Sprintf("%d/status", pid), fmt.Sprintf("Name:\tworker\nVmRSS:\t  %d kB\n", rssKB))
}

func (pt *procTree) kill(pid int) {
	pt.t.Helper()
	require.NoError(pt.t, os.RemoveAll(filepath.Join(pt.root, fmt.Sprint(pid))))
}

func (pt *procTree) fs() proc.FS { return proc.NewFS(pt.root) }

var errBoom = errors.New("boom")
