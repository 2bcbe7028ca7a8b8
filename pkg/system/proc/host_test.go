//go:build linux

package proc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHostReader_SinceBoot(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "stat", "cpu  100 0 50 800 20 5 5 20 0 0\n")
	h := NewHostReader(NewFS(root), CPUSinceBoot)

	assert.InDelta(t, 20.0, h.SampleCPU(), 1e-9)

	// Stateless: a second reading of the same counters gives the same ratio.
	assert.InDelta(t, 20.0, h.SampleCPU(), 1e-9)
}

func TestHostReader_Window(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "stat", "cpu  100 0 50 800 20 5 5 20 0 0\n")
	h := NewHostReader(NewFS(root), CPUWindow)

	// First reading has no window and falls back to the since-boot ratio.
	assert.InDelta(t, 20.0, h.SampleCPU(), 1e-9)

	// +100 total, +50 idle => 50% busy over the window.
	writeFile(t, root, "stat", "cpu  150 0 50 850 20 5 5 20 0 0\n")
	assert.InDelta(t, 50.0, h.SampleCPU(), 1e-9)

	// No movement at all => 0.
	assert.InDelta(t, 0.0, h.SampleCPU(), 1e-9)
}

func TestHostReader_CPUUnreadable(t *testing.T) {
	h := NewHostReader(NewFS(t.TempDir()), CPUSinceBoot)
	assert.Equal(t, 0.0, h.SampleCPU())
}

func TestHostReader_MemoryUsed(t *testing.T) {
	cases := []struct {
		name        string
		total, free uint64
		want        uint64
	}{
		{"typical", 7650304, 1048576, 6601728},
		{"free_equals_total", 4096, 4096, 0},
		{"all_used", 4096, 0, 4096},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, usedKB(tc.total, tc.free))
		})
	}

	root := t.TempDir()
	writeFile(t, root, "meminfo", "MemTotal:        7650304 kB\nMemFree:         1048576 kB\n")
	h := NewHostReader(NewFS(root), CPUSinceBoot)
	assert.Equal(t, uint64(6601728), h.SampleMemoryUsedKB())
}

func TestHostReader_MemoryUnreadable(t *testing.T) {
	h := NewHostReader(NewFS(t.TempDir()), CPUSinceBoot)
	assert.Equal(t, uint64(0), h.SampleMemoryUsedKB())
}

func TestHostReader_Sample(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "stat", "cpu  100 0 50 800 20 5 5 20 0 0\n")
	writeFile(t, root, "meminfo", "MemTotal:        2048 kB\nMemFree:         1024 kB\n")

	snap := NewHostReader(NewFS(root), CPUSinceBoot).Sample()
	assert.InDelta(t, 20.0, snap.CPUPercent, 1e-9)
	assert.Equal(t, uint64(1024), snap.MemoryUsedKB)
	assert.Equal(t, uint64(1024*1024), uint64(snap.MemoryUsed()))
}

func TestParseHostCPUMode(t *testing.T) {
	m, ok := ParseHostCPUMode("window")
	assert.True(t, ok)
	assert.Equal(t, CPUWindow, m)

	m, ok = ParseHostCPUMode("")
	assert.True(t, ok)
	assert.Equal(t, CPUSinceBoot, m)

	_, ok = ParseHostCPUMode("delta")
	assert.False(t, ok)
	assert.Equal(t, "window", CPUWindow.String())
	assert.Equal(t, "boot", CPUSinceBoot.String())
}
