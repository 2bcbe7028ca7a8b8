//go:build linux

package monitor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ja7ad/tegramon/pkg/system/gpu"
	"github.com/ja7ad/tegramon/pkg/system/proc"
)

func TestHost_TickWithoutGPU(t *testing.T) {
	pt := newProcTree(t)
	sink := &recordingSink{}
	h := NewHost(sink, &fakeGPU{}, &Config{FS: pt.fs()})

	// 800 idle of 1000 total since boot.
	line := h.Tick()
	assert.Equal(t, "CPU: 20.00%, RAM: 2000 MB, GR3D: N/A", line)
	assert.Equal(t, []string{line}, sink.Lines())
}

func TestHost_TickWithGPU(t *testing.T) {
	pt := newProcTree(t)
	sink := &recordingSink{}
	g := &fakeGPU{}
	rec := &recorder{}
	snap, ok := gpu.ParseLine("RAM 3099/7471MB (lfb 2x4MB) SWAP 0/3736MB CPU [12%@1190] GR3D_FREQ 7%@[305]")
	require.True(t, ok)
	g.set(snap)
	h := NewHost(sink, g, &Config{FS: pt.fs(), Metrics: rec})

	assert.Equal(t, "CPU: 20.00%, RAM: 2000 MB, GR3D: 7%, SYS_RAM: 3099/7471 MB", h.Tick())
	assert.InDelta(t, 20.0, rec.hostCPU, 1e-9)
	assert.Equal(t, 7, rec.gpuUtil)

	res := h.Summary()
	assert.Equal(t, 1, res.Samples)
	assert.Equal(t, 1, res.GPUSamples)
}

func TestHost_WindowMode(t *testing.T) {
	pt := newProcTree(t)
	h := NewHost(nil, &fakeGPU{}, &Config{FS: pt.fs(), HostCPUMode: proc.CPUWindow})

	h.Tick()
	// +100 busy, +100 idle since the previous reading.
	pt.write("stat", "cpu  200 0 100 900 0 0 0 0 0 0\n")
	assert.Equal(t, "CPU: 50.00%, RAM: 2000 MB, GR3D: N/A", h.Tick())
}

func TestHost_StartGPUFailure(t *testing.T) {
	h := NewHost(nil, &fakeGPU{startErr: errBoom}, nil)
	err := h.StartGPU()
	require.ErrorIs(t, err, ErrGPUStart)
	require.ErrorIs(t, err, errBoom)
}

func TestHost_RunUntilCancel(t *testing.T) {
	pt := newProcTree(t)
	sink := &recordingSink{}
	g := &fakeGPU{}
	h := NewHost(sink, g, &Config{FS: pt.fs(), Interval: 5 * time.Millisecond})
	require.NoError(t, h.StartGPU())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return len(sink.Lines()) >= 3 }, time.Second, time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	lines := sink.Lines()
	assert.Equal(t, "Stopped by user (signal).", lines[len(lines)-1])
	assert.Equal(t, 1, g.Stops())
}
