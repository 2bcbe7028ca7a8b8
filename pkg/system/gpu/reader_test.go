//go:build linux

package gpu

import (
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// shReader runs script under /bin/sh in place of tegrastats. The
// "--interval N" suffix lands in $0 and $1 and is ignored.
func shReader(script string) *Reader {
	return NewReader("/bin/sh", "-c", script)
}

func TestReader_LatestNoneBeforeParse(t *testing.T) {
	r := shReader(`printf 'booting\nnot telemetry\n'; exec sleep 30`)
	_, ok := r.Latest()
	assert.False(t, ok, "nothing parsed before Start")

	require.NoError(t, r.Start(1000))
	defer r.Stop()

	time.Sleep(200 * time.Millisecond)
	_, ok = r.Latest()
	assert.False(t, ok, "unparsed lines do not publish")
	assert.True(t, r.Running())
}

func TestReader_PublishesLatest(t *testing.T) {
	script := fmt.Sprintf(`printf '%%s\n' 'GR3D_FREQ 5%%@[204,0]' '%s'; exec sleep 30`, xavierLine)
	r := shReader(script)
	require.NoError(t, r.Start(500))
	defer r.Stop()

	require.Eventually(t, func() bool {
		s, ok := r.Latest()
		return ok && s.GPUUtilPercent == 42
	}, 5*time.Second, 10*time.Millisecond)

	// Repeated polls without new input return the same snapshot.
	for i := 0; i < 3; i++ {
		s, ok := r.Latest()
		require.True(t, ok)
		assert.Equal(t, 3099, s.RAMUsedMB)
		assert.Equal(t, 7471, s.RAMTotalMB)
		assert.Equal(t, 42, s.GPUUtilPercent)
	}
}

func TestReader_MalformedLineKeepsSnapshot(t *testing.T) {
	r := shReader(`printf 'RAM 100/200MB GR3D_FREQ 9%%@[1,0]\ngarbage line\n'`)
	require.NoError(t, r.Start(1000))
	defer r.Stop()

	// The script exits after two lines; the reader stops on EOF having
	// consumed both.
	require.Eventually(t, func() bool { return !r.Running() }, 5*time.Second, 10*time.Millisecond)

	s, ok := r.Latest()
	require.True(t, ok)
	assert.Equal(t, 100, s.RAMUsedMB)
	assert.Equal(t, 9, s.GPUUtilPercent)
}

func TestReader_PartialLineDiscardsStaleRAM(t *testing.T) {
	r := shReader(`printf 'RAM 100/200MB GR3D_FREQ 9%%@[1,0]\nGR3D_FREQ 0%%@[204,0]\n'`)
	require.NoError(t, r.Start(1000))
	defer r.Stop()

	require.Eventually(t, func() bool { return !r.Running() }, 5*time.Second, 10*time.Millisecond)
	s, ok := r.Latest()
	require.True(t, ok)
	assert.Equal(t, Unknown, s.RAMUsedMB)
	assert.Equal(t, Unknown, s.RAMTotalMB)
	assert.Equal(t, 0, s.GPUUtilPercent)
}

func TestReader_CarryForward(t *testing.T) {
	r := shReader(`printf 'RAM 100/200MB GR3D_FREQ 9%%@[1,0]\nGR3D_FREQ 0%%@[204,0]\n'`)
	r.SetCarryForward(true)
	require.NoError(t, r.Start(1000))
	defer r.Stop()

	require.Eventually(t, func() bool { return !r.Running() }, 5*time.Second, 10*time.Millisecond)
	s, ok := r.Latest()
	require.True(t, ok)
	assert.Equal(t, 100, s.RAMUsedMB)
	assert.Equal(t, 200, s.RAMTotalMB)
	assert.Equal(t, 0, s.GPUUtilPercent)
}

func TestReader_StartFailure(t *testing.T) {
	r := NewReader("/nonexistent/tegrastats")
	err := r.Start(1000)
	require.ErrorIs(t, err, ErrStart)
	assert.False(t, r.Running())
	r.Stop() // no-op on a reader that never started
}

func TestReader_StartIdempotent(t *testing.T) {
	r := shReader(`exec sleep 30`)
	require.NoError(t, r.Start(1000))
	defer r.Stop()

	r.life.Lock()
	first := r.cmd.Process.Pid
	r.life.Unlock()

	require.NoError(t, r.Start(1000))
	r.life.Lock()
	assert.Equal(t, first, r.cmd.Process.Pid, "second Start must not launch another subprocess")
	r.life.Unlock()
}

func TestReader_StopTwice(t *testing.T) {
	r := shReader(`printf 'GR3D_FREQ 3%%@[1,0]\n'; exec sleep 30`)
	require.NoError(t, r.Start(1000))
	require.Eventually(t, func() bool { _, ok := r.Latest(); return ok }, 5*time.Second, 10*time.Millisecond)

	start := time.Now()
	r.Stop()
	assert.Less(t, time.Since(start), 5*time.Second, "Stop must not wait for the sleeping child")
	assert.False(t, r.Running())

	r.Stop()
	assert.False(t, r.Running())

	// The last snapshot stays readable after Stop.
	s, ok := r.Latest()
	require.True(t, ok)
	assert.Equal(t, 3, s.GPUUtilPercent)
}

func TestReader_StopConcurrent(t *testing.T) {
	r := shReader(`while :; do printf 'GR3D_FREQ 1%%@[1,0]\n'; sleep 0.01; done`)
	require.NoError(t, r.Start(10))

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Stop()
		}()
	}
	wg.Wait()
	assert.False(t, r.Running())

	before, _ := r.Latest()
	time.Sleep(50 * time.Millisecond)
	after, _ := r.Latest()
	assert.Equal(t, before, after, "no writes after Stop returns")
}

func TestReader_SubprocessExit(t *testing.T) {
	r := shReader(`exit 0`)
	require.NoError(t, r.Start(1000))
	require.Eventually(t, func() bool { return !r.Running() }, 5*time.Second, 10*time.Millisecond)
	r.Stop()

	// A reader that stopped on its own can be started again.
	r2 := shReader(`printf 'GR3D_FREQ 11%%@[1,0]\n'; exec sleep 30`)
	require.NoError(t, r2.Start(1000))
	defer r2.Stop()
	require.Eventually(t, func() bool { s, ok := r2.Latest(); return ok && s.GPUUtilPercent == 11 }, 5*time.Second, 10*time.Millisecond)
}

func TestReader_Restart(t *testing.T) {
	// The first run reports 11%, every later run 22%.
	marker := filepath.Join(t.TempDir(), "ran")
	r := shReader(fmt.Sprintf(
		`if [ -e %[1]q ]; then printf 'GR3D_FREQ 22%%%%@[1,0]\n'; exec sleep 30; else : > %[1]q; printf 'GR3D_FREQ 11%%%%@[1,0]\n'; fi`,
		marker))

	require.NoError(t, r.Start(1000))
	require.Eventually(t, func() bool { return !r.Running() }, 5*time.Second, 10*time.Millisecond)
	s, ok := r.Latest()
	require.True(t, ok)
	require.Equal(t, 11, s.GPUUtilPercent)

	require.NoError(t, r.Start(1000))
	defer r.Stop()
	require.Eventually(t, func() bool {
		s, ok := r.Latest()
		return ok && s.GPUUtilPercent == 22
	}, 5*time.Second, 10*time.Millisecond, "relaunched subprocess publishes its own line")
	assert.True(t, r.Running())
}
