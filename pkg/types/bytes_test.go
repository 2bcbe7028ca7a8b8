package types

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBytes_Humanized_Boundaries(t *testing.T) {
	cases := []struct {
		in   Bytes
		want string
	}{
		{Bytes(0), "0 B"},
		{Bytes(1023), "1023 B"},
		{Bytes(1024), "1.00 KB"},
		{Bytes(1024 * 1024), "1.00 MB"},
		{Bytes(1024 * 1024 * 1024), "1.00 GB"},
		{Bytes(1 << 40), "1.00 TB"},
	}
	for i, tc := range cases {
		t.Run(fmt.Sprintf("case_%d_%d", i, uint64(tc.in)), func(t *testing.T) {
			require.Equal(t, tc.want, tc.in.Humanized())
		})
	}
}

func TestBytes_FromKB(t *testing.T) {
	b := FromKB(2048)
	assert.Equal(t, uint64(2048), b.KB())
	assert.Equal(t, uint64(2), b.MB())
	assert.InDelta(t, 2.0, b.MBf(), 1e-12)
}

func TestBytes_MB_Truncates(t *testing.T) {
	// 1535 kB is just under 1.5 MB; status lines print whole MB like the kernel figures
	assert.Equal(t, uint64(1), FromKB(1535).MB())
	assert.Equal(t, uint64(0), FromKB(1023).MB())
}

func TestBytes_FromMB(t *testing.T) {
	assert.Equal(t, uint64(7471), FromMB(7471).MB())
	assert.Equal(t, "7.30 GB", FromMB(7471).Humanized())
}
