package gpu

import (
	"regexp"
	"strconv"

	"github.com/ja7ad/tegramon/pkg/types"
)

// Unknown marks a Snapshot field the source line did not carry.
const Unknown = -1

// Snapshot is one parsed tegrastats line. Fields absent from the line are
// Unknown. Snapshots are values; the Reader hands out copies.
type Snapshot struct {
	RAMUsedMB      int
	RAMTotalMB     int
	GPUUtilPercent int // GR3D_FREQ load
	RawLine        string
}

// NewSnapshot returns a Snapshot with every metric Unknown.
func NewSnapshot(raw string) Snapshot {
	return Snapshot{
		RAMUsedMB:      Unknown,
		RAMTotalMB:     Unknown,
		GPUUtilPercent: Unknown,
		RawLine:        raw,
	}
}

// HasRAM reports whether both RAM figures are known.
func (s Snapshot) HasRAM() bool { return s.RAMUsedMB != Unknown && s.RAMTotalMB != Unknown }

// HasGPU reports whether the GPU load is known.
func (s Snapshot) HasGPU() bool { return s.GPUUtilPercent != Unknown }

// RAMUsed returns RAMUsedMB as Bytes, or 0 when unknown.
func (s Snapshot) RAMUsed() types.Bytes {
	if !s.HasRAM() {
		return 0
	}
	return types.FromMB(uint64(s.RAMUsedMB))
}

// mergeMissing fills the Unknown fields of s from prev.
func (s Snapshot) mergeMissing(prev Snapshot) Snapshot {
	if !s.HasRAM() && prev.HasRAM() {
		s.RAMUsedMB, s.RAMTotalMB = prev.RAMUsedMB, prev.RAMTotalMB
	}
	if !s.HasGPU() {
		s.GPUUtilPercent = prev.GPUUtilPercent
	}
	return s
}

var (
	// RAM 3099/7471MB (lfb 2x4MB) SWAP 0/3736MB ...
	ramRe = regexp.MustCompile(`RAM\s+(\d+)/(\d+)MB`)
	// GR3D_FREQ 42%@[764,0] on Xavier/Nano; GR3D_FREQ 42% on Orin.
	gr3dRe = regexp.MustCompile(`GR3D_FREQ\s+(\d+)%`)
)

// ParseLine extracts the RAM pair and the GR3D load from a tegrastats line.
// The two patterns match independently; ok is false when neither does.
// A fresh Snapshot is built for every line, so a field the line lacks is
// Unknown rather than carried over from an earlier line.
func ParseLine(line string) (Snapshot, bool) {
	snap := NewSnapshot(line)
	ok := false

	if m := ramRe.FindStringSubmatch(line); m != nil {
		used, err1 := strconv.Atoi(m[1])
		total, err2 := strconv.Atoi(m[2])
		if err1 == nil && err2 == nil {
			snap.RAMUsedMB, snap.RAMTotalMB = used, total
			ok = true
		}
	}

	if m := gr3dRe.FindStringSubmatch(line); m != nil {
		if pct, err := strconv.Atoi(m[1]); err == nil {
			snap.GPUUtilPercent = pct
			ok = true
		}
	}

	return snap, ok
}
