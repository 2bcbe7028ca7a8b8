package proc

import "github.com/ja7ad/tegramon/pkg/types"

// Identity pins a PID to one specific process. StartTime is assigned by the
// kernel at creation, so a later, unrelated process that reuses the same
// PID carries a different StartTime.
type Identity struct {
	PID       int
	StartTime int64
}

// HostSnapshot is one host-wide reading. It is recomputed every poll.
type HostSnapshot struct {
	CPUPercent   float64
	MemoryUsedKB uint64
}

// MemoryUsed returns MemoryUsedKB as Bytes.
func (h HostSnapshot) MemoryUsed() types.Bytes { return types.FromKB(h.MemoryUsedKB) }

// ProcessSample is one reading of the tracked process.
type ProcessSample struct {
	CPUPercent       float64
	ResidentMemoryKB uint64
}

// ResidentMemory returns ResidentMemoryKB as Bytes.
func (p ProcessSample) ResidentMemory() types.Bytes { return types.FromKB(p.ResidentMemoryKB) }
