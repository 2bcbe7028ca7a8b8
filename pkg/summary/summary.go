package summary

import "github.com/ja7ad/tegramon/pkg/types"

// Accumulator keeps running averages and peaks over a session. It is fed by
// the polling loop only and read after the loop ends, so it is not locked.
type Accumulator struct {
	count   int
	sumCPU  float64
	peakCPU float64
	sumMem  float64
	peakMem uint64

	gpuCount int
	sumGPU   float64
	peakGPU  int
}

func New() *Accumulator { return &Accumulator{} }

// Apply folds one tick into the running totals.
func (a *Accumulator) Apply(s Sample) {
	a.count++
	a.sumCPU += s.CPUPercent
	if s.CPUPercent > a.peakCPU {
		a.peakCPU = s.CPUPercent
	}
	a.sumMem += float64(s.Memory)
	if uint64(s.Memory) > a.peakMem {
		a.peakMem = uint64(s.Memory)
	}

	if s.GPUUtilPercent >= 0 {
		a.gpuCount++
		a.sumGPU += float64(s.GPUUtilPercent)
		if s.GPUUtilPercent > a.peakGPU {
			a.peakGPU = s.GPUUtilPercent
		}
	}
}

// Count returns the number of applied ticks.
func (a *Accumulator) Count() int { return a.count }

// Averages returns the session summary; the zero Result before any Apply.
func (a *Accumulator) Averages() Result {
	if a.count == 0 {
		return Result{}
	}
	n := float64(a.count)
	r := Result{
		Samples: a.count,
		CPUAvg:  a.sumCPU / n,
		CPUPeak: a.peakCPU,
		MemPeak: types.Bytes(a.peakMem),
		MemAvg:  types.Bytes(a.sumMem / n),
	}
	if a.gpuCount > 0 {
		r.GPUSamples = a.gpuCount
		r.GPUAvg = a.sumGPU / float64(a.gpuCount)
		r.GPUPeak = a.peakGPU
	}
	return r
}
