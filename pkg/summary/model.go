package summary

import "github.com/ja7ad/tegramon/pkg/types"

// Sample is what one monitor tick contributes.
// GPUUtilPercent < 0 means no GPU reading for the tick.
type Sample struct {
	CPUPercent     float64
	Memory         types.Bytes
	GPUUtilPercent int
}

// Result summarizes a session.
type Result struct {
	Samples    int
	CPUAvg     float64
	CPUPeak    float64
	MemAvg     types.Bytes
	MemPeak    types.Bytes
	GPUSamples int
	GPUAvg     float64
	GPUPeak    int
}
