package types

import "fmt"

// Bytes is a uint64 wrapper representing a size in bytes.
type Bytes uint64

// FromKB converts a kernel "kB" figure (1024 base) to Bytes.
func FromKB(kb uint64) Bytes { return Bytes(kb * 1024) }

// FromMB converts a megabyte figure (1024 base) to Bytes.
func FromMB(mb uint64) Bytes { return Bytes(mb * 1024 * 1024) }

// Humanized renders b with two decimals in the largest fitting binary
// unit, e.g. "1.50 GB". Values under 1 KB print as whole bytes.
func (b Bytes) Humanized() string {
	units := []string{"KB", "MB", "GB", "TB"}
	if b < 1<<10 {
		return fmt.Sprintf("%d B", uint64(b))
	}
	v, i := float64(b)/(1<<10), 0
	for v >= 1024 && i < len(units)-1 {
		v /= 1024
		i++
	}
	return fmt.Sprintf("%.2f %s", v, units[i])
}

// KB returns whole kilobytes, truncated.
func (b Bytes) KB() uint64 { return uint64(b) / 1024 }

// MB returns whole megabytes, truncated. Status lines print this figure.
func (b Bytes) MB() uint64 { return uint64(b) / (1024 * 1024) }

// MBf returns fractional megabytes.
func (b Bytes) MBf() float64 { return float64(b) / (1024 * 1024) }
