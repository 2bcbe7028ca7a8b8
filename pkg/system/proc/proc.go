//go:build linux

package proc

import (
	"bufio"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// DefaultRoot is where procfs is normally mounted.
const DefaultRoot = "/proc"

// ClockTicks returns the number of jiffies (clock ticks) per second.
// It first checks the env var CLK_TCK (useful for testing), otherwise
// falls back to 100 (common default).
//
// Note: On real systems, the authoritative way is `sysconf(_SC_CLK_TCK)`,
// but calling that requires cgo. For portability in a pure-Go library,
// this simplified approach is acceptable.
func ClockTicks() int {
	v, _ := strconv.Atoi(os.Getenv("CLK_TCK"))
	if v > 0 {
		return v
	}
	return 100
}

// FS reads kernel counters from a procfs tree. The zero value is not
// usable; use NewFS. Tests point it at a fake tree under t.TempDir().
type FS struct {
	root string
}

// NewFS returns an FS rooted at root, or at DefaultRoot when root is empty.
func NewFS(root string) FS {
	if root == "" {
		root = DefaultRoot
	}
	return FS{root: root}
}

// Root returns the procfs mount point this FS reads from.
func (p FS) Root() string { return p.root }

func (p FS) pidPath(pid int, name string) string {
	return filepath.Join(p.root, strconv.Itoa(pid), name)
}

// Exists reports whether a given PID currently exists, i.e. whether
// <root>/<pid> is present.
func (p FS) Exists(pid int) bool {
	if pid <= 0 {
		return false
	}
	_, err := os.Stat(filepath.Join(p.root, strconv.Itoa(pid)))
	return err == nil
}

//
// Per-PID readers
//

// Stat holds the /proc/<pid>/stat fields the monitor needs.
type Stat struct {
	UTime     uint64 // user CPU jiffies
	STime     uint64 // system CPU jiffies
	StartTime uint64 // jiffies after boot at which the process started
}

// ReadProcStat parses /proc/<pid>/stat.
//
// comm (2nd field) is in parens and may itself contain spaces and ')'.
// Everything up to the last ')' is skipped; the remaining fields are
// positional (utime=14th, stime=15th, starttime=22nd overall).
func (p FS) ReadProcStat(pid int) (Stat, error) {
	b, err := os.ReadFile(p.pidPath(pid, "stat"))
	if err != nil {
		return Stat{}, err
	}
	line := strings.TrimSpace(string(b))
	i := strings.LastIndexByte(line, ')')
	if i < 0 {
		return Stat{}, ErrNoStat
	}
	fields := strings.Fields(line[i+1:])

	get := func(idx int) (uint64, error) {
		if idx >= len(fields) {
			return 0, ErrShortStat
		}
		return strconv.ParseUint(fields[idx], 10, 64)
	}

	// Indexes relative to fields slice (fields[0] is state, 3rd overall).
	var st Stat
	if st.UTime, err = get(11); err != nil {
		return Stat{}, err
	}
	if st.STime, err = get(12); err != nil {
		return Stat{}, err
	}
	if st.StartTime, err = get(19); err != nil {
		return Stat{}, err
	}
	return st, nil
}

// ReadStatusRSSKB returns the VmRSS figure of /proc/<pid>/status in kB.
func (p FS) ReadStatusRSSKB(pid int) (uint64, error) {
	f, err := os.Open(p.pidPath(pid, "status"))
	if err != nil {
		return 0, err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		if !strings.HasPrefix(line, "VmRSS:") {
			continue
		}
		fs := strings.Fields(line)
		if len(fs) < 2 {
			return 0, ErrNoRSS
		}
		return strconv.ParseUint(fs[1], 10, 64)
	}
	if err := sc.Err(); err != nil {
		return 0, err
	}
	return 0, ErrNoRSS
}

//
// System-level readers
//

// CPUTimes is the aggregate "cpu" line of /proc/stat.
// Total is the sum of every time column present; Idle is the 4th column.
type CPUTimes struct {
	Idle  uint64
	Total uint64
}

// ReadSystemCPU parses the aggregate CPU line of /proc/stat.
// These are jiffy counters accumulated since boot.
func (p FS) ReadSystemCPU() (CPUTimes, error) {
	f, err := os.Open(filepath.Join(p.root, "stat"))
	if err != nil {
		return CPUTimes{}, err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		fs := strings.Fields(sc.Text())
		if len(fs) == 0 || fs[0] != "cpu" {
			continue
		}
		if len(fs) < 5 {
			return CPUTimes{}, ErrNoCPU
		}
		var t CPUTimes
		for i, s := range fs[1:] {
			v, _ := strconv.ParseUint(s, 10, 64)
			t.Total += v
			if i == 3 {
				t.Idle = v
			}
		}
		return t, nil
	}
	if err := sc.Err(); err != nil {
		return CPUTimes{}, err
	}
	return CPUTimes{}, ErrNoCPU
}

// ReadMemInfo returns MemTotal and MemFree from /proc/meminfo, in kB.
func (p FS) ReadMemInfo() (totalKB, freeKB uint64, err error) {
	f, err := os.Open(filepath.Join(p.root, "meminfo"))
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	var haveTotal, haveFree bool
	sc := bufio.NewScanner(f)
	for sc.Scan() && !(haveTotal && haveFree) {
		fs := strings.Fields(sc.Text())
		if len(fs) < 2 {
			continue
		}
		switch fs[0] {
		case "MemTotal:":
			totalKB, _ = strconv.ParseUint(fs[1], 10, 64)
			haveTotal = true
		case "MemFree:":
			freeKB, _ = strconv.ParseUint(fs[1], 10, 64)
			haveFree = true
		}
	}
	if err := sc.Err(); err != nil {
		return 0, 0, err
	}
	if !haveTotal || !haveFree {
		return 0, 0, ErrNoMemInfo
	}
	return totalKB, freeKB, nil
}
