package proc

import "errors"

var (
	// ErrNoStat indicates that /proc/<pid>/stat was empty or malformed.
	ErrNoStat = errors.New("proc: malformed or empty stat")

	// ErrShortStat indicates that /proc/<pid>/stat had fewer fields than expected.
	ErrShortStat = errors.New("proc: short stat")

	// ErrNoRSS indicates that /proc/<pid>/status carried no VmRSS line
	// (kernel threads, zombies, or a process that exited mid-read).
	ErrNoRSS = errors.New("proc: no rss")

	// ErrNoCPU indicates that /proc/stat had no aggregate CPU line.
	ErrNoCPU = errors.New("proc: no cpu line")

	// ErrNoMemInfo indicates that MemTotal or MemFree was missing from /proc/meminfo.
	ErrNoMemInfo = errors.New("proc: no meminfo")
)
