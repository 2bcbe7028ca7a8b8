//go:build linux

// Package cgroup tells which control group a process runs in, so a
// containerized target can be recognised in the startup log.
package cgroup

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

var ErrNoMembership = errors.New("cgroup: no membership lines")

type Version int

const (
	Unsupported Version = iota // no cgroup membership reported
	V1                         // legacy multi-hierarchy cgroup v1
	V2                         // unified cgroup v2
	Hybrid                     // both v1 and v2 hierarchies
)

func (v Version) String() string {
	switch v {
	case V1:
		return "cgroup v1"
	case V2:
		return "cgroup v2"
	case Hybrid:
		return "cgroup hybrid"
	default:
		return "unsupported"
	}
}

// Membership is the parsed content of /proc/<pid>/cgroup.
type Membership struct {
	Version Version
	// Path is the unified (v2) path when present, otherwise the v1 path
	// of the memory controller, otherwise the first v1 path seen.
	Path string
}

// ForPID reads <procRoot>/<pid>/cgroup.
//
// Each line is "hierarchy-ID:controller-list:path"; the v2 entry has ID 0
// and an empty controller list.
func ForPID(procRoot string, pid int) (Membership, error) {
	f, err := os.Open(filepath.Join(procRoot, strconv.Itoa(pid), "cgroup"))
	if err != nil {
		return Membership{}, fmt.Errorf("open cgroup: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	var (
		v2Path  string
		v1Path  string
		memPath string
		hasV1   bool
		hasV2   bool
		sc      = bufio.NewScanner(f)
	)
	for sc.Scan() {
		parts := strings.SplitN(sc.Text(), ":", 3)
		if len(parts) != 3 {
			continue
		}
		id, ctrls, path := parts[0], parts[1], parts[2]

		if id == "0" && ctrls == "" {
			hasV2 = true
			v2Path = path
			continue
		}
		hasV1 = true
		if v1Path == "" {
			v1Path = path
		}
		for _, c := range strings.Split(ctrls, ",") {
			if c == "memory" {
				memPath = path
			}
		}
	}
	if err := sc.Err(); err != nil {
		return Membership{}, fmt.Errorf("scan cgroup: %w", err)
	}

	switch {
	case hasV1 && hasV2:
		if memPath != "" {
			return Membership{Version: Hybrid, Path: memPath}, nil
		}
		return Membership{Version: Hybrid, Path: v2Path}, nil
	case hasV2:
		return Membership{Version: V2, Path: v2Path}, nil
	case hasV1:
		if memPath != "" {
			return Membership{Version: V1, Path: memPath}, nil
		}
		return Membership{Version: V1, Path: v1Path}, nil
	default:
		return Membership{}, ErrNoMembership
	}
}

// Containerized reports whether the path looks like a container runtime
// scope rather than a plain systemd slice or the root group.
func (m Membership) Containerized() bool {
	for _, marker := range []string{"docker", "containerd", "kubepods", "libpod", "lxc"} {
		if strings.Contains(m.Path, marker) {
			return true
		}
	}
	return false
}
