package util

import (
	"fmt"
	"strconv"
	"strings"
)

// ParsePID parses a single positive decimal PID.
func ParsePID(s string) (int, error) {
	s = strings.TrimSpace(s)
	pid, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid PID %q: %w", s, err)
	}
	if pid <= 0 {
		return 0, fmt.Errorf("invalid PID %q: must be positive", s)
	}
	return pid, nil
}
