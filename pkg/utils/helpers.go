package utils

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseDuration safely parses a duration string like "10s", falling back to def when empty.
// A bare integer is read as seconds.
func ParseDuration(d string, def time.Duration) (time.Duration, error) {
	d = strings.TrimSpace(d)
	if d == "" {
		return def, nil
	}
	if duration, err := time.ParseDuration(d); err == nil {
		return duration, nil
	}
	if secs, err := strconv.Atoi(d); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second, nil
	}
	return 0, fmt.Errorf("invalid duration %q", d)
}

// MustDuration is ParseDuration for values already validated
func MustDuration(d string, def time.Duration) time.Duration {
	duration, err := ParseDuration(d, def)
	if err != nil {
		return def
	}
	return duration
}
