package mcpmodel

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// parseDurationField accepts a JSON value that is either a bare number
// (milliseconds) or a string of the form "<number>ms" or "<number>s".
func parseDurationField(raw json.RawMessage) (time.Duration, error) {
	trimmed := strings.TrimSpace(string(raw))
	if len(trimmed) == 0 {
		return 0, fmt.Errorf("empty duration")
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, err
		}
		return ParseDurationString(s)
	}
	var ms float64
	if err := json.Unmarshal(raw, &ms); err != nil {
		return 0, fmt.Errorf("duration must be a number of milliseconds or a \"<n>ms\"/\"<n>s\" string: %w", err)
	}
	return time.Duration(ms * float64(time.Millisecond)), nil
}

// ParseDurationString parses "<number>ms" or "<number>s" into a
// time.Duration; a bare number is read as milliseconds. The config's
// startupTimeout and a suite file's performance and timeout fields share
// this grammar. The pattern engine's dateAge directive does not use it: it
// parses its argument with time.ParseDuration.
func ParseDurationString(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	switch {
	case strings.HasSuffix(s, "ms"):
		n, err := strconv.ParseFloat(strings.TrimSuffix(s, "ms"), 64)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q: %w", s, err)
		}
		return time.Duration(n * float64(time.Millisecond)), nil
	case strings.HasSuffix(s, "s"):
		n, err := strconv.ParseFloat(strings.TrimSuffix(s, "s"), 64)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q: %w", s, err)
		}
		return time.Duration(n * float64(time.Second)), nil
	default:
		n, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q: expected a number, \"<n>ms\", or \"<n>s\"", s)
		}
		return time.Duration(n * float64(time.Millisecond)), nil
	}
}
