package pattern

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// dateLayouts are tried in order when parsing a string as a date/time.
// RFC3339 first since it's what MCP servers overwhelmingly emit.
var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
	time.RFC1123Z,
	time.RFC1123,
}

func parseDate(s string) (time.Time, error) {
	if t, ok := parseEpochMillis(s); ok {
		return t, nil
	}
	var firstErr error
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return time.Time{}, fmt.Errorf("could not parse %q as a date: %w", s, firstErr)
}

// parseEpochMillis interprets an all-digit string as a Unix epoch
// millisecond timestamp, e.g. "1687686600000".
func parseEpochMillis(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return time.Time{}, false
		}
	}
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.UnixMilli(ms), true
}

// actualAsDate accepts either a date/epoch-ms string or a bare numeric
// (float64) epoch-ms value, since suite authors often compare against a
// raw JSON number rather than a quoted timestamp.
func actualAsDate(actual any) (time.Time, error) {
	switch v := actual.(type) {
	case string:
		return parseDate(v)
	case float64:
		return time.UnixMilli(int64(v)), nil
	default:
		return time.Time{}, fmt.Errorf("value is not a date (%s)", jsonTypeName(actual))
	}
}

// ParseDateValue parses actual as a date the same way the date:* pattern
// family does, reporting ok=false when actual cannot be interpreted as one.
// Exported so other packages (the crossField comparator) share the same
// date-detection rules instead of reimplementing them.
func ParseDateValue(actual any) (time.Time, bool) {
	t, err := actualAsDate(actual)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func handleDateValid(rest string, actual any, exists bool) (Result, error) {
	_, err := actualAsDate(actual)
	if err != nil {
		return fail("%s", err.Error()), nil
	}
	return ok(), nil
}

func handleDateAfter(rest string, actual any, exists bool) (Result, error) {
	got, err := actualAsDate(actual)
	if err != nil {
		return Result{}, fmt.Errorf("dateAfter: %w", err)
	}
	want, err := parseRelativeOrAbsolute(rest)
	if err != nil {
		return Result{}, fmt.Errorf("dateAfter: %w", err)
	}
	if got.After(want) {
		return ok(), nil
	}
	return fail("expected %s to be after %s", got, want), nil
}

func handleDateBefore(rest string, actual any, exists bool) (Result, error) {
	got, err := actualAsDate(actual)
	if err != nil {
		return Result{}, fmt.Errorf("dateBefore: %w", err)
	}
	want, err := parseRelativeOrAbsolute(rest)
	if err != nil {
		return Result{}, fmt.Errorf("dateBefore: %w", err)
	}
	if got.Before(want) {
		return ok(), nil
	}
	return fail("expected %s to be before %s", got, want), nil
}

func handleDateBetween(rest string, actual any, exists bool) (Result, error) {
	parts, err := splitArgs(rest, 2)
	if err != nil {
		return Result{}, fmt.Errorf("dateBetween: %w", err)
	}
	lo, err := parseRelativeOrAbsolute(parts[0])
	if err != nil {
		return Result{}, fmt.Errorf("dateBetween: lower bound %w", err)
	}
	hi, err := parseRelativeOrAbsolute(parts[1])
	if err != nil {
		return Result{}, fmt.Errorf("dateBetween: upper bound %w", err)
	}
	got, err := actualAsDate(actual)
	if err != nil {
		return Result{}, fmt.Errorf("dateBetween: %w", err)
	}
	if (got.After(lo) || got.Equal(lo)) && (got.Before(hi) || got.Equal(hi)) {
		return ok(), nil
	}
	return fail("expected %s to be between %s and %s", got, lo, hi), nil
}

// handleDateAge checks that actual falls within the last dur of real time,
// e.g. "dateAge:5m" passes for any timestamp within the last 5 minutes.
func handleDateAge(rest string, actual any, exists bool) (Result, error) {
	dur, err := time.ParseDuration(strings.TrimSpace(rest))
	if err != nil {
		return Result{}, fmt.Errorf("dateAge: %w", err)
	}
	got, err := actualAsDate(actual)
	if err != nil {
		return Result{}, fmt.Errorf("dateAge: %w", err)
	}
	age := time.Since(got)
	if age >= 0 && age <= dur {
		return ok(), nil
	}
	return fail("expected age %s to be within %s", age, dur), nil
}

func handleDateEquals(rest string, actual any, exists bool) (Result, error) {
	got, err := actualAsDate(actual)
	if err != nil {
		return Result{}, fmt.Errorf("dateEquals: %w", err)
	}
	want, err := parseRelativeOrAbsolute(rest)
	if err != nil {
		return Result{}, fmt.Errorf("dateEquals: %w", err)
	}
	if got.Equal(want) {
		return ok(), nil
	}
	return fail("expected %s to equal %s", got, want), nil
}

// handleDateFormat checks that actual parses successfully under an explicit
// Go reference-time layout, e.g. "dateFormat:2006-01-02".
func handleDateFormat(rest string, actual any, exists bool) (Result, error) {
	s, okS := asString(actual)
	if !okS {
		return Result{}, fmt.Errorf("dateFormat: value is not a string (%s)", jsonTypeName(actual))
	}
	if _, err := time.Parse(rest, s); err != nil {
		return fail("expected %q to match date format %q: %s", s, rest, err), nil
	}
	return ok(), nil
}

// parseRelativeOrAbsolute accepts either an absolute timestamp in one of
// dateLayouts, or a relative offset from now such as "-1h", "+30m", "now".
func parseRelativeOrAbsolute(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "now" {
		return time.Now(), nil
	}
	if len(s) > 0 && (s[0] == '+' || s[0] == '-') {
		dur, err := time.ParseDuration(s)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid relative offset %q: %w", s, err)
		}
		return time.Now().Add(dur), nil
	}
	return parseDate(s)
}
