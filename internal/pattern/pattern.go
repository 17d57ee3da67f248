// Package pattern implements the leaf-level pattern DSL engine (spec.md
// §4.3): parsing a "[not:]name[:arg...]" expression and evaluating it
// against an actual JSON value.
package pattern

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/reportportal/mcpconductor/internal/mcperr"
)

// Result is the outcome of evaluating one pattern expression.
type Result struct {
	Matched bool
	Message string // present when Matched is false, explains why
}

// ok/fail are small constructors kept local to avoid repeating the struct
// literal at every call site below.
func ok() Result                 { return Result{Matched: true} }
func fail(format string, a ...any) Result { return Result{Matched: false, Message: fmt.Sprintf(format, a...)} }

// Evaluate parses and runs expr (without any leading "match:" prefix)
// against actual. Negation ("not:name...") is handled here so every
// handler only ever implements the positive form.
func Evaluate(expr string, actual any, exists bool) (Result, error) {
	negated := false
	if strings.HasPrefix(expr, "not:") {
		negated = true
		expr = strings.TrimPrefix(expr, "not:")
	}

	res, err := evaluatePositive(expr, actual, exists)
	if err != nil {
		return Result{}, err
	}
	if negated {
		if res.Matched {
			return fail("not:%s: pattern matched but negation expected it not to", expr), nil
		}
		return ok(), nil
	}
	return res, nil
}

// evaluatePositive dispatches a (non-negated) pattern expression to its
// handler. name is everything before the first ':'; args are the remaining
// colon-separated tokens, parsed per-family below since some argument kinds
// (dates, cross-field expressions) legitimately contain colons themselves.
func evaluatePositive(expr string, actual any, exists bool) (Result, error) {
	name, rest := splitName(expr)
	reg, found := registry[name]
	if !found {
		suggestion := suggest(name)
		return Result{}, mcperr.Newf(mcperr.PatternUnknown, "unknown pattern %q", name).WithSuggestion(suggestion)
	}
	return reg(rest, actual, exists)
}

func splitName(expr string) (name, rest string) {
	idx := strings.IndexByte(expr, ':')
	if idx < 0 {
		return expr, ""
	}
	return expr[:idx], expr[idx+1:]
}

// handler evaluates one pattern family. rest is the raw remainder after
// "name:"; actual is the value under test; exists reports whether the field
// was present at all in the actual tree (distinct from JSON null).
type handler func(rest string, actual any, exists bool) (Result, error)

var registry map[string]handler

func init() {
	registry = map[string]handler{
		"type":                 handleType,
		"exists":               handleExists,
		"length":               handleLength,
		"arrayLength":          handleArrayLength,
		"count":                handleCount,
		"contains":             handleContains,
		"containsIgnoreCase":   handleContainsIgnoreCase,
		"startsWith":           handleStartsWith,
		"endsWith":             handleEndsWith,
		"equalsIgnoreCase":     handleEqualsIgnoreCase,
		"arrayContains":        handleArrayContains,
		"regex":                handleRegex,
		"greaterThan":          handleGreaterThan,
		"lessThan":             handleLessThan,
		"greaterThanOrEqual":   handleGreaterThanOrEqual,
		"lessThanOrEqual":      handleLessThanOrEqual,
		"between":              handleBetween,
		"range":                handleBetween,
		"equals":               handleEquals,
		"notEquals":            handleNotEquals,
		"approximately":        handleApproximately,
		"multipleOf":           handleMultipleOf,
		"divisibleBy":          handleMultipleOf,
		"decimalPlaces":        handleDecimalPlaces,
		"dateValid":            handleDateValid,
		"dateAfter":            handleDateAfter,
		"dateBefore":           handleDateBefore,
		"dateBetween":          handleDateBetween,
		"dateAge":              handleDateAge,
		"dateEquals":           handleDateEquals,
		"dateFormat":           handleDateFormat,
	}
}

// knownNames returns the sorted list of registered pattern names, used for
// Levenshtein-ranked suggestions.
func knownNames() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// suggest finds the closest registered pattern names to a typo'd name.
func suggest(bad string) string {
	type scored struct {
		name string
		dist int
	}
	var candidates []scored
	for _, n := range knownNames() {
		candidates = append(candidates, scored{n, levenshtein.ComputeDistance(bad, n)})
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].dist != candidates[j].dist {
			return candidates[i].dist < candidates[j].dist
		}
		return candidates[i].name < candidates[j].name
	})
	top := candidates
	if len(top) > 3 {
		top = top[:3]
	}
	names := make([]string, len(top))
	for i, c := range top {
		names[i] = c.name
	}
	return "did you mean: " + strings.Join(names, ", ") + "?"
}

// IsFallbackCandidate reports whether expr failed to resolve to a known
// name and should instead be treated by the backward-compatible fallback
// (literal regex if it contains a metacharacter, else substring match).
// This is only ever called by the validator after Evaluate returns a
// PatternUnknown error, matching spec.md §4.3's fallback clause.
func IsFallbackCandidate(err error) bool {
	return mcperr.CodeOf(err) == mcperr.PatternUnknown
}

var regexMetacharacters = ".^$*+?()[]{}|\\"

// EvaluateFallback treats expr as a literal regex if it contains any regex
// metacharacter, else as a plain substring test against the string form of
// actual.
func EvaluateFallback(expr string, actual any) (Result, error) {
	s := stringForm(actual)
	if strings.ContainsAny(expr, regexMetacharacters) {
		return handleRegex(expr, actual, true)
	}
	if strings.Contains(s, expr) {
		return ok(), nil
	}
	return fail("fallback substring %q not found in %q", expr, s), nil
}

// parseFloatArg parses a numeric token, used by every numeric pattern
// family below.
func parseFloatArg(s string) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("expected a number, got %q", s)
	}
	return f, nil
}

func splitArgs(rest string, n int) ([]string, error) {
	parts := strings.SplitN(rest, ":", n)
	if len(parts) != n {
		return nil, fmt.Errorf("expected %d argument(s), got %q", n, rest)
	}
	return parts, nil
}
