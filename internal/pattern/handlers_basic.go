package pattern

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// stringForm renders actual the way a pattern argument would compare
// against it: strings pass through verbatim, everything else is rendered
// through its natural JSON/Go representation.
func stringForm(actual any) string {
	switch v := actual.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(b)
	}
}

func asString(actual any) (string, bool) {
	s, ok := actual.(string)
	return s, ok
}

func asArray(actual any) ([]any, bool) {
	a, ok := actual.([]any)
	return a, ok
}

func handleType(rest string, actual any, exists bool) (Result, error) {
	if !exists {
		return fail("field does not exist"), nil
	}
	want := strings.TrimSpace(rest)
	got := jsonTypeName(actual)
	if got == want {
		return ok(), nil
	}
	return fail("expected type %q, got %q", want, got), nil
}

// jsonTypeName classifies actual the way JSON Schema would: "string",
// "number", "boolean", "array", "object", or "null".
func jsonTypeName(actual any) string {
	switch actual.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case float64:
		return "number"
	case bool:
		return "boolean"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", actual)
	}
}

func handleExists(rest string, actual any, exists bool) (Result, error) {
	want := true
	if trimmed := strings.TrimSpace(rest); trimmed != "" {
		parsed, err := strconv.ParseBool(trimmed)
		if err != nil {
			return Result{}, fmt.Errorf("exists: invalid boolean argument %q", trimmed)
		}
		want = parsed
	}
	if exists == want {
		return ok(), nil
	}
	if want {
		return fail("expected field to exist but it did not"), nil
	}
	return fail("expected field not to exist but it did"), nil
}

// handleLength checks len() of a string, array, or object against an exact
// integer argument.
func handleLength(rest string, actual any, exists bool) (Result, error) {
	n, err := strconv.Atoi(strings.TrimSpace(rest))
	if err != nil {
		return Result{}, fmt.Errorf("length: expected an integer argument, got %q", rest)
	}
	got, err := lengthOf(actual)
	if err != nil {
		return Result{}, err
	}
	if got == n {
		return ok(), nil
	}
	return fail("expected length %d, got %d", n, got), nil
}

func handleArrayLength(rest string, actual any, exists bool) (Result, error) {
	arr, ok2 := asArray(actual)
	if !ok2 {
		return Result{}, fmt.Errorf("arrayLength: value is not an array (%s)", jsonTypeName(actual))
	}
	n, err := strconv.Atoi(strings.TrimSpace(rest))
	if err != nil {
		return Result{}, fmt.Errorf("arrayLength: expected an integer argument, got %q", rest)
	}
	if len(arr) == n {
		return ok(), nil
	}
	return fail("expected array length %d, got %d", n, len(arr)), nil
}

// handleCount is an alias family for arrayLength used by some suite authors
// interchangeably; spec.md documents them as synonyms.
func handleCount(rest string, actual any, exists bool) (Result, error) {
	return handleArrayLength(rest, actual, exists)
}

func lengthOf(actual any) (int, error) {
	switch v := actual.(type) {
	case string:
		return len(v), nil
	case []any:
		return len(v), nil
	case map[string]any:
		return len(v), nil
	default:
		return 0, fmt.Errorf("length: unsupported value type %s", jsonTypeName(actual))
	}
}

func handleContains(rest string, actual any, exists bool) (Result, error) {
	if arr, isArr := asArray(actual); isArr {
		return handleArrayContains(rest, arr, exists)
	}
	s, okS := asString(actual)
	if !okS {
		return Result{}, fmt.Errorf("contains: value is not a string or array (%s)", jsonTypeName(actual))
	}
	if strings.Contains(s, rest) {
		return ok(), nil
	}
	return fail("expected %q to contain %q", s, rest), nil
}

func handleContainsIgnoreCase(rest string, actual any, exists bool) (Result, error) {
	s, okS := asString(actual)
	if !okS {
		return Result{}, fmt.Errorf("containsIgnoreCase: value is not a string (%s)", jsonTypeName(actual))
	}
	if strings.Contains(strings.ToLower(s), strings.ToLower(rest)) {
		return ok(), nil
	}
	return fail("expected %q to contain %q (case-insensitive)", s, rest), nil
}

func handleStartsWith(rest string, actual any, exists bool) (Result, error) {
	s, okS := asString(actual)
	if !okS {
		return Result{}, fmt.Errorf("startsWith: value is not a string (%s)", jsonTypeName(actual))
	}
	if strings.HasPrefix(s, rest) {
		return ok(), nil
	}
	return fail("expected %q to start with %q", s, rest), nil
}

func handleEndsWith(rest string, actual any, exists bool) (Result, error) {
	s, okS := asString(actual)
	if !okS {
		return Result{}, fmt.Errorf("endsWith: value is not a string (%s)", jsonTypeName(actual))
	}
	if strings.HasSuffix(s, rest) {
		return ok(), nil
	}
	return fail("expected %q to end with %q", s, rest), nil
}

func handleEqualsIgnoreCase(rest string, actual any, exists bool) (Result, error) {
	s, okS := asString(actual)
	if !okS {
		return Result{}, fmt.Errorf("equalsIgnoreCase: value is not a string (%s)", jsonTypeName(actual))
	}
	if strings.EqualFold(s, rest) {
		return ok(), nil
	}
	return fail("expected %q to equal %q (case-insensitive)", s, rest), nil
}

// handleArrayContains checks whether rest appears as an element of actual.
// Two forms are accepted: a plain value ("arrayContains:2", matched via JSON-
// or-literal deep equality against each element), or a "field:value" form
// ("arrayContains:name:get_sfcc_class_info") that requires an object element
// with that field set to that value (compared as its string form).
func handleArrayContains(rest string, actual any, exists bool) (Result, error) {
	arr, okA := asArray(actual)
	if !okA {
		return Result{}, fmt.Errorf("arrayContains: value is not an array (%s)", jsonTypeName(actual))
	}
	if field, value, isFieldForm := splitArrayContainsField(rest, arr); isFieldForm {
		return arrayContainsField(arr, field, value)
	}
	var want any
	if err := json.Unmarshal([]byte(rest), &want); err != nil {
		want = rest
	}
	for _, el := range arr {
		if deepEqual(el, want) {
			return ok(), nil
		}
	}
	return fail("expected array to contain %v", want), nil
}

// splitArrayContainsField detects the "field:value" two-part form of
// arrayContains by splitting rest on its first colon and checking whether
// any object element of arr actually carries that candidate field name. This
// disambiguates it from a plain scalar value that happens to contain a
// colon (e.g. a timestamp or URL), which should fall through to the plain
// value-equality form instead.
func splitArrayContainsField(rest string, arr []any) (field, value string, ok bool) {
	idx := strings.Index(rest, ":")
	if idx < 0 {
		return "", "", false
	}
	field, value = rest[:idx], rest[idx+1:]
	for _, el := range arr {
		if obj, isObj := el.(map[string]any); isObj {
			if _, has := obj[field]; has {
				return field, value, true
			}
		}
	}
	return "", "", false
}

// arrayContainsField checks whether any object element of arr has field set
// to a value whose string form equals value.
func arrayContainsField(arr []any, field, value string) (Result, error) {
	for _, el := range arr {
		obj, isObj := el.(map[string]any)
		if !isObj {
			continue
		}
		got, has := obj[field]
		if !has {
			continue
		}
		if stringForm(got) == value {
			return ok(), nil
		}
	}
	return fail("expected array to contain an object with %q = %q", field, value), nil
}

// deepEqual compares two decoded-JSON values (float64/string/bool/nil/
// []any/map[string]any) for structural equality.
func deepEqual(a, b any) bool {
	switch av := a.(type) {
	case map[string]any:
		bv, ok := b.(map[string]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			bvv, ok := bv[k]
			if !ok || !deepEqual(v, bvv) {
				return false
			}
		}
		return true
	case []any:
		bv, ok := b.([]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !deepEqual(av[i], bv[i]) {
				return false
			}
		}
		return true
	default:
		return a == b
	}
}

func handleRegex(rest string, actual any, exists bool) (Result, error) {
	s, okS := asString(actual)
	if !okS {
		s = stringForm(actual)
	}
	re, err := compileRegex(rest)
	if err != nil {
		return Result{}, fmt.Errorf("regex: %w", err)
	}
	if re.MatchString(s) {
		return ok(), nil
	}
	return fail("expected %q to match regex %q", s, rest), nil
}
