// Package validate implements the recursive structural comparison between
// an expected tree (which may embed "match:" pattern-expression leaves and
// directive objects) and an actual decoded-JSON response.
package validate

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/reportportal/mcpconductor/internal/mcperr"
	"github.com/reportportal/mcpconductor/internal/mcpmodel"
	"github.com/reportportal/mcpconductor/internal/pattern"
)

const matchPrefix = "match:"

// Response validates a raw JSON response against an expected tree (any Go
// value produced by decoding YAML/JSON, i.e. nil/bool/float64/string/
// []any/map[string]any). It never stops at the first mismatch.
func Response(expected any, rawActual json.RawMessage) mcpmodel.ValidationResult {
	var actual any
	if len(rawActual) > 0 {
		if err := json.Unmarshal(rawActual, &actual); err != nil {
			return mcpmodel.NewValidationResult([]mcpmodel.ValidationError{{
				Type:    mcpmodel.ErrTypeMismatch,
				Path:    "$",
				Message: fmt.Sprintf("could not decode actual response as JSON: %s", err),
			}})
		}
	}
	var errs []mcpmodel.ValidationError
	walk(expected, actual, true, "$", &errs)
	return mcpmodel.NewValidationResult(errs)
}

// walk is the single recursive comparison step. present reports whether the
// field existed at all in actual's parent (vs. being legitimately null).
func walk(expected, actual any, present bool, path string, errs *[]mcpmodel.ValidationError) {
	if s, isStr := expected.(string); isStr && strings.HasPrefix(s, matchPrefix) {
		matchLeaf(strings.TrimPrefix(s, matchPrefix), actual, present, path, errs)
		return
	}

	if arr, isArr := expected.([]any); isArr {
		walkArray(arr, actual, path, errs)
		return
	}

	if obj, isObj := expected.(map[string]any); isObj {
		walkObject(obj, actual, path, errs)
		return
	}

	walkScalar(expected, actual, present, path, errs)
}

// directivesIn returns the sorted "match:"-prefixed keys in expObj, plus the
// set of additional sibling keys each directive consumes as its own
// argument (match:extractField's sibling "value") so they are excluded from
// the plain-field pass below.
func directivesIn(expObj map[string]any) (keys []string, consumed map[string]bool) {
	consumed = map[string]bool{}
	for k := range expObj {
		if strings.HasPrefix(k, matchPrefix) {
			keys = append(keys, k)
			if strings.TrimPrefix(k, matchPrefix) == "extractField" {
				consumed["value"] = true
			}
		}
	}
	sort.Strings(keys)
	return keys, consumed
}

// applyDirective dispatches one "match:"-prefixed key found in an expected
// object. fullObj is the enclosing expected object, needed by directives
// that read a sibling argument key (match:extractField's "value") or that
// operate on the whole actual value rather than a single field
// (match:partial, match:crossField).
func applyDirective(key string, rest any, fullObj map[string]any, actual any, path string, errs *[]mcpmodel.ValidationError) {
	name := strings.TrimPrefix(key, matchPrefix)
	switch {
	case name == "partial":
		matchPartial(rest, actual, path, errs)
	case name == "arrayElements":
		matchArrayElements(rest, actual, path, errs)
	case name == "extractField":
		matchExtractField(rest, fullObj, actual, path, errs)
	case name == "crossField" || name == "not:crossField":
		matchCrossField(name, rest, actual, path, errs)
	default:
		// Not a recognized directive name; fall through to pattern evaluation
		// of the whole value as a leaf, which will surface pattern_unknown.
		matchLeaf(name+":"+stringifyArg(rest), actual, true, path, errs)
	}
}

func stringifyArg(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	b, _ := json.Marshal(v)
	return string(b)
}

// matchPartial requires only the keys present in expectedObj to match;
// extra keys in actual are ignored (unlike a plain object comparison).
func matchPartial(expected any, actual any, path string, errs *[]mcpmodel.ValidationError) {
	expObj, ok := expected.(map[string]any)
	if !ok {
		*errs = append(*errs, mcpmodel.ValidationError{
			Type: mcpmodel.ErrTypeMismatch, Path: path,
			Message: "match:partial requires an object argument",
		})
		return
	}
	actObj, ok := actual.(map[string]any)
	if !ok {
		*errs = append(*errs, mcpmodel.ValidationError{
			Type: mcpmodel.ErrTypeMismatch, Path: path,
			Message: fmt.Sprintf("expected an object for partial match, got %s", jsonTypeName(actual)),
			Expected: expObj, Actual: actual,
		})
		return
	}
	for _, key := range sortedKeys(expObj) {
		childPath := path + "." + key
		actVal, present := actObj[key]
		walk(expObj[key], actVal, present, childPath, errs)
	}
}

// matchArrayElements applies a single expected element shape (which may
// itself be a pattern leaf, directive, or plain object/array) to every
// element of actual.
func matchArrayElements(elementExpected any, actual any, path string, errs *[]mcpmodel.ValidationError) {
	arr, ok := actual.([]any)
	if !ok {
		*errs = append(*errs, mcpmodel.ValidationError{
			Type: mcpmodel.ErrTypeMismatch, Path: path,
			Message: fmt.Sprintf("expected an array for arrayElements match, got %s", jsonTypeName(actual)),
		})
		return
	}
	for i, el := range arr {
		walk(elementExpected, el, true, fmt.Sprintf("%s[%d]", path, i), errs)
	}
}

// matchExtractField extracts fieldPath from every element of an actual
// array and compares the resulting list against the value found under the
// sibling "value" key of the enclosing expected object, per spec.md's
// {"match:extractField": PATH, "value": V} shape.
func matchExtractField(rawPath any, fullObj map[string]any, actual any, path string, errs *[]mcpmodel.ValidationError) {
	fieldPath, ok := rawPath.(string)
	if !ok {
		*errs = append(*errs, mcpmodel.ValidationError{
			Type: mcpmodel.ErrTypeMismatch, Path: path,
			Message: "match:extractField requires a string path argument",
		})
		return
	}
	wantValue, hasValue := fullObj["value"]
	if !hasValue {
		*errs = append(*errs, mcpmodel.ValidationError{
			Type: mcpmodel.ErrMissingField, Path: path,
			Message: "match:extractField requires a sibling \"value\" key",
		})
		return
	}

	arr, ok := actual.([]any)
	if !ok {
		*errs = append(*errs, mcpmodel.ValidationError{
			Type: mcpmodel.ErrTypeMismatch, Path: path,
			Message: fmt.Sprintf("expected an array for extractField match, got %s", jsonTypeName(actual)),
		})
		return
	}

	extracted := make([]any, len(arr))
	for i, el := range arr {
		extracted[i] = extractPath(el, fieldPath)
	}
	walk(wantValue, extracted, true, path+" (extracted:"+fieldPath+")", errs)
}

// extractPath navigates a dotted field path (e.g. "tool.name") inside a
// decoded-JSON value, returning nil if any segment is missing.
func extractPath(v any, fieldPath string) any {
	cur := v
	for _, seg := range strings.Split(fieldPath, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = obj[seg]
	}
	return cur
}

// matchCrossField compares two fields of the SAME actual object against
// each other, e.g. {"match:crossField": "endTime > startTime"}. rest is the
// raw expression string; actual must be the enclosing object (or subobject,
// when the directive is nested).
func matchCrossField(directive string, rest any, actual any, path string, errs *[]mcpmodel.ValidationError) {
	expr, ok := rest.(string)
	if !ok {
		*errs = append(*errs, mcpmodel.ValidationError{
			Type: mcpmodel.ErrTypeMismatch, Path: path,
			Message: "match:crossField requires a string expression argument",
		})
		return
	}
	obj, ok := actual.(map[string]any)
	if !ok {
		*errs = append(*errs, mcpmodel.ValidationError{
			Type: mcpmodel.ErrTypeMismatch, Path: path,
			Message: fmt.Sprintf("match:crossField requires an object, got %s", jsonTypeName(actual)),
		})
		return
	}

	fieldA, op, fieldB, parseErr := parseCrossFieldExpr(expr)
	if parseErr != nil {
		*errs = append(*errs, mcpmodel.ValidationError{
			Type: mcpmodel.ErrPatternFailed, Path: path,
			Message: fmt.Sprintf("invalid crossField expression %q: %s", expr, parseErr),
		})
		return
	}

	negated := directive == "not:crossField"
	valA, presentA := obj[fieldA]
	valB, presentB := obj[fieldB]
	if !presentA || !presentB {
		// An unresolved path fails the positive form but succeeds the
		// negated form (spec.md §4.4).
		if negated {
			return
		}
		*errs = append(*errs, mcpmodel.ValidationError{
			Type: mcpmodel.ErrMissingField, Path: path,
			Message: fmt.Sprintf("crossField expression references missing field(s): %q / %q", fieldA, fieldB),
		})
		return
	}

	matched, cmpErr := crossFieldCompare(valA, op, valB)
	if cmpErr != nil {
		*errs = append(*errs, mcpmodel.ValidationError{
			Type: mcpmodel.ErrPatternFailed, Path: path,
			Message: cmpErr.Error(),
		})
		return
	}
	if matched == negated {
		*errs = append(*errs, mcpmodel.ValidationError{
			Type: mcpmodel.ErrPatternFailed, Path: path,
			Message: fmt.Sprintf("crossField %q failed", expr),
		})
	}
}

// parseCrossFieldExpr parses "<fieldA> <op> <fieldB>".
func parseCrossFieldExpr(expr string) (fieldA, op, fieldB string, err error) {
	fields := strings.Fields(expr)
	if len(fields) != 3 {
		return "", "", "", fmt.Errorf("expected \"<field> <op> <field>\", got %q", expr)
	}
	switch fields[1] {
	case "<", "<=", ">", ">=", "=", "==", "!=":
	default:
		return "", "", "", fmt.Errorf("unrecognized operator %q", fields[1])
	}
	return fields[0], fields[1], fields[2], nil
}

// crossFieldCompare is crossField's own comparator (spec.md §4.4): it
// auto-detects date strings/epoch-ms values, then numeric strings, and
// falls back to lexicographical ordering of the string form. This is
// deliberately distinct from the generic numeric pattern handlers, which
// require actual to already be a float64.
func crossFieldCompare(a any, op string, b any) (bool, error) {
	// Date-string detection only applies when both sides are strings: a
	// bare JSON number is compared numerically below, never reinterpreted
	// as an epoch-ms timestamp.
	if sa, okA := a.(string); okA {
		if sb, okB := b.(string); okB {
			if ta, ok := pattern.ParseDateValue(sa); ok {
				if tb, ok := pattern.ParseDateValue(sb); ok {
					return compareOrderedInt64(ta.UnixNano(), op, tb.UnixNano())
				}
			}
		}
	}
	if na, ok := asCrossFieldNumber(a); ok {
		if nb, ok := asCrossFieldNumber(b); ok {
			return compareOrderedFloat(na, op, nb)
		}
	}
	return compareOrderedString(stringForm(a), op, stringForm(b))
}

func asCrossFieldNumber(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func compareOrderedInt64(a int64, op string, b int64) (bool, error) {
	switch op {
	case ">":
		return a > b, nil
	case "<":
		return a < b, nil
	case ">=":
		return a >= b, nil
	case "<=":
		return a <= b, nil
	case "=", "==":
		return a == b, nil
	case "!=":
		return a != b, nil
	default:
		return false, fmt.Errorf("unrecognized operator %q", op)
	}
}

func compareOrderedFloat(a float64, op string, b float64) (bool, error) {
	switch op {
	case ">":
		return a > b, nil
	case "<":
		return a < b, nil
	case ">=":
		return a >= b, nil
	case "<=":
		return a <= b, nil
	case "=", "==":
		return a == b, nil
	case "!=":
		return a != b, nil
	default:
		return false, fmt.Errorf("unrecognized operator %q", op)
	}
}

func compareOrderedString(a string, op string, b string) (bool, error) {
	switch op {
	case ">":
		return a > b, nil
	case "<":
		return a < b, nil
	case ">=":
		return a >= b, nil
	case "<=":
		return a <= b, nil
	case "=", "==":
		return a == b, nil
	case "!=":
		return a != b, nil
	default:
		return false, fmt.Errorf("unrecognized operator %q", op)
	}
}

// stringForm renders a decoded-JSON value the way a crossField comparison
// would display it when falling back to lexicographical ordering.
func stringForm(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case nil:
		return ""
	default:
		b, _ := json.Marshal(t)
		return string(b)
	}
}

func matchLeaf(expr string, actual any, present bool, path string, errs *[]mcpmodel.ValidationError) {
	res, err := pattern.Evaluate(expr, actual, present)
	if err != nil {
		if pattern.IsFallbackCandidate(err) {
			res, fbErr := pattern.EvaluateFallback(expr, actual)
			if fbErr != nil {
				*errs = append(*errs, mcpmodel.ValidationError{
					Type: mcpmodel.ErrPatternFailed, Path: path,
					Message: fbErr.Error(),
				})
				return
			}
			if !res.Matched {
				*errs = append(*errs, mcpmodel.ValidationError{
					Type: mcpmodel.ErrPatternFailed, Path: path,
					Message: res.Message,
				})
			}
			return
		}
		suggestion := ""
		var e *mcperr.Error
		if errors.As(err, &e) {
			suggestion = e.Suggestion
		}
		*errs = append(*errs, mcpmodel.ValidationError{
			Type: mcpmodel.ErrPatternFailed, Path: path,
			Message:    err.Error(),
			Suggestion: suggestion,
		})
		return
	}
	if !res.Matched {
		*errs = append(*errs, mcpmodel.ValidationError{
			Type: mcpmodel.ErrPatternFailed, Path: path,
			Message: res.Message,
		})
	}
}

// walkObject validates expObj against actual. expObj may carry zero or more
// "match:"-prefixed directive keys alongside ordinary field keys; a
// directive is evaluated against actual as a whole (not a single field),
// and every ordinary sibling key is still validated against the
// corresponding actual field in the very same pass — directives must never
// short-circuit validation of their siblings (spec.md §4.4 rule 3).
func walkObject(expObj map[string]any, actual any, path string, errs *[]mcpmodel.ValidationError) {
	directiveKeys, consumed := directivesIn(expObj)
	for _, key := range directiveKeys {
		applyDirective(key, expObj[key], expObj, actual, path, errs)
	}

	plain := map[string]any{}
	for k, v := range expObj {
		if strings.HasPrefix(k, matchPrefix) || consumed[k] {
			continue
		}
		plain[k] = v
	}
	if len(plain) == 0 {
		return
	}

	actObj, ok := actual.(map[string]any)
	if !ok {
		*errs = append(*errs, mcpmodel.ValidationError{
			Type: mcpmodel.ErrTypeMismatch, Path: path,
			Message:  fmt.Sprintf("expected an object, got %s", jsonTypeName(actual)),
			Expected: plain, Actual: actual,
		})
		return
	}
	for _, key := range sortedKeys(plain) {
		childPath := path + "." + key
		actVal, present := actObj[key]
		if !present {
			*errs = append(*errs, mcpmodel.ValidationError{
				Type: mcpmodel.ErrMissingField, Path: childPath,
				Message: "expected field is missing from the actual response",
			})
			continue
		}
		walk(plain[key], actVal, present, childPath, errs)
	}
	// A pure plain object (no directives at this level) keeps strict
	// key-set equality; once a directive is present the object's mode is
	// inherently partial, so unexpected actual keys are not flagged twice.
	if len(directiveKeys) == 0 {
		for _, key := range sortedKeys(actObj) {
			if _, wanted := plain[key]; !wanted {
				*errs = append(*errs, mcpmodel.ValidationError{
					Type: mcpmodel.ErrExtraField, Path: path + "." + key,
					Message: "unexpected field in actual response",
				})
			}
		}
	}
}

func walkArray(expArr []any, actual any, path string, errs *[]mcpmodel.ValidationError) {
	actArr, ok := actual.([]any)
	if !ok {
		*errs = append(*errs, mcpmodel.ValidationError{
			Type: mcpmodel.ErrTypeMismatch, Path: path,
			Message:  fmt.Sprintf("expected an array, got %s", jsonTypeName(actual)),
			Expected: expArr, Actual: actual,
		})
		return
	}
	if len(expArr) != len(actArr) {
		*errs = append(*errs, mcpmodel.ValidationError{
			Type: mcpmodel.ErrLengthMismatch, Path: path,
			Message:  fmt.Sprintf("expected array of length %d, got %d", len(expArr), len(actArr)),
			Expected: len(expArr), Actual: len(actArr),
		})
	}
	n := len(expArr)
	if len(actArr) < n {
		n = len(actArr)
	}
	for i := 0; i < n; i++ {
		walk(expArr[i], actArr[i], true, fmt.Sprintf("%s[%d]", path, i), errs)
	}
}

func walkScalar(expected, actual any, present bool, path string, errs *[]mcpmodel.ValidationError) {
	if !present {
		*errs = append(*errs, mcpmodel.ValidationError{
			Type: mcpmodel.ErrMissingField, Path: path,
			Message: "expected field is missing from the actual response",
		})
		return
	}
	if expected == nil {
		if actual == nil {
			return
		}
		*errs = append(*errs, mcpmodel.ValidationError{
			Type: mcpmodel.ErrValueMismatch, Path: path,
			Message: "expected null", Expected: expected, Actual: actual,
		})
		return
	}
	if !sameJSONType(expected, actual) {
		*errs = append(*errs, mcpmodel.ValidationError{
			Type: mcpmodel.ErrTypeMismatch, Path: path,
			Message:  fmt.Sprintf("expected type %s, got %s", jsonTypeName(expected), jsonTypeName(actual)),
			Expected: expected, Actual: actual,
		})
		return
	}
	if expected != actual {
		*errs = append(*errs, mcpmodel.ValidationError{
			Type: mcpmodel.ErrValueMismatch, Path: path,
			Message:  fmt.Sprintf("expected %v, got %v", expected, actual),
			Expected: expected, Actual: actual,
		})
	}
}

func sameJSONType(a, b any) bool {
	return jsonTypeName(a) == jsonTypeName(b)
}

func jsonTypeName(v any) string {
	switch v.(type) {
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
		return fmt.Sprintf("%T", v)
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
