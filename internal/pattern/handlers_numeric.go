package pattern

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

func asNumber(actual any) (float64, bool) {
	f, ok := actual.(float64)
	return f, ok
}

func handleGreaterThan(rest string, actual any, exists bool) (Result, error) {
	n, actualN, err := numericArgAndValue(rest, actual, "greaterThan")
	if err != nil {
		return Result{}, err
	}
	if actualN > n {
		return ok(), nil
	}
	return fail("expected %v > %v", actualN, n), nil
}

func handleLessThan(rest string, actual any, exists bool) (Result, error) {
	n, actualN, err := numericArgAndValue(rest, actual, "lessThan")
	if err != nil {
		return Result{}, err
	}
	if actualN < n {
		return ok(), nil
	}
	return fail("expected %v < %v", actualN, n), nil
}

func handleGreaterThanOrEqual(rest string, actual any, exists bool) (Result, error) {
	n, actualN, err := numericArgAndValue(rest, actual, "greaterThanOrEqual")
	if err != nil {
		return Result{}, err
	}
	if actualN >= n {
		return ok(), nil
	}
	return fail("expected %v >= %v", actualN, n), nil
}

func handleLessThanOrEqual(rest string, actual any, exists bool) (Result, error) {
	n, actualN, err := numericArgAndValue(rest, actual, "lessThanOrEqual")
	if err != nil {
		return Result{}, err
	}
	if actualN <= n {
		return ok(), nil
	}
	return fail("expected %v <= %v", actualN, n), nil
}

func numericArgAndValue(rest string, actual any, name string) (want, got float64, err error) {
	want, err = parseFloatArg(rest)
	if err != nil {
		return 0, 0, fmt.Errorf("%s: %w", name, err)
	}
	got, okN := asNumber(actual)
	if !okN {
		return 0, 0, fmt.Errorf("%s: value is not a number (%s)", name, jsonTypeName(actual))
	}
	return want, got, nil
}

func handleBetween(rest string, actual any, exists bool) (Result, error) {
	parts, err := splitArgs(rest, 2)
	if err != nil {
		return Result{}, fmt.Errorf("between: %w", err)
	}
	lo, err := parseFloatArg(parts[0])
	if err != nil {
		return Result{}, fmt.Errorf("between: lower bound %w", err)
	}
	hi, err := parseFloatArg(parts[1])
	if err != nil {
		return Result{}, fmt.Errorf("between: upper bound %w", err)
	}
	got, okN := asNumber(actual)
	if !okN {
		return Result{}, fmt.Errorf("between: value is not a number (%s)", jsonTypeName(actual))
	}
	if got >= lo && got <= hi {
		return ok(), nil
	}
	return fail("expected %v to be between %v and %v", got, lo, hi), nil
}

func handleEquals(rest string, actual any, exists bool) (Result, error) {
	var want any
	if err := jsonOrLiteral(rest, &want); err != nil {
		return Result{}, err
	}
	if deepEqual(actual, want) {
		return ok(), nil
	}
	return fail("expected %v, got %v", want, actual), nil
}

func handleNotEquals(rest string, actual any, exists bool) (Result, error) {
	res, err := handleEquals(rest, actual, exists)
	if err != nil {
		return Result{}, err
	}
	if res.Matched {
		return fail("expected value not to equal %s", rest), nil
	}
	return ok(), nil
}

func jsonOrLiteral(rest string, out *any) error {
	if n, err := strconv.ParseFloat(rest, 64); err == nil {
		*out = n
		return nil
	}
	if b, err := strconv.ParseBool(rest); err == nil {
		*out = b
		return nil
	}
	if rest == "null" {
		*out = nil
		return nil
	}
	*out = rest
	return nil
}

func handleApproximately(rest string, actual any, exists bool) (Result, error) {
	parts := strings.SplitN(rest, ":", 2)
	want, err := parseFloatArg(parts[0])
	if err != nil {
		return Result{}, fmt.Errorf("approximately: %w", err)
	}
	tolerance := want * 0.01
	if len(parts) == 2 {
		tolerance, err = parseFloatArg(parts[1])
		if err != nil {
			return Result{}, fmt.Errorf("approximately: tolerance %w", err)
		}
	}
	got, okN := asNumber(actual)
	if !okN {
		return Result{}, fmt.Errorf("approximately: value is not a number (%s)", jsonTypeName(actual))
	}
	if math.Abs(got-want) <= tolerance {
		return ok(), nil
	}
	return fail("expected %v to be within %v of %v", got, tolerance, want), nil
}

func handleMultipleOf(rest string, actual any, exists bool) (Result, error) {
	n, err := parseFloatArg(rest)
	if err != nil {
		return Result{}, fmt.Errorf("multipleOf: %w", err)
	}
	if n == 0 {
		return Result{}, fmt.Errorf("multipleOf: divisor must not be zero")
	}
	got, okN := asNumber(actual)
	if !okN {
		return Result{}, fmt.Errorf("multipleOf: value is not a number (%s)", jsonTypeName(actual))
	}
	quotient := got / n
	if math.Abs(quotient-math.Round(quotient)) < 1e-9 {
		return ok(), nil
	}
	return fail("expected %v to be a multiple of %v", got, n), nil
}

func handleDecimalPlaces(rest string, actual any, exists bool) (Result, error) {
	n, err := strconv.Atoi(strings.TrimSpace(rest))
	if err != nil || n < 0 {
		return Result{}, fmt.Errorf("decimalPlaces: expected a non-negative integer, got %q", rest)
	}
	got, okN := asNumber(actual)
	if !okN {
		return Result{}, fmt.Errorf("decimalPlaces: value is not a number (%s)", jsonTypeName(actual))
	}
	str := strconv.FormatFloat(got, 'f', -1, 64)
	idx := strings.IndexByte(str, '.')
	places := 0
	if idx >= 0 {
		places = len(str) - idx - 1
	}
	if places == n {
		return ok(), nil
	}
	return fail("expected %v to have %d decimal places, got %d", got, n, places), nil
}
