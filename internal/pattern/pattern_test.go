package pattern

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reportportal/mcpconductor/internal/mcperr"
)

func TestEvaluate_BasicFamilies(t *testing.T) {
	tests := []struct {
		name    string
		expr    string
		actual  any
		exists  bool
		matched bool
	}{
		{"type string match", "type:string", "hello", true, true},
		{"type string mismatch", "type:string", float64(3), true, false},
		{"exists default true passes", "exists", "x", true, true},
		{"exists default true fails on missing", "exists", nil, false, false},
		{"exists:false passes on missing", "exists:false", nil, false, true},
		{"length exact", "length:5", "hello", true, true},
		{"length mismatch", "length:4", "hello", true, false},
		{"arrayLength exact", "arrayLength:2", []any{"a", "b"}, true, true},
		{"contains string", "contains:ell", "hello", true, true},
		{"containsIgnoreCase", "containsIgnoreCase:ELL", "hello", true, true},
		{"startsWith", "startsWith:he", "hello", true, true},
		{"endsWith", "endsWith:lo", "hello", true, true},
		{"equalsIgnoreCase", "equalsIgnoreCase:HELLO", "hello", true, true},
		{"arrayContains scalar", "arrayContains:2", []any{float64(1), float64(2)}, true, true},
		{"regex match", "regex:^h.*o$", "hello", true, true},
		{"negated type mismatch becomes match", "not:type:number", "hello", true, true},
		{"negated type match becomes failure", "not:type:string", "hello", true, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			res, err := Evaluate(tc.expr, tc.actual, tc.exists)
			require.NoError(t, err)
			assert.Equal(t, tc.matched, res.Matched, res.Message)
		})
	}
}

func TestEvaluate_ArrayContainsFieldForm(t *testing.T) {
	tools := []any{
		map[string]any{"name": "get_sfcc_class_info", "enabled": true},
		map[string]any{"name": "search_docs", "enabled": false},
	}

	res, err := Evaluate("arrayContains:name:get_sfcc_class_info", tools, true)
	require.NoError(t, err)
	assert.True(t, res.Matched, res.Message)

	res, err = Evaluate("arrayContains:name:nonexistent", tools, true)
	require.NoError(t, err)
	assert.False(t, res.Matched)
}

func TestEvaluate_NumericFamilies(t *testing.T) {
	tests := []struct {
		name    string
		expr    string
		actual  any
		matched bool
	}{
		{"greaterThan passes", "greaterThan:5", float64(10), true},
		{"greaterThan fails", "greaterThan:50", float64(10), false},
		{"lessThan passes", "lessThan:50", float64(10), true},
		{"greaterThanOrEqual boundary", "greaterThanOrEqual:10", float64(10), true},
		{"lessThanOrEqual boundary", "lessThanOrEqual:10", float64(10), true},
		{"between inside", "between:1:10", float64(5), true},
		{"between outside", "between:1:10", float64(50), false},
		{"range alias", "range:1:10", float64(5), true},
		{"equals number", "equals:5", float64(5), true},
		{"notEquals number", "notEquals:5", float64(6), true},
		{"approximately within tolerance", "approximately:100:5", float64(103), true},
		{"approximately outside tolerance", "approximately:100:1", float64(103), false},
		{"multipleOf passes", "multipleOf:5", float64(25), true},
		{"multipleOf fails", "multipleOf:5", float64(26), false},
		{"decimalPlaces matches", "decimalPlaces:2", float64(3.14), true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			res, err := Evaluate(tc.expr, tc.actual, true)
			require.NoError(t, err)
			assert.Equal(t, tc.matched, res.Matched, res.Message)
		})
	}
}

func TestEvaluate_DateFamilies(t *testing.T) {
	tests := []struct {
		name    string
		expr    string
		actual  any
		matched bool
	}{
		{"dateValid passes", "dateValid", "2024-01-15T10:00:00Z", true},
		{"dateValid fails", "dateValid", "not-a-date", false},
		{"dateAfter passes", "dateAfter:2023-01-01", "2024-01-15T10:00:00Z", true},
		{"dateBefore passes", "dateBefore:2030-01-01", "2024-01-15T10:00:00Z", true},
		{"dateBetween passes", "dateBetween:2023-01-01:2025-01-01", "2024-01-15T10:00:00Z", true},
		{"dateEquals passes", "dateEquals:2024-01-15T10:00:00Z", "2024-01-15T10:00:00Z", true},
		{"dateFormat passes", "dateFormat:2006-01-02", "2024-01-15", true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			res, err := Evaluate(tc.expr, tc.actual, true)
			require.NoError(t, err)
			assert.Equal(t, tc.matched, res.Matched, res.Message)
		})
	}
}

func TestEvaluate_UnknownPatternSuggestsClosest(t *testing.T) {
	_, err := Evaluate("lenght:5", "hello", true)
	require.Error(t, err)
	assert.True(t, IsFallbackCandidate(err))
	var perr *mcperr.Error
	require.True(t, errors.As(err, &perr))
	assert.Contains(t, perr.Suggestion, "length")
}

func TestEvaluateFallback(t *testing.T) {
	res, err := EvaluateFallback("ell", "hello")
	require.NoError(t, err)
	assert.True(t, res.Matched, "substring fallback should match")

	res, err = EvaluateFallback("^h.*o$", "hello")
	require.NoError(t, err)
	assert.True(t, res.Matched, "regex-metacharacter fallback should match")

	res, err = EvaluateFallback("xyz", "hello")
	require.NoError(t, err)
	assert.False(t, res.Matched)
}
