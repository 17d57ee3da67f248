package validate

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResponse_PlainObjectExactMatch(t *testing.T) {
	expected := map[string]any{"name": "widget", "count": float64(3)}
	actual := []byte(`{"name":"widget","count":3}`)

	result := Response(expected, actual)
	assert.True(t, result.Passed, result.Errors)
}

func TestResponse_ExtraFieldIsReported(t *testing.T) {
	expected := map[string]any{"name": "widget"}
	actual := []byte(`{"name":"widget","count":3}`)

	result := Response(expected, actual)
	require.False(t, result.Passed)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "extra_field", string(result.Errors[0].Type))
	assert.Equal(t, "$.count", result.Errors[0].Path)
}

func TestResponse_MissingFieldIsReported(t *testing.T) {
	expected := map[string]any{"name": "widget", "count": float64(3)}
	actual := []byte(`{"name":"widget"}`)

	result := Response(expected, actual)
	require.False(t, result.Passed)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "missing_field", string(result.Errors[0].Type))
}

func TestResponse_MatchPatternLeaf(t *testing.T) {
	expected := map[string]any{"id": "match:type:string", "count": "match:greaterThan:0"}
	actual := []byte(`{"id":"abc-123","count":5}`)

	result := Response(expected, actual)
	assert.True(t, result.Passed, result.Errors)
}

func TestResponse_MatchPartialIgnoresExtraKeys(t *testing.T) {
	expected := map[string]any{
		"match:partial": map[string]any{"name": "widget"},
	}
	actual := []byte(`{"name":"widget","internal":"ignored"}`)

	result := Response(expected, actual)
	assert.True(t, result.Passed, result.Errors)
}

func TestResponse_MatchArrayElements(t *testing.T) {
	expected := map[string]any{
		"match:arrayElements": "match:type:string",
	}
	actual := []byte(`["a","b","c"]`)

	result := Response(expected, actual)
	assert.True(t, result.Passed, result.Errors)
}

func TestResponse_MatchArrayElementsFailsOnWrongType(t *testing.T) {
	expected := map[string]any{
		"match:arrayElements": "match:type:string",
	}
	actual := []byte(`["a", 2, "c"]`)

	result := Response(expected, actual)
	require.False(t, result.Passed)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "$[1]", result.Errors[0].Path)
}

func TestResponse_ExtractFieldAndValue(t *testing.T) {
	expected := map[string]any{
		"match:extractField": "name",
		"value":              []any{"a", "b"},
	}
	actual := []byte(`[{"name":"a","other":1},{"name":"b","other":2}]`)

	result := Response(expected, actual)
	assert.True(t, result.Passed, result.Errors)
}

func TestResponse_ExtractFieldAndValueMismatch(t *testing.T) {
	expected := map[string]any{
		"match:extractField": "name",
		"value":              []any{"a", "z"},
	}
	actual := []byte(`[{"name":"a","other":1},{"name":"b","other":2}]`)

	result := Response(expected, actual)
	require.False(t, result.Passed)
}

// spec.md §8 scenario 4: a directive key coexisting with an ordinary sibling
// key must validate both in the same pass, not short-circuit on the
// directive alone.
func TestResponse_PartialWithSiblingValidation(t *testing.T) {
	expected := map[string]any{
		"match:partial": map[string]any{"name": "widget"},
		"status":        "active",
	}
	actual := []byte(`{"name":"widget","status":"inactive","internal":"ignored"}`)

	result := Response(expected, actual)
	require.False(t, result.Passed)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "$.status", result.Errors[0].Path)
}

func TestResponse_CrossFieldDateStrings(t *testing.T) {
	expected := map[string]any{
		"match:crossField": "endTime > startTime",
	}
	actual := []byte(`{"startTime":"2023-06-25T10:30:00Z","endTime":"2023-06-25T11:30:00Z"}`)

	result := Response(expected, actual)
	assert.True(t, result.Passed, result.Errors)
}

func TestResponse_CrossFieldMissingPathSucceedsWhenNegated(t *testing.T) {
	expected := map[string]any{
		"match:not:crossField": "endTime > startTime",
	}
	actual := []byte(`{"startTime":20}`)

	result := Response(expected, actual)
	assert.True(t, result.Passed, result.Errors)
}

func TestResponse_CrossFieldMissingPathFailsWhenPositive(t *testing.T) {
	expected := map[string]any{
		"match:crossField": "endTime > startTime",
	}
	actual := []byte(`{"startTime":20}`)

	result := Response(expected, actual)
	require.False(t, result.Passed)
	assert.Equal(t, "missing_field", string(result.Errors[0].Type))
}

func TestResponse_CrossFieldComparison(t *testing.T) {
	expected := map[string]any{
		"match:crossField": "endTime > startTime",
	}
	actual := []byte(`{"startTime":10,"endTime":20}`)

	result := Response(expected, actual)
	assert.True(t, result.Passed, result.Errors)
}

func TestResponse_CrossFieldComparisonFails(t *testing.T) {
	expected := map[string]any{
		"match:crossField": "endTime > startTime",
	}
	actual := []byte(`{"startTime":20,"endTime":10}`)

	result := Response(expected, actual)
	require.False(t, result.Passed)
	assert.Equal(t, "pattern_failed", string(result.Errors[0].Type))
}

func TestResponse_NotCrossFieldNegates(t *testing.T) {
	expected := map[string]any{
		"match:not:crossField": "endTime > startTime",
	}
	actual := []byte(`{"startTime":20,"endTime":10}`)

	result := Response(expected, actual)
	assert.True(t, result.Passed, result.Errors)
}

func TestResponse_NestedArraysAndObjects(t *testing.T) {
	expected := map[string]any{
		"tools": []any{
			map[string]any{"name": "match:type:string", "enabled": true},
		},
	}
	actual := []byte(`{"tools":[{"name":"search","enabled":true}]}`)

	result := Response(expected, actual)
	assert.True(t, result.Passed, result.Errors)
}

func TestResponse_AccumulatesMultipleErrors(t *testing.T) {
	expected := map[string]any{"a": float64(1), "b": float64(2), "c": float64(3)}
	actual := []byte(`{"a":1,"b":99}`)

	result := Response(expected, actual)
	require.False(t, result.Passed)
	// "b" value mismatch + "c" missing: both reported, not short-circuited.
	assert.Len(t, result.Errors, 2)
}

func TestResponse_InvalidJSONActual(t *testing.T) {
	var malformed json.RawMessage = []byte(`{not valid json`)
	result := Response(map[string]any{"a": float64(1)}, malformed)
	require.False(t, result.Passed)
	assert.Equal(t, "type_mismatch", string(result.Errors[0].Type))
}
