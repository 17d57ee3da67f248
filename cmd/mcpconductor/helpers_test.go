package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseToolArgs_EmptyStringYieldsEmptyMap(t *testing.T) {
	args, err := parseToolArgs("")
	require.NoError(t, err)
	assert.Empty(t, args)
}

func TestParseToolArgs_ParsesJSONObject(t *testing.T) {
	args, err := parseToolArgs(`{"text": "hello", "count": 3}`)
	require.NoError(t, err)
	assert.Equal(t, "hello", args["text"])
	assert.Equal(t, float64(3), args["count"])
}

func TestParseToolArgs_RejectsNonObjectJSON(t *testing.T) {
	_, err := parseToolArgs(`[1, 2, 3]`)
	require.Error(t, err)
}
