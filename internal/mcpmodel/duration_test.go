package mcpmodel

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDurationString(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected time.Duration
	}{
		{"milliseconds suffix", "250ms", 250 * time.Millisecond},
		{"seconds suffix", "5s", 5 * time.Second},
		{"fractional seconds", "1.5s", 1500 * time.Millisecond},
		{"bare number is milliseconds", "1000", 1000 * time.Millisecond},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			d, err := ParseDurationString(tc.input)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, d)
		})
	}
}

func TestParseDurationString_Invalid(t *testing.T) {
	_, err := ParseDurationString("not-a-duration")
	assert.Error(t, err)
}

func TestParseDurationField_BareNumber(t *testing.T) {
	d, err := parseDurationField(json.RawMessage(`5000`))
	require.NoError(t, err)
	assert.Equal(t, 5000*time.Millisecond, d)
}

func TestParseDurationField_StringForm(t *testing.T) {
	d, err := parseDurationField(json.RawMessage(`"10s"`))
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, d)
}
