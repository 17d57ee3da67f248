package reporter

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reportportal/mcpconductor/internal/mcpmodel"
)

func sampleSummary() *mcpmodel.RunSummary {
	return &mcpmodel.RunSummary{
		Suites: []mcpmodel.SuiteResult{
			{
				FilePath: "tools.test.mcp.yml",
				Results: []mcpmodel.Result{
					{Description: "lists tools", Status: mcpmodel.StatusPassed, DurationMs: 12.5},
					{Description: "calls echo tool", Status: mcpmodel.StatusFailed, DurationMs: 4.1, ErrorMessage: "value_mismatch at $.result"},
				},
				DurationMs: 16.6,
			},
		},
		TotalPassed: 1,
		TotalFailed: 1,
		DurationMs:  16.6,
	}
}

func TestJSONSink_ProducesValidJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, JSONSink{}.Report(&buf, sampleSummary()))

	var decoded mcpmodel.RunSummary
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, 1, decoded.TotalPassed)
	assert.Equal(t, 1, decoded.TotalFailed)
}

func TestTextSink_ReportsPerTestLines(t *testing.T) {
	var buf bytes.Buffer
	sink := TextSink{Verbose: true}
	require.NoError(t, sink.Report(&buf, sampleSummary()))

	out := buf.String()
	assert.Contains(t, out, "lists tools")
	assert.Contains(t, out, "calls echo tool")
	assert.Contains(t, out, "1 passed, 1 failed")
}

func TestTextSink_QuietSuppressesPerTestLines(t *testing.T) {
	var buf bytes.Buffer
	sink := TextSink{Quiet: true}
	require.NoError(t, sink.Report(&buf, sampleSummary()))

	out := buf.String()
	assert.NotContains(t, out, "lists tools")
	assert.Contains(t, out, "1 passed, 1 failed")
}
