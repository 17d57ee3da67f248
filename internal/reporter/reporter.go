// Package reporter renders a RunSummary for a human (colored text) or a
// machine (JSON) consumer.
package reporter

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/reportportal/mcpconductor/internal/mcpmodel"
)

// Sink renders a completed RunSummary to w.
type Sink interface {
	Report(w io.Writer, summary *mcpmodel.RunSummary) error
}

// JSONSink writes the summary as indented JSON, for CI/machine consumers.
type JSONSink struct{}

func (JSONSink) Report(w io.Writer, summary *mcpmodel.RunSummary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(summary)
}

// TextSink renders a colorized, human-readable report, grouping results by
// suite file and printing per-test pass/fail lines plus a final summary.
type TextSink struct {
	// Verbose prints every validation error, not just the first.
	Verbose bool
	// Quiet suppresses per-test lines, printing only the final tally.
	Quiet bool
	// ShowTiming prints each test's duration alongside its status.
	ShowTiming bool
}

func (t TextSink) Report(w io.Writer, summary *mcpmodel.RunSummary) error {
	pass := color.New(color.FgGreen, color.Bold)
	fail := color.New(color.FgRed, color.Bold)
	dim := color.New(color.Faint)
	bold := color.New(color.Bold)

	for _, suite := range summary.Suites {
		if !t.Quiet {
			header := suite.FilePath
			if suite.Suite != nil && suite.Suite.Description != "" {
				header = fmt.Sprintf("%s (%s)", suite.Suite.Description, suite.FilePath)
			}
			bold.Fprintln(w, header)
		}
		if suite.FatalError != "" {
			fail.Fprintf(w, "  ✗ suite aborted: %s\n", suite.FatalError)
			continue
		}
		for _, res := range suite.Results {
			if t.Quiet {
				continue
			}
			line := fmt.Sprintf("  %s", res.Description)
			if t.ShowTiming {
				line += dim.Sprintf(" (%.1fms)", res.DurationMs)
			}
			if res.Status == mcpmodel.StatusPassed {
				pass.Fprintf(w, "  ✓ %s\n", strippedLine(line))
			} else {
				fail.Fprintf(w, "  ✗ %s\n", strippedLine(line))
				if res.ErrorMessage != "" {
					dim.Fprintf(w, "      %s\n", res.ErrorMessage)
				}
				if t.Verbose && res.Validation != nil {
					for _, ve := range res.Validation.Errors {
						dim.Fprintf(w, "      - [%s] %s: %s\n", ve.Type, ve.Path, ve.Message)
						if ve.Suggestion != "" {
							dim.Fprintf(w, "        %s\n", ve.Suggestion)
						}
					}
				}
			}
		}
	}

	fmt.Fprintln(w)
	if summary.Passed() {
		pass.Fprintf(w, "%d passed", summary.TotalPassed)
	} else {
		fail.Fprintf(w, "%d passed, %d failed", summary.TotalPassed, summary.TotalFailed)
	}
	fmt.Fprintf(w, " in %.0fms\n", summary.DurationMs)
	return nil
}

// strippedLine trims the leading two spaces already applied by the caller's
// "  " prefix, since the bullet (✓/✗) takes that space instead.
func strippedLine(s string) string {
	if len(s) >= 2 && s[:2] == "  " {
		return s[2:]
	}
	return s
}
