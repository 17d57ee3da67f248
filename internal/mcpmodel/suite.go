package mcpmodel

import "time"

// TestSuite is one loaded suite file: a description plus an ordered list of
// test cases, each driven sequentially against a single Session.
type TestSuite struct {
	Description string     `yaml:"description" json:"description"`
	Tests       []TestCase `yaml:"tests" json:"tests"`
	FilePath    string     `yaml:"-" json:"filePath"`
}

// TestCase is one request/expectation pair.
type TestCase struct {
	It      string         `yaml:"it" json:"it"`
	Request Message        `yaml:"request" json:"request"`
	Expect  Expect         `yaml:"expect" json:"expect"`
	Timeout *time.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"` // per-case override of the response-await timeout
}

// Expect bundles the three independent expectation channels a test case may
// assert on. Response is left as `any` because it is an arbitrary
// pattern-embeddable JSON tree (walked by internal/validate.Response), not a
// fixed schema.
type Expect struct {
	Response    any                `yaml:"response,omitempty" json:"response,omitempty"`
	HasResponse bool               `yaml:"-" json:"-"`
	Stderr      *StderrExpectation `yaml:"stderr,omitempty" json:"stderr,omitempty"`
	Performance *Performance       `yaml:"performance,omitempty" json:"performance,omitempty"`
}

// StderrExpectation is one of: ToBeEmpty, a match:-prefixed pattern, or a
// literal string compared to trimmed stderr.
type StderrExpectation struct {
	ToBeEmpty bool
	Pattern   string // set when the raw string begins with "match:"
	Literal   string // set otherwise
}

// Performance asserts on the elapsed wall-clock time of a single request.
// At least one of MaxResponseTime/MinResponseTime must be non-nil.
type Performance struct {
	MaxResponseTime *time.Duration
	MinResponseTime *time.Duration
}
