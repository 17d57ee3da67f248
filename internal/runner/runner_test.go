package runner

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reportportal/mcpconductor/internal/mcperr"
	"github.com/reportportal/mcpconductor/internal/mcpmodel"
)

// fakeSession is a scripted sessionLike used to drive the runner without a
// real child process.
type fakeSession struct {
	startErr  error
	responses map[string]*mcpmodel.Message // keyed by method
	sendErr   error
	stderr    string
	stopped   bool
}

func (f *fakeSession) Start(ctx context.Context) error { return f.startErr }

func (f *fakeSession) SendMessage(ctx context.Context, msg *mcpmodel.Message, timeout time.Duration) (*mcpmodel.Message, error) {
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	if resp, ok := f.responses[msg.Method]; ok {
		return resp, nil
	}
	return &mcpmodel.Message{JSONRPC: mcpmodel.JSONRPCVersion, ID: msg.ID, Result: json.RawMessage(`{}`)}, nil
}

func (f *fakeSession) Stderr() string   { return f.stderr }
func (f *fakeSession) ClearAllBuffers() {}
func (f *fakeSession) Stop() error      { f.stopped = true; return nil }

func newTestRunner(fake *fakeSession) *Runner {
	cfg := &mcpmodel.ServerConfig{StartupTimeout: 2 * time.Second}
	r := New(cfg)
	r.newSession = func(*mcpmodel.ServerConfig) sessionLike { return fake }
	return r
}

func TestRunCase_PassesOnMatchingResponse(t *testing.T) {
	fake := &fakeSession{
		responses: map[string]*mcpmodel.Message{
			"tools/call": {Result: json.RawMessage(`{"ok":true}`)},
		},
	}
	r := newTestRunner(fake)
	tc := mcpmodel.TestCase{
		It:      "returns ok",
		Request: mcpmodel.Message{Method: "tools/call"},
		Expect: mcpmodel.Expect{
			HasResponse: true,
			Response:    map[string]any{"ok": true},
		},
	}

	res, fatal := r.runCase(context.Background(), fake, tc)
	require.NoError(t, fatal)
	assert.Equal(t, mcpmodel.StatusPassed, res.Status)
}

func TestRunCase_FailsOnMismatch(t *testing.T) {
	fake := &fakeSession{
		responses: map[string]*mcpmodel.Message{
			"tools/call": {Result: json.RawMessage(`{"ok":false}`)},
		},
	}
	r := newTestRunner(fake)
	tc := mcpmodel.TestCase{
		It:      "expects ok true",
		Request: mcpmodel.Message{Method: "tools/call"},
		Expect: mcpmodel.Expect{
			HasResponse: true,
			Response:    map[string]any{"ok": true},
		},
	}

	res, fatal := r.runCase(context.Background(), fake, tc)
	require.NoError(t, fatal)
	assert.Equal(t, mcpmodel.StatusFailed, res.Status)
	assert.NotEmpty(t, res.ErrorMessage)
}

func TestRunCase_ParseErrorIsFatal(t *testing.T) {
	fake := &fakeSession{sendErr: mcperr.New(mcperr.ParseError, "malformed JSON on stdout")}
	r := newTestRunner(fake)
	tc := mcpmodel.TestCase{It: "sends malformed output", Request: mcpmodel.Message{Method: "tools/call"}}

	res, fatal := r.runCase(context.Background(), fake, tc)
	require.Error(t, fatal)
	assert.Equal(t, mcpmodel.StatusFailed, res.Status)
}

func TestRunCase_ReadTimeoutIsFatal(t *testing.T) {
	fake := &fakeSession{sendErr: mcperr.New(mcperr.ReadTimeout, "deadline exceeded")}
	r := newTestRunner(fake)
	tc := mcpmodel.TestCase{It: "times out", Request: mcpmodel.Message{Method: "tools/call"}}

	res, fatal := r.runCase(context.Background(), fake, tc)
	require.Error(t, fatal)
	assert.Equal(t, mcpmodel.StatusFailed, res.Status)
}

func TestRunCase_StderrExpectationToBeEmpty(t *testing.T) {
	fake := &fakeSession{stderr: "warning: deprecated flag\n"}
	r := newTestRunner(fake)
	tc := mcpmodel.TestCase{
		It:      "stderr should be empty",
		Request: mcpmodel.Message{Method: "tools/call"},
		Expect:  mcpmodel.Expect{Stderr: &mcpmodel.StderrExpectation{ToBeEmpty: true}},
	}

	res, fatal := r.runCase(context.Background(), fake, tc)
	require.NoError(t, fatal)
	assert.Equal(t, mcpmodel.StatusFailed, res.Status)
}

func TestRunCase_PerformanceMaxExceeded(t *testing.T) {
	fake := &fakeSession{}
	r := newTestRunner(fake)
	zero := time.Duration(0)
	tc := mcpmodel.TestCase{
		It:      "must be instant",
		Request: mcpmodel.Message{Method: "tools/call"},
		Expect:  mcpmodel.Expect{Performance: &mcpmodel.Performance{MaxResponseTime: &zero}},
	}

	res, fatal := r.runCase(context.Background(), fake, tc)
	require.NoError(t, fatal)
	assert.Equal(t, mcpmodel.StatusFailed, res.Status)
}
