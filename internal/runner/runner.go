// Package runner orchestrates suite execution: for each discovered suite
// file it starts a fresh Session against the configured server, runs every
// test case in order, and produces a structured RunSummary.
package runner

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/reportportal/mcpconductor/internal/mcperr"
	"github.com/reportportal/mcpconductor/internal/mcpmodel"
	"github.com/reportportal/mcpconductor/internal/pattern"
	"github.com/reportportal/mcpconductor/internal/session"
	"github.com/reportportal/mcpconductor/internal/validate"
)

// Runner ties a server configuration to a sequence of suite files.
type Runner struct {
	cfg *mcpmodel.ServerConfig

	// newSession is overridable in tests to inject a fake Session.
	newSession func(*mcpmodel.ServerConfig) sessionLike
}

// sessionLike is the subset of *session.Session the runner depends on,
// extracted so tests can substitute a fake server-less implementation.
type sessionLike interface {
	Start(ctx context.Context) error
	SendMessage(ctx context.Context, msg *mcpmodel.Message, timeout time.Duration) (*mcpmodel.Message, error)
	Stderr() string
	ClearAllBuffers()
	Stop() error
}

// New builds a Runner for cfg.
func New(cfg *mcpmodel.ServerConfig) *Runner {
	return &Runner{
		cfg: cfg,
		newSession: func(c *mcpmodel.ServerConfig) sessionLike {
			return session.New(c)
		},
	}
}

// RunAll loads and executes every suite found under paths (files or
// directories) in lexical order and returns the aggregated summary.
func (r *Runner) RunAll(ctx context.Context, paths []string) (*mcpmodel.RunSummary, error) {
	var suitePaths []string
	for _, p := range paths {
		found, err := DiscoverSuites(p)
		if err != nil {
			return nil, err
		}
		suitePaths = append(suitePaths, found...)
	}

	start := time.Now()
	summary := &mcpmodel.RunSummary{}
	for _, path := range suitePaths {
		suiteResult := r.runSuiteFile(ctx, path)
		summary.Suites = append(summary.Suites, suiteResult)
		for _, res := range suiteResult.Results {
			if res.Status == mcpmodel.StatusPassed {
				summary.TotalPassed++
			} else {
				summary.TotalFailed++
			}
		}
		if suiteResult.FatalError != "" {
			summary.TotalFailed++
		}
	}
	summary.DurationMs = float64(time.Since(start)) / float64(time.Millisecond)
	return summary, nil
}

// runSuiteFile loads one suite file and runs it against a freshly spawned
// Session. A suite-level fatal error (load failure, spawn failure,
// handshake failure, or a parse_error surfaced mid-suite) tears the Session
// down and reports via SuiteResult.FatalError without affecting later
// suites, each of which always gets its own fresh spawn.
func (r *Runner) runSuiteFile(ctx context.Context, path string) mcpmodel.SuiteResult {
	start := time.Now()
	result := mcpmodel.SuiteResult{FilePath: path}

	suite, err := LoadSuite(path)
	if err != nil {
		result.FatalError = err.Error()
		result.DurationMs = elapsedMs(start)
		return result
	}
	result.Suite = suite

	sess := r.newSession(r.cfg)
	if err := sess.Start(ctx); err != nil {
		result.FatalError = fmt.Sprintf("starting session for suite %q: %s", path, err)
		result.DurationMs = elapsedMs(start)
		return result
	}
	defer func() { _ = sess.Stop() }()

	for _, tc := range suite.Tests {
		res, fatal := r.runCase(ctx, sess, tc)
		result.Results = append(result.Results, res)
		if fatal != nil {
			result.FatalError = fatal.Error()
			break
		}
	}

	result.DurationMs = elapsedMs(start)
	return result
}

// runCase executes one test case and returns its Result. A non-nil fatal
// error means the underlying transport/session is no longer usable and the
// suite must stop (e.g. a parse_error tore the Session down); any other
// failure is captured as a normal failing Result and execution continues.
func (r *Runner) runCase(ctx context.Context, sess sessionLike, tc mcpmodel.TestCase) (mcpmodel.Result, error) {
	sess.ClearAllBuffers()

	timeout := r.cfg.StartupTimeout
	if tc.Timeout != nil {
		timeout = *tc.Timeout
	}

	caseStart := time.Now()
	resp, err := sess.SendMessage(ctx, &tc.Request, timeout)
	elapsed := time.Since(caseStart)

	if err != nil {
		code := mcperr.CodeOf(err)
		res := mcpmodel.Result{
			Description:  tc.It,
			Status:       mcpmodel.StatusFailed,
			DurationMs:   msOf(elapsed),
			ErrorMessage: err.Error(),
		}
		if isFatalCode(code) {
			return res, err
		}
		return res, nil
	}

	res := mcpmodel.Result{Description: tc.It, DurationMs: msOf(elapsed)}

	var validationErrs []mcpmodel.ValidationError
	if tc.Expect.HasResponse {
		vr := validate.Response(tc.Expect.Response, responsePayload(resp))
		res.Validation = &vr
		validationErrs = append(validationErrs, vr.Errors...)
	}

	if tc.Expect.Stderr != nil {
		if errMsg := checkStderr(*tc.Expect.Stderr, sess.Stderr()); errMsg != "" {
			validationErrs = append(validationErrs, mcpmodel.ValidationError{
				Type: mcpmodel.ErrValueMismatch, Path: "$.stderr", Message: errMsg,
			})
		}
	}

	if tc.Expect.Performance != nil {
		if errMsg := checkPerformance(*tc.Expect.Performance, elapsed); errMsg != "" {
			validationErrs = append(validationErrs, mcpmodel.ValidationError{
				Type: mcpmodel.ErrValueMismatch, Path: "$.performance", Message: errMsg,
			})
		}
	}

	if len(validationErrs) == 0 {
		res.Status = mcpmodel.StatusPassed
	} else {
		res.Status = mcpmodel.StatusFailed
		if res.Validation == nil {
			vr := mcpmodel.NewValidationResult(validationErrs)
			res.Validation = &vr
		} else {
			res.Validation.Passed = false
			res.Validation.Errors = validationErrs
		}
		res.ErrorMessage = summarizeErrors(validationErrs)
	}
	return res, nil
}

// responsePayload extracts the portion of resp a suite author expects to
// validate: the result object on success, or the JSON-RPC error object
// re-shaped as {"error": {...}} on failure, so suites can assert on
// expected error responses just as easily as successful ones.
func responsePayload(resp *mcpmodel.Message) []byte {
	if resp == nil {
		return nil
	}
	if resp.Error != nil {
		b, _ := jsonMarshalError(resp.Error)
		return b
	}
	return resp.Result
}

func jsonMarshalError(e *mcpmodel.RPCError) ([]byte, error) {
	return []byte(fmt.Sprintf(`{"error":{"code":%d,"message":%q}}`, e.Code, e.Message)), nil
}

// isFatalCode reports whether a code should abort the remainder of the
// suite rather than just fail the one test case, per spec.md §7's
// propagation table: framing/process-level failures are fatal, pattern and
// validation failures are not.
func isFatalCode(code mcperr.Code) bool {
	switch code {
	case mcperr.ParseError, mcperr.StdinClosed, mcperr.SpawnFailed, mcperr.ReadInProgress, mcperr.ReadTimeout:
		return true
	default:
		return false
	}
}

func checkStderr(exp mcpmodel.StderrExpectation, actual string) string {
	trimmed := strings.TrimSpace(actual)
	switch {
	case exp.ToBeEmpty:
		if trimmed != "" {
			return fmt.Sprintf("expected stderr to be empty, got %q", trimmed)
		}
	case exp.Pattern != "":
		res, err := pattern.Evaluate(exp.Pattern, actual, true)
		if err != nil {
			return err.Error()
		}
		if !res.Matched {
			return res.Message
		}
	default:
		if trimmed != strings.TrimSpace(exp.Literal) {
			return fmt.Sprintf("expected stderr %q, got %q", exp.Literal, trimmed)
		}
	}
	return ""
}

func checkPerformance(exp mcpmodel.Performance, elapsed time.Duration) string {
	if exp.MaxResponseTime != nil && elapsed > *exp.MaxResponseTime {
		return fmt.Sprintf("response took %s, exceeding max %s", elapsed, *exp.MaxResponseTime)
	}
	if exp.MinResponseTime != nil && elapsed < *exp.MinResponseTime {
		return fmt.Sprintf("response took %s, under min %s", elapsed, *exp.MinResponseTime)
	}
	return ""
}

func summarizeErrors(errs []mcpmodel.ValidationError) string {
	if len(errs) == 1 {
		return fmt.Sprintf("%s at %s: %s", errs[0].Type, errs[0].Path, errs[0].Message)
	}
	return fmt.Sprintf("%d validation errors, first at %s: %s", len(errs), errs[0].Path, errs[0].Message)
}

func elapsedMs(start time.Time) float64 { return msOf(time.Since(start)) }
func msOf(d time.Duration) float64      { return float64(d) / float64(time.Millisecond) }
