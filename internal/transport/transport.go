// Package transport owns the child process for one MCP server under test:
// spawning it, framing newline-delimited JSON on stdout, buffering stderr,
// and detecting readiness.
package transport

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"regexp"
	"sync"
	"syscall"
	"time"

	"github.com/reportportal/mcpconductor/internal/mcperr"
	"github.com/reportportal/mcpconductor/internal/mcpmodel"
)

func isValidJSON(b []byte) bool {
	return json.Valid(b)
}

func gracefulSignal() os.Signal {
	return syscall.SIGTERM
}

// Transport spawns exactly one child process and owns its stdio for its
// entire lifetime. It is not safe to call Start twice.
type Transport struct {
	cfg *mcpmodel.ServerConfig

	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Reader

	mu        sync.Mutex
	running   bool
	readInUse bool

	stderrMu  sync.Mutex
	stderrBuf bytes.Buffer

	exitCh chan struct{} // closed once the process-exit watcher observes exit
	exited bool
}

// New creates a Transport for cfg. The process is not started until Start
// is called.
func New(cfg *mcpmodel.ServerConfig) *Transport {
	return &Transport{cfg: cfg, exitCh: make(chan struct{})}
}

// Start spawns the child process and waits for readiness: immediately if no
// ReadyPattern is configured, or until the pattern first matches the
// cumulative stderr buffer, bounded by StartupTimeout.
func (t *Transport) Start(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, t.cfg.Command, t.cfg.Args...)
	cmd.Dir = t.cfg.Cwd
	cmd.Env = t.cfg.EnvSlice()

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return mcperr.Wrap(mcperr.SpawnFailed, err, "creating stdin pipe")
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return mcperr.Wrap(mcperr.SpawnFailed, err, "creating stdout pipe")
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return mcperr.Wrap(mcperr.SpawnFailed, err, "creating stderr pipe")
	}

	var readyCh chan struct{}
	if t.cfg.ReadyRegexp != nil {
		readyCh = make(chan struct{})
	}

	if err := cmd.Start(); err != nil {
		return mcperr.Wrap(mcperr.SpawnFailed, err, fmt.Sprintf("starting %q", t.cfg.Command))
	}

	t.mu.Lock()
	t.cmd = cmd
	t.stdin = stdin
	t.stdout = bufio.NewReader(stdout)
	t.running = true
	t.mu.Unlock()

	go t.watchExit()
	go t.readStderr(stderr, t.cfg.ReadyRegexp, readyCh)

	if readyCh == nil {
		return nil
	}
	select {
	case <-readyCh:
		return nil
	case <-time.After(t.cfg.StartupTimeout):
		return mcperr.Newf(mcperr.StartupTimeout, "server did not match readyPattern within %s", t.cfg.StartupTimeout)
	case <-ctx.Done():
		return mcperr.Wrap(mcperr.StartupTimeout, ctx.Err(), "startup cancelled")
	}
}

// watchExit waits for the child to exit and records that fact, so
// IsRunning and subsequent writes fail cleanly instead of blocking forever.
func (t *Transport) watchExit() {
	_ = t.cmd.Wait()
	t.mu.Lock()
	t.running = false
	t.exited = true
	t.mu.Unlock()
	close(t.exitCh)
}

// readStderr continuously appends to the stderr buffer and, once, signals
// readyCh the first time the cumulative buffer matches pattern. Readiness
// latches: once signaled it is never signaled again even if pattern would
// still match.
func (t *Transport) readStderr(r io.Reader, pattern *regexp.Regexp, readyCh chan struct{}) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	latched := false
	for scanner.Scan() {
		line := scanner.Text()
		t.stderrMu.Lock()
		t.stderrBuf.WriteString(line)
		t.stderrBuf.WriteByte('\n')
		cumulative := t.stderrBuf.String()
		t.stderrMu.Unlock()

		if !latched && pattern != nil && pattern.MatchString(cumulative) {
			latched = true
			close(readyCh)
		}
	}
}

// Write appends a trailing newline to raw (an already-encoded compact JSON
// message) and writes it to the child's stdin in a single call.
func (t *Transport) Write(raw []byte) error {
	t.mu.Lock()
	running := t.running
	stdin := t.stdin
	t.mu.Unlock()
	if !running || stdin == nil {
		return mcperr.New(mcperr.StdinClosed, "server process is not running")
	}
	framed := append(append([]byte(nil), raw...), '\n')
	if _, err := stdin.Write(framed); err != nil {
		return mcperr.Wrap(mcperr.StdinClosed, err, "writing to server stdin")
	}
	return nil
}

// NextMessage returns the next complete JSON object parsed from stdout, or
// a parse_error carrying the offending raw line if a non-empty line fails
// to parse as JSON. At most one NextMessage call may be in flight at a
// time; a second concurrent call fails immediately with read_in_progress.
func (t *Transport) NextMessage(ctx context.Context) ([]byte, error) {
	t.mu.Lock()
	if t.readInUse {
		t.mu.Unlock()
		return nil, mcperr.New(mcperr.ReadInProgress, "a read is already in progress on this transport")
	}
	t.readInUse = true
	stdout := t.stdout
	t.mu.Unlock()
	defer func() {
		t.mu.Lock()
		t.readInUse = false
		t.mu.Unlock()
	}()

	type lineResult struct {
		line []byte
		err  error
	}
	lineCh := make(chan lineResult, 1)
	go func() {
		for {
			line, err := stdout.ReadBytes('\n')
			if len(line) > 0 {
				trimmed := bytes.TrimRight(line, "\r\n")
				if len(bytes.TrimSpace(trimmed)) == 0 {
					if err != nil {
						lineCh <- lineResult{nil, err}
						return
					}
					continue
				}
				lineCh <- lineResult{trimmed, nil}
				return
			}
			if err != nil {
				lineCh <- lineResult{nil, err}
				return
			}
		}
	}()

	select {
	case <-ctx.Done():
		return nil, mcperr.Wrap(mcperr.ReadTimeout, ctx.Err(), "waiting for next message")
	case <-t.exitCh:
		select {
		case res := <-lineCh:
			if res.err == nil {
				if !isValidJSON(res.line) {
					return nil, mcperr.Newf(mcperr.ParseError, "malformed JSON on stdout: %s", string(res.line))
				}
				return res.line, nil
			}
		default:
		}
		return nil, mcperr.New(mcperr.ReadTimeout, "server process exited before sending a message")
	case res := <-lineCh:
		if res.err != nil {
			return nil, mcperr.Wrap(mcperr.ReadTimeout, res.err, "reading from server stdout")
		}
		if !isValidJSON(res.line) {
			return nil, mcperr.Newf(mcperr.ParseError, "malformed JSON on stdout: %s", string(res.line)).WithPath("")
		}
		return res.line, nil
	}
}

// Stderr returns the current accumulated stderr text.
func (t *Transport) Stderr() string {
	t.stderrMu.Lock()
	defer t.stderrMu.Unlock()
	return t.stderrBuf.String()
}

// ClearStderr resets the stderr buffer to empty.
func (t *Transport) ClearStderr() {
	t.stderrMu.Lock()
	defer t.stderrMu.Unlock()
	t.stderrBuf.Reset()
}

// IsRunning reports whether the child has been started and not yet
// observed to exit.
func (t *Transport) IsRunning() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

// Stop issues polite termination, waits up to 2 seconds for the process to
// exit, then forces termination. Safe to call more than once.
func (t *Transport) Stop() error {
	t.mu.Lock()
	cmd := t.cmd
	running := t.running
	t.mu.Unlock()
	if cmd == nil || cmd.Process == nil || !running {
		return nil
	}

	_ = cmd.Process.Signal(gracefulSignal())

	select {
	case <-t.exitCh:
		return nil
	case <-time.After(2 * time.Second):
	}

	_ = cmd.Process.Kill()
	<-t.exitCh
	return nil
}
