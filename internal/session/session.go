// Package session implements the MCP initialize/initialized handshake and
// request/response correlation on top of a transport.Transport.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/reportportal/mcpconductor/internal/mcperr"
	"github.com/reportportal/mcpconductor/internal/mcpmodel"
	"github.com/reportportal/mcpconductor/internal/transport"
)

// ClientName/ClientVersion identify this harness in the initialize handshake.
const (
	ClientName    = "mcpconductor"
	ClientVersion = "0.1.0"
)

// postInitializeGrace is the fixed delay after notifications/initialized
// documented in spec.md §9 as a pragmatic workaround rather than a protocol
// requirement: some servers finish internal setup asynchronously after
// acking initialized, and there is no explicit readiness signal for that
// step today. A future protocol addition could replace this with an
// explicit ack.
const postInitializeGrace = 100 * time.Millisecond

// State is the Session lifecycle state machine from spec.md §4.5.
type State int

const (
	StateNew State = iota
	StateStarting
	StateWaitingReady
	StateHandshaking
	StateReady
	StateStopping
	StateStopped
)

// Session wraps a Transport and enforces the MCP handshake before exposing
// callTool/listTools/sendMessage. A Session owns exactly one Transport for
// its lifetime.
type Session struct {
	cfg       *mcpmodel.ServerConfig
	transport *transport.Transport

	mu    sync.Mutex
	state State

	pending     map[string]chan *mcpmodel.Message
	lastReadErr error // set by failAllPending before closing pending channels
	stopping    atomic.Bool
}

// New constructs a Session for cfg. Start must be called before any other
// method.
func New(cfg *mcpmodel.ServerConfig) *Session {
	return &Session{
		cfg:       cfg,
		transport: transport.New(cfg),
		pending:   make(map[string]chan *mcpmodel.Message),
	}
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start spawns the server, waits for readiness, then performs the
// initialize/initialized handshake. Handshake failures are fatal for the
// Session: Start tears the Transport down before returning an error.
func (s *Session) Start(ctx context.Context) error {
	s.setState(StateStarting)
	if err := s.transport.Start(ctx); err != nil {
		s.setState(StateStopped)
		return err
	}
	s.setState(StateWaitingReady)

	go s.readLoop()

	s.setState(StateHandshaking)
	if err := s.initialize(ctx); err != nil {
		_ = s.Stop()
		return mcperr.Wrap(mcperr.HandshakeFailed, err, "MCP initialize handshake failed")
	}
	s.setState(StateReady)
	return nil
}

// readLoop pulls framed messages off the transport and routes responses to
// their waiting caller by id. Requests/notifications originated by the
// server (sampling, logging, etc.) are outside this harness's scope and are
// dropped after being read, per spec.md's focus on the client side of the
// protocol.
func (s *Session) readLoop() {
	for {
		raw, err := s.transport.NextMessage(context.Background())
		if err != nil {
			s.failAllPending(err)
			return
		}
		msg, err := mcpmodel.Decode(raw)
		if err != nil {
			s.failAllPending(mcperr.Wrap(mcperr.ParseError, err, "decoding message from server"))
			return
		}
		if !msg.IsResponse() {
			continue
		}
		key := msg.IDKey()
		s.mu.Lock()
		ch, ok := s.pending[key]
		if ok {
			delete(s.pending, key)
		}
		s.mu.Unlock()
		if ok {
			ch <- msg
		}
	}
}

// failAllPending records cause as the reason every in-flight send should
// fail with, then closes every pending channel so callers blocked in
// sendRequestWithID wake up and surface it instead of a generic
// Cancelled error. Stop does not go through here: it closes pending
// channels itself without recording a cause, so those callers see Cancelled.
func (s *Session) failAllPending(cause error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastReadErr = cause
	for key, ch := range s.pending {
		close(ch)
		delete(s.pending, key)
	}
}

// nextRequestID returns a globally-unique request id for raw sendMessage
// calls that don't carry a caller-supplied id. A random id rather than a
// simple counter means ids never collide across the several Sessions a
// Runner may have torn down and recreated within one process lifetime.
func (s *Session) nextRequestID() json.RawMessage {
	id := uuid.NewString()
	raw, _ := json.Marshal(id)
	return raw
}

type initializeParams struct {
	ProtocolVersion string                 `json:"protocolVersion"`
	Capabilities    mcp.ClientCapabilities `json:"capabilities"`
	ClientInfo      mcp.Implementation     `json:"clientInfo"`
}

// initialize sends the initialize request, waits for its response, then
// sends notifications/initialized and yields postInitializeGrace.
func (s *Session) initialize(ctx context.Context) error {
	params := initializeParams{
		ProtocolVersion: mcpmodel.ProtocolVersion,
		Capabilities:    mcp.ClientCapabilities{},
		ClientInfo:      mcp.Implementation{Name: ClientName, Version: ClientVersion},
	}
	paramsRaw, err := json.Marshal(params)
	if err != nil {
		return mcperr.Wrap(mcperr.Internal, err, "marshaling initialize params")
	}

	reqCtx, cancel := context.WithTimeout(ctx, s.cfg.StartupTimeout)
	defer cancel()

	resp, err := s.sendRequest(reqCtx, "initialize", paramsRaw)
	if err != nil {
		return err
	}
	if resp.Error != nil {
		return fmt.Errorf("server returned error %d: %s", resp.Error.Code, resp.Error.Message)
	}
	if len(resp.Result) == 0 {
		return fmt.Errorf("server returned no result for initialize")
	}

	if err := s.sendNotification("notifications/initialized", nil); err != nil {
		return err
	}
	time.Sleep(postInitializeGrace)
	return nil
}

// sendRequest writes a request with a freshly minted id and waits for its
// matching response. Pending-map registration happens before the write so a
// response that arrives unusually fast can never race ahead of the
// listener.
func (s *Session) sendRequest(ctx context.Context, method string, params json.RawMessage) (*mcpmodel.Message, error) {
	id := s.nextRequestID()
	return s.sendRequestWithID(ctx, id, method, params)
}

func (s *Session) sendRequestWithID(ctx context.Context, id json.RawMessage, method string, params json.RawMessage) (*mcpmodel.Message, error) {
	msg := &mcpmodel.Message{JSONRPC: mcpmodel.JSONRPCVersion, ID: id, Method: method, Params: params}
	raw, err := mcpmodel.Encode(msg)
	if err != nil {
		return nil, mcperr.Wrap(mcperr.Internal, err, "encoding request")
	}

	ch := make(chan *mcpmodel.Message, 1)
	key := msg.IDKey()
	s.mu.Lock()
	s.pending[key] = ch
	s.mu.Unlock()

	if err := s.transport.Write(raw); err != nil {
		s.mu.Lock()
		delete(s.pending, key)
		s.mu.Unlock()
		return nil, err
	}

	select {
	case <-ctx.Done():
		s.mu.Lock()
		delete(s.pending, key)
		s.mu.Unlock()
		return nil, mcperr.Wrap(mcperr.ReadTimeout, ctx.Err(), fmt.Sprintf("awaiting response to %q", method))
	case resp, ok := <-ch:
		if !ok {
			s.mu.Lock()
			cause := s.lastReadErr
			s.mu.Unlock()
			if cause != nil {
				return nil, cause
			}
			return nil, mcperr.New(mcperr.Cancelled, "session stopped while awaiting response")
		}
		return resp, nil
	}
}

func (s *Session) sendNotification(method string, params json.RawMessage) error {
	msg := &mcpmodel.Message{JSONRPC: mcpmodel.JSONRPCVersion, Method: method, Params: params}
	raw, err := mcpmodel.Encode(msg)
	if err != nil {
		return mcperr.Wrap(mcperr.Internal, err, "encoding notification")
	}
	return s.transport.Write(raw)
}

// SendMessage sends an arbitrary request with the timeout defaulting to the
// configured StartupTimeout unless overridden, and returns the raw
// response. It correlates by the id already present on msg if set,
// otherwise mints one.
func (s *Session) SendMessage(ctx context.Context, msg *mcpmodel.Message, timeout time.Duration) (*mcpmodel.Message, error) {
	if timeout <= 0 {
		timeout = s.cfg.StartupTimeout
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	id := msg.ID
	if len(id) == 0 {
		id = s.nextRequestID()
	}
	return s.sendRequestWithID(reqCtx, id, msg.Method, msg.Params)
}

// ListTools calls tools/list and returns the raw "tools" array.
func (s *Session) ListTools(ctx context.Context, timeout time.Duration) (json.RawMessage, error) {
	resp, err := s.call(ctx, timeout, "tools/list", nil)
	if err != nil {
		return nil, err
	}
	var result struct {
		Tools json.RawMessage `json:"tools"`
	}
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return nil, mcperr.Wrap(mcperr.Internal, err, "decoding tools/list result")
	}
	return result.Tools, nil
}

// CallTool calls tools/call with name and arguments and returns the raw
// result object.
func (s *Session) CallTool(ctx context.Context, timeout time.Duration, name string, arguments map[string]any) (json.RawMessage, error) {
	params, err := json.Marshal(map[string]any{"name": name, "arguments": arguments})
	if err != nil {
		return nil, mcperr.Wrap(mcperr.Internal, err, "encoding tools/call params")
	}
	resp, err := s.call(ctx, timeout, "tools/call", params)
	if err != nil {
		return nil, err
	}
	return resp.Result, nil
}

func (s *Session) call(ctx context.Context, timeout time.Duration, method string, params json.RawMessage) (*mcpmodel.Message, error) {
	if timeout <= 0 {
		timeout = s.cfg.StartupTimeout
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	resp, err := s.sendRequest(reqCtx, method, params)
	if err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("server returned error %d: %s", resp.Error.Code, resp.Error.Message)
	}
	return resp, nil
}

// Stderr returns the current accumulated stderr text.
func (s *Session) Stderr() string { return s.transport.Stderr() }

// ClearStderr resets the stderr buffer.
func (s *Session) ClearStderr() { s.transport.ClearStderr() }

// ClearAllBuffers resets stderr; it exists as a single call site for
// client-facing buffer resets between user-written tests (spec.md §6).
func (s *Session) ClearAllBuffers() { s.ClearStderr() }

// Stop cancels all pending reads with a Cancelled failure, forbids new
// sends, and tears the Transport down (polite then forced).
func (s *Session) Stop() error {
	if s.stopping.Swap(true) {
		return nil
	}
	s.setState(StateStopping)
	err := s.transport.Stop()

	s.mu.Lock()
	for key, ch := range s.pending {
		close(ch)
		delete(s.pending, key)
	}
	s.mu.Unlock()

	s.setState(StateStopped)
	return err
}
