// Package mcpclient is the programmatic counterpart to the suite-file
// runner: it exposes the same session lifecycle (connect, call a tool,
// inspect stderr, disconnect) as a small Go API for callers embedding the
// harness in their own test code, per spec.md §6.
package mcpclient

import (
	"context"
	"encoding/json"
	"time"

	"github.com/reportportal/mcpconductor/internal/mcpmodel"
	"github.com/reportportal/mcpconductor/internal/session"
)

// Client wraps a live Session against one MCP server process.
type Client struct {
	sess    *session.Session
	timeout time.Duration
}

// Connect loads a server config from path, spawns it, and performs the
// initialize/initialized handshake, returning a ready-to-use Client.
func Connect(ctx context.Context, configPath string) (*Client, error) {
	cfg, err := mcpmodel.LoadServerConfig(configPath)
	if err != nil {
		return nil, err
	}
	return ConnectConfig(ctx, cfg)
}

// ConnectConfig is Connect for a config already loaded in memory.
func ConnectConfig(ctx context.Context, cfg *mcpmodel.ServerConfig) (*Client, error) {
	sess := session.New(cfg)
	if err := sess.Start(ctx); err != nil {
		return nil, err
	}
	return &Client{sess: sess, timeout: cfg.StartupTimeout}, nil
}

// ListTools calls tools/list and returns the decoded tool list.
func (c *Client) ListTools(ctx context.Context) ([]any, error) {
	raw, err := c.sess.ListTools(ctx, c.timeout)
	if err != nil {
		return nil, err
	}
	var tools []any
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &tools); err != nil {
			return nil, err
		}
	}
	return tools, nil
}

// CallTool calls tools/call with name and arguments and returns the decoded
// result object.
func (c *Client) CallTool(ctx context.Context, name string, arguments map[string]any) (map[string]any, error) {
	raw, err := c.sess.CallTool(ctx, c.timeout, name, arguments)
	if err != nil {
		return nil, err
	}
	var result map[string]any
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &result); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// SendMessage sends an arbitrary raw JSON-RPC request and returns the raw
// response envelope, for callers exercising methods this package doesn't
// wrap directly.
func (c *Client) SendMessage(ctx context.Context, method string, params any) (*mcpmodel.Message, error) {
	paramsRaw, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	msg := &mcpmodel.Message{JSONRPC: mcpmodel.JSONRPCVersion, Method: method, Params: paramsRaw}
	return c.sess.SendMessage(ctx, msg, c.timeout)
}

// Stderr returns everything the server process has written to stderr since
// the last ClearStderr/ClearAllBuffers call.
func (c *Client) Stderr() string { return c.sess.Stderr() }

// ClearStderr resets the stderr buffer.
func (c *Client) ClearStderr() { c.sess.ClearStderr() }

// ClearAllBuffers resets the stderr buffer; unread stdout data is not
// discarded.
func (c *Client) ClearAllBuffers() { c.sess.ClearAllBuffers() }

// Disconnect stops the underlying server process.
func (c *Client) Disconnect() error { return c.sess.Stop() }
