// Package mcpmodel holds the data model shared by every component: server
// launch configuration, the JSON-RPC envelope, suite/test fixtures, and
// validation results.
package mcpmodel

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"time"

	"dario.cat/mergo"
	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/reportportal/mcpconductor/internal/mcperr"
)

// ProtocolVersion is the MCP protocol version this harness speaks during the
// initialize handshake.
const ProtocolVersion = "2025-06-18"

const (
	defaultStartupTimeout = 5 * time.Second
	minRecommendedTimeout = 1 * time.Second
	maxRecommendedTimeout = 30 * time.Second
)

// ServerConfig describes how to launch and recognize readiness of one MCP
// server under test. It is immutable once constructed.
type ServerConfig struct {
	ID             string            `json:"id,omitempty"`
	Name           string            `json:"name"`
	Command        string            `json:"command"`
	Args           []string          `json:"args"`
	Cwd            string            `json:"cwd,omitempty"`
	Env            map[string]string `json:"env,omitempty"`
	StartupTimeout time.Duration     `json:"-"`
	ReadyPattern   string            `json:"readyPattern,omitempty"`

	// ReadyRegexp is the compiled form of ReadyPattern, populated by applyDefaults.
	ReadyRegexp *regexp.Regexp `json:"-"`

	rawStartupTimeout json.RawMessage
}

// configJSON mirrors ServerConfig's wire shape; StartupTimeout is kept as a
// raw field here because it may be authored as a bare number of
// milliseconds or as a "<n>s"/"<n>ms" string.
type configJSON struct {
	ID             string            `json:"id,omitempty"`
	Name           string            `json:"name"`
	Command        string            `json:"command"`
	Args           []string          `json:"args"`
	Cwd            string            `json:"cwd,omitempty"`
	Env            map[string]string `json:"env,omitempty"`
	StartupTimeout json.RawMessage   `json:"startupTimeout,omitempty"`
	ReadyPattern   string            `json:"readyPattern,omitempty"`
}

//go:embed schema/server_config.schema.json
var configSchemaJSON []byte

// compiledConfigSchema is built lazily so importers that never load a config
// file don't pay for schema compilation.
var compiledConfigSchema *jsonschema.Schema

func loadConfigSchema() (*jsonschema.Schema, error) {
	if compiledConfigSchema != nil {
		return compiledConfigSchema, nil
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource("server_config.schema.json", mustUnmarshalSchema(configSchemaJSON)); err != nil {
		return nil, err
	}
	sch, err := c.Compile("server_config.schema.json")
	if err != nil {
		return nil, err
	}
	compiledConfigSchema = sch
	return sch, nil
}

func mustUnmarshalSchema(raw []byte) any {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		panic(fmt.Sprintf("mcpmodel: embedded schema is invalid JSON: %v", err))
	}
	return v
}

// LoadServerConfig reads, schema-validates, and decodes a ServerConfig file
// from path, then merges the host environment under Env (file values win).
func LoadServerConfig(path string) (*ServerConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, mcperr.Wrap(mcperr.ConfigInvalid, err, "reading config file "+path)
	}
	return parseServerConfig(raw)
}

func parseServerConfig(raw []byte) (*ServerConfig, error) {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, mcperr.Wrap(mcperr.ConfigInvalid, err, "config file is not valid JSON")
	}
	sch, err := loadConfigSchema()
	if err != nil {
		return nil, mcperr.Wrap(mcperr.Internal, err, "compiling server config schema")
	}
	if err := sch.Validate(doc); err != nil {
		return nil, mcperr.Wrap(mcperr.ConfigInvalid, err, "config file does not match ServerConfig schema")
	}

	var cj configJSON
	if err := json.Unmarshal(raw, &cj); err != nil {
		return nil, mcperr.Wrap(mcperr.ConfigInvalid, err, "decoding ServerConfig")
	}

	cfg := &ServerConfig{
		ID:      cj.ID,
		Name:    cj.Name,
		Command: cj.Command,
		Args:    cj.Args,
		Cwd:     cj.Cwd,
		Env:     cj.Env,

		ReadyPattern:      cj.ReadyPattern,
		rawStartupTimeout: cj.StartupTimeout,
	}
	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults fills in Cwd/Env/StartupTimeout defaults and compiles
// ReadyPattern, in place.
func (c *ServerConfig) applyDefaults() error {
	if c.Name == "" {
		return mcperr.New(mcperr.ConfigInvalid, "name is required")
	}
	if c.Command == "" {
		return mcperr.New(mcperr.ConfigInvalid, "command is required")
	}
	if c.Cwd == "" {
		wd, err := os.Getwd()
		if err != nil {
			return mcperr.Wrap(mcperr.ConfigInvalid, err, "resolving default cwd")
		}
		c.Cwd = wd
	}

	merged := map[string]string{}
	for _, kv := range os.Environ() {
		for i := 0; i < len(kv); i++ {
			if kv[i] == '=' {
				merged[kv[:i]] = kv[i+1:]
				break
			}
		}
	}
	// File env wins on conflict: merge host env as the base, then overlay
	// file env with override semantics.
	if err := mergo.Merge(&merged, c.Env, mergo.WithOverride); err != nil {
		return mcperr.Wrap(mcperr.ConfigInvalid, err, "merging env")
	}
	c.Env = merged

	if len(c.rawStartupTimeout) == 0 {
		c.StartupTimeout = defaultStartupTimeout
	} else {
		d, err := parseDurationField(c.rawStartupTimeout)
		if err != nil {
			return mcperr.Wrap(mcperr.ConfigInvalid, err, "parsing startupTimeout")
		}
		if d <= 0 {
			return mcperr.New(mcperr.ConfigInvalid, "startupTimeout must be > 0")
		}
		c.StartupTimeout = d
	}

	if c.ReadyPattern != "" {
		re, err := regexp.Compile(c.ReadyPattern)
		if err != nil {
			return mcperr.Wrap(mcperr.ConfigInvalid, err, "readyPattern does not compile")
		}
		c.ReadyRegexp = re
	}

	return nil
}

// Warnings returns non-fatal advisories about this config, e.g. an unusually
// short or long startup timeout (spec: warn if < 1s or > 30s).
func (c *ServerConfig) Warnings() []string {
	var warns []string
	if c.StartupTimeout < minRecommendedTimeout {
		warns = append(warns, fmt.Sprintf("startupTimeout %s is below the recommended minimum of %s", c.StartupTimeout, minRecommendedTimeout))
	}
	if c.StartupTimeout > maxRecommendedTimeout {
		warns = append(warns, fmt.Sprintf("startupTimeout %s exceeds the recommended maximum of %s", c.StartupTimeout, maxRecommendedTimeout))
	}
	return warns
}

// EnvSlice renders Env as "KEY=VALUE" pairs suitable for exec.Cmd.Env.
func (c *ServerConfig) EnvSlice() []string {
	out := make([]string, 0, len(c.Env))
	for k, v := range c.Env {
		out = append(out, k+"="+v)
	}
	return out
}
