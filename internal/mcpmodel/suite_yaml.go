package mcpmodel

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// UnmarshalYAML decodes a request node by round-tripping it through a
// generic interface{} and re-encoding as JSON: yaml.v3 has no notion of
// json.RawMessage, but the wire format (and the id/params fields, which may
// be arbitrarily shaped) is JSON, so this keeps Message's JSON decoding as
// the single source of truth for envelope semantics.
func (m *Message) UnmarshalYAML(value *yaml.Node) error {
	var generic any
	if err := value.Decode(&generic); err != nil {
		return err
	}
	raw, err := json.Marshal(generic)
	if err != nil {
		return fmt.Errorf("re-encoding request as JSON: %w", err)
	}
	decoded, err := Decode(raw)
	if err != nil {
		return fmt.Errorf("decoding request: %w", err)
	}
	*m = *decoded
	return nil
}

// UnmarshalYAML decodes the `expect` mapping, rejecting duplicate sibling
// keys (an expect subtree that repeats "response" or "stderr" twice, say)
// instead of silently keeping the last one — see DESIGN.md's resolution of
// the "duplicate keys in suite files" open question.
func (e *Expect) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("expect: expected a mapping, got %s", kindName(value.Kind))
	}
	seen := map[string]bool{}
	for i := 0; i < len(value.Content); i += 2 {
		key := value.Content[i].Value
		if seen[key] {
			return fmt.Errorf("expect: duplicate key %q", key)
		}
		seen[key] = true
		val := value.Content[i+1]
		switch key {
		case "response":
			var r any
			if err := val.Decode(&r); err != nil {
				return fmt.Errorf("expect.response: %w", err)
			}
			e.Response = r
			e.HasResponse = true
		case "stderr":
			var se StderrExpectation
			if err := se.UnmarshalYAML(val); err != nil {
				return fmt.Errorf("expect.stderr: %w", err)
			}
			e.Stderr = &se
		case "performance":
			var p Performance
			if err := p.UnmarshalYAML(val); err != nil {
				return fmt.Errorf("expect.performance: %w", err)
			}
			e.Performance = &p
		default:
			return fmt.Errorf("expect: unrecognized key %q", key)
		}
	}
	return nil
}

// UnmarshalYAML decodes a suite document, rejecting duplicate top-level keys.
func (s *TestSuite) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("suite: expected a mapping, got %s", kindName(value.Kind))
	}
	seen := map[string]bool{}
	for i := 0; i < len(value.Content); i += 2 {
		key := value.Content[i].Value
		if seen[key] {
			return fmt.Errorf("suite: duplicate key %q", key)
		}
		seen[key] = true
		val := value.Content[i+1]
		switch key {
		case "description":
			if err := val.Decode(&s.Description); err != nil {
				return fmt.Errorf("description: %w", err)
			}
		case "tests":
			if err := val.Decode(&s.Tests); err != nil {
				return fmt.Errorf("tests: %w", err)
			}
		default:
			return fmt.Errorf("suite: unrecognized key %q", key)
		}
	}
	return nil
}

// UnmarshalYAML decodes a test case, rejecting duplicate sibling keys at
// the top level the same way Expect does for the nested expect subtree.
func (tc *TestCase) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("test case: expected a mapping, got %s", kindName(value.Kind))
	}
	seen := map[string]bool{}
	for i := 0; i < len(value.Content); i += 2 {
		key := value.Content[i].Value
		if seen[key] {
			return fmt.Errorf("test case: duplicate key %q", key)
		}
		seen[key] = true
		val := value.Content[i+1]
		switch key {
		case "it":
			if err := val.Decode(&tc.It); err != nil {
				return fmt.Errorf("it: %w", err)
			}
		case "request":
			if err := val.Decode(&tc.Request); err != nil {
				return fmt.Errorf("request: %w", err)
			}
		case "expect":
			if err := val.Decode(&tc.Expect); err != nil {
				return fmt.Errorf("expect: %w", err)
			}
		case "timeout":
			var raw any
			if err := val.Decode(&raw); err != nil {
				return fmt.Errorf("timeout: %w", err)
			}
			d, err := durationFromAny(raw)
			if err != nil {
				return fmt.Errorf("timeout: %w", err)
			}
			tc.Timeout = &d
		default:
			return fmt.Errorf("test case: unrecognized key %q", key)
		}
	}
	return nil
}

func (se *StderrExpectation) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return fmt.Errorf("must be a string: %w", err)
	}
	switch {
	case raw == "toBeEmpty":
		se.ToBeEmpty = true
	case strings.HasPrefix(raw, "match:"):
		se.Pattern = strings.TrimPrefix(raw, "match:")
	default:
		se.Literal = raw
	}
	return nil
}

func (p *Performance) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("expected a mapping")
	}
	seen := map[string]bool{}
	for i := 0; i < len(value.Content); i += 2 {
		key := value.Content[i].Value
		if seen[key] {
			return fmt.Errorf("duplicate key %q", key)
		}
		seen[key] = true
		val := value.Content[i+1]
		var raw any
		if err := val.Decode(&raw); err != nil {
			return err
		}
		d, err := durationFromAny(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		switch key {
		case "maxResponseTime":
			p.MaxResponseTime = &d
		case "minResponseTime":
			p.MinResponseTime = &d
		default:
			return fmt.Errorf("unrecognized performance key %q", key)
		}
	}
	if p.MaxResponseTime == nil && p.MinResponseTime == nil {
		return fmt.Errorf("at least one of maxResponseTime/minResponseTime is required")
	}
	return nil
}

func durationFromAny(raw any) (time.Duration, error) {
	switch v := raw.(type) {
	case string:
		return ParseDurationString(v)
	case int:
		return time.Duration(v) * time.Millisecond, nil
	case float64:
		return time.Duration(v * float64(time.Millisecond)), nil
	default:
		return 0, fmt.Errorf("expected a number of milliseconds or a \"<n>ms\"/\"<n>s\" string, got %T", raw)
	}
}

func kindName(k yaml.Kind) string {
	switch k {
	case yaml.DocumentNode:
		return "document"
	case yaml.SequenceNode:
		return "sequence"
	case yaml.MappingNode:
		return "mapping"
	case yaml.ScalarNode:
		return "scalar"
	case yaml.AliasNode:
		return "alias"
	default:
		return "unknown"
	}
}
