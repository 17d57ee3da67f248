package mcpmodel

import "encoding/json"

// JSONRPCVersion is the only accepted "jsonrpc" field value.
const JSONRPCVersion = "2.0"

// Message is a JSON-RPC 2.0 envelope in any of its three forms: request
// (ID + Method set), response (ID set, Result or Error set, Method empty),
// or notification (Method set, ID absent). ID is compared by equality and
// may be any JSON scalar, so it is kept as a raw message rather than typed.
type Message struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError is the JSON-RPC 2.0 error object.
type RPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// IsRequest reports whether m carries both an id and a method.
func (m *Message) IsRequest() bool { return len(m.ID) > 0 && m.Method != "" }

// IsNotification reports whether m has a method but no id.
func (m *Message) IsNotification() bool { return len(m.ID) == 0 && m.Method != "" }

// IsResponse reports whether m carries an id and neither a method nor
// (necessarily) anything else — result/error may still be absent on a
// malformed response, which callers should reject.
func (m *Message) IsResponse() bool { return len(m.ID) > 0 && m.Method == "" }

// IDKey renders ID as a comparable string key for response correlation
// maps. JSON-RPC ids are scalars (string, number, or null); their raw JSON
// text is already a stable comparison key since both sides of a
// request/response pair are serialized the same way.
func (m *Message) IDKey() string { return string(m.ID) }

// Decode unmarshals raw bytes (one line of the wire stream) into a Message.
func Decode(raw []byte) (*Message, error) {
	var m Message
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// Encode serializes m as compact JSON without a trailing newline; callers
// that write to the wire append the newline themselves.
func Encode(m *Message) ([]byte, error) {
	return json.Marshal(m)
}
