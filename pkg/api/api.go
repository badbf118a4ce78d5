// Package api defines the room wire protocol.
//
// Each message in both directions is a JSON-encoded packet of the following structure:
//
//	t - (required) one of the predefined packet types;
//	p - (optional) packet payload.
//
// The inbound packet types form a closed set, each one with its own payload schema.
// A packet that doesn't decode into one of them is malformed and never reaches the room.
//
// Example:
//
//	{"t":"signal","p":{"targetId":"cfv68irdrc3ifu3jn6bg","payload":{"type":"offer","sdp":"v=0..."}}}
package api

import (
	"errors"
	"fmt"

	"github.com/goccy/go-json"
)

type PT string

// Inbound packet types.
const (
	SetUsername PT = "set-username"
	Signal      PT = "signal"
	ChatMessage PT = "chat-message"
	Drawing     PT = "drawing"
	ClearCanvas PT = "clear-canvas"
)

// Outbound-only packet types.
const (
	RoleNotice       PT = "role"
	NewViewer        PT = "new-viewer"
	UserDisconnected PT = "user-disconnected"
	UserList         PT = "user-list"
	ErrorNotice      PT = "error"
)

func (p PT) String() string { return string(p) }

// In is a raw inbound packet, the payload is unwrapped in the second pass.
type In struct {
	T       PT              `json:"t"`
	Payload json.RawMessage `json:"p,omitempty"`
}

type Out struct {
	T       PT  `json:"t"`
	Payload any `json:"p,omitempty"`
}

// ErrMalformed marks packets that fail the shape validation.
var ErrMalformed = errors.New("malformed")

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformed, fmt.Sprintf(format, args...))
}

func Encode(out Out) ([]byte, error) { return json.Marshal(out) }

// Unwrap decodes a packet payload into T.
func Unwrap[T any](data []byte) (*T, error) {
	out := new(T)
	if err := json.Unmarshal(data, out); err != nil {
		return nil, malformed("%v", err)
	}
	return out, nil
}
