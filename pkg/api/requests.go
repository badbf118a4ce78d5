package api

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"github.com/goccy/go-json"
	"github.com/sketchcast/sketchcast/pkg/network"
)

// Request is one of the known inbound packets.
type Request interface {
	Type() PT
}

type (
	SetUsernameRequest struct {
		Name string `json:"name"`
	}
	SignalRequest struct {
		TargetId network.Uid     `json:"targetId"`
		Payload  json.RawMessage `json:"payload"`
	}
	ChatMessageRequest struct {
		Text string `json:"text"`
	}
	// DrawingRequest keeps the original payload bytes,
	// the shape is checked but never altered.
	DrawingRequest struct {
		Raw json.RawMessage
	}
	ClearCanvasRequest struct{}
)

func (*SetUsernameRequest) Type() PT { return SetUsername }
func (*SignalRequest) Type() PT      { return Signal }
func (*ChatMessageRequest) Type() PT { return ChatMessage }
func (*DrawingRequest) Type() PT     { return Drawing }
func (*ClearCanvasRequest) Type() PT { return ClearCanvas }

type Point struct {
	X *float64 `json:"x"`
	Y *float64 `json:"y"`
}

func (p *Point) valid() bool { return p != nil && p.X != nil && p.Y != nil }

type drawingShape struct {
	X     *float64 `json:"x"`
	Y     *float64 `json:"y"`
	From  *Point   `json:"from"`
	To    *Point   `json:"to"`
	Color *string  `json:"color"`
}

// Limits bounds the user supplied text fields.
type Limits struct {
	MaxNameLength int
	MaxChatLength int
}

var DefaultLimits = Limits{MaxNameLength: 32, MaxChatLength: 1000}

// Decode parses a raw packet into one of the known requests.
func Decode(data []byte, limits Limits) (Request, error) {
	var in In
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, malformed("bad packet: %v", err)
	}
	return in.Request(limits)
}

// Request validates the payload against the schema of the packet type.
func (in In) Request(limits Limits) (Request, error) {
	switch in.T {
	case SetUsername:
		rq, err := Unwrap[SetUsernameRequest](in.Payload)
		if err != nil {
			return nil, err
		}
		rq.Name = strings.TrimSpace(rq.Name)
		if err = checkText("name", rq.Name, limits.MaxNameLength); err != nil {
			return nil, err
		}
		return rq, nil
	case Signal:
		rq, err := Unwrap[SignalRequest](in.Payload)
		if err != nil {
			return nil, err
		}
		if rq.TargetId.IsEmpty() {
			return nil, malformed("no target")
		}
		if isNull(rq.Payload) {
			return nil, malformed("no signal payload")
		}
		return rq, nil
	case ChatMessage:
		rq, err := Unwrap[ChatMessageRequest](in.Payload)
		if err != nil {
			return nil, err
		}
		if err = checkText("text", strings.TrimSpace(rq.Text), limits.MaxChatLength); err != nil {
			return nil, err
		}
		return rq, nil
	case Drawing:
		shape, err := Unwrap[drawingShape](in.Payload)
		if err != nil {
			return nil, err
		}
		point := shape.X != nil && shape.Y != nil
		stroke := shape.From.valid() && shape.To.valid()
		if !point && !stroke {
			return nil, malformed("drawing needs x,y or from,to")
		}
		return &DrawingRequest{Raw: in.Payload}, nil
	case ClearCanvas:
		return &ClearCanvasRequest{}, nil
	case "":
		return nil, malformed("no packet type")
	default:
		return nil, malformed("unknown packet type %q", in.T)
	}
}

func checkText(field, v string, max int) error {
	if v == "" {
		return malformed("empty %s", field)
	}
	if max > 0 && utf8.RuneCountInString(v) > max {
		return malformed("%s is longer than %d", field, max)
	}
	return nil
}

func isNull(raw json.RawMessage) bool {
	v := bytes.TrimSpace(raw)
	return len(v) == 0 || bytes.Equal(v, []byte("null"))
}
