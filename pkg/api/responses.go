package api

import (
	"github.com/goccy/go-json"
	"github.com/sketchcast/sketchcast/pkg/network"
)

type Role string

const (
	Broadcaster Role = "broadcaster"
	Viewer      Role = "viewer"
	Unassigned  Role = "unassigned"
)

type IceServer struct {
	Urls       string `json:"urls,omitempty"`
	Username   string `json:"username,omitempty"`
	Credential string `json:"credential,omitempty"`
}

type (
	RoleResponse struct {
		Value Role        `json:"value"`
		Id    network.Uid `json:"id"`
		Ice   []IceServer `json:"ice,omitempty"`
	}
	NewViewerResponse struct {
		ViewerId network.Uid `json:"viewerId"`
	}
	SignalResponse struct {
		SenderId network.Uid     `json:"senderId"`
		Payload  json.RawMessage `json:"payload"`
	}
	ChatMessageResponse struct {
		User string `json:"user"`
		Text string `json:"text"`
	}
	UserDisconnectedResponse struct {
		Id      network.Uid `json:"id"`
		Vacated bool        `json:"vacated"`
	}
	RosterEntry struct {
		Id   network.Uid `json:"id"`
		Name string      `json:"name,omitempty"`
		Role Role        `json:"role"`
	}
	UserListResponse struct {
		Entries []RosterEntry `json:"entries"`
	}
	ErrorResponse struct {
		Code    ErrorCode `json:"code"`
		Message string    `json:"message,omitempty"`
		T       PT        `json:"t,omitempty"`
	}
)

type ErrorCode string

const (
	ErrCodeUnknownTarget ErrorCode = "unknown-target"
	ErrCodeMalformed     ErrorCode = "malformed"
	ErrCodeRateLimited   ErrorCode = "rate-limited"
)

func RolePacket(rs RoleResponse) Out { return Out{T: RoleNotice, Payload: rs} }
func NewViewerPacket(id network.Uid) Out {
	return Out{T: NewViewer, Payload: NewViewerResponse{ViewerId: id}}
}
func DrawingPacket(raw json.RawMessage) Out { return Out{T: Drawing, Payload: raw} }
func ClearCanvasPacket() Out                { return Out{T: ClearCanvas} }
func ErrorPacket(rs ErrorResponse) Out      { return Out{T: ErrorNotice, Payload: rs} }

func ChatMessagePacket(user, text string) Out {
	return Out{T: ChatMessage, Payload: ChatMessageResponse{User: user, Text: text}}
}

func SignalPacket(from network.Uid, payload json.RawMessage) Out {
	return Out{T: Signal, Payload: SignalResponse{SenderId: from, Payload: payload}}
}

func UserDisconnectedPacket(id network.Uid, vacated bool) Out {
	return Out{T: UserDisconnected, Payload: UserDisconnectedResponse{Id: id, Vacated: vacated}}
}

func UserListPacket(entries []RosterEntry) Out {
	return Out{T: UserList, Payload: UserListResponse{Entries: entries}}
}
