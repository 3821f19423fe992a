package websocket

import (
	"encoding/json"

	chatify_errors "chatify-realtime/pkg/errors"
)

// Inbound frame types.
const (
	FrameJoinRoom       = "join_room"
	FrameLeaveRoom      = "leave_room"
	FrameLoadPage       = "load_page"
	FrameSendMessage    = "send_message"
	FrameToggleReaction = "toggle_reaction"
	FrameEditMessage    = "edit_message"
	FrameDeleteMessage  = "delete_message"
	FrameToggleSaved    = "toggle_saved"
	FramePing           = "ping"
)

// InboundFrame is what a client sends. Ref is echoed in the ack.
type InboundFrame struct {
	Type string          `json:"type"`
	Ref  string          `json:"ref,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Ack answers exactly one inbound frame.
type Ack struct {
	Type    string `json:"type"`
	Ref     string `json:"ref,omitempty"`
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
}

func successAck(ref string, data any) Ack {
	return Ack{Type: "ack", Ref: ref, Success: true, Data: data}
}

func errorAck(ref string, err error) Ack {
	return Ack{
		Type:    "ack",
		Ref:     ref,
		Success: false,
		Error:   chatify_errors.PublicMessage(err),
		Code:    chatify_errors.Code(err),
	}
}

type roomRequest struct {
	RoomID string `json:"room_id"`
}

type loadPageRequest struct {
	RoomID string `json:"room_id"`
	Before string `json:"before,omitempty"`
}

type sendMessageRequest struct {
	RoomID   string `json:"room_id"`
	ID       string `json:"id,omitempty"`
	Type     string `json:"type,omitempty"`
	Message  string `json:"message"`
	FileName string `json:"file_name,omitempty"`
}

type messageRequest struct {
	RoomID    string `json:"room_id"`
	PageID    string `json:"page_id"`
	MessageID string `json:"message_id"`
}

type reactionRequest struct {
	messageRequest
	Reaction string `json:"reaction"`
}

type editRequest struct {
	messageRequest
	Message string `json:"message"`
}
