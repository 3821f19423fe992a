package domain

import (
	"encoding/json"
	"fmt"
)

// MessageKind is the closed set of chat event kinds a room log accepts.
type MessageKind string

const (
	MessageKindText   MessageKind = "text"
	MessageKindFile   MessageKind = "file"
	MessageKindSystem MessageKind = "system"
	MessageKindAI     MessageKind = "ai"
)

// ParseMessageKind maps a wire value onto a MessageKind. An empty value is a text message.
func ParseMessageKind(v string) (MessageKind, error) {
	switch MessageKind(v) {
	case "":
		return MessageKindText, nil
	case MessageKindText, MessageKindFile, MessageKindSystem, MessageKindAI:
		return MessageKind(v), nil
	default:
		return "", fmt.Errorf("unknown message kind %q", v)
	}
}

// RequiresFileName reports whether messages of this kind must carry a file name.
func (k MessageKind) RequiresFileName() bool {
	switch k {
	case MessageKindFile:
		return true
	case MessageKindText, MessageKindSystem, MessageKindAI:
		return false
	default:
		return false
	}
}

// AuthoredByMember reports whether the author id refers to a room member
// rather than the system or an assistant.
func (k MessageKind) AuthoredByMember() bool {
	switch k {
	case MessageKindText, MessageKindFile:
		return true
	case MessageKindSystem, MessageKindAI:
		return false
	default:
		return false
	}
}

func (k *MessageKind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseMessageKind(s)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}
