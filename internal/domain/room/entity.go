package room

import (
	"time"

	"chatify-realtime/internal/domain/message"
)

// Room is the durable record stored at rooms/{roomId}.
type Room struct {
	ID            string            `json:"id"`
	IsGroup       bool              `json:"is_group"`
	Members       []string          `json:"members"`
	DisplayName   string            `json:"name"`
	PhotoURL      string            `json:"photo_url"`
	PageIDs       []string          `json:"chat_doc_ids"`
	SavedMessages []message.Message `json:"saved_messages,omitempty"`
}

// HasMember reports whether userID belongs to the room.
func (r Room) HasMember(userID string) bool {
	for _, m := range r.Members {
		if m == userID {
			return true
		}
	}
	return false
}

// Page is one chunk of a room's message history, stored at rooms/{roomId}/pages/{pageId}.
type Page struct {
	ID        string            `json:"id"`
	Messages  []message.Message `json:"chat_history"`
	CreatedAt time.Time         `json:"created_at"`
}

// Metadata is what a client receives when it joins a room.
type Metadata struct {
	ID          string   `json:"room_id"`
	IsGroup     bool     `json:"is_group"`
	Members     []string `json:"members"`
	DisplayName string   `json:"name"`
	PhotoURL    string   `json:"photo_url"`
	PageIDs     []string `json:"page_ids"`
}
