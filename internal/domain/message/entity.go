package message

import (
	"time"

	"chatify-realtime/internal/domain"
)

// Message is one entry of a room log page.
type Message struct {
	ID                 string             `json:"id"`
	PageID             string             `json:"chat_doc_id"`
	AuthorID           string             `json:"user_uid"`
	Kind               domain.MessageKind `json:"type"`
	Body               string             `json:"chat_info"`
	FileName           string             `json:"file_name"`
	AuthorDisplayName  string             `json:"user_name"`
	AuthorPhotoURL     string             `json:"user_photo"`
	Edited             bool               `json:"is_msg_edited"`
	Saved              bool               `json:"is_msg_saved"`
	Reactions          []ReactionGroup    `json:"reactions,omitempty"`
	Scheduled          bool               `json:"is_scheduled,omitempty"`
	ScheduledMessageID string             `json:"scheduled_message_id,omitempty"`
	CreatedAt          time.Time          `json:"time"`
}

// Draft is a message as submitted by a client or the dispatcher, before the
// log assigns a page and timestamp.
type Draft struct {
	ID                 string
	AuthorID           string
	Kind               domain.MessageKind
	Body               string
	FileName           string
	AuthorDisplayName  string
	AuthorPhotoURL     string
	Scheduled          bool
	ScheduledMessageID string
}

// ToMessage stamps a draft with its creation time.
func (d Draft) ToMessage(now time.Time) Message {
	kind := d.Kind
	if kind == "" {
		kind = domain.MessageKindText
	}
	return Message{
		ID:                 d.ID,
		AuthorID:           d.AuthorID,
		Kind:               kind,
		Body:               d.Body,
		FileName:           d.FileName,
		AuthorDisplayName:  d.AuthorDisplayName,
		AuthorPhotoURL:     d.AuthorPhotoURL,
		Scheduled:          d.Scheduled,
		ScheduledMessageID: d.ScheduledMessageID,
		CreatedAt:          now.UTC(),
	}
}

// IndexOf returns the position of the message with the given id, or -1.
func IndexOf(messages []Message, id string) int {
	for i := range messages {
		if messages[i].ID == id {
			return i
		}
	}
	return -1
}
