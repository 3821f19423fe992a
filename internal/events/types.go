package events

// Room event names, as sent to clients in the "event" field.
const (
	EventMessageCreated      = "message-created"
	EventReactionUpdated     = "reaction-updated"
	EventMessageEdited       = "message-edited"
	EventMessageDeleted      = "message-deleted"
	EventMessageSavedToggled = "message-saved-toggled"
)
