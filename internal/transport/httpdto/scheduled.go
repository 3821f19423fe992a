package httpdto

import "time"

type CreateScheduledMessageRequest struct {
	RoomID      string    `json:"room_id" binding:"required"`
	Message     string    `json:"message" binding:"required"`
	MessageType string    `json:"message_type"`
	FileName    string    `json:"file_name"`
	ScheduledAt time.Time `json:"scheduled_time" binding:"required"`
	Recurrence  string    `json:"recurring_pattern"`
	Timezone    string    `json:"timezone"`
}

// UpdateScheduledMessageRequest only changes the fields that are present.
type UpdateScheduledMessageRequest struct {
	Message     *string    `json:"message"`
	ScheduledAt *time.Time `json:"scheduled_time"`
	Recurrence  *string    `json:"recurring_pattern"`
	Timezone    *string    `json:"timezone"`
}
