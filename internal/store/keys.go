package store

// Document key layout. Pages live in a sub-collection of their room.
const (
	roomsCollection     = "rooms"
	pagesCollection     = "pages"
	scheduledCollection = "scheduled_messages"
)

func RoomKey(roomID string) string {
	return roomsCollection + "/" + roomID
}

func PageKey(roomID, pageID string) string {
	return RoomKey(roomID) + "/" + pagesCollection + "/" + pageID
}

func ScheduledKey(id string) string {
	return scheduledCollection + "/" + id
}

// ScheduledPendingIndexKey holds the ids of every pending scheduled message.
func ScheduledPendingIndexKey() string {
	return scheduledCollection + "/_pending"
}

// ScheduledOwnerIndexKey holds the ids of every scheduled message of an owner.
func ScheduledOwnerIndexKey(ownerID string) string {
	return scheduledCollection + "/_owners/" + ownerID
}
