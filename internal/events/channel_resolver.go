package events

import "strings"

// ChannelPrefixRoom prefixes the pub/sub channel and hub topic of a room.
const ChannelPrefixRoom = "channel:room:"

// RoomChannel returns the topic events of roomID are published on.
func RoomChannel(roomID string) string {
	return ChannelPrefixRoom + roomID
}

// RoomIDFromChannel is the inverse of RoomChannel.
func RoomIDFromChannel(channel string) (string, bool) {
	if !strings.HasPrefix(channel, ChannelPrefixRoom) {
		return "", false
	}
	id := strings.TrimPrefix(channel, ChannelPrefixRoom)
	return id, id != ""
}
