package realtime

import (
	"regexp"
	"strings"
)

// Room name shapes. "global" is joined by every connection; user rooms are
// private per-member channels; rehearsal and show rooms are open to any
// authenticated member who asks.
const (
	RoomGlobal          = "global"
	userRoomPrefix      = "user_"
	rehearsalRoomPrefix = "rehearsal_"
	showRoomPrefix      = "show_"

	maxRoomNameLen = 200
)

var roomSuffixPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// UserRoom returns the private room name for a member.
func UserRoom(userID string) string {
	return userRoomPrefix + userID
}

// RehearsalRoom returns the room name for a rehearsal.
func RehearsalRoom(rehearsalID string) string {
	return rehearsalRoomPrefix + rehearsalID
}

// RehearsalID returns the rehearsal identifier for a rehearsal room name, or
// "" if the name is not a rehearsal room.
func RehearsalID(room string) string {
	if !strings.HasPrefix(room, rehearsalRoomPrefix) {
		return ""
	}
	return strings.TrimPrefix(room, rehearsalRoomPrefix)
}

// CanJoinRoom decides whether the member identified by userID may join the
// named room. Members may always join "global", only their own user room,
// and any well-formed rehearsal or show room.
func CanJoinRoom(room, userID string) bool {
	if room == "" {
		return false
	}
	if room == RoomGlobal {
		return true
	}
	if strings.HasPrefix(room, userRoomPrefix) {
		return strings.TrimPrefix(room, userRoomPrefix) == userID
	}
	var suffix string
	switch {
	case strings.HasPrefix(room, rehearsalRoomPrefix):
		suffix = strings.TrimPrefix(room, rehearsalRoomPrefix)
	case strings.HasPrefix(room, showRoomPrefix):
		suffix = strings.TrimPrefix(room, showRoomPrefix)
	default:
		return false
	}
	if len(room) > maxRoomNameLen {
		return false
	}
	return roomSuffixPattern.MatchString(suffix)
}
