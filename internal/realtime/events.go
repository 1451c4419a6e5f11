package realtime

import (
	"encoding/json"
	"time"
)

// Envelope is embedded in every server→client event. Timestamp is the
// ISO-8601 emission time.
type Envelope struct {
	Type      string `json:"type"`
	Timestamp string `json:"timestamp"`
}

func envelope(eventType string) Envelope {
	return Envelope{Type: eventType, Timestamp: time.Now().UTC().Format(time.RFC3339)}
}

// UserRef identifies a member in presence events.
type UserRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// PongEvent answers a client ping.
type PongEvent struct {
	Envelope
}

func newPongEvent() PongEvent {
	return PongEvent{Envelope: envelope("pong")}
}

// OnlineStatsEvent carries the full presence snapshot.
type OnlineStatsEvent struct {
	Envelope
	Stats OnlineStats `json:"stats"`
}

func newOnlineStatsEvent(stats OnlineStats) OnlineStatsEvent {
	return OnlineStatsEvent{Envelope: envelope("online_stats_update"), Stats: stats}
}

// UserJoinedEvent announces a member coming online.
type UserJoinedEvent struct {
	Envelope
	User UserRef `json:"user"`
}

func newUserJoinedEvent(user UserRef) UserJoinedEvent {
	return UserJoinedEvent{Envelope: envelope("user_joined"), User: user}
}

// UserLeftEvent announces a member going offline.
type UserLeftEvent struct {
	Envelope
	User UserRef `json:"user"`
}

func newUserLeftEvent(user UserRef) UserLeftEvent {
	return UserLeftEvent{Envelope: envelope("user_left"), User: user}
}

// UserPresenceEvent announces a join or leave within a room.
type UserPresenceEvent struct {
	Envelope
	Action string  `json:"action"`
	Room   string  `json:"room"`
	User   UserRef `json:"user"`
}

func newUserPresenceEvent(action, room string, user UserRef) UserPresenceEvent {
	return UserPresenceEvent{Envelope: envelope("user_presence"), Action: action, Room: room, User: user}
}

// RehearsalUsersEvent lists the members currently in a rehearsal room.
type RehearsalUsersEvent struct {
	Envelope
	RehearsalID string    `json:"rehearsalId"`
	Users       []UserRef `json:"users"`
}

func newRehearsalUsersEvent(rehearsalID string, users []UserRef) RehearsalUsersEvent {
	return RehearsalUsersEvent{Envelope: envelope("rehearsal_users_list"), RehearsalID: rehearsalID, Users: users}
}

// AnalyticsEvent carries a server-load snapshot.
type AnalyticsEvent struct {
	Envelope
	Analytics any `json:"analytics"`
}

// NewAnalyticsEvent wraps a server-load snapshot for broadcast. Exported for
// the periodic broadcast loop in cmd/server.
func NewAnalyticsEvent(snapshot any) AnalyticsEvent {
	return AnalyticsEvent{Envelope: envelope("server_analytics_update"), Analytics: snapshot}
}

// AttendanceUpdatedEvent relays an attendance change from the web
// application.
type AttendanceUpdatedEvent struct {
	Envelope
	RehearsalID  string `json:"rehearsalId"`
	TargetUserID string `json:"targetUserId,omitempty"`
	Status       string `json:"status,omitempty"`
	Comment      string `json:"comment,omitempty"`
	ActorUserID  string `json:"actorUserId,omitempty"`
}

// RehearsalCreatedEvent relays a newly created rehearsal.
type RehearsalCreatedEvent struct {
	Envelope
	Rehearsal     json.RawMessage `json:"rehearsal"`
	TargetUserIDs []string        `json:"targetUserIds,omitempty"`
}

// RehearsalUpdatedEvent relays changes to an existing rehearsal.
type RehearsalUpdatedEvent struct {
	Envelope
	RehearsalID   string          `json:"rehearsalId"`
	Changes       json.RawMessage `json:"changes,omitempty"`
	TargetUserIDs []string        `json:"targetUserIds,omitempty"`
}

// NotificationCreatedEvent relays a notification to one member.
type NotificationCreatedEvent struct {
	Envelope
	Notification json.RawMessage `json:"notification"`
	TargetUserID string          `json:"targetUserId"`
}

// ErrorEvent informs a single connection about a fatal-for-it condition.
type ErrorEvent struct {
	Envelope
	Message string `json:"message"`
}

func newErrorEvent(message string) ErrorEvent {
	return ErrorEvent{Envelope: envelope("error"), Message: message}
}
