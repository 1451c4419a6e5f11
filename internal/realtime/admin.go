package realtime

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Schlossparktheater-Altrossthal/realtime/pkg/response"
)

// maxEventBodyBytes caps the admin ingress request body. MaxBytesReader
// terminates the connection when the cap is exceeded.
const maxEventBodyBytes = 1_000_000

type adminEvent struct {
	Token     string          `json:"token"`
	EventType string          `json:"eventType"`
	Payload   json.RawMessage `json:"payload"`
}

// AdminEventsHandler returns the gin handler for externally-triggered events
// from the web application. Requests authenticate with a static token; an
// unconfigured token rejects everything (fail-closed).
func AdminEventsHandler(hub *Hub, token string, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" {
			response.Unauthorized(c)
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxEventBodyBytes)

		var req adminEvent
		if err := json.NewDecoder(c.Request.Body).Decode(&req); err != nil {
			response.BadRequest(c, "invalid payload")
			return
		}
		if req.Token != token {
			response.Unauthorized(c)
			return
		}
		if !dispatchAdminEvent(hub, req.EventType, req.Payload) {
			logger.Warn("unsupported admin event", zap.String("event_type", req.EventType))
			response.BadRequest(c, "unsupported event type")
			return
		}
		logger.Debug("admin event dispatched", zap.String("event_type", req.EventType))
		response.OK(c, gin.H{"ok": true})
	}
}

// dispatchAdminEvent validates the payload for the event type and routes the
// event to its target rooms. It reports false, with no side effects, for
// unknown types or payloads missing their required field.
func dispatchAdminEvent(hub *Hub, eventType string, payload json.RawMessage) bool {
	switch eventType {
	case "attendance_updated":
		var p struct {
			RehearsalID  string `json:"rehearsalId"`
			TargetUserID string `json:"targetUserId"`
			Status       string `json:"status"`
			Comment      string `json:"comment"`
			ActorUserID  string `json:"actorUserId"`
		}
		if err := json.Unmarshal(payload, &p); err != nil || p.RehearsalID == "" {
			return false
		}
		rooms := []string{RehearsalRoom(p.RehearsalID)}
		if p.TargetUserID != "" {
			rooms = append(rooms, UserRoom(p.TargetUserID))
		}
		hub.BroadcastToRooms(rooms, AttendanceUpdatedEvent{
			Envelope:     envelope("attendance_updated"),
			RehearsalID:  p.RehearsalID,
			TargetUserID: p.TargetUserID,
			Status:       p.Status,
			Comment:      p.Comment,
			ActorUserID:  p.ActorUserID,
		})
		return true

	case "rehearsal_created":
		var p struct {
			Rehearsal     json.RawMessage `json:"rehearsal"`
			TargetUserIDs []string        `json:"targetUserIds"`
		}
		if err := json.Unmarshal(payload, &p); err != nil || !present(p.Rehearsal) {
			return false
		}
		event := RehearsalCreatedEvent{
			Envelope:      envelope("rehearsal_created"),
			Rehearsal:     p.Rehearsal,
			TargetUserIDs: p.TargetUserIDs,
		}
		if len(p.TargetUserIDs) > 0 {
			rooms := make([]string, 0, len(p.TargetUserIDs))
			for _, id := range p.TargetUserIDs {
				rooms = append(rooms, UserRoom(id))
			}
			hub.BroadcastToRooms(rooms, event)
		} else {
			hub.BroadcastAll(event)
		}
		return true

	case "rehearsal_updated":
		var p struct {
			RehearsalID   string          `json:"rehearsalId"`
			Changes       json.RawMessage `json:"changes"`
			TargetUserIDs []string        `json:"targetUserIds"`
		}
		if err := json.Unmarshal(payload, &p); err != nil || p.RehearsalID == "" {
			return false
		}
		rooms := []string{RehearsalRoom(p.RehearsalID)}
		for _, id := range p.TargetUserIDs {
			rooms = append(rooms, UserRoom(id))
		}
		hub.BroadcastToRooms(rooms, RehearsalUpdatedEvent{
			Envelope:      envelope("rehearsal_updated"),
			RehearsalID:   p.RehearsalID,
			Changes:       p.Changes,
			TargetUserIDs: p.TargetUserIDs,
		})
		return true

	case "notification_created":
		var p struct {
			TargetUserID string          `json:"targetUserId"`
			Notification json.RawMessage `json:"notification"`
		}
		if err := json.Unmarshal(payload, &p); err != nil || p.TargetUserID == "" || !present(p.Notification) {
			return false
		}
		hub.BroadcastToRoom(UserRoom(p.TargetUserID), NotificationCreatedEvent{
			Envelope:     envelope("notification_created"),
			Notification: p.Notification,
			TargetUserID: p.TargetUserID,
		})
		return true
	}
	return false
}

// present reports whether a raw JSON field was supplied with a non-null
// value.
func present(raw json.RawMessage) bool {
	return len(raw) > 0 && string(raw) != "null"
}
