package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Schlossparktheater-Altrossthal/realtime/internal/analytics"
)

const (
	// PingInterval and PongWait are used for heartbeat.
	PingInterval = 30
	PongWait     = 60

	writeTimeout = 10 * time.Second
	readLimit    = 65536

	// defaultDisplayName is used when the handshake carries no usable name.
	defaultDisplayName = "Mitglied"
)

// Gateway wires handshake verification, presence bookkeeping, room
// authorization and analytics delivery into the connection-accept path.
type Gateway struct {
	Hub            *Hub
	Presence       *Presence
	Analytics      *analytics.Cache
	Secret         string
	AllowedOrigins string
	Logger         *zap.Logger
}

// Client represents a single live WebSocket connection of one member.
type Client struct {
	ID          string
	UserID      string
	DisplayName string
	gateway     *Gateway
	conn        *websocket.Conn
	send        chan []byte
	rooms       map[string]struct{} // guarded by the hub mutex
}

// inboundMessage is the client→server message envelope.
type inboundMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type roomPayload struct {
	Room string `json:"room"`
}

type rehearsalPayload struct {
	RehearsalID string `json:"rehearsalId"`
}

// Handler returns the gin handler serving the WebSocket endpoint. The
// handshake is verified before the upgrade; a rejected handshake never
// creates any session state.
func (g *Gateway) Handler() gin.HandlerFunc {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(g.AllowedOrigins),
	}
	return func(c *gin.Context) {
		userID := strings.TrimSpace(c.Query("userId"))
		displayName := strings.TrimSpace(c.Query("userName"))
		token := c.Query("token")

		if _, err := VerifyHandshake(g.Secret, userID, token, time.Now()); err != nil {
			g.Logger.Warn("handshake rejected", zap.String("user_id", userID), zap.Error(err))
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			g.Logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}

		if displayName == "" {
			displayName = defaultDisplayName
		}
		client := &Client{
			ID:          uuid.New().String(),
			UserID:      userID,
			DisplayName: displayName,
			gateway:     g,
			conn:        conn,
			send:        make(chan []byte, 256),
			rooms:       make(map[string]struct{}),
		}

		// Verification guarantees a user id; fail the connection rather
		// than register an anonymous session if that ever breaks.
		if client.UserID == "" {
			if data, err := json.Marshal(newErrorEvent("authentication incomplete")); err == nil {
				_ = conn.WriteMessage(websocket.TextMessage, data)
			}
			_ = conn.Close()
			return
		}

		g.Hub.Add(client)
		go client.writePump()
		g.register(client)
		client.readPump()
	}
}

// register runs the post-handshake sequence: presence registration, the
// default room join, and the analytics snapshot for the new connection.
func (g *Gateway) register(c *Client) {
	if g.Presence.Register(c.UserID, c.DisplayName, c.ID) {
		g.Hub.BroadcastAll(newUserJoinedEvent(c.userRef()))
	}
	g.Hub.BroadcastAll(newOnlineStatsEvent(g.Presence.Snapshot()))
	g.Hub.JoinRoom(c, RoomGlobal)
	g.Hub.SendToClient(c.ID, NewAnalyticsEvent(g.Analytics.Get(context.Background())))
	g.Logger.Info("member connected",
		zap.String("conn_id", c.ID),
		zap.String("user_id", c.UserID),
	)
}

// disconnect runs the teardown sequence: a leave event for every room still
// joined, then presence unregistration and the offline broadcasts.
func (g *Gateway) disconnect(c *Client) {
	for _, room := range g.Hub.Rooms(c) {
		g.Hub.BroadcastToRoomExcept(room, c.ID, newUserPresenceEvent("leave", room, c.userRef()))
	}
	g.Hub.Remove(c)
	wentOffline, name := g.Presence.Unregister(c.UserID, c.ID)
	if wentOffline {
		g.Hub.BroadcastAll(newUserLeftEvent(UserRef{ID: c.UserID, Name: name}))
	}
	g.Hub.BroadcastAll(newOnlineStatsEvent(g.Presence.Snapshot()))
	_ = c.conn.Close()
	g.Logger.Info("member disconnected",
		zap.String("conn_id", c.ID),
		zap.String("user_id", c.UserID),
	)
}

func (g *Gateway) dispatch(c *Client, msg inboundMessage) {
	switch msg.Event {
	case "join_room":
		var p roomPayload
		if err := json.Unmarshal(msg.Data, &p); err != nil {
			return
		}
		g.handleJoinRoom(c, p.Room)
	case "leave_room":
		var p roomPayload
		if err := json.Unmarshal(msg.Data, &p); err != nil {
			return
		}
		g.handleLeaveRoom(c, p.Room)
	case "get_online_stats":
		g.Hub.BroadcastAll(newOnlineStatsEvent(g.Presence.Snapshot()))
	case "get_rehearsal_users":
		var p rehearsalPayload
		if err := json.Unmarshal(msg.Data, &p); err != nil {
			return
		}
		room := RehearsalRoom(p.RehearsalID)
		if g.Hub.InRoom(c, room) {
			g.Hub.SendToClient(c.ID, newRehearsalUsersEvent(p.RehearsalID, g.Hub.RoomMembers(room)))
		}
	case "get_server_analytics":
		g.Hub.SendToClient(c.ID, NewAnalyticsEvent(g.Analytics.Get(context.Background())))
	case "ping":
		g.Hub.SendToClient(c.ID, newPongEvent())
	default:
		// ignore
	}
}

func (g *Gateway) handleJoinRoom(c *Client, room string) {
	if !CanJoinRoom(room, c.UserID) {
		g.Logger.Warn("room join denied",
			zap.String("room", room),
			zap.String("user_id", c.UserID),
		)
		return
	}
	if !g.Hub.JoinRoom(c, room) {
		return // already a member
	}
	g.Hub.BroadcastToRoomExcept(room, c.ID, newUserPresenceEvent("join", room, c.userRef()))
	if id := RehearsalID(room); id != "" {
		g.Hub.SendToClient(c.ID, newRehearsalUsersEvent(id, g.Hub.RoomMembers(room)))
	}
}

func (g *Gateway) handleLeaveRoom(c *Client, room string) {
	if !g.Hub.LeaveRoom(c, room) {
		return // not a member
	}
	g.Hub.BroadcastToRoom(room, newUserPresenceEvent("leave", room, c.userRef()))
}

func (c *Client) userRef() UserRef {
	return UserRef{ID: c.UserID, Name: c.DisplayName}
}

// trySend queues data for the write pump without blocking.
func (c *Client) trySend(data []byte) {
	select {
	case c.send <- data:
	default:
		// buffer full, skip
	}
}

func (c *Client) readPump() {
	defer c.gateway.disconnect(c)

	c.conn.SetReadLimit(readLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			break
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))

		var msg inboundMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		c.gateway.dispatch(c, msg)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(PingInterval * time.Second)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// originChecker builds the upgrade origin check from the CORS allowlist:
// "*" or an empty list allows any origin.
func originChecker(allowedOrigins string) func(*http.Request) bool {
	allowed := make(map[string]bool)
	wildcard := strings.TrimSpace(allowedOrigins) == ""
	for _, o := range strings.Split(allowedOrigins, ",") {
		o = strings.TrimSpace(o)
		if o == "*" {
			wildcard = true
		} else if o != "" {
			allowed[o] = true
		}
	}
	return func(r *http.Request) bool {
		if wildcard {
			return true
		}
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true // non-browser client
		}
		return allowed[origin]
	}
}
