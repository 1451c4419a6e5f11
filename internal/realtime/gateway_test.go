package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Schlossparktheater-Altrossthal/realtime/internal/analytics"
)

type stubSampler struct{}

func (stubSampler) Collect(context.Context) (*analytics.Snapshot, error) {
	return &analytics.Snapshot{
		GeneratedAt: time.Now(),
		ServerLoad:  []analytics.Measurement{{ID: "cpu", Label: "CPU", Usage: 10, Capacity: "4 Kerne"}},
		Metadata:    analytics.Metadata{Source: "live"},
	}, nil
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()
	gateway := &Gateway{
		Hub:            NewHub(logger),
		Presence:       NewPresence(),
		Analytics:      analytics.NewCache(stubSampler{}, time.Hour, time.Hour, logger),
		Secret:         testSecret,
		AllowedOrigins: "*",
		Logger:         logger,
	}
	router := gin.New()
	router.GET("/realtime", gateway.Handler())
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return server
}

func dialWS(t *testing.T, server *httptest.Server, userID, userName string) *websocket.Conn {
	t.Helper()
	now := time.Now()
	token := MintHandshakeToken(testSecret, userID, now.UnixMilli(), now.Add(time.Hour).UnixMilli())
	u, err := url.Parse(server.URL)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	u.Scheme = "ws"
	u.Path = "/realtime"
	q := url.Values{}
	q.Set("userId", userID)
	q.Set("userName", userName)
	q.Set("token", token)
	u.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func sendEvent(t *testing.T, conn *websocket.Conn, event string, data any) {
	t.Helper()
	msg := map[string]any{"event": event}
	if data != nil {
		msg["data"] = data
	}
	if err := conn.WriteJSON(msg); err != nil {
		t.Fatalf("send %s: %v", event, err)
	}
}

func readEvent(t *testing.T, conn *websocket.Conn) (string, map[string]any) {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("unmarshal %q: %v", data, err)
	}
	typ, _ := m["type"].(string)
	if typ == "" {
		t.Fatalf("event without type: %s", data)
	}
	if ts, _ := m["timestamp"].(string); ts == "" {
		t.Errorf("%s event without timestamp", typ)
	}
	return typ, m
}

func expectEvent(t *testing.T, conn *websocket.Conn, want string) map[string]any {
	t.Helper()
	typ, m := readEvent(t, conn)
	if typ != want {
		t.Fatalf("event = %s, want %s (%v)", typ, want, m)
	}
	return m
}

func TestGateway_RejectsInvalidToken(t *testing.T) {
	server := newTestServer(t)
	resp, err := http.Get(fmt.Sprintf("%s/realtime?userId=u1&token=%s", server.URL, "1.2.deadbeef"))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}
}

func TestGateway_ConnectSequenceAndPing(t *testing.T) {
	server := newTestServer(t)
	conn := dialWS(t, server, "user-1", "Anna")

	expectEvent(t, conn, "user_joined")
	stats := expectEvent(t, conn, "online_stats_update")
	expectEvent(t, conn, "server_analytics_update")

	statsObj, _ := stats["stats"].(map[string]any)
	if total, _ := statsObj["totalOnline"].(float64); total != 1 {
		t.Errorf("totalOnline = %v, want 1", total)
	}

	sendEvent(t, conn, "ping", nil)
	expectEvent(t, conn, "pong")

	// Joining the default room again must emit nothing: the next event
	// after a ping has to be the pong.
	sendEvent(t, conn, "join_room", map[string]string{"room": "global"})
	sendEvent(t, conn, "ping", nil)
	expectEvent(t, conn, "pong")
}

func TestGateway_AnalyticsOnRequest(t *testing.T) {
	server := newTestServer(t)
	conn := dialWS(t, server, "user-1", "Anna")
	expectEvent(t, conn, "user_joined")
	expectEvent(t, conn, "online_stats_update")
	expectEvent(t, conn, "server_analytics_update")

	sendEvent(t, conn, "get_server_analytics", nil)
	m := expectEvent(t, conn, "server_analytics_update")
	if m["analytics"] == nil {
		t.Error("analytics payload missing")
	}
}

func TestGateway_RehearsalRoomLifecycle(t *testing.T) {
	server := newTestServer(t)

	conn1 := dialWS(t, server, "user-1", "Anna")
	expectEvent(t, conn1, "user_joined")
	expectEvent(t, conn1, "online_stats_update")
	expectEvent(t, conn1, "server_analytics_update")

	conn2 := dialWS(t, server, "user-2", "Ben")
	expectEvent(t, conn2, "user_joined")
	expectEvent(t, conn2, "online_stats_update")
	expectEvent(t, conn2, "server_analytics_update")
	// conn1 sees user-2 come online.
	expectEvent(t, conn1, "user_joined")
	expectEvent(t, conn1, "online_stats_update")

	// conn2 joins the rehearsal room first: alone, it only gets the
	// occupant list.
	sendEvent(t, conn2, "join_room", map[string]string{"room": "rehearsal_r1"})
	list := expectEvent(t, conn2, "rehearsal_users_list")
	if users, _ := list["users"].([]any); len(users) != 1 {
		t.Errorf("occupants = %v, want 1", list["users"])
	}

	// conn1 joins: conn2 sees the join, conn1 gets both occupants.
	sendEvent(t, conn1, "join_room", map[string]string{"room": "rehearsal_r1"})
	presence := expectEvent(t, conn2, "user_presence")
	if presence["action"] != "join" || presence["room"] != "rehearsal_r1" {
		t.Errorf("presence = %v", presence)
	}
	list = expectEvent(t, conn1, "rehearsal_users_list")
	if users, _ := list["users"].([]any); len(users) != 2 {
		t.Errorf("occupants = %v, want 2", list["users"])
	}

	// Occupant query is only honored for members.
	sendEvent(t, conn2, "get_rehearsal_users", map[string]string{"rehearsalId": "r1"})
	expectEvent(t, conn2, "rehearsal_users_list")
	sendEvent(t, conn2, "get_rehearsal_users", map[string]string{"rehearsalId": "other"})
	sendEvent(t, conn2, "ping", nil)
	expectEvent(t, conn2, "pong")

	// Explicit leave notifies the remaining member.
	sendEvent(t, conn1, "leave_room", map[string]string{"room": "rehearsal_r1"})
	presence = expectEvent(t, conn2, "user_presence")
	if presence["action"] != "leave" || presence["room"] != "rehearsal_r1" {
		t.Errorf("presence = %v", presence)
	}

	// Disconnect: room sweep for global, then offline broadcasts.
	_ = conn1.Close()
	presence = expectEvent(t, conn2, "user_presence")
	if presence["action"] != "leave" || presence["room"] != "global" {
		t.Errorf("sweep presence = %v", presence)
	}
	left := expectEvent(t, conn2, "user_left")
	if user, _ := left["user"].(map[string]any); user["id"] != "user-1" {
		t.Errorf("user_left = %v", left)
	}
	stats := expectEvent(t, conn2, "online_stats_update")
	statsObj, _ := stats["stats"].(map[string]any)
	if total, _ := statsObj["totalOnline"].(float64); total != 1 {
		t.Errorf("totalOnline = %v, want 1", total)
	}
}

func TestGateway_DeniedRoomJoinIsSilent(t *testing.T) {
	server := newTestServer(t)
	conn := dialWS(t, server, "user-1", "Anna")
	expectEvent(t, conn, "user_joined")
	expectEvent(t, conn, "online_stats_update")
	expectEvent(t, conn, "server_analytics_update")

	// Foreign user channel: dropped without an error event.
	sendEvent(t, conn, "join_room", map[string]string{"room": "user_someone-else"})
	sendEvent(t, conn, "ping", nil)
	expectEvent(t, conn, "pong")
}

func TestGateway_SecondDeviceDoesNotRebroadcastJoin(t *testing.T) {
	server := newTestServer(t)

	conn1 := dialWS(t, server, "user-1", "Anna")
	expectEvent(t, conn1, "user_joined")
	expectEvent(t, conn1, "online_stats_update")
	expectEvent(t, conn1, "server_analytics_update")

	// Second connection of the same member: stats refresh, but no second
	// user_joined.
	conn2 := dialWS(t, server, "user-1", "Anna")
	expectEvent(t, conn2, "online_stats_update")
	expectEvent(t, conn2, "server_analytics_update")
	expectEvent(t, conn1, "online_stats_update")

	sendEvent(t, conn1, "ping", nil)
	expectEvent(t, conn1, "pong")
}
