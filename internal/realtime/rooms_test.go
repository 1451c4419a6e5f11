package realtime

import (
	"strings"
	"testing"
)

func TestCanJoinRoom(t *testing.T) {
	longRoom := "rehearsal_" + strings.Repeat("a", 191) // 201 chars total
	okLongRoom := "rehearsal_" + strings.Repeat("a", 190)

	tests := []struct {
		room   string
		userID string
		want   bool
	}{
		{"", "alice", false},
		{"global", "alice", true},
		{"user_alice", "alice", true},
		{"user_alice", "bob", false},
		{"user_", "alice", false},
		{"rehearsal_ABC-123", "alice", true},
		{"rehearsal_under_score", "alice", true},
		{"show_premiere2026", "alice", true},
		{"rehearsal_bad room", "alice", false},
		{"rehearsal_", "alice", false},
		{"show_", "alice", false},
		{"rehearsal_äöü", "alice", false},
		{longRoom, "alice", false},
		{okLongRoom, "alice", true},
		{"admin_1", "alice", false},
		{"rehearsal", "alice", false},
	}
	for _, tt := range tests {
		if got := CanJoinRoom(tt.room, tt.userID); got != tt.want {
			t.Errorf("CanJoinRoom(%q, %q) = %v, want %v", tt.room, tt.userID, got, tt.want)
		}
	}
}

func TestRoomHelpers(t *testing.T) {
	if got := UserRoom("u1"); got != "user_u1" {
		t.Errorf("UserRoom = %q", got)
	}
	if got := RehearsalRoom("r1"); got != "rehearsal_r1" {
		t.Errorf("RehearsalRoom = %q", got)
	}
	if got := RehearsalID("rehearsal_r1"); got != "r1" {
		t.Errorf("RehearsalID = %q", got)
	}
	if got := RehearsalID("show_s1"); got != "" {
		t.Errorf("RehearsalID(show) = %q, want empty", got)
	}
}
