package realtime

import "testing"

func TestPresence_MultiConnectionCollapse(t *testing.T) {
	p := NewPresence()

	if !p.Register("u1", "Anna", "conn-1") {
		t.Error("first connection should come online")
	}
	if p.Register("u1", "Anna", "conn-2") {
		t.Error("second connection must not come online again")
	}

	stats := p.Snapshot()
	if stats.TotalOnline != 1 {
		t.Fatalf("TotalOnline = %d, want 1", stats.TotalOnline)
	}
	if stats.OnlineUsers[0].ID != "u1" || stats.OnlineUsers[0].Name != "Anna" {
		t.Errorf("snapshot entry = %+v", stats.OnlineUsers[0])
	}
	if stats.OnlineUsers[0].LastSeen == "" {
		t.Error("LastSeen not set")
	}

	if off, _ := p.Unregister("u1", "conn-1"); off {
		t.Error("user still has a live connection, must not go offline")
	}
	off, name := p.Unregister("u1", "conn-2")
	if !off {
		t.Error("last connection closed, user must go offline")
	}
	if name != "Anna" {
		t.Errorf("name = %q, want Anna", name)
	}

	if got := p.Snapshot().TotalOnline; got != 0 {
		t.Errorf("TotalOnline after last unregister = %d, want 0", got)
	}
}

func TestPresence_UnregisterUnknown(t *testing.T) {
	p := NewPresence()
	if off, _ := p.Unregister("ghost", "conn-1"); off {
		t.Error("unknown user must not report offline transition")
	}
}

func TestPresence_DistinctUsers(t *testing.T) {
	p := NewPresence()
	p.Register("u1", "Anna", "c1")
	p.Register("u2", "Ben", "c2")
	if got := p.Snapshot().TotalOnline; got != 2 {
		t.Errorf("TotalOnline = %d, want 2", got)
	}
}
