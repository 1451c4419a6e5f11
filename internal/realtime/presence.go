package realtime

import (
	"sync"
	"time"
)

// presenceEntry tracks one member while at least one of their connections is
// live. Multi-device sessions collapse into a single entry; "online" means
// the connection set is non-empty.
type presenceEntry struct {
	displayName string
	lastSeen    time.Time
	connections map[string]struct{}
}

// Presence is the in-memory source of truth for which members are online.
// It performs no I/O; callers emit the broadcasts after a mutation returns.
type Presence struct {
	mu      sync.Mutex
	entries map[string]*presenceEntry
}

// OnlineUser is one member in an online-stats snapshot.
type OnlineUser struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	LastSeen string `json:"lastSeen"`
}

// OnlineStats is the presence snapshot broadcast after every register or
// unregister.
type OnlineStats struct {
	TotalOnline int          `json:"totalOnline"`
	OnlineUsers []OnlineUser `json:"onlineUsers"`
}

// NewPresence creates an empty presence registry.
func NewPresence() *Presence {
	return &Presence{entries: make(map[string]*presenceEntry)}
}

// Register records a live connection for a member. It reports whether the
// member just came online (first connection); additional connections only
// refresh last-seen.
func (p *Presence) Register(userID, displayName, connID string) (cameOnline bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	entry, ok := p.entries[userID]
	if !ok {
		p.entries[userID] = &presenceEntry{
			displayName: displayName,
			lastSeen:    time.Now(),
			connections: map[string]struct{}{connID: {}},
		}
		return true
	}
	entry.connections[connID] = struct{}{}
	entry.lastSeen = time.Now()
	return false
}

// Unregister removes a connection for a member. It reports whether the
// member went offline (last connection closed) and their display name.
func (p *Presence) Unregister(userID, connID string) (wentOffline bool, displayName string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	entry, ok := p.entries[userID]
	if !ok {
		return false, ""
	}
	delete(entry.connections, connID)
	if len(entry.connections) == 0 {
		delete(p.entries, userID)
		return true, entry.displayName
	}
	entry.lastSeen = time.Now()
	return false, entry.displayName
}

// Snapshot returns the current online count and per-member presence.
func (p *Presence) Snapshot() OnlineStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	stats := OnlineStats{
		TotalOnline: len(p.entries),
		OnlineUsers: make([]OnlineUser, 0, len(p.entries)),
	}
	for id, entry := range p.entries {
		stats.OnlineUsers = append(stats.OnlineUsers, OnlineUser{
			ID:       id,
			Name:     entry.displayName,
			LastSeen: entry.lastSeen.UTC().Format(time.RFC3339),
		})
	}
	return stats
}
