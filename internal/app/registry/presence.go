package registry

import "sync"

// PresenceTracker records which room each user currently has open on screen.
// It only suppresses redundant notifications; it never gates persistence.
// Entries die with the process.
type PresenceTracker struct {
	mu     sync.RWMutex
	active map[string]string // userID → roomID
}

func NewPresenceTracker() *PresenceTracker {
	return &PresenceTracker{active: make(map[string]string)}
}

// SetActiveRoom sets or overwrites the user's open room. Last write wins.
func (p *PresenceTracker) SetActiveRoom(userID, roomID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.active[userID] = roomID
}

// ActiveRoom returns the room the user has open, if any.
func (p *PresenceTracker) ActiveRoom(userID string) (string, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	roomID, ok := p.active[userID]
	return roomID, ok
}

// ClearActiveRoom removes the user's entry.
func (p *PresenceTracker) ClearActiveRoom(userID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.active, userID)
}
