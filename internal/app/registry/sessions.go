package registry

import (
	"sync"

	"github.com/veerababu08/sahtalk-backend/internal/core/contracts"
)

// SessionRegistry maps a user to their single live session and back. A later
// registration for the same user supersedes the earlier one; the superseded
// handle is never reported again.
type SessionRegistry struct {
	mu        sync.RWMutex
	byUser    map[string]contracts.Client // userID → live session
	bySession map[string]string           // sessionID → userID
}

func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{
		byUser:    make(map[string]contracts.Client),
		bySession: make(map[string]string),
	}
}

// Register binds userID to c, overwriting any prior binding. Idempotent.
func (r *SessionRegistry) Register(userID string, c contracts.Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byUser[userID] = c
	r.bySession[c.SessionID()] = userID
}

// Resolve returns the live session for userID, if any.
func (r *SessionRegistry) Resolve(userID string) (contracts.Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byUser[userID]
	return c, ok
}

// Unbind removes the reverse mapping for sessionID. The forward mapping is
// removed only when it still points at this exact session, so a slow
// disconnect of a superseded session cannot clobber the newer registration.
// It reports the bound user and whether this session owned the forward
// mapping.
func (r *SessionRegistry) Unbind(sessionID string) (userID string, owned bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	userID, ok := r.bySession[sessionID]
	if !ok {
		return "", false
	}
	delete(r.bySession, sessionID)
	if c, ok := r.byUser[userID]; ok && c.SessionID() == sessionID {
		delete(r.byUser, userID)
		return userID, true
	}
	return userID, false
}
