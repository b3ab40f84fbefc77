package registry

import (
	"context"
	"sync"

	"github.com/veerababu08/sahtalk-backend/internal/core/contracts"
)

// RoomHub tracks which live sessions are joined to each room's broadcast
// group and owns the room delivery workers: the first join of a room starts
// its worker, the last leave stops it.
type RoomHub struct {
	mu        sync.RWMutex
	rooms     map[string]map[string]contracts.Client // roomID → sessionID → client
	workers   map[string]context.CancelFunc
	runWorker func(ctx context.Context, roomID string) error
}

func NewRoomHub() *RoomHub {
	return &RoomHub{
		rooms:   make(map[string]map[string]contracts.Client),
		workers: make(map[string]context.CancelFunc),
	}
}

// RunWorker sets the per-room worker entry point. Must be called before the
// first Join.
func (h *RoomHub) RunWorker(run func(ctx context.Context, roomID string) error) {
	h.runWorker = run
}

// Join adds c to roomID's broadcast group.
func (h *RoomHub) Join(roomID string, c contracts.Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[roomID] == nil {
		h.rooms[roomID] = make(map[string]contracts.Client)
		if h.runWorker != nil {
			ctx, cancel := context.WithCancel(context.Background())
			h.workers[roomID] = cancel
			go h.runWorker(ctx, roomID)
		}
	}
	h.rooms[roomID][c.SessionID()] = c
}

// Leave removes the session from roomID's broadcast group.
func (h *RoomHub) Leave(roomID, sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.drop(roomID, sessionID)
}

// LeaveAll removes the session from every group it joined. Runs on transport
// close, which is the only guaranteed cleanup signal.
func (h *RoomHub) LeaveAll(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for roomID, members := range h.rooms {
		if _, ok := members[sessionID]; ok {
			h.drop(roomID, sessionID)
		}
	}
}

// drop assumes h.mu is held.
func (h *RoomHub) drop(roomID, sessionID string) {
	members := h.rooms[roomID]
	if members == nil {
		return
	}
	delete(members, sessionID)
	if len(members) == 0 {
		delete(h.rooms, roomID)
		if cancel := h.workers[roomID]; cancel != nil {
			cancel()
			delete(h.workers, roomID)
		}
	}
}

// Members returns a snapshot of the sessions joined to roomID.
func (h *RoomHub) Members(roomID string) []contracts.Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	members := make([]contracts.Client, 0, len(h.rooms[roomID]))
	for _, c := range h.rooms[roomID] {
		members = append(members, c)
	}
	return members
}

// Broadcast sends data to every session in roomID's group, skipping
// exceptSession when non-empty. The member set is copied out before any
// send so no registry lock is held during I/O.
func (h *RoomHub) Broadcast(ctx context.Context, roomID, exceptSession string, data []byte) {
	for _, c := range h.Members(roomID) {
		if exceptSession != "" && c.SessionID() == exceptSession {
			continue
		}
		_ = c.Send(ctx, data)
	}
}
