package services

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/veerababu08/sahtalk-backend/internal/app/registry"
	"github.com/veerababu08/sahtalk-backend/internal/core/contracts"
	"github.com/veerababu08/sahtalk-backend/internal/core/domain"
	"github.com/veerababu08/sahtalk-backend/pkg/logging"
)

var managerTracer = otel.Tracer("session-manager")

// Session is the per-transport lifecycle state: CONNECTED until a register
// event binds a user, REGISTERED until the transport closes. All fields
// except client are touched only from the session's own read goroutine.
type Session struct {
	ID         string
	client     contracts.Client
	authUserID string // from the JWT that opened the transport
	userID     string // set by the register event
}

// UserID returns the registered user, or "" while still CONNECTED.
func (s *Session) UserID() string { return s.userID }

// SessionManager owns the transport entry/exit protocol: it populates the
// session registry, presence tracker and room hub on register/join, and
// clears them on leave and on transport close. It is the only writer of
// those registries.
type SessionManager struct {
	log      *slog.Logger
	sessions *registry.SessionRegistry
	presence *registry.PresenceTracker
	rooms    *registry.RoomHub
	relay    *MessageRelay
	calls    *CallRelay
}

func NewSessionManager(
	log *slog.Logger,
	sessions *registry.SessionRegistry,
	presence *registry.PresenceTracker,
	rooms *registry.RoomHub,
	relay *MessageRelay,
	calls *CallRelay,
) *SessionManager {
	return &SessionManager{
		log:      log,
		sessions: sessions,
		presence: presence,
		rooms:    rooms,
		relay:    relay,
		calls:    calls,
	}
}

// StartSession wraps a freshly upgraded transport. No registry writes happen
// until the client sends its register event.
func (m *SessionManager) StartSession(c contracts.Client, authUserID string) *Session {
	return &Session{
		ID:         c.SessionID(),
		client:     c,
		authUserID: authUserID,
	}
}

// Dispatch routes one inbound frame. Malformed frames are dropped with a
// log line; they never take the session down or touch other sessions.
func (m *SessionManager) Dispatch(ctx context.Context, s *Session, raw []byte) {
	ev, err := domain.ParseClientEvent(raw)
	if err != nil {
		m.log.InfoContext(ctx, "manager - dispatch - frame dropped", logging.Session(s.ID), logging.Err(err))
		return
	}
	switch ev := ev.(type) {
	case domain.RegisterEvent:
		m.handleRegister(ctx, s, ev)
	case domain.JoinRoomEvent:
		m.handleJoin(ctx, s, ev)
	case domain.LeaveRoomEvent:
		m.handleLeave(ctx, s, ev)
	case domain.SendMessageEvent:
		m.handleSend(ctx, s, ev)
	case domain.CallUserEvent:
		m.calls.HandleCallUser(ctx, s.client, ev)
	case domain.AnswerCallEvent:
		m.calls.HandleAnswerCall(ctx, s.client, ev)
	case domain.ICECandidateEvent:
		m.calls.HandleICECandidate(ctx, ev)
	case domain.EndCallEvent:
		m.calls.HandleEndCall(ctx, ev)
	}
}

// handleRegister binds the session to its user. Clients send this once per
// concern (chat and calls), so repeats are expected and idempotent.
func (m *SessionManager) handleRegister(ctx context.Context, s *Session, ev domain.RegisterEvent) {
	ctx, span := managerTracer.Start(ctx, "SessionManager.Register", trace.WithAttributes(
		attribute.String("session_id", s.ID),
		attribute.String("user_id", ev.UserID),
	))
	defer span.End()
	if ev.UserID == "" {
		m.log.InfoContext(ctx, "manager - register - missing user id", logging.Session(s.ID))
		return
	}
	// The transport was opened under a JWT; a register event for anyone else
	// is dropped rather than allowed to hijack that user's delivery.
	if s.authUserID != "" && ev.UserID != s.authUserID {
		m.log.InfoContext(ctx, "manager - register - user mismatch", logging.Session(s.ID), logging.User(ev.UserID))
		return
	}
	s.userID = ev.UserID
	m.sessions.Register(ev.UserID, s.client)
	m.log.InfoContext(ctx, "manager - register - session bound", logging.Session(s.ID), logging.User(ev.UserID))
	frame, err := domain.MarshalServerEvent(domain.EventRegistered, domain.RegisteredAck{
		SessionID: s.ID,
		UserID:    ev.UserID,
	})
	if err != nil {
		return
	}
	_ = s.client.Send(ctx, frame)
}

// handleJoin adds the transport to the room's broadcast group, marks the
// room as the user's open screen and tells the rest of the room.
func (m *SessionManager) handleJoin(ctx context.Context, s *Session, ev domain.JoinRoomEvent) {
	if ev.RoomID == "" || ev.UserID == "" {
		m.log.InfoContext(ctx, "manager - join room - missing ids", logging.Session(s.ID))
		return
	}
	m.rooms.Join(ev.RoomID, s.client)
	m.presence.SetActiveRoom(ev.UserID, ev.RoomID)
	m.log.InfoContext(ctx, "manager - join room - joined", logging.Session(s.ID), logging.Room(ev.RoomID), logging.User(ev.UserID))
	m.announce(ctx, s, ev.RoomID, ev.UserID, "joined")
}

func (m *SessionManager) handleLeave(ctx context.Context, s *Session, ev domain.LeaveRoomEvent) {
	if ev.RoomID == "" {
		m.log.InfoContext(ctx, "manager - leave room - missing room id", logging.Session(s.ID))
		return
	}
	m.rooms.Leave(ev.RoomID, s.ID)
	if ev.UserID != "" {
		m.presence.ClearActiveRoom(ev.UserID)
	}
	m.log.InfoContext(ctx, "manager - leave room - left", logging.Session(s.ID), logging.Room(ev.RoomID))
	m.announce(ctx, s, ev.RoomID, ev.UserID, "left")
}

// announce is best-effort presence fan-out to the other room members.
func (m *SessionManager) announce(ctx context.Context, s *Session, roomID, userID, status string) {
	frame, err := domain.MarshalServerEvent(domain.EventPresence, domain.PresenceUpdate{
		RoomID: roomID,
		UserID: userID,
		Status: status,
	})
	if err != nil {
		return
	}
	m.rooms.Broadcast(ctx, roomID, s.ID, frame)
}

func (m *SessionManager) handleSend(ctx context.Context, s *Session, ev domain.SendMessageEvent) {
	if err := m.relay.Accept(ctx, ev); err != nil {
		m.log.InfoContext(ctx, "manager - send message - rejected", logging.Session(s.ID), logging.Room(ev.RoomID), logging.Err(err))
		frame, ferr := domain.MarshalServerEvent(domain.EventError, domain.ErrorAck{
			Code:         "send",
			Message:      "message was not accepted",
			ClientTempID: ev.ClientTempID,
		})
		if ferr != nil {
			return
		}
		_ = s.client.Send(ctx, frame)
	}
}

// CloseSession runs on transport close, graceful or not; this path is the
// only guaranteed cleanup signal. Presence is cleared only when this session
// still owned the user's forward mapping, so a stale close never wipes the
// state of a newer session.
func (m *SessionManager) CloseSession(ctx context.Context, s *Session) {
	ctx, span := managerTracer.Start(ctx, "SessionManager.Close", trace.WithAttributes(
		attribute.String("session_id", s.ID),
	))
	defer span.End()
	userID, owned := m.sessions.Unbind(s.ID)
	if owned {
		m.presence.ClearActiveRoom(userID)
	}
	m.rooms.LeaveAll(s.ID)
	m.log.InfoContext(ctx, "manager - close session - cleaned up", logging.Session(s.ID), logging.User(userID), "owned_binding", owned)
}
