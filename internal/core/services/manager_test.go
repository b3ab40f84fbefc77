package services_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veerababu08/sahtalk-backend/internal/core/domain"
	"github.com/veerababu08/sahtalk-backend/internal/mocks"
)

func TestSessionManager_MalformedFrameIsDropped(t *testing.T) {
	f := newFixture()
	client := mocks.NewFakeClient("session-a")
	session := f.manager.StartSession(client, "u1")

	f.manager.Dispatch(context.Background(), session, []byte(`not json`))
	f.manager.Dispatch(context.Background(), session, []byte(`{"event":"timeTravel","data":{}}`))

	assert.Empty(t, client.Frames(), "bad frames never produce output")
	_, online := f.sessions.Resolve("u1")
	assert.False(t, online)
}

func TestSessionManager_RegisterBindsAndAcks(t *testing.T) {
	f := newFixture()
	client := mocks.NewFakeClient("session-a")
	session := f.manager.StartSession(client, "u1")

	f.manager.Dispatch(context.Background(), session, []byte(`{"event":"registerUser","data":{"userId":"u1"}}`))

	resolved, online := f.sessions.Resolve("u1")
	require.True(t, online)
	assert.Equal(t, "session-a", resolved.SessionID())
	frames := client.Frames()
	require.Len(t, frames, 1)
	event, ack := decodeData[domain.RegisteredAck](t, frames[0])
	assert.Equal(t, domain.EventRegistered, event)
	assert.Equal(t, "session-a", ack.SessionID)
	assert.Equal(t, "u1", ack.UserID)
}

func TestSessionManager_RegisterCallAliasBinds(t *testing.T) {
	f := newFixture()
	client := mocks.NewFakeClient("session-a")
	session := f.manager.StartSession(client, "u1")

	f.manager.Dispatch(context.Background(), session, []byte(`{"event":"register-call","data":{"userId":"u1"}}`))

	_, online := f.sessions.Resolve("u1")
	assert.True(t, online)
}

func TestSessionManager_RegisterForAnotherUserIsDropped(t *testing.T) {
	f := newFixture()
	client := mocks.NewFakeClient("session-a")
	session := f.manager.StartSession(client, "u1")

	f.manager.Dispatch(context.Background(), session, []byte(`{"event":"registerUser","data":{"userId":"u2"}}`))

	_, online := f.sessions.Resolve("u2")
	assert.False(t, online, "a session cannot bind a user it was not authenticated as")
	assert.Empty(t, client.Frames())
}

func TestSessionManager_JoinAnnouncesToOthers(t *testing.T) {
	f := newFixture()
	a := mocks.NewFakeClient("session-a")
	b := mocks.NewFakeClient("session-b")
	sa := f.manager.StartSession(a, "u1")
	sb := f.manager.StartSession(b, "u2")
	ctx := context.Background()

	f.manager.Dispatch(ctx, sa, []byte(`{"event":"joinRoom","data":{"roomId":"r1","userId":"u1"}}`))
	f.manager.Dispatch(ctx, sb, []byte(`{"event":"joinRoom","data":{"roomId":"r1","userId":"u2"}}`))

	room, ok := f.presence.ActiveRoom("u2")
	require.True(t, ok)
	assert.Equal(t, "r1", room)

	// u1 was already in the room, so u2's arrival reaches u1 and not u2.
	frames := a.Frames()
	require.Len(t, frames, 1)
	event, update := decodeData[domain.PresenceUpdate](t, frames[0])
	assert.Equal(t, domain.EventPresence, event)
	assert.Equal(t, "u2", update.UserID)
	assert.Equal(t, "joined", update.Status)
	assert.Empty(t, b.Frames(), "joiner does not hear its own announcement")
}

func TestSessionManager_LeaveClearsPresence(t *testing.T) {
	f := newFixture()
	a := mocks.NewFakeClient("session-a")
	b := mocks.NewFakeClient("session-b")
	sa := f.manager.StartSession(a, "u1")
	sb := f.manager.StartSession(b, "u2")
	ctx := context.Background()
	f.manager.Dispatch(ctx, sa, []byte(`{"event":"joinRoom","data":{"roomId":"r1","userId":"u1"}}`))
	f.manager.Dispatch(ctx, sb, []byte(`{"event":"joinRoom","data":{"roomId":"r1","userId":"u2"}}`))

	f.manager.Dispatch(ctx, sb, []byte(`{"event":"leaveRoom","data":{"roomId":"r1","userId":"u2"}}`))

	_, ok := f.presence.ActiveRoom("u2")
	assert.False(t, ok)
	frames := a.Frames()
	require.Len(t, frames, 2)
	_, update := decodeData[domain.PresenceUpdate](t, frames[1])
	assert.Equal(t, "left", update.Status)
}

func TestSessionManager_SendRejectionAcksSender(t *testing.T) {
	f := newFixture()
	client := mocks.NewFakeClient("session-a")
	session := f.manager.StartSession(client, "u1")

	// Missing roomId never reaches the stream.
	f.manager.Dispatch(context.Background(), session, []byte(`{"event":"sendMessage","data":{"sender":"u1","text":"hi"}}`))

	assert.Empty(t, f.queue.Published)
	frames := client.Frames()
	require.Len(t, frames, 1)
	event, ack := decodeData[domain.ErrorAck](t, frames[0])
	assert.Equal(t, domain.EventError, event)
	assert.Equal(t, "send", ack.Code)
}

func TestSessionManager_CloseSessionCleansOnlyItsUser(t *testing.T) {
	f := newFixture()
	a := mocks.NewFakeClient("session-a")
	b := mocks.NewFakeClient("session-b")
	sa := f.manager.StartSession(a, "u1")
	sb := f.manager.StartSession(b, "u2")
	ctx := context.Background()
	f.manager.Dispatch(ctx, sa, []byte(`{"event":"registerUser","data":{"userId":"u1"}}`))
	f.manager.Dispatch(ctx, sb, []byte(`{"event":"registerUser","data":{"userId":"u2"}}`))
	f.manager.Dispatch(ctx, sa, []byte(`{"event":"joinRoom","data":{"roomId":"r1","userId":"u1"}}`))
	f.manager.Dispatch(ctx, sb, []byte(`{"event":"joinRoom","data":{"roomId":"r1","userId":"u2"}}`))

	f.manager.CloseSession(ctx, sa)

	_, online := f.sessions.Resolve("u1")
	assert.False(t, online)
	_, ok := f.presence.ActiveRoom("u1")
	assert.False(t, ok)
	resolved, online := f.sessions.Resolve("u2")
	require.True(t, online, "the other user's binding is untouched")
	assert.Equal(t, "session-b", resolved.SessionID())
	room, ok := f.presence.ActiveRoom("u2")
	require.True(t, ok)
	assert.Equal(t, "r1", room)
}

func TestSessionManager_CloseSupersededSessionKeepsNewBinding(t *testing.T) {
	f := newFixture()
	old := mocks.NewFakeClient("session-old")
	fresh := mocks.NewFakeClient("session-new")
	so := f.manager.StartSession(old, "u1")
	sn := f.manager.StartSession(fresh, "u1")
	ctx := context.Background()
	f.manager.Dispatch(ctx, so, []byte(`{"event":"registerUser","data":{"userId":"u1"}}`))
	f.manager.Dispatch(ctx, sn, []byte(`{"event":"registerUser","data":{"userId":"u1"}}`))

	// The stale connection's teardown races its replacement in the wild;
	// closing it afterward must not strand the reconnected user.
	f.manager.CloseSession(ctx, so)

	resolved, online := f.sessions.Resolve("u1")
	require.True(t, online)
	assert.Equal(t, "session-new", resolved.SessionID())
}

// TestSessionManager_EndToEndMessageFlow walks the whole path: register,
// join, send over the wire format, stream hop, persist, room broadcast,
// then a client resend of the same dedup key.
func TestSessionManager_EndToEndMessageFlow(t *testing.T) {
	f := newFixture()
	f.seedPair(t, "u1", "u2", "r1")
	u1 := mocks.NewFakeClient("session-u1")
	u2 := mocks.NewFakeClient("session-u2")
	s1 := f.manager.StartSession(u1, "u1")
	s2 := f.manager.StartSession(u2, "u2")
	ctx := context.Background()

	f.manager.Dispatch(ctx, s1, []byte(`{"event":"registerUser","data":{"userId":"u1"}}`))
	f.manager.Dispatch(ctx, s2, []byte(`{"event":"registerUser","data":{"userId":"u2"}}`))
	f.manager.Dispatch(ctx, s2, []byte(`{"event":"joinRoom","data":{"roomId":"r1","userId":"u2"}}`))

	send := []byte(`{"event":"sendMessage","data":{"roomId":"r1","sender":"u1","text":"hi","clientTempId":"abc"}}`)
	f.manager.Dispatch(ctx, s1, send)

	require.Len(t, f.msgs.Messages, 1)
	msg := f.msgs.Messages[0]
	assert.Equal(t, "u2", msg.Receiver)
	assert.Equal(t, "hi", msg.Text)
	assert.Equal(t, 1, countEvents(t, u2.Frames(), domain.EventReceiveMessage))
	assert.Empty(t, f.push.Sent(), "receiver is viewing the room")
	assert.Len(t, f.queue.Acked, 1)
	assert.Len(t, f.queue.Deleted, 1)

	// Client timeout and resend: same dedup key, no new row, no re-broadcast.
	f.manager.Dispatch(ctx, s1, send)
	assert.Len(t, f.msgs.Messages, 1)
	assert.Equal(t, 1, countEvents(t, u2.Frames(), domain.EventReceiveMessage))
}
