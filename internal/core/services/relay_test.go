package services_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veerababu08/sahtalk-backend/internal/app/registry"
	"github.com/veerababu08/sahtalk-backend/internal/app/worker"
	"github.com/veerababu08/sahtalk-backend/internal/core/domain"
	"github.com/veerababu08/sahtalk-backend/internal/core/services"
	"github.com/veerababu08/sahtalk-backend/internal/mocks"
)

// fixture wires the relay and its collaborators with in-memory fakes. The
// fake queue runs the room worker inline, so a Dispatch or Accept call sees
// the full pipeline synchronously.
type fixture struct {
	sessions *registry.SessionRegistry
	presence *registry.PresenceTracker
	rooms    *registry.RoomHub
	users    *mocks.FakeUserRepository
	conns    *mocks.FakeConnectionRepository
	msgs     *mocks.FakeMessageRepository
	queue    *mocks.FakeQueue
	push     *mocks.FakePush
	relay    *services.MessageRelay
	calls    *services.CallRelay
	manager  *services.SessionManager
}

func newFixture() *fixture {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	f := &fixture{
		sessions: registry.NewSessionRegistry(),
		presence: registry.NewPresenceTracker(),
		rooms:    registry.NewRoomHub(),
		users:    mocks.NewFakeUserRepository(),
		conns:    mocks.NewFakeConnectionRepository(),
		msgs:     mocks.NewFakeMessageRepository(),
		queue:    mocks.NewFakeQueue(),
		push:     mocks.NewFakePush(),
	}
	f.relay = services.NewMessageRelay(log, f.queue, f.sessions, f.presence, f.rooms,
		f.msgs, f.conns, f.users, f.push, mocks.FakeTxManager{})
	f.calls = services.NewCallRelay(log, f.sessions)
	f.manager = services.NewSessionManager(log, f.sessions, f.presence, f.rooms, f.relay, f.calls)
	w := worker.NewRoomWorker(log, f.queue, f.relay, "test-group")
	f.queue.Handler = w.ProcessMessage
	return f
}

// seedPair creates two users with an accepted connection over roomID.
func (f *fixture) seedPair(t *testing.T, u1, u2, roomID string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.users.CreateUser(ctx, &domain.User{ID: u1, Username: "user-" + u1}))
	require.NoError(t, f.users.CreateUser(ctx, &domain.User{ID: u2, Username: "user-" + u2}))
	require.NoError(t, f.conns.CreateConnection(ctx, &domain.Connection{
		ID:       "conn-" + roomID,
		Sender:   u1,
		Receiver: u2,
		RoomID:   roomID,
		Status:   domain.ConnectionAccepted,
	}))
}

func frameEvents(t *testing.T, frames [][]byte) []string {
	t.Helper()
	var events []string
	for _, raw := range frames {
		var env domain.Envelope
		require.NoError(t, json.Unmarshal(raw, &env))
		events = append(events, env.Event)
	}
	return events
}

func countEvents(t *testing.T, frames [][]byte, event string) int {
	t.Helper()
	n := 0
	for _, ev := range frameEvents(t, frames) {
		if ev == event {
			n++
		}
	}
	return n
}

func TestMessageRelay_DeliverHappyPath(t *testing.T) {
	f := newFixture()
	f.seedPair(t, "u1", "u2", "r1")
	receiver := mocks.NewFakeClient("session-u2")
	f.sessions.Register("u2", receiver)
	f.rooms.Join("r1", receiver)
	f.presence.SetActiveRoom("u2", "r1")

	err := f.relay.Deliver(context.Background(), &domain.RelayPayload{
		RoomID: "r1", Sender: "u1", Text: "hi", Type: domain.MessageText, ClientTempID: "abc",
	})
	require.NoError(t, err)

	require.Len(t, f.msgs.Messages, 1)
	msg := f.msgs.Messages[0]
	assert.Equal(t, "u2", msg.Receiver)
	assert.Equal(t, "hi", msg.Text)
	assert.Equal(t, "r1", msg.RoomID)
	assert.Equal(t, 1, countEvents(t, receiver.Frames(), domain.EventReceiveMessage))
	assert.Empty(t, f.push.Sent(), "no push while receiver is viewing the room")

	conn, err := f.conns.FindByRoomID(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, msg.ID, conn.LastMessageID)
}

func TestMessageRelay_IdempotentDeliver(t *testing.T) {
	f := newFixture()
	f.seedPair(t, "u1", "u2", "r1")
	receiver := mocks.NewFakeClient("session-u2")
	f.sessions.Register("u2", receiver)
	f.rooms.Join("r1", receiver)
	f.presence.SetActiveRoom("u2", "r1")

	payload := &domain.RelayPayload{RoomID: "r1", Sender: "u1", Text: "hi", Type: domain.MessageText, ClientTempID: "abc"}
	require.NoError(t, f.relay.Deliver(context.Background(), payload))
	require.NoError(t, f.relay.Deliver(context.Background(), payload))

	assert.Len(t, f.msgs.Messages, 1, "exactly one persisted message")
	assert.Equal(t, 1, countEvents(t, receiver.Frames(), domain.EventReceiveMessage), "at most one broadcast")
}

func TestMessageRelay_NoConnectionNoRelay(t *testing.T) {
	f := newFixture()
	lurker := mocks.NewFakeClient("session-x")
	f.rooms.Join("ghost-room", lurker)

	err := f.relay.Deliver(context.Background(), &domain.RelayPayload{
		RoomID: "ghost-room", Sender: "u1", Text: "hi", Type: domain.MessageText,
	})
	require.NoError(t, err)

	assert.Empty(t, f.msgs.Messages)
	assert.Empty(t, lurker.Frames())
	assert.Empty(t, f.push.Sent())
}

func TestMessageRelay_DirectDeliveryWhenViewingOtherRoom(t *testing.T) {
	f := newFixture()
	f.seedPair(t, "u1", "u2", "r1")
	f.users.Users["u2"].PushToken = "ExponentPushToken[u2]"
	receiver := mocks.NewFakeClient("session-u2")
	f.sessions.Register("u2", receiver)
	f.presence.SetActiveRoom("u2", "r2") // online, but a different room is open

	err := f.relay.Deliver(context.Background(), &domain.RelayPayload{
		RoomID: "r1", Sender: "u1", Text: "hi", Type: domain.MessageText,
	})
	require.NoError(t, err)

	assert.Equal(t, 1, countEvents(t, receiver.Frames(), domain.EventReceiveMessage), "direct delivery reaches the session")
	sent := f.push.Sent()
	require.Len(t, sent, 1, "not viewing the room still notifies")
	assert.Equal(t, "ExponentPushToken[u2]", sent[0].Token)
	assert.Equal(t, "user-u1", sent[0].Title)
	assert.Equal(t, "hi", sent[0].Body)
}

func TestMessageRelay_OfflineReceiverGetsPush(t *testing.T) {
	f := newFixture()
	f.seedPair(t, "u1", "u2", "r1")
	f.users.Users["u2"].PushToken = "ExponentPushToken[u2]"

	err := f.relay.Deliver(context.Background(), &domain.RelayPayload{
		RoomID: "r1", Sender: "u1", Type: domain.MessageImage, MediaURL: "/uploads/x.png",
	})
	require.NoError(t, err)

	sent := f.push.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "Sent a photo", sent[0].Body)
	assert.Equal(t, "r1", sent[0].Data["roomId"])
}

func TestMessageRelay_OfflineReceiverWithoutTokenIsSilent(t *testing.T) {
	f := newFixture()
	f.seedPair(t, "u1", "u2", "r1")

	err := f.relay.Deliver(context.Background(), &domain.RelayPayload{
		RoomID: "r1", Sender: "u1", Text: "hi", Type: domain.MessageText,
	})
	require.NoError(t, err)
	require.Len(t, f.msgs.Messages, 1, "persistence never depends on delivery")
	assert.Empty(t, f.push.Sent())
}

func TestMessageRelay_StorageFailureAbortsDelivery(t *testing.T) {
	f := newFixture()
	f.seedPair(t, "u1", "u2", "r1")
	sender := mocks.NewFakeClient("session-u1")
	receiver := mocks.NewFakeClient("session-u2")
	f.sessions.Register("u1", sender)
	f.sessions.Register("u2", receiver)
	f.rooms.Join("r1", sender)
	f.rooms.Join("r1", receiver)
	f.msgs.CreateFunc = func(ctx context.Context, m *domain.Message) error {
		return errors.New("db down")
	}

	err := f.relay.Deliver(context.Background(), &domain.RelayPayload{
		RoomID: "r1", Sender: "u1", Text: "hi", Type: domain.MessageText, ClientTempID: "abc",
	})
	require.Error(t, err)

	assert.Empty(t, receiver.Frames(), "no broadcast after a failed persist")
	assert.Empty(t, f.push.Sent())
	require.Equal(t, 1, countEvents(t, sender.Frames(), domain.EventError), "one error ack to the sender only")
	var env domain.Envelope
	require.NoError(t, json.Unmarshal(sender.Frames()[0], &env))
	var ack domain.ErrorAck
	require.NoError(t, json.Unmarshal(env.Data, &ack))
	assert.Equal(t, "abc", ack.ClientTempID)
}

func TestMessageRelay_AcceptRejectsInvalidPayloads(t *testing.T) {
	f := newFixture()
	err := f.relay.Accept(context.Background(), domain.SendMessageEvent{Sender: "u1"})
	assert.ErrorIs(t, err, domain.ErrInvalidPayload)

	err = f.relay.Accept(context.Background(), domain.SendMessageEvent{RoomID: "r1", Sender: "u1", Type: "carrier-pigeon"})
	assert.ErrorIs(t, err, domain.ErrInvalidPayload)

	assert.Empty(t, f.queue.Published)
}

func TestMessageRelay_AcceptDefaultsToText(t *testing.T) {
	f := newFixture()
	f.seedPair(t, "u1", "u2", "r1")

	require.NoError(t, f.relay.Accept(context.Background(), domain.SendMessageEvent{
		RoomID: "r1", Sender: "u1", Text: "hi",
	}))
	require.Len(t, f.msgs.Messages, 1)
	assert.Equal(t, domain.MessageText, f.msgs.Messages[0].Type)
}

func TestMessageRelay_History(t *testing.T) {
	f := newFixture()
	f.seedPair(t, "u1", "u2", "r1")
	for _, text := range []string{"one", "two", "three"} {
		require.NoError(t, f.relay.Deliver(context.Background(), &domain.RelayPayload{
			RoomID: "r1", Sender: "u1", Text: text, Type: domain.MessageText,
		}))
	}

	msgs, err := f.relay.History(context.Background(), "r1")
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "one", msgs[0].Text)
	assert.Equal(t, "three", msgs[2].Text)
}
