package services_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veerababu08/sahtalk-backend/internal/core/domain"
	"github.com/veerababu08/sahtalk-backend/internal/core/services"
	"github.com/veerababu08/sahtalk-backend/internal/mocks"
)

func newConnectionService(t *testing.T) (*services.ConnectionService, *mocks.FakeUserRepository) {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	users := mocks.NewFakeUserRepository()
	return services.NewConnectionService(log, mocks.NewFakeConnectionRepository(), users), users
}

func TestConnectionService_RequestLifecycle(t *testing.T) {
	svc, users := newConnectionService(t)
	ctx := context.Background()
	require.NoError(t, users.CreateUser(ctx, &domain.User{ID: "u1", Username: "alice"}))
	require.NoError(t, users.CreateUser(ctx, &domain.User{ID: "u2", Username: "bob", ProfileImage: "/img/bob.png"}))

	conn, err := svc.SendRequest(ctx, "u1", "u2")
	require.NoError(t, err)
	assert.Equal(t, domain.ConnectionPending, conn.Status)
	assert.NotEmpty(t, conn.RoomID, "the pair's room is minted at request time")

	pending, err := svc.Pending(ctx, "u2")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, conn.ID, pending[0].ID)

	accepted, err := svc.Respond(ctx, conn.ID, domain.ConnectionAccepted)
	require.NoError(t, err)
	assert.Equal(t, domain.ConnectionAccepted, accepted.Status)
	assert.Equal(t, conn.RoomID, accepted.RoomID, "the room id never changes after minting")

	// Both sides see the peer, not themselves.
	list, err := svc.ChatList(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "u2", list[0].UserID)
	assert.Equal(t, "bob", list[0].Username)
	assert.Equal(t, "/img/bob.png", list[0].ProfileImage)

	list, err = svc.ChatList(ctx, "u2")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "u1", list[0].UserID)
}

func TestConnectionService_OneRecordPerPair(t *testing.T) {
	svc, _ := newConnectionService(t)
	ctx := context.Background()

	_, err := svc.SendRequest(ctx, "u1", "u2")
	require.NoError(t, err)

	_, err = svc.SendRequest(ctx, "u1", "u2")
	assert.ErrorIs(t, err, domain.ErrConnectionExists)
	_, err = svc.SendRequest(ctx, "u2", "u1")
	assert.ErrorIs(t, err, domain.ErrConnectionExists, "direction does not create a second record")
}

func TestConnectionService_RejectsBadInput(t *testing.T) {
	svc, _ := newConnectionService(t)
	ctx := context.Background()

	_, err := svc.SendRequest(ctx, "u1", "u1")
	assert.ErrorIs(t, err, domain.ErrInvalidPayload)
	_, err = svc.SendRequest(ctx, "", "u2")
	assert.ErrorIs(t, err, domain.ErrInvalidPayload)

	_, err = svc.Respond(ctx, "any", "maybe")
	assert.ErrorIs(t, err, domain.ErrInvalidPayload)
	_, err = svc.Respond(ctx, "missing", domain.ConnectionAccepted)
	assert.ErrorIs(t, err, domain.ErrConnectionNotFound)
}

func TestConnectionService_RejectedPairStaysOutOfChatList(t *testing.T) {
	svc, _ := newConnectionService(t)
	ctx := context.Background()

	conn, err := svc.SendRequest(ctx, "u1", "u2")
	require.NoError(t, err)
	_, err = svc.Respond(ctx, conn.ID, domain.ConnectionRejected)
	require.NoError(t, err)

	list, err := svc.ChatList(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, list)
}
