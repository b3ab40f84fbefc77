package services

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/veerababu08/sahtalk-backend/internal/core/domain"
	"github.com/veerababu08/sahtalk-backend/pkg/logging"
)

// ChatPeer is one entry of a user's chat list: the room plus the other
// party's public profile.
type ChatPeer struct {
	ConnectionID string `json:"connectionId"`
	RoomID       string `json:"roomId"`
	UserID       string `json:"userId"`
	Username     string `json:"username"`
	ProfileImage string `json:"profileImage,omitempty"`
}

// ConnectionService manages the pair relationship records that gate every
// relay: request, accept/reject, and the derived chat list.
type ConnectionService struct {
	log      *slog.Logger
	connRepo domain.ConnectionRepository
	userRepo domain.UserRepository
}

func NewConnectionService(log *slog.Logger, connRepo domain.ConnectionRepository, userRepo domain.UserRepository) *ConnectionService {
	return &ConnectionService{
		log:      log,
		connRepo: connRepo,
		userRepo: userRepo,
	}
}

// SendRequest creates the pending connection and mints the pair's room id.
// A pair gets at most one record regardless of who asked first.
func (s *ConnectionService) SendRequest(ctx context.Context, fromUserID, toUserID string) (*domain.Connection, error) {
	if fromUserID == "" || toUserID == "" || fromUserID == toUserID {
		return nil, domain.ErrInvalidPayload
	}
	if _, err := s.connRepo.FindPair(ctx, fromUserID, toUserID); err == nil {
		return nil, domain.ErrConnectionExists
	} else if !errors.Is(err, domain.ErrConnectionNotFound) {
		return nil, err
	}
	conn := &domain.Connection{
		ID:       uuid.NewString(),
		Sender:   fromUserID,
		Receiver: toUserID,
		RoomID:   domain.NewRoomID(),
		Status:   domain.ConnectionPending,
	}
	if err := s.connRepo.CreateConnection(ctx, conn); err != nil {
		s.log.ErrorContext(ctx, "connections - send request - create failed", logging.User(fromUserID), logging.Err(err))
		return nil, err
	}
	s.log.InfoContext(ctx, "connections - send request - created", logging.User(fromUserID), logging.Room(conn.RoomID))
	return conn, nil
}

// Pending lists requests waiting on userID.
func (s *ConnectionService) Pending(ctx context.Context, userID string) ([]domain.Connection, error) {
	return s.connRepo.FindPendingFor(ctx, userID)
}

// Respond accepts or rejects a pending request.
func (s *ConnectionService) Respond(ctx context.Context, connectionID, status string) (*domain.Connection, error) {
	if status != domain.ConnectionAccepted && status != domain.ConnectionRejected {
		return nil, domain.ErrInvalidPayload
	}
	conn, err := s.connRepo.UpdateStatus(ctx, connectionID, status)
	if err != nil {
		s.log.ErrorContext(ctx, "connections - respond - update failed", "connection_id", connectionID, logging.Err(err))
		return nil, err
	}
	s.log.InfoContext(ctx, "connections - respond - updated", "connection_id", connectionID, "status", status)
	return conn, nil
}

// ChatList returns the accepted connections of userID with the counterpart
// profile resolved.
func (s *ConnectionService) ChatList(ctx context.Context, userID string) ([]ChatPeer, error) {
	conns, err := s.connRepo.FindAcceptedFor(ctx, userID)
	if err != nil {
		return nil, err
	}
	peers := make([]ChatPeer, 0, len(conns))
	for _, conn := range conns {
		otherID := conn.Counterpart(userID)
		peer := ChatPeer{
			ConnectionID: conn.ID,
			RoomID:       conn.RoomID,
			UserID:       otherID,
		}
		if other, err := s.userRepo.GetUserByID(ctx, otherID); err == nil {
			peer.Username = other.Username
			peer.ProfileImage = other.ProfileImage
		}
		peers = append(peers, peer)
	}
	return peers, nil
}
