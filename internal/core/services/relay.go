package services

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/veerababu08/sahtalk-backend/internal/app/registry"
	"github.com/veerababu08/sahtalk-backend/internal/core/contracts"
	"github.com/veerababu08/sahtalk-backend/internal/core/domain"
	"github.com/veerababu08/sahtalk-backend/pkg/logging"
)

var relayTracer = otel.Tracer("message-relay")

// pushTimeout bounds the fire-and-forget notification call so a hung push
// collaborator cannot stall a room worker.
const pushTimeout = 5 * time.Second

// MessageRelay accepts inbound chat messages, persists them exactly once and
// fans them out: room broadcast, direct delivery, or push notification.
// Delivery for one room is serialized by that room's stream worker, so
// persist and broadcast happen in arrival order.
type MessageRelay struct {
	log      *slog.Logger
	queue    contracts.MessageQueue
	sessions *registry.SessionRegistry
	presence *registry.PresenceTracker
	rooms    *registry.RoomHub
	msgRepo  domain.MessageRepository
	connRepo domain.ConnectionRepository
	userRepo domain.UserRepository
	push     contracts.PushSender
	tx       domain.TxManager
}

func NewMessageRelay(
	log *slog.Logger,
	queue contracts.MessageQueue,
	sessions *registry.SessionRegistry,
	presence *registry.PresenceTracker,
	rooms *registry.RoomHub,
	msgRepo domain.MessageRepository,
	connRepo domain.ConnectionRepository,
	userRepo domain.UserRepository,
	push contracts.PushSender,
	tx domain.TxManager,
) *MessageRelay {
	return &MessageRelay{
		log:      log,
		queue:    queue,
		sessions: sessions,
		presence: presence,
		rooms:    rooms,
		msgRepo:  msgRepo,
		connRepo: connRepo,
		userRepo: userRepo,
		push:     push,
		tx:       tx,
	}
}

// Accept validates an inbound sendMessage event and appends it to the room's
// stream. The room worker picks it up in order.
func (r *MessageRelay) Accept(ctx context.Context, ev domain.SendMessageEvent) error {
	ctx, span := relayTracer.Start(ctx, "MessageRelay.Accept", trace.WithAttributes(
		attribute.String("room_id", ev.RoomID),
		attribute.String("sender_id", ev.Sender),
	))
	defer span.End()
	if ev.RoomID == "" || ev.Sender == "" {
		return domain.ErrInvalidPayload
	}
	if ev.Type == "" {
		ev.Type = domain.MessageText
	}
	if !domain.ValidMessageType(ev.Type) {
		return domain.ErrInvalidPayload
	}
	payload := domain.RelayPayload{
		RoomID:       ev.RoomID,
		Sender:       ev.Sender,
		Text:         ev.Text,
		Type:         ev.Type,
		MediaURL:     ev.MediaURL,
		FileMeta:     ev.FileMeta,
		ClientTempID: ev.ClientTempID,
		EnqueuedAt:   time.Now(),
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if err := r.queue.PublishToStream(ctx, ev.RoomID, raw); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "publish failed")
		r.log.ErrorContext(ctx, "relay - accept - publish to stream failed", logging.Room(ev.RoomID), logging.Err(err))
		return err
	}
	r.log.InfoContext(ctx, "relay - accept - publish to stream success", logging.Room(ev.RoomID), logging.ClientTemp(ev.ClientTempID))
	return nil
}

// Deliver runs the full pipeline for one queued message: dedup check,
// relationship lookup, persist, broadcast, direct delivery, notification.
// Storage failure aborts before any delivery and surfaces one error event to
// the sender's session; delivery failures past the persist point are logged
// and swallowed.
func (r *MessageRelay) Deliver(ctx context.Context, payload *domain.RelayPayload) error {
	ctx, span := relayTracer.Start(ctx, "MessageRelay.Deliver", trace.WithAttributes(
		attribute.String("room_id", payload.RoomID),
		attribute.String("sender_id", payload.Sender),
	))
	defer span.End()

	// Retry-safe ingestion: a dedup key that already landed means the client
	// resent after a timeout. Nothing to persist, nothing to re-broadcast.
	if payload.ClientTempID != "" {
		existing, err := r.msgRepo.FindByClientTempID(ctx, payload.ClientTempID)
		if err == nil && existing != nil {
			span.SetAttributes(attribute.Bool("duplicate", true))
			r.log.InfoContext(ctx, "relay - deliver - duplicate suppressed", logging.Room(payload.RoomID), logging.ClientTemp(payload.ClientTempID))
			return nil
		}
		if err != nil && !errors.Is(err, domain.ErrMessageNotFound) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "dedup lookup failed")
			r.failSender(ctx, payload, err)
			return err
		}
	}

	conn, err := r.connRepo.FindByRoomID(ctx, payload.RoomID)
	if err != nil {
		if errors.Is(err, domain.ErrConnectionNotFound) {
			// No relationship, no delivery.
			r.log.InfoContext(ctx, "relay - deliver - no connection for room", logging.Room(payload.RoomID))
			return nil
		}
		span.RecordError(err)
		r.failSender(ctx, payload, err)
		return err
	}
	receiverID := conn.Counterpart(payload.Sender)
	span.SetAttributes(attribute.String("receiver_id", receiverID))

	msg := &domain.Message{
		ID:           domain.NewMessageID(),
		RoomID:       payload.RoomID,
		Sender:       payload.Sender,
		Receiver:     receiverID,
		Text:         payload.Text,
		Type:         payload.Type,
		MediaURL:     payload.MediaURL,
		FileMeta:     payload.FileMeta,
		ClientTempID: payload.ClientTempID,
		CreatedAt:    time.Now(),
	}
	// Durability point. Past here the message must survive any delivery
	// failure; before here nothing may have been emitted.
	if err := r.tx.WithTx(ctx, func(txCtx context.Context) error {
		if err := r.msgRepo.CreateMessage(txCtx, msg); err != nil {
			return err
		}
		return r.connRepo.UpdateLastMessage(txCtx, msg.RoomID, msg.ID)
	}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist failed")
		r.log.ErrorContext(ctx, "relay - deliver - persist failed", logging.Room(msg.RoomID), logging.ClientTemp(msg.ClientTempID), logging.Err(err))
		r.failSender(ctx, payload, err)
		return err
	}
	r.log.InfoContext(ctx, "relay - deliver - persist success", logging.Room(msg.RoomID), "message_id", msg.ID)

	frame, err := domain.MarshalServerEvent(domain.EventReceiveMessage, msg)
	if err != nil {
		return err
	}
	// Full room group: covers the sender's other tabs and a receiver with
	// the room open.
	r.rooms.Broadcast(ctx, msg.RoomID, "", frame)

	// The receiver may be online but looking at another room, in which case
	// the room broadcast never reaches them. Resolve the session now, not
	// from any earlier snapshot.
	activeRoom, hasActive := r.presence.ActiveRoom(receiverID)
	viewing := hasActive && activeRoom == msg.RoomID
	if receiver, online := r.sessions.Resolve(receiverID); online && !viewing {
		if err := receiver.Send(ctx, frame); err != nil {
			r.log.ErrorContext(ctx, "relay - deliver - direct send failed", logging.User(receiverID), logging.Err(err))
		}
	}
	if !viewing {
		r.notify(ctx, msg)
	}
	span.SetStatus(codes.Ok, "delivered")
	return nil
}

// notify dispatches the push notification when the receiver is not viewing
// the room. Failures are logged and never retried; the message is already
// durable and shows up on the next history fetch.
func (r *MessageRelay) notify(ctx context.Context, msg *domain.Message) {
	receiver, err := r.userRepo.GetUserByID(ctx, msg.Receiver)
	if err != nil {
		r.log.ErrorContext(ctx, "relay - notify - receiver lookup failed", logging.User(msg.Receiver), logging.Err(err))
		return
	}
	if receiver.PushToken == "" {
		return
	}
	sender, err := r.userRepo.GetUserByID(ctx, msg.Sender)
	title := "New Message"
	if err == nil && sender.Username != "" {
		title = sender.Username
	}
	pushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), pushTimeout)
	defer cancel()
	err = r.push.Send(pushCtx, receiver.PushToken, title, msg.Preview(), map[string]string{
		"type":     "chat",
		"roomId":   msg.RoomID,
		"senderId": msg.Sender,
	})
	if err != nil {
		r.log.ErrorContext(ctx, "relay - notify - push send failed", logging.User(msg.Receiver), logging.Err(err))
		return
	}
	r.log.InfoContext(ctx, "relay - notify - push send success", logging.User(msg.Receiver), logging.Room(msg.RoomID))
}

// failSender surfaces a storage failure once, to the originating session
// only. The sender is re-resolved here because the session that submitted
// the message may already be gone.
func (r *MessageRelay) failSender(ctx context.Context, payload *domain.RelayPayload, cause error) {
	sender, online := r.sessions.Resolve(payload.Sender)
	if !online {
		r.log.ErrorContext(ctx, "relay - fail sender - sender offline, storage error unreported", logging.User(payload.Sender), logging.Err(cause))
		return
	}
	frame, err := domain.MarshalServerEvent(domain.EventError, domain.ErrorAck{
		Code:         "storage",
		Message:      "message could not be saved",
		ClientTempID: payload.ClientTempID,
	})
	if err != nil {
		return
	}
	if err := sender.Send(ctx, frame); err != nil {
		r.log.ErrorContext(ctx, "relay - fail sender - error ack send failed", logging.User(payload.Sender), logging.Err(err))
	}
}

// History returns the room's stored messages in creation order.
func (r *MessageRelay) History(ctx context.Context, roomID string) ([]domain.Message, error) {
	msgs, err := r.msgRepo.FindByRoom(ctx, roomID)
	if err != nil {
		r.log.ErrorContext(ctx, "relay - history - find by room failed", logging.Room(roomID), logging.Err(err))
		return nil, err
	}
	return msgs, nil
}
