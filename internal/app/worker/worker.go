package worker

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/veerababu08/sahtalk-backend/internal/core/contracts"
	"github.com/veerababu08/sahtalk-backend/internal/core/domain"
	"github.com/veerababu08/sahtalk-backend/internal/core/services"
	"github.com/veerababu08/sahtalk-backend/pkg/logging"
)

// RoomWorker consumes one room's message stream and runs the relay delivery
// pipeline entry by entry. One worker per live room is what serializes
// persist and broadcast for that room.
type RoomWorker struct {
	log   *slog.Logger
	queue contracts.MessageQueue
	relay *services.MessageRelay
	group string
}

func NewRoomWorker(
	log *slog.Logger,
	queue contracts.MessageQueue,
	relay *services.MessageRelay,
	group string,
) *RoomWorker {
	return &RoomWorker{
		log:   log,
		queue: queue,
		relay: relay,
		group: group,
	}
}

// Run starts the consumer for roomID. It returns after the subscription is
// in place; ctx cancellation stops the background reader.
func (w *RoomWorker) Run(ctx context.Context, roomID string) error {
	if err := w.queue.SubscribeToStream(ctx, roomID, w.group, w.ProcessMessage); err != nil {
		w.log.ErrorContext(ctx, "worker - run - subscribe failed", logging.Room(roomID), logging.Err(err))
		return err
	}
	w.log.InfoContext(ctx, "worker - run - subscribed", logging.Room(roomID), "group", w.group)
	return nil
}

// ProcessMessage handles one stream entry: deliver, then ack and trim. A
// delivery error leaves the entry unacknowledged; there is no automatic
// retry at this layer, the client's dedup key makes its own resend safe.
func (w *RoomWorker) ProcessMessage(ctx context.Context, messageID string, raw []byte) error {
	// The worker is cancelled when the last member leaves the room. An entry
	// already handed to us still runs to completion, persist through ack;
	// cancellation takes effect between entries, in the stream reader.
	ctx = context.WithoutCancel(ctx)
	var payload domain.RelayPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		w.log.Error("worker - process message - malformed payload", "message_id", messageID, logging.Err(err))
		return err
	}
	if err := w.relay.Deliver(ctx, &payload); err != nil {
		w.log.ErrorContext(ctx, "worker - process message - deliver failed", "message_id", messageID, logging.Room(payload.RoomID), logging.Err(err))
		return err
	}
	if err := w.queue.AcknowledgeMessage(ctx, payload.RoomID, w.group, messageID); err != nil {
		w.log.ErrorContext(ctx, "worker - process message - ack failed", "message_id", messageID, logging.Err(err))
		return err
	}
	if err := w.queue.DeleteMessage(ctx, payload.RoomID, messageID); err != nil {
		// Already delivered and acked; trimming is best effort.
		w.log.ErrorContext(ctx, "worker - process message - delete failed", "message_id", messageID, logging.Err(err))
	}
	return nil
}
