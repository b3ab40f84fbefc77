package contracts

import "context"

// MessageQueue is the per-room ingestion stream. One consumer per live room
// gives the relay its in-order, serialized delivery for that room.
type MessageQueue interface {
	// PublishToStream appends a payload to the room's stream.
	PublishToStream(ctx context.Context, roomID string, payload []byte) error
	// SubscribeToStream starts a background reader for the room's stream and
	// hands each entry to handler.
	SubscribeToStream(ctx context.Context, roomID string, group string, handler func(ctx context.Context, messageID string, data []byte) error) error
	// AcknowledgeMessage marks a stream entry as processed.
	AcknowledgeMessage(ctx context.Context, roomID, group, messageID string) error
	// DeleteMessage removes a processed entry from the stream.
	DeleteMessage(ctx context.Context, roomID, messageID string) error
}
