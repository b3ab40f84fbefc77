package domain

import "context"

// UserRepository handles the durable identity records.
type UserRepository interface {
	CreateUser(ctx context.Context, u *User) error
	GetUserByID(ctx context.Context, id string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	// SearchUsers matches username or email by substring, excluding the
	// searching user.
	SearchUsers(ctx context.Context, query, excludeUserID string) ([]User, error)
	UpdatePushToken(ctx context.Context, userID, token string) error
}

// ConnectionRepository handles the pair-to-room relationship records.
type ConnectionRepository interface {
	CreateConnection(ctx context.Context, c *Connection) error
	// FindByRoomID returns ErrConnectionNotFound when the room was never
	// established or has been deleted.
	FindByRoomID(ctx context.Context, roomID string) (*Connection, error)
	// FindPair looks the pair up in either order.
	FindPair(ctx context.Context, userA, userB string) (*Connection, error)
	FindPendingFor(ctx context.Context, userID string) ([]Connection, error)
	FindAcceptedFor(ctx context.Context, userID string) ([]Connection, error)
	UpdateStatus(ctx context.Context, id, status string) (*Connection, error)
	UpdateLastMessage(ctx context.Context, roomID, messageID string) error
}

// MessageRepository is the message store gateway.
type MessageRepository interface {
	CreateMessage(ctx context.Context, m *Message) error
	// FindByClientTempID returns ErrMessageNotFound when no message carries
	// the dedup key.
	FindByClientTempID(ctx context.Context, key string) (*Message, error)
	// FindByRoom returns the room history ordered by creation time ascending.
	FindByRoom(ctx context.Context, roomID string) ([]Message, error)
}

// TxManager runs fn inside one storage transaction.
type TxManager interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}
