package domain

import (
	"time"

	"github.com/google/uuid"
)

// User is the durable identity record. IDs are assigned by the store and
// never minted by the relay layer.
type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	ProfileImage string
	PushToken    string
	CreatedAt    time.Time
}

// Connection status values.
const (
	ConnectionPending  = "pending"
	ConnectionAccepted = "accepted"
	ConnectionRejected = "rejected"
)

// Connection links exactly one unordered pair of users to a room. At most one
// record exists per pair; the room id is minted once when the request is sent
// and is stable for the life of the relationship.
type Connection struct {
	ID            string
	Sender        string
	Receiver      string
	RoomID        string
	Status        string
	LastMessageID string
	CreatedAt     time.Time
}

// Counterpart returns the party of the connection that is not userID.
func (c *Connection) Counterpart(userID string) string {
	if c.Sender == userID {
		return c.Receiver
	}
	return c.Sender
}

// NewRoomID mints the room key for a new connection request.
func NewRoomID() string {
	return uuid.NewString()
}

// Message type values.
const (
	MessageText     = "text"
	MessageImage    = "image"
	MessageVideo    = "video"
	MessageAudio    = "audio"
	MessageDocument = "document"
	MessagePDF      = "pdf"
)

// ValidMessageType reports whether t is a known message type.
func ValidMessageType(t string) bool {
	switch t {
	case MessageText, MessageImage, MessageVideo, MessageAudio, MessageDocument, MessagePDF:
		return true
	}
	return false
}

// FileMeta carries upload metadata for media messages.
type FileMeta struct {
	Name string `json:"name,omitempty"`
	Size int64  `json:"size,omitempty"`
	Mime string `json:"mime,omitempty"`
}

// Message is the persisted chat record. ClientTempID is the client-chosen
// dedup key: at most one stored message may carry a given value, which is
// what makes retry-on-timeout safe for senders.
type Message struct {
	ID           string    `json:"_id"`
	RoomID       string    `json:"roomId"`
	Sender       string    `json:"sender"`
	Receiver     string    `json:"receiver"`
	Text         string    `json:"text"`
	Type         string    `json:"type"`
	MediaURL     string    `json:"mediaUrl,omitempty"`
	FileMeta     *FileMeta `json:"fileMeta,omitempty"`
	ClientTempID string    `json:"clientTempId,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// NewMessageID mints a message id.
func NewMessageID() string {
	return uuid.NewString()
}

// Preview returns the text shown in a push notification body.
func (m *Message) Preview() string {
	if m.Text != "" {
		return m.Text
	}
	switch m.Type {
	case MessageImage:
		return "Sent a photo"
	case MessageVideo:
		return "Sent a video"
	case MessageAudio:
		return "Sent a voice message"
	case MessageDocument, MessagePDF:
		return "Sent a file"
	}
	return "You received a message"
}
