package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Inbound event names. These are the wire contract with the mobile clients
// and must not change.
const (
	EventRegisterUser = "registerUser"
	EventRegisterCall = "register-call"
	EventJoinRoom     = "joinRoom"
	EventLeaveRoom    = "leaveRoom"
	EventSendMessage  = "sendMessage"
	EventCallUser     = "callUser"
	EventAnswerCall   = "answerCall"
	EventICECandidate = "iceCandidate"
	EventEndCall      = "endCall"
)

// Outbound event names.
const (
	EventReceiveMessage = "receiveMessage"
	EventIncomingCall   = "incomingCall"
	EventCallAccepted   = "callAccepted"
	EventCallEnded      = "callEnded"
	EventCallFailed     = "callFailed"
	EventRegistered     = "registered"
	EventPresence       = "presence"
	EventError          = "error"
)

// ClientEvent is the closed set of inbound session events. Decoding a frame
// yields exactly one of the variants below, so dispatch is an exhaustive
// type switch rather than a string-keyed handler table.
type ClientEvent interface {
	clientEvent()
}

type RegisterEvent struct {
	UserID string `json:"userId"`
}

type JoinRoomEvent struct {
	RoomID string `json:"roomId"`
	UserID string `json:"userId"`
}

type LeaveRoomEvent struct {
	RoomID string `json:"roomId"`
	UserID string `json:"userId"`
}

type SendMessageEvent struct {
	RoomID       string    `json:"roomId"`
	Sender       string    `json:"sender"`
	Text         string    `json:"text,omitempty"`
	Type         string    `json:"type,omitempty"`
	MediaURL     string    `json:"mediaUrl,omitempty"`
	FileMeta     *FileMeta `json:"fileMeta,omitempty"`
	ClientTempID string    `json:"clientTempId,omitempty"`
}

type CallUserEvent struct {
	To       string          `json:"to"`
	Offer    json.RawMessage `json:"offer"`
	CallType string          `json:"type"`
}

type AnswerCallEvent struct {
	To     string          `json:"to"`
	Answer json.RawMessage `json:"answer"`
}

type ICECandidateEvent struct {
	To        string          `json:"to"`
	Candidate json.RawMessage `json:"candidate"`
}

type EndCallEvent struct {
	To string `json:"to"`
}

func (RegisterEvent) clientEvent()     {}
func (JoinRoomEvent) clientEvent()     {}
func (LeaveRoomEvent) clientEvent()    {}
func (SendMessageEvent) clientEvent()  {}
func (CallUserEvent) clientEvent()     {}
func (AnswerCallEvent) clientEvent()   {}
func (ICECandidateEvent) clientEvent() {}
func (EndCallEvent) clientEvent()      {}

// Envelope is the framing shared by both directions: a named event plus its
// payload.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// ParseClientEvent decodes one inbound frame into its typed variant.
func ParseClientEvent(raw []byte) (ClientEvent, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	var (
		ev  ClientEvent
		err error
	)
	switch env.Event {
	case EventRegisterUser, EventRegisterCall:
		var e RegisterEvent
		err = json.Unmarshal(env.Data, &e)
		ev = e
	case EventJoinRoom:
		var e JoinRoomEvent
		err = json.Unmarshal(env.Data, &e)
		ev = e
	case EventLeaveRoom:
		var e LeaveRoomEvent
		err = json.Unmarshal(env.Data, &e)
		ev = e
	case EventSendMessage:
		var e SendMessageEvent
		err = json.Unmarshal(env.Data, &e)
		ev = e
	case EventCallUser:
		var e CallUserEvent
		err = json.Unmarshal(env.Data, &e)
		ev = e
	case EventAnswerCall:
		var e AnswerCallEvent
		err = json.Unmarshal(env.Data, &e)
		ev = e
	case EventICECandidate:
		var e ICECandidateEvent
		err = json.Unmarshal(env.Data, &e)
		ev = e
	case EventEndCall:
		var e EndCallEvent
		err = json.Unmarshal(env.Data, &e)
		ev = e
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, env.Event)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return ev, nil
}

// MarshalServerEvent frames an outbound payload under its event name.
func MarshalServerEvent(event string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Data: raw})
}

// Outbound payloads.

// RegisteredAck is sent once per successful register event so the client
// learns its session handle.
type RegisteredAck struct {
	SessionID string `json:"sessionId"`
	UserID    string `json:"userId"`
}

type IncomingCall struct {
	From     string          `json:"from"`
	Offer    json.RawMessage `json:"offer"`
	CallType string          `json:"type"`
}

type CallAccepted struct {
	From   string          `json:"from"`
	Answer json.RawMessage `json:"answer"`
}

type ICECandidatePayload struct {
	Candidate json.RawMessage `json:"candidate"`
}

type CallEnded struct{}

const CallFailedOffline = "offline"

type CallFailed struct {
	Reason string `json:"reason"`
}

// PresenceUpdate announces a join or leave to the rest of the room.
type PresenceUpdate struct {
	RoomID string `json:"roomId"`
	UserID string `json:"userId"`
	Status string `json:"status"` // "joined" or "left"
}

// ErrorAck surfaces a failed send to the originating session only.
type ErrorAck struct {
	Code         string `json:"code"`
	Message      string `json:"message"`
	ClientTempID string `json:"clientTempId,omitempty"`
}

// RelayPayload is the queued form of an accepted sendMessage event, consumed
// by the room worker in arrival order.
type RelayPayload struct {
	RoomID       string    `json:"roomId"`
	Sender       string    `json:"sender"`
	Text         string    `json:"text,omitempty"`
	Type         string    `json:"type"`
	MediaURL     string    `json:"mediaUrl,omitempty"`
	FileMeta     *FileMeta `json:"fileMeta,omitempty"`
	ClientTempID string    `json:"clientTempId,omitempty"`
	EnqueuedAt   time.Time `json:"enqueuedAt"`
}
