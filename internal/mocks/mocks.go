package mocks

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/veerababu08/sahtalk-backend/internal/core/domain"
)

// FakeClient is an in-memory live session for registry and relay tests. It
// records every frame sent to it.
type FakeClient struct {
	ID      string
	SendErr error
	Closed  bool

	mu     sync.Mutex
	frames [][]byte
}

func NewFakeClient(id string) *FakeClient {
	return &FakeClient{ID: id}
}

func (c *FakeClient) SessionID() string { return c.ID }

func (c *FakeClient) Send(ctx context.Context, data []byte) error {
	if c.SendErr != nil {
		return c.SendErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	buf := make([]byte, len(data))
	copy(buf, data)
	c.frames = append(c.frames, buf)
	return nil
}

func (c *FakeClient) Close() { c.Closed = true }

// Frames returns a snapshot of everything sent so far.
func (c *FakeClient) Frames() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]byte, len(c.frames))
	copy(out, c.frames)
	return out
}

// FakeUserRepository keeps users in a map keyed by id.
type FakeUserRepository struct {
	mu    sync.Mutex
	Users map[string]*domain.User

	GetByIDFunc func(ctx context.Context, id string) (*domain.User, error)
}

func NewFakeUserRepository() *FakeUserRepository {
	return &FakeUserRepository{Users: make(map[string]*domain.User)}
}

func (r *FakeUserRepository) CreateUser(ctx context.Context, u *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Users[u.ID] = u
	return nil
}

func (r *FakeUserRepository) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	if r.GetByIDFunc != nil {
		return r.GetByIDFunc(ctx, id)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.Users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return u, nil
}

func (r *FakeUserRepository) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.Users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r *FakeUserRepository) SearchUsers(ctx context.Context, query, excludeUserID string) ([]domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	query = strings.ToLower(query)
	var out []domain.User
	for _, u := range r.Users {
		if u.ID == excludeUserID {
			continue
		}
		if strings.Contains(strings.ToLower(u.Username), query) || strings.Contains(strings.ToLower(u.Email), query) {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (r *FakeUserRepository) UpdatePushToken(ctx context.Context, userID, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.Users[userID]
	if !ok {
		return domain.ErrUserNotFound
	}
	u.PushToken = token
	return nil
}

// FakeConnectionRepository keeps connections in a slice.
type FakeConnectionRepository struct {
	mu    sync.Mutex
	Conns []*domain.Connection
}

func NewFakeConnectionRepository() *FakeConnectionRepository {
	return &FakeConnectionRepository{}
}

func (r *FakeConnectionRepository) CreateConnection(ctx context.Context, c *domain.Connection) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Conns = append(r.Conns, c)
	return nil
}

func (r *FakeConnectionRepository) FindByRoomID(ctx context.Context, roomID string) (*domain.Connection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.Conns {
		if c.RoomID == roomID {
			return c, nil
		}
	}
	return nil, domain.ErrConnectionNotFound
}

func (r *FakeConnectionRepository) FindPair(ctx context.Context, userA, userB string) (*domain.Connection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.Conns {
		if (c.Sender == userA && c.Receiver == userB) || (c.Sender == userB && c.Receiver == userA) {
			return c, nil
		}
	}
	return nil, domain.ErrConnectionNotFound
}

func (r *FakeConnectionRepository) FindPendingFor(ctx context.Context, userID string) ([]domain.Connection, error) {
	return r.filter(func(c *domain.Connection) bool {
		return c.Receiver == userID && c.Status == domain.ConnectionPending
	}), nil
}

func (r *FakeConnectionRepository) FindAcceptedFor(ctx context.Context, userID string) ([]domain.Connection, error) {
	return r.filter(func(c *domain.Connection) bool {
		return (c.Sender == userID || c.Receiver == userID) && c.Status == domain.ConnectionAccepted
	}), nil
}

func (r *FakeConnectionRepository) filter(keep func(*domain.Connection) bool) []domain.Connection {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Connection
	for _, c := range r.Conns {
		if keep(c) {
			out = append(out, *c)
		}
	}
	return out
}

func (r *FakeConnectionRepository) UpdateStatus(ctx context.Context, id, status string) (*domain.Connection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.Conns {
		if c.ID == id {
			c.Status = status
			return c, nil
		}
	}
	return nil, domain.ErrConnectionNotFound
}

func (r *FakeConnectionRepository) UpdateLastMessage(ctx context.Context, roomID, messageID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.Conns {
		if c.RoomID == roomID {
			c.LastMessageID = messageID
			return nil
		}
	}
	return domain.ErrConnectionNotFound
}

// FakeMessageRepository keeps messages in insertion order. CreateFunc lets a
// test inject storage failures.
type FakeMessageRepository struct {
	mu       sync.Mutex
	Messages []*domain.Message

	CreateFunc func(ctx context.Context, m *domain.Message) error
}

func NewFakeMessageRepository() *FakeMessageRepository {
	return &FakeMessageRepository{}
}

func (r *FakeMessageRepository) CreateMessage(ctx context.Context, m *domain.Message) error {
	if r.CreateFunc != nil {
		return r.CreateFunc(ctx, m)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Messages = append(r.Messages, m)
	return nil
}

func (r *FakeMessageRepository) FindByClientTempID(ctx context.Context, key string) (*domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.Messages {
		if m.ClientTempID == key {
			return m, nil
		}
	}
	return nil, domain.ErrMessageNotFound
}

func (r *FakeMessageRepository) FindByRoom(ctx context.Context, roomID string) ([]domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Message
	for _, m := range r.Messages {
		if m.RoomID == roomID {
			out = append(out, *m)
		}
	}
	return out, nil
}

// FakeQueue is a synchronous stand-in for the room stream: Publish invokes
// Handler inline, so tests see the whole pipeline run on one goroutine.
type FakeQueue struct {
	Handler    func(ctx context.Context, messageID string, data []byte) error
	PublishErr error

	mu        sync.Mutex
	Published [][]byte
	Acked     []string
	Deleted   []string
}

func NewFakeQueue() *FakeQueue {
	return &FakeQueue{}
}

func (q *FakeQueue) PublishToStream(ctx context.Context, roomID string, payload []byte) error {
	if q.PublishErr != nil {
		return q.PublishErr
	}
	q.mu.Lock()
	q.Published = append(q.Published, payload)
	n := len(q.Published)
	q.mu.Unlock()
	if q.Handler != nil {
		return q.Handler(ctx, fmt.Sprintf("%s-%d", roomID, n), payload)
	}
	return nil
}

func (q *FakeQueue) SubscribeToStream(ctx context.Context, roomID, group string, handler func(ctx context.Context, messageID string, data []byte) error) error {
	q.Handler = handler
	return nil
}

func (q *FakeQueue) AcknowledgeMessage(ctx context.Context, roomID, group, messageID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.Acked = append(q.Acked, messageID)
	return nil
}

func (q *FakeQueue) DeleteMessage(ctx context.Context, roomID, messageID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.Deleted = append(q.Deleted, messageID)
	return nil
}

// FakePush records every notification it was asked to send.
type FakePush struct {
	SendErr error

	mu    sync.Mutex
	Sends []PushRecord
}

type PushRecord struct {
	Token string
	Title string
	Body  string
	Data  map[string]string
}

func NewFakePush() *FakePush {
	return &FakePush{}
}

func (p *FakePush) Send(ctx context.Context, token, title, body string, data map[string]string) error {
	if p.SendErr != nil {
		return p.SendErr
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Sends = append(p.Sends, PushRecord{Token: token, Title: title, Body: body, Data: data})
	return nil
}

func (p *FakePush) Sent() []PushRecord {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]PushRecord, len(p.Sends))
	copy(out, p.Sends)
	return out
}

// FakeTxManager runs the function without any real transaction.
type FakeTxManager struct{}

func (FakeTxManager) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
