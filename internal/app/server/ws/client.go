package ws

import (
	"context"
	"errors"
	"sync"
)

// RuntimeClient is the live session handle: a buffered writer pump over one
// WebSocket. Sends never block past the buffer; a closed session errors out.
type RuntimeClient struct {
	ctx       context.Context
	cancel    context.CancelFunc
	ws        *WebSocket
	sessionID string
	out       chan []byte
	once      sync.Once
}

func NewClient(parent context.Context, ws *WebSocket, sessionID string) *RuntimeClient {
	ctx, cancel := context.WithCancel(parent)
	c := &RuntimeClient{
		ctx:       ctx,
		cancel:    cancel,
		ws:        ws,
		sessionID: sessionID,
		out:       make(chan []byte, 256),
	}
	go c.writeLoop()
	return c
}

func (c *RuntimeClient) SessionID() string { return c.sessionID }

func (c *RuntimeClient) Send(ctx context.Context, data []byte) error {
	select {
	case c.out <- data:
		return nil
	case <-c.ctx.Done():
		return errors.New("client closed")
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close is safe to call from any goroutine; the out channel is never closed
// so a concurrent Send can only fail, not panic.
func (c *RuntimeClient) Close() {
	c.once.Do(func() {
		c.cancel()
		c.ws.Close()
	})
}

func (c *RuntimeClient) writeLoop() {
	defer c.Close()
	for {
		select {
		case <-c.ctx.Done():
			return
		case data := <-c.out:
			_ = c.ws.WriteMessage(data)
		}
	}
}
