package contracts

import "context"

// Client is the minimal handle the relay needs to talk to one live
// transport session. A handle is ephemeral: it is created on upgrade and
// dies with the connection.
type Client interface {
	SessionID() string
	Send(ctx context.Context, data []byte) error
	Close()
}
