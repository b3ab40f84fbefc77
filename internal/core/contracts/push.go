package contracts

import "context"

// PushSender delivers an out-of-band notification to a device token.
// Fire-and-forget: callers log failures and never retry.
type PushSender interface {
	Send(ctx context.Context, token, title, body string, data map[string]string) error
}
