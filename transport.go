package pickup

import (
	"context"

	"github.com/coregx/pickup/message"
)

// Sender delivers an outbound protocol message over an established connection.
// The manager uses it for the Create* operations.
type Sender interface {
	// Send delivers msg to the agent at the other end of connectionID.
	Send(ctx context.Context, msg message.Message, connectionID string) error
}

// Responder sends a reply back over the connection an inbound message
// arrived on. The dispatcher uses one Responder per inbound message.
type Responder interface {
	// Reply sends msg to the sender of the message being handled.
	Reply(ctx context.Context, msg message.Message) error
}

// ResponderFunc adapts a function to the Responder interface.
type ResponderFunc func(ctx context.Context, msg message.Message) error

// Reply calls f(ctx, msg).
func (f ResponderFunc) Reply(ctx context.Context, msg message.Message) error {
	return f(ctx, msg)
}
