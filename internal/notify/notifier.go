// Package notify delivers best-effort messages to users and operators.
// Delivery failures are reported to the caller but never affect stored state.
package notify

import (
	"context"
	"errors"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Format is a rendering hint for the transport.
type Format string

const (
	FormatPlain    Format = "plain"
	FormatMarkdown Format = "markdown"
	FormatHTML     Format = "html"
)

var ErrInvalidRecipient = errors.New("invalid recipient")

type Message struct {
	Body   string
	Format Format
}

// Notifier delivers a message to a recipient identified by its chat-layer id.
type Notifier interface {
	Deliver(ctx context.Context, recipient string, msg Message) error
}

// Plain is shorthand for an unformatted message.
func Plain(body string) Message {
	return Message{Body: body, Format: FormatPlain}
}

// LogNotifier writes deliveries to the global logger. Used when no chat
// transport is configured (CLI tools, local runs).
type LogNotifier struct{}

func (LogNotifier) Deliver(_ context.Context, recipient string, msg Message) error {
	zap.L().Info("Notification", zap.String("recipient", recipient), zap.String("body", msg.Body))
	return nil
}

// Nop discards every message.
type Nop struct{}

func (Nop) Deliver(context.Context, string, Message) error { return nil }

// Multi fans a message out to every notifier and combines their errors.
type Multi []Notifier

func (m Multi) Deliver(ctx context.Context, recipient string, msg Message) error {
	var err error
	for _, n := range m {
		err = multierr.Append(err, n.Deliver(ctx, recipient, msg))
	}
	return err
}
