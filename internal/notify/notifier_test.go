package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type fakeSender struct {
	sent  []tgbotapi.MessageConfig
	err   error
	delay time.Duration
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, msg)
	}
	return tgbotapi.Message{}, f.err
}

func TestTelegramNotifier_Deliver(t *testing.T) {
	api := &fakeSender{}
	n := NewTelegramNotifier(api)

	if err := n.Deliver(context.Background(), "4242", Message{Body: "*hi*", Format: FormatMarkdown}); err != nil {
		t.Fatalf("Deliver failed: %v", err)
	}
	if len(api.sent) != 1 {
		t.Fatalf("Expected 1 message, got %d", len(api.sent))
	}
	if api.sent[0].ChatID != 4242 || api.sent[0].ParseMode != tgbotapi.ModeMarkdown {
		t.Errorf("Unexpected message %+v", api.sent[0])
	}
}

func TestTelegramNotifier_Errors(t *testing.T) {
	n := NewTelegramNotifier(&fakeSender{})
	if err := n.Deliver(context.Background(), "not-a-chat", Plain("x")); !errors.Is(err, ErrInvalidRecipient) {
		t.Errorf("Expected ErrInvalidRecipient, got %v", err)
	}

	boom := errors.New("forbidden: bot was blocked by the user")
	n = NewTelegramNotifier(&fakeSender{err: boom})
	if err := n.Deliver(context.Background(), "1", Plain("x")); !errors.Is(err, boom) {
		t.Errorf("Expected send error, got %v", err)
	}
}

func TestTelegramNotifier_Timeout(t *testing.T) {
	n := NewTelegramNotifier(&fakeSender{delay: 500 * time.Millisecond})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := n.Deliver(ctx, "1", Plain("slow")); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline exceeded, got %v", err)
	}
}

type countingNotifier struct {
	calls int
	err   error
}

func (c *countingNotifier) Deliver(context.Context, string, Message) error {
	c.calls++
	return c.err
}

func TestMulti_DeliversToAll(t *testing.T) {
	failing := &countingNotifier{err: errors.New("down")}
	ok := &countingNotifier{}

	err := Multi{failing, ok, LogNotifier{}, Nop{}}.Deliver(context.Background(), "1", Plain("hello"))
	if err == nil {
		t.Errorf("Expected combined error")
	}
	if failing.calls != 1 || ok.calls != 1 {
		t.Errorf("Expected every notifier to be called once, got %d and %d", failing.calls, ok.calls)
	}
}
