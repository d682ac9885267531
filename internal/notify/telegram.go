package notify

import (
	"context"
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// sender is the part of *tgbotapi.BotAPI used for delivery.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier delivers messages as Telegram chat messages. Recipients are
// numeric chat ids.
type TelegramNotifier struct {
	api sender
}

func NewTelegramNotifier(api sender) *TelegramNotifier {
	return &TelegramNotifier{api: api}
}

// Deliver gives up when ctx is done. The underlying client call is not
// cancellable, so it may still complete in the background.
func (n *TelegramNotifier) Deliver(ctx context.Context, recipient string, msg Message) error {
	chatId, err := strconv.ParseInt(recipient, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidRecipient, recipient)
	}

	out := tgbotapi.NewMessage(chatId, msg.Body)
	switch msg.Format {
	case FormatMarkdown:
		out.ParseMode = tgbotapi.ModeMarkdown
	case FormatHTML:
		out.ParseMode = tgbotapi.ModeHTML
	}

	done := make(chan error, 1)
	go func() {
		_, err := n.api.Send(out)
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			zap.L().Warn("Telegram delivery failed", zap.String("recipient", recipient), zap.Error(err))
			return fmt.Errorf("telegram send to %s: %w", recipient, err)
		}
		return nil
	case <-ctx.Done():
		zap.L().Warn("Telegram delivery timed out", zap.String("recipient", recipient), zap.Error(ctx.Err()))
		return fmt.Errorf("telegram send to %s: %w", recipient, ctx.Err())
	}
}
