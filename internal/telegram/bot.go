// Package telegram is the chat transport. It parses commands and plain
// replies, keeps per-user conversation steps and renders coordinator results.
package telegram

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"invest-bot-go/internal/coordinator"
	"invest-bot-go/internal/session"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

const (
	maxMessageLength = 4096
	handleTimeout    = time.Minute
)

// botAPI is the part of *tgbotapi.BotAPI the bot uses.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

type Bot struct {
	api         botAPI
	router      *Router
	handlers    *Handlers
	pollTimeout time.Duration
	wg          sync.WaitGroup
}

func NewBot(api botAPI, coord *coordinator.Coordinator, sessions *session.Manager, pollTimeout time.Duration) *Bot {
	handlers := NewHandlers(coord, sessions)
	router := NewRouter(coord.IsOperator)
	handlers.Register(router)
	return &Bot{api: api, router: router, handlers: handlers, pollTimeout: pollTimeout}
}

// Run long-polls for updates until ctx is cancelled, then waits for the
// messages in flight.
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = int(b.pollTimeout / time.Second)
	updates := b.api.GetUpdatesChan(u)
	zap.L().Info("Telegram bot polling", zap.Int("commands", len(b.router.Commands())))

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			b.wg.Wait()
			zap.L().Info("Telegram bot stopped")
			return nil
		case update, ok := <-updates:
			if !ok {
				b.wg.Wait()
				return nil
			}
			if update.Message == nil || !update.Message.Chat.IsPrivate() {
				continue
			}
			b.wg.Add(1)
			go func(msg *tgbotapi.Message) {
				defer b.wg.Done()
				b.handleMessage(ctx, msg)
			}(update.Message)
		}
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), handleTimeout)
	defer cancel()

	caller := coordinator.Caller{Id: strconv.FormatInt(msg.From.ID, 10)}
	if msg.From.UserName != "" {
		caller.Handle = "@" + msg.From.UserName
	}

	reply := b.Reply(ctx, caller, msg.Text)
	for _, part := range splitMessage(reply, maxMessageLength) {
		if _, err := b.api.Send(tgbotapi.NewMessage(msg.Chat.ID, part)); err != nil {
			zap.L().Error("Failed to send reply", zap.Int64("chat_id", msg.Chat.ID), zap.Error(err))
		}
	}
}

// Reply computes the answer to one incoming message.
func (b *Bot) Reply(ctx context.Context, caller coordinator.Caller, text string) string {
	var (
		reply string
		err   error
	)
	if strings.HasPrefix(strings.TrimSpace(text), "/") {
		reply, err = b.router.HandleCommand(ctx, caller, text)
	} else {
		reply, err = b.handlers.HandleText(ctx, caller, text)
		if err != nil {
			zap.L().Error("Message failed", zap.String("caller_id", caller.Id), zap.Error(err))
			reply = "Something went wrong. Please try again."
		}
	}
	if err != nil {
		b.handlers.sessions.Reset(caller.Id)
	}
	return reply
}

// splitMessage breaks text into chunks of at most max bytes, on line
// boundaries where possible.
func splitMessage(text string, max int) []string {
	if text == "" {
		return nil
	}
	var parts []string
	for len(text) > max {
		cut := strings.LastIndex(text[:max], "\n")
		if cut <= 0 {
			cut = max
			for cut > 0 && !utf8.RuneStart(text[cut]) {
				cut--
			}
		}
		parts = append(parts, text[:cut])
		text = strings.TrimPrefix(text[cut:], "\n")
	}
	if text != "" {
		parts = append(parts, text)
	}
	return parts
}
