package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"invest-bot-go/internal/common"
	"invest-bot-go/internal/config"
	"invest-bot-go/internal/httpclient"
	"invest-bot-go/internal/notify"
	"invest-bot-go/internal/telegram"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		common.BootstrapLogger()
		zap.L().Fatal("Failed to load configuration", zap.Error(err))
	}

	_, loggerCleanup := common.InitializeLogger(cfg.LogLevel)
	defer loggerCleanup()

	if cfg.Telegram.BotToken == "" {
		zap.L().Fatal("TELEGRAM_BOT_TOKEN is required")
	}
	if len(cfg.Telegram.OperatorIds) == 0 {
		zap.L().Warn("OPERATOR_IDS is empty, no one can confirm requests")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	zap.L().Info("Starting investment bot")

	pollTimeout := time.Duration(cfg.Telegram.PollTimeout) * time.Second
	// The long poll holds a request open for pollTimeout, so the client must wait longer.
	httpClient, err := httpclient.New(pollTimeout + 10*time.Second)
	if err != nil {
		zap.L().Fatal("Failed to create telegram http client", zap.Error(err))
	}
	api, err := tgbotapi.NewBotAPIWithClient(cfg.Telegram.BotToken, tgbotapi.APIEndpoint, httpClient)
	if err != nil {
		zap.L().Fatal("Failed to connect to telegram", zap.Error(err))
	}
	zap.L().Info("Telegram bot authorized", zap.String("username", api.Self.UserName))

	app, err := common.InitializeApp(ctx, cfg, notify.NewTelegramNotifier(api))
	if err != nil {
		zap.L().Fatal("Failed to initialize application", zap.Error(err))
	}
	defer app.Close()

	bot := telegram.NewBot(api, app.Coordinator, app.Sessions, pollTimeout)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return bot.Run(gctx)
	})
	g.Go(func() error {
		app.Engine.Start(gctx, app.Coordinator.NotifyAccruals)
		<-gctx.Done()
		app.Engine.Stop()
		return nil
	})

	zap.L().Info("Bot running, press Ctrl+C to stop")
	if err := g.Wait(); err != nil {
		zap.L().Error("Bot stopped with error", zap.Error(err))
		return
	}
	zap.L().Info("Bot stopped gracefully")
}
