package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"invest-bot-go/internal/common"
	"invest-bot-go/internal/config"
	"invest-bot-go/internal/coordinator"
	"invest-bot-go/internal/notify"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// accrue runs a single profit pass, for scheduling from cron instead of the
// bot's own ticker.
func main() {
	at := flag.String("at", "", "Accrue as of this RFC 3339 time instead of now (optional)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		common.BootstrapLogger()
		zap.L().Fatal("Failed to load configuration", zap.Error(err))
	}

	_, loggerCleanup := common.InitializeLogger(cfg.LogLevel)
	defer loggerCleanup()

	ctx := context.Background()

	app, err := common.InitializeApp(ctx, cfg, notifier(cfg.Telegram.BotToken))
	if err != nil {
		zap.L().Fatal("Failed to initialize application", zap.Error(err))
	}
	defer app.Close()

	if *at != "" {
		now, err := time.Parse(time.RFC3339, *at)
		if err != nil {
			zap.L().Fatal("Invalid --at time", zap.String("at", *at), zap.Error(err))
		}
		app.Coordinator.Now = func() time.Time { return now }
	}

	caller := coordinator.Caller{Id: firstOperator(cfg.Telegram.OperatorIds)}
	res := app.Coordinator.AccrueProfits(ctx, caller)
	if !res.OK {
		zap.L().Fatal("Profit run failed", zap.String("kind", string(res.Kind)), zap.String("message", res.Message))
	}

	summary := res.Value
	common.PrintHeader("PROFIT ACCRUAL", common.DefaultWidth)
	for i, credit := range summary.Credits {
		fmt.Printf("%s %-20s %3d day(s) %14s\n",
			common.BoxPrefix(i == len(summary.Credits)-1), credit.UserId, credit.Days, common.FormatUSD(credit.Amount))
	}
	common.PrintFooter(fmt.Sprintf("SUMMARY: %d of %d users credited, %s total",
		summary.Credited, summary.Evaluated, common.FormatUSD(summary.Total)), common.DefaultWidth)
}

// notifier tells users over telegram when a token is configured, and only
// logs otherwise.
func notifier(token string) notify.Notifier {
	if token == "" {
		return notify.LogNotifier{}
	}
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		zap.L().Warn("Telegram unavailable, accruals will only be logged", zap.Error(err))
		return notify.LogNotifier{}
	}
	return notify.Multi{notify.LogNotifier{}, notify.NewTelegramNotifier(api)}
}

func firstOperator(ids []string) string {
	if len(ids) == 0 {
		zap.L().Fatal("OPERATOR_IDS must name at least one operator to run accruals")
	}
	return ids[0]
}
