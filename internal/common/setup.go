package common

import (
	"context"
	"fmt"
	"log"
	"strings"

	"invest-bot-go/internal/account"
	"invest-bot-go/internal/admin"
	"invest-bot-go/internal/coordinator"
	"invest-bot-go/internal/database"
	"invest-bot-go/internal/httpclient"
	"invest-bot-go/internal/investment"
	"invest-bot-go/internal/models"
	"invest-bot-go/internal/notify"
	"invest-bot-go/internal/profit"
	"invest-bot-go/internal/quote"
	"invest-bot-go/internal/referral"
	"invest-bot-go/internal/session"
	"invest-bot-go/internal/stock"
	"invest-bot-go/internal/wallet"
	"invest-bot-go/internal/withdrawal"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// init loads environment variables from .env file if it exists
func init() {
	// Environment variables can also be set via shell export, docker, etc.
	if err := godotenv.Load(); err != nil {
		log.Printf("Note: No .env file found or unable to load it: %v\n", err)
		log.Println("Make sure to set environment variables via export or other means")
	} else {
		log.Println("✓ Loaded environment variables from .env file")
	}
}

// App is every long-lived component of the bot, built once at startup.
type App struct {
	Store       *database.Service
	Coordinator *coordinator.Coordinator
	Engine      *profit.Engine
	Sessions    *session.Manager
}

// BootstrapLogger installs a production logger globally for errors raised
// before the configured level is known, such as a failed config load.
func BootstrapLogger() *zap.Logger {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Printf("Failed to initialize bootstrap logger: %v\n", err)
		logger = zap.NewExample()
	}
	zap.ReplaceGlobals(logger)
	return logger
}

func InitializeLogger(level string) (*zap.Logger, func()) {
	cfg := zap.NewProductionConfig()
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(strings.ToLower(level))); err != nil {
		log.Printf("Unknown log level %q, using info\n", level)
		lvl = zapcore.InfoLevel
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	logger, err := cfg.Build()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	zap.ReplaceGlobals(logger)

	cleanup := func() {
		if err := logger.Sync(); err != nil {
			if !isIgnorableSyncError(err) {
				log.Printf("Failed to sync logger: %v\n", err)
			}
		}
	}

	return logger, cleanup
}

// InitializeApp opens the store and wires the services around it. Messages
// to users go through notifier.
func InitializeApp(ctx context.Context, cfg *models.Config, notifier notify.Notifier) (*App, error) {
	dbService, err := database.NewService(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	httpClient, err := httpclient.New(cfg.Quotes.Timeout)
	if err != nil {
		dbService.Close()
		return nil, fmt.Errorf("failed to create quote http client: %w", err)
	}
	oracle := quote.NewYahooOracle(httpClient, cfg.Quotes.BaseURL, cfg.Quotes.Timeout)

	profile := wallet.Profile{Prefix: cfg.Wallets.WithdrawalPrefix, Length: cfg.Wallets.WithdrawalLength}
	referrals := referral.NewService(dbService, referral.NewPolicy(cfg.Referral))
	engine := profit.NewEngine(dbService, cfg.Profit.AccrualPeriod)

	coord := coordinator.New(coordinator.Services{
		Accounts:    account.NewService(dbService, referrals),
		Referrals:   referrals,
		Investments: investment.NewService(dbService, wallet.NewRotation(cfg.Wallets.Pools), referrals),
		Stocks:      stock.NewService(dbService, oracle, profile, cfg.Quotes.Timeout),
		Withdrawals: withdrawal.NewService(dbService, cfg.Withdrawal.MinAmount, profile),
		Admin:       admin.NewService(dbService),
		Profit:      engine,
	}, notifier, coordinator.Options{
		OperatorIds:   cfg.Telegram.OperatorIds,
		NotifyTimeout: cfg.Notify.Timeout,
		Tickers:       cfg.Quotes.Tickers,
	})

	zap.L().Info("Application initialized",
		zap.String("database", cfg.Database.Path),
		zap.Int("operators", len(cfg.Telegram.OperatorIds)),
		zap.String("referral_mode", cfg.Referral.Mode),
		zap.Duration("accrual_period", cfg.Profit.AccrualPeriod))

	return &App{
		Store:       dbService,
		Coordinator: coord,
		Engine:      engine,
		Sessions:    session.NewManager(),
	}, nil
}

// InitializeDatabaseOnly initializes just the store
// Useful for read-only operations like querying balances
func InitializeDatabaseOnly(ctx context.Context, cfg *models.Config) (*database.Service, error) {
	dbService, err := database.NewService(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	return dbService, nil
}

func (a *App) Close() {
	if a.Store != nil {
		a.Store.Close()
	}
}

func isIgnorableSyncError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "sync /dev/stderr: inappropriate ioctl for device") ||
		strings.Contains(msg, "sync /dev/stdout: inappropriate ioctl for device")
}
