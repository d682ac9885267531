/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package main

import (
	"context"
	"flag"
	"fmt"

	"invest-bot-go/internal/common"
	"invest-bot-go/internal/config"
	"invest-bot-go/internal/models"
	"invest-bot-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type balanceStats struct {
	totalUsers    int
	usersInvested int
	totalBalance  decimal.Decimal
	totalProfit   decimal.Decimal
}

type userDetails struct {
	investments int
	withdrawals int
	audit       []models.AuditEntry
}

func planName(p models.Plan) string {
	if terms, ok := p.Terms(); ok {
		return terms.Name
	}
	return "none"
}

func printUser(user models.User, pending userDetails) {
	fmt.Printf("\n┌─ User: %s (%s)\n", user.FullName, user.Email)
	fmt.Printf("│  ID: %s  Plan: %s\n", user.Id, planName(user.Plan))
	common.PrintBoxSeparator(78)
	fmt.Printf("%s %-15s: %20s\n", common.BoxPrefix(false), "Invested", common.FormatUSD(user.TotalInvested))
	fmt.Printf("%s %-15s: %20s\n", common.BoxPrefix(false), "Balance", common.FormatUSD(user.CurrentBalance))
	fmt.Printf("%s %-15s: %20s (last accrual: %s)\n", common.BoxPrefix(false), "Profit",
		common.FormatUSD(user.ProfitEarned), user.LastProfitUpdate.Format("2006-01-02 15:04:05"))
	fmt.Printf("%s %-15s: %d deposit(s), %d withdrawal(s)\n", common.BoxPrefix(len(pending.audit) == 0), "Pending",
		pending.investments, pending.withdrawals)
	if len(pending.audit) == 0 {
		return
	}

	fmt.Printf("%s %-15s:\n", common.BoxPrefix(true), "Audit")
	for _, e := range pending.audit {
		fmt.Printf("%s   %s %-20s %10s  %s -> %s  by %s\n",
			common.BoxDetailPrefix(true),
			e.CreatedAt.Format("2006-01-02 15:04"),
			e.Action,
			common.FormatOptional(e.Amount),
			common.FormatOptional(e.OldBalance),
			common.FormatOptional(e.NewBalance),
			e.AdminId)
	}
}

func loadDetails(ctx context.Context, st store.Store, userId string, auditLimit int) (userDetails, error) {
	var counts userDetails
	err := st.View(ctx, func(tx store.Tx) error {
		n, err := tx.CountCryptoInvestments(ctx, userId, models.StatusPending)
		if err != nil {
			return err
		}
		counts.investments = n

		ws, err := tx.ListWithdrawals(ctx, userId, models.StatusPending)
		if err != nil {
			return err
		}
		counts.withdrawals = len(ws)

		if auditLimit > 0 {
			counts.audit, err = tx.ListAuditEntries(ctx, userId, auditLimit)
			if err != nil {
				return err
			}
		}
		return nil
	})
	return counts, err
}

func processUsersAndGenerateReport(ctx context.Context, users []models.User, st store.Store, auditLimit int) balanceStats {
	stats := balanceStats{}

	for _, user := range users {
		stats.totalUsers++

		pending, err := loadDetails(ctx, st, user.Id, auditLimit)
		if err != nil {
			zap.L().Error("Failed to process user",
				zap.String("user_id", user.Id),
				zap.String("user_name", user.FullName),
				zap.Error(err))
			continue
		}

		printUser(user, pending)

		if user.TotalInvested.IsPositive() {
			stats.usersInvested++
		}
		stats.totalBalance = stats.totalBalance.Add(user.CurrentBalance)
		stats.totalProfit = stats.totalProfit.Add(user.ProfitEarned)
	}

	return stats
}

func main() {
	ctx := context.Background()

	// Parse command line flags
	userFlag := flag.String("user", "", "Filter by specific user id (optional)")
	auditFlag := flag.Int("audit", 0, "Show the last N audit entries per user (optional)")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		common.BootstrapLogger()
		zap.L().Fatal("Failed to load config", zap.Error(err))
	}

	_, loggerCleanup := common.InitializeLogger(cfg.LogLevel)
	defer loggerCleanup()

	zap.L().Info("Starting balance query")

	// Read-only, no oracle or notifier needed
	zap.L().Info("Connecting to database", zap.String("path", cfg.Database.Path))
	dbService, err := common.InitializeDatabaseOnly(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize database", zap.Error(err))
	}
	defer dbService.Close()

	users, err := common.SelectUsers(ctx, dbService, *userFlag)
	if err != nil {
		zap.L().Fatal("Failed to select users", zap.Error(err))
	}

	common.PrintHeader("USER BALANCE REPORT", common.DefaultWidth)

	stats := processUsersAndGenerateReport(ctx, users, dbService, *auditFlag)

	summary := fmt.Sprintf("SUMMARY: %d of %d users invested, balances %s, profit paid %s",
		stats.usersInvested, stats.totalUsers,
		common.FormatUSD(stats.totalBalance), common.FormatUSD(stats.totalProfit))
	common.PrintFooter(summary, common.DefaultWidth)

	zap.L().Info("Balance query completed",
		zap.Int("users_queried", stats.totalUsers),
		zap.Int("users_invested", stats.usersInvested))
}
