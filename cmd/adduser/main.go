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
	"invest-bot-go/internal/coordinator"
	"invest-bot-go/internal/notify"

	"go.uber.org/zap"
)

func main() {
	ctx := context.Background()

	// Parse command line flags
	idFlag := flag.String("id", "", "User's telegram chat id (required)")
	nameFlag := flag.String("name", "", "User's full name (required)")
	emailFlag := flag.String("email", "", "User's email address (required)")
	handleFlag := flag.String("handle", "", "User's telegram handle (optional)")
	referralFlag := flag.String("referral", "", "Referral code of the inviting user (optional)")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		common.BootstrapLogger()
		zap.L().Fatal("Failed to load config", zap.Error(err))
	}

	_, loggerCleanup := common.InitializeLogger(cfg.LogLevel)
	defer loggerCleanup()

	// Validate required flags
	if *idFlag == "" || *nameFlag == "" || *emailFlag == "" {
		zap.L().Fatal("Flags --id, --name and --email are required")
	}

	zap.L().Info("Starting user creation process",
		zap.String("id", *idFlag),
		zap.String("name", *nameFlag),
		zap.String("email", *emailFlag))

	app, err := common.InitializeApp(ctx, cfg, notify.LogNotifier{})
	if err != nil {
		zap.L().Fatal("Failed to initialize application", zap.Error(err))
	}
	defer app.Close()

	res := app.Coordinator.Register(ctx, coordinator.Caller{Id: *idFlag, Handle: *handleFlag}, coordinator.RegisterRequest{
		FullName:     *nameFlag,
		Email:        *emailFlag,
		ReferralCode: *referralFlag,
	})
	if !res.OK {
		zap.L().Fatal("Failed to create user", zap.String("kind", string(res.Kind)), zap.String("message", res.Message))
	}
	user := res.Value

	fmt.Println()
	common.PrintHeader("USER CREATED", common.DefaultWidth)
	fmt.Printf("ID:            %s\n", user.Id)
	fmt.Printf("Name:          %s\n", user.FullName)
	fmt.Printf("Email:         %s\n", user.Email)
	fmt.Printf("Referral code: %s\n", user.ReferralCode)
	if user.ReferredBy != "" {
		fmt.Printf("Referred by:   %s\n", user.ReferredBy)
	}
	common.PrintSeparator("=", common.DefaultWidth)
	fmt.Println()

	zap.L().Info("User created successfully", zap.String("id", user.Id))
}
