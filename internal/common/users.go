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

package common

import (
	"context"
	"fmt"

	"invest-bot-go/internal/models"
	"invest-bot-go/internal/store"

	"go.uber.org/zap"
)

// SelectUsers retrieves users based on an optional id filter.
// If idFilter is provided, returns the single user with that id.
// If idFilter is empty, returns all users.
func SelectUsers(ctx context.Context, st store.Store, idFilter string) ([]models.User, error) {
	var users []models.User

	err := st.View(ctx, func(tx store.Tx) error {
		if idFilter != "" {
			zap.L().Info("Looking up user by id", zap.String("user_id", idFilter))
			user, err := tx.GetUser(ctx, idFilter)
			if err != nil {
				return fmt.Errorf("user not found: %w", err)
			}
			users = append(users, *user)
			return nil
		}

		all, err := tx.ListUsers(ctx)
		if err != nil {
			return fmt.Errorf("failed to get users: %w", err)
		}
		users = all
		return nil
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("Retrieved users", zap.Int("count", len(users)))
	return users, nil
}
