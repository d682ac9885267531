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

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"invest-bot-go/internal/models"
	"invest-bot-go/internal/store"

	"go.uber.org/zap"
)

func scanUser(row rowScanner) (*models.User, error) {
	var (
		user                     models.User
		registeredAt, lastUpdate string
		referralCode, referredBy sql.NullString
	)
	err := row.Scan(&user.Id, &user.Handle, &user.FullName, &user.Email, &registeredAt, &user.Plan,
		&user.TotalInvested, &user.CurrentBalance, &user.ProfitEarned, &lastUpdate,
		&referralCode, &referredBy, &user.Version)
	if err != nil {
		return nil, err
	}
	if user.RegisteredAt, err = parseTime(registeredAt); err != nil {
		return nil, err
	}
	if user.LastProfitUpdate, err = parseTime(lastUpdate); err != nil {
		return nil, err
	}
	user.ReferralCode = referralCode.String
	user.ReferredBy = referredBy.String
	return &user, nil
}

func (t *txStore) queryUsers(ctx context.Context, query string, args ...any) ([]models.User, error) {
	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		zap.L().Error("Failed to query users", zap.Error(err))
		return nil, fmt.Errorf("unable to query users: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	var users []models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("unable to scan user row: %w", err)
		}
		users = append(users, *user)
	}

	// Check for errors during iteration
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating user rows: %w", err)
	}
	return users, nil
}

func (t *txStore) InsertUser(ctx context.Context, user *models.User) error {
	user.Version = 1
	_, err := t.tx.ExecContext(ctx, queryInsertUser,
		user.Id, user.Handle, user.FullName, user.Email, formatTime(user.RegisteredAt), string(user.Plan),
		user.TotalInvested, user.CurrentBalance, user.ProfitEarned, formatTime(user.LastProfitUpdate),
		nullString(user.ReferralCode), nullString(user.ReferredBy), user.Version)
	if err != nil {
		return fmt.Errorf("unable to insert user %s: %w", user.Id, translateError(err))
	}
	zap.L().Debug("Inserted user", zap.String("user_id", user.Id))
	return nil
}

func (t *txStore) GetUser(ctx context.Context, userId string) (*models.User, error) {
	user, err := scanUser(t.tx.QueryRowContext(ctx, queryGetUserById, userId))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %s: %w", userId, store.ErrNotFound)
		}
		return nil, fmt.Errorf("unable to query user by ID: %w", err)
	}
	return user, nil
}

func (t *txStore) GetUserByReferralCode(ctx context.Context, code string) (*models.User, error) {
	user, err := scanUser(t.tx.QueryRowContext(ctx, queryGetUserByReferralCode, code))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("referral code %s: %w", code, store.ErrNotFound)
		}
		return nil, fmt.Errorf("unable to query user by referral code: %w", err)
	}
	return user, nil
}

func (t *txStore) ListUsers(ctx context.Context) ([]models.User, error) {
	return t.queryUsers(ctx, queryListUsers)
}

func (t *txStore) ListUsersWithPlan(ctx context.Context) ([]models.User, error) {
	return t.queryUsers(ctx, queryListUsersWithPlan)
}

func (t *txStore) TopUsersByProfit(ctx context.Context, limit int) ([]models.User, error) {
	return t.queryUsers(ctx, queryTopUsersByProfit, limitOrAll(limit))
}

// UpdateUserAccount uses the version column for optimistic locking.
func (t *txStore) UpdateUserAccount(ctx context.Context, user *models.User) error {
	result, err := t.tx.ExecContext(ctx, queryUpdateUserAccount,
		user.Handle, user.FullName, user.Email, string(user.Plan), user.TotalInvested, user.CurrentBalance,
		user.ProfitEarned, formatTime(user.LastProfitUpdate), user.Id, user.Version)
	if err != nil {
		return fmt.Errorf("unable to update user %s: %w", user.Id, translateError(err))
	}
	if err := t.checkAffected(ctx, result, queryUserExists, user.Id, store.ErrConcurrentModification); err != nil {
		return err
	}
	user.Version++
	return nil
}

func (t *txStore) SetUserReferrer(ctx context.Context, userId, referrerId string) error {
	result, err := t.tx.ExecContext(ctx, querySetUserReferrer, referrerId, userId)
	if err != nil {
		return fmt.Errorf("unable to set referrer for %s: %w", userId, translateError(err))
	}
	return t.checkAffected(ctx, result, queryUserExists, userId, store.ErrStaleState)
}

// DeleteUser removes the user; child rows cascade and audit entries keep
// their history with a null target.
func (t *txStore) DeleteUser(ctx context.Context, userId string) error {
	result, err := t.tx.ExecContext(ctx, queryDeleteUser, userId)
	if err != nil {
		return fmt.Errorf("unable to delete user %s: %w", userId, translateError(err))
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("user %s: %w", userId, store.ErrNotFound)
	}
	zap.L().Info("Deleted user", zap.String("user_id", userId))
	return nil
}
