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
)

func scanWithdrawal(row rowScanner) (*models.Withdrawal, error) {
	var (
		w                      models.Withdrawal
		createdAt, processedAt string
	)
	err := row.Scan(&w.Id, &w.UserId, &w.Amount, &w.WalletAddress, &createdAt, &w.Status,
		&w.ProcessedBy, &processedAt)
	if err != nil {
		return nil, err
	}
	if w.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if w.ProcessedAt, err = parseTimePtr(processedAt); err != nil {
		return nil, err
	}
	return &w, nil
}

func (t *txStore) InsertWithdrawal(ctx context.Context, w *models.Withdrawal) error {
	err := t.tx.QueryRowContext(ctx, queryInsertWithdrawal,
		w.UserId, w.Amount, w.WalletAddress, formatTime(w.CreatedAt), string(w.Status),
		w.ProcessedBy, formatTimePtr(w.ProcessedAt)).
		Scan(&w.Id)
	if err != nil {
		return fmt.Errorf("unable to insert withdrawal: %w", translateError(err))
	}
	return nil
}

func (t *txStore) GetWithdrawal(ctx context.Context, id int64) (*models.Withdrawal, error) {
	w, err := scanWithdrawal(t.tx.QueryRowContext(ctx, queryGetWithdrawal, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("withdrawal %d: %w", id, store.ErrNotFound)
		}
		return nil, fmt.Errorf("unable to query withdrawal: %w", err)
	}
	return w, nil
}

func (t *txStore) ListWithdrawals(ctx context.Context, userId string, status models.Status) ([]models.Withdrawal, error) {
	rows, err := t.tx.QueryContext(ctx, queryListWithdrawals, userId, userId, string(status), string(status))
	if err != nil {
		return nil, fmt.Errorf("unable to query withdrawals: %w", err)
	}
	defer rows.Close()

	var out []models.Withdrawal
	for rows.Next() {
		w, err := scanWithdrawal(rows)
		if err != nil {
			return nil, fmt.Errorf("unable to scan withdrawal row: %w", err)
		}
		out = append(out, *w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating withdrawal rows: %w", err)
	}
	return out, nil
}

func (t *txStore) UpdateWithdrawal(ctx context.Context, w *models.Withdrawal, expected models.Status) error {
	result, err := t.tx.ExecContext(ctx, queryUpdateWithdrawal,
		w.Amount, w.WalletAddress, string(w.Status), w.ProcessedBy, formatTimePtr(w.ProcessedAt),
		w.Id, string(expected))
	if err != nil {
		return fmt.Errorf("unable to update withdrawal %d: %w", w.Id, translateError(err))
	}
	return t.checkAffected(ctx, result, queryWithdrawalExists, w.Id, store.ErrStaleState)
}
