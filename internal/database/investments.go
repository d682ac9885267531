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

func scanCryptoInvestment(row rowScanner) (*models.CryptoInvestment, error) {
	var (
		inv                    models.CryptoInvestment
		createdAt, processedAt string
	)
	err := row.Scan(&inv.Id, &inv.UserId, &inv.Amount, &inv.Kind, &inv.WalletAddress, &inv.TxId,
		&createdAt, &inv.Status, &inv.Plan, &inv.Note, &inv.ProcessedBy, &processedAt)
	if err != nil {
		return nil, err
	}
	if inv.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if inv.ProcessedAt, err = parseTimePtr(processedAt); err != nil {
		return nil, err
	}
	return &inv, nil
}

func (t *txStore) InsertCryptoInvestment(ctx context.Context, inv *models.CryptoInvestment) error {
	err := t.tx.QueryRowContext(ctx, queryInsertCryptoInvestment,
		inv.UserId, inv.Amount, string(inv.Kind), inv.WalletAddress, inv.TxId, formatTime(inv.CreatedAt),
		string(inv.Status), string(inv.Plan), inv.Note, inv.ProcessedBy, formatTimePtr(inv.ProcessedAt)).
		Scan(&inv.Id)
	if err != nil {
		return fmt.Errorf("unable to insert crypto investment: %w", translateError(err))
	}
	return nil
}

func (t *txStore) GetCryptoInvestment(ctx context.Context, id int64) (*models.CryptoInvestment, error) {
	inv, err := scanCryptoInvestment(t.tx.QueryRowContext(ctx, queryGetCryptoInvestment, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("crypto investment %d: %w", id, store.ErrNotFound)
		}
		return nil, fmt.Errorf("unable to query crypto investment: %w", err)
	}
	return inv, nil
}

// ListCryptoInvestments filters by user and status; empty values match all.
func (t *txStore) ListCryptoInvestments(ctx context.Context, userId string, status models.Status) ([]models.CryptoInvestment, error) {
	rows, err := t.tx.QueryContext(ctx, queryListCryptoInvestments, userId, userId, string(status), string(status))
	if err != nil {
		return nil, fmt.Errorf("unable to query crypto investments: %w", err)
	}
	defer rows.Close()

	var out []models.CryptoInvestment
	for rows.Next() {
		inv, err := scanCryptoInvestment(rows)
		if err != nil {
			return nil, fmt.Errorf("unable to scan crypto investment row: %w", err)
		}
		out = append(out, *inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating crypto investment rows: %w", err)
	}
	return out, nil
}

func (t *txStore) CountCryptoInvestments(ctx context.Context, userId string, status models.Status) (int, error) {
	var n int
	err := t.tx.QueryRowContext(ctx, queryCountCryptoInvestments, userId, string(status), string(status)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("unable to count crypto investments: %w", err)
	}
	return n, nil
}

func (t *txStore) UpdateCryptoInvestment(ctx context.Context, inv *models.CryptoInvestment, expected models.Status) error {
	result, err := t.tx.ExecContext(ctx, queryUpdateCryptoInvestment,
		inv.Amount, string(inv.Status), string(inv.Plan), inv.Note, inv.ProcessedBy, formatTimePtr(inv.ProcessedAt),
		inv.Id, string(expected))
	if err != nil {
		return fmt.Errorf("unable to update crypto investment %d: %w", inv.Id, translateError(err))
	}
	return t.checkAffected(ctx, result, queryCryptoInvestmentExists, inv.Id, store.ErrStaleState)
}
