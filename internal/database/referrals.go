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
	"time"

	"invest-bot-go/internal/models"
	"invest-bot-go/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func scanReferral(row rowScanner) (*models.Referral, error) {
	var (
		ref       models.Referral
		createdAt string
	)
	if err := row.Scan(&ref.Id, &ref.ReferrerId, &ref.RefereeId, &createdAt, &ref.BonusAmount); err != nil {
		return nil, err
	}
	var err error
	if ref.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &ref, nil
}

func (t *txStore) InsertReferral(ctx context.Context, ref *models.Referral) error {
	if ref.Id == "" {
		ref.Id = uuid.New().String()
	}
	if ref.CreatedAt.IsZero() {
		ref.CreatedAt = time.Now().UTC()
	}
	_, err := t.tx.ExecContext(ctx, queryInsertReferral,
		ref.Id, ref.ReferrerId, ref.RefereeId, formatTime(ref.CreatedAt), ref.BonusAmount)
	if err != nil {
		return fmt.Errorf("unable to insert referral: %w", translateError(err))
	}
	return nil
}

func (t *txStore) GetReferralByReferee(ctx context.Context, refereeId string) (*models.Referral, error) {
	ref, err := scanReferral(t.tx.QueryRowContext(ctx, queryGetReferralByReferee, refereeId))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("referral for %s: %w", refereeId, store.ErrNotFound)
		}
		return nil, fmt.Errorf("unable to query referral: %w", err)
	}
	return ref, nil
}

func (t *txStore) ListReferralsByReferrer(ctx context.Context, referrerId string) ([]models.Referral, error) {
	rows, err := t.tx.QueryContext(ctx, queryListReferralsByReferrer, referrerId)
	if err != nil {
		return nil, fmt.Errorf("unable to query referrals: %w", err)
	}
	defer rows.Close()

	var out []models.Referral
	for rows.Next() {
		ref, err := scanReferral(rows)
		if err != nil {
			return nil, fmt.Errorf("unable to scan referral row: %w", err)
		}
		out = append(out, *ref)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating referral rows: %w", err)
	}
	return out, nil
}

func (t *txStore) UpdateReferralBonus(ctx context.Context, id string, bonus decimal.Decimal) error {
	result, err := t.tx.ExecContext(ctx, queryUpdateReferralBonus, bonus, id)
	if err != nil {
		return fmt.Errorf("unable to update referral %s: %w", id, translateError(err))
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("referral %s: %w", id, store.ErrNotFound)
	}
	return nil
}
