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
	"fmt"
	"time"

	"invest-bot-go/internal/models"

	"github.com/google/uuid"
)

func (t *txStore) InsertAuditEntry(ctx context.Context, entry *models.AuditEntry) error {
	if entry.Id == "" {
		entry.Id = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if entry.AdminId == "" {
		entry.AdminId = models.SystemActor
	}
	_, err := t.tx.ExecContext(ctx, queryInsertAuditEntry,
		entry.Id, entry.AdminId, nullString(entry.TargetUserId), entry.Action,
		entry.Amount, entry.OldBalance, entry.NewBalance, formatTime(entry.CreatedAt), entry.Note)
	if err != nil {
		return fmt.Errorf("unable to insert audit entry %s: %w", entry.Action, translateError(err))
	}
	return nil
}

// ListAuditEntries returns newest entries first. An empty target lists every
// entry; a non-positive limit returns them all.
func (t *txStore) ListAuditEntries(ctx context.Context, targetUserId string, limit int) ([]models.AuditEntry, error) {
	rows, err := t.tx.QueryContext(ctx, queryListAuditEntries, targetUserId, targetUserId, limitOrAll(limit))
	if err != nil {
		return nil, fmt.Errorf("unable to query audit log: %w", err)
	}
	defer rows.Close()

	var out []models.AuditEntry
	for rows.Next() {
		var (
			entry     models.AuditEntry
			target    sql.NullString
			createdAt string
		)
		err := rows.Scan(&entry.Id, &entry.AdminId, &target, &entry.Action,
			&entry.Amount, &entry.OldBalance, &entry.NewBalance, &createdAt, &entry.Note)
		if err != nil {
			return nil, fmt.Errorf("unable to scan audit row: %w", err)
		}
		entry.TargetUserId = target.String
		if entry.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit rows: %w", err)
	}
	return out, nil
}
