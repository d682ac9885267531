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
	"strings"

	"go.uber.org/zap"
)

// column is a non-key column that can be added to an existing table.
// Every definition must be accepted by ALTER TABLE ADD COLUMN, so NOT NULL
// columns carry a default and references default to NULL.
type column struct {
	name       string
	definition string
}

type table struct {
	name        string
	key         []string // created with the table, never migrated
	columns     []column
	constraints []string
	indexes     []string
}

var schema = []table{
	{
		name: "users",
		key:  []string{"id TEXT PRIMARY KEY"},
		columns: []column{
			{"handle", "TEXT NOT NULL DEFAULT ''"},
			{"full_name", "TEXT NOT NULL DEFAULT ''"},
			{"email", "TEXT NOT NULL DEFAULT ''"},
			{"registered_at", "TEXT NOT NULL DEFAULT ''"},
			{"plan", "TEXT NOT NULL DEFAULT ''"},
			{"total_invested", "TEXT NOT NULL DEFAULT '0'"},
			{"current_balance", "TEXT NOT NULL DEFAULT '0' CONSTRAINT users_balance_non_negative CHECK (CAST(current_balance AS REAL) >= 0)"},
			{"profit_earned", "TEXT NOT NULL DEFAULT '0'"},
			{"last_profit_update", "TEXT NOT NULL DEFAULT ''"},
			{"referral_code", "TEXT"},
			{"referred_by", "TEXT REFERENCES users(id) ON DELETE SET NULL CONSTRAINT users_no_self_referral CHECK (referred_by IS NULL OR referred_by <> id)"},
			{"version", "INTEGER NOT NULL DEFAULT 1"},
		},
		indexes: []string{
			"CREATE UNIQUE INDEX IF NOT EXISTS idx_users_referral_code ON users(referral_code)",
			"CREATE INDEX IF NOT EXISTS idx_users_plan ON users(plan)",
		},
	},
	{
		name: "crypto_investments",
		key: []string{
			"id INTEGER PRIMARY KEY AUTOINCREMENT",
			"user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE",
		},
		columns: []column{
			{"amount", "TEXT NOT NULL DEFAULT '0'"},
			{"crypto_kind", "TEXT NOT NULL DEFAULT ''"},
			{"wallet_address", "TEXT NOT NULL DEFAULT ''"},
			{"tx_id", "TEXT NOT NULL DEFAULT ''"},
			{"created_at", "TEXT NOT NULL DEFAULT ''"},
			{"status", "TEXT NOT NULL DEFAULT 'pending'"},
			{"plan", "TEXT NOT NULL DEFAULT ''"},
			{"note", "TEXT NOT NULL DEFAULT ''"},
			{"processed_by", "TEXT NOT NULL DEFAULT ''"},
			{"processed_at", "TEXT NOT NULL DEFAULT ''"},
		},
		indexes: []string{
			"CREATE INDEX IF NOT EXISTS idx_crypto_investments_user_status ON crypto_investments(user_id, status)",
		},
	},
	{
		name: "stock_investments",
		key: []string{
			"id INTEGER PRIMARY KEY AUTOINCREMENT",
			"user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE",
		},
		columns: []column{
			{"ticker", "TEXT NOT NULL DEFAULT ''"},
			{"amount", "TEXT NOT NULL DEFAULT '0'"},
			{"purchase_price", "TEXT NOT NULL DEFAULT '0'"},
			{"shares", "TEXT NOT NULL DEFAULT '0'"},
			{"status", "TEXT NOT NULL DEFAULT 'pending'"},
			{"created_at", "TEXT NOT NULL DEFAULT ''"},
			{"confirmed_at", "TEXT NOT NULL DEFAULT ''"},
			{"confirmed_by", "TEXT NOT NULL DEFAULT ''"},
		},
		indexes: []string{
			"CREATE INDEX IF NOT EXISTS idx_stock_investments_user_status ON stock_investments(user_id, status)",
		},
	},
	{
		name: "withdrawals",
		key: []string{
			"id INTEGER PRIMARY KEY AUTOINCREMENT",
			"user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE",
		},
		columns: []column{
			{"amount", "TEXT NOT NULL DEFAULT '0'"},
			{"wallet_address", "TEXT NOT NULL DEFAULT ''"},
			{"created_at", "TEXT NOT NULL DEFAULT ''"},
			{"status", "TEXT NOT NULL DEFAULT 'pending'"},
			{"processed_by", "TEXT NOT NULL DEFAULT ''"},
			{"processed_at", "TEXT NOT NULL DEFAULT ''"},
		},
		indexes: []string{
			"CREATE INDEX IF NOT EXISTS idx_withdrawals_user_status ON withdrawals(user_id, status)",
		},
	},
	{
		name: "stock_sales",
		key: []string{
			"id INTEGER PRIMARY KEY AUTOINCREMENT",
			"user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE",
		},
		columns: []column{
			{"stock_investment_id", "INTEGER REFERENCES stock_investments(id) ON DELETE SET NULL"},
			{"ticker", "TEXT NOT NULL DEFAULT ''"},
			{"shares", "TEXT NOT NULL DEFAULT '0'"},
			{"price", "TEXT NOT NULL DEFAULT '0'"},
			{"total_value", "TEXT NOT NULL DEFAULT '0'"},
			{"wallet_address", "TEXT NOT NULL DEFAULT ''"},
			{"status", "TEXT NOT NULL DEFAULT 'awaiting-wallet'"},
			{"created_at", "TEXT NOT NULL DEFAULT ''"},
			{"processed_by", "TEXT NOT NULL DEFAULT ''"},
			{"processed_at", "TEXT NOT NULL DEFAULT ''"},
		},
		indexes: []string{
			"CREATE INDEX IF NOT EXISTS idx_stock_sales_user_status ON stock_sales(user_id, status)",
			"CREATE INDEX IF NOT EXISTS idx_stock_sales_investment ON stock_sales(stock_investment_id)",
		},
	},
	{
		name: "referrals",
		key: []string{
			"id TEXT PRIMARY KEY",
			"referrer_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE",
			"referee_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE",
		},
		columns: []column{
			{"created_at", "TEXT NOT NULL DEFAULT ''"},
			{"bonus_amount", "TEXT NOT NULL DEFAULT '0'"},
		},
		constraints: []string{
			"CONSTRAINT referrals_distinct_users CHECK (referrer_id <> referee_id)",
		},
		indexes: []string{
			"CREATE UNIQUE INDEX IF NOT EXISTS idx_referrals_pair ON referrals(referrer_id, referee_id)",
			"CREATE UNIQUE INDEX IF NOT EXISTS idx_referrals_referee ON referrals(referee_id)",
		},
	},
	{
		name: "admin_audit_log",
		key:  []string{"id TEXT PRIMARY KEY"},
		columns: []column{
			{"admin_id", "TEXT NOT NULL DEFAULT ''"},
			{"target_user_id", "TEXT REFERENCES users(id) ON DELETE SET NULL"},
			{"action", "TEXT NOT NULL DEFAULT ''"},
			{"amount", "TEXT"},
			{"old_balance", "TEXT"},
			{"new_balance", "TEXT"},
			{"created_at", "TEXT NOT NULL DEFAULT ''"},
			{"note", "TEXT NOT NULL DEFAULT ''"},
		},
		indexes: []string{
			"CREATE INDEX IF NOT EXISTS idx_admin_audit_log_target ON admin_audit_log(target_user_id, created_at)",
		},
	},
}

func (t table) createStatement() string {
	defs := append([]string{}, t.key...)
	for _, c := range t.columns {
		defs = append(defs, c.name+" "+c.definition)
	}
	defs = append(defs, t.constraints...)
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t%s\n)", t.name, strings.Join(defs, ",\n\t"))
}

// migrate brings the schema forward: missing tables are created and missing
// columns on existing tables are added. Nothing is ever dropped or rewritten.
func migrate(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin migration: %w", err)
	}
	defer tx.Rollback()

	for _, t := range schema {
		if _, err := tx.ExecContext(ctx, t.createStatement()); err != nil {
			return fmt.Errorf("failed to create table %s: %w", t.name, err)
		}

		existing, err := tableColumns(ctx, tx, t.name)
		if err != nil {
			return err
		}
		for _, c := range t.columns {
			if existing[c.name] {
				continue
			}
			stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", t.name, c.name, c.definition)
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("failed to add column %s.%s: %w", t.name, c.name, err)
			}
			zap.L().Info("Added missing column", zap.String("table", t.name), zap.String("column", c.name))
		}

		for _, idx := range t.indexes {
			if _, err := tx.ExecContext(ctx, idx); err != nil {
				return fmt.Errorf("failed to create index on %s: %w", t.name, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration: %w", err)
	}
	return nil
}

func tableColumns(ctx context.Context, tx *sql.Tx, name string) (map[string]bool, error) {
	rows, err := tx.QueryContext(ctx, "PRAGMA table_info("+name+")")
	if err != nil {
		return nil, fmt.Errorf("unable to inspect table %s: %w", name, err)
	}
	defer rows.Close()

	cols := make(map[string]bool)
	for rows.Next() {
		var (
			cid       int
			colName   string
			colType   string
			notNull   int
			dfltValue sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &colName, &colType, &notNull, &dfltValue, &pk); err != nil {
			return nil, fmt.Errorf("unable to scan column info for %s: %w", name, err)
		}
		cols[colName] = true
	}
	return cols, rows.Err()
}
