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

func scanStockInvestment(row rowScanner) (*models.StockInvestment, error) {
	var (
		inv                    models.StockInvestment
		createdAt, confirmedAt string
	)
	err := row.Scan(&inv.Id, &inv.UserId, &inv.Ticker, &inv.Amount, &inv.PurchasePrice, &inv.Shares,
		&inv.Status, &createdAt, &confirmedAt, &inv.ConfirmedBy)
	if err != nil {
		return nil, err
	}
	if inv.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if inv.ConfirmedAt, err = parseTimePtr(confirmedAt); err != nil {
		return nil, err
	}
	return &inv, nil
}

func scanStockSale(row rowScanner) (*models.StockSale, error) {
	var (
		sale                   models.StockSale
		stockId                sql.NullInt64
		createdAt, processedAt string
	)
	err := row.Scan(&sale.Id, &sale.UserId, &stockId, &sale.Ticker, &sale.Shares, &sale.Price,
		&sale.TotalValue, &sale.WalletAddress, &sale.Status, &createdAt, &sale.ProcessedBy, &processedAt)
	if err != nil {
		return nil, err
	}
	sale.StockInvestmentId = stockId.Int64
	if sale.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if sale.ProcessedAt, err = parseTimePtr(processedAt); err != nil {
		return nil, err
	}
	return &sale, nil
}

func (t *txStore) InsertStockInvestment(ctx context.Context, inv *models.StockInvestment) error {
	err := t.tx.QueryRowContext(ctx, queryInsertStockInvestment,
		inv.UserId, inv.Ticker, inv.Amount, inv.PurchasePrice, inv.Shares, string(inv.Status),
		formatTime(inv.CreatedAt), formatTimePtr(inv.ConfirmedAt), inv.ConfirmedBy).
		Scan(&inv.Id)
	if err != nil {
		return fmt.Errorf("unable to insert stock investment: %w", translateError(err))
	}
	return nil
}

func (t *txStore) GetStockInvestment(ctx context.Context, id int64) (*models.StockInvestment, error) {
	inv, err := scanStockInvestment(t.tx.QueryRowContext(ctx, queryGetStockInvestment, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("stock investment %d: %w", id, store.ErrNotFound)
		}
		return nil, fmt.Errorf("unable to query stock investment: %w", err)
	}
	return inv, nil
}

func (t *txStore) ListStockInvestments(ctx context.Context, userId string, status models.Status) ([]models.StockInvestment, error) {
	rows, err := t.tx.QueryContext(ctx, queryListStockInvestments, userId, userId, string(status), string(status))
	if err != nil {
		return nil, fmt.Errorf("unable to query stock investments: %w", err)
	}
	defer rows.Close()

	var out []models.StockInvestment
	for rows.Next() {
		inv, err := scanStockInvestment(rows)
		if err != nil {
			return nil, fmt.Errorf("unable to scan stock investment row: %w", err)
		}
		out = append(out, *inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating stock investment rows: %w", err)
	}
	return out, nil
}

func (t *txStore) UpdateStockInvestment(ctx context.Context, inv *models.StockInvestment, expected models.Status) error {
	result, err := t.tx.ExecContext(ctx, queryUpdateStockInvestment,
		inv.Ticker, inv.Amount, inv.PurchasePrice, inv.Shares, string(inv.Status),
		formatTimePtr(inv.ConfirmedAt), inv.ConfirmedBy, inv.Id, string(expected))
	if err != nil {
		return fmt.Errorf("unable to update stock investment %d: %w", inv.Id, translateError(err))
	}
	return t.checkAffected(ctx, result, queryStockInvestmentExists, inv.Id, store.ErrStaleState)
}

// DeleteStockInvestment removes the position. Sales that referenced it keep
// their ticker and lose the link.
func (t *txStore) DeleteStockInvestment(ctx context.Context, id int64) error {
	result, err := t.tx.ExecContext(ctx, queryDeleteStockInvestment, id)
	if err != nil {
		return fmt.Errorf("unable to delete stock investment %d: %w", id, translateError(err))
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("stock investment %d: %w", id, store.ErrNotFound)
	}
	zap.L().Debug("Deleted stock investment", zap.Int64("stock_id", id))
	return nil
}

func (t *txStore) InsertStockSale(ctx context.Context, sale *models.StockSale) error {
	err := t.tx.QueryRowContext(ctx, queryInsertStockSale,
		sale.UserId, nullInt64(sale.StockInvestmentId), sale.Ticker, sale.Shares, sale.Price, sale.TotalValue,
		sale.WalletAddress, string(sale.Status), formatTime(sale.CreatedAt), sale.ProcessedBy,
		formatTimePtr(sale.ProcessedAt)).
		Scan(&sale.Id)
	if err != nil {
		return fmt.Errorf("unable to insert stock sale: %w", translateError(err))
	}
	return nil
}

func (t *txStore) GetStockSale(ctx context.Context, id int64) (*models.StockSale, error) {
	sale, err := scanStockSale(t.tx.QueryRowContext(ctx, queryGetStockSale, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("stock sale %d: %w", id, store.ErrNotFound)
		}
		return nil, fmt.Errorf("unable to query stock sale: %w", err)
	}
	return sale, nil
}

func (t *txStore) querySales(ctx context.Context, query string, args ...any) ([]models.StockSale, error) {
	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("unable to query stock sales: %w", err)
	}
	defer rows.Close()

	var out []models.StockSale
	for rows.Next() {
		sale, err := scanStockSale(rows)
		if err != nil {
			return nil, fmt.Errorf("unable to scan stock sale row: %w", err)
		}
		out = append(out, *sale)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating stock sale rows: %w", err)
	}
	return out, nil
}

func (t *txStore) ListStockSales(ctx context.Context, userId string, status models.SaleStatus) ([]models.StockSale, error) {
	return t.querySales(ctx, queryListStockSales, userId, userId, string(status), string(status))
}

// ListOpenSalesForStock returns the sales still reserving shares of stockId.
func (t *txStore) ListOpenSalesForStock(ctx context.Context, stockId int64) ([]models.StockSale, error) {
	return t.querySales(ctx, queryListOpenSalesForStock, stockId)
}

func (t *txStore) UpdateStockSale(ctx context.Context, sale *models.StockSale, expected models.SaleStatus) error {
	result, err := t.tx.ExecContext(ctx, queryUpdateStockSale,
		nullInt64(sale.StockInvestmentId), sale.Shares, sale.Price, sale.TotalValue, sale.WalletAddress,
		string(sale.Status), sale.ProcessedBy, formatTimePtr(sale.ProcessedAt), sale.Id, string(expected))
	if err != nil {
		return fmt.Errorf("unable to update stock sale %d: %w", sale.Id, translateError(err))
	}
	return t.checkAffected(ctx, result, queryStockSaleExists, sale.Id, store.ErrStaleState)
}
