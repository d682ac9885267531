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

const (
	// User queries
	userColumns = `id, handle, full_name, email, registered_at, plan, total_invested, current_balance,
		profit_earned, last_profit_update, referral_code, referred_by, version`

	queryInsertUser = `
		INSERT INTO users (` + userColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	queryGetUserById = `
		SELECT ` + userColumns + `
		FROM users
		WHERE id = ?`

	queryGetUserByReferralCode = `
		SELECT ` + userColumns + `
		FROM users
		WHERE referral_code = ?`

	queryListUsers = `
		SELECT ` + userColumns + `
		FROM users
		ORDER BY registered_at, id`

	queryListUsersWithPlan = `
		SELECT ` + userColumns + `
		FROM users
		WHERE plan <> ''
		ORDER BY registered_at, id`

	queryTopUsersByProfit = `
		SELECT ` + userColumns + `
		FROM users
		ORDER BY CAST(profit_earned AS REAL) DESC, registered_at, id
		LIMIT ?`

	queryUpdateUserAccount = `
		UPDATE users
		SET handle = ?, full_name = ?, email = ?, plan = ?, total_invested = ?, current_balance = ?,
		    profit_earned = ?, last_profit_update = ?, version = version + 1
		WHERE id = ? AND version = ?`

	querySetUserReferrer = `
		UPDATE users SET referred_by = ?, version = version + 1
		WHERE id = ? AND referred_by IS NULL`

	queryDeleteUser = `DELETE FROM users WHERE id = ?`

	queryUserExists = `SELECT 1 FROM users WHERE id = ?`

	// Crypto investment queries
	cryptoColumns = `id, user_id, amount, crypto_kind, wallet_address, tx_id, created_at, status, plan,
		note, processed_by, processed_at`

	queryInsertCryptoInvestment = `
		INSERT INTO crypto_investments (user_id, amount, crypto_kind, wallet_address, tx_id, created_at,
			status, plan, note, processed_by, processed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`

	queryGetCryptoInvestment = `
		SELECT ` + cryptoColumns + `
		FROM crypto_investments
		WHERE id = ?`

	queryListCryptoInvestments = `
		SELECT ` + cryptoColumns + `
		FROM crypto_investments
		WHERE (? = '' OR user_id = ?) AND (? = '' OR status = ?)
		ORDER BY created_at, id`

	queryCountCryptoInvestments = `
		SELECT COUNT(*)
		FROM crypto_investments
		WHERE user_id = ? AND (? = '' OR status = ?)`

	queryUpdateCryptoInvestment = `
		UPDATE crypto_investments
		SET amount = ?, status = ?, plan = ?, note = ?, processed_by = ?, processed_at = ?
		WHERE id = ? AND status = ?`

	queryCryptoInvestmentExists = `SELECT 1 FROM crypto_investments WHERE id = ?`

	// Stock investment queries
	stockColumns = `id, user_id, ticker, amount, purchase_price, shares, status, created_at,
		confirmed_at, confirmed_by`

	queryInsertStockInvestment = `
		INSERT INTO stock_investments (user_id, ticker, amount, purchase_price, shares, status,
			created_at, confirmed_at, confirmed_by)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`

	queryGetStockInvestment = `
		SELECT ` + stockColumns + `
		FROM stock_investments
		WHERE id = ?`

	queryListStockInvestments = `
		SELECT ` + stockColumns + `
		FROM stock_investments
		WHERE (? = '' OR user_id = ?) AND (? = '' OR status = ?)
		ORDER BY created_at, id`

	queryUpdateStockInvestment = `
		UPDATE stock_investments
		SET ticker = ?, amount = ?, purchase_price = ?, shares = ?, status = ?, confirmed_at = ?, confirmed_by = ?
		WHERE id = ? AND status = ?`

	queryDeleteStockInvestment = `DELETE FROM stock_investments WHERE id = ?`

	queryStockInvestmentExists = `SELECT 1 FROM stock_investments WHERE id = ?`

	// Stock sale queries
	saleColumns = `id, user_id, stock_investment_id, ticker, shares, price, total_value, wallet_address,
		status, created_at, processed_by, processed_at`

	queryInsertStockSale = `
		INSERT INTO stock_sales (user_id, stock_investment_id, ticker, shares, price, total_value,
			wallet_address, status, created_at, processed_by, processed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`

	queryGetStockSale = `
		SELECT ` + saleColumns + `
		FROM stock_sales
		WHERE id = ?`

	queryListStockSales = `
		SELECT ` + saleColumns + `
		FROM stock_sales
		WHERE (? = '' OR user_id = ?) AND (? = '' OR status = ?)
		ORDER BY created_at, id`

	queryListOpenSalesForStock = `
		SELECT ` + saleColumns + `
		FROM stock_sales
		WHERE stock_investment_id = ? AND status IN ('awaiting-wallet', 'pending')
		ORDER BY created_at, id`

	queryUpdateStockSale = `
		UPDATE stock_sales
		SET stock_investment_id = ?, shares = ?, price = ?, total_value = ?, wallet_address = ?, status = ?,
		    processed_by = ?, processed_at = ?
		WHERE id = ? AND status = ?`

	queryStockSaleExists = `SELECT 1 FROM stock_sales WHERE id = ?`

	// Withdrawal queries
	withdrawalColumns = `id, user_id, amount, wallet_address, created_at, status, processed_by, processed_at`

	queryInsertWithdrawal = `
		INSERT INTO withdrawals (user_id, amount, wallet_address, created_at, status, processed_by, processed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING id`

	queryGetWithdrawal = `
		SELECT ` + withdrawalColumns + `
		FROM withdrawals
		WHERE id = ?`

	queryListWithdrawals = `
		SELECT ` + withdrawalColumns + `
		FROM withdrawals
		WHERE (? = '' OR user_id = ?) AND (? = '' OR status = ?)
		ORDER BY created_at, id`

	queryUpdateWithdrawal = `
		UPDATE withdrawals
		SET amount = ?, wallet_address = ?, status = ?, processed_by = ?, processed_at = ?
		WHERE id = ? AND status = ?`

	queryWithdrawalExists = `SELECT 1 FROM withdrawals WHERE id = ?`

	// Referral queries
	referralColumns = `id, referrer_id, referee_id, created_at, bonus_amount`

	queryInsertReferral = `
		INSERT INTO referrals (` + referralColumns + `)
		VALUES (?, ?, ?, ?, ?)`

	queryGetReferralByReferee = `
		SELECT ` + referralColumns + `
		FROM referrals
		WHERE referee_id = ?`

	queryListReferralsByReferrer = `
		SELECT ` + referralColumns + `
		FROM referrals
		WHERE referrer_id = ?
		ORDER BY created_at, id`

	queryUpdateReferralBonus = `UPDATE referrals SET bonus_amount = ? WHERE id = ?`

	// Audit queries
	auditColumns = `id, admin_id, target_user_id, action, amount, old_balance, new_balance, created_at, note`

	queryInsertAuditEntry = `
		INSERT INTO admin_audit_log (` + auditColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	queryListAuditEntries = `
		SELECT ` + auditColumns + `
		FROM admin_audit_log
		WHERE (? = '' OR target_user_id = ?)
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?`
)
