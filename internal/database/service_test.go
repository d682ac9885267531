package database

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"invest-bot-go/internal/models"
	"invest-bot-go/internal/store"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
)

func testConfig(path string) models.DatabaseConfig {
	return models.DatabaseConfig{
		Path:         path,
		MaxOpenConns: 4,
		MaxIdleConns: 2,
		PingTimeout:  5 * time.Second,
		BusyTimeout:  5 * time.Second,
	}
}

func setupTestService(t *testing.T) *Service {
	t.Helper()
	service, err := NewService(context.Background(), testConfig(filepath.Join(t.TempDir(), "test.db")))
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(service.Close)
	return service
}

func insertTestUser(t *testing.T, s *Service, id string) *models.User {
	t.Helper()
	user := &models.User{
		Id:             id,
		Handle:         "@" + id,
		RegisteredAt:   time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC),
		TotalInvested:  decimal.Zero,
		CurrentBalance: decimal.Zero,
		ProfitEarned:   decimal.Zero,
		ReferralCode:   "CODE" + id,
	}
	err := s.WithTx(context.Background(), func(tx store.Tx) error {
		return tx.InsertUser(context.Background(), user)
	})
	if err != nil {
		t.Fatalf("Failed to insert test user: %v", err)
	}
	return user
}

func getTestUser(t *testing.T, s *Service, id string) *models.User {
	t.Helper()
	var user *models.User
	err := s.View(context.Background(), func(tx store.Tx) error {
		var err error
		user, err = tx.GetUser(context.Background(), id)
		return err
	})
	if err != nil {
		t.Fatalf("GetUser failed: %v", err)
	}
	return user
}

func TestNewService_InvalidConfig(t *testing.T) {
	cfg := testConfig("")
	if _, err := NewService(context.Background(), cfg); err == nil {
		t.Errorf("Expected error for empty path")
	}

	cfg = testConfig(filepath.Join(t.TempDir(), "x.db"))
	cfg.MaxOpenConns = 0
	if _, err := NewService(context.Background(), cfg); err == nil {
		t.Errorf("Expected error for zero max open connections")
	}
}

func TestMigrationAddsMissingColumns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "legacy.db")

	legacy, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("Failed to open legacy database: %v", err)
	}
	_, err = legacy.Exec(`
		CREATE TABLE users (id TEXT PRIMARY KEY, handle TEXT NOT NULL DEFAULT '');
		INSERT INTO users (id, handle) VALUES ('u-legacy', '@old');
		CREATE TABLE withdrawals (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			amount TEXT NOT NULL DEFAULT '0'
		);`)
	if err != nil {
		t.Fatalf("Failed to create legacy schema: %v", err)
	}
	legacy.Close()

	service, err := NewService(context.Background(), testConfig(path))
	if err != nil {
		t.Fatalf("NewService on legacy database failed: %v", err)
	}
	defer service.Close()

	user := getTestUser(t, service, "u-legacy")
	if user.Handle != "@old" {
		t.Errorf("Expected legacy handle to survive, got %q", user.Handle)
	}
	if !user.CurrentBalance.IsZero() || user.Version != 1 || user.Plan != models.PlanNone {
		t.Errorf("Expected defaults for added columns, got balance=%s version=%d plan=%q",
			user.CurrentBalance, user.Version, user.Plan)
	}

	user.CurrentBalance = decimal.NewFromInt(50)
	err = service.WithTx(context.Background(), func(tx store.Tx) error {
		if err := tx.UpdateUserAccount(context.Background(), user); err != nil {
			return err
		}
		return tx.InsertWithdrawal(context.Background(), &models.Withdrawal{
			UserId: "u-legacy", Amount: decimal.NewFromInt(20), WalletAddress: "Tabc",
			CreatedAt: time.Now(), Status: models.StatusPending,
		})
	})
	if err != nil {
		t.Fatalf("Writes against migrated schema failed: %v", err)
	}

	// Running the migration again must be a no-op.
	if err := migrate(context.Background(), service.db); err != nil {
		t.Fatalf("Second migration failed: %v", err)
	}
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	service := setupTestService(t)
	ctx := context.Background()
	insertTestUser(t, service, "u1")

	boom := errors.New("boom")
	err := service.WithTx(ctx, func(tx store.Tx) error {
		user, err := tx.GetUser(ctx, "u1")
		if err != nil {
			return err
		}
		user.CurrentBalance = decimal.NewFromInt(1000)
		if err := tx.UpdateUserAccount(ctx, user); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Expected callback error, got %v", err)
	}

	if user := getTestUser(t, service, "u1"); !user.CurrentBalance.IsZero() {
		t.Errorf("Expected rollback to keep balance 0, got %s", user.CurrentBalance)
	}
}

func TestWithTx_RollsBackOnPanic(t *testing.T) {
	service := setupTestService(t)
	ctx := context.Background()
	insertTestUser(t, service, "u1")

	func() {
		defer func() {
			if recover() == nil {
				t.Errorf("Expected panic to propagate")
			}
		}()
		_ = service.WithTx(ctx, func(tx store.Tx) error {
			user, err := tx.GetUser(ctx, "u1")
			if err != nil {
				return err
			}
			user.CurrentBalance = decimal.NewFromInt(1000)
			if err := tx.UpdateUserAccount(ctx, user); err != nil {
				return err
			}
			panic("mid-transaction failure")
		})
	}()

	if user := getTestUser(t, service, "u1"); !user.CurrentBalance.IsZero() {
		t.Errorf("Expected rollback after panic, got balance %s", user.CurrentBalance)
	}

	// The writer lock must have been released.
	if err := service.WithTx(ctx, func(tx store.Tx) error { return nil }); err != nil {
		t.Errorf("Expected store to be usable after panic: %v", err)
	}
}

func TestView_DiscardsWrites(t *testing.T) {
	service := setupTestService(t)
	ctx := context.Background()

	err := service.View(ctx, func(tx store.Tx) error {
		return tx.InsertUser(ctx, &models.User{Id: "ghost", RegisteredAt: time.Now()})
	})
	if err != nil {
		t.Fatalf("View failed: %v", err)
	}
	err = service.View(ctx, func(tx store.Tx) error {
		_, err := tx.GetUser(ctx, "ghost")
		return err
	})
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for write made in View, got %v", err)
	}
}

func TestUpdateUserAccount_VersionConflict(t *testing.T) {
	service := setupTestService(t)
	ctx := context.Background()
	insertTestUser(t, service, "u1")

	stale := getTestUser(t, service, "u1")
	fresh := getTestUser(t, service, "u1")

	fresh.CurrentBalance = decimal.NewFromInt(10)
	if err := service.WithTx(ctx, func(tx store.Tx) error { return tx.UpdateUserAccount(ctx, fresh) }); err != nil {
		t.Fatalf("First update failed: %v", err)
	}
	if fresh.Version != 2 {
		t.Errorf("Expected version 2 after update, got %d", fresh.Version)
	}

	stale.CurrentBalance = decimal.NewFromInt(99)
	err := service.WithTx(ctx, func(tx store.Tx) error { return tx.UpdateUserAccount(ctx, stale) })
	if !errors.Is(err, store.ErrConcurrentModification) {
		t.Errorf("Expected ErrConcurrentModification, got %v", err)
	}

	missing := &models.User{Id: "nobody", Version: 1}
	err = service.WithTx(ctx, func(tx store.Tx) error { return tx.UpdateUserAccount(ctx, missing) })
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for unknown user, got %v", err)
	}
}

func TestNegativeBalanceRejected(t *testing.T) {
	service := setupTestService(t)
	ctx := context.Background()
	user := insertTestUser(t, service, "u1")

	user.CurrentBalance = decimal.NewFromInt(-1)
	err := service.WithTx(ctx, func(tx store.Tx) error { return tx.UpdateUserAccount(ctx, user) })
	if !errors.Is(err, store.ErrNegativeBalance) {
		t.Errorf("Expected ErrNegativeBalance, got %v", err)
	}
}

func TestDuplicateReferralCode(t *testing.T) {
	service := setupTestService(t)
	ctx := context.Background()
	insertTestUser(t, service, "u1")

	err := service.WithTx(ctx, func(tx store.Tx) error {
		return tx.InsertUser(ctx, &models.User{Id: "u2", ReferralCode: "CODEu1", RegisteredAt: time.Now()})
	})
	if !errors.Is(err, store.ErrDuplicate) {
		t.Errorf("Expected ErrDuplicate for reused referral code, got %v", err)
	}
}

func TestConditionalUpdate_StaleAndMissing(t *testing.T) {
	service := setupTestService(t)
	ctx := context.Background()
	insertTestUser(t, service, "u1")

	w := &models.Withdrawal{
		UserId: "u1", Amount: decimal.NewFromInt(25), WalletAddress: "Tabc",
		CreatedAt: time.Now(), Status: models.StatusPending,
	}
	if err := service.WithTx(ctx, func(tx store.Tx) error { return tx.InsertWithdrawal(ctx, w) }); err != nil {
		t.Fatalf("InsertWithdrawal failed: %v", err)
	}
	if w.Id == 0 {
		t.Fatalf("Expected generated withdrawal id")
	}

	now := time.Now()
	w.Status = models.StatusConfirmed
	w.ProcessedBy = "op"
	w.ProcessedAt = &now
	if err := service.WithTx(ctx, func(tx store.Tx) error {
		return tx.UpdateWithdrawal(ctx, w, models.StatusPending)
	}); err != nil {
		t.Fatalf("First transition failed: %v", err)
	}

	w.Status = models.StatusRejected
	err := service.WithTx(ctx, func(tx store.Tx) error { return tx.UpdateWithdrawal(ctx, w, models.StatusPending) })
	if !errors.Is(err, store.ErrStaleState) {
		t.Errorf("Expected ErrStaleState for second transition, got %v", err)
	}

	ghost := &models.Withdrawal{Id: 999, Status: models.StatusConfirmed}
	err = service.WithTx(ctx, func(tx store.Tx) error { return tx.UpdateWithdrawal(ctx, ghost, models.StatusPending) })
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for missing withdrawal, got %v", err)
	}

	var got *models.Withdrawal
	_ = service.View(ctx, func(tx store.Tx) error {
		var err error
		got, err = tx.GetWithdrawal(ctx, w.Id)
		return err
	})
	if got == nil || got.Status != models.StatusConfirmed || got.ProcessedAt == nil {
		t.Errorf("Expected confirmed withdrawal with processed time, got %+v", got)
	}
}

func TestDeleteUser_RemovesDependentsAndKeepsAudit(t *testing.T) {
	service := setupTestService(t)
	ctx := context.Background()
	insertTestUser(t, service, "referrer")
	insertTestUser(t, service, "u1")

	err := service.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.SetUserReferrer(ctx, "u1", "referrer"); err != nil {
			return err
		}
		if err := tx.InsertReferral(ctx, &models.Referral{ReferrerId: "referrer", RefereeId: "u1"}); err != nil {
			return err
		}
		if err := tx.InsertCryptoInvestment(ctx, &models.CryptoInvestment{
			UserId: "u1", Amount: decimal.NewFromInt(1000), Kind: models.KindUSDT,
			CreatedAt: time.Now(), Status: models.StatusPending,
		}); err != nil {
			return err
		}
		stock := &models.StockInvestment{
			UserId: "u1", Ticker: "AAPL", Amount: decimal.NewFromInt(500),
			PurchasePrice: decimal.NewFromInt(100), Shares: decimal.NewFromInt(5),
			CreatedAt: time.Now(), Status: models.StatusConfirmed,
		}
		if err := tx.InsertStockInvestment(ctx, stock); err != nil {
			return err
		}
		if err := tx.InsertStockSale(ctx, &models.StockSale{
			UserId: "u1", StockInvestmentId: stock.Id, Ticker: "AAPL", Shares: decimal.NewFromInt(1),
			Price: decimal.NewFromInt(110), TotalValue: decimal.NewFromInt(110),
			CreatedAt: time.Now(), Status: models.SaleAwaitingWallet,
		}); err != nil {
			return err
		}
		if err := tx.InsertWithdrawal(ctx, &models.Withdrawal{
			UserId: "u1", Amount: decimal.NewFromInt(10), CreatedAt: time.Now(), Status: models.StatusPending,
		}); err != nil {
			return err
		}
		return tx.InsertAuditEntry(ctx, &models.AuditEntry{
			AdminId: "op", TargetUserId: "u1", Action: models.AuditDeleteUser, Note: "user u1",
		})
	})
	if err != nil {
		t.Fatalf("Seeding failed: %v", err)
	}

	if err := service.WithTx(ctx, func(tx store.Tx) error { return tx.DeleteUser(ctx, "u1") }); err != nil {
		t.Fatalf("DeleteUser failed: %v", err)
	}

	for _, table := range []string{"crypto_investments", "stock_investments", "stock_sales", "withdrawals", "referrals"} {
		var n int
		if err := service.db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n); err != nil {
			t.Fatalf("Count %s failed: %v", table, err)
		}
		if n != 0 {
			t.Errorf("Expected no orphaned rows in %s, got %d", table, n)
		}
	}

	var entries []models.AuditEntry
	_ = service.View(ctx, func(tx store.Tx) error {
		var err error
		entries, err = tx.ListAuditEntries(ctx, "", 0)
		return err
	})
	if len(entries) != 1 || entries[0].TargetUserId != "" || entries[0].Note != "user u1" {
		t.Errorf("Expected audit entry to survive with cleared target, got %+v", entries)
	}

	err = service.WithTx(ctx, func(tx store.Tx) error { return tx.DeleteUser(ctx, "u1") })
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Expected ErrNotFound deleting twice, got %v", err)
	}
}

func TestDeleteStockInvestment_KeepsSaleTicker(t *testing.T) {
	service := setupTestService(t)
	ctx := context.Background()
	insertTestUser(t, service, "u1")

	stock := &models.StockInvestment{
		UserId: "u1", Ticker: "NVDA", Amount: decimal.NewFromInt(300), PurchasePrice: decimal.NewFromInt(100),
		Shares: decimal.NewFromInt(3), CreatedAt: time.Now(), Status: models.StatusConfirmed,
	}
	sale := &models.StockSale{
		UserId: "u1", Ticker: "NVDA", Shares: decimal.NewFromInt(3), Price: decimal.NewFromInt(120),
		TotalValue: decimal.NewFromInt(360), CreatedAt: time.Now(), Status: models.SaleConfirmed,
	}
	err := service.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.InsertStockInvestment(ctx, stock); err != nil {
			return err
		}
		sale.StockInvestmentId = stock.Id
		if err := tx.InsertStockSale(ctx, sale); err != nil {
			return err
		}
		return tx.DeleteStockInvestment(ctx, stock.Id)
	})
	if err != nil {
		t.Fatalf("Transaction failed: %v", err)
	}

	var got *models.StockSale
	_ = service.View(ctx, func(tx store.Tx) error {
		var err error
		got, err = tx.GetStockSale(ctx, sale.Id)
		return err
	})
	if got == nil || got.StockInvestmentId != 0 || got.Ticker != "NVDA" {
		t.Errorf("Expected sale to keep ticker and drop the link, got %+v", got)
	}
}

func TestListFilters(t *testing.T) {
	service := setupTestService(t)
	ctx := context.Background()
	insertTestUser(t, service, "u1")
	insertTestUser(t, service, "u2")

	err := service.WithTx(ctx, func(tx store.Tx) error {
		for i, spec := range []struct {
			user   string
			status models.Status
		}{{"u1", models.StatusPending}, {"u1", models.StatusConfirmed}, {"u2", models.StatusPending}} {
			inv := &models.CryptoInvestment{
				UserId: spec.user, Amount: decimal.NewFromInt(int64(1000 + i)), Kind: models.KindBTC,
				CreatedAt: time.Now().Add(time.Duration(i) * time.Second), Status: spec.status,
			}
			if err := tx.InsertCryptoInvestment(ctx, inv); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Seeding failed: %v", err)
	}

	_ = service.View(ctx, func(tx store.Tx) error {
		all, _ := tx.ListCryptoInvestments(ctx, "", "")
		if len(all) != 3 {
			t.Errorf("Expected 3 investments, got %d", len(all))
		}
		pending, _ := tx.ListCryptoInvestments(ctx, "", models.StatusPending)
		if len(pending) != 2 || pending[0].UserId != "u1" {
			t.Errorf("Expected 2 pending oldest first, got %+v", pending)
		}
		n, _ := tx.CountCryptoInvestments(ctx, "u1", models.StatusConfirmed)
		if n != 1 {
			t.Errorf("Expected 1 confirmed for u1, got %d", n)
		}
		return nil
	})
}
