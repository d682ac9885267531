package admin

import (
	"context"
	"strings"
	"testing"
	"time"

	"invest-bot-go/internal/apperr"
	"invest-bot-go/internal/models"
	"invest-bot-go/internal/store"
	"invest-bot-go/internal/testutil"

	"github.com/shopspring/decimal"
)

func newTestService(t *testing.T) (*Service, store.Store) {
	st := testutil.NewStore(t)
	svc := NewService(st)
	svc.Now = func() time.Time { return testutil.T0 }
	testutil.SeedUser(t, st, "u1", func(u *models.User) { u.CurrentBalance = testutil.Dec("200") })
	return svc, st
}

func TestNextBalance(t *testing.T) {
	tests := []struct {
		mode, old, amount, want string
	}{
		{ModeAdd, "200", "50", "250"},
		{ModeSubtract, "200", "50", "150"},
		{ModeSubtract, "200", "500", "0"},
		{ModeSet, "200", "250", "250"},
		{ModeSet, "200", "0", "0"},
		{ModeReset, "200", "0", "0"},
	}
	for _, tt := range tests {
		got, err := NextBalance(tt.mode, testutil.Dec(tt.old), testutil.Dec(tt.amount))
		testutil.AssertNoError(t, err)
		testutil.AssertDecimal(t, tt.mode+" "+tt.old+" "+tt.amount, got, tt.want)
	}

	if _, err := NextBalance(ModeSet, decimal.Zero, testutil.Dec("-1")); err == nil {
		t.Errorf("Expected negative amount to fail")
	}
	if _, err := NextBalance("double", decimal.Zero, decimal.Zero); err == nil {
		t.Errorf("Expected unknown mode to fail")
	}
}

func TestApply_SetIsAudited(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()

	change, err := svc.Apply(ctx, ApplyParams{AdminId: "A", UserId: "u1", Mode: "SET", Amount: testutil.Dec("250"), Note: "manual fix"})
	testutil.AssertNoError(t, err)
	testutil.AssertDecimal(t, "old", change.Old, "200")
	testutil.AssertDecimal(t, "new", change.New, "250")
	testutil.AssertDecimal(t, "stored", testutil.GetUser(t, st, "u1").CurrentBalance, "250")

	entries := testutil.AuditEntries(t, st, "u1")
	if len(entries) != 1 {
		t.Fatalf("Expected exactly one audit entry, got %d", len(entries))
	}
	e := entries[0]
	if e.Action != models.BalanceAction(ModeSet) || e.AdminId != "A" || e.Note != "set: manual fix" {
		t.Errorf("Unexpected audit entry %+v", e)
	}
	testutil.AssertDecimal(t, "audit old", e.OldBalance.Decimal, "200")
	testutil.AssertDecimal(t, "audit new", e.NewBalance.Decimal, "250")
	testutil.AssertDecimal(t, "audit amount", e.Amount.Decimal, "250")
}

func TestApply_EveryModeWritesOneEntry(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()

	steps := []struct {
		mode, amount, want string
	}{
		{ModeAdd, "100", "300"},
		{ModeSubtract, "1000", "0"},
		{ModeSet, "75.5", "75.5"},
		{ModeReset, "999", "0"},
	}
	for _, step := range steps {
		change, err := svc.Apply(ctx, ApplyParams{AdminId: "A", UserId: "u1", Mode: step.mode, Amount: testutil.Dec(step.amount)})
		testutil.AssertNoError(t, err)
		testutil.AssertDecimal(t, step.mode, change.New, step.want)
	}

	entries := testutil.AuditEntries(t, st, "u1")
	if len(entries) != len(steps) {
		t.Fatalf("Expected %d audit entries, got %d", len(steps), len(entries))
	}
	for i, step := range steps {
		e := entries[len(steps)-1-i]
		if e.Action != models.BalanceAction(step.mode) {
			t.Errorf("Entry %d: expected %s, got %s", i, models.BalanceAction(step.mode), e.Action)
		}
		testutil.AssertDecimal(t, step.mode+" new", e.NewBalance.Decimal, step.want)
	}
	testutil.AssertDecimal(t, "reset records zero", entries[0].Amount.Decimal, "0")
}

func TestApply_Invalid(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()

	_, err := svc.Apply(ctx, ApplyParams{AdminId: "A", UserId: "u1", Mode: "double", Amount: testutil.Dec("1")})
	testutil.AssertKind(t, err, apperr.KindInvalidInput)
	_, err = svc.Apply(ctx, ApplyParams{AdminId: "A", UserId: "u1", Mode: ModeSet, Amount: testutil.Dec("-5")})
	testutil.AssertKind(t, err, apperr.KindInvalidInput)
	_, err = svc.Apply(ctx, ApplyParams{AdminId: "A", UserId: "ghost", Mode: ModeAdd, Amount: testutil.Dec("5")})
	testutil.AssertKind(t, err, apperr.KindNotFound)

	if entries := testutil.AuditEntries(t, st, ""); len(entries) != 0 {
		t.Errorf("Expected failed changes to leave no audit entries, got %d", len(entries))
	}
}

func TestOverrideProfit(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()

	user, err := svc.OverrideProfit(ctx, "A", "u1", testutil.Dec("42.424"))
	testutil.AssertNoError(t, err)
	testutil.AssertDecimal(t, "profit", user.ProfitEarned, "42.42")
	testutil.AssertDecimal(t, "balance untouched", testutil.GetUser(t, st, "u1").CurrentBalance, "200")

	entries := testutil.AuditEntries(t, st, "u1")
	if len(entries) != 1 || entries[0].Action != models.AuditProfitOverride {
		t.Errorf("Expected profit override entry, got %+v", entries)
	}

	_, err = svc.OverrideProfit(ctx, "A", "u1", testutil.Dec("-1"))
	testutil.AssertKind(t, err, apperr.KindInvalidInput)
}

func TestDeleteUser(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()
	testutil.SeedUser(t, st, "R", nil)

	err := st.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.InsertReferral(ctx, &models.Referral{ReferrerId: "R", RefereeId: "u1", CreatedAt: testutil.T0, BonusAmount: decimal.Zero}); err != nil {
			return err
		}
		if err := tx.InsertCryptoInvestment(ctx, &models.CryptoInvestment{
			UserId: "u1", Amount: testutil.Dec("10"), Kind: models.KindBTC, WalletAddress: "w", CreatedAt: testutil.T0,
			Status: models.StatusPending, Plan: models.PlanCore,
		}); err != nil {
			return err
		}
		return tx.InsertWithdrawal(ctx, &models.Withdrawal{
			UserId: "u1", Amount: testutil.Dec("10"), WalletAddress: "w", CreatedAt: testutil.T0, Status: models.StatusPending,
		})
	})
	testutil.AssertNoError(t, err)
	_, err = svc.Apply(ctx, ApplyParams{AdminId: "A", UserId: "u1", Mode: ModeAdd, Amount: testutil.Dec("1")})
	testutil.AssertNoError(t, err)

	deleted, err := svc.DeleteUser(ctx, "A", "u1")
	testutil.AssertNoError(t, err)
	if deleted.Id != "u1" {
		t.Errorf("Expected deleted user u1, got %s", deleted.Id)
	}

	err = st.View(ctx, func(tx store.Tx) error {
		invs, err := tx.ListCryptoInvestments(ctx, "u1", "")
		if err != nil {
			return err
		}
		ws, err := tx.ListWithdrawals(ctx, "u1", "")
		if err != nil {
			return err
		}
		refs, err := tx.ListReferralsByReferrer(ctx, "R")
		if err != nil {
			return err
		}
		if len(invs)+len(ws)+len(refs) != 0 {
			t.Errorf("Expected no orphans, got %d investments, %d withdrawals, %d referrals", len(invs), len(ws), len(refs))
		}
		return nil
	})
	testutil.AssertNoError(t, err)

	log, err := svc.AuditLog(ctx, "", 0)
	testutil.AssertNoError(t, err)
	if len(log) != 2 || log[0].Action != models.AuditDeleteUser || log[0].TargetUserId != "" {
		t.Fatalf("Expected the audit history kept with target cleared, got %+v", log)
	}
	if !strings.Contains(log[0].Note, "u1") {
		t.Errorf("Expected the delete entry to name u1, got %q", log[0].Note)
	}
	// Only the target is cleared; the earlier entry keeps its snapshot.
	if log[1].Action != models.BalanceAction(ModeAdd) || log[1].AdminId != "A" {
		t.Errorf("Unexpected earlier entry %+v", log[1])
	}
	testutil.AssertDecimal(t, "kept amount", log[1].Amount.Decimal, "1")
	testutil.AssertDecimal(t, "kept new balance", log[1].NewBalance.Decimal, "201")

	_, err = svc.DeleteUser(ctx, "A", "u1")
	testutil.AssertKind(t, err, apperr.KindNotFound)

	limited, err := svc.AuditLog(ctx, "", 1)
	testutil.AssertNoError(t, err)
	if len(limited) != 1 {
		t.Errorf("Expected limit 1, got %d", len(limited))
	}
}
