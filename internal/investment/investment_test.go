package investment

import (
	"context"
	"sync"
	"testing"
	"time"

	"invest-bot-go/internal/apperr"
	"invest-bot-go/internal/models"
	"invest-bot-go/internal/referral"
	"invest-bot-go/internal/store"
	"invest-bot-go/internal/testutil"
	"invest-bot-go/internal/wallet"

	"github.com/shopspring/decimal"
)

var pools = map[models.CryptoKind][]string{
	models.KindBTC:  {"bc1-one", "bc1-two"},
	models.KindUSDT: {"T-usdt-one"},
}

func newTestService(t *testing.T) (*Service, store.Store) {
	st := testutil.NewStore(t)
	refs := referral.NewService(st, referral.Policy{Mode: models.ReferralModeFlat, Flat: decimal.NewFromInt(100)})
	refs.Now = func() time.Time { return testutil.T0 }
	svc := NewService(st, wallet.NewRotation(pools), refs)
	svc.Now = func() time.Time { return testutil.T0 }
	return svc, st
}

func submit(t *testing.T, svc *Service, userId, amount string, plan models.Plan) *models.CryptoInvestment {
	t.Helper()
	inv, err := svc.Submit(context.Background(), SubmitParams{
		UserId: userId,
		Amount: testutil.Dec(amount),
		Kind:   models.KindBTC,
		TxId:   "0xabc",
		Plan:   plan,
	})
	testutil.AssertNoError(t, err)
	return inv
}

func TestSubmit(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	testutil.SeedUser(t, svc.store, "u1", nil)

	inv := submit(t, svc, "u1", "5000", models.PlanCore)
	if inv.Id == 0 || inv.Status != models.StatusPending || inv.WalletAddress != "bc1-one" || inv.Note != "" {
		t.Errorf("Unexpected investment %+v", inv)
	}
	if next := submit(t, svc, "u1", "5000", models.PlanCore); next.WalletAddress != "bc1-two" {
		t.Errorf("Expected rotation to hand out bc1-two, got %s", next.WalletAddress)
	}

	below := submit(t, svc, "u1", "500", models.PlanCore)
	if below.Status != models.StatusPending || below.Note == "" {
		t.Errorf("Expected below-minimum investment flagged for review, got %+v", below)
	}

	tests := []struct {
		name   string
		params SubmitParams
		kind   apperr.Kind
	}{
		{"zero amount", SubmitParams{UserId: "u1", Amount: decimal.Zero, Kind: models.KindBTC, Plan: models.PlanCore}, apperr.KindInvalidInput},
		{"negative amount", SubmitParams{UserId: "u1", Amount: testutil.Dec("-1"), Kind: models.KindBTC, Plan: models.PlanCore}, apperr.KindInvalidInput},
		{"rounds to zero", SubmitParams{UserId: "u1", Amount: testutil.Dec("0.004"), Kind: models.KindBTC, Plan: models.PlanCore}, apperr.KindInvalidInput},
		{"unknown plan", SubmitParams{UserId: "u1", Amount: testutil.Dec("10"), Kind: models.KindBTC, Plan: "gold"}, apperr.KindInvalidInput},
		{"foreign wallet", SubmitParams{UserId: "u1", Amount: testutil.Dec("10"), Kind: models.KindBTC, Plan: models.PlanCore, WalletAddress: "bc1-evil"}, apperr.KindInvalidInput},
		{"empty pool", SubmitParams{UserId: "u1", Amount: testutil.Dec("10"), Kind: models.KindTON, Plan: models.PlanCore}, apperr.KindInternal},
		{"unregistered", SubmitParams{UserId: "ghost", Amount: testutil.Dec("10"), Kind: models.KindBTC, Plan: models.PlanCore}, apperr.KindNotRegistered},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Submit(ctx, tt.params)
			testutil.AssertKind(t, err, tt.kind)
		})
	}
}

func TestConfirm(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()
	testutil.SeedUser(t, st, "u1", nil)

	inv := submit(t, svc, "u1", "5000", models.PlanCore)
	res, err := svc.Confirm(ctx, inv.Id, "op")
	testutil.AssertNoError(t, err)
	if res.Investment.Status != models.StatusConfirmed || res.Investment.ProcessedBy != "op" || res.Bonus != nil {
		t.Errorf("Unexpected confirm result %+v", res)
	}

	user := testutil.GetUser(t, st, "u1")
	testutil.AssertDecimal(t, "total_invested", user.TotalInvested, "5000")
	testutil.AssertDecimal(t, "current_balance", user.CurrentBalance, "5000")
	if user.Plan != models.PlanCore || !user.LastProfitUpdate.Equal(testutil.T0) {
		t.Errorf("Expected plan core and last update T0, got %s %s", user.Plan, user.LastProfitUpdate)
	}

	entries := testutil.AuditEntries(t, st, "u1")
	if len(entries) != 1 || entries[0].Action != models.AuditConfirmInvestment {
		t.Fatalf("Expected one confirm audit entry, got %+v", entries)
	}
	testutil.AssertDecimal(t, "audit new balance", entries[0].NewBalance.Decimal, "5000")

	// A second attempt finds nothing pending and changes nothing.
	_, err = svc.Confirm(ctx, inv.Id, "op")
	testutil.AssertKind(t, err, apperr.KindNotFound)
	_, err = svc.Reject(ctx, inv.Id, "op", "")
	testutil.AssertKind(t, err, apperr.KindNotFound)
	testutil.AssertDecimal(t, "balance after retry", testutil.GetUser(t, st, "u1").CurrentBalance, "5000")

	_, err = svc.Confirm(ctx, 999, "op")
	testutil.AssertKind(t, err, apperr.KindNotFound)
}

func TestConfirm_PaysReferralBonusOnce(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()
	testutil.SeedUser(t, st, "R", nil)
	testutil.SeedUser(t, st, "U", nil)
	err := st.WithTx(ctx, func(tx store.Tx) error {
		_, err := svc.referrals.MaybeLink(ctx, tx, "U", "REFR")
		return err
	})
	testutil.AssertNoError(t, err)

	first := submit(t, svc, "U", "5000", models.PlanCore)
	second := submit(t, svc, "U", "2000", models.PlanCore)

	res, err := svc.Confirm(ctx, first.Id, "op")
	testutil.AssertNoError(t, err)
	if res.Bonus == nil || res.Bonus.ReferrerId != "R" {
		t.Fatalf("Expected bonus for R, got %+v", res.Bonus)
	}
	testutil.AssertDecimal(t, "bonus", res.Bonus.Amount, "100")

	res, err = svc.Confirm(ctx, second.Id, "op")
	testutil.AssertNoError(t, err)
	if res.Bonus != nil {
		t.Errorf("Expected no bonus on second confirmation, got %+v", res.Bonus)
	}

	testutil.AssertDecimal(t, "referrer balance", testutil.GetUser(t, st, "R").CurrentBalance, "100")
	testutil.AssertDecimal(t, "referee balance", testutil.GetUser(t, st, "U").CurrentBalance, "7000")
}

func TestReject(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()
	testutil.SeedUser(t, st, "u1", nil)

	inv := submit(t, svc, "u1", "5000", models.PlanCore)
	got, err := svc.Reject(ctx, inv.Id, "op", "no such tx")
	testutil.AssertNoError(t, err)
	if got.Status != models.StatusRejected {
		t.Errorf("Expected rejected, got %s", got.Status)
	}

	user := testutil.GetUser(t, st, "u1")
	if !user.CurrentBalance.IsZero() || !user.TotalInvested.IsZero() || user.Plan != models.PlanNone {
		t.Errorf("Expected untouched aggregates, got %+v", user)
	}
	if entries := testutil.AuditEntries(t, st, "u1"); len(entries) != 1 || entries[0].Action != models.AuditRejectInvestment {
		t.Errorf("Expected one reject audit entry, got %+v", entries)
	}
}

func TestEdit(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()
	testutil.SeedUser(t, st, "u1", nil)

	pending := submit(t, svc, "u1", "5000", models.PlanCore)
	got, err := svc.Edit(ctx, EditParams{Id: pending.Id, AdminId: "op", Field: FieldAmount, Value: "6000"})
	testutil.AssertNoError(t, err)
	testutil.AssertDecimal(t, "pending amount", got.Amount, "6000")
	if u := testutil.GetUser(t, st, "u1"); !u.CurrentBalance.IsZero() {
		t.Errorf("Editing a pending amount must not touch the balance, got %s", u.CurrentBalance)
	}

	_, err = svc.Edit(ctx, EditParams{Id: pending.Id, AdminId: "op", Field: FieldStatus, Value: "confirmed"})
	testutil.AssertNoError(t, err)
	user := testutil.GetUser(t, st, "u1")
	testutil.AssertDecimal(t, "balance after status edit", user.CurrentBalance, "6000")

	_, err = svc.Edit(ctx, EditParams{Id: pending.Id, AdminId: "op", Field: FieldAmount, Value: "4000"})
	testutil.AssertNoError(t, err)
	user = testutil.GetUser(t, st, "u1")
	testutil.AssertDecimal(t, "total_invested after reduction", user.TotalInvested, "4000")
	testutil.AssertDecimal(t, "balance after reduction", user.CurrentBalance, "4000")

	_, err = svc.Edit(ctx, EditParams{Id: pending.Id, AdminId: "op", Field: FieldPlan, Value: "growth"})
	testutil.AssertNoError(t, err)
	if u := testutil.GetUser(t, st, "u1"); u.Plan != models.PlanGrowth {
		t.Errorf("Expected user plan growth, got %s", u.Plan)
	}

	_, err = svc.Edit(ctx, EditParams{Id: pending.Id, AdminId: "op", Field: FieldStatus, Value: "rejected"})
	testutil.AssertKind(t, err, apperr.KindInvalidInput)

	tests := []struct {
		name   string
		params EditParams
		kind   apperr.Kind
	}{
		{"unknown field", EditParams{Id: pending.Id, Field: "wallet", Value: "x"}, apperr.KindInvalidInput},
		{"bad amount", EditParams{Id: pending.Id, Field: FieldAmount, Value: "abc"}, apperr.KindInvalidInput},
		{"sub-cent amount", EditParams{Id: pending.Id, Field: FieldAmount, Value: "0.004"}, apperr.KindInvalidInput},
		{"bad plan", EditParams{Id: pending.Id, Field: FieldPlan, Value: "gold"}, apperr.KindInvalidInput},
		{"missing", EditParams{Id: 404, Field: FieldAmount, Value: "1"}, apperr.KindNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Edit(ctx, tt.params)
			testutil.AssertKind(t, err, tt.kind)
		})
	}
}

func TestEdit_ReductionBeyondBalance(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()
	testutil.SeedUser(t, st, "u1", nil)

	inv := submit(t, svc, "u1", "5000", models.PlanCore)
	_, err := svc.Confirm(ctx, inv.Id, "op")
	testutil.AssertNoError(t, err)

	// Spend most of the balance elsewhere.
	err = st.WithTx(ctx, func(tx store.Tx) error {
		u, err := tx.GetUser(ctx, "u1")
		if err != nil {
			return err
		}
		u.CurrentBalance = testutil.Dec("100")
		return tx.UpdateUserAccount(ctx, u)
	})
	testutil.AssertNoError(t, err)

	_, err = svc.Edit(ctx, EditParams{Id: inv.Id, AdminId: "op", Field: FieldAmount, Value: "1000"})
	testutil.AssertKind(t, err, apperr.KindInsufficientBalance)

	got, err := svc.List(ctx, "u1", "")
	testutil.AssertNoError(t, err)
	testutil.AssertDecimal(t, "amount unchanged", got[0].Amount, "5000")
}

func TestOldestPending(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()
	testutil.SeedUser(t, st, "u1", nil)

	_, err := svc.OldestPending(ctx, "u1")
	testutil.AssertKind(t, err, apperr.KindNotFound)

	first := submit(t, svc, "u1", "1000", models.PlanCore)
	submit(t, svc, "u1", "2000", models.PlanCore)

	got, err := svc.OldestPending(ctx, "u1")
	testutil.AssertNoError(t, err)
	if got.Id != first.Id {
		t.Errorf("Expected oldest pending #%d, got #%d", first.Id, got.Id)
	}
}

func TestSubmit_SubCentAmountPersistsNothing(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()
	testutil.SeedUser(t, st, "u1", nil)

	_, err := svc.Submit(ctx, SubmitParams{UserId: "u1", Amount: testutil.Dec("0.001"), Kind: models.KindBTC, Plan: models.PlanCore})
	testutil.AssertKind(t, err, apperr.KindInvalidInput)

	inv, err := svc.Submit(ctx, SubmitParams{UserId: "u1", Amount: testutil.Dec("0.005"), Kind: models.KindBTC, Plan: models.PlanCore})
	testutil.AssertNoError(t, err)
	testutil.AssertDecimal(t, "rounded amount", inv.Amount, "0.01")

	got, err := svc.List(ctx, "u1", "")
	testutil.AssertNoError(t, err)
	if len(got) != 1 {
		t.Fatalf("Expected only the rounded investment stored, got %d rows", len(got))
	}
}

func TestConfirm_ConcurrentOnlyOneWins(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()
	testutil.SeedUser(t, st, "u1", nil)
	inv := submit(t, svc, "u1", "5000", models.PlanCore)

	const workers = 8
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
		errs []error
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Confirm(ctx, inv.Id, "op")
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				wins++
			} else {
				errs = append(errs, err)
			}
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Fatalf("Expected exactly one confirmation to succeed, got %d", wins)
	}
	for _, err := range errs {
		testutil.AssertKind(t, err, apperr.KindNotFound)
	}
	user := testutil.GetUser(t, st, "u1")
	testutil.AssertDecimal(t, "total_invested", user.TotalInvested, "5000")
	testutil.AssertDecimal(t, "current_balance", user.CurrentBalance, "5000")
	if entries := testutil.AuditEntries(t, st, "u1"); len(entries) != 1 {
		t.Errorf("Expected one audit entry, got %d", len(entries))
	}
}

func TestEditAndConfirm(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()
	testutil.SeedUser(t, st, "u1", nil)

	inv := submit(t, svc, "u1", "5000", models.PlanCore)
	res, err := svc.EditAndConfirm(ctx, inv.Id, "op", decimal.NewNullDecimal(testutil.Dec("5200")))
	testutil.AssertNoError(t, err)
	testutil.AssertDecimal(t, "confirmed amount", res.Investment.Amount, "5200")
	testutil.AssertDecimal(t, "current_balance", testutil.GetUser(t, st, "u1").CurrentBalance, "5200")

	entries := testutil.AuditEntries(t, st, "u1")
	if len(entries) != 2 {
		t.Fatalf("Expected edit and confirm audit entries, got %+v", entries)
	}
}

func TestEditAndConfirm_FailureKeepsDeclaredAmount(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()
	testutil.SeedUser(t, st, "u1", nil)

	inv := submit(t, svc, "u1", "5000", models.PlanCore)
	_, err := svc.Reject(ctx, inv.Id, "op2", "")
	testutil.AssertNoError(t, err)

	_, err = svc.EditAndConfirm(ctx, inv.Id, "op", decimal.NewNullDecimal(testutil.Dec("5200")))
	testutil.AssertKind(t, err, apperr.KindNotFound)

	// An invalid edit rolls the whole confirmation back.
	other := submit(t, svc, "u1", "3000", models.PlanCore)
	_, err = svc.EditAndConfirm(ctx, other.Id, "op", decimal.NewNullDecimal(testutil.Dec("0.001")))
	testutil.AssertKind(t, err, apperr.KindInvalidInput)

	got, err := svc.List(ctx, "u1", "")
	testutil.AssertNoError(t, err)
	for _, row := range got {
		if row.Id == inv.Id {
			testutil.AssertDecimal(t, "rejected amount", row.Amount, "5000")
		}
		if row.Id == other.Id && (row.Status != models.StatusPending || !row.Amount.Equal(testutil.Dec("3000"))) {
			t.Errorf("Expected #%d pending at 3000, got %s %s", other.Id, row.Status, row.Amount)
		}
	}
	if entries := testutil.AuditEntries(t, st, "u1"); len(entries) != 1 {
		t.Errorf("Expected only the reject audit entry, got %+v", entries)
	}
}
