package coordinator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"invest-bot-go/internal/account"
	"invest-bot-go/internal/admin"
	"invest-bot-go/internal/apperr"
	"invest-bot-go/internal/investment"
	"invest-bot-go/internal/models"
	"invest-bot-go/internal/notify"
	"invest-bot-go/internal/profit"
	"invest-bot-go/internal/quote"
	"invest-bot-go/internal/referral"
	"invest-bot-go/internal/stock"
	"invest-bot-go/internal/store"
	"invest-bot-go/internal/testutil"
	"invest-bot-go/internal/wallet"
	"invest-bot-go/internal/withdrawal"

	"github.com/shopspring/decimal"
)

var (
	operator = Caller{Id: "op", Handle: "@op"}
	payout   = "T" + strings.Repeat("b", 33)
)

// recorder keeps every delivered message by recipient.
type recorder struct {
	mu   sync.Mutex
	sent map[string][]string
	fail bool
}

func (r *recorder) Deliver(_ context.Context, recipient string, msg notify.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return errors.New("chat unreachable")
	}
	if r.sent == nil {
		r.sent = make(map[string][]string)
	}
	r.sent[recipient] = append(r.sent[recipient], msg.Body)
	return nil
}

func (r *recorder) count(recipient string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sent[recipient])
}

func (r *recorder) last(recipient string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	msgs := r.sent[recipient]
	if len(msgs) == 0 {
		return ""
	}
	return msgs[len(msgs)-1]
}

type fixture struct {
	c       *Coordinator
	st      store.Store
	rec     *recorder
	oracle  *quote.StaticOracle
	setTime func(time.Time)
}

func newFixture(t *testing.T) *fixture {
	st := testutil.NewStore(t)
	now, set := testutil.Clock(testutil.T0)
	profile := wallet.Profile{Prefix: "T", Length: 34}

	refs := referral.NewService(st, referral.Policy{Mode: models.ReferralModeFlat, Flat: decimal.NewFromInt(100)})
	refs.Now = now
	accounts := account.NewService(st, refs)
	accounts.Now = now
	investments := investment.NewService(st, wallet.NewRotation(map[models.CryptoKind][]string{
		models.KindBTC: {"bc1-pool"},
	}), refs)
	investments.Now = now
	oracle := quote.NewStaticOracle(map[string]decimal.Decimal{"X": decimal.NewFromInt(100)})
	stocks := stock.NewService(st, oracle, profile, time.Second)
	stocks.Now = now
	withdrawals := withdrawal.NewService(st, decimal.NewFromInt(10), profile)
	withdrawals.Now = now
	admins := admin.NewService(st)
	admins.Now = now
	engine := profit.NewEngine(st, time.Hour)
	engine.Now = now

	rec := &recorder{}
	c := New(Services{
		Accounts:    accounts,
		Referrals:   refs,
		Investments: investments,
		Stocks:      stocks,
		Withdrawals: withdrawals,
		Admin:       admins,
		Profit:      engine,
	}, rec, Options{OperatorIds: []string{"op", "op", ""}, NotifyTimeout: time.Second, Tickers: []string{"X", "ZZZZ"}})
	c.Now = now
	return &fixture{c: c, st: st, rec: rec, oracle: oracle, setTime: set}
}

func expectOK[T any](t *testing.T, res Result[T]) T {
	t.Helper()
	if !res.OK {
		t.Fatalf("expected success, got %s: %s", res.Kind, res.Message)
	}
	return res.Value
}

func expectKind[T any](t *testing.T, res Result[T], want apperr.Kind) {
	t.Helper()
	if res.OK {
		t.Fatalf("expected %s, got success: %+v", want, res.Value)
	}
	if res.Kind != want {
		t.Errorf("expected kind %s, got %s (%s)", want, res.Kind, res.Message)
	}
	if res.Message == "" {
		t.Errorf("expected a user-facing message for %s", want)
	}
}

func TestRegistrationAndFirstDeposit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	testutil.SeedUser(t, f.st, "r1", func(u *models.User) { u.ReferralCode = "R1CODE" })

	u := Caller{Id: "u1", Handle: "@u1"}
	user := expectOK(t, f.c.Register(ctx, u, RegisterRequest{FullName: " Ada ", Email: "ada@example.com", ReferralCode: "r1code"}))
	if user.ReferredBy != "r1" || user.FullName != "Ada" {
		t.Errorf("Unexpected user %+v", user)
	}
	if f.rec.count("r1") != 1 || f.rec.count("op") != 1 {
		t.Errorf("Expected referrer and operator notified, got %v", f.rec.sent)
	}
	expectKind(t, f.c.Register(ctx, u, RegisterRequest{FullName: "Ada", Email: "ada@example.com"}), apperr.KindConflict)
	expectKind(t, f.c.Register(ctx, Caller{Id: "u2"}, RegisterRequest{FullName: "Bob", Email: "not-an-email"}), apperr.KindInvalidInput)

	inv := expectOK(t, f.c.SubmitInvestment(ctx, u, InvestRequest{
		Plan: "Core", Kind: "BTC", Amount: testutil.Dec("5000"), TxId: "0xfeed",
	}))
	if inv.WalletAddress != "bc1-pool" || inv.Status != models.StatusPending {
		t.Errorf("Unexpected investment %+v", inv)
	}

	res := expectOK(t, f.c.ConfirmInvestment(ctx, operator, TargetRequest{UserId: "u1"}))
	if res.Bonus == nil || res.Bonus.ReferrerId != "r1" {
		t.Fatalf("Expected referral bonus for r1, got %+v", res.Bonus)
	}

	got := testutil.GetUser(t, f.st, "u1")
	testutil.AssertDecimal(t, "total_invested", got.TotalInvested, "5000")
	testutil.AssertDecimal(t, "current_balance", got.CurrentBalance, "5000")
	if got.Plan != models.PlanCore {
		t.Errorf("Expected core plan, got %s", got.Plan)
	}
	testutil.AssertDecimal(t, "referrer balance", testutil.GetUser(t, f.st, "r1").CurrentBalance, "100")
	if !strings.Contains(f.rec.last("r1"), "$100.00") {
		t.Errorf("Expected bonus notification, got %q", f.rec.last("r1"))
	}
	if !strings.Contains(f.rec.last("u1"), "confirmed") {
		t.Errorf("Expected confirmation notification, got %q", f.rec.last("u1"))
	}

	expectKind(t, f.c.ConfirmInvestment(ctx, operator, TargetRequest{UserId: "u1"}), apperr.KindNotFound)
}

func TestConfirmInvestment_WithAmount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	testutil.SeedUser(t, f.st, "u1", nil)
	u := Caller{Id: "u1"}

	expectOK(t, f.c.SubmitInvestment(ctx, u, InvestRequest{Plan: "core", Kind: "btc", Amount: testutil.Dec("5000"), TxId: "0x1"}))
	res := expectOK(t, f.c.ConfirmInvestment(ctx, operator, TargetRequest{
		UserId: "u1", Amount: decimal.NewNullDecimal(testutil.Dec("4500")),
	}))
	testutil.AssertDecimal(t, "amount", res.Investment.Amount, "4500")
	testutil.AssertDecimal(t, "balance", testutil.GetUser(t, f.st, "u1").CurrentBalance, "4500")
}

func TestProfitAccrualNotifies(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	testutil.SeedUser(t, f.st, "u1", func(u *models.User) {
		u.Plan = models.PlanCore
		u.TotalInvested = testutil.Dec("10000")
		u.LastProfitUpdate = testutil.T0
	})

	f.setTime(testutil.T0.Add(72 * time.Hour))
	summary := expectOK(t, f.c.AccrueProfits(ctx, operator))
	testutil.AssertDecimal(t, "total", summary.Total, "429")
	testutil.AssertDecimal(t, "balance", testutil.GetUser(t, f.st, "u1").CurrentBalance, "429")
	if !strings.Contains(f.rec.last("u1"), "$429.00 for 3 day(s)") {
		t.Errorf("Unexpected profit notification %q", f.rec.last("u1"))
	}

	again := expectOK(t, f.c.AccrueProfits(ctx, operator))
	if again.Credited != 0 || f.rec.count("u1") != 1 {
		t.Errorf("Expected second run to be a no-op, got %+v", again)
	}
	expectKind(t, f.c.AccrueProfits(ctx, Caller{Id: "u1"}), apperr.KindUnauthorised)
}

func TestStockBuyThenPartialSell(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	testutil.SeedUser(t, f.st, "u1", nil)
	u := Caller{Id: "u1"}

	inv := expectOK(t, f.c.BuyStock(ctx, u, BuyRequest{Ticker: "x", Amount: testutil.Dec("1000"), TxDetails: "card"}))
	testutil.AssertDecimal(t, "shares", inv.Shares, "10")
	if !strings.Contains(f.rec.last("op"), "Payment: card") {
		t.Errorf("Expected operator alert with payment details, got %q", f.rec.last("op"))
	}
	expectOK(t, f.c.ConfirmStock(ctx, operator, TargetRequest{UserId: "u1"}))
	testutil.AssertDecimal(t, "total_invested", testutil.GetUser(t, f.st, "u1").TotalInvested, "1000")

	f.oracle.Set("X", decimal.NewFromInt(120))
	sold := expectOK(t, f.c.SellStock(ctx, u, SellRequest{StockId: inv.Id, Shares: testutil.Dec("4")}))
	if sold.Fallback || sold.Sale.Status != models.SaleAwaitingWallet {
		t.Fatalf("Unexpected sale %+v", sold)
	}
	testutil.AssertDecimal(t, "total", sold.Sale.TotalValue, "480")

	open := expectOK(t, f.c.PendingSaleAwaitingWallet(ctx, u))
	if open.Id != sold.Sale.Id {
		t.Errorf("Expected open sale %d, got %d", sold.Sale.Id, open.Id)
	}
	expectKind(t, f.c.AttachSaleWallet(ctx, u, sold.Sale.Id, "nope"), apperr.KindInvalidInput)
	expectOK(t, f.c.AttachSaleWallet(ctx, u, sold.Sale.Id, payout))

	expectKind(t, f.c.ConfirmStockSale(ctx, operator, TargetRequest{
		UserId: "u1", Amount: decimal.NewNullDecimal(testutil.Dec("400")),
	}), apperr.KindInvalidInput)
	res := expectOK(t, f.c.ConfirmStockSale(ctx, operator, TargetRequest{
		UserId: "u1", Amount: decimal.NewNullDecimal(testutil.Dec("480")),
	}))
	testutil.AssertDecimal(t, "remaining shares", res.Investment.Shares, "6")
	testutil.AssertDecimal(t, "remaining amount", res.Investment.Amount, "600")
	testutil.AssertDecimal(t, "balance", testutil.GetUser(t, f.st, "u1").CurrentBalance, "480")
}

func TestWithdrawalConsumesBalance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	testutil.SeedUser(t, f.st, "u1", func(u *models.User) { u.CurrentBalance = testutil.Dec("1000") })
	u := Caller{Id: "u1"}

	expectOK(t, f.c.CheckWithdrawal(ctx, u, testutil.Dec("800")))
	expectOK(t, f.c.SubmitWithdrawal(ctx, u, WithdrawRequest{Amount: testutil.Dec("800"), Wallet: payout}))

	expectKind(t, f.c.ConfirmWithdrawal(ctx, operator, TargetRequest{
		UserId: "u1", Amount: decimal.NewNullDecimal(testutil.Dec("900")),
	}), apperr.KindInvalidInput)
	expectOK(t, f.c.ConfirmWithdrawal(ctx, operator, TargetRequest{UserId: "u1"}))
	testutil.AssertDecimal(t, "balance", testutil.GetUser(t, f.st, "u1").CurrentBalance, "200")

	expectKind(t, f.c.ConfirmWithdrawal(ctx, operator, TargetRequest{UserId: "u1"}), apperr.KindNotFound)
}

func TestInsufficientBalanceWithdrawal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	testutil.SeedUser(t, f.st, "u1", func(u *models.User) { u.CurrentBalance = testutil.Dec("50") })
	u := Caller{Id: "u1"}

	res := f.c.SubmitWithdrawal(ctx, u, WithdrawRequest{Amount: testutil.Dec("100"), Wallet: payout})
	expectKind(t, res, apperr.KindInsufficientBalance)
	if !strings.Contains(res.Message, "$50.00") {
		t.Errorf("Expected available balance in message, got %q", res.Message)
	}
	testutil.AssertDecimal(t, "balance", testutil.GetUser(t, f.st, "u1").CurrentBalance, "50")
	if f.rec.count("op") != 0 {
		t.Errorf("Expected no operator alert, got %v", f.rec.sent["op"])
	}
	expectKind(t, f.c.ConfirmWithdrawal(ctx, operator, TargetRequest{UserId: "u1"}), apperr.KindNotFound)
}

func TestApplyBalance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	testutil.SeedUser(t, f.st, "u1", func(u *models.User) { u.CurrentBalance = testutil.Dec("200") })

	change := expectOK(t, f.c.ApplyBalance(ctx, operator, BalanceRequest{UserId: "u1", Mode: "set", Amount: testutil.Dec("250")}))
	testutil.AssertDecimal(t, "old", change.Old, "200")
	testutil.AssertDecimal(t, "new", change.New, "250")

	entries := testutil.AuditEntries(t, f.st, "u1")
	if len(entries) != 1 || entries[0].AdminId != "op" || entries[0].Action != models.BalanceAction(admin.ModeSet) {
		t.Fatalf("Unexpected audit entries %+v", entries)
	}
	if !strings.Contains(f.rec.last("u1"), "$200.00 -> $250.00") {
		t.Errorf("Unexpected balance notification %q", f.rec.last("u1"))
	}

	expectKind(t, f.c.ApplyBalance(ctx, operator, BalanceRequest{UserId: "u1", Mode: "double", Amount: testutil.Dec("1")}), apperr.KindInvalidInput)
}

func TestOperatorIntentsRequireAllowList(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	testutil.SeedUser(t, f.st, "u1", func(u *models.User) { u.CurrentBalance = testutil.Dec("200") })
	intruder := Caller{Id: "u1", Handle: "@u1"}

	expectKind(t, f.c.ApplyBalance(ctx, intruder, BalanceRequest{UserId: "u1", Mode: "add", Amount: testutil.Dec("1000")}), apperr.KindUnauthorised)
	expectKind(t, f.c.ConfirmInvestment(ctx, intruder, TargetRequest{UserId: "u1"}), apperr.KindUnauthorised)
	expectKind(t, f.c.ConfirmWithdrawal(ctx, intruder, TargetRequest{UserId: "u1"}), apperr.KindUnauthorised)
	expectKind(t, f.c.DeleteUser(ctx, intruder, "u1"), apperr.KindUnauthorised)
	expectKind(t, f.c.Broadcast(ctx, intruder, BroadcastRequest{Text: "hi"}), apperr.KindUnauthorised)
	expectKind(t, f.c.AuditLog(ctx, intruder, "", 10), apperr.KindUnauthorised)

	testutil.AssertDecimal(t, "balance", testutil.GetUser(t, f.st, "u1").CurrentBalance, "200")
	if entries := testutil.AuditEntries(t, f.st, ""); len(entries) != 0 {
		t.Errorf("Expected no audit entries, got %+v", entries)
	}
	if !f.c.IsOperator("op") || f.c.IsOperator("") {
		t.Error("Unexpected operator allow-list")
	}
}

func TestNotifierFailureDoesNotFailIntent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	testutil.SeedUser(t, f.st, "u1", func(u *models.User) { u.CurrentBalance = testutil.Dec("100") })
	f.rec.fail = true

	expectOK(t, f.c.ApplyBalance(ctx, operator, BalanceRequest{UserId: "u1", Mode: "add", Amount: testutil.Dec("50")}))
	testutil.AssertDecimal(t, "balance", testutil.GetUser(t, f.st, "u1").CurrentBalance, "150")

	report := expectOK(t, f.c.Broadcast(ctx, operator, BroadcastRequest{Text: "maintenance tonight"}))
	if report.Recipients != 1 || report.Delivered != 0 {
		t.Errorf("Unexpected report %+v", report)
	}
}

func TestBroadcast(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	testutil.SeedUser(t, f.st, "u1", nil)
	testutil.SeedUser(t, f.st, "u2", nil)

	report := expectOK(t, f.c.Broadcast(ctx, operator, BroadcastRequest{Text: "hello"}))
	if report.Recipients != 2 || report.Delivered != 2 {
		t.Errorf("Unexpected report %+v", report)
	}
	if f.rec.last("u2") != "hello" {
		t.Errorf("Expected broadcast text, got %q", f.rec.last("u2"))
	}
	expectKind(t, f.c.Broadcast(ctx, operator, BroadcastRequest{}), apperr.KindInvalidInput)
}

func TestPortfolioAndPrices(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	testutil.SeedUser(t, f.st, "u1", func(u *models.User) { u.Plan = models.PlanGrowth })
	u := Caller{Id: "u1"}

	expectOK(t, f.c.AddStock(ctx, operator, AddStockRequest{UserId: "u1", Ticker: "X", Shares: testutil.Dec("2"), Price: testutil.Dec("90")}))
	p := expectOK(t, f.c.Portfolio(ctx, u))
	if p.Terms == nil || p.Terms.Plan != models.PlanGrowth || len(p.Positions) != 1 {
		t.Fatalf("Unexpected portfolio %+v", p)
	}
	testutil.AssertDecimal(t, "value", p.Positions[0].Value.Decimal, "200")

	quotes := expectOK(t, f.c.Prices(ctx))
	if len(quotes) != 2 || !quotes[0].Price.Valid || quotes[1].Price.Valid {
		t.Errorf("Unexpected quotes %+v", quotes)
	}

	registered := expectOK(t, f.c.IsRegistered(ctx, Caller{Id: "ghost"}))
	if registered {
		t.Error("Expected ghost to be unregistered")
	}
	expectKind(t, f.c.Portfolio(ctx, Caller{Id: "ghost"}), apperr.KindNotRegistered)
	expectKind(t, f.c.DepositAddress(ctx, u, "doge"), apperr.KindInvalidInput)
	if addr := expectOK(t, f.c.DepositAddress(ctx, u, "btc")); addr != "bc1-pool" {
		t.Errorf("Unexpected deposit address %s", addr)
	}
}

func TestDeleteUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	testutil.SeedUser(t, f.st, "u1", nil)

	expectKind(t, f.c.DeleteUser(ctx, operator, "op"), apperr.KindInvalidInput)
	expectOK(t, f.c.DeleteUser(ctx, operator, "u1"))
	expectKind(t, f.c.DeleteUser(ctx, operator, "u1"), apperr.KindNotFound)

	log := expectOK(t, f.c.AuditLog(ctx, operator, "", 0))
	if len(log) != 1 || log[0].Action != models.AuditDeleteUser {
		t.Errorf("Unexpected audit log %+v", log)
	}
}
