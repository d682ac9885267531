// Package session tracks where each chat user is in a multi-message flow.
// Sessions live in memory only. Anything a user has committed to is written
// to the store by the owning service before the session advances.
package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"invest-bot-go/internal/models"

	"github.com/shopspring/decimal"
)

// Step is the state of a user's conversation.
type Step string

const (
	StepIdle                        Step = "idle"
	StepAwaitingRegistrationName    Step = "awaiting_registration_name"
	StepAwaitingRegistrationEmail   Step = "awaiting_registration_email"
	StepAwaitingInvestmentTxDetails Step = "awaiting_investment_tx_details"
	StepAwaitingWithdrawalAmount    Step = "awaiting_withdrawal_amount"
	StepAwaitingWithdrawalWallet    Step = "awaiting_withdrawal_wallet"
	StepAwaitingStockShares         Step = "awaiting_stock_shares"
	StepAwaitingStockTxDetails      Step = "awaiting_stock_tx_details"
	StepAwaitingStockSaleWallet     Step = "awaiting_stock_sale_wallet"
	StepAdminAwaitingBalanceAmount  Step = "admin_awaiting_balance_amount"
	StepAdminAwaitingBroadcast      Step = "admin_awaiting_broadcast"
)

var ErrInvalidTransition = errors.New("invalid session transition")

// entrySteps open a flow and may be entered from any step; starting a new
// command abandons whatever flow was in progress.
var entrySteps = map[Step]bool{
	StepAwaitingRegistrationName:    true,
	StepAwaitingInvestmentTxDetails: true,
	StepAwaitingWithdrawalAmount:    true,
	StepAwaitingStockShares:         true,
	StepAwaitingStockTxDetails:      true,
	StepAwaitingStockSaleWallet:     true,
	StepAdminAwaitingBalanceAmount:  true,
	StepAdminAwaitingBroadcast:      true,
}

// continuations lists the steps reachable only from a given step.
var continuations = map[Step][]Step{
	StepAwaitingRegistrationName: {StepAwaitingRegistrationEmail},
	StepAwaitingWithdrawalAmount: {StepAwaitingWithdrawalWallet},
	StepAwaitingStockShares:      {StepAwaitingStockSaleWallet},
}

// CanTransition reports whether a session may move from one step to another.
// Every step may return to idle.
func CanTransition(from, to Step) bool {
	if to == StepIdle || entrySteps[to] {
		return true
	}
	for _, next := range continuations[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Session is a user's conversation state. Only the fields relevant to Step
// are set.
type Session struct {
	UserId string
	Step   Step

	ReferralCode string // registration
	FullName     string

	Plan       models.Plan // crypto investment
	CryptoKind models.CryptoKind
	Wallet     string

	Amount  decimal.Decimal // investment, withdrawal, stock purchase and balance amount
	Ticker  string
	StockId int64
	SaleId  int64

	TargetUserId string // operator flows
	Mode         string

	StartedAt time.Time
}

// Manager holds sessions keyed by user id. It is safe for concurrent use.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]Session
	Now      func() time.Time
}

func NewManager() *Manager {
	return &Manager{sessions: make(map[string]Session), Now: time.Now}
}

// Get returns the user's session, or an idle one.
func (m *Manager) Get(userId string) Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[userId]; ok {
		return s
	}
	return Session{UserId: userId, Step: StepIdle}
}

// Advance moves the user's session to next.Step, replacing its payload with
// next. Moving to idle clears the session.
func (m *Manager) Advance(userId string, next Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	current := StepIdle
	if s, ok := m.sessions[userId]; ok {
		current = s.Step
	}
	if !CanTransition(current, next.Step) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current, next.Step)
	}
	if next.Step == StepIdle {
		delete(m.sessions, userId)
		return nil
	}
	next.UserId = userId
	if next.StartedAt.IsZero() {
		next.StartedAt = m.Now()
	}
	m.sessions[userId] = next
	return nil
}

// Reset returns the user to idle.
func (m *Manager) Reset(userId string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, userId)
}

// Len returns the number of users in a flow.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
