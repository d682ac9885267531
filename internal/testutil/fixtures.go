package testutil

import (
	"context"
	"testing"
	"time"

	"invest-bot-go/internal/models"
	"invest-bot-go/internal/store"

	"github.com/shopspring/decimal"
)

// T0 is a fixed reference time for fixtures.
var T0 = time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)

// SeedUser inserts a registered user. mutate may adjust fields before insert.
func SeedUser(t *testing.T, st store.Store, id string, mutate func(u *models.User)) *models.User {
	t.Helper()

	user := &models.User{
		Id:             id,
		Handle:         "@" + id,
		FullName:       "Test " + id,
		Email:          id + "@example.com",
		RegisteredAt:   T0,
		TotalInvested:  decimal.Zero,
		CurrentBalance: decimal.Zero,
		ProfitEarned:   decimal.Zero,
		ReferralCode:   "REF" + id,
	}
	if mutate != nil {
		mutate(user)
	}

	err := st.WithTx(context.Background(), func(tx store.Tx) error {
		return tx.InsertUser(context.Background(), user)
	})
	if err != nil {
		t.Fatalf("failed to seed user %s: %v", id, err)
	}
	return user
}

// GetUser reads a user back, failing the test if it is missing.
func GetUser(t *testing.T, st store.Store, id string) *models.User {
	t.Helper()

	var user *models.User
	err := st.View(context.Background(), func(tx store.Tx) error {
		var err error
		user, err = tx.GetUser(context.Background(), id)
		return err
	})
	if err != nil {
		t.Fatalf("failed to read user %s: %v", id, err)
	}
	return user
}

// AuditEntries lists every audit entry for target, newest first.
func AuditEntries(t *testing.T, st store.Store, target string) []models.AuditEntry {
	t.Helper()

	var entries []models.AuditEntry
	err := st.View(context.Background(), func(tx store.Tx) error {
		var err error
		entries, err = tx.ListAuditEntries(context.Background(), target, 0)
		return err
	})
	if err != nil {
		t.Fatalf("failed to list audit entries: %v", err)
	}
	return entries
}

// Dec parses a decimal literal, panicking on malformed input.
func Dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// Clock returns a settable clock for services that take a Now func.
func Clock(start time.Time) (now func() time.Time, set func(time.Time)) {
	current := start
	return func() time.Time { return current }, func(t time.Time) { current = t }
}
