// Package testutil provides test helpers for opening a migrated store,
// creating fixtures and making assertions.
package testutil

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"invest-bot-go/internal/database"
	"invest-bot-go/internal/models"
)

// NewStore opens a fully migrated SQLite store in a temporary directory. A
// file is used instead of :memory: so that every pooled connection sees the
// same database.
func NewStore(t *testing.T) *database.Service {
	t.Helper()

	svc, err := database.NewService(context.Background(), models.DatabaseConfig{
		Path:         filepath.Join(t.TempDir(), "test.db"),
		MaxOpenConns: 4,
		MaxIdleConns: 2,
		PingTimeout:  5 * time.Second,
		BusyTimeout:  5 * time.Second,
	})
	if err != nil {
		t.Fatalf("failed to open test store: %v", err)
	}
	t.Cleanup(svc.Close)
	return svc
}
