package service

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/sakif/secretum/internal/model"
	"github.com/sakif/secretum/internal/repository/sqlite"
)

// =========================================================================
// SHARED FIXTURES
// =========================================================================

// The ledger's guarantees live in SQL (immediate transactions, guarded
// updates, unique keys), so the services are tested against a real SQLite
// file rather than an in-memory fake.
func newTestStore(t *testing.T) *sqlite.DB {
	t.Helper()
	db, err := sqlite.New(filepath.Join(t.TempDir(), "service.db"))
	if err != nil {
		t.Fatalf("failed to create test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func seedUser(t *testing.T, db *sqlite.DB, externalID string) *model.User {
	t.Helper()
	user := &model.User{
		Email:          externalID + "@example.com",
		Name:           "User " + externalID,
		Provider:       model.ProviderGoogle,
		ProviderUserID: externalID,
	}
	if _, err := db.Users().UpsertByProvider(context.Background(), user); err != nil {
		t.Fatalf("seeding user %s: %v", externalID, err)
	}
	return user
}

func seedPromo(t *testing.T, db *sqlite.DB, code string, reward int64, maxUses int, active bool) *model.PromoCode {
	t.Helper()
	promo := &model.PromoCode{Code: code, RewardAmount: reward, MaxUses: maxUses, IsActive: active}
	if err := db.PromoCodes().CreatePromoCode(context.Background(), promo); err != nil {
		t.Fatalf("seeding promo %s: %v", code, err)
	}
	return promo
}
