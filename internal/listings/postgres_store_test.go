//go:build integration

package listings

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"
	"time"

	_ "github.com/lib/pq"
)

const testSchema = `
CREATE TABLE IF NOT EXISTS marketplace_items (
    id                  TEXT PRIMARY KEY,
    seller_id           TEXT NOT NULL,
    title               TEXT NOT NULL,
    description         TEXT,
    price               BIGINT NOT NULL CHECK (price > 0),
    category            TEXT,
    status              TEXT NOT NULL DEFAULT 'available',
    sold_to             TEXT,
    sold_transaction_id TEXT,
    sold_at             TIMESTAMPTZ,
    created_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at          TIMESTAMPTZ NOT NULL DEFAULT now()
)`

func setupTestDB(t *testing.T) (*PostgresStore, func()) {
	t.Helper()

	dbURL := os.Getenv("POSTGRES_URL")
	if dbURL == "" {
		t.Skip("POSTGRES_URL not set, skipping integration test")
	}

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}

	if err := db.Ping(); err != nil {
		t.Fatalf("Failed to connect to database: %v", err)
	}

	ctx := context.Background()
	if _, err := db.ExecContext(ctx, testSchema); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}

	store := NewPostgresStore(db)
	cleanup := func() {
		db.ExecContext(ctx, "DELETE FROM marketplace_items")
		db.Close()
	}

	return store, cleanup
}

func testItem(id string) *Item {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &Item{
		ID:        id,
		SellerID:  "usr_00000000000000000000000a",
		Title:     "garden bench",
		Price:     4500,
		Category:  "furniture",
		Status:    ItemAvailable,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestPostgres_CreateAndGet(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	item := testItem("item_pg_create01")
	if err := store.Create(ctx, item); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	got, err := store.Get(ctx, item.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Title != "garden bench" || got.Price != 4500 {
		t.Errorf("item corrupted: %+v", got)
	}
	if got.Status != ItemAvailable {
		t.Errorf("expected available, got %s", got.Status)
	}
}

func TestPostgres_MarkSold(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	item := testItem("item_pg_sold0001")
	if err := store.Create(ctx, item); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	at := time.Now().UTC().Truncate(time.Microsecond)
	if err := store.MarkSold(ctx, item.ID, "txn_1", "usr_buyer", at); err != nil {
		t.Fatalf("MarkSold failed: %v", err)
	}

	got, err := store.Get(ctx, item.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Status != ItemSold || got.SoldTo != "usr_buyer" || got.SoldTransactionID != "txn_1" {
		t.Errorf("sale not recorded: %+v", got)
	}

	// Retry in the same transaction is a no-op.
	if err := store.MarkSold(ctx, item.ID, "txn_1", "usr_buyer", at.Add(time.Hour)); err != nil {
		t.Errorf("retry should be a no-op, got %v", err)
	}
	again, _ := store.Get(ctx, item.ID)
	if !again.SoldAt.Equal(*got.SoldAt) {
		t.Errorf("soldAt rewritten on retry: %v != %v", again.SoldAt, got.SoldAt)
	}

	// A different transaction conflicts.
	if err := store.MarkSold(ctx, item.ID, "txn_2", "usr_other", at); !errors.Is(err, ErrAlreadySold) {
		t.Errorf("expected ErrAlreadySold, got %v", err)
	}
}

func TestPostgres_MarkSold_NotFound(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()

	err := store.MarkSold(context.Background(), "item_missing0000", "txn_1", "usr_buyer", time.Now())
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
