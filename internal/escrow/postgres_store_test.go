//go:build integration

package escrow

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
CREATE TABLE IF NOT EXISTS escrow_transactions (
    id                      TEXT PRIMARY KEY,
    item_id                 TEXT NOT NULL,
    buyer_id                TEXT NOT NULL,
    seller_id               TEXT NOT NULL,
    amount                  BIGINT NOT NULL CHECK (amount > 0),
    commission              BIGINT NOT NULL CHECK (commission >= 0),
    total_amount            BIGINT NOT NULL,
    seller_amount           BIGINT NOT NULL,
    status                  TEXT NOT NULL DEFAULT 'pending',
    payment_method          TEXT NOT NULL,
    payment_reference       TEXT,
    delivery_option         TEXT NOT NULL,
    delivery_notes          TEXT,
    paid_at                 TIMESTAMPTZ,
    shipped_at              TIMESTAMPTZ,
    delivered_at            TIMESTAMPTZ,
    completed_at            TIMESTAMPTZ,
    dispute_reason          TEXT,
    dispute_resolution_note TEXT,
    dispute_resolved_at     TIMESTAMPTZ,
    created_at              TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at              TIMESTAMPTZ NOT NULL DEFAULT now(),
    CONSTRAINT escrow_amount_split CHECK (seller_amount + commission = amount),
    CONSTRAINT escrow_buyer_not_seller CHECK (buyer_id <> seller_id)
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
		db.ExecContext(ctx, "DELETE FROM escrow_transactions")
		db.Close()
	}

	return store, cleanup
}

func testTransaction(id string) *Transaction {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &Transaction{
		ID:            id,
		ItemID:        "item_0123456789abcdef",
		BuyerID:       "usr_00000000000000000000000b",
		SellerID:      "usr_00000000000000000000000a",
		Amount:        10000,
		Commission:    200,
		TotalAmount:   10000,
		SellerAmount:  9800,
		Status:        StatusPending,
		PaymentMethod: MethodCard,
		Delivery:      DeliveryDetails{Option: DeliveryFaceToFace, Notes: "porch pickup"},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func TestPostgres_CreateAndGet(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	tx := testTransaction("txn_pg_create01")
	if err := store.Create(ctx, tx); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	got, err := store.Get(ctx, tx.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Amount != 10000 || got.Commission != 200 || got.SellerAmount != 9800 {
		t.Errorf("amount split corrupted: %+v", got)
	}
	if got.Status != StatusPending {
		t.Errorf("expected pending, got %s", got.Status)
	}
	if got.Delivery.Notes != "porch pickup" {
		t.Errorf("delivery notes lost: %q", got.Delivery.Notes)
	}
	if got.PaidAt != nil {
		t.Error("paid_at should be NULL")
	}
}

func TestPostgres_GetNotFound(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()

	if _, err := store.Get(context.Background(), "txn_missing00000"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestPostgres_UpdateConditional(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	tx := testTransaction("txn_pg_update01")
	if err := store.Create(ctx, tx); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	now := time.Now().UTC().Truncate(time.Microsecond)
	tx.Status = StatusPaid
	tx.PaymentReference = "pi_pg_test"
	tx.PaidAt = &now
	tx.UpdatedAt = now

	if err := store.UpdateConditional(ctx, tx, StatusPending); err != nil {
		t.Fatalf("UpdateConditional failed: %v", err)
	}

	got, err := store.Get(ctx, tx.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Status != StatusPaid || got.PaymentReference != "pi_pg_test" {
		t.Errorf("update not applied: %+v", got)
	}
	if got.PaidAt == nil || !got.PaidAt.Equal(now) {
		t.Errorf("paid_at wrong: %v", got.PaidAt)
	}
}

func TestPostgres_UpdateConditional_StaleStatus(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	tx := testTransaction("txn_pg_stale001")
	if err := store.Create(ctx, tx); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	tx.Status = StatusPaid
	if err := store.UpdateConditional(ctx, tx, StatusShipped); !errors.Is(err, ErrConflict) {
		t.Errorf("expected ErrConflict for stale expected status, got %v", err)
	}
}

func TestPostgres_UpdateConditional_NotFound(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()

	tx := testTransaction("txn_pg_ghost001")
	tx.Status = StatusPaid
	if err := store.UpdateConditional(context.Background(), tx, StatusPending); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestPostgres_MilestoneNotRewritten(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	tx := testTransaction("txn_pg_mile0001")
	if err := store.Create(ctx, tx); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	first := time.Now().UTC().Truncate(time.Microsecond)
	tx.Status = StatusPaid
	tx.PaidAt = &first
	if err := store.UpdateConditional(ctx, tx, StatusPending); err != nil {
		t.Fatalf("first update failed: %v", err)
	}

	// A later write with a different paid_at must not rewrite the milestone.
	later := first.Add(time.Hour)
	tx.Status = StatusShipped
	tx.PaidAt = &later
	tx.ShippedAt = &later
	if err := store.UpdateConditional(ctx, tx, StatusPaid); err != nil {
		t.Fatalf("second update failed: %v", err)
	}

	got, err := store.Get(ctx, tx.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !got.PaidAt.Equal(first) {
		t.Errorf("paid_at rewritten: got %v, want %v", got.PaidAt, first)
	}
	if got.ShippedAt == nil || !got.ShippedAt.Equal(later) {
		t.Errorf("shipped_at wrong: %v", got.ShippedAt)
	}
}

func TestPostgres_ListByBuyerKeysetPagination(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Microsecond)
	for i := 0; i < 5; i++ {
		tx := testTransaction("txn_pg_page000" + string(rune('a'+i)))
		tx.CreatedAt = base.Add(time.Duration(i) * time.Second)
		tx.UpdatedAt = tx.CreatedAt
		if err := store.Create(ctx, tx); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}

	// limit+1 fetch: ask for 2, expect 3 back
	page, err := store.ListByBuyer(ctx, "usr_00000000000000000000000b", 2, nil)
	if err != nil {
		t.Fatalf("ListByBuyer failed: %v", err)
	}
	if len(page) != 3 {
		t.Fatalf("expected limit+1 = 3 rows, got %d", len(page))
	}
	// Newest first
	if !page[0].CreatedAt.After(page[1].CreatedAt) {
		t.Error("expected newest-first ordering")
	}
}

func TestPostgres_Stats(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	a := testTransaction("txn_pg_stats001")
	b := testTransaction("txn_pg_stats002")
	b.Amount, b.Commission, b.TotalAmount, b.SellerAmount = 2500, 50, 2500, 2450
	b.Status = StatusDisputed
	for _, tx := range []*Transaction{a, b} {
		if err := store.Create(ctx, tx); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.TotalTransactions != 2 {
		t.Errorf("expected 2 transactions, got %d", stats.TotalTransactions)
	}
	if stats.TotalVolume != 12500 {
		t.Errorf("expected volume 12500, got %d", stats.TotalVolume)
	}
	if stats.TotalCommission != 250 {
		t.Errorf("expected commission 250, got %d", stats.TotalCommission)
	}
	if stats.PendingCount != 1 || stats.DisputedCount != 1 {
		t.Errorf("unexpected status counts: %+v", stats)
	}
}
