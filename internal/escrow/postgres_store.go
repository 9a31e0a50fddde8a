package escrow

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/yrdly/platform/internal/pagination"
)

// PostgresStore persists escrow transactions in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed transaction store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (p *PostgresStore) Create(ctx context.Context, t *Transaction) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO escrow_transactions (
			id, item_id, buyer_id, seller_id,
			amount, commission, total_amount, seller_amount,
			status, payment_method, payment_reference,
			delivery_option, delivery_notes,
			paid_at, shipped_at, delivered_at, completed_at,
			dispute_reason, dispute_resolution_note, dispute_resolved_at,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8,
			$9, $10, $11,
			$12, $13,
			$14, $15, $16, $17,
			$18, $19, $20,
			$21, $22
		)`,
		t.ID, t.ItemID, t.BuyerID, t.SellerID,
		t.Amount, t.Commission, t.TotalAmount, t.SellerAmount,
		string(t.Status), string(t.PaymentMethod), nullString(t.PaymentReference),
		string(t.Delivery.Option), nullString(t.Delivery.Notes),
		nullTime(t.PaidAt), nullTime(t.ShippedAt), nullTime(t.DeliveredAt), nullTime(t.CompletedAt),
		nullString(t.DisputeReason), nullString(t.DisputeResolutionNote), nullTime(t.DisputeResolvedAt),
		t.CreatedAt, t.UpdatedAt,
	)
	return err
}

const txColumns = `id, item_id, buyer_id, seller_id,
		       amount, commission, total_amount, seller_amount,
		       status, payment_method, payment_reference,
		       delivery_option, delivery_notes,
		       paid_at, shipped_at, delivered_at, completed_at,
		       dispute_reason, dispute_resolution_note, dispute_resolved_at,
		       created_at, updated_at`

func (p *PostgresStore) Get(ctx context.Context, id string) (*Transaction, error) {
	row := p.db.QueryRowContext(ctx,
		`SELECT `+txColumns+` FROM escrow_transactions WHERE id = $1`, id)

	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return t, err
}

// UpdateConditional writes the record only when the stored status equals
// expected. Milestone timestamps use COALESCE(old, new) so an already-set
// milestone can never be rewritten, even by a buggy caller.
func (p *PostgresStore) UpdateConditional(ctx context.Context, t *Transaction, expected Status) error {
	result, err := p.db.ExecContext(ctx, `
		UPDATE escrow_transactions SET
			status = $1,
			payment_reference = COALESCE($2, payment_reference),
			delivery_option = $3,
			delivery_notes = $4,
			paid_at = COALESCE(paid_at, $5),
			shipped_at = COALESCE(shipped_at, $6),
			delivered_at = COALESCE(delivered_at, $7),
			completed_at = COALESCE(completed_at, $8),
			dispute_reason = COALESCE($9, dispute_reason),
			dispute_resolution_note = COALESCE($10, dispute_resolution_note),
			dispute_resolved_at = COALESCE(dispute_resolved_at, $11),
			updated_at = $12
		WHERE id = $13 AND status = $14`,
		string(t.Status),
		nullString(t.PaymentReference),
		string(t.Delivery.Option),
		nullString(t.Delivery.Notes),
		nullTime(t.PaidAt), nullTime(t.ShippedAt), nullTime(t.DeliveredAt), nullTime(t.CompletedAt),
		nullString(t.DisputeReason), nullString(t.DisputeResolutionNote), nullTime(t.DisputeResolvedAt),
		t.UpdatedAt,
		t.ID, string(expected),
	)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		// Distinguish a missing record from a concurrent status change.
		var exists bool
		if err := p.db.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM escrow_transactions WHERE id = $1)`, t.ID,
		).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrNotFound
		}
		return ErrConflict
	}
	return nil
}

func (p *PostgresStore) ListByBuyer(ctx context.Context, buyerID string, limit int, cursor *pagination.Cursor) ([]*Transaction, error) {
	return p.list(ctx, "buyer_id", buyerID, limit, cursor)
}

func (p *PostgresStore) ListBySeller(ctx context.Context, sellerID string, limit int, cursor *pagination.Cursor) ([]*Transaction, error) {
	return p.list(ctx, "seller_id", sellerID, limit, cursor)
}

// list fetches limit+1 rows newest first with keyset pagination.
// column is one of the fixed identifiers above, never user input.
func (p *PostgresStore) list(ctx context.Context, column, userID string, limit int, cursor *pagination.Cursor) ([]*Transaction, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if cursor != nil {
		rows, err = p.db.QueryContext(ctx, `
			SELECT `+txColumns+`
			FROM escrow_transactions
			WHERE `+column+` = $1 AND (created_at, id) < ($2, $3)
			ORDER BY created_at DESC, id DESC
			LIMIT $4`, userID, cursor.CreatedAt, cursor.ID, limit+1)
	} else {
		rows, err = p.db.QueryContext(ctx, `
			SELECT `+txColumns+`
			FROM escrow_transactions
			WHERE `+column+` = $1
			ORDER BY created_at DESC, id DESC
			LIMIT $2`, userID, limit+1)
	}
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	return scanTransactions(rows)
}

// Stats pushes the aggregation to the database rather than scanning rows in
// application code.
func (p *PostgresStore) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}
	err := p.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(amount), 0),
			COALESCE(SUM(commission), 0),
			COUNT(*) FILTER (WHERE status = 'pending'),
			COUNT(*) FILTER (WHERE status = 'completed'),
			COUNT(*) FILTER (WHERE status = 'disputed')
		FROM escrow_transactions`).Scan(
		&stats.TotalTransactions,
		&stats.TotalVolume,
		&stats.TotalCommission,
		&stats.PendingCount,
		&stats.CompletedCount,
		&stats.DisputedCount,
	)
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanTransaction(s scanner) (*Transaction, error) {
	t := &Transaction{}
	var (
		status         string
		method         string
		paymentRef     sql.NullString
		deliveryOption string
		deliveryNotes  sql.NullString
		paidAt         sql.NullTime
		shippedAt      sql.NullTime
		deliveredAt    sql.NullTime
		completedAt    sql.NullTime
		disputeReason  sql.NullString
		resolutionNote sql.NullString
		resolvedAt     sql.NullTime
	)

	err := s.Scan(
		&t.ID, &t.ItemID, &t.BuyerID, &t.SellerID,
		&t.Amount, &t.Commission, &t.TotalAmount, &t.SellerAmount,
		&status, &method, &paymentRef,
		&deliveryOption, &deliveryNotes,
		&paidAt, &shippedAt, &deliveredAt, &completedAt,
		&disputeReason, &resolutionNote, &resolvedAt,
		&t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	t.Status = Status(status)
	t.PaymentMethod = PaymentMethod(method)
	t.PaymentReference = paymentRef.String
	t.Delivery = DeliveryDetails{Option: DeliveryOption(deliveryOption), Notes: deliveryNotes.String}
	t.DisputeReason = disputeReason.String
	t.DisputeResolutionNote = resolutionNote.String
	if paidAt.Valid {
		t.PaidAt = &paidAt.Time
	}
	if shippedAt.Valid {
		t.ShippedAt = &shippedAt.Time
	}
	if deliveredAt.Valid {
		t.DeliveredAt = &deliveredAt.Time
	}
	if completedAt.Valid {
		t.CompletedAt = &completedAt.Time
	}
	if resolvedAt.Valid {
		t.DisputeResolvedAt = &resolvedAt.Time
	}

	return t, nil
}

func scanTransactions(rows *sql.Rows) ([]*Transaction, error) {
	var result []*Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, t)
	}
	return result, rows.Err()
}

// nullString converts an empty Go string to sql.NullString.
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// nullTime converts a *time.Time to sql.NullTime.
func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// Compile-time assertion that PostgresStore implements Store.
var _ Store = (*PostgresStore)(nil)
