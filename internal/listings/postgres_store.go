package listings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// PostgresStore persists items in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a Postgres-backed item store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const itemColumns = `id, seller_id, title, description, price, category, status,
	sold_to, sold_transaction_id, sold_at, created_at, updated_at`

func (p *PostgresStore) Create(ctx context.Context, item *Item) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO marketplace_items (
			id, seller_id, title, description, price, category, status,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		item.ID, item.SellerID, item.Title, nullString(item.Description),
		item.Price, nullString(item.Category), string(item.Status),
		item.CreatedAt, item.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert item: %w", err)
	}
	return nil
}

func (p *PostgresStore) Get(ctx context.Context, id string) (*Item, error) {
	row := p.db.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM marketplace_items WHERE id = $1`, id)
	return scanItem(row)
}

func (p *PostgresStore) MarkSold(ctx context.Context, id, transactionID, buyerID string, at time.Time) error {
	res, err := p.db.ExecContext(ctx, `
		UPDATE marketplace_items
		SET status = 'sold', sold_to = $2, sold_transaction_id = $3,
		    sold_at = $4, updated_at = $4
		WHERE id = $1 AND status <> 'sold'`,
		id, buyerID, transactionID, at,
	)
	if err != nil {
		return fmt.Errorf("failed to mark item sold: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows > 0 {
		return nil
	}

	// No row flipped: either the item is missing, it already sold in this
	// transaction (retry, fine), or it sold elsewhere.
	var soldTx sql.NullString
	err = p.db.QueryRowContext(ctx,
		`SELECT sold_transaction_id FROM marketplace_items WHERE id = $1`, id,
	).Scan(&soldTx)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to check item state: %w", err)
	}
	if soldTx.Valid && soldTx.String == transactionID {
		return nil
	}
	return ErrAlreadySold
}

func scanItem(row *sql.Row) (*Item, error) {
	var item Item
	var description, category, soldTo, soldTx sql.NullString
	var soldAt sql.NullTime
	var status string

	err := row.Scan(
		&item.ID, &item.SellerID, &item.Title, &description, &item.Price,
		&category, &status, &soldTo, &soldTx, &soldAt,
		&item.CreatedAt, &item.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan item: %w", err)
	}

	item.Description = description.String
	item.Category = category.String
	item.Status = ItemStatus(status)
	item.SoldTo = soldTo.String
	item.SoldTransactionID = soldTx.String
	if soldAt.Valid {
		at := soldAt.Time
		item.SoldAt = &at
	}
	return &item, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// Compile-time assertion that PostgresStore implements Store.
var _ Store = (*PostgresStore)(nil)
