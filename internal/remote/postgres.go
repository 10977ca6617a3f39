package remote

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	apperrors "github.com/fitri99main/itongPOS-sub000/internal/errors"
	"github.com/fitri99main/itongPOS-sub000/internal/models"
)

// Postgres is the remote Store backed by a PostgreSQL database.
type Postgres struct {
	pool *pgxpool.Pool
}

var _ Store = (*Postgres)(nil)

// NewPostgres connects to the database at connString.
func NewPostgres(ctx context.Context, connString string) (*Postgres, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	config.MaxConns = 4
	config.MinConns = 0
	config.MaxConnLifetime = time.Hour
	config.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}

	return &Postgres{pool: pool}, nil
}

// Close closes the pool.
func (p *Postgres) Close() {
	p.pool.Close()
}

// Migrate creates the remote schema if it does not exist.
func (p *Postgres) Migrate(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS transactions (
			id UUID PRIMARY KEY,
			user_id TEXT,
			cash_register_id TEXT,
			total_amount NUMERIC(14,2) NOT NULL CHECK (total_amount >= 0),
			discount NUMERIC(14,2) NOT NULL DEFAULT 0 CHECK (discount >= 0),
			status TEXT NOT NULL,
			payment_method TEXT,
			table_number TEXT,
			customer_id TEXT,
			created_at TIMESTAMP WITH TIME ZONE NOT NULL,
			received_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_created_at ON transactions(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_cash_register_id ON transactions(cash_register_id)`,

		`CREATE TABLE IF NOT EXISTS transaction_items (
			transaction_id UUID NOT NULL REFERENCES transactions(id) ON DELETE CASCADE,
			line_no INTEGER NOT NULL CHECK (line_no > 0),
			product_id TEXT,
			product_name_snapshot TEXT NOT NULL,
			quantity INTEGER NOT NULL CHECK (quantity > 0),
			unit_price NUMERIC(14,2) NOT NULL CHECK (unit_price >= 0),
			unit_cost_at_sale NUMERIC(14,2) NOT NULL CHECK (unit_cost_at_sale >= 0),
			PRIMARY KEY (transaction_id, line_no)
		)`,
	}

	for _, migration := range migrations {
		if _, err := p.pool.Exec(ctx, migration); err != nil {
			return fmt.Errorf("failed to run migration: %w", err)
		}
	}

	return nil
}

// InsertTransaction implements Store.
func (p *Postgres) InsertTransaction(ctx context.Context, h models.TransactionHeader) error {
	query := `
		INSERT INTO transactions
			(id, user_id, cash_register_id, total_amount, discount, status, payment_method, table_number, customer_id, created_at)
		VALUES
			($1, $2, $3, $4::numeric, $5::numeric, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE
			SET user_id = COALESCE(transactions.user_id, EXCLUDED.user_id)
	`
	_, err := p.pool.Exec(ctx, query,
		h.ID,
		h.UserID,
		h.CashRegisterID,
		h.TotalAmount.String(),
		h.Discount.String(),
		string(h.Status),
		h.PaymentMethod,
		h.TableNumber,
		h.CustomerID,
		time.UnixMilli(h.CreatedAt).UTC(),
	)
	if err != nil {
		return classify(fmt.Sprintf("failed to insert transaction %s", h.ID), err)
	}
	return nil
}

// InsertLineItems implements Store. All lines are written in one database
// transaction.
func (p *Postgres) InsertLineItems(ctx context.Context, transactionID string, items []models.TransactionLineItem) (err error) {
	if len(items) == 0 {
		return nil
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return classify("failed to begin transaction", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	for i, item := range items {
		_, err = tx.Exec(ctx, `
			INSERT INTO transaction_items
				(transaction_id, line_no, product_id, product_name_snapshot, quantity, unit_price, unit_cost_at_sale)
			VALUES ($1, $2, $3, $4, $5, $6::numeric, $7::numeric)
			ON CONFLICT (transaction_id, line_no) DO NOTHING
		`, transactionID, lineNumber(items, i), item.ProductID, item.ProductNameSnapshot,
			item.Quantity, item.UnitPrice.String(), item.UnitCostAtSale.String())
		if err != nil {
			return classify(fmt.Sprintf("failed to insert line %d of %s", lineNumber(items, i), transactionID), err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return classify("failed to commit line items", err)
	}
	return nil
}

// ListTransactions implements Store. Newest first.
func (p *Postgres) ListTransactions(ctx context.Context, filter Filter) ([]models.TransactionHeader, error) {
	var (
		where []string
		args  []any
	)
	add := func(clause string, arg any) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if filter.CashRegisterID != "" {
		add("cash_register_id = $%d", filter.CashRegisterID)
	}
	if filter.UserID != "" {
		add("user_id = $%d", filter.UserID)
	}
	if filter.Status != "" {
		add("status = $%d", string(filter.Status))
	}
	if !filter.Since.IsZero() {
		add("created_at >= $%d", filter.Since.UTC())
	}
	if !filter.Until.IsZero() {
		add("created_at < $%d", filter.Until.UTC())
	}

	query := `SELECT id::text, user_id, cash_register_id, total_amount::text, discount::text,
		status, payment_method, table_number, customer_id, created_at FROM transactions`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	args = append(args, filter.limit())
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args))

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, classify("failed to list transactions", err)
	}
	defer rows.Close()

	var headers []models.TransactionHeader
	for rows.Next() {
		var (
			h               models.TransactionHeader
			total, discount string
			status          string
			createdAt       time.Time
		)
		if err := rows.Scan(&h.ID, &h.UserID, &h.CashRegisterID, &total, &discount,
			&status, &h.PaymentMethod, &h.TableNumber, &h.CustomerID, &createdAt); err != nil {
			return nil, classify("failed to scan transaction", err)
		}
		if h.TotalAmount, err = decimal.NewFromString(total); err != nil {
			return nil, fmt.Errorf("invalid total for %s: %w", h.ID, err)
		}
		if h.Discount, err = decimal.NewFromString(discount); err != nil {
			return nil, fmt.Errorf("invalid discount for %s: %w", h.ID, err)
		}
		h.Status = models.TransactionStatus(status)
		h.CreatedAt = createdAt.UnixMilli()
		headers = append(headers, h)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("failed to list transactions", err)
	}
	return headers, nil
}

// LineItems implements Store.
func (p *Postgres) LineItems(ctx context.Context, transactionID string) ([]models.TransactionLineItem, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT line_no, product_id, product_name_snapshot, quantity, unit_price::text, unit_cost_at_sale::text
		FROM transaction_items WHERE transaction_id = $1 ORDER BY line_no`, transactionID)
	if err != nil {
		return nil, classify("failed to list line items", err)
	}
	defer rows.Close()

	var items []models.TransactionLineItem
	for rows.Next() {
		var (
			item        models.TransactionLineItem
			price, cost string
		)
		if err := rows.Scan(&item.LineNo, &item.ProductID, &item.ProductNameSnapshot, &item.Quantity, &price, &cost); err != nil {
			return nil, classify("failed to scan line item", err)
		}
		if item.UnitPrice, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("invalid unit price: %w", err)
		}
		if item.UnitCostAtSale, err = decimal.NewFromString(cost); err != nil {
			return nil, fmt.Errorf("invalid unit cost: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("failed to list line items", err)
	}
	return items, nil
}

// Ping implements Store.
func (p *Postgres) Ping(ctx context.Context) error {
	if err := p.pool.Ping(ctx); err != nil {
		return classify("remote ping failed", err)
	}
	return nil
}

// classify maps a database error to REMOTE_REJECTED for data exceptions
// (SQLSTATE class 22) and integrity violations (class 23), and to
// REMOTE_UNAVAILABLE for everything else.
func classify(message string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case strings.HasPrefix(pgErr.Code, "22"), strings.HasPrefix(pgErr.Code, "23"):
			return apperrors.Wrap(apperrors.ErrRemoteRejected, message, err)
		}
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.Wrap(apperrors.ErrNotFound, message, err)
	}
	return apperrors.Wrap(apperrors.ErrRemoteUnavailable, message, err)
}
