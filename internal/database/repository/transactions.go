package repository

import (
	"context"
	"database/sql"
)

// TransactionRepo handles transactions.
type TransactionRepo struct {
	db *sql.DB
}

func NewTransactionRepo(db *sql.DB) *TransactionRepo { return &TransactionRepo{db: db} }

const transactionColumns = `id, user_id, merchant_id, subscription_id, amount, currency, status,
 transaction_date, description, source_hash, created_at, updated_at`

// Insert stores a transaction. A repeated source hash yields ErrDuplicate.
func (r *TransactionRepo) Insert(ctx context.Context, t Transaction) error {
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO transactions(`+transactionColumns+`)
	VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, t.ID, t.UserID, t.MerchantID, t.SubscriptionID, t.Amount, t.Currency, t.Status,
		t.TransactionDate, t.Description, t.SourceHash, t.CreatedAt, t.UpdatedAt)
	return mapWriteErr(err)
}

func (r *TransactionRepo) UpdateStatus(ctx context.Context, t Transaction) error {
	_, err := r.db.ExecContext(ctx, `UPDATE transactions SET status = ?, updated_at = ? WHERE id = ?`, t.Status, t.UpdatedAt, t.ID)
	return err
}

func (r *TransactionRepo) Get(ctx context.Context, id string) (*Transaction, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = ?`, id)
	t, err := scanTransaction(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

// ListBySubscription returns linked transactions, oldest first.
func (r *TransactionRepo) ListBySubscription(ctx context.Context, subscriptionID string) ([]Transaction, error) {
	return r.list(ctx, `SELECT `+transactionColumns+` FROM transactions
	WHERE subscription_id = ? ORDER BY transaction_date ASC, created_at ASC`, subscriptionID)
}

// ListByUser returns the user's most recent transactions. limit <= 0 means all.
func (r *TransactionRepo) ListByUser(ctx context.Context, userID string, limit int) ([]Transaction, error) {
	if limit <= 0 {
		limit = -1
	}
	return r.list(ctx, `SELECT `+transactionColumns+` FROM transactions
	WHERE user_id = ? ORDER BY transaction_date DESC, created_at DESC LIMIT ?`, userID, limit)
}

func (r *TransactionRepo) list(ctx context.Context, query string, args ...interface{}) ([]Transaction, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func scanTransaction(row scanner) (Transaction, error) {
	var t Transaction
	var sub, source sql.NullString
	if err := row.Scan(&t.ID, &t.UserID, &t.MerchantID, &sub, &t.Amount, &t.Currency, &t.Status,
		&t.TransactionDate, &t.Description, &source, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return Transaction{}, err
	}
	t.SubscriptionID = strPtr(sub)
	t.SourceHash = strPtr(source)
	t.TransactionDate = t.TransactionDate.UTC()
	return t, nil
}
