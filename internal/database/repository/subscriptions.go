package repository

import (
	"context"
	"database/sql"
)

// SubscriptionRepo handles subscriptions.
type SubscriptionRepo struct {
	db *sql.DB
}

func NewSubscriptionRepo(db *sql.DB) *SubscriptionRepo { return &SubscriptionRepo{db: db} }

const subscriptionColumns = `s.id, s.user_id, s.merchant_id, COALESCE(m.name_norm, ''), s.plan, s.cycle, s.price, s.currency,
 s.status, s.started_at, s.ended_at, s.next_bill_at, s.auto_renew, s.created_at, s.updated_at`

const subscriptionFrom = ` FROM subscriptions s LEFT JOIN merchants m ON m.id = s.merchant_id`

// Create inserts a subscription, storing its times in UTC. A second active
// subscription for the same user and merchant is rejected with ErrDuplicate.
func (r *SubscriptionRepo) Create(ctx context.Context, s Subscription) error {
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO subscriptions(
	 id, user_id, merchant_id, plan, cycle, price, currency, status,
	 started_at, ended_at, next_bill_at, auto_renew, created_at, updated_at)
	VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, s.ID, s.UserID, s.MerchantID, s.Plan, s.Cycle, s.Price, s.Currency, s.Status,
		s.StartedAt.UTC(), utcPtr(s.EndedAt), utcPtr(s.NextBillAt), s.AutoRenew, s.CreatedAt.UTC(), s.UpdatedAt.UTC())
	return mapWriteErr(err)
}

// Update saves the mutable columns, including updated_at exactly as given.
func (r *SubscriptionRepo) Update(ctx context.Context, s Subscription) error {
	_, err := r.db.ExecContext(ctx, `
	UPDATE subscriptions SET
	 plan = ?, cycle = ?, price = ?, currency = ?, status = ?,
	 ended_at = ?, next_bill_at = ?, auto_renew = ?, updated_at = ?
	WHERE id = ?
	`, s.Plan, s.Cycle, s.Price, s.Currency, s.Status,
		utcPtr(s.EndedAt), utcPtr(s.NextBillAt), s.AutoRenew, s.UpdatedAt.UTC(), s.ID)
	return mapWriteErr(err)
}

func (r *SubscriptionRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM subscriptions WHERE id = ?`, id)
	return err
}

func (r *SubscriptionRepo) Get(ctx context.Context, id string) (*Subscription, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+subscriptionColumns+subscriptionFrom+` WHERE s.id = ?`, id)
	s, err := scanSubscription(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

// FindActive returns the active subscription for a user and merchant, if any.
func (r *SubscriptionRepo) FindActive(ctx context.Context, userID, merchantID string) (*Subscription, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+subscriptionColumns+subscriptionFrom+`
	WHERE s.user_id = ? AND s.merchant_id = ? AND s.status = 'active'`, userID, merchantID)
	s, err := scanSubscription(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

// ListByUser returns the user's subscriptions ordered by next bill date, each
// with its linked transactions in date order.
func (r *SubscriptionRepo) ListByUser(ctx context.Context, userID string) ([]Subscription, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+subscriptionColumns+subscriptionFrom+`
	WHERE s.user_id = ?
	ORDER BY s.next_bill_at IS NULL, s.next_bill_at ASC, s.created_at ASC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Subscription
	for rows.Next() {
		s, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	txRepo := NewTransactionRepo(r.db)
	for i := range out {
		txs, err := txRepo.ListBySubscription(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Transactions = txs
	}
	return out, nil
}

func scanSubscription(row scanner) (Subscription, error) {
	var s Subscription
	var ended, next sql.NullTime
	if err := row.Scan(&s.ID, &s.UserID, &s.MerchantID, &s.MerchantName, &s.Plan, &s.Cycle, &s.Price,
		&s.Currency, &s.Status, &s.StartedAt, &ended, &next, &s.AutoRenew, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return Subscription{}, err
	}
	s.EndedAt = timePtr(ended)
	s.NextBillAt = timePtr(next)
	s.StartedAt = s.StartedAt.UTC()
	s.CreatedAt = s.CreatedAt.UTC()
	s.UpdatedAt = s.UpdatedAt.UTC()
	return s, nil
}
