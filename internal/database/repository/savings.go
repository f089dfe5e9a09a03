package repository

import (
	"context"
	"database/sql"
)

// SavingRepo handles savings events.
type SavingRepo struct{ db *sql.DB }

func NewSavingRepo(db *sql.DB) *SavingRepo { return &SavingRepo{db: db} }

const savingColumns = `id, user_id, type, title, description, amount, currency, frequency,
 start_date, end_date, source_key, created_at, updated_at`

func (r *SavingRepo) Create(ctx context.Context, s Saving) error {
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO savings(`+savingColumns+`)
	VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, s.ID, s.UserID, s.Type, s.Title, s.Description, s.Amount, s.Currency, s.Frequency,
		s.StartDate, s.EndDate, s.SourceKey, s.CreatedAt, s.UpdatedAt)
	return mapWriteErr(err)
}

// CreateIfAbsent inserts s unless a saving with the same user, type and
// source key exists. It reports whether a row was written.
func (r *SavingRepo) CreateIfAbsent(ctx context.Context, s Saving) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
	INSERT INTO savings(`+savingColumns+`)
	VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(user_id, type, source_key) DO NOTHING
	`, s.ID, s.UserID, s.Type, s.Title, s.Description, s.Amount, s.Currency, s.Frequency,
		s.StartDate, s.EndDate, s.SourceKey, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Delete removes a user's saving and reports whether it existed.
func (r *SavingRepo) Delete(ctx context.Context, id, userID string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM savings WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListByUser returns all of the user's savings, newest start first.
func (r *SavingRepo) ListByUser(ctx context.Context, userID string) ([]Saving, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+savingColumns+` FROM savings WHERE user_id = ? ORDER BY start_date DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Saving
	for rows.Next() {
		var s Saving
		var end sql.NullTime
		var key sql.NullString
		if err := rows.Scan(&s.ID, &s.UserID, &s.Type, &s.Title, &s.Description, &s.Amount, &s.Currency,
			&s.Frequency, &s.StartDate, &end, &key, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		s.StartDate = s.StartDate.UTC()
		s.EndDate = timePtr(end)
		s.SourceKey = strPtr(key)
		out = append(out, s)
	}
	return out, rows.Err()
}
