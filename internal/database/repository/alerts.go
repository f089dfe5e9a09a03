package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// AlertRepo handles alerts.
type AlertRepo struct{ db *sql.DB }

func NewAlertRepo(db *sql.DB) *AlertRepo { return &AlertRepo{db: db} }

const alertColumns = `id, user_id, type, title, message, status, priority, meta, dedupe_key, read_at, created_at, updated_at`

func (r *AlertRepo) Create(ctx context.Context, a Alert) error {
	meta := a.Meta
	if meta == nil {
		meta = map[string]any{}
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("encode alert meta: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
	INSERT INTO alerts(`+alertColumns+`)
	VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, a.ID, a.UserID, a.Type, a.Title, a.Message, a.Status, a.Priority, string(raw), a.DedupeKey,
		a.ReadAt, a.CreatedAt, a.UpdatedAt)
	return err
}

// UpdateStatus saves status, read_at and updated_at.
func (r *AlertRepo) UpdateStatus(ctx context.Context, a Alert) error {
	_, err := r.db.ExecContext(ctx, `UPDATE alerts SET status = ?, read_at = ?, updated_at = ? WHERE id = ?`,
		a.Status, a.ReadAt, a.UpdatedAt, a.ID)
	return err
}

// Get returns the user's alert by id.
func (r *AlertRepo) Get(ctx context.Context, id, userID string) (*Alert, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+alertColumns+` FROM alerts WHERE id = ? AND user_id = ?`, id, userID)
	a, err := scanAlert(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &a, nil
}

// ListByUser returns alerts newest first; an empty status means all.
func (r *AlertRepo) ListByUser(ctx context.Context, userID, status string) ([]Alert, error) {
	query := `SELECT ` + alertColumns + ` FROM alerts WHERE user_id = ?`
	args := []interface{}{userID}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC, id`
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// HasOpen reports whether an undismissed alert with the dedupe key exists.
func (r *AlertRepo) HasOpen(ctx context.Context, userID, dedupeKey string) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM alerts WHERE user_id = ? AND dedupe_key = ? AND status != 'dismissed'`,
		userID, dedupeKey).Scan(&n)
	return n > 0, err
}

func (r *AlertRepo) Delete(ctx context.Context, id, userID string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM alerts WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func scanAlert(row scanner) (Alert, error) {
	var a Alert
	var meta string
	var readAt sql.NullTime
	if err := row.Scan(&a.ID, &a.UserID, &a.Type, &a.Title, &a.Message, &a.Status, &a.Priority, &meta,
		&a.DedupeKey, &readAt, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return Alert{}, err
	}
	if err := json.Unmarshal([]byte(meta), &a.Meta); err != nil {
		return Alert{}, fmt.Errorf("decode alert meta: %w", err)
	}
	a.ReadAt = timePtr(readAt)
	return a, nil
}
