package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// MerchantRepo handles canonical merchants.
type MerchantRepo struct{ db *sql.DB }

func NewMerchantRepo(db *sql.DB) *MerchantRepo { return &MerchantRepo{db: db} }

const merchantColumns = `id, name_norm, name_original, category, cancel_url, website, status, ruleset_version, created_at, updated_at`

// CreateOrGet inserts m unless a merchant with the same name_norm exists, then
// returns whichever row is stored. Concurrent callers racing on one name all
// observe the same row.
func (r *MerchantRepo) CreateOrGet(ctx context.Context, m Merchant) (Merchant, error) {
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO merchants(`+merchantColumns+`)
	VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(name_norm) DO NOTHING
	`, m.ID, m.NameNorm, m.NameOriginal, m.Category, m.CancelURL, m.Website, m.Status,
		m.RulesetVersion, m.CreatedAt, m.UpdatedAt)
	if err != nil {
		return Merchant{}, err
	}
	stored, err := r.FindByNormalizedName(ctx, m.NameNorm)
	if err != nil {
		return Merchant{}, err
	}
	if stored == nil {
		return Merchant{}, fmt.Errorf("merchant %q vanished after insert", m.NameNorm)
	}
	return *stored, nil
}

// FindByNormalizedName does an exact, case-sensitive lookup on name_norm.
func (r *MerchantRepo) FindByNormalizedName(ctx context.Context, name string) (*Merchant, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+merchantColumns+` FROM merchants WHERE name_norm = ?`, name)
	return scanMerchantRow(row)
}

func (r *MerchantRepo) Get(ctx context.Context, id string) (*Merchant, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+merchantColumns+` FROM merchants WHERE id = ?`, id)
	return scanMerchantRow(row)
}

func (r *MerchantRepo) List(ctx context.Context) ([]Merchant, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+merchantColumns+` FROM merchants ORDER BY name_norm`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Merchant
	for rows.Next() {
		m, err := scanMerchant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Update writes the mutable merchant columns. Returns ErrDuplicate when the
// new name_norm is taken.
func (r *MerchantRepo) Update(ctx context.Context, m Merchant) error {
	_, err := r.db.ExecContext(ctx, `
	UPDATE merchants SET name_norm = ?, category = ?, cancel_url = ?, website = ?, status = ?, updated_at = ?
	WHERE id = ?
	`, m.NameNorm, m.Category, m.CancelURL, m.Website, m.Status, m.UpdatedAt, m.ID)
	return mapWriteErr(err)
}

// CategoryCounts returns the number of merchants per category.
func (r *MerchantRepo) CategoryCounts(ctx context.Context) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx, `
	SELECT CASE WHEN category = '' THEN 'Unknown' ELSE category END AS c, COUNT(*)
	FROM merchants GROUP BY c`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]int{}
	for rows.Next() {
		var cat string
		var n int
		if err := rows.Scan(&cat, &n); err != nil {
			return nil, err
		}
		out[cat] = n
	}
	return out, rows.Err()
}

func scanMerchantRow(row *sql.Row) (*Merchant, error) {
	m, err := scanMerchant(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}

func scanMerchant(row scanner) (Merchant, error) {
	var m Merchant
	err := row.Scan(&m.ID, &m.NameNorm, &m.NameOriginal, &m.Category, &m.CancelURL, &m.Website,
		&m.Status, &m.RulesetVersion, &m.CreatedAt, &m.UpdatedAt)
	return m, err
}
