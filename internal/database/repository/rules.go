package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// RuleRepo stores normalization rules.
type RuleRepo struct{ db *sql.DB }

func NewRuleRepo(db *sql.DB) *RuleRepo { return &RuleRepo{db: db} }

const ruleColumns = `id, canonical_name, synonyms, category, cancel_url, website, ruleset_version, priority, is_active, created_at, updated_at`

// Create inserts a rule. Returns ErrDuplicate when the id already exists.
func (r *RuleRepo) Create(ctx context.Context, nr NormalizationRule) error {
	syn, err := json.Marshal(nr.Synonyms)
	if err != nil {
		return fmt.Errorf("encode synonyms: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
	INSERT INTO normalization_rules(`+ruleColumns+`)
	VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, nr.ID, nr.CanonicalName, string(syn), nr.Category, nr.CancelURL, nr.Website,
		nr.RulesetVersion, nr.Priority, nr.IsActive, nr.CreatedAt, nr.UpdatedAt)
	return mapWriteErr(err)
}

// CreateIfAbsent inserts the rule unless its id is already present. It reports
// whether a row was written.
func (r *RuleRepo) CreateIfAbsent(ctx context.Context, nr NormalizationRule) (bool, error) {
	syn, err := json.Marshal(nr.Synonyms)
	if err != nil {
		return false, fmt.Errorf("encode synonyms: %w", err)
	}
	res, err := r.db.ExecContext(ctx, `
	INSERT INTO normalization_rules(`+ruleColumns+`)
	VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO NOTHING
	`, nr.ID, nr.CanonicalName, string(syn), nr.Category, nr.CancelURL, nr.Website,
		nr.RulesetVersion, nr.Priority, nr.IsActive, nr.CreatedAt, nr.UpdatedAt)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Update overwrites every mutable column of the rule.
func (r *RuleRepo) Update(ctx context.Context, nr NormalizationRule) error {
	syn, err := json.Marshal(nr.Synonyms)
	if err != nil {
		return fmt.Errorf("encode synonyms: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
	UPDATE normalization_rules SET
	 canonical_name = ?, synonyms = ?, category = ?, cancel_url = ?, website = ?,
	 ruleset_version = ?, priority = ?, is_active = ?, updated_at = ?
	WHERE id = ?
	`, nr.CanonicalName, string(syn), nr.Category, nr.CancelURL, nr.Website,
		nr.RulesetVersion, nr.Priority, nr.IsActive, nr.UpdatedAt, nr.ID)
	return err
}

func (r *RuleRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM normalization_rules WHERE id = ?`, id)
	return err
}

func (r *RuleRepo) Get(ctx context.Context, id string) (*NormalizationRule, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+ruleColumns+` FROM normalization_rules WHERE id = ?`, id)
	nr, err := scanRule(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &nr, nil
}

// ListActive returns active rules ordered by priority desc, canonical name asc.
func (r *RuleRepo) ListActive(ctx context.Context) ([]NormalizationRule, error) {
	return r.list(ctx, `
	SELECT `+ruleColumns+` FROM normalization_rules
	WHERE is_active = 1
	ORDER BY priority DESC, canonical_name ASC`)
}

// List returns every rule, inactive ones included, in match order.
func (r *RuleRepo) List(ctx context.Context) ([]NormalizationRule, error) {
	return r.list(ctx, `
	SELECT `+ruleColumns+` FROM normalization_rules
	ORDER BY priority DESC, canonical_name ASC`)
}

func (r *RuleRepo) list(ctx context.Context, query string) ([]NormalizationRule, error) {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []NormalizationRule
	for rows.Next() {
		nr, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, nr)
	}
	return out, rows.Err()
}

func scanRule(row scanner) (NormalizationRule, error) {
	var nr NormalizationRule
	var syn string
	if err := row.Scan(&nr.ID, &nr.CanonicalName, &syn, &nr.Category, &nr.CancelURL, &nr.Website,
		&nr.RulesetVersion, &nr.Priority, &nr.IsActive, &nr.CreatedAt, &nr.UpdatedAt); err != nil {
		return NormalizationRule{}, err
	}
	if err := json.Unmarshal([]byte(syn), &nr.Synonyms); err != nil {
		return NormalizationRule{}, fmt.Errorf("decode synonyms for rule %s: %w", nr.ID, err)
	}
	return nr, nil
}
