package service

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jask/subwatch/internal/batchlog"
	"github.com/jask/subwatch/internal/database"
)

// MaintenanceService houses destructive/ops actions surfaced through the CLI.
type MaintenanceService struct {
	DB *sql.DB
	// Batches, when set, is cleared along with the rows so a wiped upload
	// can be ingested again.
	Batches *batchlog.Store
}

// userTables hold per-user rows, children first.
var userTables = []string{"alerts", "savings", "transactions", "subscriptions"}

// Reset wipes all user data and merchants. Normalization rules and the schema
// stay so the next run resolves against the same rule set.
func (s *MaintenanceService) Reset(ctx context.Context) error {
	if s.DB == nil {
		return fmt.Errorf("maintenance: db not configured")
	}
	if err := database.WithTx(ctx, s.DB, func(tx *sql.Tx) error {
		for _, t := range append(userTables, "merchants") {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+t); err != nil {
				return fmt.Errorf("reset table %s: %w", t, err)
			}
		}
		return nil
	}); err != nil {
		return err
	}
	_, _ = s.DB.ExecContext(ctx, "VACUUM")
	if s.Batches != nil {
		if err := s.Batches.Clear(); err != nil {
			return fmt.Errorf("reset batch log: %w", err)
		}
	}
	return nil
}

// ResetUser deletes one user's rows. Shared merchants are kept.
func (s *MaintenanceService) ResetUser(ctx context.Context, userID string) error {
	if s.DB == nil {
		return fmt.Errorf("maintenance: db not configured")
	}
	err := database.WithTx(ctx, s.DB, func(tx *sql.Tx) error {
		for _, t := range userTables {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+t+" WHERE user_id = ?", userID); err != nil {
				return fmt.Errorf("reset %s for %s: %w", t, userID, err)
			}
		}
		return nil
	})
	if err != nil || s.Batches == nil {
		return err
	}
	entries, err := s.Batches.List(userID)
	if err != nil {
		return fmt.Errorf("list batches for %s: %w", userID, err)
	}
	for _, e := range entries {
		if err := s.Batches.Forget(e.Digest); err != nil {
			return fmt.Errorf("forget batch %s: %w", e.Source, err)
		}
	}
	return nil
}
