package service

import (
	"context"
	"fmt"
	"time"

	"github.com/jask/subwatch/internal/analytics"
	"github.com/jask/subwatch/internal/database/repository"
)

// TransactionService exposes transaction reads and status changes.
type TransactionService struct {
	Transactions *repository.TransactionRepo
	Now          func() time.Time
}

// List returns the user's latest transactions; limit <= 0 returns all.
func (s *TransactionService) List(ctx context.Context, userID string, limit int) ([]repository.Transaction, error) {
	return s.Transactions.ListByUser(ctx, userID, limit)
}

func (s *TransactionService) Stats(ctx context.Context, userID string) (analytics.TransactionStats, error) {
	txs, err := s.Transactions.ListByUser(ctx, userID, 0)
	if err != nil {
		return analytics.TransactionStats{}, err
	}
	return analytics.ComputeTransactionStats(txs), nil
}

// SetStatus moves a pending transaction to completed, failed or refunded.
// Settled transactions are immutable.
func (s *TransactionService) SetStatus(ctx context.Context, id, status string) (repository.Transaction, error) {
	t, err := s.Transactions.Get(ctx, id)
	if err != nil {
		return repository.Transaction{}, err
	}
	if t == nil {
		return repository.Transaction{}, fmt.Errorf("transaction %s: %w", id, ErrNotFound)
	}
	if !validTxTransition(t.Status, status) {
		return repository.Transaction{}, fmt.Errorf("%w: transaction %s cannot move from %s to %s", ErrInvalid, id, t.Status, status)
	}
	t.Status = status
	t.UpdatedAt = clock(s.Now)
	if err := s.Transactions.UpdateStatus(ctx, *t); err != nil {
		return repository.Transaction{}, err
	}
	return *t, nil
}

func validTxTransition(from, to string) bool {
	if from != repository.TxPending {
		return false
	}
	switch to {
	case repository.TxCompleted, repository.TxFailed, repository.TxRefunded:
		return true
	}
	return false
}
