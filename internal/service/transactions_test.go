package service

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jask/subwatch/internal/database"
	"github.com/jask/subwatch/internal/database/repository"
	"github.com/jask/subwatch/internal/rowsource"
)

func TestTransactionStatusTransitions(t *testing.T) {
	t.Parallel()
	e, ctx := setup(t)
	m := e.merchant(t, ctx, "NETFLIX.COM")

	now := database.Now()
	pending := repository.Transaction{
		ID: "tx-pending", UserID: "u1", MerchantID: m.ID, Amount: 13500, Currency: "KRW",
		Status: repository.TxPending, TransactionDate: now, CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, e.transactions.Transactions.Insert(ctx, pending))

	got, err := e.transactions.SetStatus(ctx, pending.ID, repository.TxRefunded)
	require.NoError(t, err)
	require.Equal(t, repository.TxRefunded, got.Status)

	_, err = e.transactions.SetStatus(ctx, pending.ID, repository.TxCompleted)
	require.ErrorIs(t, err, ErrInvalid)
	_, err = e.transactions.SetStatus(ctx, "missing", repository.TxCompleted)
	require.ErrorIs(t, err, ErrNotFound)

	pending.ID, pending.Status = "tx-2", repository.TxPending
	require.NoError(t, e.transactions.Transactions.Insert(ctx, pending))
	_, err = e.transactions.SetStatus(ctx, "tx-2", repository.TxPending)
	require.ErrorIs(t, err, ErrInvalid)
}

func TestTransactionStats(t *testing.T) {
	t.Parallel()
	e, ctx := setup(t)
	_, err := e.ingest.IngestRows(ctx, "u1", []rowsource.Row{
		{"merchant": "NETFLIX.COM", "amount": "13500", "date": "2024-01-05"},
		{"merchant": "NETFLIX.COM", "amount": "13500", "date": "2024-02-05"},
		{"merchant": "SPOTIFY", "amount": "10900", "date": "2024-02-07"},
	})
	require.NoError(t, err)

	st, err := e.transactions.Stats(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, 3, st.Count)
	require.Equal(t, 2, st.MerchantCount)
	require.Equal(t, 37900.0, st.TotalAmount)
	require.Len(t, st.MonthlySpending, 2)

	latest, err := e.transactions.List(ctx, "u1", 1)
	require.NoError(t, err)
	require.Len(t, latest, 1)
	require.Equal(t, "SPOTIFY", latest[0].Description)
}
