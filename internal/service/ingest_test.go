package service

import (
	"bytes"
	"log"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jask/subwatch/internal/database/repository"
	"github.com/jask/subwatch/internal/rowsource"
)

func TestIngestRowsResolvesAndSkips(t *testing.T) {
	t.Parallel()
	e, ctx := setup(t)
	var logs bytes.Buffer
	e.ingest.Log = log.New(&logs, "", 0)

	rows := []rowsource.Row{
		{"merchant": "NETFLIX.COM", "amount": "13,500", "date": "2024-01-05"},
		{"Merchant": "Netflix*", "Amount": "-13500", "Date": "2024-02-05"},
		{"description": "SPOTIFY AB", "AMOUNT": "₩10,900", "DATE": "2024/02/07"},
		{"merchant": "", "amount": "1000", "date": "2024-02-08"},
		{"merchant": "Local Gym", "amount": "abc", "date": "2024-02-08"},
		{"merchant": "Local Gym", "amount": "0", "date": "2024-02-08"},
		{"merchant": "Local Gym", "amount": "50000", "date": "yesterday"},
		{"merchant": "NETFLIX.COM", "amount": "13500", "date": "2024-01-05"},
	}
	res, err := e.ingest.IngestRows(ctx, "u1", rows)
	require.NoError(t, err)
	require.Equal(t, 3, res.Processed)
	require.Equal(t, 5, res.Skipped)
	require.Len(t, res.Errors, 4)
	require.Contains(t, logs.String(), "line 6 amount")
	require.Equal(t, map[string][]string{"SPOTIFY AB": {"Spotify"}}, res.Suggestions)

	merchants, err := e.merchants.ListMerchants(ctx)
	require.NoError(t, err)
	names := map[string]string{}
	for _, m := range merchants {
		names[m.NameNorm] = m.Category
	}
	require.Equal(t, map[string]string{"Netflix": "OTT", "SPOTIFY AB": "Unknown"}, names)

	txs, err := e.transactions.List(ctx, "u1", 0)
	require.NoError(t, err)
	require.Len(t, txs, 3)
	for _, tx := range txs {
		require.Greater(t, tx.Amount, 0.0)
		require.Equal(t, repository.TxCompleted, tx.Status)
		require.Nil(t, tx.SubscriptionID)
	}
}

func TestIngestLinksActiveSubscription(t *testing.T) {
	t.Parallel()
	e, ctx := setup(t)
	m := e.merchant(t, ctx, "NETFLIX.COM")
	sub := e.subscribe(t, ctx, "u1", m.ID, repository.CycleMonthly, 10000)

	res, err := e.ingest.IngestRows(ctx, "u1", []rowsource.Row{
		{"merchant": "NETFLIX KOREA", "amount": "13500", "date": "2024-03-01"},
	})
	require.NoError(t, err)
	require.Equal(t, 1, res.Processed)

	subs, err := e.subscriptions.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, subs, 1)
	require.Len(t, subs[0].Transactions, 1)
	require.Equal(t, sub.ID, *subs[0].Transactions[0].SubscriptionID)

	report, err := e.subscriptions.Analyze(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, report.PriceIncreases, 1)
	require.InDelta(t, 35.0, report.PriceIncreases[0].IncreasePct, 1e-9)

	// another user's upload does not link to u1's subscription
	res, err = e.ingest.IngestRows(ctx, "u2", []rowsource.Row{
		{"merchant": "NETFLIX KOREA", "amount": "13500", "date": "2024-03-01"},
	})
	require.NoError(t, err)
	require.Equal(t, 1, res.Processed)
	txs, err := e.transactions.List(ctx, "u2", 0)
	require.NoError(t, err)
	require.Nil(t, txs[0].SubscriptionID)
}

func TestIngestFileReplay(t *testing.T) {
	t.Parallel()
	e, ctx := setup(t)
	data := []byte(strings.Join([]string{
		"merchant,amount,date",
		"NETFLIX.COM,13500,2024-01-05",
		"YOUTUBE PREMIUM,14900,2024-01-09",
		"Mystery,,2024-01-10",
	}, "\n"))

	first, err := e.ingest.IngestFile(ctx, "u1", "statement.csv", data)
	require.NoError(t, err)
	require.False(t, first.Replayed)
	require.Equal(t, 2, first.Processed)
	require.Equal(t, 1, first.Skipped)

	second, err := e.ingest.IngestFile(ctx, "u1", "statement.csv", data)
	require.NoError(t, err)
	require.True(t, second.Replayed)
	require.Equal(t, first.Processed, second.Processed)
	require.Equal(t, first.Skipped, second.Skipped)
	require.Len(t, second.Errors, 1)

	// without the ledger the rows are still deduplicated by source hash
	e.ingest.Batches = nil
	third, err := e.ingest.IngestFile(ctx, "u1", "statement.csv", data)
	require.NoError(t, err)
	require.Equal(t, 0, third.Processed)
	require.Equal(t, 3, third.Skipped)

	_, err = e.ingest.IngestFile(ctx, "u1", "statement.pdf", data)
	require.ErrorIs(t, err, rowsource.ErrUnsupported)

	_, err = e.ingest.IngestRows(ctx, "", nil)
	require.ErrorIs(t, err, ErrInvalid)
}

func TestIngestFileReportsSourceLines(t *testing.T) {
	t.Parallel()
	e, ctx := setup(t)
	data := []byte("merchant,amount,date\n\nNETFLIX.COM,13500,2024-01-05\n,,\nLocal Gym,abc,2024-01-06\nSPOTIFY,10900,\n")

	res, err := e.ingest.IngestFile(ctx, "u1", "statement.csv", data)
	require.NoError(t, err)
	require.Equal(t, 1, res.Processed)
	require.Equal(t, 2, res.Skipped)
	require.Len(t, res.Errors, 2)
	require.Contains(t, res.Errors[0].Error(), "line 5 amount")
	require.Contains(t, res.Errors[1].Error(), "line 6 date")
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"13,500", "13500", true},
		{"-9.99", "9.99", true},
		{"₩ 1,000원", "1000", true},
		{"", "", false},
		{"0.00", "", false},
		{"1-2", "", false},
	}
	for _, tt := range tests {
		got, err := parseAmount(tt.in)
		if !tt.ok {
			require.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		require.Equal(t, tt.want, got.String())
	}
}
