package service

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jask/subwatch/internal/analytics"
	"github.com/jask/subwatch/internal/batchlog"
	"github.com/jask/subwatch/internal/database"
	"github.com/jask/subwatch/internal/database/repository"
)

var testNow = time.Date(2024, 5, 15, 9, 0, 0, 0, time.UTC)

type env struct {
	db            *sql.DB
	clock         *time.Time
	merchants     *MerchantService
	subscriptions *SubscriptionService
	transactions  *TransactionService
	ingest        *IngestService
	alerts        *AlertService
	savings       *SavingsService
}

func setup(t *testing.T) (*env, context.Context) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")
	require.NoError(t, database.RunMigrations(dbPath))
	db, err := database.Open(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	seeds, err := database.LoadRuleSeeds("")
	require.NoError(t, err)
	_, err = database.SeedRules(ctx, db, seeds, "1.0.0")
	require.NoError(t, err)

	batches, err := batchlog.Open(filepath.Join(dir, "batches.bolt"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = batches.Close() })

	current := testNow
	now := func() time.Time { return current }

	subRepo := repository.NewSubscriptionRepo(db)
	txRepo := repository.NewTransactionRepo(db)
	merchants := &MerchantService{
		Rules:     repository.NewRuleRepo(db),
		Merchants: repository.NewMerchantRepo(db),
		Version:   "1.0.0",
		Now:       now,
	}
	subs := &SubscriptionService{
		Subscriptions: subRepo,
		Merchants:     merchants.Merchants,
		Thresholds:    analytics.DefaultThresholds(),
		Now:           now,
	}
	e := &env{
		db:            db,
		clock:         &current,
		merchants:     merchants,
		subscriptions: subs,
		transactions:  &TransactionService{Transactions: txRepo, Now: now},
		ingest: &IngestService{
			Merchants:     merchants,
			Subscriptions: subRepo,
			Transactions:  txRepo,
			Batches:       batches,
			Now:           now,
		},
		alerts: &AlertService{
			Alerts:        repository.NewAlertRepo(db),
			Subscriptions: subs,
			Now:           now,
		},
		savings: &SavingsService{
			Savings:       repository.NewSavingRepo(db),
			Subscriptions: subs,
			Goals:         analytics.NewGoals(50000, 0),
			Now:           now,
		},
	}
	return e, ctx
}

// advance moves the shared test clock forward.
func (e *env) advance(d time.Duration) { *e.clock = e.clock.Add(d) }

func (e *env) merchant(t *testing.T, ctx context.Context, raw string) repository.Merchant {
	t.Helper()
	m, err := e.merchants.Resolve(ctx, raw)
	require.NoError(t, err)
	return m
}

func (e *env) subscribe(t *testing.T, ctx context.Context, userID, merchantID, cycle string, price float64) repository.Subscription {
	t.Helper()
	sub, err := e.subscriptions.Create(ctx, NewSubscription{
		UserID:     userID,
		MerchantID: merchantID,
		Cycle:      cycle,
		Price:      price,
	})
	require.NoError(t, err)
	return sub
}
