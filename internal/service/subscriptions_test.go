package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jask/subwatch/internal/database/repository"
	"github.com/jask/subwatch/internal/lifecycle"
)

func TestCreateSubscription(t *testing.T) {
	t.Parallel()
	e, ctx := setup(t)
	m := e.merchant(t, ctx, "NETFLIX.COM")

	sub := e.subscribe(t, ctx, "u1", m.ID, repository.CycleMonthly, 13500)
	require.Equal(t, repository.StatusActive, sub.Status)
	require.Equal(t, "KRW", sub.Currency)
	require.True(t, sub.AutoRenew)
	require.True(t, sub.StartedAt.Equal(testNow))
	require.NotNil(t, sub.NextBillAt)
	require.True(t, sub.NextBillAt.Equal(testNow.Add(30*24*time.Hour)))

	got, err := e.subscriptions.Get(ctx, sub.ID)
	require.NoError(t, err)
	require.Equal(t, "Netflix", got.MerchantName)
	require.True(t, got.NextBillAt.Equal(*sub.NextBillAt))

	_, err = e.subscriptions.Create(ctx, NewSubscription{UserID: "u1", MerchantID: m.ID, Cycle: repository.CycleMonthly, Price: 13500})
	require.ErrorIs(t, err, ErrConflict)

	_, err = e.subscriptions.Create(ctx, NewSubscription{UserID: "u1", MerchantID: "missing", Cycle: repository.CycleMonthly})
	require.ErrorIs(t, err, ErrNotFound)

	_, err = e.subscriptions.Create(ctx, NewSubscription{UserID: "u1", MerchantID: m.ID, Cycle: "weekly"})
	require.ErrorIs(t, err, ErrInvalid)

	_, err = e.subscriptions.Get(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestCreateStoresUTC(t *testing.T) {
	t.Parallel()
	e, ctx := setup(t)
	kst := time.FixedZone("KST", 9*60*60)

	netflix := e.merchant(t, ctx, "NETFLIX.COM")
	next := time.Date(2024, 6, 1, 8, 0, 0, 0, kst)
	sub, err := e.subscriptions.Create(ctx, NewSubscription{
		UserID:     "u1",
		MerchantID: netflix.ID,
		Cycle:      repository.CycleMonthly,
		Price:      13500,
		StartedAt:  time.Date(2024, 5, 1, 8, 0, 0, 0, kst),
		NextBillAt: &next,
	})
	require.NoError(t, err)
	require.Equal(t, time.UTC, sub.StartedAt.Location())
	require.Equal(t, time.UTC, sub.NextBillAt.Location())
	require.True(t, sub.NextBillAt.Equal(next))

	spotify := e.merchant(t, ctx, "SPOTIFY")
	later := time.Date(2024, 5, 31, 23, 30, 0, 0, time.UTC)
	_, err = e.subscriptions.Create(ctx, NewSubscription{
		UserID:     "u1",
		MerchantID: spotify.ID,
		Cycle:      repository.CycleMonthly,
		Price:      10900,
		NextBillAt: &later,
	})
	require.NoError(t, err)

	subs, err := e.subscriptions.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, subs, 2)
	require.Equal(t, sub.ID, subs[0].ID)
}

func TestTrialHasNoNextBill(t *testing.T) {
	t.Parallel()
	e, ctx := setup(t)
	m := e.merchant(t, ctx, "DISNEY PLUS")
	sub := e.subscribe(t, ctx, "u1", m.ID, repository.CycleTrial, 0)
	require.Nil(t, sub.NextBillAt)
}

func TestLifecycleTransitionsPersist(t *testing.T) {
	t.Parallel()
	e, ctx := setup(t)
	m := e.merchant(t, ctx, "SPOTIFY")
	sub := e.subscribe(t, ctx, "u1", m.ID, repository.CycleMonthly, 10900)

	e.advance(time.Hour)
	paused, err := e.subscriptions.Pause(ctx, sub.ID)
	require.NoError(t, err)
	require.Equal(t, repository.StatusPaused, paused.Status)

	// another subscription may become active while this one is paused
	other := e.subscribe(t, ctx, "u1", m.ID, repository.CycleYearly, 109000)
	_, err = e.subscriptions.Resume(ctx, sub.ID)
	require.ErrorIs(t, err, ErrConflict)

	_, err = e.subscriptions.Cancel(ctx, other.ID)
	require.NoError(t, err)
	resumed, err := e.subscriptions.Resume(ctx, sub.ID)
	require.NoError(t, err)
	require.Equal(t, repository.StatusActive, resumed.Status)

	e.advance(time.Hour)
	canceled, err := e.subscriptions.Cancel(ctx, sub.ID)
	require.NoError(t, err)
	require.NotNil(t, canceled.EndedAt)
	endedAt := *canceled.EndedAt

	e.advance(time.Hour)
	again, err := e.subscriptions.Cancel(ctx, sub.ID)
	require.NoError(t, err)
	require.True(t, again.EndedAt.Equal(endedAt))

	_, err = e.subscriptions.Pause(ctx, sub.ID)
	require.ErrorIs(t, err, ErrInvalid)
	require.ErrorIs(t, err, lifecycle.ErrInvalidTransition)

	stored, err := e.subscriptions.Get(ctx, sub.ID)
	require.NoError(t, err)
	require.Equal(t, repository.StatusCanceled, stored.Status)
	require.True(t, stored.EndedAt.Equal(endedAt))
}

func TestAnalyzeAndStats(t *testing.T) {
	t.Parallel()
	e, ctx := setup(t)
	netflix := e.merchant(t, ctx, "NETFLIX.COM")
	adobe := e.merchant(t, ctx, "ADOBE")
	disney := e.merchant(t, ctx, "DISNEY+")

	e.subscribe(t, ctx, "u1", netflix.ID, repository.CycleMonthly, 13500)
	e.subscribe(t, ctx, "u1", adobe.ID, repository.CycleYearly, 120000)

	// 61 days later both are ghosts; a fresh trial ends in 5 days
	e.advance(61 * 24 * time.Hour)
	ends := e.clock.AddDate(0, 0, 5)
	_, err := e.subscriptions.Create(ctx, NewSubscription{
		UserID: "u1", MerchantID: disney.ID, Cycle: repository.CycleTrial, NextBillAt: &ends,
	})
	require.NoError(t, err)

	report, err := e.subscriptions.Analyze(ctx, "u1")
	require.NoError(t, err)
	require.Empty(t, report.Duplicates)
	require.Len(t, report.Ghosts, 2)
	require.Len(t, report.ExpiringTrials, 1)
	require.Equal(t, 5, report.ExpiringTrials[0].DaysLeft)
	require.False(t, report.Empty())

	st, err := e.subscriptions.Stats(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, 3, st.Active)
	require.Equal(t, 1, st.Trial)
	require.Equal(t, 23500.0, st.TotalMonthlyEquivalent)

	fc, err := e.subscriptions.Forecast(ctx, "u1", 0)
	require.NoError(t, err)
	require.Len(t, fc, 12)
	require.Equal(t, 13500.0, fc[0].EstimatedCost)
}

func TestDeleteSubscriptionChecksOwner(t *testing.T) {
	t.Parallel()
	e, ctx := setup(t)
	m := e.merchant(t, ctx, "NETFLIX.COM")
	sub := e.subscribe(t, ctx, "u1", m.ID, repository.CycleMonthly, 13500)

	require.ErrorIs(t, e.subscriptions.Delete(ctx, sub.ID, "u2"), ErrNotFound)
	require.NoError(t, e.subscriptions.Delete(ctx, sub.ID, "u1"))
	_, err := e.subscriptions.Get(ctx, sub.ID)
	require.ErrorIs(t, err, ErrNotFound)
}
