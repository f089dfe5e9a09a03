package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jask/subwatch/internal/database/repository"
)

var now = time.Date(2024, 5, 15, 9, 0, 0, 0, time.UTC)

func active(id, merchant string, price float64) repository.Subscription {
	return repository.Subscription{
		ID:           id,
		MerchantID:   merchant,
		MerchantName: merchant,
		Cycle:        repository.CycleMonthly,
		Status:       repository.StatusActive,
		Price:        price,
		UpdatedAt:    now,
	}
}

func ids(subs []repository.Subscription) []string {
	var out []string
	for _, s := range subs {
		out = append(out, s.ID)
	}
	return out
}

func TestDuplicatesIncludeEveryMember(t *testing.T) {
	a := active("A", "M", 10000)
	b := active("B", "M", 12000)
	c := active("C", "M", 9000)
	c.Status = repository.StatusCanceled
	d := active("D", "N", 5000)

	got := Duplicates([]repository.Subscription{a, b, c, d})
	require.Equal(t, []string{"A", "B"}, ids(got))

	groups := DuplicateGroups([]repository.Subscription{a, b, c, d})
	require.Len(t, groups, 1)
	require.Equal(t, "M", groups[0].MerchantID)
	require.Equal(t, SeverityHigh, groups[0].Severity())
}

func TestGhosts(t *testing.T) {
	old := active("old", "M", 1)
	old.UpdatedAt = now.AddDate(0, 0, -61)
	recent := active("recent", "N", 1)
	recent.UpdatedAt = now.AddDate(0, 0, -59)
	paused := active("paused", "P", 1)
	paused.UpdatedAt = now.AddDate(0, 0, -200)
	paused.Status = repository.StatusPaused

	got := Ghosts([]repository.Subscription{old, recent, paused}, now, 60)
	require.Len(t, got, 1)
	require.Equal(t, "old", got[0].Subscription.ID)
	require.Equal(t, 61, got[0].IdleDays)

	exact := active("exact", "E", 1)
	exact.UpdatedAt = now.AddDate(0, 0, -60)
	require.Len(t, Ghosts([]repository.Subscription{exact}, now, 60), 1)
}

func TestExpiringTrials(t *testing.T) {
	trial := func(id string, days int) repository.Subscription {
		s := active(id, id, 0)
		s.Cycle = repository.CycleTrial
		next := now.AddDate(0, 0, days)
		s.NextBillAt = &next
		return s
	}
	five := trial("five", 5)
	ten := trial("ten", 10)
	two := trial("two", 2)
	monthly := active("monthly", "m", 100)
	next := now.AddDate(0, 0, 1)
	monthly.NextBillAt = &next

	got := ExpiringTrials([]repository.Subscription{five, ten, two, monthly}, now, 7)
	require.Len(t, got, 2)
	require.Equal(t, "two", got[0].Subscription.ID)
	require.Equal(t, 2, got[0].DaysLeft)
	require.Equal(t, "five", got[1].Subscription.ID)
	require.Equal(t, SeverityUrgent, got[1].Severity())
}

func TestPriceIncreasesFirstSignalWins(t *testing.T) {
	s := active("s", "M", 10000)
	s.Transactions = []repository.Transaction{
		{Amount: 10500},
		{Amount: 12000},
		{Amount: 20000},
	}
	steady := active("steady", "N", 10000)
	steady.Transactions = []repository.Transaction{{Amount: 11000}, {Amount: 0}}
	free := active("free", "F", 0)
	free.Transactions = []repository.Transaction{{Amount: 5000}}

	got := PriceIncreases([]repository.Subscription{s, steady, free}, 15)
	require.Len(t, got, 1)
	require.Equal(t, 10000.0, got[0].OldPrice)
	require.Equal(t, 12000.0, got[0].NewPrice)
	require.InDelta(t, 20.0, got[0].IncreasePct, 1e-9)
}

func TestPriceDropIsReportedNegative(t *testing.T) {
	s := active("s", "M", 10000)
	s.Transactions = []repository.Transaction{{Amount: 5000}}
	got := PriceIncreases([]repository.Subscription{s}, 15)
	require.Len(t, got, 1)
	require.InDelta(t, -50.0, got[0].IncreasePct, 1e-9)
}

func TestEmptyInputYieldsEmptyFindings(t *testing.T) {
	require.Empty(t, Duplicates(nil))
	require.Empty(t, Ghosts(nil, now, 60))
	require.Empty(t, ExpiringTrials(nil, now, 7))
	require.Empty(t, PriceIncreases(nil, 15))
	require.Empty(t, Recommendations(nil))
}

func TestRecommendations(t *testing.T) {
	a := active("A", "M", 10000)
	b := active("B", "M", 12000)
	c := active("C", "N", 3000)
	d := active("D", "N", 3000)
	solo := active("solo", "S", 9900)

	got := Recommendations([]repository.Subscription{c, a, b, d, solo})
	// yearly conversion never yields savings
	require.Len(t, got, 2)
	require.Equal(t, RecommendDuplicateRemoval, got[0].Type)
	require.Equal(t, "M", got[0].MerchantID)
	require.Equal(t, 12000.0, got[0].PotentialSavings)
	require.Equal(t, 22000.0, got[0].CurrentCost)
	require.Equal(t, 10000.0, got[0].RecommendedCost)
	require.Equal(t, 3000.0, got[1].PotentialSavings)
}
