package analytics

import (
	"time"

	"github.com/jask/subwatch/internal/database/repository"
	"github.com/jask/subwatch/internal/lifecycle"
)

// ForecastEntry is the projected spend for one calendar month.
type ForecastEntry struct {
	Month             string
	EstimatedCost     float64
	SubscriptionCount int
}

// Forecast projects spend for the next months starting with now's month.
// Monthly subscriptions bill every month; yearly ones bill in the month of
// year of their next bill date, regardless of year.
func Forecast(subs []repository.Subscription, months int, now time.Time) []ForecastEntry {
	active := 0
	for _, s := range subs {
		if lifecycle.IsActive(s) {
			active++
		}
	}
	out := make([]ForecastEntry, 0, max(months, 0))
	for i := 0; i < months; i++ {
		date := now.AddDate(0, i, 0)
		var cost float64
		for _, s := range subs {
			if !lifecycle.IsActive(s) {
				continue
			}
			switch s.Cycle {
			case repository.CycleMonthly:
				cost += s.Price
			case repository.CycleYearly:
				if s.NextBillAt != nil && s.NextBillAt.In(now.Location()).Month() == date.Month() {
					cost += s.Price
				}
			}
		}
		out = append(out, ForecastEntry{
			Month:             date.Format("2006-01"),
			EstimatedCost:     cost,
			SubscriptionCount: active,
		})
	}
	return out
}

// SubscriptionStats summarizes a user's subscriptions.
type SubscriptionStats struct {
	Total                  int
	Active                 int
	Monthly                int
	Yearly                 int
	Trial                  int
	TotalMonthlySpending   float64
	TotalYearlySpending    float64
	TotalMonthlyEquivalent float64
	AverageMonthlySpending float64
}

// ComputeSubscriptionStats counts subscriptions and sums spend over the
// active ones.
func ComputeSubscriptionStats(subs []repository.Subscription) SubscriptionStats {
	st := SubscriptionStats{Total: len(subs)}
	for _, s := range subs {
		if !lifecycle.IsActive(s) {
			continue
		}
		st.Active++
		switch s.Cycle {
		case repository.CycleMonthly:
			st.Monthly++
			st.TotalMonthlySpending += s.Price
		case repository.CycleYearly:
			st.Yearly++
			st.TotalYearlySpending += s.Price
		case repository.CycleTrial:
			st.Trial++
		}
		st.TotalMonthlyEquivalent += lifecycle.MonthlyEquivalent(s)
	}
	if st.Active > 0 {
		st.AverageMonthlySpending = st.TotalMonthlyEquivalent / float64(st.Active)
	}
	return st
}
