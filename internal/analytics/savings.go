package analytics

import (
	"math"
	"sort"
	"time"

	"github.com/jask/subwatch/internal/database/repository"
)

// MonthlySavings converts a saving to its monthly amount. One-time savings
// contribute nothing.
func MonthlySavings(s repository.Saving) float64 {
	switch s.Frequency {
	case repository.FrequencyMonthly:
		return s.Amount
	case repository.FrequencyYearly:
		return s.Amount / 12
	}
	return 0
}

// YearlySavings converts a saving to its yearly amount.
func YearlySavings(s repository.Saving) float64 {
	switch s.Frequency {
	case repository.FrequencyYearly:
		return s.Amount
	case repository.FrequencyMonthly:
		return s.Amount * 12
	}
	return 0
}

// TotalSavings is the cumulative amount saved from start to end date, or to
// now while the saving is open. Recurring savings count at least one period.
func TotalSavings(s repository.Saving, now time.Time) float64 {
	end := now
	if s.EndDate != nil {
		end = *s.EndDate
	}
	years := end.Year() - s.StartDate.Year()
	switch s.Frequency {
	case repository.FrequencyMonthly:
		months := years*12 + int(end.Month()) - int(s.StartDate.Month())
		return s.Amount * float64(max(1, months))
	case repository.FrequencyYearly:
		return s.Amount * float64(max(1, years))
	}
	return s.Amount
}

// SavingActive reports whether the saving is open at now. The end date
// itself still counts.
func SavingActive(s repository.Saving, now time.Time) bool {
	return s.EndDate == nil || !now.After(*s.EndDate)
}

// ActiveSavings filters savings down to the ones open at now.
func ActiveSavings(savings []repository.Saving, now time.Time) []repository.Saving {
	var out []repository.Saving
	for _, s := range savings {
		if SavingActive(s, now) {
			out = append(out, s)
		}
	}
	return out
}

// TrendPoint is the monthly savings started in one calendar month.
type TrendPoint struct {
	Month  string
	Amount float64
}

// SavingsStats summarizes a user's savings.
type SavingsStats struct {
	Total            int
	Active           int
	TotalMonthly     float64
	TotalYearly      float64
	TypeDistribution map[string]int
	MonthlyTrend     []TrendPoint
	AverageMonthly   float64
}

// ComputeSavingsStats summarizes savings. Totals and the trend only count
// active savings; the type distribution counts all of them.
func ComputeSavingsStats(savings []repository.Saving, now time.Time) SavingsStats {
	st := SavingsStats{Total: len(savings), TypeDistribution: map[string]int{}}
	trend := map[string]float64{}
	for _, s := range savings {
		st.TypeDistribution[s.Type]++
		if !SavingActive(s, now) {
			continue
		}
		st.Active++
		st.TotalMonthly += MonthlySavings(s)
		st.TotalYearly += YearlySavings(s)
		trend[s.StartDate.UTC().Format("2006-01")] += MonthlySavings(s)
	}
	for month, amount := range trend {
		st.MonthlyTrend = append(st.MonthlyTrend, TrendPoint{Month: month, Amount: amount})
	}
	sort.Slice(st.MonthlyTrend, func(i, j int) bool { return st.MonthlyTrend[i].Month < st.MonthlyTrend[j].Month })
	if st.Active > 0 {
		st.AverageMonthly = st.TotalMonthly / float64(st.Active)
	}
	return st
}

// Achievement measures savings against goals. Percentages are capped at 100.
type Achievement struct {
	Goals
	MonthlyPct float64
	YearlyPct  float64
	OnTrack    bool
}

// onTrackPct is the uncapped monthly percentage counted as on track.
const onTrackPct = 80

// ComputeAchievement measures totals against goals. Unset goals fall back to
// the NewGoals defaults.
func ComputeAchievement(totalMonthly, totalYearly float64, goals Goals) Achievement {
	goals = NewGoals(goals.Monthly, goals.Yearly)
	monthly := totalMonthly / goals.Monthly * 100
	yearly := totalYearly / goals.Yearly * 100
	return Achievement{
		Goals:      goals,
		MonthlyPct: math.Min(monthly, 100),
		YearlyPct:  math.Min(yearly, 100),
		OnTrack:    monthly >= onTrackPct,
	}
}
