// Package analytics runs the pure detection and savings passes over one
// user's subscriptions and savings. Nothing here touches storage; every
// pass is total and returns an empty result for empty input.
package analytics

// Thresholds tune the detection passes and the forecast horizon.
type Thresholds struct {
	GhostDays        int
	TrialDays        int
	PriceIncreasePct float64
	ForecastMonths   int
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		GhostDays:        60,
		TrialDays:        7,
		PriceIncreasePct: 15,
		ForecastMonths:   12,
	}
}

// Goals are the savings targets achievement is measured against.
type Goals struct {
	Monthly float64
	Yearly  float64
}

// DefaultMonthlyGoal is used when no positive monthly goal is configured.
const DefaultMonthlyGoal = 50000

// NewGoals builds goals, deriving the yearly goal as monthly×12 when it is
// not set.
func NewGoals(monthly, yearly float64) Goals {
	if monthly <= 0 {
		monthly = DefaultMonthlyGoal
	}
	if yearly <= 0 {
		yearly = monthly * 12
	}
	return Goals{Monthly: monthly, Yearly: yearly}
}
