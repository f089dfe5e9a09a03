// Package lifecycle holds the subscription state machine and billing math.
//
// States are active, paused and canceled. Canceled is terminal, active and
// paused are interchangeable, and every state may be canceled. Transitions
// mutate the subscription in place and stamp UpdatedAt.
package lifecycle

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/jask/subwatch/internal/database/repository"
)

// ErrInvalidTransition is returned when a canceled subscription is paused or
// resumed.
var ErrInvalidTransition = errors.New("invalid subscription transition")

const (
	monthlyPeriod = 30 * 24 * time.Hour
	yearlyPeriod  = 365 * 24 * time.Hour
)

// Pause moves an active subscription to paused. Pausing a paused
// subscription overwrites it again.
func Pause(s *repository.Subscription, now time.Time) error {
	if s.Status == repository.StatusCanceled {
		return fmt.Errorf("pause %s: %w", s.ID, ErrInvalidTransition)
	}
	s.Status = repository.StatusPaused
	s.UpdatedAt = now
	return nil
}

// Resume moves a paused subscription back to active and fills in a missing
// next bill date. Resuming an active subscription does nothing.
func Resume(s *repository.Subscription, now time.Time) error {
	switch s.Status {
	case repository.StatusCanceled:
		return fmt.Errorf("resume %s: %w", s.ID, ErrInvalidTransition)
	case repository.StatusActive:
		return nil
	}
	s.Status = repository.StatusActive
	EnsureNextBill(s, now)
	s.UpdatedAt = now
	return nil
}

// Cancel ends the subscription. A second cancel keeps the original end date.
func Cancel(s *repository.Subscription, now time.Time) {
	if s.Status == repository.StatusCanceled {
		return
	}
	s.Status = repository.StatusCanceled
	ended := now
	s.EndedAt = &ended
	s.UpdatedAt = now
}

// EnsureNextBill sets NextBillAt when it is unset, counting 30 days for a
// monthly cycle and 365 for a yearly one from now. Trials and canceled
// subscriptions are left alone. It reports whether the date changed.
func EnsureNextBill(s *repository.Subscription, now time.Time) bool {
	if s.NextBillAt != nil || s.Status == repository.StatusCanceled {
		return false
	}
	next, ok := NextBillFrom(s.Cycle, now)
	if !ok {
		return false
	}
	s.NextBillAt = &next
	return true
}

// NextBillFrom returns now plus one fixed-length billing period.
func NextBillFrom(cycle string, now time.Time) (time.Time, bool) {
	switch cycle {
	case repository.CycleMonthly:
		return now.Add(monthlyPeriod), true
	case repository.CycleYearly:
		return now.Add(yearlyPeriod), true
	}
	return time.Time{}, false
}

func IsActive(s repository.Subscription) bool { return s.Status == repository.StatusActive }

func IsTrial(s repository.Subscription) bool { return s.Cycle == repository.CycleTrial }

// IsExpired reports whether now is past the next bill date. Subscriptions
// without one never expire.
func IsExpired(s repository.Subscription, now time.Time) bool {
	return s.NextBillAt != nil && now.After(*s.NextBillAt)
}

// DaysUntilNextBill is the ceiling of the day difference to the next bill,
// negative once it has passed. ok is false without a next bill date.
func DaysUntilNextBill(s repository.Subscription, now time.Time) (days int, ok bool) {
	if s.NextBillAt == nil {
		return 0, false
	}
	d := s.NextBillAt.Sub(now).Hours() / 24
	return int(math.Ceil(d)), true
}

// MonthlyEquivalent normalizes the price to a monthly cadence.
func MonthlyEquivalent(s repository.Subscription) float64 {
	switch s.Cycle {
	case repository.CycleMonthly:
		return s.Price
	case repository.CycleYearly:
		return s.Price / 12
	}
	return 0
}

// YearlyEquivalent normalizes the price to a yearly cadence.
func YearlyEquivalent(s repository.Subscription) float64 {
	switch s.Cycle {
	case repository.CycleYearly:
		return s.Price
	case repository.CycleMonthly:
		return s.Price * 12
	}
	return 0
}

// ValidCycle reports whether cycle is one of monthly, yearly or trial.
func ValidCycle(cycle string) bool {
	switch cycle {
	case repository.CycleMonthly, repository.CycleYearly, repository.CycleTrial:
		return true
	}
	return false
}
