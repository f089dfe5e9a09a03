package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jask/subwatch/internal/analytics"
	"github.com/jask/subwatch/internal/database/repository"
	"github.com/jask/subwatch/internal/lifecycle"
)

// SubscriptionService manages subscription records and their lifecycle.
type SubscriptionService struct {
	Subscriptions *repository.SubscriptionRepo
	Merchants     *repository.MerchantRepo
	Thresholds    analytics.Thresholds
	Now           func() time.Time
}

// NewSubscription is the input to Create. Zero StartedAt means now; a nil
// AutoRenew means true.
type NewSubscription struct {
	UserID     string
	MerchantID string
	Plan       string
	Cycle      string
	Price      float64
	Currency   string
	StartedAt  time.Time
	NextBillAt *time.Time
	AutoRenew  *bool
}

func (s *SubscriptionService) Create(ctx context.Context, in NewSubscription) (repository.Subscription, error) {
	if strings.TrimSpace(in.UserID) == "" {
		return repository.Subscription{}, fmt.Errorf("%w: user id required", ErrInvalid)
	}
	if !lifecycle.ValidCycle(in.Cycle) {
		return repository.Subscription{}, fmt.Errorf("%w: cycle %q", ErrInvalid, in.Cycle)
	}
	if in.Price < 0 {
		return repository.Subscription{}, fmt.Errorf("%w: negative price", ErrInvalid)
	}
	m, err := s.Merchants.Get(ctx, in.MerchantID)
	if err != nil {
		return repository.Subscription{}, err
	}
	if m == nil {
		return repository.Subscription{}, fmt.Errorf("merchant %s: %w", in.MerchantID, ErrNotFound)
	}
	existing, err := s.Subscriptions.FindActive(ctx, in.UserID, in.MerchantID)
	if err != nil {
		return repository.Subscription{}, err
	}
	if existing != nil {
		return repository.Subscription{}, fmt.Errorf("active %s subscription already exists: %w", m.NameNorm, ErrConflict)
	}

	now := clock(s.Now)
	sub := repository.Subscription{
		ID:           uuid.NewString(),
		UserID:       in.UserID,
		MerchantID:   in.MerchantID,
		MerchantName: m.NameNorm,
		Plan:         in.Plan,
		Cycle:        in.Cycle,
		Price:        in.Price,
		Currency:     in.Currency,
		Status:       repository.StatusActive,
		StartedAt:    in.StartedAt.UTC(),
		AutoRenew:    in.AutoRenew == nil || *in.AutoRenew,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if sub.Currency == "" {
		sub.Currency = "KRW"
	}
	if in.NextBillAt != nil {
		next := in.NextBillAt.UTC()
		sub.NextBillAt = &next
	}
	if sub.StartedAt.IsZero() {
		sub.StartedAt = now
	}
	lifecycle.EnsureNextBill(&sub, now)

	if err := s.Subscriptions.Create(ctx, sub); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return repository.Subscription{}, fmt.Errorf("active %s subscription already exists: %w", m.NameNorm, ErrConflict)
		}
		return repository.Subscription{}, err
	}
	return sub, nil
}

func (s *SubscriptionService) Get(ctx context.Context, id string) (repository.Subscription, error) {
	sub, err := s.Subscriptions.Get(ctx, id)
	if err != nil {
		return repository.Subscription{}, err
	}
	if sub == nil {
		return repository.Subscription{}, fmt.Errorf("subscription %s: %w", id, ErrNotFound)
	}
	return *sub, nil
}

// List returns the user's subscriptions with their linked transactions.
func (s *SubscriptionService) List(ctx context.Context, userID string) ([]repository.Subscription, error) {
	return s.Subscriptions.ListByUser(ctx, userID)
}

func (s *SubscriptionService) Pause(ctx context.Context, id string) (repository.Subscription, error) {
	return s.transition(ctx, id, func(sub *repository.Subscription, now time.Time) (bool, error) {
		return true, lifecycle.Pause(sub, now)
	})
}

// Resume reactivates a paused subscription. It conflicts when another
// subscription to the same merchant became active in the meantime.
func (s *SubscriptionService) Resume(ctx context.Context, id string) (repository.Subscription, error) {
	return s.transition(ctx, id, func(sub *repository.Subscription, now time.Time) (bool, error) {
		if sub.Status == repository.StatusActive {
			return false, nil
		}
		if sub.Status == repository.StatusPaused {
			other, err := s.Subscriptions.FindActive(ctx, sub.UserID, sub.MerchantID)
			if err != nil {
				return false, err
			}
			if other != nil {
				return false, fmt.Errorf("active %s subscription already exists: %w", sub.MerchantName, ErrConflict)
			}
		}
		return true, lifecycle.Resume(sub, now)
	})
}

func (s *SubscriptionService) Cancel(ctx context.Context, id string) (repository.Subscription, error) {
	return s.transition(ctx, id, func(sub *repository.Subscription, now time.Time) (bool, error) {
		if sub.Status == repository.StatusCanceled {
			return false, nil
		}
		lifecycle.Cancel(sub, now)
		return true, nil
	})
}

// transition applies a lifecycle step and saves the result when apply
// reports a change.
func (s *SubscriptionService) transition(ctx context.Context, id string, apply func(*repository.Subscription, time.Time) (bool, error)) (repository.Subscription, error) {
	sub, err := s.Get(ctx, id)
	if err != nil {
		return repository.Subscription{}, err
	}
	changed, err := apply(&sub, clock(s.Now))
	if err != nil {
		if errors.Is(err, lifecycle.ErrInvalidTransition) {
			return repository.Subscription{}, fmt.Errorf("%w: %w", ErrInvalid, err)
		}
		return repository.Subscription{}, err
	}
	if !changed {
		return sub, nil
	}
	if err := s.Subscriptions.Update(ctx, sub); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return repository.Subscription{}, fmt.Errorf("subscription %s: %w", id, ErrConflict)
		}
		return repository.Subscription{}, err
	}
	return sub, nil
}

// Delete removes a subscription on explicit user request.
func (s *SubscriptionService) Delete(ctx context.Context, id, userID string) error {
	sub, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if sub.UserID != userID {
		return fmt.Errorf("subscription %s: %w", id, ErrNotFound)
	}
	return s.Subscriptions.Delete(ctx, id)
}

func (s *SubscriptionService) Stats(ctx context.Context, userID string) (analytics.SubscriptionStats, error) {
	subs, err := s.List(ctx, userID)
	if err != nil {
		return analytics.SubscriptionStats{}, err
	}
	return analytics.ComputeSubscriptionStats(subs), nil
}

// Forecast projects spend over the given number of months, falling back to
// the configured horizon when months is not positive.
func (s *SubscriptionService) Forecast(ctx context.Context, userID string, months int) ([]analytics.ForecastEntry, error) {
	if months <= 0 {
		months = s.thresholds().ForecastMonths
	}
	subs, err := s.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	return analytics.Forecast(subs, months, clock(s.Now)), nil
}

// Report bundles every detection pass over one user.
type Report struct {
	Duplicates      []analytics.DuplicateGroup
	Ghosts          []analytics.GhostFinding
	ExpiringTrials  []analytics.TrialFinding
	PriceIncreases  []analytics.PriceIncreaseFinding
	Recommendations []analytics.Recommendation
}

// Empty reports whether no pass found anything.
func (r Report) Empty() bool {
	return len(r.Duplicates) == 0 && len(r.Ghosts) == 0 && len(r.ExpiringTrials) == 0 &&
		len(r.PriceIncreases) == 0 && len(r.Recommendations) == 0
}

// Analyze runs the detection passes over the user's subscriptions.
func (s *SubscriptionService) Analyze(ctx context.Context, userID string) (Report, error) {
	subs, err := s.List(ctx, userID)
	if err != nil {
		return Report{}, err
	}
	th := s.thresholds()
	now := clock(s.Now)
	return Report{
		Duplicates:      analytics.DuplicateGroups(subs),
		Ghosts:          analytics.Ghosts(subs, now, th.GhostDays),
		ExpiringTrials:  analytics.ExpiringTrials(subs, now, th.TrialDays),
		PriceIncreases:  analytics.PriceIncreases(subs, th.PriceIncreasePct),
		Recommendations: analytics.Recommendations(subs),
	}, nil
}

func (s *SubscriptionService) thresholds() analytics.Thresholds {
	if s.Thresholds == (analytics.Thresholds{}) {
		return analytics.DefaultThresholds()
	}
	return s.Thresholds
}
