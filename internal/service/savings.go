package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jask/subwatch/internal/analytics"
	"github.com/jask/subwatch/internal/database/repository"
)

// Saving types recorded automatically.
const (
	SavingCancellation     = "subscription_cancellation"
	SavingAnnualConversion = "annual_conversion"
	SavingDuplicateRemoval = "duplicate_removal"
)

// SavingsService records savings and reports on them.
type SavingsService struct {
	Savings       *repository.SavingRepo
	Subscriptions *SubscriptionService
	Goals         analytics.Goals
	Currency      string
	Now           func() time.Time
}

// NewSaving is the input to Create. Zero StartDate means now.
type NewSaving struct {
	UserID      string
	Type        string
	Title       string
	Description string
	Amount      float64
	Frequency   string
	StartDate   time.Time
	EndDate     *time.Time
}

func (s *SavingsService) Create(ctx context.Context, in NewSaving) (repository.Saving, error) {
	if strings.TrimSpace(in.UserID) == "" || strings.TrimSpace(in.Type) == "" {
		return repository.Saving{}, fmt.Errorf("%w: user id and type required", ErrInvalid)
	}
	switch in.Frequency {
	case repository.FrequencyOneTime, repository.FrequencyMonthly, repository.FrequencyYearly:
	default:
		return repository.Saving{}, fmt.Errorf("%w: frequency %q", ErrInvalid, in.Frequency)
	}
	if in.Amount <= 0 {
		return repository.Saving{}, fmt.Errorf("%w: amount must be positive", ErrInvalid)
	}
	sv := s.build(in, nil)
	if sv.EndDate != nil && sv.EndDate.Before(sv.StartDate) {
		return repository.Saving{}, fmt.Errorf("%w: end date before start date", ErrInvalid)
	}
	if err := s.Savings.Create(ctx, sv); err != nil {
		return repository.Saving{}, err
	}
	return sv, nil
}

func (s *SavingsService) build(in NewSaving, sourceKey *string) repository.Saving {
	now := clock(s.Now)
	sv := repository.Saving{
		ID:          uuid.NewString(),
		UserID:      in.UserID,
		Type:        in.Type,
		Title:       in.Title,
		Description: in.Description,
		Amount:      in.Amount,
		Currency:    s.currency(),
		Frequency:   in.Frequency,
		StartDate:   in.StartDate,
		EndDate:     in.EndDate,
		SourceKey:   sourceKey,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if sv.StartDate.IsZero() {
		sv.StartDate = now
	}
	return sv
}

// List returns the user's savings; activeOnly drops ended ones.
func (s *SavingsService) List(ctx context.Context, userID string, activeOnly bool) ([]repository.Saving, error) {
	all, err := s.Savings.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !activeOnly {
		return all, nil
	}
	return analytics.ActiveSavings(all, clock(s.Now)), nil
}

func (s *SavingsService) Delete(ctx context.Context, id, userID string) error {
	ok, err := s.Savings.Delete(ctx, id, userID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("saving %s: %w", id, ErrNotFound)
	}
	return nil
}

// RecordAutomatic derives savings from canceled subscriptions and current
// recommendations. Each source is recorded at most once. It returns how
// many new savings were written.
func (s *SavingsService) RecordAutomatic(ctx context.Context, userID string) (int, error) {
	subs, err := s.Subscriptions.List(ctx, userID)
	if err != nil {
		return 0, err
	}
	written := 0
	record := func(key string, in NewSaving) error {
		ok, err := s.Savings.CreateIfAbsent(ctx, s.build(in, &key))
		if err != nil {
			return fmt.Errorf("record %s saving %s: %w", in.Type, key, err)
		}
		if ok {
			written++
		}
		return nil
	}

	for _, sub := range subs {
		if sub.Status != repository.StatusCanceled || sub.Price <= 0 || sub.EndedAt == nil {
			continue
		}
		name := displayName(sub.MerchantName)
		err := record(sub.ID, NewSaving{
			UserID:      userID,
			Type:        SavingCancellation,
			Title:       name + " canceled",
			Description: fmt.Sprintf("Canceling %s saves %.0f per month", name, sub.Price),
			Amount:      sub.Price,
			Frequency:   repository.FrequencyMonthly,
			StartDate:   *sub.EndedAt,
		})
		if err != nil {
			return written, err
		}
	}

	for _, rec := range analytics.Recommendations(subs) {
		var in NewSaving
		var key string
		switch rec.Type {
		case analytics.RecommendYearlyConversion:
			key = rec.Subscriptions[0].ID
			in = NewSaving{
				Type:   SavingAnnualConversion,
				Title:  rec.MerchantName + " yearly billing",
				Amount: rec.PotentialSavings / 12,
			}
		case analytics.RecommendDuplicateRemoval:
			key = rec.MerchantID
			in = NewSaving{
				Type:   SavingDuplicateRemoval,
				Title:  rec.MerchantName + " duplicates removed",
				Amount: rec.PotentialSavings,
			}
		default:
			continue
		}
		in.UserID = userID
		in.Description = rec.Description
		in.Frequency = repository.FrequencyMonthly
		if err := record(key, in); err != nil {
			return written, err
		}
	}
	return written, nil
}

func (s *SavingsService) Stats(ctx context.Context, userID string) (analytics.SavingsStats, error) {
	all, err := s.Savings.ListByUser(ctx, userID)
	if err != nil {
		return analytics.SavingsStats{}, err
	}
	return analytics.ComputeSavingsStats(all, clock(s.Now)), nil
}

// Achievement compares active savings with the configured goals.
func (s *SavingsService) Achievement(ctx context.Context, userID string) (analytics.Achievement, error) {
	st, err := s.Stats(ctx, userID)
	if err != nil {
		return analytics.Achievement{}, err
	}
	return analytics.ComputeAchievement(st.TotalMonthly, st.TotalYearly, s.goals()), nil
}

// Total is the cumulative amount a user's savings have realized so far.
func (s *SavingsService) Total(ctx context.Context, userID string) (float64, error) {
	all, err := s.Savings.ListByUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	now := clock(s.Now)
	var total float64
	for _, sv := range all {
		total += analytics.TotalSavings(sv, now)
	}
	return total, nil
}

func (s *SavingsService) goals() analytics.Goals {
	if s.Goals.Monthly <= 0 || s.Goals.Yearly <= 0 {
		return analytics.NewGoals(s.Goals.Monthly, s.Goals.Yearly)
	}
	return s.Goals
}

func (s *SavingsService) currency() string {
	if s.Currency == "" {
		return "KRW"
	}
	return s.Currency
}

func displayName(name string) string {
	if name == "" {
		return "Unknown"
	}
	return name
}
