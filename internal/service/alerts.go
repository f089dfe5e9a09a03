package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/jask/subwatch/internal/analytics"
	"github.com/jask/subwatch/internal/database/repository"
)

// AlertService turns detection findings into alerts and manages them.
type AlertService struct {
	Alerts        *repository.AlertRepo
	Subscriptions *SubscriptionService
	Log           *log.Logger
	Now           func() time.Time
}

// EmitResult counts the alerts one Emit call produced.
type EmitResult struct {
	Created    int
	Suppressed int
}

// pendingAlert is a finding rendered as an alert but not yet stored.
type pendingAlert struct {
	kind      string
	priority  analytics.Severity
	dedupeKey string
	data      map[string]any
}

// Emit runs detection for the user and creates one alert per finding.
// Findings that already have an undismissed alert are suppressed.
func (s *AlertService) Emit(ctx context.Context, userID string) (EmitResult, error) {
	report, err := s.Subscriptions.Analyze(ctx, userID)
	if err != nil {
		return EmitResult{}, err
	}
	var res EmitResult
	for _, p := range pendingAlerts(report) {
		open, err := s.Alerts.HasOpen(ctx, userID, p.dedupeKey)
		if err != nil {
			return res, err
		}
		if open {
			res.Suppressed++
			continue
		}
		title, message := Template(p.kind, p.data)
		a, err := s.create(ctx, userID, p.kind, title, message, string(p.priority), p.data, p.dedupeKey)
		if err != nil {
			return res, err
		}
		logger(s.Log).Printf("alert: %s for %s: %s", a.Type, userID, a.Message)
		res.Created++
	}
	return res, nil
}

func pendingAlerts(r Report) []pendingAlert {
	var out []pendingAlert
	for _, g := range r.Duplicates {
		ids := make([]string, 0, len(g.Subscriptions))
		for _, sub := range g.Subscriptions {
			ids = append(ids, sub.ID)
		}
		out = append(out, pendingAlert{
			kind:      analytics.KindDuplicate,
			priority:  g.Severity(),
			dedupeKey: "duplicate:" + g.MerchantID,
			data: map[string]any{
				"merchantId":      g.MerchantID,
				"merchantName":    g.MerchantName,
				"count":           len(g.Subscriptions),
				"subscriptionIds": ids,
			},
		})
	}
	for _, f := range r.Ghosts {
		out = append(out, pendingAlert{
			kind:      analytics.KindGhost,
			priority:  f.Severity(),
			dedupeKey: "ghost:" + f.Subscription.ID,
			data: map[string]any{
				"subscriptionId": f.Subscription.ID,
				"merchantName":   f.Subscription.MerchantName,
				"days":           f.IdleDays,
			},
		})
	}
	for _, f := range r.ExpiringTrials {
		out = append(out, pendingAlert{
			kind:      analytics.KindTrialEnding,
			priority:  f.Severity(),
			dedupeKey: fmt.Sprintf("trial:%s:%s", f.Subscription.ID, f.Subscription.NextBillAt.Format(time.DateOnly)),
			data: map[string]any{
				"subscriptionId": f.Subscription.ID,
				"merchantName":   f.Subscription.MerchantName,
				"days":           f.DaysLeft,
			},
		})
	}
	for _, f := range r.PriceIncreases {
		out = append(out, pendingAlert{
			kind:      analytics.KindPriceIncrease,
			priority:  f.Severity(),
			dedupeKey: fmt.Sprintf("price:%s:%.2f", f.Subscription.ID, f.NewPrice),
			data: map[string]any{
				"subscriptionId": f.Subscription.ID,
				"merchantName":   f.Subscription.MerchantName,
				"oldPrice":       f.OldPrice,
				"newPrice":       f.NewPrice,
				"percentage":     f.IncreasePct,
			},
		})
	}
	return out
}

// Template renders the title and message for an alert kind.
func Template(kind string, data map[string]any) (title, message string) {
	name := data["merchantName"]
	if name == nil || name == "" {
		name = "Unknown"
	}
	switch kind {
	case analytics.KindDuplicate:
		return "Duplicate subscriptions found", fmt.Sprintf("%v has %v active subscriptions at the same time.", name, data["count"])
	case analytics.KindGhost:
		return "Unused subscription", fmt.Sprintf("%v has not been touched for %v days.", name, data["days"])
	case analytics.KindTrialEnding:
		return "Trial ending soon", fmt.Sprintf("%v trial ends in %v days.", name, data["days"])
	case analytics.KindPriceIncrease:
		pct, _ := data["percentage"].(float64)
		if pct < 0 {
			return "Subscription price changed", fmt.Sprintf("%v price dropped by %.1f%%.", name, -pct)
		}
		return "Subscription price increase", fmt.Sprintf("%v price went up by %.1f%%.", name, pct)
	}
	return "Notice", "You have a new alert."
}

// Create stores an alert directly. Priority defaults to medium.
func (s *AlertService) Create(ctx context.Context, userID, kind, title, message, priority string, meta map[string]any) (repository.Alert, error) {
	return s.create(ctx, userID, kind, title, message, priority, meta, "")
}

func (s *AlertService) create(ctx context.Context, userID, kind, title, message, priority string, meta map[string]any, dedupeKey string) (repository.Alert, error) {
	if priority == "" {
		priority = string(analytics.SeverityMedium)
	}
	now := clock(s.Now)
	a := repository.Alert{
		ID:        uuid.NewString(),
		UserID:    userID,
		Type:      kind,
		Title:     title,
		Message:   message,
		Status:    repository.AlertUnread,
		Priority:  priority,
		Meta:      meta,
		DedupeKey: dedupeKey,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.Alerts.Create(ctx, a); err != nil {
		return repository.Alert{}, err
	}
	return a, nil
}

// List returns the user's alerts, newest first. An empty status lists all.
func (s *AlertService) List(ctx context.Context, userID, status string) ([]repository.Alert, error) {
	return s.Alerts.ListByUser(ctx, userID, status)
}

func (s *AlertService) MarkRead(ctx context.Context, id, userID string) (repository.Alert, error) {
	return s.setStatus(ctx, id, userID, repository.AlertRead)
}

func (s *AlertService) Dismiss(ctx context.Context, id, userID string) (repository.Alert, error) {
	return s.setStatus(ctx, id, userID, repository.AlertDismissed)
}

func (s *AlertService) setStatus(ctx context.Context, id, userID, status string) (repository.Alert, error) {
	a, err := s.Alerts.Get(ctx, id, userID)
	if err != nil {
		return repository.Alert{}, err
	}
	if a == nil {
		return repository.Alert{}, fmt.Errorf("alert %s: %w", id, ErrNotFound)
	}
	now := clock(s.Now)
	a.Status = status
	if status == repository.AlertRead && a.ReadAt == nil {
		a.ReadAt = &now
	}
	a.UpdatedAt = now
	if err := s.Alerts.UpdateStatus(ctx, *a); err != nil {
		return repository.Alert{}, err
	}
	return *a, nil
}

func (s *AlertService) Delete(ctx context.Context, id, userID string) error {
	ok, err := s.Alerts.Delete(ctx, id, userID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("alert %s: %w", id, ErrNotFound)
	}
	return nil
}

// AlertStats summarizes a user's alerts.
type AlertStats struct {
	Total            int
	Unread           int
	Urgent           int
	TypeDistribution map[string]int
}

func (s *AlertService) Stats(ctx context.Context, userID string) (AlertStats, error) {
	alerts, err := s.List(ctx, userID, "")
	if err != nil {
		return AlertStats{}, err
	}
	st := AlertStats{Total: len(alerts), TypeDistribution: map[string]int{}}
	for _, a := range alerts {
		if a.Status == repository.AlertUnread {
			st.Unread++
		}
		if a.Priority == string(analytics.SeverityUrgent) {
			st.Urgent++
		}
		st.TypeDistribution[a.Type]++
	}
	return st, nil
}
